package service

import (
	"errors"
	"fmt"

	"github.com/medtrack/internal/store"
)

var (
	// ErrMedicationNotFound 在指定药品不存在时返回
	ErrMedicationNotFound = errors.New("medication not found")
	// ErrScheduleNotFound 在指定计划不存在时返回
	ErrScheduleNotFound = errors.New("schedule not found")
	// ErrInteractionNotFound 在指定相互作用不存在时返回
	ErrInteractionNotFound = errors.New("interaction not found")
	// ErrInvalidInput 表示必填字段缺失或格式错误，写入前即被拒绝
	ErrInvalidInput = errors.New("invalid input")
)

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// mapNotFound 把存储层的 ErrNotFound 转为领域错误，其余错误原样包装
func mapNotFound(err error, notFound error, op string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, store.ErrNotFound) {
		return notFound
	}
	if errors.Is(err, ErrInvalidInput) || errors.Is(err, ErrMedicationNotFound) ||
		errors.Is(err, ErrScheduleNotFound) || errors.Is(err, ErrInteractionNotFound) {
		return err
	}
	return fmt.Errorf("%s: %w", op, err)
}
