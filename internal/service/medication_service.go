package service

import (
	"context"
	"strings"
	"time"

	"github.com/medtrack/internal/db"
	"github.com/medtrack/internal/store"
)

const recentLogLimit = 10

// MedicationService 负责药品的增删改查与库存调整
type MedicationService struct {
	store store.Store
	clock Clock
	notes *NotesRenderer
}

// MedicationFilter 描述药品列表过滤条件
// ActiveOnly 只保留至少有一个启用计划的药品
type MedicationFilter struct {
	Search     string
	ActiveOnly bool
}

// MedicationInput 定义创建药品时可配置字段
type MedicationInput struct {
	Name              string
	Dosage            string
	Form              string
	Purpose           string
	PrescribingDoctor string
	PrescriptionDate  string
	SideEffects       string
	Notes             string
	TotalQuantity     *float64
	RemainingQuantity *float64
}

// MedicationPatch 定义部分更新，nil 字段保持不变
type MedicationPatch struct {
	Name              *string
	Dosage            *string
	Form              *string
	Purpose           *string
	PrescribingDoctor *string
	PrescriptionDate  *string
	SideEffects       *string
	Notes             *string
	TotalQuantity     *float64
	RemainingQuantity *float64
}

// MedicationDetail 是单个药品的详情视图
type MedicationDetail struct {
	Medication      db.Medication
	Schedules       []db.Schedule
	RecentLogs      []db.IntakeLog
	NotesHTML       string
	SideEffectsHTML string
}

// NewMedicationService 构造 MedicationService
func NewMedicationService(s store.Store, clock Clock, notes *NotesRenderer) *MedicationService {
	if notes == nil {
		notes = NewNotesRenderer()
	}
	return &MedicationService{store: s, clock: clock, notes: notes}
}

// List 返回药品集合，支持名称/用途搜索与仅启用过滤
func (s *MedicationService) List(ctx context.Context, filter MedicationFilter) ([]db.Medication, error) {
	meds, err := s.store.Medications(ctx, store.MedicationQuery{Search: filter.Search})
	if err != nil {
		return nil, mapNotFound(err, ErrMedicationNotFound, "list medications")
	}
	if !filter.ActiveOnly {
		return meds, nil
	}

	schedules, err := s.store.Schedules(ctx, store.ScheduleQuery{ActiveOnly: true})
	if err != nil {
		return nil, mapNotFound(err, ErrScheduleNotFound, "list active schedules")
	}
	active := make(map[uint]struct{}, len(schedules))
	for _, sc := range schedules {
		active[sc.MedicationID] = struct{}{}
	}

	out := make([]db.Medication, 0, len(meds))
	for _, m := range meds {
		if _, ok := active[m.ID]; ok {
			out = append(out, m)
		}
	}
	return out, nil
}

// Get 返回药品详情：计划、最近 10 条记录（新在前）与渲染后的备注
func (s *MedicationService) Get(ctx context.Context, id uint) (*MedicationDetail, error) {
	med, err := s.store.Medication(ctx, id)
	if err != nil {
		return nil, mapNotFound(err, ErrMedicationNotFound, "get medication")
	}

	schedules, err := s.store.Schedules(ctx, store.ScheduleQuery{MedicationID: id})
	if err != nil {
		return nil, mapNotFound(err, ErrScheduleNotFound, "list medication schedules")
	}

	logs, err := s.store.Logs(ctx, store.LogQuery{MedicationID: id, Limit: recentLogLimit, NewestFirst: true})
	if err != nil {
		return nil, mapNotFound(err, ErrMedicationNotFound, "list medication logs")
	}

	return &MedicationDetail{
		Medication:      med,
		Schedules:       schedules,
		RecentLogs:      logs,
		NotesHTML:       s.notes.Render(med.Notes),
		SideEffectsHTML: s.notes.Render(med.SideEffects),
	}, nil
}

// Create 新建药品，剩余量缺省时等于处方总量
func (s *MedicationService) Create(ctx context.Context, input MedicationInput) (*db.Medication, error) {
	med := db.Medication{
		Name:              strings.TrimSpace(input.Name),
		Dosage:            strings.TrimSpace(input.Dosage),
		Form:              strings.TrimSpace(input.Form),
		Purpose:           strings.TrimSpace(input.Purpose),
		PrescribingDoctor: strings.TrimSpace(input.PrescribingDoctor),
		PrescriptionDate:  strings.TrimSpace(input.PrescriptionDate),
		SideEffects:       strings.TrimSpace(input.SideEffects),
		Notes:             strings.TrimSpace(input.Notes),
		TotalQuantity:     copyQuantity(input.TotalQuantity),
		RemainingQuantity: copyQuantity(input.RemainingQuantity),
	}
	if med.RemainingQuantity == nil {
		med.RemainingQuantity = copyQuantity(med.TotalQuantity)
	}

	if err := validateMedication(med); err != nil {
		return nil, err
	}

	err := s.store.Atomic(ctx, func(tx store.Tx) error {
		id, err := tx.NextID(ctx, db.CounterMedications)
		if err != nil {
			return err
		}
		now := s.clock.Now()
		med.ID = id
		med.CreatedAt = now
		med.UpdatedAt = now
		return tx.CreateMedication(ctx, &med)
	})
	if err != nil {
		return nil, mapNotFound(err, ErrMedicationNotFound, "create medication")
	}
	return &med, nil
}

// Update 按补丁更新药品，校验失败时不写入
func (s *MedicationService) Update(ctx context.Context, id uint, patch MedicationPatch) (*db.Medication, error) {
	var updated db.Medication

	err := s.store.Atomic(ctx, func(tx store.Tx) error {
		med, err := tx.Medication(ctx, id)
		if err != nil {
			return err
		}

		applyString(&med.Name, patch.Name)
		applyString(&med.Dosage, patch.Dosage)
		applyString(&med.Form, patch.Form)
		applyString(&med.Purpose, patch.Purpose)
		applyString(&med.PrescribingDoctor, patch.PrescribingDoctor)
		applyString(&med.PrescriptionDate, patch.PrescriptionDate)
		applyString(&med.SideEffects, patch.SideEffects)
		applyString(&med.Notes, patch.Notes)
		if patch.TotalQuantity != nil {
			med.TotalQuantity = copyQuantity(patch.TotalQuantity)
		}
		if patch.RemainingQuantity != nil {
			med.RemainingQuantity = copyQuantity(patch.RemainingQuantity)
		}

		if err := validateMedication(med); err != nil {
			return err
		}

		med.UpdatedAt = s.clock.Now()
		if err := tx.SaveMedication(ctx, &med); err != nil {
			return err
		}
		updated = med
		return nil
	})
	if err != nil {
		return nil, mapNotFound(err, ErrMedicationNotFound, "update medication")
	}
	return &updated, nil
}

// Delete 删除药品并级联删除其计划与服药记录
func (s *MedicationService) Delete(ctx context.Context, id uint) error {
	err := s.store.Atomic(ctx, func(tx store.Tx) error {
		return tx.DeleteMedication(ctx, id)
	})
	return mapNotFound(err, ErrMedicationNotFound, "delete medication")
}

// UpdateQuantity 按带符号的变化量调整剩余量，结果不低于 0；isRefill 时补药次数加一
func (s *MedicationService) UpdateQuantity(ctx context.Context, id uint, change float64, isRefill bool) (*db.Medication, error) {
	var updated db.Medication

	err := s.store.Atomic(ctx, func(tx store.Tx) error {
		med, err := tx.Medication(ctx, id)
		if err != nil {
			return err
		}

		current := 0.0
		if med.RemainingQuantity != nil {
			current = *med.RemainingQuantity
		}
		med.RemainingQuantity = db.Float64Ptr(max(0, current+change))
		if isRefill {
			med.RefillCount++
		}

		med.UpdatedAt = s.clock.Now()
		if err := tx.SaveMedication(ctx, &med); err != nil {
			return err
		}
		updated = med
		return nil
	})
	if err != nil {
		return nil, mapNotFound(err, ErrMedicationNotFound, "update quantity")
	}
	return &updated, nil
}

// SetPhoto 记录药品照片地址；传入空字符串即清除
func (s *MedicationService) SetPhoto(ctx context.Context, id uint, photoURL, thumbnailURL string) (*db.Medication, error) {
	var updated db.Medication

	err := s.store.Atomic(ctx, func(tx store.Tx) error {
		med, err := tx.Medication(ctx, id)
		if err != nil {
			return err
		}
		med.PhotoURL = photoURL
		med.ThumbnailURL = thumbnailURL
		med.UpdatedAt = s.clock.Now()
		if err := tx.SaveMedication(ctx, &med); err != nil {
			return err
		}
		updated = med
		return nil
	})
	if err != nil {
		return nil, mapNotFound(err, ErrMedicationNotFound, "set medication photo")
	}
	return &updated, nil
}

func validateMedication(med db.Medication) error {
	if med.Name == "" {
		return invalidf("medication name is required")
	}
	if med.Dosage == "" {
		return invalidf("medication dosage is required")
	}
	if med.Form == "" {
		return invalidf("medication form is required")
	}
	if med.TotalQuantity != nil && *med.TotalQuantity < 0 {
		return invalidf("total quantity must not be negative")
	}
	if med.RemainingQuantity != nil && *med.RemainingQuantity < 0 {
		return invalidf("remaining quantity must not be negative")
	}
	if med.PrescriptionDate != "" {
		if _, err := time.Parse(dateFormat, med.PrescriptionDate); err != nil {
			return invalidf("prescription date must be YYYY-MM-DD")
		}
	}
	return nil
}

func applyString(dst *string, value *string) {
	if value != nil {
		*dst = strings.TrimSpace(*value)
	}
}

func copyQuantity(v *float64) *float64 {
	if v == nil {
		return nil
	}
	return db.Float64Ptr(*v)
}
