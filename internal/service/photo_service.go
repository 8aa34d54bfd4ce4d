package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/medtrack/internal/db"
	"github.com/medtrack/internal/logger"
	"github.com/medtrack/internal/photo"
)

// PhotoService 负责药品照片的上传与删除
type PhotoService struct {
	photos      photo.Store
	medications *MedicationService
}

// NewPhotoService 构造 PhotoService
func NewPhotoService(photos photo.Store, medications *MedicationService) *PhotoService {
	return &PhotoService{photos: photos, medications: medications}
}

// Upload 校验照片、生成缩略图并替换药品原有照片
func (s *PhotoService) Upload(ctx context.Context, medicationID uint, data []byte) (*db.Medication, error) {
	current, err := s.medications.store.Medication(ctx, medicationID)
	if err != nil {
		return nil, mapNotFound(err, ErrMedicationNotFound, "get medication")
	}

	processed, err := photo.Process(data)
	if err != nil {
		if errors.Is(err, photo.ErrNotImage) || errors.Is(err, photo.ErrTooLarge) {
			return nil, invalidf("%v", err)
		}
		return nil, fmt.Errorf("process photo: %w", err)
	}

	originalName, thumbName := photo.NewNames(medicationID, processed.Ext)
	if err := s.photos.Save(ctx, originalName, processed.Original, processed.ContentType); err != nil {
		return nil, fmt.Errorf("save photo: %w", err)
	}
	if err := s.photos.Save(ctx, thumbName, processed.Thumbnail, "image/png"); err != nil {
		s.removeObjects(ctx, originalName)
		return nil, fmt.Errorf("save thumbnail: %w", err)
	}

	updated, err := s.medications.SetPhoto(ctx, medicationID, s.photos.URL(originalName), s.photos.URL(thumbName))
	if err != nil {
		s.removeObjects(ctx, originalName, thumbName)
		return nil, err
	}

	s.removeObjects(ctx, photo.NameFromURL(current.PhotoURL), photo.NameFromURL(current.ThumbnailURL))
	return updated, nil
}

// Remove 清除药品照片
func (s *PhotoService) Remove(ctx context.Context, medicationID uint) (*db.Medication, error) {
	current, err := s.medications.store.Medication(ctx, medicationID)
	if err != nil {
		return nil, mapNotFound(err, ErrMedicationNotFound, "get medication")
	}

	updated, err := s.medications.SetPhoto(ctx, medicationID, "", "")
	if err != nil {
		return nil, err
	}
	s.removeObjects(ctx, photo.NameFromURL(current.PhotoURL), photo.NameFromURL(current.ThumbnailURL))
	return updated, nil
}

// Store 返回底层照片存储
func (s *PhotoService) Store() photo.Store {
	return s.photos
}

func (s *PhotoService) removeObjects(ctx context.Context, names ...string) {
	for _, name := range names {
		if name == "" {
			continue
		}
		if err := s.photos.Delete(ctx, name); err != nil {
			logger.Warn("delete photo failed", "name", name, "error", err)
		}
	}
}
