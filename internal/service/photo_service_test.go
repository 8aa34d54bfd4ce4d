package service

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"strings"
	"testing"

	"github.com/medtrack/internal/photo"
)

func TestPhotoServiceUploadAndRemove(t *testing.T) {
	svc := setupMemoryServices(t)
	ctx := context.Background()

	store, err := photo.NewLocalStore(t.TempDir(), "/static/uploads")
	if err != nil {
		t.Fatalf("NewLocalStore returned error: %v", err)
	}
	photos := NewPhotoService(store, svc.medications)

	med, _ := svc.medications.Create(ctx, MedicationInput{Name: "A", Dosage: "1", Form: "tablet"})

	var buf bytes.Buffer
	png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 32, 32)))

	first, err := photos.Upload(ctx, med.ID, buf.Bytes())
	if err != nil {
		t.Fatalf("Upload returned error: %v", err)
	}
	if !strings.HasPrefix(first.PhotoURL, "/static/uploads/med-1-") || !strings.HasSuffix(first.ThumbnailURL, "_thumb.png") {
		t.Fatalf("unexpected urls: %+v", first)
	}

	second, err := photos.Upload(ctx, med.ID, buf.Bytes())
	if err != nil {
		t.Fatalf("Upload returned error: %v", err)
	}
	// 旧照片在替换后被删除
	if _, err := store.Open(ctx, photo.NameFromURL(first.PhotoURL)); !errors.Is(err, photo.ErrNotFound) {
		t.Fatalf("old photo should be removed, got %v", err)
	}

	if _, err := photos.Upload(ctx, med.ID, []byte("plain text")); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if _, err := photos.Upload(ctx, 99, buf.Bytes()); !errors.Is(err, ErrMedicationNotFound) {
		t.Fatalf("expected ErrMedicationNotFound, got %v", err)
	}

	cleared, err := photos.Remove(ctx, med.ID)
	if err != nil {
		t.Fatalf("Remove returned error: %v", err)
	}
	if cleared.PhotoURL != "" || cleared.ThumbnailURL != "" {
		t.Fatalf("expected cleared urls, got %+v", cleared)
	}
	if _, err := store.Open(ctx, photo.NameFromURL(second.ThumbnailURL)); !errors.Is(err, photo.ErrNotFound) {
		t.Fatalf("thumbnail should be removed, got %v", err)
	}
}
