package photo

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"strings"
	"testing"
)

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func TestProcessPNG(t *testing.T) {
	got, err := Process(encodePNG(t, 600, 300))
	if err != nil {
		t.Fatalf("Process returned error: %v", err)
	}
	if got.Format != "png" || got.ContentType != "image/png" || got.Ext != ".png" {
		t.Fatalf("unexpected format: %+v", got)
	}
	if got.Width != 600 || got.Height != 300 {
		t.Fatalf("unexpected size: %dx%d", got.Width, got.Height)
	}

	thumb, err := png.Decode(bytes.NewReader(got.Thumbnail))
	if err != nil {
		t.Fatalf("thumbnail is not png: %v", err)
	}
	if b := thumb.Bounds(); b.Dx() != 256 || b.Dy() != 128 {
		t.Fatalf("unexpected thumbnail size: %v", b)
	}
}

func TestProcessJPEGPortrait(t *testing.T) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 100, 400)), nil); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}

	got, err := Process(buf.Bytes())
	if err != nil {
		t.Fatalf("Process returned error: %v", err)
	}
	if got.Ext != ".jpg" || got.ContentType != "image/jpeg" {
		t.Fatalf("unexpected format: %+v", got)
	}
	thumb, _ := png.Decode(bytes.NewReader(got.Thumbnail))
	if b := thumb.Bounds(); b.Dx() != 64 || b.Dy() != 256 {
		t.Fatalf("unexpected thumbnail size: %v", b)
	}
}

func TestProcessRejectsInvalid(t *testing.T) {
	if _, err := Process([]byte("not an image")); !errors.Is(err, ErrNotImage) {
		t.Fatalf("expected ErrNotImage, got %v", err)
	}
	if _, err := Process(nil); !errors.Is(err, ErrNotImage) {
		t.Fatalf("expected ErrNotImage for empty input, got %v", err)
	}
	if _, err := Process(make([]byte, MaxBytes+1)); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}
}

func TestNames(t *testing.T) {
	original, thumb := NewNames(7, ".png")
	if !strings.HasPrefix(original, "med-7-") || !strings.HasSuffix(original, ".png") {
		t.Fatalf("unexpected original name: %s", original)
	}
	if strings.TrimSuffix(thumb, "_thumb.png") != strings.TrimSuffix(original, ".png") {
		t.Fatalf("thumbnail should share base name: %s / %s", original, thumb)
	}

	if got := NameFromURL("https://cdn.example.com/photos/a.png?x=1"); got != "a.png" {
		t.Fatalf("NameFromURL = %q", got)
	}
	if NameFromURL("") != "" {
		t.Fatal("expected empty name")
	}
	for _, bad := range []string{"", "..", "a/b.png", `a\b.png`} {
		if ValidName(bad) {
			t.Fatalf("ValidName(%q) should be false", bad)
		}
	}
}

func TestLocalStore(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocalStore(t.TempDir(), "static/uploads/")
	if err != nil {
		t.Fatalf("NewLocalStore returned error: %v", err)
	}

	if err := s.Save(ctx, "a.png", []byte("data"), "image/png"); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}
	if got := s.URL("a.png"); got != "/static/uploads/a.png" {
		t.Fatalf("unexpected url: %s", got)
	}

	rc, err := s.Open(ctx, "a.png")
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	data, _ := io.ReadAll(rc)
	rc.Close()
	if string(data) != "data" {
		t.Fatalf("unexpected content: %q", data)
	}

	if err := s.Save(ctx, "../escape.png", []byte("x"), ""); err == nil {
		t.Fatal("expected error for path traversal")
	}

	if err := s.Delete(ctx, "a.png"); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
	if err := s.Delete(ctx, "a.png"); err != nil {
		t.Fatalf("second Delete should be a no-op, got %v", err)
	}
	if _, err := s.Open(ctx, "a.png"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMinioStoreURL(t *testing.T) {
	s, err := NewMinioStore(MinioConfig{Endpoint: "localhost:9000", Bucket: "pills", PublicURL: "https://cdn.example.com/pills/"})
	if err != nil {
		t.Fatalf("NewMinioStore returned error: %v", err)
	}
	if got := s.URL("a.png"); got != "https://cdn.example.com/pills/a.png" {
		t.Fatalf("unexpected url: %s", got)
	}

	proxied, _ := NewMinioStore(MinioConfig{Endpoint: "localhost:9000", Bucket: "pills"})
	if got := proxied.URL("a.png"); got != "/photos/a.png" {
		t.Fatalf("unexpected proxied url: %s", got)
	}
}
