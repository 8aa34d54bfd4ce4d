// Package photo 负责药品照片的校验、缩略图生成与存储。
package photo

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

const (
	// MaxBytes 是单张照片的大小上限
	MaxBytes = 10 << 20
	// ThumbnailSize 是缩略图最长边
	ThumbnailSize = 256
)

var (
	// ErrNotImage 在内容无法解码为 png/jpeg/webp 时返回
	ErrNotImage = errors.New("not a supported image")
	// ErrTooLarge 在照片超过大小上限时返回
	ErrTooLarge = errors.New("image too large")
)

// Processed 是校验后的照片与其缩略图
type Processed struct {
	Format      string
	ContentType string
	Ext         string
	Width       int
	Height      int
	Original    []byte
	Thumbnail   []byte
}

// Process 解码照片并生成 PNG 缩略图，最长边不超过 ThumbnailSize
func Process(data []byte) (*Processed, error) {
	if len(data) == 0 {
		return nil, ErrNotImage
	}
	if len(data) > MaxBytes {
		return nil, ErrTooLarge
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotImage, err)
	}

	bounds := img.Bounds()
	thumb := image.NewRGBA(fitWithin(bounds.Dx(), bounds.Dy(), ThumbnailSize))
	draw.CatmullRom.Scale(thumb, thumb.Bounds(), img, bounds, draw.Over, nil)

	var buf bytes.Buffer
	if err := png.Encode(&buf, thumb); err != nil {
		return nil, fmt.Errorf("encode thumbnail: %w", err)
	}

	return &Processed{
		Format:      format,
		ContentType: "image/" + format,
		Ext:         extFor(format),
		Width:       bounds.Dx(),
		Height:      bounds.Dy(),
		Original:    data,
		Thumbnail:   buf.Bytes(),
	}, nil
}

// fitWithin 等比缩放到最长边不超过 limit，小图保持原尺寸
func fitWithin(w, h, limit int) image.Rectangle {
	if w <= limit && h <= limit {
		return image.Rect(0, 0, max(w, 1), max(h, 1))
	}
	if w >= h {
		return image.Rect(0, 0, limit, max(h*limit/w, 1))
	}
	return image.Rect(0, 0, max(w*limit/h, 1), limit)
}

func extFor(format string) string {
	switch format {
	case "jpeg":
		return ".jpg"
	default:
		return "." + format
	}
}

// NewNames 生成原图与缩略图的对象名
func NewNames(medicationID uint, ext string) (original, thumbnail string) {
	base := fmt.Sprintf("med-%d-%s-%s", medicationID, time.Now().Format("20060102"), uuid.New().String())
	return base + ext, base + "_thumb.png"
}

// NameFromURL 从照片地址中取出对象名
func NameFromURL(url string) string {
	url = strings.TrimSpace(url)
	if url == "" {
		return ""
	}
	if i := strings.IndexAny(url, "?#"); i >= 0 {
		url = url[:i]
	}
	name := path.Base(url)
	if name == "." || name == "/" {
		return ""
	}
	return name
}

// ValidName 拒绝包含路径分隔符的对象名
func ValidName(name string) bool {
	return name != "" && name != "." && name != ".." && !strings.ContainsAny(name, `/\`)
}
