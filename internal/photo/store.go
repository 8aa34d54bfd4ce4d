package photo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// ErrNotFound 在对象不存在时返回
var ErrNotFound = errors.New("photo not found")

// Store 保存照片对象
type Store interface {
	Save(ctx context.Context, name string, data []byte, contentType string) error
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	Delete(ctx context.Context, name string) error
	URL(name string) string
}

// LocalStore 把照片写入本地目录，通过静态路径对外提供
type LocalStore struct {
	dir     string
	urlPath string
}

// NewLocalStore 构造 LocalStore 并确保目录存在
func NewLocalStore(dir, urlPath string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &LocalStore{dir: dir, urlPath: "/" + strings.Trim(urlPath, "/")}, nil
}

func (s *LocalStore) Save(_ context.Context, name string, data []byte, _ string) error {
	if !ValidName(name) {
		return fmt.Errorf("invalid photo name %q", name)
	}
	if err := os.WriteFile(filepath.Join(s.dir, name), data, 0o644); err != nil {
		return fmt.Errorf("save photo %s: %w", name, err)
	}
	return nil
}

func (s *LocalStore) Open(_ context.Context, name string) (io.ReadCloser, error) {
	if !ValidName(name) {
		return nil, ErrNotFound
	}
	f, err := os.Open(filepath.Join(s.dir, name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("open photo %s: %w", name, err)
	}
	return f, nil
}

// Delete 删除照片，对象不存在时视为成功
func (s *LocalStore) Delete(_ context.Context, name string) error {
	if !ValidName(name) {
		return nil
	}
	if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete photo %s: %w", name, err)
	}
	return nil
}

func (s *LocalStore) URL(name string) string {
	return path.Join(s.urlPath, name)
}
