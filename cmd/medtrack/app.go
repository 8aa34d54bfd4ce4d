package main

import (
	"context"
	"fmt"

	"github.com/medtrack/internal/config"
	"github.com/medtrack/internal/db"
	"github.com/medtrack/internal/handler"
	"github.com/medtrack/internal/logger"
	"github.com/medtrack/internal/photo"
	"github.com/medtrack/internal/service"
	"github.com/medtrack/internal/store"
	"github.com/medtrack/internal/store/gormstore"
	"github.com/medtrack/internal/store/memory"
	"gorm.io/gorm"
)

const driverMemory = "memory"

// openStore 按配置打开存储；内存模式下返回的 *gorm.DB 为 nil
func openStore(cfg config.AppConfig) (store.Store, *gorm.DB, error) {
	if cfg.DatabaseDriver == driverMemory {
		logger.Warn("using in-memory store, data will be lost on exit")
		return memory.New(), nil, nil
	}

	gdb, err := db.Open(db.Options{
		Driver: cfg.DatabaseDriver,
		Path:   cfg.DatabasePath,
		DSN:    cfg.DatabaseDSN,
		Silent: cfg.LogLevel != "debug",
	})
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	logger.Info("database ready", "driver", cfg.DatabaseDriver)
	return gormstore.New(gdb), gdb, nil
}

func newClock(cfg config.AppConfig) service.Clock {
	return service.NewClock(nil, cfg.Location)
}

// newPhotoStore 按配置选择本地目录或 minio
func newPhotoStore(ctx context.Context, cfg config.AppConfig) (photo.Store, error) {
	switch cfg.PhotoStore {
	case "minio":
		s, err := photo.NewMinioStore(photo.MinioConfig{
			Endpoint:  cfg.Minio.Endpoint,
			AccessKey: cfg.Minio.AccessKey,
			SecretKey: cfg.Minio.SecretKey,
			Bucket:    cfg.Minio.Bucket,
			UseSSL:    cfg.Minio.UseSSL,
			PublicURL: cfg.Minio.PublicURL,
		})
		if err != nil {
			return nil, err
		}
		if err := s.Init(ctx); err != nil {
			return nil, err
		}
		return s, nil
	default:
		return photo.NewLocalStore(cfg.UploadDir, cfg.UploadURLPath)
	}
}

// newAuthenticator 未配置管理员时返回 nil，表示不启用登录
func newAuthenticator(cfg config.AppConfig, gdb *gorm.DB) (handler.Authenticator, error) {
	if !cfg.AuthEnabled() {
		return nil, nil
	}
	if gdb == nil {
		return handler.NewStaticAuthenticator(cfg.SuperRootUserName, cfg.SuperRootPassword)
	}
	if err := db.EnsureUser(gdb, cfg.SuperRootUserName, cfg.SuperRootPassword); err != nil {
		return nil, fmt.Errorf("ensure admin user: %w", err)
	}
	return handler.NewGormAuthenticator(gdb), nil
}
