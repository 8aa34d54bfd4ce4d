package db

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Options 描述数据库连接参数
type Options struct {
	Driver string
	Path   string // sqlite 文件路径
	DSN    string // postgres 连接串
	Silent bool
}

// Open 打开数据库连接并执行自动迁移。
// sqlite 路径为空时将回退到默认值 medtrack.db。
func Open(opts Options) (*gorm.DB, error) {
	var dialector gorm.Dialector

	switch strings.ToLower(strings.TrimSpace(opts.Driver)) {
	case "", DriverSQLite:
		path := strings.TrimSpace(opts.Path)
		if path == "" {
			path = "medtrack.db"
		}
		if err := ensureParentDir(path); err != nil {
			return nil, err
		}
		dialector = sqlite.Open(withBusyTimeout(path))
	case DriverPostgres:
		if strings.TrimSpace(opts.DSN) == "" {
			return nil, errors.New("postgres dsn is required")
		}
		dialector = postgres.Open(opts.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", opts.Driver)
	}

	cfg := &gorm.Config{}
	if opts.Silent {
		cfg.Logger = logger.Default.LogMode(logger.Silent)
	}

	gdb, err := gorm.Open(dialector, cfg)
	if err != nil {
		return nil, err
	}

	if gdb.Dialector.Name() == DriverSQLite {
		// sqlite 只允许单写者，连接数限制为 1 可避免 database is locked
		sqlDB, err := gdb.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}

	if err := Migrate(gdb); err != nil {
		return nil, err
	}

	return gdb, nil
}

// Migrate 为核心模型创建表并补齐计数器
func Migrate(gdb *gorm.DB) error {
	if err := gdb.AutoMigrate(
		&User{},
		&Medication{},
		&Schedule{},
		&IntakeLog{},
		&Interaction{},
		&Counter{},
	); err != nil {
		return err
	}

	for _, kind := range CounterKinds {
		counter := Counter{Kind: kind}
		if err := gdb.Where(Counter{Kind: kind}).FirstOrCreate(&counter).Error; err != nil {
			return fmt.Errorf("init counter %s: %w", kind, err)
		}
	}

	// 旧数据中的 with_food 统一迁移为 before_food
	if err := gdb.Model(&Schedule{}).
		Where("food_timing = ?", legacyFoodTimingWith).
		Update("food_timing", FoodTimingBefore).Error; err != nil {
		return err
	}

	return nil
}

func withBusyTimeout(path string) string {
	if strings.Contains(path, "_busy_timeout") {
		return path
	}
	if strings.Contains(path, "?") {
		return path + "&_busy_timeout=5000"
	}
	return path + "?_busy_timeout=5000"
}

func ensureParentDir(path string) error {
	if strings.HasPrefix(path, "file:") {
		return nil
	}

	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}

	info, err := os.Stat(dir)
	if err == nil {
		if !info.IsDir() {
			return errors.New("database path parent is not a directory")
		}
		return nil
	}

	if os.IsNotExist(err) {
		return os.MkdirAll(dir, 0o755)
	}

	return err
}
