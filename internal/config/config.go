package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const defaultConfigFile = "medtrack.yaml"

// AppConfig 汇总运行服务所需的基础配置。
type AppConfig struct {
	ListenAddr        string
	Port              string
	DatabaseDriver    string
	DatabasePath      string
	DatabaseDSN       string
	SessionSecret     string
	GinMode           string
	UploadDir         string
	UploadURLPath     string
	PhotoStore        string
	Minio             MinioConfig
	SuperRootUserName string
	SuperRootPassword string
	Timezone          string
	Location          *time.Location
	RefillThreshold   float64
	ReminderSpec      string
	RemindersEnabled  bool
	LogLevel          string
	LogFormat         string
}

// MinioConfig 描述照片对象存储
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	PublicURL string
}

// AuthEnabled 表示是否配置了管理员账号
func (c AppConfig) AuthEnabled() bool {
	return c.SuperRootUserName != "" && c.SuperRootPassword != ""
}

// 配置项与对应环境变量，未带前缀的名称沿用旧部署
var envBindings = map[string][]string{
	"listen_addr":          {"MEDTRACK_LISTEN_ADDR", "LISTEN_ADDR"},
	"port":                 {"MEDTRACK_PORT", "PORT"},
	"database_driver":      {"MEDTRACK_DATABASE_DRIVER", "DATABASE_DRIVER"},
	"database_path":        {"MEDTRACK_DATABASE_PATH", "DATABASE_PATH"},
	"database_dsn":         {"MEDTRACK_DATABASE_DSN", "DATABASE_URL"},
	"session_secret":       {"MEDTRACK_SESSION_SECRET", "SESSION_SECRET"},
	"gin_mode":             {"MEDTRACK_GIN_MODE", "GIN_MODE"},
	"upload_dir":           {"MEDTRACK_UPLOAD_DIR", "UPLOAD_DIR"},
	"upload_url_path":      {"MEDTRACK_UPLOAD_URL_PATH", "UPLOAD_URL_PATH"},
	"photo_store":          {"MEDTRACK_PHOTO_STORE", "PHOTO_STORE"},
	"minio.endpoint":       {"MEDTRACK_MINIO_ENDPOINT", "MINIO_ENDPOINT"},
	"minio.access_key":     {"MEDTRACK_MINIO_ACCESS_KEY", "MINIO_ACCESS_KEY"},
	"minio.secret_key":     {"MEDTRACK_MINIO_SECRET_KEY", "MINIO_SECRET_KEY"},
	"minio.bucket":         {"MEDTRACK_MINIO_BUCKET", "MINIO_BUCKET"},
	"minio.use_ssl":        {"MEDTRACK_MINIO_USE_SSL", "MINIO_USE_SSL"},
	"minio.public_url":     {"MEDTRACK_MINIO_PUBLIC_URL", "MINIO_PUBLIC_URL"},
	"super_root_user_name": {"MEDTRACK_SUPER_ROOT_USER_NAME", "SUPER_ROOT_USER_NAME"},
	"super_root_password":  {"MEDTRACK_SUPER_ROOT_PASSWORD", "SUPER_ROOT_PASSWORD"},
	"timezone":             {"MEDTRACK_TIMEZONE", "TZ"},
	"refill_threshold":     {"MEDTRACK_REFILL_THRESHOLD", "REFILL_THRESHOLD"},
	"reminder_spec":        {"MEDTRACK_REMINDER_SPEC", "REMINDER_SPEC"},
	"reminders_enabled":    {"MEDTRACK_REMINDERS_ENABLED", "REMINDERS_ENABLED"},
	"log_level":            {"MEDTRACK_LOG_LEVEL", "LOG_LEVEL"},
	"log_format":           {"MEDTRACK_LOG_FORMAT", "LOG_FORMAT"},
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("database_driver", "sqlite")
	v.SetDefault("database_path", "medtrack.db")
	v.SetDefault("session_secret", "medtrack-dev-secret")
	v.SetDefault("gin_mode", "release")
	v.SetDefault("upload_dir", "web/static/uploads")
	v.SetDefault("upload_url_path", "/static/uploads")
	v.SetDefault("photo_store", "local")
	v.SetDefault("minio.bucket", "medtrack-photos")
	v.SetDefault("timezone", "UTC")
	v.SetDefault("refill_threshold", 7)
	v.SetDefault("reminder_spec", "* * * * *")
	v.SetDefault("reminders_enabled", true)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
}

// Load 依次合并默认值、配置文件（MEDTRACK_CONFIG 或 ./medtrack.yaml）与环境变量。
func Load() (AppConfig, error) {
	v := viper.New()
	setDefaults(v)

	for key, envs := range envBindings {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return AppConfig{}, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	if err := readConfigFile(v); err != nil {
		return AppConfig{}, err
	}

	return fromViper(v)
}

func readConfigFile(v *viper.Viper) error {
	path := strings.TrimSpace(os.Getenv("MEDTRACK_CONFIG"))
	explicit := path != ""
	if !explicit {
		path = defaultConfigFile
	}

	if _, err := os.Stat(path); err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config file %s: %w", path, err)
	}

	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	return nil
}

func fromViper(v *viper.Viper) (AppConfig, error) {
	str := func(key string) string {
		return strings.TrimSpace(v.GetString(key))
	}

	cfg := AppConfig{
		ListenAddr:     str("listen_addr"),
		Port:           str("port"),
		DatabaseDriver: strings.ToLower(str("database_driver")),
		DatabasePath:   str("database_path"),
		DatabaseDSN:    str("database_dsn"),
		SessionSecret:  str("session_secret"),
		GinMode:        str("gin_mode"),
		UploadDir:      str("upload_dir"),
		UploadURLPath:  str("upload_url_path"),
		PhotoStore:     strings.ToLower(str("photo_store")),
		Minio: MinioConfig{
			Endpoint:  str("minio.endpoint"),
			AccessKey: str("minio.access_key"),
			SecretKey: str("minio.secret_key"),
			Bucket:    str("minio.bucket"),
			UseSSL:    v.GetBool("minio.use_ssl"),
			PublicURL: str("minio.public_url"),
		},
		SuperRootUserName: str("super_root_user_name"),
		SuperRootPassword: str("super_root_password"),
		Timezone:          str("timezone"),
		RefillThreshold:   v.GetFloat64("refill_threshold"),
		ReminderSpec:      str("reminder_spec"),
		RemindersEnabled:  v.GetBool("reminders_enabled"),
		LogLevel:          str("log_level"),
		LogFormat:         str("log_format"),
	}

	if cfg.Port == "" {
		cfg.Port = "8080"
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = fmt.Sprintf(":%s", cfg.Port)
	}

	switch cfg.DatabaseDriver {
	case "sqlite", "memory":
	case "postgres":
		if cfg.DatabaseDSN == "" {
			return cfg, errors.New("database_dsn is required for postgres")
		}
	default:
		return cfg, fmt.Errorf("unsupported database driver %q", cfg.DatabaseDriver)
	}

	switch cfg.PhotoStore {
	case "local":
	case "minio":
		if cfg.Minio.Endpoint == "" || cfg.Minio.Bucket == "" {
			return cfg, errors.New("minio endpoint and bucket are required for the minio photo store")
		}
	default:
		return cfg, fmt.Errorf("unsupported photo store %q", cfg.PhotoStore)
	}

	loc, err := loadLocation(cfg.Timezone)
	if err != nil {
		return cfg, err
	}
	cfg.Location = loc

	if cfg.RefillThreshold < 0 {
		return cfg, fmt.Errorf("refill_threshold must not be negative, got %v", cfg.RefillThreshold)
	}

	return cfg, nil
}

func loadLocation(name string) (*time.Location, error) {
	if name == "" || strings.EqualFold(name, "local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", name, err)
	}
	return loc, nil
}
