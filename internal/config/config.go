package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	EnvPrefix     = "BILLSYNC"
	EnvConfigFile = "BILLSYNC_CONFIG"

	DefaultAPIURL = "https://bigmodel.cn/api/finance/expenseBill/expenseBillList"
)

// Config is the server configuration. Values come from defaults, an optional
// YAML file and BILLSYNC_* environment variables, in increasing priority.
type Config struct {
	Port            string        `mapstructure:"port"`
	DataDir         string        `mapstructure:"data_dir"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	APIKey          string        `mapstructure:"api_key"`
	TokenKey        string        `mapstructure:"token_key"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`

	Remote   RemoteConfig   `mapstructure:"remote"`
	AutoSync AutoSyncConfig `mapstructure:"autosync"`
	History  HistoryConfig  `mapstructure:"history"`
	Log      LogConfig      `mapstructure:"log"`
}

type RemoteConfig struct {
	URL            string        `mapstructure:"url"`
	PageSize       int           `mapstructure:"page_size"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	MaxAttempts    int           `mapstructure:"max_attempts"`
	RetryDelay     time.Duration `mapstructure:"retry_delay"`
	MinPageDelay   time.Duration `mapstructure:"min_page_delay"`
	MaxPageDelay   time.Duration `mapstructure:"max_page_delay"`
}

type AutoSyncConfig struct {
	CheckInterval time.Duration `mapstructure:"check_interval"`
}

type HistoryConfig struct {
	RetentionDays   int           `mapstructure:"retention_days"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

type LogConfig struct {
	Level         string `mapstructure:"level"`
	Format        string `mapstructure:"format"`
	Output        string `mapstructure:"output"`
	FilePath      string `mapstructure:"file_path"`
	FileMaxSizeMB int    `mapstructure:"file_max_size_mb"`
	FileMaxBackup int    `mapstructure:"file_max_backups"`
	FileMaxAgeDay int    `mapstructure:"file_max_age_days"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("data_dir", "./data")
	v.SetDefault("shutdown_timeout", 30*time.Second)
	v.SetDefault("api_key", "")
	v.SetDefault("token_key", "")
	v.SetDefault("cors_origins", []string{"*"})

	v.SetDefault("remote.url", DefaultAPIURL)
	v.SetDefault("remote.page_size", 100)
	v.SetDefault("remote.request_timeout", 10*time.Second)
	v.SetDefault("remote.max_attempts", 3)
	v.SetDefault("remote.retry_delay", time.Second)
	v.SetDefault("remote.min_page_delay", 500*time.Millisecond)
	v.SetDefault("remote.max_page_delay", 2000*time.Millisecond)

	v.SetDefault("autosync.check_interval", time.Second)

	v.SetDefault("history.retention_days", 30)
	v.SetDefault("history.cleanup_interval", 24*time.Hour)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output", "stdout")
	v.SetDefault("log.file_path", "./logs/billsync.log")
	v.SetDefault("log.file_max_size_mb", 100)
	v.SetDefault("log.file_max_backups", 7)
	v.SetDefault("log.file_max_age_days", 7)
}

// Load reads configuration. When path is empty, BILLSYNC_CONFIG is consulted;
// a missing file is only an error when a path was given explicitly.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		path = v.GetString("config")
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.Port == "" {
		errs = append(errs, errors.New("port must not be empty"))
	}
	if c.DataDir == "" {
		errs = append(errs, errors.New("data_dir must not be empty"))
	}
	if c.Remote.URL == "" {
		errs = append(errs, errors.New("remote.url must not be empty"))
	}
	if c.Remote.PageSize <= 0 {
		errs = append(errs, fmt.Errorf("remote.page_size must be positive, got %d", c.Remote.PageSize))
	}
	if c.Remote.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("remote.max_attempts must be at least 1, got %d", c.Remote.MaxAttempts))
	}
	if c.Remote.RequestTimeout <= 0 {
		errs = append(errs, errors.New("remote.request_timeout must be positive"))
	}
	if c.Remote.MinPageDelay < 0 || c.Remote.MaxPageDelay < c.Remote.MinPageDelay {
		errs = append(errs, fmt.Errorf("remote page delay range [%s, %s] is invalid", c.Remote.MinPageDelay, c.Remote.MaxPageDelay))
	}
	if c.AutoSync.CheckInterval <= 0 {
		errs = append(errs, errors.New("autosync.check_interval must be positive"))
	}
	if c.History.RetentionDays < 0 {
		errs = append(errs, errors.New("history.retention_days must not be negative"))
	}
	return errors.Join(errs...)
}
