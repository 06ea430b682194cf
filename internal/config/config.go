package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/dgallion1/pmdaparse/internal/pipeline"
)

// EnvPrefix prefixes every environment override (PMDAPARSE_WORKER_COUNT).
const EnvPrefix = "PMDAPARSE"

type Config struct {
	Port string `mapstructure:"port"`

	// Auth
	APIKey string `mapstructure:"api_key"`

	// Record store
	DBPath string `mapstructure:"db_path"`

	// Worker pool
	WorkerCount  int `mapstructure:"worker_count"`
	MaxQueueSize int `mapstructure:"max_queue_size"`

	// Upload limits
	MaxUploadBytes int64 `mapstructure:"max_upload_bytes"`

	// Job state
	JobTTL time.Duration `mapstructure:"job_ttl"`

	// Discovery
	Include []string `mapstructure:"include"`
	Ignore  []string `mapstructure:"ignore"`

	// Engine
	FallbackScan bool `mapstructure:"fallback_scan"`
	MaxDepth     int  `mapstructure:"max_depth"`

	// Result cache entries for single uploads
	CacheSize int `mapstructure:"cache_size"`

	LogLevel string `mapstructure:"log_level"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Port:           "8090",
		DBPath:         "pmdaparse.db",
		WorkerCount:    4,
		MaxQueueSize:   100,
		MaxUploadBytes: 52428800, // 50MB
		JobTTL:         time.Hour,
		Include:        pipeline.DefaultInclude,
		FallbackScan:   true,
		MaxDepth:       32,
		CacheSize:      1000,
		LogLevel:       "info",
	}
}

// Load reads defaults, then the config file, then PMDAPARSE_* environment
// variables. An empty path searches for pmdaparse.yaml in the working
// directory; a missing file is not an error.
func Load(path string) (Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("pmdaparse")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	d := Default()
	v.SetDefault("port", d.Port)
	v.SetDefault("api_key", d.APIKey)
	v.SetDefault("db_path", d.DBPath)
	v.SetDefault("worker_count", d.WorkerCount)
	v.SetDefault("max_queue_size", d.MaxQueueSize)
	v.SetDefault("max_upload_bytes", d.MaxUploadBytes)
	v.SetDefault("job_ttl", d.JobTTL)
	v.SetDefault("include", d.Include)
	v.SetDefault("ignore", d.Ignore)
	v.SetDefault("fallback_scan", d.FallbackScan)
	v.SetDefault("max_depth", d.MaxDepth)
	v.SetDefault("cache_size", d.CacheSize)
	v.SetDefault("log_level", d.LogLevel)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}

// Validate checks the settings every command needs.
func (c Config) Validate() error {
	if c.WorkerCount <= 0 {
		return fmt.Errorf("worker_count must be positive, got %d", c.WorkerCount)
	}
	if c.MaxQueueSize <= 0 {
		return fmt.Errorf("max_queue_size must be positive, got %d", c.MaxQueueSize)
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("max_upload_bytes must be positive, got %d", c.MaxUploadBytes)
	}
	if c.MaxDepth <= 0 {
		return fmt.Errorf("max_depth must be positive, got %d", c.MaxDepth)
	}
	if err := pipeline.ValidatePatterns(c.Include); err != nil {
		return fmt.Errorf("include: %w", err)
	}
	if err := pipeline.ValidatePatterns(c.Ignore); err != nil {
		return fmt.Errorf("ignore: %w", err)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// ValidateServe additionally requires the API key.
func (c Config) ValidateServe() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.APIKey == "" {
		return fmt.Errorf("api_key is required (set %s_API_KEY)", EnvPrefix)
	}
	return nil
}

// Level parses LogLevel.
func (c Config) Level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("log_level %q: %w", c.LogLevel, err)
	}
	return l, nil
}
