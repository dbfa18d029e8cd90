package main

import (
	"fmt"
	"os"
	"time"

	"github.com/AmrMustafa282/skillify-analysis/internal/common/cache"
	"github.com/AmrMustafa282/skillify-analysis/internal/common/db"
	"github.com/AmrMustafa282/skillify-analysis/internal/common/storage"
	"github.com/AmrMustafa282/skillify-analysis/internal/eval/harness"
	"github.com/AmrMustafa282/skillify-analysis/internal/eval/sandbox"
	"github.com/AmrMustafa282/skillify-analysis/internal/eval/service"
	"github.com/AmrMustafa282/skillify-analysis/pkg/utils/logger"

	"gopkg.in/yaml.v3"
)

const (
	defaultHTTPAddr        = "0.0.0.0:8090"
	defaultReadTimeout     = 5 * time.Second
	defaultWriteTimeout    = 10 * time.Second
	defaultIdleTimeout     = 60 * time.Second
	defaultShutdownTimeout = 10 * time.Second
	defaultDrainTimeout    = 30 * time.Second
	defaultStartupTimeout  = 30 * time.Second
)

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	IdleTimeout  time.Duration `yaml:"idleTimeout"`
}

// AuthConfig holds operator authentication settings. An empty secret leaves
// auth unconfigured: the token endpoint is not registered and guarded routes
// reject requests.
type AuthConfig struct {
	JWTSecret string             `yaml:"jwtSecret"`
	JWTIssuer string             `yaml:"jwtIssuer"`
	TokenTTL  time.Duration      `yaml:"tokenTTL"`
	Operators []service.Operator `yaml:"operators"`
}

// RateLimitConfig holds fixed-window limits. IPMax and OperatorMax apply to
// mutating routes, TokenIPMax to the token endpoint.
type RateLimitConfig struct {
	Window      time.Duration `yaml:"window"`
	IPMax       int           `yaml:"ipMax"`
	OperatorMax int           `yaml:"operatorMax"`
	TokenIPMax  int           `yaml:"tokenIPMax"`
}

// EvalConfig holds evaluation settings.
type EvalConfig struct {
	WorkerPoolSize int                   `yaml:"workerPoolSize"`
	ItemTimeout    time.Duration         `yaml:"itemTimeout"`
	MaxCodeBytes   int                   `yaml:"maxCodeBytes"`
	ArchiveBucket  string                `yaml:"archiveBucket"`
	CacheTTL       time.Duration         `yaml:"cacheTTL"`
	EmptyCacheTTL  time.Duration         `yaml:"emptyCacheTTL"`
	Timeouts       service.TimeoutConfig `yaml:"timeouts"`
}

// AppConfig holds eval-service configuration.
type AppConfig struct {
	Server    ServerConfig            `yaml:"server"`
	Logger    logger.Config           `yaml:"logger"`
	Database  db.MySQLConfig          `yaml:"database"`
	Redis     cache.RedisConfig       `yaml:"redis"`
	MinIO     storage.MinIOConfig     `yaml:"minio"`
	Sandbox   sandbox.Config          `yaml:"sandbox"`
	Harness   map[string]harness.Spec `yaml:"harness"`
	Auth      AuthConfig              `yaml:"auth"`
	RateLimit RateLimitConfig         `yaml:"rateLimit"`
	Eval      EvalConfig              `yaml:"eval"`
}

func loadYAML(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file failed: %w", err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse config file failed: %w", err)
	}
	return nil
}

func loadAppConfig(path string) (*AppConfig, error) {
	var cfg AppConfig
	if err := loadYAML(path, &cfg); err != nil {
		return nil, err
	}
	if cfg.Database.DSN == "" {
		return nil, fmt.Errorf("database dsn is required")
	}
	if cfg.Redis.Addr == "" {
		return nil, fmt.Errorf("redis addr is required")
	}

	if cfg.Server.Addr == "" {
		cfg.Server.Addr = defaultHTTPAddr
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = defaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = defaultWriteTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = defaultIdleTimeout
	}

	if cfg.Eval.WorkerPoolSize == 0 {
		cfg.Eval.WorkerPoolSize = 4
	}
	if cfg.Eval.ItemTimeout == 0 {
		cfg.Eval.ItemTimeout = 5 * time.Minute
	}
	if cfg.Eval.MaxCodeBytes == 0 {
		cfg.Eval.MaxCodeBytes = 128 * 1024
	}
	if cfg.Eval.CacheTTL == 0 {
		cfg.Eval.CacheTTL = 30 * time.Minute
	}
	if cfg.Eval.EmptyCacheTTL == 0 {
		cfg.Eval.EmptyCacheTTL = 5 * time.Minute
	}
	if cfg.Eval.Timeouts.DB == 0 {
		cfg.Eval.Timeouts.DB = 3 * time.Second
	}
	if cfg.Eval.ArchiveBucket == "" {
		cfg.Eval.ArchiveBucket = cfg.MinIO.Bucket
	}

	if cfg.RateLimit.Window == 0 {
		cfg.RateLimit.Window = time.Minute
	}
	if cfg.RateLimit.IPMax == 0 {
		cfg.RateLimit.IPMax = 120
	}
	if cfg.RateLimit.OperatorMax == 0 {
		cfg.RateLimit.OperatorMax = 60
	}
	if cfg.RateLimit.TokenIPMax == 0 {
		cfg.RateLimit.TokenIPMax = 10
	}

	return &cfg, nil
}
