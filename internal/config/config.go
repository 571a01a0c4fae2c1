// Package config loads the settings of the server and the client commands.
// Values come from the defaults, then an optional YAML file, then
// CAMERATOGETHER_* environment variables.
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable, e.g.
// CAMERATOGETHER_SERVER_ADDR or CAMERATOGETHER_INVITE_SECRET.
const EnvPrefix = "cameratogether"

const (
	StorageFS    = "fs"
	StorageMinio = "minio"
)

var ErrInvalidConfig = errors.New("invalid config")

type ctxKey string

const configContextKey ctxKey = "cameratogether.config"

// WithContext stores cfg in ctx.
func WithContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configContextKey, cfg)
}

// FromContext returns the config stored by WithContext, or nil.
func FromContext(ctx context.Context) *Config {
	cfg, ok := ctx.Value(configContextKey).(*Config)
	if !ok {
		return nil
	}
	return cfg
}

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Storage  StorageConfig  `yaml:"storage"`
	Invite   InviteConfig   `yaml:"invite"`
	Worker   WorkerConfig   `yaml:"worker"`
	Session  SessionConfig  `yaml:"session"`
	Client   ClientConfig   `yaml:"client"`
	Collage  CollageConfig  `yaml:"collage"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout" split_words:"true"`
	MaxPhotoBytes   int64         `yaml:"maxPhotoBytes"   split_words:"true"`
	MaxPhotoPixels  int64         `yaml:"maxPhotoPixels"  split_words:"true"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// StorageConfig selects where photos and collages are kept.
type StorageConfig struct {
	Backend string      `yaml:"backend"`
	Dir     string      `yaml:"dir"`
	Minio   MinioConfig `yaml:"minio"`
}

type MinioConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"accessKey" split_words:"true"`
	SecretKey string `yaml:"secretKey" split_words:"true"`
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	UseSSL    bool   `yaml:"useSSL"    envconfig:"USE_SSL"`
}

// InviteConfig signs invitation tokens. A zero TTL lets tokens live as
// long as their group.
type InviteConfig struct {
	Secret string        `yaml:"secret"`
	TTL    time.Duration `yaml:"ttl"`
}

type WorkerConfig struct {
	Interval time.Duration `yaml:"interval"`
}

// SessionConfig holds the server-side countdown length.
type SessionConfig struct {
	Countdown time.Duration `yaml:"countdown"`
}

// ClientConfig drives the shoot command. A zero Timeout leaves requests
// unbounded.
type ClientConfig struct {
	BaseURL        string        `yaml:"baseURL"        envconfig:"BASE_URL"`
	PollInterval   time.Duration `yaml:"pollInterval"   split_words:"true"`
	Timeout        time.Duration `yaml:"timeout"`
	LocalCountdown time.Duration `yaml:"localCountdown" split_words:"true"`
}

type CollageConfig struct {
	Size      int    `yaml:"size"`
	Templates string `yaml:"templates"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ShutdownTimeout: 10 * time.Second,
			MaxPhotoBytes:   10 << 20,
			MaxPhotoPixels:  40_000_000,
		},
		Database: DatabaseConfig{Path: "./data/cameratogether.db"},
		Storage: StorageConfig{
			Backend: StorageFS,
			Dir:     "./data/blobs",
			Minio:   MinioConfig{Bucket: "cameratogether"},
		},
		Worker:  WorkerConfig{Interval: time.Second},
		Session: SessionConfig{Countdown: 10 * time.Second},
		Client: ClientConfig{
			BaseURL:        "http://localhost:8080/api",
			PollInterval:   3 * time.Second,
			LocalCountdown: 10 * time.Second,
		},
		Collage: CollageConfig{Size: 1080},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load reads path over the defaults, when path is set, and then applies the
// environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		buf, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		if err := yaml.Unmarshal(buf, cfg); err != nil {
			return nil, fmt.Errorf("error parsing config file: %w", err)
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("error processing environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail late.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case StorageFS:
		if c.Storage.Dir == "" {
			return fmt.Errorf("%w: storage.dir is required for the fs backend", ErrInvalidConfig)
		}
	case StorageMinio:
		if c.Storage.Minio.Endpoint == "" || c.Storage.Minio.Bucket == "" {
			return fmt.Errorf("%w: storage.minio endpoint and bucket are required", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown storage backend %q", ErrInvalidConfig, c.Storage.Backend)
	}
	if c.Server.MaxPhotoBytes <= 0 || c.Server.MaxPhotoPixels <= 0 {
		return fmt.Errorf("%w: server photo limits must be positive", ErrInvalidConfig)
	}
	if c.Worker.Interval <= 0 {
		return fmt.Errorf("%w: worker.interval must be positive", ErrInvalidConfig)
	}
	if c.Session.Countdown <= 0 {
		return fmt.Errorf("%w: session.countdown must be positive", ErrInvalidConfig)
	}
	if c.Collage.Size <= 0 {
		return fmt.Errorf("%w: collage.size must be positive", ErrInvalidConfig)
	}
	if c.Invite.TTL < 0 {
		return fmt.Errorf("%w: invite.ttl must not be negative", ErrInvalidConfig)
	}
	return nil
}
