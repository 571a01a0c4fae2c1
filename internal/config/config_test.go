package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Addr != ":8080" || cfg.Storage.Backend != StorageFS || cfg.Session.Countdown != 10*time.Second {
		t.Errorf("unexpected defaults %+v", cfg)
	}
}

func TestLoad_FileThenEnv(t *testing.T) {
	yamlContent := `
server:
  addr: ":9090"
  shutdownTimeout: 3s
  maxPhotoPixels: 12000000
database:
  path: /tmp/ct.db
storage:
  backend: minio
  minio:
    endpoint: localhost:9000
    bucket: photos
invite:
  secret: from-file
  ttl: 24h
worker:
  interval: 500ms
`
	path := filepath.Join(t.TempDir(), "cameratogether.yaml")
	if err := os.WriteFile(path, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	t.Setenv("CAMERATOGETHER_INVITE_SECRET", "from-env")
	t.Setenv("CAMERATOGETHER_STORAGE_MINIO_ACCESS_KEY", "minio")
	t.Setenv("CAMERATOGETHER_CLIENT_POLL_INTERVAL", "1s")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Addr != ":9090" || cfg.Server.ShutdownTimeout != 3*time.Second {
		t.Errorf("server: got %+v", cfg.Server)
	}
	if cfg.Server.MaxPhotoPixels != 12_000_000 || cfg.Server.MaxPhotoBytes != 10<<20 {
		t.Errorf("photo limits: got %d bytes, %d pixels", cfg.Server.MaxPhotoBytes, cfg.Server.MaxPhotoPixels)
	}
	if cfg.Database.Path != "/tmp/ct.db" {
		t.Errorf("database path: got %q", cfg.Database.Path)
	}
	if cfg.Storage.Minio.Endpoint != "localhost:9000" || cfg.Storage.Minio.Bucket != "photos" {
		t.Errorf("minio: got %+v", cfg.Storage.Minio)
	}
	if cfg.Invite.Secret != "from-env" {
		t.Errorf("env must override file, got secret %q", cfg.Invite.Secret)
	}
	if cfg.Invite.TTL != 24*time.Hour {
		t.Errorf("ttl: got %v", cfg.Invite.TTL)
	}
	if cfg.Storage.Minio.AccessKey != "minio" {
		t.Errorf("access key: got %q", cfg.Storage.Minio.AccessKey)
	}
	if cfg.Client.PollInterval != time.Second {
		t.Errorf("poll interval: got %v", cfg.Client.PollInterval)
	}
	if cfg.Worker.Interval != 500*time.Millisecond {
		t.Errorf("worker interval: got %v", cfg.Worker.Interval)
	}
	if cfg.Collage.Size != 1080 {
		t.Errorf("untouched defaults must survive, got collage size %d", cfg.Collage.Size)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown backend", "storage:\n  backend: s4\n"},
		{"minio without endpoint", "storage:\n  backend: minio\n"},
		{"zero interval", "worker:\n  interval: 0s\n"},
		{"negative ttl", "invite:\n  ttl: -1h\n"},
		{"zero pixel limit", "server:\n  maxPhotoPixels: 0\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "c.yaml")
			if err := os.WriteFile(path, []byte(tt.yaml), 0644); err != nil {
				t.Fatalf("failed to write config file: %v", err)
			}
			if _, err := Load(path); !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}

func TestContext(t *testing.T) {
	if FromContext(context.Background()) != nil {
		t.Fatal("expected nil config in an empty context")
	}
	cfg := Default()
	if got := FromContext(WithContext(context.Background(), cfg)); got != cfg {
		t.Errorf("expected the stored config, got %p", got)
	}
}
