package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"filedrop/internal/config"
	"filedrop/internal/server"
	"filedrop/internal/storage"
)

func TestGetenvDefault(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		def      string
		envValue string
		want     string
	}{
		{name: "env var set", key: "FILEDROP_TEST_SET", def: "default", envValue: "custom", want: "custom"},
		{name: "env var empty", key: "FILEDROP_TEST_EMPTY", def: "default", envValue: "", want: "default"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.envValue)
			if got := getenvDefault(tt.key, tt.def); got != tt.want {
				t.Errorf("getenvDefault(%q, %q) = %q, want %q", tt.key, tt.def, got, tt.want)
			}
		})
	}

	t.Run("env var not set", func(t *testing.T) {
		_ = os.Unsetenv("FILEDROP_TEST_NOTSET")
		if got := getenvDefault("FILEDROP_TEST_NOTSET", "default"); got != "default" {
			t.Errorf("got %q, want default", got)
		}
	})
}

func TestOpenStoreDir(t *testing.T) {
	cfg := config.Default()
	cfg.DataDir = filepath.Join(t.TempDir(), "data")

	store, err := openStore(context.Background(), cfg)
	if err != nil {
		t.Fatalf("openStore: %v", err)
	}
	if _, ok := store.(*storage.Dir); !ok {
		t.Fatalf("store type = %T, want *storage.Dir", store)
	}
	if _, err := os.Stat(cfg.DataDir); err != nil {
		t.Fatalf("data dir not created: %v", err)
	}
}

func TestOpenStoreUnknownBackend(t *testing.T) {
	cfg := config.Default()
	cfg.Storage.Backend = "ftp"
	if _, err := openStore(context.Background(), cfg); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}

func TestServerConfigCopiesSettings(t *testing.T) {
	cfg := config.Default()
	cfg.Port = 8081
	cfg.Password = "hunter2"
	cfg.SessionTTL = 30 * time.Minute
	cfg.TrustProxy = true
	cfg.MaxConcurrentTransfers = 3

	got := serverConfig(cfg, server.BuildInfo{Version: "v1"})
	if got.Addr != ":8081" || got.Password != "hunter2" || got.SessionTTL != 30*time.Minute {
		t.Fatalf("unexpected server config: %+v", got)
	}
	if !got.TrustProxy || got.MaxConcurrentTransfers != 3 || got.Build.Version != "v1" {
		t.Fatalf("unexpected server config: %+v", got)
	}
	if got.MaxUploadBytes != cfg.MaxUploadBytes {
		t.Fatalf("MaxUploadBytes = %d, want %d", got.MaxUploadBytes, cfg.MaxUploadBytes)
	}
}
