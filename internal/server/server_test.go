package server

import (
	"testing"
	"time"

	"github.com/mohammad-safakhou/converse/config"
	"github.com/mohammad-safakhou/converse/internal/session/inmemory"
)

func TestBuildSessionStoreDefaultsToMemory(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{Storage: config.StorageConfig{SessionBackend: "memory"}}
	store, err := buildSessionStore(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := store.(*inmemory.Store); !ok {
		t.Fatalf("store = %T, want in-memory", store)
	}
}

func TestBuildSessionStoreRedisUnreachable(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{Storage: config.StorageConfig{
		SessionBackend: "redis",
		SessionTTL:     time.Hour,
		Redis: config.RedisConfig{
			Host:    "127.0.0.1",
			Port:    "1",
			Timeout: 100 * time.Millisecond,
		},
	}}
	if _, err := buildSessionStore(cfg); err == nil {
		t.Fatal("expected connection error from startup ping")
	}
}
