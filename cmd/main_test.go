package main

import (
	"testing"

	"github.com/complianceops/escalation-engine/pkg/config"
)

func TestSetupLogger_DebugMode(t *testing.T) {
	logger := setupLogger(true)
	if logger == nil {
		t.Fatalf("expected non-nil logger for debug mode")
	}
	// best-effort flush
	_ = logger.Sync()
}

func TestSetupLogger_ProductionMode(t *testing.T) {
	logger := setupLogger(false)
	if logger == nil {
		t.Fatalf("expected non-nil logger for production mode")
	}
	_ = logger.Sync()
}

func TestBuildStoresMemoryDefault(t *testing.T) {
	cfg := config.Defaults()

	stores, trail, cleanup, err := buildStores(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer cleanup()

	if stores.chains == nil || stores.instances == nil || stores.events == nil || stores.assignees == nil {
		t.Fatal("expected all stores to be initialized")
	}
	if trail == nil {
		t.Fatal("expected a trail to be initialized")
	}
}

func TestBuildStoresSQLite(t *testing.T) {
	cfg := config.Defaults()
	cfg.Storage.Driver = "sqlite"
	cfg.Storage.Path = t.TempDir() + "/escalation.db"

	stores, trail, cleanup, err := buildStores(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer cleanup()

	if stores.chains == nil || trail == nil {
		t.Fatal("expected sqlite stores and trail to be initialized")
	}
}
