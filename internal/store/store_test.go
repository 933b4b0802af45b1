package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/roadmap/internal/catalog"
)

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	for i := 0; i < 3; i++ {
		s, err := Open(path)
		if err != nil {
			t.Fatalf("Open() iteration %d failed: %v", i, err)
		}
		s.Close()
	}

	s, err := Open(path)
	if err != nil {
		t.Fatalf("final Open() failed: %v", err)
	}
	defer s.Close()

	tables := []string{
		"features", "feature_products", "feature_platforms",
		"feature_cloud_instances", "feature_release_rings",
		"feature_availabilities", "sync_checkpoint", "fetch_cache",
	}
	for _, table := range tables {
		var name string
		err := s.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?",
			table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %q not found after idempotent opens: %v", table, err)
		}
	}
}

func TestOpen_AppliesPragmas(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	checks := map[string]string{
		"journal_mode": "wal",
		"foreign_keys": "1",
		"busy_timeout": "5000",
	}
	for pragma, expected := range checks {
		if err := s.verifyPragma(pragma, expected); err != nil {
			t.Errorf("pragma check failed: %v", err)
		}
	}
}

func TestOpen_SetsSchemaVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	var version int
	if err := s.db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		t.Fatalf("query user_version: %v", err)
	}
	if version != currentSchemaVersion {
		t.Errorf("user_version = %d, want %d", version, currentSchemaVersion)
	}
}

func TestOpen_CheckpointSingletonExists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	cp, err := s.GetCheckpoint(context.Background())
	if err != nil {
		t.Fatalf("GetCheckpoint() on fresh store failed: %v", err)
	}
	if cp.Status != catalog.StatusIdle {
		t.Errorf("fresh checkpoint status = %q, want %q", cp.Status, catalog.StatusIdle)
	}
	if cp.Synced() {
		t.Error("fresh checkpoint reports synced")
	}

	var count int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM sync_checkpoint").Scan(&count); err != nil {
		t.Fatalf("count checkpoint rows: %v", err)
	}
	if count != 1 {
		t.Errorf("checkpoint rows = %d, want exactly 1", count)
	}
}

func TestEnsureDatabase_CopiesSeed(t *testing.T) {
	dir := t.TempDir()
	seedPath := filepath.Join(dir, "seed.db")
	dbPath := filepath.Join(dir, "state", "catalog.db")

	// Build a seed with one feature in it.
	seed, err := Open(seedPath)
	if err != nil {
		t.Fatalf("create seed: %v", err)
	}
	err = seed.UpsertFeature(context.Background(), catalog.Feature{
		ID:       42,
		Title:    "Seeded feature",
		Status:   "Launched",
		Created:  time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Modified: time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("seed upsert: %v", err)
	}
	seed.Close()

	s, err := EnsureDatabase(dbPath, seedPath)
	if err != nil {
		t.Fatalf("EnsureDatabase() failed: %v", err)
	}
	defer s.Close()

	n, err := s.CountFeatures(context.Background())
	if err != nil {
		t.Fatalf("CountFeatures() failed: %v", err)
	}
	if n != 1 {
		t.Errorf("features in bootstrapped store = %d, want 1", n)
	}
}

func TestEnsureDatabase_NoSeedStartsEmpty(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "state", "catalog.db")

	s, err := EnsureDatabase(dbPath, "")
	if err != nil {
		t.Fatalf("EnsureDatabase() failed: %v", err)
	}
	defer s.Close()

	n, err := s.CountFeatures(context.Background())
	if err != nil {
		t.Fatalf("CountFeatures() failed: %v", err)
	}
	if n != 0 {
		t.Errorf("features in empty store = %d, want 0", n)
	}
}

func TestEnsureDatabase_ExistingStoreIgnoresSeed(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "catalog.db")

	existing, err := Open(dbPath)
	if err != nil {
		t.Fatalf("create existing store: %v", err)
	}
	existing.Close()

	// Seed path that doesn't even exist must not matter.
	s, err := EnsureDatabase(dbPath, filepath.Join(dir, "missing-seed.db"))
	if err != nil {
		t.Fatalf("EnsureDatabase() failed: %v", err)
	}
	s.Close()
}
