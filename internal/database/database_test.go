package database

import (
	"os"
	"path/filepath"
	"testing"
)

func TestOpen_CreatesFileAndDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "pivoice.db")
	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer db.Close()

	if db.Path() != path {
		t.Errorf("Path: got %s, want %s", db.Path(), path)
	}
	if err := db.Migrate(); err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("database file not created: %v", err)
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "pivoice.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer db.Close()

	for i := 0; i < 2; i++ {
		if err := db.Migrate(); err != nil {
			t.Fatalf("Migrate #%d failed: %v", i+1, err)
		}
	}

	var name string
	err = db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name='saved_clips'").Scan(&name)
	if err != nil {
		t.Fatalf("saved_clips table missing: %v", err)
	}
}

func TestOpen_EmptyPath(t *testing.T) {
	if _, err := Open(""); err == nil {
		t.Fatal("expected error for empty path")
	}
}
