package store_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/edumarques81/stellar-cloudplayer/internal/infra/store"
)

type entry struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

func openTestDB(t *testing.T) *store.DB {
	t.Helper()
	db := store.NewDB(filepath.Join(t.TempDir(), "nested", "state.db"))
	if err := db.Open(); err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestNewDBDefaultPath(t *testing.T) {
	db := store.NewDB("")
	if db.Path() != store.DefaultDBPath {
		t.Errorf("Expected default path %q, got %q", store.DefaultDBPath, db.Path())
	}
}

func TestDBOpenCreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "state.db")
	db := store.NewDB(path)

	if err := db.Open(); err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("Database file should exist after Open()")
	}

	version, err := db.SchemaVersion()
	if err != nil {
		t.Fatalf("SchemaVersion: %v", err)
	}
	if version != store.CurrentSchemaVersion {
		t.Errorf("Expected schema version %q, got %q", store.CurrentSchemaVersion, version)
	}

	if err := db.Close(); err != nil {
		t.Errorf("Failed to close database: %v", err)
	}
}

func TestGetMissingKey(t *testing.T) {
	db := openTestDB(t)

	var got []entry
	found, err := db.Get("favorites", &got)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if found {
		t.Error("Expected missing key to report not found")
	}
}

func TestSetGetReplace(t *testing.T) {
	db := openTestDB(t)

	first := []entry{{ID: "1", Title: "Dynamite"}}
	if err := db.Set("favorites", first); err != nil {
		t.Fatalf("Set: %v", err)
	}

	second := []entry{{ID: "1", Title: "Dynamite"}, {ID: "2", Title: "Butter"}}
	if err := db.Set("favorites", second); err != nil {
		t.Fatalf("Set: %v", err)
	}

	var got []entry
	found, err := db.Get("favorites", &got)
	if err != nil || !found {
		t.Fatalf("Get: found=%v err=%v", found, err)
	}
	if len(got) != 2 || got[1].Title != "Butter" {
		t.Errorf("Unexpected value %+v", got)
	}
}

func TestDelete(t *testing.T) {
	db := openTestDB(t)

	for _, key := range []string{"user", "favorites", "downloads", "other"} {
		if err := db.Set(key, map[string]string{"k": key}); err != nil {
			t.Fatalf("Set(%s): %v", key, err)
		}
	}

	if err := db.Delete("user", "favorites", "downloads", "never-set"); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	keys, err := db.Keys()
	if err != nil {
		t.Fatalf("Keys: %v", err)
	}
	if len(keys) != 1 || keys[0] != "other" {
		t.Errorf("Expected only 'other' to remain, got %v", keys)
	}
}

func TestPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")

	db := store.NewDB(path)
	if err := db.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := db.Set("user", map[string]string{"username": "jimin"}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	db.Close()

	db = store.NewDB(path)
	if err := db.Open(); err != nil {
		t.Fatalf("Reopen: %v", err)
	}
	defer db.Close()

	var user map[string]string
	found, err := db.Get("user", &user)
	if err != nil || !found {
		t.Fatalf("Get after reopen: found=%v err=%v", found, err)
	}
	if user["username"] != "jimin" {
		t.Errorf("Expected username jimin, got %v", user)
	}
}

func TestUseBeforeOpen(t *testing.T) {
	db := store.NewDB(filepath.Join(t.TempDir(), "state.db"))

	var v any
	if _, err := db.Get("x", &v); !errors.Is(err, store.ErrNotOpen) {
		t.Errorf("Get before Open: expected ErrNotOpen, got %v", err)
	}
	if err := db.Set("x", 1); !errors.Is(err, store.ErrNotOpen) {
		t.Errorf("Set before Open: expected ErrNotOpen, got %v", err)
	}
	if err := db.Delete("x"); !errors.Is(err, store.ErrNotOpen) {
		t.Errorf("Delete before Open: expected ErrNotOpen, got %v", err)
	}
}

func TestGetDecodeError(t *testing.T) {
	db := openTestDB(t)

	if err := db.Set("favorites", "not a list"); err != nil {
		t.Fatalf("Set: %v", err)
	}

	var got []entry
	if _, err := db.Get("favorites", &got); err == nil {
		t.Error("Expected decode error for mismatched type")
	}
}
