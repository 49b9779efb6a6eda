package main

import (
	"path/filepath"
	"testing"
	"time"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := OpenDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestDBSettings(t *testing.T) {
	db := openTestDB(t)

	if got := db.GetSetting("missing"); got != "" {
		t.Errorf("expected empty setting, got %q", got)
	}
	if err := db.SetSetting("motd", "hello"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := db.SetSetting("motd", "world"); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	if got := db.GetSetting("motd"); got != "world" {
		t.Errorf("expected world, got %q", got)
	}
}

func TestDBTopScores(t *testing.T) {
	db := openTestDB(t)

	runs := []struct {
		name  string
		score float64
	}{
		{"ann", 300},
		{"bob", 900},
		{"cid", 300},
	}
	for _, r := range runs {
		if err := db.RecordScore(r.name, "Basic", r.score, 3); err != nil {
			t.Fatalf("record %s: %v", r.name, err)
		}
	}

	rows, err := db.TopScores(2)
	if err != nil {
		t.Fatalf("top scores: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].Name != "bob" || rows[1].Name != "ann" {
		t.Errorf("expected bob then ann, got %s then %s", rows[0].Name, rows[1].Name)
	}
	if rows[0].Label != "Basic" || rows[0].Level != 3 {
		t.Errorf("unexpected row %+v", rows[0])
	}
	if time.Since(rows[0].CreatedAt) > time.Hour {
		t.Errorf("expected a fresh timestamp, got %v", rows[0].CreatedAt)
	}
}

func TestDBReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := OpenDB(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := db.RecordScore("ann", "Basic", 42, 1); err != nil {
		t.Fatal(err)
	}
	db.Close()

	db, err = OpenDB(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer db.Close()
	rows, err := db.TopScores(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || rows[0].Score != 42 {
		t.Errorf("expected the stored run after reopening, got %v", rows)
	}
}
