package history

import (
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "history.db"), 0)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStore_OpenInitializesSchemaAndSaveLoad(t *testing.T) {
	store := openTestStore(t)

	base := time.Date(2026, 2, 13, 10, 0, 0, 0, time.UTC)
	first, err := store.SaveRun("project-a", Run{
		StartedAt:     base,
		Duration:      1500 * time.Millisecond,
		Changed:       true,
		Fingerprint:   "abc",
		Rules:         3,
		SourceFiles:   4,
		Targets:       2,
		Sources:       4,
		SourceFolders: 1,
	})
	if err != nil {
		t.Fatalf("save first run: %v", err)
	}
	if first.ID == "" {
		t.Fatal("expected generated run id")
	}
	if first.Status != StatusOK || first.SchemaVersion != SchemaVersion {
		t.Fatalf("expected defaults to be filled, got %+v", first)
	}

	second, err := store.SaveRun("project-a", Run{
		StartedAt:    base.Add(2 * time.Hour),
		Status:       StatusFailed,
		ErrorCode:    "QUERY_EXECUTION",
		ErrorMessage: "exit status 7",
	})
	if err != nil {
		t.Fatalf("save second run: %v", err)
	}

	got, err := store.LoadRuns("project-a", base.Add(time.Hour), 0)
	if err != nil {
		t.Fatalf("load runs: %v", err)
	}
	if len(got) != 1 || got[0].ID != second.ID {
		t.Fatalf("expected only the second run after since filter, got %+v", got)
	}
	if got[0].Status != StatusFailed || got[0].ErrorCode != "QUERY_EXECUTION" {
		t.Fatalf("expected failure details to roundtrip, got %+v", got[0])
	}

	all, err := store.LoadRuns("project-a", time.Time{}, 0)
	if err != nil {
		t.Fatalf("load all runs: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(all))
	}
	if all[0].ID != first.ID || !all[0].StartedAt.Equal(base) || all[0].Duration != 1500*time.Millisecond ||
		!all[0].Changed || all[0].Fingerprint != "abc" || all[0].Rules != 3 || all[0].SourceFolders != 1 {
		t.Fatalf("first run did not roundtrip:\n got %+v\nwant %+v", all[0], first)
	}
}

func TestStore_SaveRunUpsertsByID(t *testing.T) {
	store := openTestStore(t)

	run, err := store.SaveRun("p", Run{ID: "fixed", Rules: 1})
	if err != nil {
		t.Fatal(err)
	}
	run.Rules = 5
	if _, err := store.SaveRun("p", run); err != nil {
		t.Fatal(err)
	}

	runs, err := store.LoadRuns("p", time.Time{}, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 || runs[0].Rules != 5 {
		t.Fatalf("expected a single upserted run, got %+v", runs)
	}
}

func TestStore_LoadRunsLimitKeepsMostRecent(t *testing.T) {
	store := openTestStore(t)

	base := time.Date(2026, 2, 13, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		// Sub-second offsets check that text ordering matches time ordering.
		started := base.Add(time.Duration(i) * 500 * time.Millisecond)
		if _, err := store.SaveRun("p", Run{StartedAt: started, Rules: i}); err != nil {
			t.Fatal(err)
		}
	}

	runs, err := store.LoadRuns("p", time.Time{}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 || runs[0].Rules != 3 || runs[1].Rules != 4 {
		t.Fatalf("expected the two most recent runs oldest first, got %+v", runs)
	}

	latest, ok, err := store.LatestRun("p")
	if err != nil || !ok {
		t.Fatalf("latest run: ok=%v err=%v", ok, err)
	}
	if latest.Rules != 4 {
		t.Fatalf("expected latest run with rules=4, got %+v", latest)
	}
}

func TestStore_LatestRunEmpty(t *testing.T) {
	store := openTestStore(t)
	_, ok, err := store.LatestRun("nothing")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected no run for empty project")
	}
}

func TestStore_ProjectIsolation(t *testing.T) {
	store := openTestStore(t)

	if _, err := store.SaveRun("project-a", Run{Rules: 1}); err != nil {
		t.Fatal(err)
	}
	if _, err := store.SaveRun("project-b", Run{Rules: 2}); err != nil {
		t.Fatal(err)
	}
	if _, err := store.SaveRun("  ", Run{Rules: 3}); err != nil {
		t.Fatal(err)
	}

	for key, want := range map[string]int{"project-a": 1, "project-b": 2, "default": 3} {
		rows, err := store.LoadRuns(key, time.Time{}, 0)
		if err != nil {
			t.Fatal(err)
		}
		if len(rows) != 1 || rows[0].Rules != want {
			t.Fatalf("unexpected %s rows: %+v", key, rows)
		}
	}
}

func TestStore_RejectsUnknownSchemaVersion(t *testing.T) {
	store := openTestStore(t)
	if _, err := store.SaveRun("p", Run{SchemaVersion: SchemaVersion + 1}); err == nil {
		t.Fatal("expected schema version error")
	}
}

func TestStore_OpenRejectsDirectoryPath(t *testing.T) {
	_, err := Open(t.TempDir(), 0)
	if err == nil {
		t.Fatal("expected open error for directory path")
	}
	if !strings.Contains(err.Error(), "is a directory") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestStore_OpenRejectsEmptyPath(t *testing.T) {
	if _, err := Open("  ", 0); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestStore_OpenCorruptDBPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	if err := os.WriteFile(path, []byte("this is not sqlite"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := Open(path, 0)
	if err == nil {
		t.Fatal("expected sqlite open error")
	}
	lower := strings.ToLower(err.Error())
	if !strings.Contains(lower, "not a database") && !strings.Contains(lower, "schema") {
		t.Fatalf("expected schema/open error, got: %v", err)
	}
}

func TestEnsureSchema_DetectsNewerVersionDrift(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	store, err := Open(path, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	_, err = store.db.Exec(`INSERT OR REPLACE INTO schema_migrations(version) VALUES (?)`, SchemaVersion+1)
	if err != nil {
		t.Fatal(err)
	}

	db, err := sql.Open(driverName, "file:"+path)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	err = EnsureSchema(db)
	if err == nil {
		t.Fatal("expected drift error")
	}
	if !strings.Contains(err.Error(), "newer than supported") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestIsCorruptError(t *testing.T) {
	if !IsCorruptError(errors.New("database disk image is malformed")) {
		t.Fatal("expected malformed sqlite message to be treated as corrupt")
	}
	if IsCorruptError(nil) {
		t.Fatal("nil is not corrupt")
	}
}
