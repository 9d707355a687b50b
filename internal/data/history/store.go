package history

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const (
	driverName         = "sqlite"
	maxAttempts        = 5
	defaultBusyTimeout = 2 * time.Second
	defaultProjectKey  = "default"
)

// timeLayout is fixed-width so stored timestamps order correctly as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

type Store struct {
	path string
	db   *sql.DB
	mu   sync.Mutex
}

// Open creates or opens the sync history database at path. A zero
// busyTimeout uses two seconds.
func Open(path string, busyTimeout time.Duration) (*Store, error) {
	cleanPath := strings.TrimSpace(path)
	if cleanPath == "" {
		return nil, fmt.Errorf("history path must not be empty")
	}
	if info, err := os.Stat(cleanPath); err == nil && info.IsDir() {
		return nil, fmt.Errorf("history path %q is a directory, expected file", cleanPath)
	}

	dir := filepath.Dir(cleanPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create history directory %q: %w", dir, err)
		}
	}
	if busyTimeout <= 0 {
		busyTimeout = defaultBusyTimeout
	}

	// busy_timeout + WAL reduce lock conflicts while watch mode writes runs.
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)",
		cleanPath, busyTimeout.Milliseconds())
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite history %q: %w", cleanPath, err)
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite history %q: %w", cleanPath, err)
	}
	if err := EnsureSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize sqlite schema %q: %w", cleanPath, err)
	}

	return &Store{path: cleanPath, db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func normalizeProjectKey(projectKey string) string {
	projectKey = strings.TrimSpace(projectKey)
	if projectKey == "" {
		return defaultProjectKey
	}
	return projectKey
}

// SaveRun stores run under projectKey and returns it with defaults filled in.
// Saving a run with an existing ID replaces it.
func (s *Store) SaveRun(projectKey string, run Run) (Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	run.ProjectKey = normalizeProjectKey(projectKey)
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	if run.SchemaVersion == 0 {
		run.SchemaVersion = SchemaVersion
	}
	if run.SchemaVersion != SchemaVersion {
		return Run{}, fmt.Errorf("unsupported run schema version %d", run.SchemaVersion)
	}
	if run.Status == "" {
		run.Status = StatusOK
	}

	query := `
INSERT INTO sync_runs (
  id, project_key, schema_version, started_at_utc, duration_ms, status, changed, fingerprint,
  rule_count, source_file_count, generated_file_count, target_count, source_count,
  content_entry_count, source_folder_count, generated_folder_count, error_code, error_message
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
  project_key=excluded.project_key,
  schema_version=excluded.schema_version,
  started_at_utc=excluded.started_at_utc,
  duration_ms=excluded.duration_ms,
  status=excluded.status,
  changed=excluded.changed,
  fingerprint=excluded.fingerprint,
  rule_count=excluded.rule_count,
  source_file_count=excluded.source_file_count,
  generated_file_count=excluded.generated_file_count,
  target_count=excluded.target_count,
  source_count=excluded.source_count,
  content_entry_count=excluded.content_entry_count,
  source_folder_count=excluded.source_folder_count,
  generated_folder_count=excluded.generated_folder_count,
  error_code=excluded.error_code,
  error_message=excluded.error_message
`
	err := s.withRetry("save run", func() error {
		_, err := s.db.Exec(
			query,
			run.ID,
			run.ProjectKey,
			run.SchemaVersion,
			run.StartedAt.UTC().Format(timeLayout),
			run.Duration.Milliseconds(),
			string(run.Status),
			run.Changed,
			run.Fingerprint,
			run.Rules,
			run.SourceFiles,
			run.GeneratedFiles,
			run.Targets,
			run.Sources,
			run.ContentEntries,
			run.SourceFolders,
			run.GeneratedFolders,
			run.ErrorCode,
			run.ErrorMessage,
		)
		return err
	})
	if err != nil {
		return Run{}, err
	}
	run.StartedAt = run.StartedAt.UTC()
	run.Duration = run.Duration.Truncate(time.Millisecond)
	return run, nil
}

const selectRuns = `
SELECT
  id, project_key, schema_version, started_at_utc, duration_ms, status, changed, fingerprint,
  rule_count, source_file_count, generated_file_count, target_count, source_count,
  content_entry_count, source_folder_count, generated_folder_count, error_code, error_message
FROM sync_runs
`

// LoadRuns returns runs of projectKey started at or after since, oldest
// first. A positive limit keeps only the most recent runs.
func (s *Store) LoadRuns(projectKey string, since time.Time, limit int) ([]Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	base := selectRuns + " WHERE project_key = ?"
	args := []any{normalizeProjectKey(projectKey)}
	if !since.IsZero() {
		base += " AND started_at_utc >= ?"
		args = append(args, since.UTC().Format(timeLayout))
	}
	base += " ORDER BY started_at_utc DESC, id DESC"
	if limit > 0 {
		base += " LIMIT ?"
		args = append(args, limit)
	}

	runs, err := s.query("load runs", base, args...)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(runs)-1; i < j; i, j = i+1, j-1 {
		runs[i], runs[j] = runs[j], runs[i]
	}
	return runs, nil
}

// LatestRun returns the most recent run of projectKey. ok is false when the
// project has no runs.
func (s *Store) LatestRun(projectKey string) (run Run, ok bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	runs, err := s.query("latest run",
		selectRuns+" WHERE project_key = ? ORDER BY started_at_utc DESC, id DESC LIMIT 1",
		normalizeProjectKey(projectKey),
	)
	if err != nil || len(runs) == 0 {
		return Run{}, false, err
	}
	return runs[0], true, nil
}

func (s *Store) query(op, q string, args ...any) ([]Run, error) {
	var rows *sql.Rows
	err := s.withRetry(op, func() error {
		var qErr error
		rows, qErr = s.db.Query(q, args...)
		return qErr
	})
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := make([]Run, 0)
	for rows.Next() {
		var (
			run        Run
			startedRaw string
			durationMS int64
			status     string
		)
		if err := rows.Scan(
			&run.ID,
			&run.ProjectKey,
			&run.SchemaVersion,
			&startedRaw,
			&durationMS,
			&status,
			&run.Changed,
			&run.Fingerprint,
			&run.Rules,
			&run.SourceFiles,
			&run.GeneratedFiles,
			&run.Targets,
			&run.Sources,
			&run.ContentEntries,
			&run.SourceFolders,
			&run.GeneratedFolders,
			&run.ErrorCode,
			&run.ErrorMessage,
		); err != nil {
			return nil, fmt.Errorf("scan run row: %w", err)
		}

		started, err := time.Parse(time.RFC3339Nano, startedRaw)
		if err != nil {
			return nil, fmt.Errorf("parse run timestamp %q: %w", startedRaw, err)
		}
		run.StartedAt = started.UTC()
		run.Duration = time.Duration(durationMS) * time.Millisecond
		run.Status = Status(status)
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run rows: %w", err)
	}
	return runs, nil
}

func (s *Store) withRetry(op string, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if !isLockError(err) || attempt == maxAttempts {
			break
		}
		time.Sleep(time.Duration(attempt*25) * time.Millisecond)
	}
	return fmt.Errorf("%s: %w", op, lastErr)
}

func isLockError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "busy")
}

func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

func IsCorruptError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "malformed") || strings.Contains(msg, "not a database") || errors.Is(err, os.ErrInvalid)
}
