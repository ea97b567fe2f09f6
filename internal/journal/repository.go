// Package journal keeps the agent's local history of ingestion runs and
// exports, plus small key/value settings, in SQLite.
package journal

import (
	"context"
	"database/sql"
	"time"
)

type Repository interface {
	CreateRun(ctx context.Context, run *Run) error
	FinishRun(ctx context.Context, run *Run) error
	GetRun(ctx context.Context, id string) (*Run, error)
	ListRuns(ctx context.Context, limit int) ([]*Run, error)

	CreateExport(ctx context.Context, export *Export) error
	ListExports(ctx context.Context, limit int) ([]*Export, error)

	GetConfig(ctx context.Context, key string) (string, error)
	SetConfig(ctx context.Context, key, value string) error
}

type SQLiteRepository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) CreateRun(ctx context.Context, run *Run) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO runs (id, filename, source_path, size_bytes, file_id, status, stage, progress, duplicate, highlight_count, error, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.Filename, run.SourcePath, run.SizeBytes, nullString(run.FileID), run.Status, run.Stage,
		run.Progress, boolToInt(run.Duplicate), run.HighlightCount, nullString(run.Error),
		run.StartedAt.UTC().Format(time.RFC3339))
	return err
}

// FinishRun stores the terminal state of a run.
func (r *SQLiteRepository) FinishRun(ctx context.Context, run *Run) error {
	finished := time.Now().UTC()
	if run.FinishedAt != nil {
		finished = run.FinishedAt.UTC()
	}
	_, err := r.db.ExecContext(ctx, `
		UPDATE runs SET file_id = ?, status = ?, stage = ?, progress = ?, duplicate = ?, highlight_count = ?, error = ?, finished_at = ?
		WHERE id = ?
	`, nullString(run.FileID), run.Status, run.Stage, run.Progress, boolToInt(run.Duplicate), run.HighlightCount,
		nullString(run.Error), finished.Format(time.RFC3339), run.ID)
	return err
}

const runColumns = `id, filename, source_path, size_bytes, file_id, status, stage, progress, duplicate, highlight_count, error, started_at, finished_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var run Run
	var fileID, errMsg, finishedAt sql.NullString
	var duplicate int
	var startedAt string

	err := row.Scan(&run.ID, &run.Filename, &run.SourcePath, &run.SizeBytes, &fileID, &run.Status, &run.Stage,
		&run.Progress, &duplicate, &run.HighlightCount, &errMsg, &startedAt, &finishedAt)
	if err != nil {
		return nil, err
	}

	run.FileID = fileID.String
	run.Error = errMsg.String
	run.Duplicate = duplicate == 1
	run.StartedAt, _ = time.Parse(time.RFC3339, startedAt)
	if finishedAt.Valid {
		if ts, err := time.Parse(time.RFC3339, finishedAt.String); err == nil {
			run.FinishedAt = &ts
		}
	}
	return &run, nil
}

func (r *SQLiteRepository) GetRun(ctx context.Context, id string) (*Run, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return run, err
}

func (r *SQLiteRepository) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (r *SQLiteRepository) CreateExport(ctx context.Context, e *Export) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO exports (id, file_id, kind, path, range_count, size_bytes, status, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.FileID, e.Kind, nullString(e.Path), e.RangeCount, e.SizeBytes, e.Status, nullString(e.Error),
		e.CreatedAt.UTC().Format(time.RFC3339))
	return err
}

func (r *SQLiteRepository) ListExports(ctx context.Context, limit int) ([]*Export, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, file_id, kind, path, range_count, size_bytes, status, error, created_at
		FROM exports ORDER BY created_at DESC, rowid DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var exports []*Export
	for rows.Next() {
		var e Export
		var path, errMsg sql.NullString
		var createdAt string
		if err := rows.Scan(&e.ID, &e.FileID, &e.Kind, &path, &e.RangeCount, &e.SizeBytes, &e.Status, &errMsg, &createdAt); err != nil {
			return nil, err
		}
		e.Path = path.String
		e.Error = errMsg.String
		e.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		exports = append(exports, &e)
	}
	return exports, rows.Err()
}

func (r *SQLiteRepository) GetConfig(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx, "SELECT value FROM config WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

func (r *SQLiteRepository) SetConfig(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO config (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
