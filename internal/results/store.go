package results

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"optic/internal/checkpoint"
	"optic/internal/fileutil"
)

// Record is one archived analysis outcome. VerdictJSON is empty for failed
// items; RawResponse is kept only for parse failures, where the undecodable
// text is the evidence.
type Record struct {
	ItemID           string            `json:"item_id"`
	RunID            string            `json:"run_id"`
	Status           checkpoint.Status `json:"status"`
	Detected         bool              `json:"detected"`
	VerdictJSON      string            `json:"verdict,omitempty"`
	RawResponse      string            `json:"raw_response,omitempty"`
	Error            string            `json:"error,omitempty"`
	Attempts         int               `json:"attempts"`
	Retries          int               `json:"retries"`
	PromptTokens     int               `json:"prompt_tokens"`
	CompletionTokens int               `json:"completion_tokens"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

// Store manages the results archive backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the archive at path.
func Open(path string) (*Store, error) {
	if err := fileutil.EnsureDir(filepath.Dir(path)); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open results db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string { return s.path }

// Upsert stores a record, replacing any earlier outcome for the same item. A
// later run's record for an item always supersedes an earlier run's.
func (s *Store) Upsert(ctx context.Context, rec Record) error {
	if rec.ItemID == "" {
		return errors.New("upsert result: item id required")
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO analysis_results (
            item_id, run_id, status, detected, verdict_json, raw_response, error,
            attempts, retries, prompt_tokens, completion_tokens, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(item_id) DO UPDATE SET
            run_id = excluded.run_id,
            status = excluded.status,
            detected = excluded.detected,
            verdict_json = excluded.verdict_json,
            raw_response = excluded.raw_response,
            error = excluded.error,
            attempts = excluded.attempts,
            retries = excluded.retries,
            prompt_tokens = excluded.prompt_tokens,
            completion_tokens = excluded.completion_tokens,
            updated_at = excluded.updated_at`,
		rec.ItemID,
		rec.RunID,
		string(rec.Status),
		boolToInt(rec.Detected),
		nullableString(rec.VerdictJSON),
		nullableString(rec.RawResponse),
		nullableString(rec.Error),
		rec.Attempts,
		rec.Retries,
		rec.PromptTokens,
		rec.CompletionTokens,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("upsert result %s: %w", rec.ItemID, err)
	}
	return nil
}

// Get returns the archived record for an item, or nil when none exists.
func (s *Store) Get(ctx context.Context, itemID string) (*Record, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+" WHERE item_id = ?", itemID)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get result %s: %w", itemID, err)
	}
	return &rec, nil
}

// List returns every archived record in item order.
func (s *Store) List(ctx context.Context) ([]Record, error) {
	return s.query(ctx, selectColumns+" ORDER BY item_id")
}

// Failures returns the records for non-succeeded items in item order.
func (s *Store) Failures(ctx context.Context) ([]Record, error) {
	return s.query(ctx,
		selectColumns+" WHERE status != ? ORDER BY item_id",
		string(checkpoint.StatusSucceeded))
}

// CountByStatus tallies archived records per terminal status.
func (s *Store) CountByStatus(ctx context.Context) (map[checkpoint.Status]int, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT status, COUNT(1) FROM analysis_results GROUP BY status")
	if err != nil {
		return nil, fmt.Errorf("count results: %w", err)
	}
	defer rows.Close()

	counts := make(map[checkpoint.Status]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan count row: %w", err)
		}
		counts[checkpoint.Status(status)] = count
	}
	return counts, rows.Err()
}

const selectColumns = `SELECT item_id, run_id, status, detected, verdict_json, raw_response, error,
    attempts, retries, prompt_tokens, completion_tokens, created_at, updated_at
    FROM analysis_results`

func (s *Store) query(ctx context.Context, query string, args ...any) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan result row: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (Record, error) {
	var rec Record
	var status string
	var detected int
	var verdict, raw, errText sql.NullString
	var createdAt, updatedAt string

	err := row.Scan(
		&rec.ItemID, &rec.RunID, &status, &detected, &verdict, &raw, &errText,
		&rec.Attempts, &rec.Retries, &rec.PromptTokens, &rec.CompletionTokens,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return rec, err
	}
	rec.Status = checkpoint.Status(status)
	rec.Detected = detected != 0
	rec.VerdictJSON = verdict.String
	rec.RawResponse = raw.String
	rec.Error = errText.String
	rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	rec.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return rec, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}
