// Package store persists workflow executions and evidence in SQLite.
package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	_ "embed"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/hugo-lorenzo-mato/cascade-ai/internal/core"
	_ "modernc.org/sqlite"
)

//go:embed migrations/001_initial_schema.sql
var migrationV1 string

// promptPreviewLen bounds the prompt text stored for listing rows.
const promptPreviewLen = 200

// SQLiteStore implements core.ExecutionStore and core.EvidenceSink with
// SQLite storage. Snapshots are stored whole as JSON; indexed columns exist
// only for listing and filtering.
type SQLiteStore struct {
	dbPath string
	db     *sql.DB
	mu     sync.RWMutex
}

// NewSQLiteStore opens (or creates) the database at dbPath and applies
// pending migrations. WAL mode keeps status reads from blocking snapshot
// writes.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating store directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &SQLiteStore{dbPath: dbPath, db: db}
	if err := s.migrate(); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("running migrations: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *SQLiteStore) migrate() error {
	var version int
	err := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version)
	if err != nil {
		// Table doesn't exist yet, run initial migration
		version = 0
	}

	if version < 1 {
		if _, err := s.db.Exec(migrationV1); err != nil {
			return fmt.Errorf("applying migration v1: %w", err)
		}
	}
	return nil
}

// Save upserts an execution snapshot.
func (s *SQLiteStore) Save(ctx context.Context, w *core.WorkflowExecution) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot, err := json.Marshal(w)
	if err != nil {
		return fmt.Errorf("marshaling execution snapshot: %w", err)
	}
	hash := sha256.Sum256(snapshot)
	checksum := hex.EncodeToString(hash[:])

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO executions (
			id, status, prompt, phases, snapshot, checksum, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			prompt = excluded.prompt,
			phases = excluded.phases,
			snapshot = excluded.snapshot,
			checksum = excluded.checksum,
			updated_at = excluded.updated_at
	`,
		string(w.ID), string(w.Status), preview(w.Prompt), len(w.Phases),
		string(snapshot), checksum, w.CreatedAt.UTC(), w.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("upserting execution %s: %w", w.ID, err)
	}
	return nil
}

// Load retrieves an execution by ID. The stored checksum guards against a
// corrupted snapshot being silently deserialized.
func (s *SQLiteStore) Load(ctx context.Context, id core.WorkflowID) (*core.WorkflowExecution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var snapshot, checksum string
	err := s.db.QueryRowContext(ctx,
		"SELECT snapshot, checksum FROM executions WHERE id = ?", string(id),
	).Scan(&snapshot, &checksum)
	if err == sql.ErrNoRows {
		return nil, core.ErrNotFound("workflow", string(id))
	}
	if err != nil {
		return nil, fmt.Errorf("querying execution %s: %w", id, err)
	}

	hash := sha256.Sum256([]byte(snapshot))
	if hex.EncodeToString(hash[:]) != checksum {
		return nil, core.ErrState(core.CodeInvalidState,
			fmt.Sprintf("execution %s: snapshot checksum mismatch", id))
	}

	var w core.WorkflowExecution
	if err := json.Unmarshal([]byte(snapshot), &w); err != nil {
		return nil, fmt.Errorf("unmarshaling execution %s: %w", id, err)
	}
	return &w, nil
}

// List returns summaries of all stored executions, newest first.
func (s *SQLiteStore) List(ctx context.Context) ([]core.ExecutionSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, status, prompt, phases, created_at, updated_at
		FROM executions ORDER BY updated_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("listing executions: %w", err)
	}
	defer rows.Close()

	var summaries []core.ExecutionSummary
	for rows.Next() {
		var sum core.ExecutionSummary
		var id, status string
		if err := rows.Scan(&id, &status, &sum.Prompt, &sum.Phases, &sum.CreatedAt, &sum.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning execution row: %w", err)
		}
		sum.ID = core.WorkflowID(id)
		sum.Status = core.WorkflowStatus(status)
		summaries = append(summaries, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating execution rows: %w", err)
	}
	return summaries, nil
}

// Delete removes a stored execution and its evidence.
func (s *SQLiteStore) Delete(ctx context.Context, id core.WorkflowID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM executions WHERE id = ?", string(id))
	if err != nil {
		return fmt.Errorf("deleting execution %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return core.ErrNotFound("workflow", string(id))
	}
	if _, err := s.db.ExecContext(ctx, "DELETE FROM evidence WHERE workflow_id = ?", string(id)); err != nil {
		return fmt.Errorf("deleting evidence for %s: %w", id, err)
	}
	return nil
}

// Put appends an evidence blob for a workflow.
func (s *SQLiteStore) Put(ctx context.Context, workflowID core.WorkflowID, blob []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO evidence (workflow_id, blob, created_at) VALUES (?, ?, ?)",
		string(workflowID), string(blob), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("inserting evidence for %s: %w", workflowID, err)
	}
	return nil
}

// Evidence returns all evidence blobs for a workflow, oldest first.
func (s *SQLiteStore) Evidence(ctx context.Context, workflowID core.WorkflowID) ([][]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT blob FROM evidence WHERE workflow_id = ? ORDER BY id ASC", string(workflowID))
	if err != nil {
		return nil, fmt.Errorf("querying evidence for %s: %w", workflowID, err)
	}
	defer rows.Close()

	var blobs [][]byte
	for rows.Next() {
		var blob string
		if err := rows.Scan(&blob); err != nil {
			return nil, fmt.Errorf("scanning evidence row: %w", err)
		}
		blobs = append(blobs, []byte(blob))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating evidence rows: %w", err)
	}
	return blobs, nil
}

func preview(prompt string) string {
	if len(prompt) > promptPreviewLen {
		return prompt[:promptPreviewLen]
	}
	return prompt
}
