package templating

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// SetupSchema creates the table used by SQLiteStore. It is idempotent and
// safe to call on an already-initialized database.
func SetupSchema(db *sql.DB) error {
	const schemaArtifacts = `
CREATE TABLE IF NOT EXISTS compiled_templates (
    namespace TEXT NOT NULL,
    template_id TEXT NOT NULL,
    compiled TEXT NOT NULL,
    fingerprint TEXT NOT NULL,
    deps TEXT NOT NULL,
    compiled_at INTEGER NOT NULL,
    PRIMARY KEY (namespace, template_id)
);
`
	if _, err := db.Exec(schemaArtifacts); err != nil {
		return fmt.Errorf("could not create schema: %w", err)
	}
	return nil
}

// SQLiteStore keeps compiled templates in a SQLite table. The caller owns the
// *sql.DB and chooses the driver; SetupSchema must have been run on it.
type SQLiteStore struct {
	db        *sql.DB
	stmtGet   *sql.Stmt
	stmtPut   *sql.Stmt
	stmtClear *sql.Stmt
}

// NewSQLiteStore prepares the statements the store needs.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	stmtGet, err := db.Prepare(`SELECT compiled, fingerprint, deps, compiled_at FROM compiled_templates WHERE namespace = ? AND template_id = ?;`)
	if err != nil {
		return nil, err
	}

	stmtPut, err := db.Prepare(`
INSERT INTO compiled_templates (namespace, template_id, compiled, fingerprint, deps, compiled_at) VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(namespace, template_id) DO UPDATE SET
    compiled = excluded.compiled,
    fingerprint = excluded.fingerprint,
    deps = excluded.deps,
    compiled_at = excluded.compiled_at;`)
	if err != nil {
		_ = stmtGet.Close()
		return nil, err
	}

	stmtClear, err := db.Prepare(`DELETE FROM compiled_templates WHERE namespace = ?;`)
	if err != nil {
		_ = stmtGet.Close()
		_ = stmtPut.Close()
		return nil, err
	}

	return &SQLiteStore{
		db:        db,
		stmtGet:   stmtGet,
		stmtPut:   stmtPut,
		stmtClear: stmtClear,
	}, nil
}

// Close releases the prepared statements. The database is left open.
func (s *SQLiteStore) Close() {
	_ = s.stmtGet.Close()
	_ = s.stmtPut.Close()
	_ = s.stmtClear.Close()
}

func (s *SQLiteStore) Get(ctx context.Context, namespace, id string) (Artifact, bool, error) {
	var (
		a          = Artifact{ID: id}
		deps       string
		compiledAt int64
	)
	err := s.stmtGet.QueryRowContext(ctx, namespace, id).Scan(&a.Compiled, &a.Fingerprint, &deps, &compiledAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Artifact{}, false, nil
		}
		return Artifact{}, false, fmt.Errorf("query artifact: %w", err)
	}
	if err = json.Unmarshal([]byte(deps), &a.Deps); err != nil {
		return Artifact{}, false, nil
	}
	a.CompiledAt = time.Unix(0, compiledAt).UTC()
	return a, true, nil
}

func (s *SQLiteStore) Put(ctx context.Context, namespace string, a Artifact) error {
	deps, err := json.Marshal(a.Deps)
	if err != nil {
		return fmt.Errorf("marshal deps: %w", err)
	}
	if _, err = s.stmtPut.ExecContext(ctx, namespace, a.ID, a.Compiled, a.Fingerprint, string(deps), a.CompiledAt.UnixNano()); err != nil {
		return fmt.Errorf("store artifact: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Clear(ctx context.Context, namespace string) error {
	if _, err := s.stmtClear.ExecContext(ctx, namespace); err != nil {
		return fmt.Errorf("clear artifacts: %w", err)
	}
	return nil
}
