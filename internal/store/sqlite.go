package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/standardbeagle/spanidx/internal/debug"
	spanerrors "github.com/standardbeagle/spanidx/internal/errors"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS documents (
	idx        TEXT NOT NULL,
	type       TEXT NOT NULL,
	id         TEXT NOT NULL,
	merge_id   TEXT NOT NULL,
	project_id TEXT NOT NULL,
	project_lc TEXT NOT NULL,
	path       TEXT NOT NULL,
	tags       TEXT NOT NULL,
	body       BLOB NOT NULL,
	PRIMARY KEY (idx, type, id)
);
CREATE INDEX IF NOT EXISTS documents_merge ON documents (idx, merge_id);
CREATE INDEX IF NOT EXISTS documents_project ON documents (idx, type, project_lc);
`

// SQLiteStore keeps documents in a SQLite database file.
type SQLiteStore struct {
	index string
	db    *sql.DB
}

// OpenSQLite opens or creates the database at path. The special path
// ":memory:" opens a private in-memory database.
func OpenSQLite(path, index string) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, spanerrors.NewStoreError("open", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, spanerrors.NewStoreError("open", err)
	}
	// one connection: SQLite has a single writer and ":memory:" is per
	// connection
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA temp_store=MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, spanerrors.NewStoreError("open", fmt.Errorf("%s: %w", pragma, err))
		}
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, spanerrors.NewStoreError("open", fmt.Errorf("schema: %w", err))
	}
	debug.LogStore("opened sqlite store %s (index %s)\n", path, index)
	return &SQLiteStore{index: index, db: db}, nil
}

func (s *SQLiteStore) Index() string { return s.index }

func (s *SQLiteStore) Upsert(ctx context.Context, docs []Document) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return spanerrors.NewStoreError("upsert", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO documents
		(idx, type, id, merge_id, project_id, project_lc, path, tags, body)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return spanerrors.NewStoreError("upsert", err)
	}
	defer stmt.Close()

	for _, doc := range docs {
		tags, err := json.Marshal(doc.Tags)
		if err != nil {
			return spanerrors.NewStoreError("upsert", err)
		}
		body := []byte(doc.Body)
		if len(body) == 0 {
			body = []byte("null")
		}
		if _, err := stmt.ExecContext(ctx, s.index, doc.Type, doc.ID, doc.MergeID,
			doc.ProjectID, strings.ToLower(doc.ProjectID), doc.Path, string(tags), body); err != nil {
			return spanerrors.NewStoreError("upsert", fmt.Errorf("%s/%s: %w", doc.Type, doc.ID, err))
		}
	}
	if err := tx.Commit(); err != nil {
		return spanerrors.NewStoreError("upsert", err)
	}
	return nil
}

func (s *SQLiteStore) Query(ctx context.Context, filter Filter) ([]Document, error) {
	if err := filter.Validate(); err != nil {
		return nil, spanerrors.NewStoreError("query", err)
	}

	where := []string{"idx = ?"}
	args := []any{s.index}
	if filter.Type != "" {
		where = append(where, "type = ?")
		args = append(args, filter.Type)
	}
	if filter.ProjectID != "" {
		where = append(where, "project_lc = ?")
		args = append(args, strings.ToLower(filter.ProjectID))
	}
	if filter.MergeID != "" {
		where = append(where, "merge_id = ?")
		args = append(args, filter.MergeID)
	}
	query := "SELECT type, id, merge_id, project_id, path, tags, body FROM documents WHERE " +
		strings.Join(where, " AND ") + " ORDER BY type, id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, spanerrors.NewStoreError("query", err)
	}
	defer rows.Close()

	var out []Document
	for rows.Next() {
		var doc Document
		var tags string
		var body []byte
		if err := rows.Scan(&doc.Type, &doc.ID, &doc.MergeID, &doc.ProjectID, &doc.Path, &tags, &body); err != nil {
			return nil, spanerrors.NewStoreError("query", err)
		}
		if err := json.Unmarshal([]byte(tags), &doc.Tags); err != nil {
			return nil, spanerrors.NewStoreError("query", fmt.Errorf("tags of %s/%s: %w", doc.Type, doc.ID, err))
		}
		doc.Body = body
		// path globs and tags are matched here rather than in SQL
		if !filter.Matches(doc) {
			continue
		}
		out = append(out, doc)
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	if err := rows.Err(); err != nil {
		return nil, spanerrors.NewStoreError("query", err)
	}
	return out, nil
}

func (s *SQLiteStore) DeleteByMergeID(ctx context.Context, mergeID string) (int, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM documents WHERE idx = ? AND merge_id = ?", s.index, mergeID)
	if err != nil {
		return 0, spanerrors.NewStoreError("delete", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, spanerrors.NewStoreError("delete", err)
	}
	debug.LogStore("deleted %d rows of %s\n", n, mergeID)
	return int(n), nil
}

func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return spanerrors.NewStoreError("close", err)
	}
	return nil
}
