package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps sessions in a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (and creates if needed) the database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// one writer is enough and avoids SQLITE_BUSY between pooled connections
	db.SetMaxOpenConns(1)

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

func initSchema(db *sql.DB) error {
	for _, stmt := range []string{
		`PRAGMA journal_mode = WAL;`,
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			data TEXT NOT NULL,
			created_at TEXT NOT NULL,
			accessed_at TEXT NOT NULL
		);`,
	} {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("session schema failed: %w", err)
		}
	}
	return nil
}

func (st *SQLiteStore) Save(ctx context.Context, rec Record) error {
	data, err := json.Marshal(rec.Values)
	if err != nil {
		return err
	}
	_, err = st.db.ExecContext(ctx, `INSERT INTO sessions(id, data, created_at, accessed_at) VALUES(?,?,?,?)
		ON CONFLICT(id) DO UPDATE SET data=excluded.data, accessed_at=excluded.accessed_at`,
		rec.ID, string(data),
		rec.CreatedAt.UTC().Format(time.RFC3339Nano),
		rec.AccessedAt.UTC().Format(time.RFC3339Nano))
	return err
}

func (st *SQLiteStore) Delete(ctx context.Context, id string) error {
	_, err := st.db.ExecContext(ctx, `DELETE FROM sessions WHERE id=?`, id)
	return err
}

func (st *SQLiteStore) List(ctx context.Context) ([]Record, error) {
	rows, err := st.db.QueryContext(ctx, `SELECT id, data, created_at, accessed_at FROM sessions`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		var data, createdAt, accessedAt string
		if err := rows.Scan(&rec.ID, &data, &createdAt, &accessedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(data), &rec.Values); err != nil {
			return nil, fmt.Errorf("session %s: %w", rec.ID, err)
		}
		rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		rec.AccessedAt, _ = time.Parse(time.RFC3339Nano, accessedAt)
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (st *SQLiteStore) Close() error {
	return st.db.Close()
}
