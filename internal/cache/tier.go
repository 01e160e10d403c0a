package cache

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// #region tier
// Tier is the persisted cache tier. Load returns ErrNotFound for absent keys
// and an error wrapping ErrCorrupt for entries that cannot be decoded.
type Tier interface {
	Load(key string) (Entry, error)
	Save(e Entry) error
	Delete(key string) error
}

// #endregion tier

// #region sqlite-tier
const sqliteSchema = `
CREATE TABLE IF NOT EXISTS cache_entries (
	key          TEXT PRIMARY KEY,
	payload      TEXT NOT NULL,
	created_at   TEXT NOT NULL,
	last_access  TEXT NOT NULL,
	hits         INTEGER NOT NULL DEFAULT 0
);
`

// SQLiteTier stores entries in the cache_entries table.
type SQLiteTier struct {
	db *sql.DB
}

// NewSQLiteTier creates the cache_entries table if needed.
func NewSQLiteTier(db *sql.DB) (*SQLiteTier, error) {
	if _, err := db.Exec(sqliteSchema); err != nil {
		return nil, fmt.Errorf("migrate cache: %w", err)
	}
	return &SQLiteTier{db: db}, nil
}

// Load reads one entry.
func (t *SQLiteTier) Load(key string) (Entry, error) {
	var payload, createdStr, accessStr string
	e := Entry{Key: key}
	err := t.db.QueryRow(
		`SELECT payload, created_at, last_access, hits FROM cache_entries WHERE key = ?`, key,
	).Scan(&payload, &createdStr, &accessStr, &e.Hits)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, ErrNotFound
	}
	if err != nil {
		return Entry{}, fmt.Errorf("load cache entry: %w", err)
	}
	if err := json.Unmarshal([]byte(payload), &e.Payload); err != nil {
		return Entry{}, fmt.Errorf("%w: payload: %v", ErrCorrupt, err)
	}
	if e.CreatedAt, err = time.Parse(time.RFC3339Nano, createdStr); err != nil {
		return Entry{}, fmt.Errorf("%w: created_at: %v", ErrCorrupt, err)
	}
	if e.LastAccess, err = time.Parse(time.RFC3339Nano, accessStr); err != nil {
		return Entry{}, fmt.Errorf("%w: last_access: %v", ErrCorrupt, err)
	}
	return e, nil
}

// Save upserts one entry.
func (t *SQLiteTier) Save(e Entry) error {
	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	_, err = t.db.Exec(
		`INSERT INTO cache_entries (key, payload, created_at, last_access, hits)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET
		   payload = excluded.payload,
		   created_at = excluded.created_at,
		   last_access = excluded.last_access,
		   hits = excluded.hits`,
		e.Key, string(payload),
		e.CreatedAt.UTC().Format(time.RFC3339Nano), e.LastAccess.UTC().Format(time.RFC3339Nano), e.Hits,
	)
	if err != nil {
		return fmt.Errorf("save cache entry: %w", err)
	}
	return nil
}

// Delete removes one entry. Deleting an absent key is not an error.
func (t *SQLiteTier) Delete(key string) error {
	if _, err := t.db.Exec(`DELETE FROM cache_entries WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete cache entry: %w", err)
	}
	return nil
}

// Count returns the number of persisted entries.
func (t *SQLiteTier) Count() (int, error) {
	var n int
	if err := t.db.QueryRow(`SELECT COUNT(*) FROM cache_entries`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count cache entries: %w", err)
	}
	return n, nil
}

// #endregion sqlite-tier
