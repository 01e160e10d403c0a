// Package store persists learned chains and the resolution ledger in SQLite.
package store

import (
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	_ "modernc.org/sqlite"

	"github.com/blewistrumpet-lang/phoenix-Chimera-sub002/internal/encoder"
	"github.com/blewistrumpet-lang/phoenix-Chimera-sub002/internal/index"
	"github.com/blewistrumpet-lang/phoenix-Chimera-sub002/internal/preset"
)

// ErrCorruptVector is returned when a stored vector blob has a bad length.
var ErrCorruptVector = errors.New("corrupt vector blob")

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS learned_presets (
	id             TEXT PRIMARY KEY,
	vector         BLOB NOT NULL,
	candidate_json TEXT NOT NULL,
	vibe           TEXT,
	confidence     REAL NOT NULL,
	created_at     TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS resolution_log (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	request_id    TEXT NOT NULL,
	cache_key     TEXT NOT NULL,
	vibe          TEXT,
	source        TEXT NOT NULL,
	origin        TEXT NOT NULL,
	confidence    REAL NOT NULL,
	escalated     INTEGER NOT NULL,
	learned       INTEGER NOT NULL,
	is_safe       INTEGER NOT NULL,
	score         REAL NOT NULL,
	report_json   TEXT,
	units         TEXT,
	latency_ms    INTEGER NOT NULL,
	created_at    TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_resolution_log_created ON resolution_log(created_at);
`

// #endregion schema

// #region store-struct
// Store manages learned chains in SQLite.
type Store struct {
	db *sql.DB
}

// #endregion store-struct

// #region constructor
// NewStore opens a SQLite database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma busy: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for use by other packages (the ledger and
// the SQLite cache tier share it).
func (s *Store) DB() *sql.DB {
	return s.db
}

// #endregion constructor

// #region learned
// SaveLearned persists one learned index item. Saving an existing ID is a no-op.
func (s *Store) SaveLearned(item index.Item) error {
	candJSON, err := json.Marshal(item.Candidate)
	if err != nil {
		return fmt.Errorf("marshal candidate: %w", err)
	}
	created := item.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	_, err = s.db.Exec(
		`INSERT INTO learned_presets (id, vector, candidate_json, vibe, confidence, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO NOTHING`,
		item.ID, EncodeVector(item.Vector), string(candJSON), item.Candidate.Vibe,
		item.Candidate.Confidence, created.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert learned %s: %w", item.ID, err)
	}
	return nil
}

// LoadLearned returns every learned item, oldest first. Rows whose vector does
// not match dim are skipped and counted, so a catalog change cannot poison the
// index.
func (s *Store) LoadLearned(dim int) ([]index.Item, int, error) {
	rows, err := s.db.Query(
		`SELECT id, vector, candidate_json, created_at
		 FROM learned_presets ORDER BY created_at ASC, id ASC`,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list learned: %w", err)
	}
	defer rows.Close()

	var items []index.Item
	skipped := 0
	for rows.Next() {
		var (
			id, candJSON, createdStr string
			blob                     []byte
		)
		if err := rows.Scan(&id, &blob, &candJSON, &createdStr); err != nil {
			return nil, 0, fmt.Errorf("scan row: %w", err)
		}
		vec, err := DecodeVector(blob)
		if err != nil || len(vec) != dim {
			skipped++
			continue
		}
		var cand preset.Candidate
		if err := json.Unmarshal([]byte(candJSON), &cand); err != nil {
			skipped++
			continue
		}
		created, _ := time.Parse(time.RFC3339Nano, createdStr)
		items = append(items, index.Item{
			ID:        id,
			Vector:    vec,
			Candidate: cand,
			Origin:    index.OriginLearned,
			CreatedAt: created,
		})
	}
	return items, skipped, rows.Err()
}

// CountLearned returns the number of learned rows.
func (s *Store) CountLearned() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM learned_presets`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count learned: %w", err)
	}
	return n, nil
}

// #endregion learned

// #region vector-encoding
// EncodeVector packs v as little-endian float32s.
func EncodeVector(v encoder.Vector) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// DecodeVector unpacks a blob written by EncodeVector.
func DecodeVector(b []byte) (encoder.Vector, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("%w: %d bytes", ErrCorruptVector, len(b))
	}
	v := make(encoder.Vector, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v, nil
}

// #endregion vector-encoding
