package logging

import (
	"database/sql"
	"fmt"
	"time"
)

// #region log-resolution
// LogResolution writes one entry to the resolution_log table.
func LogResolution(db *sql.DB, entry Entry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := db.Exec(
		`INSERT INTO resolution_log (request_id, cache_key, vibe, source, origin, confidence, escalated, learned,
		  is_safe, score, report_json, units, latency_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.RequestID,
		entry.CacheKey,
		nullIfEmpty(entry.Vibe),
		entry.Source,
		entry.Origin,
		entry.Confidence,
		boolInt(entry.Escalated),
		boolInt(entry.Learned),
		boolInt(entry.IsSafe),
		entry.Score,
		nullIfEmpty(entry.ReportJSON),
		nullIfEmpty(entry.Units),
		entry.Latency.Milliseconds(),
		entry.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("log resolution: %w", err)
	}
	return nil
}

// #endregion log-resolution

// #region recent
// Recent returns up to limit entries, newest first.
func Recent(db *sql.DB, limit int) ([]Entry, error) {
	rows, err := db.Query(
		`SELECT id, request_id, cache_key, vibe, source, origin, confidence, escalated, learned,
		  is_safe, score, report_json, units, latency_ms, created_at
		 FROM resolution_log ORDER BY id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list resolutions: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e                          Entry
			vibe, report, units        sql.NullString
			escalated, learned, isSafe int
			latencyMS                  int64
			createdStr                 string
		)
		if err := rows.Scan(&e.ID, &e.RequestID, &e.CacheKey, &vibe, &e.Source, &e.Origin, &e.Confidence,
			&escalated, &learned, &isSafe, &e.Score, &report, &units, &latencyMS, &createdStr); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		e.Vibe = vibe.String
		e.ReportJSON = report.String
		e.Units = units.String
		e.Escalated = escalated != 0
		e.Learned = learned != 0
		e.IsSafe = isSafe != 0
		e.Latency = time.Duration(latencyMS) * time.Millisecond
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// #endregion recent

// #region ledger
// Ledger binds the resolution log to one database.
type Ledger struct {
	db *sql.DB
}

// NewLedger wraps db. The resolution_log table must already exist.
func NewLedger(db *sql.DB) *Ledger {
	return &Ledger{db: db}
}

// LogResolution writes entry.
func (l *Ledger) LogResolution(entry Entry) error {
	return LogResolution(l.db, entry)
}

// Recent returns up to limit entries, newest first.
func (l *Ledger) Recent(limit int) ([]Entry, error) {
	return Recent(l.db, limit)
}

// #endregion ledger

// #region helpers
func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// #endregion helpers
