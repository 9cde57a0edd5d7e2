package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/starford/scribe/internal/apperr"
)

// ImportRecord remembers a processed payload so the same bytes are not
// imported twice.
type ImportRecord struct {
	Checksum   string    `json:"checksum"`
	Source     string    `json:"source"`
	EntryIDs   []string  `json:"entry_ids"`
	ImportedAt time.Time `json:"imported_at"`
}

// RecordImport stores rec, replacing an earlier record with the same
// checksum.
func (db *DB) RecordImport(ctx context.Context, rec ImportRecord) error {
	ids, _ := json.Marshal(nonNil(rec.EntryIDs))
	if rec.ImportedAt.IsZero() {
		rec.ImportedAt = time.Now().UTC()
	}
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO imports (checksum, source, entry_ids, imported_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(checksum) DO UPDATE SET
			source      = excluded.source,
			entry_ids   = excluded.entry_ids,
			imported_at = excluded.imported_at
	`, rec.Checksum, rec.Source, string(ids), rec.ImportedAt)
	if err != nil {
		return fmt.Errorf("store: record import: %w", err)
	}
	return nil
}

// LookupImport returns the record for a payload checksum, or
// apperr.ErrNotFound.
func (db *DB) LookupImport(ctx context.Context, checksum string) (*ImportRecord, error) {
	var (
		rec ImportRecord
		ids string
	)
	err := db.conn.QueryRowContext(ctx,
		`SELECT checksum, source, entry_ids, imported_at FROM imports WHERE checksum = ?`, checksum).
		Scan(&rec.Checksum, &rec.Source, &ids, &rec.ImportedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: lookup import: %w", err)
	}
	_ = json.Unmarshal([]byte(ids), &rec.EntryIDs)
	return &rec, nil
}
