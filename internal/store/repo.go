package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/starford/scribe/internal/apperr"
	"github.com/starford/scribe/internal/models"
	"github.com/starford/scribe/internal/richtext"
)

// ListQuery filters and pages List results.
type ListQuery struct {
	Limit      int
	Offset     int
	Status     models.Status
	Journal    string
	Collection string
	// Sort is "updated" (default), "created" or "title".
	Sort string
}

// SearchResult represents one search hit.
type SearchResult struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
}

// row is the flattened column form of an entry.
type row struct {
	title, excerpt, coverURL, coverAlt string
	doc, markup, body                  string
	status, journals, collections      string
}

func toRow(e *models.Entry) (row, error) {
	r := row{
		title:    e.Title,
		excerpt:  e.Excerpt,
		coverURL: e.CoverImageURL,
		coverAlt: e.CoverImageAlt,
		status:   string(e.Status),
	}
	if e.Content != nil {
		if e.Content.Doc != nil {
			data, err := json.Marshal(e.Content.Doc)
			if err != nil {
				return row{}, fmt.Errorf("store: encode doc: %w", err)
			}
			r.doc = string(data)
			r.body = e.Content.Doc.TextContent()
		}
		r.markup = e.Content.Markup
	}
	j, _ := json.Marshal(nonNil(e.Journals))
	c, _ := json.Marshal(nonNil(e.Collections))
	r.journals, r.collections = string(j), string(c)
	return r, nil
}

// Create inserts a new entry. It returns apperr.ErrAlreadyExists when the id
// is taken.
func (db *DB) Create(ctx context.Context, e *models.Entry) error {
	r, err := toRow(e)
	if err != nil {
		return err
	}
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	_, err = tx.ExecContext(ctx, `
		INSERT INTO entries (id, title, excerpt, cover_url, cover_alt, content_doc, content_markup,
			body, status, journals, collections, checksum, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, e.ID, r.title, r.excerpt, r.coverURL, r.coverAlt, r.doc, r.markup,
		r.body, r.status, r.journals, r.collections, e.Checksum, e.CreatedAt, e.UpdatedAt)
	if err != nil {
		var sqlErr sqlite3.Error
		if errors.As(err, &sqlErr) && sqlErr.Code == sqlite3.ErrConstraint {
			return apperr.ErrAlreadyExists
		}
		return fmt.Errorf("store: insert entry: %w", err)
	}
	if err := ftsUpsert(ctx, tx, e.ID, r); err != nil {
		return err
	}
	return tx.Commit()
}

// Update replaces every field of an existing entry. It returns
// apperr.ErrNotFound when the id is unknown.
func (db *DB) Update(ctx context.Context, e *models.Entry) error {
	r, err := toRow(e)
	if err != nil {
		return err
	}
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx, `
		UPDATE entries SET
			title = ?, excerpt = ?, cover_url = ?, cover_alt = ?, content_doc = ?, content_markup = ?,
			body = ?, status = ?, journals = ?, collections = ?, checksum = ?, updated_at = ?
		WHERE id = ?
	`, r.title, r.excerpt, r.coverURL, r.coverAlt, r.doc, r.markup,
		r.body, r.status, r.journals, r.collections, e.Checksum, e.UpdatedAt, e.ID)
	if err != nil {
		return fmt.Errorf("store: update entry: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.ErrNotFound
	}
	if err := ftsUpsert(ctx, tx, e.ID, r); err != nil {
		return err
	}
	return tx.Commit()
}

// Get loads one entry.
func (db *DB) Get(ctx context.Context, id string) (*models.Entry, error) {
	var (
		e       models.Entry
		r       row
		created time.Time
		updated time.Time
	)
	err := db.conn.QueryRowContext(ctx, `
		SELECT id, title, excerpt, cover_url, cover_alt, content_doc, content_markup,
			status, journals, collections, checksum, created_at, updated_at
		FROM entries WHERE id = ?
	`, id).Scan(&e.ID, &r.title, &r.excerpt, &r.coverURL, &r.coverAlt, &r.doc, &r.markup,
		&r.status, &r.journals, &r.collections, &e.Checksum, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get entry: %w", err)
	}

	e.Title, e.Excerpt = r.title, r.excerpt
	e.CoverImageURL, e.CoverImageAlt = r.coverURL, r.coverAlt
	e.Status = models.Status(r.status)
	e.CreatedAt, e.UpdatedAt = created, updated
	_ = json.Unmarshal([]byte(r.journals), &e.Journals)
	_ = json.Unmarshal([]byte(r.collections), &e.Collections)
	if r.doc != "" || r.markup != "" {
		e.Content = &models.Content{Markup: r.markup}
		if doc, ok := richtext.ParseDoc(json.RawMessage(r.doc)); ok {
			e.Content.Doc = doc
		}
	}
	return &e, nil
}

// List returns entry metadata matching q and the total number of matches.
func (db *DB) List(ctx context.Context, q ListQuery) ([]models.EntryMetadata, int, error) {
	if q.Limit <= 0 {
		q.Limit = 50
	}
	var (
		where []string
		args  []any
	)
	if q.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(q.Status))
	}
	if q.Journal != "" {
		where = append(where, "EXISTS (SELECT 1 FROM json_each(entries.journals) WHERE value = ?)")
		args = append(args, q.Journal)
	}
	if q.Collection != "" {
		where = append(where, "EXISTS (SELECT 1 FROM json_each(entries.collections) WHERE value = ?)")
		args = append(args, q.Collection)
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := db.conn.QueryRowContext(ctx, `SELECT count(*) FROM entries`+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("store: count entries: %w", err)
	}

	order := "updated_at DESC"
	switch q.Sort {
	case "created":
		order = "created_at DESC"
	case "title":
		order = "title COLLATE NOCASE ASC"
	}
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, title, excerpt, status, checksum, updated_at FROM entries`+clause+
			` ORDER BY `+order+` LIMIT ? OFFSET ?`,
		append(args, q.Limit, q.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("store: list entries: %w", err)
	}
	defer rows.Close()

	out := []models.EntryMetadata{}
	for rows.Next() {
		var m models.EntryMetadata
		var status string
		if err := rows.Scan(&m.ID, &m.Title, &m.Excerpt, &status, &m.Checksum, &m.UpdatedAt); err != nil {
			return nil, 0, err
		}
		m.Status = models.Status(status)
		out = append(out, m)
	}
	return out, total, rows.Err()
}

// Delete removes an entry and its search row.
func (db *DB) Delete(ctx context.Context, id string) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx, `DELETE FROM entries WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("store: delete entry: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.ErrNotFound
	}
	ftsDelete(ctx, tx, id)
	return tx.Commit()
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
