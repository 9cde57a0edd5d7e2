package store

import (
	"context"

	"github.com/starford/scribe/internal/models"
)

// EntryStore defines the persistence operations used by the entry service.
// Consumers should depend on this interface rather than the concrete *DB.
type EntryStore interface {
	Create(ctx context.Context, e *models.Entry) error
	Update(ctx context.Context, e *models.Entry) error
	Get(ctx context.Context, id string) (*models.Entry, error)
	List(ctx context.Context, q ListQuery) ([]models.EntryMetadata, int, error)
	Delete(ctx context.Context, id string) error
	Search(ctx context.Context, query string, limit int) ([]SearchResult, error)
	RecordImport(ctx context.Context, rec ImportRecord) error
	LookupImport(ctx context.Context, checksum string) (*ImportRecord, error)
	Close() error
}

// Verify *DB satisfies EntryStore at compile time.
var _ EntryStore = (*DB)(nil)
