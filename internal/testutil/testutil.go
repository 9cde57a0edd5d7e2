// Package testutil provides shared test helpers for setting up databases and
// services.
package testutil

import (
	"os"
	"testing"

	"github.com/starford/scribe/internal/entryservice"
	"github.com/starford/scribe/internal/extract"
	"github.com/starford/scribe/internal/fields"
	"github.com/starford/scribe/internal/importer"
	"github.com/starford/scribe/internal/richtext"
	"github.com/starford/scribe/internal/store"
)

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T) *store.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "scribe-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := store.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestPipeline builds a pipeline over the default field registry.
func TestPipeline() (*importer.Pipeline, *richtext.Converter) {
	conv := richtext.NewConverter(nil)
	return importer.New(extract.New(fields.Default(), conv)), conv
}

// TestService wires an entry service to a temporary database.
func TestService(t *testing.T, opts ...entryservice.Option) (*entryservice.Service, *store.DB) {
	t.Helper()
	db := TestDB(t)
	p, conv := TestPipeline()
	return entryservice.NewService(p, db, conv, opts...), db
}
