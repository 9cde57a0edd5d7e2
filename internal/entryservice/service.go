// Package entryservice connects the import pipeline to the entry store.
package entryservice

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/starford/scribe/internal/apperr"
	"github.com/starford/scribe/internal/checksum"
	"github.com/starford/scribe/internal/export"
	"github.com/starford/scribe/internal/importer"
	"github.com/starford/scribe/internal/models"
	"github.com/starford/scribe/internal/richtext"
	"github.com/starford/scribe/internal/store"
)

// DefaultMaxPayloadBytes bounds a single import payload.
const DefaultMaxPayloadBytes = 1 << 20

// Entry event kinds passed to Notifier.
const (
	EventCreated = "created"
	EventUpdated = "updated"
	EventDeleted = "deleted"
)

// Notifier receives entry change notifications.
type Notifier interface {
	PublishEntryEvent(kind, id string)
}

// ImportNotifier is implemented by notifiers that also want one event per
// stored import.
type ImportNotifier interface {
	PublishImport(source string, entryIDs []string)
}

// ImportRequest is one import through the service.
type ImportRequest struct {
	Payload   string
	Mode      importer.Mode
	Overwrite bool
	// EntryID selects an existing entry to merge a single-entry payload
	// into. Empty creates new entries.
	EntryID string
	// IfMatch, when set, must equal the checksum of the entry named by
	// EntryID.
	IfMatch string
	// Source labels where the payload came from, e.g. an inbox file name.
	Source string
	// Dedupe skips payloads whose bytes were imported before.
	Dedupe bool
}

// ImportOutcome reports what an import changed.
type ImportOutcome struct {
	Result  importer.Result `json:"result"`
	Created []*models.Entry `json:"created"`
	Updated *models.Entry   `json:"updated,omitempty"`
}

// EntryIDs returns the ids of every created or updated entry.
func (o *ImportOutcome) EntryIDs() []string {
	ids := make([]string, 0, len(o.Created)+1)
	for _, e := range o.Created {
		ids = append(ids, e.ID)
	}
	if o.Updated != nil {
		ids = append(ids, o.Updated.ID)
	}
	return ids
}

// Service coordinates parsing, storage and change notification.
type Service struct {
	pipeline    *importer.Pipeline
	db          store.EntryStore
	conv        *richtext.Converter
	exporter    *export.Exporter
	notify      Notifier
	maxPayload  int
	defaultMode importer.Mode
	now         func() time.Time
	newID       func() string
}

// Option configures a Service.
type Option func(*Service)

// WithNotifier publishes entry changes to n.
func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notify = n }
}

// WithMaxPayloadBytes overrides DefaultMaxPayloadBytes.
func WithMaxPayloadBytes(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxPayload = n
		}
	}
}

// WithDefaultMode sets the mode used when a request leaves it empty.
func WithDefaultMode(m importer.Mode) Option {
	return func(s *Service) {
		if m != "" {
			s.defaultMode = m
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIDGenerator overrides the uuid entry id generator.
func WithIDGenerator(fn func() string) Option {
	return func(s *Service) { s.newID = fn }
}

// NewService creates a new entry service.
func NewService(pipeline *importer.Pipeline, db store.EntryStore, conv *richtext.Converter, opts ...Option) *Service {
	s := &Service{
		pipeline:    pipeline,
		db:          db,
		conv:        conv,
		exporter:    export.New(conv),
		maxPayload:  DefaultMaxPayloadBytes,
		defaultMode: importer.ModeAuto,
		now:         time.Now,
		newID:       uuid.NewString,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Preview parses a payload without storing anything. When EntryID is set
// the stored entry is used as the gap-fill baseline.
func (s *Service) Preview(ctx context.Context, req ImportRequest) (importer.Result, error) {
	if err := s.checkSize(req.Payload); err != nil {
		return importer.Result{}, err
	}
	preq := s.pipelineRequest(req)
	if req.EntryID != "" {
		existing, err := s.db.Get(ctx, req.EntryID)
		if err != nil {
			return importer.Result{}, err
		}
		preq.Current = existing.Fields
	}
	return s.pipeline.Parse(preq), nil
}

// Import parses a payload and stores the result. Without EntryID every
// parsed entry is created; with EntryID a single-entry payload is merged into
// the stored entry under the request's overwrite policy.
//
// A payload that yields no entries returns the parse result together with an
// error wrapping apperr.ErrImportFailed.
func (s *Service) Import(ctx context.Context, req ImportRequest) (*ImportOutcome, error) {
	if err := s.checkSize(req.Payload); err != nil {
		return nil, err
	}

	sum := checksum.Sum([]byte(req.Payload))
	if req.Dedupe {
		rec, err := s.db.LookupImport(ctx, sum)
		if err == nil {
			return nil, fmt.Errorf("%w: payload already imported from %s", apperr.ErrAlreadyExists, rec.Source)
		}
		if !errors.Is(err, apperr.ErrNotFound) {
			return nil, err
		}
	}

	var out *ImportOutcome
	var err error
	if req.EntryID != "" {
		out, err = s.mergeInto(ctx, req)
	} else {
		out, err = s.createAll(ctx, req)
	}
	if err != nil {
		return out, err
	}

	if err := s.db.RecordImport(ctx, store.ImportRecord{
		Checksum:   sum,
		Source:     req.Source,
		EntryIDs:   out.EntryIDs(),
		ImportedAt: s.now().UTC(),
	}); err != nil {
		return out, err
	}
	if n, ok := s.notify.(ImportNotifier); ok {
		n.PublishImport(req.Source, out.EntryIDs())
	}
	return out, nil
}

func (s *Service) createAll(ctx context.Context, req ImportRequest) (*ImportOutcome, error) {
	res := s.pipeline.Parse(s.pipelineRequest(req))
	out := &ImportOutcome{Result: res, Created: []*models.Entry{}}
	if err := importError(res); err != nil {
		return out, err
	}

	for _, f := range res.Entries {
		now := s.now().UTC()
		e := &models.Entry{ID: s.newID(), Fields: f, CreatedAt: now, UpdatedAt: now}
		if err := s.finalize(e); err != nil {
			return out, err
		}
		if err := s.db.Create(ctx, e); err != nil {
			return out, err
		}
		out.Created = append(out.Created, e)
		s.publish(EventCreated, e.ID)
	}
	return out, nil
}

func (s *Service) mergeInto(ctx context.Context, req ImportRequest) (*ImportOutcome, error) {
	existing, err := s.db.Get(ctx, req.EntryID)
	if err != nil {
		return nil, err
	}
	if req.IfMatch != "" && req.IfMatch != existing.Checksum {
		return nil, apperr.ErrConflict
	}

	preq := s.pipelineRequest(req)
	preq.Current = existing.Fields
	res := s.pipeline.Parse(preq)
	out := &ImportOutcome{Result: res, Created: []*models.Entry{}}
	if err := importError(res); err != nil {
		return out, err
	}
	if len(res.Entries) != 1 {
		return out, fmt.Errorf("%w: payload contains %d entries; merging needs exactly one", apperr.ErrImportFailed, len(res.Entries))
	}

	if len(res.Entries[0].Populated()) == 0 {
		// Every detected field was kept back by gap filling.
		out.Updated = existing
		return out, nil
	}
	existing.Apply(&res.Entries[0])
	existing.UpdatedAt = s.now().UTC()
	if err := s.finalize(existing); err != nil {
		return out, err
	}
	if err := s.db.Update(ctx, existing); err != nil {
		return out, err
	}
	out.Updated = existing
	s.publish(EventUpdated, existing.ID)
	return out, nil
}

// Get returns a stored entry.
func (s *Service) Get(ctx context.Context, id string) (*models.Entry, error) {
	return s.db.Get(ctx, id)
}

// List returns a page of entry metadata and the total match count.
func (s *Service) List(ctx context.Context, q store.ListQuery) ([]models.EntryMetadata, int, error) {
	return s.db.List(ctx, q)
}

// Search delegates full-text search to the store.
func (s *Service) Search(ctx context.Context, query string, limit int) ([]store.SearchResult, error) {
	return s.db.Search(ctx, query, limit)
}

// Update replaces every field of an entry with optimistic concurrency.
// Content markup is sanitized and paired with a valid document; links and
// images with unsafe URLs are dropped from a supplied document.
func (s *Service) Update(ctx context.Context, id string, f models.Fields, ifMatch string) (*models.Entry, error) {
	existing, err := s.db.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if ifMatch != "" && ifMatch != existing.Checksum {
		return nil, apperr.ErrConflict
	}
	if f.Content != nil {
		conv := s.conv.Normalize(richtext.Pair{Doc: f.Content.Doc, Markup: f.Content.Markup})
		f.Content = &models.Content{Doc: conv.Doc, Markup: conv.Markup}
	}
	existing.Fields = f
	existing.UpdatedAt = s.now().UTC()
	if err := s.finalize(existing); err != nil {
		return nil, err
	}
	if err := s.db.Update(ctx, existing); err != nil {
		return nil, err
	}
	s.publish(EventUpdated, id)
	return existing, nil
}

// Delete removes an entry.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.db.Delete(ctx, id); err != nil {
		return err
	}
	s.publish(EventDeleted, id)
	return nil
}

// Export renders a stored entry in the given format.
func (s *Service) Export(ctx context.Context, id string, format export.Format) (string, error) {
	e, err := s.db.Get(ctx, id)
	if err != nil {
		return "", err
	}
	return s.exporter.Render(&e.Fields, format)
}

// finalize gives the entry a valid content document and recomputes its
// checksum.
func (s *Service) finalize(e *models.Entry) error {
	if e.Content == nil || !richtext.IsValidDoc(e.Content.Doc) {
		var in any
		if e.Content != nil {
			in = richtext.Pair{Doc: e.Content.Doc, Markup: e.Content.Markup}
		}
		conv := s.conv.Normalize(in)
		e.Content = &models.Content{Doc: conv.Doc, Markup: conv.Markup}
	}
	sum, err := checksum.JSON(e.Fields)
	if err != nil {
		return fmt.Errorf("entryservice: checksum: %w", err)
	}
	e.Checksum = sum
	return nil
}

func (s *Service) pipelineRequest(req ImportRequest) importer.Request {
	mode := req.Mode
	if mode == "" {
		mode = s.defaultMode
	}
	return importer.Request{Payload: req.Payload, Mode: mode, Overwrite: req.Overwrite}
}

func (s *Service) checkSize(payload string) error {
	if len(payload) > s.maxPayload {
		return fmt.Errorf("%w: %d bytes exceeds limit of %d", apperr.ErrPayloadTooLarge, len(payload), s.maxPayload)
	}
	return nil
}

func (s *Service) publish(kind, id string) {
	if s.notify != nil {
		s.notify.PublishEntryEvent(kind, id)
	}
}

func importError(res importer.Result) error {
	if res.Success {
		return nil
	}
	reason := res.Error
	if reason == "" {
		reason = strings.Join(res.Warnings, "; ")
	}
	return fmt.Errorf("%w: %s", apperr.ErrImportFailed, reason)
}
