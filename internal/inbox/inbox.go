// Package inbox imports payload files dropped into a watched directory.
//
// Every accepted file is imported once: successful and already-imported
// payloads move to the processed directory, rejected payloads move to the
// failed directory next to a ".error.txt" file describing the rejection.
package inbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/starford/scribe/internal/apperr"
	"github.com/starford/scribe/internal/entryservice"
	"github.com/starford/scribe/internal/importer"
	"github.com/starford/scribe/internal/storage"
)

// Default subdirectory names, relative to the inbox root.
const (
	DefaultProcessedDir = "processed"
	DefaultFailedDir    = "failed"
)

// ErrorSuffix is appended to a failed file's name for its sidecar.
const ErrorSuffix = ".error.txt"

// Status is the outcome of processing one file.
type Status string

const (
	StatusImported  Status = "imported"
	StatusDuplicate Status = "duplicate"
	StatusFailed    Status = "failed"
)

// Importer stores parsed payloads.
type Importer interface {
	Import(ctx context.Context, req entryservice.ImportRequest) (*entryservice.ImportOutcome, error)
}

// Report describes what happened to one inbox file.
type Report struct {
	Path     string   `json:"path"`
	MovedTo  string   `json:"moved_to"`
	Status   Status   `json:"status"`
	EntryIDs []string `json:"entry_ids,omitempty"`
	Error    string   `json:"error,omitempty"`
}

// Inbox processes payload files under a storage root.
type Inbox struct {
	files        storage.Provider
	root         string
	imp          Importer
	processedDir string
	failedDir    string
	debounce     time.Duration
	logger       *slog.Logger
	now          func() time.Time
}

// Option configures an Inbox.
type Option func(*Inbox)

// WithProcessedDir overrides DefaultProcessedDir.
func WithProcessedDir(dir string) Option {
	return func(in *Inbox) {
		if dir != "" {
			in.processedDir = dir
		}
	}
}

// WithFailedDir overrides DefaultFailedDir.
func WithFailedDir(dir string) Option {
	return func(in *Inbox) {
		if dir != "" {
			in.failedDir = dir
		}
	}
}

// WithDebounce sets how long the watcher waits for writes to settle.
func WithDebounce(d time.Duration) Option {
	return func(in *Inbox) {
		if d > 0 {
			in.debounce = d
		}
	}
}

// WithLogger overrides slog.Default.
func WithLogger(l *slog.Logger) Option {
	return func(in *Inbox) { in.logger = l }
}

// WithClock overrides time.Now for destination names.
func WithClock(now func() time.Time) Option {
	return func(in *Inbox) { in.now = now }
}

// New creates an Inbox over fs.
func New(fs *storage.FS, imp Importer, opts ...Option) *Inbox {
	in := &Inbox{
		files:        fs,
		root:         fs.Root(),
		imp:          imp,
		processedDir: DefaultProcessedDir,
		failedDir:    DefaultFailedDir,
		debounce:     200 * time.Millisecond,
		logger:       slog.Default(),
		now:          time.Now,
	}
	for _, o := range opts {
		o(in)
	}
	return in
}

// ModeFor picks the import mode from a file extension.
func ModeFor(path string) importer.Mode {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return importer.ModeJSON
	case ".html", ".htm":
		return importer.ModeMarkup
	}
	return importer.ModeAuto
}

// Sync processes every file currently waiting in the inbox, oldest first.
func (in *Inbox) Sync(ctx context.Context) ([]Report, error) {
	waiting, err := in.files.List("")
	if err != nil {
		return nil, err
	}

	reports := make([]Report, 0, len(waiting))
	for _, f := range waiting {
		if err := ctx.Err(); err != nil {
			return reports, err
		}
		rep, err := in.Process(ctx, f.Path)
		if err != nil {
			in.logger.Warn("inbox: process failed", slog.String("path", f.Path), slog.String("error", err.Error()))
			continue
		}
		reports = append(reports, rep)
	}

	in.logger.Info("inbox: sync complete", slog.Int("files", len(reports)))
	return reports, nil
}

// Process imports one file and moves it out of the inbox. The returned
// error reports file-system failures only; a rejected payload is a
// StatusFailed report.
func (in *Inbox) Process(ctx context.Context, rel string) (Report, error) {
	data, err := in.files.Read(rel)
	if err != nil {
		return Report{}, err
	}

	rep := Report{Path: rel}
	out, err := in.imp.Import(ctx, entryservice.ImportRequest{
		Payload: string(data),
		Mode:    ModeFor(rel),
		Source:  rel,
		Dedupe:  true,
	})
	switch {
	case err == nil:
		rep.Status = StatusImported
		rep.EntryIDs = out.EntryIDs()
	case errors.Is(err, apperr.ErrAlreadyExists):
		rep.Status = StatusDuplicate
		rep.Error = err.Error()
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return Report{}, err
	default:
		rep.Status = StatusFailed
		rep.Error = err.Error()
	}

	dir := in.processedDir
	if rep.Status == StatusFailed {
		dir = in.failedDir
	}
	rep.MovedTo = filepath.Join(dir, in.now().UTC().Format("20060102T150405Z")+"-"+filepath.Base(rel))
	if err := in.files.Move(rel, rep.MovedTo); err != nil {
		return rep, fmt.Errorf("inbox: move %s: %w", rel, err)
	}

	if rep.Status == StatusFailed {
		if err := in.files.Write(rep.MovedTo+ErrorSuffix, []byte(errorReport(rep.Error, out))); err != nil {
			return rep, fmt.Errorf("inbox: write error report: %w", err)
		}
	}

	in.logger.Info("inbox: processed",
		slog.String("path", rel),
		slog.String("status", string(rep.Status)),
		slog.Any("entry_ids", rep.EntryIDs),
		slog.String("moved_to", rep.MovedTo))
	return rep, nil
}

func errorReport(msg string, out *entryservice.ImportOutcome) string {
	var b strings.Builder
	b.WriteString(msg)
	b.WriteString("\n")
	if out != nil && len(out.Result.Warnings) > 0 {
		b.WriteString("\nwarnings:\n")
		for _, w := range out.Result.Warnings {
			b.WriteString("- ")
			b.WriteString(w)
			b.WriteString("\n")
		}
	}
	return b.String()
}
