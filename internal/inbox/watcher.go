package inbox

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watch processes waiting files, then watches the inbox root and imports
// new files until ctx is cancelled. Subdirectories, including the processed
// and failed directories, are not watched.
//
// Create and Write events are collected and processed once no further
// events arrive for the debounce interval, so files written in several
// chunks are read whole.
func (in *Inbox) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(in.root); err != nil {
		return err
	}

	in.logger.Info("watcher: started", slog.String("root", in.root))

	if _, err := in.Sync(ctx); err != nil {
		in.logger.Warn("watcher: initial sync failed", slog.String("error", err.Error()))
	}

	pending := make(map[string]struct{})
	var settleTimer *time.Timer
	var settleCh <-chan time.Time

	scheduleSettle := func() {
		if settleTimer == nil {
			settleTimer = time.NewTimer(in.debounce)
			settleCh = settleTimer.C
		} else {
			settleTimer.Reset(in.debounce)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if settleTimer != nil {
				settleTimer.Stop()
			}
			in.logger.Info("watcher: stopped")
			return nil

		case <-settleCh:
			in.processPending(ctx, pending)
			clear(pending)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			rel, relErr := filepath.Rel(in.root, ev.Name)
			if relErr != nil || strings.Contains(rel, string(filepath.Separator)) {
				continue
			}
			if strings.HasPrefix(rel, ".") || !in.files.Accepts(rel) {
				continue
			}
			pending[rel] = struct{}{}
			scheduleSettle()

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			in.logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// processPending imports the collected files in name order. Files that were
// removed before the debounce fired are skipped.
func (in *Inbox) processPending(ctx context.Context, pending map[string]struct{}) {
	paths := make([]string, 0, len(pending))
	for p := range pending {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	for _, p := range paths {
		rep, err := in.Process(ctx, p)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				in.logger.Debug("watcher: file gone", slog.String("path", p))
				continue
			}
			in.logger.Warn("watcher: process failed", slog.String("path", p), slog.String("error", err.Error()))
			continue
		}
		in.logger.Debug("watcher: imported", slog.String("path", p), slog.String("status", string(rep.Status)))
	}
}
