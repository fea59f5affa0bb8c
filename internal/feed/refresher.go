package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"homebids/internal/models"

	"github.com/fsnotify/fsnotify"
)

// Importer stores one snapshot. *service.Service implements it.
type Importer interface {
	ImportExternalSnapshot(ctx context.Context, ratings []models.ExternalRating, reviews []models.Review) error
}

// Refresher re-reads the snapshot file on an interval and imports it when
// the file has changed since the last successful import.
type Refresher struct {
	path     string
	interval time.Duration
	importer Importer
	logger   *slog.Logger
	now      func() time.Time

	mu       sync.Mutex
	lastMod  time.Time
	lastSize int64
}

func NewRefresher(path string, interval time.Duration, importer Importer, logger *slog.Logger) *Refresher {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Refresher{
		path:     filepath.Clean(path),
		interval: interval,
		importer: importer,
		logger:   logger.With("component", "feed"),
		now:      time.Now,
	}
}

// Run refreshes once immediately, then on every tick and whenever the
// snapshot file is written, until ctx is done. Failed refreshes are logged
// and retried on the next trigger.
func (r *Refresher) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	var events <-chan fsnotify.Event
	var watchErrs <-chan error
	watcher, err := r.watch()
	if err != nil {
		r.logger.Warn("file watch unavailable, polling only", "path", r.path, "err", err)
	} else {
		defer watcher.Close()
		events, watchErrs = watcher.Events, watcher.Errors
	}

	for {
		if _, err := r.Refresh(ctx); err != nil && ctx.Err() == nil {
			r.logger.Error("feed refresh failed", "path", r.path, "err", err)
		}

	wait:
		for {
			select {
			case <-ctx.Done():
				r.logger.Info("context canceled, feed refresher exiting")
				return nil
			case <-ticker.C:
				break wait
			case event, ok := <-events:
				if !ok {
					events = nil
					continue
				}
				if filepath.Clean(event.Name) == r.path && event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
					break wait
				}
			case err, ok := <-watchErrs:
				if !ok {
					watchErrs = nil
					continue
				}
				r.logger.Warn("file watch error", "path", r.path, "err", err)
			}
		}
	}
}

// watch observes the snapshot's directory, so replacing the file by rename
// is seen as well.
func (r *Refresher) watch() (*fsnotify.Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(filepath.Dir(r.path)); err != nil {
		watcher.Close()
		return nil, err
	}
	return watcher, nil
}

// Refresh imports the snapshot if the file changed. It reports whether an
// import happened.
func (r *Refresher) Refresh(ctx context.Context) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	info, err := os.Stat(r.path)
	if errors.Is(err, os.ErrNotExist) {
		r.logger.Debug("feed snapshot not present", "path", r.path)
		return false, nil
	} else if err != nil {
		return false, fmt.Errorf("feed.Refresher.Refresh: %w", err)
	}

	if info.ModTime().Equal(r.lastMod) && info.Size() == r.lastSize {
		return false, nil
	}

	err = Import(ctx, r.path, r.importer, r.now())
	if err != nil {
		return false, fmt.Errorf("feed.Refresher.Refresh: %w", err)
	}

	r.lastMod, r.lastSize = info.ModTime(), info.Size()
	r.logger.Info("feed snapshot imported", "path", r.path)
	return true, nil
}

// Import loads the snapshot at path and hands it to importer.
func Import(ctx context.Context, path string, importer Importer, now time.Time) error {
	snap, err := LoadSnapshot(path)
	if err != nil {
		return err
	}

	err = importer.ImportExternalSnapshot(ctx, snap.Ratings(now), snap.Reviews())
	if err != nil {
		return fmt.Errorf("feed.Import: %w", err)
	}
	return nil
}
