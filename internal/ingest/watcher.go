package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/joseph-ayodele/docrepo/constants"
	"github.com/joseph-ayodele/docrepo/internal/common"
)

// InboxModule is the source module recorded for files picked up by Watch.
const InboxModule = "inbox"

type WatchConfig struct {
	Dir          string        // watched recursively
	SourceModule string        // defaults to InboxModule
	InitialScan  bool          // emit files already present at start
	Debounce     time.Duration // coalesce create/write bursts per file
	SkipHidden   bool
}

// StartWatcher emits paths of PDFs created in or written to cfg.Dir.
// Both channels are closed once ctx is done.
func StartWatcher(ctx context.Context, cfg WatchConfig, logger *slog.Logger) (<-chan string, <-chan error, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if strings.TrimSpace(cfg.Dir) == "" {
		return nil, nil, common.NewAppError(common.CodeValidation, "watch dir is required", common.ErrInvalidInput)
	}
	root, err := filepath.Abs(cfg.Dir)
	if err != nil {
		return nil, nil, fmt.Errorf("resolve watch dir: %w", err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Error("failed to create fsnotify watcher", "error", err)
		return nil, nil, err
	}
	var existing []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if path != root && cfg.SkipHidden && IsHidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return w.Add(path)
		}
		if cfg.InitialScan && wanted(path) {
			existing = append(existing, path)
		}
		return nil
	})
	if err != nil {
		logger.Error("failed to watch directory", "dir", root, "error", err)
		_ = w.Close()
		return nil, nil, err
	}

	evCh := make(chan string, 64)
	errCh := make(chan error, 1)
	go func() {
		defer close(evCh)
		defer close(errCh)
		defer func() {
			if err := w.Close(); err != nil {
				logger.Warn("failed to close watcher", "error", err)
			}
		}()

		emit := func(p string) bool {
			select {
			case evCh <- p:
				return true
			case <-ctx.Done():
				return false
			}
		}
		for _, p := range existing {
			if !emit(p) {
				return
			}
		}

		pending := map[string]struct{}{}
		var timer *time.Timer
		var flush <-chan time.Time
		flushPending := func() bool {
			for p := range pending {
				delete(pending, p)
				if !emit(p) {
					return false
				}
			}
			return true
		}

		for {
			select {
			case <-ctx.Done():
				if timer != nil {
					timer.Stop()
				}
				return
			case e, ok := <-w.Events:
				if !ok {
					return
				}
				if cfg.SkipHidden && IsHidden(e.Name) {
					continue
				}
				added := false
				if e.Has(fsnotify.Create) {
					for _, p := range watchNewDir(w, e.Name, cfg.SkipHidden, logger) {
						pending[p] = struct{}{}
						added = true
					}
				}
				// A rename is reported on the old name; the new name arrives as Create.
				if wanted(e.Name) && (e.Has(fsnotify.Create) || e.Has(fsnotify.Write)) {
					pending[e.Name] = struct{}{}
					added = true
				}
				if !added {
					continue
				}
				if cfg.Debounce <= 0 {
					if !flushPending() {
						return
					}
					continue
				}
				if timer == nil {
					timer = time.NewTimer(cfg.Debounce)
				} else {
					timer.Reset(cfg.Debounce)
				}
				flush = timer.C
			case <-flush:
				flush = nil
				if !flushPending() {
					return
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logger.Error("watcher error", "error", err)
				select {
				case errCh <- err:
				default:
				}
			}
		}
	}()

	return evCh, errCh, nil
}

// watchNewDir starts watching path if it is a directory and returns PDFs
// already inside it, which would otherwise be missed. A directory moved into
// the tree reports only its own Create.
func watchNewDir(w *fsnotify.Watcher, path string, skipHidden bool, logger *slog.Logger) []string {
	fi, err := os.Stat(path)
	if err != nil || !fi.IsDir() {
		return nil
	}
	var found []string
	_ = filepath.WalkDir(path, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return nil
		}
		if p != path && skipHidden && IsHidden(p) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if err := w.Add(p); err != nil {
				logger.Warn("failed to add new directory to watcher", "path", p, "error", err)
			}
			return nil
		}
		if wanted(p) {
			found = append(found, p)
		}
		return nil
	})
	return found
}

func wanted(path string) bool {
	return constants.IsAllowedExt(filepath.Ext(path))
}

// Watch ingests every PDF reported by StartWatcher until ctx is done.
// Each file is linked to (cfg.SourceModule, path relative to cfg.Dir).
// Failed files are logged; a later write to the same file retries it.
func (s *Service) Watch(ctx context.Context, cfg WatchConfig) error {
	if cfg.SourceModule == "" {
		cfg.SourceModule = InboxModule
	}
	root, err := filepath.Abs(cfg.Dir)
	if err != nil {
		return fmt.Errorf("resolve watch dir: %w", err)
	}
	cfg.Dir = root

	events, errs, err := StartWatcher(ctx, cfg, s.logger)
	if err != nil {
		return err
	}
	s.logger.Info("watching inbox", "dir", root, "source_module", cfg.SourceModule)
	for {
		select {
		case path, ok := <-events:
			if !ok {
				return ignoreCancel(ctx.Err())
			}
			item, err := relativeItemID(root, path)
			if err != nil {
				s.logger.Warn("skipping file outside inbox", "path", path, "error", err)
				continue
			}
			res := s.ingestOne(ctx, path, "", cfg.SourceModule, item)
			if res.Err == "" {
				s.logger.Info("inbox file ingested", "path", path, "document_id", res.DocumentID, "outcome", res.Outcome)
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			s.logger.Warn("inbox watcher reported an error", "error", err)
		}
	}
}

func ignoreCancel(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
