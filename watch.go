package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce coalesces the burst of events an editor or the detector
// produces for one save.
const DefaultDebounce = 150 * time.Millisecond

// WatchOption configures RunWatch.
type WatchOption func(*watchConfig)

type watchConfig struct {
	debounce     time.Duration
	settingsPath string
}

// WithDebounce sets how long to wait for events to settle.
func WithDebounce(d time.Duration) WatchOption {
	return func(c *watchConfig) {
		if d > 0 {
			c.debounce = d
		}
	}
}

// WithSettingsFile also watches a settings file and applies it on change.
func WithSettingsFile(path string) WatchOption {
	return func(c *watchConfig) {
		c.settingsPath = path
	}
}

// RunWatch activates the session whenever the request file changes and
// passes every published suggestion to onResult. An existing request file is
// processed once at startup. It returns when ctx is done.
func RunWatch(ctx context.Context, catalog *Catalog, session *Session, requestPath string, onResult func(Suggestion), opts ...WatchOption) error {
	cfg := watchConfig{debounce: DefaultDebounce}
	for _, opt := range opts {
		opt(&cfg)
	}

	requestPath, err := filepath.Abs(requestPath)
	if err != nil {
		return err
	}
	if cfg.settingsPath != "" {
		if cfg.settingsPath, err = filepath.Abs(cfg.settingsPath); err != nil {
			return err
		}
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fsw.Close()

	// Watch directories: writers commonly replace files by rename.
	dirs := map[string]bool{filepath.Dir(requestPath): true}
	if cfg.settingsPath != "" {
		dirs[filepath.Dir(cfg.settingsPath)] = true
	}
	for dir := range dirs {
		if err := fsw.Add(dir); err != nil {
			return err
		}
	}

	timer := time.NewTimer(cfg.debounce)
	timer.Stop()
	defer timer.Stop()

	var settingsChanged, retry bool
	activate := func() {
		if settingsChanged {
			settingsChanged = false
			applySettings(catalog, session, cfg.settingsPath)
		}
		req, err := LoadRequest(catalog, requestPath)
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				logger.Warn("ignoring request", zap.Error(err))
			}
			return
		}
		id, err := session.Activate(req.Stash, req.Queue)
		if errors.Is(err, ErrBusy) {
			retry = true
			return
		}
		logger.Info("activated", zap.Uint64("activation", id), zap.Int("stash", len(req.Stash)), zapCombo("queue", req.Queue))
	}

	activate()
	for {
		select {
		case <-ctx.Done():
			session.Wait()
			return nil

		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			switch filepath.Clean(ev.Name) {
			case requestPath:
			case cfg.settingsPath:
				settingsChanged = true
			default:
				continue
			}
			timer.Reset(cfg.debounce)

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watch error", zap.Error(err))

		case <-timer.C:
			activate()

		case res := <-session.Results():
			onResult(res)
			if retry {
				retry = false
				activate()
			}
		}
	}
}

func applySettings(catalog *Catalog, session *Session, path string) {
	settings, err := LoadSettings(path)
	if err == nil {
		err = settings.Validate(catalog)
	}
	if err != nil {
		logger.Warn("keeping previous settings", zap.Error(err))
		return
	}
	session.SetSettings(settings)
	logger.Info("reloaded settings", zap.String("path", path))
}
