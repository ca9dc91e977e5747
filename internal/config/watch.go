package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads the config file when it changes on disk. A reload that
// fails to parse or validate is logged and discarded — the previous config
// stays in effect, so a half-saved edit never takes down a running process.
type Watcher struct {
	holder *Holder
	logger *slog.Logger
	fsw    *fsnotify.Watcher
	events chan *Config
}

// NewWatcher creates a watcher over the holder's config file. The parent
// directory is watched rather than the file itself: editors that save via
// rename would otherwise silently detach the watch.
func NewWatcher(holder *Holder, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config: creating file watcher: %w", err)
	}

	if err := fsw.Add(filepath.Dir(holder.Path())); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("config: watching %s: %w", filepath.Dir(holder.Path()), err)
	}

	return &Watcher{
		holder: holder,
		logger: logger,
		fsw:    fsw,
		events: make(chan *Config, 1),
	}, nil
}

// Events returns a channel carrying each successfully reloaded config.
// The channel holds one pending reload; rapid successive saves collapse
// into the latest one.
func (w *Watcher) Events() <-chan *Config {
	return w.events
}

// Run processes filesystem events until ctx is cancelled. It owns the
// underlying fsnotify watcher and closes it on return.
func (w *Watcher) Run(ctx context.Context) {
	defer w.fsw.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}

			if filepath.Clean(ev.Name) != filepath.Clean(w.holder.Path()) {
				continue
			}

			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}

			w.reload()
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}

			w.logger.Warn("config watch error", slog.String("error", err.Error()))
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := Load(w.holder.Path())
	if err != nil {
		w.logger.Warn("config reload failed, keeping previous config",
			slog.String("path", w.holder.Path()),
			slog.String("error", err.Error()),
		)

		return
	}

	w.holder.Update(cfg)
	w.logger.Info("config reloaded", slog.String("path", w.holder.Path()))

	// Replace any pending event so subscribers always see the newest config.
	select {
	case w.events <- cfg:
	default:
		select {
		case <-w.events:
		default:
		}

		w.events <- cfg
	}
}
