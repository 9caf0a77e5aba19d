package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Watcher ingests JSON memory files dropped into a directory. Operators
// (or offline jobs) export curated data models as files; the watcher keeps
// the memory database in sync with them.
type Watcher struct {
	dir     string
	manager *Manager
	watcher *fsnotify.Watcher
	logger  zerolog.Logger
	done    chan struct{}
}

// fileEntry is the on-disk JSON shape of a memory file
type fileEntry struct {
	Topic  string          `json:"topic"`
	Model  json.RawMessage `json:"model"`
	Sample json.RawMessage `json:"sample,omitempty"`
}

// NewWatcher creates a watcher over dir, ingesting existing files first
func NewWatcher(dir string, manager *Manager, logger zerolog.Logger) (*Watcher, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create memory directory: %w", err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, fmt.Errorf("failed to watch memory directory: %w", err)
	}

	return &Watcher{
		dir:     dir,
		manager: manager,
		watcher: fw,
		logger:  logger.With().Str("component", "memory-watcher").Logger(),
		done:    make(chan struct{}),
	}, nil
}

// Start ingests existing files and then follows directory changes until
// Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.ingestAll(ctx); err != nil {
		return err
	}

	go w.loop(ctx)
	w.logger.Info().Str("dir", w.dir).Msg("Memory watcher started")
	return nil
}

// Stop halts the watch loop
func (w *Watcher) Stop() error {
	close(w.done)
	return w.watcher.Close()
}

func (w *Watcher) loop(ctx context.Context) {
	for {
		select {
		case <-w.done:
			return
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !strings.HasSuffix(event.Name, ".json") {
				continue
			}
			switch {
			case event.Op.Has(fsnotify.Create) || event.Op.Has(fsnotify.Write):
				if err := w.ingestFile(ctx, event.Name); err != nil {
					w.logger.Warn().Err(err).Str("file", event.Name).Msg("Failed to ingest memory file")
				}
			case event.Op.Has(fsnotify.Remove) || event.Op.Has(fsnotify.Rename):
				id := entryID(event.Name)
				if err := w.manager.Delete(ctx, id); err != nil {
					w.logger.Warn().Err(err).Str("file", event.Name).Msg("Failed to remove memory entry")
				}
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn().Err(err).Msg("Memory watcher error")
		}
	}
}

// ingestAll loads every JSON file already present in the directory
func (w *Watcher) ingestAll(ctx context.Context) error {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return fmt.Errorf("failed to read memory directory: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		path := filepath.Join(w.dir, entry.Name())
		if err := w.ingestFile(ctx, path); err != nil {
			w.logger.Warn().Err(err).Str("file", path).Msg("Skipping malformed memory file")
		}
	}
	return nil
}

// ingestFile parses one memory file and upserts it, keyed by filename
func (w *Watcher) ingestFile(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read memory file: %w", err)
	}

	var fe fileEntry
	if err := json.Unmarshal(data, &fe); err != nil {
		return fmt.Errorf("failed to parse memory file: %w", err)
	}
	if fe.Topic == "" {
		return fmt.Errorf("memory file missing topic")
	}

	return w.manager.Save(ctx, Entry{
		ID:     entryID(path),
		Topic:  fe.Topic,
		Model:  string(fe.Model),
		Sample: string(fe.Sample),
		Source: path,
	})
}

// entryID derives a stable entry id from a file path
func entryID(path string) string {
	base := filepath.Base(path)
	return "file:" + strings.TrimSuffix(base, ".json")
}
