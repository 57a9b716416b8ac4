// Package localfile provides a connector reading documents from a
// local directory tree.
package localfile

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/grounder/internal/core/domain"
	"github.com/custodia-labs/grounder/internal/core/ports/driven"
	"github.com/custodia-labs/grounder/internal/logger"
)

// Ensure Connector implements the interface.
var _ driven.Connector = (*Connector)(nil)

// Source config keys.
const (
	// ConfigPath is the directory (or single file) to read.
	ConfigPath = "path"

	// ConfigExtensions is a comma-separated list of file extensions to
	// include, e.g. ".md,.txt".
	ConfigExtensions = "extensions"
)

// defaultExtensions are indexed when the source doesn't narrow them.
var defaultExtensions = []string{".md", ".txt", ".rst"}

// debounceWindow coalesces filesystem event bursts into one change
// notification.
var debounceWindow = 2 * time.Second

// Connector reads documents from the local filesystem.
type Connector struct {
	source     domain.Source
	path       string
	extensions map[string]struct{}
	watcher    *fsnotify.Watcher
}

// New creates a localfile connector for the given source. The source
// config must carry the path to read.
func New(source domain.Source) (driven.Connector, error) {
	path := source.Config[ConfigPath]
	if path == "" {
		return nil, fmt.Errorf("localfile %s: %w: config key %q is required",
			source.Resource, domain.ErrInvalidInput, ConfigPath)
	}

	extensions := defaultExtensions
	if raw := source.Config[ConfigExtensions]; raw != "" {
		extensions = strings.Split(raw, ",")
	}
	extSet := make(map[string]struct{}, len(extensions))
	for _, ext := range extensions {
		extSet[strings.TrimSpace(strings.ToLower(ext))] = struct{}{}
	}

	return &Connector{source: source, path: path, extensions: extSet}, nil
}

// Type returns the source type this connector serves.
func (c *Connector) Type() domain.SourceType {
	return domain.SourceTypeLocalFile
}

// Fetch walks the configured path and returns one document per
// matching file.
func (c *Connector) Fetch(ctx context.Context) ([]domain.Document, error) {
	info, err := os.Stat(c.path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", c.path, err)
	}

	if !info.IsDir() {
		doc, err := c.readDocument(c.path)
		if err != nil {
			return nil, err
		}
		return []domain.Document{doc}, nil
	}

	var docs []domain.Document
	err = filepath.WalkDir(c.path, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && path != c.path {
				return filepath.SkipDir
			}
			return nil
		}
		if !c.wantsFile(path) {
			return nil
		}

		doc, err := c.readDocument(path)
		if err != nil {
			return err
		}
		docs = append(docs, doc)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", c.path, err)
	}
	return docs, nil
}

// Watch emits a signal whenever files under the path change, debounced
// so save bursts trigger a single re-ingestion. The channel closes when
// ctx is cancelled.
func (c *Connector) Watch(ctx context.Context) (<-chan struct{}, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	c.watcher = watcher

	if err := c.addWatchDirs(watcher); err != nil {
		watcher.Close()
		return nil, err
	}

	changes := make(chan struct{}, 1)
	go c.watchLoop(ctx, watcher, changes)
	return changes, nil
}

// Close stops any active watcher.
func (c *Connector) Close() error {
	if c.watcher != nil {
		return c.watcher.Close()
	}
	return nil
}

func (c *Connector) watchLoop(ctx context.Context, watcher *fsnotify.Watcher, changes chan<- struct{}) {
	defer close(changes)

	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if !c.relevantEvent(event) {
				continue
			}
			if event.Op.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = watcher.Add(event.Name)
					continue
				}
			}
			if timer == nil {
				timer = time.NewTimer(debounceWindow)
				fire = timer.C
			} else {
				if !timer.Stop() {
					<-timer.C
				}
				timer.Reset(debounceWindow)
			}

		case <-fire:
			timer = nil
			fire = nil
			select {
			case changes <- struct{}{}:
			default:
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logger.Warn("localfile %s: watch error: %v", c.source.Resource, err)
		}
	}
}

// relevantEvent reports whether the event concerns an indexed file or
// directory structure.
func (c *Connector) relevantEvent(event fsnotify.Event) bool {
	if !event.Op.Has(fsnotify.Create | fsnotify.Write | fsnotify.Remove | fsnotify.Rename) {
		return false
	}
	if c.wantsFile(event.Name) {
		return true
	}
	// Directory events carry no extension.
	return filepath.Ext(event.Name) == ""
}

func (c *Connector) addWatchDirs(watcher *fsnotify.Watcher) error {
	info, err := os.Stat(c.path)
	if err != nil {
		return fmt.Errorf("stat %s: %w", c.path, err)
	}
	if !info.IsDir() {
		return watcher.Add(filepath.Dir(c.path))
	}

	return filepath.WalkDir(c.path, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") && path != c.path {
			return filepath.SkipDir
		}
		return watcher.Add(path)
	})
}

func (c *Connector) wantsFile(path string) bool {
	_, ok := c.extensions[strings.ToLower(filepath.Ext(path))]
	return ok
}

func (c *Connector) readDocument(path string) (domain.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Document{}, fmt.Errorf("read %s: %w", path, err)
	}

	rel, err := filepath.Rel(c.path, path)
	if err != nil || rel == "." {
		rel = filepath.Base(path)
	}

	return domain.Document{
		Content:  string(data),
		Location: filepath.ToSlash(rel),
	}, nil
}
