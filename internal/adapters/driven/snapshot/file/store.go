// Package file provides a filesystem snapshot store. Each chunk is one
// JSON file under a per-source directory; comparing a fresh chunk to its
// snapshot decides whether a source needs re-indexing.
package file

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/custodia-labs/grounder/internal/core/domain"
	"github.com/custodia-labs/grounder/internal/core/ports/driven"
)

// Ensure Store implements the interface.
var _ driven.SnapshotStore = (*Store)(nil)

// Config holds configuration for the snapshot store.
type Config struct {
	// Root is the snapshot directory (required). One subdirectory per
	// source resource.
	Root string

	// AuditRoot, when set, receives a timestamped copy of each source's
	// previous snapshot before it is replaced.
	AuditRoot string
}

// Store keeps chunk snapshots on the local filesystem.
type Store struct {
	root      string
	auditRoot string
}

// New creates a snapshot store rooted at cfg.Root.
func New(cfg Config) (*Store, error) {
	if cfg.Root == "" {
		return nil, fmt.Errorf("snapshot: root directory is required")
	}
	if err := os.MkdirAll(cfg.Root, 0o755); err != nil {
		return nil, fmt.Errorf("create snapshot root: %w", err)
	}
	return &Store{root: cfg.Root, auditRoot: cfg.AuditRoot}, nil
}

// Load reads the snapshot for one chunk. The second return is false
// when no snapshot exists.
func (s *Store) Load(resource, filename string) (domain.Chunk, bool, error) {
	path := filepath.Join(s.sourceDir(resource), filename)

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return domain.Chunk{}, false, nil
	}
	if err != nil {
		return domain.Chunk{}, false, fmt.Errorf("read snapshot %s: %w", filename, err)
	}

	var chunk domain.Chunk
	if err := json.Unmarshal(data, &chunk); err != nil {
		return domain.Chunk{}, false, fmt.Errorf("decode snapshot %s: %w", filename, err)
	}
	return chunk, true, nil
}

// Replace swaps the source's snapshot directory for one holding exactly
// the given chunks. The new state is staged in a sibling directory first
// so a failure mid-write leaves the previous snapshot intact.
func (s *Store) Replace(resource string, chunks []domain.Chunk) error {
	dir := s.sourceDir(resource)
	staging := dir + ".staging"

	if err := os.RemoveAll(staging); err != nil {
		return fmt.Errorf("clear staging: %w", err)
	}
	if err := os.MkdirAll(staging, 0o755); err != nil {
		return fmt.Errorf("create staging: %w", err)
	}

	for _, chunk := range chunks {
		data, err := json.MarshalIndent(chunk, "", "  ")
		if err != nil {
			return fmt.Errorf("encode snapshot %s: %w", chunk.SnapshotFilename(), err)
		}
		path := filepath.Join(staging, chunk.SnapshotFilename())
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return fmt.Errorf("write snapshot %s: %w", chunk.SnapshotFilename(), err)
		}
	}

	if err := s.archive(resource, dir); err != nil {
		return err
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("remove previous snapshot: %w", err)
	}
	if err := os.Rename(staging, dir); err != nil {
		return fmt.Errorf("promote staging: %w", err)
	}
	return nil
}

// archive moves the current snapshot into the audit mirror, keyed by
// replacement time.
func (s *Store) archive(resource, dir string) error {
	if s.auditRoot == "" {
		return nil
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil
	}

	stamp := time.Now().UTC().Format("20060102T150405Z")
	dest := filepath.Join(s.auditRoot, sanitizePathComponent(resource), stamp)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create audit dir: %w", err)
	}
	if err := os.Rename(dir, dest); err != nil {
		return fmt.Errorf("archive snapshot: %w", err)
	}
	return nil
}

func (s *Store) sourceDir(resource string) string {
	return filepath.Join(s.root, sanitizePathComponent(resource))
}

// sanitizePathComponent keeps resource names filesystem-safe.
func sanitizePathComponent(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '-', r == '_', r == '.':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "unnamed"
	}
	return b.String()
}
