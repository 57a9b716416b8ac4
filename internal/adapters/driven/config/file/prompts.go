// Package file provides a prompt store reading role-tagged message
// skeletons from YAML, with a built-in default when no file is
// configured. Editing the file and reloading changes answering
// behaviour without a rebuild.
package file

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/custodia-labs/grounder/internal/core/ports/driven"
)

// Ensure PromptStore implements the interface.
var _ driven.PromptStore = (*PromptStore)(nil)

// defaultSkeleton instructs the model to answer only from the supplied
// documents and cite them by number.
var defaultSkeleton = []driven.ChatMessage{
	{
		Role: "system",
		Content: "You are a documentation assistant. Answer using only the " +
			"documents provided in the user message. Every factual claim must " +
			"cite its source as [n] where n is the document number. If the " +
			"documents do not contain the answer, say so instead of guessing.",
	},
	{
		Role:    "user",
		Content: driven.UserPlaceholder,
	},
}

type promptFile struct {
	Messages []struct {
		Role    string `yaml:"role"`
		Content string `yaml:"content"`
	} `yaml:"messages"`
}

// PromptStore serves prompt skeletons, cached between reloads.
type PromptStore struct {
	mu       sync.RWMutex
	path     string
	skeleton []driven.ChatMessage
}

// New creates a prompt store. An empty path serves the built-in
// skeleton; otherwise the file is loaded immediately.
func New(path string) (*PromptStore, error) {
	store := &PromptStore{path: path}
	if err := store.Reload(); err != nil {
		return nil, err
	}
	return store, nil
}

// Skeleton returns a copy of the current prompt skeleton.
func (s *PromptStore) Skeleton() ([]driven.ChatMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]driven.ChatMessage, len(s.skeleton))
	copy(out, s.skeleton)
	return out, nil
}

// Reload re-reads the prompt file, replacing the cached skeleton.
func (s *PromptStore) Reload() error {
	skeleton := defaultSkeleton
	if s.path != "" {
		loaded, err := loadSkeleton(s.path)
		if err != nil {
			return err
		}
		skeleton = loaded
	}

	s.mu.Lock()
	s.skeleton = skeleton
	s.mu.Unlock()
	return nil
}

func loadSkeleton(path string) ([]driven.ChatMessage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read prompt file: %w", err)
	}

	var file promptFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse prompt file: %w", err)
	}
	if len(file.Messages) == 0 {
		return nil, fmt.Errorf("prompt file %s: no messages defined", path)
	}

	messages := make([]driven.ChatMessage, len(file.Messages))
	placeholderSeen := false
	for i, m := range file.Messages {
		if m.Role == "" || m.Content == "" {
			return nil, fmt.Errorf("prompt file %s: message %d missing role or content", path, i)
		}
		if m.Role == "user" && strings.Contains(m.Content, driven.UserPlaceholder) {
			placeholderSeen = true
		}
		messages[i] = driven.ChatMessage{Role: m.Role, Content: m.Content}
	}
	if !placeholderSeen {
		return nil, fmt.Errorf("prompt file %s: no user message contains %s", path, driven.UserPlaceholder)
	}
	return messages, nil
}
