// Package kb is the help-desk knowledge base: a YAML file of error codes with
// their explanation and next steps, searchable by keyword.
package kb

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"

	"gopkg.in/yaml.v3"

	"github.com/lhdbsbz/deskbot/internal/config"
)

// Entry is one knowledge-base article, keyed by its code.
type Entry struct {
	Code        string   `yaml:"code" json:"code"`
	Title       string   `yaml:"title" json:"title"`
	Description string   `yaml:"description" json:"description"`
	Steps       []string `yaml:"steps" json:"steps,omitempty"`
	Keywords    []string `yaml:"keywords" json:"keywords,omitempty"`
}

type document struct {
	Entries []Entry `yaml:"entries"`
}

type index struct {
	entries []Entry
	byCode  map[string]int
	// lowercased code, title, description and keywords per entry
	haystack []string
}

func newIndex(entries []Entry) (*index, error) {
	idx := &index{
		entries:  make([]Entry, 0, len(entries)),
		byCode:   make(map[string]int, len(entries)),
		haystack: make([]string, 0, len(entries)),
	}
	for i, e := range entries {
		e.Code = strings.TrimSpace(e.Code)
		if e.Code == "" {
			return nil, fmt.Errorf("entry %d: empty code", i)
		}
		if _, dup := idx.byCode[e.Code]; dup {
			return nil, fmt.Errorf("entry %d: duplicate code %q", i, e.Code)
		}
		idx.byCode[e.Code] = len(idx.entries)
		idx.entries = append(idx.entries, e)

		fields := append([]string{e.Code, e.Title, e.Description}, e.Keywords...)
		idx.haystack = append(idx.haystack, strings.ToLower(strings.Join(fields, "\n")))
	}
	return idx, nil
}

// Store serves lookups from an in-memory index that is swapped atomically on
// reload, so readers never see a half-loaded file.
type Store struct {
	path   string
	logger *slog.Logger
	cur    atomic.Pointer[index]
}

// Open loads the knowledge base at path.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{path: path, logger: logger}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// New builds a store over fixed entries. Reload is a no-op for it.
func New(entries []Entry) (*Store, error) {
	idx, err := newIndex(entries)
	if err != nil {
		return nil, err
	}
	s := &Store{logger: slog.Default()}
	s.cur.Store(idx)
	return s, nil
}

// Parse decodes knowledge-base YAML.
func Parse(data []byte) ([]Entry, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse knowledge base: %w", err)
	}
	return doc.Entries, nil
}

// Reload re-reads the file. On failure the previous index stays in place.
func (s *Store) Reload() error {
	if s.path == "" {
		return nil
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("read knowledge base: %w", err)
	}
	entries, err := Parse(data)
	if err != nil {
		return err
	}
	idx, err := newIndex(entries)
	if err != nil {
		return fmt.Errorf("index knowledge base: %w", err)
	}
	s.cur.Store(idx)
	s.logger.Info("knowledge base loaded", "path", s.path, "entries", len(idx.entries))
	return nil
}

// Watch reloads the store whenever its file changes. Blocks until ctx is done.
func (s *Store) Watch(ctx context.Context) {
	if s.path == "" {
		return
	}
	config.WatchFile(ctx, s.path, func() {
		if err := s.Reload(); err != nil {
			s.logger.Warn("knowledge base reload failed", "path", s.path, "error", err)
		}
	})
}

// Len returns the number of entries currently loaded.
func (s *Store) Len() int {
	return len(s.cur.Load().entries)
}

// Lookup returns the entry with exactly this code.
func (s *Store) Lookup(ctx context.Context, code string) (Entry, bool, error) {
	if err := ctx.Err(); err != nil {
		return Entry{}, false, err
	}
	idx := s.cur.Load()
	i, ok := idx.byCode[strings.TrimSpace(code)]
	if !ok {
		return Entry{}, false, nil
	}
	return idx.entries[i], true, nil
}

// Search returns entries whose code, title, description or keywords contain
// keyword, case-insensitively, in file order.
func (s *Store) Search(ctx context.Context, keyword string) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	needle := strings.ToLower(strings.TrimSpace(keyword))
	if needle == "" {
		return nil, nil
	}
	idx := s.cur.Load()
	var hits []Entry
	for i, hay := range idx.haystack {
		if strings.Contains(hay, needle) {
			hits = append(hits, idx.entries[i])
		}
	}
	return hits, nil
}
