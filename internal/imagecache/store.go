// Package imagecache remembers, per conversation, the last image a user sent
// so a later "read it" can run text extraction on it.
package imagecache

import (
	"context"
	"sync"
	"time"

	"github.com/lhdbsbz/deskbot/internal/conversation"
)

// DefaultTTL is how long a pending image stays readable.
const DefaultTTL = 2 * time.Minute

// PendingImage is an unread image waiting for an OCR request.
type PendingImage struct {
	MediaID  string    `json:"mediaId"`
	StoredAt time.Time `json:"storedAt"`
}

// Store holds at most one pending image per conversation.
//
// Put overwrites whatever is there. Peek and Consume treat entries older than
// the TTL as absent and evict them. Consume removes the entry it returns and
// is atomic with respect to every other call on the same key.
type Store interface {
	Put(ctx context.Context, key conversation.Key, mediaID string) error
	Peek(ctx context.Context, key conversation.Key) (PendingImage, bool, error)
	Consume(ctx context.Context, key conversation.Key) (PendingImage, bool, error)
}

// MemoryStore is a process-local Store.
type MemoryStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[conversation.Key]PendingImage
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[conversation.Key]PendingImage),
	}
}

// WithClock replaces the time source. Used by tests.
func (s *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
	return s
}

func (s *MemoryStore) Put(_ context.Context, key conversation.Key, mediaID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = PendingImage{MediaID: mediaID, StoredAt: s.now()}
	return nil
}

func (s *MemoryStore) Peek(_ context.Context, key conversation.Key) (PendingImage, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	img, ok := s.liveLocked(key)
	return img, ok, nil
}

func (s *MemoryStore) Consume(_ context.Context, key conversation.Key) (PendingImage, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	img, ok := s.liveLocked(key)
	if ok {
		delete(s.entries, key)
	}
	return img, ok, nil
}

// Len returns the number of stored entries, expired ones included.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// liveLocked returns the entry for key if it has not expired. An expired
// entry is deleted. s.mu must be held.
func (s *MemoryStore) liveLocked(key conversation.Key) (PendingImage, bool) {
	img, ok := s.entries[key]
	if !ok {
		return PendingImage{}, false
	}
	if s.now().Sub(img.StoredAt) > s.ttl {
		delete(s.entries, key)
		return PendingImage{}, false
	}
	return img, true
}
