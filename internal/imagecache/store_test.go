package imagecache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lhdbsbz/deskbot/internal/conversation"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestStore() (*MemoryStore, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
	return NewMemoryStore(DefaultTTL).WithClock(clock.Now), clock
}

var group = conversation.Key{Kind: conversation.KindGroup, ID: "C1"}

func TestPutPeekWithinTTL(t *testing.T) {
	ctx := context.Background()
	s, clock := newTestStore()
	require.NoError(t, s.Put(ctx, group, "m1"))

	clock.Advance(DefaultTTL)
	img, ok, err := s.Peek(ctx, group)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "m1", img.MediaID)

	// Peek does not consume.
	_, ok, _ = s.Peek(ctx, group)
	assert.True(t, ok)
}

func TestPeekAfterTTLEvicts(t *testing.T) {
	ctx := context.Background()
	s, clock := newTestStore()
	require.NoError(t, s.Put(ctx, group, "m1"))

	clock.Advance(DefaultTTL + time.Millisecond)
	_, ok, err := s.Peek(ctx, group)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 0, s.Len(), "expired entry must be removed, not just hidden")
}

func TestConsumeIsSingleUse(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore()
	require.NoError(t, s.Put(ctx, group, "m1"))

	img, ok, err := s.Consume(ctx, group)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "m1", img.MediaID)

	_, ok, err = s.Consume(ctx, group)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestConsumeExpired(t *testing.T) {
	ctx := context.Background()
	s, clock := newTestStore()
	require.NoError(t, s.Put(ctx, group, "m1"))
	clock.Advance(3 * time.Minute)

	_, ok, _ := s.Consume(ctx, group)
	assert.False(t, ok)
	assert.Equal(t, 0, s.Len())
}

func TestPutOverwritesAndRefreshes(t *testing.T) {
	ctx := context.Background()
	s, clock := newTestStore()
	require.NoError(t, s.Put(ctx, group, "old"))
	clock.Advance(90 * time.Second)
	require.NoError(t, s.Put(ctx, group, "new"))
	clock.Advance(90 * time.Second)

	img, ok, _ := s.Consume(ctx, group)
	require.True(t, ok)
	assert.Equal(t, "new", img.MediaID)
	assert.Equal(t, 0, s.Len())
}

func TestKeysAreIsolated(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore()
	other := conversation.Key{Kind: conversation.KindUser, ID: "C1"}
	require.NoError(t, s.Put(ctx, group, "m1"))

	_, ok, _ := s.Peek(ctx, other)
	assert.False(t, ok, "same id with a different kind is another conversation")
}

func TestConcurrentConsumeHasOneWinner(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(DefaultTTL)
	for round := 0; round < 50; round++ {
		require.NoError(t, s.Put(ctx, group, "m"))

		var wins atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, ok, _ := s.Consume(ctx, group); ok {
					wins.Add(1)
				}
			}()
		}
		wg.Wait()
		require.EqualValues(t, 1, wins.Load())
	}
}
