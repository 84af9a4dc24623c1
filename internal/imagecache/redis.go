package imagecache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lhdbsbz/deskbot/internal/conversation"
)

const redisKeyPrefix = "deskbot:pending-image:"

// RedisStore is a Store shared by several bot instances. Expiry is enforced
// by redis itself and re-checked against StoredAt on read.
type RedisStore struct {
	client redis.UniversalClient
	ttl    time.Duration
	now    func() time.Time
}

func NewRedisStore(client redis.UniversalClient, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{client: client, ttl: ttl, now: time.Now}
}

func redisKey(key conversation.Key) string {
	return redisKeyPrefix + key.String()
}

func (s *RedisStore) Put(ctx context.Context, key conversation.Key, mediaID string) error {
	data, err := json.Marshal(PendingImage{MediaID: mediaID, StoredAt: s.now()})
	if err != nil {
		return fmt.Errorf("marshal pending image: %w", err)
	}
	if err := s.client.Set(ctx, redisKey(key), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (s *RedisStore) Peek(ctx context.Context, key conversation.Key) (PendingImage, bool, error) {
	raw, err := s.client.Get(ctx, redisKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return PendingImage{}, false, nil
	}
	if err != nil {
		return PendingImage{}, false, fmt.Errorf("redis get: %w", err)
	}
	img, ok := s.decode(raw)
	if !ok {
		if err := s.client.Del(ctx, redisKey(key)).Err(); err != nil {
			return PendingImage{}, false, fmt.Errorf("redis del: %w", err)
		}
		return PendingImage{}, false, nil
	}
	return img, true, nil
}

// Consume relies on GETDEL so that only one caller ever sees the entry.
func (s *RedisStore) Consume(ctx context.Context, key conversation.Key) (PendingImage, bool, error) {
	raw, err := s.client.GetDel(ctx, redisKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return PendingImage{}, false, nil
	}
	if err != nil {
		return PendingImage{}, false, fmt.Errorf("redis getdel: %w", err)
	}
	img, ok := s.decode(raw)
	return img, ok, nil
}

// decode parses a stored entry and reports false for garbage or stale data.
func (s *RedisStore) decode(raw []byte) (PendingImage, bool) {
	var img PendingImage
	if err := json.Unmarshal(raw, &img); err != nil || img.MediaID == "" {
		return PendingImage{}, false
	}
	if s.now().Sub(img.StoredAt) > s.ttl {
		return PendingImage{}, false
	}
	return img, true
}
