package enroll

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const enrollKeyPrefix = "enroll:"

// RedisStore implements Store on Redis, for deployments where voiceprints
// must survive restarts and be shared across gateway instances. A zero
// TTL stores voiceprints without expiry.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) Put(ctx context.Context, vp *Voiceprint) error {
	stored := *vp
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now()
	}
	val, err := json.Marshal(&stored)
	if err != nil {
		return fmt.Errorf("enroll: marshal voiceprint: %w", err)
	}
	return s.client.Set(ctx, s.key(vp.UserID), val, s.ttl).Err()
}

func (s *RedisStore) Get(ctx context.Context, userID string) (*Voiceprint, error) {
	val, err := s.client.Get(ctx, s.key(userID)).Result()
	if err == redis.Nil {
		return nil, ErrNotEnrolled
	}
	if err != nil {
		return nil, fmt.Errorf("enroll: get voiceprint: %w", err)
	}

	var vp Voiceprint
	if err := json.Unmarshal([]byte(val), &vp); err != nil {
		return nil, fmt.Errorf("enroll: unmarshal voiceprint: %w", err)
	}
	return &vp, nil
}

func (s *RedisStore) Delete(ctx context.Context, userID string) error {
	return s.client.Del(ctx, s.key(userID)).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) key(userID string) string {
	return enrollKeyPrefix + userID
}
