package redis

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Sessions stores opaque admin session tokens. A token maps to the admin
// email and expires server-side after the configured TTL.
type Sessions struct {
	client *redis.Client
	ttl    time.Duration
}

func NewSessions(client *redis.Client, ttl time.Duration) *Sessions {
	return &Sessions{client: client, ttl: ttl}
}

func (s *Sessions) Create(ctx context.Context, email string) (string, error) {
	token := uuid.New().String()
	if err := s.client.Set(ctx, "sess:"+token, email, s.ttl).Err(); err != nil {
		return "", err
	}
	return token, nil
}

// Get returns the email bound to token, or "" when the session does not
// exist or has expired.
func (s *Sessions) Get(ctx context.Context, token string) (string, error) {
	val, err := s.client.Get(ctx, "sess:"+token).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return val, nil
}

func (s *Sessions) Delete(ctx context.Context, token string) error {
	return s.client.Del(ctx, "sess:"+token).Err()
}
