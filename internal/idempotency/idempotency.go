// Package idempotency caches responses to mutating requests that carry an
// Idempotency-Key header, so a client retrying after a lost response gets
// the original result instead of a second side effect.
package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrInProgress is returned by Begin when another request with the same key
// is still running.
var ErrInProgress = errors.New("idempotency: request with this key is in progress")

// Response is a cached HTTP response.
type Response struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
}

// Store records responses by key.
type Store interface {
	// Get returns the cached response for key, or ok=false.
	Get(ctx context.Context, key string) (resp Response, ok bool, err error)

	// Begin claims key for a request. It fails with ErrInProgress while
	// another request holds the claim.
	Begin(ctx context.Context, key string) error

	// Complete caches resp and releases the claim.
	Complete(ctx context.Context, key string, resp Response) error

	// Abandon releases the claim without caching, so the key can be retried.
	Abandon(ctx context.Context, key string) error
}

// RedisStore keeps responses in Redis.
type RedisStore struct {
	client  *redis.Client
	ttl     time.Duration
	lockTTL time.Duration
}

// NewRedisStore creates a store. Responses live for ttl; a claim expires
// after lockTTL so a crashed request cannot block its key forever.
func NewRedisStore(client *redis.Client, ttl, lockTTL time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if lockTTL <= 0 {
		lockTTL = time.Minute
	}
	return &RedisStore{client: client, ttl: ttl, lockTTL: lockTTL}
}

// NewRedisClient parses a redis:// URL and pings the server.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

func responseKey(key string) string { return "idem:resp:" + key }
func lockKey(key string) string     { return "idem:lock:" + key }

func (s *RedisStore) Get(ctx context.Context, key string) (Response, bool, error) {
	raw, err := s.client.Get(ctx, responseKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Response{}, false, nil
	}
	if err != nil {
		return Response{}, false, fmt.Errorf("redis get: %w", err)
	}
	var resp Response
	if err := json.Unmarshal(raw, &resp); err != nil {
		return Response{}, false, fmt.Errorf("decode cached response: %w", err)
	}
	return resp, true, nil
}

func (s *RedisStore) Begin(ctx context.Context, key string) error {
	ok, err := s.client.SetNX(ctx, lockKey(key), 1, s.lockTTL).Result()
	if err != nil {
		return fmt.Errorf("redis setnx: %w", err)
	}
	if !ok {
		return ErrInProgress
	}
	return nil
}

func (s *RedisStore) Complete(ctx context.Context, key string, resp Response) error {
	raw, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("encode response: %w", err)
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, responseKey(key), raw, s.ttl)
		pipe.Del(ctx, lockKey(key))
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis store response: %w", err)
	}
	return nil
}

func (s *RedisStore) Abandon(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, lockKey(key)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// Cacheable reports whether a response should be replayed for retries.
// Server errors are not cached so the client can try again.
func Cacheable(status int) bool {
	return status < http.StatusInternalServerError
}
