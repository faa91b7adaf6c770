// Package resultcache stores terminal job outcomes under caller-supplied
// request ids with a bounded TTL. It is the durable half of job tracking: the
// in-memory job table evicts terminal entries (and empties on restart), while
// the cache keeps outcomes reachable for the full polling window.
package resultcache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "job:result:"

// Store persists serialized job outcomes keyed by request id.
type Store interface {
	// Put stores the outcome under requestID for at most ttl.
	Put(ctx context.Context, requestID string, outcome any, ttl time.Duration) error
	// Get returns the stored outcome, or found=false when absent or expired.
	Get(ctx context.Context, requestID string) (json.RawMessage, bool, error)
}

// RedisStore is the production Store, backed by a Redis instance.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opts.MaxRetries = 3
	return &RedisStore{client: redis.NewClient(opts)}, nil
}

// Ping verifies the Redis connection, for startup and diagnostic checks.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Put(ctx context.Context, requestID string, outcome any, ttl time.Duration) error {
	data, err := json.Marshal(outcome)
	if err != nil {
		return fmt.Errorf("marshal outcome: %w", err)
	}
	if err := s.client.Set(ctx, keyPrefix+requestID, data, ttl).Err(); err != nil {
		return fmt.Errorf("store outcome for %s: %w", requestID, err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, requestID string) (json.RawMessage, bool, error) {
	data, err := s.client.Get(ctx, keyPrefix+requestID).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load outcome for %s: %w", requestID, err)
	}
	return json.RawMessage(data), true, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

// MemoryStore is an in-process Store for tests and redis-less deployments.
// Entries expire lazily on read.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	data      json.RawMessage
	expiresAt time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func (s *MemoryStore) Put(_ context.Context, requestID string, outcome any, ttl time.Duration) error {
	data, err := json.Marshal(outcome)
	if err != nil {
		return fmt.Errorf("marshal outcome: %w", err)
	}
	s.mu.Lock()
	s.entries[requestID] = memoryEntry{data: data, expiresAt: s.now().Add(ttl)}
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Get(_ context.Context, requestID string) (json.RawMessage, bool, error) {
	s.mu.RLock()
	entry, ok := s.entries[requestID]
	s.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if s.now().After(entry.expiresAt) {
		s.mu.Lock()
		delete(s.entries, requestID)
		s.mu.Unlock()
		return nil, false, nil
	}
	return entry.data, true, nil
}
