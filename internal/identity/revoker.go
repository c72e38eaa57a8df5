package identity

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/comigor/jarvis-chat/internal/config"
)

// Revoker records tokens that must no longer be accepted.
type Revoker interface {
	Revoke(ctx context.Context, key string, until time.Time) error
	IsRevoked(ctx context.Context, key string) (bool, error)
}

// MemoryRevoker keeps revocations in process memory. Revocations are lost on
// restart and are not shared between replicas; use RedisRevoker for that.
type MemoryRevoker struct {
	mu      sync.RWMutex
	revoked map[string]time.Time
}

func NewMemoryRevoker() *MemoryRevoker {
	return &MemoryRevoker{revoked: make(map[string]time.Time)}
}

func (m *MemoryRevoker) Revoke(_ context.Context, key string, until time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.revoked[key] = until
	m.cleanupLocked(time.Now())
	return nil
}

func (m *MemoryRevoker) IsRevoked(_ context.Context, key string) (bool, error) {
	m.mu.RLock()
	until, ok := m.revoked[key]
	m.mu.RUnlock()
	return ok && time.Now().Before(until), nil
}

func (m *MemoryRevoker) cleanupLocked(now time.Time) {
	for k, until := range m.revoked {
		if now.After(until) {
			delete(m.revoked, k)
		}
	}
}

// RedisRevoker stores revocations as expiring Redis keys.
type RedisRevoker struct {
	client *redis.Client
	prefix string
}

// NewRedisRevoker connects to Redis and verifies the connection.
func NewRedisRevoker(cfg config.RedisConfig) (*RedisRevoker, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisRevoker{client: client, prefix: cfg.Prefix}, nil
}

func (r *RedisRevoker) key(k string) string {
	return r.prefix + ":" + k
}

func (r *RedisRevoker) Revoke(ctx context.Context, key string, until time.Time) error {
	ttl := time.Until(until)
	if ttl <= 0 {
		return nil
	}
	if err := r.client.Set(ctx, r.key(key), 1, ttl).Err(); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return nil
}

func (r *RedisRevoker) IsRevoked(ctx context.Context, key string) (bool, error) {
	n, err := r.client.Exists(ctx, r.key(key)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check revocation: %w", err)
	}
	return n > 0, nil
}

func (r *RedisRevoker) Close() error {
	return r.client.Close()
}
