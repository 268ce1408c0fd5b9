package progress

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/xsslab/xsslab/internal/config"
	"github.com/xsslab/xsslab/internal/logger"
)

// ErrCacheMiss is returned when a key is absent or expired.
var ErrCacheMiss = errors.New("cache miss")

// Backend is the key/value store holding the progress document.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, expiration time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// NewBackend picks the configured backend. An unreachable Redis falls
// back to memory.
func NewBackend(ctx context.Context, cfg *config.Config, log logger.Logger) Backend {
	if cfg.Progress.Backend == "redis" {
		if client := initRedis(ctx, cfg, log); client != nil {
			log.Info("Using Redis progress backend", "addr", cfg.Progress.RedisAddr)
			return NewRedisBackend(client)
		}
	}
	if cfg.Progress.Backend == "file" {
		path := config.ExpandPath(cfg.Progress.Path)
		log.Debug("Using file progress backend", "path", path)
		return NewFileBackend(path)
	}
	log.Info("Using in-memory progress backend")
	return NewMemoryBackend()
}

func initRedis(ctx context.Context, cfg *config.Config, log logger.Logger) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Progress.RedisAddr,
		Password:    cfg.Progress.RedisPassword,
		DB:          cfg.Progress.RedisDB,
		DialTimeout: 2 * time.Second,
		MaxRetries:  1,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		log.Warn("Redis not available, using memory backend", "addr", cfg.Progress.RedisAddr, "error", err)
		_ = client.Close()
		return nil
	}

	return client
}

// RedisBackend stores values in Redis.
type RedisBackend struct {
	client *redis.Client
}

func NewRedisBackend(client *redis.Client) *RedisBackend {
	return &RedisBackend{client: client}
}

func (r *RedisBackend) Get(ctx context.Context, key string) ([]byte, error) {
	result, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	return result, err
}

func (r *RedisBackend) Set(ctx context.Context, key string, value []byte, expiration time.Duration) error {
	return r.client.Set(ctx, key, value, expiration).Err()
}

func (r *RedisBackend) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}

func (r *RedisBackend) Exists(ctx context.Context, key string) (bool, error) {
	result, err := r.client.Exists(ctx, key).Result()
	return result > 0, err
}

// MemoryBackend keeps values in process memory. Expired entries are
// removed when read.
type MemoryBackend struct {
	mu   sync.Mutex
	data map[string]memoryItem
	now  func() time.Time
}

type memoryItem struct {
	value      []byte
	expiration time.Time
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		data: make(map[string]memoryItem),
		now:  time.Now,
	}
}

// lookup must be called with mu held.
func (m *MemoryBackend) lookup(key string) (memoryItem, bool) {
	item, ok := m.data[key]
	if !ok {
		return memoryItem{}, false
	}
	if !item.expiration.IsZero() && m.now().After(item.expiration) {
		delete(m.data, key)
		return memoryItem{}, false
	}
	return item, true
}

func (m *MemoryBackend) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.lookup(key)
	if !ok {
		return nil, ErrCacheMiss
	}
	out := make([]byte, len(item.value))
	copy(out, item.value)
	return out, nil
}

func (m *MemoryBackend) Set(ctx context.Context, key string, value []byte, expiration time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	item := memoryItem{value: append([]byte(nil), value...)}
	if expiration > 0 {
		item.expiration = m.now().Add(expiration)
	}
	m.data[key] = item
	return nil
}

func (m *MemoryBackend) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.data, key)
	return nil
}

func (m *MemoryBackend) Exists(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.lookup(key)
	return ok, nil
}
