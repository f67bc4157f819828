// Package redis implements the kv.Store contract on Redis. State lives
// under a dedicated namespace, batch commits go through MULTI/EXEC via
// TxPipelined. The engine is the only writer, so no WATCH is needed:
// atomicity of one batch is enough.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/debugmaster-hub/progression-engine/internal/infrastructure/persistence/kv"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Config holds Redis connection configuration.
type Config struct {
	// Host is the Redis server hostname.
	Host string

	// Port is the Redis server port.
	Port int

	// Password is the Redis authentication password (empty if no auth).
	Password string

	// DB is the Redis database number (0-15).
	DB int

	// PoolSize is the maximum number of socket connections.
	PoolSize int

	// MinIdleConns is the minimum number of idle connections.
	MinIdleConns int

	// MaxRetries is the maximum number of retries before giving up.
	MaxRetries int

	// DialTimeout is the timeout for establishing new connections.
	DialTimeout time.Duration

	// ReadTimeout is the timeout for socket reads.
	ReadTimeout time.Duration

	// WriteTimeout is the timeout for socket writes.
	WriteTimeout time.Duration
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig() Config {
	return Config{
		Host:         "localhost",
		Port:         6379,
		Password:     "",
		DB:           0,
		PoolSize:     4,
		MinIdleConns: 1,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

// Addr returns the Redis address in "host:port" format.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Namespace prefixes every key so the engine can share a Redis instance
// with other applications.
const Namespace = "progression:"

// ══════════════════════════════════════════════════════════════════════════════
// STORE
// ══════════════════════════════════════════════════════════════════════════════

// Store implements kv.Store on a Redis client.
type Store struct {
	client *redis.Client
	closed bool
}

// NewStore connects to Redis and verifies the connection.
func NewStore(ctx context.Context, cfg Config) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		MaxRetries:   cfg.MaxRetries,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis: failed to ping server: %w", err)
	}

	return &Store{client: client}, nil
}

// NewStoreWithClient wraps an existing client. Used by tests with miniredis.
func NewStoreWithClient(client *redis.Client) *Store {
	return &Store{client: client}
}

func (s *Store) key(k string) string {
	return Namespace + k
}

// Get implements kv.Store.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	if s.closed {
		return nil, kv.ErrClosed
	}
	raw, err := s.client.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, kv.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return raw, nil
}

// List implements kv.Store. Scans the namespace with a cursor so large
// keyspaces never block the server.
func (s *Store) List(ctx context.Context, prefix string) (map[string][]byte, error) {
	if s.closed {
		return nil, kv.ErrClosed
	}

	keys, err := s.scan(ctx, prefix)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]byte, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	for i, v := range values {
		if v == nil {
			continue
		}
		str, ok := v.(string)
		if !ok {
			continue
		}
		out[keys[i][len(Namespace):]] = []byte(str)
	}
	return out, nil
}

func (s *Store) scan(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	var cursor uint64
	pattern := s.key(prefix) + "*"
	for {
		batch, next, err := s.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return nil, err
		}
		keys = append(keys, batch...)
		if next == 0 {
			return keys, nil
		}
		cursor = next
	}
}

// Transact implements kv.Store. Prefix deletes resolve their keys before
// the pipeline starts; the engine serializes writes, so nothing can slip
// in between.
func (s *Store) Transact(ctx context.Context, fn func(tx kv.Tx) error) error {
	if s.closed {
		return kv.ErrClosed
	}

	batch := &kv.Batch{}
	if err := fn(batch); err != nil {
		return err
	}
	if batch.Empty() {
		return nil
	}

	// Resolve prefixes to concrete keys up front.
	prefixKeys := make(map[string][]string)
	for _, op := range batch.Ops() {
		if op.Kind == kv.OpDeletePrefix {
			keys, err := s.scan(ctx, op.Key)
			if err != nil {
				return err
			}
			prefixKeys[op.Key] = keys
		}
	}

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, op := range batch.Ops() {
			switch op.Kind {
			case kv.OpPut:
				pipe.Set(ctx, s.key(op.Key), op.Value, 0)
			case kv.OpDelete:
				pipe.Del(ctx, s.key(op.Key))
			case kv.OpDeletePrefix:
				if keys := prefixKeys[op.Key]; len(keys) > 0 {
					pipe.Del(ctx, keys...)
				}
			}
		}
		return nil
	})
	return err
}

// Close implements kv.Store.
func (s *Store) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.client.Close()
}
