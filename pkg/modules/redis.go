package modules

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisTTL bounds the lifetime of every stored module.
const DefaultRedisTTL = time.Hour

// RedisConfig configures a [RedisStore].
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string        // key prefix, "pipo:" when empty
	TTL      time.Duration // DefaultRedisTTL when zero
}

// RedisStore keeps modules in Redis. Each group is tracked in a set so it
// can be deleted as a unit.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", cfg.Addr, err)
	}
	return NewRedisStoreFromClient(client, cfg), nil
}

// NewRedisStoreFromClient wraps an existing client.
func NewRedisStoreFromClient(client *redis.Client, cfg RedisConfig) *RedisStore {
	if cfg.Prefix == "" {
		cfg.Prefix = "pipo:"
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultRedisTTL
	}
	return &RedisStore{client: client, prefix: cfg.Prefix, ttl: cfg.TTL}
}

func (s *RedisStore) moduleKey(group, id string) string {
	return s.prefix + "module:" + group + ":" + id
}

func (s *RedisStore) groupKey(group string) string {
	return s.prefix + "group:" + group
}

func (s *RedisStore) Put(ctx context.Context, group, id string, code []byte) error {
	gk := s.groupKey(group)
	_, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, s.moduleKey(group, id), code, s.ttl)
		p.SAdd(ctx, gk, id)
		p.Expire(ctx, gk, s.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("store module %s/%s: %w", group, id, err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, group, id string) ([]byte, error) {
	b, err := s.client.Get(ctx, s.moduleKey(group, id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load module %s/%s: %w", group, id, err)
	}
	return b, nil
}

func (s *RedisStore) DeleteGroup(ctx context.Context, group string) error {
	gk := s.groupKey(group)
	ids, err := s.client.SMembers(ctx, gk).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("list group %s: %w", group, err)
	}
	keys := make([]string, 0, len(ids)+1)
	for _, id := range ids {
		keys = append(keys, s.moduleKey(group, id))
	}
	keys = append(keys, gk)
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("delete group %s: %w", group, err)
	}
	return nil
}

// Close closes the underlying client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

var _ Store = (*RedisStore)(nil)
