package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisClient is the advisory cache. Every accessor swallows nothing: callers
// get the error and decide whether a miss matters. The purchase path never
// goes through here.
type RedisClient struct {
	client *redis.Client
	ctx    context.Context
	prefix string
}

func NewRedisClient(addr, password string, db int, prefix string) (*RedisClient, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		PoolSize:     20,
		MinIdleConns: 5,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx := context.Background()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisClient{
		client: rdb,
		ctx:    ctx,
		prefix: prefix,
	}, nil
}

func (r *RedisClient) generateKey(keys ...string) string {
	return strings.Join(append([]string{r.prefix}, keys...), ":")
}

func (r *RedisClient) Set(key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return r.client.Set(r.ctx, r.generateKey(key), data, ttl).Err()
}

func (r *RedisClient) Get(key string, dest interface{}) error {
	data, err := r.client.Get(r.ctx, r.generateKey(key)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return fmt.Errorf("key not found: %s", key)
		}
		return err
	}
	return json.Unmarshal(data, dest)
}

func (r *RedisClient) Del(key string) error {
	return r.client.Del(r.ctx, r.generateKey(key)).Err()
}

// DelPattern drops every key matching the prefixed pattern. Used after
// catalog and account mutations so display caches never outlive a write.
func (r *RedisClient) DelPattern(pattern string) error {
	keys, err := r.client.Keys(r.ctx, r.generateKey(pattern)).Result()
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return r.client.Del(r.ctx, keys...).Err()
}

func (r *RedisClient) Close() error {
	return r.client.Close()
}
