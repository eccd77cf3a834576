// Package redis keeps cache entries in redis.
package redis

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v7"
	"github.com/pkg/errors"

	"github.com/fluxcd/regbrowser/pkg/registry/cache"
)

const scanCount = 100

type RedisClient struct {
	client *redis.Client
	expiry time.Duration
}

func (r *RedisClient) Get(key string) ([]byte, error) {
	v, err := r.client.Get(key).Bytes()
	if err == redis.Nil {
		// cache miss, no need of logging
		return nil, cache.ErrNotCached
	} else if err != nil {
		return nil, errors.Wrap(err, "fetching from redis")
	}
	return v, nil
}

func (r *RedisClient) Set(key string, value []byte) error {
	if _, err := r.client.Set(key, value, r.expiry).Result(); err != nil {
		return errors.Wrap(err, "storing in redis")
	}
	return nil
}

func (r *RedisClient) Delete(key string) error {
	if _, err := r.client.Del(key).Result(); err != nil {
		return errors.Wrap(err, "deleting from redis")
	}
	return nil
}

func (r *RedisClient) Keys(prefix string) ([]string, error) {
	var keys []string
	var cursor uint64
	match := escapePattern(prefix) + "*"
	for {
		page, next, err := r.client.Scan(cursor, match, scanCount).Result()
		if err != nil {
			return nil, errors.Wrap(err, "scanning redis keys")
		}
		keys = append(keys, page...)
		if next == 0 {
			return keys, nil
		}
		cursor = next
	}
}

func (r *RedisClient) Close() error {
	return r.client.Close()
}

// escapePattern quotes the glob characters redis MATCH understands.
func escapePattern(s string) string {
	var b strings.Builder
	for _, c := range s {
		switch c {
		case '*', '?', '[', ']', '\\', '^':
			b.WriteRune('\\')
		}
		b.WriteRune(c)
	}
	return b.String()
}

type RedisConfig struct {
	Service  string
	Port     int
	Password string
	DB       int
	Timeout  time.Duration
	MaxConns int
}

func NewRedisClient(config RedisConfig) *RedisClient {
	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", config.Service, config.Port),
		Password:     config.Password,
		DB:           config.DB,
		DialTimeout:  config.Timeout,
		ReadTimeout:  config.Timeout,
		WriteTimeout: config.Timeout,
		PoolSize:     config.MaxConns,
	})

	return &RedisClient{
		client: client,
		expiry: cache.BackendExpiry(cache.TTL),
	}
}
