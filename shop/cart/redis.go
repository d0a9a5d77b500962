/*
   plugchain - extension-point runtime
   Copyright (C) 2025  the plugchain Contributors

   This program is free software: you can redistribute it and/or modify
   it under the terms of the GNU Affero General Public License as published by
   the Free Software Foundation, version 3.

   This program is distributed in the hope that it will be useful,
   but WITHOUT ANY WARRANTY; without even the implied warranty of
   MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
   GNU Affero General Public License for more details.

   You should have received a copy of the GNU Affero General Public License
   along with this program.  If not, see <http://www.gnu.org/licenses/>.
*/

package cart

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"

	"plugchain/plugin"
)

const (
	defaultRedisAddr      = "localhost:6379"
	defaultRedisKeyPrefix = "plugchain:cart:"
	defaultRedisTTL       = 7 * 24 * time.Hour
)

func init() {
	RegisterBackend("redis", func(cfg plugin.Config) (Backend, error) {
		return NewRedisBackend(RedisConfig{
			Addr:        cfg.String("redisAddr", defaultRedisAddr),
			Password:    cfg.String("redisPassword", ""),
			DB:          cfg.Int("redisDB", 0),
			PoolSize:    cfg.Int("redisPoolSize", 10),
			DialTimeout: cfg.Duration("redisDialTimeout", 5*time.Second),
			KeyPrefix:   cfg.String("redisKeyPrefix", defaultRedisKeyPrefix),
			TTL:         cfg.Duration("ttl", defaultRedisTTL),
		})
	})
}

// RedisConfig configures RedisBackend.
type RedisConfig struct {
	Addr        string
	Password    string
	DB          int
	PoolSize    int
	DialTimeout time.Duration
	KeyPrefix   string
	TTL         time.Duration
}

// RedisBackend keeps carts as JSON documents in Redis, expiring after TTL
// without changes.
type RedisBackend struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

// NewRedisBackend connects to Redis and checks the connection.
func NewRedisBackend(cfg RedisConfig) (*RedisBackend, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		PoolSize:    cfg.PoolSize,
		DialTimeout: cfg.DialTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, errors.Wrapf(err, "failed to connect to Redis at %s", cfg.Addr)
	}
	return &RedisBackend{
		client:    client,
		keyPrefix: cfg.KeyPrefix,
		ttl:       cfg.TTL,
	}, nil
}

func (b *RedisBackend) key(id string) string {
	return b.keyPrefix + id
}

func (b *RedisBackend) Get(ctx context.Context, id string) (*Cart, error) {
	data, err := b.client.Get(ctx, b.key(id)).Bytes()
	if err == redis.Nil {
		return &Cart{ID: id}, nil
	} else if err != nil {
		return nil, errors.Wrapf(err, "failed to get cart %q", id)
	}
	var c Cart
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, errors.Wrapf(err, "corrupt cart %q", id)
	}
	return &c, nil
}

func (b *RedisBackend) Save(ctx context.Context, c *Cart) error {
	data, err := json.Marshal(c)
	if err != nil {
		return errors.WithStack(err)
	}
	if err := b.client.Set(ctx, b.key(c.ID), data, b.ttl).Err(); err != nil {
		return errors.Wrapf(err, "failed to save cart %q", c.ID)
	}
	return nil
}

func (b *RedisBackend) Delete(ctx context.Context, id string) error {
	if err := b.client.Del(ctx, b.key(id)).Err(); err != nil {
		return errors.Wrapf(err, "failed to delete cart %q", id)
	}
	return nil
}

func (b *RedisBackend) Close() error {
	return b.client.Close()
}
