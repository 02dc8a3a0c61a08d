// Copyright (c) 2026 John Earle
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStrategy is a remote key-value cache shared across instances.
//
// Grounded on original_source's RedisCacheStrategy (SETEX/SCAN-based
// invalidate_prefix), adapted to go-redis/v9's client and SCAN cursor.
type RedisStrategy struct {
	client *redis.Client
	counters
}

// NewRedisStrategy builds a RedisStrategy connected to redisURL.
func NewRedisStrategy(redisURL string) (*RedisStrategy, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return &RedisStrategy{client: redis.NewClient(opts)}, nil
}

func (r *RedisStrategy) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := r.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		r.misses.Add(1)
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis cache get: %w", err)
	}
	r.hits.Add(1)
	return value, true, nil
}

// Set stores value under key. A negative ttl discards the write; a zero
// ttl stores the value with no expiry.
func (r *RedisStrategy) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		return nil
	}
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis cache set: %w", err)
	}
	r.writes.Add(1)
	return nil
}

func (r *RedisStrategy) Invalidate(ctx context.Context, pattern string) error {
	var cursor uint64
	var matched []string
	for {
		keys, next, err := r.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return fmt.Errorf("redis cache scan: %w", err)
		}
		matched = append(matched, keys...)
		cursor = next
		if cursor == 0 {
			break
		}
	}
	if len(matched) == 0 {
		return nil
	}
	if err := r.client.Del(ctx, matched...).Err(); err != nil {
		return fmt.Errorf("redis cache del: %w", err)
	}
	r.invalidations.Add(uint64(len(matched)))
	return nil
}

func (r *RedisStrategy) Metrics() Metrics {
	return r.snapshot()
}
