// Copyright (c) 2026 Resumora. All rights reserved.
// Author: engineering@resumora.app

package payload

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/resumora/resumora/internal/platform/constants"
)

// # Volatile Cache

// Cache fronts the payload store with TTL-bounded Redis entries.
//
// The cache is an accelerator, never a source of truth: every method
// degrades to a miss or a no-op on connectivity problems, and texts above
// the size bound are not cached at all.
type Cache struct {
	client   *redis.Client
	ttl      time.Duration
	maxBytes int
}

// NewCache creates a Redis-backed payload cache.
func NewCache(client *redis.Client, ttl time.Duration, maxBytes int) *Cache {
	return &Cache{client: client, ttl: ttl, maxBytes: maxBytes}
}

/*
Get returns the cached text for one payload reference.

Parameters:
  - context: context.Context
  - ref: string

Returns:
  - string: Cached text
  - bool: false on miss or any connectivity problem
*/
func (cache *Cache) Get(context context.Context, ref string) (string, bool) {
	text, err := cache.client.Get(context, constants.RedisPrefixPayload+ref).Result()
	if err != nil {
		return "", false
	}
	return text, true
}

/*
Set stores one payload text under its reference with the configured TTL.

Description: Oversized texts are skipped silently; the authoritative store
still holds them.

Parameters:
  - context: context.Context
  - ref: string
  - text: string

Returns:
  - error: Connectivity errors, safe for callers to ignore
*/
func (cache *Cache) Set(context context.Context, ref, text string) error {
	if len(text) > cache.maxBytes {
		return nil
	}

	if err := cache.client.Set(context, constants.RedisPrefixPayload+ref, text, cache.ttl).Err(); err != nil {
		return fmt.Errorf("redis_payload_cache_set_failed: %w", err)
	}
	return nil
}

/*
Delete removes one entry.

Parameters:
  - context: context.Context
  - ref: string

Returns:
  - error: Connectivity errors
*/
func (cache *Cache) Delete(context context.Context, ref string) error {
	if err := cache.client.Del(context, constants.RedisPrefixPayload+ref).Err(); err != nil {
		return fmt.Errorf("redis_payload_cache_delete_failed: %w", err)
	}
	return nil
}

/*
Purge removes every payload entry.

Description: Emergency reclamation under memory pressure. Iterates with
SCAN so the server is never blocked by one long KEYS call.

Parameters:
  - context: context.Context

Returns:
  - int64: Entries removed
  - error: Connectivity errors
*/
func (cache *Cache) Purge(context context.Context) (int64, error) {
	var removed int64

	iter := cache.client.Scan(context, 0, constants.RedisPrefixPayload+"*", 100).Iterator()
	for iter.Next(context) {
		if err := cache.client.Del(context, iter.Val()).Err(); err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			return removed, fmt.Errorf("redis_payload_cache_purge_failed: %w", err)
		}
		removed++
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("redis_payload_cache_scan_failed: %w", err)
	}

	return removed, nil
}
