// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package ratelimit is a token bucket shared through Redis, so every API
instance draws from the same budget per caller.

	client, err := ratelimit.Connect(ctx, cfg.RedisURL)
	limiter := ratelimit.New(client, cfg.RateLimitPerMinute, cfg.RateLimitBurst)
	ok, err := limiter.Allow(ctx, key)

The bucket lives in one hash per key and is updated by a Lua script, so
concurrent requests cannot double-spend a token. Idle buckets expire.
*/
package ratelimit
