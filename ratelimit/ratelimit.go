// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// tokenBucket refills at ARGV[1] tokens/second up to ARGV[2], spends one
// token if available and returns 1 when the call is allowed.
var tokenBucket = redis.NewScript(`
local rate = tonumber(ARGV[1])
local burst = tonumber(ARGV[2])
local now = tonumber(ARGV[3])

local state = redis.call('HMGET', KEYS[1], 'tokens', 'ts')
local tokens = tonumber(state[1])
local ts = tonumber(state[2])
if tokens == nil or ts == nil then
	tokens = burst
	ts = now
end

local elapsed = math.max(0, now - ts) / 1000
tokens = math.min(burst, tokens + elapsed * rate)

local allowed = 0
if tokens >= 1 then
	tokens = tokens - 1
	allowed = 1
end

redis.call('HSET', KEYS[1], 'tokens', tokens, 'ts', now)
redis.call('PEXPIRE', KEYS[1], math.ceil(burst / rate * 1000) + 1000)
return allowed
`)

// Limiter is a token bucket per key, shared by every server instance that
// points at the same Redis.
type Limiter struct {
	client    redis.Scripter
	prefix    string
	perSecond float64
	burst     int
	now       func() time.Time
}

// New creates a limiter that allows perMinute calls per key on average,
// with bursts of up to burst calls.
func New(client redis.Scripter, perMinute, burst int) *Limiter {
	return &Limiter{
		client:    client,
		prefix:    "outing-pick:ratelimit:",
		perSecond: float64(perMinute) / 60,
		burst:     burst,
		now:       time.Now,
	}
}

// Connect parses a redis:// URL and verifies the server answers.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", opts.Addr, err)
	}
	return client, nil
}

// Allow spends one token from key's bucket.
func (l *Limiter) Allow(ctx context.Context, key string) (bool, error) {
	nowMs := l.now().UnixMilli()
	res, err := tokenBucket.Run(ctx, l.client, []string{l.prefix + key}, l.perSecond, l.burst, nowMs).Int()
	if err != nil {
		return false, fmt.Errorf("rate limit %s: %w", key, err)
	}
	return res == 1, nil
}
