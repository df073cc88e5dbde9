// Package ratelimit throttles per-creditor API activity with a Redis
// token bucket, so one misbehaving client cannot monopolize the log
// writer. The bucket state lives in Redis and is updated atomically by a
// Lua script, which keeps the limiter correct across multiple processes.
package ratelimit

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limiter is a Redis-backed token bucket, keyed per creditor. A zero
// Capacity or RefillRate disables limiting.
type Limiter struct {
	rdb        *redis.Client
	prefix     string
	capacity   int
	refillRate float64 // tokens per second

	now func() time.Time
}

func New(rdb *redis.Client, prefix string, capacity int, refillRate float64) *Limiter {
	return &Limiter{
		rdb:        rdb,
		prefix:     prefix,
		capacity:   capacity,
		refillRate: refillRate,
		now:        time.Now,
	}
}

var bucketScript = redis.NewScript(`
local key = KEYS[1]
local capacity = tonumber(ARGV[1])
local refill_rate = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local ttl = tonumber(ARGV[4])

local data = redis.call('HMGET', key, 'tokens', 'last')
local tokens = tonumber(data[1])
local last = tonumber(data[2])

if tokens == nil then tokens = capacity end
if last == nil then last = now end

local delta = now - last
if delta < 0 then delta = 0 end

local filled = tokens + (delta * refill_rate)
if filled > capacity then filled = capacity end

local allowed = 0
if filled >= 1 then
  allowed = 1
  filled = filled - 1
end

redis.call('HSET', key, 'tokens', filled, 'last', now)
redis.call('EXPIRE', key, ttl)

return {allowed, tostring(filled)}
`)

func (l *Limiter) key(creditorID int64) string {
	id := strconv.FormatInt(creditorID, 10)
	if l.prefix == "" {
		return id
	}
	return l.prefix + ":" + id
}

// Allow takes one token from the creditor's bucket. It reports whether
// the action may proceed, and how many whole tokens remain.
func (l *Limiter) Allow(ctx context.Context, creditorID int64) (bool, int, error) {
	if l.rdb == nil || l.capacity <= 0 || l.refillRate <= 0 {
		return true, 0, nil
	}

	now := float64(l.now().UnixNano()) / 1e9
	ttl := int64(float64(l.capacity)/l.refillRate) + 1

	res, err := bucketScript.Run(ctx, l.rdb, []string{l.key(creditorID)},
		l.capacity, l.refillRate, now, ttl).Result()
	if err != nil {
		return false, 0, err
	}

	vals, ok := res.([]interface{})
	if !ok || len(vals) != 2 {
		return false, 0, redis.ErrClosed
	}
	allowed, ok := toInt64(vals[0])
	if !ok {
		return false, 0, redis.ErrClosed
	}
	remaining, ok := toFloat64(vals[1])
	if !ok {
		return false, 0, redis.ErrClosed
	}
	return allowed == 1, int(remaining), nil
}

func toInt64(v interface{}) (int64, bool) {
	switch t := v.(type) {
	case int64:
		return t, true
	case float64:
		return int64(t), true
	case string:
		f, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return 0, false
		}
		return int64(f), true
	default:
		return 0, false
	}
}

func toFloat64(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int64:
		return float64(t), true
	case string:
		f, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}
