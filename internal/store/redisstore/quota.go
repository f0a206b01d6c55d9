// Package redisstore backs the quota bookkeeping with Redis. Admission is a
// single Lua script so two concurrent requests for one identity can never
// both read a pre-increment count; Redis serializes the script per key.
package redisstore

import (
	"context"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/plonguo/portfolio-api/internal/quota"
)

const keyPrefix = "chat:quota:"

// admitScript creates a fresh record, resets an expired one, denies on an
// exhausted limit (request count first), or increments the request count.
// Returns {allowed, denied-by}.
var admitScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local max_requests = tonumber(ARGV[3])
local max_tokens = tonumber(ARGV[4])

local ws = redis.call('HGET', key, 'window_start')
if (not ws) or (now - tonumber(ws)) > window then
  redis.call('HSET', key,
    'request_count', 1,
    'token_count', 0,
    'window_start', now,
    'last_request', now)
  return {1, ''}
end

local reqs = tonumber(redis.call('HGET', key, 'request_count') or '0')
if reqs >= max_requests then
  return {0, 'requests'}
end
local toks = tonumber(redis.call('HGET', key, 'token_count') or '0')
if toks >= max_tokens then
  return {0, 'tokens'}
end

redis.call('HINCRBY', key, 'request_count', 1)
redis.call('HSET', key, 'last_request', now)
return {1, ''}
`)

// addTokensScript only touches an existing record: token usage reported
// after the window reset (or for a never-admitted identity) is dropped.
var addTokensScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
  redis.call('HINCRBY', KEYS[1], 'token_count', ARGV[1])
  return 1
end
return 0
`)

type QuotaStore struct {
	rdb    *redis.Client
	limits quota.Limits
}

func NewQuotaStore(rdb *redis.Client, limits quota.Limits) *QuotaStore {
	if limits.Window <= 0 {
		limits = quota.DefaultLimits()
	}
	return &QuotaStore{rdb: rdb, limits: limits}
}

// CheckAndAdmit runs the admission script. If Redis is unreachable the store
// fails OPEN: quota is a cost-control measure, not a security boundary, and
// availability wins over strict enforcement.
func (s *QuotaStore) CheckAndAdmit(ctx context.Context, identityKey string) quota.Decision {
	res, err := admitScript.Run(ctx, s.rdb,
		[]string{keyPrefix + identityKey},
		time.Now().Unix(),
		int(s.limits.Window.Seconds()),
		s.limits.MaxRequests,
		s.limits.MaxTokens,
	).Result()
	if err != nil {
		log.Printf("[Quota] admission check failed, failing open key=%s err=%v", identityKey, err)
		return quota.Decision{Allowed: true}
	}

	arr, ok := res.([]interface{})
	if !ok || len(arr) < 2 {
		log.Printf("[Quota] unexpected script result key=%s res=%v", identityKey, res)
		return quota.Decision{Allowed: true}
	}

	allowed, _ := arr[0].(int64)
	if allowed == 1 {
		return quota.Decision{Allowed: true}
	}

	deniedBy, _ := arr[1].(string)
	return quota.Decision{Allowed: false, Reason: s.limits.DenialReason(deniedBy)}
}

func (s *QuotaStore) AddTokens(ctx context.Context, identityKey string, tokens int) error {
	if tokens <= 0 {
		return nil
	}
	return addTokensScript.Run(ctx, s.rdb,
		[]string{keyPrefix + identityKey}, tokens,
	).Err()
}
