package quota

import (
	"context"
	"sync"
	"time"
)

type record struct {
	requestCount int
	tokenCount   int
	windowStart  time.Time
	lastRequest  time.Time
}

// MemoryStore keeps quota records in process memory behind a mutex. It
// carries the exact window semantics of the Redis store but coordinates
// nothing across instances, so it is only suitable for tests and
// single-process development.
type MemoryStore struct {
	limits Limits

	mu      sync.Mutex
	records map[string]*record

	now func() time.Time
}

func NewMemoryStore(limits Limits) *MemoryStore {
	if limits.Window <= 0 {
		limits = DefaultLimits()
	}
	return &MemoryStore{
		limits:  limits,
		records: make(map[string]*record),
		now:     time.Now,
	}
}

func (s *MemoryStore) CheckAndAdmit(ctx context.Context, identityKey string) Decision {
	_ = ctx
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[identityKey]
	if !ok {
		s.records[identityKey] = &record{
			requestCount: 1,
			windowStart:  now,
			lastRequest:  now,
		}
		return Decision{Allowed: true}
	}

	if now.Sub(rec.windowStart) > s.limits.Window {
		rec.requestCount = 1
		rec.tokenCount = 0
		rec.windowStart = now
		rec.lastRequest = now
		return Decision{Allowed: true}
	}

	// request-count check takes priority when both limits are exhausted
	if rec.requestCount >= s.limits.MaxRequests {
		return Decision{Allowed: false, Reason: s.limits.DenialReason("requests")}
	}
	if rec.tokenCount >= s.limits.MaxTokens {
		return Decision{Allowed: false, Reason: s.limits.DenialReason("tokens")}
	}

	rec.requestCount++
	rec.lastRequest = now
	return Decision{Allowed: true}
}

func (s *MemoryStore) AddTokens(ctx context.Context, identityKey string, tokens int) error {
	_ = ctx
	if tokens <= 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if rec, ok := s.records[identityKey]; ok {
		rec.tokenCount += tokens
	}
	return nil
}

// Snapshot returns the live counters for an identity, for tests.
func (s *MemoryStore) Snapshot(identityKey string) (requests, tokens int, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[identityKey]
	if !ok {
		return 0, 0, false
	}
	return rec.requestCount, rec.tokenCount, true
}
