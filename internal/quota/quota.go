// Package quota tracks per-identity request and token counts inside a
// rolling window. The store is the single source of truth for admission
// decisions: request handling is stateless and two requests for the same
// identity may run on different instances concurrently.
package quota

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

type Limits struct {
	MaxRequests int
	MaxTokens   int
	Window      time.Duration
}

func DefaultLimits() Limits {
	return Limits{
		MaxRequests: 30,
		MaxTokens:   100000,
		Window:      time.Hour,
	}
}

// Decision is the outcome of one admission check. Reason is set only when
// the request was denied and is safe to show to the caller.
type Decision struct {
	Allowed bool
	Reason  string
}

// DenialReason maps a denial cause ("requests" or "tokens") to the
// human-readable message surfaced with RATE_LIMIT errors.
func (l Limits) DenialReason(kind string) string {
	if kind == "tokens" {
		return "Token limit exceeded. Please try again later."
	}
	return fmt.Sprintf("Request limit exceeded (%d/hour). Please try again later.", l.MaxRequests)
}

// Store is implemented by the Redis-backed production store and the
// in-memory store used in tests and DSN-less development runs.
//
// CheckAndAdmit performs the window check and the request-count increment as
// one atomic step. AddTokens increments the token counter of the identity's
// live record; it is fire-and-forget at the call site and implementations
// only log failures.
type Store interface {
	CheckAndAdmit(ctx context.Context, identityKey string) Decision
	AddTokens(ctx context.Context, identityKey string, tokens int) error
}

// IdentityKey buckets rate-limit state by caller address and the
// client-chosen session id.
func IdentityKey(ip, sessionID string) string {
	if ip == "" {
		ip = "unknown"
	}
	if sessionID == "" {
		sessionID = "unknown"
	}
	return ip + ":" + sessionID
}

// ClientIP resolves the caller address from the edge-proxy header chain.
// Callers behind no proxy at all end up bucketed together under "unknown",
// which is an accepted limitation.
func ClientIP(r *http.Request) string {
	if ip := r.Header.Get("CF-Connecting-IP"); ip != "" {
		return ip
	}
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.Index(fwd, ","); i >= 0 {
			fwd = fwd[:i]
		}
		if fwd = strings.TrimSpace(fwd); fwd != "" {
			return fwd
		}
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	return "unknown"
}
