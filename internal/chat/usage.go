package chat

import (
	"context"
	"log"
	"time"

	"github.com/plonguo/portfolio-api/internal/quota"
	"github.com/plonguo/portfolio-api/internal/store/rabbitmq"
)

// UsageReporter records approximate token usage after a stream completes.
// Reporting is fire-and-forget: implementations detach from the caller,
// log failures and never retry. An undercounted quota only makes the next
// admission slightly too permissive.
type UsageReporter interface {
	Report(identityKey string, tokens int)
}

type NopReporter struct{}

func (NopReporter) Report(string, int) {}

// StoreReporter applies the delta straight to the quota store from a
// detached goroutine. Used when no usage queue is configured.
type StoreReporter struct {
	Store quota.Store
}

func (r *StoreReporter) Report(identityKey string, tokens int) {
	if tokens <= 0 {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := r.Store.AddTokens(ctx, identityKey, tokens); err != nil {
			log.Printf("[Usage] token count update failed key=%s tokens=%d err=%v", identityKey, tokens, err)
		}
	}()
}

// QueueReporter publishes the delta to the usage queue; cmd/usageworker
// applies it to the quota store.
type QueueReporter struct {
	Pub *rabbitmq.Publisher
}

func (r *QueueReporter) Report(identityKey string, tokens int) {
	if tokens <= 0 {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := r.Pub.PublishUsage(ctx, rabbitmq.UsageEvent{
			IdentityKey: identityKey,
			Tokens:      tokens,
		}); err != nil {
			log.Printf("[Usage] publish failed key=%s tokens=%d err=%v", identityKey, tokens, err)
		}
	}()
}
