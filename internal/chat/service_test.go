package chat

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/plonguo/portfolio-api/internal/ai"
	"github.com/plonguo/portfolio-api/internal/prompt"
	"github.com/plonguo/portfolio-api/internal/quota"
)

type fakeProvider struct {
	chunks []string
	err    error
	last   []ai.Message
}

func (p *fakeProvider) StreamChat(ctx context.Context, messages []ai.Message) (<-chan string, <-chan error) {
	_ = ctx
	p.last = append([]ai.Message(nil), messages...)

	chunks := make(chan string, len(p.chunks))
	errs := make(chan error, 1)
	for _, c := range p.chunks {
		chunks <- c
	}
	if p.err != nil {
		errs <- p.err
	}
	close(chunks)
	close(errs)
	return chunks, errs
}

func newTestService(p ai.Provider) *Service {
	reg := ai.NewRegistry()
	reg.Register("fake", func(ctx context.Context, model string) (ai.Provider, error) {
		_ = ctx
		_ = model
		return p, nil
	})
	return NewService(reg, prompt.NewAssembler("persona", 10), "fake", "m", nil)
}

func TestStream_RelaysChunks(t *testing.T) {
	prov := &fakeProvider{chunks: []string{"Hel", "lo"}}
	svc := newTestService(prov)

	chunks, errs := svc.Stream(context.Background(), "hi", nil)

	var got string
	for c := range chunks {
		got += c
	}
	if err := <-errs; err != nil {
		t.Fatalf("unexpected stream error: %v", err)
	}
	if got != "Hello" {
		t.Fatalf("expected accumulated %q, got %q", "Hello", got)
	}

	// prompt assembly happened: system + new user message
	if len(prov.last) != 2 {
		t.Fatalf("expected 2 provider messages, got %d", len(prov.last))
	}
	if prov.last[0].Role != "system" {
		t.Fatalf("first provider message must be the system prompt, got %q", prov.last[0].Role)
	}
}

func TestStream_WindowsHistoryThroughAssembler(t *testing.T) {
	prov := &fakeProvider{chunks: []string{"ok"}}
	svc := newTestService(prov)

	history := make([]ai.Message, 15)
	for i := range history {
		history[i] = ai.Message{Role: "user", Content: "seed"}
	}

	chunks, errs := svc.Stream(context.Background(), "new", history)
	for range chunks {
	}
	<-errs

	if len(prov.last) != 12 {
		t.Fatalf("expected 1 system + 10 history + 1 new = 12 messages, got %d", len(prov.last))
	}
}

func TestStream_ProviderError(t *testing.T) {
	wantErr := errors.New("upstream down")
	prov := &fakeProvider{err: wantErr}
	svc := newTestService(prov)

	chunks, errs := svc.Stream(context.Background(), "hi", nil)
	for range chunks {
	}
	if err := <-errs; !errors.Is(err, wantErr) {
		t.Fatalf("expected provider error, got %v", err)
	}
}

func TestStream_UnknownProvider(t *testing.T) {
	svc := NewService(ai.NewRegistry(), prompt.NewAssembler("persona", 10), "missing", "m", nil)

	chunks, errs := svc.Stream(context.Background(), "hi", nil)
	for range chunks {
	}
	if err := <-errs; err == nil {
		t.Fatalf("expected error for unregistered provider")
	}
}

func TestStoreReporter_AppliesTokensDetached(t *testing.T) {
	store := quota.NewMemoryStore(quota.DefaultLimits())
	key := "1.2.3.4:sess-1"

	// AddTokens only touches live records
	if d := store.CheckAndAdmit(context.Background(), key); !d.Allowed {
		t.Fatalf("admission failed: %s", d.Reason)
	}

	r := &StoreReporter{Store: store}
	r.Report(key, 7)

	deadline := time.Now().Add(2 * time.Second)
	for {
		_, tokens, _ := store.Snapshot(key)
		if tokens == 7 {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("token delta not applied, have %d", tokens)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestStoreReporter_IgnoresZero(t *testing.T) {
	store := quota.NewMemoryStore(quota.DefaultLimits())
	r := &StoreReporter{Store: store}
	r.Report("k", 0)
	r.Report("k", -3)
	// nothing to assert beyond "no panic, no record created"
	if _, _, ok := store.Snapshot("k"); ok {
		t.Fatalf("zero usage must not create records")
	}
}
