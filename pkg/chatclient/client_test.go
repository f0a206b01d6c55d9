package chatclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func sseServer(t *testing.T, lines []string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/chat" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, line := range lines {
			if _, err := w.Write([]byte(line + "\n\n")); err != nil {
				return
			}
			flusher.Flush()
		}
	}))
}

func TestClientStreamsUntilDone(t *testing.T) {
	srv := sseServer(t, []string{
		`data: {"content":"Hel"}`,
		`data: {"content":"lo"}`,
		`data: [DONE]`,
	})
	defer srv.Close()

	c := NewClient(srv.URL)
	var got strings.Builder
	err := c.Stream(context.Background(), SendRequest{Message: "hi", SessionID: "s1"}, func(delta string) {
		got.WriteString(delta)
	})
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if got.String() != "Hello" {
		t.Errorf("content = %q, want Hello", got.String())
	}
}

func TestClientSendsRequestBody(t *testing.T) {
	var seen SendRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&seen); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Write([]byte("data: [DONE]\n\n"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	req := SendRequest{
		Message:        "hi",
		SessionID:      "s1",
		History:        []HistoryEntry{{Role: "user", Content: "earlier"}},
		TurnstileToken: "tok",
	}
	if err := c.Stream(context.Background(), req, func(string) {}); err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if seen.Message != "hi" || seen.SessionID != "s1" || seen.TurnstileToken != "tok" {
		t.Errorf("server saw %+v", seen)
	}
	if len(seen.History) != 1 || seen.History[0].Content != "earlier" {
		t.Errorf("history = %+v", seen.History)
	}
}

func TestClientInBandStreamError(t *testing.T) {
	srv := sseServer(t, []string{
		`data: {"content":"par"}`,
		`data: {"error":"Stream interrupted"}`,
	})
	defer srv.Close()

	c := NewClient(srv.URL)
	var got strings.Builder
	err := c.Stream(context.Background(), SendRequest{Message: "hi"}, func(delta string) {
		got.WriteString(delta)
	})
	if !errors.Is(err, ErrStreamInterrupted) {
		t.Fatalf("err = %v, want ErrStreamInterrupted", err)
	}
	if got.String() != "par" {
		t.Errorf("partial content = %q", got.String())
	}
}

func TestClientAbruptEOFWithoutSentinel(t *testing.T) {
	srv := sseServer(t, []string{`data: {"content":"half"}`})
	defer srv.Close()

	c := NewClient(srv.URL)
	err := c.Stream(context.Background(), SendRequest{Message: "hi"}, func(string) {})
	if !errors.Is(err, ErrStreamInterrupted) {
		t.Fatalf("err = %v, want ErrStreamInterrupted", err)
	}
}

func TestClientDecodesErrorEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]string{
			"error": "Request limit exceeded (30/hour). Please try again later.",
			"code":  "RATE_LIMIT",
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	err := c.Stream(context.Background(), SendRequest{Message: "hi"}, func(string) {})

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusTooManyRequests || apiErr.Code != "RATE_LIMIT" {
		t.Errorf("apiErr = %+v", apiErr)
	}
	if !strings.Contains(apiErr.Message, "Request limit exceeded") {
		t.Errorf("message = %q", apiErr.Message)
	}
}

func TestClientAbort(t *testing.T) {
	blocked := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Write([]byte("data: {\"content\":\"one\"}\n\n"))
		w.(http.Flusher).Flush()
		<-blocked
	}))
	defer srv.Close()
	defer close(blocked)

	ctx, cancel := context.WithCancel(context.Background())
	c := NewClient(srv.URL)
	errCh := make(chan error, 1)
	go func() {
		errCh <- c.Stream(ctx, SendRequest{Message: "hi"}, func(delta string) {
			if delta == "one" {
				cancel()
			}
		})
	}()

	if err := <-errCh; !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
