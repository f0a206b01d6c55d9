package chatclient

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ErrStreamInterrupted means the SSE stream ended without the done
// sentinel, either via an in-band error event or an abrupt disconnect.
var ErrStreamInterrupted = errors.New("chatclient: stream interrupted")

// APIError is a non-2xx response's decoded error envelope.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("chatclient: api error %d %s: %s", e.StatusCode, e.Code, e.Message)
}

// Client talks to the chat endpoint over HTTP and consumes its SSE stream.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: 5 * time.Minute},
	}
}

type streamEvent struct {
	Content string `json:"content"`
	Error   string `json:"error"`
}

// Stream posts the exchange and feeds content increments to onChunk. It
// returns nil only when the server closed the stream with the done
// sentinel.
func (c *Client) Stream(ctx context.Context, req SendRequest, onChunk func(delta string)) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("chatclient: encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/chat", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("chatclient: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient().Do(httpReq)
	if err != nil {
		return fmt.Errorf("chatclient: send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decodeAPIError(resp)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		payload := strings.TrimPrefix(line, "data: ")
		if payload == "[DONE]" {
			return nil
		}

		var ev streamEvent
		if err := json.Unmarshal([]byte(payload), &ev); err != nil {
			continue
		}
		if ev.Error != "" {
			return fmt.Errorf("%w: %s", ErrStreamInterrupted, ev.Error)
		}
		if ev.Content != "" {
			onChunk(ev.Content)
		}
	}
	if err := scanner.Err(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %v", ErrStreamInterrupted, err)
	}

	// EOF without the sentinel: the connection dropped mid-answer.
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return ErrStreamInterrupted
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

func decodeAPIError(resp *http.Response) error {
	var envelope struct {
		Error string `json:"error"`
		Code  string `json:"code"`
	}
	apiErr := &APIError{StatusCode: resp.StatusCode}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err == nil {
		apiErr.Code = envelope.Code
		apiErr.Message = envelope.Error
	}
	if apiErr.Message == "" {
		apiErr.Message = "Failed to send message. Please try again."
	}
	return apiErr
}
