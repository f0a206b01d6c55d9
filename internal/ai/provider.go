package ai

import "context"

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Params are the fixed generation parameters applied to every completion.
type Params struct {
	MaxTokens   int
	Temperature float64
}

func DefaultParams() Params {
	return Params{MaxTokens: 1024, Temperature: 0.7}
}

// Provider streams assistant content chunks. Both channels are closed when
// streaming ends; at most one error is sent. A cancelled ctx terminates the
// stream early.
type Provider interface {
	StreamChat(ctx context.Context, messages []Message) (<-chan string, <-chan error)
}
