package ai

import (
	"context"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIProvider is the primary completion provider, backed by the official
// SDK in streaming mode.
type OpenAIProvider struct {
	Model  string
	Params Params

	client openai.Client
}

func NewOpenAIProvider(apiKey, baseURL, model string, params Params) *OpenAIProvider {
	if model == "" {
		model = "gpt-4o-mini"
	}
	if params.MaxTokens <= 0 {
		params = DefaultParams()
	}

	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}

	return &OpenAIProvider{
		Model:  model,
		Params: params,
		client: openai.NewClient(opts...),
	}
}

func (p *OpenAIProvider) StreamChat(ctx context.Context, messages []Message) (<-chan string, <-chan error) {
	chunks := make(chan string, 16)
	errs := make(chan error, 1)

	go func() {
		defer close(chunks)
		defer close(errs)

		params := openai.ChatCompletionNewParams{
			Model:               openai.ChatModel(p.Model),
			Messages:            toOpenAIMessages(messages),
			MaxCompletionTokens: openai.Int(int64(p.Params.MaxTokens)),
			Temperature:         openai.Float(p.Params.Temperature),
		}

		stream := p.client.Chat.Completions.NewStreaming(ctx, params)
		defer stream.Close()

		for stream.Next() {
			evt := stream.Current()
			if len(evt.Choices) == 0 {
				continue
			}
			if content := evt.Choices[0].Delta.Content; content != "" {
				select {
				case chunks <- content:
				case <-ctx.Done():
					return
				}
			}
		}

		if err := stream.Err(); err != nil {
			errs <- err
		}
	}()

	return chunks, errs
}

func toOpenAIMessages(messages []Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch strings.ToLower(m.Role) {
		case "system":
			out = append(out, openai.SystemMessage(m.Content))
		case "assistant":
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}
