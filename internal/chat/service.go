// Package chat orchestrates one chat exchange: prompt assembly, provider
// streaming and post-stream usage reporting. Admission (guard, verification,
// quota) happens before the service is invoked; the service holds no
// per-request state and persists no transcript.
package chat

import (
	"context"

	"github.com/plonguo/portfolio-api/internal/ai"
	"github.com/plonguo/portfolio-api/internal/prompt"
)

type Service struct {
	registry  *ai.Registry
	assembler *prompt.Assembler
	provider  string
	model     string
	reporter  UsageReporter
}

func NewService(registry *ai.Registry, assembler *prompt.Assembler, provider, model string, reporter UsageReporter) *Service {
	if provider == "" {
		provider = "openai"
	}
	if reporter == nil {
		reporter = NopReporter{}
	}
	return &Service{
		registry:  registry,
		assembler: assembler,
		provider:  provider,
		model:     model,
		reporter:  reporter,
	}
}

// Stream assembles the model-facing message list and relays provider chunks.
// Both channels are closed when the stream ends; at most one error is sent.
// The caller-supplied history is trusted only as conversational context, the
// assembler re-roles anything that is not an assistant turn.
func (s *Service) Stream(ctx context.Context, sanitizedMessage string, history []ai.Message) (<-chan string, <-chan error) {
	provider, err := s.registry.Get(ctx, s.provider, s.model)
	if err != nil {
		chunks := make(chan string)
		errs := make(chan error, 1)
		errs <- err
		close(chunks)
		close(errs)
		return chunks, errs
	}

	messages := s.assembler.Assemble(history, sanitizedMessage)
	return provider.StreamChat(ctx, messages)
}

// ReportUsage hands the approximate token count of a finished stream to the
// configured reporter. It never blocks and never fails the exchange.
func (s *Service) ReportUsage(identityKey string, tokens int) {
	s.reporter.Report(identityKey, tokens)
}
