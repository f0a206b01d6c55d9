// Package prompt builds the model-facing message list: the persona system
// prompt, a bounded slice of conversation history, and the new sanitized
// user message. The system prompt is always the first message and is never
// user-overridable; the guard's injection filter exists to keep user text
// from impersonating it.
package prompt

import (
	"os"

	"github.com/plonguo/portfolio-api/internal/ai"
)

const DefaultHistoryWindow = 10

type Assembler struct {
	systemPrompt  string
	historyWindow int
}

func NewAssembler(systemPrompt string, historyWindow int) *Assembler {
	if systemPrompt == "" {
		systemPrompt = defaultSystemPrompt
	}
	if historyWindow <= 0 {
		historyWindow = DefaultHistoryWindow
	}
	return &Assembler{systemPrompt: systemPrompt, historyWindow: historyWindow}
}

// NewAssemblerFromFile loads the persona document from path, falling back to
// the built-in one when path is empty or unreadable.
func NewAssemblerFromFile(path string, historyWindow int) *Assembler {
	sys := ""
	if path != "" {
		if b, err := os.ReadFile(path); err == nil {
			sys = string(b)
		}
	}
	return NewAssembler(sys, historyWindow)
}

// Assemble returns [system] + last historyWindow entries + [userMessage].
// History arrives oldest-first and only its tail is kept, to bound both
// latency and per-request token cost.
func (a *Assembler) Assemble(history []ai.Message, userMessage string) []ai.Message {
	recent := history
	if len(recent) > a.historyWindow {
		recent = recent[len(recent)-a.historyWindow:]
	}

	out := make([]ai.Message, 0, len(recent)+2)
	out = append(out, ai.Message{Role: "system", Content: a.systemPrompt})
	for _, m := range recent {
		role := m.Role
		if role != "assistant" {
			role = "user"
		}
		out = append(out, ai.Message{Role: role, Content: m.Content})
	}
	out = append(out, ai.Message{Role: "user", Content: userMessage})
	return out
}
