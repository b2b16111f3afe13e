package chat

import (
	"strings"

	"github.com/anima-sh/anima/internal/memory"
	"github.com/anima-sh/anima/internal/persona"
	"github.com/anima-sh/anima/internal/provider"
	"github.com/anima-sh/anima/internal/session"
)

// buildRequest assembles the provider request: persona system prompt
// plus memory block, then the recent history, then the user turn.
func (e *Engine) buildRequest(p *persona.Persona, retrieved []memory.Retrieved,
	history []*session.Message, userText string) provider.Request {

	temperature := e.cfg.Temperature
	if p.Temperature != nil {
		temperature = *p.Temperature
	}

	msgs := make([]provider.Message, 0, len(history)+1)
	for _, m := range history {
		role := provider.RoleUser
		if m.Role == session.RoleAssistant {
			role = provider.RoleAssistant
		}
		msgs = append(msgs, provider.Message{Role: role, Content: m.Content})
	}
	msgs = append(msgs, provider.Message{Role: provider.RoleUser, Content: userText})

	return provider.Request{
		System:      composeSystemPrompt(p, retrieved, e.cfg.MemoryBudget),
		Messages:    msgs,
		Model:       p.Model,
		Temperature: temperature,
		MaxTokens:   e.cfg.MaxTokens,
	}
}

// composeSystemPrompt appends the retrieved-memory block to the
// persona's system prompt. budgetTokens bounds the block size
// (1 token ~ 4 chars).
func composeSystemPrompt(p *persona.Persona, retrieved []memory.Retrieved, budgetTokens int) string {
	var b strings.Builder
	b.WriteString(p.SystemPrompt)

	if len(p.Traits) > 0 {
		b.WriteString("\n\nTraits: ")
		b.WriteString(strings.Join(p.Traits, ", "))
	}

	block := memory.FormatRetrieved(retrieved, budgetTokens*4)
	if block != "" {
		b.WriteString("\n\nThings you remember about this user:\n")
		b.WriteString(block)
	}

	return b.String()
}
