// Package provider abstracts hosted chat-completion services behind a
// small interface and composes them into an ordered failover cascade.
package provider

import (
	"context"
	"errors"
)

// Role identifies the author of a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single turn of conversation history.
type Message struct {
	Role    Role
	Content string
}

// Request carries everything a provider needs for one completion.
type Request struct {
	System      string    // system prompt, may be empty
	Messages    []Message // ordered history, last entry is the user turn
	Model       string    // provider-specific model override, empty uses the provider default
	Temperature float32
	MaxTokens   int
}

// Reply is a provider's completion.
type Reply struct {
	Text string
}

// ErrEmptyReply indicates the provider returned no usable text.
var ErrEmptyReply = errors.New("provider returned empty reply")

// Provider generates a chat completion.
type Provider interface {
	// Name identifies the provider in logs and responses.
	Name() string

	// Complete generates a reply for the request. Implementations must
	// honor ctx cancellation.
	Complete(ctx context.Context, req Request) (*Reply, error)
}
