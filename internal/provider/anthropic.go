package provider

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
)

// Anthropic generates completions via the Anthropic Messages API.
// The API key is read from ANTHROPIC_API_KEY by the SDK.
type Anthropic struct {
	client       *anthropic.Client
	defaultModel string
	logger       *slog.Logger
}

// NewAnthropic creates an Anthropic provider.
func NewAnthropic(defaultModel string, logger *slog.Logger) *Anthropic {
	c := anthropic.NewClient()
	return &Anthropic{
		client:       &c,
		defaultModel: defaultModel,
		logger:       logger.With("provider", "anthropic"),
	}
}

// Name implements Provider.
func (a *Anthropic) Name() string { return "anthropic" }

// Complete implements Provider.
func (a *Anthropic) Complete(ctx context.Context, req Request) (*Reply, error) {
	model := req.Model
	if model == "" {
		model = a.defaultModel
	}

	msgs := make([]anthropic.MessageParam, 0, len(req.Messages))
	for _, m := range req.Messages {
		switch m.Role {
		case RoleAssistant:
			msgs = append(msgs, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		default:
			msgs = append(msgs, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: int64(req.MaxTokens),
		Messages:  msgs,
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}
	if req.Temperature > 0 {
		params.Temperature = anthropic.Float(float64(req.Temperature))
	}

	msg, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic messages: %w", err)
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if v, ok := block.AsAny().(anthropic.TextBlock); ok {
			sb.WriteString(v.Text)
		}
	}
	if sb.Len() == 0 {
		return nil, ErrEmptyReply
	}

	a.logger.Debug("completion generated", "model", model, "chars", sb.Len())
	return &Reply{Text: sb.String()}, nil
}
