package provider

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/openai/openai-go"
)

// OpenAI generates completions via the OpenAI chat completions API.
// The API key is read from OPENAI_API_KEY by the SDK.
type OpenAI struct {
	client       *openai.Client
	defaultModel string
	logger       *slog.Logger
}

// NewOpenAI creates an OpenAI provider.
func NewOpenAI(defaultModel string, logger *slog.Logger) *OpenAI {
	c := openai.NewClient()
	return &OpenAI{
		client:       &c,
		defaultModel: defaultModel,
		logger:       logger.With("provider", "openai"),
	}
}

// Name implements Provider.
func (o *OpenAI) Name() string { return "openai" }

// Complete implements Provider.
func (o *OpenAI) Complete(ctx context.Context, req Request) (*Reply, error) {
	model := req.Model
	if model == "" {
		model = o.defaultModel
	}

	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages)+1)
	if req.System != "" {
		msgs = append(msgs, openai.SystemMessage(req.System))
	}
	for _, m := range req.Messages {
		switch m.Role {
		case RoleAssistant:
			msgs = append(msgs, openai.AssistantMessage(m.Content))
		default:
			msgs = append(msgs, openai.UserMessage(m.Content))
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(model),
		Messages: msgs,
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(req.MaxTokens))
	}
	if req.Temperature > 0 {
		params.Temperature = openai.Float(float64(req.Temperature))
	}

	resp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return nil, ErrEmptyReply
	}

	text := resp.Choices[0].Message.Content
	o.logger.Debug("completion generated", "model", model, "chars", len(text))
	return &Reply{Text: text}, nil
}
