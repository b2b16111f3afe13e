package embed

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
)

// OpenAI embeds text with the OpenAI embeddings API.
// The API key is read from OPENAI_API_KEY by the SDK.
type OpenAI struct {
	client *openai.Client
	model  string
}

// NewOpenAI creates an OpenAI embedder. model is typically
// "text-embedding-3-small".
func NewOpenAI(model string) *OpenAI {
	c := openai.NewClient()
	return &OpenAI{client: &c, model: model}
}

// Embed implements Embedder.
func (o *OpenAI) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := o.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(o.model),
		Input: openai.EmbeddingNewParamsInputUnion{
			OfString: openai.String(text),
		},
		Dimensions: openai.Int(Dimension),
	})
	if err != nil {
		return nil, fmt.Errorf("openai embeddings: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("empty embedding response")
	}

	raw := resp.Data[0].Embedding
	vec := make([]float32, len(raw))
	for i, v := range raw {
		vec[i] = float32(v)
	}
	if len(vec) != Dimension {
		return nil, fmt.Errorf("unexpected embedding dimension %d, want %d", len(vec), Dimension)
	}
	return vec, nil
}
