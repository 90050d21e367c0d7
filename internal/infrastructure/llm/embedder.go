package llm

import (
	"context"
	"strings"

	"github.com/openai/openai-go"

	"newsroom/internal/domain/article"
	"newsroom/internal/ports"
)

type Embedder struct {
	client *Client
}

var _ ports.Embedder = (*Embedder)(nil)

func NewEmbedder(client *Client) *Embedder {
	return &Embedder{client: client}
}

func (e *Embedder) Embed(ctx context.Context, text string) ([]float64, error) {
	if err := e.client.check(ctx); err != nil {
		return nil, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, article.Validationf("embedding text is empty")
	}

	resp, err := e.client.api.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{
			OfArrayOfStrings: []string{text},
		},
		Model: openai.EmbeddingModel(e.client.embeddingModel),
	})
	if err != nil {
		return nil, providerError(err, "create embedding")
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, article.Providerf("create embedding: empty vector")
	}
	return resp.Data[0].Embedding, nil
}
