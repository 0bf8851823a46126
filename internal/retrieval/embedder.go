package retrieval

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/ollama/ollama/api"
)

// embedClient is the slice of the Ollama API the embedder needs.
type embedClient interface {
	Embed(ctx context.Context, req *api.EmbedRequest) (*api.EmbedResponse, error)
}

// OllamaEmbedder exposes an Ollama embedding model as an eino Embedder.
type OllamaEmbedder struct {
	client embedClient
	model  string
}

// NewOllamaEmbedder connects to the Ollama server at host (e.g. http://localhost:11434).
func NewOllamaEmbedder(host, model string, timeout time.Duration) (*OllamaEmbedder, error) {
	host = strings.TrimSpace(host)
	if host == "" {
		host = "http://localhost:11434"
	}
	base, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama host %q: %w", host, err)
	}
	if strings.TrimSpace(model) == "" {
		return nil, errors.New("ollama embedding model is required")
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	client := api.NewClient(base, &http.Client{Timeout: timeout})
	return newOllamaEmbedder(client, model), nil
}

func newOllamaEmbedder(client embedClient, model string) *OllamaEmbedder {
	return &OllamaEmbedder{client: client, model: model}
}

// EmbedStrings embeds texts in one request, preserving order.
func (e *OllamaEmbedder) EmbedStrings(ctx context.Context, texts []string, opts ...embedding.Option) ([][]float64, error) {
	if len(texts) == 0 {
		return [][]float64{}, nil
	}

	model := e.model
	options := embedding.GetCommonOptions(&embedding.Options{Model: &model}, opts...)
	if options.Model != nil && *options.Model != "" {
		model = *options.Model
	}

	resp, err := e.client.Embed(ctx, &api.EmbedRequest{Model: model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("ollama embed: %w", err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("ollama embed: got %d vectors for %d inputs", len(resp.Embeddings), len(texts))
	}

	out := make([][]float64, len(resp.Embeddings))
	for i, vec := range resp.Embeddings {
		converted := make([]float64, len(vec))
		for j, v := range vec {
			converted[j] = float64(v)
		}
		out[i] = converted
	}
	return out, nil
}

func toFloat32(vec []float64) []float32 {
	out := make([]float32, len(vec))
	for i, v := range vec {
		out[i] = float32(v)
	}
	return out
}
