// Package bootstrap assembles the retrieval stack from configuration for the
// server and the command line tools.
package bootstrap

import (
	"context"
	"log"

	"github.com/qdrant/go-client/qdrant"

	"github.com/zhouzirui/rag-assistant/backend/internal/config"
	"github.com/zhouzirui/rag-assistant/backend/internal/retrieval"
	"github.com/zhouzirui/rag-assistant/backend/internal/service/rag"
)

// Retrieval holds the clients shared by the chain and the indexer.
type Retrieval struct {
	Qdrant   *qdrant.Client
	Embedder *retrieval.OllamaEmbedder
}

// Close releases the Qdrant connection.
func (r *Retrieval) Close() error {
	if r == nil || r.Qdrant == nil {
		return nil
	}
	return r.Qdrant.Close()
}

// OpenRetrieval connects to Ollama and Qdrant.
func OpenRetrieval(rc config.RetrievalConfig) (*Retrieval, error) {
	embedder, err := retrieval.NewOllamaEmbedder(rc.OllamaHost, rc.EmbedModel, rc.EmbedTimeout)
	if err != nil {
		return nil, err
	}

	client, err := retrieval.Connect(retrieval.QdrantConfig{
		Host:       rc.QdrantHost,
		Port:       rc.QdrantPort,
		APIKey:     rc.QdrantAPIKey,
		UseTLS:     rc.QdrantUseTLS,
		Collection: rc.Collection,
	})
	if err != nil {
		return nil, err
	}
	return &Retrieval{Qdrant: client, Embedder: embedder}, nil
}

// NewChain builds the RAG chain on top of r with a fresh Ark chat model.
func NewChain(ctx context.Context, cfg *config.Config, r *Retrieval) (*rag.Chain, error) {
	rc := cfg.Retrieval

	retriever, err := retrieval.NewQdrantRetriever(r.Qdrant, r.Embedder, retrieval.RetrieverConfig{
		Collection:     rc.Collection,
		TopK:           rc.TopK,
		ScoreThreshold: rc.ScoreThreshold,
	})
	if err != nil {
		return nil, err
	}

	chatModel, err := cfg.AI.NewChatModel(ctx)
	if err != nil {
		return nil, err
	}

	chain, err := rag.NewChain(ctx, chatModel, retriever, rag.Config{TopK: rc.TopK})
	if err != nil {
		return nil, err
	}
	log.Printf("[bootstrap] RAG chain ready collection=%s top_k=%d embed_model=%s", rc.Collection, chain.TopK(), rc.EmbedModel)
	return chain, nil
}

// NewIndexer builds the ingestion pipeline on top of r.
func NewIndexer(ctx context.Context, rc config.RetrievalConfig, r *Retrieval, batchSize int) (*retrieval.Indexer, error) {
	splitter, err := retrieval.NewSplitter(ctx, rc.ChunkSize, rc.ChunkOverlap)
	if err != nil {
		return nil, err
	}
	return retrieval.NewIndexer(r.Qdrant, r.Embedder, splitter, rc.Collection, batchSize)
}
