package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/cloudwego/eino/components/retriever"
	"github.com/cloudwego/eino/schema"
	"github.com/qdrant/go-client/qdrant"
)

const (
	payloadText   = "text"
	payloadSource = "source"
)

// QdrantConfig describes where the vector index lives.
type QdrantConfig struct {
	Host       string
	Port       int
	APIKey     string
	UseTLS     bool
	Collection string
}

// Connect opens a gRPC client to Qdrant.
func Connect(cfg QdrantConfig) (*qdrant.Client, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Qdrant at %s:%d: %w", cfg.Host, cfg.Port, err)
	}
	return client, nil
}

type pointQuerier interface {
	Query(ctx context.Context, request *qdrant.QueryPoints) ([]*qdrant.ScoredPoint, error)
}

// QdrantRetriever answers similarity queries against a Qdrant collection.
type QdrantRetriever struct {
	client         pointQuerier
	embedder       embedding.Embedder
	collection     string
	topK           int
	scoreThreshold *float64
}

// RetrieverConfig tunes a QdrantRetriever.
type RetrieverConfig struct {
	Collection     string
	TopK           int
	ScoreThreshold *float64
}

// NewQdrantRetriever builds a retriever; client is usually a *qdrant.Client.
func NewQdrantRetriever(client pointQuerier, embedder embedding.Embedder, cfg RetrieverConfig) (*QdrantRetriever, error) {
	if client == nil {
		return nil, errors.New("qdrant client is required")
	}
	if embedder == nil {
		return nil, errors.New("embedder is required")
	}
	if cfg.Collection == "" {
		return nil, errors.New("qdrant collection is required")
	}
	topK := cfg.TopK
	if topK <= 0 {
		topK = 3
	}
	return &QdrantRetriever{
		client:         client,
		embedder:       embedder,
		collection:     cfg.Collection,
		topK:           topK,
		scoreThreshold: cfg.ScoreThreshold,
	}, nil
}

// Retrieve embeds query and returns the closest chunks, best first.
func (r *QdrantRetriever) Retrieve(ctx context.Context, query string, opts ...retriever.Option) ([]*schema.Document, error) {
	collection := r.collection
	topK := r.topK
	options := retriever.GetCommonOptions(&retriever.Options{
		Index:          &collection,
		TopK:           &topK,
		ScoreThreshold: r.scoreThreshold,
		Embedding:      r.embedder,
	}, opts...)

	vectors, err := options.Embedding.EmbedStrings(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) != 1 || len(vectors[0]) == 0 {
		return nil, errors.New("embed query: empty embedding")
	}

	limit := uint64(*options.TopK)
	req := &qdrant.QueryPoints{
		CollectionName: *options.Index,
		Query:          qdrant.NewQueryDense(toFloat32(vectors[0])),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayloadInclude(payloadText, payloadSource),
	}
	if options.ScoreThreshold != nil {
		threshold := float32(*options.ScoreThreshold)
		req.ScoreThreshold = &threshold
	}

	points, err := r.client.Query(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to search in Qdrant: %w", err)
	}

	docs := make([]*schema.Document, 0, len(points))
	for _, point := range points {
		payload := point.GetPayload()
		text := payload[payloadText].GetStringValue()
		if text == "" {
			continue
		}
		doc := &schema.Document{
			ID:       pointID(point.GetId()),
			Content:  text,
			MetaData: map[string]any{payloadSource: payload[payloadSource].GetStringValue()},
		}
		docs = append(docs, doc.WithScore(float64(point.GetScore())))
	}

	log.Printf("[retrieval] collection=%s top_k=%d hits=%d", *options.Index, *options.TopK, len(docs))
	return docs, nil
}

func pointID(id *qdrant.PointId) string {
	if id == nil {
		return ""
	}
	if u := id.GetUuid(); u != "" {
		return u
	}
	return strconv.FormatUint(id.GetNum(), 10)
}
