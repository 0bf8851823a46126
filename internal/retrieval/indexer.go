package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/cloudwego/eino/components/document"
	"github.com/cloudwego/eino/components/embedding"
	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
)

const defaultBatchSize = 64

type collectionWriter interface {
	CollectionExists(ctx context.Context, collectionName string) (bool, error)
	CreateCollection(ctx context.Context, request *qdrant.CreateCollection) error
	Upsert(ctx context.Context, request *qdrant.UpsertPoints) (*qdrant.UpdateResult, error)
}

// Indexer chunks documents, embeds the chunks and upserts them into Qdrant.
type Indexer struct {
	client     collectionWriter
	embedder   embedding.Embedder
	splitter   document.Transformer
	collection string
	batchSize  int
}

// NewIndexer wires the ingestion pipeline. batchSize <= 0 uses a default.
func NewIndexer(client collectionWriter, embedder embedding.Embedder, splitter document.Transformer, collection string, batchSize int) (*Indexer, error) {
	if client == nil || embedder == nil || splitter == nil {
		return nil, errors.New("indexer requires a client, an embedder and a splitter")
	}
	if collection == "" {
		return nil, errors.New("qdrant collection is required")
	}
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &Indexer{
		client:     client,
		embedder:   embedder,
		splitter:   splitter,
		collection: collection,
		batchSize:  batchSize,
	}, nil
}

type chunk struct {
	id     string
	text   string
	source string
}

// Index splits and stores docs, returning the number of chunks written. Chunk ids
// are derived from source and position so re-indexing overwrites in place.
func (ix *Indexer) Index(ctx context.Context, docs []*schema.Document) (int, error) {
	chunks, err := ix.split(ctx, docs)
	if err != nil {
		return 0, err
	}
	if len(chunks) == 0 {
		return 0, nil
	}

	ensured := false
	written := 0
	for start := 0; start < len(chunks); start += ix.batchSize {
		end := start + ix.batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.text
		}
		vectors, err := ix.embedder.EmbedStrings(ctx, texts)
		if err != nil {
			return written, fmt.Errorf("embed chunks: %w", err)
		}
		if len(vectors) != len(batch) {
			return written, fmt.Errorf("embed chunks: got %d vectors for %d chunks", len(vectors), len(batch))
		}

		if !ensured {
			if err := ix.ensureCollection(ctx, len(vectors[0])); err != nil {
				return written, err
			}
			ensured = true
		}

		points := make([]*qdrant.PointStruct, len(batch))
		for i, c := range batch {
			points[i] = &qdrant.PointStruct{
				Id:      qdrant.NewID(c.id),
				Vectors: qdrant.NewVectors(toFloat32(vectors[i])...),
				Payload: qdrant.NewValueMap(map[string]any{
					payloadText:   c.text,
					payloadSource: c.source,
				}),
			}
		}

		wait := true
		if _, err := ix.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: ix.collection,
			Wait:           &wait,
			Points:         points,
		}); err != nil {
			return written, fmt.Errorf("upsert points: %w", err)
		}
		written += len(batch)
		log.Printf("[indexer] upserted %d/%d chunks into %s", written, len(chunks), ix.collection)
	}
	return written, nil
}

// split runs each document through the splitter on its own so chunk positions
// count per source, even when a file was loaded as several documents.
func (ix *Indexer) split(ctx context.Context, docs []*schema.Document) ([]chunk, error) {
	var chunks []chunk
	positions := make(map[string]int)
	for _, doc := range docs {
		if doc == nil || strings.TrimSpace(doc.Content) == "" {
			continue
		}
		source := doc.ID
		if v, ok := doc.MetaData[payloadSource].(string); ok && v != "" {
			source = v
		}
		parts, err := ix.splitter.Transform(ctx, []*schema.Document{doc})
		if err != nil {
			return nil, fmt.Errorf("split %s: %w", source, err)
		}
		for _, part := range parts {
			if part == nil {
				continue
			}
			text := strings.TrimSpace(part.Content)
			if text == "" {
				continue
			}
			i := positions[source]
			positions[source]++
			chunks = append(chunks, chunk{
				id:     uuid.NewSHA1(uuid.NameSpaceURL, []byte(fmt.Sprintf("%s#%d", source, i))).String(),
				text:   text,
				source: source,
			})
		}
	}
	return chunks, nil
}

func (ix *Indexer) ensureCollection(ctx context.Context, dim int) error {
	if dim <= 0 {
		return errors.New("embedding dimension is zero")
	}
	exists, err := ix.client.CollectionExists(ctx, ix.collection)
	if err != nil {
		return fmt.Errorf("check collection: %w", err)
	}
	if exists {
		return nil
	}
	err = ix.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: ix.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dim),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("create collection %s: %w", ix.collection, err)
	}
	log.Printf("[indexer] created collection %s dim=%d", ix.collection, dim)
	return nil
}
