package retrieval

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/cloudwego/eino/components/document"
	"github.com/cloudwego/eino/components/embedding"
	"github.com/cloudwego/eino/schema"
	"github.com/ollama/ollama/api"
	"github.com/qdrant/go-client/qdrant"
)

var errBackend = errors.New("backend unavailable")

type fakeEmbedClient struct {
	mu       sync.Mutex
	requests []*api.EmbedRequest
	dim      int
	err      error
	short    bool
}

func (f *fakeEmbedClient) Embed(_ context.Context, req *api.EmbedRequest) (*api.EmbedResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	inputs, _ := req.Input.([]string)
	n := len(inputs)
	if f.short && n > 0 {
		n--
	}
	out := make([][]float32, n)
	for i := range out {
		vec := make([]float32, f.dim)
		for j := range vec {
			vec[j] = float32(i+1) / float32(j+2)
		}
		out[i] = vec
	}
	return &api.EmbedResponse{Model: req.Model, Embeddings: out}, nil
}

// stubEmbedder returns a fixed-width vector per text.
type stubEmbedder struct {
	dim   int
	calls [][]string
	err   error
}

func (s *stubEmbedder) EmbedStrings(_ context.Context, texts []string, _ ...embedding.Option) ([][]float64, error) {
	s.calls = append(s.calls, texts)
	if s.err != nil {
		return nil, s.err
	}
	out := make([][]float64, len(texts))
	for i := range texts {
		out[i] = make([]float64, s.dim)
		out[i][0] = float64(i)
	}
	return out, nil
}

type fakeQuerier struct {
	requests []*qdrant.QueryPoints
	points   []*qdrant.ScoredPoint
	err      error
}

func (f *fakeQuerier) Query(_ context.Context, req *qdrant.QueryPoints) ([]*qdrant.ScoredPoint, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	return f.points, nil
}

type fakeCollections struct {
	exists  bool
	created []*qdrant.CreateCollection
	upserts []*qdrant.UpsertPoints
	err     error
}

func (f *fakeCollections) CollectionExists(context.Context, string) (bool, error) {
	return f.exists, nil
}

func (f *fakeCollections) CreateCollection(_ context.Context, req *qdrant.CreateCollection) error {
	f.created = append(f.created, req)
	f.exists = true
	return nil
}

func (f *fakeCollections) Upsert(_ context.Context, req *qdrant.UpsertPoints) (*qdrant.UpdateResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.upserts = append(f.upserts, req)
	return &qdrant.UpdateResult{}, nil
}

func scoredPoint(id, text, source string, score float32) *qdrant.ScoredPoint {
	return &qdrant.ScoredPoint{
		Id:    qdrant.NewID(id),
		Score: score,
		Payload: qdrant.NewValueMap(map[string]any{
			payloadText:   text,
			payloadSource: source,
		}),
	}
}

// paragraphSplitter cuts on blank lines, one output document per paragraph.
type paragraphSplitter struct {
	calls int
	err   error
}

func (p *paragraphSplitter) Transform(_ context.Context, docs []*schema.Document, _ ...document.TransformerOption) ([]*schema.Document, error) {
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	var out []*schema.Document
	for _, doc := range docs {
		for _, para := range strings.Split(doc.Content, "\n\n") {
			out = append(out, &schema.Document{ID: doc.ID, Content: para + "\n\n", MetaData: doc.MetaData})
		}
	}
	return out, nil
}
