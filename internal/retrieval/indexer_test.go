package retrieval

import (
	"context"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestIndexer(t *testing.T, client *fakeCollections, embedder *stubEmbedder, batch int) *Indexer {
	t.Helper()
	ix, err := NewIndexer(client, embedder, &paragraphSplitter{}, "my_rag", batch)
	require.NoError(t, err)
	return ix
}

func TestIndexerCreatesCollectionAndUpserts(t *testing.T) {
	client := &fakeCollections{}
	embedder := &stubEmbedder{dim: 8}
	ix := newTestIndexer(t, client, embedder, 2)

	docs := []*schema.Document{
		{ID: "hackrf.md", Content: "HackRF One is an SDR peripheral.\n\nIt covers 1 MHz to 6 GHz.\n\nIt is half-duplex.", MetaData: map[string]any{payloadSource: "hackrf.md"}},
	}
	n, err := ix.Index(context.Background(), docs)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	require.Len(t, client.created, 1)
	assert.Equal(t, "my_rag", client.created[0].CollectionName)
	assert.Equal(t, uint64(8), client.created[0].GetVectorsConfig().GetParams().GetSize())

	require.Len(t, client.upserts, 2)
	assert.Len(t, client.upserts[0].Points, 2)
	assert.Len(t, client.upserts[1].Points, 1)
	require.NotNil(t, client.upserts[0].Wait)
	assert.True(t, *client.upserts[0].Wait)

	first := client.upserts[0].Points[0]
	assert.Equal(t, "HackRF One is an SDR peripheral.", first.Payload[payloadText].GetStringValue())
	assert.Equal(t, "hackrf.md", first.Payload[payloadSource].GetStringValue())
}

func TestIndexerIDsAreStable(t *testing.T) {
	docs := []*schema.Document{{ID: "a.txt", Content: "same content"}}

	first := &fakeCollections{}
	_, err := newTestIndexer(t, first, &stubEmbedder{dim: 2}, 0).Index(context.Background(), docs)
	require.NoError(t, err)

	second := &fakeCollections{exists: true}
	_, err = newTestIndexer(t, second, &stubEmbedder{dim: 2}, 0).Index(context.Background(), docs)
	require.NoError(t, err)

	assert.Empty(t, second.created)
	assert.Equal(t,
		first.upserts[0].Points[0].Id.GetUuid(),
		second.upserts[0].Points[0].Id.GetUuid())
}

func TestIndexerNothingToIndex(t *testing.T) {
	client := &fakeCollections{}
	embedder := &stubEmbedder{dim: 2}
	n, err := newTestIndexer(t, client, embedder, 0).Index(context.Background(), []*schema.Document{{ID: "x", Content: "  "}})
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, embedder.calls)
	assert.Empty(t, client.created)
}

func TestIndexerPropagatesErrors(t *testing.T) {
	docs := []*schema.Document{{ID: "a.txt", Content: "text"}}

	_, err := newTestIndexer(t, &fakeCollections{}, &stubEmbedder{dim: 2, err: errBackend}, 0).Index(context.Background(), docs)
	require.ErrorIs(t, err, errBackend)

	_, err = newTestIndexer(t, &fakeCollections{err: errBackend}, &stubEmbedder{dim: 2}, 0).Index(context.Background(), docs)
	require.ErrorIs(t, err, errBackend)
}

func TestIndexerCountsPositionsPerSource(t *testing.T) {
	client := &fakeCollections{}
	ix := newTestIndexer(t, client, &stubEmbedder{dim: 2}, 0)

	// a PDF loaded page by page yields several documents with one source
	docs := []*schema.Document{
		{ID: "manual.pdf#1", Content: "page one", MetaData: map[string]any{payloadSource: "manual.pdf"}},
		{ID: "manual.pdf#2", Content: "page two", MetaData: map[string]any{payloadSource: "manual.pdf"}},
	}
	n, err := ix.Index(context.Background(), docs)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	points := client.upserts[0].Points
	assert.NotEqual(t, points[0].Id.GetUuid(), points[1].Id.GetUuid())
	assert.Equal(t, "page two", points[1].Payload[payloadText].GetStringValue())
}

func TestIndexerSplitterError(t *testing.T) {
	client := &fakeCollections{}
	embedder := &stubEmbedder{dim: 2}
	ix, err := NewIndexer(client, embedder, &paragraphSplitter{err: errBackend}, "my_rag", 0)
	require.NoError(t, err)

	_, err = ix.Index(context.Background(), []*schema.Document{{ID: "a.txt", Content: "text"}})
	require.ErrorIs(t, err, errBackend)
	assert.Empty(t, embedder.calls)
}
