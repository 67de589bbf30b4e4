package rag

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryVectorStoreQueryOrdering(t *testing.T) {
	store := NewMemoryVectorStore()
	ctx := context.Background()

	records := []Record{
		{ID: "exact", Vector: []float32{1, 0}, Metadata: map[string]string{"text": "a"}},
		{ID: "close", Vector: []float32{0.9, 0.1}, Metadata: map[string]string{"text": "b"}},
		{ID: "far", Vector: []float32{0, 1}, Metadata: map[string]string{"text": "c"}},
	}
	for _, record := range records {
		require.NoError(t, store.Upsert(ctx, "kb", record))
	}

	matches, err := store.Query(ctx, "kb", []float32{1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "exact", matches[0].ID)
	assert.Equal(t, "close", matches[1].ID)
	assert.InDelta(t, 1.0, matches[0].Score, 0.0001)
}

func TestMemoryVectorStoreUpsertReplacesByID(t *testing.T) {
	store := NewMemoryVectorStore()
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, "kb", Record{
		ID: "x", Vector: []float32{1, 0}, Metadata: map[string]string{"text": "old"}}))
	require.NoError(t, store.Upsert(ctx, "kb", Record{
		ID: "x", Vector: []float32{1, 0}, Metadata: map[string]string{"text": "new"}}))

	matches, err := store.Query(ctx, "kb", []float32{1, 0}, 10)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "new", matches[0].Metadata["text"])
}

func TestMemoryVectorStoreNamespaceIsolation(t *testing.T) {
	store := NewMemoryVectorStore()
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, "kb", Record{
		ID: "a", Vector: []float32{1, 0}, Metadata: map[string]string{"text": "knowledge"}}))

	matches, err := store.Query(ctx, "cache", []float32{1, 0}, 10)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, cosineSimilarity([]float32{1, 0}, []float32{2, 0}), 0.0001)
	assert.InDelta(t, 0.0, cosineSimilarity([]float32{1, 0}, []float32{0, 1}), 0.0001)
	assert.Equal(t, 0.0, cosineSimilarity([]float32{1, 0}, []float32{1, 0, 0}))
	assert.Equal(t, 0.0, cosineSimilarity(nil, nil))
}
