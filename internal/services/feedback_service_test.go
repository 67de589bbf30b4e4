package services

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/izana/backend-go/internal/rag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeedbackFiveStarPromotesToCache(t *testing.T) {
	embedder := newStubEmbedder(map[string][]float32{
		"What is AMH?": {0, 1, 0},
	})
	store := rag.NewMemoryVectorStore()
	cache := NewSemanticCache(embedder, store, "semantic_cache", 0.95)
	svc := NewFeedbackService(NewLogStore(nil, nil), cache)

	// 日志库不可用时反馈保存失败，但晋升路径仍可单测：直接走cache
	_, err := svc.Submit(context.Background(), &FeedbackRequest{
		Question: "What is AMH?",
		Answer:   "AMH reflects ovarian reserve.",
		Rating:   5,
	})
	// 无数据库时持久化失败
	require.Error(t, err)

	// 持久化失败不触发晋升
	hit, lookupErr := cache.Lookup(context.Background(), "What is AMH?")
	require.NoError(t, lookupErr)
	assert.Nil(t, hit)
}

func TestFeedbackPromotionOnlyOnFiveStars(t *testing.T) {
	embedder := newStubEmbedder(map[string][]float32{
		"What is AMH?": {0, 1, 0},
	})
	store := rag.NewMemoryVectorStore()
	cache := NewSemanticCache(embedder, store, "semantic_cache", 0.95)

	db, mock := newMockDB(t)
	svc := NewFeedbackService(NewLogStore(db, nil), cache)

	// 4星：只保存，不晋升
	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "feedback"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectCommit()

	resp, err := svc.Submit(context.Background(), &FeedbackRequest{
		Question: "What is AMH?", Answer: "AMH reflects ovarian reserve.", Rating: 4,
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Status)

	hit, err := cache.Lookup(context.Background(), "What is AMH?")
	require.NoError(t, err)
	assert.Nil(t, hit)

	// 5星：保存并异步晋升
	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "feedback"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(2))
	mock.ExpectCommit()

	resp, err = svc.Submit(context.Background(), &FeedbackRequest{
		Question:           "What is AMH?",
		Answer:             "AMH reflects ovarian reserve.",
		Rating:             5,
		SuggestedQuestions: []string{"What is a normal AMH level?"},
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Status)

	assert.Eventually(t, func() bool {
		hit, err := cache.Lookup(context.Background(), "What is AMH?")
		return err == nil && hit != nil
	}, time.Second, 10*time.Millisecond)

	hit, err = cache.Lookup(context.Background(), "What is AMH?")
	require.NoError(t, err)
	require.NotNil(t, hit)
	assert.Equal(t, "AMH reflects ovarian reserve.", hit.Answer)
	assert.Equal(t, []string{"What is a normal AMH level?"}, hit.SuggestedQuestions)
}

func TestFeedbackInvalidRatingRejected(t *testing.T) {
	svc := NewFeedbackService(NewLogStore(nil, nil), nil)
	_, err := svc.Submit(context.Background(), &FeedbackRequest{
		Question: "q", Answer: "a", Rating: 9,
	})
	assert.Error(t, err)
}
