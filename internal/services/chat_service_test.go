package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/izana/backend-go/internal/rag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func isDraftCall(o rag.GenerateOptions) bool {
	return o.Tier == rag.TierDraft
}

func isQCCall(o rag.GenerateOptions) bool {
	return o.Tier == rag.TierFast && o.JSONMode
}

func isFastPlainCall(o rag.GenerateOptions) bool {
	return o.Tier == rag.TierFast && !o.JSONMode
}

// newTestChatService 装配一个最小可用的编排器
// generator同时承担草稿/QC/辅助检查，translator单独注入
func newTestChatService(generator rag.Generator, cache *SemanticCache,
	store rag.VectorStore, translator *Translator) *ChatService {
	qbGen := new(MockGenerator)
	qbGen.On("Ready").Return(false) // 不扩展查询，保持确定性

	embedder := newStubEmbedder(map[string][]float32{
		"What is IVF?": {1, 0, 0},
	})
	retriever := NewRetriever(embedder, store, &rag.NoopReranker{}, "medical_kb", 6, 3, 0.75,
		RetryPolicy{MaxAttempts: 1})

	if translator == nil {
		noop := new(MockGenerator)
		noop.On("Ready").Return(false)
		translator = NewTranslator(noop, "en")
	}

	return NewChatService(ChatServiceOptions{
		QueryBuilder:     NewQueryBuilder(qbGen, 3),
		Cache:            cache,
		Retriever:        retriever,
		Generator:        generator,
		Translator:       translator,
		LogStore:         NewLogStore(nil, nil),
		GapThreshold:     0.30,
		MaxMessageLength: 2000,
		Retry:            RetryPolicy{MaxAttempts: 1},
	})
}

func TestChatCacheHitSkipsPipeline(t *testing.T) {
	embedder := newStubEmbedder(map[string][]float32{
		"What is IVF?": {1, 0, 0},
	})
	cacheStore := rag.NewMemoryVectorStore()
	questions, _ := json.Marshal([]string{"How long does IVF take?"})
	require.NoError(t, cacheStore.Upsert(context.Background(), "semantic_cache", rag.Record{
		ID:     "cached-1",
		Vector: []float32{1, 0, 0},
		Metadata: map[string]string{
			"text":      "What is IVF?",
			"source":    CachedCitation,
			"answer":    "IVF is in vitro fertilization.",
			"questions": string(questions),
		},
	}))
	cache := NewSemanticCache(embedder, cacheStore, "semantic_cache", 0.95)

	// 未设置Generate期望：命中缓存后任何生成调用都会使测试失败
	generator := new(MockGenerator)
	generator.On("Ready").Return(true)

	svc := newTestChatService(generator, cache, rag.NewMemoryVectorStore(), nil)
	resp, err := svc.Chat(context.Background(), &ChatRequest{Message: "What is IVF?", Language: "en"})
	require.NoError(t, err)

	assert.True(t, resp.Cached)
	assert.Equal(t, "IVF is in vitro fertilization.", resp.Response)
	assert.Equal(t, []string{CachedCitation}, resp.Citations)
	assert.Equal(t, []string{"How long does IVF take?"}, resp.SuggestedQuestions)
	generator.AssertNotCalled(t, "Generate")
}

func TestChatCacheHitWithoutQuestionsGetsFallback(t *testing.T) {
	embedder := newStubEmbedder(map[string][]float32{
		"What is IVF?": {1, 0, 0},
	})
	cacheStore := rag.NewMemoryVectorStore()
	require.NoError(t, cacheStore.Upsert(context.Background(), "semantic_cache", rag.Record{
		ID:     "cached-2",
		Vector: []float32{1, 0, 0},
		Metadata: map[string]string{
			"text":      "What is IVF?",
			"source":    CachedCitation,
			"answer":    "IVF is in vitro fertilization.",
			"questions": "[]",
		},
	}))
	cache := NewSemanticCache(embedder, cacheStore, "semantic_cache", 0.95)

	generator := new(MockGenerator)
	generator.On("Ready").Return(true)

	svc := newTestChatService(generator, cache, rag.NewMemoryVectorStore(), nil)
	resp, err := svc.Chat(context.Background(), &ChatRequest{Message: "What is IVF?", Language: "en"})
	require.NoError(t, err)

	// 缓存条目无后续问题时补通用后续问题，保证响应始终带1-3条
	assert.True(t, resp.Cached)
	assert.Equal(t, fallbackQuestions, resp.SuggestedQuestions)
}

func TestChatGapWhenKnowledgeBaseEmpty(t *testing.T) {
	generator := new(MockGenerator)
	generator.On("Ready").Return(true)
	generator.On("Generate", mock.Anything, mock.MatchedBy(func(msgs []rag.Message) bool {
		// 缺口时上下文带通用知识提示
		return len(msgs) == 2 && strings.Contains(msgs[1].Content, "General Medical Knowledge")
	}), mock.MatchedBy(isDraftCall)).Return("Honest draft about limits.", nil)
	generator.On("Generate", mock.Anything, mock.Anything, mock.MatchedBy(isQCCall)).
		Return(`{"response":"Polished answer.","suggested_questions":["Next question?"]}`, nil)

	svc := newTestChatService(generator, nil, rag.NewMemoryVectorStore(), nil)
	resp, err := svc.Chat(context.Background(), &ChatRequest{Message: "What is IVF?", Language: "en"})
	require.NoError(t, err)

	assert.True(t, resp.IsGap)
	assert.Equal(t, "Polished answer.", resp.Response)
	assert.Equal(t, []string{"Next question?"}, resp.SuggestedQuestions)
	generator.AssertExpectations(t)
}

func TestChatDraftFailureReturnsFallback(t *testing.T) {
	generator := new(MockGenerator)
	generator.On("Ready").Return(true)
	generator.On("Generate", mock.Anything, mock.Anything, mock.MatchedBy(isDraftCall)).
		Return("", errors.New("model overloaded"))

	svc := newTestChatService(generator, nil, rag.NewMemoryVectorStore(), nil)
	resp, err := svc.Chat(context.Background(), &ChatRequest{Message: "What is IVF?", Language: "en"})
	require.NoError(t, err)

	// 草稿失败不向用户报错，返回兜底回答
	assert.Equal(t, fallbackResponse, resp.Response)
	assert.Equal(t, fallbackQuestions, resp.SuggestedQuestions)
	assert.Empty(t, resp.Citations)
}

func TestChatDraftFailureFallbackIsTranslated(t *testing.T) {
	generator := new(MockGenerator)
	generator.On("Ready").Return(true)
	generator.On("Generate", mock.Anything, mock.Anything, mock.MatchedBy(isDraftCall)).
		Return("", errors.New("model overloaded"))

	transGen := new(MockGenerator)
	transGen.On("Ready").Return(true)
	transGen.On("Generate", mock.Anything, mock.Anything, mock.Anything).
		Return("மன்னிக்கவும்", nil)
	translator := NewTranslator(transGen, "en")

	svc := newTestChatService(generator, nil, rag.NewMemoryVectorStore(), translator)
	resp, err := svc.Chat(context.Background(), &ChatRequest{Message: "What is IVF?", Language: "ta"})
	require.NoError(t, err)

	// 兜底回答也要翻译：道歉 + 3条通用后续问题各一次
	assert.Equal(t, "மன்னிக்கவும்", resp.Response)
	transGen.AssertNumberOfCalls(t, "Generate", 4)
}

func TestChatQCFailureReturnsRawDraft(t *testing.T) {
	generator := new(MockGenerator)
	generator.On("Ready").Return(true)
	generator.On("Generate", mock.Anything, mock.Anything, mock.MatchedBy(isDraftCall)).
		Return("Raw draft answer.", nil)
	generator.On("Generate", mock.Anything, mock.Anything, mock.MatchedBy(isQCCall)).
		Return("not valid json", nil)

	svc := newTestChatService(generator, nil, rag.NewMemoryVectorStore(), nil)
	resp, err := svc.Chat(context.Background(), &ChatRequest{Message: "What is IVF?", Language: "en"})
	require.NoError(t, err)

	assert.Equal(t, "Raw draft answer.", resp.Response)
	assert.Equal(t, fallbackQuestions, resp.SuggestedQuestions)
}

func TestChatTranslatesResponseAndEachQuestion(t *testing.T) {
	generator := new(MockGenerator)
	generator.On("Ready").Return(true)
	generator.On("Generate", mock.Anything, mock.Anything, mock.MatchedBy(isDraftCall)).
		Return("Draft.", nil)
	generator.On("Generate", mock.Anything, mock.Anything, mock.MatchedBy(isQCCall)).
		Return(`{"response":"Answer.","suggested_questions":["Q1?","Q2?"]}`, nil)

	transGen := new(MockGenerator)
	transGen.On("Ready").Return(true)
	transGen.On("Generate", mock.Anything, mock.Anything, mock.Anything).
		Return("மொழிபெயர்ப்பு", nil)
	translator := NewTranslator(transGen, "en")

	svc := newTestChatService(generator, nil, rag.NewMemoryVectorStore(), translator)
	resp, err := svc.Chat(context.Background(), &ChatRequest{Message: "What is IVF?", Language: "ta"})
	require.NoError(t, err)

	assert.Equal(t, "மொழிபெயர்ப்பு", resp.Response)
	// 响应 + 每条后续问题各一次翻译调用
	transGen.AssertNumberOfCalls(t, "Generate", 3)
}

func TestChatBloodWorkMissingMarkers(t *testing.T) {
	generator := new(MockGenerator)
	generator.On("Ready").Return(true)
	// 标志物检查返回缺失列表
	generator.On("Generate", mock.Anything, mock.MatchedBy(func(msgs []rag.Message) bool {
		return len(msgs) == 1 && strings.Contains(msgs[0].Content, "standard panel")
	}), mock.MatchedBy(isFastPlainCall)).Return("LH, TSH", nil)
	// 草稿提示词必须带上缺失标志物说明
	generator.On("Generate", mock.Anything, mock.MatchedBy(func(msgs []rag.Message) bool {
		return len(msgs) == 2 && strings.Contains(msgs[1].Content, "missing these markers: LH, TSH")
	}), mock.MatchedBy(isDraftCall)).Return("Lab review draft.", nil)
	generator.On("Generate", mock.Anything, mock.Anything, mock.MatchedBy(isQCCall)).
		Return(`{"response":"Lab review.","suggested_questions":["What next?"]}`, nil)

	svc := newTestChatService(generator, nil, rag.NewMemoryVectorStore(), nil)
	req := &ChatRequest{
		Language: "en",
		ClinicalData: &ClinicalData{Results: []LabResult{
			{Name: "FSH", Value: 5.4, Unit: "mIU/mL"},
			{Name: "AMH", Value: 1.2, Unit: "ng/mL"},
		}},
		Treatment: "IVF",
	}

	resp, err := svc.Chat(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "Lab review.", resp.Response)
	generator.AssertExpectations(t)
}

func TestChatMarkerCheckFailureNonFatal(t *testing.T) {
	generator := new(MockGenerator)
	generator.On("Ready").Return(true)
	generator.On("Generate", mock.Anything, mock.Anything, mock.MatchedBy(isFastPlainCall)).
		Return("", errors.New("fast model down"))
	generator.On("Generate", mock.Anything, mock.Anything, mock.MatchedBy(isDraftCall)).
		Return("Lab review draft.", nil)
	generator.On("Generate", mock.Anything, mock.Anything, mock.MatchedBy(isQCCall)).
		Return(`{"response":"Lab review.","suggested_questions":["What next?"]}`, nil)

	svc := newTestChatService(generator, nil, rag.NewMemoryVectorStore(), nil)
	req := &ChatRequest{
		ClinicalData: &ClinicalData{Results: []LabResult{}},
	}

	resp, err := svc.Chat(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "Lab review.", resp.Response)
}

func TestChatRejectsInvalidRequest(t *testing.T) {
	generator := new(MockGenerator)
	generator.On("Ready").Return(true)

	svc := newTestChatService(generator, nil, rag.NewMemoryVectorStore(), nil)
	_, err := svc.Chat(context.Background(), &ChatRequest{Message: "   "})
	assert.Error(t, err)
}

func TestChatGeneratorNotConfigured(t *testing.T) {
	svc := newTestChatService(&rag.NoopGenerator{}, nil, rag.NewMemoryVectorStore(), nil)
	_, err := svc.Chat(context.Background(), &ChatRequest{Message: "What is IVF?"})
	assert.Error(t, err)
}
