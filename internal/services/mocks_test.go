package services

import (
	"context"

	"github.com/izana/backend-go/internal/rag"
	"github.com/stretchr/testify/mock"
)

// stubEmbedder 确定性向量生成，按预设映射返回，未知文本返回默认向量
type stubEmbedder struct {
	vectors map[string][]float32
	fail    error
}

func newStubEmbedder(vectors map[string][]float32) *stubEmbedder {
	return &stubEmbedder{vectors: vectors}
}

func (e *stubEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if e.fail != nil {
		return nil, e.fail
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if v, ok := e.vectors[text]; ok {
			out[i] = v
		} else {
			out[i] = []float32{1, 0, 0}
		}
	}
	return out, nil
}

func (e *stubEmbedder) Dimensions() int { return 3 }
func (e *stubEmbedder) Ready() bool     { return true }

// MockGenerator 模拟文本生成器
type MockGenerator struct {
	mock.Mock
}

func (m *MockGenerator) Generate(ctx context.Context, messages []rag.Message, opts rag.GenerateOptions) (string, error) {
	args := m.Called(ctx, messages, opts)
	return args.String(0), args.Error(1)
}

func (m *MockGenerator) Ready() bool {
	args := m.Called()
	return args.Bool(0)
}

// MockReranker 模拟重排序器
type MockReranker struct {
	mock.Mock
}

func (m *MockReranker) Rerank(ctx context.Context, query string, documents []string, topN int) ([]rag.RerankResult, error) {
	args := m.Called(ctx, query, documents, topN)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]rag.RerankResult), args.Error(1)
}

func (m *MockReranker) Ready() bool {
	args := m.Called()
	return args.Bool(0)
}

// MockVectorStore 模拟向量存储
type MockVectorStore struct {
	mock.Mock
}

func (m *MockVectorStore) Query(ctx context.Context, namespace string, vector []float32, topK int) ([]rag.QueryMatch, error) {
	args := m.Called(ctx, namespace, vector, topK)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]rag.QueryMatch), args.Error(1)
}

func (m *MockVectorStore) Upsert(ctx context.Context, namespace string, record rag.Record) error {
	args := m.Called(ctx, namespace, record)
	return args.Error(0)
}

func (m *MockVectorStore) Ready() bool {
	args := m.Called()
	return args.Bool(0)
}
