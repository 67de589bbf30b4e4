package rag

import "context"

// Record 向量库中的一条记录
// Metadata 至少携带 text 和 source；缓存命名空间额外携带 answer / questions
type Record struct {
	ID       string
	Vector   []float32
	Metadata map[string]string
}

// QueryMatch 向量检索命中结果
type QueryMatch struct {
	ID       string
	Score    float64
	Metadata map[string]string
}

// VectorStore 向量存储抽象
// namespace 用于隔离主知识库与语义缓存
type VectorStore interface {
	Query(ctx context.Context, namespace string, vector []float32, topK int) ([]QueryMatch, error)
	Upsert(ctx context.Context, namespace string, record Record) error
	Ready() bool
}
