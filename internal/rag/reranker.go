package rag

import "context"

// RerankResult 重排序结果，按分数降序排列
type RerankResult struct {
	Index int     `json:"index"` // 输入documents中的下标
	Score float64 `json:"relevance_score"`
}

// Reranker 重排序接口
type Reranker interface {
	Rerank(ctx context.Context, query string, documents []string, topN int) ([]RerankResult, error)
	Ready() bool
}

// NoopReranker 默认占位实现
type NoopReranker struct{}

func (n *NoopReranker) Rerank(ctx context.Context, query string, documents []string, topN int) ([]RerankResult, error) {
	// 不进行重排序，保持原始顺序
	if topN <= 0 || topN > len(documents) {
		topN = len(documents)
	}
	results := make([]RerankResult, topN)
	for i := 0; i < topN; i++ {
		results[i] = RerankResult{Index: i}
	}
	return results, nil
}

func (n *NoopReranker) Ready() bool {
	return false
}
