package rag

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/izana/backend-go/internal/dashscope"
)

// DashScopeReranker 使用阿里云DashScope Rerank API
type DashScopeReranker struct {
	service *dashscope.Service
	model   string
}

// NewDashScopeReranker 创建DashScope重排序器
func NewDashScopeReranker(model string) Reranker {
	service := dashscope.GetGlobalService()
	if service == nil || !service.Ready() {
		return &NoopReranker{}
	}

	if model == "" {
		model = "gte-rerank"
	}

	return &DashScopeReranker{
		service: service,
		model:   model,
	}
}

func (r *DashScopeReranker) Rerank(ctx context.Context, query string, documents []string, topN int) ([]RerankResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, errors.New("query cannot be empty")
	}
	if len(documents) == 0 {
		return nil, errors.New("documents cannot be empty")
	}
	if r.service == nil || !r.service.Ready() {
		return nil, errors.New("dashscope service not initialized")
	}

	req := dashscope.RerankRequest{
		Model:     r.model,
		Query:     query,
		Documents: documents,
	}
	if topN > 0 {
		req.TopN = &topN
	}

	resp, err := r.service.CreateRerank(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("rerank request failed: %w", err)
	}
	if len(resp.Output.Results) == 0 {
		return nil, errors.New("rerank response empty")
	}

	results := make([]RerankResult, 0, len(resp.Output.Results))
	for _, item := range resp.Output.Results {
		if item.Index < 0 || item.Index >= len(documents) {
			continue
		}
		results = append(results, RerankResult{
			Index: item.Index,
			Score: item.RelevanceScore,
		})
	}

	// 按分数降序
	sort.Slice(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if topN > 0 && len(results) > topN {
		results = results[:topN]
	}
	return results, nil
}

func (r *DashScopeReranker) Ready() bool {
	return r.service != nil && r.service.Ready()
}
