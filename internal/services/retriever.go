package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/izana/backend-go/internal/logger"
	"github.com/izana/backend-go/internal/rag"
	"go.uber.org/zap"
)

// RetrievedPassage 单次请求内的候选片段，不持久化
type RetrievedPassage struct {
	ID     string
	Text   string
	Source string
	Score  float64
}

// RetrievalResult 检索与重排序的汇总结果
type RetrievalResult struct {
	Passages     []RetrievedPassage
	HighestScore float64 // 缺口信号：全程观察到的最高置信度
	ContextBlock string
	Citations    []string // 清洗后的来源标签，按首次出现顺序去重
	Reranked     bool
}

// Retriever 多查询向量检索 + 可选重排序
type Retriever struct {
	embedder        rag.Embedder
	store           rag.VectorStore
	reranker        rag.Reranker
	namespace       string
	topK            int
	rerankTopN      int
	similarityFloor float64
	retry           RetryPolicy
}

// NewRetriever 创建检索器
func NewRetriever(embedder rag.Embedder, store rag.VectorStore, reranker rag.Reranker,
	namespace string, topK, rerankTopN int, similarityFloor float64, retry RetryPolicy) *Retriever {
	if topK <= 0 {
		topK = 6
	}
	if rerankTopN <= 0 {
		rerankTopN = 3
	}
	if similarityFloor <= 0 {
		similarityFloor = 0.75
	}
	return &Retriever{
		embedder:        embedder,
		store:           store,
		reranker:        reranker,
		namespace:       namespace,
		topK:            topK,
		rerankTopN:      rerankTopN,
		similarityFloor: similarityFloor,
		retry:           retry,
	}
}

// Retrieve 批量向量化→并发检索→合并去重→重排序
// queries首项为主查询，用于重排序
func (r *Retriever) Retrieve(ctx context.Context, queries []string) (*RetrievalResult, error) {
	if len(queries) == 0 {
		return nil, errors.New("queries is empty")
	}
	if r.embedder == nil || !r.embedder.Ready() {
		return nil, errors.New("embedder not available")
	}
	if r.store == nil || !r.store.Ready() {
		return nil, errors.New("vector store not available")
	}

	var vectors [][]float32
	if err := r.retry.Do(ctx, func() error {
		var embedErr error
		vectors, embedErr = r.embedder.EmbedBatch(ctx, queries)
		return embedErr
	}); err != nil {
		return nil, fmt.Errorf("embedding failed: %w", err)
	}

	candidates, err := r.searchAll(ctx, vectors)
	if err != nil {
		return nil, err
	}

	result := &RetrievalResult{}
	for _, candidate := range candidates {
		if candidate.Score > result.HighestScore {
			result.HighestScore = candidate.Score
		}
	}
	if len(candidates) == 0 {
		return result, nil
	}

	kept, reranked := r.rank(ctx, queries[0], candidates)
	result.Passages = kept
	result.Reranked = reranked
	if reranked {
		// rerank分数作为权威置信度信号
		result.HighestScore = 0
		for _, passage := range kept {
			if passage.Score > result.HighestScore {
				result.HighestScore = passage.Score
			}
		}
	}

	result.ContextBlock, result.Citations = buildContext(kept)
	return result, nil
}

// searchAll 并发检索每个查询向量，合并去重
// 单个查询失败不致命，全部失败才返回错误
func (r *Retriever) searchAll(ctx context.Context, vectors [][]float32) ([]RetrievedPassage, error) {
	type searchResult struct {
		matches []rag.QueryMatch
		err     error
	}

	results := make([]searchResult, len(vectors))
	var wg sync.WaitGroup
	for i, vector := range vectors {
		wg.Add(1)
		go func(idx int, v []float32) {
			defer wg.Done()
			var matches []rag.QueryMatch
			err := r.retry.Do(ctx, func() error {
				var queryErr error
				matches, queryErr = r.store.Query(ctx, r.namespace, v, r.topK)
				return queryErr
			})
			results[idx] = searchResult{matches: matches, err: err}
		}(i, vector)
	}
	wg.Wait()

	seen := make(map[string]int)
	var merged []RetrievedPassage
	failures := 0
	for _, res := range results {
		if res.err != nil {
			failures++
			continue
		}
		for _, match := range res.matches {
			text := match.Metadata["text"]
			if strings.TrimSpace(text) == "" {
				continue
			}
			key := match.ID
			if key == "" {
				key = text
			}
			if idx, ok := seen[key]; ok {
				// 同一片段被多个查询变体命中只计一次，保留最高分
				if match.Score > merged[idx].Score {
					merged[idx].Score = match.Score
				}
				continue
			}
			seen[key] = len(merged)
			merged = append(merged, RetrievedPassage{
				ID:     match.ID,
				Text:   text,
				Source: match.Metadata["source"],
				Score:  match.Score,
			})
		}
	}

	if failures == len(results) {
		return nil, errors.New("all vector queries failed")
	}
	if failures > 0 {
		logger.Warn("部分向量检索失败", zap.Int("failed", failures), zap.Int("total", len(results)))
	}

	sort.Slice(merged, func(i, j int) bool {
		if merged[i].Score == merged[j].Score {
			return merged[i].ID < merged[j].ID
		}
		return merged[i].Score > merged[j].Score
	})
	return merged, nil
}

// rank 有reranker时重排序，失败降级为相似度排序
// 单一候选也要走rerank：缺口判断用的是rerank尺度的分数，
// 相似度下限只在无reranker的降级路径上生效
func (r *Retriever) rank(ctx context.Context, primaryQuery string, candidates []RetrievedPassage) ([]RetrievedPassage, bool) {
	if r.reranker != nil && r.reranker.Ready() && len(candidates) > 0 {
		documents := make([]string, len(candidates))
		for i, candidate := range candidates {
			documents[i] = candidate.Text
		}

		rerankResults, err := r.reranker.Rerank(ctx, primaryQuery, documents, r.rerankTopN)
		if err == nil && len(rerankResults) > 0 {
			kept := make([]RetrievedPassage, 0, len(rerankResults))
			for _, rr := range rerankResults {
				if rr.Index < 0 || rr.Index >= len(candidates) {
					continue
				}
				passage := candidates[rr.Index]
				passage.Score = rr.Score
				kept = append(kept, passage)
			}
			if len(kept) > 0 {
				return kept, true
			}
		}
		// rerank失败不中断请求，退回相似度排序
		logger.Warn("重排序失败，退回相似度排序", zap.Error(err))
	}

	kept := make([]RetrievedPassage, 0, len(candidates))
	for _, candidate := range candidates {
		if candidate.Score < r.similarityFloor {
			continue
		}
		kept = append(kept, candidate)
		if len(kept) >= r.rerankTopN+1 {
			break
		}
	}
	return kept, false
}

// buildContext 拼装上下文块并收集去重后的引用
func buildContext(passages []RetrievedPassage) (string, []string) {
	var builder strings.Builder
	labels := make([]string, 0, len(passages))
	for _, passage := range passages {
		label := CleanSourceLabel(passage.Source)
		builder.WriteString(fmt.Sprintf("[Source: %s]: %s\n\n", label, passage.Text))
		labels = append(labels, label)
	}
	return builder.String(), uniqueCitations(labels)
}
