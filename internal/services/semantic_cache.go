package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/izana/backend-go/internal/logger"
	"github.com/izana/backend-go/internal/rag"
	"go.uber.org/zap"
)

// CachedCitation 缓存命中时返回的哨兵引用
const CachedCitation = "Previously Verified Answer"

// CachedAnswer 语义缓存命中结果
type CachedAnswer struct {
	Question           string
	Answer             string
	SuggestedQuestions []string
	Score              float64
}

// SemanticCache 已验证问答的语义缓存
// 存放在向量库的保留命名空间内，只有5星反馈才会写入
type SemanticCache struct {
	embedder  rag.Embedder
	store     rag.VectorStore
	namespace string
	threshold float64
}

// NewSemanticCache 创建语义缓存
func NewSemanticCache(embedder rag.Embedder, store rag.VectorStore, namespace string, threshold float64) *SemanticCache {
	if namespace == "" {
		namespace = "semantic_cache"
	}
	if threshold <= 0 {
		threshold = 0.95
	}
	return &SemanticCache{
		embedder:  embedder,
		store:     store,
		namespace: namespace,
		threshold: threshold,
	}
}

// Lookup 查询最近邻，相似度达到阈值才算命中，未命中返回nil
// 阈值故意取得很严，避免把相似但不相同的问题答错
func (c *SemanticCache) Lookup(ctx context.Context, query string) (*CachedAnswer, error) {
	if c.embedder == nil || !c.embedder.Ready() || c.store == nil || !c.store.Ready() {
		return nil, errors.New("semantic cache not available")
	}

	vectors, err := c.embedder.EmbedBatch(ctx, []string{query})
	if err != nil {
		return nil, err
	}

	matches, err := c.store.Query(ctx, c.namespace, vectors[0], 1)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 || matches[0].Score < c.threshold {
		return nil, nil
	}

	match := matches[0]
	answer := match.Metadata["answer"]
	if strings.TrimSpace(answer) == "" {
		return nil, nil
	}

	var questions []string
	if raw := match.Metadata["questions"]; raw != "" {
		_ = json.Unmarshal([]byte(raw), &questions)
	}

	return &CachedAnswer{
		Question:           match.Metadata["text"],
		Answer:             answer,
		SuggestedQuestions: questions,
		Score:              match.Score,
	}, nil
}

// Store 将5星问答写入缓存命名空间
// 每条记录使用生成的ID，upsert幂等；写入失败不向上传播
func (c *SemanticCache) Store(ctx context.Context, question, answer string, suggestedQuestions []string) error {
	if c.embedder == nil || !c.embedder.Ready() || c.store == nil || !c.store.Ready() {
		return errors.New("semantic cache not available")
	}
	if strings.TrimSpace(question) == "" || strings.TrimSpace(answer) == "" {
		return errors.New("question and answer are required")
	}

	vectors, err := c.embedder.EmbedBatch(ctx, []string{question})
	if err != nil {
		return err
	}

	questionsJSON, err := json.Marshal(suggestedQuestions)
	if err != nil {
		questionsJSON = []byte("[]")
	}

	record := rag.Record{
		ID:     uuid.NewString(),
		Vector: vectors[0],
		Metadata: map[string]string{
			"text":      question,
			"source":    CachedCitation,
			"answer":    answer,
			"questions": string(questionsJSON),
		},
	}

	if err := c.store.Upsert(ctx, c.namespace, record); err != nil {
		return err
	}

	logger.Info("语义缓存已写入", zap.String("id", record.ID))
	return nil
}
