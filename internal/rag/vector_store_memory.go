package rag

import (
	"context"
	"math"
	"sort"
	"sync"
)

// memoryVectorStore 进程内向量存储，开发与测试环境使用
type memoryVectorStore struct {
	mu         sync.RWMutex
	namespaces map[string][]Record
}

// NewMemoryVectorStore 创建内存向量存储
func NewMemoryVectorStore() VectorStore {
	return &memoryVectorStore{
		namespaces: make(map[string][]Record),
	}
}

func (s *memoryVectorStore) Upsert(ctx context.Context, namespace string, record Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := s.namespaces[namespace]
	for i := range records {
		if records[i].ID == record.ID {
			records[i] = record
			return nil
		}
	}
	s.namespaces[namespace] = append(records, record)
	return nil
}

func (s *memoryVectorStore) Query(ctx context.Context, namespace string, vector []float32, topK int) ([]QueryMatch, error) {
	if topK <= 0 {
		topK = 5
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	records := s.namespaces[namespace]
	matches := make([]QueryMatch, 0, len(records))
	for _, record := range records {
		metadata := make(map[string]string, len(record.Metadata))
		for k, v := range record.Metadata {
			metadata[k] = v
		}
		matches = append(matches, QueryMatch{
			ID:       record.ID,
			Score:    cosineSimilarity(vector, record.Vector),
			Metadata: metadata,
		})
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score == matches[j].Score {
			return matches[i].ID < matches[j].ID
		}
		return matches[i].Score > matches[j].Score
	})

	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

func (s *memoryVectorStore) Ready() bool {
	return true
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
