package rag

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
)

// MilvusOptions Milvus客户端配置
type MilvusOptions struct {
	Address          string
	Username         string
	Password         string
	Database         string
	CollectionPrefix string
	VectorSize       int
	UseTLS           bool
	Timeout          time.Duration
}

type milvusVectorStore struct {
	milvusClient     client.Client
	collectionPrefix string
	vectorSize       int
}

// 预留的metadata字段，其余键序列化到extra列
var reservedMetadataKeys = map[string]bool{
	"text":   true,
	"source": true,
}

// NewMilvusVectorStore 创建Milvus向量存储
func NewMilvusVectorStore(opts MilvusOptions) (VectorStore, error) {
	if opts.Address == "" {
		opts.Address = "localhost:19530"
	}
	if opts.CollectionPrefix == "" {
		opts.CollectionPrefix = "izana"
	}
	if opts.VectorSize == 0 {
		opts.VectorSize = 1536
	}
	if opts.Database == "" {
		opts.Database = "default"
	}

	milvusClient, err := client.NewClient(
		context.Background(),
		client.Config{
			Address:       opts.Address,
			DBName:        opts.Database,
			Username:      opts.Username,
			Password:      opts.Password,
			EnableTLSAuth: opts.UseTLS,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create milvus client: %w", err)
	}

	return &milvusVectorStore{
		milvusClient:     milvusClient,
		collectionPrefix: opts.CollectionPrefix,
		vectorSize:       opts.VectorSize,
	}, nil
}

// vectorIndex 优先HNSW，不可用时退回IVF_FLAT
func vectorIndex() (entity.Index, error) {
	var index entity.Index
	index, err := entity.NewIndexHNSW(entity.COSINE, 8, 64)
	if err != nil {
		index, err = entity.NewIndexIvfFlat(entity.COSINE, 128)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create index: %w", err)
	}
	return index, nil
}

func (s *milvusVectorStore) collectionName(namespace string) string {
	namespace = strings.ReplaceAll(strings.TrimSpace(namespace), "-", "_")
	return fmt.Sprintf("%s_%s", s.collectionPrefix, namespace)
}

func (s *milvusVectorStore) ensureCollection(ctx context.Context, namespace string) error {
	name := s.collectionName(namespace)

	hasCollection, err := s.milvusClient.HasCollection(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}
	if hasCollection {
		return nil
	}

	schema := &entity.Schema{
		CollectionName: name,
		Description:    fmt.Sprintf("Namespace %s vectors", namespace),
		Fields: []*entity.Field{
			{
				Name:       "id",
				DataType:   entity.FieldTypeVarChar,
				PrimaryKey: true,
				TypeParams: map[string]string{
					"max_length": "128",
				},
			},
			{
				Name:     "text",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "65535",
				},
			},
			{
				Name:     "source",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "512",
				},
			},
			{
				Name:     "extra",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "65535",
				},
			},
			{
				Name:     "vector",
				DataType: entity.FieldTypeFloatVector,
				TypeParams: map[string]string{
					"dim": fmt.Sprintf("%d", s.vectorSize),
				},
			},
		},
	}

	if err := s.milvusClient.CreateCollection(ctx, schema, entity.DefaultShardNumber); err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	index, err := vectorIndex()
	if err != nil {
		return err
	}
	if err := s.milvusClient.CreateIndex(ctx, name, "vector", index, false); err != nil {
		return fmt.Errorf("failed to create vector index: %w", err)
	}

	if err := s.milvusClient.LoadCollection(ctx, name, false); err != nil {
		return fmt.Errorf("failed to load collection: %w", err)
	}

	return nil
}

func (s *milvusVectorStore) Upsert(ctx context.Context, namespace string, record Record) error {
	if record.ID == "" {
		return fmt.Errorf("record id is empty")
	}
	if len(record.Vector) == 0 {
		return fmt.Errorf("record vector is empty")
	}
	if len(record.Vector) != s.vectorSize {
		return fmt.Errorf("vector size %d does not match collection dim %d", len(record.Vector), s.vectorSize)
	}

	if err := s.ensureCollection(ctx, namespace); err != nil {
		return err
	}

	extra := map[string]string{}
	for k, v := range record.Metadata {
		if !reservedMetadataKeys[k] {
			extra[k] = v
		}
	}
	extraJSON, err := json.Marshal(extra)
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}

	collectionName := s.collectionName(namespace)
	idColumn := entity.NewColumnVarChar("id", []string{record.ID})
	textColumn := entity.NewColumnVarChar("text", []string{record.Metadata["text"]})
	sourceColumn := entity.NewColumnVarChar("source", []string{record.Metadata["source"]})
	extraColumn := entity.NewColumnVarChar("extra", []string{string(extraJSON)})
	vectorColumn := entity.NewColumnFloatVector("vector", s.vectorSize, [][]float32{record.Vector})

	// 主键相同则覆盖，保证upsert幂等
	if _, err := s.milvusClient.Upsert(ctx, collectionName, "", idColumn, textColumn, sourceColumn, extraColumn, vectorColumn); err != nil {
		return fmt.Errorf("milvus upsert failed: %w", err)
	}

	if err := s.milvusClient.Flush(ctx, collectionName, false); err != nil {
		// 刷新失败不影响写入
		return nil
	}
	return nil
}

func (s *milvusVectorStore) Query(ctx context.Context, namespace string, vector []float32, topK int) ([]QueryMatch, error) {
	if len(vector) == 0 {
		return nil, nil
	}
	if topK <= 0 {
		topK = 5
	}
	if err := s.ensureCollection(ctx, namespace); err != nil {
		return nil, err
	}

	collectionName := s.collectionName(namespace)
	sp, _ := entity.NewIndexHNSWSearchParam(64)
	searchResults, err := s.milvusClient.Search(
		ctx,
		collectionName,
		[]string{},
		"",
		[]string{"text", "source", "extra"},
		[]entity.Vector{entity.FloatVector(vector)},
		"vector",
		entity.COSINE,
		topK,
		sp,
	)
	if err != nil {
		return nil, fmt.Errorf("milvus search failed: %w", err)
	}
	if len(searchResults) == 0 {
		return []QueryMatch{}, nil
	}

	result := searchResults[0]
	if result.Err != nil {
		return nil, fmt.Errorf("milvus search error: %w", result.Err)
	}
	if result.ResultCount == 0 {
		return []QueryMatch{}, nil
	}

	var ids []string
	if idCol, ok := result.IDs.(*entity.ColumnVarChar); ok {
		ids = idCol.Data()
	}

	var texts, sources, extras []string
	for _, field := range result.Fields {
		col, ok := field.(*entity.ColumnVarChar)
		if !ok {
			continue
		}
		switch field.Name() {
		case "text":
			texts = col.Data()
		case "source":
			sources = col.Data()
		case "extra":
			extras = col.Data()
		}
	}

	matches := make([]QueryMatch, 0, result.ResultCount)
	for i := 0; i < result.ResultCount; i++ {
		metadata := map[string]string{}
		if i < len(extras) && extras[i] != "" {
			_ = json.Unmarshal([]byte(extras[i]), &metadata)
		}
		if i < len(texts) {
			metadata["text"] = texts[i]
		}
		if i < len(sources) {
			metadata["source"] = sources[i]
		}

		id := ""
		if i < len(ids) {
			id = ids[i]
		}
		score := float64(0)
		if i < len(result.Scores) {
			score = float64(result.Scores[i])
		}

		matches = append(matches, QueryMatch{
			ID:       id,
			Score:    score,
			Metadata: metadata,
		})
	}

	return matches, nil
}

func (s *milvusVectorStore) Ready() bool {
	if s.milvusClient == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := s.milvusClient.ListCollections(ctx)
	return err == nil
}
