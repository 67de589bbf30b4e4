package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/izana/backend-go/internal/logger"
	"github.com/izana/backend-go/internal/rag"
	"go.uber.org/zap"
)

// QueryBuilder 构造检索查询串
type QueryBuilder struct {
	generator   rag.Generator
	maxVariants int
}

// NewQueryBuilder 创建查询构造器
func NewQueryBuilder(generator rag.Generator, maxVariants int) *QueryBuilder {
	if maxVariants <= 0 {
		maxVariants = 3
	}
	return &QueryBuilder{
		generator:   generator,
		maxVariants: maxVariants,
	}
}

// Build 返回有序非空的查询串列表，首项始终为主查询
// 化验单请求只产生一条合成查询；普通请求扩展为原文+若干改写，
// 扩展失败静默降级为仅原文
func (b *QueryBuilder) Build(ctx context.Context, req *ChatRequest) []string {
	if req.IsBloodWork() {
		return []string{BloodWorkSummary(req.ClinicalData, req.Treatment)}
	}

	message := strings.TrimSpace(req.Message)
	queries := []string{message}
	for _, variant := range b.expand(ctx, message) {
		if len(queries) >= b.maxVariants {
			break
		}
		queries = append(queries, variant)
	}
	return queries
}

// expand 用fast档生成语义相近的改写查询
func (b *QueryBuilder) expand(ctx context.Context, message string) []string {
	if b.generator == nil || !b.generator.Ready() {
		return nil
	}

	prompt := fmt.Sprintf(
		"Rewrite the following medical question as %d alternative search queries that keep the same meaning. Return one query per line with no numbering.\n\nQuestion: %s",
		b.maxVariants-1, message)

	raw, err := b.generator.Generate(ctx, []rag.Message{
		{Role: rag.RoleUser, Content: prompt},
	}, rag.GenerateOptions{
		Tier:        rag.TierFast,
		Temperature: 0.3,
	})
	if err != nil {
		logger.Warn("查询扩展失败，仅使用原始查询", zap.Error(err))
		return nil
	}

	var variants []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(strings.TrimLeft(line, "-*0123456789. "))
		if line == "" || strings.EqualFold(line, message) {
			continue
		}
		variants = append(variants, line)
	}
	return variants
}

// BloodWorkSummary 由结构化化验值与治疗上下文合成描述性查询串
// 空化验列表仍产生合法（虽无信息量）的查询
func BloodWorkSummary(data *ClinicalData, treatment string) string {
	var parts []string
	if data != nil {
		for _, result := range data.Results {
			name := strings.TrimSpace(result.Name)
			if name == "" {
				continue
			}
			value := strconv.FormatFloat(result.Value, 'f', -1, 64)
			if unit := strings.TrimSpace(result.Unit); unit != "" {
				parts = append(parts, fmt.Sprintf("%s: %s %s", name, value, unit))
			} else {
				parts = append(parts, fmt.Sprintf("%s: %s", name, value))
			}
		}
	}

	summary := "Clinical implications of labs: " + strings.Join(parts, ", ")
	if treatment = strings.TrimSpace(treatment); treatment != "" {
		summary += " for " + treatment
	}
	return summary + "."
}
