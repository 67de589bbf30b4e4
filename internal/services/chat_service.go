package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	apperrors "github.com/izana/backend-go/internal/errors"
	"github.com/izana/backend-go/internal/kafka"
	"github.com/izana/backend-go/internal/logger"
	"github.com/izana/backend-go/internal/rag"
	"go.uber.org/zap"
)

// 流水线阶段名，用于指标与日志
const (
	StageCacheLookup = "cache_lookup"
	StageRetrieval   = "retrieval"
	StageMarkerCheck = "marker_check"
	StageDraft       = "draft"
	StageQC          = "qc"
	StageTranslation = "translation"
)

const systemPersona = `You are Izana, a warm and knowledgeable fertility assistant. Answer strictly from the provided context. Be empathetic, use plain language, and never invent medical facts. If the context does not cover the question, say so and recommend consulting a fertility specialist.`

const gapContextNote = "[Source: General Medical Knowledge]: The knowledge base has limited coverage of this topic. Acknowledge the limits of the available information and encourage the user to consult their fertility specialist.\n\n"

// 化验单审阅关注的标志物
var bloodWorkMarkers = []string{"FSH", "AMH", "LH", "Estradiol", "TSH", "Prolactin"}

// 草稿生成完全失败时的兜底回答
const fallbackResponse = "I'm sorry, I wasn't able to prepare an answer for you right now. Please try again in a moment, and if the issue continues, reach out to your fertility care team directly."

var fallbackQuestions = []string{
	"What fertility treatments are available?",
	"How can I prepare for a fertility consultation?",
	"What lifestyle factors affect fertility?",
}

// ChatService 多阶段问答流水线编排
// 各阶段按顺序执行，下游阶段失败逐级降级而非中断请求
type ChatService struct {
	queryBuilder *QueryBuilder
	cache        *SemanticCache
	retriever    *Retriever
	generator    rag.Generator
	translator   *Translator
	logStore     *LogStore
	metrics      *Metrics

	gapThreshold     float64
	maxMessageLength int
	temperature      float64
	maxTokens        int
	retry            RetryPolicy
}

// ChatServiceOptions 编排器装配参数
type ChatServiceOptions struct {
	QueryBuilder     *QueryBuilder
	Cache            *SemanticCache
	Retriever        *Retriever
	Generator        rag.Generator
	Translator       *Translator
	LogStore         *LogStore
	Metrics          *Metrics
	GapThreshold     float64
	MaxMessageLength int
	Temperature      float64
	MaxTokens        int
	Retry            RetryPolicy
}

// NewChatService 创建问答服务
func NewChatService(opts ChatServiceOptions) *ChatService {
	if opts.GapThreshold <= 0 {
		opts.GapThreshold = 0.30
	}
	if opts.MaxMessageLength <= 0 {
		opts.MaxMessageLength = 2000
	}
	if opts.Temperature <= 0 {
		opts.Temperature = 0.4
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 1200
	}
	return &ChatService{
		queryBuilder:     opts.QueryBuilder,
		cache:            opts.Cache,
		retriever:        opts.Retriever,
		generator:        opts.Generator,
		translator:       opts.Translator,
		logStore:         opts.LogStore,
		metrics:          opts.Metrics,
		gapThreshold:     opts.GapThreshold,
		maxMessageLength: opts.MaxMessageLength,
		temperature:      opts.Temperature,
		maxTokens:        opts.MaxTokens,
		retry:            opts.Retry,
	}
}

// Chat 执行完整问答流水线
func (s *ChatService) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	start := time.Now()

	if err := ValidateChatRequest(req, s.maxMessageLength); err != nil {
		s.metrics.ObserveChat(OutcomeRejected, time.Since(start))
		return nil, err
	}
	if s.generator == nil || !s.generator.Ready() {
		return nil, apperrors.NewServiceUnavailableError("generation model")
	}

	queries := s.queryBuilder.Build(ctx, req)
	primaryQuery := queries[0]

	// 化验单请求的合成查询因人而异，缓存对其不生效
	if !req.IsBloodWork() {
		if resp := s.lookupCache(ctx, req, primaryQuery, start); resp != nil {
			return resp, nil
		}
	}

	retrieval := s.retrieve(ctx, queries)

	isGap := retrieval.HighestScore < s.gapThreshold
	contextBlock := retrieval.ContextBlock
	citations := retrieval.Citations
	if isGap {
		category := GapCategoryDefault
		if req.IsBloodWork() {
			category = GapCategoryBloodWork
		}
		go s.logStore.RecordGap(primaryQuery, retrieval.HighestScore, category)
		s.metrics.Gap()
		contextBlock += gapContextNote
	}

	markerNote := ""
	if req.IsBloodWork() {
		markerNote = s.checkMissingMarkers(ctx, req)
	}

	draft, err := s.generateDraft(ctx, primaryQuery, contextBlock, markerNote)
	if err != nil {
		logger.Error("草稿生成失败，返回兜底回答", zap.Error(err))
		s.metrics.StageFailure(StageDraft)
		// 兜底回答同样走翻译，保证非工作语言用户不会收到英文道歉
		response, suggested := s.translate(ctx, fallbackResponse,
			append([]string(nil), fallbackQuestions...), req.Language)
		resp := &ChatResponse{
			Response:           response,
			Citations:          []string{},
			SuggestedQuestions: suggested,
			IsGap:              isGap,
		}
		s.finalize(ctx, req, primaryQuery, resp, retrieval.HighestScore, nil)
		s.metrics.ObserveChat(OutcomeDegraded, time.Since(start))
		return resp, nil
	}

	response, suggested := s.qualityControl(ctx, draft, primaryQuery)
	response, suggested = s.translate(ctx, response, suggested, req.Language)

	resp := &ChatResponse{
		Response:           response,
		Citations:          citations,
		SuggestedQuestions: suggested,
		IsGap:              isGap,
	}
	if resp.Citations == nil {
		resp.Citations = []string{}
	}

	s.finalize(ctx, req, primaryQuery, resp, retrieval.HighestScore, citations)

	outcome := OutcomeAnswered
	if isGap {
		outcome = OutcomeGap
	}
	s.metrics.ObserveChat(outcome, time.Since(start))
	return resp, nil
}

// lookupCache 语义缓存查询，命中时直接短路整个下游流水线
func (s *ChatService) lookupCache(ctx context.Context, req *ChatRequest, primaryQuery string, start time.Time) *ChatResponse {
	if s.cache == nil {
		return nil
	}
	cached, err := s.cache.Lookup(ctx, primaryQuery)
	if err != nil {
		// 缓存故障按未命中处理
		logger.Warn("语义缓存查询失败", zap.Error(err))
		s.metrics.StageFailure(StageCacheLookup)
		return nil
	}
	if cached == nil {
		return nil
	}

	logger.Info("语义缓存命中", zap.Float64("score", cached.Score))
	s.metrics.CacheHit()

	// 缓存条目可能没有后续问题（反馈提交时未附带），补通用后续问题
	questions := cached.SuggestedQuestions
	if len(questions) == 0 {
		questions = append([]string(nil), fallbackQuestions...)
	}
	response, suggested := s.translate(ctx, cached.Answer, questions, req.Language)
	resp := &ChatResponse{
		Response:           response,
		Citations:          []string{CachedCitation},
		SuggestedQuestions: suggested,
		Cached:             true,
	}
	resp.ChatID = s.logStore.RecordChat(primaryQuery, resp.Response, req.Language, false, cached.Score)
	go kafka.SendChatAnswered(primaryQuery, req.Language, false, true, cached.Score)
	s.metrics.ObserveChat(OutcomeCached, time.Since(start))
	return resp
}

// retrieve 执行检索，失败降级为空结果（必然触发缺口路径）
func (s *ChatService) retrieve(ctx context.Context, queries []string) *RetrievalResult {
	retrieval, err := s.retriever.Retrieve(ctx, queries)
	if err != nil {
		logger.Warn("检索失败，按零结果降级", zap.Error(err))
		s.metrics.StageFailure(StageRetrieval)
		return &RetrievalResult{}
	}
	return retrieval
}

// checkMissingMarkers 用fast档检查化验单是否缺少关键标志物
// 辅助性检查，任何失败都不影响主回答
func (s *ChatService) checkMissingMarkers(ctx context.Context, req *ChatRequest) string {
	if s.generator == nil || !s.generator.Ready() {
		return ""
	}

	var provided []string
	if req.ClinicalData != nil {
		for _, result := range req.ClinicalData.Results {
			if name := strings.TrimSpace(result.Name); name != "" {
				provided = append(provided, name)
			}
		}
	}

	prompt := fmt.Sprintf(
		"A fertility patient shared these lab values: %s. The standard panel includes: %s. Reply with the single word COMPLETE if all standard markers are present, otherwise list only the missing marker names separated by commas.",
		strings.Join(provided, ", "), strings.Join(bloodWorkMarkers, ", "))

	raw, err := s.generator.Generate(ctx, []rag.Message{
		{Role: rag.RoleUser, Content: prompt},
	}, rag.GenerateOptions{
		Tier:        rag.TierFast,
		Temperature: 0,
	})
	if err != nil {
		logger.Warn("标志物检查失败", zap.Error(err))
		s.metrics.StageFailure(StageMarkerCheck)
		return ""
	}

	raw = strings.TrimSpace(raw)
	if raw == "" || strings.EqualFold(raw, "COMPLETE") {
		return ""
	}
	return fmt.Sprintf("Note for the answer: the shared lab panel appears to be missing these markers: %s. Gently mention that a complete picture would include them.", raw)
}

// generateDraft 草稿生成，带重试
func (s *ChatService) generateDraft(ctx context.Context, primaryQuery, contextBlock, markerNote string) (string, error) {
	var userContent strings.Builder
	userContent.WriteString("Context:\n")
	userContent.WriteString(contextBlock)
	if markerNote != "" {
		userContent.WriteString("\n")
		userContent.WriteString(markerNote)
	}
	userContent.WriteString("\nQuestion: ")
	userContent.WriteString(primaryQuery)

	messages := []rag.Message{
		{Role: rag.RoleSystem, Content: systemPersona},
		{Role: rag.RoleUser, Content: userContent.String()},
	}

	var draft string
	err := s.retry.Do(ctx, func() error {
		var genErr error
		draft, genErr = s.generator.Generate(ctx, messages, rag.GenerateOptions{
			Tier:        rag.TierDraft,
			Temperature: float32(s.temperature),
			MaxTokens:   s.maxTokens,
		})
		if genErr == nil && strings.TrimSpace(draft) == "" {
			return fmt.Errorf("empty draft")
		}
		return genErr
	})
	if err != nil {
		return "", err
	}
	return draft, nil
}

// qcPayload QC阶段的结构化输出
type qcPayload struct {
	Response           string   `json:"response"`
	SuggestedQuestions []string `json:"suggested_questions"`
}

// qualityControl 用fast档对草稿做格式规整并生成后续问题建议
// QC失败时返回原始草稿与通用后续问题
func (s *ChatService) qualityControl(ctx context.Context, draft, primaryQuery string) (string, []string) {
	prompt := fmt.Sprintf(
		`Reformat the draft answer below for a fertility patient: short paragraphs, warm tone, no markdown headings. Then propose 3 natural follow-up questions the patient might ask next. Return JSON: {"response": "...", "suggested_questions": ["...", "...", "..."]}.

Patient question: %s

Draft answer:
%s`, primaryQuery, draft)

	raw, err := s.generator.Generate(ctx, []rag.Message{
		{Role: rag.RoleUser, Content: prompt},
	}, rag.GenerateOptions{
		Tier:        rag.TierFast,
		Temperature: 0.2,
		JSONMode:    true,
	})
	if err != nil {
		logger.Warn("QC重排失败，返回原始草稿", zap.Error(err))
		s.metrics.StageFailure(StageQC)
		return draft, append([]string(nil), fallbackQuestions...)
	}

	var payload qcPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil ||
		implausiblyShort(payload.Response, draft) {
		logger.Warn("QC输出不可解析，返回原始草稿", zap.Error(err))
		s.metrics.StageFailure(StageQC)
		return draft, append([]string(nil), fallbackQuestions...)
	}

	suggested := make([]string, 0, 3)
	for _, q := range payload.SuggestedQuestions {
		if q = strings.TrimSpace(q); q != "" {
			suggested = append(suggested, q)
		}
		if len(suggested) == 3 {
			break
		}
	}
	if len(suggested) == 0 {
		suggested = append([]string(nil), fallbackQuestions...)
	}
	return payload.Response, suggested
}

// implausiblyShort QC输出明显短于草稿时视为失败
func implausiblyShort(response, draft string) bool {
	response = strings.TrimSpace(response)
	if response == "" {
		return true
	}
	return len([]rune(response)) < 20 && len([]rune(draft)) >= 80
}

// translate 响应与每条后续问题各自独立翻译
func (s *ChatService) translate(ctx context.Context, response string, suggested []string, lang string) (string, []string) {
	if s.translator == nil || !s.translator.NeedsTranslation(lang) {
		return response, suggested
	}
	translated := s.translator.Translate(ctx, response, lang)
	translatedQuestions := make([]string, len(suggested))
	for i, q := range suggested {
		translatedQuestions[i] = s.translator.Translate(ctx, q, lang)
	}
	return translated, translatedQuestions
}

// finalize 同步落库聊天记录，异步记录来源使用与事件流
func (s *ChatService) finalize(ctx context.Context, req *ChatRequest, primaryQuery string, resp *ChatResponse, score float64, citations []string) {
	resp.ChatID = s.logStore.RecordChat(primaryQuery, resp.Response, req.Language, resp.IsGap, score)
	if len(citations) > 0 {
		docs := append([]string(nil), citations...)
		go s.logStore.RecordDocUsage(context.WithoutCancel(ctx), docs)
	}
	go kafka.SendChatAnswered(primaryQuery, req.Language, resp.IsGap, false, score)
}
