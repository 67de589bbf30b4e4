package rag

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// newOpenAIClient 创建带请求超时的OpenAI客户端
// 不设上限的模型调用会让流水线无限期挂起
func newOpenAIClient(apiKey string, timeout time.Duration) *openai.Client {
	cfg := openai.DefaultConfig(apiKey)
	if timeout > 0 {
		cfg.HTTPClient = &http.Client{Timeout: timeout}
	}
	return openai.NewClientWithConfig(cfg)
}

// Tier 模型档位
// draft档用于生成草稿回答，fast档用于QC/翻译/辅助检查
type Tier string

const (
	TierDraft Tier = "draft"
	TierFast  Tier = "fast"
)

// Message 聊天消息
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// GenerateOptions 生成参数
type GenerateOptions struct {
	Tier        Tier
	Temperature float32
	MaxTokens   int
	JSONMode    bool // 要求模型输出JSON对象
}

// Generator 文本生成接口
type Generator interface {
	Generate(ctx context.Context, messages []Message, opts GenerateOptions) (string, error)
	Ready() bool
}

// NoopGenerator 默认占位实现
type NoopGenerator struct{}

func (n *NoopGenerator) Generate(ctx context.Context, messages []Message, opts GenerateOptions) (string, error) {
	return "", errors.New("generator not configured")
}

func (n *NoopGenerator) Ready() bool {
	return false
}

// OpenAIGenerator 使用OpenAI Chat Completion API
type OpenAIGenerator struct {
	client     *openai.Client
	draftModel string
	fastModel  string
}

// NewOpenAIGenerator 创建OpenAI文本生成器
func NewOpenAIGenerator(apiKey, draftModel, fastModel string, timeout time.Duration) Generator {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return &NoopGenerator{}
	}
	if draftModel == "" {
		draftModel = "gpt-4o"
	}
	if fastModel == "" {
		fastModel = "gpt-4o-mini"
	}

	return &OpenAIGenerator{
		client:     newOpenAIClient(apiKey, timeout),
		draftModel: draftModel,
		fastModel:  fastModel,
	}
}

func (g *OpenAIGenerator) Generate(ctx context.Context, messages []Message, opts GenerateOptions) (string, error) {
	if g.client == nil {
		return "", errors.New("openai client not initialized")
	}
	if len(messages) == 0 {
		return "", errors.New("messages is empty")
	}

	model := g.draftModel
	if opts.Tier == TierFast {
		model = g.fastModel
	}

	chatMessages := make([]openai.ChatCompletionMessage, len(messages))
	for i, msg := range messages {
		chatMessages[i] = openai.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
		}
	}

	req := openai.ChatCompletionRequest{
		Model:       model,
		Messages:    chatMessages,
		Temperature: opts.Temperature,
	}
	if opts.MaxTokens > 0 {
		req.MaxTokens = opts.MaxTokens
	}
	if opts.JSONMode {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := g.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("completion response empty")
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func (g *OpenAIGenerator) Ready() bool {
	return g.client != nil
}
