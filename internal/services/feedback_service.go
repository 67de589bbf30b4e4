package services

import (
	"context"

	"github.com/izana/backend-go/internal/kafka"
	"github.com/izana/backend-go/internal/logger"
	"go.uber.org/zap"
)

// CachePromotionRating 触发缓存晋升的评分
const CachePromotionRating = 5

// FeedbackService 用户反馈处理
// 反馈持久化永远执行；5星反馈额外触发语义缓存晋升，
// 这是缓存的唯一写入路径
type FeedbackService struct {
	logStore *LogStore
	cache    *SemanticCache
}

// NewFeedbackService 创建反馈服务
func NewFeedbackService(logStore *LogStore, cache *SemanticCache) *FeedbackService {
	return &FeedbackService{
		logStore: logStore,
		cache:    cache,
	}
}

// Submit 保存反馈并在满分时异步晋升到语义缓存
// 晋升失败只记日志，不影响反馈确认
func (s *FeedbackService) Submit(ctx context.Context, req *FeedbackRequest) (*FeedbackResponse, error) {
	if err := ValidateFeedbackRequest(req); err != nil {
		return nil, err
	}

	id, err := s.logStore.SaveFeedback(req)
	if err != nil {
		return nil, err
	}

	if req.Rating == CachePromotionRating && s.cache != nil {
		question := req.Question
		answer := req.Answer
		suggested := append([]string(nil), req.SuggestedQuestions...)
		go func() {
			if err := s.cache.Store(context.WithoutCancel(ctx), question, answer, suggested); err != nil {
				logger.Warn("缓存晋升失败", zap.Error(err))
			}
		}()
	}

	go kafka.SendFeedbackReceived(req.Question, req.Rating)

	return &FeedbackResponse{ID: id, Status: "ok"}, nil
}
