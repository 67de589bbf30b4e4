package services

import (
	"context"
	"fmt"
	"time"

	"github.com/izana/backend-go/internal/logger"
	"github.com/izana/backend-go/internal/models"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// 知识缺口分类
const (
	GapCategoryDefault   = "Gap"
	GapCategoryBloodWork = "BloodWorkGap"
)

// LogStore 追加型日志存储：缺口、反馈、引用使用、聊天记录
// 数据库是唯一写入方，读侧只做尽力而为的查询
type LogStore struct {
	db    *gorm.DB
	redis *redis.Client // 可选，用于引用使用去重
}

// NewLogStore 创建日志存储
func NewLogStore(db *gorm.DB, redisClient *redis.Client) *LogStore {
	return &LogStore{db: db, redis: redisClient}
}

// RecordGap 记录知识缺口，调用方负责放入goroutine
func (s *LogStore) RecordGap(question string, confidenceScore float64, category string) {
	if s.db == nil {
		return
	}
	if category == "" {
		category = GapCategoryDefault
	}
	entry := &models.GapLog{
		Question:        question,
		ConfidenceScore: confidenceScore,
		Category:        category,
		CreatedAt:       time.Now(),
	}
	if err := s.db.Create(entry).Error; err != nil {
		logger.Warn("记录知识缺口失败", zap.Error(err))
	}
}

// RecordChat 落库聊天记录并返回记录ID，失败返回0
func (s *LogStore) RecordChat(query, response, lang string, isGap bool, score float64) uint {
	if s.db == nil {
		return 0
	}
	entry := &models.ChatLog{
		Query:     query,
		Response:  response,
		Lang:      lang,
		IsGap:     isGap,
		Score:     score,
		CreatedAt: time.Now(),
	}
	if err := s.db.Create(entry).Error; err != nil {
		logger.Warn("记录聊天日志失败", zap.Error(err))
		return 0
	}
	return entry.ID
}

// RecordDocUsage 记录引用的来源文档
// 同一文档同一天只记一次：优先用redis SETNX去重，redis不可用时查库
func (s *LogStore) RecordDocUsage(ctx context.Context, documents []string) {
	if s.db == nil {
		return
	}
	day := time.Now().Format("2006-01-02")
	for _, document := range documents {
		if document == "" || document == CachedCitation {
			continue
		}
		if !s.markDocUsage(ctx, day, document) {
			continue
		}
		entry := &models.DocUsage{
			Document:  document,
			CreatedAt: time.Now(),
		}
		if err := s.db.Create(entry).Error; err != nil {
			logger.Warn("记录来源使用失败", zap.String("document", document), zap.Error(err))
		}
	}
}

// markDocUsage 返回true表示当天首次出现，应当落库
func (s *LogStore) markDocUsage(ctx context.Context, day, document string) bool {
	if s.redis != nil {
		key := fmt.Sprintf("doc_usage:%s:%s", day, document)
		ok, err := s.redis.SetNX(ctx, key, 1, 48*time.Hour).Result()
		if err == nil {
			return ok
		}
		// redis故障时退回数据库判断
	}

	dayStart, _ := time.Parse("2006-01-02", day)
	var count int64
	if err := s.db.Model(&models.DocUsage{}).
		Where("document = ? AND created_at >= ?", document, dayStart).
		Count(&count).Error; err != nil {
		return true
	}
	return count == 0
}

// SaveFeedback 保存反馈；同一聊天的重复反馈做更新
func (s *LogStore) SaveFeedback(req *FeedbackRequest) (uint, error) {
	if s.db == nil {
		return 0, fmt.Errorf("database not available")
	}

	if req.ChatID != nil {
		var existing models.Feedback
		err := s.db.Where("chat_id = ?", *req.ChatID).First(&existing).Error
		if err == nil {
			existing.Rating = req.Rating
			existing.Reason = req.Reason
			existing.UpdatedAt = time.Now()
			if err := s.db.Save(&existing).Error; err != nil {
				return 0, fmt.Errorf("failed to update feedback: %w", err)
			}
			return existing.ID, nil
		}
		if err != gorm.ErrRecordNotFound {
			return 0, fmt.Errorf("failed to query feedback: %w", err)
		}
	}

	entry := &models.Feedback{
		ChatID:    req.ChatID,
		Question:  req.Question,
		Answer:    req.Answer,
		Rating:    req.Rating,
		Reason:    req.Reason,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := s.db.Create(entry).Error; err != nil {
		return 0, fmt.Errorf("failed to save feedback: %w", err)
	}
	return entry.ID, nil
}

// RecentGaps 最近的知识缺口记录
func (s *LogStore) RecentGaps(limit int) ([]models.GapLog, error) {
	if limit <= 0 {
		limit = 50
	}
	var gaps []models.GapLog
	err := s.db.Order("created_at DESC").Limit(limit).Find(&gaps).Error
	return gaps, err
}

// LowRatings 最近的低分反馈（rating < 3）
func (s *LogStore) LowRatings(limit int) ([]models.Feedback, error) {
	if limit <= 0 {
		limit = 50
	}
	var feedback []models.Feedback
	err := s.db.Where("rating < ?", 3).Order("created_at DESC").Limit(limit).Find(&feedback).Error
	return feedback, err
}

// DocUsageCount 来源使用聚合
type DocUsageCount struct {
	Document string `json:"document"`
	Count    int64  `json:"count"`
}

// TopDocuments 最常引用的来源
func (s *LogStore) TopDocuments(limit int) ([]DocUsageCount, error) {
	if limit <= 0 {
		limit = 20
	}
	var counts []DocUsageCount
	err := s.db.Model(&models.DocUsage{}).
		Select("document, COUNT(*) as count").
		Group("document").
		Order("count DESC").
		Limit(limit).
		Scan(&counts).Error
	return counts, err
}

// PruneExpired 清理超过保留期的缺口与来源使用记录
// 尽力而为：并发读取方可能在清理中看到旧数据
func (s *LogStore) PruneExpired(retention time.Duration) error {
	if s.db == nil {
		return fmt.Errorf("database not available")
	}
	cutoff := time.Now().Add(-retention)
	if err := s.db.Where("created_at < ?", cutoff).Delete(&models.GapLog{}).Error; err != nil {
		return fmt.Errorf("failed to prune gap logs: %w", err)
	}
	if err := s.db.Where("created_at < ?", cutoff).Delete(&models.DocUsage{}).Error; err != nil {
		return fmt.Errorf("failed to prune doc usage: %w", err)
	}
	return nil
}

// StartPruner 启动后台清理任务，ctx取消后退出
func (s *LogStore) StartPruner(ctx context.Context, interval, retention time.Duration) {
	if interval <= 0 {
		interval = 6 * time.Hour
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := s.PruneExpired(retention); err != nil {
					logger.Warn("日志清理失败", zap.Error(err))
				}
			}
		}
	}()
}
