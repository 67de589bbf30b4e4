package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/izana/backend-go/internal/logger"
	"go.uber.org/zap"
)

// Producer Kafka生产者
type Producer struct {
	producer sarama.SyncProducer
	topic    string
}

// ChatEvent 聊天分析事件
// 异步发往分析侧通道，不参与请求响应
type ChatEvent struct {
	Type      string    `json:"type"` // chat_answered | feedback_received
	Question  string    `json:"question"`
	Lang      string    `json:"lang,omitempty"`
	IsGap     bool      `json:"is_gap,omitempty"`
	Score     float64   `json:"score,omitempty"`
	Rating    int       `json:"rating,omitempty"`
	Cached    bool      `json:"cached,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

var globalProducer *Producer

// InitProducer 初始化Kafka生产者
func InitProducer(brokers []string, topic string) error {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5
	config.Producer.Timeout = 10 * time.Second

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return fmt.Errorf("创建Kafka生产者失败: %w", err)
	}

	globalProducer = &Producer{
		producer: producer,
		topic:    topic,
	}

	logger.Info("Kafka生产者初始化成功", zap.Strings("brokers", brokers), zap.String("topic", topic))
	return nil
}

// GetProducer 获取全局生产者实例
func GetProducer() *Producer {
	return globalProducer
}

// SendEvent 发送事件到Kafka
func (p *Producer) SendEvent(event *ChatEvent) error {
	if p == nil || p.producer == nil {
		return fmt.Errorf("kafka生产者未初始化")
	}

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("序列化事件失败: %w", err)
	}

	kafkaMsg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(event.Type),
		Value: sarama.ByteEncoder(data),
	}

	partition, offset, err := p.producer.SendMessage(kafkaMsg)
	if err != nil {
		return fmt.Errorf("发送事件失败: %w", err)
	}

	logger.Debug("Kafka事件已发送",
		zap.String("type", event.Type),
		zap.Int32("partition", partition),
		zap.Int64("offset", offset))
	return nil
}

// SendChatAnswered 发送聊天完成事件（全局生产者，失败只记日志）
func SendChatAnswered(question, lang string, isGap, cached bool, score float64) {
	if globalProducer == nil {
		return
	}
	if err := globalProducer.SendEvent(&ChatEvent{
		Type:     "chat_answered",
		Question: question,
		Lang:     lang,
		IsGap:    isGap,
		Cached:   cached,
		Score:    score,
	}); err != nil {
		logger.Warn("发送聊天事件失败", zap.Error(err))
	}
}

// SendFeedbackReceived 发送反馈事件
func SendFeedbackReceived(question string, rating int) {
	if globalProducer == nil {
		return
	}
	if err := globalProducer.SendEvent(&ChatEvent{
		Type:     "feedback_received",
		Question: question,
		Rating:   rating,
	}); err != nil {
		logger.Warn("发送反馈事件失败", zap.Error(err))
	}
}

// Close 关闭生产者
func (p *Producer) Close() error {
	if p == nil || p.producer == nil {
		return nil
	}
	return p.producer.Close()
}
