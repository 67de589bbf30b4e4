package models

import (
	"time"
)

// ChatLog 聊天记录表
// 每次成功返回的回答都会落库，供管理端统计与反馈关联
type ChatLog struct {
	ID        uint      `gorm:"primaryKey;column:id" json:"id"`
	Query     string    `gorm:"type:text;not null" json:"query"`
	Response  string    `gorm:"type:text;not null" json:"response"`
	Lang      string    `gorm:"column:lang;size:10;default:en" json:"lang"`
	IsGap     bool      `gorm:"column:is_gap;default:false;index" json:"is_gap"`
	Score     float64   `gorm:"column:score" json:"score"`
	CreatedAt time.Time `gorm:"column:created_at;not null;index" json:"created_at"`

	Feedback *Feedback `gorm:"foreignKey:ChatID" json:"feedback,omitempty"`
}

func (ChatLog) TableName() string {
	return "chat_logs"
}

// GapLog 知识缺口记录表
type GapLog struct {
	ID              uint      `gorm:"primaryKey;column:id" json:"id"`
	Question        string    `gorm:"type:text;not null" json:"question"`
	ConfidenceScore float64   `gorm:"column:confidence_score" json:"confidence_score"`
	Category        string    `gorm:"column:category;size:32;not null" json:"category"` // Gap | BloodWorkGap
	CreatedAt       time.Time `gorm:"column:created_at;not null;index" json:"created_at"`
}

func (GapLog) TableName() string {
	return "gap_logs"
}

// Feedback 用户反馈表
type Feedback struct {
	ID        uint      `gorm:"primaryKey;column:id" json:"id"`
	ChatID    *uint     `gorm:"column:chat_id;index" json:"chat_id,omitempty"`
	Question  string    `gorm:"type:text;not null" json:"question"`
	Answer    string    `gorm:"type:text;not null" json:"answer"`
	Rating    int       `gorm:"column:rating;not null" json:"rating"` // 1-5
	Reason    string    `gorm:"type:text" json:"reason"`
	CreatedAt time.Time `gorm:"column:created_at;not null;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (Feedback) TableName() string {
	return "feedback"
}

// DocUsage 引用来源使用记录表
// 每个引用每天只记一次，用于管理端"最常用来源"视图
type DocUsage struct {
	ID        uint      `gorm:"primaryKey;column:id" json:"id"`
	Document  string    `gorm:"column:document;size:255;not null;index" json:"document"`
	CreatedAt time.Time `gorm:"column:created_at;not null;index" json:"created_at"`
}

func (DocUsage) TableName() string {
	return "doc_usage"
}
