package database

import (
	"fmt"

	"github.com/izana/backend-go/internal/config"
	"github.com/izana/backend-go/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var DB *gorm.DB

func InitDB() (*gorm.DB, error) {
	cfg := config.AppConfig
	if cfg == nil {
		return nil, fmt.Errorf("config not loaded")
	}

	db, err := gorm.Open(postgres.Open(cfg.Database.URL), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// 设置连接池
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(50)

	if err := autoMigrate(db); err != nil {
		return nil, fmt.Errorf("database migration failed: %w", err)
	}

	DB = db
	return db, nil
}

// autoMigrate 自动迁移日志存储相关表
func autoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.ChatLog{},
		&models.GapLog{},
		&models.Feedback{},
		&models.DocUsage{},
	)
}

func CloseDB() error {
	if DB == nil {
		return nil
	}
	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
