package bootstrap

import (
	"context"
	"log"
	"time"

	"github.com/izana/backend-go/app/controllers"
	"github.com/izana/backend-go/internal/config"
	"github.com/izana/backend-go/internal/dashscope"
	"github.com/izana/backend-go/internal/database"
	"github.com/izana/backend-go/internal/kafka"
	"github.com/izana/backend-go/internal/logger"
	"github.com/izana/backend-go/internal/rag"
	"github.com/izana/backend-go/internal/services"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// App encapsulates lifecycle resources that need to be cleaned up on shutdown.
type App struct {
	cleanupTasks []func() error
	cancel       context.CancelFunc
}

// Init bootstraps configuration, logger, database connections and the
// answer pipeline required by the Beego application.
func Init() (*App, error) {
	// Load environment variables from .env if present (non-fatal if missing).
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	// Initialize structured logger.
	if err := logger.InitLogger(); err != nil {
		return nil, err
	}

	// Load dynamic configuration.
	if err := config.LoadConfig(); err != nil {
		return nil, err
	}
	cfg := config.AppConfig

	ctx, cancel := context.WithCancel(context.Background())
	app := &App{cancel: cancel}

	// Initialize database.
	if _, err := database.InitDB(); err != nil {
		cancel()
		return nil, err
	}
	app.cleanupTasks = append(app.cleanupTasks, func() error {
		return database.CloseDB()
	})

	// Initialize Redis (optional). Failure shouldn't block the app.
	if cfg.Redis.Enabled {
		if _, err := database.InitRedis(); err != nil {
			logger.Warn("Failed to initialize Redis", zap.Error(err))
		} else {
			app.cleanupTasks = append(app.cleanupTasks, func() error {
				return database.CloseRedis()
			})
		}
	}

	// Initialize Kafka (optional). Failure shouldn't block the app.
	if cfg.Kafka.Enabled {
		if err := kafka.InitProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic); err != nil {
			logger.Warn("Failed to initialize Kafka producer", zap.Error(err))
		} else {
			app.cleanupTasks = append(app.cleanupTasks, func() error {
				producer := kafka.GetProducer()
				if producer != nil {
					return producer.Close()
				}
				return nil
			})
		}
	}

	// 初始化全局DashScope服务
	if apiKey := cfg.AI.DashScopeAPIKey; apiKey != "" {
		dashscope.InitGlobalService(apiKey)
		logger.Info("Global DashScope service initialized")
	} else {
		logger.Warn("DashScope API key not configured, reranking will be skipped")
	}

	svc, err := buildServices(ctx, cfg)
	if err != nil {
		cancel()
		return nil, err
	}
	controllers.SetServices(svc)

	return app, nil
}

// buildServices 装配问答流水线的全部服务
func buildServices(ctx context.Context, cfg *config.Config) (*controllers.Services, error) {
	aiTimeout := time.Duration(cfg.AI.TimeoutSeconds) * time.Second
	embedder := rag.NewOpenAIEmbedder(cfg.AI.OpenAIAPIKey, cfg.AI.EmbeddingModel, aiTimeout)
	generator := rag.NewOpenAIGenerator(cfg.AI.OpenAIAPIKey, cfg.AI.DraftModel, cfg.AI.FastModel, aiTimeout)
	if !embedder.Ready() || !generator.Ready() {
		logger.Warn("OpenAI API key not configured, chat pipeline will reject requests")
	}

	store, err := buildVectorStore(cfg)
	if err != nil {
		return nil, err
	}

	var reranker rag.Reranker = &rag.NoopReranker{}
	if dashscope.IsGlobalServiceReady() {
		reranker = rag.NewDashScopeReranker(cfg.AI.RerankModel)
	}

	retry := services.RetryPolicy{
		MaxAttempts: cfg.Pipeline.RetryMaxAttempts,
		BaseDelay:   time.Duration(cfg.Pipeline.RetryBaseDelayMS) * time.Millisecond,
	}

	logStore := services.NewLogStore(database.DB, database.RedisClient)
	retention := time.Duration(cfg.Pipeline.RetentionDays) * 24 * time.Hour
	logStore.StartPruner(ctx, 6*time.Hour, retention)

	cache := services.NewSemanticCache(embedder, store,
		cfg.VectorStore.CacheNamespace, cfg.Pipeline.CacheThreshold)
	retriever := services.NewRetriever(embedder, store, reranker,
		cfg.VectorStore.KnowledgeNamespace, cfg.Pipeline.TopK,
		cfg.Pipeline.RerankTopN, cfg.Pipeline.SimilarityFloor, retry)
	queryBuilder := services.NewQueryBuilder(generator, cfg.Pipeline.MaxQueryVariants)
	translator := services.NewTranslator(generator, cfg.Pipeline.WorkingLanguage)
	metrics := services.NewMetrics()

	chatService := services.NewChatService(services.ChatServiceOptions{
		QueryBuilder:     queryBuilder,
		Cache:            cache,
		Retriever:        retriever,
		Generator:        generator,
		Translator:       translator,
		LogStore:         logStore,
		Metrics:          metrics,
		GapThreshold:     cfg.Pipeline.GapThreshold,
		MaxMessageLength: cfg.Pipeline.MaxMessageLength,
		Temperature:      cfg.AI.Temperature,
		MaxTokens:        cfg.AI.MaxTokens,
		Retry:            retry,
	})
	feedbackService := services.NewFeedbackService(logStore, cache)

	return &controllers.Services{
		Chat:     chatService,
		Feedback: feedbackService,
		LogStore: logStore,
	}, nil
}

// buildVectorStore 按配置选择向量存储后端
func buildVectorStore(cfg *config.Config) (rag.VectorStore, error) {
	switch cfg.VectorStore.Provider {
	case "milvus":
		store, err := rag.NewMilvusVectorStore(rag.MilvusOptions{
			Address:          cfg.VectorStore.Milvus.Address,
			Username:         cfg.VectorStore.Milvus.Username,
			Password:         cfg.VectorStore.Milvus.Password,
			Database:         cfg.VectorStore.Milvus.Database,
			CollectionPrefix: cfg.VectorStore.Milvus.CollectionPrefix,
			VectorSize:       cfg.VectorStore.Milvus.VectorSize,
			UseTLS:           cfg.VectorStore.Milvus.TLS,
		})
		if err != nil {
			return nil, err
		}
		logger.Info("Milvus vector store initialized",
			zap.String("address", cfg.VectorStore.Milvus.Address))
		return store, nil
	default:
		logger.Warn("Using in-memory vector store, data will not persist")
		return rag.NewMemoryVectorStore(), nil
	}
}

// Shutdown flushes/logs and closes resources gracefully.
func (a *App) Shutdown() {
	if a.cancel != nil {
		a.cancel()
	}

	// Execute cleanup tasks in reverse order (best effort).
	for i := len(a.cleanupTasks) - 1; i >= 0; i-- {
		if err := a.cleanupTasks[i](); err != nil {
			log.Printf("Cleanup error: %v\n", err)
		}
	}

	// Flush logger buffers.
	logger.Sync()
}
