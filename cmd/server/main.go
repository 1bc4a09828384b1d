// Package main 是应用程序的入口点。
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"novel-ai-go/internal/config"
	"novel-ai-go/internal/handler"
	"novel-ai-go/internal/middleware"
	"novel-ai-go/internal/model"
	"novel-ai-go/internal/pipeline"
	"novel-ai-go/internal/repository"
	"novel-ai-go/internal/service"
	"novel-ai-go/internal/vector"
	"novel-ai-go/pkg/cache"
	"novel-ai-go/pkg/database"
	"novel-ai-go/pkg/embedding"
	"novel-ai-go/pkg/es"
	"novel-ai-go/pkg/kafka"
	"novel-ai-go/pkg/llm"
	"novel-ai-go/pkg/log"
)

func main() {
	// 1. 加载配置
	cfg, err := config.Load("./configs/config.yaml")
	if err != nil {
		fmt.Printf("加载配置失败: %v\n", err)
		os.Exit(1)
	}

	// 2. 初始化日志记录器
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync() // 确保在程序退出时刷新所有缓冲的日志条目
	log.Info("日志记录器初始化成功")

	// 3. 初始化数据库、Redis 与 Elasticsearch
	db, err := database.NewMySQL(cfg.Database.MySQL.DSN)
	if err != nil {
		log.Fatalf("MySQL 初始化失败: %v", err)
	}
	if err := db.AutoMigrate(
		&model.Novel{}, &model.Chapter{}, &model.Character{},
		&model.Foreshadowing{}, &model.DocumentEmbedding{},
	); err != nil {
		log.Fatalf("数据库迁移失败: %v", err)
	}
	// Redis 不可用时返回 nil，缓存层整体降级为未命中
	rdb := database.NewRedis(cfg.Database.Redis.Addr, cfg.Database.Redis.Password, cfg.Database.Redis.DB)
	esClient, err := es.NewClient(cfg.ES, cfg.Embedding.Dimensions)
	if err != nil {
		log.Fatalf("Elasticsearch 初始化失败: %v", err)
	}

	// 4. 初始化 Repository
	novelRepo := repository.NewNovelRepository(db)
	chapterRepo := repository.NewChapterRepository(db)
	characterRepo := repository.NewCharacterRepository(db)
	foreshadowingRepo := repository.NewForeshadowingRepository(db)
	embeddingRepo := repository.NewDocumentEmbeddingRepository(db)

	// 5. 初始化向量检索层
	embeddingClient := embedding.NewClient(cfg.Embedding)
	generator := embedding.NewGenerator(embeddingClient, cfg.Embedding)
	batchProcessor := embedding.NewBatchProcessor(cfg.Batch)
	cacheTier := cache.New(rdb, cfg.Cache)
	store := vector.NewStore(generator, batchProcessor, embeddingRepo, esClient, cacheTier, cfg.Embedding)

	// 6. 初始化 Service (依赖注入)
	producer := kafka.NewProducer(cfg.Kafka)
	defer producer.Close()
	llmClient := llm.NewClient(cfg.LLM)
	novelService := service.NewNovelService(novelRepo, chapterRepo, producer, store)
	chapterService := service.NewChapterService(chapterRepo, producer, store)
	characterService := service.NewCharacterService(characterRepo, producer, store)
	foreshadowingService := service.NewForeshadowingService(foreshadowingRepo, embeddingRepo, producer, store, cfg.Threshold)
	consistencyService := service.NewConsistencyService(store, chapterRepo, cfg.Threshold)
	generationService := service.NewGenerationService(chapterRepo, novelRepo, consistencyService, llmClient)

	// 7. 启动后台 Kafka 消费者驱动向量化管道
	processor := pipeline.NewProcessor(store, novelRepo, chapterRepo, characterRepo, foreshadowingRepo)
	consumerCtx, stopConsumer := context.WithCancel(context.Background())
	defer stopConsumer()
	consumer := kafka.NewConsumer(cfg.Kafka, rdb)
	go consumer.Run(consumerCtx, processor)

	// 8. 设置 Gin 模式并创建路由引擎
	gin.SetMode(cfg.Server.Mode)
	r := gin.New() // 使用 New() 创建一个不带默认中间件的引擎
	// 添加我们自定义的日志中间件和 Gin 的 Recovery 中间件
	r.Use(middleware.RequestLogger(), gin.Recovery())

	// 9. 注册路由
	novelHandler := handler.NewNovelHandler(novelService, store, cfg.Threshold)
	chapterHandler := handler.NewChapterHandler(chapterService, generationService, consistencyService)
	characterHandler := handler.NewCharacterHandler(characterService)
	foreshadowingHandler := handler.NewForeshadowingHandler(foreshadowingService)

	apiV1 := r.Group("/api/v1")
	{
		novels := apiV1.Group("/novels")
		{
			novels.POST("", novelHandler.Create)
			novels.GET("", novelHandler.List)
			novels.GET("/:id", novelHandler.Get)
			novels.PUT("/:id", novelHandler.Update)
			novels.DELETE("/:id", novelHandler.Delete)

			// 小说范围内的显式语义检索与索引管理
			novels.GET("/:id/similar", novelHandler.Similar)
			novels.POST("/:id/reindex", novelHandler.Reindex)

			// 归属小说的子实体
			novels.POST("/:id/chapters", chapterHandler.Create)
			novels.GET("/:id/chapters", chapterHandler.ListByNovel)
			novels.POST("/:id/characters", characterHandler.Create)
			novels.GET("/:id/characters", characterHandler.ListByNovel)
			novels.POST("/:id/foreshadowings", foreshadowingHandler.Create)
			novels.GET("/:id/foreshadowings", foreshadowingHandler.ListByNovel)
			novels.POST("/:id/foreshadowing/match", foreshadowingHandler.Match)
		}

		chapters := apiV1.Group("/chapters")
		{
			chapters.GET("/:id", chapterHandler.Get)
			chapters.PUT("/:id", chapterHandler.Update)
			chapters.DELETE("/:id", chapterHandler.Delete)
			chapters.POST("/:id/generate", chapterHandler.Generate)
			chapters.GET("/:id/context", chapterHandler.Context)
		}

		characters := apiV1.Group("/characters")
		{
			characters.GET("/:id", characterHandler.Get)
			characters.PUT("/:id", characterHandler.Update)
			characters.DELETE("/:id", characterHandler.Delete)
		}

		foreshadowings := apiV1.Group("/foreshadowings")
		{
			foreshadowings.GET("/:id", foreshadowingHandler.Get)
			foreshadowings.PUT("/:id", foreshadowingHandler.Update)
			foreshadowings.DELETE("/:id", foreshadowingHandler.Delete)
		}
	}

	// 启动 HTTP 服务器并实现优雅停机
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Infof("服务启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP 服务监听失败: %s\n", err)
		}
	}()

	// 等待中断信号以实现优雅停机
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("接收到停机信号，正在关闭服务...")

	// 先停掉消费循环，再关闭 HTTP 服务器
	stopConsumer()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("HTTP 服务器关闭失败: %v", err)
	}
	log.Info("服务已优雅关闭")
}
