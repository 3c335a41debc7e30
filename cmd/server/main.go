// Package main 是应用程序的入口点。
package main

import (
	"context"
	"fmt"
	"math/rand/v2"
	"net/http"
	"os"
	"os/signal"
	"pet-match-go/internal/config"
	"pet-match-go/internal/gallery"
	"pet-match-go/internal/handler"
	"pet-match-go/internal/middleware"
	"pet-match-go/internal/pipeline"
	"pet-match-go/internal/ranker"
	"pet-match-go/internal/repository"
	"pet-match-go/internal/service"
	"pet-match-go/pkg/database"
	"pet-match-go/pkg/embedding"
	"pet-match-go/pkg/es"
	"pet-match-go/pkg/kafka"
	"pet-match-go/pkg/log"
	"pet-match-go/pkg/storage"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// refreshTimeout 限制一次后台重建的最长时间。
const refreshTimeout = 30 * time.Minute

func main() {
	// 1. 初始化配置
	configPath := os.Getenv("PETMATCH_CONFIG")
	if configPath == "" {
		configPath = "./configs/config.yaml"
	}
	config.Init(configPath)
	cfg := config.Conf

	// 2. 初始化日志记录器
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync() // 确保在程序退出时刷新所有缓冲的日志条目
	log.Info("日志记录器初始化成功")

	// 3. 按需初始化外部依赖
	if cfg.Database.MySQL.Enabled {
		database.InitMySQL(cfg.Database.MySQL.DSN)
	}
	if cfg.Database.Redis.Enabled {
		database.InitRedis(cfg.Database.Redis)
	}
	if cfg.MinIO.Enabled {
		storage.InitMinIO(cfg.MinIO)
	}
	if cfg.Elasticsearch.Enabled {
		if err := es.InitES(cfg.Elasticsearch, cfg.Embedding.Dimensions); err != nil {
			log.Fatal("es 初始化失败", err)
		}
	}

	// 4. 初始化图库来源与索引流程
	embeddingClient := embedding.NewClient(cfg.Embedding)
	var indexEmbedder embedding.Embedder = embeddingClient
	if database.RDB != nil {
		indexEmbedder = embedding.NewCachedEmbedder(embeddingClient, database.RDB, embeddingClient.Model(), cfg.Database.Redis.TTL)
	}

	var source gallery.Source
	if cfg.Gallery.Source == "minio" {
		source = gallery.NewMinIOSource(storage.MinioClient, cfg.MinIO.BucketName, cfg.MinIO.Prefix)
	} else {
		source = gallery.NewDirSource(cfg.Gallery.Dir)
	}

	var sink pipeline.VectorSink
	if es.ESClient != nil {
		sink = pipeline.NewESSink(es.ESClient, cfg.Elasticsearch.IndexName)
	}

	holder := gallery.NewHolder()
	indexer := pipeline.NewIndexer(source, indexEmbedder, embeddingClient.Model(), cfg.Gallery.Workers, sink)
	refresher := pipeline.NewRefresher(indexer, holder)

	// 5. 后台构建初始索引，构建完成前匹配接口返回 503
	appCtx, cancelApp := context.WithCancel(context.Background())
	defer cancelApp()
	go func() {
		if _, err := refresher.Refresh(appCtx); err != nil {
			log.Errorf("初始图库索引构建失败: %v", err)
		}
	}()

	// 6. 初始化 Service (依赖注入)
	var rk ranker.Ranker = ranker.NewMemoryRanker()
	if cfg.Match.Ranker == "elasticsearch" {
		rk = ranker.NewESRanker(es.ESClient, cfg.Elasticsearch.IndexName)
	}

	randomEnricher := service.NewRandomEnricher(rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())), cfg.Enrichment.MinScore, cfg.Enrichment.MaxScore)
	var enricher service.Enricher = randomEnricher
	if database.DB != nil {
		enricher = service.NewProfileEnricher(repository.NewPetProfileRepository(database.DB), randomEnricher)
	}

	matchService := service.NewMatchService(embeddingClient, holder, rk, enricher, cfg.Match.Timeout)

	var refreshService service.RefreshService
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka)
		defer producer.Close()
		refreshService = service.NewQueuedRefreshService(producer)
		// 7. 启动后台 Kafka 消费者
		go kafka.StartConsumer(appCtx, cfg.Kafka, refresher, database.RDB)
	} else {
		refreshService = service.NewLocalRefreshService(refresher, refreshTimeout)
	}

	// 8. 设置 Gin 模式并创建路由引擎
	gin.SetMode(cfg.Server.Mode)
	r := gin.New() // 使用 New() 创建一个不带默认中间件的引擎
	r.Use(middleware.RequestLogger(), middleware.CORS(cfg.Server.CORSOrigins), gin.Recovery())

	// 9. 注册路由
	matchHandler := handler.NewMatchHandler(matchService, holder, embeddingClient.Model(), cfg.Match.TopK, cfg.Match.MaxTopK, cfg.Server.MaxUploadMB)
	galleryHandler := handler.NewGalleryHandler(refreshService, source, cfg.MinIO.URLExpiry)

	r.GET("/", matchHandler.Info)
	r.GET("/health", matchHandler.Health)
	r.GET("/dog-images/:id", galleryHandler.Image)
	api := r.Group("/api")
	{
		api.POST("/match", matchHandler.Match)
		api.POST("/gallery/refresh", galleryHandler.Refresh)
	}

	// 启动 HTTP 服务器并实现优雅停机
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: otelhttp.NewHandler(r, "pet-match"),
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

	// 停止后台构建与 Kafka 消费者
	cancelApp()

	// 设置一个5秒的超时上下文
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// 关闭 HTTP 服务器
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("HTTP 服务器关闭失败: %v", err)
	}

	log.Info("服务已优雅关闭")
}
