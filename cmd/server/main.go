package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"drivemind/internal/agent"
	"drivemind/internal/api"
	"drivemind/internal/config"
	"drivemind/internal/dal"
	"drivemind/internal/database/kafka"
	"drivemind/internal/database/milvus"
	"drivemind/internal/database/minio"
	"drivemind/internal/database/mongo"
	"drivemind/internal/database/mysql"
	redisdb "drivemind/internal/database/redis"
	"drivemind/internal/drive"
	"drivemind/internal/embedding"
	"drivemind/internal/gemini"
	"drivemind/internal/ingest"
	"drivemind/internal/models"
	"drivemind/internal/vectorstore"
	"drivemind/pkg/logger"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the YAML configuration file")
	flag.Parse()

	logger.Init(logrus.InfoLevel)
	appLog := logger.New("server")
	appLog.Info("starting drivemind server")

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Relational store.
	db, err := mysql.New(&cfg.MySQL)
	if err != nil {
		log.Fatalf("failed to connect to MySQL: %v", err)
	}
	defer db.Close()
	if err := db.DB.AutoMigrate(&models.Folder{}, &models.Conversation{}, &models.Message{}); err != nil {
		log.Fatalf("failed to migrate schema: %v", err)
	}
	folderDAL := dal.NewFolderDAL(db.DB)
	conversationDAL := dal.NewConversationDAL(db.DB)

	// Vector store.
	milvusClient, err := milvus.New(ctx, &cfg.Milvus)
	if err != nil {
		log.Fatalf("failed to connect to Milvus: %v", err)
	}
	defer milvusClient.Close()

	// Model access.
	geminiService, err := gemini.New(ctx, &cfg.Google)
	if err != nil {
		log.Fatalf("failed to create Gemini client: %v", err)
	}
	defer geminiService.Close()
	embedder := embedding.NewGemini(geminiService.Client(), cfg.Google.EmbeddingModel)
	store := vectorstore.NewMilvusStore(milvusClient, embedder)

	driveClient := drive.NewClient(cfg)

	// Job queue.
	kafkaClient, err := kafka.New(&cfg.Kafka)
	if err != nil {
		log.Fatalf("failed to connect to Kafka: %v", err)
	}
	defer kafkaClient.Close()
	publisher := ingest.NewPublisher(kafkaClient.Writer)

	// Per-folder ingestion lock.
	redisClient, err := redisdb.New(ctx, &cfg.Redis)
	if err != nil {
		log.Fatalf("failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()

	opts := ingest.Options{
		Locker:            ingest.NewRedisLocker(redisClient),
		ChunkSize:         cfg.Ingestion.ChunkSize,
		ChunkOverlap:      cfg.Ingestion.ChunkOverlap,
		UploadConcurrency: cfg.Ingestion.UploadConcurrency,
	}

	// Raw-file archive and run reports are optional collaborators.
	if cfg.MinIO.Endpoint != "" {
		minioClient, err := minio.New(ctx, &cfg.MinIO)
		if err != nil {
			log.Fatalf("failed to connect to MinIO: %v", err)
		}
		opts.Archiver = ingest.NewMinioArchiver(minioClient, cfg.MinIO.Bucket)
	}
	if cfg.Mongo.URI != "" {
		mongoClient, err := mongo.New(ctx, &cfg.Mongo)
		if err != nil {
			log.Fatalf("failed to connect to MongoDB: %v", err)
		}
		defer mongoClient.Disconnect(context.Background())
		opts.Reporter = ingest.NewMongoReporter(mongoClient, cfg.Mongo.Database)
	}

	ingestService := ingest.NewService(folderDAL, driveClient, geminiService, store, opts)
	consumer := ingest.NewConsumer(kafkaClient.Reader, ingestService)
	go func() {
		if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			appLog.WithErr(err).Error("ingestion consumer stopped")
		}
	}()

	chatAgent := agent.New(geminiService, geminiService, store)

	handler := api.NewHandler(folderDAL, conversationDAL, store, driveClient, chatAgent, publisher)
	router := api.SetupRouter(handler, cfg.Auth.JWTSecret)

	server := &http.Server{
		Addr:    cfg.Server.Address,
		Handler: router,
	}
	go func() {
		appLog.Info(fmt.Sprintf("listening on %s", cfg.Server.Address))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server failed: %v", err)
		}
	}()

	<-ctx.Done()
	appLog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		appLog.WithErr(err).Error("graceful shutdown failed")
	}
}
