package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/comerzia/catalog-import-service/config"
	"github.com/comerzia/catalog-import-service/pkg/broker"
	"github.com/comerzia/catalog-import-service/pkg/cache"
	"github.com/comerzia/catalog-import-service/pkg/logger"
	"github.com/comerzia/catalog-import-service/pkg/postgres"
	"github.com/comerzia/catalog-import-service/pkg/search"

	"github.com/comerzia/catalog-import-service/internal/blobstore"
	catRepoPkg "github.com/comerzia/catalog-import-service/internal/catalog/repository"
	"github.com/comerzia/catalog-import-service/internal/importer"
	jobListenerPkg "github.com/comerzia/catalog-import-service/internal/importjob/listener"
	jobRepoPkg "github.com/comerzia/catalog-import-service/internal/importjob/repository"
	jobUCPkg "github.com/comerzia/catalog-import-service/internal/importjob/usecase"
	movRepoPkg "github.com/comerzia/catalog-import-service/internal/movement/repository"
	"github.com/comerzia/catalog-import-service/internal/server"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	// 1. Load Configuration
	_ = godotenv.Load() // Load .env file if it exists
	cfg := config.LoadEnv()

	// 2. Initialize Logger
	logConfig := &logger.Config{
		IsDevelopment:     false,
		Encoding:          "json",
		Level:             "info",
		DisableCaller:     cfg.Logger.DisableCaller,
		DisableStacktrace: cfg.Logger.DisableStacktrace,
	}
	if cfg.Server.AppEnv == "dev" || cfg.Server.AppEnv == "development" {
		logConfig.IsDevelopment = true
		logConfig.Encoding = cfg.Logger.Encoding
		logConfig.Level = cfg.Logger.Level
	}

	appLogger, err := logger.New(logConfig)
	if err != nil {
		panic(err)
	}
	defer appLogger.Sync()

	// 3. Connect to Database
	db, err := postgres.New(&postgres.Config{
		Host:            cfg.Postgres.Host,
		Port:            cfg.Postgres.Port,
		User:            cfg.Postgres.User,
		Password:        cfg.Postgres.Password,
		DBName:          cfg.Postgres.DBName,
		SSLMode:         cfg.Postgres.SSLMode,
		MaxOpenConns:    cfg.Postgres.MaxOpenConns,
		MaxIdleConns:    cfg.Postgres.MaxIdleConns,
		ConnMaxLifetime: time.Duration(cfg.Postgres.ConnMaxLifetime) * time.Second,
		ConnMaxIdleTime: time.Duration(cfg.Postgres.ConnMaxIdleTime) * time.Second,
	})
	if err != nil {
		appLogger.Fatal("Could not connect to database", zap.Error(err))
	}
	defer db.Close()
	appLogger.Info("Connected to PostgreSQL database", zap.String("db_name", cfg.Postgres.DBName))

	// 4. Initialize Repositories
	entryRepo := catRepoPkg.NewPGRepository(db)
	movementRepo := movRepoPkg.NewPGRepository(db)
	jobRepo := jobRepoPkg.NewPGRepository(db)

	// 5. Initialize Redis
	redisClient, err := cache.NewRedisClient(&cache.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		appLogger.Fatal("Could not connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()
	appLogger.Info("Connected to Redis", zap.String("addr", cfg.Redis.Addr))

	// 5.5 Initialize Kafka
	kafkaConsumer := broker.NewConsumer(&broker.Config{
		Brokers: cfg.Kafka.Brokers,
		Topic:   cfg.Kafka.Topic,
		GroupID: cfg.Kafka.GroupID,
	})
	defer kafkaConsumer.Close()

	kafkaProducer := broker.NewProducer(&broker.Config{
		Brokers: cfg.Kafka.Brokers,
		Topic:   cfg.Kafka.Topic,
	})
	defer kafkaProducer.Close()
	appLogger.Info("Connected to Kafka", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.Topic))

	// 5.8 Initialize Elasticsearch
	esClient, err := search.NewClient(&search.Config{
		Addresses: cfg.Elastic.Addresses,
		Username:  cfg.Elastic.Username,
		Password:  cfg.Elastic.Password,
	})
	if err != nil {
		appLogger.Warn("Could not connect to Elasticsearch (search indexing disabled)", zap.Error(err))
		esClient = nil
	} else {
		appLogger.Info("Connected to Elasticsearch", zap.Strings("addresses", cfg.Elastic.Addresses))
	}

	// 6. Initialize Blob Store
	blobs, err := blobstore.NewLocalStore(&blobstore.LocalConfig{
		Dir:            cfg.Blob.Dir,
		TTL:            cfg.Blob.TTL,
		MaxUploadBytes: cfg.Blob.MaxUploadBytes,
	}, appLogger)
	if err != nil {
		appLogger.Fatal("Could not initialize blob store", zap.Error(err))
	}

	// 7. Initialize Engine and Runner
	batchStore := importer.NewPGStore(db, entryRepo, movementRepo)
	engine := importer.NewEngine(batchStore, importer.NewSheetValidator(), esClient, appLogger)
	runner := jobUCPkg.NewRunner(jobRepo, blobs, engine, redisClient, appLogger)

	// 8. Start Listener and Sweeper
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	jobListener := jobListenerPkg.NewImportListener(kafkaConsumer, runner, appLogger)
	go jobListener.Start(ctx)

	go sweepLoop(ctx, blobs, cfg.Blob.SweepInterval, appLogger)

	// 9. Start HTTP Server
	srv := server.New(blobs, jobRepo, kafkaProducer, runner, cfg.Import.Inline, appLogger)

	port := cfg.Server.HTTPPort
	if !strings.HasPrefix(port, ":") {
		port = ":" + port
	}

	httpServer := &http.Server{
		Addr:         port,
		Handler:      srv.Router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	appLogger.Info("Starting HTTP server", zap.String("port", port))
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Fatal("failed to serve", zap.Error(err))
		}
	}()

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("HTTP server shutdown", zap.Error(err))
	}
	appLogger.Info("Server stopped")
}

func sweepLoop(ctx context.Context, blobs blobstore.Store, interval time.Duration, log *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			res, err := blobs.Sweep(ctx)
			if err != nil {
				log.Error("blob sweep failed", zap.Error(err))
				continue
			}
			if res.Removed > 0 {
				log.Info("blob sweep removed expired files",
					zap.Int("removed", res.Removed),
					zap.Int("scanned", res.Scanned),
				)
			}
		}
	}
}
