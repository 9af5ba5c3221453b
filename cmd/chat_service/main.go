package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"realtime_chat/internal/chat/app"
	"realtime_chat/internal/chat/domain"
	"realtime_chat/internal/chat/repository"
	"realtime_chat/internal/chat/router"
	"realtime_chat/pkg/config"
	"realtime_chat/pkg/database"
	"realtime_chat/pkg/logger"
	"realtime_chat/pkg/middlewares"
	testtool "realtime_chat/pkg/test_tool"

	"github.com/gofiber/fiber/v2"
	fiber_log "github.com/gofiber/fiber/v2/middleware/logger"
	"go.uber.org/zap"
)

func main() {
	logger.Log = logger.Initialize(config.EnvConfig.ChatService, config.EnvConfig.ChatServiceLogPath)
	defer logger.Log.Sync()

	cfg := config.LoadConfig[config.Chat](config.EnvConfig.ChatService, config.EnvConfig.ChatServiceYAMLPath)
	if config.EnvConfig.ChatServicePort != "" {
		cfg.Port = config.EnvConfig.ChatServicePort
	}
	cfg.SetDefaults()

	loc, err := cfg.Location()
	if err != nil {
		logger.Log.Fatal("invalid time_zone", zap.String("time_zone", cfg.TimeZone), zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. document store
	store, closeStore := newDocumentStore(ctx, cfg)
	defer closeStore()

	// 2. blob storage
	blobs, memBlobs := newBlobRepository(ctx, cfg)

	// 3. 初始化 Repository
	mode := repository.ParseConsistencyMode(cfg.Consistency)
	convRepo := repository.NewConversationRepository(store, mode)
	msgRepo := repository.NewMessageRepository(store, mode)
	userRepo := repository.NewUserRepository(store, mode)

	// 4. 初始化 UseCases
	var ids domain.MessageIDGenerator = domain.UniqueIDs{}
	if cfg.MessageID == config.MessageIDCompat {
		ids = domain.CompatIDs{Location: loc}
	}
	syncUC := app.NewSyncUseCase(convRepo, msgRepo,
		app.WithMessageIDs(ids),
		app.WithLocation(loc),
		app.WithStopOnSenderFailure(cfg.StopOnSenderFailure),
	)
	listenerUC := app.NewListenerUseCase(convRepo, msgRepo, loc)
	accountUC := app.NewAccountUseCase(userRepo)
	mediaUC := app.NewMediaUseCase(blobs)

	// 5. 啟動 Fiber
	r := fiber.New()
	file, err := os.OpenFile(fmt.Sprintf("%s/access.log", config.EnvConfig.ChatServiceLogPath), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0666)
	if err != nil {
		log.Fatalf("Failed to open log file: %v", err)
	}
	defer file.Close()

	r.Use(fiber_log.New(fiber_log.Config{
		Output: file,
	}))

	limiter := middlewares.NewLimiterStore(cfg.RateLimit.PerMinute, cfg.RateLimit.Burst, cfg.RateLimit.CleanupInterval)
	defer limiter.Stop()

	router.RegisterRoutes(ctx, r,
		app.NewHTTPHandler(syncUC, accountUC, mediaUC, memBlobs),
		app.NewChatWebsocketHandler(syncUC, listenerUC),
		limiter,
	)

	testtool.StartPprof("")

	go func() {
		<-ctx.Done()
		logger.Log.Info("shutting down chat service")
		if err := r.ShutdownWithTimeout(10 * time.Second); err != nil {
			logger.Log.Error("shutdown", zap.Error(err))
		}
	}()

	// Listen
	port := ":" + cfg.Port
	logger.Log.Info("chat service listening",
		zap.String("port", port),
		zap.String("store", cfg.Store),
		zap.String("consistency", string(mode)))
	if err := r.Listen(port); err != nil {
		log.Fatalf("Failed to start Fiber: %v", err)
	}
}

func newDocumentStore(ctx context.Context, cfg config.Chat) (repository.DocumentStore, func()) {
	if cfg.Store != config.StoreMongo {
		logger.Log.Info("using in-memory document store")
		return repository.NewMemoryStore(), func() {}
	}

	// 建立 Mongo 連線 (存文件)
	uri := fmt.Sprintf("mongodb://%s:%s@%s:%d", cfg.MongoSQL.User, cfg.MongoSQL.Password, cfg.MongoSQL.Host, cfg.MongoSQL.Port)
	mongo, err := database.NewMongoDB(ctx,
		database.Connection{
			ConnectStr:    uri,
			RetryCount:    cfg.MongoSQL.RetryCount,
			RetryInterval: time.Duration(cfg.MongoSQL.RetryInterval) * time.Second,
		},
		cfg.MongoSQL.Database)
	if err != nil {
		logger.Log.Fatal(
			"Unable to connect to mongoDB database after retries",
			zap.String("host", cfg.MongoSQL.Host),
			zap.Error(err),
		)
	}

	// 建立 Redis 連線 (change feed)
	masterName, sentinel := config.GetRedisSetting()
	redisClient, err := database.NewRedis(ctx, database.RedisConnection{
		Addr:          cfg.Redis.Addr,
		MasterName:    masterName,
		SentinelAddrs: sentinel,
		DB:            cfg.Redis.RedisDB,
	})
	if err != nil {
		logger.Log.Fatal("connect redis", zap.Error(err))
	}

	store := repository.NewMongoStore(mongo.Database, cfg.MongoSQL.Collection, repository.NewRedisPubSub(redisClient))
	return store, func() {
		if err := redisClient.Close(); err != nil {
			logger.Log.Error("close redis", zap.Error(err))
		}
		if err := mongo.Close(context.Background()); err != nil {
			logger.Log.Error("close mongo", zap.Error(err))
		}
	}
}

func newBlobRepository(ctx context.Context, cfg config.Chat) (repository.BlobRepository, *repository.MemoryBlobRepository) {
	if !cfg.MinIO.Enabled {
		mem := repository.NewMemoryBlobRepository(fmt.Sprintf("http://localhost:%s/blobs", cfg.Port))
		return mem, mem
	}

	client, err := database.NewMinIOConnection(ctx, database.MinIOConnection{
		Endpoint:      cfg.MinIO.Endpoint,
		User:          cfg.MinIO.User,
		Password:      cfg.MinIO.Password,
		BucketName:    cfg.MinIO.Bucket,
		UseSSL:        cfg.MinIO.UseSSL,
		RetryCount:    cfg.MinIO.RetryCount,
		RetryInterval: time.Duration(cfg.MinIO.RetryInterval) * time.Second,
	})
	if err != nil {
		logger.Log.Fatal("connect minio", zap.String("endpoint", cfg.MinIO.Endpoint), zap.Error(err))
	}
	return repository.NewMinIOBlobRepository(client, cfg.MinIO.URLExpiry), nil
}
