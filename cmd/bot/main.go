package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mymmrac/telego"
	"go.uber.org/zap"

	openaiclient "polymerbot/internal/client/openai"
	"polymerbot/internal/config"
	cronrunner "polymerbot/internal/cron"
	"polymerbot/internal/db"
	"polymerbot/internal/handler"
	"polymerbot/internal/logger"
	"polymerbot/internal/parser"
	gormrepository "polymerbot/internal/repository/gorm"
	"polymerbot/internal/service"
	"polymerbot/internal/telegram"
)

func main() {
	mode := flag.String("mode", "full", "run mode: full|ingest|serve")
	flag.Parse()

	cfgPath := os.Getenv("PB_CONFIG")
	if cfgPath == "" {
		cfgPath = "config/config.yaml"
	}

	envOnly := false
	if envOnlyRaw := os.Getenv("PB_ENV_ONLY"); envOnlyRaw != "" {
		envOnly = strings.EqualFold(envOnlyRaw, "true") || envOnlyRaw == "1"
	}

	cfg, err := config.Load(cfgPath, envOnly)
	if err != nil {
		panic(err)
	}

	logger, err := logger.New(cfg.Log)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	dbConn, err := db.Open(cfg.DB)
	if err != nil {
		logger.Fatal("db open failed", zap.Error(err))
	}
	defer db.Close(dbConn)

	if err := db.SetTimezone(dbConn, cfg.DB.Timezone); err != nil {
		logger.Warn("failed to set timezone", zap.Error(err))
	}
	if err := db.AutoMigrate(dbConn); err != nil {
		logger.Fatal("auto-migrate failed", zap.Error(err))
	}

	store := gormrepository.New(dbConn.Gorm)

	var fallback parser.Fallback
	if cfg.OpenAI.Enabled && cfg.OpenAI.APIKey != "" {
		fallback = openaiclient.New(openaiclient.Config{
			APIKey: cfg.OpenAI.APIKey,
			Model:  cfg.OpenAI.Model,
		}, logger)
	}

	buffer := telegram.NewBufferedFeed(cfg.Telegram.BufferLimit)
	ingestSvc := &service.IngestService{
		Repo:     store,
		Feed:     buffer,
		Fallback: fallback,
		Retry: parser.RetryPolicy{
			MaxAttempts: cfg.Ingest.FallbackMaxAttempts,
			BaseDelay:   cfg.Ingest.FallbackBaseDelay,
			MaxDelay:    cfg.Ingest.FallbackMaxDelay,
		},
		Channels: cfg.Telegram.ChatIDs,
		Config:   cfg.Ingest,
		Logger:   logger,
	}
	statsSvc := &service.StatsService{Repo: store, Logger: logger}
	retentionSvc := &service.RetentionService{Repo: store, Config: cfg.Retention, Logger: logger}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ingestOnly := strings.EqualFold(*mode, "ingest")
	serveOnly := strings.EqualFold(*mode, "serve")

	var bot *telego.Bot
	if cfg.Telegram.BotToken != "" {
		bot, err = telego.NewBot(cfg.Telegram.BotToken, telego.WithDefaultLogger(false, true))
		if err != nil {
			logger.Fatal("telegram bot init failed", zap.Error(err))
		}
	} else {
		logger.Warn("telegram bot token missing, running without telegram transport")
	}

	if bot != nil {
		watched := make(map[int64]bool, len(cfg.Telegram.ChatIDs))
		for _, id := range cfg.Telegram.ChatIDs {
			watched[id] = true
		}
		router := &telegram.Router{
			Bot:     bot,
			Feed:    buffer,
			Watched: watched,
			Logger:  logger,
		}
		if !ingestOnly {
			router.Queries = &telegram.QueryBot{Bot: bot, Stats: statsSvc, Logger: logger}
		}
		go func() {
			if err := router.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn("telegram router stopped", zap.Error(err))
			}
		}()
	}

	if cfg.Cron.Enabled && !serveOnly {
		cronRunner := cronrunner.New(logger, ctx)
		_, err = cronRunner.Add(cfg.Cron.Ingest, func(ctx context.Context) {
			ingestSvc.RunAll(ctx)
		})
		if err != nil {
			logger.Warn("cron register ingest failed", zap.Error(err))
		}
		_, err = cronRunner.Add(cfg.Cron.Retention, func(ctx context.Context) {
			if err := retentionSvc.RunOnce(ctx); err != nil {
				logger.Warn("retention run failed", zap.Error(err))
			}
		})
		if err != nil {
			logger.Warn("cron register retention failed", zap.Error(err))
		}
		cronRunner.Start()
		defer cronRunner.Stop()
	}

	if ingestOnly {
		ingestSvc.RunAll(ctx)
		<-ctx.Done()
		logger.Info("shutdown requested")
		return
	}

	if strings.EqualFold(cfg.App.Env, "dev") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(corsMiddleware())

	healthHandler := &handler.HealthHandler{DB: dbConn.Gorm}
	healthHandler.Register(engine)
	priceHandler := &handler.PriceHandler{Stats: statsSvc, Logger: logger}
	priceHandler.Register(engine)
	ingestHandler := &handler.IngestHandler{Ingest: ingestSvc, Repo: store, Logger: logger}
	ingestHandler.Register(engine)

	srv := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: engine,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server starting", zap.String("addr", cfg.Server.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown requested")
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}
