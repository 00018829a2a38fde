package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sifan077/PowerQR/config"
	"github.com/sifan077/PowerQR/internal/app/qrimage"
	apprepository "github.com/sifan077/PowerQR/internal/app/repository"
	appserver "github.com/sifan077/PowerQR/internal/app/server"
	"github.com/sifan077/PowerQR/internal/app/service"
	"github.com/sifan077/PowerQR/internal/http/middleware"
	httpUtil "github.com/sifan077/PowerQR/internal/http/util"
	"github.com/sifan077/PowerQR/internal/infra/logger"
	infraNATS "github.com/sifan077/PowerQR/internal/infra/nats"
	infraPostgres "github.com/sifan077/PowerQR/internal/infra/postgres"
	infraPrometheus "github.com/sifan077/PowerQR/internal/infra/prometheus"
	infraRedis "github.com/sifan077/PowerQR/internal/infra/redis"
	"github.com/sifan077/PowerQR/internal/infra/shopify"
	"go.uber.org/zap"
)

const (
	codeFilterCapacity = 100_000
	codeFilterFPRate   = 0.001
	shutdownTimeout    = 10 * time.Second

	filterRefreshTimeout = 30 * time.Second
)

func main() {
	ctx := context.Background()

	isDev := os.Getenv("APP_ENV") != "production"
	log := logger.MustInit(logger.Config{
		Development: isDev,
		Level:       os.Getenv("LOG_LEVEL"),
		Service:     "powerqr",
	})
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config", zap.Error(err))
	}

	log.Info("Configuration loaded successfully",
		zap.String("app_url", cfg.App.URL),
		zap.String("shopify_api_version", cfg.Shopify.APIVersion),
		zap.String("postgres_host", cfg.Postgres.Host),
		zap.String("postgres_db", cfg.Postgres.Database),
		zap.String("redis_host", cfg.Redis.Host),
		zap.String("nats_host", cfg.NATS.Host),
	)

	gormDB, err := infraPostgres.NewGorm(cfg.Postgres)
	if err != nil {
		log.Fatal("Failed to open GORM connection", zap.Error(err))
	}
	sqlDB, err := gormDB.DB()
	if err != nil {
		log.Fatal("Failed to access underlying SQL DB", zap.Error(err))
	}
	defer sqlDB.Close()

	if err := infraPostgres.AutoMigrate(ctx, gormDB, infraPostgres.Models()...); err != nil {
		log.Fatal("Failed to run database migrations", zap.Error(err))
	}

	pool, err := infraPostgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		log.Fatal("Failed to connect to Postgres", zap.Error(err))
	}
	defer pool.Close()
	log.Info("Connected to Postgres successfully")

	redisClient, err := infraRedis.NewClient(ctx, cfg.Redis)
	if err != nil {
		log.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()
	log.Info("Connected to Redis successfully")

	if cfg.App.IsProduction() {
		promServer := infraPrometheus.NewServer(cfg.Prometheus)
		go func() {
			log.Info("Starting Prometheus metrics server", zap.String("addr", promServer.Addr))
			if err := promServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("Prometheus metrics server stopped unexpectedly", zap.Error(err))
			}
		}()
		defer func() {
			if err := promServer.Close(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Warn("Failed to close Prometheus server", zap.Error(err))
			}
		}()
	} else {
		log.Info("Skipping Prometheus metrics server in development mode")
	}

	qrCodeRepo := apprepository.NewQRCodeRepository(gormDB, pool)
	sessionRepo := apprepository.NewSessionRepository(gormDB)
	scanEventRepo := apprepository.NewScanEventRepository(gormDB)

	images, err := qrimage.NewGenerator(cfg.App.URL, qrimage.DefaultSize)
	if err != nil {
		log.Fatal("Invalid app url for QR images", zap.Error(err))
	}

	filter := service.NewCodeFilter(codeFilterCapacity, codeFilterFPRate)
	filterLog := logger.Component("code-filter")

	// Announcements are lost while disconnected, so catch up from the store.
	natsConn, js, err := infraNATS.Connect(cfg.NATS, logger.Component("nats"), func(*nats.Conn) {
		go func() {
			refreshCtx, cancel := context.WithTimeout(context.Background(), filterRefreshTimeout)
			defer cancel()
			if n, err := filter.Refresh(refreshCtx, qrCodeRepo); err != nil {
				filterLog.Warn("Failed to refresh QR code filter after reconnect", zap.Error(err))
			} else {
				filterLog.Info("QR code filter refreshed", zap.Int("codes", n))
			}
		}()
	})
	if err != nil {
		log.Fatal("Failed to connect to NATS", zap.Error(err))
	}
	defer natsConn.Drain()
	if err := service.EnsureStream(js); err != nil {
		log.Fatal("Failed to prepare scan stream", zap.Error(err))
	}
	log.Info("Connected to NATS successfully")

	sub, err := filter.Subscribe(natsConn, filterLog)
	if err != nil {
		log.Fatal("Failed to subscribe to created codes", zap.Error(err))
	}
	defer func() { _ = sub.Unsubscribe() }()
	seeded, err := filter.Refresh(ctx, qrCodeRepo)
	if err != nil {
		log.Fatal("Failed to seed QR code filter", zap.Error(err))
	}
	log.Info("QR code filter seeded", zap.Int("codes", seeded))

	qrCodes := service.NewQRCodeService(service.QRCodeDeps{
		Logger:    logger.Component("qrcodes"),
		Repo:      qrCodeRepo,
		Images:    images,
		Filter:    filter,
		Announcer: service.NewCodeAnnouncer(natsConn),
	})

	shopifyClient := shopify.NewClient(shopify.Options{
		APIKey:     cfg.Shopify.APIKey,
		APISecret:  cfg.Shopify.APISecret,
		APIVersion: cfg.Shopify.APIVersion,
	})
	verifier := httpUtil.NewSessionTokenVerifier(cfg.Shopify.APIKey, []byte(cfg.Shopify.APISecret))

	scanConsumer := service.NewScanConsumer(js, logger.Component("scan-consumer"), scanEventRepo)
	if err := scanConsumer.Start(); err != nil {
		log.Fatal("Failed to start scan consumer", zap.Error(err))
	}
	defer scanConsumer.Stop()

	pruner := service.NewScanEventPruner(logger.Component("scan-pruner"), scanEventRepo,
		cfg.ScanEvents.Retention, cfg.ScanEvents.PruneInterval)
	pruner.Start()
	defer pruner.Stop()

	server := appserver.New(appserver.Dependencies{
		Logger: log,
		Redis:  redisClient,
		RateLimit: middleware.RateLimitConfig{
			MaxRequests: cfg.RateLimit.MaxRequests,
			Window:      cfg.RateLimit.Window,
		},
		QRCodes:       qrCodes,
		Sessions:      sessionRepo,
		Shopify:       shopifyClient,
		Verifier:      verifier,
		ScanPublisher: service.NewScanPublisher(js),
	})

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit

		log.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Warn("Fiber shutdown failed", zap.Error(err))
		}
	}()

	if err := server.Listen(fmt.Sprintf(":%d", cfg.App.Port)); err != nil {
		log.Error("Fiber server exited", zap.Error(err))
	}
}
