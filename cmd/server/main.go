package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	"go.uber.org/zap"

	"newsdigest/config"
	appmodel "newsdigest/internal/app/model"
	apprepository "newsdigest/internal/app/repository"
	appserver "newsdigest/internal/app/server"
	appservice "newsdigest/internal/app/service"
	"newsdigest/internal/infra/gemini"
	"newsdigest/internal/infra/gmail"
	"newsdigest/internal/infra/hackernews"
	"newsdigest/internal/infra/logger"
	"newsdigest/internal/infra/mastodon"
	infraNATS "newsdigest/internal/infra/nats"
	infraPostgres "newsdigest/internal/infra/postgres"
	infraPrometheus "newsdigest/internal/infra/prometheus"
	infraRedis "newsdigest/internal/infra/redis"
)

func main() {
	ctx := context.Background()

	isDev := os.Getenv("APP_ENV") != "production"
	log := logger.MustInit(logger.Config{
		Development: isDev,
		Level:       os.Getenv("LOG_LEVEL"),
	})
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config", zap.Error(err))
	}

	log.Info("Configuration loaded successfully",
		zap.String("postgres_user", cfg.Postgres.User),
		zap.String("postgres_host", cfg.Postgres.Host),
		zap.Int("postgres_port", cfg.Postgres.Port),
		zap.String("postgres_db", cfg.Postgres.Database),
		zap.String("redis_host", cfg.Redis.Host),
		zap.Int("redis_port", cfg.Redis.Port),
		zap.String("nats_host", cfg.NATS.Host),
		zap.Int("nats_port", cfg.NATS.Port),
		zap.String("mastodon_instance", cfg.Mastodon.InstanceURL),
		zap.String("mastodon_account", cfg.Mastodon.Account),
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

	if err := infraPostgres.AutoMigrate(ctx, gormDB,
		&appmodel.LinkRecord{},
		&appmodel.SourceCursor{},
		&appmodel.IngestEvent{},
	); err != nil {
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

	natsConn, js, err := infraNATS.Connect(cfg.NATS)
	if err != nil {
		log.Fatal("Failed to connect to NATS", zap.Error(err))
	}
	defer natsConn.Drain()
	log.Info("Connected to NATS successfully", zap.Bool("jetstream_ready", js != nil))

	if !isDev {
		promServer := infraPrometheus.NewServer(cfg.Prometheus)
		go func() {
			log.Info("Starting Prometheus metrics server",
				zap.Int("port", cfg.Prometheus.Port))
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

	linkRepo := apprepository.NewLinkRepository(gormDB, pool)
	cursorRepo := apprepository.NewCursorRepository(gormDB)
	eventRepo := apprepository.NewIngestEventRepository(gormDB)

	dedup := appservice.NewDedupIndex(linkRepo, redisClient, log)
	if err := dedup.Warm(ctx); err != nil {
		log.Warn("Failed to warm dedup index", zap.Error(err))
	}

	publisher := appservice.NewIngestPublisher(js)
	consumer := appservice.NewIngestConsumer(js, log, eventRepo)
	if err := consumer.Start(); err != nil {
		log.Fatal("Failed to start ingest consumer", zap.Error(err))
	}

	mastodonClient := mastodon.NewClient(cfg.Mastodon)
	gmailClient := gmail.NewClient(cfg.Alerts)
	geminiClient := gemini.NewClient(cfg.Gemini)
	hnClient := hackernews.NewClient(cfg.HackerNews)

	connectors := []*appservice.Connector{
		appservice.NewConnector(appservice.NewMastodonSource(mastodonClient), dedup, cursorRepo, publisher, log),
		appservice.NewConnector(appservice.NewAlertSource(gmailClient, cfg.Alerts), dedup, cursorRepo, publisher, log),
	}
	enricher := appservice.NewEnricher(linkRepo, geminiClient, hnClient, cfg.HackerNews.Workers, log)
	digest := appservice.NewDigest(linkRepo, gmailClient, cfg.Digest, log)
	pipeline := appservice.NewPipeline(connectors, enricher, digest, log)

	server := appserver.New(appserver.Dependencies{
		Logger:    log,
		Postgres:  pool,
		Redis:     redisClient,
		NATS:      natsConn,
		JetStream: js,
		Links:     linkRepo,
		Pipeline:  pipeline,
	})

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	if err := server.Listen(addr); err != nil {
		log.Fatal("Fiber server exited", zap.Error(err))
	}
}
