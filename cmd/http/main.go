package main

import (
	"context"
	"errors"
	"expvar"
	"log"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/hilthontt/murmur/internal/application/engine"
	"github.com/hilthontt/murmur/internal/domain"
	"github.com/hilthontt/murmur/internal/infrastructure/configs"
	"github.com/hilthontt/murmur/internal/infrastructure/events"
	"github.com/hilthontt/murmur/internal/infrastructure/identity"
	"github.com/hilthontt/murmur/internal/infrastructure/jobs"
	"github.com/hilthontt/murmur/internal/infrastructure/logging"
	"github.com/hilthontt/murmur/internal/infrastructure/messaging"
	"github.com/hilthontt/murmur/internal/infrastructure/metrics"
	"github.com/hilthontt/murmur/internal/infrastructure/ratelimiter"
	"github.com/hilthontt/murmur/internal/infrastructure/repository"
	"github.com/hilthontt/murmur/internal/infrastructure/tracing"
	"github.com/hilthontt/murmur/internal/infrastructure/translation"
	"github.com/hilthontt/murmur/internal/infrastructure/ws"
	"github.com/hilthontt/murmur/internal/persistence/db"
	auditRepository "github.com/hilthontt/murmur/internal/persistence/repository"
	"github.com/hilthontt/murmur/internal/presentation/api"
	"github.com/hilthontt/murmur/internal/presentation/handler/audit"
	"github.com/hilthontt/murmur/internal/presentation/handler/health"
	"github.com/hilthontt/murmur/internal/presentation/handler/rooms"
	"golang.org/x/sync/errgroup"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	configPath, err := configs.DetermineConfigPath()
	if err != nil && !errors.Is(err, configs.ErrConfigNotFound) {
		log.Fatal(err)
	}
	cfg, err := configs.Load(configPath)
	if err != nil {
		log.Fatal(err)
	}

	logger, err := logging.NewLogger(&logging.LoggerConfig{
		FilePath: cfg.Logger.FilePath,
		Encoding: cfg.Logger.Encoding,
		Level:    cfg.Logger.Level,
		Logger:   cfg.Logger.Logger,
	})
	if err != nil {
		log.Fatal(err)
	}
	if configPath == "" {
		logger.Warn(logging.General, logging.Startup, "no config file found, using defaults", nil)
	}

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal(logging.General, logging.Shutdown, "server exited with error", map[logging.ExtraKey]any{
			logging.ErrorMessage: err.Error(),
		})
	}
}

func run(ctx context.Context, cfg *configs.Config, logger logging.Logger) error {
	shutdownTracer, err := tracing.InitTracer(ctx, tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: cfg.Tracing.ServiceName,
		Environment: cfg.Tracing.Environment,
		Endpoint:    cfg.Tracing.Endpoint,
		SampleRatio: cfg.Tracing.SampleRatio,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownTracer(context.WithoutCancel(ctx)); err != nil {
			logger.Warnf("failed to flush traces: %v", err)
		}
	}()

	recorder := metrics.New()

	opts := engine.Options{
		Hasher:  domain.NewBcryptHasher(cfg.Engine.BcryptCost),
		Names:   identity.NewAllocator(),
		Metrics: recorder,
		Logger:  logger,
		Tracer:  tracing.GetTracer("github.com/hilthontt/murmur/engine"),
	}

	limiter := ratelimiter.NewFixedWindowRateLimiter(cfg.Engine.MessageLimit, cfg.Engine.MessageWindow)
	defer limiter.Close()
	opts.Limiter = limiter

	if cfg.Translation.Enabled {
		client, err := translation.NewClient(translation.Config{
			URL:     cfg.Translation.URL,
			APIKey:  cfg.Translation.APIKey,
			Timeout: cfg.Translation.Timeout,
		})
		if err != nil {
			return err
		}
		opts.Translator = client
	}

	var auditHandler *audit.Handler
	var auditRepo domain.RoomAuditRepository

	if cfg.MongoDB.Enabled {
		mongoCfg := db.NewMongoConfig(cfg.MongoDB)
		client, err := db.NewMongoClient(ctx, mongoCfg, logger)
		if err != nil {
			return err
		}
		defer func() {
			_ = db.DisconnectMongo(context.WithoutCancel(ctx), client, logger)
		}()

		auditRepo = auditRepository.NewRoomAuditLogRepository(db.GetDatabase(client, mongoCfg), cfg.MongoDB.AuditTTL)
		if err := auditRepo.EnsureIndexes(ctx); err != nil {
			return err
		}
		auditHandler = audit.NewHandler(auditRepo)
	}

	var broker *messaging.RabbitMQ
	if cfg.RabbitMQ.Enabled {
		broker, err = messaging.NewRabbitMQ(cfg.RabbitMQ.URI, logger)
		if err != nil {
			return err
		}
		defer broker.Close()

		opts.Publisher = events.NewRoomPublisher(broker)
	}

	e, err := engine.New(engine.Config{
		Retention: domain.Retention{
			Messages:    cfg.Engine.MessageCapacity,
			Transcripts: cfg.Engine.TranscriptCapacity,
		},
		TranslationTimeout: cfg.Translation.Timeout,
	}, repository.NewRoomStore(cfg.Engine.EmptyRoomGrace, cfg.Engine.KickTimeout), opts)
	if err != nil {
		return err
	}

	hub := ws.NewHub(ws.NewDispatcher(e, logger), logger, recorder, ws.HubConfig{
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
	})
	janitor := jobs.NewRoomJanitor(e, logger, cfg.Engine.JanitorInterval)

	bucket := ratelimiter.New(ratelimiter.Options{
		MaxRatePerSecond: cfg.RateLimiter.MaxRatePerSecond,
		MaxBurst:         cfg.RateLimiter.MaxBurst,
		CacheTTL:         cfg.RateLimiter.CacheTTL,
		SourceHeaderKey:  cfg.RateLimiter.SourceHeaderKey,
	})
	defer bucket.Close()

	app := api.NewApplication(*cfg, api.Handlers{
		Rooms:  rooms.NewHandler(e),
		Health: health.NewHandler(hub),
		Audit:  auditHandler,
		Socket: hub,
	}, logger, bucket, recorder)

	expvar.Publish("goroutines", expvar.Func(func() any {
		return runtime.NumGoroutine()
	}))
	expvar.Publish("websocket_connections", expvar.Func(func() any {
		return hub.ClientCount()
	}))

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})
	g.Go(func() error {
		janitor.Start(gctx)
		return nil
	})
	if broker != nil && auditRepo != nil {
		consumer := events.NewRoomAuditConsumer(broker, auditRepo, logger)
		g.Go(func() error {
			return consumer.Listen(gctx)
		})
	}
	g.Go(func() error {
		return app.Run(gctx, app.Mount())
	})

	logger.Info(logging.General, logging.Startup, "murmur started", map[logging.ExtraKey]any{
		"pid":         os.Getpid(),
		"translation": cfg.Translation.Enabled,
		"rabbitmq":    cfg.RabbitMQ.Enabled,
		"mongodb":     cfg.MongoDB.Enabled,
	})

	return g.Wait()
}
