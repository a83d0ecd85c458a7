package api

import (
	"context"
	"errors"
	"expvar"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/hilthontt/murmur/internal/infrastructure/configs"
	"github.com/hilthontt/murmur/internal/infrastructure/logging"
	"github.com/hilthontt/murmur/internal/infrastructure/ratelimiter"
	auditHandler "github.com/hilthontt/murmur/internal/presentation/handler/audit"
	healthHandler "github.com/hilthontt/murmur/internal/presentation/handler/health"
	roomHandler "github.com/hilthontt/murmur/internal/presentation/handler/rooms"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// RequestMetrics records completed HTTP requests by route pattern.
type RequestMetrics interface {
	Request(method, route string, status int, d time.Duration)
	Handler() http.Handler
}

// Handlers groups the HTTP surfaces mounted by the application. Audit is
// optional and only mounted when the audit store is configured.
type Handlers struct {
	Rooms  *roomHandler.Handler
	Health *healthHandler.Handler
	Audit  *auditHandler.Handler
	Socket http.Handler
}

type Application struct {
	config      configs.Config
	handlers    Handlers
	logger      logging.Logger
	ratelimiter ratelimiter.Limiter
	metrics     RequestMetrics
}

func NewApplication(
	config configs.Config,
	handlers Handlers,
	logger logging.Logger,
	ratelimiter ratelimiter.Limiter,
	metrics RequestMetrics,
) *Application {
	return &Application{
		config:      config,
		handlers:    handlers,
		logger:      logger,
		ratelimiter: ratelimiter,
		metrics:     metrics,
	}
}

func (app *Application) Mount() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(app.loggerMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(app.prometheusMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   app.config.HTTP.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   app.config.HTTP.AllowedHeaders,
		AllowCredentials: false,
		MaxAge:           86400,
	}))

	// websocket connections outlive any request timeout
	r.Get("/ws", app.handlers.Socket.ServeHTTP)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))

		r.Handle("/metrics", app.metrics.Handler())
		r.Handle("/debug/vars", expvar.Handler())

		r.Route("/api", func(r chi.Router) {
			r.Get("/health", app.handlers.Health.GetHealth)
			r.Get("/healthz", app.handlers.Health.GetHealth)
			r.Get("/ready", app.handlers.Health.GetHealth)
			r.Get("/live", app.handlers.Health.GetHealth)

			r.Group(func(r chi.Router) {
				r.Use(app.rateLimiterMiddleware)

				r.Route("/rooms", func(r chi.Router) {
					r.Get("/", app.handlers.Rooms.ListRoomsHandler)
					r.Get("/tags", app.handlers.Rooms.ListTagsHandler)
					r.Get("/quick-match", app.handlers.Rooms.QuickMatchHandler)
					r.Get("/{roomId}", app.handlers.Rooms.GetRoomHandler)
					r.Get("/{roomId}/messages", app.handlers.Rooms.GetMessagesHandler)

					if app.handlers.Audit != nil {
						r.Get("/{roomId}/audit", app.handlers.Audit.GetRoomEventsHandler)
					}
				})

				if app.handlers.Audit != nil {
					r.Get("/audit/{eventType}", app.handlers.Audit.GetEventsByTypeHandler)
				}
			})
		})
	})

	return otelhttp.NewHandler(r, "murmur-http",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)
}

// Run serves mux until ctx is cancelled, then drains in-flight requests within
// the configured shutdown timeout.
func (app *Application) Run(ctx context.Context, mux http.Handler) error {
	srv := &http.Server{
		Addr:         app.config.HTTP.Addr(),
		Handler:      mux,
		WriteTimeout: app.config.HTTP.WriteTimeout,
		ReadTimeout:  app.config.HTTP.ReadTimeout,
		IdleTimeout:  time.Minute,
	}

	shutdown := make(chan error, 1)

	go func() {
		<-ctx.Done()

		app.handlers.Health.SetHealthy(false)
		app.logger.Info(logging.General, logging.Shutdown, "shutting down http server", map[logging.ExtraKey]any{
			"addr": srv.Addr,
		})

		timeout := app.config.HTTP.ShutdownTimeout
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		shutdown <- srv.Shutdown(shutdownCtx)
	}()

	app.logger.Info(logging.General, logging.Startup, "server has started", map[logging.ExtraKey]any{
		"addr": srv.Addr,
	})

	err := srv.ListenAndServe()
	if !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	if err := <-shutdown; err != nil {
		return err
	}

	app.logger.Info(logging.General, logging.Shutdown, "server has stopped", map[logging.ExtraKey]any{
		"addr": srv.Addr,
	})

	return nil
}
