package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/hilthontt/murmur/internal/domain"
	"github.com/hilthontt/murmur/internal/infrastructure/logging"
	"github.com/hilthontt/murmur/internal/infrastructure/repository"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultTranslationTimeout = 3 * time.Second
	maxRoomIDAttempts         = 5
)

// Limiter throttles events per connection.
type Limiter interface {
	Allow(key string) (bool, time.Duration)
	Forget(key string)
}

// NameAllocator issues anonymous display names.
type NameAllocator interface {
	Next() string
}

// Translator is the optional best-effort transcript translation capability.
type Translator interface {
	Translate(ctx context.Context, text string) (*domain.Translation, error)
}

// EventPublisher ships lifecycle audit events off the process.
type EventPublisher interface {
	Publish(ctx context.Context, event *domain.RoomAuditLog) error
}

type Metrics interface {
	Operation(name, code string)
	SetRooms(n int)
	SetSessions(n int)
	ItemStored(kind string)
	RateLimited()
	Translation(d time.Duration, ok bool)
}

type Config struct {
	Retention          domain.Retention
	TranslationTimeout time.Duration
}

// Options carries the collaborators of the engine. Limiter and Names are required;
// everything else falls back to a production or no-op default.
type Options struct {
	Now        func() time.Time
	RoomIDs    domain.IDGenerator
	ItemIDs    domain.IDGenerator
	Hasher     domain.PasswordHasher
	Limiter    Limiter
	Names      NameAllocator
	Translator Translator
	Publisher  EventPublisher
	Metrics    Metrics
	Logger     logging.Logger
	Tracer     trace.Tracer
}

// Engine coordinates rooms, memberships and moderation. Every mutation runs
// under mu; queries take the read lock. Slow work (password hashing,
// translation, event publishing) happens outside the lock.
type Engine struct {
	mu    sync.RWMutex
	store *repository.RoomStore
	cfg   Config

	now        func() time.Time
	roomIDs    domain.IDGenerator
	itemIDs    domain.IDGenerator
	hasher     domain.PasswordHasher
	limiter    Limiter
	names      NameAllocator
	translator Translator
	publisher  EventPublisher
	metrics    Metrics
	logger     logging.Logger
	tracer     trace.Tracer
}

func New(cfg Config, store *repository.RoomStore, opts Options) (*Engine, error) {
	if store == nil {
		return nil, errors.New("engine: room store is required")
	}
	if opts.Limiter == nil {
		return nil, errors.New("engine: limiter is required")
	}

	cfg.Retention = cfg.Retention.OrDefault()
	if cfg.TranslationTimeout <= 0 {
		cfg.TranslationTimeout = DefaultTranslationTimeout
	}

	e := &Engine{
		store:      store,
		cfg:        cfg,
		now:        opts.Now,
		roomIDs:    opts.RoomIDs,
		itemIDs:    opts.ItemIDs,
		hasher:     opts.Hasher,
		limiter:    opts.Limiter,
		names:      opts.Names,
		translator: opts.Translator,
		publisher:  opts.Publisher,
		metrics:    opts.Metrics,
		logger:     opts.Logger,
		tracer:     opts.Tracer,
	}

	if e.now == nil {
		e.now = time.Now
	}
	if e.roomIDs == nil {
		gen, err := domain.NewRoomIDGenerator()
		if err != nil {
			return nil, err
		}
		e.roomIDs = gen
	}
	if e.itemIDs == nil {
		e.itemIDs = domain.NewItemIDGenerator()
	}
	if e.hasher == nil {
		e.hasher = domain.NewBcryptHasher(0)
	}
	if e.names == nil {
		return nil, errors.New("engine: name allocator is required")
	}
	if e.metrics == nil {
		e.metrics = nopMetrics{}
	}
	if e.logger == nil {
		e.logger = logging.NewNop()
	}
	if e.tracer == nil {
		e.tracer = otel.Tracer("github.com/hilthontt/murmur/engine")
	}

	return e, nil
}

// start opens a span for op. The returned finish records the outcome on the
// span and in metrics.
func (e *Engine) start(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	ctx, span := e.tracer.Start(ctx, "engine."+op, trace.WithAttributes(attrs...))
	return ctx, func(err error) {
		code := domain.ErrorCode(err)
		e.metrics.Operation(op, code)
		if err != nil {
			span.SetAttributes(attribute.String("murmur.error_code", code))
			if code == domain.CodeInternal {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
			}
		}
		span.End()
	}
}

// publish ships audit events. It must be called without holding mu.
func (e *Engine) publish(ctx context.Context, events []*domain.RoomAuditLog) {
	if e.publisher == nil {
		return
	}
	for _, ev := range events {
		if err := e.publisher.Publish(ctx, ev); err != nil {
			e.logger.Warn(logging.RabbitMQ, logging.Publish, "failed to publish room event", map[logging.ExtraKey]any{
				logging.RoomID:       ev.RoomID,
				logging.EventType:    ev.EventType,
				logging.ErrorMessage: err.Error(),
			})
		}
	}
}

// observeStore refreshes the gauges. Caller holds mu.
func (e *Engine) observeStore() {
	e.metrics.SetRooms(e.store.Count())
	e.metrics.SetSessions(e.store.SessionCount())
}

type nopMetrics struct{}

func (nopMetrics) Operation(string, string)        {}
func (nopMetrics) SetRooms(int)                    {}
func (nopMetrics) SetSessions(int)                 {}
func (nopMetrics) ItemStored(string)               {}
func (nopMetrics) RateLimited()                    {}
func (nopMetrics) Translation(time.Duration, bool) {}

// precheckedHasher answers Verify for a hash whose result was computed before
// the lock was taken and defers to the real hasher for anything else.
type precheckedHasher struct {
	domain.PasswordHasher
	hash string
	ok   bool
}

func (h precheckedHasher) Verify(hash, plain string) bool {
	if hash == h.hash {
		return h.ok
	}
	return h.PasswordHasher.Verify(hash, plain)
}
