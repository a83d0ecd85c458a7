package engine

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/hilthontt/murmur/internal/domain"
	"github.com/hilthontt/murmur/internal/infrastructure/identity"
	"github.com/hilthontt/murmur/internal/infrastructure/ratelimiter"
	"github.com/hilthontt/murmur/internal/infrastructure/repository"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []*domain.RoomAuditLog
}

func (p *recordingPublisher) Publish(_ context.Context, ev *domain.RoomAuditLog) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) types() []domain.RoomEventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.RoomEventType, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.EventType)
	}
	return out
}

type harness struct {
	engine    *Engine
	clock     *fakeClock
	publisher *recordingPublisher
}

type harnessOption func(*Config, *Options)

func withMessageLimit(limit int, clock *fakeClock) harnessOption {
	return func(_ *Config, o *Options) {
		o.Limiter = ratelimiter.NewFixedWindowRateLimiter(limit, time.Minute, ratelimiter.WithClock(clock.Now))
	}
}

// withRelaxedLimit lifts the message limit for tests that are not about throttling.
func withRelaxedLimit() harnessOption {
	return func(_ *Config, o *Options) {
		o.Limiter = ratelimiter.NewFixedWindowRateLimiter(1_000_000, time.Hour)
	}
}

func withTranslator(tr Translator, timeout time.Duration) harnessOption {
	return func(c *Config, o *Options) {
		o.Translator = tr
		c.TranslationTimeout = timeout
	}
}

func withRoomIDs(gen domain.IDGenerator) harnessOption {
	return func(_ *Config, o *Options) {
		o.RoomIDs = gen
	}
}

func sequentialIDs(prefix string) domain.IDGenerator {
	var (
		mu sync.Mutex
		n  int
	)
	return func() (string, error) {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("%s-%d", prefix, n), nil
	}
}

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()

	clock := &fakeClock{t: time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)}
	publisher := &recordingPublisher{}

	cfg := Config{Retention: domain.DefaultRetention()}
	o := Options{
		Now:       clock.Now,
		RoomIDs:   sequentialIDs("room"),
		ItemIDs:   sequentialIDs("item"),
		Hasher:    domain.NewBcryptHasher(bcrypt.MinCost),
		Names:     identity.NewAllocator(),
		Publisher: publisher,
	}
	for _, opt := range opts {
		opt(&cfg, &o)
	}
	if o.Limiter == nil {
		withMessageLimit(ratelimiter.DefaultWindowLimit, clock)(&cfg, &o)
	}
	if closer, ok := o.Limiter.(*ratelimiter.FixedWindowRateLimiter); ok {
		t.Cleanup(closer.Close)
	}

	store := repository.NewRoomStore(5*time.Minute, 60*time.Second)
	e, err := New(cfg, store, o)
	require.NoError(t, err)

	return &harness{engine: e, clock: clock, publisher: publisher}
}

func (h *harness) createRoom(t *testing.T, input CreateRoomInput) domain.RoomSummary {
	t.Helper()
	if input.ConnectionID == "" {
		input.ConnectionID = "owner"
	}
	room, _, err := h.engine.CreateRoom(context.Background(), input)
	require.NoError(t, err)
	return room
}

func (h *harness) join(t *testing.T, roomID, connID string) *JoinResult {
	t.Helper()
	res, _, err := h.engine.Join(context.Background(), JoinInput{RoomID: roomID, ConnectionID: connID})
	require.NoError(t, err)
	return res
}

func (h *harness) memberIDs(t *testing.T, roomID string) []string {
	t.Helper()
	state, err := h.engine.GetRoomState(context.Background(), roomID, "")
	require.NoError(t, err)
	ids := make([]string, 0, len(state.Users))
	for _, u := range state.Users {
		ids = append(ids, u.ConnectionID)
	}
	return ids
}

func findNote(notes []Notification, event string) (Notification, bool) {
	for _, n := range notes {
		if n.Event == event {
			return n, true
		}
	}
	return Notification{}, false
}
