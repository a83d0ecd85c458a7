package engine

import (
	"context"

	"github.com/hilthontt/murmur/internal/infrastructure/logging"
)

// Sweep physically removes rooms that stayed empty past the grace period and
// stale kick records. It returns the IDs of deleted rooms.
func (e *Engine) Sweep(ctx context.Context) []string {
	ctx, finish := e.start(ctx, "sweep")
	defer finish(nil)

	e.mu.Lock()
	deleted := e.store.Sweep(e.now())
	e.observeStore()
	e.mu.Unlock()

	if len(deleted) > 0 {
		e.logger.Info(logging.Room, logging.Janitor, "expired rooms deleted", map[logging.ExtraKey]any{
			logging.RoomID: deleted,
		})
	}
	e.publish(ctx, e.deletedEvents(deleted))

	return deleted
}
