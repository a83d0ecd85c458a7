package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/hilthontt/murmur/internal/infrastructure/logging"
)

const DefaultJanitorInterval = 30 * time.Second

// Sweeper removes expired state and reports the deleted room IDs.
type Sweeper interface {
	Sweep(ctx context.Context) []string
}

// RoomJanitor periodically reclaims rooms whose empty grace period has run out.
// Reads already hide such rooms; the janitor frees their memory.
type RoomJanitor struct {
	sweeper  Sweeper
	logger   logging.Logger
	interval time.Duration
	stopChan chan struct{}
	stopOnce sync.Once
}

func NewRoomJanitor(sweeper Sweeper, logger logging.Logger, interval time.Duration) *RoomJanitor {
	if interval <= 0 {
		interval = DefaultJanitorInterval
	}
	return &RoomJanitor{
		sweeper:  sweeper,
		logger:   logger,
		interval: interval,
		stopChan: make(chan struct{}),
	}
}

// Start blocks until ctx is cancelled or Stop is called.
func (j *RoomJanitor) Start(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.logger.Info(logging.Room, logging.Janitor, "room janitor started", map[logging.ExtraKey]any{
		"interval": j.interval.String(),
	})

	for {
		select {
		case <-ticker.C:
			j.runSweep(ctx)
		case <-j.stopChan:
			j.logger.Info(logging.Room, logging.Janitor, "room janitor stopped", nil)
			return
		case <-ctx.Done():
			j.logger.Info(logging.Room, logging.Janitor, "room janitor context cancelled", nil)
			return
		}
	}
}

func (j *RoomJanitor) Stop() {
	j.stopOnce.Do(func() {
		close(j.stopChan)
	})
}

func (j *RoomJanitor) runSweep(ctx context.Context) {
	startTime := time.Now()
	deleted := j.sweeper.Sweep(ctx)

	j.logger.Debug(logging.Room, logging.Janitor, "room sweep completed", map[logging.ExtraKey]any{
		logging.Latency: time.Since(startTime).String(),
		"deleted":       len(deleted),
	})
}
