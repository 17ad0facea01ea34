package services

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/vidsum/backend/repository/bolt"
)

// Sweeper periodically removes cooldown entries whose window has long
// elapsed. Reads already purge expired entries lazily; the sweep only keeps
// the store from accumulating keys nobody reads again. The pending-email
// marker is never touched.
type Sweeper struct {
	store  *bolt.Store
	window time.Duration
	cron   *cron.Cron
	logger *zap.Logger
}

// NewSweeper schedules a sweep with the given cron spec (e.g. "@every 5m").
func NewSweeper(store *bolt.Store, window time.Duration, schedule string, logger *zap.Logger) *Sweeper {
	if schedule == "" {
		schedule = "@every 5m"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Sweeper{
		store:  store,
		window: window,
		cron:   cron.New(),
		logger: logger,
	}
	_, _ = s.cron.AddFunc(schedule, s.sweep)
	return s
}

// Start launches the cron scheduler.
func (s *Sweeper) Start() {
	if s == nil || s.cron == nil {
		return
	}
	s.cron.Start()
}

// Stop halts the scheduler and waits for a running sweep to finish.
func (s *Sweeper) Stop(ctx context.Context) {
	if s == nil || s.cron == nil {
		return
	}
	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
	}
}

func (s *Sweeper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	keys, err := s.store.Keys(ctx)
	if err != nil {
		s.logger.Warn("cooldown sweep failed", zap.Error(err))
		return
	}

	removed := 0
	for _, key := range keys {
		if !strings.HasSuffix(key, "-cooldown") {
			continue
		}
		raw, ok, err := s.store.Get(ctx, key)
		if err != nil || !ok {
			continue
		}
		millis, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || time.Since(time.UnixMilli(millis)) >= s.window {
			if err := s.store.Delete(ctx, key); err == nil {
				removed++
			}
		}
	}
	if removed > 0 {
		s.logger.Debug("swept stale cooldown entries", zap.Int("removed", removed))
	}
}
