package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

type idleEvictor interface {
	EvictIdle(cutoff time.Time) []string
}

// IdleSweeper periodically evicts positions that have not been refreshed
// within EvictAfter.
type IdleSweeper struct {
	hub        idleEvictor
	interval   time.Duration
	evictAfter time.Duration
	logger     zerolog.Logger
	now        func() time.Time

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewIdleSweeper(hub idleEvictor, interval, evictAfter time.Duration, logger zerolog.Logger) *IdleSweeper {
	return &IdleSweeper{
		hub:        hub,
		interval:   interval,
		evictAfter: evictAfter,
		logger:     logger.With().Str("component", "idle_sweeper").Logger(),
		now:        time.Now,
	}
}

// Start launches the sweep loop. A zero EvictAfter or interval disables it.
func (s *IdleSweeper) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return errors.New("idle sweeper is already running")
	}
	if s.evictAfter <= 0 || s.interval <= 0 {
		s.logger.Info().Msg("idle eviction disabled")
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(ctx)
	}()

	s.logger.Info().Dur("interval", s.interval).Dur("evict_after", s.evictAfter).Msg("idle sweeper started")
	return nil
}

func (s *IdleSweeper) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	s.wg.Wait()
	s.logger.Info().Msg("idle sweeper stopped")
}

// Sweep runs one eviction pass and returns the evicted vehicle ids.
func (s *IdleSweeper) Sweep() []string {
	evicted := s.hub.EvictIdle(s.now().Add(-s.evictAfter))
	if len(evicted) > 0 {
		s.logger.Info().Strs("vehicle_ids", evicted).Msg("evicted idle vehicles")
	}
	return evicted
}

func (s *IdleSweeper) run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.Sweep()
		case <-ctx.Done():
			return
		}
	}
}
