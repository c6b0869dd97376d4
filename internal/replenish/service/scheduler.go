package service

import (
	"context"
	"errors"
	"time"

	"github.com/bsm/redislock"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/compraflow/compraflow-backend/pkg/logger"
)

const (
	sweepLockKey = "replenish:sweep"

	// The lock is held for a short TTL and refreshed while the sweep runs,
	// so a sweep that outlives the interval still excludes other replicas
	// and a crashed holder frees the lock quickly.
	sweepLockTTL = time.Minute
)

// Scheduler fires the all-organizations sweep on a fixed interval. When a
// Redis client is supplied, replicas coordinate through an advisory lock so
// only one of them runs each sweep; without Redis the scheduler assumes a
// single replica.
type Scheduler struct {
	engine   *Engine
	runLog   *RunLog
	locker   *redislock.Client
	interval time.Duration
	logger   *logger.Logger
	stop     chan struct{}
	done     chan struct{}
}

// NewScheduler creates a new sweep scheduler. redisClient may be nil.
func NewScheduler(engine *Engine, runLog *RunLog, redisClient *redis.Client, interval time.Duration, log *logger.Logger) *Scheduler {
	var locker *redislock.Client
	if redisClient != nil {
		locker = redislock.New(redisClient)
	}

	return &Scheduler{
		engine:   engine,
		runLog:   runLog,
		locker:   locker,
		interval: interval,
		logger:   log.WithComponent("replenish_scheduler"),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the scheduler loop. The first sweep fires after one full
// interval, not immediately.
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info().
		Dur("interval", s.interval).
		Bool("locking", s.locker != nil).
		Msg("starting replenishment scheduler")

	go s.loop(ctx)
}

// Stop shuts the scheduler down and waits for an in-flight sweep to finish.
func (s *Scheduler) Stop() {
	close(s.stop)
	<-s.done
	s.logger.Info().Msg("replenishment scheduler stopped")
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.runSweep(ctx)
		case <-s.stop:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (s *Scheduler) runSweep(ctx context.Context) {
	jobID := uuid.New().String()
	log := s.logger.WithJobID(jobID)

	if s.locker != nil {
		lock, err := s.locker.Obtain(ctx, sweepLockKey, sweepLockTTL, nil)
		if errors.Is(err, redislock.ErrNotObtained) {
			log.Debug().Msg("another replica holds the sweep lock")
			return
		}
		if err != nil {
			log.Error().Err(err).Msg("failed to obtain sweep lock")
			return
		}

		refreshCtx, stopRefresh := context.WithCancel(ctx)
		go keepLockAlive(refreshCtx, sweepLockTTL/2, func(ctx context.Context) error {
			if err := lock.Refresh(ctx, sweepLockTTL, nil); err != nil {
				log.Warn().Err(err).Msg("failed to refresh sweep lock")
				return err
			}
			return nil
		})

		defer func() {
			stopRefresh()
			if err := lock.Release(ctx); err != nil {
				log.Warn().Err(err).Msg("failed to release sweep lock")
			}
		}()
	}

	results, err := s.engine.RunAll(ctx, jobID)
	if err != nil {
		log.Error().Err(err).Msg("sweep failed to enumerate organizations")
		return
	}

	for _, result := range results {
		s.runLog.Record(result)
	}

	log.Info().Int("organizations", len(results)).Msg("sweep finished")
}

// keepLockAlive calls refresh on a fixed cadence until ctx is cancelled or a
// refresh fails. After a failed refresh the lock is no longer held; the sweep
// in flight still runs to completion.
func keepLockAlive(ctx context.Context, every time.Duration, refresh func(context.Context) error) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := refresh(ctx); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}
