package workers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/comitanigiacomo/kanso-care-engine/internal/core/domain"
	"github.com/comitanigiacomo/kanso-care-engine/internal/core/services"
)

// ErrRunClaimed means another process already materialized that day.
var ErrRunClaimed = errors.New("materialization already claimed for this day")

const (
	DefaultSchedule = "0 5 0 * * *"
	defaultTimeout  = 5 * time.Minute
	defaultLockTTL  = 30 * time.Minute
	unlockTimeout   = 5 * time.Second
	queueSize       = 16
)

type Materializer interface {
	MaterializeDueOccurrences(ctx context.Context, day domain.Date) (*services.MaterializationResult, error)
}

// Locker lets several replicas share one schedule. Satisfied by *cache.Locker.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key string) error
}

type MaterializeJob struct {
	Day domain.Date
}

type MaterializeWorkerConfig struct {
	Schedule string
	Timeout  time.Duration
	LockTTL  time.Duration
}

// MaterializeWorker appends the day's occurrences to the ledger. Cron ticks and manual
// triggers both go through one queue, so runs never overlap inside a process.
type MaterializeWorker struct {
	materializer Materializer
	notifier     domain.Notifier
	clock        domain.Clock
	locker       Locker
	logger       *zap.Logger

	cron     *cron.Cron
	schedule string
	timeout  time.Duration
	lockTTL  time.Duration
	jobs     chan MaterializeJob
	done     chan struct{}
}

func NewMaterializeWorker(m Materializer, notifier domain.Notifier, clock domain.Clock, locker Locker, logger *zap.Logger, cfg MaterializeWorkerConfig) *MaterializeWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Schedule == "" {
		cfg.Schedule = DefaultSchedule
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = defaultLockTTL
	}

	cl := cronLogger{logger.Sugar()}

	return &MaterializeWorker{
		materializer: m,
		notifier:     notifier,
		clock:        clock,
		locker:       locker,
		logger:       logger,
		cron: cron.New(
			cron.WithLocation(clock.Location()),
			cron.WithSeconds(),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl)),
		),
		schedule: cfg.Schedule,
		timeout:  cfg.Timeout,
		lockTTL:  cfg.LockTTL,
		jobs:     make(chan MaterializeJob, queueSize),
		done:     make(chan struct{}),
	}
}

// Start registers the schedule and runs the queue until ctx is cancelled.
func (w *MaterializeWorker) Start(ctx context.Context) error {
	if _, err := w.cron.AddFunc(w.schedule, func() {
		w.Enqueue(w.clock.Today())
	}); err != nil {
		return fmt.Errorf("materialize worker: invalid schedule %q: %w", w.schedule, err)
	}

	w.cron.Start()

	go func() {
		defer close(w.done)
		w.logger.Info("materialize_worker_started",
			zap.String("schedule", w.schedule),
			zap.String("location", w.clock.Location().String()),
		)
		for {
			select {
			case job := <-w.jobs:
				w.process(ctx, job)
			case <-ctx.Done():
				<-w.cron.Stop().Done()
				w.logger.Info("materialize_worker_stopped")
				return
			}
		}
	}()

	return nil
}

// Done is closed once the worker has shut down.
func (w *MaterializeWorker) Done() <-chan struct{} {
	return w.done
}

// Enqueue asks for a run for day without waiting for it. Reports false when the queue is full.
func (w *MaterializeWorker) Enqueue(day domain.Date) bool {
	select {
	case w.jobs <- MaterializeJob{Day: day}:
		return true
	default:
		w.logger.Warn("materialize_queue_full", zap.String("day", day.String()))
		return false
	}
}

// RunOnce materializes day synchronously and then notifies about the new occurrences.
// A failing notifier is logged; the ledger write already happened. A failed run gives
// the day lock back so a retry does not wait for the TTL.
func (w *MaterializeWorker) RunOnce(ctx context.Context, day domain.Date) (*services.MaterializationResult, error) {
	key := "materialize:" + day.String()
	held := false
	if w.locker != nil {
		claimed, err := w.locker.TryLock(ctx, key, w.lockTTL)
		switch {
		case err != nil:
			w.logger.Warn("materialize_lock_unavailable", zap.Error(err))
		case !claimed:
			return nil, ErrRunClaimed
		default:
			held = true
		}
	}

	runCtx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	result, err := w.materializer.MaterializeDueOccurrences(runCtx, day)
	if err != nil {
		if held {
			w.release(key)
		}
		return result, err
	}

	if w.notifier != nil && len(result.Created) > 0 {
		if err := w.notifier.NotifyDue(runCtx, result.Created); err != nil {
			w.logger.Warn("notify_due_failed", zap.String("day", day.String()), zap.Error(err))
		}
	}

	return result, nil
}

// release runs on its own context because the run context may already be done.
func (w *MaterializeWorker) release(key string) {
	ctx, cancel := context.WithTimeout(context.Background(), unlockTimeout)
	defer cancel()
	if err := w.locker.Unlock(ctx, key); err != nil {
		w.logger.Warn("materialize_unlock_failed", zap.String("key", key), zap.Error(err))
	}
}

func (w *MaterializeWorker) process(ctx context.Context, job MaterializeJob) {
	_, err := w.RunOnce(ctx, job.Day)
	switch {
	case errors.Is(err, ErrRunClaimed):
		w.logger.Info("materialize_skipped_claimed", zap.String("day", job.Day.String()))
	case err != nil:
		w.logger.Error("materialize_failed", zap.String("day", job.Day.String()), zap.Error(err))
	}
}

type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
