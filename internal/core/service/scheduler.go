// Package service implements the task lifecycle engine, the automated
// task executor and the background scheduler over the storage and
// notifier ports.
package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/microfunc/microfunc/internal/core/port"
)

type schedulerService struct {
	taskRepo port.TaskRepository
	executor *executorService
	marker   port.FireMarker
	monitor  port.Monitor
	interval time.Duration
	tick     time.Duration
	backoff  time.Duration
	log      *zap.Logger
}

// NewSchedulerService creates the background scheduler. marker may be nil
// when no Redis is configured; duplicate-trigger suppression is then left
// to the store's transition semantics.
func NewSchedulerService(
	taskRepo port.TaskRepository,
	executor *executorService,
	marker port.FireMarker,
	monitor port.Monitor,
	interval time.Duration,
	log *zap.Logger,
) *schedulerService {
	return &schedulerService{
		taskRepo: taskRepo,
		executor: executor,
		marker:   marker,
		monitor:  monitor,
		interval: interval,
		tick:     time.Second,
		backoff:  time.Minute,
		log:      log,
	}
}

// Start runs the scan loop until ctx is cancelled. The interval is
// checked every tick so cancellation stays responsive. A failing scan
// backs the loop off; it never kills it.
func (s *schedulerService) Start(ctx context.Context) {
	s.log.Info("Starting task scheduler", zap.Duration("interval", s.interval))

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	var lastScan time.Time
	for {
		select {
		case <-ctx.Done():
			s.log.Info("Stopping scheduler loop")
			return
		case <-ticker.C:
			if time.Since(lastScan) < s.interval {
				continue
			}
			lastScan = time.Now()

			if err := s.scan(ctx); err != nil {
				s.log.Error("Scheduler scan failed", zap.Error(err))
				s.monitor.SchedulerScan(true)
				select {
				case <-ctx.Done():
					return
				case <-time.After(s.backoff):
				}
				continue
			}
			s.monitor.SchedulerScan(false)
		}
	}
}

// scan triggers every due automated task. A task counts as due when it is
// pending and declares a schedule; cron expressions are not interpreted.
// One task's execution failure does not stop the rest of the scan.
func (s *schedulerService) scan(ctx context.Context) error {
	tasks, err := s.taskRepo.ListScheduled(ctx)
	if err != nil {
		return err
	}
	if len(tasks) == 0 {
		return nil
	}

	s.log.Info("Scheduler found due tasks", zap.Int("count", len(tasks)))

	for _, task := range tasks {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if s.marker != nil {
			ok, err := s.marker.TryMark(ctx, task.ID, s.interval)
			if err != nil {
				s.log.Warn("Fire-marker unavailable, triggering anyway", zap.String("task_id", task.ID), zap.Error(err))
			} else if !ok {
				continue
			}
		}

		if _, err := s.executor.Execute(ctx, task.ID); err != nil {
			s.log.Error("Failed to trigger task", zap.String("task_id", task.ID), zap.Error(err))
		}
	}
	return nil
}
