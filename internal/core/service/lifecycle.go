package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/microfunc/microfunc/internal/core/domain"
	"github.com/microfunc/microfunc/internal/core/port"
)

type lifecycleService struct {
	taskRepo port.TaskRepository
	notifier port.Notifier
	monitor  port.Monitor
	notify   bool
	log      *zap.Logger
}

// NewLifecycleService creates the task lifecycle engine. When notify is
// false (task_manager.notify_assignees), lifecycle events are suppressed.
func NewLifecycleService(
	taskRepo port.TaskRepository,
	notifier port.Notifier,
	monitor port.Monitor,
	notify bool,
	log *zap.Logger,
) *lifecycleService {
	return &lifecycleService{
		taskRepo: taskRepo,
		notifier: notifier,
		monitor:  monitor,
		notify:   notify,
		log:      log,
	}
}

// Sync upserts every declared task. Re-running with unchanged definitions
// writes no history and emits no notifications, so a sync on every CLI
// invocation is safe.
func (s *lifecycleService) Sync(ctx context.Context, tasks []*domain.Task) error {
	s.log.Info("Syncing tasks from manifest", zap.Int("count", len(tasks)))

	var errs []error
	for _, task := range tasks {
		outcome, err := s.taskRepo.Upsert(ctx, task)
		if err != nil {
			s.log.Error("Failed to sync task", zap.String("task_id", task.ID), zap.Error(err))
			errs = append(errs, fmt.Errorf("sync %s: %w", task.ID, err))
			continue
		}

		switch {
		case outcome.Created:
			s.notifyCreated(ctx, task)
		case outcome.Changed:
			s.notifyStatusChanged(ctx, task.ID, task.Title, *outcome.OldStatus, task.Status)
		}
	}

	s.log.Info("Task sync finished", zap.Int("count", len(tasks)), zap.Int("failed", len(errs)))
	return errors.Join(errs...)
}

// RequestStatusChange validates the target status at the boundary and
// delegates to the store. Setting the current status again is a no-op.
func (s *lifecycleService) RequestStatusChange(ctx context.Context, id, status, changedBy, comment string) error {
	target, err := domain.ParseStatus(status)
	if err != nil {
		return fmt.Errorf("status %q: %w", status, err)
	}

	change, err := s.taskRepo.SetStatus(ctx, id, target, changedBy, comment)
	if err != nil {
		return err
	}

	if change.Changed {
		s.log.Info("Task status changed",
			zap.String("task_id", id),
			zap.String("old_status", string(change.OldStatus)),
			zap.String("new_status", string(target)),
			zap.String("changed_by", changedBy))
		s.notifyStatusChanged(ctx, id, change.Title, change.OldStatus, target)
	}
	return nil
}

// Get returns one task with its full history.
func (s *lifecycleService) Get(ctx context.Context, id string) (*domain.Task, error) {
	return s.taskRepo.GetByID(ctx, id)
}

// List returns tasks matching the filter, history excluded.
func (s *lifecycleService) List(ctx context.Context, filter domain.TaskFilter) ([]*domain.Task, error) {
	return s.taskRepo.List(ctx, filter)
}

func (s *lifecycleService) notifyCreated(ctx context.Context, task *domain.Task) {
	if !s.notify {
		return
	}
	s.notifier.Notify(ctx, domain.EventTaskCreated, map[string]any{
		"event":     domain.EventTaskCreated,
		"task_id":   task.ID,
		"title":     task.Title,
		"assignee":  task.Assignee,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
	s.monitor.NotificationSent(domain.EventTaskCreated)
}

func (s *lifecycleService) notifyStatusChanged(ctx context.Context, id, title string, oldStatus, newStatus domain.TaskStatus) {
	if !s.notify {
		return
	}
	s.notifier.Notify(ctx, domain.EventTaskStatusChanged, map[string]any{
		"event":      domain.EventTaskStatusChanged,
		"task_id":    id,
		"title":      title,
		"old_status": string(oldStatus),
		"new_status": string(newStatus),
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
	})
	s.monitor.NotificationSent(domain.EventTaskStatusChanged)
}
