package port

import (
	"context"

	"github.com/microfunc/microfunc/internal/core/domain"
)

// LifecycleManager is the task lifecycle engine consumed by the CLI and
// the scheduler.
type LifecycleManager interface {
	// Sync upserts every declared task; idempotent for unchanged definitions.
	Sync(ctx context.Context, tasks []*domain.Task) error
	// RequestStatusChange validates the status and applies the transition.
	RequestStatusChange(ctx context.Context, id, status, changedBy, comment string) error
	Get(ctx context.Context, id string) (*domain.Task, error)
	List(ctx context.Context, filter domain.TaskFilter) ([]*domain.Task, error)
}

// TaskExecutor runs automated tasks to a terminal status.
type TaskExecutor interface {
	// Execute returns true iff the task's script exited with code 0.
	Execute(ctx context.Context, id string) (bool, error)
}

// TaskScheduler is the background scan loop.
type TaskScheduler interface {
	Start(ctx context.Context)
}
