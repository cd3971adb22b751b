// Package port provides behavior interfaces that connect service & storage & notifiers.
package port

import (
	"context"
	"time"

	"github.com/microfunc/microfunc/internal/core/domain"
)

// UpsertOutcome reports what an upsert did, so the caller can decide
// which notification, if any, to emit.
type UpsertOutcome struct {
	Created   bool
	OldStatus *domain.TaskStatus // stored status before the write; nil when Created
	Changed   bool               // status differs from the stored value; true when Created
}

// StatusChange reports the result of a SetStatus call. Changed is false
// when the new status equals the stored one (no history written).
type StatusChange struct {
	Changed   bool
	OldStatus domain.TaskStatus
	Title     string
	Assignee  string
}

// TaskRepository defines how tasks and their append-only history are
// persisted. Every mutator pairs the row write with its history insert
// in a single transaction and rolls back entirely on failure.
type TaskRepository interface {
	// Upsert inserts the task if its id is absent, else updates mutable
	// fields. A status difference (or creation) appends a history entry
	// in the same transaction.
	Upsert(ctx context.Context, task *domain.Task) (UpsertOutcome, error)

	// GetByID returns the full record plus history ordered newest-first.
	// Returns domain.ErrTaskNotFound for an unknown id.
	GetByID(ctx context.Context, id string) (*domain.Task, error)

	// List returns tasks matching the ANDed filter, history excluded.
	List(ctx context.Context, filter domain.TaskFilter) ([]*domain.Task, error)

	// SetStatus transitions a task's status, appending history unless the
	// status is unchanged. Returns domain.ErrTaskNotFound for an unknown id.
	SetStatus(ctx context.Context, id string, status domain.TaskStatus, changedBy, comment string) (StatusChange, error)

	// ListScheduled returns pending automated tasks with a non-empty schedule.
	ListScheduled(ctx context.Context) ([]*domain.Task, error)
}

// Notifier delivers lifecycle events to external systems. Delivery is
// best-effort: failures are logged by the implementation and never
// propagate to the caller.
type Notifier interface {
	Notify(ctx context.Context, eventType string, payload map[string]any)
}

// FireMarker records that the scheduler triggered a task, so concurrent
// manager instances sharing one database do not double-fire it within a
// scan window.
type FireMarker interface {
	// TryMark returns true if the mark was acquired, false if another
	// instance holds it for the current window.
	TryMark(ctx context.Context, taskID string, window time.Duration) (bool, error)
}
