package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/microfunc/microfunc/internal/core/domain"
	"github.com/microfunc/microfunc/internal/core/port"
)

// memRepo is an in-memory TaskRepository honoring the store's documented
// semantics: paired status/history writes, no-op on equal status, tag
// superset filtering.
type memRepo struct {
	mu      sync.Mutex
	tasks   map[string]*domain.Task
	history map[string][]*domain.HistoryEntry

	// failScheduled makes the next ListScheduled call fail once.
	failScheduled bool
}

func newMemRepo() *memRepo {
	return &memRepo{
		tasks:   make(map[string]*domain.Task),
		history: make(map[string][]*domain.HistoryEntry),
	}
}

func (r *memRepo) Upsert(_ context.Context, task *domain.Task) (port.UpsertOutcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	existing, ok := r.tasks[task.ID]
	if !ok {
		task.CreatedAt = now
		task.UpdatedAt = now
		clone := *task
		r.tasks[task.ID] = &clone
		r.appendHistory(task.ID, nil, task.Status, "system", "Task created", now)
		return port.UpsertOutcome{Created: true, Changed: true}, nil
	}

	old := existing.Status
	task.CreatedAt = existing.CreatedAt
	task.UpdatedAt = now
	clone := *task
	r.tasks[task.ID] = &clone

	outcome := port.UpsertOutcome{OldStatus: &old, Changed: old != task.Status}
	if outcome.Changed {
		r.appendHistory(task.ID, &old, task.Status, "system", "Status updated during sync", now)
	}
	return outcome, nil
}

func (r *memRepo) GetByID(_ context.Context, id string) (*domain.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	task, ok := r.tasks[id]
	if !ok {
		return nil, domain.ErrTaskNotFound
	}

	clone := *task
	entries := r.history[id]
	clone.History = make([]*domain.HistoryEntry, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		e := *entries[i]
		clone.History = append(clone.History, &e)
	}
	return &clone, nil
}

func (r *memRepo) List(_ context.Context, filter domain.TaskFilter) ([]*domain.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*domain.Task
	for _, task := range r.tasks {
		if filter.Status != "" && task.Status != filter.Status {
			continue
		}
		if filter.Type != "" && task.Type != filter.Type {
			continue
		}
		if filter.Assignee != "" && task.Assignee != filter.Assignee {
			continue
		}
		if filter.Priority != "" && task.Priority != filter.Priority {
			continue
		}
		if !hasAllTags(task.Tags, filter.Tags) {
			continue
		}
		clone := *task
		out = append(out, &clone)
	}
	return out, nil
}

func (r *memRepo) SetStatus(_ context.Context, id string, status domain.TaskStatus, changedBy, comment string) (port.StatusChange, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	task, ok := r.tasks[id]
	if !ok {
		return port.StatusChange{}, domain.ErrTaskNotFound
	}

	change := port.StatusChange{OldStatus: task.Status, Title: task.Title, Assignee: task.Assignee}
	if task.Status == status {
		return change, nil
	}

	now := time.Now().UTC()
	old := task.Status
	task.Status = status
	task.UpdatedAt = now
	r.appendHistory(id, &old, status, changedBy, comment, now)
	change.Changed = true
	return change, nil
}

func (r *memRepo) ListScheduled(_ context.Context) ([]*domain.Task, error) {
	r.mu.Lock()
	if r.failScheduled {
		r.failScheduled = false
		r.mu.Unlock()
		return nil, errors.New("storage unavailable")
	}
	r.mu.Unlock()

	tasks, _ := r.List(context.Background(), domain.TaskFilter{
		Status: domain.TaskStatusPending,
		Type:   domain.TaskTypeAutomated,
	})
	var out []*domain.Task
	for _, t := range tasks {
		if t.Schedule != "" {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r *memRepo) historyLen(id string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.history[id])
}

func (r *memRepo) appendHistory(id string, old *domain.TaskStatus, status domain.TaskStatus, changedBy, comment string, ts time.Time) {
	r.history[id] = append(r.history[id], &domain.HistoryEntry{
		TaskID:    id,
		OldStatus: old,
		NewStatus: status,
		ChangedBy: changedBy,
		Timestamp: ts,
		Comment:   comment,
	})
}

func hasAllTags(have, want []string) bool {
	for _, w := range want {
		found := false
		for _, h := range have {
			if h == w {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// recordingNotifier captures emitted events for assertions.
type recordingNotifier struct {
	mu     sync.Mutex
	events []recordedEvent
}

type recordedEvent struct {
	Type    string
	Payload map[string]any
}

func (n *recordingNotifier) Notify(_ context.Context, eventType string, payload map[string]any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, recordedEvent{Type: eventType, Payload: payload})
}

func (n *recordingNotifier) byType(eventType string) []recordedEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []recordedEvent
	for _, e := range n.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}
