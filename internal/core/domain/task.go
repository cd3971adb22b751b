package domain

import (
	"time"
)

type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusBlocked    TaskStatus = "blocked"
	TaskStatusFailed     TaskStatus = "failed"
)

// ParseStatus validates a caller-supplied status string at the boundary.
func ParseStatus(s string) (TaskStatus, error) {
	switch TaskStatus(s) {
	case TaskStatusPending, TaskStatusInProgress, TaskStatusCompleted, TaskStatusBlocked, TaskStatusFailed:
		return TaskStatus(s), nil
	}
	return "", ErrInvalidStatus
}

// IsTerminal reports whether no automatic transition leaves s.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed
}

type TaskPriority string

const (
	TaskPriorityLow      TaskPriority = "low"
	TaskPriorityMedium   TaskPriority = "medium"
	TaskPriorityHigh     TaskPriority = "high"
	TaskPriorityCritical TaskPriority = "critical"
)

func ParsePriority(s string) (TaskPriority, error) {
	switch TaskPriority(s) {
	case TaskPriorityLow, TaskPriorityMedium, TaskPriorityHigh, TaskPriorityCritical:
		return TaskPriority(s), nil
	}
	return "", ErrInvalidPriority
}

type TaskType string

const (
	TaskTypeManual    TaskType = "manual"
	TaskTypeAutomated TaskType = "automated"
)

// Trigger is the declared reason an automated task runs.
type Trigger string

const (
	TriggerOnDeploy  Trigger = "on_deploy"
	TriggerOnCommit  Trigger = "on_commit"
	TriggerScheduled Trigger = "scheduled"
	TriggerManual    Trigger = "manual"
)

// Task is a unit of tracked work, manual (human-assigned) or
// automated (script-executed).
type Task struct {
	ID            string       `json:"id"`
	Title         string       `json:"title"`
	Description   string       `json:"description"`
	Type          TaskType     `json:"type"`
	Status        TaskStatus   `json:"status"`
	Priority      TaskPriority `json:"priority"`
	Tags          []string     `json:"tags"`
	Prerequisites []string     `json:"prerequisites"`

	// Manual tasks only.
	Assignee string `json:"assignee,omitempty"`
	DueDate  string `json:"due_date,omitempty"`

	// Automated tasks only.
	Executor   string         `json:"executor,omitempty"`
	Schedule   string         `json:"schedule,omitempty"`
	Trigger    Trigger        `json:"trigger,omitempty"`
	Script     string         `json:"script,omitempty"`
	Parameters map[string]any `json:"parameters,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// History is populated only by single-task reads, newest first.
	History []*HistoryEntry `json:"history,omitempty"`
}

// TaskFilter narrows List results. Zero-valued fields match everything;
// Tags requires the task's tag set to be a superset of the given set.
type TaskFilter struct {
	Status   TaskStatus
	Type     TaskType
	Assignee string
	Priority TaskPriority
	Tags     []string
}
