// Package domain provides the task lifecycle entities & domain level errors.
package domain

import "errors"

var (
	// ErrTaskNotFound is returned when an operation references an unknown task id.
	ErrTaskNotFound = errors.New("task not found")

	// ErrInvalidStatus is returned when a caller supplies a status outside the
	// five recognized values.
	ErrInvalidStatus = errors.New("invalid task status")

	// ErrInvalidPriority is returned for a priority outside the four recognized values.
	ErrInvalidPriority = errors.New("invalid task priority")

	// ErrWrongTaskType is returned when a manual task is submitted for execution.
	ErrWrongTaskType = errors.New("task is not an automated task")

	// ErrScriptNotFound is returned when an automated task's script path does
	// not exist on disk. Execution resolves it to a failed status, it never
	// reaches the scheduler.
	ErrScriptNotFound = errors.New("task script not found")
)
