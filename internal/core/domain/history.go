package domain

import "time"

// HistoryEntry is an immutable audit record of a single status
// transition. OldStatus is nil for the creation entry.
type HistoryEntry struct {
	TaskID    string      `json:"task_id"`
	OldStatus *TaskStatus `json:"old_status"`
	NewStatus TaskStatus  `json:"new_status"`
	ChangedBy string      `json:"changed_by"`
	Timestamp time.Time   `json:"timestamp"`
	Comment   string      `json:"comment,omitempty"`
}
