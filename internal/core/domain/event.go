package domain

// Lifecycle notification event types, delivered best-effort to every
// configured notifier.
const (
	EventTaskCreated       = "task.created"
	EventTaskStatusChanged = "task.status_changed"
)
