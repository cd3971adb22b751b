package port

// Monitor receives lifecycle counters (Prometheus in production).
type Monitor interface {
	TaskExecuted(outcome string)
	SchedulerScan(failed bool)
	NotificationSent(event string)
}

// NopMonitor discards all observations.
type NopMonitor struct{}

func (NopMonitor) TaskExecuted(string)     {}
func (NopMonitor) SchedulerScan(bool)      {}
func (NopMonitor) NotificationSent(string) {}
