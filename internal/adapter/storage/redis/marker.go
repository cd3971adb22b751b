package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/storage/redis/v3"
	"go.uber.org/zap"

	"github.com/microfunc/microfunc/internal/core/port"
)

type fireMarker struct {
	store *redis.Storage
	log   *zap.Logger
}

// NewFireMarker creates a Redis-backed scheduler fire-marker. Marks expire
// on their own, so a crashed instance never wedges a task.
func NewFireMarker(store *redis.Storage, log *zap.Logger) port.FireMarker {
	return &fireMarker{
		store: store,
		log:   log,
	}
}

// TryMark acquires the fire-mark for one scan window. Best-effort: the
// get/set pair is not atomic, a lost race means one duplicate trigger,
// which the store's status transition already tolerates.
func (m *fireMarker) TryMark(_ context.Context, taskID string, window time.Duration) (bool, error) {
	key := fmt.Sprintf("task:fired:%s", taskID)

	val, err := m.store.Get(key)
	if err != nil {
		return false, fmt.Errorf("read fire-mark for %s: %w", taskID, err)
	}
	if len(val) > 0 {
		m.log.Debug("Task already fired this window", zap.String("task_id", taskID))
		return false, nil
	}

	if err := m.store.Set(key, []byte("1"), window); err != nil {
		return false, fmt.Errorf("set fire-mark for %s: %w", taskID, err)
	}
	return true, nil
}
