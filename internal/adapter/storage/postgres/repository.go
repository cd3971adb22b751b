package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	storage "github.com/microfunc/microfunc/config/storage/postgresql"
	"github.com/microfunc/microfunc/internal/core/domain"
	"github.com/microfunc/microfunc/internal/core/port"
)

const taskColumns = `id, title, description, type, status, priority, tags, prerequisites,
	assignee, due_date, executor, schedule, trigger, script, parameters, created_at, updated_at`

type taskRepository struct {
	db  *storage.DB
	log *zap.Logger
}

// NewTaskRepository creates a new postgres repository
func NewTaskRepository(db *storage.DB, log *zap.Logger) port.TaskRepository {
	return &taskRepository{
		db:  db,
		log: log,
	}
}

// Upsert inserts or updates a task. The row write and the history insert
// share one transaction so the current status always matches the latest
// history entry, even when callers race.
func (r *taskRepository) Upsert(ctx context.Context, task *domain.Task) (port.UpsertOutcome, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return port.UpsertOutcome{}, fmt.Errorf("begin upsert tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var current domain.TaskStatus
	err = tx.QueryRow(ctx, `SELECT status FROM tasks WHERE id = $1 FOR UPDATE`, task.ID).Scan(&current)

	now := time.Now().UTC()
	var outcome port.UpsertOutcome

	switch {
	case errors.Is(err, pgx.ErrNoRows):
		task.CreatedAt = now
		task.UpdatedAt = now
		_, err = tx.Exec(ctx, `
			INSERT INTO tasks (`+taskColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		`,
			task.ID, task.Title, task.Description, task.Type, task.Status, task.Priority,
			task.Tags, task.Prerequisites, task.Assignee, task.DueDate, task.Executor,
			task.Schedule, task.Trigger, task.Script, task.Parameters, task.CreatedAt, task.UpdatedAt)
		if err != nil {
			r.log.Error("Failed to insert task", zap.String("task_id", task.ID), zap.Error(err))
			return port.UpsertOutcome{}, fmt.Errorf("insert task %s: %w", task.ID, err)
		}

		if err := insertHistory(ctx, tx, task.ID, nil, task.Status, "system", "Task created", now); err != nil {
			return port.UpsertOutcome{}, err
		}
		outcome = port.UpsertOutcome{Created: true, Changed: true}

	case err != nil:
		return port.UpsertOutcome{}, fmt.Errorf("read task %s: %w", task.ID, err)

	default:
		task.UpdatedAt = now
		_, err = tx.Exec(ctx, `
			UPDATE tasks
			SET title = $1, description = $2, status = $3, priority = $4, tags = $5,
			    prerequisites = $6, assignee = $7, due_date = $8, executor = $9,
			    schedule = $10, trigger = $11, script = $12, parameters = $13, updated_at = $14
			WHERE id = $15
		`,
			task.Title, task.Description, task.Status, task.Priority, task.Tags,
			task.Prerequisites, task.Assignee, task.DueDate, task.Executor,
			task.Schedule, task.Trigger, task.Script, task.Parameters, task.UpdatedAt, task.ID)
		if err != nil {
			r.log.Error("Failed to update task", zap.String("task_id", task.ID), zap.Error(err))
			return port.UpsertOutcome{}, fmt.Errorf("update task %s: %w", task.ID, err)
		}

		old := current
		outcome = port.UpsertOutcome{OldStatus: &old, Changed: current != task.Status}
		if outcome.Changed {
			if err := insertHistory(ctx, tx, task.ID, &old, task.Status, "system", "Status updated during sync", now); err != nil {
				return port.UpsertOutcome{}, err
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return port.UpsertOutcome{}, fmt.Errorf("commit upsert of %s: %w", task.ID, err)
	}
	return outcome, nil
}

// SetStatus transitions a task's status. An unchanged status is a no-op:
// no row update, no history entry.
func (r *taskRepository) SetStatus(ctx context.Context, id string, status domain.TaskStatus, changedBy, comment string) (port.StatusChange, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return port.StatusChange{}, fmt.Errorf("begin status tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var change port.StatusChange
	err = tx.QueryRow(ctx, `SELECT status, title, assignee FROM tasks WHERE id = $1 FOR UPDATE`, id).
		Scan(&change.OldStatus, &change.Title, &change.Assignee)
	if errors.Is(err, pgx.ErrNoRows) {
		return port.StatusChange{}, domain.ErrTaskNotFound
	}
	if err != nil {
		return port.StatusChange{}, fmt.Errorf("read task %s: %w", id, err)
	}

	if change.OldStatus == status {
		return change, nil
	}

	now := time.Now().UTC()
	if _, err := tx.Exec(ctx, `UPDATE tasks SET status = $1, updated_at = $2 WHERE id = $3`, status, now, id); err != nil {
		r.log.Error("Failed to update task status", zap.String("task_id", id), zap.Error(err))
		return port.StatusChange{}, fmt.Errorf("update status of %s: %w", id, err)
	}

	old := change.OldStatus
	if err := insertHistory(ctx, tx, id, &old, status, changedBy, comment, now); err != nil {
		return port.StatusChange{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return port.StatusChange{}, fmt.Errorf("commit status of %s: %w", id, err)
	}
	change.Changed = true
	return change, nil
}

// GetByID returns the full task record plus its history, newest first.
func (r *taskRepository) GetByID(ctx context.Context, id string) (*domain.Task, error) {
	row := r.db.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id)
	task, err := scanTask(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrTaskNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read task %s: %w", id, err)
	}

	rows, err := r.db.Query(ctx, `
		SELECT task_id, old_status, new_status, changed_by, timestamp, comment
		FROM task_history
		WHERE task_id = $1
		ORDER BY id DESC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("read history of %s: %w", id, err)
	}
	defer rows.Close()

	for rows.Next() {
		var e domain.HistoryEntry
		if err := rows.Scan(&e.TaskID, &e.OldStatus, &e.NewStatus, &e.ChangedBy, &e.Timestamp, &e.Comment); err != nil {
			return nil, fmt.Errorf("scan history of %s: %w", id, err)
		}
		task.History = append(task.History, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read history of %s: %w", id, err)
	}
	return task, nil
}

// List returns tasks matching the filter, history excluded.
func (r *taskRepository) List(ctx context.Context, filter domain.TaskFilter) ([]*domain.Task, error) {
	sql, args, err := buildListQuery(r.db.QueryBuilder, filter)
	if err != nil {
		return nil, fmt.Errorf("build list query: %w", err)
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*domain.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, nil
}

// ListScheduled returns pending automated tasks with a non-empty schedule,
// the set the scheduler considers on each scan.
func (r *taskRepository) ListScheduled(ctx context.Context) ([]*domain.Task, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+taskColumns+` FROM tasks
		WHERE type = $1 AND status = $2 AND schedule <> ''
	`, domain.TaskTypeAutomated, domain.TaskStatusPending)
	if err != nil {
		return nil, fmt.Errorf("list scheduled tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*domain.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list scheduled tasks: %w", err)
	}
	return tasks, nil
}

// buildListQuery assembles the filtered SELECT. Kept as a pure function so
// the filter translation is testable without a database.
func buildListQuery(qb *squirrel.StatementBuilderType, filter domain.TaskFilter) (string, []any, error) {
	q := qb.Select(taskColumns).From("tasks")

	if filter.Status != "" {
		q = q.Where(squirrel.Eq{"status": filter.Status})
	}
	if filter.Type != "" {
		q = q.Where(squirrel.Eq{"type": filter.Type})
	}
	if filter.Assignee != "" {
		q = q.Where(squirrel.Eq{"assignee": filter.Assignee})
	}
	if filter.Priority != "" {
		q = q.Where(squirrel.Eq{"priority": filter.Priority})
	}
	if len(filter.Tags) > 0 {
		// Superset match: the task's tags must contain every filter tag.
		q = q.Where("tags @> ?", filter.Tags)
	}

	return q.ToSql()
}

func insertHistory(ctx context.Context, tx pgx.Tx, taskID string, oldStatus *domain.TaskStatus, newStatus domain.TaskStatus, changedBy, comment string, ts time.Time) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO task_history (task_id, old_status, new_status, changed_by, timestamp, comment)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, taskID, oldStatus, newStatus, changedBy, ts, comment)
	if err != nil {
		return fmt.Errorf("insert history of %s: %w", taskID, err)
	}
	return nil
}

func scanTask(row pgx.Row) (*domain.Task, error) {
	var t domain.Task
	err := row.Scan(
		&t.ID, &t.Title, &t.Description, &t.Type, &t.Status, &t.Priority,
		&t.Tags, &t.Prerequisites, &t.Assignee, &t.DueDate, &t.Executor,
		&t.Schedule, &t.Trigger, &t.Script, &t.Parameters, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
