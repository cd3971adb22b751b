package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/microfunc/microfunc/internal/core/domain"
	"github.com/microfunc/microfunc/internal/core/port"
)

// interpreters maps script extensions to the command that runs them.
// Anything else is invoked directly as an executable.
var interpreters = map[string]string{
	".py": "python3",
	".sh": "bash",
	".js": "node",
}

// commentLimit caps how much captured output lands in a history comment.
const commentLimit = 200

type executorService struct {
	taskRepo port.TaskRepository
	engine   *lifecycleService
	monitor  port.Monitor
	timeout  time.Duration
	log      *zap.Logger
}

// NewExecutorService creates the automated task executor. timeout bounds
// a single script run; zero means no limit.
func NewExecutorService(
	taskRepo port.TaskRepository,
	engine *lifecycleService,
	monitor port.Monitor,
	timeout time.Duration,
	log *zap.Logger,
) *executorService {
	return &executorService{
		taskRepo: taskRepo,
		engine:   engine,
		monitor:  monitor,
		timeout:  timeout,
		log:      log,
	}
}

// Execute runs the script behind an automated task and maps the process
// outcome to a terminal status. Blocking: the caller waits for the child
// process. Returns true iff the process exited with code 0.
func (e *executorService) Execute(ctx context.Context, id string) (bool, error) {
	task, err := e.taskRepo.GetByID(ctx, id)
	if err != nil {
		e.log.Warn("Cannot execute task", zap.String("task_id", id), zap.Error(err))
		return false, err
	}
	if task.Type != domain.TaskTypeAutomated {
		e.log.Warn("Refusing to execute manual task", zap.String("task_id", id))
		return false, fmt.Errorf("task %s: %w", id, domain.ErrWrongTaskType)
	}

	if err := e.engine.RequestStatusChange(ctx, id, string(domain.TaskStatusInProgress), "system", "Execution started"); err != nil {
		return false, err
	}

	if task.Script == "" {
		e.fail(ctx, id, "No script configured")
		return false, nil
	}
	if _, err := os.Stat(task.Script); err != nil {
		e.log.Error("Task script not found",
			zap.String("task_id", id),
			zap.String("script", task.Script),
			zap.Error(domain.ErrScriptNotFound))
		e.fail(ctx, id, fmt.Sprintf("Script not found: %s", task.Script))
		return false, nil
	}

	name, args := buildCommand(task.Script, task.Parameters)
	e.log.Info("Executing task script",
		zap.String("task_id", id),
		zap.String("script", task.Script),
		zap.Strings("args", args))

	runCtx := ctx
	if e.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(runCtx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err = cmd.Run()

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		e.log.Info("Task completed", zap.String("task_id", id))
		e.complete(ctx, id, truncate(stdout.String(), commentLimit))
		return true, nil
	case errors.As(err, &exitErr):
		e.log.Error("Task script failed",
			zap.String("task_id", id),
			zap.Int("exit_code", exitErr.ExitCode()),
			zap.String("stderr", truncate(stderr.String(), commentLimit)))
		e.fail(ctx, id, truncate(stderr.String(), commentLimit))
		return false, nil
	default:
		// Spawn failure: interpreter missing, timeout, permission denied.
		e.log.Error("Failed to run task script", zap.String("task_id", id), zap.Error(err))
		e.fail(ctx, id, truncate(err.Error(), commentLimit))
		return false, nil
	}
}

func (e *executorService) complete(ctx context.Context, id, comment string) {
	e.monitor.TaskExecuted(string(domain.TaskStatusCompleted))
	if err := e.engine.RequestStatusChange(ctx, id, string(domain.TaskStatusCompleted), "system", comment); err != nil {
		e.log.Error("Failed to record completion", zap.String("task_id", id), zap.Error(err))
	}
}

func (e *executorService) fail(ctx context.Context, id, comment string) {
	e.monitor.TaskExecuted(string(domain.TaskStatusFailed))
	if err := e.engine.RequestStatusChange(ctx, id, string(domain.TaskStatusFailed), "system", comment); err != nil {
		e.log.Error("Failed to record failure", zap.String("task_id", id), zap.Error(err))
	}
}

// buildCommand resolves the interpreter by extension and renders the
// parameter map as --key=value flags, JSON-encoding composite values.
// The result is an argv slice; no shell is ever involved.
func buildCommand(script string, params map[string]any) (string, []string) {
	name := script
	var args []string
	if interp, ok := interpreters[filepath.Ext(script)]; ok {
		name = interp
		args = append(args, script)
	}

	keys := make([]string, 0, len(params))
	for key := range params {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		args = append(args, fmt.Sprintf("--%s=%s", key, renderParam(params[key])))
	}
	return name, args
}

func renderParam(value any) string {
	switch value.(type) {
	case []any, map[string]any:
		data, err := json.Marshal(value)
		if err != nil {
			return fmt.Sprint(value)
		}
		return string(data)
	default:
		return fmt.Sprint(value)
	}
}

// truncate caps s at limit characters. Counting runes, not bytes, keeps a
// multibyte character from being split at the cut, which would leave an
// invalid-UTF-8 comment the history table rejects.
func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit])
}
