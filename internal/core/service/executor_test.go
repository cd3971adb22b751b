package service

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/microfunc/microfunc/internal/core/domain"
	"github.com/microfunc/microfunc/internal/core/port"
)

func newTestExecutor(t *testing.T, repo *memRepo, timeout time.Duration) *executorService {
	t.Helper()
	engine, _ := newTestEngine(repo)
	return NewExecutorService(repo, engine, port.NopMonitor{}, timeout, zap.NewNop())
}

func writeScript(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o755))
	return path
}

func automatedTask(id, script string) *domain.Task {
	return &domain.Task{
		ID:       id,
		Title:    "Regenerate protobuf stubs",
		Type:     domain.TaskTypeAutomated,
		Status:   domain.TaskStatusPending,
		Priority: domain.TaskPriorityMedium,
		Executor: "ci",
		Trigger:  domain.TriggerScheduled,
		Script:   script,
	}
}

func TestExecuteSuccess(t *testing.T) {
	repo := newMemRepo()
	exec := newTestExecutor(t, repo, 0)
	ctx := context.Background()

	script := writeScript(t, "ok.sh", "#!/bin/bash\necho build finished\n")
	_, err := repo.Upsert(ctx, automatedTask("t-auto", script))
	require.NoError(t, err)

	ok, err := exec.Execute(ctx, "t-auto")
	require.NoError(t, err)
	assert.True(t, ok)

	task, err := repo.GetByID(ctx, "t-auto")
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusCompleted, task.Status)

	// create -> in_progress -> completed.
	require.Len(t, task.History, 3)
	assert.Contains(t, task.History[0].Comment, "build finished")
	assert.Equal(t, domain.TaskStatusInProgress, task.History[1].NewStatus)
	assert.Equal(t, "Execution started", task.History[1].Comment)
}

func TestExecuteFailureMapsToFailed(t *testing.T) {
	repo := newMemRepo()
	exec := newTestExecutor(t, repo, 0)
	ctx := context.Background()

	script := writeScript(t, "fail.sh", "#!/bin/bash\necho deployment refused >&2\nexit 1\n")
	_, err := repo.Upsert(ctx, automatedTask("t-auto", script))
	require.NoError(t, err)

	ok, err := exec.Execute(ctx, "t-auto")
	require.NoError(t, err)
	assert.False(t, ok)

	task, err := repo.GetByID(ctx, "t-auto")
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusFailed, task.Status)
	require.NotEmpty(t, task.History)
	assert.Contains(t, task.History[0].Comment, "deployment refused")
}

func TestExecuteMissingScript(t *testing.T) {
	repo := newMemRepo()
	exec := newTestExecutor(t, repo, 0)
	ctx := context.Background()

	missing := filepath.Join(t.TempDir(), "gone.sh")
	_, err := repo.Upsert(ctx, automatedTask("t-auto", missing))
	require.NoError(t, err)

	ok, err := exec.Execute(ctx, "t-auto")
	require.NoError(t, err)
	assert.False(t, ok)

	task, err := repo.GetByID(ctx, "t-auto")
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusFailed, task.Status)
	assert.Contains(t, task.History[0].Comment, missing)
}

func TestExecuteRejectsManualTask(t *testing.T) {
	repo := newMemRepo()
	exec := newTestExecutor(t, repo, 0)
	ctx := context.Background()

	_, err := repo.Upsert(ctx, manualTask("t-manual"))
	require.NoError(t, err)

	ok, err := exec.Execute(ctx, "t-manual")
	assert.False(t, ok)
	assert.ErrorIs(t, err, domain.ErrWrongTaskType)

	// No status mutation: only the creation entry exists.
	assert.Equal(t, 1, repo.historyLen("t-manual"))
}

func TestExecuteUnknownTask(t *testing.T) {
	repo := newMemRepo()
	exec := newTestExecutor(t, repo, 0)

	ok, err := exec.Execute(context.Background(), "ghost")
	assert.False(t, ok)
	assert.ErrorIs(t, err, domain.ErrTaskNotFound)
}

func TestExecutePassesParameters(t *testing.T) {
	repo := newMemRepo()
	exec := newTestExecutor(t, repo, 0)
	ctx := context.Background()

	script := writeScript(t, "args.sh", "#!/bin/bash\necho \"$@\"\n")
	task := automatedTask("t-auto", script)
	task.Parameters = map[string]any{"env": "prod", "replicas": 2}
	_, err := repo.Upsert(ctx, task)
	require.NoError(t, err)

	ok, err := exec.Execute(ctx, "t-auto")
	require.NoError(t, err)
	assert.True(t, ok)

	stored, err := repo.GetByID(ctx, "t-auto")
	require.NoError(t, err)
	assert.Contains(t, stored.History[0].Comment, "--env=prod")
	assert.Contains(t, stored.History[0].Comment, "--replicas=2")
}

func TestExecuteTimeout(t *testing.T) {
	repo := newMemRepo()
	exec := newTestExecutor(t, repo, 100*time.Millisecond)
	ctx := context.Background()

	script := writeScript(t, "slow.sh", "#!/bin/bash\nsleep 10\n")
	_, err := repo.Upsert(ctx, automatedTask("t-auto", script))
	require.NoError(t, err)

	start := time.Now()
	ok, err := exec.Execute(ctx, "t-auto")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Less(t, time.Since(start), 5*time.Second)

	task, err := repo.GetByID(ctx, "t-auto")
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusFailed, task.Status)
}

func TestExecuteTruncatesMultibyteOutput(t *testing.T) {
	repo := newMemRepo()
	exec := newTestExecutor(t, repo, 0)
	ctx := context.Background()

	// 300 two-byte runes: a byte-based cut at 200 would split one in half.
	script := writeScript(t, "wide.sh", "#!/bin/bash\nprintf 'ł%.0s' {1..300}\n")
	_, err := repo.Upsert(ctx, automatedTask("t-auto", script))
	require.NoError(t, err)

	ok, err := exec.Execute(ctx, "t-auto")
	require.NoError(t, err)
	assert.True(t, ok)

	task, err := repo.GetByID(ctx, "t-auto")
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusCompleted, task.Status)

	comment := task.History[0].Comment
	assert.True(t, utf8.ValidString(comment))
	assert.Equal(t, 200, utf8.RuneCountInString(comment))
}

func TestBuildCommand(t *testing.T) {
	tests := []struct {
		name     string
		script   string
		params   map[string]any
		wantName string
		wantArgs []string
	}{
		{
			name:     "python with params",
			script:   "scripts/deploy.py",
			params:   map[string]any{"env": "prod", "count": 3},
			wantName: "python3",
			wantArgs: []string{"scripts/deploy.py", "--count=3", "--env=prod"},
		},
		{
			name:     "shell",
			script:   "scripts/build.sh",
			wantName: "bash",
			wantArgs: []string{"scripts/build.sh"},
		},
		{
			name:     "node",
			script:   "scripts/lint.js",
			wantName: "node",
			wantArgs: []string{"scripts/lint.js"},
		},
		{
			name:     "direct executable",
			script:   "bin/check",
			wantName: "bin/check",
			wantArgs: nil,
		},
		{
			name:     "composite values are json encoded",
			script:   "bin/check",
			params:   map[string]any{"targets": []any{"a", "b"}},
			wantName: "bin/check",
			wantArgs: []string{`--targets=["a","b"]`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			name, args := buildCommand(tt.script, tt.params)
			assert.Equal(t, tt.wantName, name)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 200))
	assert.Len(t, truncate(strings.Repeat("x", 500), 200), 200)

	// The limit counts characters: 199 ASCII plus one two-byte rune fits.
	assert.Equal(t, strings.Repeat("x", 199)+"ł", truncate(strings.Repeat("x", 199)+"ł", 200))

	wide := truncate(strings.Repeat("ł", 300), 200)
	assert.True(t, utf8.ValidString(wide))
	assert.Equal(t, 200, utf8.RuneCountInString(wide))
}
