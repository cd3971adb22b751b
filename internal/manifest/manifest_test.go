package manifest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/microfunc/microfunc/internal/core/domain"
)

const sampleManifest = `
tasks:
  manual:
    - id: review-proto
      title: Review proto definitions
      description: Check field numbering before release
      priority: high
      tags: [review, proto]
      assignee: alice
      due_date: "2026-09-01"
  automated:
    - id: gen-stubs
      title: Regenerate gRPC stubs
      status: pending
      executor: ci
      schedule: "0 * * * *"
      trigger: scheduled
      script: scripts/gen.sh
      parameters:
        lang: go
communication:
  webhooks:
    - url: https://hooks.example.com/tasks
      events: [task.created]
      headers:
        Authorization: Bearer ${HOOK_TOKEN}
  apis:
    - id: tracker
      type: rest
      base_url: https://tracker.example.com
      auth:
        type: bearer
        token: ${TRACKER_TOKEN}
      endpoints:
        - name: get_issue
          path: /issues/{id}
          method: GET
`

func writeManifest(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "grpc-project.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	m, err := Load(writeManifest(t, sampleManifest))
	require.NoError(t, err)

	require.Len(t, m.Tasks.Manual, 1)
	require.Len(t, m.Tasks.Automated, 1)
	assert.Equal(t, "review-proto", m.Tasks.Manual[0].ID)
	assert.Equal(t, "scripts/gen.sh", m.Tasks.Automated[0].Script)

	require.Len(t, m.Communication.Webhooks, 1)
	assert.Equal(t, []string{"task.created"}, m.Communication.Webhooks[0].Events)

	require.Len(t, m.Communication.APIs, 1)
	assert.Equal(t, "tracker", m.Communication.APIs[0].ID)
	require.Len(t, m.Communication.APIs[0].Methods, 1)
	assert.Equal(t, "/issues/{id}", m.Communication.APIs[0].Methods[0].Path)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestLoadInvalidYAML(t *testing.T) {
	_, err := Load(writeManifest(t, "tasks: [not: {a: map"))
	require.Error(t, err)
}

func TestToTaskManualDefaults(t *testing.T) {
	def := TaskDef{ID: "t-1", Title: "Write docs", Assignee: "bob"}

	task, err := def.ToTask(domain.TaskTypeManual)
	require.NoError(t, err)

	assert.Equal(t, domain.TaskStatusPending, task.Status)
	assert.Equal(t, domain.TaskPriorityMedium, task.Priority)
	assert.Equal(t, "bob", task.Assignee)
	// Automated-only fields stay empty for a manual task.
	assert.Empty(t, task.Executor)
	assert.Empty(t, task.Script)
}

func TestToTaskAutomatedFields(t *testing.T) {
	def := TaskDef{
		ID:         "t-2",
		Title:      "Nightly build",
		Priority:   "critical",
		Executor:   "ci",
		Schedule:   "@daily",
		Trigger:    "scheduled",
		Script:     "scripts/build.sh",
		Parameters: map[string]any{"target": "all"},
		Assignee:   "ignored",
	}

	task, err := def.ToTask(domain.TaskTypeAutomated)
	require.NoError(t, err)

	assert.Equal(t, domain.TaskPriorityCritical, task.Priority)
	assert.Equal(t, domain.TriggerScheduled, task.Trigger)
	assert.Equal(t, "scripts/build.sh", task.Script)
	assert.Equal(t, map[string]any{"target": "all"}, task.Parameters)
	// Manual-only fields stay empty for an automated task.
	assert.Empty(t, task.Assignee)
}

func TestToTaskValidation(t *testing.T) {
	_, err := TaskDef{Title: "no id"}.ToTask(domain.TaskTypeManual)
	require.Error(t, err)

	_, err = TaskDef{ID: "t-1", Status: "done"}.ToTask(domain.TaskTypeManual)
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)

	_, err = TaskDef{ID: "t-1", Priority: "urgent"}.ToTask(domain.TaskTypeManual)
	assert.ErrorIs(t, err, domain.ErrInvalidPriority)
}
