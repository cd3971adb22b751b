// Package manifest loads the declarative project manifest
// (grpc-project.yaml): task definitions plus the communication section
// consumed by the webhook notifier and the call-api passthrough.
package manifest

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/microfunc/microfunc/internal/core/domain"
)

type Manifest struct {
	Tasks         Tasks         `yaml:"tasks"`
	Communication Communication `yaml:"communication"`
}

type Tasks struct {
	Manual    []TaskDef `yaml:"manual"`
	Automated []TaskDef `yaml:"automated"`
}

// TaskDef is one declared task. Manual and automated definitions share
// the shape; the irrelevant fields stay empty.
type TaskDef struct {
	ID            string         `yaml:"id"`
	Title         string         `yaml:"title"`
	Description   string         `yaml:"description"`
	Status        string         `yaml:"status"`
	Priority      string         `yaml:"priority"`
	Tags          []string       `yaml:"tags"`
	Prerequisites []string       `yaml:"prerequisites"`
	Assignee      string         `yaml:"assignee"`
	DueDate       string         `yaml:"due_date"`
	Executor      string         `yaml:"executor"`
	Schedule      string         `yaml:"schedule"`
	Trigger       string         `yaml:"trigger"`
	Script        string         `yaml:"script"`
	Parameters    map[string]any `yaml:"parameters"`
}

type Communication struct {
	Webhooks []Webhook `yaml:"webhooks"`
	APIs     []API     `yaml:"apis"`
}

// Webhook is one notification endpoint. Header values may reference
// environment variables as ${VAR}.
type Webhook struct {
	URL     string            `yaml:"url"`
	Events  []string          `yaml:"events"`
	Headers map[string]string `yaml:"headers"`
}

// API is one external API reachable through the call-api passthrough.
type API struct {
	ID      string     `yaml:"id"`
	Type    string     `yaml:"type"` // "rest"; anything else is skipped with a warning
	BaseURL string     `yaml:"base_url"`
	Auth    Auth       `yaml:"auth"`
	Methods []Endpoint `yaml:"endpoints"`
}

// Auth describes API authentication. Credential fields may reference
// environment variables as ${VAR}.
type Auth struct {
	Type       string `yaml:"type"` // basic, api_key, bearer
	Username   string `yaml:"username"`
	Password   string `yaml:"password"`
	APIKey     string `yaml:"api_key"`
	HeaderName string `yaml:"header_name"`
	Token      string `yaml:"token"`
}

// Endpoint is one callable method of a REST API.
type Endpoint struct {
	Name   string `yaml:"name"`
	Path   string `yaml:"path"`
	Method string `yaml:"method"`
}

// Load reads and parses the manifest file.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest %s: %w", path, err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	return &m, nil
}

// ToTask converts a definition into a domain task, applying the declared
// defaults: status pending, priority medium.
func (d TaskDef) ToTask(taskType domain.TaskType) (*domain.Task, error) {
	if d.ID == "" {
		return nil, fmt.Errorf("task definition without id")
	}

	status := domain.TaskStatusPending
	if d.Status != "" {
		s, err := domain.ParseStatus(d.Status)
		if err != nil {
			return nil, fmt.Errorf("task %s: %w", d.ID, err)
		}
		status = s
	}

	priority := domain.TaskPriorityMedium
	if d.Priority != "" {
		p, err := domain.ParsePriority(d.Priority)
		if err != nil {
			return nil, fmt.Errorf("task %s: %w", d.ID, err)
		}
		priority = p
	}

	task := &domain.Task{
		ID:            d.ID,
		Title:         d.Title,
		Description:   d.Description,
		Type:          taskType,
		Status:        status,
		Priority:      priority,
		Tags:          d.Tags,
		Prerequisites: d.Prerequisites,
	}

	switch taskType {
	case domain.TaskTypeManual:
		task.Assignee = d.Assignee
		task.DueDate = d.DueDate
	case domain.TaskTypeAutomated:
		task.Executor = d.Executor
		task.Schedule = d.Schedule
		task.Trigger = domain.Trigger(d.Trigger)
		task.Script = d.Script
		task.Parameters = d.Parameters
	}
	return task, nil
}
