// Package task tracks pipeline runs as in-memory background jobs. Records
// live for the process lifetime; the durable store under store/ is the
// long-term record.
package task

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"storyreel/storyboard"
)

// Status is a task's lifecycle state. Completed and Failed are terminal.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Task is one tracked job. Input is the parameter snapshot captured at
// creation and never changes afterwards.
type Task struct {
	ID          string             `json:"id"`
	Type        string             `json:"type"`
	Status      Status             `json:"status"`
	Input       json.RawMessage    `json:"input"`
	Result      *storyboard.Result `json:"result,omitempty"`
	Error       string             `json:"error,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`
	StartedAt   *time.Time         `json:"started_at,omitempty"`
	CompletedAt *time.Time         `json:"completed_at,omitempty"`
}

// Work is the unit a task executes in the background.
type Work func(ctx context.Context) (*storyboard.Result, error)

// Manager is the in-memory task table. There is no cancellation: a running
// task can only be abandoned, not stopped.
type Manager struct {
	mu      sync.RWMutex
	tasks   map[string]*Task
	metrics *Metrics
}

func NewManager(metrics *Metrics) *Manager {
	return &Manager{
		tasks:   map[string]*Task{},
		metrics: metrics,
	}
}

// Create registers a new pending task with an immutable input snapshot.
func (m *Manager) Create(taskType string, input any) (*Task, error) {
	snapshot, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("snapshot task input: %w", err)
	}

	t := &Task{
		ID:        uuid.NewString(),
		Type:      taskType,
		Status:    StatusPending,
		Input:     snapshot,
		CreatedAt: time.Now().UTC(),
	}

	m.mu.Lock()
	m.tasks[t.ID] = t
	m.mu.Unlock()

	log.Printf("[task] Created %s task %s", taskType, t.ID)
	return copyTask(t), nil
}

// Execute transitions a pending task to running and runs work in the
// background. The completion transition (completed or failed) is terminal.
func (m *Manager) Execute(id string, work Work) error {
	m.mu.Lock()
	t, ok := m.tasks[id]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("task %s not found", id)
	}
	if t.Status != StatusPending {
		m.mu.Unlock()
		return fmt.Errorf("task %s is %s, not pending", id, t.Status)
	}
	now := time.Now().UTC()
	t.Status = StatusRunning
	t.StartedAt = &now
	m.mu.Unlock()

	m.metrics.taskStarted(t.Type)

	go func() {
		started := time.Now()
		result, err := work(context.Background())
		elapsed := time.Since(started)

		m.mu.Lock()
		done := time.Now().UTC()
		t.CompletedAt = &done
		if err != nil {
			t.Status = StatusFailed
			t.Error = err.Error()
		} else {
			t.Status = StatusCompleted
			t.Result = result
		}
		status := t.Status
		m.mu.Unlock()

		m.metrics.taskFinished(t.Type, status, elapsed)
		if err != nil {
			log.Printf("[task] Task %s failed after %s: %v", id, elapsed.Round(time.Millisecond), err)
		} else {
			log.Printf("[task] Task %s completed in %s", id, elapsed.Round(time.Millisecond))
		}
	}()
	return nil
}

// Get returns a copy of the task; mutating it does not affect the table.
func (m *Manager) Get(id string) (*Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tasks[id]
	if !ok {
		return nil, fmt.Errorf("task %s not found", id)
	}
	return copyTask(t), nil
}

// List returns copies of all tasks in unspecified order.
func (m *Manager) List() []*Task {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Task, 0, len(m.tasks))
	for _, t := range m.tasks {
		out = append(out, copyTask(t))
	}
	return out
}

func copyTask(t *Task) *Task {
	c := *t
	return &c
}
