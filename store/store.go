// Package store is the durable record of jobs: per-task directories holding
// a metadata document and the full storyboard, plus a denormalized index for
// paginated listing without scanning every directory.
package store

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"storyreel/storyboard"
)

const (
	metadataFile   = "metadata.json"
	storyboardFile = "storyboard.json"
	indexFile      = "index.json"
)

// ResultSummary is the flattened outcome stored in task metadata and the
// index.
type ResultSummary struct {
	VideoPath string  `json:"video_path"`
	Duration  float64 `json:"duration"`
	NumFrames int     `json:"num_frames"`
	FileSize  int64   `json:"file_size"`
}

// TaskMetadata is one job's durable record apart from its storyboard.
type TaskMetadata struct {
	TaskID      string          `json:"task_id"`
	Status      string          `json:"status"`
	Error       string          `json:"error,omitempty"`
	Input       json.RawMessage `json:"input,omitempty"`
	Result      *ResultSummary  `json:"result,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}

// Store reads and writes task documents under a root directory. The index
// mutex serializes the read-modify-rewrite cycle on the index document;
// without it two concurrent task completions can drop each other's entry.
type Store struct {
	root    string
	indexMu sync.Mutex
}

func Open(root string) (*Store, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return &Store{root: root}, nil
}

func (s *Store) taskDir(taskID string) string {
	return filepath.Join(s.root, taskID)
}

// SaveTaskMetadata writes the metadata document and synchronously updates
// the task's index entry.
func (s *Store) SaveTaskMetadata(meta *TaskMetadata) error {
	if meta.TaskID == "" {
		return fmt.Errorf("metadata has no task id")
	}
	if err := writeJSON(filepath.Join(s.taskDir(meta.TaskID), metadataFile), meta); err != nil {
		return err
	}
	return s.updateIndex(s.entryFor(meta))
}

func (s *Store) LoadTaskMetadata(taskID string) (*TaskMetadata, error) {
	var meta TaskMetadata
	if err := readJSON(filepath.Join(s.taskDir(taskID), metadataFile), &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// SaveStoryboard writes a job's full storyboard document.
func (s *Store) SaveStoryboard(taskID string, sb *storyboard.Storyboard) error {
	return writeJSON(filepath.Join(s.taskDir(taskID), storyboardFile), sb)
}

func (s *Store) LoadStoryboard(taskID string) (*storyboard.Storyboard, error) {
	var sb storyboard.Storyboard
	if err := readJSON(filepath.Join(s.taskDir(taskID), storyboardFile), &sb); err != nil {
		return nil, err
	}
	return &sb, nil
}

// SaveResult records a successful outcome on the task's metadata, creating
// the metadata document if the task was never registered.
func (s *Store) SaveResult(taskID string, res *storyboard.Result) error {
	meta, err := s.LoadTaskMetadata(taskID)
	if err != nil {
		meta = &TaskMetadata{TaskID: taskID, CreatedAt: time.Now().UTC()}
	}

	numFrames := 0
	if res.Storyboard != nil {
		numFrames = len(res.Storyboard.Frames)
	}
	now := time.Now().UTC()
	meta.Status = "completed"
	meta.Error = ""
	meta.CompletedAt = &now
	meta.Result = &ResultSummary{
		VideoPath: res.VideoPath,
		Duration:  res.Duration,
		NumFrames: numFrames,
		FileSize:  res.FileSize,
	}
	return s.SaveTaskMetadata(meta)
}

// UpdateTaskStatus records a status transition, keeping the index in step.
// errMsg is stored only for failures.
func (s *Store) UpdateTaskStatus(taskID, status, errMsg string) error {
	meta, err := s.LoadTaskMetadata(taskID)
	if err != nil {
		return err
	}
	meta.Status = status
	meta.Error = errMsg
	if status == "completed" || status == "failed" {
		now := time.Now().UTC()
		meta.CompletedAt = &now
	}
	return s.SaveTaskMetadata(meta)
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	// Write-then-rename keeps readers from seeing a half-written document.
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return nil
}

func logf(format string, args ...any) {
	log.Printf("[store] "+format, args...)
}
