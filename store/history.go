package store

import (
	"encoding/json"
	"fmt"
	"os"

	"storyreel/storyboard"
)

// TaskDetail is everything stored about one job: metadata plus the full
// storyboard when one was persisted.
type TaskDetail struct {
	Metadata   *TaskMetadata          `json:"metadata"`
	Storyboard *storyboard.Storyboard `json:"storyboard,omitempty"`
}

// Detail loads a task's complete record. A missing storyboard is not an
// error; jobs that failed before assembly never wrote one.
func (s *Store) Detail(taskID string) (*TaskDetail, error) {
	meta, err := s.LoadTaskMetadata(taskID)
	if err != nil {
		return nil, fmt.Errorf("task %s: %w", taskID, err)
	}
	detail := &TaskDetail{Metadata: meta}
	if sb, err := s.LoadStoryboard(taskID); err == nil {
		detail.Storyboard = sb
	}
	return detail, nil
}

// DuplicateParams returns a task's stored input snapshot for resubmission as
// a new job. Regeneration is duplication, never mutation of the original
// record.
func (s *Store) DuplicateParams(taskID string) (json.RawMessage, error) {
	meta, err := s.LoadTaskMetadata(taskID)
	if err != nil {
		return nil, fmt.Errorf("task %s: %w", taskID, err)
	}
	if len(meta.Input) == 0 {
		return nil, fmt.Errorf("task %s has no stored input", taskID)
	}
	return meta.Input, nil
}

// Delete removes a task's directory and its index entry.
func (s *Store) Delete(taskID string) error {
	if _, err := s.LoadTaskMetadata(taskID); err != nil {
		return fmt.Errorf("task %s: %w", taskID, err)
	}
	if err := os.RemoveAll(s.taskDir(taskID)); err != nil {
		return err
	}

	s.indexMu.Lock()
	defer s.indexMu.Unlock()
	doc, err := s.loadIndex()
	if err != nil {
		return err
	}
	kept := doc.Tasks[:0]
	for _, e := range doc.Tasks {
		if e.TaskID != taskID {
			kept = append(kept, e)
		}
	}
	doc.Tasks = kept
	return s.writeIndex(doc)
}

// Statistics summarizes the whole index.
type Statistics struct {
	Total         int            `json:"total"`
	ByStatus      map[string]int `json:"by_status"`
	TotalDuration float64        `json:"total_duration"`
	TotalFileSize int64          `json:"total_file_size"`
	TotalFrames   int            `json:"total_frames"`
}

// Stats computes aggregate numbers across all indexed tasks.
func (s *Store) Stats() (*Statistics, error) {
	s.indexMu.Lock()
	doc, err := s.loadIndex()
	s.indexMu.Unlock()
	if err != nil {
		return nil, err
	}

	stats := &Statistics{ByStatus: map[string]int{}}
	for _, e := range doc.Tasks {
		stats.Total++
		stats.ByStatus[e.Status]++
		stats.TotalDuration += e.Duration
		stats.TotalFileSize += e.FileSize
		stats.TotalFrames += e.NumFrames
	}
	return stats, nil
}
