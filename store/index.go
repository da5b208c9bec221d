package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const (
	indexVersion     = 1
	titlePrefixRunes = 30
)

// IndexEntry is the flattened per-task summary kept in the index document.
type IndexEntry struct {
	TaskID      string     `json:"task_id"`
	Status      string     `json:"status"`
	Title       string     `json:"title"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Duration    float64    `json:"duration"`
	NumFrames   int        `json:"num_frames"`
	FileSize    int64      `json:"file_size"`
	VideoPath   string     `json:"video_path,omitempty"`
}

type indexDoc struct {
	Version     int          `json:"version"`
	LastUpdated time.Time    `json:"last_updated"`
	Tasks       []IndexEntry `json:"tasks"`
}

// entryFor flattens a metadata document into its index entry. The display
// title falls back from the persisted storyboard's title, to a prefix of the
// input text, to a placeholder.
func (s *Store) entryFor(meta *TaskMetadata) IndexEntry {
	entry := IndexEntry{
		TaskID:      meta.TaskID,
		Status:      meta.Status,
		Title:       s.displayTitle(meta),
		CreatedAt:   meta.CreatedAt,
		CompletedAt: meta.CompletedAt,
	}
	if meta.Result != nil {
		entry.Duration = meta.Result.Duration
		entry.NumFrames = meta.Result.NumFrames
		entry.FileSize = meta.Result.FileSize
		entry.VideoPath = meta.Result.VideoPath
	}
	return entry
}

func (s *Store) displayTitle(meta *TaskMetadata) string {
	title, text := inputFields(meta.Input)
	if title != "" {
		return title
	}
	if sb, err := s.LoadStoryboard(meta.TaskID); err == nil && sb.Title != "" {
		return sb.Title
	}
	if text != "" {
		r := []rune(text)
		if len(r) > titlePrefixRunes {
			return string(r[:titlePrefixRunes]) + "..."
		}
		return text
	}
	return "Untitled"
}

// inputFields pulls the explicit title and free-text fields out of a stored
// input snapshot.
func inputFields(input json.RawMessage) (title, text string) {
	if len(input) == 0 {
		return "", ""
	}
	var fields struct {
		Title string `json:"title"`
		Text  string `json:"text"`
	}
	if err := json.Unmarshal(input, &fields); err != nil {
		return "", ""
	}
	return strings.TrimSpace(fields.Title), strings.TrimSpace(fields.Text)
}

// updateIndex updates or appends one entry and rewrites the whole index
// document. The full read-modify-rewrite runs under the index mutex.
func (s *Store) updateIndex(entry IndexEntry) error {
	s.indexMu.Lock()
	defer s.indexMu.Unlock()

	doc, err := s.loadIndex()
	if err != nil {
		return err
	}

	found := false
	for i := range doc.Tasks {
		if doc.Tasks[i].TaskID == entry.TaskID {
			doc.Tasks[i] = entry
			found = true
			break
		}
	}
	if !found {
		doc.Tasks = append(doc.Tasks, entry)
	}
	return s.writeIndex(doc)
}

// RebuildIndex reconstructs the index from every task directory on disk,
// replacing whatever the incremental updates produced. Used for recovery
// after manual edits or corruption.
func (s *Store) RebuildIndex() (int, error) {
	s.indexMu.Lock()
	defer s.indexMu.Unlock()

	dirs, err := os.ReadDir(s.root)
	if err != nil {
		return 0, fmt.Errorf("rebuild index: %w", err)
	}

	doc := &indexDoc{Version: indexVersion}
	for _, d := range dirs {
		if !d.IsDir() {
			continue
		}
		meta, err := s.LoadTaskMetadata(d.Name())
		if err != nil {
			logf("Rebuild: skipping %s: %v", d.Name(), err)
			continue
		}
		doc.Tasks = append(doc.Tasks, s.entryFor(meta))
	}
	sort.Slice(doc.Tasks, func(i, j int) bool {
		return doc.Tasks[i].CreatedAt.Before(doc.Tasks[j].CreatedAt)
	})

	if err := s.writeIndex(doc); err != nil {
		return 0, err
	}
	logf("Rebuilt index with %d tasks", len(doc.Tasks))
	return len(doc.Tasks), nil
}

func (s *Store) loadIndex() (*indexDoc, error) {
	var doc indexDoc
	err := readJSON(s.indexPath(), &doc)
	if os.IsNotExist(err) {
		return &indexDoc{Version: indexVersion}, nil
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func (s *Store) writeIndex(doc *indexDoc) error {
	doc.Version = indexVersion
	doc.LastUpdated = time.Now().UTC()
	return writeJSON(s.indexPath(), doc)
}

func (s *Store) indexPath() string {
	return filepath.Join(s.root, indexFile)
}

// SortKey names a listing sort column.
type SortKey string

const (
	SortCreatedAt   SortKey = "created_at"
	SortCompletedAt SortKey = "completed_at"
	SortTitle       SortKey = "title"
	SortDuration    SortKey = "duration"
)

// ListOptions controls filtering, ordering and pagination of List. Zero
// values mean: all statuses, sort by created time descending, first page of
// 20.
type ListOptions struct {
	Status     string
	SortBy     SortKey
	Descending bool
	Page       int
	PageSize   int
}

// Page is one page of index entries plus pagination facts.
type Page struct {
	Items      []IndexEntry `json:"items"`
	Total      int          `json:"total"`
	Page       int          `json:"page"`
	PageSize   int          `json:"page_size"`
	TotalPages int          `json:"total_pages"`
}

// List returns a page computed from the filtered, sorted index.
func (s *Store) List(opts ListOptions) (*Page, error) {
	if opts.Page <= 0 {
		opts.Page = 1
	}
	if opts.PageSize <= 0 {
		opts.PageSize = 20
	}
	if opts.SortBy == "" {
		opts.SortBy = SortCreatedAt
		opts.Descending = true
	}

	s.indexMu.Lock()
	doc, err := s.loadIndex()
	s.indexMu.Unlock()
	if err != nil {
		return nil, err
	}

	var entries []IndexEntry
	for _, e := range doc.Tasks {
		if opts.Status != "" && e.Status != opts.Status {
			continue
		}
		entries = append(entries, e)
	}

	sortEntries(entries, opts.SortBy, opts.Descending)

	total := len(entries)
	totalPages := (total + opts.PageSize - 1) / opts.PageSize
	start := (opts.Page - 1) * opts.PageSize
	if start > total {
		start = total
	}
	end := start + opts.PageSize
	if end > total {
		end = total
	}

	return &Page{
		Items:      entries[start:end],
		Total:      total,
		Page:       opts.Page,
		PageSize:   opts.PageSize,
		TotalPages: totalPages,
	}, nil
}

func sortEntries(entries []IndexEntry, key SortKey, desc bool) {
	less := func(i, j int) bool {
		a, b := entries[i], entries[j]
		switch key {
		case SortCompletedAt:
			at, bt := timeOrZero(a.CompletedAt), timeOrZero(b.CompletedAt)
			if !at.Equal(bt) {
				return at.Before(bt)
			}
		case SortTitle:
			if a.Title != b.Title {
				return a.Title < b.Title
			}
		case SortDuration:
			if a.Duration != b.Duration {
				return a.Duration < b.Duration
			}
		default:
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.Before(b.CreatedAt)
			}
		}
		return a.TaskID < b.TaskID
	}
	if desc {
		sort.SliceStable(entries, func(i, j int) bool { return less(j, i) })
	} else {
		sort.SliceStable(entries, less)
	}
}

func timeOrZero(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
