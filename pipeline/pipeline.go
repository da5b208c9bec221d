// Package pipeline sequences one video job end to end: template resolution,
// narration and prompt generation, the per-frame loop, and final assembly.
package pipeline

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"storyreel/storyboard"
	"storyreel/video"
)

// Mode selects how narrations are acquired.
type Mode string

const (
	// ModeGenerate asks the LLM to write narrations from a topic.
	ModeGenerate Mode = "generate"
	// ModeFixed splits caller-supplied text by line breaks.
	ModeFixed Mode = "fixed"
)

// Params is the full input of one job. Unset numeric fields take the
// pipeline's configured defaults.
type Params struct {
	Text  string
	Mode  Mode
	Title string

	TaskID    string
	NumScenes int

	MinNarrationWords int
	MaxNarrationWords int
	MinPromptWords    int
	MaxPromptWords    int

	TTSMode     storyboard.TTSMode
	VoiceID     string
	TTSSpeed    float64
	TTSWorkflow string
	RefAudio    string

	MediaWorkflow  string
	FrameTemplate  string
	TemplateParams map[string]string
	PromptPrefix   string

	VideoFPS int

	BGM video.BGMOptions

	ContentMetadata *storyboard.ContentMetadata

	// OutputPath, when set, receives a copy of the final video.
	OutputPath string
}

// Pipeline executes one job variant.
type Pipeline interface {
	Name() string
	Run(ctx context.Context, p Params, progress storyboard.ProgressFunc) (*storyboard.Result, error)
}

// Registry maps pipeline names to variants, selected at job creation.
type Registry struct {
	mu        sync.RWMutex
	pipelines map[string]Pipeline
}

func NewRegistry() *Registry {
	return &Registry{pipelines: map[string]Pipeline{}}
}

func (r *Registry) Register(p Pipeline) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pipelines[p.Name()] = p
}

func (r *Registry) Get(name string) (Pipeline, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.pipelines[name]
	if !ok {
		return nil, fmt.Errorf("unknown pipeline %q (have %v)", name, r.names())
	}
	return p, nil
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.names()
}

func (r *Registry) names() []string {
	names := make([]string, 0, len(r.pipelines))
	for name := range r.pipelines {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
