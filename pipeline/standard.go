package pipeline

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"storyreel/content"
	"storyreel/frame"
	"storyreel/storyboard"
	"storyreel/template"
	"storyreel/video"
)

// Progress anchors for the standard pipeline's stages. Frames fill the span
// between frameBase and concatenating.
const (
	progInitializing  = 0.05
	progNarrations    = 0.10
	progPrompts       = 0.15
	progPromptsRange  = 0.15
	progFrameBase     = 0.30
	progFrameRange    = 0.50
	progConcatenating = 0.85
)

// VideoAssembler is the full set of video operations one job needs.
type VideoAssembler interface {
	frame.Assembler
	Concat(ctx context.Context, segments []string, output string, bgm video.BGMOptions) (string, error)
}

// Persister stores a finished job's documents. Failures here never fail the
// job itself.
type Persister interface {
	SaveStoryboard(taskID string, sb *storyboard.Storyboard) error
	SaveResult(taskID string, res *storyboard.Result) error
}

// Defaults fill Params fields the caller left unset.
type Defaults struct {
	NumScenes         int
	MinNarrationWords int
	MaxNarrationWords int
	MinPromptWords    int
	MaxPromptWords    int
	PromptBatchSize   int
	VideoFPS          int
	TTSMode           storyboard.TTSMode
	Voice             string
	FrameTemplate     string
	PromptPrefix      string
}

// Standard is the stock text-to-video pipeline: narrations, one media prompt
// per narration, sequential frame processing, then concatenation.
type Standard struct {
	LLM      content.Completer
	TTS      frame.Speech
	Media    frame.MediaGenerator
	Renderer frame.Renderer
	Video    VideoAssembler
	Store    Persister

	TemplatesDir string
	WorkDir      string
	Defaults     Defaults
}

func (s *Standard) Name() string { return "standard" }

// Run executes one job. On failure a terminal failed event is reported and
// the error returned; on success a completed event at 1.0.
func (s *Standard) Run(ctx context.Context, p Params, progress storyboard.ProgressFunc) (*storyboard.Result, error) {
	result, err := s.run(ctx, p, progress)
	if err != nil {
		progress.Report(storyboard.ProgressEvent{
			Kind:    storyboard.EventFailed,
			Message: err.Error(),
		})
		return nil, err
	}
	progress.Report(storyboard.ProgressEvent{
		Kind:     storyboard.EventCompleted,
		Progress: 1.0,
	})
	return result, nil
}

func (s *Standard) run(ctx context.Context, p Params, progress storyboard.ProgressFunc) (*storyboard.Result, error) {
	s.applyDefaults(&p)
	if err := validate(p); err != nil {
		return nil, err
	}

	progress.Report(storyboard.ProgressEvent{Kind: storyboard.EventInitializing, Progress: progInitializing})
	log.Printf("[pipeline] Task %s: starting (%s mode)", p.TaskID, p.Mode)

	tpl, err := template.Resolve(s.TemplatesDir, p.FrameTemplate)
	if err != nil {
		return nil, err
	}

	taskDir := filepath.Join(s.WorkDir, p.TaskID)
	if err := os.MkdirAll(filepath.Join(taskDir, "frames"), 0755); err != nil {
		return nil, fmt.Errorf("create task dir: %w", err)
	}

	progress.Report(storyboard.ProgressEvent{Kind: storyboard.EventNarrations, Progress: progNarrations})
	narrations, err := s.acquireNarrations(ctx, p)
	if err != nil {
		return nil, err
	}
	log.Printf("[pipeline] Task %s: %d narrations", p.TaskID, len(narrations))

	title, err := s.resolveTitle(ctx, p)
	if err != nil {
		return nil, err
	}

	prompts, err := s.acquirePrompts(ctx, p, tpl, narrations, progress)
	if err != nil {
		return nil, err
	}

	sb := buildStoryboard(title, p, tpl, narrations, prompts)

	proc := &frame.Processor{
		TTS:      s.TTS,
		Media:    s.Media,
		Renderer: s.Renderer,
		Video:    s.Video,
		Template: tpl,
		TaskDir:  taskDir,
	}

	total := len(sb.Frames)
	for i, fr := range sb.Frames {
		progress.Report(storyboard.ProgressEvent{
			Kind:         storyboard.EventFrame,
			Progress:     progFrameBase + progFrameRange*float64(i)/float64(total),
			FrameCurrent: i + 1,
			FrameTotal:   total,
		})
		if err := proc.Process(ctx, fr, sb, total, scaleFrameSteps(progress, i, total)); err != nil {
			return nil, err
		}
		sb.TotalDuration += fr.Duration
	}

	progress.Report(storyboard.ProgressEvent{Kind: storyboard.EventConcatenating, Progress: progConcatenating})

	segments := make([]string, total)
	for i, fr := range sb.Frames {
		segments[i] = fr.SegmentPath
	}
	finalPath, err := s.Video.Concat(ctx, segments, filepath.Join(taskDir, "output_"+p.TaskID+".mp4"), p.BGM)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	sb.FinalVideoPath = finalPath
	sb.CompletedAt = &now

	var fileSize int64
	if fi, statErr := os.Stat(finalPath); statErr == nil {
		fileSize = fi.Size()
	}

	result := &storyboard.Result{
		VideoPath:  finalPath,
		Duration:   sb.TotalDuration,
		FileSize:   fileSize,
		Storyboard: sb,
	}

	s.persist(p.TaskID, sb, result)

	if p.OutputPath != "" {
		if err := copyFile(finalPath, p.OutputPath); err != nil {
			log.Printf("[pipeline] Task %s: could not copy output to %s: %v", p.TaskID, p.OutputPath, err)
		} else {
			result.VideoPath = p.OutputPath
		}
	}

	log.Printf("[pipeline] Task %s: done, %.2fs video at %s", p.TaskID, result.Duration, result.VideoPath)
	return result, nil
}

func (s *Standard) applyDefaults(p *Params) {
	d := s.Defaults
	if p.Mode == "" {
		p.Mode = ModeGenerate
	}
	if p.NumScenes <= 0 {
		p.NumScenes = d.NumScenes
	}
	if p.MinNarrationWords <= 0 {
		p.MinNarrationWords = d.MinNarrationWords
	}
	if p.MaxNarrationWords <= 0 {
		p.MaxNarrationWords = d.MaxNarrationWords
	}
	if p.MinPromptWords <= 0 {
		p.MinPromptWords = d.MinPromptWords
	}
	if p.MaxPromptWords <= 0 {
		p.MaxPromptWords = d.MaxPromptWords
	}
	if p.VideoFPS <= 0 {
		p.VideoFPS = d.VideoFPS
	}
	if p.TTSMode == "" {
		p.TTSMode = d.TTSMode
	}
	if p.VoiceID == "" {
		p.VoiceID = d.Voice
	}
	if p.FrameTemplate == "" {
		p.FrameTemplate = d.FrameTemplate
	}
	if p.PromptPrefix == "" {
		p.PromptPrefix = d.PromptPrefix
	}
}

func validate(p Params) error {
	if p.TaskID == "" {
		return fmt.Errorf("task id is required")
	}
	if p.Text == "" {
		return fmt.Errorf("input text is required")
	}
	switch p.Mode {
	case ModeGenerate:
		if p.NumScenes <= 0 {
			return fmt.Errorf("n_scenes must be positive in generate mode")
		}
	case ModeFixed:
	default:
		return fmt.Errorf("unknown mode %q", p.Mode)
	}
	if p.FrameTemplate == "" {
		return fmt.Errorf("frame template is required")
	}
	return nil
}

func (s *Standard) acquireNarrations(ctx context.Context, p Params) ([]string, error) {
	switch p.Mode {
	case ModeFixed:
		narrations := content.SplitScript(p.Text)
		if len(narrations) == 0 {
			return nil, fmt.Errorf("fixed mode: input has no non-blank lines")
		}
		return narrations, nil
	default:
		return content.GenerateNarrations(ctx, s.LLM, p.Text, p.NumScenes, p.MinNarrationWords, p.MaxNarrationWords)
	}
}

// resolveTitle prefers an explicit title. Otherwise generate mode lets short
// topics through verbatim, fixed mode always summarizes through the LLM. An
// LLM failure degrades to plain truncation rather than failing the job.
func (s *Standard) resolveTitle(ctx context.Context, p Params) (string, error) {
	if p.Title != "" {
		return p.Title, nil
	}

	strategy := content.TitleAuto
	if p.Mode == ModeFixed {
		strategy = content.TitleLLM
	}

	title, err := content.GenerateTitle(ctx, s.LLM, p.Text, strategy, 0)
	if err != nil {
		log.Printf("[pipeline] Task %s: title generation failed (%v), truncating input", p.TaskID, err)
		return content.GenerateTitle(ctx, s.LLM, p.Text, content.TitleDirect, 30)
	}
	return title, nil
}

// acquirePrompts returns one prompt pointer per narration. Static templates
// short-circuit to all-nil with no LLM traffic.
func (s *Standard) acquirePrompts(ctx context.Context, p Params, tpl *template.Template, narrations []string, progress storyboard.ProgressFunc) ([]*string, error) {
	prompts := make([]*string, len(narrations))

	if tpl.Media == template.RequireStatic {
		log.Printf("[pipeline] Task %s: static template, skipping prompt generation", p.TaskID)
		return prompts, nil
	}

	progress.Report(storyboard.ProgressEvent{Kind: storyboard.EventPrompts, Progress: progPrompts})

	generated, err := content.GenerateMediaPrompts(ctx, s.LLM, narrations, content.BatchOptions{
		MinWords:  p.MinPromptWords,
		MaxWords:  p.MaxPromptWords,
		BatchSize: s.Defaults.PromptBatchSize,
		Progress: func(completed, total int) {
			progress.Report(storyboard.ProgressEvent{
				Kind:     storyboard.EventPrompts,
				Progress: progPrompts + progPromptsRange*float64(completed)/float64(total),
			})
		},
	})
	if err != nil {
		return nil, err
	}

	generated = content.ApplyPromptPrefix(generated, p.PromptPrefix)
	for i := range generated {
		prompts[i] = &generated[i]
	}
	return prompts, nil
}

func buildStoryboard(title string, p Params, tpl *template.Template, narrations []string, prompts []*string) *storyboard.Storyboard {
	now := time.Now().UTC()
	sb := &storyboard.Storyboard{
		Title: title,
		Config: storyboard.Config{
			TaskID:            p.TaskID,
			NumScenes:         len(narrations),
			MinNarrationWords: p.MinNarrationWords,
			MaxNarrationWords: p.MaxNarrationWords,
			MinPromptWords:    p.MinPromptWords,
			MaxPromptWords:    p.MaxPromptWords,
			VideoFPS:          p.VideoFPS,
			TTSMode:           p.TTSMode,
			VoiceID:           p.VoiceID,
			TTSSpeed:          p.TTSSpeed,
			TTSWorkflow:       p.TTSWorkflow,
			RefAudio:          p.RefAudio,
			MediaWidth:        tpl.MediaWidth,
			MediaHeight:       tpl.MediaHeight,
			MediaWorkflow:     p.MediaWorkflow,
			FrameTemplate:     p.FrameTemplate,
			TemplateParams:    p.TemplateParams,
		},
		ContentMetadata: p.ContentMetadata,
		CreatedAt:       now,
	}
	for i, narration := range narrations {
		sb.Frames = append(sb.Frames, &storyboard.Frame{
			Index:       i,
			Narration:   narration,
			MediaPrompt: prompts[i],
			CreatedAt:   now,
		})
	}
	return sb
}

// scaleFrameSteps maps frame-local step fractions into frame i's slice of the
// overall progress range.
func scaleFrameSteps(progress storyboard.ProgressFunc, i, total int) storyboard.ProgressFunc {
	return func(ev storyboard.ProgressEvent) {
		if ev.Kind == storyboard.EventFrameStep {
			ev.Progress = progFrameBase + progFrameRange*(float64(i)+ev.Progress)/float64(total)
		}
		progress.Report(ev)
	}
}

func (s *Standard) persist(taskID string, sb *storyboard.Storyboard, res *storyboard.Result) {
	if s.Store == nil {
		return
	}
	if err := s.Store.SaveStoryboard(taskID, sb); err != nil {
		log.Printf("[pipeline] Task %s: storyboard persist failed: %v", taskID, err)
	}
	if err := s.Store.SaveResult(taskID, res); err != nil {
		log.Printf("[pipeline] Task %s: result persist failed: %v", taskID, err)
	}
}

func copyFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()
	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
