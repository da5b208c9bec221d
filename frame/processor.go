// Package frame processes a single storyboard frame through the four-step
// pipeline: synthesize audio, generate media (when the frame carries a
// prompt), compose the overlay frame, and assemble the video segment.
package frame

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"storyreel/media"
	"storyreel/storyboard"
	"storyreel/template"
	"storyreel/tts"
)

// Speech synthesizes narration audio.
type Speech interface {
	Synthesize(ctx context.Context, req tts.Request) (string, error)
}

// MediaGenerator produces and downloads generated media assets.
type MediaGenerator interface {
	Generate(ctx context.Context, req media.Request) (*media.Result, error)
	Download(ctx context.Context, url, dest string) error
}

// Renderer renders the composed frame image for one unit.
type Renderer interface {
	Render(ctx context.Context, tpl *template.Template, in template.RenderInput) (string, error)
}

// Assembler is the subset of video operations one frame needs.
type Assembler interface {
	ProbeDuration(ctx context.Context, path string) (float64, error)
	OverlayImage(ctx context.Context, video, overlay, output string, width, height int) error
	MergeAudio(ctx context.Context, video, audio, output string, replace bool, volume float64) error
	CreateFromImage(ctx context.Context, image, audio, output string, fps int) error
}

// Processor runs the per-frame state machine. Template is the resolved
// frame template of the owning storyboard; TaskDir is the job's working
// directory.
type Processor struct {
	TTS      Speech
	Media    MediaGenerator
	Renderer Renderer
	Video    Assembler
	Template *template.Template
	TaskDir  string
}

// Bytes of audio that roughly encode one second, used when probing fails.
const bytesPerSecond = 2000

// Process runs all steps for fr in order, filling its path and duration
// fields. Any step failure aborts the frame and propagates; retry is the
// caller's concern.
func (p *Processor) Process(ctx context.Context, fr *storyboard.Frame, sb *storyboard.Storyboard, totalFrames int, progress storyboard.ProgressFunc) error {
	log.Printf("[frame] Processing frame %d/%d...", fr.Index+1, totalFrames)

	needsMedia := fr.NeedsMedia()
	step := func(n int, frac float64, action string) {
		progress.Report(storyboard.ProgressEvent{
			Kind:         storyboard.EventFrameStep,
			Progress:     frac,
			FrameCurrent: fr.Index + 1,
			FrameTotal:   totalFrames,
			Step:         n,
			Action:       action,
		})
	}

	// Step 1: synthesize audio.
	step(1, 0.0, "audio")
	if err := p.generateAudio(ctx, fr, &sb.Config); err != nil {
		return fmt.Errorf("frame %d audio: %w", fr.Index, err)
	}

	// Step 2: generate media, only when the frame has a prompt. A skipped
	// frame gets its media fields cleared explicitly so composition and
	// assembly branch on a known state.
	if needsMedia {
		step(2, 0.25, "media")
		if err := p.generateMedia(ctx, fr, &sb.Config); err != nil {
			return fmt.Errorf("frame %d media: %w", fr.Index, err)
		}
	} else {
		fr.MediaType = ""
		fr.ImagePath = ""
		log.Printf("[frame] Frame %d: media generation skipped (no prompt)", fr.Index)
	}

	// Step 3: compose the overlay frame.
	if needsMedia {
		step(3, 0.50, "compose")
	} else {
		step(3, 0.33, "compose")
	}
	if err := p.composeFrame(ctx, fr, sb); err != nil {
		return fmt.Errorf("frame %d compose: %w", fr.Index, err)
	}

	// Step 4: assemble the segment.
	if needsMedia {
		step(4, 0.75, "video")
	} else {
		step(4, 0.67, "video")
	}
	if err := p.assembleSegment(ctx, fr, &sb.Config); err != nil {
		return fmt.Errorf("frame %d segment: %w", fr.Index, err)
	}

	log.Printf("[frame] Frame %d done (%.2fs)", fr.Index, fr.Duration)
	return nil
}

func (p *Processor) generateAudio(ctx context.Context, fr *storyboard.Frame, cfg *storyboard.Config) error {
	req := tts.Request{
		Text:       fr.Narration,
		Mode:       cfg.TTSMode,
		OutputPath: p.framePath(fr.Index, "audio", "mp3"),
	}
	// The applicable parameter set differs per mode; sending remote-only
	// fields in local mode (or vice versa) is a defect.
	switch cfg.TTSMode {
	case storyboard.TTSLocal:
		req.Voice = cfg.VoiceID
		req.Speed = cfg.TTSSpeed
	case storyboard.TTSRemoteWorkflow:
		req.Workflow = cfg.TTSWorkflow
		req.Voice = cfg.VoiceID
		req.Speed = cfg.TTSSpeed
		req.RefAudio = cfg.RefAudio
	default:
		return fmt.Errorf("unknown tts mode %q", cfg.TTSMode)
	}

	audioPath, err := p.TTS.Synthesize(ctx, req)
	if err != nil {
		return err
	}
	fr.AudioPath = audioPath
	fr.Duration = p.audioDuration(ctx, audioPath)
	return nil
}

// audioDuration probes the container; when that fails it estimates from the
// file size and floors at one second.
func (p *Processor) audioDuration(ctx context.Context, path string) float64 {
	dur, err := p.Video.ProbeDuration(ctx, path)
	if err == nil {
		return dur
	}
	log.Printf("[frame] Duration probe failed for %s: %v, estimating from size", filepath.Base(path), err)

	est := 1.0
	if fi, statErr := os.Stat(path); statErr == nil {
		est = float64(fi.Size()) / bytesPerSecond
	}
	if est < 1.0 {
		est = 1.0
	}
	return est
}

func (p *Processor) generateMedia(ctx context.Context, fr *storyboard.Frame, cfg *storyboard.Config) error {
	mediaType := classifyWorkflow(cfg.MediaWorkflow)

	result, err := p.Media.Generate(ctx, media.Request{
		Prompt:   *fr.MediaPrompt,
		Workflow: cfg.MediaWorkflow,
		Type:     mediaType,
		Width:    cfg.MediaWidth,
		Height:   cfg.MediaHeight,
	})
	if err != nil {
		return err
	}
	fr.MediaType = result.Type

	switch result.Type {
	case storyboard.MediaImage:
		dest := p.framePath(fr.Index, "image", "png")
		if err := p.Media.Download(ctx, result.URL, dest); err != nil {
			return err
		}
		fr.ImagePath = dest

	case storyboard.MediaVideo:
		dest := p.framePath(fr.Index, "video", "mp4")
		if err := p.Media.Download(ctx, result.URL, dest); err != nil {
			return err
		}
		fr.VideoPath = dest

		// The visual track dictates the segment length, so its duration
		// supersedes the audio-derived one. Prefer the backend's figure.
		if result.Duration > 0 {
			fr.Duration = result.Duration
		} else if dur, probeErr := p.Video.ProbeDuration(ctx, dest); probeErr == nil {
			fr.Duration = dur
		}

	default:
		return fmt.Errorf("unknown media type %q", result.Type)
	}
	return nil
}

// classifyWorkflow infers the target media type from the workflow naming
// convention: identifiers containing "video_" produce video.
func classifyWorkflow(workflow string) storyboard.MediaType {
	if strings.Contains(strings.ToLower(workflow), "video_") {
		return storyboard.MediaVideo
	}
	return storyboard.MediaImage
}

func (p *Processor) composeFrame(ctx context.Context, fr *storyboard.Frame, sb *storyboard.Storyboard) error {
	ext := map[string]string{}
	if cm := sb.ContentMetadata; cm != nil {
		ext["content_title"] = cm.Title
		ext["content_author"] = cm.Author
		ext["content_subtitle"] = cm.Subtitle
		ext["content_genre"] = cm.Genre
	}
	for k, v := range sb.Config.TemplateParams {
		ext[k] = v
	}

	composed, err := p.Renderer.Render(ctx, p.Template, template.RenderInput{
		Title:      sb.Title,
		Text:       fr.Narration,
		ImagePath:  fr.ImagePath,
		Ext:        ext,
		OutputPath: p.framePath(fr.Index, "composed", "png"),
	})
	if err != nil {
		return err
	}
	fr.ComposedImagePath = composed
	return nil
}

func (p *Processor) assembleSegment(ctx context.Context, fr *storyboard.Frame, cfg *storyboard.Config) error {
	output := p.framePath(fr.Index, "segment", "mp4")

	switch fr.MediaType {
	case storyboard.MediaVideo:
		// Overlay the transparent composed frame on the generated video,
		// then put the narration on it, replacing whatever audio the
		// generated video carried.
		overlaid := p.framePath(fr.Index, "overlay", "mp4")
		if err := p.Video.OverlayImage(ctx, fr.VideoPath, fr.ComposedImagePath, overlaid, p.Template.Width, p.Template.Height); err != nil {
			return err
		}
		if err := p.Video.MergeAudio(ctx, overlaid, fr.AudioPath, output, true, 1.0); err != nil {
			return err
		}
		if err := os.Remove(overlaid); err != nil {
			log.Printf("[frame] Could not remove intermediate %s: %v", overlaid, err)
		}

	case storyboard.MediaImage, "":
		if err := p.Video.CreateFromImage(ctx, fr.ComposedImagePath, fr.AudioPath, output, cfg.VideoFPS); err != nil {
			return err
		}

	default:
		return fmt.Errorf("unknown media type %q", fr.MediaType)
	}

	fr.SegmentPath = output
	return nil
}

func (p *Processor) framePath(index int, kind, ext string) string {
	return filepath.Join(p.TaskDir, "frames", fmt.Sprintf("%02d_%s.%s", index, kind, ext))
}
