package frame

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storyreel/media"
	"storyreel/storyboard"
	"storyreel/template"
	"storyreel/tts"
)

type fakeSpeech struct {
	err   error
	bytes []byte
}

func (f *fakeSpeech) Synthesize(_ context.Context, req tts.Request) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if err := os.MkdirAll(filepath.Dir(req.OutputPath), 0755); err != nil {
		return "", err
	}
	if err := os.WriteFile(req.OutputPath, f.bytes, 0644); err != nil {
		return "", err
	}
	return req.OutputPath, nil
}

type fakeMedia struct {
	result    *media.Result
	generated []media.Request
}

func (f *fakeMedia) Generate(_ context.Context, req media.Request) (*media.Result, error) {
	f.generated = append(f.generated, req)
	if f.result == nil {
		return nil, fmt.Errorf("backend down")
	}
	return f.result, nil
}

func (f *fakeMedia) Download(_ context.Context, _, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return err
	}
	return os.WriteFile(dest, []byte("asset"), 0644)
}

type fakeRenderer struct {
	inputs []template.RenderInput
}

func (f *fakeRenderer) Render(_ context.Context, _ *template.Template, in template.RenderInput) (string, error) {
	f.inputs = append(f.inputs, in)
	if err := os.MkdirAll(filepath.Dir(in.OutputPath), 0755); err != nil {
		return "", err
	}
	if err := os.WriteFile(in.OutputPath, []byte("png"), 0644); err != nil {
		return "", err
	}
	return in.OutputPath, nil
}

type fakeAssembler struct {
	probeDur   float64
	probeErr   error
	overlays   int
	merges     int
	stills     int
	lastMerge  struct{ replace bool }
	lastStill  struct{ fps int }
	mergeInput string
}

func (f *fakeAssembler) ProbeDuration(_ context.Context, _ string) (float64, error) {
	return f.probeDur, f.probeErr
}

func (f *fakeAssembler) OverlayImage(_ context.Context, _, _, output string, _, _ int) error {
	f.overlays++
	return os.WriteFile(output, []byte("mp4"), 0644)
}

func (f *fakeAssembler) MergeAudio(_ context.Context, video, _, output string, replace bool, _ float64) error {
	f.merges++
	f.lastMerge.replace = replace
	f.mergeInput = video
	return os.WriteFile(output, []byte("mp4"), 0644)
}

func (f *fakeAssembler) CreateFromImage(_ context.Context, _, _, output string, fps int) error {
	f.stills++
	f.lastStill.fps = fps
	return os.WriteFile(output, []byte("mp4"), 0644)
}

func newTestStoryboard() *storyboard.Storyboard {
	return &storyboard.Storyboard{
		Title: "Night Shift",
		Config: storyboard.Config{
			TaskID:        "t1",
			VideoFPS:      30,
			TTSMode:       storyboard.TTSLocal,
			VoiceID:       "en-US-GuyNeural",
			MediaWidth:    1024,
			MediaHeight:   1024,
			MediaWorkflow: "flux_image",
		},
	}
}

func newProcessor(t *testing.T, sp Speech, mg MediaGenerator, as Assembler) (*Processor, *fakeRenderer) {
	t.Helper()
	r := &fakeRenderer{}
	p := &Processor{
		TTS:      sp,
		Media:    mg,
		Renderer: r,
		Video:    as,
		Template: &template.Template{Width: 1080, Height: 1920},
		TaskDir:  t.TempDir(),
	}
	return p, r
}

func strPtr(s string) *string { return &s }

func TestProcessImageFrame(t *testing.T) {
	sp := &fakeSpeech{bytes: []byte("audio")}
	mg := &fakeMedia{result: &media.Result{URL: "http://x/a.png", Type: storyboard.MediaImage}}
	as := &fakeAssembler{probeDur: 4.2}
	p, r := newProcessor(t, sp, mg, as)

	sb := newTestStoryboard()
	fr := &storyboard.Frame{Index: 0, Narration: "A quiet street.", MediaPrompt: strPtr("rainy street at night")}

	var steps []float64
	progress := func(ev storyboard.ProgressEvent) {
		if ev.Kind == storyboard.EventFrameStep {
			steps = append(steps, ev.Progress)
		}
	}

	require.NoError(t, p.Process(context.Background(), fr, sb, 5, progress))

	assert.Equal(t, []float64{0.0, 0.25, 0.50, 0.75}, steps)
	assert.Equal(t, storyboard.MediaImage, fr.MediaType)
	assert.NotEmpty(t, fr.ImagePath)
	assert.NotEmpty(t, fr.AudioPath)
	assert.NotEmpty(t, fr.ComposedImagePath)
	assert.NotEmpty(t, fr.SegmentPath)
	assert.InDelta(t, 4.2, fr.Duration, 0.001)

	assert.Equal(t, 1, as.stills)
	assert.Equal(t, 30, as.lastStill.fps)
	assert.Zero(t, as.overlays)
	assert.Zero(t, as.merges)

	require.Len(t, r.inputs, 1)
	assert.Equal(t, "Night Shift", r.inputs[0].Title)
	assert.Equal(t, fr.ImagePath, r.inputs[0].ImagePath)
}

func TestProcessVideoFrame(t *testing.T) {
	sp := &fakeSpeech{bytes: []byte("audio")}
	mg := &fakeMedia{result: &media.Result{URL: "http://x/a.mp4", Type: storyboard.MediaVideo, Duration: 6.5}}
	as := &fakeAssembler{probeDur: 4.2}
	p, _ := newProcessor(t, sp, mg, as)

	sb := newTestStoryboard()
	sb.Config.MediaWorkflow = "video_wan"
	fr := &storyboard.Frame{Index: 1, Narration: "The chase begins.", MediaPrompt: strPtr("car chase")}

	require.NoError(t, p.Process(context.Background(), fr, sb, 5, nil))

	assert.Equal(t, storyboard.MediaVideo, fr.MediaType)
	assert.NotEmpty(t, fr.VideoPath)
	assert.InDelta(t, 6.5, fr.Duration, 0.001, "backend duration wins over audio duration")

	assert.Equal(t, 1, as.overlays)
	assert.Equal(t, 1, as.merges)
	assert.True(t, as.lastMerge.replace, "narration replaces the generated video's audio")
	assert.Zero(t, as.stills)

	// The intermediate overlay file is removed after the merge.
	assert.NoFileExists(t, as.mergeInput)

	require.Len(t, mg.generated, 1)
	assert.Equal(t, storyboard.MediaVideo, mg.generated[0].Type)
}

func TestProcessSkipsMediaWithoutPrompt(t *testing.T) {
	sp := &fakeSpeech{bytes: []byte("audio")}
	mg := &fakeMedia{}
	as := &fakeAssembler{probeDur: 3.0}
	p, r := newProcessor(t, sp, mg, as)

	sb := newTestStoryboard()
	fr := &storyboard.Frame{
		Index:     2,
		Narration: "Just words.",
		MediaType: storyboard.MediaImage, // stale value from a prior run
		ImagePath: "/old/path.png",
	}

	var steps []float64
	progress := func(ev storyboard.ProgressEvent) {
		if ev.Kind == storyboard.EventFrameStep {
			steps = append(steps, ev.Progress)
		}
	}

	require.NoError(t, p.Process(context.Background(), fr, sb, 5, progress))

	assert.Equal(t, []float64{0.0, 0.33, 0.67}, steps)
	assert.Empty(t, mg.generated, "no generation call without a prompt")
	assert.Empty(t, string(fr.MediaType))
	assert.Empty(t, fr.ImagePath)
	assert.Equal(t, 1, as.stills)

	require.Len(t, r.inputs, 1)
	assert.Empty(t, r.inputs[0].ImagePath)
}

func TestProcessAudioFailureAborts(t *testing.T) {
	sp := &fakeSpeech{err: fmt.Errorf("edge-tts exited 1")}
	mg := &fakeMedia{result: &media.Result{URL: "http://x/a.png", Type: storyboard.MediaImage}}
	as := &fakeAssembler{}
	p, r := newProcessor(t, sp, mg, as)

	sb := newTestStoryboard()
	fr := &storyboard.Frame{Index: 0, Narration: "x", MediaPrompt: strPtr("p")}

	err := p.Process(context.Background(), fr, sb, 1, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "audio")
	assert.Empty(t, mg.generated, "later steps do not run after a failure")
	assert.Empty(t, r.inputs)
}

func TestAudioDurationFallback(t *testing.T) {
	as := &fakeAssembler{probeErr: fmt.Errorf("ffprobe missing")}
	p := &Processor{Video: as, TaskDir: t.TempDir()}

	// 8000 bytes at 2000 bytes/sec = 4 seconds.
	path := filepath.Join(t.TempDir(), "a.mp3")
	require.NoError(t, os.WriteFile(path, make([]byte, 8000), 0644))
	assert.InDelta(t, 4.0, p.audioDuration(context.Background(), path), 0.001)

	// Tiny files floor at one second.
	small := filepath.Join(t.TempDir(), "b.mp3")
	require.NoError(t, os.WriteFile(small, make([]byte, 100), 0644))
	assert.InDelta(t, 1.0, p.audioDuration(context.Background(), small), 0.001)
}

func TestClassifyWorkflow(t *testing.T) {
	tests := []struct {
		workflow string
		want     storyboard.MediaType
	}{
		{"flux_image", storyboard.MediaImage},
		{"video_wan21", storyboard.MediaVideo},
		{"Video_Wan21", storyboard.MediaVideo},
		{"wan_video_hd", storyboard.MediaVideo},
		{"videogen", storyboard.MediaImage},
		{"", storyboard.MediaImage},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, classifyWorkflow(tt.workflow), tt.workflow)
	}
}
