package storyboard

import "time"

// TTSMode selects how narration audio is synthesized.
type TTSMode string

const (
	TTSLocal          TTSMode = "local"
	TTSRemoteWorkflow TTSMode = "remote-workflow"
)

// MediaType tags the generated media attached to a frame. Empty means the
// frame carries no generated media.
type MediaType string

const (
	MediaImage MediaType = "image"
	MediaVideo MediaType = "video"
)

// Config holds the immutable parameters of one generation job. Media width
// and height always come from the resolved frame template, never from the
// caller directly.
type Config struct {
	TaskID             string            `json:"task_id"`
	NumScenes          int               `json:"n_scenes"`
	MinNarrationWords  int               `json:"min_narration_words"`
	MaxNarrationWords  int               `json:"max_narration_words"`
	MinPromptWords     int               `json:"min_prompt_words"`
	MaxPromptWords     int               `json:"max_prompt_words"`
	VideoFPS           int               `json:"video_fps"`
	TTSMode            TTSMode           `json:"tts_mode"`
	VoiceID            string            `json:"voice_id,omitempty"`
	TTSSpeed           float64           `json:"tts_speed,omitempty"`
	TTSWorkflow        string            `json:"tts_workflow,omitempty"`
	RefAudio           string            `json:"ref_audio,omitempty"`
	MediaWidth         int               `json:"media_width"`
	MediaHeight        int               `json:"media_height"`
	MediaWorkflow      string            `json:"media_workflow,omitempty"`
	FrameTemplate      string            `json:"frame_template"`
	TemplateParams     map[string]string `json:"template_params,omitempty"`
}

// Frame is one narration segment and its derived artifacts. Each path and
// the duration are filled exactly once by the owning pipeline step.
type Frame struct {
	Index             int       `json:"index"`
	Narration         string    `json:"narration"`
	MediaPrompt       *string   `json:"media_prompt"`
	AudioPath         string    `json:"audio_path,omitempty"`
	MediaType         MediaType `json:"media_type,omitempty"`
	ImagePath         string    `json:"image_path,omitempty"`
	VideoPath         string    `json:"video_path,omitempty"`
	ComposedImagePath string    `json:"composed_image_path,omitempty"`
	SegmentPath       string    `json:"segment_path,omitempty"`
	Duration          float64   `json:"duration"`
	CreatedAt         time.Time `json:"created_at"`
}

// NeedsMedia reports whether step 2 of frame processing runs for this frame.
func (f *Frame) NeedsMedia() bool {
	return f.MediaPrompt != nil
}

// ContentMetadata is optional descriptive overlay data consumed only by
// frame composition.
type ContentMetadata struct {
	Title    string `json:"title,omitempty"`
	Author   string `json:"author,omitempty"`
	Subtitle string `json:"subtitle,omitempty"`
	Genre    string `json:"genre,omitempty"`
}

// Storyboard is the full plan and accumulated state of one job. Frame order
// is presentation order; Frames[i].Index == i always holds.
type Storyboard struct {
	Title           string           `json:"title"`
	Config          Config           `json:"config"`
	Frames          []*Frame         `json:"frames"`
	ContentMetadata *ContentMetadata `json:"content_metadata,omitempty"`
	FinalVideoPath  string           `json:"final_video_path,omitempty"`
	TotalDuration   float64          `json:"total_duration"`
	CreatedAt       time.Time        `json:"created_at"`
	CompletedAt     *time.Time       `json:"completed_at,omitempty"`
}

// Result is the terminal snapshot of a successful generation job.
type Result struct {
	VideoPath  string      `json:"video_path"`
	Duration   float64     `json:"duration"`
	FileSize   int64       `json:"file_size"`
	Storyboard *Storyboard `json:"storyboard,omitempty"`
}
