package storyboard

// EventKind names a stage of pipeline execution.
type EventKind string

const (
	EventInitializing  EventKind = "initializing"
	EventNarrations    EventKind = "generating_narrations"
	EventPrompts       EventKind = "generating_prompts"
	EventFrame         EventKind = "processing_frame"
	EventFrameStep     EventKind = "frame_step"
	EventConcatenating EventKind = "concatenating"
	EventCompleted     EventKind = "completed"
	EventFailed        EventKind = "failed"
)

// ProgressEvent is broadcast during execution. Progress is in [0.0, 1.0] and
// is non-decreasing by convention only; receivers must tolerate out-of-order
// delivery from concurrently reported sub-steps.
type ProgressEvent struct {
	Kind         EventKind `json:"kind"`
	Progress     float64   `json:"progress"`
	FrameCurrent int       `json:"frame_current,omitempty"`
	FrameTotal   int       `json:"frame_total,omitempty"`
	Step         int       `json:"step,omitempty"`
	Action       string    `json:"action,omitempty"`
	Message      string    `json:"message,omitempty"`
}

// ProgressFunc receives progress events. A nil ProgressFunc is always valid.
type ProgressFunc func(ProgressEvent)

// Report invokes f if non-nil.
func (f ProgressFunc) Report(ev ProgressEvent) {
	if f != nil {
		f(ev)
	}
}
