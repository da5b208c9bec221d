package storyboard

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNeedsMedia(t *testing.T) {
	prompt := "a foggy pier"
	assert.True(t, (&Frame{MediaPrompt: &prompt}).NeedsMedia())
	assert.False(t, (&Frame{}).NeedsMedia())

	// An empty prompt string still requests media; only null opts out.
	empty := ""
	assert.True(t, (&Frame{MediaPrompt: &empty}).NeedsMedia())
}

func TestFrameJSONNullPrompt(t *testing.T) {
	data, err := json.Marshal(&Frame{Index: 0, Narration: "x"})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"media_prompt":null`)

	var fr Frame
	require.NoError(t, json.Unmarshal([]byte(`{"index":1,"narration":"y","media_prompt":null}`), &fr))
	assert.Nil(t, fr.MediaPrompt)

	require.NoError(t, json.Unmarshal([]byte(`{"media_prompt":"a pier"}`), &fr))
	require.NotNil(t, fr.MediaPrompt)
	assert.Equal(t, "a pier", *fr.MediaPrompt)
}

func TestProgressFuncNilSafe(t *testing.T) {
	var f ProgressFunc
	assert.NotPanics(t, func() {
		f.Report(ProgressEvent{Kind: EventCompleted, Progress: 1.0})
	})

	var got []ProgressEvent
	f = func(ev ProgressEvent) { got = append(got, ev) }
	f.Report(ProgressEvent{Kind: EventInitializing, Progress: 0.05})
	require.Len(t, got, 1)
	assert.Equal(t, EventInitializing, got[0].Kind)
}
