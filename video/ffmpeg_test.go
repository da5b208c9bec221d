package video

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubCommands replaces execCommand with a no-op that records every
// invocation's argv.
func stubCommands(t *testing.T) *[][]string {
	t.Helper()
	var calls [][]string
	orig := execCommand
	execCommand = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		calls = append(calls, append([]string{name}, args...))
		return exec.CommandContext(ctx, "true")
	}
	t.Cleanup(func() { execCommand = orig })
	return &calls
}

func argsOf(t *testing.T, calls [][]string, i int) string {
	t.Helper()
	require.Greater(t, len(calls), i)
	return strings.Join(calls[i], " ")
}

func TestMergeAudioReplaceMapsNarrationOnly(t *testing.T) {
	calls := stubCommands(t)
	f := New()

	require.NoError(t, f.MergeAudio(context.Background(), "v.mp4", "a.mp3", "out.mp4", true, 1.0))
	args := argsOf(t, *calls, 0)
	assert.Contains(t, args, "-map 0:v:0")
	assert.Contains(t, args, "-map 1:a:0")
	assert.NotContains(t, args, "amix", "replace discards the original audio, no mixing")
}

func TestMergeAudioMix(t *testing.T) {
	calls := stubCommands(t)
	f := New()

	require.NoError(t, f.MergeAudio(context.Background(), "v.mp4", "a.mp3", "out.mp4", false, 0.5))
	args := argsOf(t, *calls, 0)
	assert.Contains(t, args, "amix=inputs=2")
	assert.Contains(t, args, "volume=0.50")
}

func TestCreateFromImageLoopsAndStopsWithAudio(t *testing.T) {
	calls := stubCommands(t)
	f := New()

	require.NoError(t, f.CreateFromImage(context.Background(), "frame.png", "a.mp3", "out.mp4", 24))
	args := argsOf(t, *calls, 0)
	assert.Contains(t, args, "-loop 1")
	assert.Contains(t, args, "-r 24")
	assert.Contains(t, args, "-shortest")
}

func TestConcatWritesOrderedListFile(t *testing.T) {
	var listContent string
	orig := execCommand
	execCommand = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		for i, a := range args {
			if a == "-i" && i+1 < len(args) {
				if data, err := os.ReadFile(args[i+1]); err == nil {
					listContent = string(data)
				}
			}
		}
		return exec.CommandContext(ctx, "true")
	}
	t.Cleanup(func() { execCommand = orig })

	out := filepath.Join(t.TempDir(), "final.mp4")
	f := New()
	got, err := f.Concat(context.Background(), []string{"/w/00.mp4", "/w/01.mp4", "/w/02.mp4"}, out, BGMOptions{})
	require.NoError(t, err)
	assert.Equal(t, out, got)

	lines := strings.Split(strings.TrimSpace(listContent), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "file '/w/00.mp4'", lines[0])
	assert.Equal(t, "file '/w/02.mp4'", lines[2])
}

func TestConcatRejectsEmptyInput(t *testing.T) {
	f := New()
	_, err := f.Concat(context.Background(), nil, "out.mp4", BGMOptions{})
	assert.ErrorContains(t, err, "no segments")
}

func TestConcatBGMModes(t *testing.T) {
	calls := stubCommands(t)
	out := filepath.Join(t.TempDir(), "final.mp4")
	f := New()

	_, err := f.Concat(context.Background(), []string{"a.mp4"}, out, BGMOptions{
		Path: "bgm.mp3", Volume: 0.2, Mode: BGMLoop,
	})
	require.NoError(t, err)
	// Second call is the bgm mix; looping repeats the track to cover.
	mix := argsOf(t, *calls, 1)
	assert.Contains(t, mix, "-stream_loop -1")
	assert.Contains(t, mix, "volume=0.20")

	*calls = nil
	_, err = f.Concat(context.Background(), []string{"a.mp4"}, out, BGMOptions{
		Path: "bgm.mp3", Volume: 0.2, Mode: BGMOnce,
	})
	require.NoError(t, err)
	mix = argsOf(t, *calls, 1)
	assert.NotContains(t, mix, "-stream_loop", "once mode plays through without looping")
}

func TestLastLines(t *testing.T) {
	assert.Equal(t, "d\ne", lastLines("a\nb\nc\nd\ne", 2))
	assert.Equal(t, "a\nb", lastLines("a\nb", 5))
}
