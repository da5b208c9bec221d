// Package video wraps the ffmpeg/ffprobe operations the pipeline needs:
// duration probing, image-over-video overlay, audio merging, still-image
// segments, and final concatenation with optional background music.
package video

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

var execCommand = exec.CommandContext

// BGMMode controls background-music behavior during concatenation. Once
// plays the track through without looping even if it is shorter than the
// video; Loop repeats it to cover the full duration.
type BGMMode string

const (
	BGMOnce BGMMode = "once"
	BGMLoop BGMMode = "loop"
)

// BGMOptions is the optional background-audio mix for Concat. A zero value
// (empty Path) means no BGM.
type BGMOptions struct {
	Path   string
	Volume float64
	Mode   BGMMode
}

// FFmpeg shells out to the ffmpeg and ffprobe binaries on PATH.
type FFmpeg struct{}

func New() *FFmpeg { return &FFmpeg{} }

// ProbeDuration reads the container duration in seconds.
func (f *FFmpeg) ProbeDuration(ctx context.Context, path string) (float64, error) {
	out, err := execCommand(ctx, "ffprobe",
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	).Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe %s: %w", filepath.Base(path), err)
	}
	dur, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration of %s: %w", filepath.Base(path), err)
	}
	return dur, nil
}

// OverlayImage composites overlay on top of video on a width x height
// canvas. The video is scaled to fit inside the canvas (contain), the
// overlay keeps its native size. The overlay's alpha decides what shows
// through.
func (f *FFmpeg) OverlayImage(ctx context.Context, video, overlay, output string, width, height int) error {
	filter := fmt.Sprintf(
		"[0:v]scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2,setsar=1[base];[base][1:v]overlay=0:0",
		width, height, width, height,
	)
	cmd := execCommand(ctx, "ffmpeg", "-y",
		"-i", video,
		"-i", overlay,
		"-filter_complex", filter,
		"-c:v", "libx264",
		"-preset", "fast",
		"-crf", "23",
		"-pix_fmt", "yuv420p",
		output,
	)
	return run(cmd, "overlay")
}

// MergeAudio writes video's visual track plus audio into output. With
// replace set, any audio track the video carried is discarded, not mixed.
func (f *FFmpeg) MergeAudio(ctx context.Context, video, audio, output string, replace bool, volume float64) error {
	args := []string{"-y", "-i", video, "-i", audio}
	if replace {
		args = append(args,
			"-map", "0:v:0",
			"-map", "1:a:0",
			"-c:v", "copy",
		)
		if volume > 0 && volume != 1.0 {
			args = append(args, "-filter:a", fmt.Sprintf("volume=%.2f", volume))
		}
	} else {
		filter := fmt.Sprintf("[1:a]volume=%.2f[n];[0:a][n]amix=inputs=2:duration=first[a]", volume)
		args = append(args,
			"-filter_complex", filter,
			"-map", "0:v:0",
			"-map", "[a]",
			"-c:v", "copy",
		)
	}
	args = append(args, "-shortest", output)
	return run(execCommand(ctx, "ffmpeg", args...), "merge audio")
}

// CreateFromImage builds a video segment from a single still image and an
// audio track, lasting as long as the audio.
func (f *FFmpeg) CreateFromImage(ctx context.Context, image, audio, output string, fps int) error {
	cmd := execCommand(ctx, "ffmpeg", "-y",
		"-loop", "1",
		"-i", image,
		"-i", audio,
		"-c:v", "libx264",
		"-preset", "fast",
		"-crf", "23",
		"-r", strconv.Itoa(fps),
		"-pix_fmt", "yuv420p",
		"-c:a", "aac",
		"-shortest",
		output,
	)
	return run(cmd, "image segment")
}

// Concat joins segments in order into output, optionally mixing in BGM.
func (f *FFmpeg) Concat(ctx context.Context, segments []string, output string, bgm BGMOptions) (string, error) {
	if len(segments) == 0 {
		return "", fmt.Errorf("no segments to concatenate")
	}

	listFile := output + ".concat.txt"
	var lines []string
	for _, seg := range segments {
		lines = append(lines, fmt.Sprintf("file '%s'", seg))
	}
	if err := os.WriteFile(listFile, []byte(strings.Join(lines, "\n")), 0644); err != nil {
		return "", err
	}
	defer os.Remove(listFile)

	concatTarget := output
	if bgm.Path != "" {
		concatTarget = output + ".nobgm.mp4"
		defer os.Remove(concatTarget)
	}

	cmd := execCommand(ctx, "ffmpeg", "-y",
		"-f", "concat",
		"-safe", "0",
		"-i", listFile,
		"-c", "copy",
		concatTarget,
	)
	if err := run(cmd, "concat"); err != nil {
		return "", err
	}

	if bgm.Path == "" {
		return output, nil
	}
	if err := f.mixBGM(ctx, concatTarget, output, bgm); err != nil {
		return "", err
	}
	return output, nil
}

func (f *FFmpeg) mixBGM(ctx context.Context, video, output string, bgm BGMOptions) error {
	args := []string{"-y", "-i", video}
	if bgm.Mode == BGMLoop {
		args = append(args, "-stream_loop", "-1")
	}
	args = append(args, "-i", bgm.Path)

	filter := fmt.Sprintf(
		"[1:a]volume=%.2f[b];[0:a][b]amix=inputs=2:duration=first:dropout_transition=0[a]",
		bgm.Volume,
	)
	args = append(args,
		"-filter_complex", filter,
		"-map", "0:v",
		"-map", "[a]",
		"-c:v", "copy",
		"-shortest",
		output,
	)
	return run(execCommand(ctx, "ffmpeg", args...), "bgm mix")
}

func run(cmd *exec.Cmd, op string) error {
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("ffmpeg %s: %w: %s", op, err, lastLines(string(out), 5))
	}
	return nil
}

func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
