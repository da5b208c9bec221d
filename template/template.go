// Package template resolves frame templates and renders composed frames
// through an external HTML-to-image renderer.
//
// A template reference looks like "1080x1920/default.html": the leading path
// segment declares the frame canvas size. The template file itself declares
// what generated media it needs and at what size via meta tags:
//
//	<meta name="media" content="static|image|video">
//	<meta name="media-size" content="1024x1024">
package template

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// Requirement is the kind of generated media a template consumes. Static
// templates consume none, so prompt generation is skipped entirely for them.
type Requirement string

const (
	RequireStatic Requirement = "static"
	RequireImage  Requirement = "image"
	RequireVideo  Requirement = "video"
)

// Template is a resolved frame template with its declared sizes.
type Template struct {
	Ref         string // reference as given, e.g. "1080x1920/default.html"
	Path        string // absolute or dir-relative file path
	Width       int    // frame canvas width, from the ref path
	Height      int    // frame canvas height, from the ref path
	MediaWidth  int    // declared generated-media width
	MediaHeight int    // declared generated-media height
	Media       Requirement
}

var (
	sizeSegmentRe = regexp.MustCompile(`^(\d+)x(\d+)$`)
	metaTagRe     = regexp.MustCompile(`<meta\s+name="([^"]+)"\s+content="([^"]+)"`)
)

// Resolve locates ref under dir and reads its declared sizes and media
// requirement. The media size defaults to the canvas size when the template
// does not declare one.
func Resolve(dir, ref string) (*Template, error) {
	if ref == "" {
		return nil, fmt.Errorf("frame template is required")
	}

	path := ref
	if !filepath.IsAbs(path) {
		path = filepath.Join(dir, ref)
	}

	w, h, err := parseSizeSegment(ref)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read template %s: %w", ref, err)
	}

	tpl := &Template{
		Ref:         ref,
		Path:        path,
		Width:       w,
		Height:      h,
		MediaWidth:  w,
		MediaHeight: h,
		Media:       RequireImage,
	}

	for _, m := range metaTagRe.FindAllStringSubmatch(string(data), -1) {
		switch m[1] {
		case "media":
			switch Requirement(m[2]) {
			case RequireStatic, RequireImage, RequireVideo:
				tpl.Media = Requirement(m[2])
			default:
				return nil, fmt.Errorf("template %s: unknown media requirement %q", ref, m[2])
			}
		case "media-size":
			mw, mh, err := parseSize(m[2])
			if err != nil {
				return nil, fmt.Errorf("template %s: %w", ref, err)
			}
			tpl.MediaWidth, tpl.MediaHeight = mw, mh
		}
	}
	return tpl, nil
}

func parseSizeSegment(ref string) (int, int, error) {
	seg := ref
	if i := strings.IndexByte(ref, '/'); i >= 0 {
		seg = ref[:i]
	}
	if !sizeSegmentRe.MatchString(seg) {
		return 0, 0, fmt.Errorf("template ref %q must start with a WxH segment", ref)
	}
	return parseSize(seg)
}

func parseSize(s string) (int, int, error) {
	m := sizeSegmentRe.FindStringSubmatch(s)
	if m == nil {
		return 0, 0, fmt.Errorf("invalid size %q, want WxH", s)
	}
	w, _ := strconv.Atoi(m[1])
	h, _ := strconv.Atoi(m[2])
	if w <= 0 || h <= 0 {
		return 0, 0, fmt.Errorf("invalid size %q", s)
	}
	return w, h, nil
}

// RenderInput is the data passed to the external renderer for one frame.
type RenderInput struct {
	Title      string            `json:"title"`
	Text       string            `json:"text"`
	ImagePath  string            `json:"image,omitempty"`
	Ext        map[string]string `json:"ext,omitempty"`
	OutputPath string            `json:"-"`
}

// Renderer runs the external HTML-to-image renderer command. Set
// RENDERER_COMMAND to override the default binary.
type Renderer struct {
	Command string
}

func NewRenderer() *Renderer {
	cmd := os.Getenv("RENDERER_COMMAND")
	if cmd == "" {
		cmd = "frame-render"
	}
	return &Renderer{Command: cmd}
}

// Render produces the composed frame image for in and returns its path.
// For video templates the renderer emits a transparent overlay; for the
// rest, a full frame.
func (r *Renderer) Render(ctx context.Context, tpl *Template, in RenderInput) (string, error) {
	args := []string{
		"--template", tpl.Path,
		"--output", in.OutputPath,
		"--title", in.Title,
		"--text", in.Text,
	}
	if in.ImagePath != "" {
		args = append(args, "--image", in.ImagePath)
	}
	for k, v := range in.Ext {
		args = append(args, "--set", k+"="+v)
	}

	cmd := exec.CommandContext(ctx, r.Command, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("renderer: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return in.OutputPath, nil
}
