package template

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTpl(t *testing.T, dir, ref, body string) {
	t.Helper()
	path := filepath.Join(dir, ref)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
}

func TestResolveReadsSizesAndRequirement(t *testing.T) {
	dir := t.TempDir()
	writeTpl(t, dir, "1080x1920/story.html", `<html><head>
<meta name="media" content="video">
<meta name="media-size" content="720x1280">
</head></html>`)

	tpl, err := Resolve(dir, "1080x1920/story.html")
	require.NoError(t, err)
	assert.Equal(t, 1080, tpl.Width)
	assert.Equal(t, 1920, tpl.Height)
	assert.Equal(t, 720, tpl.MediaWidth)
	assert.Equal(t, 1280, tpl.MediaHeight)
	assert.Equal(t, RequireVideo, tpl.Media)
}

func TestResolveDefaults(t *testing.T) {
	dir := t.TempDir()
	writeTpl(t, dir, "1024x1024/plain.html", `<html></html>`)

	tpl, err := Resolve(dir, "1024x1024/plain.html")
	require.NoError(t, err)
	// No meta tags: media requirement defaults to image at canvas size.
	assert.Equal(t, RequireImage, tpl.Media)
	assert.Equal(t, 1024, tpl.MediaWidth)
	assert.Equal(t, 1024, tpl.MediaHeight)
}

func TestResolveStatic(t *testing.T) {
	dir := t.TempDir()
	writeTpl(t, dir, "1080x1920/text.html", `<meta name="media" content="static">`)

	tpl, err := Resolve(dir, "1080x1920/text.html")
	require.NoError(t, err)
	assert.Equal(t, RequireStatic, tpl.Media)
}

func TestResolveErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := Resolve(dir, "")
	assert.ErrorContains(t, err, "required")

	writeTpl(t, dir, "default.html", `<html></html>`)
	_, err = Resolve(dir, "default.html")
	assert.ErrorContains(t, err, "WxH segment")

	_, err = Resolve(dir, "1080x1920/missing.html")
	assert.Error(t, err)

	writeTpl(t, dir, "1080x1920/bad.html", `<meta name="media" content="hologram">`)
	_, err = Resolve(dir, "1080x1920/bad.html")
	assert.ErrorContains(t, err, "unknown media requirement")

	writeTpl(t, dir, "1080x1920/badsize.html", `<meta name="media-size" content="huge">`)
	_, err = Resolve(dir, "1080x1920/badsize.html")
	assert.ErrorContains(t, err, "invalid size")
}
