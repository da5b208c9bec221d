// Package tts synthesizes narration audio. Two modes: local runs an
// edge-tts-style command on this machine, remote-workflow posts to a
// synthesis workflow endpoint and downloads the result.
package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/exec"
	"time"

	"storyreel/storyboard"
)

var execCommand = exec.CommandContext

// Request carries one synthesis call. The field set that applies depends on
// Mode: local uses Voice and Speed; remote-workflow uses Workflow, Voice,
// Speed and RefAudio.
type Request struct {
	Text       string
	Mode       storyboard.TTSMode
	Voice      string
	Speed      float64
	Workflow   string
	RefAudio   string
	OutputPath string
}

// Client implements both synthesis modes.
type Client struct {
	Command    string // local mode binary; default "edge-tts"
	Endpoint   string // remote-workflow mode URL
	HTTPClient *http.Client
}

func NewClient(command, endpoint string) *Client {
	if command == "" {
		command = "edge-tts"
	}
	return &Client{
		Command:    command,
		Endpoint:   endpoint,
		HTTPClient: &http.Client{Timeout: 120 * time.Second},
	}
}

// Synthesize produces an audio file at req.OutputPath and returns its path.
func (c *Client) Synthesize(ctx context.Context, req Request) (string, error) {
	switch req.Mode {
	case storyboard.TTSLocal:
		return c.synthesizeLocal(ctx, req)
	case storyboard.TTSRemoteWorkflow:
		return c.synthesizeRemote(ctx, req)
	default:
		return "", fmt.Errorf("unknown tts mode %q", req.Mode)
	}
}

func (c *Client) synthesizeLocal(ctx context.Context, req Request) (string, error) {
	args := []string{
		"--text", req.Text,
		"--write-media", req.OutputPath,
	}
	if req.Voice != "" {
		args = append(args, "--voice", req.Voice)
	}
	if req.Speed > 0 && req.Speed != 1.0 {
		args = append(args, "--rate", ratePercent(req.Speed))
	}

	cmd := execCommand(ctx, c.Command, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("tts command: %w: %s", err, bytes.TrimSpace(out))
	}
	return req.OutputPath, nil
}

type remoteRequest struct {
	Text     string  `json:"text"`
	Workflow string  `json:"workflow"`
	Voice    string  `json:"voice,omitempty"`
	Speed    float64 `json:"speed,omitempty"`
	RefAudio string  `json:"ref_audio,omitempty"`
}

type remoteResponse struct {
	URL   string `json:"url"`
	Error string `json:"error,omitempty"`
}

func (c *Client) synthesizeRemote(ctx context.Context, req Request) (string, error) {
	body, err := json.Marshal(remoteRequest{
		Text:     req.Text,
		Workflow: req.Workflow,
		Voice:    req.Voice,
		Speed:    req.Speed,
		RefAudio: req.RefAudio,
	})
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.Endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("tts workflow request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("tts workflow: HTTP %d", resp.StatusCode)
	}

	var parsed remoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("parse tts workflow response: %w", err)
	}
	if parsed.Error != "" {
		return "", fmt.Errorf("tts workflow: %s", parsed.Error)
	}
	if parsed.URL == "" {
		return "", fmt.Errorf("tts workflow returned no audio url")
	}

	if err := c.download(ctx, parsed.URL, req.OutputPath); err != nil {
		return "", fmt.Errorf("download tts audio: %w", err)
	}
	log.Printf("[tts] Workflow audio saved: %s", req.OutputPath)
	return req.OutputPath, nil
}

func (c *Client) download(ctx context.Context, url, dest string) error {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return err
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d fetching %s", resp.StatusCode, url)
	}

	f, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(f, resp.Body)
	return err
}

// ratePercent converts a speed multiplier to the +N%/-N% form the local
// command expects (1.2 -> "+20%").
func ratePercent(speed float64) string {
	pct := int((speed - 1.0) * 100)
	if pct >= 0 {
		return fmt.Sprintf("+%d%%", pct)
	}
	return fmt.Sprintf("%d%%", pct)
}
