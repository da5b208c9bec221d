// Package media submits prompts to the image/video generation backend and
// downloads the produced assets.
package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"storyreel/storyboard"
)

// Request describes one generation call.
type Request struct {
	Prompt   string               `json:"prompt"`
	Workflow string               `json:"workflow"`
	Type     storyboard.MediaType `json:"media_type"`
	Width    int                  `json:"width"`
	Height   int                  `json:"height"`
}

// Result is the backend's answer. Duration is only set for video assets,
// and only when the backend reports it.
type Result struct {
	URL      string               `json:"url"`
	Type     storyboard.MediaType `json:"media_type"`
	Duration float64              `json:"duration,omitempty"`
	Error    string               `json:"error,omitempty"`
}

// Client talks to the generation backend over HTTP.
type Client struct {
	Endpoint   string
	HTTPClient *http.Client
}

func NewClient(endpoint string) *Client {
	return &Client{
		Endpoint:   endpoint,
		HTTPClient: &http.Client{Timeout: 10 * time.Minute},
	}
}

// Generate submits a prompt and returns the asset location.
func (c *Client) Generate(ctx context.Context, req Request) (*Result, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("media request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("media backend: HTTP %d", resp.StatusCode)
	}

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("parse media response: %w", err)
	}
	if result.Error != "" {
		return nil, fmt.Errorf("media backend: %s", result.Error)
	}
	if result.URL == "" {
		return nil, fmt.Errorf("media backend returned no asset url")
	}
	return &result, nil
}

// Download fetches a generated asset to dest. The backend occasionally
// times out mid-transfer, so the fetch is retried a few times.
func (c *Client) Download(ctx context.Context, url, dest string) error {
	var err error
	for attempt := 1; attempt <= 3; attempt++ {
		err = c.fetch(ctx, url, dest)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Printf("[media] Download attempt %d failed: %v, retrying", attempt, err)
		time.Sleep(time.Duration(attempt) * time.Second)
	}
	return fmt.Errorf("download failed after 3 attempts: %w", err)
}

func (c *Client) fetch(ctx context.Context, url, dest string) error {
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
		return fmt.Errorf("HTTP %d fetching asset", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	// An error page instead of an asset is smaller than any real media file.
	if len(data) < 100 {
		return fmt.Errorf("asset too small (%d bytes), likely an error response", len(data))
	}
	return os.WriteFile(dest, data, 0644)
}
