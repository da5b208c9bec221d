package content

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// llmPayload is the structured shape the generation prompts ask the model
// to produce. Only one of the fields is populated per call.
type llmPayload struct {
	Narrations   []string `json:"narrations"`
	MediaPrompts []string `json:"media_prompts"`
}

var (
	fencedBlockRe = regexp.MustCompile("(?s)```(?:json)?\\s*(.+?)\\s*```")
	embeddedObjRe = regexp.MustCompile(`(?s)\{[^{}]*(?:"narrations"|"media_prompts")\s*:\s*\[[^\]]*\][^{}]*\}`)
)

// extractPayload parses a JSON object out of free-form model output. Three
// tiers, in order: the text as a raw JSON document, JSON inside a fenced
// code block, and a JSON object embedded in surrounding prose located by the
// known field names.
func extractPayload(text string) (*llmPayload, error) {
	text = strings.TrimSpace(text)

	var p llmPayload
	if err := json.Unmarshal([]byte(text), &p); err == nil {
		return &p, nil
	}

	if m := fencedBlockRe.FindStringSubmatch(text); m != nil {
		if err := json.Unmarshal([]byte(m[1]), &p); err == nil {
			return &p, nil
		}
	}

	if m := embeddedObjRe.FindString(text); m != "" {
		if err := json.Unmarshal([]byte(m), &p); err == nil {
			return &p, nil
		}
	}

	return nil, fmt.Errorf("no valid JSON object found in model output")
}
