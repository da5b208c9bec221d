// Package content turns narration text into the structured inputs the
// pipeline needs: narration lists, per-narration media prompts, and titles.
// All generation goes through an LLM returning free-form text that is parsed
// here.
package content

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"
)

// Completer is the LLM text-completion capability consumed by this package.
type Completer interface {
	Complete(ctx context.Context, prompt string, temperature float64, maxTokens int) (string, error)
}

// GenerateNarrations asks the LLM for exactly n narrations for a topic or
// source content. Longer inputs are treated as source content to condense
// rather than a topic to expand. More than n narrations are truncated to n;
// fewer is an error.
func GenerateNarrations(ctx context.Context, llm Completer, text string, n, minWords, maxWords int) ([]string, error) {
	var prompt string
	if len([]rune(strings.TrimSpace(text))) > 200 {
		prompt = buildContentNarrationPrompt(text, n, minWords, maxWords)
	} else {
		prompt = buildTopicNarrationPrompt(text, n, minWords, maxWords)
	}

	response, err := llm.Complete(ctx, prompt, 0.8, 2000)
	if err != nil {
		return nil, fmt.Errorf("narration generation: %w", err)
	}

	payload, err := extractPayload(response)
	if err != nil {
		return nil, fmt.Errorf("narration generation: %w", err)
	}
	narrations := payload.Narrations

	if len(narrations) > n {
		log.Printf("[content] Got %d narrations, taking first %d", len(narrations), n)
		narrations = narrations[:n]
	} else if len(narrations) < n {
		return nil, fmt.Errorf("expected %d narrations, got %d", n, len(narrations))
	}
	return narrations, nil
}

// SplitScript splits a caller-supplied script into narrations by line
// breaks, dropping blank lines. The result is trusted as-is.
func SplitScript(script string) []string {
	var narrations []string
	for _, line := range strings.Split(script, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			narrations = append(narrations, line)
		}
	}
	return narrations
}

// BatchOptions controls batched media-prompt generation.
type BatchOptions struct {
	MinWords   int
	MaxWords   int
	BatchSize  int           // narrations per request; default 10
	MaxRetries int           // attempts per batch; default 3
	RetryDelay time.Duration // fixed delay between attempts; default 500ms
	Progress   func(completed, total int)
}

func (o *BatchOptions) setDefaults() {
	if o.BatchSize <= 0 {
		o.BatchSize = 10
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = 3
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = 500 * time.Millisecond
	}
}

// GenerateMediaPrompts produces exactly one media prompt per narration,
// preserving order. Narrations are processed in fixed-size batches; a batch
// whose parsed prompt count does not match its narration count (or whose
// output is unparseable) is retried up to MaxRetries times, after which the
// whole operation fails. A partial result is never returned.
func GenerateMediaPrompts(ctx context.Context, llm Completer, narrations []string, opts BatchOptions) ([]string, error) {
	opts.setDefaults()
	total := len(narrations)
	if total == 0 {
		return nil, nil
	}

	numBatches := (total + opts.BatchSize - 1) / opts.BatchSize
	log.Printf("[content] Generating media prompts for %d narrations in %d batches", total, numBatches)

	prompts := make([]string, 0, total)
	for start := 0; start < total; start += opts.BatchSize {
		end := start + opts.BatchSize
		if end > total {
			end = total
		}
		batch := narrations[start:end]
		batchNum := start/opts.BatchSize + 1

		batchPrompts, err := generatePromptBatch(ctx, llm, batch, opts, batchNum)
		if err != nil {
			return nil, fmt.Errorf("batch %d/%d: %w", batchNum, numBatches, err)
		}

		prompts = append(prompts, batchPrompts...)
		log.Printf("[content] Batch %d/%d completed (%d/%d prompts)", batchNum, numBatches, len(prompts), total)
		if opts.Progress != nil {
			opts.Progress(len(prompts), total)
		}
	}
	return prompts, nil
}

func generatePromptBatch(ctx context.Context, llm Completer, batch []string, opts BatchOptions, batchNum int) ([]string, error) {
	prompt := buildMediaPromptPrompt(batch, opts.MinWords, opts.MaxWords)

	var lastErr error
	for attempt := 1; attempt <= opts.MaxRetries; attempt++ {
		if attempt > 1 {
			select {
			case <-time.After(opts.RetryDelay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		response, err := llm.Complete(ctx, prompt, 0.7, 8192)
		if err != nil {
			return nil, err // capability failure, not a generation mismatch
		}

		payload, err := extractPayload(response)
		if err != nil {
			lastErr = err
			log.Printf("[content] Batch %d attempt %d/%d: %v, retrying", batchNum, attempt, opts.MaxRetries, err)
			continue
		}

		if got := len(payload.MediaPrompts); got != len(batch) {
			lastErr = fmt.Errorf("prompt count mismatch: expected %d, got %d", len(batch), got)
			log.Printf("[content] Batch %d attempt %d/%d: %v, retrying", batchNum, attempt, opts.MaxRetries, lastErr)
			continue
		}
		return payload.MediaPrompts, nil
	}
	return nil, fmt.Errorf("exhausted %d attempts: %w", opts.MaxRetries, lastErr)
}

// ApplyPromptPrefix prepends a style prefix to every non-empty prompt.
func ApplyPromptPrefix(prompts []string, prefix string) []string {
	if prefix == "" {
		return prompts
	}
	out := make([]string, len(prompts))
	for i, p := range prompts {
		if p == "" {
			continue
		}
		out[i] = prefix + ", " + p
	}
	return out
}

// TitleStrategy selects how GenerateTitle derives a title.
type TitleStrategy string

const (
	TitleAuto   TitleStrategy = "auto"   // short input verbatim, otherwise LLM
	TitleDirect TitleStrategy = "direct" // input verbatim, truncated
	TitleLLM    TitleStrategy = "llm"    // always LLM
)

// GenerateTitle derives a display title from content.
func GenerateTitle(ctx context.Context, llm Completer, text string, strategy TitleStrategy, maxLen int) (string, error) {
	if maxLen <= 0 {
		maxLen = shortTitleLimit
	}
	trimmed := strings.TrimSpace(text)

	switch strategy {
	case TitleDirect:
		return truncateRunes(trimmed, maxLen), nil
	case TitleAuto:
		if len([]rune(trimmed)) <= shortTitleLimit {
			return trimmed, nil
		}
	case TitleLLM:
	default:
		return "", fmt.Errorf("unknown title strategy %q", strategy)
	}

	response, err := llm.Complete(ctx, buildTitlePrompt(trimmed, maxLen), 0.7, 50)
	if err != nil {
		return "", fmt.Errorf("title generation: %w", err)
	}

	title := strings.TrimSpace(response)
	title = strings.Trim(title, `"'`)
	return truncateRunes(title, maxLen), nil
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
