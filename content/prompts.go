package content

import (
	"fmt"
	"strings"
)

// Topics under this rune count are treated as short enough to use verbatim
// as a title.
const shortTitleLimit = 15

func buildTopicNarrationPrompt(topic string, n, minWords, maxWords int) string {
	var sb strings.Builder
	sb.WriteString("You are a short-video scriptwriter. Expand the topic below into ")
	sb.WriteString(fmt.Sprintf("%d narration segments, spoken-word style, in the same language as the topic.\n\n", n))
	sb.WriteString(fmt.Sprintf("TOPIC: %s\n\n", topic))
	sb.WriteString("Rules:\n")
	sb.WriteString(fmt.Sprintf("- Each narration is %d-%d words, conversational, one clear idea per segment.\n", minWords, maxWords))
	sb.WriteString("- Segments flow in order: hook, development, payoff.\n")
	sb.WriteString("- Vary the opening of every segment; never reuse an opening phrase.\n\n")
	sb.WriteString(fmt.Sprintf("Respond with ONLY valid JSON, no markdown, no explanation:\n{\"narrations\": [%d strings]}", n))
	return sb.String()
}

func buildContentNarrationPrompt(content string, n, minWords, maxWords int) string {
	var sb strings.Builder
	sb.WriteString("You are a short-video scriptwriter. Condense the source content below into ")
	sb.WriteString(fmt.Sprintf("%d narration segments that cover its key points in order.\n\n", n))
	sb.WriteString(fmt.Sprintf("SOURCE CONTENT:\n%s\n\n", content))
	sb.WriteString("Rules:\n")
	sb.WriteString(fmt.Sprintf("- Each narration is %d-%d words, spoken-word style, same language as the source.\n", minWords, maxWords))
	sb.WriteString("- Stay faithful to the source; do not invent facts.\n\n")
	sb.WriteString(fmt.Sprintf("Respond with ONLY valid JSON, no markdown, no explanation:\n{\"narrations\": [%d strings]}", n))
	return sb.String()
}

func buildMediaPromptPrompt(narrations []string, minWords, maxWords int) string {
	var sb strings.Builder
	sb.WriteString("You are a visual director for short videos. Write one image/video generation prompt per narration below.\n\n")
	sb.WriteString("NARRATIONS:\n")
	for i, n := range narrations {
		sb.WriteString(fmt.Sprintf("%d. %s\n", i+1, n))
	}
	sb.WriteString("\nRules:\n")
	sb.WriteString(fmt.Sprintf("- Each prompt is %d-%d words, in English, concrete and cinematic.\n", minWords, maxWords))
	sb.WriteString("- Describe subject, setting, lighting and composition; no text overlays.\n")
	sb.WriteString(fmt.Sprintf("- Return exactly %d prompts, in the same order as the narrations.\n\n", len(narrations)))
	sb.WriteString(fmt.Sprintf("Respond with ONLY valid JSON, no markdown, no explanation:\n{\"media_prompts\": [%d strings]}", len(narrations)))
	return sb.String()
}

func buildTitlePrompt(content string, maxLen int) string {
	if r := []rune(content); len(r) > 500 {
		content = string(r[:500])
	}
	var sb strings.Builder
	sb.WriteString("Write one short, catchy video title for the content below, in the same language as the content.\n\n")
	sb.WriteString(fmt.Sprintf("CONTENT:\n%s\n\n", content))
	sb.WriteString(fmt.Sprintf("Rules: at most %d characters, no quotes, no punctuation at the end. Respond with the title only.", maxLen))
	return sb.String()
}
