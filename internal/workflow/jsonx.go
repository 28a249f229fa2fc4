package workflow

import (
	"encoding/json"
	"regexp"
	"strings"
)

// SegmentDraft is the parsed output of a segment-generation model call.
type SegmentDraft struct {
	Script      string `json:"script"`
	VideoPrompt string `json:"video_prompt"`
	Continuity  string `json:"continuity"`
}

var (
	fencedBlockRe = regexp.MustCompile("```(?:json)?\\s*([\\s\\S]*?)```")
	braceObjectRe = regexp.MustCompile(`\{[\s\S]*\}`)
)

// fallbackPromptRunes caps the video prompt synthesized from raw text when no
// JSON can be recovered.
const fallbackPromptRunes = 200

// ExtractJSON recovers a SegmentDraft from model output. It tries, in order:
// the text as-is, a fenced code block, the outermost brace-delimited object.
// When nothing parses, the raw text becomes the script and a truncated copy
// becomes the video prompt.
func ExtractJSON(raw string) SegmentDraft {
	if draft, ok := tryParse(raw); ok {
		return draft
	}
	if m := fencedBlockRe.FindStringSubmatch(raw); m != nil {
		if draft, ok := tryParse(m[1]); ok {
			return draft
		}
	}
	if m := braceObjectRe.FindString(raw); m != "" {
		if draft, ok := tryParse(m); ok {
			return draft
		}
	}

	prompt := raw
	if runes := []rune(prompt); len(runes) > fallbackPromptRunes {
		prompt = string(runes[:fallbackPromptRunes])
	}
	return SegmentDraft{Script: raw, VideoPrompt: prompt}
}

func tryParse(text string) (SegmentDraft, bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "{") {
		return SegmentDraft{}, false
	}
	var draft SegmentDraft
	if err := json.Unmarshal([]byte(text), &draft); err != nil {
		return SegmentDraft{}, false
	}
	return draft, true
}
