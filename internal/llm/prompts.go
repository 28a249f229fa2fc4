package llm

import (
	"strings"
	"text/template"
)

// DefaultLocale is used when a request carries no locale.
const DefaultLocale = "zh-CN"

// FallbackLocale is used when a locale has no authored templates.
const FallbackLocale = "en"

// PromptPair is a system/user prompt ready to send to the model.
type PromptPair struct {
	System string
	User   string
}

// ScriptwriterParams fills the full-script prompts.
type ScriptwriterParams struct {
	TotalDuration   int
	NumSegments     int
	SegmentDuration int
	UserPrompt      string
	Pacing          string
	Feedback        string
}

// SegmentDurationMul2 is the spoken-word count hint per segment.
func (p ScriptwriterParams) SegmentDurationMul2() int { return p.SegmentDuration * 2 }

// SegmenterParams fills the per-segment video prompt templates.
type SegmenterParams struct {
	SegmentNumber  int
	TimeRange      string
	FullScript     string
	CanonSummaries string
	CurrentTime    int
	Feedback       string
}

// AnalyzerParams fills the frame analysis templates.
type AnalyzerParams struct {
	SegmentScript string
	TimeRange     string
}

var localeAliases = map[string]string{
	"zh": "zh-CN",
	"en": "en",
	"es": "es",
	"fr": "fr",
	"ar": "ar",
	"ja": "ja",
}

// NormalizeLocale maps a raw locale tag to a canonical one. Empty input
// yields the default, unrecognized input yields the fallback.
func NormalizeLocale(locale string) string {
	locale = strings.TrimSpace(locale)
	if locale == "" {
		return DefaultLocale
	}
	lower := strings.ToLower(locale)
	if canonical, ok := localeAliases[lower]; ok {
		return canonical
	}
	prefix := lower
	if i := strings.IndexAny(lower, "-_"); i > 0 {
		prefix = lower[:i]
	}
	if canonical, ok := localeAliases[prefix]; ok {
		return canonical
	}
	return FallbackLocale
}

type promptSet struct {
	scriptwriterSystem *template.Template
	scriptwriterUser   *template.Template
	segmenterSystem    *template.Template
	segmenterUser      *template.Template
	analyzerSystem     *template.Template
	analyzerUser       *template.Template
}

// ScriptwriterPrompts builds the full-script generation prompts.
func ScriptwriterPrompts(locale string, p ScriptwriterParams) PromptPair {
	set := promptsFor(locale)
	return PromptPair{
		System: render(set.scriptwriterSystem, p),
		User:   render(set.scriptwriterUser, p),
	}
}

// SegmenterPrompts builds the per-segment script and video-prompt prompts.
func SegmenterPrompts(locale string, p SegmenterParams) PromptPair {
	set := promptsFor(locale)
	return PromptPair{
		System: render(set.segmenterSystem, p),
		User:   render(set.segmenterUser, p),
	}
}

// AnalyzerPrompts builds the frame-analysis prompts.
func AnalyzerPrompts(locale string, p AnalyzerParams) PromptPair {
	set := promptsFor(locale)
	return PromptPair{
		System: render(set.analyzerSystem, p),
		User:   render(set.analyzerUser, p),
	}
}

func promptsFor(locale string) *promptSet {
	if set, ok := prompts[NormalizeLocale(locale)]; ok {
		return set
	}
	return prompts[FallbackLocale]
}

func render(t *template.Template, data any) string {
	var b strings.Builder
	// Templates only reference fields of the params structs, so execution
	// cannot fail at runtime.
	_ = t.Execute(&b, data)
	return b.String()
}

func mustSet(name string, texts [6]string) *promptSet {
	parse := func(kind, text string) *template.Template {
		return template.Must(template.New(name + "/" + kind).Parse(text))
	}
	return &promptSet{
		scriptwriterSystem: parse("scriptwriter.system", texts[0]),
		scriptwriterUser:   parse("scriptwriter.user", texts[1]),
		segmenterSystem:    parse("segmenter.system", texts[2]),
		segmenterUser:      parse("segmenter.user", texts[3]),
		analyzerSystem:     parse("analyzer.system", texts[4]),
		analyzerUser:       parse("analyzer.user", texts[5]),
	}
}

var prompts = map[string]*promptSet{
	"zh-CN": mustSet("zh-CN", [6]string{
		// scriptwriter system
		`你是一名短视频编剧。请为一条总时长 {{.TotalDuration}} 秒的短视频撰写完整口播文案。
文案将被切分为 {{.NumSegments}} 个片段，每段 {{.SegmentDuration}} 秒，对应约 {{.SegmentDurationMul2}} 个字的口播量。
要求：
- 只输出口播文案正文，不要标题、编号或舞台说明。
- 开头三秒内必须抛出钩子。
- 语言口语化，句子简短，适合配音朗读。`,
		// scriptwriter user
		`视频主题：{{.UserPrompt}}
节奏要求：{{.Pacing}}
{{if .Feedback}}修改意见（务必采纳）：{{.Feedback}}{{end}}`,
		// segmenter system
		`你是一名分镜师。当前处理第 {{.SegmentNumber}} 个片段，时间区间 {{.TimeRange}}。
请从完整文案中提取该区间对应的口播文本，并为其设计一条 AI 视频生成提示词。
只输出一个 JSON 对象，字段如下：
{"script": "该片段的口播文本", "video_prompt": "视频生成提示词（英文，包含镜头、主体、动作、光线）", "continuity": "与上一片段衔接要点"}`,
		// segmenter user
		`完整文案：
{{.FullScript}}

{{if .CanonSummaries}}已确认的前文画面（保持人物与场景一致）：
{{.CanonSummaries}}

{{end}}当前已推进到第 {{.CurrentTime}} 秒。
{{if .Feedback}}修改意见（务必采纳）：{{.Feedback}}{{end}}`,
		// analyzer system
		`你是一名视频画面分析师。请描述这张视频末帧画面，重点记录人物外观、服装、场景、光线与构图，供后续片段保持一致。
最后单独输出一行，以 [[CANON_SUMMARY]] 开头，后接不超过 60 字的画面要点摘要。`,
		// analyzer user
		`该片段（{{.TimeRange}}）的口播文本：
{{.SegmentScript}}

请分析所附的末帧截图。`,
	}),
	"en": mustSet("en", [6]string{
		`You are a short-form video scriptwriter. Write the complete voiceover script for a video of {{.TotalDuration}} seconds total.
The script will be cut into {{.NumSegments}} segments of {{.SegmentDuration}} seconds each, roughly {{.SegmentDurationMul2}} spoken words per segment.
Rules:
- Output only the voiceover text, with no titles, numbering or stage directions.
- Open with a hook inside the first three seconds.
- Keep sentences short and conversational, written to be read aloud.`,
		`Video topic: {{.UserPrompt}}
Pacing: {{.Pacing}}
{{if .Feedback}}Revision notes (must be applied): {{.Feedback}}{{end}}`,
		`You are a storyboard artist. You are working on segment {{.SegmentNumber}}, covering {{.TimeRange}}.
Extract the voiceover text for this range from the full script and design one AI video generation prompt for it.
Output a single JSON object with these fields:
{"script": "voiceover text for this segment", "video_prompt": "video generation prompt covering shot, subject, action and lighting", "continuity": "notes for matching the previous segment"}`,
		`Full script:
{{.FullScript}}

{{if .CanonSummaries}}Confirmed earlier visuals (keep characters and setting consistent):
{{.CanonSummaries}}

{{end}}Progress so far: {{.CurrentTime}} seconds.
{{if .Feedback}}Revision notes (must be applied): {{.Feedback}}{{end}}`,
		`You are a video frame analyst. Describe this final frame of a video segment, recording character appearance, wardrobe, setting, lighting and composition so later segments can stay consistent.
End with a single separate line starting with [[CANON_SUMMARY]] followed by a summary of at most 25 words.`,
		`Voiceover text for this segment ({{.TimeRange}}):
{{.SegmentScript}}

Analyze the attached final frame.`,
	}),
}
