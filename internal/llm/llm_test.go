package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reelsmith/reelsmith/internal/config"
	"github.com/reelsmith/reelsmith/internal/models"
)

func testServer(t *testing.T, handler http.HandlerFunc) *HTTPClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewHTTPClient(config.LLMConfig{
		BaseURL: srv.URL,
		APIKey:  "test-key",
		Model:   "test-model",
		Timeout: 5 * time.Second,
	})
}

func messageResponse(texts ...string) map[string]any {
	content := make([]map[string]any, 0, len(texts))
	for _, txt := range texts {
		content = append(content, map[string]any{"type": "output_text", "text": txt})
	}
	return map[string]any{
		"output": []map[string]any{
			{"type": "reasoning"},
			{"type": "message", "content": content},
		},
	}
}

func TestChat(t *testing.T) {
	var got apiRequest
	c := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/responses", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(messageResponse("hello ", "world"))
	})

	text, err := c.Chat(context.Background(), "sys", "usr")
	require.NoError(t, err)
	assert.Equal(t, "hello world", text)

	require.Len(t, got.Input, 2)
	assert.Equal(t, "system", got.Input[0].Role)
	assert.Equal(t, "input_text", got.Input[0].Content[0].Type)
	assert.Equal(t, "sys", got.Input[0].Content[0].Text)
	assert.Equal(t, "user", got.Input[1].Role)
	assert.Equal(t, "test-model", got.Model)
}

func TestChatWithImage(t *testing.T) {
	img := filepath.Join(t.TempDir(), "frame_000.jpg")
	require.NoError(t, os.WriteFile(img, []byte{0xff, 0xd8, 0xff}, 0o644))

	var got apiRequest
	c := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(messageResponse("a frame"))
	})

	text, err := c.ChatWithImage(context.Background(), "sys", "usr", img)
	require.NoError(t, err)
	assert.Equal(t, "a frame", text)

	require.Len(t, got.Input, 2)
	user := got.Input[1]
	require.Len(t, user.Content, 2)
	assert.Equal(t, "input_text", user.Content[0].Type)
	assert.Equal(t, "input_image", user.Content[1].Type)
	assert.True(t, strings.HasPrefix(user.Content[1].ImageURL, "data:image/jpeg;base64,"))
}

func TestChatEmptyOutputIsError(t *testing.T) {
	c := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"output": []any{}})
	})
	_, err := c.Chat(context.Background(), "sys", "usr")
	assert.ErrorIs(t, err, models.ErrLLMEmptyResponse)
}

func TestChatNon200IsError(t *testing.T) {
	c := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	})
	_, err := c.Chat(context.Background(), "sys", "usr")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestImageMIME(t *testing.T) {
	assert.Equal(t, "image/png", imageMIME("/x/frame.PNG"))
	assert.Equal(t, "image/webp", imageMIME("a.webp"))
	assert.Equal(t, "image/jpeg", imageMIME("mystery.bin"))
}

func TestNormalizeLocale(t *testing.T) {
	assert.Equal(t, "zh-CN", NormalizeLocale(""))
	assert.Equal(t, "zh-CN", NormalizeLocale("zh"))
	assert.Equal(t, "zh-CN", NormalizeLocale("zh-TW"))
	assert.Equal(t, "en", NormalizeLocale("en-US"))
	assert.Equal(t, "ja", NormalizeLocale("ja"))
	assert.Equal(t, "en", NormalizeLocale("klingon"))
}

func TestPromptsFillParameters(t *testing.T) {
	pair := ScriptwriterPrompts("en", ScriptwriterParams{
		TotalDuration:   30,
		NumSegments:     2,
		SegmentDuration: 15,
		UserPrompt:      "coffee brewing",
		Pacing:          "fast",
	})
	assert.Contains(t, pair.System, "30 seconds")
	assert.Contains(t, pair.System, "2 segments")
	assert.Contains(t, pair.System, "roughly 30 spoken words")
	assert.Contains(t, pair.User, "coffee brewing")
	assert.NotContains(t, pair.User, "Revision notes")

	pair = SegmenterPrompts("en", SegmenterParams{
		SegmentNumber:  2,
		TimeRange:      "15s-30s",
		FullScript:     "the script",
		CanonSummaries: "seg 1: a barista",
		CurrentTime:    30,
		Feedback:       "slower",
	})
	assert.Contains(t, pair.System, "segment 2")
	assert.Contains(t, pair.User, "seg 1: a barista")
	assert.Contains(t, pair.User, "slower")

	// Unsupported locales fall back without a panic.
	pair = AnalyzerPrompts("fr", AnalyzerParams{SegmentScript: "text", TimeRange: "0s-15s"})
	assert.Contains(t, pair.System, "[[CANON_SUMMARY]]")
}
