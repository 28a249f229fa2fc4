package canon

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendAndSplit(t *testing.T) {
	canon := Append("", "[#IDX=0] #001 (0s-15s): opening shot")
	assert.NotContains(t, canon, Separator)

	canon = Append(canon, "[#IDX=1] #002 (15s-30s): closeup")
	items := Split(canon)
	require.Len(t, items, 2)
	assert.Equal(t, "[#IDX=0] #001 (0s-15s): opening shot", items[0])

	// Empty appends are no-ops.
	assert.Equal(t, canon, Append(canon, ""))
	assert.Equal(t, canon, Append(canon, "   "))
}

func TestRecentReturnsLastItems(t *testing.T) {
	var canon string
	for i := 0; i < 5; i++ {
		canon = Append(canon, Format(i, i*15, (i+1)*15, "scene"))
	}

	recent := Recent(canon, 3)
	items := Split(recent)
	require.Len(t, items, 3)
	assert.Contains(t, items[0], "[#IDX=2]")
	assert.Contains(t, items[2], "[#IDX=4]")

	// Appending x then taking the most recent single item yields x.
	item := Format(9, 135, 150, "final")
	assert.Equal(t, item, Recent(Append(canon, item), 1))
}

func TestParseIndex(t *testing.T) {
	idx, ok := ParseIndex("[#IDX=7] #008 (105s-120s): x")
	require.True(t, ok)
	assert.Equal(t, 7, idx)

	// Legacy header is 1-based.
	idx, ok = ParseIndex("片段3(0s-15s): legacy item")
	require.True(t, ok)
	assert.Equal(t, 2, idx)

	_, ok = ParseIndex("free-form note without a tag")
	assert.False(t, ok)
}

func TestBeforeIndexTrimsAndPreserves(t *testing.T) {
	canon := Join([]string{
		"[#IDX=0] #001 (0s-15s): a",
		"untagged note",
		"[#IDX=1] #002 (15s-30s): b",
		"[#IDX=2] #003 (30s-45s): c",
	})

	trimmed := BeforeIndex(canon, 2)
	items := Split(trimmed)
	require.Len(t, items, 3)
	for _, item := range items {
		if idx, ok := ParseIndex(item); ok {
			assert.Less(t, idx, 2)
		}
	}
	assert.Contains(t, trimmed, "untagged note")
	assert.NotContains(t, trimmed, "[#IDX=2]")
}

func TestReplaceByIndex(t *testing.T) {
	canon := Join([]string{
		"[#IDX=0] #001 (0s-15s): a",
		"[#IDX=1] #002 (15s-30s): b",
	})

	out := ReplaceByIndex(canon, 1, "[#IDX=1] #002 (15s-30s): revised")
	items := Split(out)
	require.Len(t, items, 2)
	assert.Contains(t, items[1], "revised")

	// Missing index appends.
	out = ReplaceByIndex(canon, 5, "[#IDX=5] #006 (75s-90s): new")
	assert.Len(t, Split(out), 3)
}

func TestFormat(t *testing.T) {
	item := Format(0, 0, 15, "a quiet street at dawn")
	assert.Equal(t, "[#IDX=0] #001 (0s-15s): a quiet street at dawn", item)
	assert.Contains(t, Format(11, 165, 180, "x"), "#012")
}

func TestCompactDescriptionPrefersTaggedLine(t *testing.T) {
	raw := "The video shows a street.\n- [[CANON_SUMMARY]]: dawn street, camera panning left\nmore detail here"
	assert.Equal(t, "dawn street, camera panning left", CompactDescription(raw, 200))
}

func TestCompactDescriptionFallsBackToFirstLine(t *testing.T) {
	raw := "\n\n  A   busy\tmarket scene.  \nsecond line"
	assert.Equal(t, "A busy market scene.", CompactDescription(raw, 200))
}

func TestCompactDescriptionEllipsizes(t *testing.T) {
	raw := strings.Repeat("字", 50)
	out := CompactDescription(raw, 10)
	runes := []rune(out)
	require.Len(t, runes, 10)
	assert.Equal(t, '…', runes[9])
}

func TestExtractMusicState(t *testing.T) {
	raw := "description line\n[[MUSIC_STATE]]: upbeat synth continues\n"
	assert.Equal(t, "upbeat synth continues", ExtractMusicState(raw))
	assert.Empty(t, ExtractMusicState("no tags here"))
}
