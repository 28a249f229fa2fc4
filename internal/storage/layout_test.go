package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLayoutPaths(t *testing.T) {
	l := NewLayout("/data/projects")

	assert.Equal(t, filepath.Join("/data/projects", "p1", "full_script.txt"), l.FullScriptPath("p1"))
	assert.Equal(t, filepath.Join("/data/projects", "p1", "segments", "segment_000.txt"), l.SegmentTextPath("p1", 0))
	assert.Equal(t, filepath.Join("/data/projects", "p1", "frames", "frame_012.jpg"), l.FramePath("p1", 12))
	assert.Equal(t, filepath.Join("/data/projects", "p1", "final", "output.mp4"), l.FinalVideoPath("p1"))
}

func TestInputVideoPathExtensionHandling(t *testing.T) {
	l := NewLayout("/data/projects")

	assert.Equal(t, "segment_003.mov", filepath.Base(l.InputVideoPath("p1", 3, ".MOV")))
	assert.Equal(t, "segment_000.webm", filepath.Base(l.InputVideoPath("p1", 0, ".webm")))
	// Unknown extensions fall back to .mp4.
	assert.Equal(t, "segment_001.mp4", filepath.Base(l.InputVideoPath("p1", 1, ".exe")))
	assert.Equal(t, "segment_001.mp4", filepath.Base(l.InputVideoPath("p1", 1, "")))
}

func TestAllowedVideoExt(t *testing.T) {
	assert.True(t, AllowedVideoExt(".mp4"))
	assert.True(t, AllowedVideoExt(".MKV"))
	assert.False(t, AllowedVideoExt(".gif"))
	assert.False(t, AllowedVideoExt("mp4"))
}

func TestEnsureProjectDirs(t *testing.T) {
	l := NewLayout(t.TempDir())
	require.NoError(t, l.EnsureProjectDirs("proj"))

	for _, sub := range []string{"segments", "input_videos", "frames", "final"} {
		info, err := os.Stat(filepath.Join(l.ProjectDir("proj"), sub))
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}

func TestWriteTextAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "full_script.txt")

	require.NoError(t, WriteText(path, "draft one"))
	require.NoError(t, WriteText(path, "draft two"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "draft two", string(data))

	// No temp files left behind.
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
