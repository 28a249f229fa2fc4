package ffmpeg

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reelsmith/reelsmith/internal/config"
)

// fakeRunner routes every subprocess invocation to a test-provided function.
type fakeRunner struct {
	fn func(name string, args []string) ([]byte, error)
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	return f.fn(name, args)
}

func testToolkit(t *testing.T, fn func(name string, args []string) ([]byte, error)) *Toolkit {
	t.Helper()
	tk := New(config.MediaConfig{
		FFmpegPath:  "ffmpeg",
		FFprobePath: "ffprobe",
		ConcatMode:  "auto",
	}, slog.New(slog.DiscardHandler))
	return tk.WithRunner(&fakeRunner{fn: fn})
}

func probeJSON(codec string, videoDur, formatDur, audioDur string) []byte {
	streams := fmt.Sprintf(`{"index":0,"codec_type":"video","codec_name":"%s","duration":"%s"}`, codec, videoDur)
	if audioDur != "" {
		streams += fmt.Sprintf(`,{"index":1,"codec_type":"audio","codec_name":"aac","duration":"%s","sample_rate":"44100","channels":2}`, audioDur)
	}
	return []byte(fmt.Sprintf(`{"format":{"duration":"%s"},"streams":[%s]}`, formatDur, streams))
}

func hasArg(args []string, want string) bool {
	for _, a := range args {
		if a == want {
			return true
		}
	}
	return false
}

func TestValidateConcatTolerances(t *testing.T) {
	out := filepath.Join(t.TempDir(), "output.mp4")
	require.NoError(t, os.WriteFile(out, []byte("x"), 0o644))

	cases := []struct {
		name     string
		probe    []byte
		expected float64
		reason   string
	}{
		{
			name:     "within tolerance",
			probe:    probeJSON("h264", "30.0", "30.0", "30.0"),
			expected: 30,
			reason:   "",
		},
		{
			name:     "duration mismatch",
			probe:    probeJSON("h264", "43.0", "43.0", "30.1"),
			expected: 30,
			reason:   "duration_mismatch",
		},
		{
			name:     "av desync",
			probe:    probeJSON("h264", "30.0", "30.0", "29.2"),
			expected: 30,
			reason:   "av_desync",
		},
		{
			name:     "no usable duration",
			probe:    []byte(`{"format":{},"streams":[]}`),
			expected: 30,
			reason:   "invalid_duration",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tk := testToolkit(t, func(name string, args []string) ([]byte, error) {
				return tc.probe, nil
			})
			reason := tk.validateConcat(context.Background(), out, tc.expected)
			if tc.reason == "" {
				assert.Empty(t, reason)
			} else {
				assert.Contains(t, reason, tc.reason)
			}
		})
	}
}

func TestValidateConcatMissingOutput(t *testing.T) {
	tk := testToolkit(t, func(string, []string) ([]byte, error) { return nil, nil })
	assert.Equal(t, "missing_output", tk.validateConcat(context.Background(), filepath.Join(t.TempDir(), "nope.mp4"), 30))
}

// Copy concat produces a too-long file, ts is ineligible for vp9, and the
// reencode pass lands on the expected duration.
func TestConcatenateAutoFallsThroughToReencode(t *testing.T) {
	dir := t.TempDir()
	in1 := filepath.Join(dir, "segment_000.mp4")
	in2 := filepath.Join(dir, "segment_001.mp4")
	out := filepath.Join(dir, "final", "output.mp4")
	require.NoError(t, os.WriteFile(in1, []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(in2, []byte("b"), 0o644))

	var lastStrategy string
	var sawFilterComplex string

	tk := testToolkit(t, func(name string, args []string) ([]byte, error) {
		target := args[len(args)-1]
		switch name {
		case "ffprobe":
			if target == out {
				if lastStrategy == "copy" {
					return probeJSON("h264", "43.0", "43.0", "30.1"), nil
				}
				return probeJSON("h264", "30.0", "30.0", "30.0"), nil
			}
			return probeJSON("vp9", "15.0", "15.0", "15.0"), nil
		case "ffmpeg":
			switch {
			case hasArg(args, "concat") && hasArg(args, "-f"):
				lastStrategy = "copy"
			case hasArg(args, "-filter_complex"):
				lastStrategy = "reencode"
				for i, a := range args {
					if a == "-filter_complex" {
						sawFilterComplex = args[i+1]
					}
				}
			default:
				t.Fatalf("unexpected ffmpeg args: %v", args)
			}
			require.NoError(t, os.WriteFile(target, []byte("video"), 0o644))
			return nil, nil
		}
		t.Fatalf("unexpected binary %s", name)
		return nil, nil
	})

	err := tk.Concatenate(context.Background(), []string{in1, in2}, out)
	require.NoError(t, err)
	assert.Equal(t, "reencode", lastStrategy)
	assert.Contains(t, sawFilterComplex, "concat=n=2:v=1:a=1")
	assert.Contains(t, sawFilterComplex, "trim=duration=15.000")
	assert.FileExists(t, out)
}

func TestConcatenateReportsAllAttempts(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "only.mp4")
	out := filepath.Join(dir, "output.mp4")
	require.NoError(t, os.WriteFile(in, []byte("a"), 0o644))

	tk := testToolkit(t, func(name string, args []string) ([]byte, error) {
		if name == "ffprobe" {
			return probeJSON("vp9", "15.0", "15.0", ""), nil
		}
		// Every ffmpeg invocation fails outright.
		return nil, fmt.Errorf("ffmpeg: exit status 1")
	})

	err := tk.Concatenate(context.Background(), []string{in}, out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "copy_concat:")
	assert.Contains(t, err.Error(), "ts_concat:")
	assert.Contains(t, err.Error(), "reencode_concat:")
	assert.NoFileExists(t, out)
}

func TestCopyConcatEscapesQuotes(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "it's here.mp4")
	out := filepath.Join(dir, "out.mp4")
	require.NoError(t, os.WriteFile(in, []byte("a"), 0o644))

	var listContent string
	tk := testToolkit(t, func(name string, args []string) ([]byte, error) {
		for i, a := range args {
			if a == "-i" {
				data, err := os.ReadFile(args[i+1])
				require.NoError(t, err)
				listContent = string(data)
			}
		}
		return nil, nil
	})

	require.NoError(t, tk.copyConcat(context.Background(), []string{in}, out))
	assert.True(t, strings.HasPrefix(listContent, "ffconcat version 1.0\n"))
	assert.Contains(t, listContent, `it\'s here.mp4`)
}
