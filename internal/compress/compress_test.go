package compress

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iconidentify/reelgrabba/internal/domain"
	"github.com/iconidentify/reelgrabba/pkg/ffmpeg"
)

type fakeTranscoder struct {
	outputSize int64
	partial    bool
	err        error
	calls      int
	gotCfg     ffmpeg.TranscodeConfig
}

func (f *fakeTranscoder) Transcode(_ context.Context, _, outputPath string, cfg ffmpeg.TranscodeConfig) error {
	f.calls++
	f.gotCfg = cfg
	if f.err != nil {
		if f.partial {
			_ = os.WriteFile(outputPath, []byte("partial"), 0644)
		}
		return f.err
	}
	return os.WriteFile(outputPath, make([]byte, f.outputSize), 0644)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeInput(t *testing.T, size int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clip.webm")
	require.NoError(t, os.WriteFile(path, make([]byte, size), 0644))
	return path
}

func TestOutputPath(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"/dl/123.mp4", "/dl/123_compressed.mp4"},
		{"/dl/123.webm", "/dl/123_compressed.mp4"},
		{"/dl/noext", "/dl/noext_compressed.mp4"},
		{"/dl/a.b.mkv", "/dl/a.b_compressed.mp4"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, OutputPath(tt.in))
	}
}

func TestCompress_WithinBudget(t *testing.T) {
	input := writeInput(t, 2000)
	tc := &fakeTranscoder{outputSize: 500}
	svc := NewService(tc, ffmpeg.DefaultTranscodeConfig(), testLogger())

	out, err := svc.Compress(context.Background(), input, 1000)
	require.NoError(t, err)

	assert.Equal(t, OutputPath(input), out)
	assert.FileExists(t, out)
	assert.FileExists(t, input, "input must be left for the caller")
	assert.Equal(t, 1, tc.calls)
	assert.Equal(t, 32, tc.gotCfg.CRF)
}

func TestCompress_ExactlyAtBudget(t *testing.T) {
	input := writeInput(t, 2000)
	svc := NewService(&fakeTranscoder{outputSize: 1000}, ffmpeg.DefaultTranscodeConfig(), testLogger())

	out, err := svc.Compress(context.Background(), input, 1000)
	require.NoError(t, err)
	assert.FileExists(t, out)
}

func TestCompress_StillOverBudget(t *testing.T) {
	input := writeInput(t, 2000)
	svc := NewService(&fakeTranscoder{outputSize: 1500}, ffmpeg.DefaultTranscodeConfig(), testLogger())

	out, err := svc.Compress(context.Background(), input, 1000)
	assert.Empty(t, out)
	assert.ErrorIs(t, err, domain.ErrOverBudget)
	assert.NoFileExists(t, OutputPath(input))
}

func TestCompress_TranscodeFails(t *testing.T) {
	input := writeInput(t, 2000)
	tc := &fakeTranscoder{err: errors.New("exit status 1"), partial: true}
	svc := NewService(tc, ffmpeg.DefaultTranscodeConfig(), testLogger())

	out, err := svc.Compress(context.Background(), input, 1000)
	assert.Empty(t, out)
	assert.ErrorIs(t, err, domain.ErrCompressionFailed)
	assert.NoFileExists(t, OutputPath(input), "partial output must be removed")
}

func TestCompress_TranscodeFailsWithoutOutput(t *testing.T) {
	input := writeInput(t, 2000)
	svc := NewService(&fakeTranscoder{err: errors.New("boom")}, ffmpeg.DefaultTranscodeConfig(), testLogger())

	_, err := svc.Compress(context.Background(), input, 1000)
	assert.ErrorIs(t, err, domain.ErrCompressionFailed)
}
