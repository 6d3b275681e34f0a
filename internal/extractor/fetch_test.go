package extractor

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iconidentify/reelgrabba/internal/domain"
)

// fakeYtDlp writes a shell script standing in for yt-dlp. The script finds
// the output template among its arguments, stores the rendered path for id
// vid1 / ext mp4 in $out, then runs body.
func fakeYtDlp(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script stand-in needs a POSIX shell")
	}

	script := `#!/bin/sh
tmpl=""
while [ $# -gt 0 ]; do
  case "$1" in
    -o|--output) tmpl="$2"; shift ;;
    --output=*) tmpl="${1#--output=}" ;;
  esac
  shift
done
out=$(printf '%s' "$tmpl" | sed -e 's/%(id)s/vid1/' -e 's/%(ext)s/mp4/')
dir=$(dirname "$out")
` + body + "\n"

	path := filepath.Join(t.TempDir(), "yt-dlp")
	require.NoError(t, os.WriteFile(path, []byte(script), 0755))
	return path
}

const printInfo = `printf '{"id":"vid1","title":"cat jumps","uploader":"catfan","duration":14.5,"height":720,"ext":"mp4","requested_downloads":[{"filepath":"%s"}]}\n' "$out"`

func dirEntries(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestYtDlpFetcher_Fetch(t *testing.T) {
	dir := t.TempDir()
	f := NewYtDlpFetcher(fakeYtDlp(t, `printf 'first' > "$out"
`+printInfo), nil)

	path, meta, err := f.Fetch(context.Background(), "https://www.tiktok.com/@u/video/1", domain.StandardPolicy(domain.DefaultSizeBudget), Template(dir))
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "vid1.mp4"), path)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "first", string(data))

	assert.Equal(t, "vid1", meta.ID)
	assert.Equal(t, "cat jumps", meta.TitleOr(""))
	assert.Equal(t, "catfan", meta.UploaderOr(""))
	assert.Equal(t, "14s", meta.DurationLabel())
	assert.Equal(t, "720p", meta.QualityLabel())

	assert.Equal(t, []string{"vid1.mp4"}, dirEntries(t, dir), "only the finished file may remain")
}

func TestYtDlpFetcher_Fetch_OverwritesPreviousFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "vid1.mp4"), []byte("stale"), 0644))

	f := NewYtDlpFetcher(fakeYtDlp(t, `printf 'fresh' > "$out"
`+printInfo), nil)

	path, _, err := f.Fetch(context.Background(), "https://youtube.com/shorts/vid1", domain.DegradedPolicy(), Template(dir))
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "fresh", string(data))
}

func TestYtDlpFetcher_Fetch_Failures(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantMsg string
	}{
		{
			name: "nonzero exit reports last stderr line",
			body: `echo "WARNING: slow" >&2
echo "ERROR: [TikTok] vid1: Unable to extract video data" >&2
exit 1`,
			wantMsg: "ERROR: [TikTok] vid1: Unable to extract video data",
		},
		{
			name: "interrupted download leaves partial file",
			body: `printf 'half' > "$out.part"
echo "ERROR: unable to download video data: timed out" >&2
exit 1`,
			wantMsg: "timed out",
		},
		{
			name: "failed merge leaves format pieces",
			body: `printf 'v' > "$dir/vid1.f137.mp4"
printf 'a' > "$dir/vid1.f140.m4a"
echo "ERROR: Postprocessing: Conversion failed!" >&2
exit 1`,
			wantMsg: "Conversion failed!",
		},
		{
			name: "unparseable output after writing the file",
			body: `printf 'video' > "$out"
echo "not json"`,
			wantMsg: "printed no video info",
		},
		{
			name:    "reported file missing",
			body:    printInfo,
			wantMsg: "no file produced",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			f := NewYtDlpFetcher(fakeYtDlp(t, tt.body), nil)

			path, _, err := f.Fetch(context.Background(), "https://www.tiktok.com/@u/video/1", domain.StandardPolicy(domain.DefaultSizeBudget), Template(dir))

			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrDownloadFailed)
			assert.Contains(t, err.Error(), tt.wantMsg)
			assert.Empty(t, path)
			assert.Empty(t, dirEntries(t, dir), "a failed fetch must leave nothing in the download directory")
		})
	}
}
