package extractor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/lrstanley/go-ytdlp"

	"github.com/iconidentify/reelgrabba/internal/domain"
)

// YtDlpFetcher implements Fetcher with the yt-dlp binary.
type YtDlpFetcher struct {
	executable string
	logger     *slog.Logger
}

// NewYtDlpFetcher creates a fetcher. An empty executable lets go-ytdlp
// resolve yt-dlp from its cache or PATH.
func NewYtDlpFetcher(executable string, logger *slog.Logger) *YtDlpFetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &YtDlpFetcher{
		executable: executable,
		logger:     logger,
	}
}

// command builds a fresh yt-dlp invocation; nothing is shared between calls.
func (f *YtDlpFetcher) command(policy domain.FormatPolicy, destinationTemplate string) *ytdlp.Command {
	cmd := ytdlp.New().
		Format(policy.String()).
		Output(destinationTemplate).
		NoPlaylist().
		NoWarnings().
		NoProgress().
		ForceOverwrites().
		PrintJSON()

	if f.executable != "" {
		cmd.SetExecutable(f.executable)
	}
	return cmd
}

// Fetch implements Fetcher. yt-dlp writes into a scratch directory beside
// the destination. Only the finished file is moved out; the scratch
// directory is always removed.
func (f *YtDlpFetcher) Fetch(ctx context.Context, url string, policy domain.FormatPolicy, destinationTemplate string) (string, domain.MediaMetadata, error) {
	logger := f.logger.With("request_url", url, "policy", policy.Name())
	logger.Debug("starting yt-dlp download", "format", policy.String())

	destDir := filepath.Dir(destinationTemplate)
	scratch, err := os.MkdirTemp(destDir, ".fetch-*")
	if err != nil {
		return "", domain.MediaMetadata{}, fmt.Errorf("%w: create scratch directory: %v", domain.ErrDownloadFailed, err)
	}
	defer func() {
		if err := os.RemoveAll(scratch); err != nil {
			logger.Warn("failed to remove scratch directory", "path", scratch, "error", err)
		}
	}()
	scratchTemplate := filepath.Join(scratch, filepath.Base(destinationTemplate))

	result, err := f.command(policy, scratchTemplate).Run(ctx, url)
	if err != nil {
		msg := err.Error()
		if result != nil && strings.TrimSpace(result.Stderr) != "" {
			msg = lastLine(result.Stderr)
		}
		return "", domain.MediaMetadata{}, fmt.Errorf("%w: %s", domain.ErrDownloadFailed, msg)
	}

	info, err := ParseInfo(result.Stdout)
	if err != nil {
		return "", domain.MediaMetadata{}, fmt.Errorf("%w: %v", domain.ErrDownloadFailed, err)
	}

	written, err := resolvePath(info, scratchTemplate)
	if err != nil {
		return "", domain.MediaMetadata{}, fmt.Errorf("%w: %v", domain.ErrDownloadFailed, err)
	}

	path := filepath.Join(destDir, filepath.Base(written))
	if err := os.Rename(written, path); err != nil {
		return "", domain.MediaMetadata{}, fmt.Errorf("%w: move download: %v", domain.ErrDownloadFailed, err)
	}

	logger.Info("yt-dlp download finished", "id", info.ID, "path", path)
	return path, info.Metadata(), nil
}

// resolvePath finds the file yt-dlp actually wrote. Reported paths are tried
// first; a glob on <id>.* covers merges that changed the extension.
func resolvePath(info *VideoInfo, destinationTemplate string) (string, error) {
	for _, candidate := range info.candidatePaths() {
		if fileExists(candidate) {
			return candidate, nil
		}
	}

	if info.ID != "" {
		dir := filepath.Dir(destinationTemplate)
		matches, err := filepath.Glob(filepath.Join(dir, globEscape(info.ID)+".*"))
		if err == nil {
			for _, m := range matches {
				if !strings.HasSuffix(m, ".part") && fileExists(m) {
					return m, nil
				}
			}
		}
	}

	return "", errors.New("no file produced")
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	st, err := os.Stat(path)
	return err == nil && st.Mode().IsRegular()
}

func globEscape(s string) string {
	r := strings.NewReplacer(`*`, `\*`, `?`, `\?`, `[`, `\[`, `\`, `\\`)
	return r.Replace(s)
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}
