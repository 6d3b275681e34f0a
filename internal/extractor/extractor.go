// Package extractor resolves social video URLs and downloads them through yt-dlp.
package extractor

import (
	"context"
	"path/filepath"

	"github.com/iconidentify/reelgrabba/internal/domain"
)

// Fetcher downloads one video for a URL using a format policy.
type Fetcher interface {
	// Fetch downloads the video at url into a file named by destinationTemplate
	// and returns its local path with whatever metadata the backend reported.
	// Every failure wraps domain.ErrDownloadFailed and leaves no files behind.
	Fetch(ctx context.Context, url string, policy domain.FormatPolicy, destinationTemplate string) (string, domain.MediaMetadata, error)
}

// Template returns the output template that names downloads <id>.<ext> inside dir.
func Template(dir string) string {
	return filepath.Join(dir, "%(id)s.%(ext)s")
}
