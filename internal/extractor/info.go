package extractor

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/iconidentify/reelgrabba/internal/domain"
)

// VideoInfo is the subset of yt-dlp's info JSON the pipeline reads.
type VideoInfo struct {
	ID                 string              `json:"id"`
	Title              *string             `json:"title"`
	Uploader           *string             `json:"uploader"`
	Channel            *string             `json:"channel"`
	Duration           *float64            `json:"duration"`
	Height             *float64            `json:"height"`
	Ext                string              `json:"ext"`
	Filename           string              `json:"filename"`
	LegacyFilename     string              `json:"_filename"`
	RequestedDownloads []requestedDownload `json:"requested_downloads"`
}

type requestedDownload struct {
	Filepath string `json:"filepath"`
}

// ParseInfo decodes the info JSON printed by yt-dlp. When several objects are
// printed the last one wins.
func ParseInfo(stdout string) (*VideoInfo, error) {
	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if !strings.HasPrefix(line, "{") {
			continue
		}
		var info VideoInfo
		if err := json.Unmarshal([]byte(line), &info); err != nil {
			return nil, fmt.Errorf("parse yt-dlp output: %w", err)
		}
		return &info, nil
	}
	return nil, errors.New("yt-dlp printed no video info")
}

// Metadata converts the info into domain metadata. Missing fields stay nil.
func (v *VideoInfo) Metadata() domain.MediaMetadata {
	meta := domain.MediaMetadata{
		ID:              v.ID,
		Title:           v.Title,
		Uploader:        v.Uploader,
		DurationSeconds: v.Duration,
	}
	if meta.Uploader == nil {
		meta.Uploader = v.Channel
	}
	if v.Height != nil {
		h := int(*v.Height)
		meta.HeightPixels = &h
	}
	return meta
}

func (v *VideoInfo) candidatePaths() []string {
	var paths []string
	for _, d := range v.RequestedDownloads {
		paths = append(paths, d.Filepath)
	}
	return append(paths, v.Filename, v.LegacyFilename)
}
