package domain

import (
	"fmt"
	"strconv"
)

// AcquisitionRequest asks the pipeline for one video no larger than
// SizeBudgetBytes.
type AcquisitionRequest struct {
	URL             string
	SizeBudgetBytes int64
}

// MediaMetadata describes a downloaded video. Every field is optional;
// callers must treat a nil field as "unknown", never as an error.
type MediaMetadata struct {
	ID              string   `json:"id,omitempty"`
	Title           *string  `json:"title,omitempty"`
	Uploader        *string  `json:"uploader,omitempty"`
	DurationSeconds *float64 `json:"duration_seconds,omitempty"`
	HeightPixels    *int     `json:"height_pixels,omitempty"`
}

// TitleOr returns the title, or fallback when it is missing.
func (m MediaMetadata) TitleOr(fallback string) string {
	if m.Title == nil || *m.Title == "" {
		return fallback
	}
	return *m.Title
}

// UploaderOr returns the uploader name, or fallback when it is missing.
func (m MediaMetadata) UploaderOr(fallback string) string {
	if m.Uploader == nil || *m.Uploader == "" {
		return fallback
	}
	return *m.Uploader
}

// DurationLabel renders the duration as whole seconds ("15s"), or "" when unknown.
func (m MediaMetadata) DurationLabel() string {
	if m.DurationSeconds == nil || *m.DurationSeconds <= 0 {
		return ""
	}
	return fmt.Sprintf("%ds", int(*m.DurationSeconds))
}

// QualityLabel renders the height as "720p", or "" when unknown.
func (m MediaMetadata) QualityLabel() string {
	if m.HeightPixels == nil || *m.HeightPixels <= 0 {
		return ""
	}
	return strconv.Itoa(*m.HeightPixels) + "p"
}

// MediaArtifact is a file on local disk produced by the pipeline. The holder
// of an artifact is responsible for deleting LocalPath once it is consumed.
type MediaArtifact struct {
	LocalPath  string        `json:"local_path"`
	Metadata   MediaMetadata `json:"metadata"`
	SizeBytes  int64         `json:"size_bytes"`
	Platform   PlatformTag   `json:"platform"`
	Compressed bool          `json:"compressed"`
}

// Outcome is the all-or-nothing result of one acquisition: either a
// successful artifact or a failure reason.
type Outcome struct {
	artifact *MediaArtifact
	reason   string
}

// Success builds a successful outcome.
func Success(artifact MediaArtifact) Outcome {
	return Outcome{artifact: &artifact}
}

// Failure builds a failed outcome with a human-readable reason.
func Failure(reason string) Outcome {
	return Outcome{reason: reason}
}

// OK reports whether the outcome carries an artifact.
func (o Outcome) OK() bool {
	return o.artifact != nil
}

// Artifact returns the artifact of a successful outcome.
func (o Outcome) Artifact() (MediaArtifact, bool) {
	if o.artifact == nil {
		return MediaArtifact{}, false
	}
	return *o.artifact, true
}

// Reason returns the failure reason, or "" for a success.
func (o Outcome) Reason() string {
	return o.reason
}
