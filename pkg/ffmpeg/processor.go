package ffmpeg

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// ErrNotFound is returned when the ffmpeg or ffprobe binary cannot be resolved.
var ErrNotFound = errors.New("ffmpeg binary not found")

// VideoProcessor runs ffmpeg and ffprobe as subprocesses.
type VideoProcessor struct {
	ffmpegPath  string
	ffprobePath string
}

// NewVideoProcessor creates a new video processor.
// Empty paths are resolved from PATH.
func NewVideoProcessor(ffmpegPath, ffprobePath string) (*VideoProcessor, error) {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}

	resolvedFFmpeg, err := exec.LookPath(ffmpegPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrNotFound, ffmpegPath, err)
	}

	// ffprobe is only needed for GetVideoInfo; transcoding works without it.
	resolvedProbe, err := exec.LookPath(ffprobePath)
	if err != nil {
		resolvedProbe = ""
	}

	return &VideoProcessor{
		ffmpegPath:  resolvedFFmpeg,
		ffprobePath: resolvedProbe,
	}, nil
}

// FFmpegPath returns the resolved ffmpeg binary path.
func (p *VideoProcessor) FFmpegPath() string {
	return p.ffmpegPath
}

// TranscodeConfig configures the size-reducing re-encode.
type TranscodeConfig struct {
	Preset       string // x264 preset (default: veryfast)
	CRF          int    // Constant rate factor, higher is smaller (default: 32)
	Width        int    // Target width, height keeps aspect and stays even (default: 480)
	AudioBitrate string // AAC bitrate (default: 96k)
}

// DefaultTranscodeConfig returns the recipe used to squeeze clips under an attachment limit.
func DefaultTranscodeConfig() TranscodeConfig {
	return TranscodeConfig{
		Preset:       "veryfast",
		CRF:          32,
		Width:        480,
		AudioBitrate: "96k",
	}
}

func (c TranscodeConfig) withDefaults() TranscodeConfig {
	def := DefaultTranscodeConfig()
	if c.Preset == "" {
		c.Preset = def.Preset
	}
	if c.CRF <= 0 {
		c.CRF = def.CRF
	}
	if c.Width <= 0 {
		c.Width = def.Width
	}
	if c.AudioBitrate == "" {
		c.AudioBitrate = def.AudioBitrate
	}
	return c
}

// BuildTranscodeArgs returns the ffmpeg argument list for a transcode.
func BuildTranscodeArgs(inputPath, outputPath string, cfg TranscodeConfig) []string {
	cfg = cfg.withDefaults()
	return []string{
		"-y",
		"-i", inputPath,
		"-c:v", "libx264",
		"-preset", cfg.Preset,
		"-crf", strconv.Itoa(cfg.CRF),
		"-vf", fmt.Sprintf("scale=%d:-2", cfg.Width),
		"-c:a", "aac",
		"-b:a", cfg.AudioBitrate,
		"-movflags", "+faststart",
		outputPath,
	}
}

// Transcode re-encodes inputPath into outputPath. The exit code is the only
// success signal; on failure the error carries the tail of stderr.
func (p *VideoProcessor) Transcode(ctx context.Context, inputPath, outputPath string, cfg TranscodeConfig) error {
	var stdout, stderr bytes.Buffer

	cmd := exec.CommandContext(ctx, p.ffmpegPath, BuildTranscodeArgs(inputPath, outputPath, cfg)...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("transcode: %w: %s", err, tail(stderr.String(), 512))
	}
	return nil
}

// VideoInfo contains metadata about a video file.
type VideoInfo struct {
	Duration   float64 `json:"duration"` // Duration in seconds
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	HasAudio   bool    `json:"has_audio"`
	AudioCodec string  `json:"audio_codec,omitempty"`
	VideoCodec string  `json:"video_codec,omitempty"`
	Bitrate    int64   `json:"bitrate"`
	FrameRate  float64 `json:"frame_rate"`
	FileSize   int64   `json:"file_size"`
}

// GetVideoInfo extracts metadata from a video file.
func (p *VideoProcessor) GetVideoInfo(ctx context.Context, videoPath string) (*VideoInfo, error) {
	if p.ffprobePath == "" {
		return nil, fmt.Errorf("%w: ffprobe", ErrNotFound)
	}

	stat, err := os.Stat(videoPath)
	if err != nil {
		return nil, fmt.Errorf("stat video: %w", err)
	}

	cmd := exec.CommandContext(ctx, p.ffprobePath,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		videoPath,
	)

	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffprobe: %w", err)
	}

	info, err := ParseProbeOutput(output)
	if err != nil {
		return nil, err
	}
	info.FileSize = stat.Size()

	return info, nil
}

type ffprobeFormat struct {
	Duration string `json:"duration"`
	BitRate  string `json:"bit_rate"`
}

type ffprobeStream struct {
	CodecType    string `json:"codec_type"`
	CodecName    string `json:"codec_name"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	AvgFrameRate string `json:"avg_frame_rate"`
}

type ffprobeOutput struct {
	Format  ffprobeFormat   `json:"format"`
	Streams []ffprobeStream `json:"streams"`
}

// ParseProbeOutput decodes ffprobe's -print_format json output.
func ParseProbeOutput(output []byte) (*VideoInfo, error) {
	var parsed ffprobeOutput
	if err := json.Unmarshal(output, &parsed); err != nil {
		return nil, fmt.Errorf("parse ffprobe output: %w", err)
	}

	info := &VideoInfo{}

	if parsed.Format.Duration != "" {
		if dur, err := strconv.ParseFloat(parsed.Format.Duration, 64); err == nil {
			info.Duration = dur
		}
	}

	if parsed.Format.BitRate != "" {
		if br, err := strconv.ParseInt(parsed.Format.BitRate, 10, 64); err == nil {
			info.Bitrate = br
		}
	}

	for _, s := range parsed.Streams {
		switch s.CodecType {
		case "audio":
			info.HasAudio = true
			if info.AudioCodec == "" {
				info.AudioCodec = s.CodecName
			}
		case "video":
			if info.VideoCodec == "" {
				info.VideoCodec = s.CodecName
			}
			if info.Width == 0 && s.Width > 0 {
				info.Width = s.Width
			}
			if info.Height == 0 && s.Height > 0 {
				info.Height = s.Height
			}
			if info.FrameRate == 0 {
				info.FrameRate = parseFrameRate(s.AvgFrameRate)
			}
		}
	}

	return info, nil
}

func parseFrameRate(rate string) float64 {
	if rate == "" || rate == "0/0" {
		return 0
	}
	parts := strings.SplitN(rate, "/", 2)
	if len(parts) != 2 {
		return 0
	}
	num, err1 := strconv.ParseFloat(parts[0], 64)
	den, err2 := strconv.ParseFloat(parts[1], 64)
	if err1 != nil || err2 != nil || den == 0 {
		return 0
	}
	return num / den
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}

// CleanupTempFiles removes temporary files created during processing.
// Missing files are not an error; the first other failure is returned.
func CleanupTempFiles(paths ...string) error {
	var firstErr error
	for _, path := range paths {
		if path == "" {
			continue
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// IsAvailable reports whether the resolved ffmpeg binary can still be run.
func (p *VideoProcessor) IsAvailable() bool {
	info, err := os.Stat(p.ffmpegPath)
	return err == nil && !info.IsDir() && info.Mode()&0111 != 0
}

// Version returns the first line of "ffmpeg -version".
func (p *VideoProcessor) Version(ctx context.Context) (string, error) {
	output, err := exec.CommandContext(ctx, p.ffmpegPath, "-version").Output()
	if err != nil {
		return "", err
	}
	line, _, _ := strings.Cut(string(output), "\n")
	if line = strings.TrimSpace(line); line != "" {
		return line, nil
	}
	return "unknown", nil
}
