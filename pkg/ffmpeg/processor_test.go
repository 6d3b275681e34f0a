package ffmpeg

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestBuildTranscodeArgs_Defaults(t *testing.T) {
	got := strings.Join(BuildTranscodeArgs("in.webm", "in_compressed.mp4", TranscodeConfig{}), " ")
	want := "-y -i in.webm -c:v libx264 -preset veryfast -crf 32 -vf scale=480:-2 -c:a aac -b:a 96k -movflags +faststart in_compressed.mp4"
	if got != want {
		t.Errorf("BuildTranscodeArgs() =\n  %s\nwant\n  %s", got, want)
	}
}

func TestBuildTranscodeArgs_Custom(t *testing.T) {
	args := BuildTranscodeArgs("a.mp4", "b.mp4", TranscodeConfig{
		Preset:       "ultrafast",
		CRF:          35,
		Width:        360,
		AudioBitrate: "64k",
	})
	joined := strings.Join(args, " ")

	for _, part := range []string{"-preset ultrafast", "-crf 35", "scale=360:-2", "-b:a 64k"} {
		if !strings.Contains(joined, part) {
			t.Errorf("args %q missing %q", joined, part)
		}
	}
	if args[len(args)-1] != "b.mp4" {
		t.Errorf("output path should be last, got %q", args[len(args)-1])
	}
}

func TestParseProbeOutput(t *testing.T) {
	raw := []byte(`{
		"streams": [
			{"codec_type": "video", "codec_name": "h264", "width": 720, "height": 1280, "avg_frame_rate": "30000/1001"},
			{"codec_type": "audio", "codec_name": "aac"}
		],
		"format": {"duration": "14.98", "bit_rate": "1843200"}
	}`)

	info, err := ParseProbeOutput(raw)
	if err != nil {
		t.Fatalf("ParseProbeOutput() error = %v", err)
	}

	if info.Width != 720 || info.Height != 1280 {
		t.Errorf("dimensions = %dx%d, want 720x1280", info.Width, info.Height)
	}
	if info.Duration != 14.98 {
		t.Errorf("Duration = %v, want 14.98", info.Duration)
	}
	if !info.HasAudio || info.AudioCodec != "aac" {
		t.Errorf("audio = %v/%q, want true/aac", info.HasAudio, info.AudioCodec)
	}
	if info.VideoCodec != "h264" {
		t.Errorf("VideoCodec = %q, want h264", info.VideoCodec)
	}
	if info.FrameRate < 29.9 || info.FrameRate > 30 {
		t.Errorf("FrameRate = %v, want ~29.97", info.FrameRate)
	}
	if info.Bitrate != 1843200 {
		t.Errorf("Bitrate = %d, want 1843200", info.Bitrate)
	}
}

func TestParseProbeOutput_Invalid(t *testing.T) {
	if _, err := ParseProbeOutput([]byte("not json")); err == nil {
		t.Error("expected error for invalid probe output")
	}
}

func TestParseFrameRate(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"25/1", 25},
		{"0/0", 0},
		{"", 0},
		{"30", 0},
		{"x/1", 0},
		{"1/0", 0},
	}
	for _, tt := range tests {
		if got := parseFrameRate(tt.in); got != tt.want {
			t.Errorf("parseFrameRate(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestCleanupTempFiles(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.mp4")
	if err := os.WriteFile(a, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := CleanupTempFiles(a, filepath.Join(dir, "missing.mp4"), ""); err != nil {
		t.Errorf("CleanupTempFiles() error = %v", err)
	}
	if _, err := os.Stat(a); !os.IsNotExist(err) {
		t.Error("file should have been removed")
	}
}

func TestTail(t *testing.T) {
	if got := tail("  short  ", 10); got != "short" {
		t.Errorf("tail() = %q", got)
	}
	if got := tail("0123456789", 4); got != "...6789" {
		t.Errorf("tail() = %q", got)
	}
}

func TestVideoProcessor_IsAvailable(t *testing.T) {
	dir := t.TempDir()
	bin := filepath.Join(dir, "ffmpeg")
	if err := os.WriteFile(bin, []byte("#!/bin/sh\n"), 0755); err != nil {
		t.Fatal(err)
	}
	plain := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(plain, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		path string
		want bool
	}{
		{"executable", bin, true},
		{"not executable", plain, false},
		{"directory", dir, false},
		{"missing", filepath.Join(dir, "gone"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &VideoProcessor{ffmpegPath: tt.path}
			if got := p.IsAvailable(); got != tt.want {
				t.Errorf("IsAvailable() = %v, want %v", got, tt.want)
			}
		})
	}
}
