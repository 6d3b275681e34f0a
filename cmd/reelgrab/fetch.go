package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/iconidentify/reelgrabba/internal/domain"
	"github.com/iconidentify/reelgrabba/internal/platform"
)

// fetchResult is printed as JSON after every fetch.
type fetchResult struct {
	OK         bool    `json:"ok"`
	Reason     string  `json:"reason,omitempty"`
	URL        string  `json:"url"`
	Platform   string  `json:"platform"`
	Path       string  `json:"path,omitempty"`
	SizeBytes  int64   `json:"size_bytes,omitempty"`
	Compressed bool    `json:"compressed,omitempty"`
	Title      *string `json:"title,omitempty"`
	Uploader   *string `json:"uploader,omitempty"`
	Duration   string  `json:"duration,omitempty"`
	Quality    string  `json:"quality,omitempty"`
}

type fetchOptions struct {
	outDir  string
	budget  int64
	discard bool
}

func newFetchCmd(root *rootOptions, d deps) *cobra.Command {
	opts := &fetchOptions{}

	cmd := &cobra.Command{
		Use:   "fetch <url>",
		Short: "Acquire one video and print the outcome as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFetch(cmd, root, d, opts, args[0])
		},
	}

	cmd.Flags().StringVarP(&opts.outDir, "out", "o", ".", "Directory to move the video into")
	cmd.Flags().Int64Var(&opts.budget, "budget", 0, "Size budget in bytes (default from config)")
	cmd.Flags().BoolVar(&opts.discard, "discard", false, "Delete the video instead of keeping it")

	return cmd
}

func runFetch(cmd *cobra.Command, root *rootOptions, d deps, opts *fetchOptions, url string) error {
	cfg := root.cfg
	if opts.budget > 0 {
		cfg.Media.MaxFileSize = opts.budget
	}

	// Each run works in its own scratch directory so nothing is left behind.
	workDir, err := os.MkdirTemp("", "reelgrab-*")
	if err != nil {
		return fmt.Errorf("create work directory: %w", err)
	}
	defer os.RemoveAll(workDir)
	cfg.Media.DownloadPath = workDir

	acquirer, err := d.newAcquirer(cmd.Context(), cfg, root.logger)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if cfg.Acquire.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Acquire.Timeout)
		defer cancel()
	}

	outcome := acquirer.Acquire(ctx, domain.AcquisitionRequest{
		URL:             url,
		SizeBudgetBytes: cfg.Media.MaxFileSize,
	})

	result := fetchResult{
		OK:       outcome.OK(),
		Reason:   outcome.Reason(),
		URL:      url,
		Platform: platform.Detect(url).String(),
	}

	if artifact, ok := outcome.Artifact(); ok {
		result.SizeBytes = artifact.SizeBytes
		result.Compressed = artifact.Compressed
		result.Title = artifact.Metadata.Title
		result.Uploader = artifact.Metadata.Uploader
		result.Duration = artifact.Metadata.DurationLabel()
		result.Quality = artifact.Metadata.QualityLabel()

		if !opts.discard {
			dest, err := moveFile(artifact.LocalPath, opts.outDir)
			if err != nil {
				return err
			}
			result.Path = dest
		}
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return err
	}

	if !result.OK {
		return errors.New(result.Reason)
	}
	return nil
}

// moveFile moves src into dir keeping its base name. It falls back to a
// copy when src and dir are on different filesystems.
func moveFile(src, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}
	dest, err := filepath.Abs(filepath.Join(dir, filepath.Base(src)))
	if err != nil {
		return "", err
	}

	if err := os.Rename(src, dest); err == nil {
		return dest, nil
	}

	in, err := os.Open(src)
	if err != nil {
		return "", fmt.Errorf("open artifact: %w", err)
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return "", fmt.Errorf("create output file: %w", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dest)
		return "", fmt.Errorf("copy artifact: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(dest)
		return "", fmt.Errorf("copy artifact: %w", err)
	}
	os.Remove(src)
	return dest, nil
}
