// Command reelgrab runs the acquisition pipeline from the terminal.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/iconidentify/reelgrabba/internal/acquire"
	"github.com/iconidentify/reelgrabba/internal/app"
	"github.com/iconidentify/reelgrabba/internal/config"
	"github.com/iconidentify/reelgrabba/pkg/ffmpeg"
)

// Version is set at build time via ldflags.
var Version = "dev"

// prober reads stream information from a local file.
type prober interface {
	GetVideoInfo(ctx context.Context, path string) (*ffmpeg.VideoInfo, error)
}

// deps builds the pieces that talk to external tools, so commands can be
// exercised without yt-dlp or ffmpeg installed.
type deps struct {
	newAcquirer func(ctx context.Context, cfg *config.Config, logger *slog.Logger) (acquire.Acquirer, error)
	newProber   func(cfg *config.Config) (prober, error)
}

func defaultDeps() deps {
	return deps{
		newAcquirer: func(ctx context.Context, cfg *config.Config, logger *slog.Logger) (acquire.Acquirer, error) {
			p, err := app.NewPipeline(ctx, cfg, logger)
			if err != nil {
				return nil, err
			}
			return p.Orchestrator, nil
		},
		newProber: func(cfg *config.Config) (prober, error) {
			return ffmpeg.NewVideoProcessor(cfg.Tools.FFmpegPath, cfg.Tools.FFprobePath)
		},
	}
}

// rootOptions holds the persistent flags.
type rootOptions struct {
	configPath string
	verbose    bool

	cfg    *config.Config
	logger *slog.Logger
}

func newRootCmd(d deps) *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "reelgrab",
		Short:         "Download short social videos that fit a size budget",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load(cmd)
		},
	}

	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to YAML config file")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Log pipeline steps to stderr")

	root.AddCommand(newFetchCmd(opts, d))
	root.AddCommand(newScanCmd())
	root.AddCommand(newProbeCmd(opts, d))

	return root
}

func (o *rootOptions) load(cmd *cobra.Command) error {
	level := slog.LevelWarn
	if o.verbose {
		level = slog.LevelDebug
	}
	o.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	cfg, err := config.Load(o.configPath)
	if err != nil {
		return err
	}
	o.cfg = cfg
	return nil
}

func main() {
	root := newRootCmd(defaultDeps())
	if err := root.Execute(); err != nil {
		root.PrintErrln("Error:", err)
		os.Exit(1)
	}
}
