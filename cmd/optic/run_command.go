package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"optic/internal/logging"
	"optic/internal/notifications"
	"optic/internal/pipeline"
	"optic/internal/preflight"
	"optic/internal/results"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var sampleFlag int
	var freshFlag bool
	var jsonFlag bool
	var noProgressFlag bool
	var skipChecksFlag bool

	cmd := &cobra.Command{
		Use:   "run [items-file]",
		Short: "Analyze a batch of posts, resuming from the last checkpoint",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			itemsPath := ""
			if len(args) > 0 {
				itemsPath = args[0]
			}
			sample := sampleFlag
			if sample < 0 {
				sample = cfg.Input.SampleSize
			}
			items, err := ctx.loadItems(itemsPath, sample)
			if err != nil {
				return err
			}
			if len(items) == 0 {
				return fmt.Errorf("items file contains no posts")
			}

			if !skipChecksFlag {
				checks := preflight.RunAll(cmd.Context(), cfg)
				if !preflight.AllPassed(checks) {
					out := cmd.OutOrStdout()
					colorize := shouldColorize(out)
					for _, check := range checks {
						kind := statusOK
						if !check.Passed {
							kind = statusError
						}
						fmt.Fprintln(out, renderStatusLine(check.Name, kind, check.Detail, colorize))
					}
					return fmt.Errorf("preflight checks failed")
				}
			}

			store, err := ctx.checkpointStore()
			if err != nil {
				return err
			}
			if freshFlag {
				archived, err := store.Archive()
				if err != nil {
					return fmt.Errorf("archive checkpoint: %w", err)
				}
				if archived != "" && !jsonFlag {
					fmt.Fprintf(cmd.OutOrStdout(), "Archived previous checkpoint to %s\n", archived)
				}
			}

			logger, err := logging.NewFromConfig(cfg)
			if err != nil {
				return fmt.Errorf("configure logging: %w", err)
			}

			cache, err := newMediaCache(cfg, logger)
			if err != nil {
				return err
			}
			analyst := newVisionClient(cfg, logger)

			archive, err := results.Open(cfg.Paths.ResultsDB)
			if err != nil {
				return fmt.Errorf("open results archive: %w", err)
			}
			defer archive.Close()

			opts := []pipeline.Option{
				pipeline.WithArchive(archive),
				pipeline.WithLogger(logger),
			}
			var bar *progressbar.ProgressBar
			if !noProgressFlag && !jsonFlag && isatty.IsTerminal(os.Stderr.Fd()) {
				bar = progressbar.NewOptions(len(items),
					progressbar.OptionSetWriter(os.Stderr),
					progressbar.OptionSetDescription("analyzing"),
					progressbar.OptionShowCount(),
					progressbar.OptionClearOnFinish(),
				)
				opts = append(opts, pipeline.WithProgress(func(p pipeline.Progress) {
					_ = bar.Set(p.Done)
				}))
			}

			orch := pipeline.New(pipeline.Config{
				Workers:            cfg.Pipeline.AnalysisWorkers,
				CheckpointInterval: cfg.Pipeline.CheckpointInterval,
			}, cache, analyst, store, opts...)

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			notifier := notifications.NewService(cfg)
			if err := notifier.NotifyRunStarted(runCtx, len(items)); err != nil {
				logger.Warn("run start notification failed", logging.Error(err))
			}

			summary, err := orch.Run(runCtx, items)
			if bar != nil {
				_ = bar.Finish()
			}
			if err != nil {
				if notifyErr := notifier.NotifyRunFailed(context.Background(), err, "run"); notifyErr != nil {
					logger.Warn("run failure notification failed", logging.Error(notifyErr))
				}
				return err
			}

			if notifyErr := notifier.NotifyRunCompleted(context.Background(),
				summary.Succeeded, summary.Failed, summary.Detected, summary.Elapsed); notifyErr != nil {
				logger.Warn("run completion notification failed", logging.Error(notifyErr))
			}

			if jsonFlag {
				return writeJSON(cmd, summary)
			}
			renderSummary(cmd.OutOrStdout(), summary)
			return nil
		},
	}

	cmd.Flags().IntVar(&sampleFlag, "sample", 0, "Analyze only the N most recent posts (bare --sample uses input.sample_size)")
	cmd.Flags().Lookup("sample").NoOptDefVal = "-1"
	cmd.Flags().BoolVar(&freshFlag, "fresh", false, "Archive any existing checkpoint and start over")
	cmd.Flags().BoolVar(&jsonFlag, "json", false, "Emit the run summary as JSON")
	cmd.Flags().BoolVar(&noProgressFlag, "no-progress", false, "Disable the progress bar")
	cmd.Flags().BoolVar(&skipChecksFlag, "skip-checks", false, "Skip preflight checks")
	return cmd
}
