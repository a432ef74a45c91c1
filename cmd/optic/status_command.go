package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"optic/internal/checkpoint"
	"optic/internal/results"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonFlag bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show checkpoint progress and archive totals",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.checkpointStore()
			if err != nil {
				return err
			}
			state, err := store.Load()
			if err != nil {
				return err
			}

			var archiveCounts map[checkpoint.Status]int
			if err := ctx.withResults(func(archive *results.Store) error {
				counts, err := archive.CountByStatus(cmd.Context())
				if err != nil {
					return err
				}
				archiveCounts = counts
				return nil
			}); err != nil {
				return err
			}

			if jsonFlag {
				doc := map[string]any{
					"checkpoint": state,
					"archive":    archiveCounts,
				}
				return writeJSON(cmd, doc)
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			for _, line := range renderSectionHeader("Checkpoint", colorize) {
				fmt.Fprintln(out, line)
			}
			if state == nil {
				fmt.Fprintln(out, renderStatusLine("State", statusInfo, "no checkpoint; nothing has run yet", colorize))
			} else {
				fmt.Fprintln(out, renderStatusLine("Run", statusInfo, state.RunID, colorize))
				fmt.Fprintln(out, renderStatusLine("Started", statusInfo, state.StartedAt.Local().Format(time.RFC1123), colorize))
				fmt.Fprintln(out, renderStatusLine("Saved", statusInfo, state.SavedAt.Local().Format(time.RFC1123), colorize))
				kind := statusOK
				if state.Counters.Failed > 0 {
					kind = statusWarn
				}
				fmt.Fprintln(out, renderStatusLine("Outcomes", kind,
					fmt.Sprintf("%d attempted, %d succeeded, %d failed",
						state.Counters.Attempted, state.Counters.Succeeded, state.Counters.Failed), colorize))
				fmt.Fprintln(out, renderStatusLine("Detections", statusInfo, strconv.Itoa(state.Stats.Detected), colorize))

				if len(state.Stats.ByCategory) > 0 {
					fmt.Fprintln(out)
					fmt.Fprintln(out, renderCountTable("Category", sortedKeys(state.Stats.ByCategory), state.Stats.ByCategory))
				}
				if len(state.Stats.ByLanguage) > 0 {
					fmt.Fprintln(out)
					fmt.Fprintln(out, renderCountTable("Language", sortedKeys(state.Stats.ByLanguage), state.Stats.ByLanguage))
				}
			}

			if len(archiveCounts) > 0 {
				fmt.Fprintln(out)
				for _, line := range renderSectionHeader("Results Archive", colorize) {
					fmt.Fprintln(out, line)
				}
				fmt.Fprintln(out, renderStatusTable(archiveCounts))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonFlag, "json", false, "Emit status as JSON")
	return cmd
}
