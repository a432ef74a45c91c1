package main

import (
	"fmt"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"optic/internal/results"
	"optic/internal/textutil"
)

func newFailuresCommand(ctx *commandContext) *cobra.Command {
	var jsonFlag bool

	cmd := &cobra.Command{
		Use:   "failures",
		Short: "List failed posts with their failure category and evidence",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withResults(func(archive *results.Store) error {
				failures, err := archive.Failures(cmd.Context())
				if err != nil {
					return err
				}

				if jsonFlag {
					return writeJSON(cmd, failures)
				}

				out := cmd.OutOrStdout()
				if len(failures) == 0 {
					fmt.Fprintln(out, "No failed posts recorded")
					return nil
				}

				rows := make([]table.Row, 0, len(failures))
				for _, rec := range failures {
					rows = append(rows, table.Row{
						rec.ItemID,
						string(rec.Status),
						strconv.Itoa(rec.Attempts),
						textutil.Snippet(rec.Error, 70),
					})
				}
				fmt.Fprintln(out, renderTable(
					table.Row{"Item", "Status", "Attempts", "Evidence"},
					rows,
					3,
				))
				fmt.Fprintf(out, "%d failed post(s)\n", len(failures))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonFlag, "json", false, "Emit failures as JSON")
	return cmd
}
