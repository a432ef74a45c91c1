package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"optic/internal/checkpoint"
	"optic/internal/config"
	"optic/internal/fileutil"
	"optic/internal/results"
)

func newExportCommand(ctx *commandContext) *cobra.Command {
	var outputFlag string
	var statusFlag string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export archived analysis results as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withResults(func(archive *results.Store) error {
				records, err := archive.List(cmd.Context())
				if err != nil {
					return err
				}

				if filter := strings.TrimSpace(statusFlag); filter != "" {
					want := checkpoint.Status(filter)
					filtered := records[:0]
					for _, rec := range records {
						if rec.Status == want {
							filtered = append(filtered, rec)
						}
					}
					records = filtered
				}

				if strings.TrimSpace(outputFlag) == "" {
					return writeJSON(cmd, records)
				}

				target, err := config.ExpandPath(outputFlag)
				if err != nil {
					return err
				}
				data, err := json.MarshalIndent(records, "", "  ")
				if err != nil {
					return fmt.Errorf("encode results: %w", err)
				}
				data = append(data, '\n')
				if err := fileutil.WriteFileAtomic(target, data, 0o644); err != nil {
					return fmt.Errorf("write export: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Exported %d record(s) to %s\n", len(records), target)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&outputFlag, "output", "o", "", "Write JSON to this file instead of stdout")
	cmd.Flags().StringVar(&statusFlag, "status", "", "Only export records with this status")
	return cmd
}
