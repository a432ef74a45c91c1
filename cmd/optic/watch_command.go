package main

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"optic/internal/tui"
)

func newWatchCommand(ctx *commandContext) *cobra.Command {
	var itemsFlag string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch a running batch live",
		Long: "Watch polls the checkpoint file read-only and renders live progress.\n" +
			"It never takes the run lock, so it can observe a run owned by another process.",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.checkpointStore()
			if err != nil {
				return err
			}

			// The batch size comes from the items file when available so the
			// bar can show a percentage.
			total := 0
			if items, err := ctx.loadItems(itemsFlag, 0); err == nil {
				total = len(items)
			}

			program := tea.NewProgram(tui.NewWatchModel(store, total))
			if _, err := program.Run(); err != nil {
				return fmt.Errorf("watch ui: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&itemsFlag, "items", "", "Items file used to size the progress bar")
	return cmd
}
