package commands

import (
	"github.com/spf13/cobra"

	"github.com/yairfalse/ilmari/internal/journal"
)

func newHistoryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show what ilmari did recently",
		Long: `List recent entries of the run journal, newest first. Every capture,
compare, export, rotation, IPAM collection and health check is journaled.`,
		Example: `  # Last 20 operations
  ilmari history

  # Compares of one device
  ilmari history --device R1 --operation compare

  # As JSON
  ilmari history --output json`,
		Args: cobra.NoArgs,
		RunE: runHistory,
	}

	cmd.Flags().StringP("device", "d", "", "only entries for this device")
	cmd.Flags().String("operation", "", "only entries of this operation (capture, compare, export, rotate, ipam, health)")
	cmd.Flags().IntP("limit", "l", 20, "limit number of entries shown")

	return cmd
}

func runHistory(cmd *cobra.Command, args []string) error {
	device, _ := cmd.Flags().GetString("device")
	operation, _ := cmd.Flags().GetString("operation")
	limit, _ := cmd.Flags().GetInt("limit")

	a, err := getApp()
	if err != nil {
		return err
	}
	j, err := a.Journal()
	if err != nil {
		return err
	}

	entries, err := j.Recent(cmd.Context(), journal.Filter{
		Device:    device,
		Operation: operation,
		Limit:     limit,
	})
	if err != nil {
		return err
	}
	return newPrinter(cmd).Journal(entries)
}
