package commands

import (
	"github.com/spf13/cobra"
)

func newExportCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export [device]",
		Short: "Save the running config of a device as YAML",
		Long: `Fetch the running config of a device and write its normalized lines as a
YAML list to {storage.export_dir}/{device}-running-config.yaml. Exports are
overwritten on every run and are not golden configs.`,
		Example: `  ilmari export 10.0.0.1
  ilmari export --all`,
		Args: cobra.MaximumNArgs(1),
		RunE: runExport,
	}

	cmd.Flags().Bool("all", false, "export every device in the credential file")

	return cmd
}

func runExport(cmd *cobra.Command, args []string) error {
	all, _ := cmd.Flags().GetBool("all")
	if err := exactlyOneOrAll(all, args); err != nil {
		return err
	}

	a, err := getApp()
	if err != nil {
		return err
	}
	o, err := a.Orchestrator(false)
	if err != nil {
		return err
	}

	return runWorkflow(cmd, args, all, o.Export, o.ExportAll)
}
