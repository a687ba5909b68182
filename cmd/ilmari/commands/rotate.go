package commands

import (
	"github.com/spf13/cobra"

	"github.com/yairfalse/ilmari/internal/rotation"
)

func newRotateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rotate [device]",
		Short: "Rotate device passwords and rewrite the credential file",
		Long: `Generate a new password for every device in the credential file, push it
to the device and save the device configuration. The credential file is then
rewritten with the new passwords and the hostnames learned from the devices.
The previous file is kept under {storage.base_dir}/backups.

A device that cannot be reached keeps its old password. A device that accepted
the new password but failed to save its configuration keeps the new one and
is reported as unsaved.`,
		Example: `  # See what would happen without touching anything
  ilmari rotate --dry-run

  # Rotate a single device
  ilmari rotate R1`,
		Args: cobra.MaximumNArgs(1),
		RunE: runRotate,
	}

	cmd.Flags().Bool("dry-run", false, "generate passwords and report without connecting or writing")

	return cmd
}

func runRotate(cmd *cobra.Command, args []string) error {
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	a, err := getApp()
	if err != nil {
		return err
	}
	creds, err := a.Credentials()
	if err != nil {
		return err
	}

	only := ""
	if len(args) > 0 {
		target, err := creds.Lookup(args[0])
		if err != nil {
			return err
		}
		only = target.CanonicalID
	}

	rotator, err := a.Rotator(dryRun, only)
	if err != nil {
		return err
	}

	summary, err := rotator.Rotate(withProgress(cmd), creds.Records())
	if summary != nil {
		if perr := newPrinter(cmd).Rotation(summary); perr != nil && err == nil {
			err = perr
		}
	}
	if err != nil {
		return err
	}

	for _, o := range summary.Outcomes {
		if o.Status == rotation.StatusFailed || o.Status == rotation.StatusUnsaved {
			return reported(o.Err)
		}
	}
	return nil
}
