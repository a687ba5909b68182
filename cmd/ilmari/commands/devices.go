package commands

import (
	"github.com/spf13/cobra"
)

func newDevicesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List the devices in the credential file",
		Long: `List the devices in the credential file with the device type used to pick
their commands. Passwords are never printed.`,
		Args: cobra.NoArgs,
		RunE: runDevices,
	}
}

func runDevices(cmd *cobra.Command, args []string) error {
	a, err := getApp()
	if err != nil {
		return err
	}
	creds, err := a.Credentials()
	if err != nil {
		return err
	}
	return newPrinter(cmd).Devices(creds.Devices(a.Resolver()))
}
