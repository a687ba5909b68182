package commands

import (
	"github.com/spf13/cobra"

	"github.com/yairfalse/ilmari/internal/ipam"
)

func newIPAMCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ipam",
		Short: "Collect and show the IP address inventory",
		Long: `Build an inventory of the IPv4, IPv6 and loopback addresses configured on
every device in the credential file. The inventory is written as CSV to
storage.ipam_file.`,
	}

	cmd.AddCommand(newIPAMCollectCommand())
	cmd.AddCommand(newIPAMShowCommand())

	return cmd
}

func newIPAMCollectCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "collect",
		Short: "Query every device and rewrite the inventory",
		Args:  cobra.NoArgs,
		RunE:  runIPAMCollect,
	}

	cmd.Flags().String("file", "", "inventory file (overrides storage.ipam_file)")

	return cmd
}

func runIPAMCollect(cmd *cobra.Command, args []string) error {
	a, err := getApp()
	if err != nil {
		return err
	}
	creds, err := a.Credentials()
	if err != nil {
		return err
	}
	collector, err := a.Collector()
	if err != nil {
		return err
	}

	path := a.Config().Storage.IPAMFile
	if file, _ := cmd.Flags().GetString("file"); file != "" {
		path = file
	}

	inv, err := collector.Collect(withProgress(cmd), creds.Records(), path)
	if inv != nil {
		if perr := newPrinter(cmd).Inventory(inv); perr != nil && err == nil {
			err = perr
		}
	}
	if err != nil {
		return err
	}
	if len(inv.Failures) > 0 {
		return reported(inv.Failures[0].Err)
	}
	return nil
}

func newIPAMShowCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show [device]",
		Short: "Print the last collected inventory",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runIPAMShow,
	}

	cmd.Flags().String("file", "", "inventory file (overrides storage.ipam_file)")

	return cmd
}

func runIPAMShow(cmd *cobra.Command, args []string) error {
	path := cfg.Storage.IPAMFile
	if file, _ := cmd.Flags().GetString("file"); file != "" {
		path = file
	}

	records, err := ipam.ReadCSV(path)
	if err != nil {
		return err
	}
	if len(args) > 0 {
		records = ipam.FilterDevice(records, args[0])
	}
	return newPrinter(cmd).IPAM(records)
}
