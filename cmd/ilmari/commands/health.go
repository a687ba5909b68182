package commands

import (
	"github.com/spf13/cobra"
)

func newHealthCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "health <device>",
		Short: "Check reachability, routing, neighbors and CPU of a device",
		Long: `Run a health check over one SSH connection: ping the configured IPv4 and
IPv6 targets from the device, read the routing table and routing neighbors
(OSPF, falling back to CDP and then LLDP) and compare CPU load against
health.cpu_threshold.`,
		Example: `  ilmari health R1
  ilmari health 10.0.0.1 --target 8.8.8.8 --target 2001:4860:4860::8888`,
		Args: cobra.ExactArgs(1),
		RunE: runHealth,
	}

	cmd.Flags().StringSlice("target", nil, "ping target (overrides health.ping_targets, repeatable)")
	cmd.Flags().Float64("cpu-threshold", 0, "CPU percentage considered high (overrides health.cpu_threshold)")

	return cmd
}

func runHealth(cmd *cobra.Command, args []string) error {
	a, err := getApp()
	if err != nil {
		return err
	}
	checker, err := a.Checker()
	if err != nil {
		return err
	}

	if targets, _ := cmd.Flags().GetStringSlice("target"); len(targets) > 0 {
		checker.PingTargets = targets
	}
	if threshold, _ := cmd.Flags().GetFloat64("cpu-threshold"); threshold > 0 {
		checker.CPUThreshold = threshold
	}

	res, err := checker.Check(cmd.Context(), args[0])
	if res == nil {
		return err
	}
	if perr := newPrinter(cmd).Health(res); perr != nil {
		return perr
	}
	if err != nil {
		return reported(err)
	}
	return nil
}
