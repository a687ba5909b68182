package commands

import (
	"github.com/spf13/cobra"

	opserrors "github.com/yairfalse/ilmari/internal/errors"
	"github.com/yairfalse/ilmari/internal/snmp"
)

func newCPUCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cpu [target...]",
		Short: "Poll processor load over SNMP",
		Long: `Walk hrProcessorLoad on each target and report the average load of all
cores. Targets default to snmp.targets. A target is flagged when its average
is above snmp.threshold.`,
		Example: `  ilmari cpu
  ilmari cpu 10.0.0.1 10.0.0.2 --community netops`,
		RunE: runCPU,
	}

	cmd.Flags().String("community", "", "SNMP community (overrides snmp.community)")
	cmd.Flags().Float64("threshold", 0, "alert threshold in percent (overrides snmp.threshold)")

	return cmd
}

func runCPU(cmd *cobra.Command, args []string) error {
	a, err := getApp()
	if err != nil {
		return err
	}

	c := &a.Config().SNMP
	if community, _ := cmd.Flags().GetString("community"); community != "" {
		c.Community = community
	}
	if threshold, _ := cmd.Flags().GetFloat64("threshold"); threshold > 0 {
		c.Threshold = threshold
	}
	if c.Threshold <= 0 {
		c.Threshold = snmp.DefaultThreshold
	}

	targets := args
	if len(targets) == 0 {
		targets = c.Targets
	}
	if len(targets) == 0 {
		return opserrors.InputError("no SNMP targets").
			WithSolutions(
				"Pass one or more targets: ilmari cpu 10.0.0.1",
				"Or set snmp.targets in config.yaml",
			)
	}

	poller, err := a.Poller()
	if err != nil {
		return err
	}

	readings, err := poller.Poll(cmd.Context(), targets)
	if perr := newPrinter(cmd).CPU(readings, c.Threshold); perr != nil && err == nil {
		err = perr
	}
	if err != nil {
		return err
	}

	for _, r := range readings {
		if r.Error != "" {
			return reported(opserrors.New(opserrors.KindConnection, r.Error).WithDevice(r.Target))
		}
	}
	return nil
}
