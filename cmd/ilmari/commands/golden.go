package commands

import (
	"context"

	"github.com/spf13/cobra"

	opserrors "github.com/yairfalse/ilmari/internal/errors"
	"github.com/yairfalse/ilmari/internal/workflow"
	"github.com/yairfalse/ilmari/pkg/types"
)

func newGoldenCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "golden",
		Short: "Capture golden configs and compare devices against them",
		Long: `Manage golden configurations.

A golden config is the normalized running configuration of a device saved at a
known good moment. Golden configs are never modified or deleted; every capture
adds a new one and compare always uses the newest.`,
		Example: `  # Save the running config of a device as golden
  ilmari golden capture 10.0.0.1

  # Compare every device against its newest golden config
  ilmari golden compare --all

  # Ask Claude to explain the drift
  ilmari golden compare R1 --explain

  # List and show stored golden configs
  ilmari golden list R1
  ilmari golden show R1_golden_20240701_120000.cfg

  # Push the newest golden config of every device to S3
  ilmari golden archive --latest --to s3://netops/golden`,
	}

	cmd.AddCommand(newGoldenCaptureCommand())
	cmd.AddCommand(newGoldenCompareCommand())
	cmd.AddCommand(newGoldenListCommand())
	cmd.AddCommand(newGoldenShowCommand())
	cmd.AddCommand(newGoldenArchiveCommand())

	return cmd
}

func newGoldenCaptureCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "capture [device]",
		Short: "Save the running config of a device as a golden config",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runGoldenCapture,
	}

	cmd.Flags().Bool("all", false, "capture every device in the credential file")

	return cmd
}

func newGoldenCompareCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare [device]",
		Short: "Compare the running config of a device with its newest golden config",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runGoldenCompare,
	}

	cmd.Flags().Bool("all", false, "compare every device in the credential file")
	cmd.Flags().Bool("explain", false, "summarise the drift with Claude (needs claude.api_key)")
	cmd.Flags().Bool("exit-code", false, "exit with status 1 when drift is found, like git diff")

	return cmd
}

func runGoldenCapture(cmd *cobra.Command, args []string) error {
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

	return runWorkflow(cmd, args, all, o.Capture, o.CaptureAll)
}

func runGoldenCompare(cmd *cobra.Command, args []string) error {
	all, _ := cmd.Flags().GetBool("all")
	explain, _ := cmd.Flags().GetBool("explain")
	exitCode, _ := cmd.Flags().GetBool("exit-code")
	if err := exactlyOneOrAll(all, args); err != nil {
		return err
	}

	a, err := getApp()
	if err != nil {
		return err
	}
	o, err := a.Orchestrator(explain)
	if err != nil {
		return err
	}

	var reports []*workflow.Report
	err = runWorkflowFunc(cmd, args, all, o.Compare, o.CompareAll, func(r []*workflow.Report) {
		reports = r
	})
	if err != nil || !exitCode {
		return err
	}

	for _, r := range reports {
		if len(r.Changes) > 0 {
			return &silentError{err: opserrors.New(opserrors.KindInput, "drift detected"), code: 1}
		}
	}
	return nil
}

type singleRun func(context.Context, string) *workflow.Report
type batchRun func(context.Context) ([]*workflow.Report, error)

// runWorkflow runs one device or the whole credential file and prints the reports.
func runWorkflow(cmd *cobra.Command, args []string, all bool, one singleRun, batch batchRun) error {
	return runWorkflowFunc(cmd, args, all, one, batch, nil)
}

func runWorkflowFunc(cmd *cobra.Command, args []string, all bool, one singleRun, batch batchRun, done func([]*workflow.Report)) error {
	ctx := cmd.Context()
	printer := newPrinter(cmd)

	if !all {
		r := one(ctx, args[0])
		if err := printer.Report(r); err != nil {
			return err
		}
		if done != nil {
			done([]*workflow.Report{r})
		}
		if r.Failed() {
			return reported(r.Err)
		}
		return nil
	}

	reports, batchErr := batch(withProgress(cmd))
	if err := printer.Reports(reports); err != nil {
		return err
	}
	if done != nil {
		done(reports)
	}
	if batchErr != nil {
		return batchErr
	}
	for _, r := range reports {
		if r.Status == workflow.StatusFailed {
			return reported(r.Err)
		}
	}
	return nil
}

func newGoldenListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list [device]",
		Short: "List stored golden configs, newest first",
		Long: `List stored golden configs, newest first. The optional argument is a
case-insensitive prefix of the artifact name, usually a device alias or IP.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runGoldenList,
	}
}

func runGoldenList(cmd *cobra.Command, args []string) error {
	a, err := getApp()
	if err != nil {
		return err
	}
	store, err := a.Store()
	if err != nil {
		return err
	}

	prefix := ""
	if len(args) > 0 {
		prefix = args[0]
	}
	infos, err := store.List(prefix)
	if err != nil {
		return err
	}
	return newPrinter(cmd).Snapshots(infos)
}

func newGoldenShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <name|device>",
		Short: "Print a golden config",
		Long: `Print a stored golden config. Pass an exact artifact name, or a device
to show its newest golden config.`,
		Args: cobra.ExactArgs(1),
		RunE: runGoldenShow,
	}
}

func runGoldenShow(cmd *cobra.Command, args []string) error {
	a, err := getApp()
	if err != nil {
		return err
	}
	store, err := a.Store()
	if err != nil {
		return err
	}

	snapshot, err := store.Load(args[0])
	if opserrors.KindOf(err) == opserrors.KindSnapshotNotFound || opserrors.KindOf(err) == opserrors.KindInput {
		var info *types.SnapshotInfo
		info, err = store.Latest(args[0])
		if err != nil {
			return err
		}
		snapshot, err = store.Load(info.Name)
	}
	if err != nil {
		return err
	}
	return newPrinter(cmd).Snapshot(snapshot)
}

func newGoldenArchiveCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "archive [device]",
		Short: "Upload golden configs to S3, GCS or Azure Blob Storage",
		Long: `Upload golden configs to remote object storage. The destination comes from
--to or archive.url:

  s3://bucket/prefix?region=eu-north-1
  gs://bucket/prefix
  azurerm://account/container/prefix   (SAS token from AZURE_STORAGE_SAS_TOKEN)`,
		Args: cobra.MaximumNArgs(1),
		RunE: runGoldenArchive,
	}

	cmd.Flags().String("to", "", "destination URL (overrides archive.url)")
	cmd.Flags().Bool("latest", false, "only upload the newest golden config per device")

	return cmd
}

func runGoldenArchive(cmd *cobra.Command, args []string) error {
	to, _ := cmd.Flags().GetString("to")
	latest, _ := cmd.Flags().GetBool("latest")

	a, err := getApp()
	if err != nil {
		return err
	}

	var prefixes []string
	if len(args) > 0 {
		prefixes = []string{args[0]}
	} else if latest {
		creds, err := a.Credentials()
		if err != nil {
			return err
		}
		for _, d := range creds.Devices(a.Resolver()) {
			prefixes = append(prefixes, d.Name())
		}
	} else {
		prefixes = []string{""}
	}

	archiver, err := a.Archiver(cmd.Context(), to)
	if err != nil {
		return err
	}
	defer archiver.Uploader.Close()

	var selected []types.SnapshotInfo
	for _, prefix := range prefixes {
		infos, err := archiver.Select(prefix, latest)
		if opserrors.KindOf(err) == opserrors.KindSnapshotNotFound && len(args) == 0 {
			a.Logger().Warn("No golden config for " + prefix + ", skipping")
			continue
		}
		if err != nil {
			return err
		}
		selected = append(selected, infos...)
	}

	uploads, err := archiver.Archive(cmd.Context(), selected)
	if perr := newPrinter(cmd).Uploads(uploads); perr != nil && err == nil {
		err = perr
	}
	return err
}
