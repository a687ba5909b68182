package commands

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	opserrors "github.com/yairfalse/ilmari/internal/errors"
	"github.com/yairfalse/ilmari/pkg/config"
)

func newConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Create or inspect the ilmari configuration",
	}

	cmd.AddCommand(newConfigInitCommand())
	cmd.AddCommand(newConfigShowCommand())

	return cmd
}

func newConfigInitCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter config.yaml",
		Long: `Write a starter config.yaml with defaults adjusted to this machine: a
credential file in the working directory is picked up, and host keys are
verified when ~/.ssh/known_hosts exists.`,
		Args: cobra.NoArgs,
		RunE: runConfigInit,
	}

	cmd.Flags().String("path", "", "where to write the file (default is $HOME/.ilmari/config.yaml)")
	cmd.Flags().Bool("force", false, "overwrite an existing file")

	return cmd
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("path")
	force, _ := cmd.Flags().GetBool("force")

	dm := config.NewDefaultsManager()
	generated := dm.GenerateSmartDefaults()
	if path == "" {
		path = filepath.Join(generated.Storage.BaseDir, "config.yaml")
	}

	if err := dm.ValidateDefaults(generated); err != nil {
		return opserrors.StoreUnavailable(generated.Storage.BaseDir, err)
	}
	if err := config.WriteFile(path, generated, force); err != nil {
		return opserrors.Wrap(opserrors.KindConfiguration, err, "cannot write configuration").
			WithSolutions("Pass --force to replace the existing file", "Or choose another --path")
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Configuration written to %s\n", path)
	for _, line := range dm.GetUserFriendlyFeedback(generated) {
		fmt.Fprintf(out, "  %s\n", line)
	}
	return nil
}

func newConfigShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration with secrets hidden",
		Args:  cobra.NoArgs,
		RunE:  runConfigShow,
	}
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	data, err := cfg.Redacted().Marshal()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if used := viper.ConfigFileUsed(); used != "" {
		fmt.Fprintf(out, "# loaded from %s\n", used)
	} else {
		fmt.Fprintln(out, "# no config file found, showing defaults")
	}
	_, err = out.Write(data)
	return err
}
