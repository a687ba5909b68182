package commands

import (
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"

	"github.com/yairfalse/ilmari/internal/output"
)

// Build metadata, set from main through ldflags
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
	BuiltBy   = "unknown"
)

// SetVersionInfo records build metadata; empty values keep the defaults
func SetVersionInfo(version, commit, buildTime, builtBy string) {
	for _, v := range []struct {
		dst *string
		val string
	}{
		{&Version, version},
		{&Commit, commit},
		{&BuildTime, buildTime},
		{&BuiltBy, builtBy},
	} {
		if v.val != "" {
			*v.dst = v.val
		}
	}
}

// currentBuild describes this binary. Builds without ldflags (go install)
// fall back to the VCS stamp the Go toolchain embeds.
func currentBuild() output.BuildInfo {
	info := output.BuildInfo{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		BuiltBy:   BuiltBy,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}

	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return info
	}
	if info.Version == "dev" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		info.Version = bi.Main.Version
	}
	for _, s := range bi.Settings {
		switch {
		case s.Key == "vcs.revision" && info.Commit == "unknown":
			info.Commit = s.Value
		case s.Key == "vcs.time" && info.BuildTime == "unknown":
			info.BuildTime = s.Value
		case s.Key == "vcs.modified" && s.Value == "true":
			info.Dirty = true
		}
	}
	return info
}

func newVersionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long: `Print the ilmari version with its commit, build time and Go runtime.
Honors --output, so 'ilmari version --output json' is scriptable.`,
		Args: cobra.NoArgs,
		RunE: runVersion,
	}

	cmd.Flags().Bool("short", false, "show only version number")

	return cmd
}

func runVersion(cmd *cobra.Command, args []string) error {
	info := currentBuild()
	printer := newPrinter(cmd)

	if short, _ := cmd.Flags().GetBool("short"); short && !printer.Structured() {
		printer.Line("%s", info.Version)
		return nil
	}
	return printer.BuildInfo(info)
}
