package errors

import (
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/viper"
)

// DisplayError writes err to stderr, with guidance when it is an *OpsError.
func DisplayError(err error) {
	FprintError(os.Stderr, err)
}

// FprintError formats err with colour (unless disabled) onto w.
func FprintError(w io.Writer, err error) {
	noColor := os.Getenv("NO_COLOR") != "" || os.Getenv("ILMARI_NO_COLOR") != ""

	// Also check viper configuration (set by --no-color flag)
	if viperNoColor := getViperBool("output.no_color"); viperNoColor {
		noColor = true
	}

	color.NoColor = noColor

	var opsErr *OpsError
	if !stderrors.As(err, &opsErr) {
		fmt.Fprintf(w, "%s\n", color.RedString("Error: %v", err))
		return
	}

	colorFunc := getErrorStyle(opsErr.Kind)

	fmt.Fprintf(w, "\n%s\n", colorFunc(opsErr.Error()))
	fmt.Fprintf(w, "   %s %s\n", color.YellowString("Kind:"), color.HiBlackString(string(opsErr.Kind)))

	if len(opsErr.Solutions) > 0 {
		fmt.Fprintf(w, "\n   %s\n", color.GreenString("Solutions:"))
		for i, solution := range opsErr.Solutions {
			fmt.Fprintf(w, "   %s %s\n", color.HiBlackString(fmt.Sprintf("%d.", i+1)), solution)
		}
	}

	if opsErr.Help != "" {
		fmt.Fprintf(w, "   %s %s\n", color.MagentaString("Help:"), color.HiWhiteString(opsErr.Help))
	}

	fmt.Fprintln(w)
}

// getErrorStyle returns the appropriate color function for an error kind
func getErrorStyle(kind Kind) func(format string, a ...interface{}) string {
	switch kind {
	case KindInput, KindCredentialNotFound, KindSnapshotNotFound:
		return color.YellowString
	case KindConfiguration:
		return color.YellowString
	case KindConnection, KindCommand:
		return color.RedString
	case KindStoreUnavailable:
		return color.MagentaString
	default:
		return color.RedString
	}
}

// FormatErrorWithContext formats an error as plain text for logs and CI output
func FormatErrorWithContext(err error, context map[string]string) string {
	var sb strings.Builder

	var opsErr *OpsError
	if !stderrors.As(err, &opsErr) {
		sb.WriteString(fmt.Sprintf("Error: %v\n", err))
		return sb.String()
	}

	sb.WriteString(fmt.Sprintf("Error: %s\n", opsErr.Error()))
	sb.WriteString(fmt.Sprintf("Kind: %s\n", opsErr.Kind))

	if len(context) > 0 {
		sb.WriteString("\nContext:\n")
		for k, v := range context {
			sb.WriteString(fmt.Sprintf("  %s: %s\n", k, v))
		}
	}

	if len(opsErr.Solutions) > 0 {
		sb.WriteString("\nSolutions:\n")
		for i, solution := range opsErr.Solutions {
			sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, solution))
		}
	}

	if opsErr.Help != "" {
		sb.WriteString(fmt.Sprintf("Help: %s\n", opsErr.Help))
	}

	return sb.String()
}

// DisplayWarning shows a warning message with appropriate formatting
func DisplayWarning(message string) {
	noColor := os.Getenv("NO_COLOR") != "" || os.Getenv("ILMARI_NO_COLOR") != ""
	color.NoColor = noColor

	fmt.Fprintf(os.Stderr, "Warning: %s\n", color.YellowString(message))
}

// getViperBool safely gets a boolean value from viper
func getViperBool(key string) bool {
	if viper.IsSet(key) {
		return viper.GetBool(key)
	}
	return false
}
