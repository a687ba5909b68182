package workflow

import (
	"fmt"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	opserrors "github.com/yairfalse/ilmari/internal/errors"
	"github.com/yairfalse/ilmari/internal/storage"
)

// ExportFileName returns the export file name for device
func ExportFileName(device string) string {
	return fmt.Sprintf("%s-running-config.yaml", device)
}

// writeExport writes lines as a YAML sequence to {dir}/{device}-running-config.yaml,
// replacing any previous export of the same device.
func writeExport(dir, device string, lines []string) (string, error) {
	if strings.TrimSpace(dir) == "" {
		return "", opserrors.ConfigurationError("storage.export_dir is not set")
	}
	if strings.ContainsAny(device, `/\`) {
		return "", opserrors.InputError("device name %q cannot be used as a file name", device)
	}

	if lines == nil {
		lines = []string{}
	}
	data, err := yaml.Marshal(lines)
	if err != nil {
		return "", fmt.Errorf("failed to encode export: %w", err)
	}

	path := filepath.Join(dir, ExportFileName(device))
	if err := storage.NewAtomicWriter("").WriteFile(path, data, 0o644); err != nil {
		return "", opserrors.StoreUnavailable(dir, err)
	}
	return path, nil
}
