package storage

import (
	"fmt"
	"strings"
	"time"

	"github.com/yairfalse/ilmari/pkg/types"
)

// SnapshotExt is the file extension of snapshot artifacts.
const SnapshotExt = ".cfg"

// FormatName builds the artifact name {device}_{kind}_{YYYYMMDD_HHMMSS}.cfg.
// Names of one device sort in capture order.
func FormatName(deviceID, kind string, capturedAt time.Time) string {
	return fmt.Sprintf("%s_%s_%s%s", deviceID, kind, capturedAt.Format(types.SnapshotTimeLayout), SnapshotExt)
}

// ParseName splits an artifact name back into device, kind and capture time.
// The device part may itself contain underscores, so parsing runs from the right.
func ParseName(name string) (deviceID, kind string, capturedAt time.Time, err error) {
	if !strings.HasSuffix(name, SnapshotExt) {
		return "", "", time.Time{}, fmt.Errorf("snapshot name %q: missing %s extension", name, SnapshotExt)
	}
	stem := strings.TrimSuffix(name, SnapshotExt)

	// the timestamp layout contains exactly one underscore
	parts := strings.Split(stem, "_")
	if len(parts) < 4 {
		return "", "", time.Time{}, fmt.Errorf("snapshot name %q: expected device_kind_date_time", name)
	}

	n := len(parts)
	capturedAt, err = time.ParseInLocation(types.SnapshotTimeLayout, parts[n-2]+"_"+parts[n-1], time.Local)
	if err != nil {
		return "", "", time.Time{}, fmt.Errorf("snapshot name %q: bad timestamp: %w", name, err)
	}

	kind = parts[n-3]
	deviceID = strings.Join(parts[:n-3], "_")
	if deviceID == "" || kind == "" {
		return "", "", time.Time{}, fmt.Errorf("snapshot name %q: empty device or kind", name)
	}

	return deviceID, kind, capturedAt, nil
}

// validName rejects names that could escape the store directory.
func validName(name string) bool {
	return name != "" && name != "." && name != ".." && !strings.ContainsAny(name, `/\`)
}
