package types

import (
	"errors"
	"strings"
	"time"
)

// SnapshotTimeLayout is the timestamp encoding used in snapshot artifact names.
// Lexicographic order of the encoded form equals chronological order.
const SnapshotTimeLayout = "20060102_150405"

// DefaultSnapshotKind is the capture kind used for golden configs.
const DefaultSnapshotKind = "golden"

// Snapshot is a point-in-time capture of a device configuration.
type Snapshot struct {
	DeviceID   string    `json:"device_id" yaml:"device_id"`
	Kind       string    `json:"kind" yaml:"kind"`
	CapturedAt time.Time `json:"captured_at" yaml:"captured_at"`
	Name       string    `json:"name" yaml:"name"`
	Lines      []string  `json:"lines,omitempty" yaml:"lines,omitempty"`
}

// Validate checks if the Snapshot has all required fields and valid values
func (s *Snapshot) Validate() error {
	if strings.TrimSpace(s.DeviceID) == "" {
		return errors.New("snapshot device id is required")
	}
	if strings.ContainsAny(s.DeviceID, `/\`) {
		return errors.New("snapshot device id must not contain path separators")
	}
	if strings.TrimSpace(s.Kind) == "" {
		return errors.New("snapshot kind is required")
	}
	if s.CapturedAt.IsZero() {
		return errors.New("snapshot timestamp is required")
	}
	if s.Lines == nil {
		return errors.New("snapshot lines cannot be nil")
	}
	return nil
}

// SnapshotInfo provides metadata about a stored snapshot
type SnapshotInfo struct {
	Name       string    `json:"name" yaml:"name"`
	DeviceID   string    `json:"device_id" yaml:"device_id"`
	Kind       string    `json:"kind" yaml:"kind"`
	CapturedAt time.Time `json:"captured_at" yaml:"captured_at"`
	FilePath   string    `json:"file_path" yaml:"file_path"`
	FileSize   int64     `json:"file_size" yaml:"file_size"`
}
