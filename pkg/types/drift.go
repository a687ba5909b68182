package types

import (
	"fmt"
	"time"
)

// ChangeOp marks a line as removed from the baseline or added in the current config.
type ChangeOp string

const (
	// Removed indicates a baseline line missing from the current config
	Removed ChangeOp = "-"
	// Added indicates a current line missing from the baseline
	Added ChangeOp = "+"
)

// IsValid checks if the ChangeOp is valid
func (op ChangeOp) IsValid() bool {
	return op == Added || op == Removed
}

// String returns the string representation of ChangeOp
func (op ChangeOp) String() string {
	return string(op)
}

// Change is a single changed line.
type Change struct {
	Op   ChangeOp `json:"op" yaml:"op"`
	Text string   `json:"text" yaml:"text"`
}

// String renders the change the way ndiff does: marker, space, text.
func (c Change) String() string {
	return fmt.Sprintf("%s %s", c.Op, c.Text)
}

// DiffResult is the derived comparison of a device's live config against its baseline.
type DiffResult struct {
	DeviceID           string    `json:"device_id" yaml:"device_id"`
	Baseline           string    `json:"baseline" yaml:"baseline"`
	BaselineCapturedAt time.Time `json:"baseline_captured_at" yaml:"baseline_captured_at"`
	Changes            []Change  `json:"changes" yaml:"changes"`
}

// HasDrift reports whether any line changed.
func (r *DiffResult) HasDrift() bool {
	return len(r.Changes) > 0
}

// Counts returns the number of added and removed lines.
func (r *DiffResult) Counts() (added, removed int) {
	for _, c := range r.Changes {
		switch c.Op {
		case Added:
			added++
		case Removed:
			removed++
		}
	}
	return added, removed
}
