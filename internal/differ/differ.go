package differ

import (
	"fmt"

	"github.com/yairfalse/ilmari/pkg/types"
)

// Differ compares a stored baseline against freshly fetched configuration lines
type Differ interface {
	Compare(baseline *types.Snapshot, current []string) (*types.DiffResult, error)
}

// StandardDiffer implements the Differ interface
type StandardDiffer struct{}

// NewStandardDiffer creates a new StandardDiffer
func NewStandardDiffer() *StandardDiffer {
	return &StandardDiffer{}
}

// Compare normalizes both sides and returns the changed lines
func (d *StandardDiffer) Compare(baseline *types.Snapshot, current []string) (*types.DiffResult, error) {
	if baseline == nil {
		return nil, fmt.Errorf("baseline snapshot is required")
	}

	// baselines written by older tooling may still carry comments
	base := normalizeLines(baseline.Lines)
	curr := normalizeLines(current)

	return &types.DiffResult{
		DeviceID:           baseline.DeviceID,
		Baseline:           baseline.Name,
		BaselineCapturedAt: baseline.CapturedAt,
		Changes:            Lines(base, curr),
	}, nil
}

func normalizeLines(lines []string) []string {
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		out = append(out, Normalize(line)...)
	}
	return out
}
