package workflow

import (
	"fmt"
	"strings"
	"time"

	opserrors "github.com/yairfalse/ilmari/internal/errors"
	"github.com/yairfalse/ilmari/pkg/types"
)

// NoDifferences is the compare message when the running config matches the baseline.
const NoDifferences = "No differences! Running config matches the golden config."

// Phase is a step of a device workflow
type Phase string

const (
	PhaseResolvingDevice Phase = "resolving_device"
	PhaseConnecting      Phase = "connecting"
	PhaseFetching        Phase = "fetching"
	PhaseCapture         Phase = "capture"
	PhaseCompare         Phase = "compare"
	PhaseExport          Phase = "export"
	PhaseReporting       Phase = "reporting"
)

// Operation names a workflow
type Operation string

const (
	OpCapture Operation = "capture"
	OpCompare Operation = "compare"
	OpExport  Operation = "export"
)

// Status is the outcome of a workflow
type Status string

const (
	StatusOK         Status = "ok"
	StatusNoBaseline Status = "no_baseline"
	StatusFailed     Status = "failed"
)

// Report is the outcome of one device workflow.
type Report struct {
	Identifier  string         `json:"identifier" yaml:"identifier"`
	Device      string         `json:"device" yaml:"device"`
	Host        string         `json:"host,omitempty" yaml:"host,omitempty"`
	Operation   Operation      `json:"operation" yaml:"operation"`
	Phase       Phase          `json:"phase" yaml:"phase"`
	Status      Status         `json:"status" yaml:"status"`
	Artifact    string         `json:"artifact,omitempty" yaml:"artifact,omitempty"`
	Baseline    string         `json:"baseline,omitempty" yaml:"baseline,omitempty"`
	Changes     []types.Change `json:"changes,omitempty" yaml:"changes,omitempty"`
	Explanation string         `json:"explanation,omitempty" yaml:"explanation,omitempty"`
	Title       string         `json:"title,omitempty" yaml:"title,omitempty"`
	Message     string         `json:"message" yaml:"message"`
	ErrorKind   opserrors.Kind `json:"error_kind,omitempty" yaml:"error_kind,omitempty"`
	Error       string         `json:"error,omitempty" yaml:"error,omitempty"`
	StartedAt   time.Time      `json:"started_at" yaml:"started_at"`
	Duration    time.Duration  `json:"duration" yaml:"duration"`

	Err error `json:"-" yaml:"-"`
}

func newReport(identifier string, op Operation, now time.Time) *Report {
	id := strings.TrimSpace(identifier)
	return &Report{
		Identifier: id,
		Device:     id,
		Operation:  op,
		Phase:      PhaseResolvingDevice,
		StartedAt:  now,
	}
}

// Failed reports whether the workflow ended in an error
func (r *Report) Failed() bool {
	return r.Status == StatusFailed || r.Status == StatusNoBaseline
}

// Text renders the report for humans: an optional title line, then the message.
func (r *Report) Text() string {
	var sb strings.Builder
	if r.Title != "" {
		sb.WriteString(r.Title)
		sb.WriteString("\n")
	}
	sb.WriteString(r.Message)
	if r.Explanation != "" {
		sb.WriteString("\n\n")
		sb.WriteString(r.Explanation)
	}
	return sb.String()
}

// fail records err at the current phase
func (r *Report) fail(err error) *Report {
	r.Err = err
	r.Error = err.Error()
	r.ErrorKind = opserrors.KindOf(err)
	r.Status = StatusFailed
	if r.ErrorKind == opserrors.KindSnapshotNotFound {
		r.Status = StatusNoBaseline
		r.Message = fmt.Sprintf("No golden config found for device '%s'. Capture one first.", r.Identifier)
		return r
	}

	kind := string(r.ErrorKind)
	if kind == "" {
		kind = "Error"
	}
	r.Message = fmt.Sprintf("%s %s: %s during %s: %v", r.Operation, r.Device, kind, r.Phase, err)
	return r
}

func diffMessage(changes []types.Change) string {
	if len(changes) == 0 {
		return NoDifferences
	}
	lines := make([]string, 0, len(changes))
	for _, c := range changes {
		lines = append(lines, c.String())
	}
	return strings.Join(lines, "\n")
}
