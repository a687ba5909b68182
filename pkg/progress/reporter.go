package progress

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// Reporter renders progress of sequential batch operations on one line that
// is rewritten in place. A quiet reporter discards everything.
type Reporter struct {
	output io.Writer
	mu     sync.Mutex
	quiet  bool
	now    func() time.Time
}

// NewReporter creates a reporter writing to w, usually a terminal on stderr
func NewReporter(w io.Writer) *Reporter {
	return &Reporter{
		output: w,
		now:    time.Now,
	}
}

// NewQuietReporter creates a reporter that prints nothing
func NewQuietReporter() *Reporter {
	return &Reporter{
		output: io.Discard,
		quiet:  true,
		now:    time.Now,
	}
}

// Tracker tracks progress for a specific operation
type Tracker struct {
	reporter  *Reporter
	name      string
	total     int64
	current   int64
	status    string
	startTime time.Time
	done      bool
}

// StartOperation begins tracking a new operation of total steps
func (r *Reporter) StartOperation(name string, total int64) *Tracker {
	t := &Tracker{
		reporter:  r,
		name:      name,
		total:     total,
		startTime: r.now(),
	}
	r.print(t, false)
	return t
}

// print outputs the current progress status
func (r *Reporter) print(t *Tracker, final bool) {
	if r.quiet {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	elapsed := r.now().Sub(t.startTime)

	if final {
		fmt.Fprintf(r.output, "\r\033[K%s: %d/%d done | Duration: %s\n",
			t.name, t.current, t.total, formatDuration(elapsed))
		return
	}

	status := ""
	if t.status != "" {
		status = " " + t.status
	}
	if t.total <= 0 {
		fmt.Fprintf(r.output, "\r\033[K%s: %d processed%s", t.name, t.current, status)
		return
	}

	percentage := float64(t.current) / float64(t.total) * 100
	barWidth := 20
	filled := int(percentage * float64(barWidth) / 100)
	bar := strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled)

	fmt.Fprintf(r.output, "\r\033[K%s: [%s] %.0f%% (%d/%d)%s",
		t.name, bar, percentage, t.current, t.total, status)
}

// SetStatus names the item being worked on
func (t *Tracker) SetStatus(status string) {
	t.status = status
	t.reporter.print(t, false)
}

// Increment increases the progress counter
func (t *Tracker) Increment(delta int64) {
	t.current += delta
	t.reporter.print(t, false)
}

// Complete prints the final line. Calling it twice is a no-op.
func (t *Tracker) Complete() {
	if t.done {
		return
	}
	t.done = true
	t.reporter.print(t, true)
}

// formatDuration formats a duration in a human-readable way
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	if d < time.Hour {
		min := int(d.Minutes())
		sec := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm%ds", min, sec)
	}
	hour := int(d.Hours())
	min := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh%dm", hour, min)
}

type progressKey struct{}

// WithProgress adds progress tracking to a context
func WithProgress(ctx context.Context, reporter *Reporter) context.Context {
	return context.WithValue(ctx, progressKey{}, reporter)
}

// GetProgress retrieves the progress reporter from context, or a quiet one
func GetProgress(ctx context.Context) *Reporter {
	if reporter, ok := ctx.Value(progressKey{}).(*Reporter); ok && reporter != nil {
		return reporter
	}
	return NewQuietReporter()
}

// TrackOperation is a helper to track an operation with automatic cleanup
func TrackOperation(ctx context.Context, name string, total int64, fn func(*Tracker) error) error {
	tracker := GetProgress(ctx).StartOperation(name, total)
	defer tracker.Complete()

	return fn(tracker)
}
