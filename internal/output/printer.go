// Package output renders command results as text, JSON or YAML.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"
)

// Format represents the available output formats
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat validates a format name
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text", "table":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unsupported output format: %s", s)
	}
}

// Printer writes results in one format. Text output is colored only when the
// writer is a terminal and color has not been disabled.
type Printer struct {
	w      io.Writer
	format Format
	width  int

	title   *color.Color
	added   *color.Color
	removed *color.Color
	good    *color.Color
	warn    *color.Color
	bad     *color.Color
	dim     *color.Color
}

// NewPrinter creates a printer writing to w
func NewPrinter(w io.Writer, format Format, noColor bool) *Printer {
	p := &Printer{
		w:       w,
		format:  format,
		width:   80,
		title:   color.New(color.Bold),
		added:   color.New(color.FgGreen),
		removed: color.New(color.FgRed),
		good:    color.New(color.FgGreen),
		warn:    color.New(color.FgYellow),
		bad:     color.New(color.FgRed, color.Bold),
		dim:     color.New(color.FgHiBlack),
	}

	useColor := !noColor && os.Getenv("NO_COLOR") == ""
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		if width, _, err := term.GetSize(int(f.Fd())); err == nil && width > 0 {
			p.width = width
		}
	} else {
		useColor = false
	}

	for _, c := range []*color.Color{p.title, p.added, p.removed, p.good, p.warn, p.bad, p.dim} {
		if useColor {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

// Format returns the printer's format
func (p *Printer) Format() Format {
	return p.format
}

// Structured reports whether output is machine readable
func (p *Printer) Structured() bool {
	return p.format == FormatJSON || p.format == FormatYAML
}

// encode writes v as JSON or YAML
func (p *Printer) encode(v interface{}) error {
	switch p.format {
	case FormatJSON:
		enc := json.NewEncoder(p.w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case FormatYAML:
		enc := yaml.NewEncoder(p.w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("format %s is not structured", p.format)
	}
}

// render encodes v in structured formats and calls text otherwise
func (p *Printer) render(v interface{}, text func() error) error {
	if p.Structured() {
		return p.encode(v)
	}
	return text()
}

func (p *Printer) printf(format string, args ...interface{}) {
	fmt.Fprintf(p.w, format, args...)
}

func (p *Printer) table() *tabwriter.Writer {
	return tabwriter.NewWriter(p.w, 0, 0, 2, ' ', 0)
}

func (p *Printer) rule() string {
	width := p.width
	if width > 80 {
		width = 80
	}
	return strings.Repeat("-", width)
}

// Line prints a plain message in text mode and nothing otherwise
func (p *Printer) Line(format string, args ...interface{}) {
	if p.Structured() {
		return
	}
	p.printf(format+"\n", args...)
}
