package output

import (
	"fmt"
	"strings"
	"time"

	"github.com/yairfalse/ilmari/internal/archive"
	"github.com/yairfalse/ilmari/internal/health"
	"github.com/yairfalse/ilmari/internal/ipam"
	"github.com/yairfalse/ilmari/internal/journal"
	"github.com/yairfalse/ilmari/internal/rotation"
	"github.com/yairfalse/ilmari/internal/snmp"
	"github.com/yairfalse/ilmari/internal/workflow"
	"github.com/yairfalse/ilmari/pkg/types"
)

const timeFormat = "2006-01-02 15:04:05"

// Report prints the outcome of one device workflow
func (p *Printer) Report(r *workflow.Report) error {
	return p.render(r, func() error {
		p.reportText(r)
		return nil
	})
}

func (p *Printer) reportText(r *workflow.Report) {
	switch {
	case r.Status == workflow.StatusNoBaseline:
		p.printf("%s\n", p.warn.Sprint(r.Message))
		return
	case r.Failed():
		p.printf("%s\n", p.bad.Sprint(r.Message))
		return
	}

	if r.Title != "" {
		p.printf("%s\n", p.title.Sprint(r.Title))
	}
	if len(r.Changes) == 0 {
		p.printf("%s\n", p.good.Sprint(r.Message))
	} else {
		for _, c := range r.Changes {
			if c.Op == types.Added {
				p.printf("%s\n", p.added.Sprint(c.String()))
			} else {
				p.printf("%s\n", p.removed.Sprint(c.String()))
			}
		}
	}

	if r.Explanation != "" {
		p.printf("\n%s\n", r.Explanation)
	}
}

// Reports prints a batch of device workflows followed by a summary line
func (p *Printer) Reports(reports []*workflow.Report) error {
	return p.render(reports, func() error {
		counts := map[workflow.Status]int{}
		for i, r := range reports {
			if i > 0 {
				p.printf("\n")
			}
			p.reportText(r)
			counts[r.Status]++
		}

		p.printf("\n%s\n", p.dim.Sprintf("%d devices: %d ok, %d without baseline, %d failed",
			len(reports), counts[workflow.StatusOK], counts[workflow.StatusNoBaseline], counts[workflow.StatusFailed]))
		return nil
	})
}

// Snapshots lists stored snapshots
func (p *Printer) Snapshots(infos []types.SnapshotInfo) error {
	if infos == nil {
		infos = []types.SnapshotInfo{}
	}
	return p.render(infos, func() error {
		if len(infos) == 0 {
			p.printf("No golden configs found.\n")
			return nil
		}

		w := p.table()
		fmt.Fprintf(w, "NAME\tDEVICE\tKIND\tCAPTURED\tSIZE\n")
		for _, info := range infos {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				info.Name, info.DeviceID, info.Kind, info.CapturedAt.Format(timeFormat), formatSize(info.FileSize))
		}
		return w.Flush()
	})
}

// Snapshot prints the content of a stored snapshot
func (p *Printer) Snapshot(s *types.Snapshot) error {
	return p.render(s, func() error {
		p.printf("%s\n", p.title.Sprint(s.Name))
		p.printf("%s\n", p.dim.Sprintf("device %s, captured %s, %d lines", s.DeviceID, s.CapturedAt.Format(timeFormat), len(s.Lines)))
		p.printf("%s\n", p.rule())
		for _, line := range s.Lines {
			p.printf("%s\n", line)
		}
		return nil
	})
}

// deviceRow is the listing form of a device; secrets are never printed
type deviceRow struct {
	Device   string `json:"device" yaml:"device"`
	Alias    string `json:"alias,omitempty" yaml:"alias,omitempty"`
	Username string `json:"username" yaml:"username"`
	Type     string `json:"type" yaml:"type"`
}

// Devices lists the credential inventory
func (p *Printer) Devices(devices []types.Device) error {
	rows := make([]deviceRow, 0, len(devices))
	for _, d := range devices {
		rows = append(rows, deviceRow{
			Device:   d.CanonicalID,
			Alias:    d.DisplayName,
			Username: d.Credential.Username,
			Type:     d.Type,
		})
	}

	return p.render(rows, func() error {
		if len(rows) == 0 {
			p.printf("No devices in the credential file.\n")
			return nil
		}
		w := p.table()
		fmt.Fprintf(w, "DEVICE\tALIAS\tUSERNAME\tTYPE\n")
		for _, r := range rows {
			alias := r.Alias
			if alias == "" {
				alias = "-"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.Device, alias, r.Username, r.Type)
		}
		return w.Flush()
	})
}

// Rotation prints the outcome of a password rotation run
func (p *Printer) Rotation(s *rotation.Summary) error {
	return p.render(s, func() error {
		if s.DryRun {
			p.printf("%s\n", p.warn.Sprint("Dry run: no device was contacted and no file was written."))
		}

		w := p.table()
		fmt.Fprintf(w, "DEVICE\tHOSTNAME\tSTATUS\tDETAIL\n")
		for _, o := range s.Outcomes {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", o.Device, o.Hostname, p.rotationStatus(o.Status), o.Error)
		}
		if err := w.Flush(); err != nil {
			return err
		}

		if s.Written != "" {
			p.printf("\nCredential file updated: %s\n", s.Written)
		}
		return nil
	})
}

func (p *Printer) rotationStatus(s rotation.Status) string {
	switch s {
	case rotation.StatusRotated:
		return p.good.Sprint(string(s))
	case rotation.StatusFailed:
		return p.bad.Sprint(string(s))
	default:
		return p.warn.Sprint(string(s))
	}
}

// IPAM prints an address inventory
func (p *Printer) IPAM(records []ipam.Record) error {
	if records == nil {
		records = []ipam.Record{}
	}
	return p.render(records, func() error {
		if len(records) == 0 {
			p.printf("No addresses recorded.\n")
			return nil
		}
		w := p.table()
		fmt.Fprintf(w, "HOSTNAME\tDEVICE\tINTERFACE\tADDRESS\tVERSION\n")
		for _, r := range records {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", r.Hostname, r.Device, r.Interface, r.Address, r.Version)
		}
		return w.Flush()
	})
}

// Inventory prints the result of an IPAM collection run
func (p *Printer) Inventory(inv *ipam.Inventory) error {
	return p.render(inv, func() error {
		if err := p.IPAM(inv.Records); err != nil {
			return err
		}
		for _, f := range inv.Failures {
			p.printf("%s\n", p.bad.Sprintf("Failed to collect %s: %s", f.Device, f.Error))
		}
		if inv.Written != "" {
			p.printf("\nIPAM data saved to %s\n", inv.Written)
		}
		return nil
	})
}

// Health prints a device health report
func (p *Printer) Health(r *health.Result) error {
	return p.render(r, func() error {
		p.printf("%s  %s\n", p.title.Sprint(r.Device), p.healthStatus(r.Status))
		if r.Error != "" {
			p.printf("%s\n", p.bad.Sprint(r.Error))
			return nil
		}

		p.printf("\nConnectivity\n")
		w := p.table()
		for _, ping := range r.Pings {
			result := p.good.Sprint("success")
			if !ping.Success {
				result = p.bad.Sprint("failed")
			}
			fmt.Fprintf(w, "  %s\t%s\t%s\n", ping.Family, ping.Target, result)
		}
		if err := w.Flush(); err != nil {
			return err
		}

		p.printf("\nRouting table\n%s\n", indent(orDefault(r.Routes, "(empty)")))
		source := ""
		if r.NeighborSource != "" {
			source = " (" + strings.ToUpper(r.NeighborSource) + ")"
		}
		p.printf("\nNeighbors%s\n%s\n", source, indent(orDefault(r.Neighbors, "No neighbor data found.")))

		p.printf("\nCPU\n")
		switch r.CPU.Status {
		case health.CPUOK:
			p.printf("  %s\n", p.good.Sprintf("%.2f%% (threshold %.0f%%)", r.CPU.Value, r.CPU.Threshold))
		case health.CPUHigh:
			p.printf("  %s\n", p.warn.Sprintf("%.2f%% is above the %.0f%% threshold", r.CPU.Value, r.CPU.Threshold))
		default:
			p.printf("  %s\n", p.warn.Sprintf("unknown: %s", r.CPU.Error))
		}

		for _, problem := range r.Problems {
			p.printf("%s\n", p.warn.Sprint(problem))
		}
		return nil
	})
}

func (p *Printer) healthStatus(s health.Status) string {
	switch s {
	case health.StatusHealthy:
		return p.good.Sprint(string(s))
	case health.StatusDegraded:
		return p.warn.Sprint(string(s))
	default:
		return p.bad.Sprint(string(s))
	}
}

// CPU prints SNMP processor load readings
func (p *Printer) CPU(readings []snmp.Reading, threshold float64) error {
	return p.render(readings, func() error {
		w := p.table()
		fmt.Fprintf(w, "TARGET\tCORES\tAVERAGE\tSTATUS\n")
		for _, r := range readings {
			switch {
			case r.Error != "":
				fmt.Fprintf(w, "%s\t-\t-\t%s\n", r.Target, p.bad.Sprint("error: "+r.Error))
			case r.Alert:
				fmt.Fprintf(w, "%s\t%d\t%.2f%%\t%s\n", r.Target, len(r.Cores), r.Average,
					p.warn.Sprintf("HIGH (> %.0f%%)", threshold))
			default:
				fmt.Fprintf(w, "%s\t%d\t%.2f%%\t%s\n", r.Target, len(r.Cores), r.Average, p.good.Sprint("ok"))
			}
		}
		return w.Flush()
	})
}

// Uploads prints archived snapshots
func (p *Printer) Uploads(uploads []archive.Upload) error {
	if uploads == nil {
		uploads = []archive.Upload{}
	}
	return p.render(uploads, func() error {
		for _, u := range uploads {
			p.printf("Archived %s -> %s\n", u.Name, u.URL)
		}
		p.printf("%s\n", p.dim.Sprintf("%d snapshots archived", len(uploads)))
		return nil
	})
}

// Journal prints recent journal entries
func (p *Printer) Journal(entries []journal.Entry) error {
	if entries == nil {
		entries = []journal.Entry{}
	}
	return p.render(entries, func() error {
		if len(entries) == 0 {
			p.printf("No journal entries.\n")
			return nil
		}
		w := p.table()
		fmt.Fprintf(w, "TIME\tDEVICE\tOPERATION\tSTATUS\tDETAIL\n")
		for _, e := range entries {
			detail := e.Artifact
			if e.Error != "" {
				detail = e.Error
			} else if e.Changes > 0 {
				detail = fmt.Sprintf("%d changes", e.Changes)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				e.RecordedAt.In(time.Local).Format(timeFormat), e.Device, e.Operation, e.Status, truncate(detail, 60))
		}
		return w.Flush()
	})
}

func formatSize(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

func indent(s string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = "  " + l
	}
	return strings.Join(lines, "\n")
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

// BuildInfo describes the running binary
type BuildInfo struct {
	Version   string `json:"version" yaml:"version"`
	Commit    string `json:"commit" yaml:"commit"`
	BuildTime string `json:"build_time" yaml:"build_time"`
	BuiltBy   string `json:"built_by" yaml:"built_by"`
	GoVersion string `json:"go_version" yaml:"go_version"`
	Platform  string `json:"platform" yaml:"platform"`
	Dirty     bool   `json:"dirty,omitempty" yaml:"dirty,omitempty"`
}

// BuildInfo prints version details
func (p *Printer) BuildInfo(b BuildInfo) error {
	return p.render(b, func() error {
		commit := b.Commit
		if b.Dirty {
			commit += " (modified)"
		}
		p.printf("%s %s\n", p.title.Sprint("ilmari"), b.Version)
		w := p.table()
		fmt.Fprintf(w, "  commit:\t%s\n", commit)
		fmt.Fprintf(w, "  built:\t%s\n", b.BuildTime)
		fmt.Fprintf(w, "  built by:\t%s\n", b.BuiltBy)
		fmt.Fprintf(w, "  go:\t%s %s\n", b.GoVersion, b.Platform)
		return w.Flush()
	})
}
