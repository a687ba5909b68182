// Package ipam builds an IP address inventory by asking every device for its
// interface addresses.
package ipam

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/yairfalse/ilmari/internal/channel"
	"github.com/yairfalse/ilmari/internal/credentials"
	opserrors "github.com/yairfalse/ilmari/internal/errors"
	"github.com/yairfalse/ilmari/internal/journal"
	"github.com/yairfalse/ilmari/internal/logger"
	"github.com/yairfalse/ilmari/internal/storage"
	"github.com/yairfalse/ilmari/pkg/progress"
	"github.com/yairfalse/ilmari/pkg/types"
)

// Header is the first row of the inventory file
var Header = []string{"Hostname", "Device", "Interface", "IP Address", "IP Version"}

// Record is one row of the inventory
type Record struct {
	Hostname  string  `json:"hostname" yaml:"hostname"`
	Device    string  `json:"device" yaml:"device"`
	Interface string  `json:"interface" yaml:"interface"`
	Address   string  `json:"address" yaml:"address"`
	Version   Version `json:"version" yaml:"version"`
}

// DeviceError is a device that could not be inventoried
type DeviceError struct {
	Device string `json:"device" yaml:"device"`
	Error  string `json:"error" yaml:"error"`

	Err error `json:"-" yaml:"-"`
}

// Inventory is the result of a collection run
type Inventory struct {
	Records  []Record      `json:"records" yaml:"records"`
	Failures []DeviceError `json:"failures,omitempty" yaml:"failures,omitempty"`
	Written  string        `json:"written,omitempty" yaml:"written,omitempty"`
}

// Pacer spaces out device connections
type Pacer interface {
	Wait(ctx context.Context) error
}

// Recorder appends outcomes to the run journal
type Recorder interface {
	Append(ctx context.Context, e journal.Entry) error
}

// Collector queries devices for their addresses
type Collector struct {
	Dialer   channel.Dialer
	Commands *channel.CommandSet
	Resolver *credentials.TypeResolver
	Pacer    Pacer
	Logger   logger.Logger
	Journal  Recorder
}

// Collect inventories every record in order and writes the result to path.
// Devices that fail are listed in the inventory and do not stop the run.
func (c *Collector) Collect(ctx context.Context, records []types.Credential, path string) (*Inventory, error) {
	if c.Dialer == nil {
		return nil, opserrors.ConfigurationError("ipam collection needs a dialer")
	}
	commands := c.Commands
	if commands == nil {
		commands = channel.NewCommandSet(nil)
	}
	log := c.Logger
	if log == nil {
		log = logger.Nop()
	}
	resolver := c.Resolver
	if resolver == nil {
		resolver = credentials.NewTypeResolver(channel.TypeAristaEOS, nil, nil)
	}

	inv := &Inventory{}
	tracker := progress.GetProgress(ctx).StartOperation("ipam", int64(len(records)))
	defer tracker.Complete()

	for _, cred := range records {
		if c.Pacer != nil {
			if err := c.Pacer.Wait(ctx); err != nil {
				return inv, err
			}
		}
		tracker.SetStatus(cred.CanonicalID)

		device := credentials.NewDevice(cred, resolver)
		rows, err := collectDevice(ctx, c.Dialer, commands, device, log)
		inv.Records = append(inv.Records, rows...)

		entry := journal.Entry{Device: device.Name(), Operation: "ipam", Status: "ok", Changes: len(rows)}
		if err != nil {
			log.WithField("device", device.Name()).Error("ipam collection failed", err)
			inv.Failures = append(inv.Failures, DeviceError{Device: device.Name(), Error: err.Error(), Err: err})
			entry.Status = "failed"
			entry.Phase = "fetching"
			entry.Error = err.Error()
		}
		if c.Journal != nil {
			if jerr := c.Journal.Append(ctx, entry); jerr != nil {
				log.Warn(fmt.Sprintf("journal append failed: %v", jerr))
			}
		}
		tracker.Increment(1)
	}

	if err := WriteCSV(path, inv.Records); err != nil {
		return inv, err
	}
	inv.Written = path
	return inv, nil
}

// collectDevice returns the rows gathered from one device. The IPv4 table is
// required; the IPv6 and loopback commands may be missing on some platforms.
func collectDevice(ctx context.Context, dialer channel.Dialer, commands *channel.CommandSet, device types.Device, log logger.Logger) ([]Record, error) {
	hostname := device.DisplayName
	if hostname == "" {
		hostname = "N/A"
	}
	row := func(iface, addr string, v Version) Record {
		return Record{Hostname: hostname, Device: device.Host(), Interface: iface, Address: addr, Version: v}
	}

	ipCmd, err := commands.Command(device.Type, channel.OpIPBrief)
	if err != nil {
		return nil, err
	}

	var rows []Record
	err = channel.WithSession(ctx, dialer, device, func(s channel.Session) error {
		out, err := channel.Exec(ctx, s, device, ipCmd)
		if err != nil {
			return err
		}
		for _, a := range ParseBrief(out) {
			rows = append(rows, row(a.Interface, a.IP, a.Version))
		}

		for _, op := range []string{channel.OpIPv6Brief, channel.OpLoopbacks} {
			if !commands.Has(device.Type, op) {
				continue
			}
			cmd, _ := commands.Command(device.Type, op)
			out, err := channel.Exec(ctx, s, device, cmd)
			if err != nil {
				log.WithField("device", device.Name()).Warn(fmt.Sprintf("skipping %s: %v", op, err))
				continue
			}

			if op == channel.OpLoopbacks {
				for _, name := range ParseLoopbacks(out) {
					rows = append(rows, row(name, LoopbackAddress, NoVersion))
				}
				continue
			}
			for _, a := range ParseBrief(out) {
				if a.Version == IPv6 {
					rows = append(rows, row(a.Interface, a.IP, a.Version))
				}
			}
		}
		return nil
	})
	return rows, err
}

// WriteCSV replaces the inventory file at path with records
func WriteCSV(path string, records []Record) error {
	if strings.TrimSpace(path) == "" {
		return opserrors.ConfigurationError("storage.ipam_file is not set")
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(Header); err != nil {
		return err
	}
	for _, r := range records {
		if err := w.Write([]string{r.Hostname, r.Device, r.Interface, r.Address, string(r.Version)}); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}

	if err := storage.NewAtomicWriter("").WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return opserrors.StoreUnavailable(filepath.Dir(path), err)
	}
	return nil
}

// ReadCSV loads an inventory file written by WriteCSV
func ReadCSV(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, opserrors.InputError("no IPAM inventory at %s", path).
				WithSolutions("Run 'ilmari ipam collect' first")
		}
		return nil, opserrors.StoreUnavailable(path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	var records []Record
	for line := 0; ; line++ {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		if line == 0 && len(row) > 0 && row[0] == Header[0] {
			continue
		}
		if len(row) < len(Header) {
			continue
		}
		records = append(records, Record{
			Hostname:  row[0],
			Device:    row[1],
			Interface: row[2],
			Address:   row[3],
			Version:   Version(row[4]),
		})
	}
	return records, nil
}

// FilterDevice keeps the records whose device or hostname equals identifier, ignoring case
func FilterDevice(records []Record, identifier string) []Record {
	id := strings.TrimSpace(identifier)
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if strings.EqualFold(r.Device, id) || strings.EqualFold(r.Hostname, id) {
			out = append(out, r)
		}
	}
	return out
}
