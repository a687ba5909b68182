// Package health runs reachability, routing and CPU checks on a device.
package health

import (
	"context"
	"fmt"
	"strings"

	"github.com/yairfalse/ilmari/internal/channel"
	"github.com/yairfalse/ilmari/internal/credentials"
	opserrors "github.com/yairfalse/ilmari/internal/errors"
	"github.com/yairfalse/ilmari/internal/journal"
	"github.com/yairfalse/ilmari/internal/logger"
	"github.com/yairfalse/ilmari/pkg/types"
)

// DefaultCPUThreshold is the utilization at which CPU is reported high
const DefaultCPUThreshold = 70.0

// CPUStatus classifies a CPU reading
type CPUStatus string

const (
	CPUOK      CPUStatus = "ok"
	CPUHigh    CPUStatus = "high"
	CPUUnknown CPUStatus = "unknown"
)

// Status is the overall verdict for a device
type Status string

const (
	StatusHealthy  Status = "healthy"
	StatusDegraded Status = "degraded"
	StatusFailed   Status = "failed"
)

// PingResult is the outcome of one ping target
type PingResult struct {
	Target  string `json:"target" yaml:"target"`
	Family  string `json:"family" yaml:"family"`
	Success bool   `json:"success" yaml:"success"`
	Output  string `json:"output,omitempty" yaml:"output,omitempty"`
	Error   string `json:"error,omitempty" yaml:"error,omitempty"`
}

// CPUResult is the CPU reading of a device
type CPUResult struct {
	Value     float64   `json:"value" yaml:"value"`
	Threshold float64   `json:"threshold" yaml:"threshold"`
	Status    CPUStatus `json:"status" yaml:"status"`
	Raw       string    `json:"raw,omitempty" yaml:"raw,omitempty"`
	Error     string    `json:"error,omitempty" yaml:"error,omitempty"`
}

// Result is the health report of one device
type Result struct {
	Device         string       `json:"device" yaml:"device"`
	Host           string       `json:"host" yaml:"host"`
	Status         Status       `json:"status" yaml:"status"`
	Pings          []PingResult `json:"pings" yaml:"pings"`
	Routes         string       `json:"routes,omitempty" yaml:"routes,omitempty"`
	Neighbors      string       `json:"neighbors,omitempty" yaml:"neighbors,omitempty"`
	NeighborSource string       `json:"neighbor_source,omitempty" yaml:"neighbor_source,omitempty"`
	CPU            CPUResult    `json:"cpu" yaml:"cpu"`
	Problems       []string     `json:"problems,omitempty" yaml:"problems,omitempty"`
	Error          string       `json:"error,omitempty" yaml:"error,omitempty"`

	Err error `json:"-" yaml:"-"`
}

// PingsOK reports whether every ping target answered
func (r *Result) PingsOK() bool {
	for _, p := range r.Pings {
		if !p.Success {
			return false
		}
	}
	return true
}

// Credentials finds the credential for a device identifier
type Credentials interface {
	Lookup(identifier string) (types.Credential, error)
}

// Recorder appends outcomes to the run journal
type Recorder interface {
	Append(ctx context.Context, e journal.Entry) error
}

// Checker runs health checks
type Checker struct {
	Credentials  Credentials
	Resolver     *credentials.TypeResolver
	Dialer       channel.Dialer
	Commands     *channel.CommandSet
	PingTargets  []string
	CPUThreshold float64
	Logger       logger.Logger
	Journal      Recorder
}

// neighborOps are tried in order until one returns data
var neighborOps = []struct {
	op     string
	source string
}{
	{channel.OpOSPFNeighbors, "ospf"},
	{channel.OpCDPNeighbors, "cdp"},
	{channel.OpLLDPNeighbors, "lldp"},
}

// Check runs all checks against identifier. Resolution and connection failures
// are returned as errors; individual check failures are recorded as problems.
func (c *Checker) Check(ctx context.Context, identifier string) (*Result, error) {
	log := c.Logger
	if log == nil {
		log = logger.Nop()
	}
	commands := c.Commands
	if commands == nil {
		commands = channel.NewCommandSet(nil)
	}
	resolver := c.Resolver
	if resolver == nil {
		resolver = credentials.NewTypeResolver(channel.TypeAristaEOS, nil, nil)
	}
	if c.Credentials == nil || c.Dialer == nil {
		return nil, opserrors.ConfigurationError("health check needs credentials and a dialer")
	}

	id := strings.TrimSpace(identifier)
	if id == "" {
		return nil, opserrors.InputError("device identifier is required")
	}
	cred, err := c.Credentials.Lookup(id)
	if err != nil {
		return nil, err
	}
	device := credentials.NewDevice(cred, resolver)

	threshold := c.CPUThreshold
	if threshold <= 0 {
		threshold = DefaultCPUThreshold
	}

	res := &Result{
		Device: device.Name(),
		Host:   device.Host(),
		CPU:    CPUResult{Threshold: threshold, Status: CPUUnknown},
	}

	err = channel.WithSession(ctx, c.Dialer, device, func(s channel.Session) error {
		c.checkPings(ctx, s, commands, device, res)
		c.checkRouting(ctx, s, commands, device, res)
		c.checkCPU(ctx, s, commands, device, res)
		return nil
	})
	if err != nil {
		res.Status = StatusFailed
		res.Err = err
		res.Error = err.Error()
		c.record(ctx, res, log)
		return res, err
	}

	res.Status = StatusHealthy
	if !res.PingsOK() || res.CPU.Status != CPUOK || len(res.Problems) > 0 {
		res.Status = StatusDegraded
	}

	log.WithFields(map[string]interface{}{
		"device": res.Device,
		"status": string(res.Status),
	}).Info("health check completed")
	c.record(ctx, res, log)
	return res, nil
}

func (c *Checker) checkPings(ctx context.Context, s channel.Session, commands *channel.CommandSet, device types.Device, res *Result) {
	for _, target := range c.PingTargets {
		target = strings.TrimSpace(target)
		if target == "" {
			continue
		}

		op, family := channel.OpPing, "IPv4"
		if strings.Contains(target, ":") {
			op, family = channel.OpPing6, "IPv6"
		}
		pr := PingResult{Target: target, Family: family}

		cmd, err := commands.Command(device.Type, op, "target", target)
		if err == nil {
			pr.Output, err = channel.Exec(ctx, s, device, cmd)
		}
		if err != nil {
			pr.Error = err.Error()
		} else {
			pr.Success = PingSucceeded(pr.Output)
		}
		res.Pings = append(res.Pings, pr)
	}
}

func (c *Checker) checkRouting(ctx context.Context, s channel.Session, commands *channel.CommandSet, device types.Device, res *Result) {
	if cmd, err := commands.Command(device.Type, channel.OpRoutes); err != nil {
		res.Problems = append(res.Problems, err.Error())
	} else if out, err := channel.Exec(ctx, s, device, cmd); err != nil {
		res.Problems = append(res.Problems, fmt.Sprintf("routing table: %v", err))
	} else {
		res.Routes = strings.TrimSpace(out)
	}

	for _, n := range neighborOps {
		if !commands.Has(device.Type, n.op) {
			continue
		}
		cmd, _ := commands.Command(device.Type, n.op)
		out, err := channel.Exec(ctx, s, device, cmd)
		if err != nil || strings.TrimSpace(out) == "" {
			continue
		}
		res.Neighbors = strings.TrimSpace(out)
		res.NeighborSource = n.source
		return
	}
}

func (c *Checker) checkCPU(ctx context.Context, s channel.Session, commands *channel.CommandSet, device types.Device, res *Result) {
	cmd, err := commands.Command(device.Type, channel.OpCPU)
	if err != nil {
		res.CPU.Error = err.Error()
		return
	}
	out, err := channel.Exec(ctx, s, device, cmd)
	if err != nil {
		res.CPU.Error = err.Error()
		return
	}
	res.CPU.Raw = strings.TrimSpace(out)

	value, err := ParseCPU(out)
	if err != nil {
		res.CPU.Error = err.Error()
		return
	}
	res.CPU.Value = value
	res.CPU.Status = EvaluateCPU(value, res.CPU.Threshold)
}

// EvaluateCPU classifies value against threshold
func EvaluateCPU(value, threshold float64) CPUStatus {
	if value < threshold {
		return CPUOK
	}
	return CPUHigh
}

func (c *Checker) record(ctx context.Context, res *Result, log logger.Logger) {
	if c.Journal == nil {
		return
	}
	entry := journal.Entry{
		Device:    res.Device,
		Operation: "health",
		Status:    string(res.Status),
		Error:     res.Error,
	}
	if res.Status == StatusFailed {
		entry.Phase = "connecting"
	}
	if err := c.Journal.Append(ctx, entry); err != nil {
		log.Warn(fmt.Sprintf("journal append failed: %v", err))
	}
}
