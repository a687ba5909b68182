// Package snmp polls processor load over SNMP.
package snmp

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gosnmp/gosnmp"

	opserrors "github.com/yairfalse/ilmari/internal/errors"
	"github.com/yairfalse/ilmari/internal/logger"
)

// ProcessorLoadOID is hrProcessorLoad, one row per CPU core
const ProcessorLoadOID = ".1.3.6.1.2.1.25.3.3.1.2"

// DefaultThreshold is the average load above which a target is alerted
const DefaultThreshold = 50.0

// Client is the part of gosnmp.Handler the poller uses
type Client interface {
	Connect() error
	Close() error
	WalkAll(rootOid string) ([]gosnmp.SnmpPDU, error)
	BulkWalkAll(rootOid string) ([]gosnmp.SnmpPDU, error)
}

// Options configure the SNMP session for every target
type Options struct {
	Community string
	Version   string
	Port      int
	Timeout   time.Duration
	Retries   int
	Threshold float64
}

// Reading is the processor load of one target
type Reading struct {
	Target  string  `json:"target" yaml:"target"`
	Cores   []int64 `json:"cores,omitempty" yaml:"cores,omitempty"`
	Average float64 `json:"average" yaml:"average"`
	Alert   bool    `json:"alert" yaml:"alert"`
	Error   string  `json:"error,omitempty" yaml:"error,omitempty"`
}

// Poller walks processor load on a list of targets.
type Poller struct {
	opts      Options
	version   gosnmp.SnmpVersion
	newClient func(target string) Client
	log       logger.Logger
}

// NewPoller validates opts and builds a Poller backed by gosnmp
func NewPoller(opts Options, log logger.Logger) (*Poller, error) {
	version, err := parseVersion(opts.Version)
	if err != nil {
		return nil, err
	}
	if opts.Community == "" {
		return nil, opserrors.ConfigurationError("snmp.community is not set")
	}
	if opts.Port == 0 {
		opts.Port = 161
	}
	if opts.Timeout == 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.Threshold <= 0 {
		opts.Threshold = DefaultThreshold
	}
	if log == nil {
		log = logger.Nop()
	}

	p := &Poller{opts: opts, version: version, log: log}
	p.newClient = p.gosnmpClient
	return p, nil
}

func parseVersion(v string) (gosnmp.SnmpVersion, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "2c", "v2c", "2":
		return gosnmp.Version2c, nil
	case "1", "v1":
		return gosnmp.Version1, nil
	default:
		return 0, opserrors.ConfigurationError("unsupported snmp version %q", v).
			WithSolutions("Set snmp.version to 1 or 2c")
	}
}

func (p *Poller) gosnmpClient(target string) Client {
	client := gosnmp.NewHandler()
	client.SetTarget(target)
	client.SetPort(uint16(p.opts.Port))
	client.SetCommunity(p.opts.Community)
	client.SetVersion(p.version)
	client.SetTimeout(p.opts.Timeout)
	client.SetRetries(p.opts.Retries)
	return client
}

// Poll reads every target in order. A target that cannot be read gets an
// error reading and the loop continues.
func (p *Poller) Poll(ctx context.Context, targets []string) ([]Reading, error) {
	if len(targets) == 0 {
		return nil, opserrors.ConfigurationError("no SNMP targets configured").
			WithSolutions("Add hosts to snmp.targets in config.yaml")
	}

	readings := make([]Reading, 0, len(targets))
	for _, target := range targets {
		if err := ctx.Err(); err != nil {
			return readings, err
		}

		r := p.read(strings.TrimSpace(target))
		if r.Error != "" {
			p.log.WithField("target", r.Target).Warn("unable to fetch CPU usage: " + r.Error)
		} else if r.Alert {
			p.log.WithFields(map[string]interface{}{
				"target":    r.Target,
				"average":   r.Average,
				"threshold": p.opts.Threshold,
			}).Warn("CPU usage is high")
		}
		readings = append(readings, r)
	}
	return readings, nil
}

func (p *Poller) read(target string) Reading {
	r := Reading{Target: target}

	client := p.newClient(target)
	if err := client.Connect(); err != nil {
		r.Error = fmt.Sprintf("connect: %v", err)
		return r
	}
	defer client.Close()

	var (
		pdus []gosnmp.SnmpPDU
		err  error
	)
	if p.version == gosnmp.Version1 {
		pdus, err = client.WalkAll(ProcessorLoadOID)
	} else {
		pdus, err = client.BulkWalkAll(ProcessorLoadOID)
	}
	if err != nil {
		r.Error = fmt.Sprintf("walk %s: %v", ProcessorLoadOID, err)
		return r
	}

	for _, pdu := range pdus {
		switch pdu.Type {
		case gosnmp.Integer, gosnmp.Gauge32, gosnmp.Counter32, gosnmp.Counter64, gosnmp.Uinteger32:
			r.Cores = append(r.Cores, gosnmp.ToBigInt(pdu.Value).Int64())
		}
	}
	if len(r.Cores) == 0 {
		r.Error = "no processor load rows returned"
		return r
	}

	var sum int64
	for _, v := range r.Cores {
		sum += v
	}
	r.Average = float64(sum) / float64(len(r.Cores))
	r.Alert = r.Average > p.opts.Threshold
	return r
}
