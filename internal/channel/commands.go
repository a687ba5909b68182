package channel

import (
	"sort"
	"strings"

	opserrors "github.com/yairfalse/ilmari/internal/errors"
)

// Operation names understood by every device type.
const (
	OpRunningConfig = "running_config"
	OpIPBrief       = "ip_brief"
	OpIPv6Brief     = "ipv6_brief"
	OpLoopbacks     = "loopbacks"
	OpRoutes        = "routes"
	OpOSPFNeighbors = "ospf_neighbors"
	OpCDPNeighbors  = "cdp_neighbors"
	OpLLDPNeighbors = "lldp_neighbors"
	OpCPU           = "cpu"
	OpPing          = "ping"
	OpPing6         = "ping6"
	OpSetSecret     = "set_secret"
	OpSaveConfig    = "save_config"
	OpPrompt        = "prompt"
)

// Device type tags.
const (
	TypeAristaEOS    = "arista_eos"
	TypeCiscoIOS     = "cisco_ios"
	TypeJuniperJunos = "juniper_junos"
)

var defaultCommands = map[string]map[string]string{
	TypeAristaEOS: {
		OpRunningConfig: "show running-config",
		OpIPBrief:       "show ip interface brief",
		OpIPv6Brief:     "show ipv6 interface brief",
		OpLoopbacks:     "show interfaces description | include Loopback",
		OpRoutes:        "show ip route",
		OpOSPFNeighbors: "show ip ospf neighbor",
		OpCDPNeighbors:  "show lldp neighbors",
		OpLLDPNeighbors: "show lldp neighbors",
		OpCPU:           `bash top -b -n1 | grep "Cpu(s)" | awk '{print $2 + $4 + $6}'`,
		OpPing:          "ping {target} repeat 3",
		OpPing6:         "ping ipv6 {target} repeat 3",
		OpSetSecret:     "configure\nusername {user} secret {secret}\nend",
		OpSaveConfig:    "write memory",
		OpPrompt:        "show hostname",
	},
	TypeCiscoIOS: {
		OpRunningConfig: "show running-config",
		OpIPBrief:       "show ip interface brief",
		OpIPv6Brief:     "show ipv6 interface brief",
		OpLoopbacks:     "show interfaces description | include Loopback",
		OpRoutes:        "show ip route",
		OpOSPFNeighbors: "show ip ospf neighbor",
		OpCDPNeighbors:  "show cdp neighbors",
		OpLLDPNeighbors: "show lldp neighbors",
		OpCPU:           "show processes cpu | include CPU utilization",
		OpPing:          "ping {target}",
		OpPing6:         "ping ipv6 {target}",
		OpSetSecret:     "configure terminal\nusername {user} secret {secret}\nend",
		OpSaveConfig:    "copy running-config startup-config",
		OpPrompt:        "show running-config | include ^hostname",
	},
	TypeJuniperJunos: {
		OpRunningConfig: "show configuration | display set",
		OpIPBrief:       "show interfaces terse | match inet",
		OpIPv6Brief:     "show interfaces terse | match inet6",
		OpLoopbacks:     "show interfaces descriptions | match lo0",
		OpRoutes:        "show route",
		OpOSPFNeighbors: "show ospf neighbor",
		OpCDPNeighbors:  "show lldp neighbors",
		OpLLDPNeighbors: "show lldp neighbors",
		OpCPU:           "show chassis routing-engine | match Idle",
		OpPing:          "ping {target} count 3",
		OpPing6:         "ping inet6 {target} count 3",
		OpSetSecret:     "configure\nset system login user {user} authentication plain-text-password-value {secret}\ncommit and-quit",
		OpPrompt:        "show configuration system host-name",
	},
}

// CommandSet maps (device type, operation) to the CLI command to send.
type CommandSet struct {
	commands map[string]map[string]string
}

// NewCommandSet returns the built-in commands with overrides applied on top.
// Overrides may redefine single operations or add whole device types.
func NewCommandSet(overrides map[string]map[string]string) *CommandSet {
	cs := &CommandSet{commands: make(map[string]map[string]string, len(defaultCommands))}
	for deviceType, ops := range defaultCommands {
		cs.commands[deviceType] = make(map[string]string, len(ops))
		for op, cmd := range ops {
			cs.commands[deviceType][op] = cmd
		}
	}

	for deviceType, ops := range overrides {
		key := strings.ToLower(strings.TrimSpace(deviceType))
		if cs.commands[key] == nil {
			cs.commands[key] = make(map[string]string, len(ops))
		}
		for op, cmd := range ops {
			cs.commands[key][strings.ToLower(op)] = cmd
		}
	}
	return cs
}

// Command returns the command for op on deviceType. vars are key/value pairs
// substituted for {key} placeholders, e.g. Command(t, OpPing, "target", "10.0.0.1").
func (cs *CommandSet) Command(deviceType, op string, vars ...string) (string, error) {
	ops, ok := cs.commands[strings.ToLower(deviceType)]
	if !ok {
		return "", opserrors.InputError("unknown device type %q", deviceType).
			WithSolutions("Known types: " + strings.Join(cs.Types(), ", "))
	}

	cmd, ok := ops[op]
	if !ok || strings.TrimSpace(cmd) == "" {
		return "", opserrors.InputError("device type %q has no %s command", deviceType, op).
			WithSolutions("Add commands." + deviceType + "." + op + " to config.yaml")
	}

	if len(vars) > 0 {
		pairs := make([]string, 0, len(vars))
		for i := 0; i+1 < len(vars); i += 2 {
			pairs = append(pairs, "{"+vars[i]+"}", vars[i+1])
		}
		cmd = strings.NewReplacer(pairs...).Replace(cmd)
	}
	return cmd, nil
}

// Has reports whether deviceType defines op
func (cs *CommandSet) Has(deviceType, op string) bool {
	cmd, ok := cs.commands[strings.ToLower(deviceType)][op]
	return ok && strings.TrimSpace(cmd) != ""
}

// Types returns the known device types, sorted
func (cs *CommandSet) Types() []string {
	types := make([]string, 0, len(cs.commands))
	for t := range cs.commands {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
