package ipam

import (
	"net/netip"
	"strings"
)

// Version tags the address family of a record
type Version string

const (
	IPv4 Version = "IPv4"
	IPv6 Version = "IPv6"
	// NoVersion marks loopback rows, which carry no address
	NoVersion Version = "N/A"
)

// LoopbackAddress is the address column of loopback rows
const LoopbackAddress = "Loopback"

// Address is one interface address found in command output
type Address struct {
	Interface string
	IP        string
	Version   Version
}

// ParseBrief extracts interface addresses from "show ip interface brief" style
// tables. The first field of a row names the interface and the first later
// field that parses as an address or prefix is its address. Header rows and
// unassigned interfaces have no such field and are skipped. Indented rows
// holding only an address belong to the interface above them, which is how
// IOS lists IPv6 addresses.
func ParseBrief(output string) []Address {
	var (
		addrs   []Address
		current string
	)

	for _, line := range strings.Split(strings.ReplaceAll(output, "\r\n", "\n"), "\n") {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}

		indented := line[0] == ' ' || line[0] == '\t'
		if indented && current != "" {
			if ip, version, ok := parseAddress(fields[0]); ok {
				addrs = append(addrs, Address{Interface: current, IP: ip, Version: version})
			}
			continue
		}

		current = fields[0]
		for _, field := range fields[1:] {
			if ip, version, ok := parseAddress(field); ok {
				addrs = append(addrs, Address{Interface: current, IP: ip, Version: version})
				break
			}
		}
	}

	return addrs
}

// ParseLoopbacks returns the interface names listed in loopback description output.
func ParseLoopbacks(output string) []string {
	var names []string
	for _, line := range strings.Split(strings.ReplaceAll(output, "\r\n", "\n"), "\n") {
		fields := strings.Fields(line)
		if len(fields) == 0 || strings.EqualFold(fields[0], "Interface") {
			continue
		}
		names = append(names, fields[0])
	}
	return names
}

// parseAddress accepts a bare address or a prefix like 10.0.0.1/24, keeping the
// text as printed by the device.
func parseAddress(field string) (string, Version, bool) {
	field = strings.Trim(field, ",[]")
	if strings.EqualFold(field, "unassigned") {
		return "", "", false
	}

	addr, err := netip.ParseAddr(field)
	if err != nil {
		prefix, perr := netip.ParsePrefix(field)
		if perr != nil {
			return "", "", false
		}
		addr = prefix.Addr()
	}

	if addr.Is4() || addr.Is4In6() {
		return field, IPv4, true
	}
	return field, IPv6, true
}
