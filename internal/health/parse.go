package health

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var successKeywords = []string{"success rate", "bytes from", "100 percent", "0% packet loss"}

var failureMarkers = []string{"success rate is 0 percent", "100% packet loss", "100.0% packet loss"}

// PingSucceeded reports whether ping output shows at least one reply.
func PingSucceeded(output string) bool {
	lower := strings.ToLower(output)
	for _, marker := range failureMarkers {
		if strings.Contains(lower, marker) {
			return false
		}
	}
	for _, kw := range successKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

var (
	percentRe = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(?:%|percent)`)
	idleRe    = regexp.MustCompile(`(?i)idle\s+(\d+(?:\.\d+)?)\s*percent`)
)

// ParseCPU extracts a utilization percentage from cpu command output. It
// accepts a bare number, the first percentage in a line such as
// "CPU utilization for five seconds: 7%/0%", or a Junos "Idle 97 percent".
func ParseCPU(output string) (float64, error) {
	text := strings.TrimSpace(output)
	if text == "" {
		return 0, fmt.Errorf("empty cpu output")
	}

	if v, err := strconv.ParseFloat(text, 64); err == nil {
		return v, nil
	}

	if m := idleRe.FindStringSubmatch(text); m != nil {
		idle, _ := strconv.ParseFloat(m[1], 64)
		return 100 - idle, nil
	}

	if m := percentRe.FindStringSubmatch(text); m != nil {
		v, _ := strconv.ParseFloat(m[1], 64)
		return v, nil
	}

	return 0, fmt.Errorf("unable to parse cpu utilization from %q", text)
}
