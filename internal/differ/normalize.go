package differ

import "strings"

// commentMarkers start lines that carry no configuration.
const commentMarkers = "!#"

// Normalize turns raw configuration text into the canonical line list used for
// snapshots and comparison: each line trimmed, blank lines and comment lines
// dropped. Normalize(strings.Join(Normalize(x), "\n")) equals Normalize(x).
func Normalize(raw string) []string {
	raw = strings.ReplaceAll(raw, "\r\n", "\n")
	raw = strings.ReplaceAll(raw, "\r", "\n")

	lines := []string{}
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.ContainsRune(commentMarkers, rune(line[0])) {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}
