package ai

import (
	"fmt"
	"strings"

	"github.com/yairfalse/ilmari/pkg/types"
)

// MaxPromptChanges caps the diff lines sent in one request
const MaxPromptChanges = 400

const systemPrompt = `You are a network engineer reviewing configuration drift on a router or switch.
Lines starting with "-" exist in the approved golden config but are missing from the running config.
Lines starting with "+" are in the running config but not in the golden config.
Explain in plain language what changed, what the operational impact could be, and whether
anything looks risky. Be brief: a short summary paragraph followed by at most five bullet points.`

// BuildPrompt renders the user message describing the drift of device
func BuildPrompt(device string, changes []types.Change) string {
	var sb strings.Builder

	added, removed := 0, 0
	for _, c := range changes {
		if c.Op == types.Added {
			added++
		} else {
			removed++
		}
	}

	fmt.Fprintf(&sb, "Device: %s\n", device)
	fmt.Fprintf(&sb, "Changes: %d added, %d removed\n\n", added, removed)
	sb.WriteString("Diff against the golden config:\n")

	shown := changes
	if len(shown) > MaxPromptChanges {
		shown = shown[:MaxPromptChanges]
	}
	for _, c := range shown {
		sb.WriteString(c.String())
		sb.WriteString("\n")
	}
	if len(changes) > len(shown) {
		fmt.Fprintf(&sb, "... %d more lines omitted\n", len(changes)-len(shown))
	}

	return sb.String()
}
