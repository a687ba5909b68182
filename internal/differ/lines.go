package differ

import (
	"github.com/pmezard/go-difflib/difflib"

	"github.com/yairfalse/ilmari/pkg/types"
)

const (
	// pairs of lines less similar than this are reported as plain remove/add blocks
	similarityCutoff = 0.75
	startRatio       = 0.74
)

// Lines returns the lines removed from baseline and added in current, in the
// order an ndiff-style line comparison reports them. Unchanged lines are omitted.
func Lines(baseline, current []string) []types.Change {
	changes := []types.Change{}

	matcher := difflib.NewMatcher(baseline, current)
	for _, op := range matcher.GetOpCodes() {
		switch op.Tag {
		case 'r':
			changes = fancyReplace(changes, baseline, op.I1, op.I2, current, op.J1, op.J2)
		case 'd':
			changes = dump(changes, types.Removed, baseline, op.I1, op.I2)
		case 'i':
			changes = dump(changes, types.Added, current, op.J1, op.J2)
		}
	}

	return changes
}

func dump(changes []types.Change, op types.ChangeOp, lines []string, lo, hi int) []types.Change {
	for _, line := range lines[lo:hi] {
		changes = append(changes, types.Change{Op: op, Text: line})
	}
	return changes
}

// plainReplace emits the shorter block first.
func plainReplace(changes []types.Change, a []string, alo, ahi int, b []string, blo, bhi int) []types.Change {
	if bhi-blo < ahi-alo {
		changes = dump(changes, types.Added, b, blo, bhi)
		return dump(changes, types.Removed, a, alo, ahi)
	}
	changes = dump(changes, types.Removed, a, alo, ahi)
	return dump(changes, types.Added, b, blo, bhi)
}

// fancyReplace looks inside a replaced block for the most similar pair of
// lines, reports it as a single remove/add pair and recurses on both sides of it.
// Identical lines inside the block are used as synchronisation points.
func fancyReplace(changes []types.Change, a []string, alo, ahi int, b []string, blo, bhi int) []types.Change {
	bestRatio := startRatio
	bestI, bestJ := -1, -1
	eqI, eqJ := -1, -1

	cruncher := difflib.NewMatcherWithJunk(nil, nil, true, isCharJunk)
	for j := blo; j < bhi; j++ {
		bj := b[j]
		cruncher.SetSeq2(chars(bj))
		for i := alo; i < ahi; i++ {
			ai := a[i]
			if ai == bj {
				if eqI < 0 {
					eqI, eqJ = i, j
				}
				continue
			}
			cruncher.SetSeq1(chars(ai))
			if cruncher.RealQuickRatio() > bestRatio &&
				cruncher.QuickRatio() > bestRatio &&
				cruncher.Ratio() > bestRatio {
				bestRatio, bestI, bestJ = cruncher.Ratio(), i, j
			}
		}
	}

	synched := false
	if bestRatio < similarityCutoff {
		if eqI < 0 {
			return plainReplace(changes, a, alo, ahi, b, blo, bhi)
		}
		bestI, bestJ = eqI, eqJ
		synched = true
	}

	changes = fancyHelper(changes, a, alo, bestI, b, blo, bestJ)

	if !synched {
		changes = append(changes,
			types.Change{Op: types.Removed, Text: a[bestI]},
			types.Change{Op: types.Added, Text: b[bestJ]},
		)
	}

	return fancyHelper(changes, a, bestI+1, ahi, b, bestJ+1, bhi)
}

func fancyHelper(changes []types.Change, a []string, alo, ahi int, b []string, blo, bhi int) []types.Change {
	switch {
	case alo < ahi && blo < bhi:
		return fancyReplace(changes, a, alo, ahi, b, blo, bhi)
	case alo < ahi:
		return dump(changes, types.Removed, a, alo, ahi)
	case blo < bhi:
		return dump(changes, types.Added, b, blo, bhi)
	}
	return changes
}

// isCharJunk treats blanks and tabs as junk when scoring line similarity.
func isCharJunk(ch string) bool {
	return ch == " " || ch == "\t"
}

func chars(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}
