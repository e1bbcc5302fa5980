package migrate

import (
	"sort"

	"github.com/mesh-intelligence/strata/pkg/types"
)

// NameAt returns the name a field carried at version, given its current
// name and its rename history.
//
// The walk goes newest-first and stops at the first record at or below
// version. Every newer record whose To matches the running candidate
// rewinds the candidate to the record's From.
func NameAt(current string, history []types.RenameRecord, version int) string {
	candidate := current
	for _, r := range newestFirst(history) {
		if r.Version <= version {
			break
		}
		to := r.To
		if to == "" {
			to = candidate
		}
		if to == candidate {
			candidate = r.From
		}
	}
	return candidate
}

// Snapshot maps each field's name at toVersion to its name at fromVersion,
// for every field of the ledger whose name differs between the two.
// Fields that kept their name are not listed.
func Snapshot(fromVersion, toVersion int, ledger types.RenameLedger) map[string]string {
	snap := make(map[string]string)
	for current, history := range ledger {
		from := NameAt(current, history, fromVersion)
		to := NameAt(current, history, toVersion)
		if from != to {
			snap[to] = from
		}
	}
	return snap
}

// newestFirst returns history ordered by descending version, copying only
// when the input is out of order.
func newestFirst(history []types.RenameRecord) []types.RenameRecord {
	if sort.SliceIsSorted(history, func(i, j int) bool { return history[i].Version > history[j].Version }) {
		return history
	}
	out := make([]types.RenameRecord, len(history))
	copy(out, history)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Version > out[j].Version })
	return out
}
