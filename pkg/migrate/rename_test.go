package migrate

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mesh-intelligence/strata/pkg/types"
)

func TestNameAt(t *testing.T) {
	dayToWeekday := []types.RenameRecord{{From: "day", To: "weekday", Version: 3}}
	chain := []types.RenameRecord{
		{From: "b", To: "c", Version: 7},
		{From: "a", To: "b", Version: 3},
	}

	tests := []struct {
		name    string
		current string
		history []types.RenameRecord
		version int
		want    string
	}{
		{"before rename", "weekday", dayToWeekday, 2, "day"},
		{"at rename version", "weekday", dayToWeekday, 3, "weekday"},
		{"after rename", "weekday", dayToWeekday, 5, "weekday"},
		{"no history", "title", nil, 1, "title"},
		{"chain oldest", "c", chain, 1, "a"},
		{"chain middle", "c", chain, 5, "b"},
		{"chain newest", "c", chain, 7, "c"},
		{"empty to means candidate", "new", []types.RenameRecord{{From: "old", Version: 4}}, 3, "old"},
		{"unrelated record", "z", []types.RenameRecord{{From: "x", To: "y", Version: 5}}, 1, "z"},
		{"unsorted history", "c", []types.RenameRecord{chain[1], chain[0]}, 5, "b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NameAt(tt.current, tt.history, tt.version))
		})
	}
}

func TestSnapshot(t *testing.T) {
	ledger := types.RenameLedger{
		"weekday": {{From: "day", To: "weekday", Version: 3}},
		"c": {
			{From: "b", To: "c", Version: 7},
			{From: "a", To: "b", Version: 3},
		},
	}

	assert.Equal(t, map[string]string{"weekday": "day", "b": "a"}, Snapshot(2, 5, ledger))
	assert.Equal(t, map[string]string{"c": "b"}, Snapshot(5, 10, ledger))
	assert.Equal(t, map[string]string{"weekday": "day", "c": "a"}, Snapshot(1, 10, ledger))
	assert.Empty(t, Snapshot(7, 12, ledger))
	assert.Empty(t, Snapshot(1, 2, nil))
}
