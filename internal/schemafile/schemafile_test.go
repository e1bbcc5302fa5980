package schemafile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/strata/pkg/types"
)

const tasksYAML = `
entity: tasks
tables: [tasks, archived_tasks]
current: 5
versions:
  - version: 2
    fields:
      - {name: id, kind: long, unique: true}
      - {name: day, kind: int, default: 1}
      - {name: tags, kind: list, elem: string, nullable: true}
  - version: 5
    fields:
      - {name: id, kind: long, unique: true}
      - {name: weekday, kind: int, default: 1}
      - {name: done, kind: bool}
      - {name: ratio, kind: double, default: 0.5}
      - {name: tags, kind: list, elem: string, nullable: true}
renames:
  weekday:
    - {from: day, to: weekday, version: 3}
hooks:
  5:
    fields:
      done: {strategy: fallback, value: false}
      ratio: {strategy: coerce}
`

func TestParse(t *testing.T) {
	s, err := Parse([]byte(tasksYAML))
	require.NoError(t, err)

	assert.Equal(t, "tasks", s.Entity)
	assert.Equal(t, []string{"tasks", "archived_tasks"}, s.Tables)
	assert.Equal(t, 5, s.Current)
	assert.Equal(t, []int{2, 5}, s.Versions())

	v2, err := s.Shape(2)
	require.NoError(t, err)
	require.Len(t, v2.Fields, 3)
	assert.Equal(t, types.KindLong, v2.Fields[0].Kind)
	assert.True(t, v2.Fields[0].Unique)
	assert.True(t, types.Int(1).Equal(v2.Fields[1].Default))
	assert.Equal(t, types.KindString, v2.Fields[2].Elem)
	assert.True(t, v2.Fields[2].Nullable)

	v5, err := s.Shape(5)
	require.NoError(t, err)
	ratio, ok := v5.Field("ratio")
	require.True(t, ok)
	assert.True(t, types.Double(0.5).Equal(ratio.Default))

	assert.Equal(t, []types.RenameRecord{{From: "day", To: "weekday", Version: 3}}, s.Renames["weekday"])

	hook := s.Hook(5)
	require.NotNil(t, hook)
	done, ok := hook.Transform("done")
	require.True(t, ok)
	assert.Equal(t, types.StrategyFallback, done.Strategy())
	assert.True(t, types.Bool(false).Equal(done.Value()))
	r, ok := hook.Transform("ratio")
	require.True(t, ok)
	assert.Equal(t, types.StrategyCoerce, r.Strategy())
}

func TestParse_Defaults(t *testing.T) {
	s, err := Parse([]byte(`
entity: notes
versions:
  - version: 1
    fields: [{name: body, kind: string}]
  - version: 4
    fields: [{name: body, kind: string}, {name: pinned, kind: bool}]
`))
	require.NoError(t, err)
	assert.Equal(t, 4, s.Current)
	assert.Equal(t, []string{"notes"}, s.Tables)
}

func TestParse_RenameLedgerIsSortedNewestFirst(t *testing.T) {
	s, err := Parse([]byte(`
entity: items
versions:
  - version: 1
    fields: [{name: a, kind: int}]
  - version: 3
    fields: [{name: b, kind: int}]
  - version: 7
    fields: [{name: c, kind: int}]
renames:
  c:
    - {from: a, to: b, version: 3}
    - {from: b, to: c, version: 7}
`))
	require.NoError(t, err)
	assert.Equal(t, 7, s.Renames["c"][0].Version)
	assert.Equal(t, 3, s.Renames["c"][1].Version)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want error
	}{
		{
			name: "unknown kind",
			yaml: "entity: x\nversions:\n  - version: 1\n    fields: [{name: a, kind: decimal}]\n",
			want: types.ErrUnknownKind,
		},
		{
			name: "bad default",
			yaml: "entity: x\nversions:\n  - version: 1\n    fields: [{name: a, kind: int, default: hello}]\n",
			want: types.ErrTypeMismatch,
		},
		{
			name: "duplicate version",
			yaml: "entity: x\nversions:\n  - version: 1\n    fields: [{name: a, kind: int}]\n  - version: 1\n    fields: [{name: a, kind: int}]\n",
			want: types.ErrInvalidShape,
		},
		{
			name: "hook without shape",
			yaml: "entity: x\nversions:\n  - version: 1\n    fields: [{name: a, kind: int}]\nhooks:\n  2:\n    fields:\n      a: {strategy: copy}\n",
			want: types.ErrShapeMissing,
		},
		{
			name: "hook on unknown field",
			yaml: "entity: x\nversions:\n  - version: 1\n    fields: [{name: a, kind: int}]\nhooks:\n  1:\n    fields:\n      b: {strategy: copy}\n",
			want: types.ErrInvalidShape,
		},
		{
			name: "unknown strategy",
			yaml: "entity: x\nversions:\n  - version: 1\n    fields: [{name: a, kind: int}]\nhooks:\n  1:\n    fields:\n      a: {strategy: magic}\n",
			want: types.ErrInvalidShape,
		},
		{
			name: "fallback without value",
			yaml: "entity: x\nversions:\n  - version: 1\n    fields: [{name: a, kind: int}]\nhooks:\n  1:\n    fields:\n      a: {strategy: fallback}\n",
			want: types.ErrTypeMismatch,
		},
		{
			name: "rename without from",
			yaml: "entity: x\nversions:\n  - version: 1\n    fields: [{name: b, kind: int}]\nrenames:\n  b:\n    - {to: b, version: 2}\n",
			want: types.ErrInvalidLedger,
		},
		{
			name: "current without shape",
			yaml: "entity: x\ncurrent: 9\nversions:\n  - version: 1\n    fields: [{name: a, kind: int}]\n",
			want: types.ErrShapeMissing,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.yaml")
	require.NoError(t, os.WriteFile(path, []byte(tasksYAML), 0644))

	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "tasks", s.Entity)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
