package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/strata/pkg/types"
)

var taskShape = types.Shape{
	Name:    "tasks",
	Version: 1,
	Fields: []types.Field{
		{Name: "id", Kind: types.KindLong, Unique: true},
		{Name: "title", Kind: types.KindString},
		{Name: "note", Kind: types.KindString, Nullable: true},
	},
}

func task(id int64, title string) types.Record {
	return types.Record{"id": types.Long(id), "title": types.String(title)}
}

func TestStore_ReadMissingTable(t *testing.T) {
	s := New()
	_, err := s.Read(context.Background(), "tasks", taskShape)
	assert.ErrorIs(t, err, types.ErrTableNotFound)
}

func TestStore_ReplaceAndRead(t *testing.T) {
	ctx := context.Background()
	s := New()

	failures, err := s.Replace(ctx, "tasks", taskShape, []types.Record{task(1, "a"), task(2, "b")})
	require.NoError(t, err)
	assert.Empty(t, failures)

	rows, err := s.Read(ctx, "tasks", taskShape)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, int64(1), rows[0]["id"].Long())
	assert.Equal(t, "b", rows[1]["title"].Str())
	assert.True(t, rows[0]["note"].IsNull(), "missing nullable field is stored as null")
}

func TestStore_ReplaceReportsBadRows(t *testing.T) {
	tests := []struct {
		name string
		rows []types.Record
		bad  []int
	}{
		{
			name: "duplicate unique value",
			rows: []types.Record{task(1, "a"), task(1, "b"), task(2, "c")},
			bad:  []int{1},
		},
		{
			name: "wrong kind",
			rows: []types.Record{task(1, "a"), {"id": types.Long(2), "title": types.Int(7)}},
			bad:  []int{1},
		},
		{
			name: "missing non-nullable field",
			rows: []types.Record{{"id": types.Long(1)}, task(2, "b")},
			bad:  []int{0},
		},
		{
			name: "null into non-nullable field",
			rows: []types.Record{{"id": types.Long(1), "title": types.Null(types.KindString)}},
			bad:  []int{0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			s := New()

			failures, err := s.Replace(ctx, "tasks", taskShape, tt.rows)
			require.NoError(t, err)

			var got []int
			for _, f := range failures {
				got = append(got, f.Row)
			}
			assert.Equal(t, tt.bad, got)

			rows, err := s.Read(ctx, "tasks", taskShape)
			require.NoError(t, err)
			assert.Len(t, rows, len(tt.rows)-len(tt.bad))
		})
	}
}

func TestStore_ReadSkipsColumnsTheTableLacks(t *testing.T) {
	ctx := context.Background()
	s := New()
	_, err := s.Replace(ctx, "tasks", taskShape, []types.Record{task(1, "a")})
	require.NoError(t, err)

	wider := taskShape
	wider.Fields = append(append([]types.Field{}, taskShape.Fields...), types.Field{Name: "done", Kind: types.KindBool})

	rows, err := s.Read(ctx, "tasks", wider)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	_, ok := rows[0]["done"]
	assert.False(t, ok)
}

func TestStore_Registry(t *testing.T) {
	ctx := context.Background()
	s := New()

	v, err := s.Get(ctx, "tasks")
	require.NoError(t, err)
	assert.Equal(t, 0, v)

	require.NoError(t, s.Set(ctx, "tasks", 12))
	v, err = s.Get(ctx, "tasks")
	require.NoError(t, err)
	assert.Equal(t, 12, v)

	assert.ErrorIs(t, s.Set(ctx, "tasks", -1), types.ErrInvalidVersion)
}

func TestStore_Runs(t *testing.T) {
	ctx := context.Background()
	s := New()

	require.NoError(t, s.RecordRun(ctx, types.Report{RunID: "a", Entity: "tasks"}))
	require.NoError(t, s.RecordRun(ctx, types.Report{RunID: "b", Entity: "tasks"}))
	require.NoError(t, s.RecordRun(ctx, types.Report{RunID: "c", Entity: "notes"}))

	runs, err := s.Runs(ctx, "tasks")
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "b", runs[0].RunID)
	assert.Equal(t, "a", runs[1].RunID)
}

func TestStore_Lifecycle(t *testing.T) {
	ctx := context.Background()
	s := New()

	assert.ErrorIs(t, s.Attach(types.Config{Backend: types.BackendMemory}), types.ErrAlreadyAttached)

	require.NoError(t, s.Detach())
	require.NoError(t, s.Detach())
	_, err := s.Get(ctx, "tasks")
	assert.ErrorIs(t, err, types.ErrBackendDetached)
	_, err = s.Replace(ctx, "tasks", taskShape, nil)
	assert.ErrorIs(t, err, types.ErrBackendDetached)

	assert.ErrorIs(t, s.Attach(types.Config{}), types.ErrBackendEmpty)
	require.NoError(t, s.Attach(types.Config{Backend: types.BackendMemory}))
	_, err = s.Get(ctx, "tasks")
	assert.NoError(t, err)
}
