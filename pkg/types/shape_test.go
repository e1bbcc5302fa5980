package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidIdentifier(t *testing.T) {
	for _, name := range []string{"tasks", "_hidden", "a1", "Weekday"} {
		assert.True(t, ValidIdentifier(name), name)
	}
	for _, name := range []string{"", "1abc", "a-b", "drop table", `a"b`} {
		assert.False(t, ValidIdentifier(name), name)
	}
}

func TestField_DefaultValue(t *testing.T) {
	tests := []struct {
		name  string
		field Field
		want  Value
	}{
		{"declared default", Field{Kind: KindInt, Default: Int(4)}, Int(4)},
		{"nullable", Field{Kind: KindString, Nullable: true}, Null(KindString)},
		{"nullable list", Field{Kind: KindList, Elem: KindInt, Nullable: true}, NullList(KindInt)},
		{"zero of kind", Field{Kind: KindBool}, Bool(false)},
		{"empty list", Field{Kind: KindList, Elem: KindString}, List(KindString)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.field.DefaultValue()
			assert.True(t, tt.want.Equal(got), "got %#v, want %#v", got, tt.want)
		})
	}
}

func TestField_Accepts(t *testing.T) {
	f := Field{Name: "n", Kind: KindInt}
	assert.True(t, f.Accepts(Int(1)))
	assert.False(t, f.Accepts(Long(1)))
	assert.False(t, f.Accepts(Null(KindInt)))

	f.Nullable = true
	assert.True(t, f.Accepts(Null(KindInt)))

	l := Field{Name: "l", Kind: KindList, Elem: KindInt}
	assert.True(t, l.Accepts(List(KindInt)))
	assert.False(t, l.Accepts(List(KindLong)))
}

func TestShape_Validate(t *testing.T) {
	tests := []struct {
		name    string
		fields  []Field
		wantErr error
	}{
		{"valid", []Field{{Name: "id", Kind: KindLong}, {Name: "tags", Kind: KindList, Elem: KindString}}, nil},
		{"no fields", nil, ErrInvalidShape},
		{"bad name", []Field{{Name: "1abc", Kind: KindInt}}, ErrInvalidShape},
		{"duplicate", []Field{{Name: "a", Kind: KindInt}, {Name: "a", Kind: KindLong}}, ErrInvalidShape},
		{"unknown kind", []Field{{Name: "a", Kind: Kind(99)}}, ErrUnknownKind},
		{"list of lists", []Field{{Name: "a", Kind: KindList, Elem: KindList}}, ErrInvalidShape},
		{"default of wrong kind", []Field{{Name: "a", Kind: KindInt, Default: String("x")}}, ErrInvalidShape},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Shape{Name: "tasks", Version: 1, Fields: tt.fields}.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestDecodeRecord(t *testing.T) {
	shape := Shape{Name: "tasks", Version: 1, Fields: []Field{
		{Name: "id", Kind: KindLong},
		{Name: "title", Kind: KindString},
		{Name: "done", Kind: KindBool},
	}}

	rec, err := DecodeRecord(shape, map[string]any{"id": float64(3), "title": "x", "extra": 1})
	require.NoError(t, err)
	assert.Len(t, rec, 2)
	_, ok := rec["done"]
	assert.False(t, ok, "missing keys stay absent")
	assert.Equal(t, map[string]any{"id": int64(3), "title": "x"}, rec.Encode(shape))

	_, err = DecodeRecord(shape, map[string]any{"done": "yes"})
	assert.ErrorIs(t, err, ErrTypeMismatch)
}

func TestRecord_Clone(t *testing.T) {
	r := Record{"a": Int(1)}
	c := r.Clone()
	c["a"] = Int(2)
	assert.Equal(t, int32(1), r["a"].Int())
}
