package migrate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/strata/pkg/types"
)

func TestSteps(t *testing.T) {
	tests := []struct {
		from, to int
		want     []int
	}{
		{1, 1, nil},
		{5, 3, nil},
		{2, 7, []int{7}},
		{13, 18, []int{18}},
		{10, 18, []int{18}},
		{12, 112, []int{20, 100, 110, 112}},
		{97, 1234, []int{100, 1000, 1230, 1234}},
		{1100, 1234, []int{1230, 1234}},
		{1, 10500, []int{10, 100, 1000, 10000, 10500}},
		{999, 1001, []int{1000, 1001}},
		{95, 55555, []int{100, 1000, 10000, 55550, 55555}},
		{100, 500, []int{500}},
		{83, 90, []int{90}},
		{5, 100001, []int{10, 100, 1000, 10000, 100000, 100001}},
		{999, 10000, []int{1000, 10000}},
		{998, 999, []int{999}},
		{100, 1000, []int{1000}},
		{0, 3, []int{3}},
	}

	for _, tt := range tests {
		got := Steps(tt.from, tt.to)
		assert.Equal(t, tt.want, got, "Steps(%d, %d)", tt.from, tt.to)
	}
}

func TestSteps_Properties(t *testing.T) {
	versions := []int{0, 1, 2, 9, 10, 11, 55, 99, 100, 101, 250, 999, 1000, 1001, 4321, 10000, 99999, 123456}
	for _, from := range versions {
		for _, to := range versions {
			steps := Steps(from, to)
			if from >= to {
				assert.Empty(t, steps, "Steps(%d, %d)", from, to)
				continue
			}
			require.NotEmpty(t, steps, "Steps(%d, %d)", from, to)
			assert.Equal(t, to, steps[len(steps)-1], "Steps(%d, %d) must end at the target", from, to)
			prev := from
			for _, s := range steps {
				assert.Greater(t, s, prev, "Steps(%d, %d) = %v must increase", from, to, steps)
				prev = s
			}
		}
	}
}

func TestNewPlan(t *testing.T) {
	plan, err := NewPlan(12, 112)
	require.NoError(t, err)
	assert.Equal(t, 12, plan.From)
	assert.Equal(t, 112, plan.To)
	assert.Equal(t, []int{20, 100, 110, 112}, plan.Steps)
	assert.Equal(t, "12 -> 20 -> 100 -> 110 -> 112", plan.String())
	assert.False(t, plan.Empty())

	plan, err = NewPlan(7, 7)
	require.NoError(t, err)
	assert.True(t, plan.Empty())

	_, err = NewPlan(-1, 4)
	assert.ErrorIs(t, err, types.ErrInvalidVersion)
}
