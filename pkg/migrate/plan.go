package migrate

import (
	"fmt"
	"math"

	"github.com/mesh-intelligence/strata/pkg/types"
)

// Steps returns the milestone versions a record passes through from
// oldVersion to newVersion. The result is strictly increasing and ends in
// newVersion; it is nil when oldVersion >= newVersion.
//
// The planner lands on round versions: first the next multiple of ten,
// then every power of ten from 100 up that lies in the gap, then the
// multiple of ten just below the target, then the target itself.
func Steps(oldVersion, newVersion int) []int {
	if oldVersion >= newVersion {
		return nil
	}
	var steps []int
	current := oldVersion

	nextTen := current
	if rem := current % 10; rem != 0 {
		nextTen = current - rem + 10
	}
	if nextTen > current && nextTen < newVersion {
		steps = append(steps, nextTen)
		current = nextTen
	}

	for tier := 100; tier < newVersion; tier *= 10 {
		if tier > current {
			steps = append(steps, tier)
			current = tier
		}
		if tier > math.MaxInt/10 {
			break
		}
	}

	nearBelow := newVersion - newVersion%10
	if nearBelow > current && nearBelow < newVersion {
		steps = append(steps, nearBelow)
	}

	return append(steps, newVersion)
}

// NewPlan computes the plan from oldVersion to newVersion.
// Returns ErrInvalidVersion for negative versions.
func NewPlan(oldVersion, newVersion int) (types.Plan, error) {
	if oldVersion < 0 || newVersion < 0 {
		return types.Plan{}, fmt.Errorf("plan %d -> %d: %w", oldVersion, newVersion, types.ErrInvalidVersion)
	}
	return types.Plan{
		From:  oldVersion,
		To:    newVersion,
		Steps: Steps(oldVersion, newVersion),
	}, nil
}
