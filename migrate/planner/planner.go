// Package planner computes which local versions a run must apply.
package planner

import (
	"sort"

	"github.com/satishbabariya/schemaver/migrate"
)

// Plan is the ordered list of versions pending for a run.
type Plan struct {
	Applied *migrate.Version
	Target  migrate.Version
	Pending []migrate.Version
}

// Empty reports whether the target is already reached.
func (p Plan) Empty() bool {
	return len(p.Pending) == 0
}

// Pending returns the local versions greater than applied (all of them when
// applied is nil) and not greater than target, in ascending order.
func Pending(local []migrate.Version, applied *migrate.Version, target migrate.Version) []migrate.Version {
	var pending []migrate.Version
	for _, v := range local {
		if applied != nil && !applied.Less(v) {
			continue
		}
		if target.Less(v) {
			continue
		}
		pending = append(pending, v)
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].Less(pending[j]) })
	return pending
}

// New builds a Plan.
func New(local []migrate.Version, applied *migrate.Version, target migrate.Version) Plan {
	return Plan{
		Applied: applied,
		Target:  target,
		Pending: Pending(local, applied, target),
	}
}
