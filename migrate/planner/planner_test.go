package planner

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/satishbabariya/schemaver/migrate"
)

func versions(names ...string) []migrate.Version {
	out := make([]migrate.Version, 0, len(names))
	for _, n := range names {
		out = append(out, migrate.MustParseVersion(n))
	}
	return out
}

func ptr(name string) *migrate.Version {
	v := migrate.MustParseVersion(name)
	return &v
}

func TestPending(t *testing.T) {
	local := versions("v0.00", "v1.10", "v1.02", "v10.00", "v2.00", "v1.01")

	tests := []struct {
		name    string
		applied *migrate.Version
		target  string
		want    []migrate.Version
	}{
		{
			name:   "nothing applied",
			target: "v10.00",
			want:   versions("v0.00", "v1.01", "v1.02", "v1.10", "v2.00", "v10.00"),
		},
		{
			name:    "partially applied",
			applied: ptr("v1.02"),
			target:  "v10.00",
			want:    versions("v1.10", "v2.00", "v10.00"),
		},
		{
			name:    "target below latest local",
			applied: ptr("v1.01"),
			target:  "v2.00",
			want:    versions("v1.02", "v1.10", "v2.00"),
		},
		{
			name:    "up to date",
			applied: ptr("v10.00"),
			target:  "v10.00",
			want:    nil,
		},
		{
			name:    "target behind applied",
			applied: ptr("v2.00"),
			target:  "v1.10",
			want:    nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Pending(local, tt.applied, migrate.MustParseVersion(tt.target))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPlanEmpty(t *testing.T) {
	p := New(versions("v1.00"), ptr("v1.00"), migrate.MustParseVersion("v1.00"))
	assert.True(t, p.Empty())

	p = New(versions("v1.00", "v1.01"), ptr("v1.00"), migrate.MustParseVersion("v1.01"))
	assert.False(t, p.Empty())
	assert.Equal(t, versions("v1.01"), p.Pending)
}
