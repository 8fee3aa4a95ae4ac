package migrate

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/cockroachdb/errors"
)

var versionPattern = regexp.MustCompile(`^[vV](\d+)\.(\d+)$`)

// Version identifies a unit of schema change. Ordering is numeric on
// (Major, Minor), never lexicographic on the folder name.
type Version struct {
	Major int
	Minor int
}

// ParseVersion parses a folder name such as "v1.00" or "V12.5".
func ParseVersion(s string) (Version, error) {
	m := versionPattern.FindStringSubmatch(s)
	if m == nil {
		return Version{}, errors.Newf("invalid version identifier %q", s)
	}
	major, err := strconv.Atoi(m[1])
	if err != nil {
		return Version{}, errors.Wrapf(err, "invalid major in %q", s)
	}
	minor, err := strconv.Atoi(m[2])
	if err != nil {
		return Version{}, errors.Wrapf(err, "invalid minor in %q", s)
	}
	return Version{Major: major, Minor: minor}, nil
}

// MustParseVersion is ParseVersion for literals known to be valid.
func MustParseVersion(s string) Version {
	v, err := ParseVersion(s)
	if err != nil {
		panic(err)
	}
	return v
}

// IsVersion reports whether s is a well-formed version identifier.
func IsVersion(s string) bool {
	_, err := ParseVersion(s)
	return err == nil
}

// String returns the canonical folder name, e.g. v1.00.
func (v Version) String() string {
	return fmt.Sprintf("v%d.%02d", v.Major, v.Minor)
}

// Compare returns -1, 0 or +1.
func (v Version) Compare(o Version) int {
	switch {
	case v.Major < o.Major:
		return -1
	case v.Major > o.Major:
		return 1
	case v.Minor < o.Minor:
		return -1
	case v.Minor > o.Minor:
		return 1
	}
	return 0
}

// Less reports whether v orders before o.
func (v Version) Less(o Version) bool {
	return v.Compare(o) < 0
}

// NextMajor increments the major and resets the minor.
func (v Version) NextMajor() Version {
	return Version{Major: v.Major + 1}
}

// NextMinor bumps the minor under the same major.
func (v Version) NextMinor() Version {
	return Version{Major: v.Major, Minor: v.Minor + 1}
}

// MaxVersion returns the greatest of vs and false when vs is empty.
func MaxVersion(vs []Version) (Version, bool) {
	if len(vs) == 0 {
		return Version{}, false
	}
	max := vs[0]
	for _, v := range vs[1:] {
		if max.Less(v) {
			max = v
		}
	}
	return max, true
}
