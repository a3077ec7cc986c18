// Package npmrange parses npm-style semver ranges into OR-ed groups of
// AND-ed comparators over release triples. Pre-release and build metadata
// are accepted but ignored.
package npmrange

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/mod/semver"
)

// Version is a release triple.
type Version struct {
	Major uint64
	Minor uint64
	Patch uint64
}

// Compare returns -1, 0 or +1 in natural triple order.
func (v Version) Compare(o Version) int {
	switch {
	case v.Major != o.Major:
		return cmpUint(v.Major, o.Major)
	case v.Minor != o.Minor:
		return cmpUint(v.Minor, o.Minor)
	default:
		return cmpUint(v.Patch, o.Patch)
	}
}

func cmpUint(a, b uint64) int {
	if a < b {
		return -1
	}
	if a > b {
		return 1
	}
	return 0
}

// Less reports whether v sorts before o.
func (v Version) Less(o Version) bool { return v.Compare(o) < 0 }

// NextPatch returns a new version with the patch number incremented.
func (v Version) NextPatch() Version {
	return Version{Major: v.Major, Minor: v.Minor, Patch: v.Patch + 1}
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// canonical renders s in the "v"-prefixed form x/mod/semver expects.
func canonical(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimLeft(s, "=")
	if !strings.HasPrefix(s, "v") {
		s = "v" + s
	}
	return s
}

// ValidVersion reports whether s is a full semver version (major.minor.patch,
// optionally with pre-release and build metadata).
func ValidVersion(s string) bool {
	c := canonical(s)
	if !semver.IsValid(c) {
		return false
	}
	// x/mod/semver accepts "v1" and "v1.2" shorthands; package versions must be complete.
	core := strings.TrimPrefix(c, "v")
	if i := strings.IndexAny(core, "-+"); i >= 0 {
		core = core[:i]
	}
	return strings.Count(core, ".") == 2
}

// ParseVersion parses a full semver version into its release triple.
func ParseVersion(s string) (Version, error) {
	if !ValidVersion(s) {
		return Version{}, fmt.Errorf("%w: invalid version %q", ErrMalformedRange, s)
	}
	core := strings.TrimPrefix(canonical(s), "v")
	if i := strings.IndexAny(core, "-+"); i >= 0 {
		core = core[:i]
	}
	parts := strings.SplitN(core, ".", 3)
	var nums [3]uint64
	for i, p := range parts {
		n, err := strconv.ParseUint(p, 10, 64)
		if err != nil {
			return Version{}, fmt.Errorf("%w: invalid version %q", ErrMalformedRange, s)
		}
		nums[i] = n
	}
	return Version{Major: nums[0], Minor: nums[1], Patch: nums[2]}, nil
}

// CompareVersions compares two full versions with semver precedence,
// pre-release tags included. Invalid versions sort before valid ones.
func CompareVersions(a, b string) int {
	return semver.Compare(canonical(a), canonical(b))
}
