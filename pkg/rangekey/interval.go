package rangekey

import (
	"errors"
	"fmt"

	"github.com/sukryu/depdex/pkg/npmrange"
)

// ErrEncodingInvariant is returned for comparator groups the encoder cannot
// represent: more than two comparators, two bounds on the same side, or an
// operator that is not valid in its position.
var ErrEncodingInvariant = errors.New("encoding invariant violated")

// Sentinels standing in for an absent query bound. They are used for
// ordering only and never persisted.
const (
	MinBound = "\x00"
	MaxBound = "\xff"
)

var zeroVersion = npmrange.Version{}

// Interval is one OR-ed alternative of an IntervalSet: half-open
// [Lower, Upper) with each side holding 0 or 1 packed bounds.
// An empty list means unbounded on that side.
type Interval struct {
	Lower []string `json:"lower"`
	Upper []string `json:"upper"`
}

// IntervalSet is the encoded form of a range, one Interval per OR group.
type IntervalSet []Interval

// Normalize reduces an AND-ed comparator group to an inclusive lower and an
// exclusive upper bound. A nil bound is unbounded. The input is never modified.
func Normalize(group []npmrange.Comparator) (lower, upper *npmrange.Version, err error) {
	switch len(group) {
	case 1:
		return normalizeSingle(group[0])
	case 2:
		lc, uc := group[0], group[1]
		if uc.Op.IsLower() && lc.Op.IsUpper() {
			lc, uc = uc, lc
		}
		l, err := normalizeLower(lc)
		if err != nil {
			return nil, nil, err
		}
		u, err := normalizeUpper(uc)
		if err != nil {
			return nil, nil, err
		}
		return &l, &u, nil
	default:
		return nil, nil, fmt.Errorf("%w: %d comparators in one group", ErrEncodingInvariant, len(group))
	}
}

func normalizeSingle(c npmrange.Comparator) (*npmrange.Version, *npmrange.Version, error) {
	v := c.Version
	switch c.Op {
	case npmrange.Any:
		return nil, nil, nil
	case npmrange.Equal:
		next := v.NextPatch()
		return &v, &next, nil
	case npmrange.Less:
		zero := zeroVersion
		return &zero, &v, nil
	case npmrange.LessEqual:
		zero, next := zeroVersion, v.NextPatch()
		return &zero, &next, nil
	case npmrange.Greater:
		next := v.NextPatch()
		return &next, nil, nil
	case npmrange.GreaterEqual:
		return &v, nil, nil
	default:
		return nil, nil, fmt.Errorf("%w: unexpected operator %v", ErrEncodingInvariant, c.Op)
	}
}

func normalizeLower(c npmrange.Comparator) (npmrange.Version, error) {
	switch c.Op {
	case npmrange.GreaterEqual:
		return c.Version, nil
	case npmrange.Greater:
		return c.Version.NextPatch(), nil
	default:
		return npmrange.Version{}, fmt.Errorf("%w: unexpected lower operator %q", ErrEncodingInvariant, c.Op.String())
	}
}

func normalizeUpper(c npmrange.Comparator) (npmrange.Version, error) {
	switch c.Op {
	case npmrange.Less:
		return c.Version, nil
	case npmrange.LessEqual:
		return c.Version.NextPatch(), nil
	default:
		return npmrange.Version{}, fmt.Errorf("%w: unexpected upper operator %q", ErrEncodingInvariant, c.Op.String())
	}
}

// Encode packs every OR group of r into an Interval.
func Encode(r *npmrange.Range) (IntervalSet, error) {
	set := make(IntervalSet, 0, len(r.Set))
	for _, group := range r.Set {
		lower, upper, err := Normalize(group)
		if err != nil {
			return nil, err
		}
		iv := Interval{Lower: []string{}, Upper: []string{}}
		if lower != nil {
			iv.Lower = append(iv.Lower, PackVersion(*lower))
		}
		if upper != nil {
			iv.Upper = append(iv.Upper, PackVersion(*upper))
		}
		set = append(set, iv)
	}
	return set, nil
}

// QueryBounds normalizes a single query group, substituting MinBound and
// MaxBound for absent sides.
func QueryBounds(group []npmrange.Comparator) (lower, upper string, err error) {
	l, u, err := Normalize(group)
	if err != nil {
		return "", "", err
	}
	lower, upper = MinBound, MaxBound
	if l != nil {
		lower = PackVersion(*l)
	}
	if u != nil {
		upper = PackVersion(*u)
	}
	return lower, upper, nil
}

// Overlaps reports whether the interval intersects the query [lower, upper).
func (iv Interval) Overlaps(lower, upper string) bool {
	if len(iv.Lower) == 0 && upper <= MinBound {
		return false
	}
	if len(iv.Upper) == 0 && lower >= MaxBound {
		return false
	}
	for _, l := range iv.Lower {
		if l >= upper {
			return false
		}
	}
	for _, u := range iv.Upper {
		if u <= lower {
			return false
		}
	}
	return true
}

// Overlaps reports whether any interval of the set intersects the query.
func (s IntervalSet) Overlaps(lower, upper string) bool {
	for _, iv := range s {
		if iv.Overlaps(lower, upper) {
			return true
		}
	}
	return false
}
