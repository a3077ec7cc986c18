package npmrange

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ErrMalformedRange is returned when a range or version string does not parse.
var ErrMalformedRange = errors.New("malformed range")

// Operator is a comparator operator.
type Operator int

const (
	// Any matches every version ("*", "x", "").
	Any Operator = iota
	Equal
	Less
	LessEqual
	Greater
	GreaterEqual
)

func (o Operator) String() string {
	switch o {
	case Any:
		return "*"
	case Equal:
		return ""
	case Less:
		return "<"
	case LessEqual:
		return "<="
	case Greater:
		return ">"
	case GreaterEqual:
		return ">="
	default:
		return fmt.Sprintf("Operator(%d)", int(o))
	}
}

// IsLower reports whether o bounds versions from below.
func (o Operator) IsLower() bool { return o == Greater || o == GreaterEqual }

// IsUpper reports whether o bounds versions from above.
func (o Operator) IsUpper() bool { return o == Less || o == LessEqual }

// Comparator is a single operator/version constraint.
type Comparator struct {
	Op      Operator
	Version Version
}

func (c Comparator) String() string {
	if c.Op == Any {
		return "*"
	}
	return c.Op.String() + c.Version.String()
}

// Range is a parsed range: an OR of AND-ed comparator groups.
type Range struct {
	Raw string
	Set [][]Comparator
}

// IsWildcard reports whether the range matches every version.
func (r *Range) IsWildcard() bool {
	return len(r.Set) == 1 && isAnyGroup(r.Set[0])
}

// String renders the compiled groups, e.g. ">=1.2.3 <2.0.0||>=3.0.0".
func (r *Range) String() string {
	groups := make([]string, 0, len(r.Set))
	for _, g := range r.Set {
		parts := make([]string, 0, len(g))
		for _, c := range g {
			parts = append(parts, c.String())
		}
		groups = append(groups, strings.Join(parts, " "))
	}
	return strings.Join(groups, "||")
}

func isAnyGroup(g []Comparator) bool {
	return len(g) == 1 && g[0].Op == Any
}

var (
	orSplit   = regexp.MustCompile(`\s*\|\|\s*`)
	hyphenRe  = regexp.MustCompile(`^(\S+)\s+-\s+(\S+)$`)
	partialRe = regexp.MustCompile(`^[v=]*(\d+|[xX*])(?:\.(\d+|[xX*])(?:\.(\d+|[xX*])(?:-[0-9A-Za-z.-]+)?(?:\+[0-9A-Za-z.-]+)?)?)?$`)
	opRe      = regexp.MustCompile(`^(<=|>=|<|>|=)?(.*)$`)
)

// operator tokens that may be separated from their version by whitespace
var looseOperators = map[string]bool{
	"<": true, "<=": true, ">": true, ">=": true, "=": true, "~": true, "~>": true, "^": true,
}

// Parse compiles an npm range string.
func Parse(raw string) (*Range, error) {
	r := &Range{Raw: raw}
	for _, part := range orSplit.Split(strings.TrimSpace(raw), -1) {
		group, err := parseGroup(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("%w %q: %v", ErrMalformedRange, raw, err)
		}
		r.Set = append(r.Set, group)
	}
	// A wildcard alternative swallows every other one.
	if len(r.Set) > 1 {
		for _, g := range r.Set {
			if isAnyGroup(g) {
				r.Set = [][]Comparator{g}
				break
			}
		}
	}
	return r, nil
}

func parseGroup(s string) ([]Comparator, error) {
	if s == "" {
		return anyGroup(), nil
	}
	if m := hyphenRe.FindStringSubmatch(s); m != nil {
		return hyphen(m[1], m[2])
	}

	var out []Comparator
	seen := make(map[string]bool)
	for _, tok := range tokenize(s) {
		cs, err := expand(tok)
		if err != nil {
			return nil, err
		}
		for _, c := range cs {
			if key := c.String(); !seen[key] {
				seen[key] = true
				out = append(out, c)
			}
		}
	}
	if len(out) > 1 {
		filtered := out[:0]
		for _, c := range out {
			if c.Op != Any {
				filtered = append(filtered, c)
			}
		}
		out = filtered
	}
	return out, nil
}

// tokenize splits on whitespace, re-attaching a bare operator to its version.
func tokenize(s string) []string {
	fields := strings.Fields(s)
	tokens := make([]string, 0, len(fields))
	for i := 0; i < len(fields); i++ {
		f := fields[i]
		if looseOperators[f] && i+1 < len(fields) {
			f += fields[i+1]
			i++
		}
		tokens = append(tokens, f)
	}
	return tokens
}

type partial struct {
	major, minor, patch    uint64
	xMajor, xMinor, xPatch bool
}

func (p partial) anyX() bool { return p.xMajor || p.xMinor || p.xPatch }

func (p partial) version() Version {
	return Version{Major: p.major, Minor: p.minor, Patch: p.patch}
}

func parsePartial(s string) (partial, error) {
	m := partialRe.FindStringSubmatch(s)
	if m == nil {
		return partial{}, fmt.Errorf("invalid version %q", s)
	}
	var p partial
	fields := []struct {
		raw string
		n   *uint64
		x   *bool
	}{
		{m[1], &p.major, &p.xMajor},
		{m[2], &p.minor, &p.xMinor},
		{m[3], &p.patch, &p.xPatch},
	}
	for _, f := range fields {
		switch f.raw {
		case "", "x", "X", "*":
			*f.x = true
		default:
			n, err := strconv.ParseUint(f.raw, 10, 64)
			if err != nil {
				return partial{}, fmt.Errorf("invalid version %q", s)
			}
			*f.n = n
		}
	}
	// "1.x.3" behaves like "1.x".
	if p.xMajor {
		p.xMinor = true
	}
	if p.xMinor {
		p.xPatch = true
	}
	if p.xMinor {
		p.minor = 0
	}
	if p.xPatch {
		p.patch = 0
	}
	return p, nil
}

func anyGroup() []Comparator { return []Comparator{{Op: Any}} }

func cmp(op Operator, major, minor, patch uint64) Comparator {
	return Comparator{Op: op, Version: Version{Major: major, Minor: minor, Patch: patch}}
}

func expand(tok string) ([]Comparator, error) {
	switch {
	case strings.HasPrefix(tok, "~>"):
		return tilde(tok[2:])
	case strings.HasPrefix(tok, "~"):
		return tilde(tok[1:])
	case strings.HasPrefix(tok, "^"):
		return caret(tok[1:])
	}
	m := opRe.FindStringSubmatch(tok)
	return xrange(m[1], m[2])
}

// tilde: ~1.2.3 := >=1.2.3 <1.3.0, ~1.2 := >=1.2.0 <1.3.0, ~1 := >=1.0.0 <2.0.0
func tilde(s string) ([]Comparator, error) {
	p, err := parsePartial(s)
	if err != nil {
		return nil, err
	}
	switch {
	case p.xMajor:
		return anyGroup(), nil
	case p.xMinor:
		return []Comparator{cmp(GreaterEqual, p.major, 0, 0), cmp(Less, p.major+1, 0, 0)}, nil
	default:
		return []Comparator{cmp(GreaterEqual, p.major, p.minor, p.patch), cmp(Less, p.major, p.minor+1, 0)}, nil
	}
}

// caret allows changes that do not modify the left-most non-zero element.
func caret(s string) ([]Comparator, error) {
	p, err := parsePartial(s)
	if err != nil {
		return nil, err
	}
	switch {
	case p.xMajor:
		return anyGroup(), nil
	case p.xMinor:
		return []Comparator{cmp(GreaterEqual, p.major, 0, 0), cmp(Less, p.major+1, 0, 0)}, nil
	case p.xPatch:
		if p.major == 0 {
			return []Comparator{cmp(GreaterEqual, 0, p.minor, 0), cmp(Less, 0, p.minor+1, 0)}, nil
		}
		return []Comparator{cmp(GreaterEqual, p.major, p.minor, 0), cmp(Less, p.major+1, 0, 0)}, nil
	case p.major == 0 && p.minor == 0:
		return []Comparator{cmp(GreaterEqual, 0, 0, p.patch), cmp(Less, 0, 0, p.patch+1)}, nil
	case p.major == 0:
		return []Comparator{cmp(GreaterEqual, 0, p.minor, p.patch), cmp(Less, 0, p.minor+1, 0)}, nil
	default:
		return []Comparator{cmp(GreaterEqual, p.major, p.minor, p.patch), cmp(Less, p.major+1, 0, 0)}, nil
	}
}

func xrange(op, s string) ([]Comparator, error) {
	p, err := parsePartial(s)
	if err != nil {
		return nil, err
	}
	if !p.anyX() {
		return []Comparator{{Op: parseOperator(op), Version: p.version()}}, nil
	}
	if op == "=" {
		op = ""
	}
	if p.xMajor {
		if op == ">" || op == "<" {
			// Nothing is allowed.
			return []Comparator{cmp(Less, 0, 0, 0)}, nil
		}
		return anyGroup(), nil
	}

	major, minor := p.major, p.minor
	switch op {
	case "":
		if p.xMinor {
			return []Comparator{cmp(GreaterEqual, major, 0, 0), cmp(Less, major+1, 0, 0)}, nil
		}
		return []Comparator{cmp(GreaterEqual, major, minor, 0), cmp(Less, major, minor+1, 0)}, nil
	case ">":
		// >1 := >=2.0.0, >1.2 := >=1.3.0
		if p.xMinor {
			return []Comparator{cmp(GreaterEqual, major+1, 0, 0)}, nil
		}
		return []Comparator{cmp(GreaterEqual, major, minor+1, 0)}, nil
	case "<=":
		// <=0.7.x := <0.8.0, <=1 := <2.0.0
		if p.xMinor {
			return []Comparator{cmp(Less, major+1, 0, 0)}, nil
		}
		return []Comparator{cmp(Less, major, minor+1, 0)}, nil
	default:
		return []Comparator{cmp(parseOperator(op), major, minor, 0)}, nil
	}
}

// hyphen: 1.2 - 2.3.4 := >=1.2.0 <=2.3.4, 1.2.3 - 2.3 := >=1.2.3 <2.4.0
func hyphen(from, to string) ([]Comparator, error) {
	f, err := parsePartial(from)
	if err != nil {
		return nil, err
	}
	t, err := parsePartial(to)
	if err != nil {
		return nil, err
	}
	var out []Comparator
	if !f.xMajor {
		out = append(out, cmp(GreaterEqual, f.major, f.minor, f.patch))
	}
	switch {
	case t.xMajor:
	case t.xMinor:
		out = append(out, cmp(Less, t.major+1, 0, 0))
	case t.xPatch:
		out = append(out, cmp(Less, t.major, t.minor+1, 0))
	default:
		out = append(out, cmp(LessEqual, t.major, t.minor, t.patch))
	}
	if len(out) == 0 {
		return anyGroup(), nil
	}
	return out, nil
}

func parseOperator(op string) Operator {
	switch op {
	case "<":
		return Less
	case "<=":
		return LessEqual
	case ">":
		return Greater
	case ">=":
		return GreaterEqual
	default:
		return Equal
	}
}
