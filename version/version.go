// Package version checks a host version against a guest's declared
// requirement range before any contract call runs.
//
// A requirement is one or more comparator sets joined by "||". A set is
// a list of comparators separated by commas or spaces, all of which must
// hold. Supported comparators are "^", "~", "=", ">", ">=", "<", "<=" and
// a bare version, which means "=".
//
//	^0.1.0        >=0.1.0 <0.2.0
//	~1.2.3        >=1.2.3 <1.3.0
//	>=1.0, <2     >=1.0.0 <2.0.0
//	^1 || ^2      either major
package version

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/mod/semver"
)

// ErrInvalid is wrapped when a version or requirement cannot be parsed.
var ErrInvalid = errors.New("invalid version")

// MismatchError reports a host version outside the guest's requirement.
type MismatchError struct {
	Host        string
	Requirement string
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("host version %s does not satisfy guest requirement %s", e.Host, e.Requirement)
}

// Check returns nil when host satisfies requirement, a *MismatchError when
// it does not, and an error wrapping ErrInvalid when either is malformed.
func Check(host, requirement string) error {
	r, err := ParseRange(requirement)
	if err != nil {
		return err
	}
	v, err := canonical(host)
	if err != nil {
		return err
	}
	if !r.match(v) {
		return &MismatchError{Host: host, Requirement: requirement}
	}
	return nil
}

// Range is a parsed requirement.
type Range struct {
	raw  string
	sets [][]comparator
}

type comparator struct {
	op string
	v  string // canonical, with "v" prefix
}

// ParseRange parses a requirement expression.
func ParseRange(s string) (*Range, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("%w: empty requirement", ErrInvalid)
	}

	r := &Range{raw: s}
	for _, alt := range strings.Split(s, "||") {
		fields := strings.FieldsFunc(alt, func(c rune) bool { return c == ',' || c == ' ' || c == '\t' })
		fields = joinOperators(fields)
		if len(fields) == 0 {
			return nil, fmt.Errorf("%w: empty alternative in %q", ErrInvalid, s)
		}

		var set []comparator
		for _, f := range fields {
			cs, err := parseComparator(f)
			if err != nil {
				return nil, fmt.Errorf("%w in %q", err, s)
			}
			set = append(set, cs...)
		}
		r.sets = append(r.sets, set)
	}
	return r, nil
}

// Match reports whether v satisfies the range. Malformed versions never match.
func (r *Range) Match(v string) bool {
	c, err := canonical(v)
	if err != nil {
		return false
	}
	return r.match(c)
}

func (r *Range) String() string { return r.raw }

func (r *Range) match(v string) bool {
	for _, set := range r.sets {
		ok := true
		for _, c := range set {
			if !c.match(v) {
				ok = false
				break
			}
		}
		if ok {
			return true
		}
	}
	return false
}

func (c comparator) match(v string) bool {
	cmp := semver.Compare(v, c.v)
	switch c.op {
	case "=":
		return cmp == 0
	case ">":
		return cmp > 0
	case ">=":
		return cmp >= 0
	case "<":
		return cmp < 0
	case "<=":
		return cmp <= 0
	}
	return false
}

var operators = []string{">=", "<=", "^", "~", "=", ">", "<"}

// joinOperators merges a lone operator with the version that follows it,
// so ">= 1.0" parses like ">=1.0".
func joinOperators(fields []string) []string {
	out := fields[:0:0]
	for i := 0; i < len(fields); i++ {
		f := fields[i]
		if isOperator(f) && i+1 < len(fields) {
			f += fields[i+1]
			i++
		}
		out = append(out, f)
	}
	return out
}

func isOperator(s string) bool {
	for _, op := range operators {
		if s == op {
			return true
		}
	}
	return false
}

func parseComparator(s string) ([]comparator, error) {
	op := "="
	for _, candidate := range operators {
		if strings.HasPrefix(s, candidate) {
			op = candidate
			s = s[len(candidate):]
			break
		}
	}

	v, err := canonical(s)
	if err != nil {
		return nil, err
	}

	switch op {
	case "^":
		return []comparator{{">=", v}, {"<", caretUpper(v)}}, nil
	case "~":
		return []comparator{{">=", v}, {"<", tildeUpper(v)}}, nil
	}
	return []comparator{{op, v}}, nil
}

// caretUpper returns the exclusive upper bound for ^v: the next version
// that changes the left-most non-zero component.
func caretUpper(v string) string {
	major, minor, patch := parts(v)
	switch {
	case major > 0:
		return fmt.Sprintf("v%d.0.0", major+1)
	case minor > 0:
		return fmt.Sprintf("v0.%d.0", minor+1)
	default:
		return fmt.Sprintf("v0.0.%d", patch+1)
	}
}

func tildeUpper(v string) string {
	major, minor, _ := parts(v)
	return fmt.Sprintf("v%d.%d.0", major, minor+1)
}

func parts(v string) (major, minor, patch int) {
	core := strings.TrimPrefix(semver.Canonical(v), "v")
	if i := strings.IndexAny(core, "-+"); i >= 0 {
		core = core[:i]
	}
	fmt.Sscanf(core, "%d.%d.%d", &major, &minor, &patch)
	return major, minor, patch
}

// canonical normalizes "1", "1.2", "v1.2.3" and "1.2.3-rc.1" to the
// "vMAJOR.MINOR.PATCH" form semver compares.
func canonical(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("%w: empty version", ErrInvalid)
	}
	if !strings.HasPrefix(s, "v") {
		s = "v" + s
	}
	if !semver.IsValid(s) {
		return "", fmt.Errorf("%w: %q", ErrInvalid, strings.TrimPrefix(s, "v"))
	}
	return semver.Canonical(s), nil
}
