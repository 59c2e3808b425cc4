// Package version implements range-specifier matching for concrete
// package versions.
//
// A range specifier is a comma-separated conjunction of comparison
// clauses, e.g. ">1.0,<=1.1.0". Specifiers are parsed once at document
// load time; parsing is where all rejection happens. Matching a parsed
// specifier against a version is a total function and never fails.
package version

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/mod/semver"
)

// Operators in longest-match-first order so that "<=" is not read as
// "<" followed by "=1...".
var operators = []string{"===", "==", "!=", "<=", ">=", "~=", "<", ">"}

type clause struct {
	op string
	// version is the normalized "vX.Y.Z" form used for comparison.
	version string
	// upper is the exclusive upper bound for compatible-release
	// clauses, empty otherwise.
	upper string
}

// Specifier is a parsed version-range specifier. The zero value (and
// nil) matches any version.
type Specifier struct {
	raw     string
	clauses []clause
}

// Parse parses a range specifier. An empty string yields a specifier
// that matches any version. Malformed input is rejected here so that
// matching stays total at run time.
func Parse(raw string) (*Specifier, error) {
	s := &Specifier{raw: raw}
	if strings.TrimSpace(raw) == "" {
		return s, nil
	}

	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			return nil, fmt.Errorf("specifier %q: empty clause", raw)
		}

		c, err := parseClause(part)
		if err != nil {
			return nil, fmt.Errorf("specifier %q: %w", raw, err)
		}
		s.clauses = append(s.clauses, c)
	}

	return s, nil
}

// MustParse is Parse for statically known specifiers in tests.
func MustParse(raw string) *Specifier {
	s, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return s
}

func parseClause(part string) (clause, error) {
	for _, op := range operators {
		if !strings.HasPrefix(part, op) {
			continue
		}

		literal := strings.TrimSpace(strings.TrimPrefix(part, op))
		v, ok := normalize(literal)
		if !ok {
			return clause{}, fmt.Errorf("clause %q: invalid version %q", part, literal)
		}

		c := clause{op: op, version: v}
		if op == "~=" {
			upper, err := compatibleUpperBound(literal)
			if err != nil {
				return clause{}, fmt.Errorf("clause %q: %w", part, err)
			}
			c.upper = upper
		}
		return c, nil
	}

	return clause{}, fmt.Errorf("clause %q: missing comparison operator", part)
}

// compatibleUpperBound computes the exclusive upper bound of a
// compatible-release clause: "~=1.4.5" allows ">=1.4.5,<1.5" and
// "~=1.4" allows ">=1.4,<2".
func compatibleUpperBound(literal string) (string, error) {
	parts := strings.Split(strings.TrimPrefix(literal, "v"), ".")
	if len(parts) < 2 {
		return "", fmt.Errorf("compatible-release requires at least two version components, got %q", literal)
	}

	// Bump the second-to-last component and drop the rest.
	head := parts[:len(parts)-1]
	n, err := strconv.Atoi(head[len(head)-1])
	if err != nil {
		return "", fmt.Errorf("non-numeric version component %q in %q", head[len(head)-1], literal)
	}
	head[len(head)-1] = strconv.Itoa(n + 1)

	upper, ok := normalize(strings.Join(head, "."))
	if !ok {
		return "", fmt.Errorf("cannot derive upper bound from %q", literal)
	}
	return upper, nil
}

// normalize converts a version literal to the "vX[.Y[.Z]]" form the
// semver package compares. Returns false for versions the comparison
// layer cannot order (pre-release tags are accepted, arbitrary text is
// not).
func normalize(literal string) (string, bool) {
	literal = strings.TrimSpace(strings.TrimPrefix(literal, "v"))
	if literal == "" {
		return "", false
	}
	v := "v" + literal
	if !semver.IsValid(v) {
		return "", false
	}
	return v, true
}

// String returns the original specifier text.
func (s *Specifier) String() string {
	if s == nil {
		return ""
	}
	return s.raw
}

// Matches reports whether the concrete version satisfies every clause
// of the specifier. A nil or empty specifier matches any version. A
// version the comparison layer cannot order matches nothing.
func (s *Specifier) Matches(version string) bool {
	if s == nil || len(s.clauses) == 0 {
		return true
	}

	v, ok := normalize(version)
	if !ok {
		return false
	}

	for _, c := range s.clauses {
		if !c.matches(v) {
			return false
		}
	}
	return true
}

func (c clause) matches(v string) bool {
	cmp := semver.Compare(v, c.version)
	switch c.op {
	case "==", "===":
		return cmp == 0
	case "!=":
		return cmp != 0
	case "<":
		return cmp < 0
	case "<=":
		return cmp <= 0
	case ">":
		return cmp > 0
	case ">=":
		return cmp >= 0
	case "~=":
		return cmp >= 0 && semver.Compare(v, c.upper) < 0
	}
	return false
}
