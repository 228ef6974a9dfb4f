// Package rpm implements RPM label version comparison.
//
// Ordering follows the rpmvercmp algorithm: version strings are split into
// runs of digits and runs of letters, runs are compared pairwise, numeric
// runs beat alphabetic ones, `~` marks a pre-release and `^` a post-release
// snapshot.
package rpm

import (
	"fmt"
	"strings"
)

// Result is the outcome of a comparison, from the left operand's perspective.
type Result int

const (
	Older Result = iota - 1
	Equal
	Newer
)

func (r Result) String() string {
	switch r {
	case Newer:
		return "newer"
	case Older:
		return "older"
	default:
		return "equal"
	}
}

// Label is an (epoch, version, release) triple as found on RPM packages.
// An absent epoch is the empty string and compares equal to any other
// absent epoch.
type Label struct {
	Epoch   string
	Version string
	Release string
}

// InvalidComparatorError reports a comparison operator outside >=, <=, ==, >, <.
type InvalidComparatorError struct {
	Op string
}

func (e *InvalidComparatorError) Error() string {
	return fmt.Sprintf("invalid version compare expression: %q", e.Op)
}

func (e *InvalidComparatorError) Kind() string { return "InvalidComparatorError" }

// Compare orders two labels. Epochs are compared first as raw values, then
// version and release fields under CompareFields. The first non-equal field
// decides.
func Compare(a, b Label) Result {
	if a.Epoch != b.Epoch {
		if a.Epoch > b.Epoch {
			return Newer
		}
		return Older
	}

	if r := CompareFields(a.Version, b.Version); r != Equal {
		return r
	}
	return CompareFields(a.Release, b.Release)
}

// Satisfies reports whether the relation of current to expected, as computed
// by CompareFields(current, expected), holds under op.
func Satisfies(current, expected, op string) (bool, error) {
	r := CompareFields(current, expected)
	switch op {
	case ">=":
		return r != Older, nil
	case "<=":
		return r != Newer, nil
	case "==":
		return r == Equal, nil
	case ">":
		return r == Newer, nil
	case "<":
		return r == Older, nil
	default:
		return false, &InvalidComparatorError{Op: op}
	}
}

// CompareFields orders two version (or release) strings under RPM label
// semantics.
func CompareFields(a, b string) Result {
	if a == b {
		return Equal
	}

	ca, cb := []byte(a), []byte(b)
	for len(ca) != 0 && len(cb) != 0 {
		ca = trimSeparators(ca)
		cb = trimSeparators(cb)
		if len(ca) == 0 || len(cb) == 0 {
			break
		}

		switch {
		case ca[0] == '~' && cb[0] == '~', ca[0] == '^' && cb[0] == '^':
			ca, cb = ca[1:], cb[1:]
			continue
		case ca[0] == '~':
			// Tilde sorts before everything, even the end of the field.
			return Older
		case cb[0] == '~':
			return Newer
		case ca[0] == '^':
			// Caret sorts after the end of the field but before any
			// remaining segment on the other side.
			return Older
		case cb[0] == '^':
			return Newer
		}

		var res Result
		ca, cb, res = compareLeadingSegments(ca, cb)
		if res != Equal {
			return res
		}
	}

	ca = trimSeparators(ca)
	cb = trimSeparators(cb)
	if len(ca) == len(cb) {
		return Equal
	}

	// One side has segments left over. The longer side is newer unless the
	// leftover starts a pre-release, and older unless it starts a snapshot
	// over the exhausted base version.
	if len(ca) > len(cb) {
		switch ca[0] {
		case '~':
			return Older
		default:
			return Newer
		}
	}
	switch cb[0] {
	case '~':
		return Newer
	default:
		return Older
	}
}

// compareLeadingSegments pops the next digit or letter run off both sides and
// compares them, returning the remainders.
func compareLeadingSegments(a, b []byte) ([]byte, []byte, Result) {
	numeric := isDigit(a[0])

	var segA, segB []byte
	if numeric {
		segA, a = popRun(a, isDigit)
		segB, b = popRun(b, isDigit)
	} else {
		segA, a = popRun(a, isAlpha)
		segB, b = popRun(b, isAlpha)
	}

	// The other side started with the opposite run type. Numeric always
	// beats alphabetic.
	if len(segB) == 0 {
		if numeric {
			return a, b, Newer
		}
		return a, b, Older
	}

	return a, b, compareSegment(segA, segB, numeric)
}

func compareSegment(a, b []byte, numeric bool) Result {
	if numeric {
		a = trimLeadingZeros(a)
		b = trimLeadingZeros(b)
		if len(a) != len(b) {
			if len(a) > len(b) {
				return Newer
			}
			return Older
		}
	}

	switch c := strings.Compare(string(a), string(b)); {
	case c > 0:
		return Newer
	case c < 0:
		return Older
	default:
		return Equal
	}
}

func popRun(s []byte, class func(byte) bool) (run, rest []byte) {
	i := 0
	for i < len(s) && class(s[i]) {
		i++
	}
	return s[:i], s[i:]
}

// trimSeparators drops leading bytes that are neither ASCII alphanumerics
// nor the ~ / ^ markers.
func trimSeparators(s []byte) []byte {
	i := 0
	for i < len(s) && !isDigit(s[i]) && !isAlpha(s[i]) && s[i] != '~' && s[i] != '^' {
		i++
	}
	return s[i:]
}

func trimLeadingZeros(s []byte) []byte {
	i := 0
	for i < len(s) && s[i] == '0' {
		i++
	}
	return s[i:]
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isAlpha(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
