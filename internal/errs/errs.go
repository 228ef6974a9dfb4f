// Package errs renders domain errors for the terminal. Non-debug runs print
// a single `Kind: message` line; debug runs propagate the full error chain.
package errs

import (
	"errors"
	"fmt"
)

// Kinder is implemented by domain errors that carry a user-facing kind name
// (NotFoundError, ConditionsNotMetError, ...).
type Kinder interface {
	error
	Kind() string
}

// Kind extracts the kind name of the outermost Kinder in err's chain,
// falling back to "Error".
func Kind(err error) string {
	var k Kinder
	if errors.As(err, &k) {
		return k.Kind()
	}
	return "Error"
}

// Format renders the single-line user-facing form of err.
func Format(err error) string {
	var k Kinder
	if errors.As(err, &k) {
		return fmt.Sprintf("%s: %s", k.Kind(), k.Error())
	}
	return fmt.Sprintf("Error: %s", err.Error())
}
