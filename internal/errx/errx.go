// Package errx provides small combinators for attaching context to the
// sentinel errors each package declares in its errors.go.
package errx

import "fmt"

// Wrap chains a cause onto a sentinel. errors.Is matches both.
func Wrap(sentinel, cause error) error {
	if cause == nil {
		return sentinel
	}
	return fmt.Errorf("%w: %w", sentinel, cause)
}

// With appends formatted detail to a sentinel. The format string supplies its
// own separator (callers usually start it with ": ").
func With(sentinel error, format string, args ...any) error {
	return fmt.Errorf("%w"+format, append([]any{sentinel}, args...)...)
}
