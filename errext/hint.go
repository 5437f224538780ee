package errext

import "errors"

// HasHint is a wrapper around an error with an attached user hint, e.g. a
// suggestion of how to start the browser so it can be reached.
type HasHint interface {
	error
	Hint() string
}

// WithHint attaches a hint to the given error. If the error already had a
// hint, the new one is rendered as "new hint (old hint)". A nil error stays nil.
func WithHint(err error, hint string) error {
	if err == nil {
		return nil
	}
	return withHint{err, hint}
}

type withHint struct {
	error
	hint string
}

func (wh withHint) Unwrap() error {
	return wh.error
}

func (wh withHint) Hint() string {
	var inner HasHint
	if errors.As(wh.error, &inner) {
		return wh.hint + " (" + inner.Hint() + ")"
	}
	return wh.hint
}

var _ HasHint = withHint{}
