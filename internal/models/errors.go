package models

import "errors"

// Error kinds returned by every event store. Backends wrap them together with
// the underlying cause, so callers match with errors.Is.
var (
	ErrFetch      = errors.New("failed to reach event store")
	ErrNotFound   = errors.New("event not found")
	ErrValidation = errors.New("invalid event data")
	ErrAuth       = errors.New("not authorized")
)

// Kind returns the error kind of err, or nil if err carries none.
func Kind(err error) error {
	for _, k := range []error{ErrNotFound, ErrValidation, ErrAuth, ErrFetch} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}
