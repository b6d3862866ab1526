package record

import "errors"

var (
	// ErrNotFound indicates the target row does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrForbidden indicates the row exists but belongs to another owner.
	// The mutation was not applied and no counters were touched.
	ErrForbidden = errors.New("record owned by another owner")
)

// IsDenied reports whether err is one of the no-op mutation outcomes
// (missing target or ownership mismatch).
func IsDenied(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrForbidden)
}
