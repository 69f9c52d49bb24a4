// Package outcome defines the tagged result type the reservation engine uses
// to report expected failures without error-based control flow. Callers
// branch on Status; the variant set is closed.
package outcome

type Status int

const (
	StatusSuccess Status = iota
	StatusNotFound
	StatusConflict
	StatusUnauthorized
	StatusUnexpected
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusNotFound:
		return "not_found"
	case StatusConflict:
		return "conflict"
	case StatusUnauthorized:
		return "unauthorized"
	default:
		return "unexpected"
	}
}

// Outcome carries a status tag, an optional payload and an ordered list of
// human-readable error messages. It is constructed fresh per call and holds
// no state of its own.
type Outcome[T any] struct {
	Status Status
	Data   T
	Errors []string
}

// Unit is the payload for operations that succeed with nothing to return.
type Unit struct{}

func OK[T any](data T) Outcome[T] {
	return Outcome[T]{Status: StatusSuccess, Data: data}
}

func NotFound[T any](errs ...string) Outcome[T] {
	return Outcome[T]{Status: StatusNotFound, Errors: errs}
}

func Conflict[T any](errs ...string) Outcome[T] {
	return Outcome[T]{Status: StatusConflict, Errors: errs}
}

// ConflictWith reports a conflict while still handing the caller the
// competing data (e.g. the booking already holding a slot).
func ConflictWith[T any](data T, errs ...string) Outcome[T] {
	return Outcome[T]{Status: StatusConflict, Data: data, Errors: errs}
}

func Unauthorized[T any](errs ...string) Outcome[T] {
	return Outcome[T]{Status: StatusUnauthorized, Errors: errs}
}

func Unexpected[T any](errs ...string) Outcome[T] {
	return Outcome[T]{Status: StatusUnexpected, Errors: errs}
}
