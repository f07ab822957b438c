package telemetry

import (
	"errors"
	"fmt"
)

// Kind classifies why an ingestion or listing failed.
type Kind int

const (
	KindUnknown Kind = iota
	KindAuth
	KindValidation
	KindStoreUnavailable
	KindStoreOperation
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindAuth:
		return "auth"
	case KindValidation:
		return "validation"
	case KindStoreUnavailable:
		return "store_unavailable"
	case KindStoreOperation:
		return "store_operation"
	case KindNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// Error carries the failure kind up to the HTTP layer.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the Kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
