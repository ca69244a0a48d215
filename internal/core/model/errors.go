package model

import "errors"

var (
	// ErrNotFound is returned when a named element, property or resource does not resolve.
	ErrNotFound = errors.New("not found")

	// ErrInvalidRange is returned when the boundaries of an update do not delimit a range.
	ErrInvalidRange = errors.New("invalid range")

	// ErrMissingIdentity is returned when a desired entry carries no identity value.
	ErrMissingIdentity = errors.New("missing identity")

	// ErrDuplicateIdentity is returned when two desired entries share an identity value.
	ErrDuplicateIdentity = errors.New("duplicate identity")

	// ErrInternalConsistency signals a broken link-cardinality invariant. It is fatal:
	// either a bug or an unsynchronized concurrent mutation of the graph.
	ErrInternalConsistency = errors.New("internal consistency violation")

	// ErrContractViolation is returned when a caller breaks a documented precondition.
	ErrContractViolation = errors.New("contract violation")

	ErrElementHasLinks   = errors.New("element still has links")
	ErrUnsupportedValue  = errors.New("unsupported property value")
	ErrInvalidPattern    = errors.New("invalid separator pattern")
	ErrInvalidDocument   = errors.New("invalid document")
	ErrUnsupportedScheme = errors.New("unsupported uri scheme")
)
