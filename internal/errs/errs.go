// Package errs holds the registry of root errors used across YieldFlow.
//
// Every package declares its own root errors with Register and wraps them at
// runtime with New/Newf or fmt.Errorf("...: %w"). Callers classify any error,
// however deeply wrapped, with KindOf.
package errs

import (
	"errors"
	"fmt"
)

// Kind groups root errors by the concern that produced them.
type Kind uint8

const (
	KindUnknown Kind = iota
	// KindValidation rejects parameters before they are persisted.
	KindValidation
	// KindGating is an expected "not yet" outcome of a claim.
	KindGating
	// KindArithmetic covers overflow and flat or declining rates.
	KindArithmetic
	// KindCollaborator wraps failures of the rate source, transfer executor or store.
	KindCollaborator
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindGating:
		return "gating"
	case KindArithmetic:
		return "arithmetic"
	case KindCollaborator:
		return "collaborator"
	default:
		return "unknown"
	}
}

// Error is a root error. Instances are compared by identity with errors.Is.
type Error struct {
	code uint32
	kind Kind
	desc string
}

func (e *Error) Error() string { return e.desc }

// Code returns the unique registry code.
func (e *Error) Code() uint32 { return e.code }

// Kind returns the concern the error belongs to.
func (e *Error) Kind() Kind { return e.kind }

// New wraps the root error with an additional description.
func (e *Error) New(description string) error {
	return fmt.Errorf("%s: %w", description, e)
}

// Newf is New with formatting.
func (e *Error) Newf(format string, args ...any) error {
	return e.New(fmt.Sprintf(format, args...))
}

// Wrap attaches cause to the root error so that both errors.Is(err, e) and
// errors.Is(err, cause) hold. A nil cause yields nil.
func (e *Error) Wrap(cause error) error {
	if cause == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", e, cause)
}

var usedCodes = map[uint32]*Error{}

// Register declares a root error. Reusing a code panics, so call it only from
// package-level var blocks.
func Register(code uint32, kind Kind, description string) *Error {
	if e, ok := usedCodes[code]; ok {
		panic(fmt.Sprintf("error with code %d is already registered: %q", code, e.desc))
	}
	err := &Error{code: code, kind: kind, desc: description}
	usedCodes[code] = err
	return err
}

// KindOf returns the kind of the outermost registered error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.kind
	}
	return KindUnknown
}

// CodeOf returns the registry code of err, or 0 when err is not registered.
func CodeOf(err error) uint32 {
	var e *Error
	if errors.As(err, &e) {
		return e.code
	}
	return 0
}

// IsExpected reports whether err is a normal, user-facing rejection rather
// than a fault: any gating error or a rate that has not increased.
func IsExpected(err error) bool {
	if err == nil {
		return false
	}
	if KindOf(err) == KindGating {
		return true
	}
	return errors.Is(err, ErrRateNotIncreased)
}

// Root errors shared by several packages. Codes 1-99 are reserved here.
var (
	ErrArithmeticOverflow = Register(10, KindArithmetic, "arithmetic overflow")
	ErrRateNotIncreased   = Register(11, KindArithmetic, "rate not increased")
	ErrInvalidTimestamp   = Register(12, KindValidation, "invalid timestamp")
	ErrInvalidInput       = Register(13, KindValidation, "invalid input")
	ErrNotFound           = Register(14, KindCollaborator, "not found")
)
