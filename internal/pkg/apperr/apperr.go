package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for propagation and HTTP mapping decisions.
type Kind string

const (
	KindValidation   Kind = "validation"
	KindConflict     Kind = "conflict"
	KindBusinessRule Kind = "business_rule"
	KindGateway      Kind = "gateway"
	KindIntegrity    Kind = "integrity"
)

// Error is a classified application error. Validation and conflict errors are
// surfaced to callers and never retried; gateway errors are retried at the
// call site; integrity errors resolve to a safe no-op.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func Validation(format string, args ...interface{}) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func Conflict(format string, args ...interface{}) *Error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

func BusinessRule(format string, args ...interface{}) *Error {
	return &Error{Kind: KindBusinessRule, Message: fmt.Sprintf(format, args...)}
}

func Gateway(msg string, err error) *Error {
	return &Error{Kind: KindGateway, Message: msg, Err: err}
}

func Integrity(format string, args ...interface{}) *Error {
	return &Error{Kind: KindIntegrity, Message: fmt.Sprintf(format, args...)}
}

// IsKind reports whether err (or anything it wraps) carries the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

func IsValidation(err error) bool   { return IsKind(err, KindValidation) }
func IsConflict(err error) bool     { return IsKind(err, KindConflict) }
func IsBusinessRule(err error) bool { return IsKind(err, KindBusinessRule) }
func IsGateway(err error) bool      { return IsKind(err, KindGateway) }
func IsIntegrity(err error) bool    { return IsKind(err, KindIntegrity) }
