package errs

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so the HTTP layer can map it to a response
// without inspecting message text.
type Kind int

const (
	KindUnexpected Kind = iota
	KindNotFound
	KindIllegalState
	KindDuplicateKey
	KindValidation
)

type Error struct {
	Kind    Kind
	Message string
	// Fields carries field -> message details for validation failures.
	Fields map[string]string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func NotFound(format string, args ...interface{}) error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func IllegalState(format string, args ...interface{}) error {
	return &Error{Kind: KindIllegalState, Message: fmt.Sprintf(format, args...)}
}

func DuplicateKey(format string, args ...interface{}) error {
	return &Error{Kind: KindDuplicateKey, Message: fmt.Sprintf(format, args...)}
}

func Validation(fields map[string]string) error {
	return &Error{Kind: KindValidation, Message: "validation failed", Fields: fields}
}

func Unexpected(err error) error {
	return &Error{Kind: KindUnexpected, Message: "internal error", Err: err}
}

// KindOf returns the Kind of err, or KindUnexpected for untyped errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnexpected
}

func IsNotFound(err error) bool     { return KindOf(err) == KindNotFound }
func IsIllegalState(err error) bool { return KindOf(err) == KindIllegalState }
func IsDuplicateKey(err error) bool { return KindOf(err) == KindDuplicateKey }
func IsValidation(err error) bool   { return KindOf(err) == KindValidation }

// ValidationFields extracts the field map from a validation error, nil otherwise.
func ValidationFields(err error) map[string]string {
	var e *Error
	if errors.As(err, &e) && e.Kind == KindValidation {
		return e.Fields
	}
	return nil
}
