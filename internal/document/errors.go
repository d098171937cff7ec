package document

import (
	"errors"
	"fmt"
)

var (
	ErrParse              = errors.New("malformed document")
	ErrSchema             = errors.New("schema violation")
	ErrInvariantViolation = errors.New("invariant violation")
)

// Error carries one of the package error kinds plus a detail message.
type Error struct {
	Kind error
	Msg  string
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Msg == "" {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%s: %s", e.Kind.Error(), e.Msg)
}

func (e *Error) Unwrap() error { return e.Kind }

// Invariantf reports a violated model invariant such as a duplicate scoped id.
func Invariantf(format string, args ...any) error {
	return &Error{Kind: ErrInvariantViolation, Msg: fmt.Sprintf(format, args...)}
}

func schemaf(format string, args ...any) error {
	return &Error{Kind: ErrSchema, Msg: fmt.Sprintf(format, args...)}
}

func parseErr(err error) error {
	return &Error{Kind: ErrParse, Msg: err.Error()}
}

// asSchemaError keeps package errors as they are and turns decoding errors
// (wrong JSON types and the like) into schema violations.
func asSchemaError(err error) error {
	if err == nil {
		return nil
	}
	var docErr *Error
	if errors.As(err, &docErr) {
		return err
	}
	return &Error{Kind: ErrSchema, Msg: err.Error()}
}
