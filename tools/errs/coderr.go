package errs

import (
	"github.com/pkg/errors"
)

// Error classes mirror how failures are treated by the messaging engine:
// validation errors surface before any network call, transient errors are
// negative signals only, primary errors fail the user-visible action once every
// fallback is exhausted, secondary errors are logged and swallowed.
const (
	CodeValidation = 1001
	CodeTransient  = 1002
	CodePrimary    = 1003
	CodeSecondary  = 1004
)

type CodeError struct {
	Code   int    `json:"code"`
	Msg    string `json:"msg"`
	Detail string `json:"detail,omitempty"`
}

func NewCodeError(code int, msg string) *CodeError {
	return &CodeError{Code: code, Msg: msg}
}

func (e *CodeError) Error() string {
	if e.Detail == "" {
		return e.Msg
	}
	return e.Msg + ": " + e.Detail
}

func (e *CodeError) ECode() int { return e.Code }

// WithDetail returns a copy carrying extra context; the receiver is unchanged
// so package-level sentinel errors stay immutable.
func (e *CodeError) WithDetail(detail string) *CodeError {
	d := detail
	if e.Detail != "" {
		d = e.Detail + ", " + detail
	}
	return &CodeError{Code: e.Code, Msg: e.Msg, Detail: d}
}

func Validation(msg string) *CodeError { return NewCodeError(CodeValidation, msg) }
func Primary(msg string) *CodeError    { return NewCodeError(CodePrimary, msg) }

// IsValidation reports whether err (or anything it wraps) is a validation error.
func IsValidation(err error) bool {
	var ce *CodeError
	if errors.As(err, &ce) {
		return ce.Code == CodeValidation
	}
	return false
}

func Wrap(err error, msg string) error {
	return errors.Wrap(err, msg)
}

func Wrapf(err error, format string, args ...interface{}) error {
	return errors.Wrapf(err, format, args...)
}

func New(msg string) error { return errors.New(msg) }
