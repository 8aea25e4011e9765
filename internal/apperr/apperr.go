package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	KindNotFound         Kind = "not_found"
	KindAlreadyCompleted Kind = "already_completed"
	KindExhausted        Kind = "exhausted"
	KindValidation       Kind = "validation"
	KindStoreUnavailable Kind = "store_unavailable"
	KindConflict         Kind = "conflict"
	KindInternal         Kind = "internal"
)

// Error is the typed failure returned by every core operation.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	switch {
	case e.Msg != "" && e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	case e.Msg != "":
		return e.Msg
	case e.Err != nil:
		return e.Err.Error()
	default:
		return string(e.Kind)
	}
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, err error, msg string) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

func NotFound(format string, args ...interface{}) *Error {
	return New(KindNotFound, format, args...)
}

func Validation(format string, args ...interface{}) *Error {
	return New(KindValidation, format, args...)
}

func Exhausted(format string, args ...interface{}) *Error {
	return New(KindExhausted, format, args...)
}

func AlreadyCompleted(format string, args ...interface{}) *Error {
	return New(KindAlreadyCompleted, format, args...)
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func IsNotFound(err error) bool         { return KindOf(err) == KindNotFound }
func IsAlreadyCompleted(err error) bool { return KindOf(err) == KindAlreadyCompleted }
func IsExhausted(err error) bool        { return KindOf(err) == KindExhausted }
func IsValidation(err error) bool       { return KindOf(err) == KindValidation }
func IsStoreUnavailable(err error) bool { return KindOf(err) == KindStoreUnavailable }
func IsConflict(err error) bool         { return KindOf(err) == KindConflict }

func HTTPStatus(err error) int {
	switch KindOf(err) {
	case "":
		return http.StatusOK
	case KindNotFound, KindExhausted:
		return http.StatusNotFound
	case KindAlreadyCompleted, KindConflict:
		return http.StatusConflict
	case KindValidation:
		return http.StatusBadRequest
	case KindStoreUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
