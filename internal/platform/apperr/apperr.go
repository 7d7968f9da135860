package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failure for routing and HTTP mapping.
type Kind string

const (
	KindAuth       Kind = "auth"
	KindValidation Kind = "validation"
	KindGeneration Kind = "generation"
	KindNoResults  Kind = "no_results"
	KindStore      Kind = "store"
)

type Error struct {
	Kind Kind
	Code string
	Err  error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, code string, err error) *Error {
	return &Error{Kind: kind, Code: code, Err: err}
}

func Authf(format string, args ...any) *Error {
	return &Error{Kind: KindAuth, Code: "unauthorized", Err: fmt.Errorf(format, args...)}
}

func Validationf(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Code: "invalid_request", Err: fmt.Errorf(format, args...)}
}

func Generationf(format string, args ...any) *Error {
	return &Error{Kind: KindGeneration, Code: "generation_failed", Err: fmt.Errorf(format, args...)}
}

func NoResultsf(format string, args ...any) *Error {
	return &Error{Kind: KindNoResults, Code: "no_results", Err: fmt.Errorf(format, args...)}
}

func Storef(format string, args ...any) *Error {
	return &Error{Kind: KindStore, Code: "store_failed", Err: fmt.Errorf(format, args...)}
}

// Wrap keeps an existing error chain while assigning a kind.
func Wrap(kind Kind, code string, err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Code: code, Err: err}
}

func IsKind(err error, kind Kind) bool {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind == kind
	}
	return false
}

// HTTPStatus maps an error to the status a handler should respond with.
func HTTPStatus(err error) int {
	var ae *Error
	if !errors.As(err, &ae) {
		return http.StatusInternalServerError
	}
	switch ae.Kind {
	case KindAuth:
		return http.StatusUnauthorized
	case KindValidation:
		return http.StatusBadRequest
	case KindNoResults:
		return http.StatusNotFound
	case KindGeneration, KindStore:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// Code returns the machine-readable code for a handler error envelope.
func Code(err error) string {
	var ae *Error
	if errors.As(err, &ae) && ae.Code != "" {
		return ae.Code
	}
	return "internal_error"
}
