package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

// Error carries the HTTP status and stable machine code a handler should
// respond with for the wrapped error.
type Error struct {
	Status int
	Code   string
	Err    error
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
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

// From returns the *Error in err's chain, or a 500 internal_error wrapper.
func From(err error) *Error {
	var ae *Error
	if errors.As(err, &ae) && ae != nil {
		return ae
	}
	return &Error{Status: http.StatusInternalServerError, Code: "internal_error", Err: err}
}
