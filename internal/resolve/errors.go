package resolve

import (
	"context"
	"errors"
	"net/http"

	"github.com/devello/devello-studios/internal/action"
	"github.com/devello/devello-studios/internal/apimodel"
)

// Kind classifies why a flow did not succeed.
type Kind int

const (
	// KindFailed means the backend or provider reported a failure, or
	// returned a success without a usable output.
	KindFailed Kind = iota
	// KindTimeout means polling was exhausted without a terminal state.
	KindTimeout
	// KindCanceled means the caller's context ended the flow.
	KindCanceled
	// KindTransport means a network call failed before a response arrived.
	KindTransport
	// KindInvalidRequest means the request was rejected as malformed or too large.
	KindInvalidRequest
	// KindUnauthorized means the bearer token was missing or rejected.
	KindUnauthorized
)

func (k Kind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindCanceled:
		return "canceled"
	case KindTransport:
		return "transport"
	case KindInvalidRequest:
		return "invalid_request"
	case KindUnauthorized:
		return "unauthorized"
	default:
		return "failed"
	}
}

// Error is returned by Resolve and Run for every unsuccessful outcome.
// Message is the single user-facing text.
type Error struct {
	Kind     Kind
	JobID    string
	Attempts int
	Message  string
	Err      error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Err.Error() != e.Message {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsTimeout reports whether err is a polling timeout.
func IsTimeout(err error) bool {
	var re *Error
	return errors.As(err, &re) && re.Kind == KindTimeout
}

// APIError is implemented by clients whose errors carry the backend's HTTP
// status and error code.
type APIError interface {
	error
	HTTPStatus() int
	ErrorCode() string
}

// classify converts a submit or status call error into an *Error.
func classify(err error, jobID string, attempts int) *Error {
	re := &Error{JobID: jobID, Attempts: attempts, Message: err.Error(), Err: err}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		re.Kind = KindCanceled
		re.Message = "canceled"
		return re
	}

	var ve *action.ValidationError
	if errors.As(err, &ve) {
		re.Kind = KindInvalidRequest
		re.Message = ve.Message
		return re
	}

	var apiErr APIError
	if errors.As(err, &apiErr) {
		re.Message = apiErr.Error()
		code, status := apiErr.ErrorCode(), apiErr.HTTPStatus()
		switch {
		case code == apimodel.CodeUnauthorized || status == http.StatusUnauthorized:
			re.Kind = KindUnauthorized
		case code == apimodel.CodeInvalidRequest || code == apimodel.CodePayloadTooLarge,
			status == http.StatusBadRequest || status == http.StatusRequestEntityTooLarge:
			re.Kind = KindInvalidRequest
		default:
			re.Kind = KindFailed
		}
		return re
	}

	re.Kind = KindTransport
	return re
}
