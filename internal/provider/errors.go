package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/replicate/replicate-go"
	"google.golang.org/genai"
)

// ErrorKind categorizes provider failures.
type ErrorKind int

const (
	// KindUnknown is an unclassified failure.
	KindUnknown ErrorKind = iota
	// KindAuth means the provider rejected our credentials.
	KindAuth
	// KindQuota means the provider rate limited us.
	KindQuota
	// KindNetwork means the provider could not be reached.
	KindNetwork
	// KindBadInput means the provider refused the input.
	KindBadInput
	// KindNoOutput means the call succeeded without a usable result.
	KindNoOutput
	// KindJobFailed means an accepted job ended unsuccessfully.
	KindJobFailed
	// KindUnsupported means the provider cannot perform the operation.
	KindUnsupported
)

func (k ErrorKind) String() string {
	switch k {
	case KindAuth:
		return "auth"
	case KindQuota:
		return "quota"
	case KindNetwork:
		return "network"
	case KindBadInput:
		return "bad_input"
	case KindNoOutput:
		return "no_output"
	case KindJobFailed:
		return "job_failed"
	case KindUnsupported:
		return "unsupported"
	default:
		return "unknown"
	}
}

// Error is a classified provider failure. Message is safe to return to clients.
type Error struct {
	Kind     ErrorKind
	Provider string
	Message  string
	Err      error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ErrUnsupported is returned by Status on providers that never go async.
var ErrUnsupported = &Error{Kind: KindUnsupported, Message: "provider does not support job status"}

// Classify converts any error into an *Error. Already classified errors are
// returned as is.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}
	var pe *Error
	if errors.As(err, &pe) {
		return pe
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return fromStatus(apiErr.Code, apiErr.Message, err)
	}

	var repErr *replicate.APIError
	if errors.As(err, &repErr) {
		return fromStatus(repErr.Status, repErr.Detail, err)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindNetwork, Message: "Provider request timed out", Err: err}
	}

	lower := strings.ToLower(err.Error())
	switch {
	case strings.Contains(lower, "api key not valid") ||
		strings.Contains(lower, "invalid api key") ||
		strings.Contains(lower, "permission denied") ||
		strings.Contains(lower, "unauthenticated"):
		return &Error{Kind: KindAuth, Message: "Provider rejected credentials", Err: err}
	case strings.Contains(lower, "quota") ||
		strings.Contains(lower, "resource exhausted") ||
		strings.Contains(lower, "rate limit"):
		return &Error{Kind: KindQuota, Message: "Provider rate limit exceeded, try again later", Err: err}
	case strings.Contains(lower, "connection") ||
		strings.Contains(lower, "timeout") ||
		strings.Contains(lower, "dial") ||
		strings.Contains(lower, "no such host") ||
		strings.Contains(lower, "unreachable"):
		return &Error{Kind: KindNetwork, Message: "Provider unreachable", Err: err}
	default:
		return &Error{Kind: KindUnknown, Message: "Image processing failed", Err: err}
	}
}

// fromStatus classifies an HTTP status returned by a provider API.
func fromStatus(code int, detail string, err error) *Error {
	if err == nil {
		err = fmt.Errorf("status %d: %s", code, detail)
	}
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return &Error{Kind: KindAuth, Message: "Provider rejected credentials", Err: err}
	case code == http.StatusTooManyRequests:
		return &Error{Kind: KindQuota, Message: "Provider rate limit exceeded, try again later", Err: err}
	case code >= 400 && code < 500:
		msg := "Provider rejected the request"
		if detail != "" {
			msg = detail
		}
		return &Error{Kind: KindBadInput, Message: msg, Err: err}
	default:
		return &Error{Kind: KindUnknown, Message: "Image processing failed", Err: err}
	}
}
