package request

import (
	"fmt"
	"net/http"
	"strings"
)

// Phase of a transport failure.
type Phase string

const (
	PhaseRequest  Phase = "request"
	PhaseResponse Phase = "response"
)

// MissingURLError is returned synchronously if the request has no resolvable URL.
type MissingURLError struct {
	URI string
}

func (e *MissingURLError) Error() string {
	return fmt.Sprintf(`cannot send request "%s": url is not set, define the client url or the call base url`, e.URI)
}

// UnknownKindError is returned when an interceptor is registered to a pipeline which doesn't exist.
type UnknownKindError struct {
	Kind string
}

func (e *UnknownKindError) Error() string {
	return fmt.Sprintf(`unknown interceptor kind "%s", expected "request" or "response"`, e.Kind)
}

// TransportError rejects a call if no HTTP response is available, for example a network error or abort.
type TransportError struct {
	// ErrMsg has form "<phase>:fail <reason>", for example "request:fail timeout".
	ErrMsg string
	Phase  Phase
	Method string
	URL    string
	Err    error
}

// NewTransportError creates a TransportError, the message is composed from the phase and the reason.
func NewTransportError(phase Phase, method, url, reason string, err error) *TransportError {
	return &TransportError{
		ErrMsg: fmt.Sprintf("%s:fail %s", phase, reason),
		Phase:  phase,
		Method: method,
		URL:    url,
		Err:    err,
	}
}

func (e *TransportError) Error() string {
	return fmt.Sprintf(`request %s "%s" failed: %s`, e.Method, e.URL, e.ErrMsg)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsRequestPhase returns true if the failure occurred before a response was received.
func (e *TransportError) IsRequestPhase() bool {
	return strings.Contains(e.ErrMsg, "request:fail")
}

// StatusError rejects a call if the response status code is not 2xx.
type StatusError struct {
	Method   string
	URL      string
	Response *Response
}

func (e *StatusError) Error() string {
	return fmt.Sprintf(`request %s "%s" failed: %d %s`, e.Method, e.URL, e.Response.StatusCode, http.StatusText(e.Response.StatusCode))
}

func (e *StatusError) StatusCode() int {
	return e.Response.StatusCode
}
