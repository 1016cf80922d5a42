// Package interceptor provides ordered pipelines of request and response interceptors.
//
// Each Chain holds two parallel sequences: transform functions and error handlers.
// Chain.Use appends to both sequences and returns a Handle.
// Chain.Eject deactivates the interceptor referenced by a Handle:
// the transform is replaced by an identity and the error handler by a no-op.
// Sequences never shrink, so handles issued earlier remain valid.
package interceptor

import (
	"github.com/keboola/go-minireq/pkg/request"
)

// Kind of interceptors pipeline.
type Kind string

const (
	KindRequest  Kind = "request"
	KindResponse Kind = "response"
)

// RequestFunc transforms the call configuration before the request is sent.
// The returned value is merged into the configuration, see request.Merge.
type RequestFunc func(cfg request.CallConfig) request.CallConfig

// ResolveFunc settles the call successfully.
type ResolveFunc func(res *request.Response)

// RejectFunc settles the call with an error.
type RejectFunc func(err error)

// ResponseFunc transforms a successful response.
// A returned non-nil value is merged into the response, see request.Response.Merge.
// The interceptor can settle the call directly by resolve or reject, the first settlement wins.
type ResponseFunc func(res *request.Response, resolve ResolveFunc, reject RejectFunc) *request.Response

// ErrorFunc observes a failure, it cannot change the outcome.
type ErrorFunc func(err error)

// RequestIdentity returns the configuration unchanged.
func RequestIdentity(cfg request.CallConfig) request.CallConfig {
	return cfg
}

// ResponseIdentity returns the response unchanged.
func ResponseIdentity(res *request.Response, _ ResolveFunc, _ RejectFunc) *request.Response {
	return res
}

func noopErrorFunc(error) {}
