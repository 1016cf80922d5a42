// Package trace extends the httptrace.ClientTrace and adds hooks for stages of a call sent by the client.Client.
// A custom ClientTrace definition can be registered in the client.Client by the WithTrace option.
package trace

import (
	"context"
	"net/http/httptrace"
	"reflect"

	"github.com/keboola/go-minireq/pkg/request"
	"github.com/keboola/go-minireq/pkg/transport"
)

// Factory creates ClientTrace hooks for a call.
type Factory func(ctx context.Context, call request.CallConfig) (context.Context, *ClientTrace)

// ClientTrace is a set of hooks to run at various stages of a call.
type ClientTrace struct {
	httptrace.ClientTrace // native, low level trace
	// GotRequest is called when the client and the call configuration are merged, before request interceptors.
	GotRequest func(effective request.CallConfig)
	// RequestConfigured is called when request interceptors are applied and the URL is resolved.
	// The hook may modify the request header, for example to propagate a trace context.
	RequestConfigured func(req *transport.Request)
	// HeadersReceived is called when response headers are received, before the body is read.
	HeadersReceived func(event transport.HeadersEvent)
	// ResponseReceived is called when a response is received, before response interceptors.
	ResponseReceived func(res *request.Response)
	// RequestFailed is called when no response is available, before error handlers.
	RequestFailed func(err *request.TransportError)
	// RequestSettled is called when the call is resolved or rejected.
	RequestSettled func(res *request.Response, err error)
}

// Compose modifies t such that it respects the previously-registered hooks in old.
// Hooks from old are called first.
// Copy of httptrace.compose.
func (t *ClientTrace) Compose(old *ClientTrace) {
	if old == nil {
		return
	}
	compose(reflect.ValueOf(t).Elem(), reflect.ValueOf(old).Elem())
}

func compose(tv, ov reflect.Value) {
	structType := tv.Type()
	for i := 0; i < structType.NumField(); i++ {
		tf := tv.Field(i)
		of := ov.Field(i)

		// Embedded httptrace.ClientTrace
		if tf.Kind() == reflect.Struct {
			compose(tf, of)
			continue
		}

		hookType := tf.Type()
		if hookType.Kind() != reflect.Func {
			continue
		}
		if of.IsNil() {
			continue
		}
		if tf.IsNil() {
			tf.Set(of)
			continue
		}

		// Make a copy of tf for tf to call. (Otherwise it
		// creates a recursive call cycle and stack overflows)
		tfCopy := reflect.ValueOf(tf.Interface())
		ofCopy := reflect.ValueOf(of.Interface())

		// We need to call both tf and of in some order.
		newFunc := reflect.MakeFunc(hookType, func(args []reflect.Value) []reflect.Value {
			ofCopy.Call(args)
			return tfCopy.Call(args)
		})
		tf.Set(newFunc)
	}
}
