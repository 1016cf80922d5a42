// Package transport defines the boundary between the client.Client and the network.
//
// A Transport performs one HTTP call and reports the outcome by Callbacks:
// exactly one of Success or Fail is called, Complete is always called after it.
// Send returns a Task immediately, the Task can abort the call
// or notify listeners when response headers are received.
//
// HTTPTransport is the default implementation based on the standard net/http package.
package transport

import (
	"context"
	"net/http"
	"sync"

	"github.com/keboola/go-minireq/pkg/request"
)

// Request is a fully resolved request passed to a Transport.
type Request struct {
	URL    string
	Method string
	Header map[string]string
	Data   any
}

// Callbacks report the outcome of a Request.
type Callbacks struct {
	// Success is called if a response has been received, regardless of the status code.
	Success func(res *request.Response)
	// Fail is called if no response is available.
	Fail func(err *request.TransportError)
	// Complete is always called, after Success or Fail.
	Complete func()
	// Headers is optional, it is called when response headers are received, before the Task listeners.
	Headers HeadersFunc
}

// Transport sends a Request, the method must not block.
type Transport interface {
	Send(ctx context.Context, req Request, callbacks Callbacks) Task
}

// Task is a handle of a sent Request.
type Task interface {
	// Abort cancels the request, the Fail callback is called with "request:fail abort", if the request is not completed yet.
	Abort()
	// OnHeadersReceived registers a listener called when response headers are received, before the body is read.
	OnHeadersReceived(fn HeadersFunc) ListenerID
	// OffHeadersReceived removes the listener.
	OffHeadersReceived(id ListenerID)
}

// HeadersEvent describes received response headers.
type HeadersEvent struct {
	StatusCode int
	Header     http.Header
	Cookies    []string
}

// HeadersFunc is a listener of the HeadersEvent.
type HeadersFunc func(event HeadersEvent)

// ListenerID identifies a registered HeadersFunc.
type ListenerID uint64

// HeadersListeners is a set of HeadersFunc, it can be embedded to a custom Task implementation.
// It is safe for concurrent use.
type HeadersListeners struct {
	lock      sync.Mutex
	lastID    ListenerID
	ids       []ListenerID
	listeners map[ListenerID]HeadersFunc
}

// On registers the listener.
func (l *HeadersListeners) On(fn HeadersFunc) ListenerID {
	l.lock.Lock()
	defer l.lock.Unlock()
	if l.listeners == nil {
		l.listeners = make(map[ListenerID]HeadersFunc)
	}
	l.lastID++
	l.ids = append(l.ids, l.lastID)
	l.listeners[l.lastID] = fn
	return l.lastID
}

// Off removes the listener, an unknown ID is ignored.
func (l *HeadersListeners) Off(id ListenerID) {
	l.lock.Lock()
	defer l.lock.Unlock()
	delete(l.listeners, id)
}

// Notify calls all listeners in registration order.
func (l *HeadersListeners) Notify(event HeadersEvent) {
	l.lock.Lock()
	var fns []HeadersFunc
	for _, id := range l.ids {
		if fn, found := l.listeners[id]; found {
			fns = append(fns, fn)
		}
	}
	l.lock.Unlock()

	for _, fn := range fns {
		fn(event)
	}
}
