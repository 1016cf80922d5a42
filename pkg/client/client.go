// Package client provides a single-request HTTP client with interceptor pipelines.
//
// The Client merges its defaults (request.ClientConfig) with a call definition (request.CallConfig),
// runs request interceptors, resolves the URL and passes the request to a transport.Transport.
// The outcome is routed through response interceptors or error handlers
// and delivered by the returned Call, see the Call.Wait method.
//
// Configuration errors, for example a missing URL, are returned synchronously from the Request method.
// Transport errors are delivered only by the Call.
//
// RunGroup and WaitGroup are helpers for concurrent calls.
package client

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"net/http/httptrace"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/keboola/go-minireq/pkg/client/trace"
	"github.com/keboola/go-minireq/pkg/interceptor"
	"github.com/keboola/go-minireq/pkg/notify"
	"github.com/keboola/go-minireq/pkg/request"
	"github.com/keboola/go-minireq/pkg/transport"
)

// ErrNoPendingRequest is returned by client level task operations if no request has been sent yet.
var ErrNoPendingRequest = errors.New("no request has been sent by the client")

// Client sends calls through the interceptor pipelines.
// It is safe for concurrent use, multiple calls can be in flight at the same time.
type Client struct {
	url            string
	config         request.ClientConfig
	transport      transport.Transport
	interceptors   *interceptor.Registry
	notifier       notify.Notifier
	logger         logrus.FieldLogger
	userAgent      string
	traceFactories []trace.Factory

	lock sync.Mutex
	task transport.Task // the most recent task
}

// Option modifies the Client in the New function.
type Option func(c *Client)

// WithTransport sets a custom transport, the default is transport.HTTPTransport.
func WithTransport(v transport.Transport) Option {
	return func(c *Client) {
		if v == nil {
			panic(fmt.Errorf("transport cannot be nil"))
		}
		c.transport = v
	}
}

// WithTrace adds ClientTrace hooks, hooks of multiple factories are composed.
func WithTrace(fn trace.Factory) Option {
	return func(c *Client) {
		c.traceFactories = append(c.traceFactories, fn)
	}
}

// WithLogger sets the logger, the default is logrus.StandardLogger().
func WithLogger(v logrus.FieldLogger) Option {
	return func(c *Client) {
		c.logger = v
	}
}

// WithNotifier sets the loading indicator, the default is notify.Default().
func WithNotifier(v notify.Notifier) Option {
	return func(c *Client) {
		c.notifier = v
	}
}

// WithUserAgent sets the User-Agent header of the transport.HTTPTransport.
func WithUserAgent(v string) Option {
	return func(c *Client) {
		c.userAgent = v
	}
}

// New creates a Client with the default URL and the default call configuration.
// The url is used if neither the ClientConfig nor the CallConfig defines a base URL.
func New(url string, cfg request.ClientConfig, opts ...Option) *Client {
	c := &Client{url: url, config: cfg.Clone()}
	for _, o := range opts {
		o(c)
	}

	if c.logger == nil {
		c.logger = logrus.StandardLogger()
	}
	if c.notifier == nil {
		c.notifier = notify.Default()
	}
	if c.transport == nil {
		c.transport = transport.NewHTTPTransport()
	}
	if c.userAgent != "" {
		if t, ok := c.transport.(transport.HTTPTransport); ok {
			c.transport = t.WithUserAgent(c.userAgent)
		}
	}

	c.interceptors = interceptor.NewRegistry(c.logger)
	return c
}

// Interceptors returns the request and response interceptor pipelines.
func (c *Client) Interceptors() *interceptor.Registry {
	return c.interceptors
}

// Do sends the call and waits for the outcome.
func (c *Client) Do(ctx context.Context, call request.CallConfig) (*request.Response, error) {
	out, err := c.Request(ctx, call)
	if err != nil {
		return nil, err
	}
	return out.Wait(ctx)
}

// Request sends the call and returns immediately.
// The outcome is delivered by the returned Call.
//
// The request.MissingURLError is returned, and nothing is sent,
// if the client URL, the client base URL and the call base URL are all empty.
//
// Cancellation of the ctx aborts the request.
func (c *Client) Request(ctx context.Context, call request.CallConfig) (*Call, error) {
	if c.url == "" && c.config.BaseURL == "" && call.BaseURL == "" {
		return nil, &request.MissingURLError{URI: call.URI}
	}

	// Init trace
	ctx, tc := c.newTrace(ctx, call)
	if tc != nil {
		ctx = httptrace.WithClientTrace(ctx, &tc.ClientTrace)
	}

	out := newCall(call)
	if tc != nil && tc.RequestSettled != nil {
		out.onSettled = tc.RequestSettled
	}

	// Merge client defaults and the call
	effective := request.Merge(c.config.AsCallConfig(), call)
	if tc != nil && tc.GotRequest != nil {
		tc.GotRequest(effective.Clone())
	}

	// Apply request interceptors, each of them receives the effective configuration
	acc := request.Skeleton()
	if fns := c.interceptors.Request.Interceptors(); len(fns) > 0 {
		for _, fn := range fns {
			acc = request.Merge(acc, fn(effective.Clone()))
		}
	} else {
		acc = request.Merge(acc, effective)
	}

	// Resolve URL
	url := c.url + acc.URI
	if acc.BaseURL != "" {
		url = acc.BaseURL + acc.URI
	}

	req := transport.Request{URL: url, Method: acc.Method, Header: maps.Clone(acc.Header), Data: acc.Data}
	if tc != nil && tc.RequestConfigured != nil {
		tc.RequestConfigured(&req)
	}
	out.configured(req.URL)

	if acc.Loading != nil {
		c.notifier.ShowLoading(*acc.Loading)
	}

	callbacks := transport.Callbacks{
		Success: func(res *request.Response) {
			c.handleResponse(out, tc, req, res)
		},
		Fail: func(err *request.TransportError) {
			c.handleFailure(out, tc, err)
		},
		Complete: func() {
			c.notifier.HideLoading()
		},
	}
	if tc != nil && tc.HeadersReceived != nil {
		callbacks.Headers = tc.HeadersReceived
	}

	task := c.transport.Send(ctx, req, callbacks)
	out.sent(task)

	c.lock.Lock()
	c.task = task
	c.lock.Unlock()

	return out, nil
}

// Abort aborts the most recent request.
func (c *Client) Abort() error {
	task, err := c.currentTask()
	if err != nil {
		return err
	}
	task.Abort()
	return nil
}

// OnHeadersReceived registers the listener to the most recent request.
func (c *Client) OnHeadersReceived(fn transport.HeadersFunc) (transport.ListenerID, error) {
	task, err := c.currentTask()
	if err != nil {
		return 0, err
	}
	return task.OnHeadersReceived(fn), nil
}

// OffHeadersReceived removes the listener from the most recent request.
func (c *Client) OffHeadersReceived(id transport.ListenerID) error {
	task, err := c.currentTask()
	if err != nil {
		return err
	}
	task.OffHeadersReceived(id)
	return nil
}

func (c *Client) currentTask() (transport.Task, error) {
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.task == nil {
		return nil, ErrNoPendingRequest
	}
	return c.task, nil
}

func (c *Client) handleResponse(call *Call, tc *trace.ClientTrace, req transport.Request, res *request.Response) {
	if tc != nil && tc.ResponseReceived != nil {
		tc.ResponseReceived(res)
	}

	// Non-2xx response is rejected, response interceptors are skipped
	if !res.IsSuccess() {
		err := &request.StatusError{Method: req.Method, URL: req.URL, Response: res}
		c.interceptors.Response.DispatchError(err)
		call.reject(err)
		return
	}

	for _, fn := range c.interceptors.Response.Interceptors() {
		res.Merge(fn(res, call.resolve, call.reject))
	}
	call.resolve(res)
}

func (c *Client) handleFailure(call *Call, tc *trace.ClientTrace, err *request.TransportError) {
	if tc != nil && tc.RequestFailed != nil {
		tc.RequestFailed(err)
	}

	if !(err.IsRequestPhase() && c.interceptors.Request.DispatchError(err)) {
		c.interceptors.Response.DispatchError(err)
	}
	call.reject(err)
}

func (c *Client) newTrace(ctx context.Context, call request.CallConfig) (context.Context, *trace.ClientTrace) {
	var out *trace.ClientTrace
	for _, fn := range c.traceFactories {
		var tc *trace.ClientTrace
		ctx, tc = fn(ctx, call)
		if tc == nil {
			continue
		}
		if out != nil {
			tc.Compose(out)
		}
		out = tc
	}
	return ctx, out
}
