package client_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	logTest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/keboola/go-minireq/pkg/client"
	"github.com/keboola/go-minireq/pkg/interceptor"
	"github.com/keboola/go-minireq/pkg/notify"
	"github.com/keboola/go-minireq/pkg/request"
	"github.com/keboola/go-minireq/pkg/transport"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type handlerFunc func(req transport.Request, callbacks transport.Callbacks, task *fakeTask)

// fakeTransport runs the handler in a goroutine, as a real transport does.
type fakeTransport struct {
	handler  handlerFunc
	wg       sync.WaitGroup
	lock     sync.Mutex
	requests []transport.Request
}

func newFakeTransport(handler handlerFunc) *fakeTransport {
	return &fakeTransport{handler: handler}
}

func (t *fakeTransport) Send(_ context.Context, req transport.Request, callbacks transport.Callbacks) transport.Task {
	task := &fakeTask{aborted: make(chan struct{})}

	t.lock.Lock()
	t.requests = append(t.requests, req)
	t.lock.Unlock()

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		defer callbacks.Complete()
		t.handler(req, callbacks, task)
	}()
	return task
}

func (t *fakeTransport) Requests() []transport.Request {
	t.lock.Lock()
	defer t.lock.Unlock()
	return append([]transport.Request(nil), t.requests...)
}

// Wait until all handlers and Complete callbacks are finished.
func (t *fakeTransport) Wait() {
	t.wg.Wait()
}

type fakeTask struct {
	transport.HeadersListeners
	abortOnce sync.Once
	aborted   chan struct{}
}

func (t *fakeTask) Abort() {
	t.abortOnce.Do(func() {
		close(t.aborted)
	})
}

func (t *fakeTask) OnHeadersReceived(fn transport.HeadersFunc) transport.ListenerID {
	return t.On(fn)
}

func (t *fakeTask) OffHeadersReceived(id transport.ListenerID) {
	t.Off(id)
}

func respond(res *request.Response) handlerFunc {
	return func(_ transport.Request, callbacks transport.Callbacks, _ *fakeTask) {
		callbacks.Success(res)
	}
}

func fail(phase request.Phase, reason string) handlerFunc {
	return func(req transport.Request, callbacks transport.Callbacks, _ *fakeTask) {
		callbacks.Fail(request.NewTransportError(phase, req.Method, req.URL, reason, nil))
	}
}

func waitForAbort(req transport.Request, callbacks transport.Callbacks, task *fakeTask) {
	<-task.aborted
	callbacks.Fail(request.NewTransportError(request.PhaseRequest, req.Method, req.URL, "abort", context.Canceled))
}

type recordingNotifier struct {
	lock   sync.Mutex
	events []string
}

func (n *recordingNotifier) ShowLoading(opts notify.LoadingOptions) {
	n.record("show loading " + opts.Title)
}

func (n *recordingNotifier) HideLoading() {
	n.record("hide loading")
}

func (n *recordingNotifier) ShowToast(opts notify.ToastOptions) {
	n.record("show toast " + opts.Title)
}

func (n *recordingNotifier) HideToast() {
	n.record("hide toast")
}

func (n *recordingNotifier) record(event string) {
	n.lock.Lock()
	defer n.lock.Unlock()
	n.events = append(n.events, event)
}

func (n *recordingNotifier) Events() []string {
	n.lock.Lock()
	defer n.lock.Unlock()
	return append([]string(nil), n.events...)
}

func newClient(url string, cfg request.ClientConfig, tr transport.Transport, opts ...client.Option) *client.Client {
	opts = append([]client.Option{client.WithTransport(tr), client.WithNotifier(notify.NopNotifier{})}, opts...)
	return client.New(url, cfg, opts...)
}

func TestClient_URLResolution(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		url      string
		cfg      request.ClientConfig
		call     request.CallConfig
		expected string
	}{
		{name: "client url", url: "http://h", call: request.Get("/a"), expected: "http://h/a"},
		{name: "client base url", url: "http://h", cfg: request.ClientConfig{BaseURL: "http://base"}, call: request.Get("/a"), expected: "http://base/a"},
		{name: "call base url", url: "http://h", call: request.Get("/a").WithBaseURL("http://override"), expected: "http://override/a"},
		{name: "only call base url", call: request.Get("/a").WithBaseURL("http://override"), expected: "http://override/a"},
	}

	for _, tc := range cases {
		tr := newFakeTransport(respond(&request.Response{StatusCode: http.StatusOK}))
		c := newClient(tc.url, tc.cfg, tr)

		call, err := c.Request(context.Background(), tc.call)
		require.NoError(t, err, tc.name)
		_, err = call.Wait(context.Background())
		require.NoError(t, err, tc.name)
		tr.Wait()

		assert.Equal(t, tc.expected, call.URL(), tc.name)
		require.Len(t, tr.Requests(), 1, tc.name)
		assert.Equal(t, tc.expected, tr.Requests()[0].URL, tc.name)
	}
}

func TestClient_MissingURL(t *testing.T) {
	t.Parallel()

	tr := newFakeTransport(respond(&request.Response{StatusCode: http.StatusOK}))
	c := newClient("", request.ClientConfig{}, tr)

	call, err := c.Request(context.Background(), request.Get("/a"))
	assert.Nil(t, call)
	var missingURLErr *request.MissingURLError
	require.ErrorAs(t, err, &missingURLErr)
	assert.Equal(t, "/a", missingURLErr.URI)
	assert.Empty(t, tr.Requests())

	// Client level operations
	assert.ErrorIs(t, c.Abort(), client.ErrNoPendingRequest)
	_, err = c.OnHeadersReceived(func(transport.HeadersEvent) {})
	assert.ErrorIs(t, err, client.ErrNoPendingRequest)
	assert.ErrorIs(t, c.OffHeadersReceived(1), client.ErrNoPendingRequest)
}

func TestClient_MergeClientConfig(t *testing.T) {
	t.Parallel()

	tr := newFakeTransport(respond(&request.Response{StatusCode: http.StatusOK}))
	cfg := request.ClientConfig{Header: map[string]string{"X-Client": "1"}, Method: http.MethodPut}
	c := newClient("http://h", cfg, tr)

	// Client defaults
	_, err := c.Do(context.Background(), request.CallConfig{URI: "/a", Data: "body"})
	require.NoError(t, err)

	// Call overrides client defaults, header map is replaced
	_, err = c.Do(context.Background(), request.Post("/b").AndHeader("X-Call", "2"))
	require.NoError(t, err)
	tr.Wait()

	assert.Equal(t, []transport.Request{
		{URL: "http://h/a", Method: http.MethodPut, Header: map[string]string{"X-Client": "1"}, Data: "body"},
		{URL: "http://h/b", Method: http.MethodPost, Header: map[string]string{"X-Call": "2"}},
	}, tr.Requests())
}

func TestClient_RequestInterceptors(t *testing.T) {
	t.Parallel()

	tr := newFakeTransport(respond(&request.Response{StatusCode: http.StatusOK}))
	c := newClient("http://h", request.ClientConfig{Header: map[string]string{"X-Client": "1"}}, tr)

	var received []request.CallConfig
	var lock sync.Mutex
	record := func(cfg request.CallConfig) {
		lock.Lock()
		defer lock.Unlock()
		received = append(received, cfg)
	}

	c.Interceptors().Request.Use(func(cfg request.CallConfig) request.CallConfig {
		record(cfg)
		return request.CallConfig{Header: map[string]string{"X-First": "1"}}
	}, nil)
	c.Interceptors().Request.Use(func(cfg request.CallConfig) request.CallConfig {
		record(cfg)
		return request.CallConfig{URI: "/second"}
	}, nil)

	_, err := c.Do(context.Background(), request.Post("/orig").WithData("body"))
	require.NoError(t, err)
	tr.Wait()

	// Each interceptor receives the effective configuration, not the accumulator
	effective := request.CallConfig{URI: "/orig", Method: http.MethodPost, Header: map[string]string{"X-Client": "1"}, Data: "body"}
	assert.Equal(t, []request.CallConfig{effective, effective}, received)

	// Results are merged over the skeleton, fields not returned by interceptors have skeleton values
	assert.Equal(t, []transport.Request{
		{URL: "http://h/second", Method: http.MethodGet, Header: map[string]string{"X-First": "1"}},
	}, tr.Requests())
}

func TestClient_EjectKeepsLength(t *testing.T) {
	t.Parallel()

	for n := 1; n <= 4; n++ {
		for k := 0; k < n; k++ {
			tr := newFakeTransport(respond(&request.Response{StatusCode: http.StatusOK}))
			c := newClient("http://h", request.ClientConfig{}, tr)

			var invoked []int
			var handles []*interceptor.Handle
			for i := 0; i < n; i++ {
				i := i
				handles = append(handles, c.Interceptors().Request.Use(func(cfg request.CallConfig) request.CallConfig {
					invoked = append(invoked, i)
					return cfg
				}, nil))
			}

			c.Interceptors().Request.Eject(handles[k])
			assert.Equal(t, n, c.Interceptors().Request.Len())

			_, err := c.Do(context.Background(), request.Get("/a"))
			require.NoError(t, err)
			tr.Wait()

			var expected []int
			for i := 0; i < n; i++ {
				if i != k {
					expected = append(expected, i)
				}
			}
			assert.Equal(t, expected, invoked, fmt.Sprintf("n=%d, k=%d", n, k))
			assert.Equal(t, "http://h/a", tr.Requests()[0].URL)
		}
	}
}

func TestClient_EjectInvalidHandle(t *testing.T) {
	t.Parallel()

	logger, hook := logTest.NewNullLogger()
	tr := newFakeTransport(respond(&request.Response{StatusCode: http.StatusOK}))
	c := newClient("http://h", request.ClientConfig{}, tr, client.WithLogger(logger))

	c.Interceptors().Request.Use(func(cfg request.CallConfig) request.CallConfig {
		return cfg.WithURI("/intercepted")
	}, nil)
	c.Interceptors().Response.Use(nil, nil)

	c.Interceptors().Request.Eject(nil)
	c.Interceptors().Response.Eject(nil)
	assert.Equal(t, 1, c.Interceptors().Request.Len())
	assert.Equal(t, 1, c.Interceptors().Response.Len())

	require.Len(t, hook.AllEntries(), 2)
	assert.Equal(t, logrus.WarnLevel, hook.AllEntries()[0].Level)
	assert.Equal(t, "cannot eject interceptor: handle is not set", hook.AllEntries()[0].Message)

	// Behavior is unchanged
	_, err := c.Do(context.Background(), request.Get("/a"))
	require.NoError(t, err)
	tr.Wait()
	assert.Equal(t, "http://h/intercepted", tr.Requests()[0].URL)
}

func TestClient_Success_NoInterceptors(t *testing.T) {
	t.Parallel()

	raw := &request.Response{StatusCode: http.StatusOK, Header: http.Header{"X-A": {"1"}}, Data: map[string]any{"foo": "bar"}}
	tr := newFakeTransport(respond(raw))
	c := newClient("http://h", request.ClientConfig{}, tr)

	call, err := c.Request(context.Background(), request.Get("/a"))
	require.NoError(t, err)
	res, err := call.Wait(context.Background())
	require.NoError(t, err)
	tr.Wait()

	assert.Same(t, raw, res)
	assert.Equal(t, &request.Response{StatusCode: http.StatusOK, Header: http.Header{"X-A": {"1"}}, Data: map[string]any{"foo": "bar"}}, res)
	assert.Equal(t, client.StateSettledSuccess, call.State())
}

func TestClient_ResponseInterceptors(t *testing.T) {
	t.Parallel()

	tr := newFakeTransport(respond(&request.Response{StatusCode: http.StatusOK, Data: "raw"}))
	c := newClient("http://h", request.ClientConfig{}, tr)

	var calls []string
	c.Interceptors().Response.Use(func(res *request.Response, _ interceptor.ResolveFunc, _ interceptor.RejectFunc) *request.Response {
		calls = append(calls, fmt.Sprintf("first %v", res.Data))
		return &request.Response{Data: "modified"}
	}, nil)
	c.Interceptors().Response.Use(func(res *request.Response, _ interceptor.ResolveFunc, _ interceptor.RejectFunc) *request.Response {
		calls = append(calls, fmt.Sprintf("second %v", res.Data))
		return nil
	}, nil)

	res, err := c.Do(context.Background(), request.Get("/a"))
	require.NoError(t, err)
	tr.Wait()

	assert.Equal(t, &request.Response{StatusCode: http.StatusOK, Data: "modified"}, res)
	assert.Equal(t, []string{"first raw", "second modified"}, calls)
}

func TestClient_ResponseInterceptor_Reject(t *testing.T) {
	t.Parallel()

	tr := newFakeTransport(respond(&request.Response{StatusCode: http.StatusOK, Data: map[string]any{"code": "E001"}}))
	c := newClient("http://h", request.ClientConfig{}, tr)

	c.Interceptors().Response.Use(func(res *request.Response, _ interceptor.ResolveFunc, reject interceptor.RejectFunc) *request.Response {
		if data, ok := res.Data.(map[string]any); ok && data["code"] != nil {
			reject(fmt.Errorf(`api error "%s"`, data["code"]))
		}
		return nil
	}, nil)

	call, err := c.Request(context.Background(), request.Get("/a"))
	require.NoError(t, err)
	_, err = call.Wait(context.Background())
	assert.EqualError(t, err, `api error "E001"`)
	tr.Wait()
	assert.Equal(t, client.StateSettledError, call.State())
}

func TestClient_ResponseInterceptor_ResolveFirstWins(t *testing.T) {
	t.Parallel()

	tr := newFakeTransport(respond(&request.Response{StatusCode: http.StatusOK, Data: "raw"}))
	c := newClient("http://h", request.ClientConfig{}, tr)

	early := &request.Response{StatusCode: http.StatusOK, Data: "early"}
	c.Interceptors().Response.Use(func(_ *request.Response, resolve interceptor.ResolveFunc, reject interceptor.RejectFunc) *request.Response {
		resolve(early)
		reject(errors.New("ignored"))
		return &request.Response{Data: "late"}
	}, nil)

	res, err := c.Do(context.Background(), request.Get("/a"))
	require.NoError(t, err)
	tr.Wait()
	assert.Same(t, early, res)
	assert.Equal(t, "early", res.Data)
}

func TestClient_ErrorStatus(t *testing.T) {
	t.Parallel()

	raw := &request.Response{StatusCode: http.StatusNotFound, Data: "not found"}
	tr := newFakeTransport(respond(raw))
	c := newClient("http://h", request.ClientConfig{}, tr)

	var handled []error
	var intercepted bool
	c.Interceptors().Response.Use(func(res *request.Response, _ interceptor.ResolveFunc, _ interceptor.RejectFunc) *request.Response {
		intercepted = true
		return res
	}, func(err error) {
		handled = append(handled, err)
	})
	c.Interceptors().Request.Use(nil, func(err error) {
		assert.Fail(t, "request error handler must not be called")
	})

	call, err := c.Request(context.Background(), request.Get("/a"))
	require.NoError(t, err)
	_, err = call.Wait(context.Background())
	tr.Wait()

	var statusErr *request.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Same(t, raw, statusErr.Response)
	assert.Equal(t, http.StatusNotFound, statusErr.StatusCode())
	assert.Equal(t, `request GET "http://h/a" failed: 404 Not Found`, err.Error())

	// Handler is called once, with the same error
	require.Len(t, handled, 1)
	assert.Same(t, statusErr, handled[0])
	assert.False(t, intercepted)
	assert.Equal(t, client.StateSettledError, call.State())
}

func TestClient_Fail_RequestErrorHandler(t *testing.T) {
	t.Parallel()

	tr := newFakeTransport(fail(request.PhaseRequest, "timeout"))
	c := newClient("http://h", request.ClientConfig{}, tr)

	var handled []error
	c.Interceptors().Request.Use(nil, func(err error) {
		handled = append(handled, err)
	})

	_, err := c.Do(context.Background(), request.Get("/a"))
	tr.Wait()

	var transportErr *request.TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.Equal(t, "request:fail timeout", transportErr.ErrMsg)
	require.Len(t, handled, 1)
	assert.Same(t, transportErr, handled[0])
}

func TestClient_Fail_ErrorHandlersRouting(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name            string
		phase           request.Phase
		requestHandler  bool
		responseHandler bool
		expected        []string
	}{
		{name: "request phase, both", phase: request.PhaseRequest, requestHandler: true, responseHandler: true, expected: []string{"request"}},
		{name: "request phase, response only", phase: request.PhaseRequest, responseHandler: true, expected: []string{"response"}},
		{name: "response phase, both", phase: request.PhaseResponse, requestHandler: true, responseHandler: true, expected: []string{"response"}},
		{name: "response phase, request only", phase: request.PhaseResponse, requestHandler: true, expected: nil},
		{name: "no handlers", phase: request.PhaseRequest, expected: nil},
	}

	for _, tc := range cases {
		tr := newFakeTransport(fail(tc.phase, "network error"))
		c := newClient("http://h", request.ClientConfig{}, tr)

		var handled []string
		if tc.requestHandler {
			c.Interceptors().Request.Use(nil, func(error) { handled = append(handled, "request") })
		}
		if tc.responseHandler {
			c.Interceptors().Response.Use(nil, func(error) { handled = append(handled, "response") })
		}

		_, err := c.Do(context.Background(), request.Get("/a"))
		tr.Wait()
		assert.Equal(t, fmt.Sprintf(`request GET "http://h/a" failed: %s:fail network error`, tc.phase), err.Error(), tc.name)
		assert.Equal(t, tc.expected, handled, tc.name)
	}
}

func TestClient_EjectedErrorHandler(t *testing.T) {
	t.Parallel()

	tr := newFakeTransport(fail(request.PhaseRequest, "timeout"))
	c := newClient("http://h", request.ClientConfig{}, tr)

	var handled []string
	h := c.Interceptors().Request.Use(nil, func(error) { handled = append(handled, "request") })
	c.Interceptors().Response.Use(nil, func(error) { handled = append(handled, "response") })
	c.Interceptors().Request.Eject(h)

	// The ejected handler is a no-op, but it still counts as present
	_, err := c.Do(context.Background(), request.Get("/a"))
	require.Error(t, err)
	tr.Wait()
	assert.Empty(t, handled)
}

func TestClient_Loading(t *testing.T) {
	t.Parallel()

	notifier := &recordingNotifier{}
	tr := newFakeTransport(respond(&request.Response{StatusCode: http.StatusOK}))
	c := newClient("http://h", request.ClientConfig{}, tr, client.WithNotifier(notifier))

	_, err := c.Do(context.Background(), request.Get("/a").WithLoading("Loading..."))
	require.NoError(t, err)
	tr.Wait()

	// Loading is hidden on complete, also if it was not shown
	_, err = c.Do(context.Background(), request.Get("/b"))
	require.NoError(t, err)
	tr.Wait()

	assert.Equal(t, []string{"show loading Loading...", "hide loading", "hide loading"}, notifier.Events())
}

func TestClient_Loading_Coordinator(t *testing.T) {
	t.Parallel()

	notifier := &recordingNotifier{}
	coordinator := notify.NewCoordinator(notifier)
	tr := newFakeTransport(func(req transport.Request, callbacks transport.Callbacks, _ *fakeTask) {
		// Toast shown during the request hides the loading
		coordinator.ShowToast(notify.ToastOptions{Title: "Saved"})
		callbacks.Success(&request.Response{StatusCode: http.StatusOK})
	})
	c := newClient("http://h", request.ClientConfig{}, tr, client.WithNotifier(coordinator))

	_, err := c.Do(context.Background(), request.Get("/a").WithLoading("Loading..."))
	require.NoError(t, err)
	tr.Wait()

	// Hide loading on complete is suppressed by the visible toast
	assert.Equal(t, []string{"show loading Loading...", "hide loading", "show toast Saved"}, notifier.Events())
	assert.True(t, coordinator.ToastActive())
	assert.False(t, coordinator.LoadingActive())
}

func TestClient_Abort(t *testing.T) {
	t.Parallel()

	tr := newFakeTransport(waitForAbort)
	c := newClient("http://h", request.ClientConfig{}, tr)

	call1, err := c.Request(context.Background(), request.Get("/1"))
	require.NoError(t, err)
	call2, err := c.Request(context.Background(), request.Get("/2"))
	require.NoError(t, err)
	assert.Equal(t, client.StateSent, call1.State())
	assert.Equal(t, client.StateSent, call2.State())

	// Client aborts the most recent call only
	require.NoError(t, c.Abort())
	_, err = call2.Wait(context.Background())
	var transportErr *request.TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.Equal(t, "request:fail abort", transportErr.ErrMsg)
	assert.ErrorIs(t, err, context.Canceled)
	select {
	case <-call1.Done():
		assert.Fail(t, "the first call must not be aborted")
	default:
	}

	// Abort the first call by its own handle
	call1.Abort()
	_, err = call1.Wait(context.Background())
	require.ErrorAs(t, err, &transportErr)
	assert.Equal(t, "http://h/1", transportErr.URL)
	tr.Wait()
}

func TestClient_Wait_ContextDone(t *testing.T) {
	t.Parallel()

	tr := newFakeTransport(waitForAbort)
	c := newClient("http://h", request.ClientConfig{}, tr)

	call, err := c.Request(context.Background(), request.Get("/a"))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = call.Wait(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, client.StateSent, call.State())

	call.Abort()
	<-call.Done()
	tr.Wait()
	assert.Equal(t, client.StateSettledError, call.State())
}

func TestClient_HeadersReceived(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	tr := newFakeTransport(func(_ transport.Request, callbacks transport.Callbacks, task *fakeTask) {
		<-release
		task.Notify(transport.HeadersEvent{StatusCode: http.StatusOK, Header: http.Header{"X-A": {"1"}}})
		callbacks.Success(&request.Response{StatusCode: http.StatusOK})
	})
	c := newClient("http://h", request.ClientConfig{}, tr)

	call, err := c.Request(context.Background(), request.Get("/a"))
	require.NoError(t, err)

	var events []transport.HeadersEvent
	_, err = c.OnHeadersReceived(func(event transport.HeadersEvent) {
		events = append(events, event)
	})
	require.NoError(t, err)
	id, err := c.OnHeadersReceived(func(event transport.HeadersEvent) {
		assert.Fail(t, "removed listener must not be called")
	})
	require.NoError(t, err)
	require.NoError(t, c.OffHeadersReceived(id))

	close(release)
	_, err = call.Wait(context.Background())
	require.NoError(t, err)
	tr.Wait()

	assert.Equal(t, []transport.HeadersEvent{{StatusCode: http.StatusOK, Header: http.Header{"X-A": {"1"}}}}, events)
}

func TestClient_ConcurrentCalls(t *testing.T) {
	t.Parallel()

	tr := newFakeTransport(func(req transport.Request, callbacks transport.Callbacks, _ *fakeTask) {
		callbacks.Success(&request.Response{StatusCode: http.StatusOK, Data: req.URL})
	})
	c := newClient("http://h", request.ClientConfig{}, tr)

	var calls []*client.Call
	for i := 0; i < 20; i++ {
		call, err := c.Request(context.Background(), request.Get(fmt.Sprintf("/%d", i)))
		require.NoError(t, err)
		calls = append(calls, call)
	}

	// Each call settles with its own response
	for i, call := range calls {
		res, err := call.Wait(context.Background())
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("http://h/%d", i), res.Data)
	}
	tr.Wait()
}
