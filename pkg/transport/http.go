package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/keboola/go-minireq/pkg/request"
)

const DefaultUserAgent = "keboola-go-minireq"

// HTTPTransport is the default Transport, it sends requests by the standard net/http package.
//
// Request data is encoded:
//   - for GET, HEAD and DELETE requests as the URL query,
//   - as a form, if the Content-Type is "application/x-www-form-urlencoded",
//   - as JSON otherwise, string and []byte data are sent as they are.
//
// Response body is decoded according to the Content-Encoding header (gzip, br).
// JSON body is mapped to the Response.Data, other bodies are returned as a string.
type HTTPTransport struct {
	roundTripper http.RoundTripper
	header       http.Header
}

// NewHTTPTransport creates HTTPTransport with the DefaultRoundTripper.
func NewHTTPTransport() HTTPTransport {
	t := HTTPTransport{roundTripper: DefaultRoundTripper(), header: make(http.Header)}
	t.header.Set("User-Agent", DefaultUserAgent)
	t.header.Set("Accept-Encoding", "gzip, br")
	return t
}

// WithRoundTripper returns a clone of the HTTPTransport with the round tripper set.
func (t HTTPTransport) WithRoundTripper(rt http.RoundTripper) HTTPTransport {
	if rt == nil {
		panic(fmt.Errorf("round tripper cannot be nil"))
	}
	t.roundTripper = rt
	return t
}

// WithUserAgent returns a clone of the HTTPTransport with user agent set.
func (t HTTPTransport) WithUserAgent(v string) HTTPTransport {
	t.header = t.header.Clone()
	t.header.Set("User-Agent", v)
	return t
}

// Send the request in a new goroutine, it implements the Transport interface.
func (t HTTPTransport) Send(ctx context.Context, req Request, callbacks Callbacks) Task {
	// Method cannot be called on an empty value
	if t.roundTripper == nil {
		panic(fmt.Errorf("transport value is not initialized"))
	}

	ctx, cancel := context.WithCancel(ctx)
	task := &httpTask{cancel: cancel}
	go func() {
		defer cancel()
		t.send(ctx, task, req, callbacks)
	}()
	return task
}

func (t HTTPTransport) send(ctx context.Context, task *httpTask, def Request, callbacks Callbacks) {
	if callbacks.Complete != nil {
		defer callbacks.Complete()
	}
	fail := func(err *request.TransportError) {
		if callbacks.Fail != nil {
			callbacks.Fail(err)
		}
	}

	method := strings.ToUpper(def.Method)
	if method == "" {
		method = http.MethodGet
	}

	// Create request
	req, err := t.newRequest(ctx, method, def)
	if err != nil {
		fail(request.NewTransportError(request.PhaseRequest, method, def.URL, err.Error(), err))
		return
	}

	// Send request
	nativeClient := http.Client{Transport: t.roundTripper}
	res, err := nativeClient.Do(req)
	if err != nil {
		fail(request.NewTransportError(request.PhaseRequest, method, def.URL, sendErrorReason(task, err), err))
		return
	}
	defer res.Body.Close()

	// Headers
	cookies := res.Header.Values("Set-Cookie")
	headersEvent := HeadersEvent{StatusCode: res.StatusCode, Header: res.Header, Cookies: cookies}
	if callbacks.Headers != nil {
		callbacks.Headers(headersEvent)
	}
	task.listeners.Notify(headersEvent)

	// Body
	data, err := readBody(res)
	if err != nil {
		// The request context ended while reading the body, the request did not complete
		if task.isAborted() || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			fail(request.NewTransportError(request.PhaseRequest, method, def.URL, sendErrorReason(task, err), err))
			return
		}
		fail(request.NewTransportError(request.PhaseResponse, method, def.URL, err.Error(), err))
		return
	}

	if callbacks.Success != nil {
		callbacks.Success(&request.Response{StatusCode: res.StatusCode, Header: res.Header, Data: data, Cookies: cookies})
	}
}

func (t HTTPTransport) newRequest(ctx context.Context, method string, def Request) (*http.Request, error) {
	reqURL, err := url.Parse(def.URL)
	if err != nil {
		return nil, fmt.Errorf(`invalid url "%s": %w`, def.URL, err)
	}

	header := make(http.Header)
	for k, values := range t.header {
		for _, v := range values {
			header.Set(k, v)
		}
	}
	for k, v := range def.Header {
		header.Set(k, v)
	}

	var body io.Reader
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodDelete:
		query, err := request.EncodeQuery(def.Data)
		if err != nil {
			return nil, err
		}
		if query != "" {
			if reqURL.RawQuery == "" {
				reqURL.RawQuery = query
			} else {
				reqURL.RawQuery += "&" + query
			}
		}
	default:
		if def.Data != nil {
			if header.Get("Content-Type") == "" {
				header.Set("Content-Type", request.ContentTypeApplicationJSON)
			}
			content, err := encodeBody(def.Data, header.Get("Content-Type"))
			if err != nil {
				return nil, err
			}
			body = bytes.NewReader(content)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL.String(), body)
	if err != nil {
		return nil, err
	}
	req.Header = header
	return req, nil
}

func encodeBody(data any, contentType string) ([]byte, error) {
	switch v := data.(type) {
	case string:
		return []byte(v), nil
	case []byte:
		return v, nil
	}
	if strings.HasPrefix(strings.ToLower(contentType), request.ContentTypeForm) {
		str, err := request.EncodeQuery(data)
		if err != nil {
			return nil, fmt.Errorf(`cannot encode form body: %w`, err)
		}
		return []byte(str), nil
	}
	content, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf(`cannot encode JSON body: %w`, err)
	}
	return content, nil
}

func readBody(res *http.Response) (any, error) {
	if res.StatusCode == http.StatusNoContent || res.Body == nil {
		return nil, nil
	}

	body, err := Decode(res.Body, res.Header.Get("Content-Encoding"))
	if err != nil {
		return nil, err
	}
	defer body.Close()

	content, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf(`cannot read response body: %w`, err)
	}

	if request.IsJSONContentType(res.Header.Get("Content-Type")) && len(content) > 0 {
		var data any
		if err := json.Unmarshal(content, &data); err != nil {
			return nil, fmt.Errorf(`cannot decode JSON response: %w`, err)
		}
		return data, nil
	}
	return string(content), nil
}

func sendErrorReason(task *httpTask, err error) string {
	var netErr net.Error
	switch {
	case task.isAborted():
		return "abort"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.As(err, &netErr) && netErr.Timeout():
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "abort"
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return urlErr.Err.Error()
	}
	return err.Error()
}

// httpTask implements the Task interface.
type httpTask struct {
	cancel    context.CancelFunc
	listeners HeadersListeners

	lock    sync.Mutex
	aborted bool
}

func (t *httpTask) Abort() {
	t.lock.Lock()
	t.aborted = true
	t.lock.Unlock()
	t.cancel()
}

func (t *httpTask) OnHeadersReceived(fn HeadersFunc) ListenerID {
	return t.listeners.On(fn)
}

func (t *httpTask) OffHeadersReceived(id ListenerID) {
	t.listeners.Off(id)
}

func (t *httpTask) isAborted() bool {
	t.lock.Lock()
	defer t.lock.Unlock()
	return t.aborted
}
