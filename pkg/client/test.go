package client

import (
	"os"

	"github.com/jarcoal/httpmock"

	"github.com/keboola/go-minireq/pkg/client/trace"
	"github.com/keboola/go-minireq/pkg/notify"
	"github.com/keboola/go-minireq/pkg/request"
	"github.com/keboola/go-minireq/pkg/transport"
)

// NewTestClient creates the Client for tests.
//
// If the TEST_HTTP_CLIENT_VERBOSE environment variable is set to "true",
// then all requests and responses are dumped to stdout.
//
// Output may contain unmasked tokens, do not use it in production.
func NewTestClient(url string, cfg request.ClientConfig, opts ...Option) *Client {
	defaults := []Option{WithNotifier(notify.NopNotifier{})}
	if os.Getenv("TEST_HTTP_CLIENT_VERBOSE") == "true" { //nolint:forbidigo
		defaults = append(defaults, WithTrace(trace.DumpTracer(os.Stdout)))
	}
	return New(url, cfg, append(defaults, opts...)...)
}

// NewMockedClient creates the Client with mocked HTTP transport.
func NewMockedClient(url string, cfg request.ClientConfig, opts ...Option) (*Client, *httpmock.MockTransport) {
	mockTransport := httpmock.NewMockTransport()
	opts = append(opts, WithTransport(transport.NewHTTPTransport().WithRoundTripper(mockTransport)))
	return NewTestClient(url, cfg, opts...), mockTransport
}
