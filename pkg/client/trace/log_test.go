package trace_test

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/keboola/go-utils/pkg/wildcards"
	"github.com/stretchr/testify/assert"

	"github.com/keboola/go-minireq/pkg/client"
	"github.com/keboola/go-minireq/pkg/client/trace"
	"github.com/keboola/go-minireq/pkg/request"
)

func TestLogTracer(t *testing.T) {
	t.Parallel()

	// Logs for trace testing
	var logs strings.Builder

	// Create client
	ctx := context.Background()
	c, mock := client.NewMockedClient("https://example.com", request.ClientConfig{}, client.WithTrace(trace.LogTracer(&logs)))

	// Mocked response
	mock.RegisterResponder("GET", `https://example.com/index`, httpmock.NewStringResponder(http.StatusOK, "OK"))
	mock.RegisterResponder("GET", `https://example.com/missing`, httpmock.NewStringResponder(http.StatusNotFound, "Not Found"))
	mock.RegisterResponder("GET", `https://example.com/error`, httpmock.NewErrorResponder(errors.New("some error")))

	// Expected trace
	expected := `
HTTP_REQUEST[0001] START   GET "https://example.com/index"
HTTP_REQUEST[0001] HEADERS GET "https://example.com/index" | 200 | %s
HTTP_REQUEST[0001] DONE    GET "https://example.com/index" | 200 | %s
HTTP_REQUEST[0001] SETTLED GET "https://example.com/index" | %s
HTTP_REQUEST[0002] START   GET "https://example.com/missing"
HTTP_REQUEST[0002] HEADERS GET "https://example.com/missing" | 404 | %s
HTTP_REQUEST[0002] DONE    GET "https://example.com/missing" | 404 | %s
HTTP_REQUEST[0002] SETTLED GET "https://example.com/missing" | %s | error=request GET "https://example.com/missing" failed: 404 Not Found
HTTP_REQUEST[0003] START   GET "https://example.com/error"
HTTP_REQUEST[0003] FAIL    GET "https://example.com/error" | request:fail %s | %s
HTTP_REQUEST[0003] SETTLED GET "https://example.com/error" | %s | error=request GET "https://example.com/error" failed: request:fail %s
`

	// Test
	res, err := c.Do(ctx, request.Get("/index"))
	assert.NoError(t, err)
	assert.Equal(t, "OK", res.Data)
	_, err = c.Do(ctx, request.Get("/missing"))
	assert.Error(t, err)
	_, err = c.Do(ctx, request.Get("/error"))
	assert.Error(t, err)
	wildcards.Assert(t, strings.TrimLeft(expected, "\n"), logs.String())
}
