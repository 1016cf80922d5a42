package trace

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/davecgh/go-spew/spew"

	"github.com/keboola/go-minireq/pkg/request"
	"github.com/keboola/go-minireq/pkg/transport"
)

const dumpTraceMaxLength = 2000

type dumpTrace struct {
	ClientTrace
	wr   io.Writer
	lock *sync.Mutex
	out  strings.Builder
}

// DumpTracer dumps the request and the response of each call to a writer.
// Output may contain unmasked tokens, do not use it in production!
func DumpTracer(wr io.Writer) Factory {
	lock := &sync.Mutex{}
	spewCfg := &spew.ConfigState{Indent: " ", DisablePointerAddresses: true, DisableCapacities: true, SortKeys: true}
	return func(ctx context.Context, _ request.CallConfig) (context.Context, *ClientTrace) {
		var startTime, headersTime time.Time
		var response *request.Response

		t := &dumpTrace{wr: wr, lock: lock}
		t.RequestConfigured = func(req *transport.Request) {
			startTime = time.Now()
			t.log()
			t.log(">>>>>> HTTP DUMP")
			t.log(req.Method, req.URL)
			t.logHeader(req.Header)
			if req.Data != nil {
				t.log("------")
				t.dump(spewCfg.Sdump(req.Data))
			}
		}
		t.HeadersReceived = func(event transport.HeadersEvent) {
			headersTime = time.Now()
		}
		t.ResponseReceived = func(res *request.Response) {
			response = res
		}
		t.RequestSettled = func(res *request.Response, err error) {
			if res != nil {
				response = res
			}

			// Dump response
			t.log("------")
			if err != nil {
				t.log("ERROR: ", err)
			}
			if response != nil {
				t.log(fmt.Sprintf("HTTP %d %s", response.StatusCode, http.StatusText(response.StatusCode)))
				for _, k := range sortedKeys(response.Header) {
					t.log(fmt.Sprintf("%s: %s", k, strings.Join(response.Header.Values(k), ";")))
				}
				if response.Data != nil {
					t.log("------")
					t.dump(spewCfg.Sdump(response.Data))
				}
			}
			t.log("<<<<<< HTTP DUMP END")

			var headersAt time.Duration
			if !headersTime.IsZero() {
				headersAt = headersTime.Sub(startTime)
			}
			t.log()
			t.log(">>>>>> HTTP REQUEST SETTLED", "| ERROR:", err, "| HEADERS AT:", headersAt, "| DONE AT:", time.Since(startTime))
			t.flush()
		}
		return ctx, &t.ClientTrace
	}
}

func (t *dumpTrace) logHeader(header map[string]string) {
	keys := make([]string, 0, len(header))
	for k := range header {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		t.log(fmt.Sprintf("%s: %s", k, header[k]))
	}
}

func (t *dumpTrace) dump(body string) {
	body = strings.TrimSpace(body)
	if len(body) > dumpTraceMaxLength && os.Getenv("HTTP_DUMP_TRACE_FULL") != "true" { //nolint:forbidigo
		t.log(body[:dumpTraceMaxLength])
		t.log("... (set env HTTP_DUMP_TRACE_FULL=true to see full output)")
	} else {
		t.log(body)
	}
}

// log buffers the line, the whole dump of a call is written at once by flush.
func (t *dumpTrace) log(a ...any) {
	_, _ = fmt.Fprintln(&t.out, a...)
}

func (t *dumpTrace) flush() {
	t.lock.Lock()
	defer t.lock.Unlock()
	_, _ = io.WriteString(t.wr, t.out.String())
	t.out.Reset()
}

func sortedKeys(header http.Header) []string {
	keys := make([]string, 0, len(header))
	for k := range header {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
