package trace

import (
	"context"
	"fmt"
	"io"
	"net/http/httptrace"
	"sync"
	"sync/atomic"
	"time"

	"github.com/keboola/go-minireq/pkg/request"
	"github.com/keboola/go-minireq/pkg/transport"
)

type logTrace struct {
	ClientTrace
	wr   io.Writer
	lock *sync.Mutex
}

// LogTracer prints one line for each stage of a call to the writer.
// Calls are numbered, the lines of concurrent calls can be interleaved.
func LogTracer(wr io.Writer) Factory {
	var idGenerator uint64
	lock := &sync.Mutex{}
	return func(ctx context.Context, _ request.CallConfig) (context.Context, *ClientTrace) {
		requestID := atomic.AddUint64(&idGenerator, 1)

		var method, url string
		var connStartTime time.Time
		var startTime time.Time

		t := &logTrace{wr: wr, lock: lock}
		t.ConnectStart = func(network, addr string) {
			connStartTime = time.Now()
		}
		t.GotConn = func(info httptrace.GotConnInfo) {
			var infoStr string
			if info.Reused {
				if info.WasIdle {
					infoStr = fmt.Sprintf("reused conn (was idle=%s)", info.IdleTime)
				} else {
					infoStr = "reused conn"
				}
			} else {
				infoStr = fmt.Sprintf("new conn | %s", time.Since(connStartTime))
			}
			t.log(requestID, fmt.Sprintf(`CONN    %s "%s" | %s`, method, url, infoStr))
		}
		t.RequestConfigured = func(req *transport.Request) {
			method, url = req.Method, req.URL
			startTime = time.Now()
			t.log(requestID, fmt.Sprintf(`START   %s "%s"`, method, url))
		}
		t.HeadersReceived = func(event transport.HeadersEvent) {
			t.log(requestID, fmt.Sprintf(`HEADERS %s "%s" | %d | %s`, method, url, event.StatusCode, time.Since(startTime)))
		}
		t.ResponseReceived = func(res *request.Response) {
			t.log(requestID, fmt.Sprintf(`DONE    %s "%s" | %d | %s`, method, url, res.StatusCode, time.Since(startTime)))
		}
		t.RequestFailed = func(err *request.TransportError) {
			t.log(requestID, fmt.Sprintf(`FAIL    %s "%s" | %s | %s`, method, url, err.ErrMsg, time.Since(startTime)))
		}
		t.RequestSettled = func(_ *request.Response, err error) {
			var errorStr string
			if err != nil {
				errorStr = fmt.Sprintf(" | error=%s", err)
			}
			t.log(requestID, fmt.Sprintf(`SETTLED %s "%s" | %s%s`, method, url, time.Since(startTime), errorStr))
		}
		return ctx, &t.ClientTrace
	}
}

func (t *logTrace) log(requestID uint64, a ...any) {
	t.lock.Lock()
	defer t.lock.Unlock()
	a = append([]any{fmt.Sprintf("HTTP_REQUEST[%04d]", requestID)}, a...)
	_, _ = fmt.Fprintln(t.wr, a...)
}
