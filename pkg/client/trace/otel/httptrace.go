package otel

import (
	"context"
	"crypto/tls"
	"net/http/httptrace"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	otelTrace "go.opentelemetry.io/otel/trace"

	"github.com/keboola/go-minireq/pkg/client/trace"
)

// httpSpan is a low-level span, at most one of each kind is open at a time.
type httpSpan struct {
	tracer otelTrace.Tracer
	parent func() context.Context
	name   string
	span   otelTrace.Span
}

func (s *httpSpan) start(attrs ...attribute.KeyValue) {
	_, s.span = s.tracer.Start(
		s.parent(),
		s.name,
		otelTrace.WithSpanKind(otelTrace.SpanKindClient),
		otelTrace.WithAttributes(attrs...),
	)
}

func (s *httpSpan) end(err error, attrs ...attribute.KeyValue) {
	if s.span == nil {
		return
	}
	s.span.SetAttributes(attrs...)
	if err != nil {
		s.span.RecordError(err)
		s.span.SetStatus(codes.Error, err.Error())
	}
	s.span.End()
	s.span = nil
}

// registerHTTPTrace sets httptrace hooks, they are invoked only by the transport.HTTPTransport.
// Spans are children of the send span, the parent returns its context.
func registerHTTPTrace(tc *trace.ClientTrace, tracer otelTrace.Tracer, parent func() context.Context) {
	newSpan := func(name string) *httpSpan {
		return &httpSpan{tracer: tracer, parent: parent, name: name}
	}

	dns := newSpan(httpDNSSpanName)
	tc.DNSStart = func(info httptrace.DNSStartInfo) {
		dns.start(semconv.NetHostName(info.Host))
	}
	tc.DNSDone = func(info httptrace.DNSDoneInfo) {
		addrs := make([]string, 0, len(info.Addrs))
		for _, addr := range info.Addrs {
			addrs = append(addrs, addr.String())
		}
		dns.end(info.Err, attrDNSAddresses.String(strings.Join(addrs, ";")))
	}

	getConn := newSpan(httpGetConnSpanName)
	tc.GetConn = func(host string) {
		getConn.start(semconv.NetHostName(host))
	}
	tc.GotConn = func(info httptrace.GotConnInfo) {
		attrs := []attribute.KeyValue{
			attrRemoteAddr.String(info.Conn.RemoteAddr().String()),
			attrLocalAddr.String(info.Conn.LocalAddr().String()),
			attrConnectionReused.Bool(info.Reused),
			attrConnectionWasIdle.Bool(info.WasIdle),
		}
		if info.WasIdle {
			attrs = append(attrs, attrConnectionIdleTime.String(info.IdleTime.String()))
		}
		getConn.end(nil, attrs...)
	}

	connect := newSpan(httpConnectSpanName)
	tc.ConnectStart = func(network, addr string) {
		connect.start(attrRemoteAddr.String(addr), attrConnectionNetwork.String(network))
	}
	tc.ConnectDone = func(_, _ string, err error) {
		connect.end(err)
	}

	// Not reported if the http2.Transport is used directly.
	handshake := newSpan(httpTLSHandshakeSpanName)
	tc.TLSHandshakeStart = func() {
		handshake.start()
	}
	tc.TLSHandshakeDone = func(_ tls.ConnectionState, err error) {
		handshake.end(err)
	}
}
