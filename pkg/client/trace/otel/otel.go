// Package otel provides OpenTelemetry spans and metrics for calls sent by the client.Client.
//
// Each call produces:
//   - Root span "keboola.go.minireq.request", from the request interceptors to the settlement.
//   - Child span "keboola.go.minireq.send", from sending to the response or the transport failure.
//   - Low-level spans "http.dns", "http.getconn", "http.connect", "http.tls" under the send span,
//     they are created only by the transport.HTTPTransport connecting to a real server.
//   - Metrics "keboola.go.minireq.request.in_flight" and "keboola.go.minireq.request.duration".
//
// Values of credentials headers are always masked, see WithRedactedHeaders and WithRedactedQueryParam.
// The trace context is injected into the request header if WithPropagators is used.
package otel

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	otelMetric "go.opentelemetry.io/otel/metric"
	metricNoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	otelTrace "go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/keboola/go-minireq/pkg/client/trace"
	"github.com/keboola/go-minireq/pkg/request"
	"github.com/keboola/go-minireq/pkg/transport"
)

const (
	traceAppName     = "github.com/keboola/go-minireq"
	attrResourceName = attribute.Key("resource.name")
	// Call spans and metrics.
	spanPrefix      = "keboola.go.minireq."
	meterPrefix     = "keboola.go.minireq."
	requestSpanName = spanPrefix + "request"
	sendSpanName    = spanPrefix + "send"
	headersEvent    = "http.headers.received"
	// Low-level spans.
	httpDNSSpanName          = "http.dns"
	httpGetConnSpanName      = "http.getconn"
	httpConnectSpanName      = "http.connect"
	httpTLSHandshakeSpanName = "http.tls"
	attrDNSAddresses         = attribute.Key("http.dns.addrs")
	attrRemoteAddr           = attribute.Key("http.remote")
	attrLocalAddr            = attribute.Key("http.local")
	attrConnectionReused     = attribute.Key("http.conn.reused")
	attrConnectionWasIdle    = attribute.Key("http.conn.wasidle")
	attrConnectionIdleTime   = attribute.Key("http.conn.idletime")
	attrConnectionNetwork    = attribute.Key("http.conn.network")
	// DataDog compatibility.
	attrSpanKind = attribute.Key("span.kind")
	attrSpanType = attribute.Key("span.type")
)

// callTrace holds the telemetry state of one call.
type callTrace struct {
	config config
	tracer otelTrace.Tracer
	meters *meters
	attrs  *attributes

	ctx       context.Context // root span context
	root      otelTrace.Span
	sendCtx   context.Context
	send      otelTrace.Span
	startTime time.Time
}

// NewTrace returns a trace.Factory for the client.WithTrace option.
// Nil providers are replaced by no-op implementations.
func NewTrace(tracerProvider otelTrace.TracerProvider, meterProvider otelMetric.MeterProvider, opts ...Option) trace.Factory {
	if tracerProvider == nil {
		tracerProvider = noop.NewTracerProvider()
	}
	if meterProvider == nil {
		meterProvider = metricNoop.NewMeterProvider()
	}

	cfg := newConfig(opts)
	tracer := tracerProvider.Tracer(traceAppName)
	m := newMeters(meterProvider.Meter(traceAppName))

	return func(ctx context.Context, call request.CallConfig) (context.Context, *trace.ClientTrace) {
		t := &callTrace{config: cfg, tracer: tracer, meters: m, attrs: newAttributes(cfg, call)}
		t.ctx, t.root = tracer.Start(ctx, requestSpanName, t.spanOptions(t.attrs.definition)...)
		t.sendCtx = t.ctx

		tc := &trace.ClientTrace{
			GotRequest:        t.gotRequest,
			RequestConfigured: t.requestConfigured,
			HeadersReceived:   t.headersReceived,
			ResponseReceived:  t.responseReceived,
			RequestFailed:     t.requestFailed,
			RequestSettled:    t.requestSettled,
		}
		registerHTTPTrace(tc, tracer, func() context.Context { return t.sendCtx })
		return t.ctx, tc
	}
}

func (t *callTrace) spanOptions(attrs ...[]attribute.KeyValue) []otelTrace.SpanStartOption {
	out := []otelTrace.SpanStartOption{
		otelTrace.WithSpanKind(otelTrace.SpanKindClient),
		otelTrace.WithAttributes(attrSpanKind.String("client"), attrSpanType.String("http")),
	}
	for _, a := range attrs {
		out = append(out, otelTrace.WithAttributes(a...))
	}
	return out
}

func (t *callTrace) gotRequest(effective request.CallConfig) {
	t.attrs.SetFromEffective(effective)
	t.root.SetAttributes(t.attrs.effective...)
}

func (t *callTrace) requestConfigured(req *transport.Request) {
	t.startTime = time.Now()
	t.attrs.SetFromRequest(*req)
	t.meters.inFlight.Add(t.ctx, 1, otelMetric.WithAttributes(t.attrs.request...))

	t.root.SetAttributes(t.attrs.request...)
	t.sendCtx, t.send = t.tracer.Start(t.ctx, sendSpanName, t.spanOptions(t.attrs.request, t.attrs.requestExtra)...)

	if t.config.propagators != nil {
		if req.Header == nil {
			req.Header = make(map[string]string)
		}
		t.config.propagators.Inject(t.sendCtx, propagation.MapCarrier(req.Header))
	}
}

func (t *callTrace) headersReceived(event transport.HeadersEvent) {
	if t.send != nil {
		t.send.AddEvent(headersEvent, otelTrace.WithAttributes(semconv.HTTPStatusCodeKey.Int(event.StatusCode)))
	}
}

func (t *callTrace) responseReceived(res *request.Response) {
	t.attrs.SetFromResponse(res)
	if t.send == nil {
		return
	}
	t.send.SetAttributes(t.attrs.response...)
	t.send.SetAttributes(t.attrs.responseExtra...)
	if !res.IsSuccess() {
		err := fmt.Errorf(`HTTP status code: %d %s`, res.StatusCode, http.StatusText(res.StatusCode))
		t.send.RecordError(err)
		t.send.SetStatus(codes.Error, err.Error())
	}
	t.send.End()
	t.send = nil
}

func (t *callTrace) requestFailed(err *request.TransportError) {
	if t.send == nil {
		return
	}
	t.send.RecordError(err)
	t.send.SetStatus(codes.Error, err.ErrMsg)
	t.send.End()
	t.send = nil
}

func (t *callTrace) requestSettled(res *request.Response, err error) {
	t.attrs.SetResult(res, err)

	// The in_flight counter is decremented with the same attributes as it was incremented
	t.meters.inFlight.Add(t.ctx, -1, otelMetric.WithAttributes(t.attrs.request...))
	elapsed := float64(time.Since(t.startTime)) / float64(time.Millisecond)
	t.meters.duration.Record(t.ctx, elapsed, otelMetric.WithAttributes(t.attrs.Metrics()...))

	t.root.SetAttributes(t.attrs.response...)
	t.root.SetAttributes(t.attrs.responseExtra...)
	t.root.SetAttributes(t.attrs.result...)
	if err != nil {
		t.root.RecordError(err)
		t.root.SetStatus(codes.Error, err.Error())
		t.root.End(otelTrace.WithStackTrace(true))
		return
	}
	t.root.End()
}
