package otel

import (
	"errors"
	"net/url"
	"sort"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"

	"github.com/keboola/go-minireq/pkg/request"
	"github.com/keboola/go-minireq/pkg/transport"
)

const (
	maskedAttrValue = "****"
)

type attributes struct {
	config config
	// definition attributes for span only, from the call passed to the client
	definition []attribute.KeyValue
	// effective attributes for span only, from the call merged with the client defaults
	effective []attribute.KeyValue
	// request attributes for span and metrics
	request []attribute.KeyValue
	// requestExtra attributes for span only
	requestExtra []attribute.KeyValue
	// response attributes for span and metrics
	response []attribute.KeyValue
	// responseExtra attributes for span only
	responseExtra []attribute.KeyValue
	// result attributes for span and metrics
	result []attribute.KeyValue
}

func newAttributes(cfg config, call request.CallConfig) *attributes {
	out := &attributes{config: cfg}
	uri, err := url.Parse(call.URI)
	if err != nil {
		uri = &url.URL{}
	}
	out.definition = []attribute.KeyValue{
		attrResourceName.String(mustURLPathUnescape(uri.Path)),
		attribute.String("definition.method", call.Method),
		attribute.String("definition.uri", out.redactedURL(uri)),
		attribute.Bool("definition.loading", call.Loading != nil),
	}
	if call.BaseURL != "" {
		out.definition = append(out.definition, attribute.String("definition.base_url", call.BaseURL))
	}
	return out
}

func (v *attributes) SetFromEffective(effective request.CallConfig) {
	v.effective = append(v.effective, attribute.String("effective.method", effective.Method))
	v.effective = append(v.effective, v.headerAttrs("effective.header.", effective.Header)...)
}

func (v *attributes) SetFromRequest(req transport.Request) {
	reqURL, err := url.Parse(req.URL)
	if err != nil {
		reqURL = &url.URL{}
	}

	// Base
	v.request = []attribute.KeyValue{
		semconv.HTTPMethodKey.String(req.Method),
		semconv.HTTPURLKey.String(v.redactedURL(reqURL)),
		semconv.NetPeerNameKey.String(reqURL.Hostname()),
		attribute.String("http.url.path", mustURLPathUnescape(reqURL.Path)),
	}

	// Extra
	v.requestExtra = v.headerAttrs("http.header.", req.Header)
}

func (v *attributes) SetFromResponse(res *request.Response) {
	// Base
	v.response = []attribute.KeyValue{semconv.HTTPStatusCodeKey.Int(res.StatusCode)}

	// Extra
	var attrs []attribute.KeyValue
	for key, values := range res.Header {
		key = strings.ToLower(key)
		value := strings.Join(values, ";")
		if v.config.redactedHeader.has(key) {
			value = maskedAttrValue
		}
		attrs = append(attrs, attribute.String("http.response.header."+key, value))
	}
	sort.SliceStable(attrs, func(i, j int) bool {
		return attrs[i].Key < attrs[j].Key
	})
	v.responseExtra = attrs
}

func (v *attributes) SetResult(res *request.Response, err error) {
	var statusErr *request.StatusError
	var transportErr *request.TransportError
	errors.As(err, &statusErr)
	errors.As(err, &transportErr)

	var phase string
	if transportErr != nil {
		phase = string(transportErr.Phase)
	}

	v.result = []attribute.KeyValue{
		attribute.Bool("result.success", isSuccess(res, err)),
		attribute.Bool("result.error.has", err != nil),
		attribute.Bool("result.error.status", statusErr != nil),
		attribute.Bool("result.error.transport", transportErr != nil),
		attribute.String("result.error.phase", phase),
	}
}

// Metrics returns attributes for the settlement metrics.
func (v *attributes) Metrics() []attribute.KeyValue {
	out := make([]attribute.KeyValue, 0, len(v.request)+len(v.response)+len(v.result))
	out = append(out, v.request...)
	out = append(out, v.response...)
	out = append(out, v.result...)
	return out
}

func (v *attributes) headerAttrs(prefix string, header map[string]string) []attribute.KeyValue {
	var attrs []attribute.KeyValue
	for key, value := range header {
		key = strings.ToLower(key)
		if v.config.redactedHeader.has(key) {
			value = maskedAttrValue
		}
		attrs = append(attrs, attribute.String(prefix+key, value))
	}
	sort.SliceStable(attrs, func(i, j int) bool {
		return attrs[i].Key < attrs[j].Key
	})
	return attrs
}

func (v *attributes) redactedURL(in *url.URL) string {
	out := *in
	out.User = nil
	if in.RawQuery != "" {
		query := in.Query()
		keys := make([]string, 0, len(query))
		for k := range query {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		var parts []string
		for _, k := range keys {
			redacted := v.config.redactedQuery.has(k)
			for _, value := range query[k] {
				if redacted {
					value = maskedAttrValue
				} else {
					value = url.QueryEscape(value)
				}
				parts = append(parts, url.QueryEscape(k)+"="+value)
			}
		}
		out.RawQuery = strings.Join(parts, "&")
	}
	return mustURLPathUnescape(out.String())
}
