package otel

import (
	"strings"

	"go.opentelemetry.io/otel/propagation"
)

// Option configures NewTrace.
type Option func(*config)

type config struct {
	propagators    propagation.TextMapPropagator
	redactedQuery  keySet
	redactedHeader keySet
}

// keySet is a case-insensitive set of names.
type keySet map[string]bool

func (s keySet) add(keys ...string) {
	for _, k := range keys {
		s[strings.ToLower(k)] = true
	}
}

func (s keySet) has(key string) bool {
	return s[strings.ToLower(key)]
}

// WithPropagators enables injection of the trace context into the request header.
func WithPropagators(v propagation.TextMapPropagator) Option {
	return func(c *config) {
		c.propagators = v
	}
}

// WithRedactedQueryParam hides values of the query params in URL attributes.
func WithRedactedQueryParam(params ...string) Option {
	return func(c *config) {
		c.redactedQuery.add(params...)
	}
}

// WithRedactedHeaders hides values of the headers in header attributes.
// Credentials headers, for example "Authorization" or "Cookie", are always hidden.
func WithRedactedHeaders(headers ...string) Option {
	return func(c *config) {
		c.redactedHeader.add(headers...)
	}
}

func newConfig(opts []Option) config {
	cfg := config{redactedQuery: keySet{}, redactedHeader: keySet{}}
	cfg.redactedHeader.add("Authorization", "Proxy-Authorization", "WWW-Authenticate", "Proxy-Authenticate", "Cookie", "Set-Cookie")
	for _, o := range opts {
		o(&cfg)
	}
	return cfg
}
