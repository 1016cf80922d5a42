package interceptor

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/keboola/go-minireq/pkg/request"
)

// Registry contains the request and the response pipelines of one client.
type Registry struct {
	Request  *Chain[RequestFunc]
	Response *Chain[ResponseFunc]
}

// NewRegistry creates empty pipelines. Eject warnings are written to the logger.
func NewRegistry(logger logrus.FieldLogger) *Registry {
	return &Registry{
		Request:  NewChain[RequestFunc](KindRequest, RequestIdentity, logger),
		Response: NewChain[ResponseFunc](KindResponse, ResponseIdentity, logger),
	}
}

// Use registers an interceptor to the pipeline by its kind.
// The fn must be a RequestFunc for the "request" kind and a ResponseFunc for the "response" kind, or nil.
func (r *Registry) Use(kind Kind, fn any, errFn ErrorFunc) (*Handle, error) {
	switch kind {
	case KindRequest:
		switch v := fn.(type) {
		case nil:
			return r.Request.Use(nil, errFn), nil
		case RequestFunc:
			return r.Request.Use(v, errFn), nil
		case func(request.CallConfig) request.CallConfig:
			return r.Request.Use(v, errFn), nil
		default:
			return nil, fmt.Errorf(`request interceptor must be interceptor.RequestFunc, found %T`, fn)
		}
	case KindResponse:
		switch v := fn.(type) {
		case nil:
			return r.Response.Use(nil, errFn), nil
		case ResponseFunc:
			return r.Response.Use(v, errFn), nil
		case func(*request.Response, ResolveFunc, RejectFunc) *request.Response:
			return r.Response.Use(v, errFn), nil
		default:
			return nil, fmt.Errorf(`response interceptor must be interceptor.ResponseFunc, found %T`, fn)
		}
	default:
		return nil, &request.UnknownKindError{Kind: string(kind)}
	}
}

// Eject deactivates an interceptor in the pipeline by its kind.
func (r *Registry) Eject(kind Kind, h *Handle) error {
	switch kind {
	case KindRequest:
		r.Request.Eject(h)
	case KindResponse:
		r.Response.Eject(h)
	default:
		return &request.UnknownKindError{Kind: string(kind)}
	}
	return nil
}
