package otel

import (
	"net/url"

	"github.com/keboola/go-minireq/pkg/request"
)

func isSuccess(res *request.Response, err error) bool {
	if err != nil {
		return false
	}
	return res != nil && res.IsSuccess()
}

func mustURLPathUnescape(in string) string {
	out, err := url.PathUnescape(in)
	if err != nil {
		return in
	}
	return out
}
