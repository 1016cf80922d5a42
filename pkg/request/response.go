package request

import (
	"net/http"
)

// Response is the success payload of a call.
type Response struct {
	StatusCode int
	Header     http.Header
	// Data is the decoded body: a value decoded from JSON, or a string.
	Data    any
	Cookies []string
}

// IsSuccess returns true if HTTP status `code >= 200 and <= 299` otherwise false.
func (r *Response) IsSuccess() bool {
	return r.StatusCode > 199 && r.StatusCode < 300
}

// IsError returns true if HTTP status `code >= 400` otherwise false.
func (r *Response) IsError() bool {
	return r.StatusCode > 399
}

// Merge folds the overlay into the response, each non-empty overlay field wins.
// The overlay may be the response itself.
func (r *Response) Merge(overlay *Response) {
	if overlay == nil || overlay == r {
		return
	}
	if overlay.StatusCode != 0 {
		r.StatusCode = overlay.StatusCode
	}
	if overlay.Header != nil {
		r.Header = overlay.Header
	}
	if overlay.Data != nil {
		r.Data = overlay.Data
	}
	if overlay.Cookies != nil {
		r.Cookies = overlay.Cookies
	}
}
