package request

import (
	"maps"
	"net/http"
)

// ClientConfig contains baseline options set once at client construction.
type ClientConfig struct {
	Header  map[string]string
	Method  string
	BaseURL string
}

// CallConfig is a per-call definition. The value is immutable, each With* method returns a modified copy.
type CallConfig struct {
	// URI is appended to the base URL.
	URI string
	// BaseURL overrides the client URL, if set.
	BaseURL string
	Header  map[string]string
	Method  string
	// Data is the request body, or the query for GET, HEAD and DELETE requests.
	// Supported types: string, []byte, map[string]any, map[string]string, url.Values, *orderedmap.OrderedMap, or any JSON encodable value.
	Data any
	// Loading is shown by the client before the request is sent, if set.
	Loading *LoadingOptions
}

// LoadingOptions of the loading indicator shown during a call.
type LoadingOptions struct {
	Title string
	Mask  bool
}

// Skeleton returns the starting point of the request interceptors fold.
func Skeleton() CallConfig {
	return CallConfig{Method: http.MethodGet}
}

// AsCallConfig converts client defaults to a CallConfig, so it can be merged with a call.
func (c ClientConfig) AsCallConfig() CallConfig {
	return CallConfig{Header: cloneHeader(c.Header), Method: c.Method, BaseURL: c.BaseURL}
}

// Clone returns a deep copy of the client config.
func (c ClientConfig) Clone() ClientConfig {
	c.Header = cloneHeader(c.Header)
	return c
}

// Merge returns a shallow merge of the base and the overlay, each non-empty overlay field wins.
// Header is merged as one field, the overlay map replaces the base map.
// Neither of the inputs is modified.
func Merge(base, overlay CallConfig) CallConfig {
	out := base
	if overlay.URI != "" {
		out.URI = overlay.URI
	}
	if overlay.BaseURL != "" {
		out.BaseURL = overlay.BaseURL
	}
	if overlay.Header != nil {
		out.Header = overlay.Header
	}
	if overlay.Method != "" {
		out.Method = overlay.Method
	}
	if overlay.Data != nil {
		out.Data = overlay.Data
	}
	if overlay.Loading != nil {
		out.Loading = overlay.Loading
	}
	out.Header = cloneHeader(out.Header)
	return out
}

// Clone returns a copy of the config with its own header map.
func (c CallConfig) Clone() CallConfig {
	c.Header = cloneHeader(c.Header)
	return c
}

// Get is a shortcut for CallConfig{}.WithGet(uri).
func Get(uri string) CallConfig {
	return CallConfig{}.WithGet(uri)
}

// Post is a shortcut for CallConfig{}.WithPost(uri).
func Post(uri string) CallConfig {
	return CallConfig{}.WithPost(uri)
}

// WithGet is shortcut for WithMethod(http.MethodGet).WithURI(uri).
func (c CallConfig) WithGet(uri string) CallConfig {
	return c.WithMethod(http.MethodGet).WithURI(uri)
}

// WithPost is shortcut for WithMethod(http.MethodPost).WithURI(uri).
func (c CallConfig) WithPost(uri string) CallConfig {
	return c.WithMethod(http.MethodPost).WithURI(uri)
}

// WithPut is shortcut for WithMethod(http.MethodPut).WithURI(uri).
func (c CallConfig) WithPut(uri string) CallConfig {
	return c.WithMethod(http.MethodPut).WithURI(uri)
}

// WithDelete is shortcut for WithMethod(http.MethodDelete).WithURI(uri).
func (c CallConfig) WithDelete(uri string) CallConfig {
	return c.WithMethod(http.MethodDelete).WithURI(uri)
}

func (c CallConfig) WithMethod(method string) CallConfig {
	c.Method = method
	return c
}

func (c CallConfig) WithURI(uri string) CallConfig {
	c.URI = uri
	return c
}

func (c CallConfig) WithBaseURL(baseURL string) CallConfig {
	c.BaseURL = baseURL
	return c
}

// AndHeader sets a single header field and its value.
func (c CallConfig) AndHeader(header, value string) CallConfig {
	c.Header = cloneHeader(c.Header)
	if c.Header == nil {
		c.Header = make(map[string]string)
	}
	c.Header[header] = value
	return c
}

// WithHeaders replaces all headers.
func (c CallConfig) WithHeaders(headers map[string]string) CallConfig {
	c.Header = cloneHeader(headers)
	return c
}

func (c CallConfig) WithData(data any) CallConfig {
	c.Data = data
	return c
}

// WithFormBody sets the data and Content-Type header to "application/x-www-form-urlencoded".
func (c CallConfig) WithFormBody(form map[string]string) CallConfig {
	c.Data = maps.Clone(form)
	return c.AndHeader("Content-Type", ContentTypeForm)
}

// WithJSONBody sets the data and Content-Type header to "application/json".
func (c CallConfig) WithJSONBody(body any) CallConfig {
	c.Data = body
	return c.AndHeader("Content-Type", ContentTypeApplicationJSON)
}

// WithLoading enables the loading indicator for the call.
func (c CallConfig) WithLoading(title string) CallConfig {
	c.Loading = &LoadingOptions{Title: title}
	return c
}
