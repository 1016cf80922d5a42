package transport

import (
	"compress/gzip"
	"fmt"
	"io"
	"strings"

	"github.com/andybalholm/brotli"
)

type decoderFn func(r io.Reader) (io.Reader, error)

var decoders = map[string]decoderFn{ //nolint:gochecknoglobals
	"identity": func(r io.Reader) (io.Reader, error) { return r, nil },
	"gzip":     func(r io.Reader) (io.Reader, error) { return gzip.NewReader(r) },
	"x-gzip":   func(r io.Reader) (io.Reader, error) { return gzip.NewReader(r) },
	"br":       func(r io.Reader) (io.Reader, error) { return brotli.NewReader(r), nil },
}

// Decode returns a reader of the body decoded according to the Content-Encoding header.
// Multiple encodings, for example "gzip, br", are removed in the reverse order.
// Closing the returned reader closes the body.
func Decode(body io.ReadCloser, contentEncoding string) (io.ReadCloser, error) {
	if strings.TrimSpace(contentEncoding) == "" {
		return body, nil
	}

	encodings := strings.Split(contentEncoding, ",")
	var r io.Reader = body
	for i := len(encodings) - 1; i >= 0; i-- {
		encoding := strings.ToLower(strings.TrimSpace(encodings[i]))
		decoder, found := decoders[encoding]
		if !found {
			return nil, fmt.Errorf(`unsupported content encoding "%s"`, encoding)
		}
		decoded, err := decoder(r)
		if err != nil {
			return nil, fmt.Errorf(`cannot decode "%s": %w`, encoding, err)
		}
		r = decoded
	}
	return readCloser{Reader: r, Closer: body}, nil
}

type readCloser struct {
	io.Reader
	io.Closer
}
