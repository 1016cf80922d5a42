package request

import (
	"regexp"
	"strings"
)

const (
	ContentTypeApplicationJSON       = "application/json"
	ContentTypeApplicationJSONRegexp = `^application/([a-zA-Z0-9\.\-]+\+)?json$`
	ContentTypeForm                  = "application/x-www-form-urlencoded"
)

var jsonContentTypeRegexp = regexp.MustCompile(ContentTypeApplicationJSONRegexp)

// IsJSONContentType returns true for "application/json" and "application/<vendor>+json", parameters are ignored.
func IsJSONContentType(contentType string) bool {
	if pos := strings.IndexByte(contentType, ';'); pos >= 0 {
		contentType = contentType[:pos]
	}
	return jsonContentTypeRegexp.MatchString(strings.TrimSpace(strings.ToLower(contentType)))
}
