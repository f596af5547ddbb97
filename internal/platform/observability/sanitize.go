package observability

import (
	"net/http"
	"strings"
	"unicode"

	"github.com/oklog/ulid/v2"
)

const maxRouteLength = 180

// clipPrintable drops control characters, newlines included, so request data
// cannot forge extra log lines, and truncates to limit runes.
func clipPrintable(value string, limit int) string {
	var b strings.Builder
	n := 0
	for _, r := range value {
		if unicode.IsControl(r) {
			continue
		}
		if n == limit {
			break
		}
		b.WriteRune(r)
		n++
	}
	return b.String()
}

func sanitizeRoute(route string) string {
	if route == "" {
		return "/"
	}
	return clipPrintable(route, maxRouteLength)
}

// sanitizeMethod passes the standard HTTP methods through and reports anything
// else as _OTHER.
func sanitizeMethod(method string) string {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut, http.MethodPatch,
		http.MethodDelete, http.MethodOptions, http.MethodConnect, http.MethodTrace:
		return method
	}
	return "_OTHER"
}

// sanitizeSessionID returns id when it is a well-formed session ULID and an
// empty string otherwise.
func sanitizeSessionID(id string) string {
	if _, err := ulid.ParseStrict(id); err != nil {
		return ""
	}
	return id
}
