package httpx

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var strictPolicy = bluemonday.StrictPolicy()

// PlainText strips any markup from shopper supplied text before it is echoed back
// in a response message. The result is HTML-unescaped so JSON clients see the
// literal characters while tags and scripts are gone.
func PlainText(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	return html.UnescapeString(strictPolicy.Sanitize(value))
}
