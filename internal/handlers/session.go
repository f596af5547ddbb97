package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/urbenshop/storefront/internal/platform/requestctx"
)

const defaultSessionCookie = "urbenshop_session"

// SessionOptions configures the shopper session cookie.
type SessionOptions struct {
	CookieName string
	Secure     bool
	MaxAge     time.Duration
	NewID      func() string
}

// SessionMiddleware resolves the shopper session from its cookie, issuing a new
// ULID session when the cookie is missing or malformed. The id is stored on the
// request context for the cart handlers and the request logger.
func SessionMiddleware(opts SessionOptions) func(http.Handler) http.Handler {
	name := strings.TrimSpace(opts.CookieName)
	if name == "" {
		name = defaultSessionCookie
	}
	newID := opts.NewID
	if newID == nil {
		newID = func() string { return ulid.Make().String() }
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sessionID := ""
			if cookie, err := r.Cookie(name); err == nil {
				if id, err := ulid.ParseStrict(cookie.Value); err == nil {
					sessionID = id.String()
				}
			}
			if sessionID == "" {
				sessionID = newID()
				cookie := &http.Cookie{
					Name:     name,
					Value:    sessionID,
					Path:     "/",
					HttpOnly: true,
					Secure:   opts.Secure,
					SameSite: http.SameSiteLaxMode,
				}
				if opts.MaxAge > 0 {
					cookie.MaxAge = int(opts.MaxAge / time.Second)
				}
				http.SetCookie(w, cookie)
			}

			ctx := requestctx.WithSessionID(r.Context(), sessionID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
