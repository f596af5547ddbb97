package handlers

import (
	"context"
	"net/http"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"

	"github.com/urbenshop/storefront/internal/platform/httpx"
	"github.com/urbenshop/storefront/internal/validation"
)

// ContactValidator checks submitted contact forms.
type ContactValidator interface {
	Contact(form validation.ContactForm) error
}

// ContactHandlers accepts contact page messages. Messages are validated and
// logged; nothing is delivered.
type ContactHandlers struct {
	validator ContactValidator
	logger    func(ctx context.Context, event string, fields map[string]any)
}

// NewContactHandlers constructs contact handlers.
func NewContactHandlers(validator ContactValidator, logger func(ctx context.Context, event string, fields map[string]any)) *ContactHandlers {
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &ContactHandlers{validator: validator, logger: logger}
}

// Routes wires POST /contact onto the provided router.
func (h *ContactHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/", h.submit)
}

type contactResponse struct {
	Message string `json:"message"`
}

func (h *ContactHandlers) submit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.validator == nil {
		httpx.WriteError(ctx, w, httpx.NewError("contact_unavailable", "contact form is unavailable", http.StatusServiceUnavailable))
		return
	}

	var form validation.ContactForm
	if !decodeBody(ctx, w, r, &form) {
		return
	}
	if err := h.validator.Contact(form); err != nil {
		if fieldErr, ok := validation.AsFieldError(err); ok {
			httpx.WriteError(ctx, w, httpx.NewError("validation_failed", fieldErr.Message, http.StatusBadRequest).WithField(fieldErr.Field))
			return
		}
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	form.Normalize()
	h.logger(ctx, "contact.message_received", map[string]any{
		"subject":       httpx.PlainText(form.Subject),
		"messageLength": utf8.RuneCountInString(form.Message),
	})
	httpx.WriteJSON(w, http.StatusOK, contactResponse{Message: validation.MsgContactThanks})
}

// RateLimitMiddleware rejects requests over the per-client-IP budget with 429.
// A non-positive perMinute disables the limit.
func RateLimitMiddleware(perMinute int, logger func(ctx context.Context, event string, fields map[string]any)) func(http.Handler) http.Handler {
	return rateLimitMiddleware(newPerMinuteRateLimiter(perMinute, nil), logger)
}

func rateLimitMiddleware(limiter rateLimiter, logger func(ctx context.Context, event string, fields map[string]any)) func(http.Handler) http.Handler {
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return func(next http.Handler) http.Handler {
		if limiter == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r)
			if !limiter.Allow(ip) {
				logger(r.Context(), "http.rate_limit_rejected", map[string]any{"remoteIp": ip, "path": r.URL.Path})
				w.Header().Set("Retry-After", "60")
				httpx.WriteError(r.Context(), w, httpx.NewError("rate_limited", "too many requests, please try again later", http.StatusTooManyRequests))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
