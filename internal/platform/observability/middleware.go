package observability

import (
	"fmt"
	"net"
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/urbenshop/storefront/internal/platform/httpx"
	"github.com/urbenshop/storefront/internal/platform/requestctx"
)

// Span attributes describing the shopper side of a request.
const (
	attrSessionID     = attribute.Key("storefront.session_id")
	attrOperation     = attribute.Key("storefront.operation")
	attrCartItemCount = attribute.Key("storefront.cart.item_count")
)

type routeKey struct {
	method string
	route  string
}

// storefrontOperations names the cart and checkout endpoints by the route they
// match below the API base path.
var storefrontOperations = map[routeKey]string{
	{http.MethodGet, "/cart"}:                       "cart.view",
	{http.MethodDelete, "/cart"}:                    "cart.clear",
	{http.MethodPost, "/cart/items"}:                "cart.add",
	{http.MethodPut, "/cart/items/{index}"}:         "cart.set_quantity",
	{http.MethodPost, "/cart/items/{index}/adjust"}: "cart.adjust_quantity",
	{http.MethodDelete, "/cart/items/{index}"}:      "cart.remove",
	{http.MethodPost, "/checkout"}:                  "checkout.place_order",
}

// InjectLoggerMiddleware stores the provided logger on the request context to make it accessible downstream.
func InjectLoggerMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		if next == nil {
			next = http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := requestctx.WithLogger(r.Context(), logger)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequestLoggerMiddleware scopes the request logger to the shopper session and
// logs one "request completed" line per request. It runs after routing has
// resolved, so the line and the server span carry the matched route, the
// storefront operation and the cart item count reported on X-Cart-Count.
func RequestLoggerMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if next == nil {
			next = http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			traceInfo, _ := requestctx.Trace(ctx)
			sessionID := sanitizeSessionID(requestctx.SessionID(ctx))
			method := sanitizeMethod(r.Method)

			fields := []zap.Field{
				zap.String("request_id", middleware.GetReqID(ctx)),
				zap.String("method", method),
			}
			if traceInfo.TraceID != "" {
				fields = append(fields, zap.String("trace_id", traceInfo.TraceID))
			}
			if resource := loggingTraceResource(traceInfo); resource != "" {
				fields = append(fields, zap.String("logging.googleapis.com/trace", resource))
			}
			if sessionID != "" {
				fields = append(fields, zap.String("session_id", sessionID))
			}
			if ip := realIP(r); ip != "" {
				fields = append(fields, zap.String("remote_ip", ip))
			}
			logger := WithRequestFields(requestctx.Logger(ctx), fields...)
			r = r.WithContext(requestctx.WithLogger(ctx, logger))

			recorder := newResponseRecorder(w)
			start := time.Now()

			var panicked bool
			defer func() {
				status := recorder.Status()
				if panicked && status < http.StatusInternalServerError {
					status = http.StatusInternalServerError
				}
				route := routePattern(r)
				operation := storefrontOperation(r.Method, route)

				done := []zap.Field{
					zap.String("route", route),
					zap.Int("status", status),
					zap.Duration("latency", time.Since(start)),
					zap.Int64("bytes", recorder.BytesWritten()),
				}
				attrs := []attribute.KeyValue{
					semconv.HTTPRoute(route),
					semconv.HTTPResponseStatusCode(status),
				}
				if sessionID != "" {
					attrs = append(attrs, attrSessionID.String(sessionID))
				}
				if operation != "" {
					done = append(done, zap.String("operation", operation))
					attrs = append(attrs, attrOperation.String(operation))
				}
				if count, err := strconv.Atoi(recorder.Header().Get(httpx.CartCountHeader)); err == nil {
					done = append(done, zap.Int("cart_count", count))
					attrs = append(attrs, attrCartItemCount.Int(count))
				}

				span := trace.SpanFromContext(ctx)
				span.SetName(method + " " + route)
				span.SetAttributes(attrs...)
				setSpanStatus(span, status)

				switch {
				case panicked || status >= http.StatusInternalServerError:
					logger.Error("request completed", done...)
				case status >= http.StatusBadRequest:
					logger.Warn("request completed", done...)
				default:
					logger.Info("request completed", done...)
				}
			}()

			defer func() {
				if rec := recover(); rec != nil {
					panicked = true
					panic(rec)
				}
			}()

			next.ServeHTTP(recorder, r)
		})
	}
}

// RecoveryMiddleware captures panics, logs the stack trace, and returns a JSON error response.
func RecoveryMiddleware(fallback *zap.Logger) func(http.Handler) http.Handler {
	if fallback == nil {
		fallback = requestctx.NoopLogger()
	}
	return func(next http.Handler) http.Handler {
		if next == nil {
			next = http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				ctx := r.Context()
				logger := requestctx.Logger(ctx)
				if logger == requestctx.NoopLogger() {
					logger = fallback
				}
				logger.Error("panic recovered",
					zap.String("path", sanitizeRoute(r.URL.Path)),
					zap.String("trace_id", requestctx.TraceID(ctx)),
					zap.Any("panic", rec),
					zap.ByteString("stack", debug.Stack()),
				)
				httpx.WriteError(ctx, w, httpx.NewError("internal_server_error", "internal server error", http.StatusInternalServerError))
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// routePattern returns the chi pattern matched for r, falling back to the raw path.
func routePattern(r *http.Request) string {
	route := ""
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		route = rctx.RoutePattern()
	}
	if route == "" && r.URL != nil {
		route = r.URL.Path
	}
	if len(route) > 1 {
		route = strings.TrimSuffix(route, "/")
	}
	return sanitizeRoute(route)
}

func storefrontOperation(method, route string) string {
	idx := strings.Index(route, "/cart")
	if idx < 0 {
		idx = strings.Index(route, "/checkout")
	}
	if idx < 0 {
		return ""
	}
	return storefrontOperations[routeKey{method: method, route: route[idx:]}]
}

func realIP(r *http.Request) string {
	addr := strings.TrimSpace(r.RemoteAddr)
	if addr == "" {
		return ""
	}
	if host, _, err := net.SplitHostPort(addr); err == nil {
		addr = host
	}
	if ip := net.ParseIP(addr); ip != nil {
		return ip.String()
	}
	return ""
}

func loggingTraceResource(info requestctx.TraceInfo) string {
	if info.ProjectID == "" || info.TraceID == "" {
		return ""
	}
	return fmt.Sprintf("projects/%s/traces/%s", info.ProjectID, info.TraceID)
}

func setSpanStatus(span trace.Span, status int) {
	if status >= http.StatusInternalServerError {
		span.SetStatus(codes.Error, http.StatusText(status))
		return
	}
	span.SetStatus(codes.Ok, http.StatusText(status))
}

type responseRecorder struct {
	http.ResponseWriter
	status int
	bytes  int64
}

func newResponseRecorder(w http.ResponseWriter) *responseRecorder {
	return &responseRecorder{ResponseWriter: w, status: http.StatusOK}
}

func (r *responseRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	n, err := r.ResponseWriter.Write(b)
	r.bytes += int64(n)
	return n, err
}

func (r *responseRecorder) Status() int { return r.status }

func (r *responseRecorder) BytesWritten() int64 { return r.bytes }
