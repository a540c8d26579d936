package middleware

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/yDkay/payment-system/api/responses"
	"github.com/yDkay/payment-system/internal/idempotency"
	pkgerrors "github.com/yDkay/payment-system/pkg/errors"
	"github.com/yDkay/payment-system/pkg/logger"
)

type routeMatcher func(string) bool

type idempotencyRule struct {
	method  string
	matcher routeMatcher
}

// Every mutating payment route requires an Idempotency-Key so client retries
// are safe.
var idempotencyRules = []idempotencyRule{
	{method: http.MethodPost, matcher: matchExact("/api/v1/payment_intents")},
	{method: http.MethodPost, matcher: matchPrefixSuffix("/api/v1/payment_intents/", "/confirm")},
	{method: http.MethodPost, matcher: matchExact("/api/v1/refunds")},
}

// Idempotency executes guarded routes at most once per key. Replays with a
// matching body get the stored response verbatim; replays with a different
// body are rejected without touching the stored record.
func Idempotency(manager *idempotency.Manager, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if manager == nil || !routeGuarded(r) {
				next.ServeHTTP(w, r)
				return
			}

			key := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
			if key == "" {
				responses.WriteError(r.Context(), logg, w,
					pkgerrors.New(pkgerrors.CodeParameterMissing, "Idempotency-Key header is required").
						WithParam("idempotency_key"))
				return
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "read request body"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			scope := buildScope(r, key)
			fingerprint := idempotency.Fingerprint(body)

			record, replayed, err := manager.Execute(r.Context(), scope, fingerprint, func(context.Context) (*idempotency.Record, error) {
				rec := &responseCapture{ResponseWriter: w}
				next.ServeHTTP(rec, r)
				return &idempotency.Record{
					Status:      rec.statusOrDefault(),
					ContentType: rec.Header().Get("Content-Type"),
					Body:        rec.body.Bytes(),
				}, nil
			})
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			writeRecord(w, record, replayed)
		})
	}
}

// buildScope namespaces keys per route so the same key value on different
// endpoints cannot collide.
func buildScope(r *http.Request, key string) string {
	return strings.Join([]string{r.Method, r.URL.Path, key}, "|")
}

func writeRecord(w http.ResponseWriter, record *idempotency.Record, replayed bool) {
	if record == nil {
		return
	}
	if record.ContentType != "" {
		w.Header().Set("Content-Type", record.ContentType)
	}
	if replayed {
		w.Header().Set("Idempotent-Replayed", "true")
	}
	w.WriteHeader(record.Status)
	_, _ = w.Write(record.Body)
}

// routeGuarded matches on the raw request path. Middleware mounted with
// r.Use runs before chi resolves the route, so the route pattern is not
// available yet.
func routeGuarded(r *http.Request) bool {
	for _, rule := range idempotencyRules {
		if rule.method != r.Method {
			continue
		}
		if rule.matcher(r.URL.Path) {
			return true
		}
	}
	return false
}

func matchExact(path string) routeMatcher {
	return func(requestPath string) bool {
		return requestPath == path || requestPath == path+"/"
	}
}

func matchPrefixSuffix(prefix, suffix string) routeMatcher {
	return func(requestPath string) bool {
		return strings.HasPrefix(requestPath, prefix) && strings.HasSuffix(requestPath, suffix)
	}
}

// responseCapture buffers the handler's response instead of streaming it so
// the bytes can be stored and replayed verbatim.
type responseCapture struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func (r *responseCapture) WriteHeader(code int) {
	r.status = code
}

func (r *responseCapture) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.body.Write(b)
}

func (r *responseCapture) statusOrDefault() int {
	if r.status == 0 {
		return http.StatusOK
	}
	return r.status
}
