package httppresentation

import (
	"net/http"

	"github.com/mossleaf/bookmart/internal/observability"
	"github.com/mossleaf/bookmart/internal/observability/logctx"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

// RequestLoggerMiddleware injects a request-scoped logger carrying dynamic
// fields only: request_id (generated when absent, echoed back) and
// trace_id/span_id when a valid span is present.
func RequestLoggerMiddleware(
	base observability.Logger,
	requestID func(*http.Request) string,
) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if base == nil {
				next.ServeHTTP(w, r)
				return
			}

			reqID := ""
			if requestID != nil {
				reqID = requestID(r)
			}
			if reqID == "" {
				reqID = uuid.NewString()
			}
			w.Header().Set(headerRequestID, reqID)

			fields := []observability.Field{
				observability.F("request_id", reqID),
			}
			if sc := trace.SpanContextFromContext(r.Context()); sc.IsValid() {
				fields = append(fields,
					observability.F("trace_id", sc.TraceID().String()),
					observability.F("span_id", sc.SpanID().String()),
				)
			}

			ctx := logctx.With(r.Context(), base.With(fields...))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
