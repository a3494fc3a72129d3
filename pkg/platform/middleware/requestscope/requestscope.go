// Package requestscope stamps every inbound request with a correlation id and
// a single "now" so all log lines and outbound calls for it agree.
package requestscope

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"citebroker/pkg/requestcontext"
)

// HeaderRequestID is echoed back to callers and honoured when supplied.
const HeaderRequestID = "X-Request-ID"

// Middleware injects the request id and request time into the context.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get(HeaderRequestID)
		if reqID == "" {
			reqID = uuid.NewString()
		}
		w.Header().Set(HeaderRequestID, reqID)

		ctx := requestcontext.WithRequestID(r.Context(), reqID)
		ctx = requestcontext.WithTime(ctx, time.Now())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
