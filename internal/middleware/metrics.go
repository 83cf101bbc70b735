package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

// RequestObserver records served requests.
type RequestObserver interface {
	ObserveRequest(method, route string, code int, took time.Duration)
}

// WithMetrics reports each request to o, labelled by its chi route pattern
// so that path parameters do not explode the label space.
func WithMetrics(o RequestObserver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if p := rctx.RoutePattern(); p != "" {
					route = p
				}
			}
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			o.ObserveRequest(r.Method, route, status, time.Since(start))
		})
	}
}
