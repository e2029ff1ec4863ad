package api

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"emirates-passport/internal/metrics"
	"emirates-passport/internal/model"
)

type contextKey struct{}

var userKeyCtxKey = contextKey{}

// UserKeyFromContext returns the validated identity set by RequireUserKey.
func UserKeyFromContext(ctx context.Context) (model.UserKey, bool) {
	user, ok := ctx.Value(userKeyCtxKey).(model.UserKey)
	return user, ok
}

// RequireUserKey validates the {userKey} path parameter once and stores it in
// the request context. Invalid keys are rejected with 400.
func (h *Handler) RequireUserKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := chi.URLParam(r, "userKey")
		// chi matches on the escaped path when one is present.
		if r.URL.RawPath != "" {
			if unescaped, err := url.PathUnescape(raw); err == nil {
				raw = unescaped
			}
		}

		user, err := model.ParseUserKey(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_USER_KEY", "user key is invalid")
			return
		}

		ctx := context.WithValue(r.Context(), userKeyCtxKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequestLog logs every request at debug level.
func RequestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		log.Debug().
			Str("request_id", chimw.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("HTTP request")
	})
}

// Instrument records request counts and latency by route pattern.
func Instrument(rec metrics.Recorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
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
			rec.RecordHTTPRequest(route, status, time.Since(start))
		})
	}
}

// Recoverer turns a handler panic into a 500 response.
func Recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				log.Error().
					Interface("panic", rec).
					Str("path", r.URL.Path).
					Msg("Recovered from panic in HTTP handler")
				writeError(w, http.StatusInternalServerError, "INTERNAL", "internal error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}
