package httpapi

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"civicdesk/internal/bootstrap/logging"
	domain "civicdesk/internal/domain/grievance"
	"civicdesk/internal/errs"
)

// withRequestContext seeds the request context with the base logger and the chi request id.
func withRequestContext(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if base != nil {
				ctx = logging.WithLogger(ctx, base)
			}
			if id := middleware.GetReqID(ctx); id != "" {
				ctx = logging.WithRequestID(ctx, id)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// requestLogger logs one line per request; the level follows the status class.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		attrs := []slog.Attr{
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", status),
			slog.Duration("duration", time.Since(start)),
			slog.Int("bytes", ww.BytesWritten()),
		}
		switch {
		case status >= http.StatusInternalServerError:
			logging.Error(r.Context(), "http request", attrs...)
		case status >= http.StatusBadRequest:
			logging.Warn(r.Context(), "http request", attrs...)
		default:
			logging.Info(r.Context(), "http request", attrs...)
		}
	})
}

// recoverer turns a handler panic into a logged 500 with a stack trace.
func recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil || rec == http.ErrAbortHandler {
				if rec != nil {
					panic(rec)
				}
				return
			}
			err := errs.WithStack(fmt.Errorf("panic: %v", rec))
			logging.Error(r.Context(), "handler panicked", slog.Any("err", errs.Loggable(err)))
			writeFailure(w, http.StatusInternalServerError, domain.KindInternal, "internal server error")
		}()
		next.ServeHTTP(w, r)
	})
}

// routePattern labels metrics with the matched chi pattern instead of the raw path.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unmatched"
}
