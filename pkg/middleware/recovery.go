package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/Noobiez16/SubliGraphic/pkg/httputil"
	"github.com/Noobiez16/SubliGraphic/pkg/logger"
)

// Recovery turns a handler panic into a logged INTERNAL_ERROR envelope that
// carries the request's correlation id. http.ErrAbortHandler is re-raised.
func Recovery(l *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					answerPanic(w, r, l, rec)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func answerPanic(w http.ResponseWriter, r *http.Request, l *slog.Logger, rec any) {
	ctx := r.Context()
	logger.WithContext(ctx, l).ErrorContext(ctx, "panic recovered",
		slog.Any("panic", rec),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("stack", string(debug.Stack())),
	)
	httputil.WriteJSON(w, http.StatusInternalServerError, httputil.Response{
		Error: &httputil.ErrorResponse{
			Code:      "INTERNAL_ERROR",
			Message:   "an internal error occurred",
			RequestID: logger.CorrelationIDFromContext(ctx),
		},
	})
}
