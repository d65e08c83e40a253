package middleware

import (
	"log/slog"
	"net/http"

	"github.com/Noobiez16/SubliGraphic/pkg/logger"
)

// RequestLogger stores a request-scoped logger in context, enriched with
// correlation, shopper and trace ids. Mount it after RequestLogging, Tracing
// and Shopper so those values are already present.
func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			shopperID := ShopperIDFromContext(ctx)
			if shopperID == "" {
				shopperID = r.Header.Get(ShopperHeader)
			}
			if shopperID != "" {
				ctx = logger.WithUserID(ctx, shopperID)
			}

			ctx = logger.NewContext(ctx, logger.WithContext(ctx, base))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
