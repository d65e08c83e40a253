package middleware

import (
	"context"
	"net/http"
	"strings"

	apperrors "github.com/Noobiez16/SubliGraphic/pkg/errors"
	"github.com/Noobiez16/SubliGraphic/pkg/httputil"
)

// ShopperHeader identifies the shopper whose cart a request operates on.
// Authentication happens upstream; this service trusts the header.
const ShopperHeader = "X-User-ID"

const maxShopperIDLen = 128

type shopperKey struct{}

// Shopper requires a non-empty X-User-ID header and stores it in context.
func Shopper(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(ShopperHeader))
		switch {
		case id == "":
			httputil.WriteError(w, r, apperrors.Unauthorized("missing X-User-ID header"), nil)
			return
		case len(id) > maxShopperIDLen || strings.ContainsAny(id, ":/ \t"):
			httputil.WriteError(w, r, apperrors.InvalidInput("malformed X-User-ID header"), nil)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithShopperID(r.Context(), id)))
	})
}

// WithShopperID returns a context carrying the shopper id.
func WithShopperID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, shopperKey{}, id)
}

// ShopperIDFromContext returns the shopper id set by Shopper, or "".
func ShopperIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(shopperKey{}).(string)
	return id
}
