package middleware

import (
	"context"
	"net/http"

	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/httputil"
	"github.com/utafrali/storefront/pkg/logger"
)

// UserIDHeader is set by the upstream gateway once the shopper is authenticated.
const UserIDHeader = "X-User-ID"

type userIDKey struct{}

// WithUserID stores the authenticated user id in ctx.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey{}, userID)
}

// UserIDFromContext returns the id stored by RequireUser, or "".
func UserIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey{}).(string)
	return id
}

// RequireUser rejects requests without a trusted user id header.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := r.Header.Get(UserIDHeader)
		if userID == "" {
			httputil.WriteJSON(w, http.StatusUnauthorized, httputil.Response{
				Error: &httputil.ErrorResponse{
					Code:    apperrors.CodeUnauthorized,
					Message: "missing user identity",
				},
			})
			return
		}
		ctx := logger.WithUserID(WithUserID(r.Context(), userID), userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
