package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/edusummarizer/hub/internal/api"
	"github.com/edusummarizer/hub/internal/users"
)

type contextKey string

const userKey contextKey = "current_user"

// Middleware validates the bearer token and loads the matching user record
// into the request context. Token and lookup failures share one response so
// the error message never reveals whether the account exists.
func Middleware(jwt *JWTManager, userSvc *users.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				api.HandleError(w, api.ErrUnauthorized)
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				api.HandleError(w, api.ErrUnauthorized)
				return
			}

			claims, err := jwt.Validate(parts[1])
			if err != nil {
				api.HandleError(w, api.ErrUnauthorized)
				return
			}

			user, err := userSvc.GetByEmail(r.Context(), claims.Subject)
			if err != nil || user == nil {
				api.HandleError(w, api.ErrUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), userKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetUser returns the authenticated user from the context, or nil.
func GetUser(ctx context.Context) *users.User {
	user, _ := ctx.Value(userKey).(*users.User)
	return user
}

// WithUser returns a context carrying user. Exposed for handler tests.
func WithUser(ctx context.Context, user *users.User) context.Context {
	return context.WithValue(ctx, userKey, user)
}
