// Package authn authenticates requests by a bearer access token and puts
// the user id into the request context.
package authn

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/render"

	resp "github.com/cxbootcamp/premiers/internal/lib/api/response"
	"github.com/cxbootcamp/premiers/internal/lib/jwt"
)

type ctxKey struct{}

// New rejects requests without a valid access token.
func New(jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, resp.Error("authorization required"))

				return
			}

			claims, err := jwt.Parse(token, jwtSecret, jwt.TypeAccess)
			if err != nil {
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, resp.Error("invalid token"))

				return
			}

			ctx := context.WithValue(r.Context(), ctxKey{}, claims.UserID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserID returns the authenticated user id stored by the middleware.
func UserID(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(ctxKey{}).(int64)
	return id, ok
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", false
	}

	token := strings.TrimSpace(strings.TrimPrefix(header, prefix))
	return token, token != ""
}
