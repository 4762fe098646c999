package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/krishanraja/try-ritual-sub002/internal/models"
	"github.com/krishanraja/try-ritual-sub002/internal/services"
)

type contextKey string

const PartnerContextKey contextKey = "partner"

// RequireAuth resolves the Authorization bearer token to a partner and puts
// it on the request context. Couple membership is checked per-handler.
func RequireAuth(authService *services.AuthService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			partner, err := authService.Authenticate(r.Context(), strings.TrimPrefix(authHeader, "Bearer "))
			if err != nil {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), PartnerContextKey, partner)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func GetPartner(ctx context.Context) models.Partner {
	partner, _ := ctx.Value(PartnerContextKey).(models.Partner)
	return partner
}
