package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/hidangan/delivery-api/internal/access"
	"github.com/hidangan/delivery-api/internal/auth"
	"github.com/hidangan/delivery-api/internal/enum"
)

type contextKey string

const claimsKey contextKey = "claims"

// ErrorResponse is the JSON body of every error reply.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func Authenticate(jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				WriteError(w, http.StatusUnauthorized, enum.ErrCodeUnauthorized, "missing authorization header")
				return
			}

			parts := strings.SplitN(header, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				WriteError(w, http.StatusUnauthorized, enum.ErrCodeUnauthorized, "invalid authorization format")
				return
			}

			claims, err := auth.ValidateToken(jwtSecret, parts[1])
			if err != nil {
				WriteError(w, http.StatusUnauthorized, enum.ErrCodeUnauthorized, "invalid token")
				return
			}

			ctx := WithClaims(r.Context(), claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := ClaimsFromContext(r.Context())
			if claims == nil {
				WriteError(w, http.StatusUnauthorized, enum.ErrCodeUnauthorized, "not authenticated")
				return
			}

			for _, role := range roles {
				if claims.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}

			WriteError(w, http.StatusForbidden, enum.ErrCodeForbidden, "insufficient permissions")
		})
	}
}

// WithClaims stores claims on ctx. Handler tests use it to skip token
// parsing.
func WithClaims(ctx context.Context, claims *auth.Claims) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}

func ClaimsFromContext(ctx context.Context) *auth.Claims {
	claims, _ := ctx.Value(claimsKey).(*auth.Claims)
	return claims
}

// ActorFromContext converts the request's claims into an access.Actor. ok is
// false for unauthenticated requests.
func ActorFromContext(ctx context.Context) (access.Actor, bool) {
	claims := ClaimsFromContext(ctx)
	if claims == nil {
		return access.Actor{}, false
	}
	return ActorFromClaims(claims), true
}

func ActorFromClaims(c *auth.Claims) access.Actor {
	return access.Actor{
		UserID:       c.UserID,
		Role:         c.Role,
		RestaurantID: c.RestaurantID,
		Email:        c.Email,
	}
}

func WriteError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{Code: code, Message: message})
}
