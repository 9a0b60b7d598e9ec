package middleware

import (
	"context"
	"net/http"

	"cvone/interview/internal/models"
	"cvone/interview/internal/utils"
)

const (
	userIDKey contextKey = "user_id"
	roleKey   contextKey = "role"
)

const RoleAdmin = "admin"

// RequireAuth verifies the bearer token and stores the caller's id and role
// in the request context.
func RequireAuth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := utils.VerifyToken(r, secret)
			if err != nil {
				utils.JSON(w, http.StatusUnauthorized, models.ErrorResponse{
					Code:    "unauthorized",
					Message: err.Error(),
				})
				return
			}
			userID, err := utils.UserIDFromClaims(claims)
			if err != nil {
				utils.JSON(w, http.StatusUnauthorized, models.ErrorResponse{
					Code:    "unauthorized",
					Message: err.Error(),
				})
				return
			}

			ctx := context.WithValue(r.Context(), userIDKey, userID)
			ctx = context.WithValue(ctx, roleKey, utils.RoleFromClaims(claims))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin must run after RequireAuth
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if RoleFromContext(r.Context()) != RoleAdmin {
			utils.JSON(w, http.StatusForbidden, models.ErrorResponse{
				Code:    "forbidden",
				Message: "admin role required",
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func UserIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey).(string)
	return id
}

func RoleFromContext(ctx context.Context) string {
	role, _ := ctx.Value(roleKey).(string)
	return role
}

// WithUserID is used by tests and internal callers that bypass RequireAuth
func WithUserID(ctx context.Context, userID, role string) context.Context {
	ctx = context.WithValue(ctx, userIDKey, userID)
	return context.WithValue(ctx, roleKey, role)
}
