// kimichat/middlewares/auth.go
package middlewares

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"kimichat/kimichat/config"
	"kimichat/kimichat/utils/types"

	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const VisitorIDKey contextKey = "visitor_id"

// CodeVisitorTokenRequired marks a gate rejection, so callers can tell it
// from an upstream "Invalid API key" 401.
const CodeVisitorTokenRequired = "visitor_token_required"

func WithVisitorID(ctx context.Context, visitorID string) context.Context {
	return context.WithValue(ctx, VisitorIDKey, visitorID)
}

// VisitorID returns the id of the authenticated visitor, or "" when the gate
// is off.
func VisitorID(ctx context.Context) string {
	id, _ := ctx.Value(VisitorIDKey).(string)
	return id
}

var ErrInvalidToken = errors.New("invalid token")

// ParseVisitorToken validates an HS256 visitor token and returns its visitor id.
func ParseVisitorToken(cfg config.Config, tokenStr string) (string, error) {
	if tokenStr == "" {
		return "", ErrInvalidToken
	}
	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(cfg.JWTSecret), nil
	})
	if err != nil || !token.Valid {
		return "", ErrInvalidToken
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", ErrInvalidToken
	}
	visitorID, ok := claims["visitor_id"].(string)
	if !ok || visitorID == "" {
		return "", ErrInvalidToken
	}
	return visitorID, nil
}

// AuthMiddleware requires a visitor token when a JWT secret is configured and
// is a pass-through otherwise.
func AuthMiddleware(cfg config.Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if cfg.JWTSecret == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			parts := strings.Split(auth, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				unauthorized(w)
				return
			}
			visitorID, err := ParseVisitorToken(cfg, parts[1])
			if err != nil {
				unauthorized(w)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithVisitorID(r.Context(), visitorID)))
		})
	}
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(types.ErrorResponse{
		Error: "Visitor token required",
		Code:  CodeVisitorTokenRequired,
	})
}
