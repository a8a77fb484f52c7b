package auth

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/user/queryloop-go/apperror"
	"github.com/user/queryloop-go/config"
)

// parseAccessToken validates a bearer token string and returns its claims.
func parseAccessToken(tokenString string, cfg *config.AuthConfig) (*CustomClaims, error) {
	claims := &CustomClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(cfg.JWTSecret), nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, fmt.Errorf("token is invalid")
	}
	if claims.TokenType != tokenTypeAccess {
		return nil, fmt.Errorf("not an access token")
	}
	if claims.UserID == "" {
		return nil, fmt.Errorf("user_id claim is missing")
	}
	return claims, nil
}

// bearerToken extracts the token from an "Authorization: Bearer X" header.
// Returns "" when the header is absent; an error when it is malformed.
func bearerToken(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", nil
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return "", fmt.Errorf("authorization header format must be Bearer {token}")
	}
	return parts[1], nil
}

// JWTMiddleware requires a valid access token and stores the caller
// Identity in the request context.
func JWTMiddleware(cfg *config.AuthConfig) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, err := bearerToken(r)
			if err != nil {
				WriteError(w, r, apperror.NewAuthError(err.Error(), nil))
				return
			}
			if tokenString == "" {
				WriteError(w, r, apperror.NewAuthError("authorization header is missing", nil))
				return
			}

			claims, err := parseAccessToken(tokenString, cfg)
			if err != nil {
				WriteError(w, r, apperror.NewAuthError(fmt.Sprintf("invalid token: %v", err), err))
				return
			}

			ctx := NewContextWithIdentity(r.Context(), Identity{
				UserID:  claims.UserID,
				IsAdmin: claims.IsAdmin,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalJWTMiddleware attaches an Identity when a valid access token is
// present but lets anonymous requests through. Public question reads use it:
// the visibility gate needs the viewer identity when there is one, while
// anonymous viewers still get public content. A present-but-invalid token is
// rejected rather than silently downgraded to anonymous.
func OptionalJWTMiddleware(cfg *config.AuthConfig) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, err := bearerToken(r)
			if err != nil {
				WriteError(w, r, apperror.NewAuthError(err.Error(), nil))
				return
			}
			if tokenString == "" {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := parseAccessToken(tokenString, cfg)
			if err != nil {
				WriteError(w, r, apperror.NewAuthError(fmt.Sprintf("invalid token: %v", err), err))
				return
			}

			ctx := NewContextWithIdentity(r.Context(), Identity{
				UserID:  claims.UserID,
				IsAdmin: claims.IsAdmin,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin rejects callers whose identity lacks the admin flag. It must
// run after JWTMiddleware.
func RequireAdmin() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := IdentityFromContext(r.Context())
			if !ok {
				WriteError(w, r, apperror.NewAuthError("authentication required", nil))
				return
			}
			if !id.IsAdmin {
				WriteError(w, r, apperror.NewUnauthorizedError("admin privileges required", nil))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
