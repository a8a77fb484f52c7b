package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/user/queryloop-go/config"
)

func testAuthConfig() *config.AuthConfig {
	return &config.AuthConfig{
		JWTSecret:            "test-secret",
		AccessTokenDuration:  time.Minute,
		RefreshTokenDuration: time.Hour,
	}
}

// issueToken signs a token of the given type for tests without touching the
// database.
func issueToken(t *testing.T, cfg *config.AuthConfig, user *User, tokenType string, duration time.Duration) string {
	t.Helper()
	svc := &AuthService{authConfig: *cfg}
	token, _, err := svc.generateSpecificToken(user, tokenType, duration)
	if err != nil {
		t.Fatalf("generateSpecificToken: %v", err)
	}
	return token
}

func identityEcho(t *testing.T, captured *Identity) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id, ok := IdentityFromContext(r.Context()); ok {
			*captured = id
		}
		w.WriteHeader(http.StatusNoContent)
	})
}

func TestJWTMiddleware(t *testing.T) {
	cfg := testAuthConfig()
	user := &User{ID: "11111111-1111-1111-1111-111111111111", Username: "alice"}
	admin := &User{ID: "22222222-2222-2222-2222-222222222222", Username: "root", IsAdmin: true}

	tests := []struct {
		name         string
		header       string
		wantStatus   int
		wantIdentity *Identity
	}{
		{
			name:       "missing header",
			header:     "",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "malformed header",
			header:     "Token abc",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "garbage token",
			header:     "Bearer not.a.jwt",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "refresh token rejected as access token",
			header:     "Bearer " + issueToken(t, cfg, user, tokenTypeRefresh, time.Hour),
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "expired token",
			header:     "Bearer " + issueToken(t, cfg, user, tokenTypeAccess, -time.Minute),
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:         "valid token",
			header:       "Bearer " + issueToken(t, cfg, user, tokenTypeAccess, time.Minute),
			wantStatus:   http.StatusNoContent,
			wantIdentity: &Identity{UserID: user.ID},
		},
		{
			name:         "admin flag propagated",
			header:       "Bearer " + issueToken(t, cfg, admin, tokenTypeAccess, time.Minute),
			wantStatus:   http.StatusNoContent,
			wantIdentity: &Identity{UserID: admin.ID, IsAdmin: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got Identity
			handler := JWTMiddleware(cfg)(identityEcho(t, &got))

			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", w.Code, tt.wantStatus, w.Body.String())
			}
			if tt.wantIdentity != nil && got != *tt.wantIdentity {
				t.Errorf("identity = %+v, want %+v", got, *tt.wantIdentity)
			}
		})
	}
}

func TestOptionalJWTMiddleware(t *testing.T) {
	cfg := testAuthConfig()
	user := &User{ID: "11111111-1111-1111-1111-111111111111", Username: "alice"}

	t.Run("anonymous passes through", func(t *testing.T) {
		var got Identity
		handler := OptionalJWTMiddleware(cfg)(identityEcho(t, &got))
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/questions/x", nil))

		if w.Code != http.StatusNoContent {
			t.Fatalf("status = %d, want 204", w.Code)
		}
		if got.UserID != "" {
			t.Errorf("anonymous request should carry no identity, got %+v", got)
		}
	})

	t.Run("valid token attaches identity", func(t *testing.T) {
		var got Identity
		handler := OptionalJWTMiddleware(cfg)(identityEcho(t, &got))
		req := httptest.NewRequest(http.MethodGet, "/questions/x", nil)
		req.Header.Set("Authorization", "Bearer "+issueToken(t, cfg, user, tokenTypeAccess, time.Minute))
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		if got.UserID != user.ID {
			t.Errorf("identity not attached: %+v", got)
		}
	})

	t.Run("invalid token is rejected, not downgraded", func(t *testing.T) {
		handler := OptionalJWTMiddleware(cfg)(identityEcho(t, &Identity{}))
		req := httptest.NewRequest(http.MethodGet, "/questions/x", nil)
		req.Header.Set("Authorization", "Bearer bogus")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		if w.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", w.Code)
		}
	})
}

func TestRequireAdmin(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	t.Run("no identity", func(t *testing.T) {
		w := httptest.NewRecorder()
		RequireAdmin()(ok).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/admin/moderation", nil))
		if w.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", w.Code)
		}
	})

	t.Run("non-admin identity", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/admin/moderation", nil)
		req = req.WithContext(NewContextWithIdentity(req.Context(), Identity{UserID: "u1"}))
		w := httptest.NewRecorder()
		RequireAdmin()(ok).ServeHTTP(w, req)
		if w.Code != http.StatusForbidden {
			t.Errorf("status = %d, want 403", w.Code)
		}
	})

	t.Run("admin identity", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/admin/moderation", nil)
		req = req.WithContext(NewContextWithIdentity(req.Context(), Identity{UserID: "u1", IsAdmin: true}))
		w := httptest.NewRecorder()
		RequireAdmin()(ok).ServeHTTP(w, req)
		if w.Code != http.StatusNoContent {
			t.Errorf("status = %d, want 204", w.Code)
		}
	})
}
