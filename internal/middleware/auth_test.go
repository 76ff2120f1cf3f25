package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"clinic-deploy/internal/domain"
)

// mockAuthenticator はテスト用のモック。
type mockAuthenticator struct {
	tokens map[string]*domain.User
	basic  map[string]string
}

func (m *mockAuthenticator) Authenticate(ctx context.Context, token string) (*domain.User, error) {
	if user, ok := m.tokens[token]; ok {
		return user, nil
	}
	return nil, domain.ErrUnauthenticated
}

func (m *mockAuthenticator) VerifyBasic(ctx context.Context, email, password string) (*domain.User, error) {
	if email == "denied@clinicafisio.com.br" {
		return nil, domain.ErrUserDisabled
	}
	if pw, ok := m.basic[email]; ok && pw == password {
		return &domain.User{Email: email}, nil
	}
	return nil, domain.ErrInvalidCredentials
}

func newProtectedHandler() (http.Handler, *string) {
	var seen string
	auth := &mockAuthenticator{
		tokens: map[string]*domain.User{"valid-token": {Email: "admin@clinicafisio.com.br"}},
		basic:  map[string]string{"admin@clinicafisio.com.br": "AdminTeste123!"},
	}
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if user, ok := UserFromContext(r.Context()); ok {
			seen = user.Email
		}
		w.WriteHeader(http.StatusOK)
	})
	return RequireAuth(auth)(next), &seen
}

func TestRequireAuth(t *testing.T) {
	tests := []struct {
		name       string
		setup      func(r *http.Request)
		wantStatus int
	}{
		{
			name:       "bearer token",
			setup:      func(r *http.Request) { r.Header.Set("Authorization", "Bearer valid-token") },
			wantStatus: http.StatusOK,
		},
		{
			name: "session cookie",
			setup: func(r *http.Request) {
				r.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "valid-token"})
			},
			wantStatus: http.StatusOK,
		},
		{
			name:       "basic auth",
			setup:      func(r *http.Request) { r.SetBasicAuth("admin@clinicafisio.com.br", "AdminTeste123!") },
			wantStatus: http.StatusOK,
		},
		{
			name:       "no credentials",
			setup:      func(r *http.Request) {},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "unknown token",
			setup:      func(r *http.Request) { r.Header.Set("Authorization", "Bearer bogus") },
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "wrong basic password",
			setup:      func(r *http.Request) { r.SetBasicAuth("admin@clinicafisio.com.br", "wrong") },
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "disabled user",
			setup:      func(r *http.Request) { r.SetBasicAuth("denied@clinicafisio.com.br", "SomePassword123!") },
			wantStatus: http.StatusForbidden,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler, seen := newProtectedHandler()
			req := httptest.NewRequest(http.MethodGet, "/api/auth/profile", nil)
			tt.setup(req)
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("want status %d, got %d", tt.wantStatus, rec.Code)
			}
			if tt.wantStatus == http.StatusOK && *seen != "admin@clinicafisio.com.br" {
				t.Errorf("user should be stored in context, got %q", *seen)
			}
		})
	}
}

func TestTokenFromRequest_PrefersBearer(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer header-token")
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "cookie-token"})

	if got := TokenFromRequest(req); got != "header-token" {
		t.Errorf("want header-token, got %s", got)
	}
}
