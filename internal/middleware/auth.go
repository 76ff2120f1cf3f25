package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"clinic-deploy/internal/domain"
	"clinic-deploy/pkg/httputil"
)

// SessionCookieName はログイン時に発行するセッションCookieの名前。
const SessionCookieName = "session"

type contextKey struct{}

var userContextKey = contextKey{}

// Authenticator はリクエストの資格情報を検証するインターフェース。
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*domain.User, error)
	VerifyBasic(ctx context.Context, email, password string) (*domain.User, error)
}

// WithUser は認証済みユーザーをcontextに格納する。
func WithUser(ctx context.Context, user *domain.User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// UserFromContext はcontextから認証済みユーザーを取り出す。
func UserFromContext(ctx context.Context) (*domain.User, bool) {
	user, ok := ctx.Value(userContextKey).(*domain.User)
	return user, ok && user != nil
}

// TokenFromRequest はBearerトークンまたはセッションCookieからトークンを取り出す。
func TokenFromRequest(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	if cookie, err := r.Cookie(SessionCookieName); err == nil {
		return cookie.Value
	}
	return ""
}

// RequireAuth は認証を必須にするミドルウェアを返す。
// Basic認証、Bearerトークン、セッションCookieのいずれかを受け付ける。
func RequireAuth(auth Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			var (
				user *domain.User
				err  error
			)
			if email, password, ok := r.BasicAuth(); ok {
				user, err = auth.VerifyBasic(ctx, email, password)
			} else {
				user, err = auth.Authenticate(ctx, TokenFromRequest(r))
			}

			if err != nil {
				if errors.Is(err, domain.ErrUserDisabled) {
					httputil.Error(w, http.StatusForbidden, "USER_DISABLED", "user is disabled")
					return
				}
				w.Header().Set("WWW-Authenticate", `Basic realm="clinic"`)
				httputil.Error(w, http.StatusUnauthorized, "UNAUTHENTICATED", "authentication required")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(ctx, user)))
		})
	}
}
