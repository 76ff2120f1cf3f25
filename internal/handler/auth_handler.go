// Package handler はスタブクリニックAPIのHTTPハンドラを提供する。
package handler

import (
	"errors"
	"net/http"
	"strings"

	"clinic-deploy/internal/domain"
	"clinic-deploy/internal/middleware"
	"clinic-deploy/internal/usecase"
	"clinic-deploy/pkg/httputil"
)

// AuthHandler は認証APIのハンドラを提供する。
type AuthHandler struct {
	service *usecase.AuthService
}

// NewAuthHandler は新しいAuthHandlerを生成する。
func NewAuthHandler(service *usecase.AuthService) *AuthHandler {
	return &AuthHandler{service: service}
}

// LoginRequest はログインリクエストの形式。
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UserResponse は利用者のレスポンス形式。
type UserResponse struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

// LoginResponse はログイン成功時のレスポンス形式。
type LoginResponse struct {
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
}

func toUserResponse(u *domain.User) UserResponse {
	return UserResponse{Email: u.Email, Name: u.Name, Role: u.Role}
}

// Login は資格情報を検証し、セッションCookieとトークンを発行する。
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		httputil.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "email and password are required")
		return
	}

	token, user, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		middleware.WriteAuditLog(r.Context(), "LOGIN", req.Email, middleware.ResultFailed)
		switch {
		case errors.Is(err, domain.ErrInvalidCredentials):
			httputil.Error(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "invalid email or password")
		case errors.Is(err, domain.ErrUserDisabled):
			httputil.Error(w, http.StatusForbidden, "USER_DISABLED", "user is disabled")
		default:
			httputil.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		}
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	middleware.WriteAuditLog(r.Context(), "LOGIN", user.Email, middleware.ResultSuccess)
	httputil.JSON(w, http.StatusOK, LoginResponse{
		Token: token,
		User:  toUserResponse(user),
	})
}

// Logout はセッションを破棄してCookieを削除する。
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if token := middleware.TokenFromRequest(r); token != "" {
		h.service.Logout(r.Context(), token)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
	httputil.JSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
}

// Profile は認証済みユーザーの情報を返す。
func (h *AuthHandler) Profile(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "UNAUTHENTICATED", "authentication required")
		return
	}
	httputil.JSON(w, http.StatusOK, toUserResponse(user))
}
