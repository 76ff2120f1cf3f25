package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"clinic-deploy/internal/domain"
)

// AuthOption はAuthServiceの設定を変更する。
type AuthOption func(*AuthService)

// WithBcryptCost はパスワードハッシュのコストを指定する。
func WithBcryptCost(cost int) AuthOption {
	return func(s *AuthService) {
		s.cost = cost
	}
}

// AuthService はスタブAPIの利用者認証とセッショントークンを管理する。
// ユーザーとトークンはプロセス内のメモリにのみ保持する。
type AuthService struct {
	mu       sync.RWMutex
	users    map[string]*domain.User // key: 小文字のメールアドレス
	sessions map[string]string       // token -> メールアドレス
	cost     int
	newToken func() string
}

// NewAuthService は新しいAuthServiceを生成する。
func NewAuthService(opts ...AuthOption) *AuthService {
	s := &AuthService{
		users:    make(map[string]*domain.User),
		sessions: make(map[string]string),
		cost:     bcrypt.DefaultCost,
		newToken: func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// AddUser はユーザーを登録する。パスワードはbcryptでハッシュ化して保持する。
func (s *AuthService) AddUser(email, name, role, password string, disabled bool) error {
	if normalizeEmail(email) == "" {
		return &domain.ValidationError{Field: "email", Message: "is required"}
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[normalizeEmail(email)] = &domain.User{
		Email:        email,
		Name:         name,
		Role:         role,
		PasswordHash: hash,
		Disabled:     disabled,
	}
	return nil
}

// verify はメールアドレスとパスワードを照合する。
func (s *AuthService) verify(email, password string) (*domain.User, error) {
	s.mu.RLock()
	user, ok := s.users[normalizeEmail(email)]
	s.mu.RUnlock()
	if !ok {
		// ユーザーの存在有無は区別しない
		return nil, domain.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("comparing password: %w", err)
	}
	if user.Disabled {
		return nil, domain.ErrUserDisabled
	}
	return user, nil
}

// Login は認証に成功したユーザーに新しいセッショントークンを発行する。
func (s *AuthService) Login(ctx context.Context, email, password string) (string, *domain.User, error) {
	user, err := s.verify(email, password)
	if err != nil {
		slog.WarnContext(ctx, "login rejected",
			"operation", "login",
			"email", email,
			"error", err,
		)
		return "", nil, err
	}

	token := s.newToken()
	s.mu.Lock()
	s.sessions[token] = normalizeEmail(user.Email)
	s.mu.Unlock()

	slog.InfoContext(ctx, "login succeeded",
		"operation", "login",
		"email", user.Email,
	)
	return token, user, nil
}

// Authenticate はセッショントークンに紐づくユーザーを返す。
func (s *AuthService) Authenticate(ctx context.Context, token string) (*domain.User, error) {
	if token == "" {
		return nil, domain.ErrUnauthenticated
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	email, ok := s.sessions[token]
	if !ok {
		return nil, domain.ErrUnauthenticated
	}
	user, ok := s.users[email]
	if !ok || user.Disabled {
		return nil, domain.ErrUnauthenticated
	}
	return user, nil
}

// VerifyBasic はBasic認証の資格情報を照合する。
func (s *AuthService) VerifyBasic(ctx context.Context, email, password string) (*domain.User, error) {
	return s.verify(email, password)
}

// Logout はセッショントークンを無効化する。
func (s *AuthService) Logout(ctx context.Context, token string) {
	s.mu.Lock()
	delete(s.sessions, token)
	s.mu.Unlock()
}
