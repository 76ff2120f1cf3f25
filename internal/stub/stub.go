// Package stub はプローブの対象となるクリニックAPIのローカル実装を組み立てる。
package stub

import (
	"context"
	"fmt"
	"net/http"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"clinic-deploy/internal/handler"
	"clinic-deploy/internal/repository"
	"clinic-deploy/internal/usecase"
)

// DeniedEmail は無効化された状態で登録される利用者。
const (
	DeniedEmail    = "denied@clinicafisio.com.br"
	deniedPassword = "SomePassword123!"
)

// Options はスタブAPIの初期設定。
type Options struct {
	AdminEmail    string
	AdminPassword string
	// BcryptCost が0の場合はbcrypt.DefaultCostを使う。
	BcryptCost int
}

// NewAPI はテーブルを作成し、利用者を登録したうえでルーターを返す。
func NewAPI(ctx context.Context, db *gorm.DB, opts Options) (http.Handler, error) {
	if err := repository.AutoMigrate(ctx, db); err != nil {
		return nil, fmt.Errorf("migrating clinic tables: %w", err)
	}

	cost := opts.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	authService := usecase.NewAuthService(usecase.WithBcryptCost(cost))
	if err := authService.AddUser(opts.AdminEmail, "Administrador", "admin", opts.AdminPassword, false); err != nil {
		return nil, fmt.Errorf("seeding admin user: %w", err)
	}
	if err := authService.AddUser(DeniedEmail, "Acesso Negado", "therapist", deniedPassword, true); err != nil {
		return nil, fmt.Errorf("seeding denied user: %w", err)
	}

	clinicService := usecase.NewClinicService(
		repository.NewPatientRepository(db),
		repository.NewAppointmentRepository(db),
		repository.NewSessionRepository(db),
	)

	return handler.NewRouter(
		handler.NewAuthHandler(authService),
		handler.NewClinicHandler(clinicService),
		authService,
	), nil
}
