package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"clinic-deploy/internal/middleware"
	"clinic-deploy/internal/usecase"
	"clinic-deploy/pkg/httputil"
)

// NewRouter はルーターを生成する。
func NewRouter(auth *AuthHandler, clinic *ClinicHandler, authService *usecase.AuthService) http.Handler {
	r := chi.NewRouter()

	// ミドルウェア
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// ルート定義
	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/login", auth.Login)
		r.Post("/auth/logout", auth.Logout)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth(authService))

			r.Get("/auth/profile", auth.Profile)

			r.Route("/patients", func(r chi.Router) {
				r.Get("/", clinic.ListPatients)
				r.Post("/", clinic.CreatePatient)
				r.Get("/{id}", clinic.GetPatient)
				r.Put("/{id}", clinic.UpdatePatient)
				r.Delete("/{id}", clinic.ArchivePatient)
			})

			r.Route("/appointments", func(r chi.Router) {
				r.Post("/", clinic.CreateAppointment)
				r.Delete("/{id}", clinic.DeleteAppointment)
			})

			r.Route("/sessions", func(r chi.Router) {
				r.Post("/", clinic.CreateSession)
				r.Delete("/{id}", clinic.DeleteSession)
				r.Post("/{id}/pain-points", clinic.CreatePainPoint)
			})

			r.Post("/lgpd/export", clinic.ExportPatientData)
		})
	})

	return otelhttp.NewHandler(r, "clinic-api")
}
