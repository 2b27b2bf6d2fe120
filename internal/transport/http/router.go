package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"attest/internal/platform/health"
	"attest/internal/platform/middleware"
)

// NewRouter wires all endpoints with the middleware stack. Registration,
// certificate verification, operation polling, health, and metrics are
// public; everything else requires a caller token.
func NewRouter(h *Handler, hc *health.Handler, validator middleware.TokenValidator, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Timeout(60 * time.Second))

	hc.Register(r)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.ContentTypeJSON)
		r.Post("/identities", h.handleRegisterIdentity)
	})

	r.Get("/certificates/{certID}", h.handleVerifyCertificate)
	r.Get("/operations/{handle}", h.handleOperationStatus)

	r.Group(func(r chi.Router) {
		r.Use(middleware.ContentTypeJSON)
		r.Use(middleware.CallerAuth(validator, logger))

		r.Put("/identities/{address}/role", h.handleUpdateRole)
		r.Post("/identities/{address}/verification", h.handleVerifyInstitution)
		r.Delete("/identities/{address}/verification", h.handleRevokeVerification)
		r.Put("/profile", h.handleUpdateProfile)

		r.Post("/exams", h.handleCreateExam)
		r.Get("/exams", h.handleListExams)
		r.Get("/exams/{examID}", h.handleExamDetail)
		r.Post("/exams/{examID}/status", h.handleTransitionExam)
		r.Post("/exams/{examID}/enrollments", h.handleEnrollStudents)
		r.Post("/exams/{examID}/results", h.handleSubmitResult)

		r.Post("/certificates", h.handleIssueCertificate)
		r.Get("/certificates", h.handleListIssuedCertificates)
		r.Delete("/certificates/{certID}", h.handleRevokeCertificate)

		r.Get("/students/{address}/transcript", h.handleStudentTranscript)
	})

	return r
}
