// Package httptransport is the thin HTTP layer over the workflow
// service. Handlers decode and validate requests, hand them to the
// service, and translate the outcome; no business logic lives here.
package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	contracts "attest/contracts/ledger"
	"attest/internal/platform/middleware"
	"attest/internal/workflow"
	"attest/pkg/faults"
	"attest/pkg/platform/httputil"
)

// Handler carries the workflow service into the HTTP handlers.
type Handler struct {
	svc    *workflow.Service
	logger *slog.Logger
}

func NewHandler(svc *workflow.Service, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// writeOutcome renders a workflow outcome: success with the given
// status, pending as 202, and failures via the fault-to-status mapping.
func writeOutcome(w http.ResponseWriter, out workflow.Outcome, successStatus int) {
	switch out.Status {
	case workflow.StatusSuccess:
		httputil.WriteJSON(w, successStatus, out)
	case workflow.StatusPending:
		httputil.WriteJSON(w, http.StatusAccepted, out)
	default:
		httputil.WriteJSON(w, httputil.FaultToHTTPStatus(out.Kind), out)
	}
}

func callerFrom(r *http.Request) (workflow.Caller, bool) {
	claims, ok := middleware.GetCaller(r.Context())
	if !ok {
		return workflow.Caller{}, false
	}
	return workflow.Caller{
		Address: claims.Address,
		Role:    contracts.Role(claims.Role),
	}, true
}

func (h *Handler) handleRegisterIdentity(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.DecodeAndValidate[registerIdentityRequest](w, r, h.logger, middleware.GetRequestID(r.Context()))
	if !ok {
		return
	}
	out := h.svc.RegisterIdentity(r.Context(), req.Address, contracts.Role(req.Role))
	writeOutcome(w, out, http.StatusCreated)
}

func (h *Handler) handleUpdateRole(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(r)
	if !ok {
		httputil.WriteError(w, faults.New(faults.CodePermissionDenied, "missing caller identity"))
		return
	}
	req, ok := httputil.DecodeAndValidate[updateRoleRequest](w, r, h.logger, middleware.GetRequestID(r.Context()))
	if !ok {
		return
	}
	out := h.svc.UpdateRole(r.Context(), caller, chi.URLParam(r, "address"), contracts.Role(req.Role))
	writeOutcome(w, out, http.StatusOK)
}

func (h *Handler) handleVerifyInstitution(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(r)
	if !ok {
		httputil.WriteError(w, faults.New(faults.CodePermissionDenied, "missing caller identity"))
		return
	}
	out := h.svc.VerifyInstitution(r.Context(), caller, chi.URLParam(r, "address"))
	writeOutcome(w, out, http.StatusOK)
}

func (h *Handler) handleRevokeVerification(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(r)
	if !ok {
		httputil.WriteError(w, faults.New(faults.CodePermissionDenied, "missing caller identity"))
		return
	}
	out := h.svc.RevokeVerification(r.Context(), caller, chi.URLParam(r, "address"))
	writeOutcome(w, out, http.StatusOK)
}

func (h *Handler) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(r)
	if !ok {
		httputil.WriteError(w, faults.New(faults.CodePermissionDenied, "missing caller identity"))
		return
	}
	req, ok := httputil.DecodeAndValidate[updateProfileRequest](w, r, h.logger, middleware.GetRequestID(r.Context()))
	if !ok {
		return
	}
	out := h.svc.UpdateProfile(r.Context(), caller, req.toProfile())
	writeOutcome(w, out, http.StatusOK)
}

func (h *Handler) handleCreateExam(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(r)
	if !ok {
		httputil.WriteError(w, faults.New(faults.CodePermissionDenied, "missing caller identity"))
		return
	}
	req, ok := httputil.DecodeAndValidate[createExamRequest](w, r, h.logger, middleware.GetRequestID(r.Context()))
	if !ok {
		return
	}
	out := h.svc.CreateExam(r.Context(), caller, req.toInput())
	writeOutcome(w, out, http.StatusCreated)
}

func (h *Handler) handleListExams(w http.ResponseWriter, r *http.Request) {
	institution := r.URL.Query().Get("institution")
	if institution == "" {
		httputil.WriteError(w, faults.New(faults.CodeInvalidInput, "institution query parameter is required"))
		return
	}
	writeOutcome(w, h.svc.ListExams(r.Context(), institution), http.StatusOK)
}

func (h *Handler) handleListIssuedCertificates(w http.ResponseWriter, r *http.Request) {
	institution := r.URL.Query().Get("institution")
	if institution == "" {
		httputil.WriteError(w, faults.New(faults.CodeInvalidInput, "institution query parameter is required"))
		return
	}
	writeOutcome(w, h.svc.ListIssuedCertificates(r.Context(), institution), http.StatusOK)
}

func (h *Handler) handleExamDetail(w http.ResponseWriter, r *http.Request) {
	writeOutcome(w, h.svc.ExamDetail(r.Context(), chi.URLParam(r, "examID")), http.StatusOK)
}

func (h *Handler) handleTransitionExam(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(r)
	if !ok {
		httputil.WriteError(w, faults.New(faults.CodePermissionDenied, "missing caller identity"))
		return
	}
	req, ok := httputil.DecodeAndValidate[transitionExamRequest](w, r, h.logger, middleware.GetRequestID(r.Context()))
	if !ok {
		return
	}
	out := h.svc.TransitionExam(r.Context(), caller, chi.URLParam(r, "examID"), contracts.ExamStatus(req.Status))
	writeOutcome(w, out, http.StatusOK)
}

func (h *Handler) handleEnrollStudents(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(r)
	if !ok {
		httputil.WriteError(w, faults.New(faults.CodePermissionDenied, "missing caller identity"))
		return
	}
	req, ok := httputil.DecodeAndValidate[enrollStudentsRequest](w, r, h.logger, middleware.GetRequestID(r.Context()))
	if !ok {
		return
	}
	out := h.svc.EnrollStudents(r.Context(), caller, chi.URLParam(r, "examID"), req.Students)
	writeOutcome(w, out, http.StatusOK)
}

func (h *Handler) handleSubmitResult(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(r)
	if !ok {
		httputil.WriteError(w, faults.New(faults.CodePermissionDenied, "missing caller identity"))
		return
	}
	req, ok := httputil.DecodeAndValidate[submitResultRequest](w, r, h.logger, middleware.GetRequestID(r.Context()))
	if !ok {
		return
	}
	out := h.svc.SubmitResult(r.Context(), caller, chi.URLParam(r, "examID"), req.toInput())
	writeOutcome(w, out, http.StatusOK)
}

func (h *Handler) handleIssueCertificate(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(r)
	if !ok {
		httputil.WriteError(w, faults.New(faults.CodePermissionDenied, "missing caller identity"))
		return
	}
	req, ok := httputil.DecodeAndValidate[issueCertificateRequest](w, r, h.logger, middleware.GetRequestID(r.Context()))
	if !ok {
		return
	}
	out := h.svc.IssueCertificate(r.Context(), caller, req.toMetadata())
	writeOutcome(w, out, http.StatusCreated)
}

func (h *Handler) handleRevokeCertificate(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(r)
	if !ok {
		httputil.WriteError(w, faults.New(faults.CodePermissionDenied, "missing caller identity"))
		return
	}
	out := h.svc.RevokeCertificate(r.Context(), caller, chi.URLParam(r, "certID"))
	writeOutcome(w, out, http.StatusOK)
}

// handleVerifyCertificate is public: anyone holding a certificate id may
// check its validity and resolve its metadata.
func (h *Handler) handleVerifyCertificate(w http.ResponseWriter, r *http.Request) {
	writeOutcome(w, h.svc.VerifyCertificate(r.Context(), chi.URLParam(r, "certID")), http.StatusOK)
}

func (h *Handler) handleStudentTranscript(w http.ResponseWriter, r *http.Request) {
	writeOutcome(w, h.svc.StudentTranscript(r.Context(), chi.URLParam(r, "address")), http.StatusOK)
}

// handleOperationStatus resolves a pending handle. The handle is an
// unguessable capability, so no further authentication is required.
func (h *Handler) handleOperationStatus(w http.ResponseWriter, r *http.Request) {
	handle, err := uuid.Parse(chi.URLParam(r, "handle"))
	if err != nil {
		httputil.WriteError(w, faults.New(faults.CodeInvalidInput, "malformed operation handle"))
		return
	}
	writeOutcome(w, h.svc.OperationStatus(r.Context(), handle), http.StatusOK)
}
