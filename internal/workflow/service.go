// Package workflow coordinates writes across the content store and the
// ledger. It owns the ordering rule that a ledger record may only ever
// reference content that is already durably stored, and it is the only
// caller of the confirmation engine.
package workflow

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	contracts "attest/contracts/ledger"
	"attest/internal/confirm"
	"attest/internal/content"
	"attest/internal/ledger"
	"attest/internal/stats"
	"attest/internal/workflow/metrics"
	"attest/internal/workflow/policy"
	"attest/internal/workflow/tracer"
	"attest/pkg/faults"
)

// Service runs the credential workflows. All ledger mutations go through
// the confirmation engine; content uploads always happen before the
// ledger write that references them.
type Service struct {
	gateway *ledger.Gateway
	store   content.Store
	engine  *confirm.Engine
	logger  *slog.Logger
	tracer  tracer.Tracer
}

// Option configures the Service.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithTracer(t tracer.Tracer) Option {
	return func(s *Service) {
		if t != nil {
			s.tracer = t
		}
	}
}

// NewService builds a workflow service over the given collaborators.
func NewService(gateway *ledger.Gateway, store content.Store, engine *confirm.Engine, opts ...Option) *Service {
	s := &Service{
		gateway: gateway,
		store:   store,
		engine:  engine,
		logger:  slog.Default(),
		tracer:  tracer.NewNoop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// traced wraps an operation with a span and outcome metrics.
func (s *Service) traced(ctx context.Context, op, spanName string, caller Caller, fn func(context.Context) Outcome) Outcome {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, spanName,
		tracer.String(tracer.AttrCaller, caller.Address),
		tracer.String(tracer.AttrCallerRole, string(caller.Role)),
	)

	out := fn(ctx)

	span.SetAttributes(tracer.String(tracer.AttrOutcome, string(out.Status)))
	var spanErr error
	if out.Status == StatusFailed {
		spanErr = faults.New(out.Kind, out.Message)
	}
	span.End(spanErr)
	metrics.ObserveOperation(op, string(out.Status), time.Since(start).Seconds())
	return out
}

// confirmWrite drives a write through the engine. The second return is
// non-nil when the write did not verify: a pending snapshot if the
// caller stopped waiting, or the failure outcome.
func (s *Service) confirmWrite(ctx context.Context, w confirm.Write) (*confirm.Result, *Outcome) {
	res := s.engine.Confirm(ctx, w)
	if !res.State.Terminal() {
		out := Pending(res.Handle)
		return res, &out
	}
	if res.State == confirm.StateFailed {
		out := Failed(res.Err)
		return res, &out
	}
	return res, nil
}

// upload stores a blob before any ledger write may reference it.
func (s *Service) upload(ctx context.Context, span tracer.Span, data []byte) (string, error) {
	ref, err := s.store.Put(ctx, data)
	if err != nil {
		return "", err
	}
	content.ValidateRef(s.logger, ref)
	span.AddEvent(tracer.EventContentStored, tracer.String(tracer.AttrContentRef, ref))
	return ref, nil
}

// reportOrphan records a content upload left behind by a failed flow.
// Orphans are harmless (content addressing deduplicates the re-upload on
// retry) but worth an audit trail.
func (s *Service) reportOrphan(op, ref string) {
	s.logger.Warn("content upload orphaned by failed flow",
		"op", op,
		"ref", ref,
	)
	metrics.IncrementOrphanedUploads(op)
}

func denied(op policy.Operation) Outcome {
	return Failed(faults.New(faults.CodePermissionDenied, "caller may not "+string(op)))
}

// callerFacts reads the caller's own identity to establish the verified
// flag for policy decisions.
func (s *Service) callerFacts(ctx context.Context, caller Caller) (policy.Facts, error) {
	rec, err := s.gateway.GetIdentity(ctx, caller.Address)
	if err != nil {
		if faults.HasCode(err, faults.CodeNotFound) {
			return policy.Facts{}, nil
		}
		return policy.Facts{}, err
	}
	return policy.Facts{CallerVerified: rec.Verified}, nil
}

func statusRank(s contracts.ExamStatus) int {
	switch s {
	case contracts.ExamUpcoming:
		return 0
	case contracts.ExamInProgress:
		return 1
	case contracts.ExamCompleted:
		return 2
	default:
		return -1
	}
}

// RegisterIdentity self-registers an address with the requested role.
func (s *Service) RegisterIdentity(ctx context.Context, address string, role contracts.Role) Outcome {
	caller := Caller{Address: address, Role: contracts.RoleNone}
	return s.traced(ctx, string(policy.OpRegisterIdentity), tracer.SpanRegisterIdentity, caller, func(ctx context.Context) Outcome {
		if address == "" {
			return Failed(faults.New(faults.CodeInvalidInput, "address cannot be empty"))
		}
		if !role.Valid() || role == contracts.RoleNone {
			return Failed(faults.New(faults.CodeInvalidInput, "unknown role"))
		}
		if role == contracts.RoleAdmin {
			return Failed(faults.New(faults.CodePermissionDenied, "admin identities are provisioned, not self-registered"))
		}

		_, out := s.confirmWrite(ctx, confirm.Write{
			Key: "identity/" + address,
			Op:  string(contracts.OpRegisterIdentity),
			Submit: func(ctx context.Context) (*ledger.TxResult, error) {
				return s.gateway.RegisterIdentity(ctx, address, role)
			},
			Verify: func(ctx context.Context, _ *ledger.TxResult) error {
				rec, err := s.gateway.GetIdentity(ctx, address)
				if err != nil {
					return err
				}
				if rec.Role != role {
					return faults.New(faults.CodeConsistencyFault, "recorded role differs from intent")
				}
				return nil
			},
		})
		if out != nil {
			return *out
		}
		return Success(map[string]string{"address": address, "role": string(role)})
	})
}

// UpdateRole changes an identity's role. Admin only.
func (s *Service) UpdateRole(ctx context.Context, caller Caller, address string, role contracts.Role) Outcome {
	return s.traced(ctx, string(policy.OpUpdateRole), tracer.SpanUpdateRole, caller, func(ctx context.Context) Outcome {
		if !policy.CanPerform(caller.Role, policy.OpUpdateRole, policy.Facts{}) {
			return denied(policy.OpUpdateRole)
		}
		if !role.Valid() {
			return Failed(faults.New(faults.CodeInvalidInput, "unknown role"))
		}

		_, out := s.confirmWrite(ctx, confirm.Write{
			Key: "identity/" + address,
			Op:  string(contracts.OpUpdateRole),
			Submit: func(ctx context.Context) (*ledger.TxResult, error) {
				return s.gateway.UpdateRole(ctx, caller.Address, address, role)
			},
			Verify: func(ctx context.Context, _ *ledger.TxResult) error {
				rec, err := s.gateway.GetIdentity(ctx, address)
				if err != nil {
					return err
				}
				if rec.Role != role {
					return faults.New(faults.CodeConsistencyFault, "recorded role differs from intent")
				}
				return nil
			},
		})
		if out != nil {
			return *out
		}
		return Success(map[string]string{"address": address, "role": string(role)})
	})
}

// VerifyInstitution grants the verified flag to an institution identity.
func (s *Service) VerifyInstitution(ctx context.Context, caller Caller, address string) Outcome {
	return s.traced(ctx, string(policy.OpVerifyInstitution), tracer.SpanVerifyInstitution, caller, func(ctx context.Context) Outcome {
		return s.setVerified(ctx, caller, address, true, policy.OpVerifyInstitution)
	})
}

// RevokeVerification removes the verified flag. Escape hatch; admin only.
func (s *Service) RevokeVerification(ctx context.Context, caller Caller, address string) Outcome {
	return s.traced(ctx, string(policy.OpRevokeVerification), tracer.SpanVerifyInstitution, caller, func(ctx context.Context) Outcome {
		return s.setVerified(ctx, caller, address, false, policy.OpRevokeVerification)
	})
}

func (s *Service) setVerified(ctx context.Context, caller Caller, address string, verified bool, op policy.Operation) Outcome {
	if !policy.CanPerform(caller.Role, op, policy.Facts{}) {
		return denied(op)
	}

	target, err := s.gateway.GetIdentity(ctx, address)
	if err != nil {
		return Failed(err)
	}
	if target.Role != contracts.RoleInstitution {
		return Failed(faults.New(faults.CodeInvalidInput, "only institution identities carry the verified flag"))
	}

	_, out := s.confirmWrite(ctx, confirm.Write{
		Key: "identity/" + address,
		Op:  string(contracts.OpSetVerified),
		Submit: func(ctx context.Context) (*ledger.TxResult, error) {
			return s.gateway.SetVerified(ctx, caller.Address, address, verified)
		},
		Verify: func(ctx context.Context, _ *ledger.TxResult) error {
			rec, err := s.gateway.GetIdentity(ctx, address)
			if err != nil {
				return err
			}
			if rec.Verified != verified {
				return faults.New(faults.CodeConsistencyFault, "recorded verified flag differs from intent")
			}
			return nil
		},
	})
	if out != nil {
		return *out
	}
	return Success(map[string]any{"address": address, "verified": verified})
}

// UpdateProfile uploads a new profile blob and points the caller's
// identity at it. Content is written strictly before the ledger
// reference; a failed ledger write leaves at most an orphaned blob.
func (s *Service) UpdateProfile(ctx context.Context, caller Caller, profile InstitutionProfile) Outcome {
	return s.traced(ctx, string(policy.OpUpdateProfile), tracer.SpanUpdateProfile, caller, func(ctx context.Context) Outcome {
		if !policy.CanPerform(caller.Role, policy.OpUpdateProfile, policy.Facts{OwnsResource: true}) {
			return denied(policy.OpUpdateProfile)
		}
		if profile.Name == "" {
			return Failed(faults.New(faults.CodeInvalidInput, "profile name cannot be empty"))
		}
		profile.LastUpdated = time.Now().Unix()

		blob, err := json.Marshal(profile)
		if err != nil {
			return Failed(faults.Wrap(err, faults.CodeInternal, "encoding profile"))
		}

		uctx, span := s.tracer.Start(ctx, tracer.SpanContentUpload)
		ref, err := s.upload(uctx, span, blob)
		span.End(err)
		if err != nil {
			return Failed(err)
		}

		_, out := s.confirmWrite(ctx, confirm.Write{
			Key: "identity/" + caller.Address,
			Op:  string(contracts.OpSetProfileRef),
			Submit: func(ctx context.Context) (*ledger.TxResult, error) {
				return s.gateway.SetProfileRef(ctx, caller.Address, ref)
			},
			Verify: func(ctx context.Context, _ *ledger.TxResult) error {
				rec, err := s.gateway.GetIdentity(ctx, caller.Address)
				if err != nil {
					return err
				}
				if rec.ContentRef != ref {
					return faults.New(faults.CodeConsistencyFault, "recorded profile ref differs from intent")
				}
				return nil
			},
		})
		if out != nil {
			if out.Status == StatusFailed {
				s.reportOrphan(string(contracts.OpSetProfileRef), ref)
			}
			return *out
		}
		return Success(map[string]string{"address": caller.Address, "content_ref": ref})
	})
}

// CreateExam uploads the exam material (if any) and records the exam on
// the ledger. The policy check runs before any write so a denied caller
// never stores content.
func (s *Service) CreateExam(ctx context.Context, caller Caller, input CreateExamInput) Outcome {
	return s.traced(ctx, string(policy.OpCreateExam), tracer.SpanCreateExam, caller, func(ctx context.Context) Outcome {
		if input.Title == "" {
			return Failed(faults.New(faults.CodeInvalidInput, "exam title cannot be empty"))
		}
		if input.DurationMin <= 0 {
			return Failed(faults.New(faults.CodeInvalidInput, "exam duration must be positive"))
		}

		facts, err := s.callerFacts(ctx, caller)
		if err != nil {
			return Failed(err)
		}
		if !policy.CanPerform(caller.Role, policy.OpCreateExam, facts) {
			return denied(policy.OpCreateExam)
		}

		var ref string
		if len(input.Material) > 0 {
			uctx, span := s.tracer.Start(ctx, tracer.SpanContentUpload)
			ref, err = s.upload(uctx, span, input.Material)
			span.End(err)
			if err != nil {
				return Failed(err)
			}
		}

		examID := uuid.NewString()
		payload := contracts.CreateExamPayload{
			ExamID:      examID,
			Title:       input.Title,
			Description: input.Description,
			Date:        input.Date.Unix(),
			DurationMin: input.DurationMin,
			ContentRef:  ref,
		}

		_, out := s.confirmWrite(ctx, confirm.Write{
			Key: "exam/" + examID,
			Op:  string(contracts.OpCreateExam),
			Submit: func(ctx context.Context) (*ledger.TxResult, error) {
				return s.gateway.CreateExam(ctx, caller.Address, payload)
			},
			Verify: func(ctx context.Context, _ *ledger.TxResult) error {
				rec, err := s.gateway.GetExam(ctx, examID)
				if err != nil {
					return err
				}
				if rec.Title != input.Title || rec.ContentRef != ref || rec.Status != contracts.ExamUpcoming {
					return faults.New(faults.CodeConsistencyFault, "recorded exam differs from intent")
				}
				return nil
			},
		})
		if out != nil {
			if out.Status == StatusFailed && ref != "" {
				s.reportOrphan(string(contracts.OpCreateExam), ref)
			}
			return *out
		}

		rec, err := s.gateway.GetExam(ctx, examID)
		if err != nil {
			return Success(map[string]string{"exam_id": examID})
		}
		return Success(rec)
	})
}

// TransitionExam moves an exam forward through its lifecycle. Reverse
// transitions are rejected before any write.
func (s *Service) TransitionExam(ctx context.Context, caller Caller, examID string, status contracts.ExamStatus) Outcome {
	return s.traced(ctx, string(policy.OpTransitionExam), tracer.SpanTransitionExam, caller, func(ctx context.Context) Outcome {
		if statusRank(status) < 0 {
			return Failed(faults.New(faults.CodeInvalidInput, "unknown exam status"))
		}

		exam, err := s.gateway.GetExam(ctx, examID)
		if err != nil {
			return Failed(err)
		}
		if !policy.CanPerform(caller.Role, policy.OpTransitionExam, policy.Facts{OwnsResource: exam.Institution == caller.Address}) {
			return denied(policy.OpTransitionExam)
		}
		if statusRank(status) < statusRank(exam.Status) {
			return Failed(faults.New(faults.CodeInvalidInput, "exam status transitions are forward-only"))
		}
		if status == exam.Status {
			return Success(exam)
		}

		_, out := s.confirmWrite(ctx, confirm.Write{
			Key: "exam/" + examID,
			Op:  string(contracts.OpUpdateExamStatus),
			Submit: func(ctx context.Context) (*ledger.TxResult, error) {
				return s.gateway.UpdateExamStatus(ctx, caller.Address, examID, status)
			},
			Verify: func(ctx context.Context, _ *ledger.TxResult) error {
				rec, err := s.gateway.GetExam(ctx, examID)
				if err != nil {
					return err
				}
				if rec.Status != status {
					return faults.New(faults.CodeConsistencyFault, "recorded exam status differs from intent")
				}
				return nil
			},
		})
		if out != nil {
			return *out
		}
		return Success(map[string]string{"exam_id": examID, "status": string(status)})
	})
}

// EnrollStudents adds students to an exam while it is still open.
// Students already enrolled are a no-op, not an error.
func (s *Service) EnrollStudents(ctx context.Context, caller Caller, examID string, students []string) Outcome {
	return s.traced(ctx, string(policy.OpEnrollStudents), tracer.SpanEnrollStudents, caller, func(ctx context.Context) Outcome {
		if len(students) == 0 {
			return Failed(faults.New(faults.CodeInvalidInput, "no students to enroll"))
		}
		for _, st := range students {
			if st == "" {
				return Failed(faults.New(faults.CodeInvalidInput, "student address cannot be empty"))
			}
		}

		exam, err := s.gateway.GetExam(ctx, examID)
		if err != nil {
			return Failed(err)
		}
		if !policy.CanPerform(caller.Role, policy.OpEnrollStudents, policy.Facts{OwnsResource: exam.Institution == caller.Address}) {
			return denied(policy.OpEnrollStudents)
		}
		if exam.Status == contracts.ExamCompleted {
			return Failed(faults.New(faults.CodeInvalidInput, "enrollment is closed on a completed exam"))
		}

		_, out := s.confirmWrite(ctx, confirm.Write{
			Key: "exam/" + examID,
			Op:  string(contracts.OpEnrollStudents),
			Submit: func(ctx context.Context) (*ledger.TxResult, error) {
				return s.gateway.EnrollStudents(ctx, caller.Address, examID, students)
			},
			Verify: func(ctx context.Context, _ *ledger.TxResult) error {
				rec, err := s.gateway.GetExam(ctx, examID)
				if err != nil {
					return err
				}
				enrolled := make(map[string]bool, len(rec.Enrolled))
				for _, st := range rec.Enrolled {
					enrolled[st] = true
				}
				for _, st := range students {
					if !enrolled[st] {
						return faults.New(faults.CodeConsistencyFault, "student missing from recorded enrollment")
					}
				}
				return nil
			},
		})
		if out != nil {
			return *out
		}
		return Success(map[string]any{"exam_id": examID, "enrolled": students})
	})
}

// SubmitResult records a student's result. Resubmitting for the same
// (exam, student) pair overwrites the previous record.
func (s *Service) SubmitResult(ctx context.Context, caller Caller, examID string, r ResultInput) Outcome {
	return s.traced(ctx, string(policy.OpSubmitResult), tracer.SpanSubmitResult, caller, func(ctx context.Context) Outcome {
		if r.Student == "" {
			return Failed(faults.New(faults.CodeInvalidInput, "student address cannot be empty"))
		}
		if r.Score < 0 || r.Score > 100 {
			return Failed(faults.New(faults.CodeInvalidInput, "score must be between 0 and 100"))
		}
		if !r.Grade.Valid() {
			return Failed(faults.New(faults.CodeInvalidInput, "unknown grade"))
		}

		exam, err := s.gateway.GetExam(ctx, examID)
		if err != nil {
			return Failed(err)
		}
		if !policy.CanPerform(caller.Role, policy.OpSubmitResult, policy.Facts{OwnsResource: exam.Institution == caller.Address}) {
			return denied(policy.OpSubmitResult)
		}

		payload := contracts.SubmitResultPayload{
			ExamID:  examID,
			Student: r.Student,
			Score:   r.Score,
			Grade:   r.Grade,
			Notes:   r.Notes,
		}

		_, out := s.confirmWrite(ctx, confirm.Write{
			Key: "exam/" + examID + "/result/" + r.Student,
			Op:  string(contracts.OpSubmitResult),
			Submit: func(ctx context.Context) (*ledger.TxResult, error) {
				return s.gateway.SubmitResult(ctx, caller.Address, payload)
			},
			Verify: func(ctx context.Context, _ *ledger.TxResult) error {
				recs, err := s.gateway.GetResults(ctx, examID)
				if err != nil {
					return err
				}
				for _, rec := range recs {
					if rec.Student == r.Student {
						if rec.Score != r.Score || rec.Grade != r.Grade {
							return faults.New(faults.CodeConsistencyFault, "recorded result differs from intent")
						}
						return nil
					}
				}
				return faults.New(faults.CodeConsistencyFault, "result missing from ledger after submission")
			},
		})
		if out != nil {
			return *out
		}
		return Success(map[string]any{"exam_id": examID, "student": r.Student, "score": r.Score, "grade": string(r.Grade)})
	})
}

// IssueCertificate uploads certificate metadata and records the
// certificate on the ledger. The ledger-assigned id is the only
// authoritative output of this operation.
func (s *Service) IssueCertificate(ctx context.Context, caller Caller, meta CertificateMetadata) Outcome {
	return s.traced(ctx, string(policy.OpIssueCertificate), tracer.SpanIssueCertificate, caller, func(ctx context.Context) Outcome {
		if meta.Student == "" || meta.StudentName == "" || meta.Degree == "" {
			return Failed(faults.New(faults.CodeInvalidInput, "student, student name, and degree are required"))
		}

		facts, err := s.callerFacts(ctx, caller)
		if err != nil {
			return Failed(err)
		}
		if !policy.CanPerform(caller.Role, policy.OpIssueCertificate, facts) {
			return denied(policy.OpIssueCertificate)
		}

		meta.IssuedBy = caller.Address
		blob, err := json.Marshal(meta)
		if err != nil {
			return Failed(faults.Wrap(err, faults.CodeInternal, "encoding certificate metadata"))
		}

		uctx, span := s.tracer.Start(ctx, tracer.SpanContentUpload)
		ref, err := s.upload(uctx, span, blob)
		span.End(err)
		if err != nil {
			return Failed(err)
		}

		res, out := s.confirmWrite(ctx, confirm.Write{
			Key: "certificate/" + meta.Student,
			Op:  string(contracts.OpIssueCertificate),
			Submit: func(ctx context.Context) (*ledger.TxResult, error) {
				return s.gateway.IssueCertificate(ctx, caller.Address, meta.Student, ref)
			},
			Verify: func(ctx context.Context, txRes *ledger.TxResult) error {
				if txRes.AssignedID == "" {
					return faults.New(faults.CodeConsistencyFault, "ledger assigned no certificate id")
				}
				rec, err := s.gateway.GetCertificate(ctx, txRes.AssignedID)
				if err != nil {
					return err
				}
				if rec.ContentRef != ref || rec.Student != meta.Student {
					return faults.New(faults.CodeConsistencyFault, "recorded certificate differs from intent")
				}
				return nil
			},
		})
		if out != nil {
			if out.Status == StatusFailed {
				s.reportOrphan(string(contracts.OpIssueCertificate), ref)
			}
			return *out
		}
		return Success(map[string]string{"certificate_id": res.AssignedID, "content_ref": ref})
	})
}

// RevokeCertificate flips a certificate's valid flag to false.
func (s *Service) RevokeCertificate(ctx context.Context, caller Caller, certID string) Outcome {
	return s.traced(ctx, string(policy.OpRevokeCertificate), tracer.SpanRevokeCertificate, caller, func(ctx context.Context) Outcome {
		cert, err := s.gateway.GetCertificate(ctx, certID)
		if err != nil {
			return Failed(err)
		}
		if !policy.CanPerform(caller.Role, policy.OpRevokeCertificate, policy.Facts{OwnsResource: cert.Institution == caller.Address}) {
			return denied(policy.OpRevokeCertificate)
		}

		_, out := s.confirmWrite(ctx, confirm.Write{
			Key: "certificate/" + cert.Student,
			Op:  string(contracts.OpRevokeCert),
			Submit: func(ctx context.Context) (*ledger.TxResult, error) {
				return s.gateway.RevokeCertificate(ctx, caller.Address, certID)
			},
			Verify: func(ctx context.Context, _ *ledger.TxResult) error {
				rec, err := s.gateway.GetCertificate(ctx, certID)
				if err != nil {
					return err
				}
				if rec.Valid {
					return faults.New(faults.CodeConsistencyFault, "certificate still recorded as valid")
				}
				return nil
			},
		})
		if out != nil {
			return *out
		}
		return Success(map[string]any{"certificate_id": certID, "valid": false})
	})
}

// VerifyCertificate is the public verification read path: the ledger
// record plus its resolved metadata. A ledger certificate whose content
// cannot be resolved is a consistency fault, never silently hidden.
func (s *Service) VerifyCertificate(ctx context.Context, certID string) Outcome {
	return s.traced(ctx, "verify_certificate", tracer.SpanVerifyCertificate, Caller{}, func(ctx context.Context) Outcome {
		cert, err := s.gateway.GetCertificate(ctx, certID)
		if err != nil {
			return Failed(err)
		}

		blob, err := s.store.Get(ctx, cert.ContentRef)
		if err != nil {
			if faults.HasCode(err, faults.CodeContentNotFound) {
				s.logger.Error("certificate references unresolvable content",
					"certificate_id", certID,
					"ref", cert.ContentRef,
				)
				return Failed(&faults.Error{
					Code:    faults.CodeConsistencyFault,
					Message: "certificate content is unresolvable",
					Err:     err,
				})
			}
			return Failed(err)
		}

		var meta CertificateMetadata
		if err := json.Unmarshal(blob, &meta); err != nil {
			return Failed(faults.Wrap(err, faults.CodeInternal, "decoding certificate metadata"))
		}
		return Success(CertificateVerification{Certificate: cert, Metadata: &meta})
	})
}

// ExamDetail fetches an exam, its results, and derived statistics. The
// two ledger reads run concurrently; statistics are recomputed from the
// full result set on every call.
func (s *Service) ExamDetail(ctx context.Context, examID string) Outcome {
	return s.traced(ctx, "exam_detail", tracer.SpanExamDetail, Caller{}, func(ctx context.Context) Outcome {
		var (
			exam    *contracts.ExamRecord
			results []contracts.ResultRecord
		)

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			exam, err = s.gateway.GetExam(gctx, examID)
			return err
		})
		g.Go(func() error {
			var err error
			results, err = s.gateway.GetResults(gctx, examID)
			return err
		})
		if err := g.Wait(); err != nil {
			return Failed(err)
		}

		return Success(ExamDetail{
			Exam:    exam,
			Results: results,
			Stats:   stats.Summarize(results),
		})
	})
}

// StudentTranscript fetches a student's results and certificates across
// all exams.
func (s *Service) StudentTranscript(ctx context.Context, student string) Outcome {
	return s.traced(ctx, "transcript", tracer.SpanStudentTranscript, Caller{}, func(ctx context.Context) Outcome {
		var (
			results []contracts.ResultRecord
			certs   []contracts.CertificateRecord
		)

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			results, err = s.gateway.GetResultsByStudent(gctx, student)
			return err
		})
		g.Go(func() error {
			var err error
			certs, err = s.gateway.ListCertificatesByStudent(gctx, student)
			return err
		})
		if err := g.Wait(); err != nil {
			return Failed(err)
		}

		return Success(Transcript{Student: student, Results: results, Certificates: certs})
	})
}

// ListExams fetches all exams owned by an institution.
func (s *Service) ListExams(ctx context.Context, institution string) Outcome {
	exams, err := s.gateway.ListExamsByInstitution(ctx, institution)
	if err != nil {
		return Failed(err)
	}
	return Success(exams)
}

// ListIssuedCertificates fetches all certificates an institution has
// issued, revoked ones included.
func (s *Service) ListIssuedCertificates(ctx context.Context, institution string) Outcome {
	certs, err := s.gateway.ListCertificatesByInstitution(ctx, institution)
	if err != nil {
		return Failed(err)
	}
	return Success(certs)
}

// OperationStatus resolves a pending handle to the write's current
// state. Abandoned writes keep running in the engine, so a later poll
// reflects the true outcome.
func (s *Service) OperationStatus(_ context.Context, handle uuid.UUID) Outcome {
	res, ok := s.engine.Lookup(handle)
	if !ok {
		return Failed(faults.New(faults.CodeNotFound, "unknown operation handle"))
	}
	if !res.State.Terminal() {
		return Pending(handle)
	}
	if res.State == confirm.StateFailed {
		return Failed(res.Err)
	}
	return Success(map[string]any{
		"state":       string(res.State),
		"attempts":    res.Attempts,
		"tx_id":       string(res.TxID),
		"assigned_id": res.AssignedID,
	})
}
