package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	contracts "attest/contracts/ledger"
	"attest/pkg/faults"
)

//go:generate mockgen -source=node.go -destination=mocks/node_mock.go -package=mocks Node

// ErrAlreadyInDesiredState reports that a mutation was skipped because the
// ledger already records the requested state. It is not a failure: retried
// intents must be distinguishable from rejected ones.
var ErrAlreadyInDesiredState = errors.New("ledger already in desired state")

// TxResult is the outcome of a single accepted mutation.
type TxResult struct {
	TxID       TxID
	AssignedID string
}

// Gateway exposes one method per ledger operation. It never retries - that
// is the confirmation engine's job - but every mutator is safe to call twice
// with the same logical intent.
type Gateway struct {
	node   Node
	logger *slog.Logger
}

// NewGateway builds a Gateway over the given node.
func NewGateway(node Node, logger *slog.Logger) *Gateway {
	return &Gateway{node: node, logger: logger}
}

// submit marshals the payload, submits the transaction, and awaits inclusion.
// Mapping rules: ctx expiry before inclusion is unconfirmed, an explicit
// rejection is ledger_rejected, and an "unauthorized" rejection reason is
// surfaced as permission_denied.
func (g *Gateway) submit(ctx context.Context, op contracts.Op, sender string, payload any) (*TxResult, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, faults.Wrap(err, faults.CodeInternal, "encoding "+string(op)+" payload")
	}

	txID, err := g.node.Submit(ctx, contracts.Tx{Op: op, Sender: sender, Payload: raw})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, faults.Wrap(err, faults.CodeUnconfirmed, "submit interrupted")
		}
		return nil, faults.Wrap(err, faults.CodeLedgerRejected, "ledger refused "+string(op))
	}

	receipt, err := g.node.WaitReceipt(ctx, txID)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			g.logger.Warn("inclusion wait expired",
				"op", string(op),
				"tx_id", string(txID),
			)
			return nil, faults.Wrap(err, faults.CodeUnconfirmed, "inclusion wait expired for "+string(op))
		}
		return nil, faults.Wrap(err, faults.CodeInternal, "awaiting receipt for "+string(op))
	}

	switch receipt.Status {
	case StatusIncluded:
		return &TxResult{TxID: txID, AssignedID: receipt.AssignedID}, nil
	case StatusRejected:
		if strings.HasPrefix(receipt.Reason, "unauthorized") {
			return nil, faults.New(faults.CodePermissionDenied, receipt.Reason)
		}
		return nil, faults.New(faults.CodeLedgerRejected, receipt.Reason)
	default:
		return nil, faults.New(faults.CodeUnconfirmed, "receipt still pending for "+string(op))
	}
}

// RegisterIdentity records a new identity with the requested role.
func (g *Gateway) RegisterIdentity(ctx context.Context, address string, role contracts.Role) (*TxResult, error) {
	existing, err := g.GetIdentity(ctx, address)
	if err == nil {
		if existing.Role == role {
			return nil, ErrAlreadyInDesiredState
		}
		return nil, faults.New(faults.CodeConflict, "address already registered with a different role")
	}
	if !faults.HasCode(err, faults.CodeNotFound) {
		return nil, err
	}
	return g.submit(ctx, contracts.OpRegisterIdentity, address, contracts.RegisterIdentityPayload{
		Address: address,
		Role:    role,
	})
}

// UpdateRole changes an identity's role. Admin-gated on the ledger side.
func (g *Gateway) UpdateRole(ctx context.Context, sender, address string, role contracts.Role) (*TxResult, error) {
	existing, err := g.GetIdentity(ctx, address)
	if err != nil {
		return nil, err
	}
	if existing.Role == role {
		return nil, ErrAlreadyInDesiredState
	}
	return g.submit(ctx, contracts.OpUpdateRole, sender, contracts.UpdateRolePayload{
		Address: address,
		Role:    role,
	})
}

// SetVerified flips an identity's verified flag.
func (g *Gateway) SetVerified(ctx context.Context, sender, address string, verified bool) (*TxResult, error) {
	existing, err := g.GetIdentity(ctx, address)
	if err != nil {
		return nil, err
	}
	if existing.Verified == verified {
		return nil, ErrAlreadyInDesiredState
	}
	return g.submit(ctx, contracts.OpSetVerified, sender, contracts.SetVerifiedPayload{
		Address:  address,
		Verified: verified,
	})
}

// SetProfileRef points an identity at a new profile blob.
func (g *Gateway) SetProfileRef(ctx context.Context, sender, ref string) (*TxResult, error) {
	existing, err := g.GetIdentity(ctx, sender)
	if err != nil {
		return nil, err
	}
	if existing.ContentRef == ref {
		return nil, ErrAlreadyInDesiredState
	}
	return g.submit(ctx, contracts.OpSetProfileRef, sender, contracts.SetProfileRefPayload{
		Address:    sender,
		ContentRef: ref,
	})
}

// CreateExam records a new exam owned by sender.
func (g *Gateway) CreateExam(ctx context.Context, sender string, p contracts.CreateExamPayload) (*TxResult, error) {
	return g.submit(ctx, contracts.OpCreateExam, sender, p)
}

// UpdateExamStatus moves an exam to the given status.
func (g *Gateway) UpdateExamStatus(ctx context.Context, sender, examID string, status contracts.ExamStatus) (*TxResult, error) {
	exam, err := g.GetExam(ctx, examID)
	if err != nil {
		return nil, err
	}
	if exam.Status == status {
		return nil, ErrAlreadyInDesiredState
	}
	return g.submit(ctx, contracts.OpUpdateExamStatus, sender, contracts.UpdateExamStatusPayload{
		ExamID: examID,
		Status: status,
	})
}

// EnrollStudents adds students to an exam. Students already enrolled are
// filtered out here so redelivery of the same intent cannot bloat the set.
func (g *Gateway) EnrollStudents(ctx context.Context, sender, examID string, students []string) (*TxResult, error) {
	exam, err := g.GetExam(ctx, examID)
	if err != nil {
		return nil, err
	}

	enrolled := make(map[string]bool, len(exam.Enrolled))
	for _, s := range exam.Enrolled {
		enrolled[s] = true
	}
	var missing []string
	for _, s := range students {
		if !enrolled[s] {
			missing = append(missing, s)
		}
	}
	if len(missing) == 0 {
		return nil, ErrAlreadyInDesiredState
	}

	return g.submit(ctx, contracts.OpEnrollStudents, sender, contracts.EnrollStudentsPayload{
		ExamID:   examID,
		Students: missing,
	})
}

// SubmitResult records (or overwrites) a student's result for an exam.
func (g *Gateway) SubmitResult(ctx context.Context, sender string, p contracts.SubmitResultPayload) (*TxResult, error) {
	return g.submit(ctx, contracts.OpSubmitResult, sender, p)
}

// IssueCertificate records a certificate and returns the ledger-assigned id
// in TxResult.AssignedID. That id is the operation's only authoritative
// output; nothing upstream may fabricate it.
func (g *Gateway) IssueCertificate(ctx context.Context, sender, student, ref string) (*TxResult, error) {
	return g.submit(ctx, contracts.OpIssueCertificate, sender, contracts.IssueCertificatePayload{
		Student:    student,
		ContentRef: ref,
	})
}

// RevokeCertificate flips a certificate's valid flag to false.
func (g *Gateway) RevokeCertificate(ctx context.Context, sender, certID string) (*TxResult, error) {
	cert, err := g.GetCertificate(ctx, certID)
	if err != nil {
		return nil, err
	}
	if !cert.Valid {
		return nil, ErrAlreadyInDesiredState
	}
	return g.submit(ctx, contracts.OpRevokeCert, sender, contracts.RevokeCertificatePayload{
		CertificateID: certID,
	})
}

// query runs a read and decodes the result into out.
func (g *Gateway) query(ctx context.Context, q contracts.Query, args map[string]string, out any) error {
	raw, err := g.node.Query(ctx, q, args)
	if err != nil {
		if errors.Is(err, ErrNoRecord) {
			return faults.New(faults.CodeNotFound, string(q)+": no record")
		}
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return faults.Wrap(err, faults.CodeUnconfirmed, "ledger query interrupted")
		}
		return faults.Wrap(err, faults.CodeInternal, "ledger query "+string(q)+" failed")
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return faults.Wrap(err, faults.CodeInternal, "decoding "+string(q)+" result")
	}
	return nil
}

// GetIdentity fetches the identity record for address.
func (g *Gateway) GetIdentity(ctx context.Context, address string) (*contracts.IdentityRecord, error) {
	var rec contracts.IdentityRecord
	if err := g.query(ctx, contracts.QueryIdentity, map[string]string{"address": address}, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// GetExam fetches the exam record for examID.
func (g *Gateway) GetExam(ctx context.Context, examID string) (*contracts.ExamRecord, error) {
	var rec contracts.ExamRecord
	if err := g.query(ctx, contracts.QueryExam, map[string]string{"exam_id": examID}, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// ListExamsByInstitution fetches all exams owned by the institution.
func (g *Gateway) ListExamsByInstitution(ctx context.Context, address string) ([]contracts.ExamRecord, error) {
	var recs []contracts.ExamRecord
	if err := g.query(ctx, contracts.QueryExamsByInstitution, map[string]string{"address": address}, &recs); err != nil {
		return nil, err
	}
	return recs, nil
}

// GetResults fetches all submitted results for an exam.
func (g *Gateway) GetResults(ctx context.Context, examID string) ([]contracts.ResultRecord, error) {
	var recs []contracts.ResultRecord
	if err := g.query(ctx, contracts.QueryResults, map[string]string{"exam_id": examID}, &recs); err != nil {
		return nil, err
	}
	return recs, nil
}

// GetResultsByStudent fetches a student's results across all exams.
func (g *Gateway) GetResultsByStudent(ctx context.Context, student string) ([]contracts.ResultRecord, error) {
	var recs []contracts.ResultRecord
	if err := g.query(ctx, contracts.QueryResultsByStudent, map[string]string{"student": student}, &recs); err != nil {
		return nil, err
	}
	return recs, nil
}

// GetCertificate fetches a certificate by its ledger-assigned id.
func (g *Gateway) GetCertificate(ctx context.Context, certID string) (*contracts.CertificateRecord, error) {
	var rec contracts.CertificateRecord
	if err := g.query(ctx, contracts.QueryCertificate, map[string]string{"certificate_id": certID}, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// ListCertificatesByStudent fetches all certificates issued to a student.
func (g *Gateway) ListCertificatesByStudent(ctx context.Context, student string) ([]contracts.CertificateRecord, error) {
	var recs []contracts.CertificateRecord
	if err := g.query(ctx, contracts.QueryCertsByStudent, map[string]string{"student": student}, &recs); err != nil {
		return nil, err
	}
	return recs, nil
}

// ListCertificatesByInstitution fetches all certificates an institution issued.
func (g *Gateway) ListCertificatesByInstitution(ctx context.Context, address string) ([]contracts.CertificateRecord, error) {
	var recs []contracts.CertificateRecord
	if err := g.query(ctx, contracts.QueryCertsByInstitution, map[string]string{"address": address}, &recs); err != nil {
		return nil, err
	}
	return recs, nil
}
