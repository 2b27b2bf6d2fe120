package workflow

import (
	"time"

	"github.com/google/uuid"

	ledgercontracts "attest/contracts/ledger"
	"attest/internal/stats"
	"attest/pkg/faults"
)

// Caller is the authenticated identity a workflow call runs as. It is
// passed explicitly into every operation; nothing in this package reads
// caller state from globals.
type Caller struct {
	Address string
	Role    ledgercontracts.Role
}

// OutcomeStatus discriminates the three terminal shapes of a workflow call.
type OutcomeStatus string

const (
	StatusSuccess OutcomeStatus = "success"
	StatusPending OutcomeStatus = "pending"
	StatusFailed  OutcomeStatus = "failed"
)

// Outcome is the structured result of a workflow operation. Exactly one
// of the three shapes applies: Success carries Data, Pending carries a
// Handle the caller can poll, Failed carries the fault kind and message.
type Outcome struct {
	Status  OutcomeStatus `json:"status"`
	Data    any           `json:"data,omitempty"`
	Handle  uuid.UUID     `json:"handle,omitempty"`
	Kind    faults.Code   `json:"kind,omitempty"`
	Message string        `json:"message,omitempty"`
}

// Success builds a successful outcome carrying data.
func Success(data any) Outcome {
	return Outcome{Status: StatusSuccess, Data: data}
}

// Pending builds an in-flight outcome. The handle resolves to the true
// final state once the write lands.
func Pending(handle uuid.UUID) Outcome {
	return Outcome{Status: StatusPending, Handle: handle}
}

// Failed maps an error to a failed outcome, preserving its fault kind.
func Failed(err error) Outcome {
	return Outcome{
		Status:  StatusFailed,
		Kind:    faults.CodeOf(err),
		Message: err.Error(),
	}
}

// InstitutionProfile is the content-addressed payload an institution
// identity references. Old versions are superseded, never deleted.
type InstitutionProfile struct {
	Name        string `json:"name" validate:"required"`
	Ministry    string `json:"ministry,omitempty"`
	University  string `json:"university,omitempty"`
	College     string `json:"college,omitempty"`
	Description string `json:"description,omitempty"`
	Email       string `json:"email,omitempty" validate:"omitempty,email"`
	Phone       string `json:"phone,omitempty"`
	LogoRef     string `json:"logo_ref,omitempty"`
	LastUpdated int64  `json:"last_updated"`
}

// CreateExamInput carries everything needed to create an exam. Material
// is optional exam content uploaded to the blob store before the ledger
// write.
type CreateExamInput struct {
	Title       string
	Description string
	Date        time.Time
	DurationMin int
	Material    []byte
}

// CertificateMetadata is the content-addressed payload a certificate
// references.
type CertificateMetadata struct {
	Student     string         `json:"student" validate:"required"`
	StudentName string         `json:"student_name" validate:"required"`
	Degree      string         `json:"degree" validate:"required"`
	Grade       string         `json:"grade,omitempty"`
	Scores      map[string]int `json:"scores,omitempty"`
	IssuedBy    string         `json:"issued_by"`
}

// ResultInput is one student's score for an exam.
type ResultInput struct {
	Student string
	Score   int
	Grade   ledgercontracts.Grade
	Notes   string
}

// ExamDetail is the aggregate read model for one exam: the ledger
// record, its result set, and statistics derived from those results.
type ExamDetail struct {
	Exam    *ledgercontracts.ExamRecord   `json:"exam"`
	Results []ledgercontracts.ResultRecord `json:"results"`
	Stats   *stats.Summary                 `json:"stats,omitempty"`
}

// Transcript is a student's results and certificates across all exams.
type Transcript struct {
	Student      string                            `json:"student"`
	Results      []ledgercontracts.ResultRecord    `json:"results"`
	Certificates []ledgercontracts.CertificateRecord `json:"certificates"`
}

// CertificateVerification is the read model for the public verification
// path: the ledger record plus its resolved metadata.
type CertificateVerification struct {
	Certificate *ledgercontracts.CertificateRecord `json:"certificate"`
	Metadata    *CertificateMetadata               `json:"metadata,omitempty"`
}
