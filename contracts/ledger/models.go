// Package ledger defines the wire contract shared with the credential
// ledger service. Records here mirror exactly what the ledger stores; all
// richer behavior lives behind the gateway that decodes them.
package ledger

import "encoding/json"

// ContractVersion identifies the schema for ledger records shared across services.
const ContractVersion = "v0.1.0"

// Role is the access role recorded for an identity.
type Role string

const (
	RoleNone        Role = "none"
	RoleStudent     Role = "student"
	RoleInstitution Role = "institution"
	RoleEmployer    Role = "employer"
	RoleAdmin       Role = "admin"
)

// Valid reports whether r is one of the recognized roles.
func (r Role) Valid() bool {
	switch r {
	case RoleNone, RoleStudent, RoleInstitution, RoleEmployer, RoleAdmin:
		return true
	}
	return false
}

// ExamStatus is the lifecycle state of an exam. Transitions are strictly
// forward: upcoming -> in_progress -> completed.
type ExamStatus string

const (
	ExamUpcoming   ExamStatus = "upcoming"
	ExamInProgress ExamStatus = "in_progress"
	ExamCompleted  ExamStatus = "completed"
)

// Grade is a letter grade attached to an exam result.
type Grade string

const (
	GradeA Grade = "A"
	GradeB Grade = "B"
	GradeC Grade = "C"
	GradeD Grade = "D"
	GradeF Grade = "F"
)

// Valid reports whether g is one of the recognized grades.
func (g Grade) Valid() bool {
	switch g {
	case GradeA, GradeB, GradeC, GradeD, GradeF:
		return true
	}
	return false
}

// IdentityRecord is an identity as recorded on the ledger.
type IdentityRecord struct {
	Address    string `json:"address"`
	Role       Role   `json:"role"`
	Verified   bool   `json:"verified"`
	ContentRef string `json:"content_ref,omitempty"`
	CreatedAt  int64  `json:"created_at"` // unix seconds, ledger time
}

// ExamRecord is an exam as recorded on the ledger.
type ExamRecord struct {
	ID          string     `json:"id"`
	Institution string     `json:"institution"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Date        int64      `json:"date"` // unix seconds
	DurationMin int        `json:"duration_min"`
	ContentRef  string     `json:"content_ref,omitempty"`
	Enrolled    []string   `json:"enrolled,omitempty"`
	Status      ExamStatus `json:"status"`
}

// ResultRecord is a student's result for one exam. The ledger keeps at most
// one record per (exam, student) pair; resubmission overwrites.
type ResultRecord struct {
	ExamID      string `json:"exam_id"`
	Student     string `json:"student"`
	Score       int    `json:"score"` // 0-100
	Grade       Grade  `json:"grade"`
	Notes       string `json:"notes,omitempty"`
	SubmittedAt int64  `json:"submitted_at"` // unix seconds
}

// CertificateRecord is a certificate as recorded on the ledger. ID is
// assigned by the ledger at issuance and is the only authoritative handle.
type CertificateRecord struct {
	ID          string `json:"id"`
	Student     string `json:"student"`
	Institution string `json:"institution"`
	ContentRef  string `json:"content_ref"`
	IssuedAt    int64  `json:"issued_at"` // unix seconds
	Valid       bool   `json:"valid"`
}

// Op names the ledger operations the gateway may invoke.
type Op string

const (
	OpRegisterIdentity Op = "register_identity"
	OpUpdateRole       Op = "update_role"
	OpSetVerified      Op = "set_verified"
	OpSetProfileRef    Op = "set_profile_ref"
	OpCreateExam       Op = "create_exam"
	OpUpdateExamStatus Op = "update_exam_status"
	OpEnrollStudents   Op = "enroll_students"
	OpSubmitResult     Op = "submit_result"
	OpIssueCertificate Op = "issue_certificate"
	OpRevokeCert       Op = "revoke_certificate"
)

// Query names the ledger read methods.
type Query string

const (
	QueryIdentity            Query = "identity"
	QueryExam                Query = "exam"
	QueryExamsByInstitution  Query = "exams_by_institution"
	QueryResults             Query = "results"
	QueryResultsByStudent    Query = "results_by_student"
	QueryCertificate         Query = "certificate"
	QueryCertsByStudent      Query = "certificates_by_student"
	QueryCertsByInstitution  Query = "certificates_by_institution"
)

// Tx is a transaction proposal submitted to the ledger node. Sender is the
// spending identity; signing happens in the external signer before the node
// accepts the proposal.
type Tx struct {
	Op      Op              `json:"op"`
	Sender  string          `json:"sender"`
	Payload json.RawMessage `json:"payload"`
}

// Tx payloads, one per mutating op. Field names are part of the contract.

type RegisterIdentityPayload struct {
	Address string `json:"address"`
	Role    Role   `json:"role"`
}

type UpdateRolePayload struct {
	Address string `json:"address"`
	Role    Role   `json:"role"`
}

type SetVerifiedPayload struct {
	Address  string `json:"address"`
	Verified bool   `json:"verified"`
}

type SetProfileRefPayload struct {
	Address    string `json:"address"`
	ContentRef string `json:"content_ref"`
}

type CreateExamPayload struct {
	ExamID      string `json:"exam_id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Date        int64  `json:"date"`
	DurationMin int    `json:"duration_min"`
	ContentRef  string `json:"content_ref,omitempty"`
}

type UpdateExamStatusPayload struct {
	ExamID string     `json:"exam_id"`
	Status ExamStatus `json:"status"`
}

type EnrollStudentsPayload struct {
	ExamID   string   `json:"exam_id"`
	Students []string `json:"students"`
}

type SubmitResultPayload struct {
	ExamID  string `json:"exam_id"`
	Student string `json:"student"`
	Score   int    `json:"score"`
	Grade   Grade  `json:"grade"`
	Notes   string `json:"notes,omitempty"`
}

type IssueCertificatePayload struct {
	Student    string `json:"student"`
	ContentRef string `json:"content_ref"`
}

type RevokeCertificatePayload struct {
	CertificateID string `json:"certificate_id"`
}
