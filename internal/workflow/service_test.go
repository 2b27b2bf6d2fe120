package workflow

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	contracts "attest/contracts/ledger"
	"attest/internal/confirm"
	"attest/internal/content"
	"attest/internal/ledger"
	"attest/pkg/faults"
)

var (
	admin       = Caller{Address: "0xadmin", Role: contracts.RoleAdmin}
	institution = Caller{Address: "0xuni", Role: contracts.RoleInstitution}
)

type fixture struct {
	node  *ledger.MemNode
	store *content.MemoryStore
	svc   *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	node := ledger.NewMemNode()
	node.SeedIdentity(contracts.IdentityRecord{Address: admin.Address, Role: contracts.RoleAdmin})

	store := content.NewMemoryStore()
	gateway := ledger.NewGateway(node, logger)
	engine := confirm.New(
		confirm.WithLogger(logger),
		confirm.WithBackoff(time.Millisecond),
		confirm.WithInclusionWait(time.Second),
	)

	return &fixture{
		node:  node,
		store: store,
		svc:   NewService(gateway, store, engine, WithLogger(logger)),
	}
}

// registerVerifiedInstitution walks the registration and verification
// flow most tests need as a precondition.
func (f *fixture) registerVerifiedInstitution(t *testing.T) {
	t.Helper()
	ctx := context.Background()

	out := f.svc.RegisterIdentity(ctx, institution.Address, contracts.RoleInstitution)
	require.Equal(t, StatusSuccess, out.Status, "register: %s", out.Message)

	out = f.svc.VerifyInstitution(ctx, admin, institution.Address)
	require.Equal(t, StatusSuccess, out.Status, "verify: %s", out.Message)
}

func (f *fixture) createExam(t *testing.T, input CreateExamInput) *contracts.ExamRecord {
	t.Helper()
	out := f.svc.CreateExam(context.Background(), institution, input)
	require.Equal(t, StatusSuccess, out.Status, "create exam: %s", out.Message)
	rec, ok := out.Data.(*contracts.ExamRecord)
	require.True(t, ok, "create exam data should be the exam record")
	return rec
}

func TestFullCredentialFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.registerVerifiedInstitution(t)

	exam := f.createExam(t, CreateExamInput{
		Title:       "Distributed Systems Final",
		Date:        time.Now().Add(24 * time.Hour),
		DurationMin: 60,
		Material:    []byte("exam material pdf"),
	})
	assert.Equal(t, contracts.ExamUpcoming, exam.Status)
	assert.NotEmpty(t, exam.ContentRef)

	out := f.svc.EnrollStudents(ctx, institution, exam.ID, []string{"0xstu"})
	require.Equal(t, StatusSuccess, out.Status, out.Message)

	out = f.svc.SubmitResult(ctx, institution, exam.ID, ResultInput{
		Student: "0xstu",
		Score:   75,
		Grade:   contracts.GradeB,
	})
	require.Equal(t, StatusSuccess, out.Status, out.Message)

	out = f.svc.ExamDetail(ctx, exam.ID)
	require.Equal(t, StatusSuccess, out.Status, out.Message)
	detail, ok := out.Data.(ExamDetail)
	require.True(t, ok)

	require.NotNil(t, detail.Stats)
	assert.Equal(t, 1, detail.Stats.TotalResults)
	assert.Equal(t, int64(10000), detail.Stats.PassRate)
	assert.Equal(t, "B", detail.Stats.MostCommonGrade)
	assert.Contains(t, detail.Exam.Enrolled, "0xstu")
}

func TestResultResubmissionOverwrites(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.registerVerifiedInstitution(t)
	exam := f.createExam(t, CreateExamInput{Title: "Algorithms Midterm", Date: time.Now(), DurationMin: 90})

	out := f.svc.EnrollStudents(ctx, institution, exam.ID, []string{"0xstu"})
	require.Equal(t, StatusSuccess, out.Status, out.Message)

	out = f.svc.SubmitResult(ctx, institution, exam.ID, ResultInput{Student: "0xstu", Score: 75, Grade: contracts.GradeB})
	require.Equal(t, StatusSuccess, out.Status, out.Message)

	out = f.svc.SubmitResult(ctx, institution, exam.ID, ResultInput{Student: "0xstu", Score: 40, Grade: contracts.GradeF})
	require.Equal(t, StatusSuccess, out.Status, out.Message)

	out = f.svc.ExamDetail(ctx, exam.ID)
	require.Equal(t, StatusSuccess, out.Status, out.Message)
	detail := out.Data.(ExamDetail)

	require.Len(t, detail.Results, 1, "resubmission must overwrite, never duplicate")
	assert.Equal(t, 40, detail.Results[0].Score)
	assert.Equal(t, contracts.GradeF, detail.Results[0].Grade)
}

func TestCertificateIssuanceRetryReusesContent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.registerVerifiedInstitution(t)

	meta := CertificateMetadata{
		Student:     "0xstu",
		StudentName: "Sara Haddad",
		Degree:      "BSc Computer Science",
		Grade:       "B",
	}

	f.node.RejectNext("contract assertion failed")
	out := f.svc.IssueCertificate(ctx, institution, meta)
	require.Equal(t, StatusFailed, out.Status)
	assert.Equal(t, faults.CodeLedgerRejected, out.Kind)

	// No certificate exists after the failed attempt.
	detail := f.svc.StudentTranscript(ctx, "0xstu")
	require.Equal(t, StatusSuccess, detail.Status)
	assert.Empty(t, detail.Data.(Transcript).Certificates)

	// The orphaned blob already carries the metadata; a direct upload of
	// the same bytes must land on the same ref.
	wire := meta
	wire.IssuedBy = institution.Address
	blob, err := json.Marshal(wire)
	require.NoError(t, err)
	orphanRef, err := f.store.Put(ctx, blob)
	require.NoError(t, err)

	out = f.svc.IssueCertificate(ctx, institution, meta)
	require.Equal(t, StatusSuccess, out.Status, out.Message)
	data := out.Data.(map[string]string)
	assert.Equal(t, orphanRef, data["content_ref"], "retry must reuse the deduplicated CID")
	assert.NotEmpty(t, data["certificate_id"])
}

func TestUnverifiedInstitutionNeverTouchesContentStore(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	out := f.svc.RegisterIdentity(ctx, institution.Address, contracts.RoleInstitution)
	require.Equal(t, StatusSuccess, out.Status, out.Message)

	before := f.store.PutCalls()
	out = f.svc.CreateExam(ctx, institution, CreateExamInput{
		Title:       "Premature Exam",
		Date:        time.Now(),
		DurationMin: 45,
		Material:    []byte("should never be stored"),
	})

	require.Equal(t, StatusFailed, out.Status)
	assert.Equal(t, faults.CodePermissionDenied, out.Kind)
	assert.Equal(t, before, f.store.PutCalls(), "denied operations must not upload content")
}

func TestExamStatusTransitionsAreForwardOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.registerVerifiedInstitution(t)
	exam := f.createExam(t, CreateExamInput{Title: "Networks Final", Date: time.Now(), DurationMin: 120})

	out := f.svc.TransitionExam(ctx, institution, exam.ID, contracts.ExamInProgress)
	require.Equal(t, StatusSuccess, out.Status, out.Message)

	out = f.svc.TransitionExam(ctx, institution, exam.ID, contracts.ExamCompleted)
	require.Equal(t, StatusSuccess, out.Status, out.Message)

	out = f.svc.TransitionExam(ctx, institution, exam.ID, contracts.ExamInProgress)
	require.Equal(t, StatusFailed, out.Status)
	assert.Equal(t, faults.CodeInvalidInput, out.Kind)

	out = f.svc.EnrollStudents(ctx, institution, exam.ID, []string{"0xlate"})
	require.Equal(t, StatusFailed, out.Status)
	assert.Equal(t, faults.CodeInvalidInput, out.Kind)
}

func TestTransitionToCurrentStatusIsANoop(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.registerVerifiedInstitution(t)
	exam := f.createExam(t, CreateExamInput{Title: "Databases Quiz", Date: time.Now(), DurationMin: 30})

	out := f.svc.TransitionExam(ctx, institution, exam.ID, contracts.ExamUpcoming)
	assert.Equal(t, StatusSuccess, out.Status)
}

func TestEnrollmentIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.registerVerifiedInstitution(t)
	exam := f.createExam(t, CreateExamInput{Title: "Compilers Final", Date: time.Now(), DurationMin: 60})

	out := f.svc.EnrollStudents(ctx, institution, exam.ID, []string{"0xstu"})
	require.Equal(t, StatusSuccess, out.Status, out.Message)

	out = f.svc.EnrollStudents(ctx, institution, exam.ID, []string{"0xstu"})
	require.Equal(t, StatusSuccess, out.Status, "re-enrolling is a no-op, not an error")

	out = f.svc.ExamDetail(ctx, exam.ID)
	require.Equal(t, StatusSuccess, out.Status)
	assert.Equal(t, []string{"0xstu"}, out.Data.(ExamDetail).Exam.Enrolled)
}

func TestOnlyOwnerTransitionsExam(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.registerVerifiedInstitution(t)
	exam := f.createExam(t, CreateExamInput{Title: "Ethics Exam", Date: time.Now(), DurationMin: 60})

	rival := Caller{Address: "0xrival", Role: contracts.RoleInstitution}
	out := f.svc.TransitionExam(ctx, rival, exam.ID, contracts.ExamInProgress)
	require.Equal(t, StatusFailed, out.Status)
	assert.Equal(t, faults.CodePermissionDenied, out.Kind)
}

func TestProfileUpdateWritesContentBeforeLedger(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.registerVerifiedInstitution(t)

	out := f.svc.UpdateProfile(ctx, institution, InstitutionProfile{
		Name:       "Beirut Institute of Technology",
		University: "BIT",
	})
	require.Equal(t, StatusSuccess, out.Status, out.Message)
	ref := out.Data.(map[string]string)["content_ref"]
	require.NotEmpty(t, ref)

	blob, err := f.store.Get(ctx, ref)
	require.NoError(t, err)
	var stored InstitutionProfile
	require.NoError(t, json.Unmarshal(blob, &stored))
	assert.Equal(t, "Beirut Institute of Technology", stored.Name)
}

func TestProfileUpdateFailedLedgerWriteReportsOrphan(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.registerVerifiedInstitution(t)

	f.node.RejectNext("contract assertion failed")
	out := f.svc.UpdateProfile(ctx, institution, InstitutionProfile{Name: "Ghost University"})

	require.Equal(t, StatusFailed, out.Status)
	assert.Equal(t, faults.CodeLedgerRejected, out.Kind)

	// Retrying the whole operation succeeds; the orphan is reused.
	out = f.svc.UpdateProfile(ctx, institution, InstitutionProfile{Name: "Ghost University"})
	assert.Equal(t, StatusSuccess, out.Status, out.Message)
}

func TestVerifyCertificate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.registerVerifiedInstitution(t)

	out := f.svc.IssueCertificate(ctx, institution, CertificateMetadata{
		Student:     "0xstu",
		StudentName: "Omar Nassif",
		Degree:      "MSc Data Science",
	})
	require.Equal(t, StatusSuccess, out.Status, out.Message)
	certID := out.Data.(map[string]string)["certificate_id"]
	ref := out.Data.(map[string]string)["content_ref"]

	out = f.svc.VerifyCertificate(ctx, certID)
	require.Equal(t, StatusSuccess, out.Status, out.Message)
	verification := out.Data.(CertificateVerification)
	assert.True(t, verification.Certificate.Valid)
	require.NotNil(t, verification.Metadata)
	assert.Equal(t, "Omar Nassif", verification.Metadata.StudentName)
	assert.Equal(t, institution.Address, verification.Metadata.IssuedBy)

	// A ledger certificate whose content is gone is a consistency fault.
	f.store.Forget(ref)
	out = f.svc.VerifyCertificate(ctx, certID)
	require.Equal(t, StatusFailed, out.Status)
	assert.Equal(t, faults.CodeConsistencyFault, out.Kind)
}

func TestRevokeCertificate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.registerVerifiedInstitution(t)

	out := f.svc.IssueCertificate(ctx, institution, CertificateMetadata{
		Student:     "0xstu",
		StudentName: "Lina Aswad",
		Degree:      "BA Economics",
	})
	require.Equal(t, StatusSuccess, out.Status, out.Message)
	certID := out.Data.(map[string]string)["certificate_id"]

	employer := Caller{Address: "0xcorp", Role: contracts.RoleEmployer}
	out = f.svc.RevokeCertificate(ctx, employer, certID)
	require.Equal(t, StatusFailed, out.Status)
	assert.Equal(t, faults.CodePermissionDenied, out.Kind)

	out = f.svc.RevokeCertificate(ctx, institution, certID)
	require.Equal(t, StatusSuccess, out.Status, out.Message)

	out = f.svc.RevokeCertificate(ctx, institution, certID)
	assert.Equal(t, StatusSuccess, out.Status, "revoking twice is a no-op")
}

func TestRegisterIdentityRejectsAdminRole(t *testing.T) {
	f := newFixture(t)

	out := f.svc.RegisterIdentity(context.Background(), "0ximposter", contracts.RoleAdmin)
	require.Equal(t, StatusFailed, out.Status)
	assert.Equal(t, faults.CodePermissionDenied, out.Kind)
}

func TestOperationStatusUnknownHandle(t *testing.T) {
	f := newFixture(t)

	out := f.svc.OperationStatus(context.Background(), uuid.New())
	require.Equal(t, StatusFailed, out.Status)
	assert.Equal(t, faults.CodeNotFound, out.Kind)
}

func TestStudentTranscriptSpansExams(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.registerVerifiedInstitution(t)

	first := f.createExam(t, CreateExamInput{Title: "Term 1", Date: time.Now(), DurationMin: 60})
	second := f.createExam(t, CreateExamInput{Title: "Term 2", Date: time.Now(), DurationMin: 60})

	for _, examID := range []string{first.ID, second.ID} {
		out := f.svc.EnrollStudents(ctx, institution, examID, []string{"0xstu"})
		require.Equal(t, StatusSuccess, out.Status, out.Message)
		out = f.svc.SubmitResult(ctx, institution, examID, ResultInput{Student: "0xstu", Score: 88, Grade: contracts.GradeA})
		require.Equal(t, StatusSuccess, out.Status, out.Message)
	}

	out := f.svc.StudentTranscript(ctx, "0xstu")
	require.Equal(t, StatusSuccess, out.Status, out.Message)
	transcript := out.Data.(Transcript)
	assert.Len(t, transcript.Results, 2)
}
