package httptransport

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	contracts "attest/contracts/ledger"
	"attest/internal/callertoken"
	"attest/internal/confirm"
	"attest/internal/content"
	"attest/internal/ledger"
	"attest/internal/platform/health"
	"attest/internal/workflow"
)

type testServer struct {
	router http.Handler
	node   *ledger.MemNode
	store  *content.MemoryStore
	tokens *callertoken.Service
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	node := ledger.NewMemNode()
	node.SeedIdentity(contracts.IdentityRecord{Address: "0xadmin", Role: contracts.RoleAdmin})

	store := content.NewMemoryStore()
	gateway := ledger.NewGateway(node, logger)
	engine := confirm.New(
		confirm.WithLogger(logger),
		confirm.WithBackoff(time.Millisecond),
		confirm.WithInclusionWait(time.Second),
	)
	svc := workflow.NewService(gateway, store, engine, workflow.WithLogger(logger))

	tokens := callertoken.NewService("test-signing-key", time.Hour)
	router := NewRouter(
		NewHandler(svc, logger),
		health.New("test"),
		callertoken.NewAdapter(tokens),
		logger,
	)

	return &testServer{router: router, node: node, store: store, tokens: tokens}
}

func (ts *testServer) request(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) token(t *testing.T, address, role string) string {
	t.Helper()
	token, err := ts.tokens.Issue(address, role)
	require.NoError(t, err)
	return token
}

func decodeOutcome(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestRegisterIdentityEndpoint(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.request(t, http.MethodPost, "/identities", "", map[string]string{
		"address": "0xuni",
		"role":    "institution",
	})

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	out := decodeOutcome(t, rec)
	assert.Equal(t, "success", out["status"])
}

func TestRegisterIdentityRejectsUnknownRole(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.request(t, http.MethodPost, "/identities", "", map[string]string{
		"address": "0xuni",
		"role":    "archmage",
	})

	require.Equal(t, http.StatusBadRequest, rec.Code)
	out := decodeOutcome(t, rec)
	assert.Equal(t, "invalid_input", out["kind"])
}

func TestAuthedRoutesRequireToken(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.request(t, http.MethodPost, "/exams", "", map[string]any{
		"title":        "No Token Exam",
		"date":         time.Now().Unix(),
		"duration_min": 60,
	})

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	out := decodeOutcome(t, rec)
	assert.Equal(t, "permission_denied", out["kind"])
}

func TestFullFlowOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	adminToken := ts.token(t, "0xadmin", "admin")
	instToken := ts.token(t, "0xuni", "institution")

	rec := ts.request(t, http.MethodPost, "/identities", "", map[string]string{
		"address": "0xuni", "role": "institution",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = ts.request(t, http.MethodPost, "/identities/0xuni/verification", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = ts.request(t, http.MethodPost, "/exams", instToken, map[string]any{
		"title":        "Operating Systems Final",
		"date":         time.Now().Add(48 * time.Hour).Unix(),
		"duration_min": 120,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	exam := decodeOutcome(t, rec)["data"].(map[string]any)
	examID := exam["id"].(string)
	require.NotEmpty(t, examID)

	rec = ts.request(t, http.MethodPost, "/exams/"+examID+"/enrollments", instToken, map[string]any{
		"students": []string{"0xstu"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = ts.request(t, http.MethodPost, "/exams/"+examID+"/results", instToken, map[string]any{
		"student": "0xstu", "score": 91, "grade": "A",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = ts.request(t, http.MethodGet, "/exams/"+examID, instToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	detail := decodeOutcome(t, rec)["data"].(map[string]any)
	stats := detail["stats"].(map[string]any)
	assert.Equal(t, float64(1), stats["totalResults"])
	assert.Equal(t, float64(10000), stats["passRate"])
	assert.Equal(t, "A", stats["mostCommonGrade"])
}

func TestCertificateIssuanceAndPublicVerification(t *testing.T) {
	ts := newTestServer(t)
	adminToken := ts.token(t, "0xadmin", "admin")
	instToken := ts.token(t, "0xuni", "institution")

	rec := ts.request(t, http.MethodPost, "/identities", "", map[string]string{
		"address": "0xuni", "role": "institution",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = ts.request(t, http.MethodPost, "/identities/0xuni/verification", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.request(t, http.MethodPost, "/certificates", instToken, map[string]any{
		"student":      "0xstu",
		"student_name": "Maya Khoury",
		"degree":       "BSc Physics",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	data := decodeOutcome(t, rec)["data"].(map[string]any)
	certID := data["certificate_id"].(string)
	require.NotEmpty(t, certID)

	// Verification needs no token.
	rec = ts.request(t, http.MethodGet, "/certificates/"+certID, "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	verification := decodeOutcome(t, rec)["data"].(map[string]any)
	meta := verification["metadata"].(map[string]any)
	assert.Equal(t, "Maya Khoury", meta["student_name"])

	rec = ts.request(t, http.MethodGet, "/certificates?institution=0xuni", instToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	issued := decodeOutcome(t, rec)["data"].([]any)
	require.Len(t, issued, 1)
	assert.Equal(t, certID, issued[0].(map[string]any)["id"])
}

func TestStudentCannotCreateExam(t *testing.T) {
	ts := newTestServer(t)
	stuToken := ts.token(t, "0xstu", "student")

	rec := ts.request(t, http.MethodPost, "/identities", "", map[string]string{
		"address": "0xstu", "role": "student",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = ts.request(t, http.MethodPost, "/exams", stuToken, map[string]any{
		"title":        "Rogue Exam",
		"date":         time.Now().Unix(),
		"duration_min": 60,
	})
	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "permission_denied", decodeOutcome(t, rec)["kind"])
}

func TestOperationStatusMalformedHandle(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.request(t, http.MethodGet, "/operations/not-a-uuid", "", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_input", decodeOutcome(t, rec)["kind"])
}

func TestHealthEndpoints(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.request(t, http.MethodGet, "/health/live", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = ts.request(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
