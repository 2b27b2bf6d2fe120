package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	contracts "attest/contracts/ledger"
)

// ErrUnknownTx is returned when a receipt is requested for a transaction the
// node never saw.
var ErrUnknownTx = errors.New("unknown transaction")

// MemNode is an in-memory ledger node for tests and the demo environment.
// It applies the credential contract rules synchronously and offers fault
// injection hooks so the confirmation engine's failure paths can be
// exercised deterministically.
type MemNode struct {
	mu         sync.Mutex
	identities map[string]*contracts.IdentityRecord
	exams      map[string]*contracts.ExamRecord
	results    map[string]map[string]*contracts.ResultRecord
	certs      map[string]*contracts.CertificateRecord
	nextCert   uint64

	receipts map[TxID]*pendingReceipt
	nextTx   uint64

	includeDelay time.Duration
	failSubmit   error
	rejectNext   string
	corruptNext  int

	now func() time.Time
}

type pendingReceipt struct {
	receipt *Receipt
	readyAt time.Time
}

// NewMemNode creates an empty MemNode.
func NewMemNode() *MemNode {
	return &MemNode{
		identities: make(map[string]*contracts.IdentityRecord),
		exams:      make(map[string]*contracts.ExamRecord),
		results:    make(map[string]map[string]*contracts.ResultRecord),
		certs:      make(map[string]*contracts.CertificateRecord),
		receipts:   make(map[TxID]*pendingReceipt),
		now:        time.Now,
	}
}

// SeedIdentity installs an identity directly, bypassing transactions.
// Tests use it to bootstrap the first admin.
func (n *MemNode) SeedIdentity(rec contracts.IdentityRecord) {
	n.mu.Lock()
	defer n.mu.Unlock()
	r := rec
	n.identities[rec.Address] = &r
}

// SetIncludeDelay makes receipts become available only after d, simulating
// block inclusion latency.
func (n *MemNode) SetIncludeDelay(d time.Duration) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.includeDelay = d
}

// FailNextSubmit makes the next Submit call fail outright with err.
func (n *MemNode) FailNextSubmit(err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failSubmit = err
}

// RejectNext makes the next transaction be included as rejected with reason.
func (n *MemNode) RejectNext(reason string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.rejectNext = reason
}

// CorruptNext makes the next count transactions report inclusion without
// applying their effect, which is exactly the silent divergence the
// read-back verification step exists to catch.
func (n *MemNode) CorruptNext(count int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.corruptNext = count
}

// Submit implements Node.
func (n *MemNode) Submit(_ context.Context, tx contracts.Tx) (TxID, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.failSubmit != nil {
		err := n.failSubmit
		n.failSubmit = nil
		return "", err
	}

	n.nextTx++
	id := TxID("tx-" + strconv.FormatUint(n.nextTx, 10))
	receipt := &Receipt{TxID: id, Status: StatusIncluded}

	switch {
	case n.rejectNext != "":
		receipt.Status = StatusRejected
		receipt.Reason = n.rejectNext
		n.rejectNext = ""
	case n.corruptNext > 0:
		// Included, effect silently dropped.
		n.corruptNext--
		if tx.Op == contracts.OpIssueCertificate {
			receipt.AssignedID = n.assignCertID()
		}
	default:
		if assignedID, reason := n.apply(tx); reason != "" {
			receipt.Status = StatusRejected
			receipt.Reason = reason
		} else {
			receipt.AssignedID = assignedID
		}
	}

	n.receipts[id] = &pendingReceipt{receipt: receipt, readyAt: n.now().Add(n.includeDelay)}
	return id, nil
}

// WaitReceipt implements Node. It polls until the receipt is ready or ctx
// expires; polling stays cheap because inclusion delay is only used in tests.
func (n *MemNode) WaitReceipt(ctx context.Context, id TxID) (*Receipt, error) {
	for {
		n.mu.Lock()
		pr, ok := n.receipts[id]
		n.mu.Unlock()
		if !ok {
			return nil, ErrUnknownTx
		}
		if !n.now().Before(pr.readyAt) {
			return pr.receipt, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(2 * time.Millisecond):
		}
	}
}

func (n *MemNode) assignCertID() string {
	n.nextCert++
	return strconv.FormatUint(n.nextCert, 10)
}

// apply enforces the contract rules and mutates state. It returns the
// assigned identifier for creation ops, or a rejection reason.
func (n *MemNode) apply(tx contracts.Tx) (assignedID, reason string) {
	switch tx.Op {
	case contracts.OpRegisterIdentity:
		var p contracts.RegisterIdentityPayload
		if err := json.Unmarshal(tx.Payload, &p); err != nil {
			return "", "malformed payload"
		}
		if _, ok := n.identities[p.Address]; ok {
			return "", "address already registered"
		}
		if !p.Role.Valid() {
			return "", "unknown role"
		}
		n.identities[p.Address] = &contracts.IdentityRecord{
			Address:   p.Address,
			Role:      p.Role,
			CreatedAt: n.now().Unix(),
		}
		return "", ""

	case contracts.OpUpdateRole:
		var p contracts.UpdateRolePayload
		if err := json.Unmarshal(tx.Payload, &p); err != nil {
			return "", "malformed payload"
		}
		if !n.isAdmin(tx.Sender) {
			return "", "unauthorized: admin required"
		}
		rec, ok := n.identities[p.Address]
		if !ok {
			return "", "unknown identity"
		}
		if !p.Role.Valid() {
			return "", "unknown role"
		}
		rec.Role = p.Role
		return "", ""

	case contracts.OpSetVerified:
		var p contracts.SetVerifiedPayload
		if err := json.Unmarshal(tx.Payload, &p); err != nil {
			return "", "malformed payload"
		}
		if !n.isAdmin(tx.Sender) {
			return "", "unauthorized: admin required"
		}
		rec, ok := n.identities[p.Address]
		if !ok {
			return "", "unknown identity"
		}
		rec.Verified = p.Verified
		return "", ""

	case contracts.OpSetProfileRef:
		var p contracts.SetProfileRefPayload
		if err := json.Unmarshal(tx.Payload, &p); err != nil {
			return "", "malformed payload"
		}
		if tx.Sender != p.Address {
			return "", "unauthorized: profile owner only"
		}
		rec, ok := n.identities[p.Address]
		if !ok {
			return "", "unknown identity"
		}
		rec.ContentRef = p.ContentRef
		return "", ""

	case contracts.OpCreateExam:
		var p contracts.CreateExamPayload
		if err := json.Unmarshal(tx.Payload, &p); err != nil {
			return "", "malformed payload"
		}
		if !n.isVerifiedInstitution(tx.Sender) {
			return "", "unauthorized: verified institution required"
		}
		if _, ok := n.exams[p.ExamID]; ok {
			return "", "exam already exists"
		}
		n.exams[p.ExamID] = &contracts.ExamRecord{
			ID:          p.ExamID,
			Institution: tx.Sender,
			Title:       p.Title,
			Description: p.Description,
			Date:        p.Date,
			DurationMin: p.DurationMin,
			ContentRef:  p.ContentRef,
			Status:      contracts.ExamUpcoming,
		}
		return "", ""

	case contracts.OpUpdateExamStatus:
		var p contracts.UpdateExamStatusPayload
		if err := json.Unmarshal(tx.Payload, &p); err != nil {
			return "", "malformed payload"
		}
		exam, ok := n.exams[p.ExamID]
		if !ok {
			return "", "unknown exam"
		}
		if exam.Institution != tx.Sender {
			return "", "unauthorized: exam owner only"
		}
		if statusRank(p.Status) <= statusRank(exam.Status) {
			return "", "invalid status transition"
		}
		exam.Status = p.Status
		return "", ""

	case contracts.OpEnrollStudents:
		var p contracts.EnrollStudentsPayload
		if err := json.Unmarshal(tx.Payload, &p); err != nil {
			return "", "malformed payload"
		}
		exam, ok := n.exams[p.ExamID]
		if !ok {
			return "", "unknown exam"
		}
		if exam.Institution != tx.Sender {
			return "", "unauthorized: exam owner only"
		}
		if exam.Status == contracts.ExamCompleted {
			return "", "enrollment closed"
		}
		have := make(map[string]bool, len(exam.Enrolled))
		for _, s := range exam.Enrolled {
			have[s] = true
		}
		for _, s := range p.Students {
			if !have[s] {
				exam.Enrolled = append(exam.Enrolled, s)
				have[s] = true
			}
		}
		return "", ""

	case contracts.OpSubmitResult:
		var p contracts.SubmitResultPayload
		if err := json.Unmarshal(tx.Payload, &p); err != nil {
			return "", "malformed payload"
		}
		exam, ok := n.exams[p.ExamID]
		if !ok {
			return "", "unknown exam"
		}
		if exam.Institution != tx.Sender {
			return "", "unauthorized: exam owner only"
		}
		if p.Score < 0 || p.Score > 100 || !p.Grade.Valid() {
			return "", "invalid result"
		}
		if n.results[p.ExamID] == nil {
			n.results[p.ExamID] = make(map[string]*contracts.ResultRecord)
		}
		n.results[p.ExamID][p.Student] = &contracts.ResultRecord{
			ExamID:      p.ExamID,
			Student:     p.Student,
			Score:       p.Score,
			Grade:       p.Grade,
			Notes:       p.Notes,
			SubmittedAt: n.now().Unix(),
		}
		return "", ""

	case contracts.OpIssueCertificate:
		var p contracts.IssueCertificatePayload
		if err := json.Unmarshal(tx.Payload, &p); err != nil {
			return "", "malformed payload"
		}
		if !n.isVerifiedInstitution(tx.Sender) {
			return "", "unauthorized: verified institution required"
		}
		id := n.assignCertID()
		n.certs[id] = &contracts.CertificateRecord{
			ID:          id,
			Student:     p.Student,
			Institution: tx.Sender,
			ContentRef:  p.ContentRef,
			IssuedAt:    n.now().Unix(),
			Valid:       true,
		}
		return id, ""

	case contracts.OpRevokeCert:
		var p contracts.RevokeCertificatePayload
		if err := json.Unmarshal(tx.Payload, &p); err != nil {
			return "", "malformed payload"
		}
		cert, ok := n.certs[p.CertificateID]
		if !ok {
			return "", "unknown certificate"
		}
		if cert.Institution != tx.Sender && !n.isAdmin(tx.Sender) {
			return "", "unauthorized: issuer or admin required"
		}
		cert.Valid = false
		return "", ""

	default:
		return "", "unknown operation"
	}
}

func (n *MemNode) isAdmin(address string) bool {
	rec, ok := n.identities[address]
	return ok && rec.Role == contracts.RoleAdmin
}

func (n *MemNode) isVerifiedInstitution(address string) bool {
	rec, ok := n.identities[address]
	return ok && rec.Role == contracts.RoleInstitution && rec.Verified
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

// Query implements Node.
func (n *MemNode) Query(_ context.Context, q contracts.Query, args map[string]string) ([]byte, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	switch q {
	case contracts.QueryIdentity:
		rec, ok := n.identities[args["address"]]
		if !ok {
			return nil, ErrNoRecord
		}
		return json.Marshal(rec)

	case contracts.QueryExam:
		rec, ok := n.exams[args["exam_id"]]
		if !ok {
			return nil, ErrNoRecord
		}
		return json.Marshal(rec)

	case contracts.QueryExamsByInstitution:
		var recs []contracts.ExamRecord
		for _, e := range n.exams {
			if e.Institution == args["address"] {
				recs = append(recs, *e)
			}
		}
		sort.Slice(recs, func(i, j int) bool { return recs[i].ID < recs[j].ID })
		return json.Marshal(recs)

	case contracts.QueryResults:
		byStudent, ok := n.results[args["exam_id"]]
		if !ok {
			return json.Marshal([]contracts.ResultRecord{})
		}
		recs := make([]contracts.ResultRecord, 0, len(byStudent))
		for _, r := range byStudent {
			recs = append(recs, *r)
		}
		sort.Slice(recs, func(i, j int) bool { return recs[i].Student < recs[j].Student })
		return json.Marshal(recs)

	case contracts.QueryResultsByStudent:
		var recs []contracts.ResultRecord
		for _, byStudent := range n.results {
			if r, ok := byStudent[args["student"]]; ok {
				recs = append(recs, *r)
			}
		}
		sort.Slice(recs, func(i, j int) bool { return recs[i].ExamID < recs[j].ExamID })
		return json.Marshal(recs)

	case contracts.QueryCertificate:
		rec, ok := n.certs[args["certificate_id"]]
		if !ok {
			return nil, ErrNoRecord
		}
		return json.Marshal(rec)

	case contracts.QueryCertsByStudent:
		return n.marshalCerts(func(c *contracts.CertificateRecord) bool {
			return c.Student == args["student"]
		})

	case contracts.QueryCertsByInstitution:
		return n.marshalCerts(func(c *contracts.CertificateRecord) bool {
			return c.Institution == args["address"]
		})

	default:
		return nil, fmt.Errorf("unknown query %q", q)
	}
}

func (n *MemNode) marshalCerts(match func(*contracts.CertificateRecord) bool) ([]byte, error) {
	var recs []contracts.CertificateRecord
	for _, c := range n.certs {
		if match(c) {
			recs = append(recs, *c)
		}
	}
	sort.Slice(recs, func(i, j int) bool {
		a, _ := strconv.Atoi(recs[i].ID)
		b, _ := strconv.Atoi(recs[j].ID)
		return a < b
	})
	return json.Marshal(recs)
}
