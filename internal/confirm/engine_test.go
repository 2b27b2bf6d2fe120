package confirm

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"attest/internal/ledger"
	"attest/pkg/faults"
)

func testEngine(opts ...Option) *Engine {
	base := []Option{
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithBackoff(time.Millisecond),
		WithInclusionWait(time.Second),
	}
	return New(append(base, opts...)...)
}

func TestEngineVerifiesOnFirstAttempt(t *testing.T) {
	e := testEngine()

	res := e.Confirm(context.Background(), Write{
		Key: "exam/ex-1",
		Op:  "create_exam",
		Submit: func(ctx context.Context) (*ledger.TxResult, error) {
			return &ledger.TxResult{TxID: "tx-1", AssignedID: "ex-1"}, nil
		},
		Verify: func(ctx context.Context, r *ledger.TxResult) error {
			return nil
		},
	})

	assert.Equal(t, StateVerified, res.State)
	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, "ex-1", res.AssignedID)
	assert.NoError(t, res.Err)
}

func TestEngineRetriesExactlyMaxAttemptsOnMismatch(t *testing.T) {
	var submits atomic.Int32
	e := testEngine(WithMaxAttempts(3))

	res := e.Confirm(context.Background(), Write{
		Key: "identity/0xuni",
		Op:  "set_profile_ref",
		Submit: func(ctx context.Context) (*ledger.TxResult, error) {
			submits.Add(1)
			return &ledger.TxResult{TxID: "tx-1"}, nil
		},
		Verify: func(ctx context.Context, r *ledger.TxResult) error {
			return errors.New("recorded ref differs from intent")
		},
	})

	assert.Equal(t, int32(3), submits.Load(), "must submit exactly maxAttempts times, never fewer, never infinite")
	assert.Equal(t, StateFailed, res.State)
	assert.Equal(t, 3, res.Attempts)
	assert.True(t, faults.HasCode(res.Err, faults.CodeConsistencyFault))
}

func TestEngineNeverResubmitsUnconfirmedWrites(t *testing.T) {
	var submits atomic.Int32
	e := testEngine(WithMaxAttempts(3))

	res := e.Confirm(context.Background(), Write{
		Key: "exam/ex-1",
		Op:  "update_exam_status",
		Submit: func(ctx context.Context) (*ledger.TxResult, error) {
			submits.Add(1)
			return nil, faults.New(faults.CodeUnconfirmed, "inclusion wait expired")
		},
		Verify: func(ctx context.Context, r *ledger.TxResult) error { return nil },
	})

	assert.Equal(t, int32(1), submits.Load(), "an unconfirmed write may still land; resubmission is unsafe")
	assert.Equal(t, StateFailed, res.State)
	assert.True(t, faults.HasCode(res.Err, faults.CodeUnconfirmed))
}

func TestEngineTreatsAlreadyInDesiredStateAsVerified(t *testing.T) {
	e := testEngine()

	res := e.Confirm(context.Background(), Write{
		Key: "identity/0xuni",
		Op:  "set_verified",
		Submit: func(ctx context.Context) (*ledger.TxResult, error) {
			return nil, ledger.ErrAlreadyInDesiredState
		},
		Verify: func(ctx context.Context, r *ledger.TxResult) error {
			return errors.New("must not be called")
		},
	})

	assert.Equal(t, StateVerified, res.State)
	assert.NoError(t, res.Err)
}

func TestEngineKeepsTrackingAfterCallerAbandons(t *testing.T) {
	e := testEngine()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	res := e.Confirm(ctx, Write{
		Key: "cert/pending",
		Op:  "issue_certificate",
		Submit: func(ctx context.Context) (*ledger.TxResult, error) {
			time.Sleep(60 * time.Millisecond)
			return &ledger.TxResult{TxID: "tx-5", AssignedID: "42"}, nil
		},
		Verify: func(ctx context.Context, r *ledger.TxResult) error { return nil },
	})

	require.False(t, res.State.Terminal(), "caller timed out before the write completed")

	require.Eventually(t, func() bool {
		later, ok := e.Lookup(res.Handle)
		return ok && later.State == StateVerified
	}, time.Second, 10*time.Millisecond, "engine must drive the abandoned write to its true outcome")

	later, ok := e.Lookup(res.Handle)
	require.True(t, ok)
	assert.Equal(t, "42", later.AssignedID)
}

func TestEngineSerializesWritesForSameKey(t *testing.T) {
	e := testEngine()

	var inFlight atomic.Int32
	var overlapped atomic.Bool
	write := Write{
		Key: "exam/ex-1",
		Op:  "enroll_students",
		Submit: func(ctx context.Context) (*ledger.TxResult, error) {
			if inFlight.Add(1) > 1 {
				overlapped.Store(true)
			}
			time.Sleep(5 * time.Millisecond)
			inFlight.Add(-1)
			return &ledger.TxResult{TxID: "tx"}, nil
		},
		Verify: func(ctx context.Context, r *ledger.TxResult) error { return nil },
	}

	var wg sync.WaitGroup
	for range 4 {
		wg.Go(func() {
			res := e.Confirm(context.Background(), write)
			assert.Equal(t, StateVerified, res.State)
		})
	}
	wg.Wait()

	assert.False(t, overlapped.Load(), "writes for the same entity must be queued, not interleaved")
}

func TestEngineLookupUnknownHandle(t *testing.T) {
	e := testEngine()
	_, ok := e.Lookup(uuid.New())
	assert.False(t, ok)
}
