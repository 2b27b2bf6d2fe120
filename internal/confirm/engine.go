// Package confirm wraps every ledger write with bounded retry, receipt
// handling, and read-back verification. All callers route through it; no
// other component is allowed to retry ledger writes on its own.
package confirm

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"attest/internal/confirm/metrics"
	"attest/internal/ledger"
	"attest/pkg/faults"
	platformsync "attest/pkg/platform/sync"
)

// State is the per-write confirmation state machine position.
type State string

const (
	StateSubmitted State = "submitted"
	StateIncluded  State = "included"
	StateVerified  State = "verified"
	StateFailed    State = "failed"
)

// Terminal reports whether the state is final.
func (s State) Terminal() bool {
	return s == StateVerified || s == StateFailed
}

// Write describes one ledger mutation to confirm. Submit performs the write
// through the gateway and Verify re-reads the ledger to assert the recorded
// state matches intent. Writes sharing a Key are serialized.
type Write struct {
	// Key is the entity serialization key, e.g. "exam/ex-1".
	Key string
	// Op labels the write for logs and metrics.
	Op string
	// Submit performs the write once. It must not retry.
	Submit func(ctx context.Context) (*ledger.TxResult, error)
	// Verify re-reads the ledger and returns nil iff the recorded state
	// matches what Submit intended.
	Verify func(ctx context.Context, res *ledger.TxResult) error
}

// Result is the confirmation outcome exposed to callers. For a write still
// in flight (caller abandoned the wait) State is non-terminal and the handle
// can be used to look the final outcome up later.
type Result struct {
	Handle     uuid.UUID
	State      State
	Attempts   int
	TxID       ledger.TxID
	AssignedID string
	Err        error
}

// Option configures the Engine.
type Option func(*Engine)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithMaxAttempts sets the total number of submit attempts on read-back
// mismatch. Default is 3.
func WithMaxAttempts(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxAttempts = n
		}
	}
}

// WithBackoff sets the base backoff between attempts; attempt k waits k times
// this value. Default is 2s.
func WithBackoff(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.backoff = d
		}
	}
}

// WithInclusionWait bounds how long a single submit may wait for inclusion.
// Default is 30s.
func WithInclusionWait(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.inclusionWait = d
		}
	}
}

// Engine drives submitted writes to a terminal state and keeps tracking them
// even when the original caller stops waiting.
type Engine struct {
	logger        *slog.Logger
	metrics       *metrics.Metrics
	locks         *platformsync.ShardedMutex
	maxAttempts   int
	backoff       time.Duration
	inclusionWait time.Duration

	mu      sync.RWMutex
	tracked map[uuid.UUID]*Result
}

// New creates an Engine with the given options.
func New(opts ...Option) *Engine {
	e := &Engine{
		logger:        slog.Default(),
		locks:         platformsync.NewShardedMutex(),
		maxAttempts:   3,
		backoff:       2 * time.Second,
		inclusionWait: 30 * time.Second,
		tracked:       make(map[uuid.UUID]*Result),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Confirm drives the write to a terminal state, or returns early with a
// non-terminal snapshot if ctx expires first. The write itself keeps running
// in the background in that case, so a later Lookup reflects the true
// outcome rather than a stale failure.
func (e *Engine) Confirm(ctx context.Context, w Write) *Result {
	handle := uuid.New()
	res := &Result{Handle: handle, State: StateSubmitted}

	e.mu.Lock()
	e.tracked[handle] = res
	e.mu.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		e.run(context.WithoutCancel(ctx), w, res)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		e.logger.Info("caller abandoned confirmation wait",
			"op", w.Op,
			"handle", handle.String(),
		)
	}
	return e.snapshot(handle)
}

// Lookup returns the current snapshot for a previously returned handle.
func (e *Engine) Lookup(handle uuid.UUID) (*Result, bool) {
	e.mu.RLock()
	_, ok := e.tracked[handle]
	e.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return e.snapshot(handle), true
}

func (e *Engine) snapshot(handle uuid.UUID) *Result {
	e.mu.RLock()
	defer e.mu.RUnlock()
	r := *e.tracked[handle]
	return &r
}

func (e *Engine) set(res *Result, mutate func(*Result)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	mutate(res)
}

// run is the per-write state machine. Writes for the same key are serialized
// here so a read-back verification can never race a concurrent write to the
// same entity.
func (e *Engine) run(ctx context.Context, w Write, res *Result) {
	e.locks.Lock(w.Key)
	defer e.locks.Unlock(w.Key)

	var lastErr error
	for attempt := 1; attempt <= e.maxAttempts; attempt++ {
		e.set(res, func(r *Result) {
			r.Attempts = attempt
			r.State = StateSubmitted
		})

		sctx, cancel := context.WithTimeout(ctx, e.inclusionWait)
		txRes, err := w.Submit(sctx)
		cancel()

		if errors.Is(err, ledger.ErrAlreadyInDesiredState) {
			// Redelivered intent; the ledger already records what we wanted.
			e.finish(w, res, StateVerified, nil, nil)
			return
		}
		if err != nil {
			// Submission failures are terminal here. An unconfirmed write may
			// still land, so blind resubmission would risk duplicate side
			// effects; a rejection will not change on retry.
			e.finish(w, res, StateFailed, err, txRes)
			return
		}

		e.set(res, func(r *Result) {
			r.State = StateIncluded
			r.TxID = txRes.TxID
			r.AssignedID = txRes.AssignedID
		})

		vctx, vcancel := context.WithTimeout(ctx, e.inclusionWait)
		err = w.Verify(vctx, txRes)
		vcancel()
		if err == nil {
			e.finish(w, res, StateVerified, nil, txRes)
			return
		}
		lastErr = err

		e.logger.Warn("read-back verification mismatch",
			"op", w.Op,
			"key", w.Key,
			"tx_id", string(txRes.TxID),
			"attempt", attempt,
			"error", err,
		)

		if attempt < e.maxAttempts {
			select {
			case <-ctx.Done():
				e.finish(w, res, StateFailed, faults.Wrap(ctx.Err(), faults.CodeUnconfirmed, "confirmation interrupted"), txRes)
				return
			case <-time.After(time.Duration(attempt) * e.backoff):
			}
		}
	}

	// Built directly so the consistency_fault code wins even when the last
	// verification error already carries a fault code of its own.
	fault := &faults.Error{
		Code:    faults.CodeConsistencyFault,
		Message: "ledger state diverged from intent after " + w.Op,
		Err:     lastErr,
	}
	e.logger.Error("consistency fault",
		"op", w.Op,
		"key", w.Key,
		"attempts", e.maxAttempts,
		"error", lastErr,
	)
	if e.metrics != nil {
		e.metrics.IncrementConsistencyFaults()
	}
	e.finish(w, res, StateFailed, fault, nil)
}

func (e *Engine) finish(w Write, res *Result, state State, err error, txRes *ledger.TxResult) {
	attempts := 0
	e.set(res, func(r *Result) {
		r.State = state
		r.Err = err
		if txRes != nil {
			r.TxID = txRes.TxID
			r.AssignedID = txRes.AssignedID
		}
		attempts = r.Attempts
	})
	if e.metrics != nil {
		e.metrics.ObserveWrite(w.Op, string(state), attempts)
	}
}
