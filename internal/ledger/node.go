// Package ledger is the typed façade over the credential ledger. The node
// itself is an external service; this package owns submitting transactions,
// waiting for inclusion, and decoding receipts and query results into the
// contract types exactly once at this boundary.
package ledger

import (
	"context"
	"errors"

	contracts "attest/contracts/ledger"
)

// TxID identifies a submitted ledger transaction.
type TxID string

// Status is the inclusion status reported by a receipt.
type Status string

const (
	StatusPending  Status = "pending"
	StatusIncluded Status = "included"
	StatusRejected Status = "rejected"
)

// Receipt is what the node reports for a submitted transaction once it has
// been processed. AssignedID carries the canonical identifier emitted by
// creation operations (today: the certificate id).
type Receipt struct {
	TxID       TxID   `json:"tx_id"`
	Status     Status `json:"status"`
	AssignedID string `json:"assigned_id,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

// ErrNoRecord is returned by node queries when no record exists for the key.
var ErrNoRecord = errors.New("no ledger record")

// Node is the opaque ledger service boundary. Signing happens in an external
// signer before submission; the node only sees the operation and arguments.
type Node interface {
	// Submit hands a transaction to the ledger and returns its id. An error
	// here means the node never accepted the transaction.
	Submit(ctx context.Context, tx contracts.Tx) (TxID, error)

	// WaitReceipt blocks until the transaction is included or rejected, or
	// until ctx expires. Expiry does not mean the transaction is lost - it
	// may still land later.
	WaitReceipt(ctx context.Context, id TxID) (*Receipt, error)

	// Query runs a read method against current ledger state and returns its
	// JSON-encoded result, or ErrNoRecord.
	Query(ctx context.Context, q contracts.Query, args map[string]string) ([]byte, error)
}
