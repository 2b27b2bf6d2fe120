// Package content talks to the content-addressed blob store. It carries no
// business logic: callers get bytes in, a CID out, and a fault taxonomy that
// distinguishes "store unreachable" from "blob genuinely missing".
package content

import (
	"context"
	"log/slog"

	"github.com/ipfs/go-cid"

	"attest/pkg/faults"
)

// Store is the content store boundary: deterministic content addressing,
// so repeated uploads of unchanged bytes are cheap to detect.
type Store interface {
	// Put stores a blob and returns its CID. Same bytes, same CID.
	Put(ctx context.Context, data []byte) (string, error)
	// Get fetches a blob by CID. A missing blob yields a content_not_found
	// fault, a transport failure yields content_unavailable.
	Get(ctx context.Context, ref string) ([]byte, error)
}

// ValidateRef checks that ref parses as a CID. Gateways may hand back hashes
// in more than one scheme, so a malformed ref is logged as a warning rather
// than rejected.
func ValidateRef(logger *slog.Logger, ref string) {
	if _, err := cid.Decode(ref); err != nil {
		logger.Warn("content ref does not parse as a CID",
			"ref", ref,
			"error", err,
		)
	}
}

// NotFound builds the data-loss class fault for a missing blob.
func NotFound(ref string) error {
	return faults.New(faults.CodeContentNotFound, "content not found: "+ref)
}

// Unavailable wraps a transport failure talking to the store.
func Unavailable(err error) error {
	return faults.Wrap(err, faults.CodeContentUnavailable, "content store unavailable")
}
