package content

import (
	"context"
	"sync"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
)

// MemoryStore is an in-memory content-addressed store for tests and the demo
// environment. It computes real CIDv1 identifiers so addressing behaves
// exactly like the gateway: identical bytes always map to the identical ref.
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte

	putCalls int
	failPut  error
	failGet  error
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[string][]byte)}
}

// Put stores the blob under its computed CID.
func (s *MemoryStore) Put(_ context.Context, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.putCalls++
	if s.failPut != nil {
		return "", s.failPut
	}

	ref, err := computeRef(data)
	if err != nil {
		return "", err
	}
	s.blobs[ref] = append([]byte(nil), data...)
	return ref, nil
}

// Get returns the blob for ref, or a content_not_found fault.
func (s *MemoryStore) Get(_ context.Context, ref string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.failGet != nil {
		return nil, s.failGet
	}
	data, ok := s.blobs[ref]
	if !ok {
		return nil, NotFound(ref)
	}
	return append([]byte(nil), data...), nil
}

// Forget drops a blob, simulating data loss after a successful ledger write.
func (s *MemoryStore) Forget(ref string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blobs, ref)
}

// FailPuts makes subsequent Put calls return err; nil restores normal behavior.
func (s *MemoryStore) FailPuts(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failPut = err
}

// FailGets makes subsequent Get calls return err; nil restores normal behavior.
func (s *MemoryStore) FailGets(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failGet = err
}

// PutCalls reports how many times Put was invoked, successful or not.
// Tests use it to assert that denied operations never touch the store.
func (s *MemoryStore) PutCalls() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.putCalls
}

func computeRef(data []byte) (string, error) {
	mh, err := multihash.Sum(data, multihash.SHA2_256, -1)
	if err != nil {
		return "", err
	}
	return cid.NewCidV1(cid.Raw, mh).String(), nil
}
