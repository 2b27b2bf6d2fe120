package content

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"attest/pkg/faults"
	"attest/pkg/platform/circuit"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestMemoryStorePutIsIdempotent(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	ref1, err := store.Put(ctx, []byte(`{"name":"MIT"}`))
	require.NoError(t, err)
	ref2, err := store.Put(ctx, []byte(`{"name":"MIT"}`))
	require.NoError(t, err)

	assert.Equal(t, ref1, ref2, "identical bytes must address identically")

	ref3, err := store.Put(ctx, []byte(`{"name":"ETH"}`))
	require.NoError(t, err)
	assert.NotEqual(t, ref1, ref3)
}

func TestMemoryStoreGetMissing(t *testing.T) {
	store := NewMemoryStore()

	_, err := store.Get(context.Background(), "bafybeigdoesnotexist")
	assert.True(t, faults.HasCode(err, faults.CodeContentNotFound))
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	blob := []byte("exam material pdf bytes")
	ref, err := store.Put(ctx, blob)
	require.NoError(t, err)

	got, err := store.Get(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, blob, got)
	assert.Equal(t, 1, store.PutCalls())
}

func TestClientPutAndGet(t *testing.T) {
	blob := []byte(`{"degree":"BSc"}`)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v0/add":
			_, _ = w.Write([]byte(`{"Name":"blob","Hash":"bafkreigh2akiscaildcqabsyg3dfr6chu3fgpregiymsck7e7aqa4s52zy","Size":"16"}`))
		case "/api/v0/cat":
			_, _ = w.Write(blob)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second, discardLogger())

	ref, err := c.Put(context.Background(), blob)
	require.NoError(t, err)
	assert.NotEmpty(t, ref)

	got, err := c.Get(context.Background(), ref)
	require.NoError(t, err)
	assert.Equal(t, blob, got)
}

func TestClientDistinguishesMissingFromUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	c := NewClient(srv.URL, time.Second, discardLogger())

	_, err := c.Get(context.Background(), "bafyunknown")
	assert.True(t, faults.HasCode(err, faults.CodeContentNotFound),
		"404 from the store means the blob is gone, not that the store is down")

	srv.Close()
	_, err = c.Get(context.Background(), "bafyunknown")
	assert.True(t, faults.HasCode(err, faults.CodeContentUnavailable),
		"transport failure must map to content_unavailable")
}

func TestClientFailsFastWhenCircuitOpen(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	breaker := circuit.New("content-store", circuit.WithFailureThreshold(2), circuit.WithCooldown(time.Minute))
	c := NewClient(srv.URL, time.Second, discardLogger(), WithBreaker(breaker))

	_, _ = c.Put(context.Background(), []byte("a"))
	_, _ = c.Put(context.Background(), []byte("b"))

	_, err := c.Put(context.Background(), []byte("c"))
	assert.True(t, faults.HasCode(err, faults.CodeContentUnavailable))
	assert.Equal(t, circuit.StateOpen, breaker.State())
}
