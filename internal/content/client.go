package content

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"time"

	"attest/pkg/platform/circuit"
)

// Client is an HTTP client against an IPFS-style pinning gateway
// (POST /api/v0/add, POST /api/v0/cat). A circuit breaker in front of the
// gateway turns a dead store into fast content_unavailable faults instead of
// a pile-up of blocked workflow calls.
type Client struct {
	baseURL string
	http    *http.Client
	breaker *circuit.Breaker
	logger  *slog.Logger
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithHTTPClient injects a custom http.Client, mainly for tests.
func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

// WithBreaker injects a custom circuit breaker.
func WithBreaker(b *circuit.Breaker) ClientOption {
	return func(c *Client) {
		if b != nil {
			c.breaker = b
		}
	}
}

// NewClient builds a Client for the gateway at baseURL. timeout bounds each
// individual request; callers still control overall deadlines via ctx.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		breaker: circuit.New("content-store"),
		logger:  logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type addResponse struct {
	Name string `json:"Name"`
	Hash string `json:"Hash"`
	Size string `json:"Size"`
}

// Put uploads a blob and returns the CID assigned by the gateway.
func (c *Client) Put(ctx context.Context, data []byte) (string, error) {
	if !c.breaker.Allow() {
		return "", Unavailable(fmt.Errorf("circuit %s open", c.breaker.Name()))
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "blob")
	if err != nil {
		return "", Unavailable(err)
	}
	if _, err := part.Write(data); err != nil {
		return "", Unavailable(err)
	}
	if err := mw.Close(); err != nil {
		return "", Unavailable(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/v0/add?cid-version=1&pin=true", &body)
	if err != nil {
		return "", Unavailable(err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		c.breaker.RecordFailure()
		return "", Unavailable(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.breaker.RecordFailure()
		return "", Unavailable(fmt.Errorf("add returned status %d", resp.StatusCode))
	}

	var ar addResponse
	if err := json.NewDecoder(resp.Body).Decode(&ar); err != nil {
		c.breaker.RecordFailure()
		return "", Unavailable(fmt.Errorf("decoding add response: %w", err))
	}
	c.breaker.RecordSuccess()

	ValidateRef(c.logger, ar.Hash)
	return ar.Hash, nil
}

// Get fetches a blob by CID.
func (c *Client) Get(ctx context.Context, ref string) ([]byte, error) {
	if !c.breaker.Allow() {
		return nil, Unavailable(fmt.Errorf("circuit %s open", c.breaker.Name()))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/v0/cat?arg="+ref, nil)
	if err != nil {
		return nil, Unavailable(err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.breaker.RecordFailure()
		return nil, Unavailable(err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		c.breaker.RecordSuccess()
		return io.ReadAll(resp.Body)
	case resp.StatusCode == http.StatusNotFound:
		// The store answered; the blob is gone. Not a transport problem,
		// so the breaker stays untouched.
		c.breaker.RecordSuccess()
		return nil, NotFound(ref)
	default:
		c.breaker.RecordFailure()
		return nil, Unavailable(fmt.Errorf("cat returned status %d", resp.StatusCode))
	}
}

// Healthy pings the gateway, for readiness probes.
func (c *Client) Healthy(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v0/version", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("version returned status %d", resp.StatusCode)
	}
	return nil
}
