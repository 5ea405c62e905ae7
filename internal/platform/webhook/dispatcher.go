// Package webhook relays composed messages to an HTTP endpoint as signed JSON.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/luskaa234/integrarneurpp-sub000/internal/platform/notification"
)

// ---------------------------------------------------------------------------
// Signature helpers
// ---------------------------------------------------------------------------

// SignPayload computes an HMAC-SHA256 signature of the payload using the given secret,
// returning the hex-encoded result.
func SignPayload(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature returns true when the hex-encoded signature matches the HMAC-SHA256
// of payload under the given secret.
func VerifySignature(payload []byte, secret, signature string) bool {
	expected := SignPayload(payload, secret)
	return hmac.Equal([]byte(expected), []byte(signature))
}

// ---------------------------------------------------------------------------
// Dispatcher
// ---------------------------------------------------------------------------

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithHTTPClient overrides the default HTTP client used for deliveries.
func WithHTTPClient(c *http.Client) Option {
	return func(d *Dispatcher) { d.httpClient = c }
}

// WithSecret signs every payload with secret in X-Webhook-Signature.
func WithSecret(secret string) Option {
	return func(d *Dispatcher) { d.secret = secret }
}

// Dispatcher POSTs {phone, link, body} to a fixed URL. It satisfies
// notification.Dispatcher. There is no retry; a failed POST is reported to
// the caller, which records the message as failed.
type Dispatcher struct {
	url        string
	secret     string
	httpClient *http.Client
}

// NewDispatcher validates rawURL and returns a Dispatcher with a 10 second
// client timeout.
func NewDispatcher(rawURL string, opts ...Option) (*Dispatcher, error) {
	if err := validateURL(rawURL); err != nil {
		return nil, err
	}
	d := &Dispatcher{
		url:        rawURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, o := range opts {
		o(d)
	}
	return d, nil
}

// validateURL checks that the URL is non-empty and uses http or https.
func validateURL(rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("webhook url is required")
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid webhook url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("webhook url must use http or https")
	}
	if u.Host == "" {
		return fmt.Errorf("webhook url must have a host")
	}
	return nil
}

func (d *Dispatcher) Dispatch(ctx context.Context, m notification.Message) error {
	payload, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Webhook-ID", uuid.New().String())
	req.Header.Set("X-Webhook-Timestamp", time.Now().UTC().Format(time.RFC3339))
	if d.secret != "" {
		req.Header.Set("X-Webhook-Signature", "sha256="+SignPayload(payload, d.secret))
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("deliver webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Read at most 1KB of response body.
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("webhook responded %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}
	return nil
}
