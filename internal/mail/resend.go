package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const resendEndpoint = "https://api.resend.com/emails"

// ResendClient delivers mail through the Resend HTTP API.
type ResendClient struct {
	apiKey   string
	endpoint string
	client   *http.Client
}

var _ Sender = (*ResendClient)(nil)

// ResendOption configures the client.
type ResendOption func(*ResendClient)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(c *http.Client) ResendOption {
	return func(r *ResendClient) {
		if c != nil {
			r.client = c
		}
	}
}

// WithEndpoint overrides the API endpoint (used by tests).
func WithEndpoint(url string) ResendOption {
	return func(r *ResendClient) {
		if url != "" {
			r.endpoint = url
		}
	}
}

// NewResendClient builds a client for the given API key.
func NewResendClient(apiKey string, opts ...ResendOption) (*ResendClient, error) {
	if apiKey == "" {
		return nil, errors.New("mail: resend api key is required")
	}
	c := &ResendClient{
		apiKey:   apiKey,
		endpoint: resendEndpoint,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Send posts the message. Non-2xx responses are returned as errors with
// the provider's message when one is present.
func (r *ResendClient) Send(ctx context.Context, msg Message) error {
	if msg.To == "" {
		return errors.New("mail: recipient is required")
	}
	payload := map[string]any{
		"from":    msg.From,
		"to":      []string{msg.To},
		"subject": msg.Subject,
		"html":    msg.HTML,
	}
	buf, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(buf))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+r.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var apiErr struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Message != "" {
			return fmt.Errorf("resend: %s: %s", resp.Status, apiErr.Message)
		}
		return fmt.Errorf("resend: %s", resp.Status)
	}
	return nil
}
