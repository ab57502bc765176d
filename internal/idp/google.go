package idp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const googleTokenInfoEndpoint = "https://oauth2.googleapis.com/tokeninfo"

// GoogleVerifier validates Google ID tokens against the tokeninfo
// endpoint and maps the response into an Identity.
type GoogleVerifier struct {
	clientID string
	endpoint string
	client   *http.Client
	now      func() time.Time
}

var _ Verifier = (*GoogleVerifier)(nil)

// GoogleOption configures the verifier.
type GoogleOption func(*GoogleVerifier)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(c *http.Client) GoogleOption {
	return func(g *GoogleVerifier) {
		if c != nil {
			g.client = c
		}
	}
}

// WithEndpoint overrides the tokeninfo endpoint (used by tests).
func WithEndpoint(u string) GoogleOption {
	return func(g *GoogleVerifier) {
		if u != "" {
			g.endpoint = u
		}
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) GoogleOption {
	return func(g *GoogleVerifier) {
		if fn != nil {
			g.now = fn
		}
	}
}

// NewGoogleVerifier builds a verifier. clientID, when non-empty, is
// checked against the token audience.
func NewGoogleVerifier(clientID string, opts ...GoogleOption) *GoogleVerifier {
	g := &GoogleVerifier{
		clientID: clientID,
		endpoint: googleTokenInfoEndpoint,
		client:   &http.Client{Timeout: 10 * time.Second},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// ErrInvalidIDToken reports a token Google rejected or one that failed
// the audience/expiry checks.
var ErrInvalidIDToken = errors.New("idp: invalid id token")

// VerifyIDToken resolves raw into the Google identity it asserts.
func (g *GoogleVerifier) VerifyIDToken(ctx context.Context, raw string) (Identity, error) {
	if raw == "" {
		return Identity{}, ErrInvalidIDToken
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		g.endpoint+"?id_token="+url.QueryEscape(raw), nil)
	if err != nil {
		return Identity{}, err
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return Identity{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return Identity{}, ErrInvalidIDToken
	}

	var info struct {
		Sub           string `json:"sub"`
		Aud           string `json:"aud"`
		Exp           string `json:"exp"`
		Email         string `json:"email"`
		EmailVerified string `json:"email_verified"`
		Name          string `json:"name"`
		Picture       string `json:"picture"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return Identity{}, fmt.Errorf("decode tokeninfo response: %w", err)
	}
	if info.Sub == "" {
		return Identity{}, ErrInvalidIDToken
	}
	if g.clientID != "" && info.Aud != g.clientID {
		return Identity{}, ErrInvalidIDToken
	}
	if exp, err := strconv.ParseInt(info.Exp, 10, 64); err != nil || exp < g.now().Unix() {
		return Identity{}, ErrInvalidIDToken
	}

	return Identity{
		UID:         info.Sub,
		Email:       info.Email,
		DisplayName: info.Name,
		PhotoURL:    info.Picture,
		ProviderID:  "google.com",
	}, nil
}
