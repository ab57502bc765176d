package token

import (
	"bytes"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrInvalidToken indicates the token failed validation: bad signature,
// wrong kind, malformed input or expired claims. Callers treat it as
// "not authenticated", never as a crash.
var ErrInvalidToken = errors.New("token: invalid token")

// Kind selects the signing key and default lifetime of a token.
type Kind int

const (
	// Access tokens authenticate API calls.
	Access Kind = iota
	// Refresh tokens are exchanged for new access tokens and are mirrored
	// on the user record for server-side revocation.
	Refresh
	// Temporary tokens are issued mid-login when TFA is required. They
	// carry identity only and must not grant API access.
	Temporary
)

func (k Kind) String() string {
	switch k {
	case Access:
		return "access"
	case Refresh:
		return "refresh"
	case Temporary:
		return "temporary"
	default:
		return "unknown"
	}
}

// Payload is the identity carried inside every token.
type Payload struct {
	UserID      string
	Email       string
	StudentCode string
	FullName    string
	Metadata    map[string]string
}

// Claims is the JWT claim set for all three token kinds.
type Claims struct {
	Email       string            `json:"email,omitempty"`
	StudentCode string            `json:"student_code,omitempty"`
	FullName    string            `json:"full_name,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	jwt.RegisteredClaims
}

// Payload reconstructs the identity payload from verified claims.
func (c *Claims) Payload() Payload {
	return Payload{
		UserID:      c.Subject,
		Email:       c.Email,
		StudentCode: c.StudentCode,
		FullName:    c.FullName,
		Metadata:    c.Metadata,
	}
}

// Config carries the per-kind signing secrets and default lifetimes.
type Config struct {
	Issuer        string
	AccessSecret  []byte
	RefreshSecret []byte
	TempSecret    []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	TempTTL       time.Duration
}

// Service issues and verifies signed, expiring tokens. It holds no state
// beyond configuration; both operations are pure over the secret keys.
type Service struct {
	cfg Config
	now func() time.Time
}

// Option configures Service behavior.
type Option func(*Service)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewService validates the configuration and constructs a Service.
// Tokens carry no kind claim, so kind isolation rests entirely on the
// three signing keys being distinct; NewService refuses any overlap.
func NewService(cfg Config, opts ...Option) (*Service, error) {
	if len(cfg.AccessSecret) == 0 {
		return nil, errors.New("token: access secret is required")
	}
	if len(cfg.RefreshSecret) == 0 {
		return nil, errors.New("token: refresh secret is required")
	}
	if len(cfg.TempSecret) == 0 {
		return nil, errors.New("token: temporary secret is required")
	}
	if bytes.Equal(cfg.TempSecret, cfg.AccessSecret) || bytes.Equal(cfg.TempSecret, cfg.RefreshSecret) ||
		bytes.Equal(cfg.AccessSecret, cfg.RefreshSecret) {
		return nil, errors.New("token: access, refresh and temporary secrets must differ")
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = 15 * time.Minute
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = 2 * time.Hour
	}
	if cfg.TempTTL <= 0 {
		cfg.TempTTL = 5 * time.Minute
	}
	s := &Service{cfg: cfg, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Service) secretFor(kind Kind) ([]byte, error) {
	switch kind {
	case Access:
		return s.cfg.AccessSecret, nil
	case Refresh:
		return s.cfg.RefreshSecret, nil
	case Temporary:
		return s.cfg.TempSecret, nil
	default:
		return nil, errors.New("token: unknown kind")
	}
}

func (s *Service) ttlFor(kind Kind) time.Duration {
	switch kind {
	case Refresh:
		return s.cfg.RefreshTTL
	case Temporary:
		return s.cfg.TempTTL
	default:
		return s.cfg.AccessTTL
	}
}

// Issue signs payload with the key for kind, using the kind's default
// lifetime.
func (s *Service) Issue(payload Payload, kind Kind) (string, time.Time, error) {
	return s.IssueWithTTL(payload, kind, 0)
}

// IssueWithTTL signs payload with an explicit lifetime; ttl <= 0 uses the
// kind's default.
func (s *Service) IssueWithTTL(payload Payload, kind Kind, ttl time.Duration) (string, time.Time, error) {
	payload.UserID = strings.TrimSpace(payload.UserID)
	if payload.UserID == "" {
		return "", time.Time{}, errors.New("token: user id is required")
	}
	secret, err := s.secretFor(kind)
	if err != nil {
		return "", time.Time{}, err
	}
	if ttl <= 0 {
		ttl = s.ttlFor(kind)
	}

	now := s.now().UTC()
	expiresAt := now.Add(ttl)
	claims := Claims{
		Email:       payload.Email,
		StudentCode: payload.StudentCode,
		FullName:    payload.FullName,
		Metadata:    payload.Metadata,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.cfg.Issuer,
			Subject:   payload.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// Verify checks the signature under the key matching kind and validates
// the claims. Expiry is strict: exp must be after the current time.
func (s *Service) Verify(raw string, kind Kind) (*Claims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrInvalidToken
	}
	secret, err := s.secretFor(kind)
	if err != nil {
		return nil, ErrInvalidToken
	}

	parsed, err := jwt.ParseWithClaims(raw, &Claims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidToken
		}
		return secret, nil
	}, jwt.WithTimeFunc(func() time.Time { return s.now().UTC() }))
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if err := s.validateClaims(claims); err != nil {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (s *Service) validateClaims(claims *Claims) error {
	if s.cfg.Issuer != "" && claims.Issuer != s.cfg.Issuer {
		return errors.New("unexpected issuer")
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return errors.New("subject missing")
	}
	if claims.ExpiresAt == nil || claims.IssuedAt == nil {
		return errors.New("timestamps missing")
	}
	now := s.now().UTC()
	if !claims.ExpiresAt.Time.After(now) {
		return errors.New("token expired")
	}
	// Allow a small clock skew of 5 seconds when validating issued-at.
	if claims.IssuedAt.Time.After(now.Add(5 * time.Second)) {
		return errors.New("token issued in the future")
	}
	return nil
}
