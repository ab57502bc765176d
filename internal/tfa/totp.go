package tfa

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"crypto/subtle"
	"encoding/base32"
	"encoding/binary"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Service implements TOTP (RFC 6238) generation and verification for the
// two-factor login flow: SHA1, 6 digits, 30-second period, with a ±1 step
// skew window so codes from the adjacent time step still verify.
type Service struct {
	issuer string
	period int
	digits int
	skew   int
	now    func() time.Time
}

const secretBytes = 20

var b32 = base32.StdEncoding.WithPadding(base32.NoPadding)

// Option configures the Service.
type Option func(*Service)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewService constructs a Service that labels provisioning URIs with
// issuer (the account name shown in authenticator apps).
func NewService(issuer string, opts ...Option) *Service {
	s := &Service{
		issuer: issuer,
		period: 30,
		digits: 6,
		skew:   1,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GenerateSecret returns a fresh base32-encoded shared secret. Each call
// produces a new secret; re-initiating TFA setup overwrites the old one.
func (s *Service) GenerateSecret() (string, error) {
	raw := make([]byte, secretBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return b32.EncodeToString(raw), nil
}

// ProvisioningURI builds the otpauth:// URI that authenticator apps scan.
func (s *Service) ProvisioningURI(account, secret string) string {
	label := url.PathEscape(s.issuer + ":" + account)

	v := url.Values{}
	v.Set("secret", secret)
	v.Set("issuer", s.issuer)
	v.Set("period", strconv.Itoa(s.period))
	v.Set("digits", strconv.Itoa(s.digits))
	v.Set("algorithm", "SHA1")

	return "otpauth://totp/" + label + "?" + v.Encode()
}

// VerifyCode reports whether code matches secret at the current time step
// or an immediately adjacent one.
func (s *Service) VerifyCode(code, secret string) (bool, error) {
	trimmed := strings.TrimSpace(code)
	if len(trimmed) != s.digits || !isNumeric(trimmed) {
		return false, nil
	}
	raw, err := b32.DecodeString(strings.ToUpper(strings.TrimSpace(secret)))
	if err != nil || len(raw) == 0 {
		return false, errors.New("tfa: malformed secret")
	}

	baseCounter := s.now().Unix() / int64(s.period)
	for step := -s.skew; step <= s.skew; step++ {
		counter := baseCounter + int64(step)
		if counter < 0 {
			continue
		}
		generated := hotpCode(raw, counter, s.digits)
		if subtle.ConstantTimeCompare([]byte(generated), []byte(trimmed)) == 1 {
			return true, nil
		}
	}
	return false, nil
}

func hotpCode(secret []byte, counter int64, digits int) string {
	var msg [8]byte
	binary.BigEndian.PutUint64(msg[:], uint64(counter))

	mac := hmac.New(sha1.New, secret)
	_, _ = mac.Write(msg[:])
	sum := mac.Sum(nil)

	offset := sum[len(sum)-1] & 0x0f
	bin := (int(sum[offset])&0x7f)<<24 |
		(int(sum[offset+1])&0xff)<<16 |
		(int(sum[offset+2])&0xff)<<8 |
		(int(sum[offset+3]) & 0xff)

	mod := 1
	for i := 0; i < digits; i++ {
		mod *= 10
	}
	return fmt.Sprintf("%0*d", digits, bin%mod)
}

func isNumeric(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}
