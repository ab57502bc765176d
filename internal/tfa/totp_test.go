package tfa

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Base32 of the RFC 6238 reference secret "12345678901234567890".
const rfcSecret = "GEZDGNBVGY3TQOJQGEZDGNBVGY3TQOJQ"

func TestVerifyCodeRFCVectors(t *testing.T) {
	// Truncated 6-digit variants of the RFC 6238 appendix B vectors.
	vectors := []struct {
		unix int64
		code string
	}{
		{59, "287082"},
		{1111111109, "081804"},
		{1234567890, "005924"},
	}

	for _, tc := range vectors {
		now := time.Unix(tc.unix, 0)
		svc := NewService("FPOLY_SMS", WithClock(func() time.Time { return now }))

		ok, err := svc.VerifyCode(tc.code, rfcSecret)
		require.NoError(t, err, "t=%d", tc.unix)
		assert.True(t, ok, "expected code %s to verify at t=%d", tc.code, tc.unix)

		ok, err = svc.VerifyCode("000000", rfcSecret)
		require.NoError(t, err)
		assert.False(t, ok, "expected wrong code to fail at t=%d", tc.unix)
	}
}

func TestVerifyCodeSkewWindow(t *testing.T) {
	// Code for counter 1 (t=59) must verify one step later (t=61..89)
	// but not two steps later.
	svc := NewService("FPOLY_SMS", WithClock(func() time.Time { return time.Unix(75, 0) }))
	ok, err := svc.VerifyCode("287082", rfcSecret)
	require.NoError(t, err)
	assert.True(t, ok, "adjacent-step code must verify")

	svc = NewService("FPOLY_SMS", WithClock(func() time.Time { return time.Unix(150, 0) }))
	ok, err = svc.VerifyCode("287082", rfcSecret)
	require.NoError(t, err)
	assert.False(t, ok, "code two steps old must fail")
}

func TestVerifyCodeInputHygiene(t *testing.T) {
	svc := NewService("FPOLY_SMS")

	for _, code := range []string{"", "12345", "1234567", "12a456", "abcdef"} {
		ok, err := svc.VerifyCode(code, rfcSecret)
		require.NoError(t, err)
		assert.False(t, ok, "malformed code %q must not verify", code)
	}

	_, err := svc.VerifyCode("123456", "not base32!!")
	assert.Error(t, err, "malformed secret must error")
}

func TestGenerateSecretFreshness(t *testing.T) {
	svc := NewService("FPOLY_SMS")
	a, err := svc.GenerateSecret()
	require.NoError(t, err)
	b, err := svc.GenerateSecret()
	require.NoError(t, err)

	assert.NotEqual(t, a, b, "secrets must be fresh per call")
	assert.Equal(t, 32, len(a), "20 random bytes encode to 32 base32 chars")
}

func TestProvisioningURI(t *testing.T) {
	svc := NewService("FPOLY_SMS")
	uri := svc.ProvisioningURI("Binh Phan", rfcSecret)

	assert.True(t, strings.HasPrefix(uri, "otpauth://totp/FPOLY_SMS:Binh%20Phan?"), "uri: %s", uri)
	assert.Contains(t, uri, "secret="+rfcSecret)
	assert.Contains(t, uri, "issuer=FPOLY_SMS")
	assert.Contains(t, uri, "period=30")
	assert.Contains(t, uri, "digits=6")
	assert.Contains(t, uri, "algorithm=SHA1")
}

func TestRenderQR(t *testing.T) {
	svc := NewService("FPOLY_SMS")
	uri := svc.ProvisioningURI("student", rfcSecret)

	png, err := RenderQRPNG(uri)
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(png, []byte("\x89PNG")), "expected PNG magic")

	dataURL, err := RenderQRDataURL(uri)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(dataURL, "data:image/png;base64,"))
}
