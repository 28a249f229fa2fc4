package auth

import (
	"log/slog"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPasswordHashRoundTrip(t *testing.T) {
	hash, err := HashPassword("correct horse battery")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "pbkdf2_sha256$200000$"))

	assert.True(t, VerifyPassword("correct horse battery", hash))
	assert.False(t, VerifyPassword("correct horse batterx", hash))
	assert.False(t, VerifyPassword("", hash))
}

func TestPasswordHashesAreSalted(t *testing.T) {
	h1, err := HashPassword("same password")
	require.NoError(t, err)
	h2, err := HashPassword("same password")
	require.NoError(t, err)
	assert.NotEqual(t, h1, h2)
	assert.True(t, VerifyPassword("same password", h1))
	assert.True(t, VerifyPassword("same password", h2))
}

func TestVerifyPasswordRejectsMalformed(t *testing.T) {
	assert.False(t, VerifyPassword("x", ""))
	assert.False(t, VerifyPassword("x", "bcrypt$whatever"))
	assert.False(t, VerifyPassword("x", "pbkdf2_sha256$abc$salt$dk"))
	assert.False(t, VerifyPassword("x", "pbkdf2_sha256$200000$!!!$!!!"))
}

func TestSecretsHashing(t *testing.T) {
	s := NewSecrets("test-secret", slog.New(slog.DiscardHandler))

	h1 := s.HashSessionToken("tok")
	assert.Equal(t, h1, s.HashSessionToken("tok"))
	assert.NotEqual(t, h1, s.HashSessionToken("tok2"))
	assert.Len(t, h1, 64)

	// OTP hashes bind the email.
	assert.NotEqual(t, s.HashOTP("a@example.com", "123456"), s.HashOTP("b@example.com", "123456"))

	other := NewSecrets("other-secret", slog.New(slog.DiscardHandler))
	assert.NotEqual(t, h1, other.HashSessionToken("tok"))
}

func TestEphemeralSecretIsRandom(t *testing.T) {
	log := slog.New(slog.DiscardHandler)
	s1 := NewSecrets("", log)
	s2 := NewSecrets("", log)
	assert.NotEqual(t, s1.HashSessionToken("tok"), s2.HashSessionToken("tok"))
}

func TestNewSessionToken(t *testing.T) {
	tok, err := NewSessionToken()
	require.NoError(t, err)
	// 32 bytes base64url without padding.
	assert.Len(t, tok, 43)
	assert.NotContains(t, tok, "=")

	tok2, err := NewSessionToken()
	require.NoError(t, err)
	assert.NotEqual(t, tok, tok2)
}

func TestNewOTPCode(t *testing.T) {
	for i := 0; i < 20; i++ {
		code, err := NewOTPCode()
		require.NoError(t, err)
		assert.Regexp(t, regexp.MustCompile(`^\d{6}$`), code)
	}
}

func TestNewInviteCodeFormat(t *testing.T) {
	code, err := NewInviteCode("RS-")
	require.NoError(t, err)
	assert.Regexp(t, `^RS(-[ABCDEFGHJKLMNPQRSTUVWXYZ23456789]{4}){3}$`, code)

	bare, err := NewInviteCode("")
	require.NoError(t, err)
	assert.Regexp(t, `^[ABCDEFGHJKLMNPQRSTUVWXYZ23456789]{4}(-[ABCDEFGHJKLMNPQRSTUVWXYZ23456789]{4}){2}$`, bare)
}

func TestNormalizeInviteCode(t *testing.T) {
	assert.Equal(t, "RS-ABCD-EFGH-JKLM", NormalizeInviteCode("  rs-abcd-efgh-jklm "))
}

func TestClientIPDirectPeer(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "203.0.113.9:4711"
	r.Header.Set("X-Forwarded-For", "198.51.100.1")

	// Headers ignored without trust.
	assert.Equal(t, "203.0.113.9", ClientIP(r, false, nil))
}

func TestClientIPTrustedProxy(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "10.0.0.2:4711"
	r.Header.Set("X-Forwarded-For", "198.51.100.1, 10.0.0.2")

	// Peer outside the trusted set: headers ignored.
	assert.Equal(t, "10.0.0.2", ClientIP(r, true, []string{"10.0.0.1"}))

	// Peer in the trusted set: first XFF hop wins.
	assert.Equal(t, "198.51.100.1", ClientIP(r, true, []string{"10.0.0.2"}))

	// Empty trusted set trusts any peer.
	assert.Equal(t, "198.51.100.1", ClientIP(r, true, nil))
}

func TestClientIPRealIPFallback(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "10.0.0.2:4711"
	r.Header.Set("X-Real-IP", "198.51.100.7")
	assert.Equal(t, "198.51.100.7", ClientIP(r, true, nil))
}
