// Package auth provides the credential primitives of the access-control
// layer: HMAC token hashing, OTP codes, PBKDF2 passwords, invite codes, and
// client IP resolution. Raw secrets are never persisted; the database only
// ever sees their hashes.
package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"log/slog"
	"math/big"
)

// Secrets derives the keyed hashes for session tokens and OTP codes.
type Secrets struct {
	key []byte
}

// NewSecrets builds a Secrets from the configured key. An empty key yields an
// ephemeral per-process secret: fine for development, but sessions and codes
// will not survive a restart, so a warning is logged.
func NewSecrets(configured string, log *slog.Logger) *Secrets {
	if configured != "" {
		return &Secrets{key: []byte(configured)}
	}
	if log == nil {
		log = slog.Default()
	}
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		panic(fmt.Sprintf("reading random bytes: %v", err))
	}
	log.Warn("AUTH_SECRET_KEY is not set; generated an ephemeral secret. " +
		"Sessions and codes will be invalidated on restart. Set an explicit key in production.")
	return &Secrets{key: key}
}

func (s *Secrets) hash(message string) string {
	mac := hmac.New(sha256.New, s.key)
	mac.Write([]byte(message))
	return hex.EncodeToString(mac.Sum(nil))
}

// HashSessionToken returns the stored form of a session token.
func (s *Secrets) HashSessionToken(token string) string {
	return s.hash("sess:" + token)
}

// HashOTP returns the stored form of an email verification code.
func (s *Secrets) HashOTP(email, code string) string {
	return s.hash("otp:" + email + ":" + code)
}

// NewSessionToken generates an opaque session token: 32 random bytes,
// base64url without padding.
func NewSessionToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating session token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// NewOTPCode generates a 6-digit numeric verification code.
func NewOTPCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", fmt.Errorf("generating otp code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// ConstantTimeEquals compares two strings without leaking the mismatch
// position through timing.
func ConstantTimeEquals(a, b string) bool {
	return hmac.Equal([]byte(a), []byte(b))
}
