package auth

import (
	"crypto/rand"
	"fmt"
	"strings"
)

// inviteAlphabet excludes lookalike characters (I, O, 0, 1).
const inviteAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// NewInviteCode mints a code of the form <PREFIX>-XXXX-XXXX-XXXX over the
// no-lookalike alphabet.
func NewInviteCode(prefix string) (string, error) {
	prefix = strings.TrimSuffix(strings.ToUpper(strings.TrimSpace(prefix)), "-")

	buf := make([]byte, 12)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating invite code: %w", err)
	}
	var b strings.Builder
	if prefix != "" {
		b.WriteString(prefix)
	}
	for i, c := range buf {
		if i%4 == 0 && (i > 0 || prefix != "") {
			b.WriteByte('-')
		}
		b.WriteByte(inviteAlphabet[int(c)%len(inviteAlphabet)])
	}
	return b.String(), nil
}

// NormalizeInviteCode canonicalizes user input for lookup.
func NormalizeInviteCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
