package models

// AuthSession is a server-side session. The raw token lives only in the
// client's cookie; the row stores its HMAC hash.
type AuthSession struct {
	BaseModel

	PrincipalID string `gorm:"size:255;not null;index" json:"principal_id"`

	TokenHash string `gorm:"size:64;not null;uniqueIndex" json:"-"`

	ExpiresAt Time  `gorm:"not null;index" json:"expires_at"`
	RevokedAt *Time `json:"revoked_at,omitempty"`

	// LastSeenAt is updated best-effort on authenticated requests.
	LastSeenAt *Time `json:"last_seen_at,omitempty"`
}

// TableName returns the table name for AuthSession.
func (AuthSession) TableName() string {
	return "auth_sessions"
}

// Active reports whether the session is usable at the given time.
func (s *AuthSession) Active(now Time) bool {
	return s.RevokedAt == nil && now.Before(s.ExpiresAt)
}

// OTPCode is a pending email verification code, stored hashed.
type OTPCode struct {
	BaseModel

	Email string `gorm:"size:254;not null;index" json:"email"`

	CodeHash string `gorm:"size:64;not null" json:"-"`

	ExpiresAt Time `gorm:"not null;index" json:"expires_at"`

	// Attempts counts failed verifications; the code is consumed once it
	// reaches the configured maximum.
	Attempts int `gorm:"not null;default:0" json:"attempts"`

	ConsumedAt *Time `json:"consumed_at,omitempty"`
}

// TableName returns the table name for OTPCode.
func (OTPCode) TableName() string {
	return "otp_codes"
}

// Usable reports whether the code can still be verified at the given time.
func (o *OTPCode) Usable(now Time) bool {
	return o.ConsumedAt == nil && now.Before(o.ExpiresAt)
}
