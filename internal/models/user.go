package models

// UserAccount is an authenticated identity. OTP-only users carry just an
// email; password users also have a username and password hash.
type UserAccount struct {
	BaseModel

	Email string `gorm:"size:254;not null;uniqueIndex" json:"email"`

	// Username is set only for password-flow accounts. Nullable so the
	// unique index ignores OTP-only rows.
	Username *string `gorm:"size:64;uniqueIndex" json:"username,omitempty"`

	// PasswordHash is the encoded PBKDF2 hash, empty for OTP-only accounts.
	PasswordHash string `gorm:"size:255" json:"-"`
}

// TableName returns the table name for UserAccount.
func (UserAccount) TableName() string {
	return "user_accounts"
}

// PrincipalID returns the identity string used for ownership and sessions.
func (u *UserAccount) PrincipalID() string {
	return u.ID.String()
}

// UserLead is the survey record captured at registration.
type UserLead struct {
	BaseModel

	Email     string `gorm:"size:254;not null;uniqueIndex" json:"email"`
	Country   string `gorm:"size:64" json:"country,omitempty"`
	Referral  string `gorm:"size:32" json:"referral,omitempty"`
	Opinion   string `gorm:"size:2048" json:"opinion,omitempty"`
	IP        string `gorm:"size:64" json:"-"`
	UserAgent string `gorm:"size:300" json:"-"`
}

// TableName returns the table name for UserLead.
func (UserLead) TableName() string {
	return "user_leads"
}
