package models

// InviteCode gates password-flow registration. Codes are single-use;
// redemption happens through a conditional update that must touch exactly
// one row.
type InviteCode struct {
	Code string `gorm:"primaryKey;size:64" json:"code"`

	// ParentCode is the code whose redemption minted this one.
	ParentCode string `gorm:"size:64;index" json:"parent_code,omitempty"`

	// OwnerPrincipalID is the user who may hand this code out.
	OwnerPrincipalID string `gorm:"size:255;index" json:"owner_principal_id,omitempty"`

	RedeemedByPrincipalID string `gorm:"size:255" json:"redeemed_by_principal_id,omitempty"`
	RedeemedAt            *Time  `json:"redeemed_at,omitempty"`
	DisabledAt            *Time  `json:"disabled_at,omitempty"`

	CreatedAt Time `json:"created_at"`
}

// TableName returns the table name for InviteCode.
func (InviteCode) TableName() string {
	return "invite_codes"
}

// Redeemable reports whether the code can still be redeemed.
func (c *InviteCode) Redeemable() bool {
	return c.RedeemedAt == nil && c.DisabledAt == nil
}
