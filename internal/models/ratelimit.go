package models

// RateLimitCounter is a windowed counter row shared across processes.
// Key format is "namespace:subject:bucket" where bucket is
// floor(epoch_seconds / window).
type RateLimitCounter struct {
	Key       string `gorm:"primaryKey;size:255" json:"key"`
	Count     int    `gorm:"not null;default:0" json:"count"`
	ExpiresAt Time   `gorm:"not null;index" json:"expires_at"`
}

// TableName returns the table name for RateLimitCounter.
func (RateLimitCounter) TableName() string {
	return "rate_limit_counters"
}
