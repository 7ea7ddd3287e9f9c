package domain

import "time"

// RefreshToken is one live refresh token in the ledger.
//
// Security notes:
// - We never store the raw token, only its SHA-256 hash (TokenHash).
// - A row exists exactly while the token is redeemable. Rotation and logout
//   delete the row; nothing else mutates it.
type RefreshToken struct {
	ID int64 `json:"id" gorm:"primaryKey"`

	UserID string `json:"user_id" gorm:"size:36;index;not null"`

	TokenHash string `json:"-" gorm:"size:64;uniqueIndex;not null"`

	ExpiresAt time.Time `json:"expires_at" gorm:"index;not null"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (RefreshToken) TableName() string { return "refresh_tokens" }

func (t *RefreshToken) IsExpired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}
