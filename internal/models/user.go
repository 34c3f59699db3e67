package models

import (
	"time"
)

// User is a wallet that has logged in at least once. The wallet address is
// the identity the settlement core compares against market admins and bet
// owners.
type User struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	WalletAddress string     `gorm:"uniqueIndex;size:64;not null" json:"wallet_address"`
	Nickname      string     `gorm:"uniqueIndex;size:64;not null" json:"nickname"`
	LastLoginAt   *time.Time `json:"last_login_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// TableName specifies the table name for User model
func (User) TableName() string {
	return "users"
}

// WalletLoginRequest is the body of POST /auth/wallet
type WalletLoginRequest struct {
	WalletAddress string `json:"wallet_address" binding:"required"`
	Signature     string `json:"signature" binding:"required"`
}
