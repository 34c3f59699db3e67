package models

import (
	"time"
)

// Bet represents one user's stake on a market. There is at most one bet per
// (market, user); Address is derived from that pair.
type Bet struct {
	Address   string     `gorm:"primaryKey;size:64" json:"address"`
	MarketID  string     `gorm:"size:32;not null;uniqueIndex:idx_bets_market_user" json:"market_id"`
	User      string     `gorm:"column:bettor;size:64;not null;uniqueIndex:idx_bets_market_user;index" json:"user"`
	Amount    Lamports   `gorm:"not null" json:"amount"`
	Vote      Outcome    `gorm:"type:smallint;not null" json:"vote"`
	Claimed   bool       `gorm:"not null;default:false" json:"claimed"`
	Payout    Lamports   `gorm:"not null;default:0" json:"payout"`
	CreatedAt time.Time  `json:"created_at"`
	ClaimedAt *time.Time `json:"claimed_at,omitempty"`
}

// TableName specifies the table name for Bet
func (Bet) TableName() string {
	return "bets"
}

// PlaceBetRequest represents the request to stake on a market
type PlaceBetRequest struct {
	Vote   Outcome `json:"vote"`
	Amount uint64  `json:"amount"`
}

// ClaimResult is returned by a successful claim.
type ClaimResult struct {
	Bet    *Bet   `json:"bet"`
	Payout uint64 `json:"payout"`
	// PayoutSOL is Payout expressed in SOL for display.
	PayoutSOL string `json:"payout_sol"`
}
