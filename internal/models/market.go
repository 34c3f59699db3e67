package models

import (
	"time"
)

type MarketState string

const (
	MarketStateOpen     MarketState = "OPEN"
	MarketStateResolved MarketState = "RESOLVED"
)

// Market represents a binary-outcome betting pool. Its escrow is the ledger
// account whose address equals Market.Address.
type Market struct {
	MarketID       string      `gorm:"primaryKey;size:32" json:"market_id"`
	Address        string      `gorm:"uniqueIndex;size:64;not null" json:"address"`
	Admin          string      `gorm:"size:64;not null;index" json:"admin"`
	State          MarketState `gorm:"size:20;not null;default:OPEN;index" json:"state"`
	Winner         *Outcome    `gorm:"type:smallint" json:"winner,omitempty"`
	TotalYes       Lamports    `gorm:"not null;default:0" json:"total_yes"`
	TotalNo        Lamports    `gorm:"not null;default:0" json:"total_no"`
	FeeBasisPoints uint16      `gorm:"not null" json:"fee_basis_points"`
	CreatedAt      time.Time   `json:"created_at"`
	ResolvedAt     *time.Time  `json:"resolved_at,omitempty"`
}

// TableName specifies the table name for Market model
func (Market) TableName() string {
	return "markets"
}

// IsOpen reports whether bets may still be placed.
func (m *Market) IsOpen() bool {
	return m.State == MarketStateOpen
}

// PoolFor returns the staked total for one side of the market.
func (m *Market) PoolFor(o Outcome) uint64 {
	if o == OutcomeYes {
		return m.TotalYes.Uint64()
	}
	return m.TotalNo.Uint64()
}

// CreateMarketRequest is the body of POST /api/markets
type CreateMarketRequest struct {
	MarketID string `json:"market_id" binding:"required"`
}

// ResolveMarketRequest is the body of POST /api/markets/:id/resolve
type ResolveMarketRequest struct {
	Winner Outcome `json:"winner" binding:"required"`
}

// MarketQuote is the live-odds view of a market. Values are informational
// and never used for settlement.
type MarketQuote struct {
	MarketID            string `json:"market_id"`
	TotalYes            uint64 `json:"total_yes"`
	TotalNo             uint64 `json:"total_no"`
	TotalPoolSOL        string `json:"total_pool_sol"`
	YesProbabilityPct   string `json:"yes_probability_pct"`
	NoProbabilityPct    string `json:"no_probability_pct"`
	YesPayoutMultiplier string `json:"yes_payout_multiplier"`
	NoPayoutMultiplier  string `json:"no_payout_multiplier"`
	FeeBasisPoints      uint16 `json:"fee_basis_points"`
}

// EscrowSummary describes the value held against a market.
type EscrowSummary struct {
	MarketID      string `json:"market_id"`
	EscrowAddress string `json:"escrow_address"`
	Balance       uint64 `json:"balance"`
	TotalPool     uint64 `json:"total_pool"`
	Fee           uint64 `json:"fee"`
	Distributable uint64 `json:"distributable"`
	PaidOut       uint64 `json:"paid_out"`
	Residue       uint64 `json:"residue"`
}
