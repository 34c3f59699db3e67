package models

import (
	"time"

	"github.com/google/uuid"
)

// BetEvent records the pool totals right after a bet was committed. It feeds
// live-odds displays and is never read back for settlement.
type BetEvent struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	MarketID    string    `gorm:"size:32;not null;index" json:"market_id"`
	User        string    `gorm:"column:bettor;size:64;not null" json:"user"`
	Amount      Lamports  `gorm:"not null" json:"amount"`
	Vote        Outcome   `gorm:"type:smallint;not null" json:"vote"`
	NewTotalYes Lamports  `gorm:"not null" json:"new_total_yes"`
	NewTotalNo  Lamports  `gorm:"not null" json:"new_total_no"`
	CreatedAt   time.Time `gorm:"index" json:"created_at"`
}

// TableName specifies the table name for BetEvent model
func (BetEvent) TableName() string {
	return "bet_events"
}

// BetPlaced is the notification payload broadcast after a bet commits.
type BetPlaced struct {
	MarketID    string  `json:"market_id"`
	User        string  `json:"user"`
	Amount      uint64  `json:"amount"`
	Vote        Outcome `json:"vote"`
	NewTotalYes uint64  `json:"new_total_yes"`
	NewTotalNo  uint64  `json:"new_total_no"`
}

// Notification converts the stored event into its broadcast form.
func (e *BetEvent) Notification() BetPlaced {
	return BetPlaced{
		MarketID:    e.MarketID,
		User:        e.User,
		Amount:      e.Amount.Uint64(),
		Vote:        e.Vote,
		NewTotalYes: e.NewTotalYes.Uint64(),
		NewTotalNo:  e.NewTotalNo.Uint64(),
	}
}
