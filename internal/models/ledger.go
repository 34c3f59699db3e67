package models

import (
	"time"

	"github.com/google/uuid"
)

type AccountKind string

const (
	AccountKindUser   AccountKind = "USER"
	AccountKindEscrow AccountKind = "ESCROW"
	AccountKindMint   AccountKind = "MINT"
)

type EntryDirection string

const (
	EntryDebit  EntryDirection = "DEBIT"
	EntryCredit EntryDirection = "CREDIT"
)

type TransferKind string

const (
	TransferKindDeposit TransferKind = "DEPOSIT"
	TransferKindStake   TransferKind = "STAKE"
	TransferKindPayout  TransferKind = "PAYOUT"
)

// MintAccount is the external source debited by deposits. It is never
// stored with a balance; its entries only keep the journal balanced.
const MintAccount = "mint"

// LedgerAccount is a value-holding account: a user wallet or a market escrow.
type LedgerAccount struct {
	Address   string      `gorm:"primaryKey;size:64" json:"address"`
	Kind      AccountKind `gorm:"size:20;not null;index" json:"kind"`
	Balance   Lamports    `gorm:"not null;default:0" json:"balance"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// TableName specifies the table name for LedgerAccount model
func (LedgerAccount) TableName() string {
	return "ledger_accounts"
}

// LedgerEntry is one leg of a transfer. Each transfer has exactly one DEBIT
// and one CREDIT of the same amount.
type LedgerEntry struct {
	ID         uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	TransferID uuid.UUID      `gorm:"type:uuid;not null;index" json:"transfer_id"`
	Account    string         `gorm:"size:64;not null;index" json:"account"`
	Direction  EntryDirection `gorm:"size:10;not null" json:"direction"`
	Amount     Lamports       `gorm:"not null" json:"amount"`
	Kind       TransferKind   `gorm:"size:20;not null;index" json:"kind"`
	Reference  string         `gorm:"size:128" json:"reference"`
	CreatedAt  time.Time      `gorm:"index" json:"created_at"`
}

// TableName specifies the table name for LedgerEntry model
func (LedgerEntry) TableName() string {
	return "ledger_entries"
}

// DepositRequest is the body of POST /api/ledger/deposits
type DepositRequest struct {
	Account   string `json:"account" binding:"required"`
	Amount    uint64 `json:"amount"`
	Reference string `json:"reference"`
}
