// Package ledger moves value between accounts. Every transfer debits one
// account and credits another by the same amount inside the caller's
// database transaction, so a failed operation leaves no partial movement.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"prediction-settlement/internal/apperr"
	"prediction-settlement/internal/blockchain"
	"prediction-settlement/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Ledger struct {
	db     *gorm.DB
	logger *zap.Logger
}

func New(db *gorm.DB, logger *zap.Logger) *Ledger {
	return &Ledger{db: db, logger: logger.Named("ledger")}
}

// OpenAccount creates the account if it does not exist yet.
func (l *Ledger) OpenAccount(tx *gorm.DB, address string, kind models.AccountKind) error {
	account := models.LedgerAccount{Address: address, Kind: kind}
	err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "address"}},
		DoNothing: true,
	}).Create(&account).Error
	if err != nil {
		return fmt.Errorf("failed to open account %s: %w", address, err)
	}
	return nil
}

// lockAccount loads an account row for update. A missing account is
// reported as nil without error.
func lockAccount(tx *gorm.DB, address string) (*models.LedgerAccount, error) {
	var account models.LedgerAccount
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("address = ?", address).
		First(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load account %s: %w", address, err)
	}
	return &account, nil
}

// Debit removes amount from an account. Balances never go negative.
func (l *Ledger) Debit(tx *gorm.DB, address string, amount uint64) error {
	account, err := lockAccount(tx, address)
	if err != nil {
		return err
	}
	if account == nil || account.Balance.Uint64() < amount {
		return apperr.ErrInsufficientFunds.WithDetail(address)
	}
	return setBalance(tx, address, account.Balance.Uint64()-amount)
}

// Credit adds amount to an existing account.
func (l *Ledger) Credit(tx *gorm.DB, address string, amount uint64) error {
	account, err := lockAccount(tx, address)
	if err != nil {
		return err
	}
	if account == nil {
		return apperr.ErrInvalidAccount.WithDetail("no ledger account " + address)
	}
	balance := account.Balance.Uint64() + amount
	if balance < account.Balance.Uint64() {
		return apperr.ErrOverflow.WithDetail("balance of " + address)
	}
	return setBalance(tx, address, balance)
}

func setBalance(tx *gorm.DB, address string, balance uint64) error {
	err := tx.Model(&models.LedgerAccount{}).
		Where("address = ?", address).
		Updates(map[string]interface{}{
			"balance":    models.Lamports(balance),
			"updated_at": time.Now(),
		}).Error
	if err != nil {
		return fmt.Errorf("failed to update balance of %s: %w", address, err)
	}
	return nil
}

// Transfer moves amount from one account to another and journals both legs.
func (l *Ledger) Transfer(
	tx *gorm.DB,
	from string,
	to string,
	amount uint64,
	kind models.TransferKind,
	reference string,
) (uuid.UUID, error) {
	if amount == 0 {
		return uuid.Nil, apperr.ErrInvalidAmount
	}
	if from == to {
		return uuid.Nil, apperr.ErrInvalidAccount.WithDetail("transfer to self")
	}

	if err := l.Debit(tx, from, amount); err != nil {
		return uuid.Nil, err
	}
	if err := l.Credit(tx, to, amount); err != nil {
		return uuid.Nil, err
	}

	transferID := uuid.New()
	if err := journal(tx, transferID, from, to, amount, kind, reference); err != nil {
		return uuid.Nil, err
	}

	l.logger.Debug("transfer committed to tx",
		zap.String("transfer_id", transferID.String()),
		zap.String("kind", string(kind)),
		zap.String("from", from),
		zap.String("to", to),
		zap.Uint64("amount", amount),
	)
	return transferID, nil
}

func journal(tx *gorm.DB, transferID uuid.UUID, from, to string, amount uint64, kind models.TransferKind, reference string) error {
	now := time.Now()
	entries := []models.LedgerEntry{
		{
			ID:         uuid.New(),
			TransferID: transferID,
			Account:    from,
			Direction:  models.EntryDebit,
			Amount:     models.Lamports(amount),
			Kind:       kind,
			Reference:  reference,
			CreatedAt:  now,
		},
		{
			ID:         uuid.New(),
			TransferID: transferID,
			Account:    to,
			Direction:  models.EntryCredit,
			Amount:     models.Lamports(amount),
			Kind:       kind,
			Reference:  reference,
			CreatedAt:  now,
		},
	}
	if err := tx.Create(&entries).Error; err != nil {
		return fmt.Errorf("failed to journal transfer: %w", err)
	}
	return nil
}

// Deposit mints value into a user wallet account, opening it if needed.
func (l *Ledger) Deposit(ctx context.Context, address string, amount uint64, reference string) (*models.LedgerAccount, error) {
	if amount == 0 {
		return nil, apperr.ErrInvalidAmount
	}
	if !blockchain.ValidateWalletAddress(address) {
		return nil, apperr.ErrInvalidAccount.WithDetail(address)
	}

	var account *models.LedgerAccount
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := l.OpenAccount(tx, address, models.AccountKindUser); err != nil {
			return err
		}
		existing, err := lockAccount(tx, address)
		if err != nil {
			return err
		}
		// Escrow balances must only change through stakes and payouts.
		if existing == nil || existing.Kind != models.AccountKindUser {
			return apperr.ErrInvalidAccount.WithDetail("deposits only credit user accounts")
		}
		if err := l.Credit(tx, address, amount); err != nil {
			return err
		}
		if err := journal(tx, uuid.New(), models.MintAccount, address, amount, models.TransferKindDeposit, reference); err != nil {
			return err
		}

		account, err = lockAccount(tx, address)
		return err
	})
	if err != nil {
		return nil, err
	}

	l.logger.Info("deposit credited",
		zap.String("account", address),
		zap.Uint64("amount", amount),
		zap.String("reference", reference),
	)
	return account, nil
}

// Balance returns the balance of an account; unknown accounts hold zero.
func (l *Ledger) Balance(ctx context.Context, address string) (uint64, error) {
	var account models.LedgerAccount
	err := l.db.WithContext(ctx).Where("address = ?", address).First(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get balance: %w", err)
	}
	return account.Balance.Uint64(), nil
}

// Entries returns the most recent journal entries for an account.
func (l *Ledger) Entries(ctx context.Context, address string, limit int) ([]models.LedgerEntry, error) {
	var entries []models.LedgerEntry
	err := l.db.WithContext(ctx).
		Where("account = ?", address).
		Order("created_at DESC").
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get ledger entries: %w", err)
	}
	return entries, nil
}

// SumByKind totals the CREDIT legs of one transfer kind for a reference.
func (l *Ledger) SumByKind(ctx context.Context, kind models.TransferKind, reference string) (uint64, error) {
	var entries []models.LedgerEntry
	err := l.db.WithContext(ctx).
		Where("kind = ? AND reference = ? AND direction = ?", kind, reference, models.EntryCredit).
		Find(&entries).Error
	if err != nil {
		return 0, fmt.Errorf("failed to sum %s entries: %w", kind, err)
	}

	var total uint64
	for _, e := range entries {
		total += e.Amount.Uint64()
	}
	return total, nil
}
