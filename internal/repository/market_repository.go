package repository

import (
	"context"
	"errors"
	"fmt"

	"prediction-settlement/internal/apperr"
	"prediction-settlement/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository whose queries run inside tx.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// InsertMarketIfAbsent inserts the market unless one with the same id or
// address exists. It reports whether the row was inserted.
func (r *Repository) InsertMarketIfAbsent(ctx context.Context, market *models.Market) (bool, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(market)
	if result.Error != nil {
		return false, fmt.Errorf("failed to insert market: %w", result.Error)
	}
	return result.RowsAffected == 1, nil
}

// LockMarket loads a market for update within the current transaction.
func (r *Repository) LockMarket(ctx context.Context, marketID string) (*models.Market, error) {
	var market models.Market
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("market_id = ?", marketID).
		First(&market).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.ErrMarketNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock market: %w", err)
	}
	return &market, nil
}

// GetMarket retrieves a market by id
func (r *Repository) GetMarket(ctx context.Context, marketID string) (*models.Market, error) {
	var market models.Market
	err := r.db.WithContext(ctx).Where("market_id = ?", marketID).First(&market).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.ErrMarketNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get market: %w", err)
	}
	return &market, nil
}

// ListMarkets retrieves markets, newest first, optionally filtered by state
func (r *Repository) ListMarkets(ctx context.Context, state models.MarketState, limit, offset int) ([]*models.Market, int64, error) {
	scoped := func() *gorm.DB {
		query := r.db.WithContext(ctx).Model(&models.Market{})
		if state != "" {
			query = query.Where("state = ?", state)
		}
		return query
	}

	var total int64
	if err := scoped().Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count markets: %w", err)
	}

	var markets []*models.Market
	err := scoped().
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&markets).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list markets: %w", err)
	}

	return markets, total, nil
}

// UpdateMarketTotals writes the pool totals of a market
func (r *Repository) UpdateMarketTotals(ctx context.Context, market *models.Market) error {
	err := r.db.WithContext(ctx).Model(&models.Market{}).
		Where("market_id = ?", market.MarketID).
		Updates(map[string]interface{}{
			"total_yes": market.TotalYes,
			"total_no":  market.TotalNo,
		}).Error
	if err != nil {
		return fmt.Errorf("failed to update market totals: %w", err)
	}
	return nil
}

// MarkResolved moves an OPEN market to RESOLVED. The state guard in the
// WHERE clause keeps the transition one-way even without a row lock.
func (r *Repository) MarkResolved(ctx context.Context, market *models.Market) error {
	result := r.db.WithContext(ctx).Model(&models.Market{}).
		Where("market_id = ? AND state = ?", market.MarketID, models.MarketStateOpen).
		Updates(map[string]interface{}{
			"state":       models.MarketStateResolved,
			"winner":      market.Winner,
			"resolved_at": market.ResolvedAt,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to resolve market: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperr.ErrAlreadyResolved
	}
	return nil
}

// InsertBetIfAbsent inserts the bet unless the (market, user) pair already
// has one. It reports whether the row was inserted.
func (r *Repository) InsertBetIfAbsent(ctx context.Context, bet *models.Bet) (bool, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(bet)
	if result.Error != nil {
		return false, fmt.Errorf("failed to insert bet: %w", result.Error)
	}
	return result.RowsAffected == 1, nil
}

// LockBet loads the bet of user on a market for update.
func (r *Repository) LockBet(ctx context.Context, marketID, user string) (*models.Bet, error) {
	var bet models.Bet
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("market_id = ? AND bettor = ?", marketID, user).
		First(&bet).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.ErrBetNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock bet: %w", err)
	}
	return &bet, nil
}

// LockBetByAddress loads a bet by its derived address for update.
func (r *Repository) LockBetByAddress(ctx context.Context, address string) (*models.Bet, error) {
	var bet models.Bet
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("address = ?", address).
		First(&bet).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.ErrBetNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock bet: %w", err)
	}
	return &bet, nil
}

// GetBetByAddress retrieves a bet by its derived address
func (r *Repository) GetBetByAddress(ctx context.Context, address string) (*models.Bet, error) {
	var bet models.Bet
	err := r.db.WithContext(ctx).Where("address = ?", address).First(&bet).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.ErrBetNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get bet: %w", err)
	}
	return &bet, nil
}

// GetBet retrieves the bet of user on a market
func (r *Repository) GetBet(ctx context.Context, marketID, user string) (*models.Bet, error) {
	var bet models.Bet
	err := r.db.WithContext(ctx).Where("market_id = ? AND bettor = ?", marketID, user).First(&bet).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.ErrBetNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get bet: %w", err)
	}
	return &bet, nil
}

// MarkClaimed flips claimed from false to true. Zero affected rows means a
// concurrent claim won.
func (r *Repository) MarkClaimed(ctx context.Context, bet *models.Bet) error {
	result := r.db.WithContext(ctx).Model(&models.Bet{}).
		Where("address = ? AND claimed = ?", bet.Address, false).
		Updates(map[string]interface{}{
			"claimed":    true,
			"payout":     bet.Payout,
			"claimed_at": bet.ClaimedAt,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to mark bet claimed: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperr.ErrAlreadyClaimed
	}
	return nil
}

// ListBets retrieves every bet on a market
func (r *Repository) ListBets(ctx context.Context, marketID string) ([]*models.Bet, error) {
	var bets []*models.Bet
	err := r.db.WithContext(ctx).
		Where("market_id = ?", marketID).
		Order("created_at ASC").
		Find(&bets).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list bets: %w", err)
	}
	return bets, nil
}

// ListUserBets retrieves the bets placed by a wallet
func (r *Repository) ListUserBets(ctx context.Context, user string, limit, offset int) ([]*models.Bet, error) {
	var bets []*models.Bet
	err := r.db.WithContext(ctx).
		Where("bettor = ?", user).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&bets).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list user bets: %w", err)
	}
	return bets, nil
}

// CreateBetEvent records a BetPlaced event
func (r *Repository) CreateBetEvent(ctx context.Context, event *models.BetEvent) error {
	if err := r.db.WithContext(ctx).Create(event).Error; err != nil {
		return fmt.Errorf("failed to record bet event: %w", err)
	}
	return nil
}

// ListBetEvents retrieves the BetPlaced history of a market in commit order
func (r *Repository) ListBetEvents(ctx context.Context, marketID string, limit int) ([]*models.BetEvent, error) {
	var events []*models.BetEvent
	err := r.db.WithContext(ctx).
		Where("market_id = ?", marketID).
		Order("created_at ASC").
		Limit(limit).
		Find(&events).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list bet events: %w", err)
	}
	return events, nil
}
