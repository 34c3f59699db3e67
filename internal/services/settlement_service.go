package services

import (
	"context"
	"fmt"
	"time"

	"prediction-settlement/internal/apperr"
	"prediction-settlement/internal/auth"
	"prediction-settlement/internal/blockchain"
	"prediction-settlement/internal/ledger"
	"prediction-settlement/internal/models"
	"prediction-settlement/internal/notify"
	"prediction-settlement/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// SettlementService runs the market lifecycle and the bet/escrow accounting.
// Each mutating operation is one database transaction: the market row is
// locked first, so operations on the same market never interleave.
type SettlementService struct {
	db            *gorm.DB
	repo          *repository.Repository
	ledger        *ledger.Ledger
	deriver       *blockchain.AccountDeriver
	publisher     notify.Publisher
	defaultFeeBps uint16
	logger        *zap.Logger
}

func NewSettlementService(
	db *gorm.DB,
	repo *repository.Repository,
	ledger *ledger.Ledger,
	deriver *blockchain.AccountDeriver,
	publisher notify.Publisher,
	defaultFeeBps uint16,
	logger *zap.Logger,
) (*SettlementService, error) {
	if defaultFeeBps > BasisPointsDenominator {
		return nil, apperr.ErrInvalidFee
	}
	if publisher == nil {
		publisher = notify.NopPublisher{}
	}
	return &SettlementService{
		db:            db,
		repo:          repo,
		ledger:        ledger,
		deriver:       deriver,
		publisher:     publisher,
		defaultFeeBps: defaultFeeBps,
		logger:        logger.Named("settlement"),
	}, nil
}

// CreateMarket opens a new market administered by admin.
func (s *SettlementService) CreateMarket(ctx context.Context, admin, marketID string) (*models.Market, error) {
	if !blockchain.ValidateWalletAddress(admin) {
		return nil, apperr.ErrUnauthorized
	}
	address, err := s.deriver.MarketAddress(marketID)
	if err != nil {
		return nil, apperr.ErrInvalidMarketID.WithDetail(err.Error())
	}

	market := &models.Market{
		MarketID:       marketID,
		Address:        address.String(),
		Admin:          admin,
		State:          models.MarketStateOpen,
		FeeBasisPoints: s.defaultFeeBps,
		CreatedAt:      time.Now(),
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		inserted, err := s.repo.WithTx(tx).InsertMarketIfAbsent(ctx, market)
		if err != nil {
			return err
		}
		if !inserted {
			return apperr.ErrDuplicateMarket
		}
		return s.ledger.OpenAccount(tx, market.Address, models.AccountKindEscrow)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("market created",
		zap.String("market_id", marketID),
		zap.String("address", market.Address),
		zap.String("admin", admin),
		zap.Uint16("fee_bps", market.FeeBasisPoints),
	)
	return market, nil
}

// ResolveMarket declares the winning outcome. Only the market admin may call
// it, and only once.
func (s *SettlementService) ResolveMarket(
	ctx context.Context,
	caller string,
	marketID string,
	winner models.Outcome,
) (*models.Market, error) {
	if !winner.Valid() {
		return nil, apperr.ErrInvalidOutcome
	}

	var market *models.Market
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		var err error
		market, err = repo.LockMarket(ctx, marketID)
		if err != nil {
			return err
		}
		if err := auth.RequireOwner(caller, market.Admin); err != nil {
			return err
		}
		if !market.IsOpen() {
			return apperr.ErrAlreadyResolved
		}

		now := time.Now()
		market.State = models.MarketStateResolved
		market.Winner = &winner
		market.ResolvedAt = &now
		return repo.MarkResolved(ctx, market)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("market resolved",
		zap.String("market_id", marketID),
		zap.Stringer("winner", winner),
		zap.Uint64("total_yes", market.TotalYes.Uint64()),
		zap.Uint64("total_no", market.TotalNo.Uint64()),
	)
	return market, nil
}

// PlaceBet stakes amount on vote. The stake moves from the caller's ledger
// account into the market escrow in the same transaction that records the bet
// and bumps the pool total.
func (s *SettlementService) PlaceBet(
	ctx context.Context,
	caller string,
	marketID string,
	vote models.Outcome,
	amount uint64,
) (*models.Bet, error) {
	if !vote.Valid() {
		return nil, apperr.ErrInvalidOutcome
	}
	if amount == 0 {
		return nil, apperr.ErrInvalidAmount
	}
	if !blockchain.ValidateWalletAddress(caller) {
		return nil, apperr.ErrUnauthorized
	}

	marketAddress, err := s.deriver.MarketAddress(marketID)
	if err != nil {
		// No market can exist under an id that cannot be derived.
		return nil, apperr.ErrMarketNotFound
	}
	betAddress, err := s.deriver.BetAddress(marketAddress, caller)
	if err != nil {
		return nil, apperr.ErrInvalidAccount.WithDetail(err.Error())
	}

	var (
		bet   *models.Bet
		event *models.BetEvent
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		market, err := repo.LockMarket(ctx, marketID)
		if err != nil {
			return err
		}
		if !market.IsOpen() {
			return apperr.ErrMarketClosed
		}

		now := time.Now()
		bet = &models.Bet{
			Address:   betAddress.String(),
			MarketID:  marketID,
			User:      caller,
			Amount:    models.Lamports(amount),
			Vote:      vote,
			CreatedAt: now,
		}
		inserted, err := repo.InsertBetIfAbsent(ctx, bet)
		if err != nil {
			return err
		}
		if !inserted {
			return apperr.ErrDuplicateBet
		}

		if _, err := s.ledger.Transfer(tx, caller, market.Address, amount, models.TransferKindStake, marketID); err != nil {
			return err
		}

		total, err := checkedAdd(market.PoolFor(vote), amount)
		if err != nil {
			return err
		}
		if vote == models.OutcomeYes {
			market.TotalYes = models.Lamports(total)
		} else {
			market.TotalNo = models.Lamports(total)
		}
		if err := repo.UpdateMarketTotals(ctx, market); err != nil {
			return err
		}

		event = &models.BetEvent{
			ID:          uuid.New(),
			MarketID:    marketID,
			User:        caller,
			Amount:      models.Lamports(amount),
			Vote:        vote,
			NewTotalYes: market.TotalYes,
			NewTotalNo:  market.TotalNo,
			CreatedAt:   now,
		}
		return repo.CreateBetEvent(ctx, event)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("bet placed",
		zap.String("market_id", marketID),
		zap.String("user", caller),
		zap.Stringer("vote", vote),
		zap.Uint64("amount", amount),
	)

	if err := s.publisher.PublishBetPlaced(ctx, event.Notification()); err != nil {
		s.logger.Warn("failed to publish bet_placed",
			zap.String("market_id", marketID),
			zap.Error(err),
		)
	}

	return bet, nil
}

// Claim settles the caller's bet on a resolved market.
func (s *SettlementService) Claim(ctx context.Context, caller, marketID string) (*models.ClaimResult, error) {
	var result *models.ClaimResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		market, err := repo.LockMarket(ctx, marketID)
		if err != nil {
			return err
		}
		if market.State != models.MarketStateResolved {
			return apperr.ErrMarketNotResolved
		}
		bet, err := repo.LockBet(ctx, marketID, caller)
		if err != nil {
			return err
		}

		result, err = s.settle(ctx, tx, caller, market, bet)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ClaimBet settles a bet on marketID addressed by its derived account address. Unlike
// Claim, the bet may belong to someone other than the caller, in which case
// the claim is rejected.
func (s *SettlementService) ClaimBet(ctx context.Context, caller, marketID, betAddress string) (*models.ClaimResult, error) {
	var result *models.ClaimResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		// Lock order matches Claim: market first, then bet.
		peek, err := repo.GetBetByAddress(ctx, betAddress)
		if err != nil {
			return err
		}
		if peek.MarketID != marketID {
			return apperr.ErrBetNotFound
		}
		market, err := repo.LockMarket(ctx, marketID)
		if err != nil {
			return err
		}
		if market.State != models.MarketStateResolved {
			return apperr.ErrMarketNotResolved
		}
		bet, err := repo.LockBetByAddress(ctx, betAddress)
		if err != nil {
			return err
		}

		result, err = s.settle(ctx, tx, caller, market, bet)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// settle runs the remaining claim checks and pays the bet out of escrow.
// The market must already be locked and resolved.
func (s *SettlementService) settle(
	ctx context.Context,
	tx *gorm.DB,
	caller string,
	market *models.Market,
	bet *models.Bet,
) (*models.ClaimResult, error) {
	if err := auth.RequireOwner(caller, bet.User); err != nil {
		return nil, err
	}
	if bet.Vote != *market.Winner {
		return nil, apperr.ErrYouLost
	}
	if bet.Claimed {
		return nil, apperr.ErrAlreadyClaimed
	}

	payout, err := ComputePayout(market, bet.Amount.Uint64())
	if err != nil {
		return nil, err
	}

	// A 100% fee leaves nothing to move; the bet is still settled.
	if payout > 0 {
		if _, err := s.ledger.Transfer(tx, market.Address, caller, payout, models.TransferKindPayout, market.MarketID); err != nil {
			return nil, fmt.Errorf("escrow payout for %s: %w", market.MarketID, err)
		}
	}

	now := time.Now()
	bet.Claimed = true
	bet.Payout = models.Lamports(payout)
	bet.ClaimedAt = &now
	if err := s.repo.WithTx(tx).MarkClaimed(ctx, bet); err != nil {
		return nil, err
	}

	s.logger.Info("bet claimed",
		zap.String("market_id", market.MarketID),
		zap.String("user", caller),
		zap.Uint64("amount", bet.Amount.Uint64()),
		zap.Uint64("payout", payout),
	)

	return &models.ClaimResult{
		Bet:       bet,
		Payout:    payout,
		PayoutSOL: LamportsToSOL(payout).String(),
	}, nil
}

// GetMarket retrieves a market by id
func (s *SettlementService) GetMarket(ctx context.Context, marketID string) (*models.Market, error) {
	return s.repo.GetMarket(ctx, marketID)
}

// ListMarkets retrieves markets, optionally filtered by state
func (s *SettlementService) ListMarkets(ctx context.Context, state models.MarketState, limit, offset int) ([]*models.Market, int64, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListMarkets(ctx, state, limit, offset)
}

// GetBet retrieves the bet of user on a market
func (s *SettlementService) GetBet(ctx context.Context, marketID, user string) (*models.Bet, error) {
	return s.repo.GetBet(ctx, marketID, user)
}

// ListUserBets retrieves the bets of a wallet, newest first
func (s *SettlementService) ListUserBets(ctx context.Context, user string, limit, offset int) ([]*models.Bet, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListUserBets(ctx, user, limit, offset)
}

// ListBetEvents retrieves the BetPlaced history of a market
func (s *SettlementService) ListBetEvents(ctx context.Context, marketID string, limit int) ([]*models.BetEvent, error) {
	if _, err := s.repo.GetMarket(ctx, marketID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.repo.ListBetEvents(ctx, marketID, limit)
}

// EscrowSummary reports what the market escrow holds against what it owes.
// Residue is the pool not yet paid out; once every winner has claimed it is
// the fee plus rounding dust.
func (s *SettlementService) EscrowSummary(ctx context.Context, marketID string) (*models.EscrowSummary, error) {
	market, err := s.repo.GetMarket(ctx, marketID)
	if err != nil {
		return nil, err
	}
	return s.escrowSummary(ctx, market)
}

func (s *SettlementService) escrowSummary(ctx context.Context, market *models.Market) (*models.EscrowSummary, error) {
	split, err := SplitPool(market.TotalYes.Uint64(), market.TotalNo.Uint64(), market.FeeBasisPoints)
	if err != nil {
		return nil, err
	}
	balance, err := s.ledger.Balance(ctx, market.Address)
	if err != nil {
		return nil, err
	}
	paid, err := s.ledger.SumByKind(ctx, models.TransferKindPayout, market.MarketID)
	if err != nil {
		return nil, err
	}

	summary := &models.EscrowSummary{
		MarketID:      market.MarketID,
		EscrowAddress: market.Address,
		Balance:       balance,
		TotalPool:     split.TotalPool,
		Fee:           split.Fee,
		Distributable: split.Distributable,
		PaidOut:       paid,
	}
	if market.State == models.MarketStateResolved && split.TotalPool >= paid {
		summary.Residue = split.TotalPool - paid
	}
	return summary, nil
}
