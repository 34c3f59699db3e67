package services

import (
	"context"
	"math/big"

	"prediction-settlement/internal/models"

	"github.com/shopspring/decimal"
)

// LamportsPerSOL is the number of base units in one SOL.
const LamportsPerSOL = 1_000_000_000

// LamportsToSOL converts a base-unit amount for display.
func LamportsToSOL(lamports uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(lamports), -9)
}

// ImpliedProbability is the share of the pool staked on o, in percent, rounded
// to two decimals. An empty pool reads as 50/50.
func ImpliedProbability(o models.Outcome, totalYes, totalNo uint64) decimal.Decimal {
	yes := decimal.NewFromBigInt(new(big.Int).SetUint64(totalYes), 0)
	no := decimal.NewFromBigInt(new(big.Int).SetUint64(totalNo), 0)
	total := yes.Add(no)
	if total.IsZero() {
		return decimal.NewFromInt(50)
	}

	pool := no
	if o == models.OutcomeYes {
		pool = yes
	}
	return pool.Div(total).Mul(decimal.NewFromInt(100)).Round(2)
}

// PayoutMultiplier is what one unit staked on o would return if o won with
// the current totals: distributable / winning pool. It is zero when nothing
// is staked on o.
func PayoutMultiplier(o models.Outcome, totalYes, totalNo uint64, feeBasisPoints uint16) (decimal.Decimal, error) {
	split, err := SplitPool(totalYes, totalNo, feeBasisPoints)
	if err != nil {
		return decimal.Zero, err
	}

	winning := totalNo
	if o == models.OutcomeYes {
		winning = totalYes
	}
	if winning == 0 || split.TotalPool == 0 {
		return decimal.Zero, nil
	}

	distributable := decimal.NewFromBigInt(new(big.Int).SetUint64(split.Distributable), 0)
	pool := decimal.NewFromBigInt(new(big.Int).SetUint64(winning), 0)
	return distributable.DivRound(pool, 4), nil
}

// Quote returns the live-odds view of a market. It is informational only;
// settlement always goes through ComputePayout.
func (s *SettlementService) Quote(ctx context.Context, marketID string) (*models.MarketQuote, error) {
	market, err := s.repo.GetMarket(ctx, marketID)
	if err != nil {
		return nil, err
	}
	return BuildQuote(market)
}

// BuildQuote computes the quote for a loaded market.
func BuildQuote(market *models.Market) (*models.MarketQuote, error) {
	totalYes, totalNo := market.TotalYes.Uint64(), market.TotalNo.Uint64()

	split, err := SplitPool(totalYes, totalNo, market.FeeBasisPoints)
	if err != nil {
		return nil, err
	}
	yesMult, err := PayoutMultiplier(models.OutcomeYes, totalYes, totalNo, market.FeeBasisPoints)
	if err != nil {
		return nil, err
	}
	noMult, err := PayoutMultiplier(models.OutcomeNo, totalYes, totalNo, market.FeeBasisPoints)
	if err != nil {
		return nil, err
	}

	return &models.MarketQuote{
		MarketID:            market.MarketID,
		TotalYes:            totalYes,
		TotalNo:             totalNo,
		TotalPoolSOL:        LamportsToSOL(split.TotalPool).String(),
		YesProbabilityPct:   ImpliedProbability(models.OutcomeYes, totalYes, totalNo).StringFixed(2),
		NoProbabilityPct:    ImpliedProbability(models.OutcomeNo, totalYes, totalNo).StringFixed(2),
		YesPayoutMultiplier: yesMult.StringFixed(4),
		NoPayoutMultiplier:  noMult.StringFixed(4),
		FeeBasisPoints:      market.FeeBasisPoints,
	}, nil
}
