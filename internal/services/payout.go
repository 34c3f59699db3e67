package services

import (
	"prediction-settlement/internal/apperr"
	"prediction-settlement/internal/models"

	"github.com/holiman/uint256"
)

// BasisPointsDenominator is 100% expressed in basis points.
const BasisPointsDenominator = 10000

// PoolSplit is the fee-adjusted breakdown of a market's total pool.
type PoolSplit struct {
	TotalPool     uint64
	Fee           uint64
	Distributable uint64
}

// SplitPool computes total pool, house fee and distributable value for the
// given side totals. All intermediates are 256-bit so only the final results
// need to fit in 64 bits.
func SplitPool(totalYes, totalNo uint64, feeBasisPoints uint16) (PoolSplit, error) {
	if feeBasisPoints > BasisPointsDenominator {
		return PoolSplit{}, apperr.ErrInvalidFee
	}

	total, overflow := new(uint256.Int).AddOverflow(uint256.NewInt(totalYes), uint256.NewInt(totalNo))
	if overflow || !total.IsUint64() {
		return PoolSplit{}, apperr.ErrOverflow.WithDetail("total pool exceeds 64 bits")
	}

	fee := new(uint256.Int).Mul(total, uint256.NewInt(uint64(feeBasisPoints)))
	fee.Div(fee, uint256.NewInt(BasisPointsDenominator))

	distributable := new(uint256.Int).Sub(total, fee)

	return PoolSplit{
		TotalPool:     total.Uint64(),
		Fee:           fee.Uint64(),
		Distributable: distributable.Uint64(),
	}, nil
}

// ComputePayout returns floor(amount * distributable / winningPool) for a
// winning bet on a resolved market.
func ComputePayout(market *models.Market, amount uint64) (uint64, error) {
	if market.Winner == nil {
		return 0, apperr.ErrMarketNotResolved
	}

	split, err := SplitPool(market.TotalYes.Uint64(), market.TotalNo.Uint64(), market.FeeBasisPoints)
	if err != nil {
		return 0, err
	}

	winningPool := market.PoolFor(*market.Winner)
	if winningPool == 0 {
		return 0, apperr.ErrDivisionByZero.WithDetail("winning pool is empty")
	}

	product, overflow := new(uint256.Int).MulOverflow(uint256.NewInt(amount), uint256.NewInt(split.Distributable))
	if overflow {
		return 0, apperr.ErrOverflow.WithDetail("stake times distributable")
	}

	payout := new(uint256.Int).Div(product, uint256.NewInt(winningPool))
	if !payout.IsUint64() {
		return 0, apperr.ErrOverflow.WithDetail("payout exceeds 64 bits")
	}

	return payout.Uint64(), nil
}

// checkedAdd adds two stake totals, failing closed on wrap-around.
func checkedAdd(a, b uint64) (uint64, error) {
	sum := a + b
	if sum < a {
		return 0, apperr.ErrOverflow.WithDetail("pool total exceeds 64 bits")
	}
	return sum, nil
}
