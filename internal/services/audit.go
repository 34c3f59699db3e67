package services

import (
	"context"
	"fmt"

	"prediction-settlement/internal/models"
)

// AuditFinding is one broken accounting invariant on a market.
type AuditFinding struct {
	MarketID string `json:"market_id"`
	Check    string `json:"check"`
	Expected uint64 `json:"expected"`
	Actual   uint64 `json:"actual"`
}

func (f AuditFinding) String() string {
	return fmt.Sprintf("%s: %s expected %d, got %d", f.MarketID, f.Check, f.Expected, f.Actual)
}

const auditPageSize = 100

// AuditMarket recomputes a market's totals from its bets and checks them
// against the stored totals, the escrow balance and the payout journal.
// It only reads.
func (s *SettlementService) AuditMarket(ctx context.Context, market *models.Market) ([]AuditFinding, error) {
	bets, err := s.repo.ListBets(ctx, market.MarketID)
	if err != nil {
		return nil, err
	}

	var yes, no, claimedPayouts uint64
	for _, bet := range bets {
		if bet.Vote == models.OutcomeYes {
			yes += bet.Amount.Uint64()
		} else {
			no += bet.Amount.Uint64()
		}
		if bet.Claimed {
			claimedPayouts += bet.Payout.Uint64()
		}
	}

	summary, err := s.escrowSummary(ctx, market)
	if err != nil {
		return nil, err
	}

	var findings []AuditFinding
	check := func(name string, expected, actual uint64) {
		if expected != actual {
			findings = append(findings, AuditFinding{
				MarketID: market.MarketID,
				Check:    name,
				Expected: expected,
				Actual:   actual,
			})
		}
	}

	check("total_yes", yes, market.TotalYes.Uint64())
	check("total_no", no, market.TotalNo.Uint64())
	check("paid_out", claimedPayouts, summary.PaidOut)
	if summary.TotalPool >= summary.PaidOut {
		check("escrow_balance", summary.TotalPool-summary.PaidOut, summary.Balance)
	} else {
		check("escrow_balance", 0, summary.Balance)
	}
	if summary.PaidOut > summary.Distributable {
		findings = append(findings, AuditFinding{
			MarketID: market.MarketID,
			Check:    "paid_out_within_distributable",
			Expected: summary.Distributable,
			Actual:   summary.PaidOut,
		})
	}

	return findings, nil
}

// AuditAll audits every market and returns the findings together with the
// number of markets checked.
func (s *SettlementService) AuditAll(ctx context.Context) ([]AuditFinding, int, error) {
	var (
		findings []AuditFinding
		checked  int
	)
	for offset := 0; ; offset += auditPageSize {
		markets, _, err := s.repo.ListMarkets(ctx, "", auditPageSize, offset)
		if err != nil {
			return findings, checked, err
		}
		for _, market := range markets {
			if err := ctx.Err(); err != nil {
				return findings, checked, err
			}
			f, err := s.AuditMarket(ctx, market)
			if err != nil {
				return findings, checked, fmt.Errorf("audit %s: %w", market.MarketID, err)
			}
			findings = append(findings, f...)
			checked++
		}
		if len(markets) < auditPageSize {
			return findings, checked, nil
		}
	}
}
