package services

import (
	"testing"

	"prediction-settlement/internal/models"
)

func TestLamportsToSOL(t *testing.T) {
	cases := map[uint64]string{
		0:              "0",
		1:              "0.000000001",
		1_500_000_000:  "1.5",
		LamportsPerSOL: "1",
	}
	for lamports, want := range cases {
		if got := LamportsToSOL(lamports).String(); got != want {
			t.Errorf("LamportsToSOL(%d) = %s, want %s", lamports, got, want)
		}
	}
}

func TestImpliedProbability(t *testing.T) {
	if got := ImpliedProbability(models.OutcomeYes, 0, 0).StringFixed(2); got != "50.00" {
		t.Errorf("empty pool = %s, want 50.00", got)
	}
	if got := ImpliedProbability(models.OutcomeYes, 700, 300).StringFixed(2); got != "70.00" {
		t.Errorf("yes = %s, want 70.00", got)
	}
	if got := ImpliedProbability(models.OutcomeNo, 1, 2).StringFixed(2); got != "66.67" {
		t.Errorf("no = %s, want 66.67", got)
	}
}

func TestBuildQuote(t *testing.T) {
	market := &models.Market{
		MarketID:       "m1",
		TotalYes:       700,
		TotalNo:        300,
		FeeBasisPoints: 200,
	}

	q, err := BuildQuote(market)
	if err != nil {
		t.Fatalf("BuildQuote: %v", err)
	}
	// 980 / 700
	if q.YesPayoutMultiplier != "1.4000" {
		t.Errorf("yes multiplier = %s, want 1.4000", q.YesPayoutMultiplier)
	}
	// 980 / 300
	if q.NoPayoutMultiplier != "3.2667" {
		t.Errorf("no multiplier = %s, want 3.2667", q.NoPayoutMultiplier)
	}
	if q.YesProbabilityPct != "70.00" || q.NoProbabilityPct != "30.00" {
		t.Errorf("probabilities = %s / %s", q.YesProbabilityPct, q.NoProbabilityPct)
	}
	if q.TotalPoolSOL != "0.000001" {
		t.Errorf("total pool = %s", q.TotalPoolSOL)
	}

	empty, err := BuildQuote(&models.Market{MarketID: "m2", FeeBasisPoints: 200})
	if err != nil {
		t.Fatalf("BuildQuote: %v", err)
	}
	if empty.YesPayoutMultiplier != "0.0000" || empty.YesProbabilityPct != "50.00" {
		t.Errorf("empty quote = %+v", empty)
	}
}
