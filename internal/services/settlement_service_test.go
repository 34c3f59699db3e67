package services

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync"
	"testing"

	"prediction-settlement/internal/apperr"
	"prediction-settlement/internal/blockchain"
	"prediction-settlement/internal/database"
	"prediction-settlement/internal/ledger"
	"prediction-settlement/internal/models"
	"prediction-settlement/internal/repository"

	"github.com/gagliardetto/solana-go"
	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []models.BetPlaced
	err    error
}

func (p *recordingPublisher) PublishBetPlaced(_ context.Context, e models.BetPlaced) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, e)
	return nil
}

type testEnv struct {
	svc    *SettlementService
	ledger *ledger.Ledger
	pub    *recordingPublisher
	admin  string
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Discard,
	})
	if err != nil {
		t.Fatalf("failed to connect database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql handle: %v", err)
	}
	// One connection keeps the in-memory database shared and serializes writers.
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := database.Migrate(db); err != nil {
		t.Fatalf("failed to migrate database: %v", err)
	}
	return db
}

func newTestEnv(t *testing.T, feeBps uint16) *testEnv {
	t.Helper()
	db := setupTestDB(t)

	deriver, err := blockchain.NewAccountDeriver(blockchain.DefaultProgramID)
	if err != nil {
		t.Fatalf("NewAccountDeriver: %v", err)
	}
	l := ledger.New(db, zap.NewNop())
	pub := &recordingPublisher{}

	svc, err := NewSettlementService(db, repository.NewRepository(db), l, deriver, pub, feeBps, zap.NewNop())
	if err != nil {
		t.Fatalf("NewSettlementService: %v", err)
	}
	return &testEnv{svc: svc, ledger: l, pub: pub, admin: newWallet()}
}

func newWallet() string {
	return solana.NewWallet().PublicKey().String()
}

// funded returns a new wallet holding amount on the ledger.
func (e *testEnv) funded(t *testing.T, amount uint64) string {
	t.Helper()
	w := newWallet()
	if _, err := e.ledger.Deposit(context.Background(), w, amount, "test"); err != nil {
		t.Fatalf("Deposit: %v", err)
	}
	return w
}

func (e *testEnv) balance(t *testing.T, address string) uint64 {
	t.Helper()
	b, err := e.ledger.Balance(context.Background(), address)
	if err != nil {
		t.Fatalf("Balance: %v", err)
	}
	return b
}

func (e *testEnv) bet(t *testing.T, user, marketID string, vote models.Outcome, amount uint64) {
	t.Helper()
	if _, err := e.svc.PlaceBet(context.Background(), user, marketID, vote, amount); err != nil {
		t.Fatalf("PlaceBet(%s, %d): %v", vote, amount, err)
	}
}

func TestCreateMarket(t *testing.T) {
	env := newTestEnv(t, 200)
	ctx := context.Background()

	market, err := env.svc.CreateMarket(ctx, env.admin, "btc-100k")
	if err != nil {
		t.Fatalf("CreateMarket: %v", err)
	}
	if market.State != models.MarketStateOpen || market.Winner != nil {
		t.Errorf("new market state=%s winner=%v", market.State, market.Winner)
	}
	if market.TotalYes != 0 || market.TotalNo != 0 {
		t.Errorf("new market totals %d/%d", market.TotalYes, market.TotalNo)
	}
	if market.FeeBasisPoints != 200 {
		t.Errorf("fee = %d, want 200", market.FeeBasisPoints)
	}

	stored, err := env.svc.GetMarket(ctx, "btc-100k")
	if err != nil {
		t.Fatalf("GetMarket: %v", err)
	}
	if stored.Address != market.Address || stored.Admin != env.admin {
		t.Errorf("stored market = %+v", stored)
	}

	if _, err := env.svc.CreateMarket(ctx, newWallet(), "btc-100k"); !errors.Is(err, apperr.ErrDuplicateMarket) {
		t.Errorf("duplicate market: got %v", err)
	}
	if _, err := env.svc.CreateMarket(ctx, env.admin, strings.Repeat("x", 33)); !errors.Is(err, apperr.ErrInvalidMarketID) {
		t.Errorf("long id: got %v", err)
	}
	if _, err := env.svc.CreateMarket(ctx, env.admin, ""); !errors.Is(err, apperr.ErrInvalidMarketID) {
		t.Errorf("empty id: got %v", err)
	}

	markets, total, err := env.svc.ListMarkets(ctx, models.MarketStateOpen, 10, 0)
	if err != nil {
		t.Fatalf("ListMarkets: %v", err)
	}
	if total != 1 || len(markets) != 1 {
		t.Errorf("ListMarkets returned %d of %d", len(markets), total)
	}
}

func TestPlaceBetUpdatesTotalsAndEscrow(t *testing.T) {
	env := newTestEnv(t, 200)
	ctx := context.Background()
	market, err := env.svc.CreateMarket(ctx, env.admin, "m1")
	if err != nil {
		t.Fatalf("CreateMarket: %v", err)
	}

	alice := env.funded(t, 1000)
	bob := env.funded(t, 1000)
	carol := env.funded(t, 1000)

	env.bet(t, alice, "m1", models.OutcomeYes, 100)
	env.bet(t, bob, "m1", models.OutcomeYes, 600)
	env.bet(t, carol, "m1", models.OutcomeNo, 300)

	stored, err := env.svc.GetMarket(ctx, "m1")
	if err != nil {
		t.Fatalf("GetMarket: %v", err)
	}
	if stored.TotalYes != 700 || stored.TotalNo != 300 {
		t.Errorf("totals = %d/%d, want 700/300", stored.TotalYes, stored.TotalNo)
	}
	if got := env.balance(t, market.Address); got != 1000 {
		t.Errorf("escrow balance = %d, want 1000", got)
	}
	if got := env.balance(t, bob); got != 400 {
		t.Errorf("bob balance = %d, want 400", got)
	}

	bet, err := env.svc.GetBet(ctx, "m1", alice)
	if err != nil {
		t.Fatalf("GetBet: %v", err)
	}
	if bet.Amount != 100 || bet.Vote != models.OutcomeYes || bet.Claimed {
		t.Errorf("bet = %+v", bet)
	}

	events, err := env.svc.ListBetEvents(ctx, "m1", 0)
	if err != nil {
		t.Fatalf("ListBetEvents: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	last := events[len(events)-1]
	if last.NewTotalYes != 700 || last.NewTotalNo != 300 {
		t.Errorf("last event totals = %d/%d", last.NewTotalYes, last.NewTotalNo)
	}

	if len(env.pub.events) != 3 {
		t.Errorf("published %d notifications, want 3", len(env.pub.events))
	}
}

func TestPlaceBetRejections(t *testing.T) {
	env := newTestEnv(t, 200)
	ctx := context.Background()
	if _, err := env.svc.CreateMarket(ctx, env.admin, "m1"); err != nil {
		t.Fatalf("CreateMarket: %v", err)
	}
	alice := env.funded(t, 1000)

	env.bet(t, alice, "m1", models.OutcomeYes, 100)

	if _, err := env.svc.PlaceBet(ctx, alice, "m1", models.OutcomeNo, 5); !errors.Is(err, apperr.ErrDuplicateBet) {
		t.Errorf("second bet: got %v", err)
	}
	if got := env.balance(t, alice); got != 900 {
		t.Errorf("duplicate bet moved funds: balance %d", got)
	}

	if _, err := env.svc.PlaceBet(ctx, alice, "m1", models.Outcome(3), 5); !errors.Is(err, apperr.ErrInvalidOutcome) {
		t.Errorf("bad vote: got %v", err)
	}
	if _, err := env.svc.PlaceBet(ctx, alice, "m1", models.OutcomeYes, 0); !errors.Is(err, apperr.ErrInvalidAmount) {
		t.Errorf("zero amount: got %v", err)
	}
	if _, err := env.svc.PlaceBet(ctx, alice, "missing", models.OutcomeYes, 5); !errors.Is(err, apperr.ErrMarketNotFound) {
		t.Errorf("unknown market: got %v", err)
	}

	poor := env.funded(t, 10)
	if _, err := env.svc.PlaceBet(ctx, poor, "m1", models.OutcomeYes, 11); !errors.Is(err, apperr.ErrInsufficientFunds) {
		t.Errorf("overdraw: got %v", err)
	}
	if _, err := env.svc.GetBet(ctx, "m1", poor); !errors.Is(err, apperr.ErrBetNotFound) {
		t.Errorf("failed bet left a record behind: %v", err)
	}
	market, _ := env.svc.GetMarket(ctx, "m1")
	if market.TotalYes != 100 {
		t.Errorf("failed bet changed totals: %d", market.TotalYes)
	}

	if _, err := env.svc.ResolveMarket(ctx, env.admin, "m1", models.OutcomeYes); err != nil {
		t.Fatalf("ResolveMarket: %v", err)
	}
	late := env.funded(t, 100)
	if _, err := env.svc.PlaceBet(ctx, late, "m1", models.OutcomeYes, 10); !errors.Is(err, apperr.ErrMarketClosed) {
		t.Errorf("bet on resolved market: got %v", err)
	}
}

func TestResolveMarket(t *testing.T) {
	env := newTestEnv(t, 200)
	ctx := context.Background()
	if _, err := env.svc.CreateMarket(ctx, env.admin, "m1"); err != nil {
		t.Fatalf("CreateMarket: %v", err)
	}

	if _, err := env.svc.ResolveMarket(ctx, newWallet(), "m1", models.OutcomeYes); !errors.Is(err, apperr.ErrUnauthorized) {
		t.Errorf("non-admin resolve: got %v", err)
	}
	market, _ := env.svc.GetMarket(ctx, "m1")
	if market.State != models.MarketStateOpen {
		t.Fatalf("rejected resolve mutated state to %s", market.State)
	}

	if _, err := env.svc.ResolveMarket(ctx, env.admin, "m1", models.Outcome(0)); !errors.Is(err, apperr.ErrInvalidOutcome) {
		t.Errorf("invalid winner: got %v", err)
	}

	resolved, err := env.svc.ResolveMarket(ctx, env.admin, "m1", models.OutcomeNo)
	if err != nil {
		t.Fatalf("ResolveMarket: %v", err)
	}
	if resolved.State != models.MarketStateResolved || resolved.Winner == nil || *resolved.Winner != models.OutcomeNo {
		t.Errorf("resolved market = %+v", resolved)
	}

	if _, err := env.svc.ResolveMarket(ctx, env.admin, "m1", models.OutcomeYes); !errors.Is(err, apperr.ErrAlreadyResolved) {
		t.Errorf("second resolve: got %v", err)
	}
	market, _ = env.svc.GetMarket(ctx, "m1")
	if *market.Winner != models.OutcomeNo {
		t.Errorf("winner changed after resolution: %s", market.Winner)
	}

	if _, err := env.svc.ResolveMarket(ctx, env.admin, "missing", models.OutcomeYes); !errors.Is(err, apperr.ErrMarketNotFound) {
		t.Errorf("unknown market: got %v", err)
	}
}

func TestClaimPaysProportionalShare(t *testing.T) {
	env := newTestEnv(t, 200)
	ctx := context.Background()
	market, err := env.svc.CreateMarket(ctx, env.admin, "m1")
	if err != nil {
		t.Fatalf("CreateMarket: %v", err)
	}

	alice := env.funded(t, 100)
	bob := env.funded(t, 600)
	carol := env.funded(t, 300)
	env.bet(t, alice, "m1", models.OutcomeYes, 100)
	env.bet(t, bob, "m1", models.OutcomeYes, 600)
	env.bet(t, carol, "m1", models.OutcomeNo, 300)

	if _, err := env.svc.Claim(ctx, alice, "m1"); !errors.Is(err, apperr.ErrMarketNotResolved) {
		t.Errorf("claim before resolution: got %v", err)
	}

	if _, err := env.svc.ResolveMarket(ctx, env.admin, "m1", models.OutcomeYes); err != nil {
		t.Fatalf("ResolveMarket: %v", err)
	}

	res, err := env.svc.Claim(ctx, alice, "m1")
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	// floor(100 * 980 / 700)
	if res.Payout != 140 {
		t.Errorf("alice payout = %d, want 140", res.Payout)
	}
	if !res.Bet.Claimed {
		t.Error("claimed flag not set on result")
	}
	if got := env.balance(t, alice); got != 140 {
		t.Errorf("alice balance = %d, want 140", got)
	}

	if _, err := env.svc.Claim(ctx, alice, "m1"); !errors.Is(err, apperr.ErrAlreadyClaimed) {
		t.Errorf("repeat claim: got %v", err)
	}
	if got := env.balance(t, alice); got != 140 {
		t.Errorf("repeat claim paid again: balance %d", got)
	}

	if _, err := env.svc.Claim(ctx, carol, "m1"); !errors.Is(err, apperr.ErrYouLost) {
		t.Errorf("losing claim: got %v", err)
	}
	if _, err := env.svc.Claim(ctx, newWallet(), "m1"); !errors.Is(err, apperr.ErrBetNotFound) {
		t.Errorf("claim without bet: got %v", err)
	}

	res, err = env.svc.Claim(ctx, bob, "m1")
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if res.Payout != 840 {
		t.Errorf("bob payout = %d, want 840", res.Payout)
	}

	summary, err := env.svc.EscrowSummary(ctx, "m1")
	if err != nil {
		t.Fatalf("EscrowSummary: %v", err)
	}
	if summary.PaidOut != 980 || summary.Distributable != 980 || summary.Fee != 20 {
		t.Errorf("summary = %+v", summary)
	}
	if summary.Balance != 20 || summary.Residue != 20 {
		t.Errorf("escrow should keep the fee: %+v", summary)
	}
	if summary.EscrowAddress != market.Address {
		t.Errorf("escrow address = %s, want %s", summary.EscrowAddress, market.Address)
	}
}

func TestClaimWithoutFee(t *testing.T) {
	env := newTestEnv(t, 0)
	ctx := context.Background()
	if _, err := env.svc.CreateMarket(ctx, env.admin, "m1"); err != nil {
		t.Fatalf("CreateMarket: %v", err)
	}

	yes := env.funded(t, 50)
	no := env.funded(t, 50)
	env.bet(t, yes, "m1", models.OutcomeYes, 50)
	env.bet(t, no, "m1", models.OutcomeNo, 50)

	if _, err := env.svc.ResolveMarket(ctx, env.admin, "m1", models.OutcomeYes); err != nil {
		t.Fatalf("ResolveMarket: %v", err)
	}
	res, err := env.svc.Claim(ctx, yes, "m1")
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if res.Payout != 100 {
		t.Errorf("payout = %d, want 100", res.Payout)
	}
	if res.PayoutSOL != "0.0000001" {
		t.Errorf("payout SOL = %s", res.PayoutSOL)
	}
}

func TestClaimWithFullFeeSettlesWithoutTransfer(t *testing.T) {
	env := newTestEnv(t, 10000)
	ctx := context.Background()
	if _, err := env.svc.CreateMarket(ctx, env.admin, "m1"); err != nil {
		t.Fatalf("CreateMarket: %v", err)
	}
	yes := env.funded(t, 10)
	env.bet(t, yes, "m1", models.OutcomeYes, 10)
	if _, err := env.svc.ResolveMarket(ctx, env.admin, "m1", models.OutcomeYes); err != nil {
		t.Fatalf("ResolveMarket: %v", err)
	}

	res, err := env.svc.Claim(ctx, yes, "m1")
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if res.Payout != 0 {
		t.Errorf("payout = %d, want 0", res.Payout)
	}
	if _, err := env.svc.Claim(ctx, yes, "m1"); !errors.Is(err, apperr.ErrAlreadyClaimed) {
		t.Errorf("repeat claim: got %v", err)
	}
}

func TestResolveToEmptySideLeavesPoolInEscrow(t *testing.T) {
	env := newTestEnv(t, 200)
	ctx := context.Background()
	market, err := env.svc.CreateMarket(ctx, env.admin, "m1")
	if err != nil {
		t.Fatalf("CreateMarket: %v", err)
	}
	yes := env.funded(t, 100)
	env.bet(t, yes, "m1", models.OutcomeYes, 100)

	if _, err := env.svc.ResolveMarket(ctx, env.admin, "m1", models.OutcomeNo); err != nil {
		t.Fatalf("ResolveMarket: %v", err)
	}
	if _, err := env.svc.Claim(ctx, yes, "m1"); !errors.Is(err, apperr.ErrYouLost) {
		t.Errorf("claim on losing side: got %v", err)
	}
	if got := env.balance(t, market.Address); got != 100 {
		t.Errorf("escrow = %d, want 100", got)
	}
}

func TestClaimBetRejectsOtherCaller(t *testing.T) {
	env := newTestEnv(t, 200)
	ctx := context.Background()
	if _, err := env.svc.CreateMarket(ctx, env.admin, "m1"); err != nil {
		t.Fatalf("CreateMarket: %v", err)
	}
	alice := env.funded(t, 100)
	mallory := env.funded(t, 100)
	env.bet(t, alice, "m1", models.OutcomeYes, 100)
	env.bet(t, mallory, "m1", models.OutcomeYes, 100)

	bet, err := env.svc.GetBet(ctx, "m1", alice)
	if err != nil {
		t.Fatalf("GetBet: %v", err)
	}

	if _, err := env.svc.ClaimBet(ctx, mallory, "m1", bet.Address); !errors.Is(err, apperr.ErrMarketNotResolved) {
		t.Errorf("claim before resolution: got %v", err)
	}
	if _, err := env.svc.ResolveMarket(ctx, env.admin, "m1", models.OutcomeYes); err != nil {
		t.Fatalf("ResolveMarket: %v", err)
	}
	if _, err := env.svc.ClaimBet(ctx, mallory, "m1", bet.Address); !errors.Is(err, apperr.ErrUnauthorized) {
		t.Errorf("foreign claim: got %v", err)
	}
	if _, err := env.svc.ClaimBet(ctx, mallory, "m1", "unknown"); !errors.Is(err, apperr.ErrBetNotFound) {
		t.Errorf("unknown bet: got %v", err)
	}
	if _, err := env.svc.ClaimBet(ctx, alice, "other", bet.Address); !errors.Is(err, apperr.ErrBetNotFound) {
		t.Errorf("bet under another market: got %v", err)
	}

	res, err := env.svc.ClaimBet(ctx, alice, "m1", bet.Address)
	if err != nil {
		t.Fatalf("ClaimBet: %v", err)
	}
	// floor(100 * 196 / 200)
	if res.Payout != 98 {
		t.Errorf("payout = %d, want 98", res.Payout)
	}
}

func TestPoolTotalOverflowFailsClosed(t *testing.T) {
	env := newTestEnv(t, 0)
	ctx := context.Background()
	market, err := env.svc.CreateMarket(ctx, env.admin, "m1")
	if err != nil {
		t.Fatalf("CreateMarket: %v", err)
	}
	whale := env.funded(t, math.MaxUint64)
	env.bet(t, whale, "m1", models.OutcomeYes, math.MaxUint64)

	stored, err := env.svc.GetMarket(ctx, "m1")
	if err != nil {
		t.Fatalf("GetMarket: %v", err)
	}
	if stored.TotalYes.Uint64() != math.MaxUint64 {
		t.Fatalf("total_yes = %d, want %d", stored.TotalYes, uint64(math.MaxUint64))
	}

	// The escrow credit is the first sum to wrap.
	minnow := env.funded(t, 2)
	if _, err := env.svc.PlaceBet(ctx, minnow, "m1", models.OutcomeYes, 1); !errors.Is(err, apperr.ErrOverflow) {
		t.Fatalf("wrapping bet: got %v, want ErrOverflow", err)
	}

	// With the escrow drained out of band the pool total itself must refuse to wrap.
	if err := env.svc.db.Model(&models.LedgerAccount{}).
		Where("address = ?", market.Address).
		Update("balance", models.Lamports(0)).Error; err != nil {
		t.Fatalf("drain escrow: %v", err)
	}
	if _, err := env.svc.PlaceBet(ctx, minnow, "m1", models.OutcomeYes, 1); !errors.Is(err, apperr.ErrOverflow) {
		t.Fatalf("wrapping pool total: got %v, want ErrOverflow", err)
	}

	if got := env.balance(t, minnow); got != 2 {
		t.Errorf("failed bets moved funds: balance %d, want 2", got)
	}
	if _, err := env.svc.GetBet(ctx, "m1", minnow); !errors.Is(err, apperr.ErrBetNotFound) {
		t.Errorf("failed bet was recorded: %v", err)
	}
	stored, _ = env.svc.GetMarket(ctx, "m1")
	if stored.TotalYes.Uint64() != math.MaxUint64 || stored.TotalNo != 0 {
		t.Errorf("totals changed: %d/%d", stored.TotalYes, stored.TotalNo)
	}
}

func TestPublishFailureDoesNotFailBet(t *testing.T) {
	env := newTestEnv(t, 200)
	env.pub.err = errors.New("redis down")
	ctx := context.Background()
	if _, err := env.svc.CreateMarket(ctx, env.admin, "m1"); err != nil {
		t.Fatalf("CreateMarket: %v", err)
	}
	alice := env.funded(t, 100)

	if _, err := env.svc.PlaceBet(ctx, alice, "m1", models.OutcomeYes, 100); err != nil {
		t.Fatalf("PlaceBet should succeed when publishing fails: %v", err)
	}
	market, _ := env.svc.GetMarket(ctx, "m1")
	if market.TotalYes != 100 {
		t.Errorf("totals = %d", market.TotalYes)
	}
}

func TestConcurrentBetsKeepTotalsConsistent(t *testing.T) {
	env := newTestEnv(t, 200)
	ctx := context.Background()
	market, err := env.svc.CreateMarket(ctx, env.admin, "m1")
	if err != nil {
		t.Fatalf("CreateMarket: %v", err)
	}

	const bettors = 20
	wallets := make([]string, bettors)
	for i := range wallets {
		wallets[i] = env.funded(t, 1000)
	}

	var wg sync.WaitGroup
	errs := make(chan error, bettors*2)
	for i, w := range wallets {
		vote := models.OutcomeYes
		if i%2 == 1 {
			vote = models.OutcomeNo
		}
		// Each wallet races itself: exactly one of the two bets may land.
		for j := 0; j < 2; j++ {
			wg.Add(1)
			go func(w string, vote models.Outcome, amount uint64) {
				defer wg.Done()
				_, err := env.svc.PlaceBet(ctx, w, "m1", vote, amount)
				errs <- err
			}(w, vote, uint64(10+j))
		}
	}
	wg.Wait()
	close(errs)

	var ok, dup int
	for err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, apperr.ErrDuplicateBet):
			dup++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if ok != bettors || dup != bettors {
		t.Fatalf("ok=%d dup=%d, want %d each", ok, dup, bettors)
	}

	stored, err := env.svc.GetMarket(ctx, "m1")
	if err != nil {
		t.Fatalf("GetMarket: %v", err)
	}
	var yes, no uint64
	for _, w := range wallets {
		bet, err := env.svc.GetBet(ctx, "m1", w)
		if err != nil {
			t.Fatalf("GetBet: %v", err)
		}
		if bet.Vote == models.OutcomeYes {
			yes += bet.Amount.Uint64()
		} else {
			no += bet.Amount.Uint64()
		}
	}
	if stored.TotalYes.Uint64() != yes || stored.TotalNo.Uint64() != no {
		t.Errorf("totals %d/%d do not match bets %d/%d", stored.TotalYes, stored.TotalNo, yes, no)
	}
	if got := env.balance(t, market.Address); got != yes+no {
		t.Errorf("escrow %d, want %d", got, yes+no)
	}
}
