package jobs

import (
	"context"
	"sync"
	"time"

	"prediction-settlement/internal/services"

	"go.uber.org/zap"
)

// Auditor is the part of the settlement service the job needs.
type Auditor interface {
	AuditAll(ctx context.Context) ([]services.AuditFinding, int, error)
}

// EscrowAuditor periodically checks every market's pool totals and escrow
// balance against the committed bets. It never mutates state.
type EscrowAuditor struct {
	auditor  Auditor
	interval time.Duration
	logger   *zap.Logger
	stopChan chan struct{}
	stopOnce sync.Once
}

// NewEscrowAuditor creates a new escrow audit job
func NewEscrowAuditor(auditor Auditor, interval time.Duration, logger *zap.Logger) *EscrowAuditor {
	return &EscrowAuditor{
		auditor:  auditor,
		interval: interval,
		logger:   logger.Named("escrow_auditor"),
		stopChan: make(chan struct{}),
	}
}

// Start runs the audit loop until Stop is called
func (ea *EscrowAuditor) Start() {
	ea.logger.Info("starting escrow audit job", zap.Duration("interval", ea.interval))

	ticker := time.NewTicker(ea.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ea.RunOnce(context.Background())
		case <-ea.stopChan:
			ea.logger.Info("stopping escrow audit job")
			return
		}
	}
}

// Stop stops the audit loop
func (ea *EscrowAuditor) Stop() {
	ea.stopOnce.Do(func() { close(ea.stopChan) })
}

// RunOnce performs a single audit pass and returns the number of findings.
func (ea *EscrowAuditor) RunOnce(ctx context.Context) int {
	ctx, cancel := context.WithTimeout(ctx, ea.interval)
	defer cancel()

	findings, checked, err := ea.auditor.AuditAll(ctx)
	if err != nil {
		ea.logger.Error("escrow audit failed", zap.Int("markets_checked", checked), zap.Error(err))
	}

	for _, f := range findings {
		ea.logger.Error("escrow invariant violated",
			zap.String("market_id", f.MarketID),
			zap.String("check", f.Check),
			zap.Uint64("expected", f.Expected),
			zap.Uint64("actual", f.Actual),
		)
	}

	if len(findings) == 0 && err == nil {
		ea.logger.Debug("escrow audit clean", zap.Int("markets_checked", checked))
	}
	return len(findings)
}
