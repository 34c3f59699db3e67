package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"prediction-settlement/internal/services"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type fakeAuditor struct {
	calls    atomic.Int32
	findings []services.AuditFinding
	err      error
}

func (f *fakeAuditor) AuditAll(context.Context) ([]services.AuditFinding, int, error) {
	f.calls.Add(1)
	return f.findings, 3, f.err
}

func TestRunOnceLogsFindings(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	fake := &fakeAuditor{findings: []services.AuditFinding{
		{MarketID: "m1", Check: "total_yes", Expected: 10, Actual: 11},
	}}

	ea := NewEscrowAuditor(fake, time.Second, zap.New(core))
	if n := ea.RunOnce(context.Background()); n != 1 {
		t.Fatalf("RunOnce = %d, want 1", n)
	}

	violations := logs.FilterMessage("escrow invariant violated").All()
	if len(violations) != 1 {
		t.Fatalf("logged %d violations, want 1", len(violations))
	}
	if got := violations[0].ContextMap()["market_id"]; got != "m1" {
		t.Errorf("market_id field = %v", got)
	}
}

func TestRunOnceLogsErrors(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	fake := &fakeAuditor{err: errors.New("db gone")}

	ea := NewEscrowAuditor(fake, time.Second, zap.New(core))
	ea.RunOnce(context.Background())

	if logs.FilterMessage("escrow audit failed").Len() != 1 {
		t.Error("audit error was not logged")
	}
}

func TestStartAndStop(t *testing.T) {
	fake := &fakeAuditor{}
	ea := NewEscrowAuditor(fake, 10*time.Millisecond, zap.NewNop())

	done := make(chan struct{})
	go func() {
		ea.Start()
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for fake.calls.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("auditor never ran")
		case <-time.After(5 * time.Millisecond):
		}
	}

	ea.Stop()
	ea.Stop()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Start did not return after Stop")
	}
}
