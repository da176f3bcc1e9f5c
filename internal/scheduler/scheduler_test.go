package scheduler

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"YieldFlow/internal/claim"
	"YieldFlow/internal/logger"
	"YieldFlow/internal/model"
	"YieldFlow/internal/notifier"
	"YieldFlow/internal/position"
	"YieldFlow/internal/rate"
	"YieldFlow/internal/recorder"
	"YieldFlow/internal/transfer"
)

const tenUnits = 10 * model.Precision

type captureNotifier struct {
	mu   sync.Mutex
	sent []string
}

func (c *captureNotifier) Notify(_ context.Context, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, text)
	return nil
}

func (c *captureNotifier) messages() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.sent...)
}

type fixture struct {
	sched  *Scheduler
	mgr    *position.Manager
	rates  *rate.MockSource
	clock  *clockwork.FakeClock
	ledger *transfer.Ledger
	escrow solana.PublicKey
	sent   *captureNotifier
	rec    *recorder.SQLiteRecorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := logger.Discard()
	dir := t.TempDir()

	store, err := position.NewFileStore(filepath.Join(dir, "positions.json"))
	require.NoError(t, err)
	rec, err := recorder.NewSQLiteRecorder(log, filepath.Join(dir, "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = rec.Close() })

	escrow := solana.NewWallet().PublicKey()
	ledger := transfer.NewLedger(log, escrow, 1_000*model.Precision)
	orch, err := claim.New(claim.Config{Escrow: escrow}, ledger)
	require.NoError(t, err)

	rates := rate.NewMockSource(model.Precision)
	clock := clockwork.NewFakeClockAt(time.Date(2024, 1, 3, 12, 0, 0, 0, time.UTC))
	mgr, err := position.NewManager(position.Config{
		Logger:   log,
		Store:    store,
		Rates:    rates,
		Claims:   orch,
		Recorder: rec,
		Clock:    clock,
	})
	require.NoError(t, err)

	sent := &captureNotifier{}
	sched := NewScheduler(Config{
		Logger:           log,
		Manager:          mgr,
		Rates:            rates,
		Notifier:         sent,
		Recorder:         rec,
		NearThresholdPct: 90,
		Projection:       notifier.Projection{RateBps: 10, Periods: 4, Label: "4 epochs"},
	})
	return &fixture{sched: sched, mgr: mgr, rates: rates, clock: clock, ledger: ledger, escrow: escrow, sent: sent, rec: rec}
}

func (f *fixture) open(t *testing.T, params *position.ScheduleParams) solana.PublicKey {
	t.Helper()
	owner := solana.NewWallet().PublicKey()
	_, err := f.mgr.Open(context.Background(), owner, tenUnits)
	require.NoError(t, err)
	if params != nil {
		_, err = f.mgr.SetSchedule(context.Background(), owner, *params)
		require.NoError(t, err)
	}
	return owner
}

func TestSweepPaysOnlyDuePositions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	due := f.open(t, &position.ScheduleParams{Schedule: model.Daily(), AutoClaim: true})
	manualOnly := f.open(t, &position.ScheduleParams{Schedule: model.Daily(), AutoClaim: false})
	near := f.open(t, &position.ScheduleParams{Schedule: model.Daily(), AutoClaim: true, MinAmount: 1_050_000_000})
	disabled := f.open(t, nil)

	f.rates.Set(1_100_000_000)
	f.clock.Advance(24 * time.Hour)

	report, err := f.sched.Sweep(ctx)
	require.NoError(t, err)
	require.Equal(t, 4, report.Positions)
	require.Equal(t, 1, report.Due)
	require.Equal(t, 1, report.Paid)
	require.Equal(t, 1, report.NearThreshold)
	require.Zero(t, report.Failed)
	require.Equal(t, uint64(model.Precision), report.AmountPaid)

	require.Equal(t, uint64(model.Precision), f.ledger.Balance(due))
	for _, owner := range []solana.PublicKey{manualOnly, near, disabled} {
		require.Zero(t, f.ledger.Balance(owner))
	}
	require.Len(t, f.sent.messages(), 1)

	// A second sweep at the same instant pays nothing.
	report, err = f.sched.Sweep(ctx)
	require.NoError(t, err)
	require.Zero(t, report.Paid)
	require.Len(t, f.sent.messages(), 1)
}

func TestSweepReportsTransferFailures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.open(t, &position.ScheduleParams{Schedule: model.Custom(60), AutoClaim: true})

	// Empty the escrow so the payout cannot be funded.
	require.NoError(t, f.ledger.Transfer(ctx, f.escrow, solana.NewWallet().PublicKey(), 1_000*model.Precision))
	f.rates.Set(1_100_000_000)
	f.clock.Advance(time.Minute)

	report, err := f.sched.Sweep(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, report.Due)
	require.Equal(t, 1, report.Failed)
	require.Len(t, report.FailureSamples, 1)
	require.Contains(t, f.sent.messages()[0], "Failed: 1")

	pos, err := f.mgr.Get(owner)
	require.NoError(t, err)
	require.Equal(t, model.Precision, pos.BaseRate)
}

func TestSweepFailsWhenRateUnavailable(t *testing.T) {
	f := newFixture(t)
	f.rates.Fail(context.DeadlineExceeded)
	_, err := f.sched.Sweep(context.Background())
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestHandleCommand(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.open(t, nil)
	f.rates.Set(1_100_000_000)

	reply := f.sched.HandleCommand(ctx, "/position "+owner.String())
	require.Contains(t, reply, "Owed now: 1.000000000")
	require.Contains(t, reply, "Projected yield (4 epochs")

	reply = f.sched.HandleCommand(ctx, "/claim "+owner.String())
	require.Contains(t, reply, "Payout")
	require.Contains(t, reply, "1.000000000")

	reply = f.sched.HandleCommand(ctx, "/claim "+owner.String())
	require.Contains(t, reply, "no dividend to claim")

	reply = f.sched.HandleCommand(ctx, "/position "+solana.NewWallet().PublicKey().String())
	require.Equal(t, "No position for that owner.", reply)

	require.Contains(t, f.sched.HandleCommand(ctx, "/position nope"), "invalid owner")
	require.Contains(t, f.sched.HandleCommand(ctx, "/claim"), "usage")
	require.Contains(t, f.sched.HandleCommand(ctx, "/sweep"), "Payout sweep")
	require.Equal(t, helpText, f.sched.HandleCommand(ctx, "hello"))
	require.Equal(t, helpText, f.sched.HandleCommand(ctx, "   "))
}

func TestHandleCommandManagesPositions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	key := solana.NewWallet().PublicKey()
	owner := key.String()

	reply := f.sched.HandleCommand(ctx, "/open "+owner+" 10")
	require.Contains(t, reply, "Position opened")
	require.Contains(t, reply, "Staked: 10.000000000")
	require.Contains(t, f.sched.HandleCommand(ctx, "/open "+owner+" 1"), "position already exists")

	reply = f.sched.HandleCommand(ctx, "/schedule "+owner+" daily on 0.5")
	require.Contains(t, reply, "Schedule set")
	require.Contains(t, reply, "auto: true | min: 0.500000000")
	require.Contains(t, reply, "2024-01-04 12:00 UTC")
	pos, err := f.mgr.Get(key)
	require.NoError(t, err)
	require.Equal(t, model.Daily(), pos.Schedule)
	require.True(t, pos.AutoClaimEnabled)
	require.Equal(t, uint64(500_000_000), pos.MinPayoutThreshold)

	require.Contains(t, f.sched.HandleCommand(ctx, "/schedule "+owner+" weekly:7 on"), "invalid weekday")
	require.Contains(t, f.sched.HandleCommand(ctx, "/schedule "+owner+" hourly on"), "unknown schedule")
	require.Contains(t, f.sched.HandleCommand(ctx, "/schedule "+owner+" daily maybe"), "auto claim must be on or off")
	require.Contains(t, f.sched.HandleCommand(ctx, "/schedule "+owner), "usage")

	reply = f.sched.HandleCommand(ctx, "/schedule "+owner+" custom:60 off 0")
	require.Contains(t, reply, "auto: false | min: 0.000000000")

	f.rates.Set(1_100_000_000)
	reply = f.sched.HandleCommand(ctx, "/deposit "+owner+" 2.5")
	require.Contains(t, reply, "Deposit")
	require.Contains(t, reply, "Staked: 12.500000000")
	require.Contains(t, reply, "Settled first: 1.000000000")
	require.Equal(t, uint64(model.Precision), f.ledger.Balance(key))

	require.Contains(t, f.sched.HandleCommand(ctx, "/deposit "+owner+" abc"), "invalid amount")
	require.Contains(t, f.sched.HandleCommand(ctx, "/deposit "+owner+" 0.0000000001"), "at most 9 decimals")
	require.Contains(t, f.sched.HandleCommand(ctx, "/deposit "+owner), "usage")
	require.Equal(t, "No position for that owner.",
		f.sched.HandleCommand(ctx, "/deposit "+solana.NewWallet().PublicKey().String()+" 1"))
}

func TestReportSummarisesHistory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.open(t, nil)
	f.rates.Set(1_100_000_000)
	_, err := f.mgr.Claim(ctx, owner, model.Forced)
	require.NoError(t, err)

	f.sched.report(ctx)
	msgs := f.sent.messages()
	require.Len(t, msgs, 1)
	require.Contains(t, msgs[0], "Payouts: 1 (1.000000000)")
	require.Contains(t, msgs[0], "Positions: 1")
}

func TestRegisterAllRejectsBadCron(t *testing.T) {
	f := newFixture(t)
	require.Error(t, f.sched.RegisterAll(context.Background(), "not a cron", "0 0 8 * * *"))
	require.NoError(t, f.sched.RegisterAll(context.Background(), "0 */5 * * * *", "0 0 8 * * *"))
}
