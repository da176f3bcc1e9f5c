package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/robfig/cron/v3"

	"YieldFlow/internal/calculator"
	"YieldFlow/internal/claim"
	"YieldFlow/internal/errs"
	"YieldFlow/internal/metrics"
	"YieldFlow/internal/model"
	"YieldFlow/internal/notifier"
	"YieldFlow/internal/position"
	"YieldFlow/internal/rate"
	"YieldFlow/internal/recorder"
	"YieldFlow/internal/schedule"
)

const maxFailureSamples = 5

type Config struct {
	Logger           *slog.Logger
	Manager          *position.Manager
	Rates            rate.Source
	Notifier         notifier.Notifier
	Recorder         recorder.Recorder
	NearThresholdPct uint64
	Projection       notifier.Projection
}

// Scheduler runs the automatic payout sweep and the periodic report on cron,
// and answers operator commands.
type Scheduler struct {
	Cron *cron.Cron
	log  *slog.Logger
	cfg  Config

	sweepMu    sync.Mutex
	lastReport int64
}

func NewScheduler(cfg Config) *Scheduler {
	if cfg.Recorder == nil {
		cfg.Recorder = recorder.NewNoopRecorder()
	}
	if cfg.Notifier == nil {
		cfg.Notifier = notifier.LogNotifier{Log: cfg.Logger}
	}
	return &Scheduler{
		Cron: cron.New(cron.WithSeconds()),
		log:  cfg.Logger,
		cfg:  cfg,
	}
}

// RegisterAll registers the sweep and report jobs.
func (s *Scheduler) RegisterAll(ctx context.Context, sweepCron, reportCron string) error {
	if _, err := s.Cron.AddFunc(sweepCron, func() {
		if _, err := s.Sweep(ctx); err != nil {
			s.log.Error("sweep failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("register sweep task: %w", err)
	}
	if _, err := s.Cron.AddFunc(reportCron, func() { s.report(ctx) }); err != nil {
		return fmt.Errorf("register report task: %w", err)
	}
	return nil
}

func (s *Scheduler) Start() {
	s.Cron.Start()
	s.log.Info("scheduler started")
}

// Stop stops the cron scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	s.log.Info("scheduler stopped")
}

// Sweep pays every position whose automatic payout is due at the live rate.
// Overlapping sweeps are skipped rather than queued.
func (s *Scheduler) Sweep(ctx context.Context) (notifier.SweepReport, error) {
	if !s.sweepMu.TryLock() {
		s.log.Warn("sweep already running, skipping")
		return notifier.SweepReport{}, nil
	}
	defer s.sweepMu.Unlock()

	start := time.Now()
	defer func() { metrics.SweepDuration.Observe(time.Since(start).Seconds()) }()

	current, err := rate.Observe(ctx, s.cfg.Rates)
	if err != nil {
		return notifier.SweepReport{}, fmt.Errorf("read rate: %w", err)
	}
	positions, err := s.cfg.Manager.List()
	if err != nil {
		return notifier.SweepReport{}, fmt.Errorf("list positions: %w", err)
	}

	now := s.cfg.Manager.Now()
	report := notifier.SweepReport{At: now, Rate: current, Positions: len(positions)}
	for i := range positions {
		pos := &positions[i]
		owed, err := claim.Owed(pos, current)
		if err != nil {
			s.fail(&report, pos.Owner, err)
			continue
		}
		if s.nearThreshold(pos, owed) {
			report.NearThreshold++
		}
		if !schedule.ShouldPayout(pos, owed, now) {
			continue
		}
		report.Due++

		out, err := s.cfg.Manager.Claim(ctx, pos.Owner, model.Automatic)
		switch {
		case errs.IsExpected(err):
			// The rate or the position moved between the snapshot and the claim.
			report.Rejected++
		case err != nil:
			s.fail(&report, pos.Owner, err)
		case out.Noop:
		default:
			report.Paid++
			report.AmountPaid += out.AmountPaid
			report.Fees += out.Fee
		}
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
	}
	metrics.PositionsNearThreshold.Set(float64(report.NearThreshold))

	s.log.Info("sweep done",
		"positions", report.Positions,
		"due", report.Due,
		"paid", report.Paid,
		"rejected", report.Rejected,
		"failed", report.Failed,
	)
	if report.Paid > 0 || report.Failed > 0 {
		s.trySend(ctx, notifier.FormatSweepReport(report))
	}
	return report, nil
}

// nearThreshold reports an auto-claim position that has not reached its
// minimum yet but is within NearThresholdPct of it.
func (s *Scheduler) nearThreshold(pos *model.StakePosition, owed uint64) bool {
	if s.cfg.NearThresholdPct == 0 || !pos.AutoClaimEnabled || pos.MinPayoutThreshold == 0 || owed >= pos.MinPayoutThreshold {
		return false
	}
	floor, err := calculator.CalculatePercentage(pos.MinPayoutThreshold, s.cfg.NearThresholdPct)
	if err != nil {
		return false
	}
	return owed >= floor
}

func (s *Scheduler) fail(report *notifier.SweepReport, owner solana.PublicKey, err error) {
	report.Failed++
	s.log.Error("sweep claim failed", "owner", owner.String(), "error", err)
	if len(report.FailureSamples) < maxFailureSamples {
		report.FailureSamples = append(report.FailureSamples, fmt.Sprintf("%s: %v", owner, err))
	}
}

func (s *Scheduler) report(ctx context.Context) {
	s.log.Info("running report task")
	since := s.lastReport
	now := s.cfg.Manager.Now()
	if since == 0 {
		since = now - schedule.SecondsPerDay
	}

	summary, err := s.cfg.Recorder.Summarize(since)
	if err != nil {
		s.log.Error("summarize history", "error", err)
		return
	}
	positions, err := s.cfg.Manager.List()
	if err != nil {
		s.log.Error("list positions", "error", err)
		return
	}
	s.lastReport = now
	s.trySend(ctx, notifier.FormatDailyReport(since, summary, len(positions)))
}

// HandleCommand processes an operator command and returns a reply.
func (s *Scheduler) HandleCommand(ctx context.Context, command string) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return helpText
	}

	switch fields[0] {
	case "/position":
		owner, err := ownerArg(fields)
		if err != nil {
			return err.Error()
		}
		v, err := s.cfg.Manager.Inspect(ctx, owner)
		if err != nil {
			return describe(err)
		}
		return notifier.FormatPosition(v, s.cfg.Projection)
	case "/claim":
		owner, err := ownerArg(fields)
		if err != nil {
			return err.Error()
		}
		out, err := s.cfg.Manager.Claim(ctx, owner, model.Forced)
		if err != nil {
			return describe(err)
		}
		return notifier.FormatPayout(owner, out)
	case "/open", "/deposit":
		owner, amount, err := stakeArgs(fields)
		if err != nil {
			return err.Error()
		}
		if fields[0] == "/open" {
			pos, err := s.cfg.Manager.Open(ctx, owner, amount)
			if err != nil {
				return describe(err)
			}
			return notifier.FormatStake("Position opened", pos, nil)
		}
		res, err := s.cfg.Manager.Deposit(ctx, owner, amount)
		if err != nil {
			return describe(err)
		}
		return notifier.FormatStake("Deposit", res.Position, res.Settlement)
	case "/schedule":
		owner, params, err := scheduleArgs(fields)
		if err != nil {
			return err.Error()
		}
		pos, err := s.cfg.Manager.SetSchedule(ctx, owner, params)
		if err != nil {
			return describe(err)
		}
		return notifier.FormatSchedule(pos)
	case "/sweep":
		report, err := s.Sweep(ctx)
		if err != nil {
			return describe(err)
		}
		return notifier.FormatSweepReport(report)
	default:
		return helpText
	}
}

const helpText = "Commands:\n" +
	"• /position &lt;owner&gt;\n" +
	"• /claim &lt;owner&gt;\n" +
	"• /open &lt;owner&gt; &lt;amount&gt;\n" +
	"• /deposit &lt;owner&gt; &lt;amount&gt;\n" +
	"• /schedule &lt;owner&gt; &lt;daily|weekly:D|monthly:D|custom:SECS|disabled&gt; &lt;on|off&gt; &lt;min&gt;\n" +
	"• /sweep"

func ownerArg(fields []string) (solana.PublicKey, error) {
	if len(fields) != 2 {
		return solana.PublicKey{}, fmt.Errorf("usage: %s &lt;owner&gt;", fields[0])
	}
	owner, err := solana.PublicKeyFromBase58(fields[1])
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("invalid owner %q", fields[1])
	}
	return owner, nil
}

func stakeArgs(fields []string) (solana.PublicKey, uint64, error) {
	if len(fields) != 3 {
		return solana.PublicKey{}, 0, fmt.Errorf("usage: %s &lt;owner&gt; &lt;amount&gt;", fields[0])
	}
	owner, err := ownerArg(fields[:2])
	if err != nil {
		return solana.PublicKey{}, 0, err
	}
	amount, err := notifier.ParseAmount(fields[2])
	if err != nil {
		return solana.PublicKey{}, 0, err
	}
	return owner, amount, nil
}

// scheduleArgs parses "/schedule <owner> <schedule> <on|off> <min>". The
// minimum may be omitted and defaults to zero.
func scheduleArgs(fields []string) (solana.PublicKey, position.ScheduleParams, error) {
	if len(fields) != 4 && len(fields) != 5 {
		return solana.PublicKey{}, position.ScheduleParams{}, fmt.Errorf("usage: /schedule &lt;owner&gt; &lt;schedule&gt; &lt;on|off&gt; [min]")
	}
	owner, err := ownerArg(fields[:2])
	if err != nil {
		return solana.PublicKey{}, position.ScheduleParams{}, err
	}
	sched, err := model.ParseSchedule(fields[2])
	if err != nil {
		return solana.PublicKey{}, position.ScheduleParams{}, err
	}
	params := position.ScheduleParams{Schedule: sched}
	switch strings.ToLower(fields[3]) {
	case "on", "auto", "true":
		params.AutoClaim = true
	case "off", "manual", "false":
	default:
		return solana.PublicKey{}, position.ScheduleParams{}, fmt.Errorf("auto claim must be on or off, got %q", fields[3])
	}
	if len(fields) == 5 && fields[4] != "0" {
		if params.MinAmount, err = notifier.ParseAmount(fields[4]); err != nil {
			return solana.PublicKey{}, position.ScheduleParams{}, err
		}
	}
	return owner, params, nil
}

// describe turns an engine error into a one-line reply. Gating errors are
// shown as plain "not yet" answers.
func describe(err error) string {
	switch {
	case errors.Is(err, errs.ErrNotFound):
		return "No position for that owner."
	case errs.IsExpected(err):
		return "⏳ " + err.Error()
	default:
		return "❌ " + err.Error()
	}
}

func (s *Scheduler) trySend(ctx context.Context, text string) {
	if err := s.cfg.Notifier.Notify(ctx, text); err != nil {
		s.log.Error("send notification", "error", err)
	}
}
