package position

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gagliardetto/solana-go"
	"github.com/jonboulle/clockwork"

	"YieldFlow/internal/claim"
	"YieldFlow/internal/errs"
	"YieldFlow/internal/metrics"
	"YieldFlow/internal/model"
	"YieldFlow/internal/rate"
	"YieldFlow/internal/recorder"
	"YieldFlow/internal/schedule"
)

type Config struct {
	Logger   *slog.Logger
	Store    Store
	Rates    rate.Source
	Claims   *claim.Orchestrator
	Recorder recorder.Recorder
	Clock    clockwork.Clock
}

func (cfg *Config) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Store == nil {
		return errors.New("store is required")
	}
	if cfg.Rates == nil {
		return errors.New("rate source is required")
	}
	if cfg.Claims == nil {
		return errors.New("claim orchestrator is required")
	}
	if cfg.Recorder == nil {
		cfg.Recorder = recorder.NewNoopRecorder()
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	return nil
}

// ScheduleParams are the owner-controlled payout preferences.
type ScheduleParams struct {
	Schedule  model.PayoutSchedule
	AutoClaim bool
	MinAmount uint64
}

// DepositResult is the position after a deposit, plus the settlement that
// preceded it when dividends were owed.
type DepositResult struct {
	Position   model.StakePosition
	Settlement *model.ClaimOutcome
}

// View is a read-only snapshot of a position at the live rate.
type View struct {
	Position model.StakePosition
	Rate     uint64
	Owed     uint64
	Due      bool
}

// Manager serialises every operation on a position. Each call takes the
// owner's lock, reads a fresh rate, and commits through one Store.Update.
type Manager struct {
	log *slog.Logger
	cfg Config

	mu    sync.Mutex
	locks map[solana.PublicKey]*sync.Mutex
}

func NewManager(cfg Config) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid manager config: %w", err)
	}
	return &Manager{
		log:   cfg.Logger,
		cfg:   cfg,
		locks: make(map[solana.PublicKey]*sync.Mutex),
	}, nil
}

func (m *Manager) lock(owner solana.PublicKey) func() {
	m.mu.Lock()
	l, ok := m.locks[owner]
	if !ok {
		l = &sync.Mutex{}
		m.locks[owner] = l
	}
	m.mu.Unlock()

	l.Lock()
	return l.Unlock
}

func (m *Manager) now() int64 { return m.cfg.Clock.Now().Unix() }

// Open creates a position for owner holding amount receipt units, based at
// the current rate.
func (m *Manager) Open(ctx context.Context, owner solana.PublicKey, amount uint64) (model.StakePosition, error) {
	if amount == 0 {
		return model.StakePosition{}, errs.ErrInvalidInput.New("stake amount must be positive")
	}
	defer m.lock(owner)()

	current, err := rate.Observe(ctx, m.cfg.Rates)
	if err != nil {
		return model.StakePosition{}, err
	}
	now := m.now()

	pos, err := m.cfg.Store.Update(owner, true, func(pos *model.StakePosition, isNew bool) error {
		if !isNew {
			return ErrPositionExists.Newf("owner %s", owner)
		}
		pos.StakedAmount = amount
		pos.BaseRate = current
		pos.LastSettledAt = now
		pos.CreatedAt = now
		pos.Schedule = model.Disabled()
		return nil
	})
	if err != nil {
		return model.StakePosition{}, err
	}

	m.log.Info("position opened", "owner", owner.String(), "amount", amount, "rate", current)
	m.record("stake", m.cfg.Recorder.RecordStake(&recorder.StakeEvent{
		Owner: owner, EventType: "OPEN", Amount: amount, StakedAfter: amount, BaseRate: current, At: now,
	}))
	return pos, nil
}

// Deposit adds amount to an existing position. Dividends owed at the current
// rate are paid out first so the added stake never earns on past growth.
func (m *Manager) Deposit(ctx context.Context, owner solana.PublicKey, amount uint64) (DepositResult, error) {
	if amount == 0 {
		return DepositResult{}, errs.ErrInvalidInput.New("deposit amount must be positive")
	}
	defer m.lock(owner)()

	current, err := rate.Observe(ctx, m.cfg.Rates)
	if err != nil {
		return DepositResult{}, err
	}
	now := m.now()

	var settlement *model.ClaimOutcome
	pos, err := m.cfg.Store.Update(owner, false, func(pos *model.StakePosition, _ bool) error {
		settlement = nil
		owed, err := claim.Owed(pos, current)
		if err != nil {
			return err
		}

		staked := pos.StakedAmount + amount
		if staked < amount {
			return errs.ErrArithmeticOverflow.Newf("staked %d + %d", pos.StakedAmount, amount)
		}

		next := *pos
		switch {
		case owed > 0:
			out, err := m.cfg.Claims.Claim(ctx, &next, model.Forced, current, now)
			if err != nil {
				return err
			}
			settlement = &out
		case current > next.BaseRate:
			// Growth too small to pay a single unit; re-base anyway.
			next.BaseRate = current
			next.LastSettledAt = now
		}

		next.StakedAmount = staked
		*pos = next
		return nil
	})
	if err != nil {
		if settlement != nil {
			err = m.unwind(ctx, owner, *settlement, err)
		}
		return DepositResult{}, err
	}

	if settlement != nil {
		m.observePayout(owner, current, now, *settlement)
	}
	m.log.Info("deposit", "owner", owner.String(), "amount", amount, "staked", pos.StakedAmount)
	m.record("stake", m.cfg.Recorder.RecordStake(&recorder.StakeEvent{
		Owner: owner, EventType: "DEPOSIT", Amount: amount, StakedAfter: pos.StakedAmount, BaseRate: pos.BaseRate, At: now,
	}))
	return DepositResult{Position: pos, Settlement: settlement}, nil
}

// SetSchedule validates and stores new payout preferences and recomputes
// the next due date from now.
func (m *Manager) SetSchedule(_ context.Context, owner solana.PublicKey, params ScheduleParams) (model.StakePosition, error) {
	if err := schedule.Validate(params.Schedule); err != nil {
		return model.StakePosition{}, err
	}
	defer m.lock(owner)()

	now := m.now()
	due, err := schedule.NextPayout(params.Schedule, now)
	if err != nil {
		return model.StakePosition{}, err
	}

	pos, err := m.cfg.Store.Update(owner, false, func(pos *model.StakePosition, _ bool) error {
		pos.Schedule = params.Schedule
		pos.AutoClaimEnabled = params.AutoClaim
		pos.MinPayoutThreshold = params.MinAmount
		pos.NextPayoutDueAt = due
		return nil
	})
	if err != nil {
		return model.StakePosition{}, err
	}

	m.log.Info("schedule set", "owner", owner.String(), "schedule", params.Schedule.String(), "auto", params.AutoClaim, "next_due", due)
	m.record("schedule change", m.cfg.Recorder.RecordScheduleChange(&recorder.ScheduleChange{
		Owner:           owner,
		Schedule:        params.Schedule,
		AutoClaim:       params.AutoClaim,
		MinAmount:       params.MinAmount,
		NextPayoutDueAt: due,
		At:              now,
	}))
	return pos, nil
}

// Claim runs a claim for owner at the live rate. Gating rejections are
// recorded and returned unchanged.
func (m *Manager) Claim(ctx context.Context, owner solana.PublicKey, mode model.ClaimMode) (model.ClaimOutcome, error) {
	defer m.lock(owner)()

	current, err := rate.Observe(ctx, m.cfg.Rates)
	if err != nil {
		metrics.ClaimsTotal.WithLabelValues(mode.String(), metrics.StatusError).Inc()
		return model.ClaimOutcome{}, err
	}
	now := m.now()

	var (
		out  model.ClaimOutcome
		paid bool
	)
	_, err = m.cfg.Store.Update(owner, false, func(pos *model.StakePosition, _ bool) error {
		o, err := m.cfg.Claims.Claim(ctx, pos, mode, current, now)
		if err != nil {
			return err
		}
		out, paid = o, true
		return nil
	})
	if err != nil {
		if paid {
			err = m.unwind(ctx, owner, out, err)
		}
		m.observeRejection(owner, mode, now, err)
		return model.ClaimOutcome{}, err
	}

	if out.Noop {
		metrics.ClaimsTotal.WithLabelValues(mode.String(), metrics.StatusNoop).Inc()
		m.log.Debug("claim: nothing owed", "owner", owner.String(), "mode", mode.String())
		return out, nil
	}
	m.observePayout(owner, current, now, out)
	return out, nil
}

// Inspect reports what owner would be owed right now without changing anything.
func (m *Manager) Inspect(ctx context.Context, owner solana.PublicKey) (View, error) {
	pos, err := m.cfg.Store.Get(owner)
	if err != nil {
		return View{}, err
	}
	current, err := rate.Observe(ctx, m.cfg.Rates)
	if err != nil {
		return View{}, err
	}
	owed, err := claim.Owed(&pos, current)
	if err != nil {
		return View{}, err
	}
	return View{
		Position: pos,
		Rate:     current,
		Owed:     owed,
		Due:      schedule.ShouldPayout(&pos, owed, m.now()),
	}, nil
}

func (m *Manager) Get(owner solana.PublicKey) (model.StakePosition, error) {
	return m.cfg.Store.Get(owner)
}

func (m *Manager) List() ([]model.StakePosition, error) {
	return m.cfg.Store.List()
}

// Now is the manager's clock reading in Unix seconds.
func (m *Manager) Now() int64 { return m.now() }

// unwind reverses a payout whose position write failed. Without it the
// position keeps its old base rate and the same dividend is paid again.
func (m *Manager) unwind(ctx context.Context, owner solana.PublicKey, out model.ClaimOutcome, cause error) error {
	if err := m.cfg.Claims.Revert(context.WithoutCancel(ctx), owner, out); err != nil {
		m.log.Error("payout not persisted and not reversed",
			"owner", owner.String(),
			"net", out.NetAmount,
			"error", cause,
			"revert_error", err,
		)
		return errors.Join(cause, err)
	}
	m.log.Warn("payout reversed after failed write", "owner", owner.String(), "net", out.NetAmount, "error", cause)
	return cause
}

func (m *Manager) observePayout(owner solana.PublicKey, current uint64, now int64, out model.ClaimOutcome) {
	metrics.ClaimsTotal.WithLabelValues(out.Mode.String(), metrics.StatusPaid).Inc()
	metrics.PayoutLamportsTotal.WithLabelValues(out.Mode.String()).Add(float64(out.AmountPaid))
	metrics.FeeLamportsTotal.Add(float64(out.Fee))

	m.log.Info("claim paid",
		"owner", owner.String(),
		"mode", out.Mode.String(),
		"amount", out.AmountPaid,
		"fee", out.Fee,
		"rate", current,
		"next_due", out.NextPayoutDueAt,
	)
	m.record("payout", m.cfg.Recorder.RecordPayout(&recorder.PayoutEvent{
		Owner:           owner,
		Mode:            out.Mode,
		Rate:            current,
		AmountPaid:      out.AmountPaid,
		Fee:             out.Fee,
		NetAmount:       out.NetAmount,
		NextPayoutDueAt: out.NextPayoutDueAt,
		At:              now,
	}))
}

func (m *Manager) observeRejection(owner solana.PublicKey, mode model.ClaimMode, now int64, err error) {
	status := metrics.StatusError
	if errs.IsExpected(err) {
		status = metrics.StatusRejected
		m.log.Debug("claim rejected", "owner", owner.String(), "mode", mode.String(), "reason", err.Error())
	} else {
		m.log.Warn("claim failed", "owner", owner.String(), "mode", mode.String(), "error", err)
	}
	metrics.ClaimsTotal.WithLabelValues(mode.String(), status).Inc()

	m.record("rejection", m.cfg.Recorder.RecordRejection(&recorder.RejectionEvent{
		Owner:  owner,
		Mode:   mode,
		Code:   errs.CodeOf(err),
		Kind:   errs.KindOf(err).String(),
		Reason: err.Error(),
		At:     now,
	}))
}

func (m *Manager) record(what string, err error) {
	if err != nil {
		m.log.Error("failed to record "+what, "error", err)
	}
}
