// Package claim decides whether a dividend payout may proceed and produces the
// position update that follows it.
package claim

import (
	"context"
	"errors"

	"github.com/gagliardetto/solana-go"

	"YieldFlow/internal/calculator"
	"YieldFlow/internal/errs"
	"YieldFlow/internal/model"
	"YieldFlow/internal/schedule"
	"YieldFlow/internal/transfer"
)

var (
	ErrAutoClaimDisabled    = errs.Register(30, errs.KindGating, "auto claim disabled")
	ErrPayoutNotDue         = errs.Register(31, errs.KindGating, "payout not due")
	ErrDividendBelowMinimum = errs.Register(32, errs.KindGating, "dividend below minimum")
	ErrNoDividendToClaim    = errs.Register(33, errs.KindGating, "no dividend to claim")
	ErrTransferFailed       = errs.Register(34, errs.KindCollaborator, "transfer failed")
	ErrPayoutUnreconciled   = errs.Register(35, errs.KindCollaborator, "payout moved but not recorded")
)

// Config carries the settlement parameters shared by every claim.
type Config struct {
	Escrow      solana.PublicKey
	FeesEnabled bool
	FeeRateBps  uint64
}

// Orchestrator runs claims against positions handed to it by the caller. It
// does no locking; the caller must hold the position exclusively.
type Orchestrator struct {
	cfg      Config
	executor transfer.Executor
}

// New creates an Orchestrator paying out through executor.
func New(cfg Config, executor transfer.Executor) (*Orchestrator, error) {
	if executor == nil {
		return nil, errs.ErrInvalidInput.New("transfer executor is required")
	}
	if cfg.FeeRateBps > calculator.BasisPoints {
		return nil, errs.ErrInvalidInput.Newf("fee rate %d bps exceeds 100%%", cfg.FeeRateBps)
	}
	return &Orchestrator{cfg: cfg, executor: executor}, nil
}

// Owed returns the amount currently owed on pos. A rate that has not risen
// owes zero; overflow still fails.
func Owed(pos *model.StakePosition, currentRate uint64) (uint64, error) {
	owed, err := calculator.CalculateOwed(pos.StakedAmount, pos.BaseRate, currentRate)
	if errors.Is(err, errs.ErrRateNotIncreased) {
		return 0, nil
	}
	return owed, err
}

// Gate applies the mode-specific checks to an owed amount.
func Gate(pos *model.StakePosition, mode model.ClaimMode, owed uint64, now int64) error {
	switch mode {
	case model.Automatic:
		if !pos.AutoClaimEnabled {
			return ErrAutoClaimDisabled.Newf("owner %s", pos.Owner)
		}
		if now < pos.NextPayoutDueAt {
			return ErrPayoutNotDue.Newf("due at %d, now %d", pos.NextPayoutDueAt, now)
		}
		if owed < pos.MinPayoutThreshold {
			return ErrDividendBelowMinimum.Newf("owed %d, minimum %d", owed, pos.MinPayoutThreshold)
		}
		return nil
	case model.Forced:
		if owed == 0 {
			return ErrNoDividendToClaim.Newf("owner %s", pos.Owner)
		}
		return nil
	default:
		return errs.ErrInvalidInput.Newf("claim mode %d", mode)
	}
}

// Claim settles the dividend owed on pos at currentRate. On success pos is
// re-based to currentRate; on any error pos is left untouched and, if the
// error came before or from the transfer, nothing moved.
func (o *Orchestrator) Claim(ctx context.Context, pos *model.StakePosition, mode model.ClaimMode, currentRate uint64, now int64) (model.ClaimOutcome, error) {
	owed, err := Owed(pos, currentRate)
	if err != nil {
		return model.ClaimOutcome{}, err
	}
	if err := Gate(pos, mode, owed, now); err != nil {
		return model.ClaimOutcome{}, err
	}
	if owed == 0 {
		return model.ClaimOutcome{Mode: mode, NextPayoutDueAt: pos.NextPayoutDueAt, Noop: true}, nil
	}

	// Everything that can fail runs before funds move.
	fee, err := o.fee(owed)
	if err != nil {
		return model.ClaimOutcome{}, err
	}
	next, err := settle(*pos, mode, owed, currentRate, now)
	if err != nil {
		return model.ClaimOutcome{}, err
	}

	net := owed - fee
	if net > 0 {
		if err := o.executor.Transfer(ctx, o.cfg.Escrow, pos.Owner, net); err != nil {
			return model.ClaimOutcome{}, ErrTransferFailed.Wrap(err)
		}
	}

	*pos = next
	return model.ClaimOutcome{
		AmountPaid:      owed,
		Fee:             fee,
		NetAmount:       net,
		Mode:            mode,
		NextPayoutDueAt: next.NextPayoutDueAt,
	}, nil
}

// Revert reverses the transfer behind a successful outcome for owner. It is
// used when the re-based position could not be saved, so the owed amount
// stays claimable exactly once.
func (o *Orchestrator) Revert(ctx context.Context, owner solana.PublicKey, out model.ClaimOutcome) error {
	if out.Noop || out.NetAmount == 0 {
		return nil
	}
	if err := o.executor.Reverse(ctx, o.cfg.Escrow, owner, out.NetAmount); err != nil {
		return ErrPayoutUnreconciled.Wrap(err)
	}
	return nil
}

func (o *Orchestrator) fee(owed uint64) (uint64, error) {
	if !o.cfg.FeesEnabled {
		return 0, nil
	}
	return calculator.CalculateFee(owed, o.cfg.FeeRateBps)
}

// settle returns the post-payout copy of pos.
func settle(pos model.StakePosition, mode model.ClaimMode, owed, currentRate uint64, now int64) (model.StakePosition, error) {
	total := pos.CumulativePayouts + owed
	if total < owed {
		return pos, errs.ErrArithmeticOverflow.Newf("cumulative payouts %d + %d", pos.CumulativePayouts, owed)
	}
	pos.BaseRate = currentRate
	pos.LastSettledAt = now
	pos.LastPayoutAmount = owed
	pos.CumulativePayouts = total

	if mode == model.Automatic {
		due, err := schedule.NextPayout(pos.Schedule, now)
		if err != nil {
			return pos, err
		}
		pos.NextPayoutDueAt = due
	}
	return pos, nil
}
