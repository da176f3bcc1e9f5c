package transfer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gagliardetto/solana-go"

	"YieldFlow/internal/errs"
)

var (
	ErrInsufficientEscrow = errs.Register(40, errs.KindCollaborator, "insufficient escrow balance")
	ErrZeroAmount         = errs.Register(41, errs.KindValidation, "transfer amount must be positive")
)

// Executor moves owed units out of custody. A returned error means nothing moved.
//
// Reverse undoes a Transfer with the same arguments that already succeeded.
// Callers use it when the state that records the transfer could not be saved.
type Executor interface {
	Transfer(ctx context.Context, from, to solana.PublicKey, amount uint64) error
	Reverse(ctx context.Context, from, to solana.PublicKey, amount uint64) error
}

// Func adapts a callback to the Executor interface. Reverse calls it with
// the accounts swapped.
type Func func(ctx context.Context, from, to solana.PublicKey, amount uint64) error

func (f Func) Transfer(ctx context.Context, from, to solana.PublicKey, amount uint64) error {
	if f == nil {
		return nil
	}
	return f(ctx, from, to, amount)
}

func (f Func) Reverse(ctx context.Context, from, to solana.PublicKey, amount uint64) error {
	return f.Transfer(ctx, to, from, amount)
}

// Ledger is a custodial balance book. Transfers debit the source and credit
// the destination under one lock and never overdraw. A ledger opened with
// OpenLedger writes every change through to disk before applying it.
type Ledger struct {
	log      *slog.Logger
	mu       sync.Mutex
	balances map[solana.PublicKey]uint64
	book     *boltBook
}

// NewLedger creates an in-memory ledger holding initial units in escrow.
func NewLedger(log *slog.Logger, escrow solana.PublicKey, initial uint64) *Ledger {
	return &Ledger{
		log:      log,
		balances: map[solana.PublicKey]uint64{escrow: initial},
	}
}

func (l *Ledger) Transfer(ctx context.Context, from, to solana.PublicKey, amount uint64) error {
	if err := l.move(ctx, from, to, amount); err != nil {
		return err
	}
	l.log.Debug("ledger: transfer", "from", from.String(), "to", to.String(), "amount", amount)
	return nil
}

func (l *Ledger) Reverse(ctx context.Context, from, to solana.PublicKey, amount uint64) error {
	if err := l.move(ctx, to, from, amount); err != nil {
		return fmt.Errorf("reverse transfer: %w", err)
	}
	l.log.Warn("ledger: transfer reversed", "from", from.String(), "to", to.String(), "amount", amount)
	return nil
}

func (l *Ledger) move(ctx context.Context, from, to solana.PublicKey, amount uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if amount == 0 {
		return ErrZeroAmount.New("ledger transfer")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	have := l.balances[from]
	if have < amount {
		return ErrInsufficientEscrow.Newf("have %d, need %d", have, amount)
	}
	credited := l.balances[to] + amount
	if credited < amount {
		return errs.ErrArithmeticOverflow.Newf("credit %s", to)
	}
	return l.apply(map[solana.PublicKey]uint64{from: have - amount, to: credited})
}

// apply persists then installs new balances. Callers hold l.mu.
func (l *Ledger) apply(next map[solana.PublicKey]uint64) error {
	if l.book != nil {
		if err := l.book.put(next); err != nil {
			return err
		}
	}
	for account, balance := range next {
		l.balances[account] = balance
	}
	return nil
}

// Fund adds units to an account, e.g. when yield lands in escrow.
func (l *Ledger) Fund(account solana.PublicKey, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	next := l.balances[account] + amount
	if next < amount {
		return errs.ErrArithmeticOverflow.Newf("fund %s", account)
	}
	return l.apply(map[solana.PublicKey]uint64{account: next})
}

// Balance returns the current balance of account.
func (l *Ledger) Balance(account solana.PublicKey) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[account]
}

// Close releases the backing database, if any.
func (l *Ledger) Close() error {
	if l.book == nil {
		return nil
	}
	return l.book.close()
}

// DryRun logs transfers without moving anything.
type DryRun struct {
	Log *slog.Logger
}

func (d DryRun) Transfer(ctx context.Context, from, to solana.PublicKey, amount uint64) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("dry run: %w", err)
	}
	d.Log.Info("dry-run: transfer", "from", from.String(), "to", to.String(), "amount", amount)
	return nil
}

func (d DryRun) Reverse(_ context.Context, from, to solana.PublicKey, amount uint64) error {
	d.Log.Info("dry-run: reverse", "from", from.String(), "to", to.String(), "amount", amount)
	return nil
}
