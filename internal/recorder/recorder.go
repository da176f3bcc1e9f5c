package recorder

import (
	"github.com/gagliardetto/solana-go"

	"YieldFlow/internal/model"
)

// PayoutEvent records one settled claim.
type PayoutEvent struct {
	ID              string // uuid, assigned by the recorder when empty
	Owner           solana.PublicKey
	Mode            model.ClaimMode
	Rate            uint64
	AmountPaid      uint64
	Fee             uint64
	NetAmount       uint64
	NextPayoutDueAt int64
	At              int64
}

// RejectionEvent records a claim that did not go through.
type RejectionEvent struct {
	Owner  solana.PublicKey
	Mode   model.ClaimMode
	Code   uint32 // registry code, 0 when unclassified
	Kind   string
	Reason string
	At     int64
}

// ScheduleChange records an admin update of payout preferences.
type ScheduleChange struct {
	Owner           solana.PublicKey
	Schedule        model.PayoutSchedule
	AutoClaim       bool
	MinAmount       uint64
	NextPayoutDueAt int64
	At              int64
}

// StakeEvent records an open or a deposit.
type StakeEvent struct {
	Owner       solana.PublicKey
	EventType   string // "OPEN" or "DEPOSIT"
	Amount      uint64
	StakedAfter uint64
	BaseRate    uint64
	At          int64
}

// Summary aggregates payouts over a window.
type Summary struct {
	Payouts    int64
	Rejections int64
	AmountPaid uint64
	Fees       uint64
}

// Recorder persists payout history for analysis and reporting.
type Recorder interface {
	RecordPayout(evt *PayoutEvent) error
	RecordRejection(evt *RejectionEvent) error
	RecordScheduleChange(evt *ScheduleChange) error
	RecordStake(evt *StakeEvent) error
	Summarize(since int64) (Summary, error)
	Close() error
}
