package model

import (
	"github.com/gagliardetto/solana-go"
)

// Precision is the fixed-point scale shared by stake amounts and rates.
// mSOL and SOL both carry 9 decimals, so a rate of 1_000_000_000 means
// 1 mSOL redeems for exactly 1 SOL.
const Precision uint64 = 1_000_000_000

// StakePosition is the per-owner record the engine settles against.
type StakePosition struct {
	Owner              solana.PublicKey `json:"owner"`
	StakedAmount       uint64           `json:"staked_amount"`
	BaseRate           uint64           `json:"base_rate"`
	LastSettledAt      int64            `json:"last_settled_at"`
	LastPayoutAmount   uint64           `json:"last_payout_amount"`
	CumulativePayouts  uint64           `json:"cumulative_payouts"`
	Schedule           PayoutSchedule   `json:"schedule"`
	NextPayoutDueAt    int64            `json:"next_payout_due_at"` // 0 = nothing pending
	MinPayoutThreshold uint64           `json:"min_payout_threshold"`
	AutoClaimEnabled   bool             `json:"auto_claim_enabled"`
	CreatedAt          int64            `json:"created_at"`
}

// ClaimMode selects which gate a claim has to pass.
type ClaimMode uint8

const (
	// Automatic claims are subject to the schedule and the minimum threshold.
	Automatic ClaimMode = iota
	// Forced claims skip scheduling but still need something owed.
	Forced
)

func (m ClaimMode) String() string {
	switch m {
	case Automatic:
		return "automatic"
	case Forced:
		return "forced"
	default:
		return "unknown"
	}
}

// ClaimOutcome reports what a claim did.
type ClaimOutcome struct {
	AmountPaid      uint64 // owed amount settled, fee included
	Fee             uint64 // withheld in escrow
	NetAmount       uint64 // moved to the owner
	Mode            ClaimMode
	NextPayoutDueAt int64
	Noop            bool // nothing owed, nothing moved
}
