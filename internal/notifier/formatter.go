package notifier

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"YieldFlow/internal/calculator"
	"YieldFlow/internal/model"
	"YieldFlow/internal/position"
	"YieldFlow/internal/recorder"
)

// decimals matches model.Precision.
const decimals = 9

// FormatAmount renders a Precision-scaled integer as a decimal, e.g.
// 1_500_000_000 -> "1.500000000".
func FormatAmount(v uint64) string {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(v), -decimals).StringFixed(decimals)
}

// ParseAmount reads a decimal such as "2.5" into Precision-scaled units.
// The amount must be positive with at most nine fractional digits.
func ParseAmount(text string) (uint64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(text))
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q", text)
	}
	scaled := d.Shift(decimals)
	if scaled.Sign() <= 0 || !scaled.IsInteger() {
		return 0, fmt.Errorf("amount %q must be positive with at most %d decimals", text, decimals)
	}
	n := scaled.BigInt()
	if !n.IsUint64() {
		return 0, fmt.Errorf("amount %q is too large", text)
	}
	return n.Uint64(), nil
}

func formatTime(unix int64) string {
	if unix == 0 {
		return "-"
	}
	return time.Unix(unix, 0).UTC().Format("2006-01-02 15:04 UTC")
}

// Projection configures the compounding preview shown with a position.
type Projection struct {
	RateBps uint64
	Periods uint64
	Label   string // e.g. "12 epochs"
}

// FormatPosition renders a position with its live owed amount.
func FormatPosition(v position.View, proj Projection) string {
	p := v.Position
	var b strings.Builder
	fmt.Fprintf(&b, "📄 <b>Position</b> %s\n\n", p.Owner)
	fmt.Fprintf(&b, "Staked: %s\n", FormatAmount(p.StakedAmount))
	fmt.Fprintf(&b, "Base rate: %s | current: %s\n", FormatAmount(p.BaseRate), FormatAmount(v.Rate))
	fmt.Fprintf(&b, "Owed now: %s\n", FormatAmount(v.Owed))
	fmt.Fprintf(&b, "Paid to date: %s (last %s)\n", FormatAmount(p.CumulativePayouts), FormatAmount(p.LastPayoutAmount))
	fmt.Fprintf(&b, "Schedule: %s | auto: %v | min: %s\n", p.Schedule, p.AutoClaimEnabled, FormatAmount(p.MinPayoutThreshold))
	fmt.Fprintf(&b, "Next payout: %s", formatTime(p.NextPayoutDueAt))
	if v.Due {
		b.WriteString(" (due)")
	}
	b.WriteString("\n")

	if proj.RateBps > 0 && proj.Periods > 0 {
		if gain, err := calculator.CalculateCompoundInterest(p.StakedAmount, proj.RateBps, proj.Periods); err == nil {
			fmt.Fprintf(&b, "Projected yield (%s at %d bps): %s\n", proj.Label, proj.RateBps, FormatAmount(gain))
		}
	}
	return b.String()
}

// FormatPayout announces one settled claim.
func FormatPayout(owner fmt.Stringer, out model.ClaimOutcome) string {
	var b strings.Builder
	fmt.Fprintf(&b, "💸 <b>Payout</b> (%s) %s\n\n", out.Mode, owner)
	fmt.Fprintf(&b, "Amount: %s\n", FormatAmount(out.AmountPaid))
	if out.Fee > 0 {
		fmt.Fprintf(&b, "Fee: %s | net: %s\n", FormatAmount(out.Fee), FormatAmount(out.NetAmount))
	}
	if out.NextPayoutDueAt != 0 {
		fmt.Fprintf(&b, "Next payout: %s\n", formatTime(out.NextPayoutDueAt))
	}
	return b.String()
}

// FormatStake confirms an open or a deposit, with the payout that settled
// earlier growth first, if any.
func FormatStake(action string, p model.StakePosition, settlement *model.ClaimOutcome) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🏦 <b>%s</b> %s\n\n", action, p.Owner)
	fmt.Fprintf(&b, "Staked: %s\n", FormatAmount(p.StakedAmount))
	fmt.Fprintf(&b, "Base rate: %s\n", FormatAmount(p.BaseRate))
	if settlement != nil {
		fmt.Fprintf(&b, "Settled first: %s\n", FormatAmount(settlement.AmountPaid))
	}
	return b.String()
}

// FormatSchedule confirms new payout preferences.
func FormatSchedule(p model.StakePosition) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🗓 <b>Schedule set</b> %s\n\n", p.Owner)
	fmt.Fprintf(&b, "Schedule: %s | auto: %v | min: %s\n", p.Schedule, p.AutoClaimEnabled, FormatAmount(p.MinPayoutThreshold))
	fmt.Fprintf(&b, "Next payout: %s\n", formatTime(p.NextPayoutDueAt))
	return b.String()
}

// SweepReport summarises one automatic payout sweep.
type SweepReport struct {
	At             int64
	Rate           uint64
	Positions      int
	Due            int
	Paid           int
	Rejected       int
	Failed         int
	AmountPaid     uint64
	Fees           uint64
	NearThreshold  int
	FailureSamples []string
}

func FormatSweepReport(r SweepReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🔁 <b>Payout sweep</b> | %s\n\n", formatTime(r.At))
	fmt.Fprintf(&b, "Rate: %s\n", FormatAmount(r.Rate))
	fmt.Fprintf(&b, "Positions: %d | due: %d | near threshold: %d\n", r.Positions, r.Due, r.NearThreshold)
	fmt.Fprintf(&b, "Paid: %d (%s, fees %s)\n", r.Paid, FormatAmount(r.AmountPaid), FormatAmount(r.Fees))
	if r.Rejected > 0 {
		fmt.Fprintf(&b, "Rejected: %d\n", r.Rejected)
	}
	if r.Failed > 0 {
		fmt.Fprintf(&b, "❌ Failed: %d\n", r.Failed)
		for _, s := range r.FailureSamples {
			fmt.Fprintf(&b, "  • %s\n", s)
		}
	}
	return b.String()
}

// FormatDailyReport summarises recorded history since a point in time.
func FormatDailyReport(since int64, s recorder.Summary, positions int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📊 <b>YieldFlow report</b> since %s\n\n", formatTime(since))
	fmt.Fprintf(&b, "Positions: %d\n", positions)
	fmt.Fprintf(&b, "Payouts: %d (%s)\n", s.Payouts, FormatAmount(s.AmountPaid))
	fmt.Fprintf(&b, "Fees withheld: %s\n", FormatAmount(s.Fees))
	fmt.Fprintf(&b, "Rejections: %d\n", s.Rejections)
	return b.String()
}
