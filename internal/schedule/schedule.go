// Package schedule computes when an automatic payout is next due.
//
// All functions are pure transitions over a model.PayoutSchedule and a clock
// reading in Unix seconds. Monthly schedules are an approximation: the next
// due date is 30 days ahead snapped to midnight UTC plus (day-1) days, not a
// calendar month boundary.
package schedule

import (
	"math"

	"YieldFlow/internal/errs"
	"YieldFlow/internal/model"
)

const (
	SecondsPerDay int64 = 86_400
	monthStepDays int64 = 30
)

// 1970-01-01 was a Thursday, weekday 4 when Sunday = 0.
const epochWeekdayOffset int64 = 4

var (
	ErrInvalidWeekday        = errs.Register(20, errs.KindValidation, "invalid weekday")
	ErrInvalidMonthDay       = errs.Register(21, errs.KindValidation, "invalid day of month")
	ErrInvalidCustomInterval = errs.Register(22, errs.KindValidation, "invalid custom interval")
	ErrUnknownSchedule       = errs.Register(23, errs.KindValidation, "unknown schedule")
)

// Validate rejects parameters that must never be persisted.
func Validate(s model.PayoutSchedule) error {
	switch s.Kind {
	case model.ScheduleDisabled, model.ScheduleDaily:
		return nil
	case model.ScheduleWeekly:
		if s.Weekday > 6 {
			return ErrInvalidWeekday.Newf("weekday %d", s.Weekday)
		}
		return nil
	case model.ScheduleMonthly:
		if s.DayOfMonth < 1 || s.DayOfMonth > 28 {
			return ErrInvalidMonthDay.Newf("day %d", s.DayOfMonth)
		}
		return nil
	case model.ScheduleCustom:
		if s.IntervalSeconds <= 0 {
			return ErrInvalidCustomInterval.Newf("interval %ds", s.IntervalSeconds)
		}
		return nil
	default:
		return ErrUnknownSchedule.Newf("kind %d", s.Kind)
	}
}

// NextPayout returns the Unix timestamp of the next automatic payout after
// now, or 0 for a disabled schedule. A weekly schedule whose weekday is
// today's returns now + 7 days, never now.
func NextPayout(s model.PayoutSchedule, now int64) (int64, error) {
	if err := Validate(s); err != nil {
		return 0, err
	}
	if now < 0 {
		return 0, errs.ErrInvalidTimestamp.Newf("now %d", now)
	}

	switch s.Kind {
	case model.ScheduleDisabled:
		return 0, nil
	case model.ScheduleDaily:
		return addChecked(now, SecondsPerDay)
	case model.ScheduleWeekly:
		return addChecked(now, daysUntilWeekday(now, int64(s.Weekday))*SecondsPerDay)
	case model.ScheduleMonthly:
		t, err := addChecked(now, monthStepDays*SecondsPerDay)
		if err != nil {
			return 0, err
		}
		return addChecked(t-t%SecondsPerDay, int64(s.DayOfMonth-1)*SecondsPerDay)
	default: // Custom; Validate rejected anything else
		return addChecked(now, s.IntervalSeconds)
	}
}

// Weekday returns the day of week of a Unix timestamp, 0 = Sunday.
func Weekday(now int64) int64 {
	return (now/SecondsPerDay + epochWeekdayOffset) % 7
}

func daysUntilWeekday(now, weekday int64) int64 {
	current := Weekday(now)
	if weekday > current {
		return weekday - current
	}
	return 7 - (current - weekday)
}

// ShouldPayout reports whether an automatic payout of owed is due at now.
func ShouldPayout(pos *model.StakePosition, owed uint64, now int64) bool {
	if !pos.AutoClaimEnabled ||
		pos.Schedule.Kind == model.ScheduleDisabled ||
		owed < pos.MinPayoutThreshold {
		return false
	}
	return now >= pos.NextPayoutDueAt
}

func addChecked(a, b int64) (int64, error) {
	if (b > 0 && a > math.MaxInt64-b) || (b < 0 && a < math.MinInt64-b) {
		return 0, errs.ErrArithmeticOverflow.Newf("%d + %d", a, b)
	}
	return a + b, nil
}
