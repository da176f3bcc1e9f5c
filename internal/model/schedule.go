package model

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ScheduleKind tags the PayoutSchedule variant.
type ScheduleKind uint8

const (
	ScheduleDisabled ScheduleKind = iota
	ScheduleDaily
	ScheduleWeekly
	ScheduleMonthly
	ScheduleCustom
)

var scheduleNames = map[ScheduleKind]string{
	ScheduleDisabled: "disabled",
	ScheduleDaily:    "daily",
	ScheduleWeekly:   "weekly",
	ScheduleMonthly:  "monthly",
	ScheduleCustom:   "custom",
}

func (k ScheduleKind) String() string {
	if s, ok := scheduleNames[k]; ok {
		return s
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// PayoutSchedule is a closed sum type. Only the field matching Kind is
// meaningful; the zero value is Disabled.
type PayoutSchedule struct {
	Kind            ScheduleKind
	Weekday         uint8 // Weekly: 0 = Sunday .. 6 = Saturday
	DayOfMonth      uint8 // Monthly: 1..28
	IntervalSeconds int64 // Custom
}

func Disabled() PayoutSchedule {
	return PayoutSchedule{Kind: ScheduleDisabled}
}

func Daily() PayoutSchedule {
	return PayoutSchedule{Kind: ScheduleDaily}
}

func Weekly(weekday uint8) PayoutSchedule {
	return PayoutSchedule{Kind: ScheduleWeekly, Weekday: weekday}
}

func Monthly(day uint8) PayoutSchedule {
	return PayoutSchedule{Kind: ScheduleMonthly, DayOfMonth: day}
}

func Custom(seconds int64) PayoutSchedule {
	return PayoutSchedule{Kind: ScheduleCustom, IntervalSeconds: seconds}
}

// String renders the schedule as "kind" or "kind:param".
func (s PayoutSchedule) String() string {
	switch s.Kind {
	case ScheduleWeekly:
		return fmt.Sprintf("weekly:%d", s.Weekday)
	case ScheduleMonthly:
		return fmt.Sprintf("monthly:%d", s.DayOfMonth)
	case ScheduleCustom:
		return fmt.Sprintf("custom:%d", s.IntervalSeconds)
	default:
		return s.Kind.String()
	}
}

// ParseSchedule reads the String form. It checks syntax only; range checks
// belong to schedule.Validate.
func ParseSchedule(text string) (PayoutSchedule, error) {
	name, param, hasParam := strings.Cut(strings.ToLower(strings.TrimSpace(text)), ":")
	switch name {
	case "", "disabled":
		return Disabled(), noParam(name, hasParam)
	case "daily":
		return Daily(), noParam(name, hasParam)
	case "weekly", "monthly":
		if !hasParam {
			return PayoutSchedule{}, fmt.Errorf("schedule %q needs a day parameter", name)
		}
		day, err := strconv.ParseUint(param, 10, 8)
		if err != nil {
			return PayoutSchedule{}, fmt.Errorf("parse %s day %q: %w", name, param, err)
		}
		if name == "weekly" {
			return Weekly(uint8(day)), nil
		}
		return Monthly(uint8(day)), nil
	case "custom":
		if !hasParam {
			return PayoutSchedule{}, fmt.Errorf("schedule %q needs an interval in seconds", name)
		}
		secs, err := strconv.ParseInt(param, 10, 64)
		if err != nil {
			return PayoutSchedule{}, fmt.Errorf("parse custom interval %q: %w", param, err)
		}
		return Custom(secs), nil
	default:
		return PayoutSchedule{}, fmt.Errorf("unknown schedule %q", name)
	}
}

func noParam(name string, hasParam bool) error {
	if hasParam {
		return fmt.Errorf("schedule %q takes no parameter", name)
	}
	return nil
}

func (s PayoutSchedule) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *PayoutSchedule) UnmarshalJSON(data []byte) error {
	var text string
	if err := json.Unmarshal(data, &text); err != nil {
		return err
	}
	parsed, err := ParseSchedule(text)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// MarshalYAML and UnmarshalYAML let schedules appear as plain strings in config.
func (s PayoutSchedule) MarshalYAML() (any, error) { return s.String(), nil }

func (s *PayoutSchedule) UnmarshalYAML(unmarshal func(any) error) error {
	var text string
	if err := unmarshal(&text); err != nil {
		return err
	}
	parsed, err := ParseSchedule(text)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
