package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseSchedule(t *testing.T) {
	tests := []struct {
		in   string
		want PayoutSchedule
	}{
		{"", Disabled()},
		{"disabled", Disabled()},
		{"Daily", Daily()},
		{"weekly:0", Weekly(0)},
		{"weekly:6", Weekly(6)},
		{"monthly:28", Monthly(28)},
		{"monthly:0", Monthly(0)},
		{"custom:3600", Custom(3600)},
		{"custom:-1", Custom(-1)},
	}
	for _, tt := range tests {
		got, err := ParseSchedule(tt.in)
		require.NoError(t, err, tt.in)
		require.Equal(t, tt.want, got, tt.in)
	}
}

func TestParseScheduleErrors(t *testing.T) {
	for _, in := range []string{"weekly", "monthly:x", "custom", "hourly", "daily:1", "weekly:300"} {
		_, err := ParseSchedule(in)
		require.Error(t, err, in)
	}
}

func TestPositionJSONKeepsSchedule(t *testing.T) {
	pos := StakePosition{StakedAmount: 5, Schedule: Weekly(3), AutoClaimEnabled: true}
	raw, err := json.Marshal(pos)
	require.NoError(t, err)
	require.Contains(t, string(raw), `"schedule":"weekly:3"`)

	var back StakePosition
	require.NoError(t, json.Unmarshal(raw, &back))
	require.Equal(t, pos, back)
}

func TestClaimModeString(t *testing.T) {
	require.Equal(t, "automatic", Automatic.String())
	require.Equal(t, "forced", Forced.String())
}
