package notifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"

	"YieldFlow/internal/logger"
	"YieldFlow/internal/model"
	"YieldFlow/internal/position"
	"YieldFlow/internal/recorder"
	"YieldFlow/internal/retry"
)

func newTestNotifier(t *testing.T, h http.HandlerFunc) *TelegramNotifier {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	n := NewTelegramNotifier(logger.Discard(), "TOKEN", "42", "")
	n.APIBase = srv.URL
	n.Retry = retry.Config{MaxAttempts: 3, BaseBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond}
	return n
}

func TestSend(t *testing.T) {
	n := newTestNotifier(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/botTOKEN/sendMessage", r.URL.Path)
		var payload map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		require.Equal(t, "42", payload["chat_id"])
		require.Equal(t, "hello", payload["text"])
		require.Equal(t, "HTML", payload["parse_mode"])
		_, _ = w.Write([]byte(`{"ok":true}`))
	})
	require.NoError(t, n.Send(context.Background(), "hello"))
}

func TestSendWithRetry(t *testing.T) {
	var calls atomic.Int32
	n := newTestNotifier(t, func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	})
	require.NoError(t, n.SendWithRetry(context.Background(), "hello"))
	require.Equal(t, int32(2), calls.Load())
}

func TestSendWithRetryStopsOnClientError(t *testing.T) {
	var calls atomic.Int32
	n := newTestNotifier(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	})
	err := n.SendWithRetry(context.Background(), "hello")
	var se *retry.StatusError
	require.ErrorAs(t, err, &se)
	require.Equal(t, http.StatusBadRequest, se.Code)
	require.Equal(t, int32(1), calls.Load())
}

func TestStartPollingDispatchesCommands(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	replies := make(chan string, 1)
	var polls atomic.Int32
	n := newTestNotifier(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/botTOKEN/getUpdates":
			if polls.Add(1) == 1 {
				_, _ = w.Write([]byte(`{"ok":true,"result":[{"update_id":7,"message":{"text":" /sweep ","chat":{"id":42}}}]}`))
				return
			}
			require.Equal(t, "8", r.URL.Query().Get("offset"))
			_, _ = w.Write([]byte(`{"ok":true,"result":[]}`))
		case "/botTOKEN/sendMessage":
			var payload map[string]string
			_ = json.NewDecoder(r.Body).Decode(&payload)
			replies <- payload["text"]
			_, _ = w.Write([]byte(`{"ok":true}`))
		}
	})

	done := make(chan struct{})
	go func() {
		n.StartPolling(ctx, func(_ context.Context, cmd string) string { return "got " + cmd })
		close(done)
	}()

	select {
	case reply := <-replies:
		require.Equal(t, "got /sweep", reply)
	case <-time.After(5 * time.Second):
		t.Fatal("no reply sent")
	}
	cancel()
	<-done
}

func TestStartPollingIgnoresOtherChats(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	handled := make(chan string, 4)
	var polls atomic.Int32
	n := newTestNotifier(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/botTOKEN/getUpdates":
			if polls.Add(1) == 1 {
				_, _ = w.Write([]byte(`{"ok":true,"result":[
					{"update_id":1,"message":{"text":"/claim stranger","chat":{"id":99}}},
					{"update_id":2,"message":{"text":"/claim nochat"}},
					{"update_id":3,"message":{"text":"/claim ours","chat":{"id":42}}}
				]}`))
				return
			}
			_, _ = w.Write([]byte(`{"ok":true,"result":[]}`))
		case "/botTOKEN/sendMessage":
			_, _ = w.Write([]byte(`{"ok":true}`))
		}
	})

	done := make(chan struct{})
	go func() {
		n.StartPolling(ctx, func(_ context.Context, cmd string) string {
			handled <- cmd
			return ""
		})
		close(done)
	}()

	select {
	case cmd := <-handled:
		require.Equal(t, "/claim ours", cmd)
	case <-time.After(5 * time.Second):
		t.Fatal("command from own chat not handled")
	}
	cancel()
	<-done
	require.Empty(t, handled)
}

func TestFromOwnChat(t *testing.T) {
	n := NewTelegramNotifier(logger.Discard(), "TOKEN", "@ops", "")
	var u telegramUpdate
	require.NoError(t, json.Unmarshal([]byte(`{"message":{"text":"x","chat":{"id":5,"username":"ops"}}}`), &u))
	require.True(t, n.fromOwnChat(u))

	n.ChatID = ""
	require.False(t, n.fromOwnChat(u))
}

func TestFormatAmount(t *testing.T) {
	require.Equal(t, "1.500000000", FormatAmount(1_500_000_000))
	require.Equal(t, "0.000000001", FormatAmount(1))
	require.Equal(t, "0.000000000", FormatAmount(0))
	require.Equal(t, "18446744073.709551615", FormatAmount(^uint64(0)))
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in      string
		want    uint64
		wantErr bool
	}{
		{in: "1", want: 1_000_000_000},
		{in: " 2.5 ", want: 2_500_000_000},
		{in: "0.000000001", want: 1},
		{in: "18446744073.709551615", want: ^uint64(0)},
		{in: "18446744073.709551616", wantErr: true},
		{in: "0.0000000001", wantErr: true},
		{in: "0", wantErr: true},
		{in: "-1", wantErr: true},
		{in: "ten", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAmount(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestFormatPosition(t *testing.T) {
	owner := solana.NewWallet().PublicKey()
	v := position.View{
		Position: model.StakePosition{
			Owner:            owner,
			StakedAmount:     10_000_000_000,
			BaseRate:         1_000_000_000,
			Schedule:         model.Weekly(3),
			AutoClaimEnabled: true,
			NextPayoutDueAt:  1_704_888_000,
		},
		Rate: 1_100_000_000,
		Owed: 1_000_000_000,
		Due:  true,
	}
	out := FormatPosition(v, Projection{RateBps: 100, Periods: 2, Label: "2 epochs"})
	require.Contains(t, out, owner.String())
	require.Contains(t, out, "Owed now: 1.000000000")
	require.Contains(t, out, "Schedule: weekly:3")
	require.Contains(t, out, "2024-01-10 12:00 UTC (due)")
	// 10 * 1.01^2 - 10 = 0.201
	require.Contains(t, out, "Projected yield (2 epochs at 100 bps): 0.201000000")
}

func TestFormatPayoutAndReports(t *testing.T) {
	owner := solana.NewWallet().PublicKey()
	out := FormatPayout(owner, model.ClaimOutcome{AmountPaid: 1_000_000_000, Fee: 10_000_000, NetAmount: 990_000_000, Mode: model.Forced})
	require.Contains(t, out, "(forced)")
	require.Contains(t, out, "net: 0.990000000")
	require.NotContains(t, out, "Next payout")

	report := FormatSweepReport(SweepReport{Positions: 3, Due: 2, Paid: 1, Failed: 1, FailureSamples: []string{"x: boom"}})
	require.Contains(t, report, "Positions: 3 | due: 2")
	require.Contains(t, report, "x: boom")

	daily := FormatDailyReport(0, recorder.Summary{Payouts: 4, AmountPaid: 2_000_000_000}, 9)
	require.Contains(t, daily, "Payouts: 4 (2.000000000)")
	require.Contains(t, daily, "Positions: 9")
}
