package recorder

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"

	"YieldFlow/internal/logger"
	"YieldFlow/internal/model"
)

func newRecorder(t *testing.T) *SQLiteRecorder {
	t.Helper()
	log := logger.Discard()
	r, err := NewSQLiteRecorder(log, filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func TestSQLiteRecorder_PayoutAssignsID(t *testing.T) {
	r := newRecorder(t)
	owner := solana.NewWallet().PublicKey()

	evt := &PayoutEvent{
		Owner:      owner,
		Mode:       model.Forced,
		Rate:       1_100_000_000,
		AmountPaid: 1_000_000_000,
		Fee:        25_000_000,
		NetAmount:  975_000_000,
		At:         1_704_283_200,
	}
	require.NoError(t, r.RecordPayout(evt))
	require.Len(t, evt.ID, 36)

	var mode, storedOwner string
	require.NoError(t, r.db.QueryRow(`SELECT mode, owner FROM payouts WHERE id = ?`, evt.ID).Scan(&mode, &storedOwner))
	require.Equal(t, "forced", mode)
	require.Equal(t, owner.String(), storedOwner)
}

func TestSQLiteRecorder_Summarize(t *testing.T) {
	r := newRecorder(t)
	owner := solana.NewWallet().PublicKey()

	require.NoError(t, r.RecordPayout(&PayoutEvent{Owner: owner, AmountPaid: 100, Fee: 1, At: 10}))
	require.NoError(t, r.RecordPayout(&PayoutEvent{Owner: owner, AmountPaid: 200, Fee: 2, At: 20}))
	require.NoError(t, r.RecordPayout(&PayoutEvent{Owner: owner, AmountPaid: 400, Fee: 4, At: 30}))
	require.NoError(t, r.RecordRejection(&RejectionEvent{Owner: owner, Code: 31, Kind: "gating", Reason: "payout not due", At: 25}))

	s, err := r.Summarize(20)
	require.NoError(t, err)
	require.Equal(t, Summary{Payouts: 2, Rejections: 1, AmountPaid: 600, Fees: 6}, s)

	s, err = r.Summarize(100)
	require.NoError(t, err)
	require.Equal(t, Summary{}, s)
}

func TestSQLiteRecorder_ScheduleAndStakeEvents(t *testing.T) {
	r := newRecorder(t)
	owner := solana.NewWallet().PublicKey()

	require.NoError(t, r.RecordScheduleChange(&ScheduleChange{
		Owner:     owner,
		Schedule:  model.Weekly(3),
		AutoClaim: true,
		MinAmount: 5,
		At:        1,
	}))
	require.NoError(t, r.RecordStake(&StakeEvent{Owner: owner, EventType: "OPEN", Amount: 10, StakedAfter: 10, At: 1}))

	var schedule string
	require.NoError(t, r.db.QueryRow(`SELECT schedule FROM schedule_changes`).Scan(&schedule))
	require.Equal(t, "weekly:3", schedule)

	var eventType string
	err := r.db.QueryRow(`SELECT event_type FROM stake_events WHERE owner = ?`, owner.String()).Scan(&eventType)
	require.NoError(t, err)
	require.Equal(t, "OPEN", eventType)

	err = r.db.QueryRow(`SELECT event_type FROM stake_events WHERE owner = ?`, "nobody").Scan(&eventType)
	require.ErrorIs(t, err, sql.ErrNoRows)
}

func TestNoopRecorder(t *testing.T) {
	var r Recorder = NewNoopRecorder()
	require.NoError(t, r.RecordPayout(&PayoutEvent{}))
	s, err := r.Summarize(0)
	require.NoError(t, err)
	require.Equal(t, Summary{}, s)
	require.NoError(t, r.Close())
}
