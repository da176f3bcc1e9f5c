package recorder

import (
	"database/sql"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// SQLiteRecorder persists history to a SQLite database.
type SQLiteRecorder struct {
	log *slog.Logger
	db  *sql.DB
	mu  sync.Mutex
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(log *slog.Logger, dbPath string) (*SQLiteRecorder, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL so dashboards can read while the engine writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{log: log, db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Info("sqlite recorder opened", "path", dbPath)
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS payouts (
			id                 TEXT PRIMARY KEY,
			timestamp          INTEGER NOT NULL,
			owner              TEXT NOT NULL,
			mode               TEXT NOT NULL,
			rate               INTEGER,
			amount_paid        INTEGER,
			fee                INTEGER,
			net_amount         INTEGER,
			next_payout_due_at INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_payouts_ts ON payouts(timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_payouts_owner ON payouts(owner)`,

		`CREATE TABLE IF NOT EXISTS rejections (
			id        INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp INTEGER NOT NULL,
			owner     TEXT NOT NULL,
			mode      TEXT NOT NULL,
			code      INTEGER,
			kind      TEXT,
			reason    TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_rejections_ts ON rejections(timestamp)`,

		`CREATE TABLE IF NOT EXISTS schedule_changes (
			id                 INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp          INTEGER NOT NULL,
			owner              TEXT NOT NULL,
			schedule           TEXT NOT NULL,
			auto_claim         INTEGER,
			min_amount         INTEGER,
			next_payout_due_at INTEGER
		)`,

		`CREATE TABLE IF NOT EXISTS stake_events (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp    INTEGER NOT NULL,
			owner        TEXT NOT NULL,
			event_type   TEXT NOT NULL,
			amount       INTEGER,
			staked_after INTEGER,
			base_rate    INTEGER
		)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

func (r *SQLiteRecorder) RecordPayout(evt *PayoutEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if evt.ID == "" {
		evt.ID = uuid.NewString()
	}
	_, err := r.db.Exec(`INSERT INTO payouts
		(id, timestamp, owner, mode, rate, amount_paid, fee, net_amount, next_payout_due_at)
		VALUES (?,?,?,?,?,?,?,?,?)`,
		evt.ID, evt.At, evt.Owner.String(), evt.Mode.String(), evt.Rate,
		evt.AmountPaid, evt.Fee, evt.NetAmount, evt.NextPayoutDueAt,
	)
	return err
}

func (r *SQLiteRecorder) RecordRejection(evt *RejectionEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`INSERT INTO rejections
		(timestamp, owner, mode, code, kind, reason)
		VALUES (?,?,?,?,?,?)`,
		evt.At, evt.Owner.String(), evt.Mode.String(), evt.Code, evt.Kind, evt.Reason,
	)
	return err
}

func (r *SQLiteRecorder) RecordScheduleChange(evt *ScheduleChange) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`INSERT INTO schedule_changes
		(timestamp, owner, schedule, auto_claim, min_amount, next_payout_due_at)
		VALUES (?,?,?,?,?,?)`,
		evt.At, evt.Owner.String(), evt.Schedule.String(), evt.AutoClaim,
		evt.MinAmount, evt.NextPayoutDueAt,
	)
	return err
}

func (r *SQLiteRecorder) RecordStake(evt *StakeEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`INSERT INTO stake_events
		(timestamp, owner, event_type, amount, staked_after, base_rate)
		VALUES (?,?,?,?,?,?)`,
		evt.At, evt.Owner.String(), evt.EventType, evt.Amount, evt.StakedAfter, evt.BaseRate,
	)
	return err
}

// Summarize totals payouts and rejections recorded at or after since.
func (r *SQLiteRecorder) Summarize(since int64) (Summary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var (
		s          Summary
		paid, fees int64
	)
	err := r.db.QueryRow(`SELECT COUNT(*), COALESCE(SUM(amount_paid), 0), COALESCE(SUM(fee), 0)
		FROM payouts WHERE timestamp >= ?`, since).Scan(&s.Payouts, &paid, &fees)
	if err != nil {
		return Summary{}, fmt.Errorf("sum payouts: %w", err)
	}
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM rejections WHERE timestamp >= ?`, since).Scan(&s.Rejections); err != nil {
		return Summary{}, fmt.Errorf("count rejections: %w", err)
	}
	s.AmountPaid, s.Fees = uint64(paid), uint64(fees)
	return s, nil
}

func (r *SQLiteRecorder) Close() error {
	r.log.Info("closing sqlite recorder")
	return r.db.Close()
}
