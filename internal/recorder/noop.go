package recorder

// NoopRecorder is used when SQLite is not configured.
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (n *NoopRecorder) RecordPayout(_ *PayoutEvent) error            { return nil }
func (n *NoopRecorder) RecordRejection(_ *RejectionEvent) error      { return nil }
func (n *NoopRecorder) RecordScheduleChange(_ *ScheduleChange) error { return nil }
func (n *NoopRecorder) RecordStake(_ *StakeEvent) error              { return nil }
func (n *NoopRecorder) Summarize(_ int64) (Summary, error)           { return Summary{}, nil }
func (n *NoopRecorder) Close() error                                 { return nil }
