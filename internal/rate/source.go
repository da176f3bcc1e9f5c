// Package rate reads the current receipt-token exchange rate, scaled by
// model.Precision. Sources never cache: every call observes the live rate.
package rate

import (
	"context"
	"sync"

	"YieldFlow/internal/errs"
	"YieldFlow/internal/metrics"
)

var (
	ErrSourceUnavailable = errs.Register(60, errs.KindCollaborator, "rate source unavailable")
	ErrInvalidRate       = errs.Register(61, errs.KindCollaborator, "invalid rate")
)

// Source reports the exchange rate between the receipt token and the base
// asset. A rate of model.Precision means one to one.
type Source interface {
	CurrentRate(ctx context.Context) (uint64, error)
	Name() string
}

// Observe wraps CurrentRate with the fetch counter.
func Observe(ctx context.Context, src Source) (uint64, error) {
	r, err := src.CurrentRate(ctx)
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.RateFetchTotal.WithLabelValues(src.Name(), status).Inc()
	return r, err
}

// MockSource returns a controllable fixed rate for development and testing.
type MockSource struct {
	mu   sync.Mutex
	rate uint64
	err  error
}

func NewMockSource(rate uint64) *MockSource {
	return &MockSource{rate: rate}
}

func (m *MockSource) Name() string { return "mock" }

func (m *MockSource) CurrentRate(ctx context.Context) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	return m.rate, nil
}

// Set changes the rate returned from now on and clears any failure.
func (m *MockSource) Set(rate uint64) {
	m.mu.Lock()
	m.rate, m.err = rate, nil
	m.mu.Unlock()
}

// Fail makes every call return err until the next Set.
func (m *MockSource) Fail(err error) {
	m.mu.Lock()
	m.err = err
	m.mu.Unlock()
}
