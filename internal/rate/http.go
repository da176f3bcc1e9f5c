package rate

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"YieldFlow/internal/retry"
)

// precisionDigits is log10(model.Precision).
const precisionDigits = 9

// HTTPSource reads a decimal price (e.g. "1.273845112") from a REST endpoint
// such as the Marinade msol/price_sol API.
type HTTPSource struct {
	URL    string
	Client *http.Client
	Retry  retry.Config
}

// NewHTTPSource creates a source with optional proxy support.
func NewHTTPSource(endpoint, proxyURL string) *HTTPSource {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &HTTPSource{
		URL: endpoint,
		Client: &http.Client{
			Timeout:   15 * time.Second,
			Transport: transport,
		},
		Retry: retry.DefaultConfig(),
	}
}

func (s *HTTPSource) Name() string { return "http" }

func (s *HTTPSource) CurrentRate(ctx context.Context) (uint64, error) {
	var price decimal.Decimal
	err := retry.Do(ctx, s.Retry, func() error {
		p, err := s.fetch(ctx)
		if err != nil {
			return err
		}
		price = p
		return nil
	})
	if err != nil {
		return 0, ErrSourceUnavailable.Wrap(err)
	}
	return scalePrice(price)
}

func (s *HTTPSource) fetch(ctx context.Context) (decimal.Decimal, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return decimal.Zero, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.Client.Do(req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("fetch price: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return decimal.Zero, fmt.Errorf("read price: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, &retry.StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	// The API answers with a bare JSON number; quoted strings are accepted too.
	text := strings.Trim(strings.TrimSpace(string(body)), `"`)
	price, err := decimal.NewFromString(text)
	if err != nil {
		return decimal.Zero, ErrInvalidRate.Newf("decode price %q", text)
	}
	return price, nil
}

// scalePrice converts a decimal price into a Precision-scaled integer rate,
// truncating digits beyond the ninth decimal.
func scalePrice(price decimal.Decimal) (uint64, error) {
	if !price.IsPositive() {
		return 0, ErrInvalidRate.Newf("price %s", price)
	}
	scaled := price.Shift(precisionDigits).Truncate(0).BigInt()
	if !scaled.IsUint64() || scaled.Uint64() == 0 {
		return 0, ErrInvalidRate.Newf("price %s out of range", price)
	}
	return scaled.Uint64(), nil
}
