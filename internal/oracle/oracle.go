// Package oracle implements domain.PriceOracle against an HTTP price API
// with a Redis cache in front. Rates are native wei per 1e18 currency units.
package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/floorline/floorline/internal/domain"
)

// wad is the fixed-point scale for conversion rates.
var wad = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// Config holds the price-API endpoint parameters.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration

	// NativeCurrency and WrappedNative convert at identity.
	NativeCurrency string
	WrappedNative  string
}

// Oracle converts currency amounts to native-currency equivalents using
// historical rates. Missing rates are reported as domain.ErrNoPrice and are
// always fatal to the order being priced; transport failures are returned
// as-is so the caller can retry the batch.
type Oracle struct {
	cfg    Config
	http   *http.Client
	cache  domain.PriceCache
	logger *slog.Logger
}

// New creates an Oracle. The cache may be nil, in which case every lookup
// hits the API.
func New(cfg Config, cache domain.PriceCache, logger *slog.Logger) *Oracle {
	return &Oracle{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		cache:  cache,
		logger: logger.With(slog.String("component", "oracle")),
	}
}

// ToNative converts amount of currency into its native equivalent at time
// at. Native and wrapped-native amounts pass through unchanged.
func (o *Oracle) ToNative(ctx context.Context, currency string, amount *big.Int, at time.Time) (*big.Int, error) {
	if amount == nil {
		return nil, fmt.Errorf("oracle: nil amount for %s", currency)
	}
	if o.identity(currency) {
		return new(big.Int).Set(amount), nil
	}

	rate, err := o.rate(ctx, currency, at)
	if err != nil {
		return nil, err
	}

	out := new(big.Int).Mul(amount, rate)
	return out.Quo(out, wad), nil
}

func (o *Oracle) identity(currency string) bool {
	return equalAddr(currency, o.cfg.NativeCurrency) || equalAddr(currency, o.cfg.WrappedNative)
}

// rate returns native wei per 1e18 units of currency on the day of at,
// consulting the cache first.
func (o *Oracle) rate(ctx context.Context, currency string, at time.Time) (*big.Int, error) {
	if o.cache != nil {
		if cached, err := o.cache.Get(ctx, currency, at); err == nil {
			return cached, nil
		} else if !errors.Is(err, domain.ErrNotFound) {
			o.logger.Warn("price cache read failed",
				slog.String("currency", currency),
				slog.String("error", err.Error()),
			)
		}
	}

	rate, err := o.fetch(ctx, currency, at)
	if err != nil {
		return nil, err
	}

	if o.cache != nil {
		if err := o.cache.Set(ctx, currency, at, rate); err != nil {
			o.logger.Warn("price cache write failed",
				slog.String("currency", currency),
				slog.String("error", err.Error()),
			)
		}
	}
	return rate, nil
}

// priceResponse is the API's historical-rate payload.
type priceResponse struct {
	Rate string `json:"rate"`
}

func (o *Oracle) fetch(ctx context.Context, currency string, at time.Time) (*big.Int, error) {
	u, err := url.Parse(o.cfg.BaseURL + "/rates/native")
	if err != nil {
		return nil, fmt.Errorf("oracle: parse url: %w", err)
	}
	q := u.Query()
	q.Set("currency", currency)
	q.Set("timestamp", strconv.FormatInt(at.Unix(), 10))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("oracle: build request: %w", err)
	}
	if o.cfg.APIKey != "" {
		req.Header.Set("x-api-key", o.cfg.APIKey)
	}

	resp, err := o.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("oracle: fetch rate %s: %w", currency, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, domain.ErrNoPrice
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("oracle: fetch rate %s: status %d", currency, resp.StatusCode)
	}

	var pr priceResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return nil, fmt.Errorf("oracle: decode rate %s: %w", currency, err)
	}
	if pr.Rate == "" {
		return nil, domain.ErrNoPrice
	}

	rate, ok := new(big.Int).SetString(pr.Rate, 10)
	if !ok || rate.Sign() <= 0 {
		return nil, domain.ErrNoPrice
	}
	return rate, nil
}

// equalAddr compares addresses tolerating mixed case and 0x-prefixing
// between config and inputs.
func equalAddr(a, b string) bool {
	return normAddr(a) == normAddr(b)
}

func normAddr(s string) string {
	if len(s) >= 2 && (s[:2] == "0x" || s[:2] == "0X") {
		s = s[2:]
	}
	out := make([]byte, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'A' && c <= 'F' {
			c += 'a' - 'A'
		}
		out[i] = c
	}
	return string(out)
}

// Compile-time interface check.
var _ domain.PriceOracle = (*Oracle)(nil)
