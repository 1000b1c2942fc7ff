// Package exchange fetches market data from the supported venues.
//
// Candle fetchers page through an exchange's kline endpoint for a time range,
// trade archives download one day of public executions at a time and the
// Bybit private client reads the account state. All of them share one HTTP
// client that spaces requests with a token bucket, retries through the
// error classifier and records request metrics.
package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/johnayoung/go-crypto-datautil/internal/config"
	apperrors "github.com/johnayoung/go-crypto-datautil/internal/errors"
	"github.com/johnayoung/go-crypto-datautil/internal/logger"
	"github.com/johnayoung/go-crypto-datautil/internal/metrics"
	"github.com/johnayoung/go-crypto-datautil/internal/models"
)

const userAgent = "go-crypto-datautil/1.0"

// CandleFetcher retrieves OHLCV candles for one symbol at a fixed period.
type CandleFetcher interface {
	// Name identifies the source, e.g. "bitmex" or "bybit_mark".
	Name() string
	// Symbol is the instrument being fetched.
	Symbol() string
	// Period is the candle period in seconds.
	Period() int64
	// HasVolume reports whether the candles carry a volume column.
	HasVolume() bool
	// FetchCandles returns candles with start <= time < end, ascending and
	// unique by time. When a page fails the candles gathered so far are
	// returned together with the error.
	FetchCandles(ctx context.Context, start, end int64) ([]models.Candle, error)
}

// TradeArchive downloads one UTC day of public trades.
type TradeArchive interface {
	Name() string
	Symbol() string
	FetchDay(ctx context.Context, day time.Time) ([]models.Tick, error)
}

// Option customises the shared HTTP client.
type Option func(*client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *client) { c.http = hc }
}

// WithLogger sets the logger used for request and paging messages.
func WithLogger(l *slog.Logger) Option {
	return func(c *client) { c.logger = logger.OrDefault(l) }
}

// WithMetrics records request counts and latency on r.
func WithMetrics(r metrics.Recorder) Option {
	return func(c *client) { c.metrics = metrics.OrNop(r) }
}

// WithClock overrides the wall clock used for signing.
func WithClock(now func() time.Time) Option {
	return func(c *client) { c.now = now }
}

// WithSleeper overrides how the client waits between paged requests.
func WithSleeper(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(c *client) { c.sleep = sleep }
}

type client struct {
	name       string
	baseURL    string
	http       *http.Client
	limiter    *rate.Limiter
	policy     config.RetryPolicyConfig
	classifier *apperrors.ErrorClassifier
	metrics    metrics.Recorder
	logger     *slog.Logger
	now        func() time.Time
	sleep      func(ctx context.Context, d time.Duration) error
}

func newClient(name string, cfg config.ExchangeConfig, opts ...Option) *client {
	limit := rate.Inf
	if iv := cfg.Interval(); iv > 0 {
		limit = rate.Every(iv)
	}
	c := &client{
		name:    name,
		baseURL: strings.TrimRight(cfg.Endpoint(), "/"),
		http:    &http.Client{Timeout: cfg.TimeoutDuration()},
		limiter: rate.NewLimiter(limit, 1),
		policy:  cfg.RetryPolicy,
		metrics: metrics.Nop{},
		logger:  logger.Discard(),
		now:     time.Now,
		sleep:   sleepContext,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("exchange", name)
	c.classifier = apperrors.NewErrorClassifier(c.policy, c.logger)
	return c
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// get issues a GET against path, waiting on the limiter before every attempt
// and retrying per the exchange's policy. label names the endpoint in logs
// and metrics so that symbols in the path do not explode cardinality.
func (c *client) get(ctx context.Context, label, path string, params url.Values, header http.Header) ([]byte, error) {
	target := c.baseURL + path
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		target = path
	}
	if len(params) > 0 {
		target += "?" + params.Encode()
	}

	var body []byte
	err := c.classifier.Retry(ctx, c.policy, c.name, label, func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return apperrors.New(apperrors.ErrorTypeValidation, c.name, label, err)
		}
		req.Header.Set("User-Agent", userAgent)
		for k, vs := range header {
			for _, v := range vs {
				req.Header.Add(k, v)
			}
		}

		start := time.Now()
		resp, err := c.http.Do(req)
		if err != nil {
			c.metrics.ObserveRequest(c.name, label, 0, time.Since(start))
			return fmt.Errorf("request failed: %w", err)
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		c.metrics.ObserveRequest(c.name, label, resp.StatusCode, time.Since(start))
		if err != nil {
			return fmt.Errorf("failed to read response body: %w", err)
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return &apperrors.HTTPStatusError{
				StatusCode: resp.StatusCode,
				URL:        target,
				Body:       truncate(string(data), 512),
				RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
			}
		}
		body = data
		return nil
	})
	if err != nil {
		return nil, err
	}
	c.logger.Debug("request completed", "endpoint", label, "bytes", len(body))
	return body, nil
}

// getJSON is get followed by decoding the body into out.
func (c *client) getJSON(ctx context.Context, label, path string, params url.Values, header http.Header, out interface{}) error {
	if header == nil {
		header = http.Header{}
	}
	header.Set("Accept", "application/json")
	body, err := c.get(ctx, label, path, params, header)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return apperrors.New(apperrors.ErrorTypeParse, c.name, label,
			fmt.Errorf("%w: decode response: %v", apperrors.ErrParse, err))
	}
	return nil
}

func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(header); err == nil {
		return time.Duration(seconds) * time.Second
	}
	if t, err := http.ParseTime(header); err == nil {
		return time.Until(t)
	}
	return 0
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// pageWindows splits [start, end) into windows of at most step seconds. Each
// window's end is inclusive for the exchange, so the next window starts gap
// seconds after it.
func pageWindows(start, end, step, gap int64) [][2]int64 {
	var out [][2]int64
	for cur := start; cur < end; {
		to := cur + step
		if to > end {
			to = end
		}
		out = append(out, [2]int64{cur, to})
		cur = to + gap
	}
	return out
}

// finish sorts, dedupes and clips candles to [start, end).
func finish(candles []models.Candle, start, end int64) []models.Candle {
	models.SortCandles(candles)
	candles = models.DedupeCandles(candles)
	return models.FilterCandles(candles, start, end)
}

// NewCandleFetcher builds the candle fetcher for an exchange. periodMin is
// the candle period in minutes; kind selects a Bybit price series and must
// be empty for the other exchanges.
func NewCandleFetcher(cfg *config.AppConfig, exchange, symbol string, periodMin int, kind string, opts ...Option) (CandleFetcher, error) {
	ex, ok := cfg.Exchange(exchange)
	if !ok {
		return nil, apperrors.Newf(apperrors.ErrorTypeConfiguration, "exchange", "new_fetcher",
			"exchange %q is not configured", exchange)
	}
	switch strings.ToLower(exchange) {
	case config.ExchangeBitMEX:
		return NewBitMEX(ex, symbol, periodMin, opts...)
	case config.ExchangeBybit:
		return NewBybit(ex, symbol, periodMin, BybitKind(kind), opts...)
	case config.ExchangeCoinbase:
		return NewCoinbase(ex, symbol, periodMin, opts...)
	}
	return nil, apperrors.Newf(apperrors.ErrorTypeConfiguration, "exchange", "new_fetcher",
		"exchange %q has no candle endpoint", exchange)
}

// NewTradeArchive builds the daily trade archive for an exchange.
func NewTradeArchive(cfg *config.AppConfig, exchange, symbol string, opts ...Option) (TradeArchive, error) {
	ex, ok := cfg.Exchange(exchange)
	if !ok {
		return nil, apperrors.Newf(apperrors.ErrorTypeConfiguration, "exchange", "new_archive",
			"exchange %q is not configured", exchange)
	}
	switch strings.ToLower(exchange) {
	case config.ExchangeBybitArchive:
		return NewBybitArchive(ex, symbol, opts...), nil
	case config.ExchangeGMO:
		return NewGMOArchive(ex, symbol, opts...), nil
	}
	return nil, apperrors.Newf(apperrors.ErrorTypeConfiguration, "exchange", "new_archive",
		"exchange %q has no trade archive", exchange)
}
