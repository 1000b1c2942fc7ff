package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/johnayoung/go-crypto-datautil/internal/config"
	apperrors "github.com/johnayoung/go-crypto-datautil/internal/errors"
	"github.com/johnayoung/go-crypto-datautil/internal/models"
)

// BybitKind selects which price series a Bybit fetcher reads.
type BybitKind string

const (
	BybitDefault BybitKind = "default"
	BybitMark    BybitKind = "mark"
	BybitIndex   BybitKind = "index"
	BybitPremium BybitKind = "premium"
)

const bybitPageRows = 200

var bybitKlinePaths = map[BybitKind]string{
	BybitDefault: "/v2/public/kline/list",
	BybitMark:    "/v2/public/mark-price-kline",
	BybitIndex:   "/v2/public/index-price-kline",
	BybitPremium: "/v2/public/premium-index-kline",
}

var bybitIntervals = map[int]string{
	1: "1", 3: "3", 5: "5", 15: "15", 30: "30", 60: "60", 120: "120",
	240: "240", 360: "360", 720: "720", 1440: "D", 10080: "W", 43200: "M",
}

// Bybit reads inverse perpetual klines. Only the default series has volume.
type Bybit struct {
	*client
	symbol   string
	kind     BybitKind
	interval string
	period   int64
}

// NewBybit builds a fetcher for one of the kline series. An empty kind means
// the traded price series.
func NewBybit(cfg config.ExchangeConfig, symbol string, periodMin int, kind BybitKind, opts ...Option) (*Bybit, error) {
	if kind == "" {
		kind = BybitDefault
	}
	if _, ok := bybitKlinePaths[kind]; !ok {
		return nil, apperrors.Newf(apperrors.ErrorTypeConfiguration, config.ExchangeBybit, "new",
			"unknown kline kind %q", kind)
	}
	iv, ok := bybitIntervals[periodMin]
	if !ok {
		return nil, apperrors.New(apperrors.ErrorTypeConfiguration, config.ExchangeBybit, "new",
			fmt.Errorf("%w: bybit does not serve %d minute candles", apperrors.ErrInvalidPeriod, periodMin))
	}
	return &Bybit{
		client:   newClient(config.ExchangeBybit, cfg, opts...),
		symbol:   symbol,
		kind:     kind,
		interval: iv,
		period:   int64(periodMin) * 60,
	}, nil
}

func (b *Bybit) Name() string {
	if b.kind == BybitDefault {
		return config.ExchangeBybit
	}
	return config.ExchangeBybit + "_" + string(b.kind)
}

func (b *Bybit) Symbol() string  { return b.symbol }
func (b *Bybit) Period() int64   { return b.period }
func (b *Bybit) HasVolume() bool { return b.kind == BybitDefault }
func (b *Bybit) Kind() BybitKind { return b.kind }

// bybitEnvelope is the common v2 response wrapper.
type bybitEnvelope struct {
	RetCode          int             `json:"ret_code"`
	RetMsg           string          `json:"ret_msg"`
	Result           json.RawMessage `json:"result"`
	RateLimitStatus  int             `json:"rate_limit_status"`
	RateLimitResetMs int64           `json:"rate_limit_reset_ms"`
	RateLimit        int             `json:"rate_limit"`
}

type bybitKline struct {
	OpenTime int64           `json:"open_time"`
	StartAt  int64           `json:"start_at"`
	Open     decimal.Decimal `json:"open"`
	High     decimal.Decimal `json:"high"`
	Low      decimal.Decimal `json:"low"`
	Close    decimal.Decimal `json:"close"`
	Volume   decimal.Decimal `json:"volume"`
}

func (k bybitKline) time() int64 {
	if k.OpenTime != 0 {
		return k.OpenTime
	}
	return k.StartAt
}

func (b *Bybit) FetchCandles(ctx context.Context, start, end int64) ([]models.Candle, error) {
	path := bybitKlinePaths[b.kind]
	var out []models.Candle
	for _, w := range pageWindows(start, end, b.period*bybitPageRows, 0) {
		params := url.Values{}
		params.Set("symbol", b.symbol)
		params.Set("interval", b.interval)
		params.Set("limit", strconv.Itoa(bybitPageRows))
		params.Set("from", strconv.FormatInt(w[0], 10))

		var rows []bybitKline
		if _, err := b.call(ctx, "kline_"+string(b.kind), path, params, &rows); err != nil {
			b.logger.Warn("candle page failed", "symbol", b.symbol, "kind", b.kind, "from", w[0], "error", err)
			return finish(out, start, end), err
		}
		for _, r := range rows {
			c := models.Candle{
				Time:  r.time(),
				Open:  r.Open.InexactFloat64(),
				High:  r.High.InexactFloat64(),
				Low:   r.Low.InexactFloat64(),
				Close: r.Close.InexactFloat64(),
			}
			if b.HasVolume() {
				c.Volume = r.Volume.InexactFloat64()
			}
			out = append(out, c)
		}
		b.logger.Debug("candle page fetched", "symbol", b.symbol, "kind", b.kind, "from", w[0], "rows", len(rows))
	}
	return finish(out, start, end), nil
}

// call performs a v2 request, checks ret_code and decodes result into out.
func (c *client) call(ctx context.Context, label, path string, params url.Values, out interface{}) (*bybitEnvelope, error) {
	var env bybitEnvelope
	if err := c.getJSON(ctx, label, path, params, nil, &env); err != nil {
		return nil, err
	}
	if env.RetCode != 0 {
		return &env, bybitError(c.name, label, env.RetCode, env.RetMsg)
	}
	if out != nil && len(env.Result) > 0 && string(env.Result) != "null" {
		if err := json.Unmarshal(env.Result, out); err != nil {
			return &env, apperrors.New(apperrors.ErrorTypeParse, c.name, label,
				fmt.Errorf("%w: decode result: %v", apperrors.ErrParse, err))
		}
	}
	return &env, nil
}

func bybitError(component, op string, code int, msg string) error {
	t := apperrors.ErrorTypeBadRequest
	switch code {
	case 10002, 10003, 10004, 10005:
		t = apperrors.ErrorTypeAuthentication
	case 10006, 10018:
		t = apperrors.ErrorTypeRateLimit
	}
	return apperrors.Newf(t, component, op, "ret_code %d: %s", code, msg)
}
