package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/shopspring/decimal"

	"github.com/johnayoung/go-crypto-datautil/internal/config"
	apperrors "github.com/johnayoung/go-crypto-datautil/internal/errors"
	"github.com/johnayoung/go-crypto-datautil/internal/models"
)

// Coinbase Pro API returns at most 300 candles per request.
const coinbasePageRows = 300

var coinbaseGranularities = map[int]bool{1: true, 5: true, 15: true, 60: true, 360: true, 1440: true}

// Coinbase reads candles from the public products endpoint.
type Coinbase struct {
	*client
	symbol string
	period int64
}

// NewCoinbase supports 1, 5, 15, 60, 360 and 1440 minute candles.
func NewCoinbase(cfg config.ExchangeConfig, symbol string, periodMin int, opts ...Option) (*Coinbase, error) {
	if !coinbaseGranularities[periodMin] {
		return nil, apperrors.New(apperrors.ErrorTypeConfiguration, config.ExchangeCoinbase, "new",
			fmt.Errorf("%w: coinbase does not serve %d minute candles", apperrors.ErrInvalidPeriod, periodMin))
	}
	return &Coinbase{
		client: newClient(config.ExchangeCoinbase, cfg, opts...),
		symbol: symbol,
		period: int64(periodMin) * 60,
	}, nil
}

func (c *Coinbase) Name() string    { return config.ExchangeCoinbase }
func (c *Coinbase) Symbol() string  { return c.symbol }
func (c *Coinbase) Period() int64   { return c.period }
func (c *Coinbase) HasVolume() bool { return true }

// coinbaseCandle is one [time, low, high, open, close, volume] row.
type coinbaseCandle [6]decimal.Decimal

func (r *coinbaseCandle) UnmarshalJSON(data []byte) error {
	var raw []decimal.Decimal
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) < 6 {
		return fmt.Errorf("candle row has %d fields, want 6", len(raw))
	}
	copy(r[:], raw[:6])
	return nil
}

func (r coinbaseCandle) model() models.Candle {
	return models.Candle{
		Time:   r[0].IntPart(),
		Low:    r[1].InexactFloat64(),
		High:   r[2].InexactFloat64(),
		Open:   r[3].InexactFloat64(),
		Close:  r[4].InexactFloat64(),
		Volume: r[5].InexactFloat64(),
	}
}

// FetchCandles pages from one period before start; rows outside [start, end)
// are dropped.
func (c *Coinbase) FetchCandles(ctx context.Context, start, end int64) ([]models.Candle, error) {
	path := "/products/" + url.PathEscape(c.symbol) + "/candles"
	var out []models.Candle
	for _, w := range pageWindows(start-c.period, end, c.period*coinbasePageRows, 0) {
		params := url.Values{}
		params.Set("granularity", fmt.Sprint(c.period))
		params.Set("start", time.Unix(w[0], 0).UTC().Format(time.RFC3339))
		params.Set("end", time.Unix(w[1], 0).UTC().Format(time.RFC3339))

		var rows []coinbaseCandle
		if err := c.getJSON(ctx, "candles", path, params, nil, &rows); err != nil {
			c.logger.Warn("candle page failed", "symbol", c.symbol, "start", w[0], "end", w[1], "error", err)
			return finish(out, start, end), err
		}
		for _, r := range rows {
			out = append(out, r.model())
		}
		c.logger.Debug("candle page fetched", "symbol", c.symbol, "start", w[0], "rows", len(rows))
	}
	return finish(out, start, end), nil
}
