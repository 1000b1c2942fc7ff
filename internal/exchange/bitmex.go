package exchange

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/johnayoung/go-crypto-datautil/internal/config"
	apperrors "github.com/johnayoung/go-crypto-datautil/internal/errors"
	"github.com/johnayoung/go-crypto-datautil/internal/models"
)

const (
	bitmexHistoryPath = "/api/udf/history"
	bitmexPageRows    = 10000
)

var bitmexResolutions = map[int]string{1: "1", 5: "5", 60: "60", 1440: "1D"}

// BitMEX reads candles from the UDF history endpoint.
type BitMEX struct {
	*client
	symbol     string
	resolution string
	period     int64
}

// NewBitMEX supports 1, 5, 60 and 1440 minute candles.
func NewBitMEX(cfg config.ExchangeConfig, symbol string, periodMin int, opts ...Option) (*BitMEX, error) {
	res, ok := bitmexResolutions[periodMin]
	if !ok {
		return nil, apperrors.New(apperrors.ErrorTypeConfiguration, config.ExchangeBitMEX, "new",
			fmt.Errorf("%w: bitmex does not serve %d minute candles", apperrors.ErrInvalidPeriod, periodMin))
	}
	return &BitMEX{
		client:     newClient(config.ExchangeBitMEX, cfg, opts...),
		symbol:     symbol,
		resolution: res,
		period:     int64(periodMin) * 60,
	}, nil
}

func (b *BitMEX) Name() string    { return config.ExchangeBitMEX }
func (b *BitMEX) Symbol() string  { return b.symbol }
func (b *BitMEX) Period() int64   { return b.period }
func (b *BitMEX) HasVolume() bool { return true }

type bitmexHistory struct {
	Status string    `json:"s"`
	Time   []int64   `json:"t"`
	Open   []float64 `json:"o"`
	High   []float64 `json:"h"`
	Low    []float64 `json:"l"`
	Close  []float64 `json:"c"`
	Volume []float64 `json:"v"`
}

func (b *BitMEX) FetchCandles(ctx context.Context, start, end int64) ([]models.Candle, error) {
	var out []models.Candle
	for _, w := range pageWindows(start, end, b.period*bitmexPageRows, b.period+1) {
		params := url.Values{}
		params.Set("symbol", b.symbol)
		params.Set("resolution", b.resolution)
		params.Set("from", strconv.FormatInt(w[0], 10))
		params.Set("to", strconv.FormatInt(w[1], 10))

		var resp bitmexHistory
		if err := b.getJSON(ctx, "udf_history", bitmexHistoryPath, params, nil, &resp); err != nil {
			b.logger.Warn("candle page failed", "symbol", b.symbol, "from", w[0], "to", w[1], "error", err)
			return finish(out, start, end), err
		}
		n := len(resp.Time)
		if len(resp.Open) != n || len(resp.High) != n || len(resp.Low) != n || len(resp.Close) != n || len(resp.Volume) != n {
			err := apperrors.New(apperrors.ErrorTypeParse, b.Name(), "udf_history",
				fmt.Errorf("%w: column lengths differ", apperrors.ErrParse))
			return finish(out, start, end), err
		}
		for i := 0; i < n; i++ {
			out = append(out, models.Candle{
				Time: resp.Time[i], Open: resp.Open[i], High: resp.High[i],
				Low: resp.Low[i], Close: resp.Close[i], Volume: resp.Volume[i],
			})
		}
		b.logger.Debug("candle page fetched", "symbol", b.symbol, "from", w[0], "rows", n)
	}
	return finish(out, start, end), nil
}
