package exchange

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/johnayoung/go-crypto-datautil/internal/config"
	apperrors "github.com/johnayoung/go-crypto-datautil/internal/errors"
	"github.com/johnayoung/go-crypto-datautil/internal/models"
	"github.com/johnayoung/go-crypto-datautil/internal/timeutil"
)

// BybitArchive downloads the public daily trade dumps from public.bybit.com.
type BybitArchive struct {
	*client
	symbol string
}

// NewBybitArchive reads https://public.bybit.com/trading/{symbol}/ by default.
func NewBybitArchive(cfg config.ExchangeConfig, symbol string, opts ...Option) *BybitArchive {
	return &BybitArchive{client: newClient(config.ExchangeBybitArchive, cfg, opts...), symbol: symbol}
}

func (a *BybitArchive) Name() string   { return config.ExchangeBybitArchive }
func (a *BybitArchive) Symbol() string { return a.symbol }

// FetchDay returns the trades of the UTC day containing day, ascending.
func (a *BybitArchive) FetchDay(ctx context.Context, day time.Time) ([]models.Tick, error) {
	sym := url.PathEscape(a.symbol)
	path := fmt.Sprintf("/trading/%s/%s%s.csv.gz", sym, sym, day.UTC().Format("2006-01-02"))
	body, err := a.get(ctx, "trading_archive", path, nil, nil)
	if err != nil {
		return nil, err
	}
	return parseTradeArchive(body, a.Name(), func(s string) (float64, error) {
		d, err := decimal.NewFromString(s)
		if err != nil {
			return 0, err
		}
		return d.InexactFloat64(), nil
	})
}

// GMOArchive downloads the daily trade dumps of GMO Coin.
type GMOArchive struct {
	*client
	symbol string
}

// NewGMOArchive reads https://api.coin.z.com/data/trades/{symbol}/ by default.
func NewGMOArchive(cfg config.ExchangeConfig, symbol string, opts ...Option) *GMOArchive {
	return &GMOArchive{client: newClient(config.ExchangeGMO, cfg, opts...), symbol: symbol}
}

func (a *GMOArchive) Name() string   { return config.ExchangeGMO }
func (a *GMOArchive) Symbol() string { return a.symbol }

// FetchDay returns the trades of the UTC day containing day, ascending.
func (a *GMOArchive) FetchDay(ctx context.Context, day time.Time) ([]models.Tick, error) {
	d := day.UTC()
	sym := url.PathEscape(a.symbol)
	path := fmt.Sprintf("/data/trades/%s/%s/%s/%s_%s.csv.gz",
		sym, d.Format("2006"), d.Format("01"), d.Format("20060102"), sym)
	body, err := a.get(ctx, "trade_archive", path, nil, nil)
	if err != nil {
		return nil, err
	}
	return parseTradeArchive(body, a.Name(), func(s string) (float64, error) {
		t, err := timeutil.StrToTime(s, "%Y-%m-%d %H:%M:%S.%f").Get()
		if err != nil {
			return 0, err
		}
		return float64(t.UnixMicro()) / 1e6, nil
	})
}

// parseTradeArchive reads a gzip CSV with timestamp, side, size and price
// columns located by header name.
func parseTradeArchive(body []byte, component string, parseTime func(string) (float64, error)) ([]models.Tick, error) {
	zr, err := gzip.NewReader(bytes.NewReader(body))
	if err != nil {
		return nil, apperrors.New(apperrors.ErrorTypeParse, component, "gunzip",
			fmt.Errorf("%w: %v", apperrors.ErrParse, err))
	}
	defer zr.Close()

	r := csv.NewReader(zr)
	r.ReuseRecord = true
	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, apperrors.New(apperrors.ErrorTypeParse, component, "read_header",
			fmt.Errorf("%w: %v", apperrors.ErrParse, err))
	}
	idx := map[string]int{}
	for i, h := range header {
		idx[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	for _, want := range []string{"timestamp", "side", "size", "price"} {
		if _, ok := idx[want]; !ok {
			return nil, apperrors.New(apperrors.ErrorTypeLookup, component, "read_header",
				fmt.Errorf("%w: %s", apperrors.ErrColumnNotFound, want))
		}
	}

	var ticks []models.Tick
	for line := 2; ; line++ {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, apperrors.New(apperrors.ErrorTypeParse, component, "read_row",
				fmt.Errorf("%w: line %d: %v", apperrors.ErrParse, line, err))
		}
		ts, err := parseTime(rec[idx["timestamp"]])
		if err != nil {
			return nil, rowError(component, line, "timestamp", err)
		}
		size, err := decimal.NewFromString(rec[idx["size"]])
		if err != nil {
			return nil, rowError(component, line, "size", err)
		}
		price, err := decimal.NewFromString(rec[idx["price"]])
		if err != nil {
			return nil, rowError(component, line, "price", err)
		}
		ticks = append(ticks, models.Tick{
			Time:  ts,
			Side:  normalizeSide(rec[idx["side"]]),
			Size:  size.InexactFloat64(),
			Price: price.InexactFloat64(),
		})
	}
	models.SortTicks(ticks)
	return ticks, nil
}

func rowError(component string, line int, column string, err error) error {
	return apperrors.New(apperrors.ErrorTypeParse, component, "read_row",
		fmt.Errorf("%w: line %d column %s: %v", apperrors.ErrParse, line, column, err))
}

func normalizeSide(s string) string {
	switch {
	case strings.EqualFold(s, models.SideBuy):
		return models.SideBuy
	case strings.EqualFold(s, models.SideSell):
		return models.SideSell
	}
	return s
}
