package exchange

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/johnayoung/go-crypto-datautil/internal/config"
	apperrors "github.com/johnayoung/go-crypto-datautil/internal/errors"
	"github.com/johnayoung/go-crypto-datautil/internal/models"
	"github.com/johnayoung/go-crypto-datautil/internal/timeutil"
)

const (
	executionPageRows = 200
	// Below this many remaining requests the execution pager backs off.
	rateLimitFloor    = 5
	rateLimitCooldown = 10 * time.Second
)

// BybitPrivate reads account state from the signed v2 inverse API.
type BybitPrivate struct {
	*client
	apiKey    string
	apiSecret string
	pause     time.Duration
}

// NewBybitPrivate requires an API key and secret. cfg.Testnet selects the
// testnet endpoint.
func NewBybitPrivate(cfg config.ExchangeConfig, opts ...Option) (*BybitPrivate, error) {
	if cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, apperrors.Newf(apperrors.ErrorTypeConfiguration, config.ExchangeBybit, "new_private",
			"api_key and api_secret are required")
	}
	pause := cfg.Interval()
	if pause == 0 {
		pause = 500 * time.Millisecond
	}
	return &BybitPrivate{
		client:    newClient(config.ExchangeBybit, cfg, opts...),
		apiKey:    cfg.APIKey,
		apiSecret: cfg.APISecret,
		pause:     pause,
	}, nil
}

// sign adds api_key, timestamp and sign to params.
func (b *BybitPrivate) sign(params url.Values) url.Values {
	signed := url.Values{}
	for k, v := range params {
		signed[k] = append([]string(nil), v...)
	}
	signed.Set("api_key", b.apiKey)
	signed.Set("timestamp", strconv.FormatInt(b.now().UnixMilli(), 10))

	keys := make([]string, 0, len(signed))
	for k := range signed {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+signed.Get(k))
	}

	mac := hmac.New(sha256.New, []byte(b.apiSecret))
	mac.Write([]byte(strings.Join(parts, "&")))
	signed.Set("sign", hex.EncodeToString(mac.Sum(nil)))
	return signed
}

type bybitTicker struct {
	Symbol       string          `json:"symbol"`
	LastPrice    decimal.Decimal `json:"last_price"`
	BidPrice     decimal.Decimal `json:"bid_price"`
	AskPrice     decimal.Decimal `json:"ask_price"`
	MarkPrice    decimal.Decimal `json:"mark_price"`
	IndexPrice   decimal.Decimal `json:"index_price"`
	Volume24h    decimal.Decimal `json:"volume_24h"`
	OpenInterest decimal.Decimal `json:"open_interest"`
	FundingRate  decimal.Decimal `json:"funding_rate"`
}

// Ticker returns the public ticker, or nil when the symbol has none.
func (b *BybitPrivate) Ticker(ctx context.Context, symbol string) (*models.Ticker, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	var rows []bybitTicker
	if _, err := b.call(ctx, "tickers", "/v2/public/tickers", params, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	r := rows[0]
	return &models.Ticker{
		Symbol:       r.Symbol,
		LastPrice:    r.LastPrice.InexactFloat64(),
		BidPrice:     r.BidPrice.InexactFloat64(),
		AskPrice:     r.AskPrice.InexactFloat64(),
		MarkPrice:    r.MarkPrice.InexactFloat64(),
		IndexPrice:   r.IndexPrice.InexactFloat64(),
		Volume24h:    r.Volume24h.InexactFloat64(),
		OpenInterest: r.OpenInterest.InexactFloat64(),
		FundingRate:  r.FundingRate.InexactFloat64(),
	}, nil
}

type bybitPosition struct {
	Symbol            string          `json:"symbol"`
	Side              string          `json:"side"`
	Size              decimal.Decimal `json:"size"`
	WalletBalance     decimal.Decimal `json:"wallet_balance"`
	PositionMargin    decimal.Decimal `json:"position_margin"`
	EntryPrice        decimal.Decimal `json:"entry_price"`
	StopLoss          decimal.Decimal `json:"stop_loss"`
	TakeProfit        decimal.Decimal `json:"take_profit"`
	TrailingStop      decimal.Decimal `json:"trailing_stop"`
	LiqPrice          decimal.Decimal `json:"liq_price"`
	EffectiveLeverage decimal.Decimal `json:"effective_leverage"`
	UnrealisedPnL     decimal.Decimal `json:"unrealised_pnl"`
	OccClosingFee     decimal.Decimal `json:"occ_closing_fee"`
	OccFundingFee     decimal.Decimal `json:"occ_funding_fee"`
}

// Position returns the position and wallet balance for symbol.
func (b *BybitPrivate) Position(ctx context.Context, symbol string) (*models.Position, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	var p bybitPosition
	if _, err := b.call(ctx, "position_list", "/v2/private/position/list", b.sign(params), &p); err != nil {
		return nil, err
	}
	return &models.Position{
		Symbol:            p.Symbol,
		Side:              p.Side,
		Size:              p.Size.InexactFloat64(),
		WalletBalance:     p.WalletBalance.InexactFloat64(),
		PositionMargin:    p.PositionMargin.InexactFloat64(),
		EntryPrice:        p.EntryPrice.InexactFloat64(),
		StopLoss:          p.StopLoss.InexactFloat64(),
		TakeProfit:        p.TakeProfit.InexactFloat64(),
		TrailingStop:      p.TrailingStop.InexactFloat64(),
		LiqPrice:          p.LiqPrice.InexactFloat64(),
		EffectiveLeverage: p.EffectiveLeverage.InexactFloat64(),
		UnrealisedPnL:     p.UnrealisedPnL.InexactFloat64(),
		OccClosingFee:     p.OccClosingFee.InexactFloat64(),
		OccFundingFee:     p.OccFundingFee.InexactFloat64(),
	}, nil
}

type bybitOrder struct {
	OrderID     string          `json:"order_id"`
	Symbol      string          `json:"symbol"`
	OrderStatus string          `json:"order_status"`
	OrderType   string          `json:"order_type"`
	Side        string          `json:"side"`
	Price       decimal.Decimal `json:"price"`
	Qty         decimal.Decimal `json:"qty"`
	CumExecQty  decimal.Decimal `json:"cum_exec_qty"`
	UpdatedAt   string          `json:"updated_at"`
	TimeInForce string          `json:"time_in_force"`
	ExtFields   struct {
		ReduceOnly bool `json:"reduce_only"`
	} `json:"ext_fields"`
}

// OpenOrders lists orders that are New or PartiallyFilled.
func (b *BybitPrivate) OpenOrders(ctx context.Context, symbol string) ([]models.Order, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("order_status", models.OrderStatusNew+","+models.OrderStatusPartiallyFilled)
	var result struct {
		Data []bybitOrder `json:"data"`
	}
	if _, err := b.call(ctx, "order_list", "/v2/private/order/list", b.sign(params), &result); err != nil {
		return nil, err
	}

	out := make([]models.Order, 0, len(result.Data))
	for _, o := range result.Data {
		var updated float64
		if o.UpdatedAt != "" {
			ts, err := timeutil.StrToTime(o.UpdatedAt, "").Get()
			if err != nil {
				return nil, apperrors.New(apperrors.ErrorTypeParse, b.name, "order_list", err)
			}
			updated = float64(ts.UnixMicro()) / 1e6
		}
		out = append(out, models.Order{
			ID:          o.OrderID,
			Symbol:      o.Symbol,
			Status:      o.OrderStatus,
			OrderType:   o.OrderType,
			Side:        o.Side,
			Price:       o.Price.InexactFloat64(),
			Qty:         o.Qty.InexactFloat64(),
			CumExecQty:  o.CumExecQty.InexactFloat64(),
			UpdatedAt:   updated,
			TimeInForce: o.TimeInForce,
			ReduceOnly:  o.ExtFields.ReduceOnly,
		})
	}
	return out, nil
}

type bybitExecution struct {
	ExecID    string          `json:"exec_id"`
	ExecTime  decimal.Decimal `json:"exec_time"`
	ExecType  string          `json:"exec_type"`
	OrderType string          `json:"order_type"`
	Side      string          `json:"side"`
	ExecPrice decimal.Decimal `json:"exec_price"`
	ExecQty   decimal.Decimal `json:"exec_qty"`
	ExecValue decimal.Decimal `json:"exec_value"`
	FeeRate   decimal.Decimal `json:"fee_rate"`
	ExecFee   decimal.Decimal `json:"exec_fee"`
}

func (e bybitExecution) model() models.Execution {
	return models.Execution{
		ID:        e.ExecID,
		Time:      e.ExecTime.InexactFloat64(),
		Type:      e.ExecType,
		OrderType: e.OrderType,
		Side:      e.Side,
		Price:     e.ExecPrice.InexactFloat64(),
		Qty:       e.ExecQty.InexactFloat64(),
		Value:     e.ExecValue.InexactFloat64(),
		FeeRate:   e.FeeRate.InexactFloat64(),
		Fee:       e.ExecFee.InexactFloat64(),
	}
}

// Executions pages through the execution list from startTime (Unix seconds)
// until a page comes back empty. The result is sorted by time with exact
// duplicates removed.
func (b *BybitPrivate) Executions(ctx context.Context, symbol string, startTime int64) ([]models.Execution, error) {
	var out []models.Execution
	for page := 0; ; page++ {
		params := url.Values{}
		params.Set("symbol", symbol)
		params.Set("start_time", strconv.FormatInt(startTime, 10))
		params.Set("page", strconv.Itoa(page))
		params.Set("limit", strconv.Itoa(executionPageRows))

		var result struct {
			TradeList []bybitExecution `json:"trade_list"`
		}
		env, err := b.call(ctx, "execution_list", "/v2/private/execution/list", b.sign(params), &result)
		if err != nil {
			return nil, err
		}
		if len(result.TradeList) == 0 {
			break
		}
		for _, e := range result.TradeList {
			out = append(out, e.model())
		}
		b.logger.Info("execution page fetched",
			"symbol", symbol,
			"page", page,
			"last", out[len(out)-1].Time,
			"execs", len(out),
			"rate_limit_status", env.RateLimitStatus,
			"rate_limit", env.RateLimit,
			"reset_ms", env.RateLimitResetMs)

		wait := b.pause
		if env.RateLimitStatus < rateLimitFloor {
			wait = rateLimitCooldown
			b.logger.Warn("rate limit nearly exhausted, waiting", "wait", wait)
		}
		if err := b.sleep(ctx, wait); err != nil {
			return nil, err
		}
	}
	return models.SortExecutions(out), nil
}

// StatusReport renders ticker, position, balance and open orders as the
// <STATUS> text block. Times are shown in JST.
func (b *BybitPrivate) StatusReport(ctx context.Context, symbol string, now time.Time) (string, error) {
	tic, err := b.Ticker(ctx, symbol)
	if err != nil {
		return "", fmt.Errorf("get ticker: %w", err)
	}
	pos, err := b.Position(ctx, symbol)
	if err != nil {
		return "", fmt.Errorf("get position: %w", err)
	}
	orders, err := b.OpenOrders(ctx, symbol)
	if err != nil {
		return "", fmt.Errorf("get open orders: %w", err)
	}
	return FormatStatus(symbol, now, tic, pos, orders), nil
}
