package exchange

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/johnayoung/go-crypto-datautil/internal/errors"
	"github.com/johnayoung/go-crypto-datautil/internal/models"
)

var fixedNow = time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)

func newTestPrivate(t *testing.T, handler http.HandlerFunc, opts ...Option) *BybitPrivate {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := testExchangeConfig(server.URL)
	cfg.APIKey = "key"
	cfg.APISecret = "secret"
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	b, err := NewBybitPrivate(cfg, opts...)
	require.NoError(t, err)
	return b
}

func expectedSign(query string) string {
	mac := hmac.New(sha256.New, []byte("secret"))
	mac.Write([]byte(query))
	return hex.EncodeToString(mac.Sum(nil))
}

func TestNewBybitPrivate_RequiresCredentials(t *testing.T) {
	_, err := NewBybitPrivate(testExchangeConfig("http://localhost"))
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeConfiguration))
}

func TestBybitPrivate_SignsRequests(t *testing.T) {
	b := newTestPrivate(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "key", q.Get("api_key"))
		assert.Equal(t, "1609459200000", q.Get("timestamp"))
		want := expectedSign("api_key=key&symbol=BTCUSD&timestamp=1609459200000")
		assert.Equal(t, want, q.Get("sign"))
		_, _ = w.Write([]byte(`{"ret_code":0,"result":{"symbol":"BTCUSD","side":"Sell","size":300,"wallet_balance":"0.25","entry_price":"30000"}}`))
	})

	pos, err := b.Position(context.Background(), "BTCUSD")
	require.NoError(t, err)
	assert.Equal(t, "Sell", pos.Side)
	assert.Equal(t, -300.0, pos.SignedSize())
	assert.Equal(t, 0.25, pos.WalletBalance)
}

func TestBybitPrivate_SignUsesRawValues(t *testing.T) {
	b := newTestPrivate(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "New,PartiallyFilled", q.Get("order_status"))
		want := expectedSign("api_key=key&order_status=New,PartiallyFilled&symbol=BTCUSD&timestamp=1609459200000")
		assert.Equal(t, want, q.Get("sign"))
		_, _ = w.Write([]byte(`{"ret_code":0,"result":{"data":[` +
			`{"order_id":"a","order_status":"PartiallyFilled","order_type":"Limit","side":"Buy","price":"29000","qty":100,"cum_exec_qty":40,` +
			`"updated_at":"2021-01-01T00:00:00.000Z","time_in_force":"PostOnly","ext_fields":{"reduce_only":true}}]}}`))
	})

	orders, err := b.OpenOrders(context.Background(), "BTCUSD")
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, models.Order{
		ID: "a", Status: models.OrderStatusPartiallyFilled, OrderType: "Limit", Side: "Buy",
		Price: 29000, Qty: 100, CumExecQty: 40, UpdatedAt: 1609459200, TimeInForce: "PostOnly", ReduceOnly: true,
	}, orders[0])
}

func TestBybitPrivate_AuthError(t *testing.T) {
	b := newTestPrivate(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ret_code":10004,"ret_msg":"error sign!","result":null}`))
	})
	_, err := b.Position(context.Background(), "BTCUSD")
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeAuthentication))
}

func TestBybitPrivate_ExecutionsPaging(t *testing.T) {
	pages := []string{
		`{"ret_code":0,"rate_limit_status":3,"rate_limit":120,"rate_limit_reset_ms":1609459201000,"result":{"trade_list":[` +
			`{"exec_id":"2","exec_time":"1609459300","exec_type":"Trade","order_type":"Market","side":"Sell","exec_price":"29000","exec_qty":50,"exec_value":"0.0017","fee_rate":"0.00075","exec_fee":"0.0000013"},` +
			`{"exec_id":"1","exec_time":"1609459200","exec_type":"Trade","order_type":"Limit","side":"Buy","exec_price":"28900.5","exec_qty":100,"exec_value":"0.0034","fee_rate":"-0.00025","exec_fee":"-0.00000086"}]}}`,
		`{"ret_code":0,"rate_limit_status":100,"rate_limit":120,"result":{"trade_list":[` +
			`{"exec_id":"3","exec_time":"1609488000","exec_type":"Funding","order_type":"Funding","side":"Buy","exec_price":"29500","exec_qty":50,"exec_value":"0.0017","fee_rate":"0.0001","exec_fee":"0.00000017"}]}}`,
		`{"ret_code":0,"rate_limit_status":99,"result":{"trade_list":null}}`,
	}
	var seenPages []string
	var sleeps []time.Duration
	b := newTestPrivate(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "/v2/private/execution/list", r.URL.Path)
		assert.Equal(t, "1609000000", q.Get("start_time"))
		assert.Equal(t, "200", q.Get("limit"))
		seenPages = append(seenPages, q.Get("page"))
		idx := len(seenPages) - 1
		_, _ = w.Write([]byte(pages[idx]))
	}, WithSleeper(func(_ context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		return nil
	}))

	execs, err := b.Executions(context.Background(), "BTCUSD", 1609000000)
	require.NoError(t, err)

	assert.Equal(t, []string{"0", "1", "2"}, seenPages)
	assert.Equal(t, []time.Duration{10 * time.Second, 500 * time.Millisecond}, sleeps)
	require.Len(t, execs, 3)
	assert.Equal(t, []string{"1", "2", "3"}, []string{execs[0].ID, execs[1].ID, execs[2].ID})
	assert.Equal(t, 28900.5, execs[0].Price)
	assert.Equal(t, -0.00000086, execs[0].Fee)
	assert.True(t, execs[2].IsFunding())
}

func TestFormatStatus(t *testing.T) {
	tic := &models.Ticker{
		LastPrice: 30000.5, BidPrice: 30000, AskPrice: 30000.5, MarkPrice: 30001.23, IndexPrice: 30000.99,
		Volume24h: 123456789, OpenInterest: 987654, FundingRate: 0.0001,
	}
	pos := &models.Position{
		Side: "Buy", Size: 1000, PositionMargin: 0.01, EntryPrice: 29000, LiqPrice: 15000,
		EffectiveLeverage: 2, UnrealisedPnL: 0.002, OccClosingFee: 0.0001, OccFundingFee: 0.0002, WalletBalance: 0.5,
	}
	orders := []models.Order{{
		Status: models.OrderStatusNew, OrderType: "Limit", Side: "Sell", Price: 31000, Qty: 100, CumExecQty: 40,
		UpdatedAt: 1609459200, TimeInForce: "PostOnly", ReduceOnly: true,
	}}

	want := strings.Join([]string{
		"<STATUS> BTCUSD 2021/01/01 09:00:00",
		"[price]",
		"  ltp        : 30000.5",
		"  bid        : 30000.0",
		"  ask        : 30000.5",
		"  mark       : 30001.23",
		"  index      : 30000.99",
		"  vol_24     : 123,456,789",
		"  oi         : 987,654",
		"  fr         : 0.0100%",
		"[position]",
		"  side       : Buy",
		"  size       : 1,000 (0.01000000)",
		"  avr_entry  : 29000.00 (+1000.50)",
		"  stop_loss  : 0.0",
		"  take_profit: 0.0",
		"  trailing   : 0.0",
		"  liq_price  : 15000.0",
		"  unrealised : 0.00200000",
		"  leverage   : 2.00",
		"[balance]",
		"  wallet     : 0.50000000",
		"  available  : 0.49170000",
		"[open order]",
		"  [New    ]:LimitSell  [price]:31000.0  [qty]:40/100  [time]:2021/01/01 09:00:00  [option]:PostOnly,ReduceOnly",
		"",
	}, "\n")
	assert.Equal(t, want, FormatStatus("BTCUSD", fixedNow, tic, pos, orders))
}

func TestStatusReport(t *testing.T) {
	b := newTestPrivate(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v2/public/tickers":
			_, _ = w.Write([]byte(`{"ret_code":0,"result":[{"symbol":"BTCUSD","last_price":"30000.5","bid_price":"30000.0","ask_price":"30000.5","volume_24h":1000,"open_interest":2000,"funding_rate":"0.0001"}]}`))
		case "/v2/private/position/list":
			_, _ = w.Write([]byte(`{"ret_code":0,"result":{"side":"None","size":0,"wallet_balance":0.1}}`))
		case "/v2/private/order/list":
			_, _ = w.Write([]byte(`{"ret_code":0,"result":{"data":[]}}`))
		}
	})

	report, err := b.StatusReport(context.Background(), "BTCUSD", fixedNow)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(report, "<STATUS> BTCUSD 2021/01/01 09:00:00\n[price]\n"))
	assert.Contains(t, report, "  avr_entry  : 0.00 (+0.00)\n")
	assert.Contains(t, report, "  wallet     : 0.10000000\n")
	assert.NotContains(t, report, "[open order]")
}
