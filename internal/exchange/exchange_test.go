package exchange

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/johnayoung/go-crypto-datautil/internal/config"
	apperrors "github.com/johnayoung/go-crypto-datautil/internal/errors"
	"github.com/johnayoung/go-crypto-datautil/internal/metrics"
)

func testExchangeConfig(baseURL string) config.ExchangeConfig {
	return config.ExchangeConfig{BaseURL: baseURL, Timeout: "5s"}
}

type recordingMetrics struct {
	metrics.Nop
	mu       sync.Mutex
	statuses []int
}

func (r *recordingMetrics) ObserveRequest(_, _ string, status int, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, status)
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	cfg := testExchangeConfig(server.URL)
	cfg.RetryPolicy = config.RetryPolicyConfig{MaxAttempts: 3, InitialDelay: "1ms", MaxDelay: "1ms", BackoffStrategy: "fixed"}
	rec := &recordingMetrics{}
	c := newClient("test", cfg, WithMetrics(rec))

	var out struct {
		OK bool `json:"ok"`
	}
	require.NoError(t, c.getJSON(context.Background(), "ping", "/ping", nil, nil, &out))
	assert.True(t, out.OK)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	assert.Equal(t, []int{500, 500, 200}, rec.statuses)
}

func TestClient_NoRetryByDefault(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	c := newClient("test", testExchangeConfig(server.URL))
	_, err := c.get(context.Background(), "ping", "/ping", nil, nil)
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeServerError))

	var statusErr *apperrors.HTTPStatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusBadGateway, statusErr.StatusCode)
}

func TestClient_StatusClassification(t *testing.T) {
	tests := []struct {
		status int
		want   apperrors.ErrorType
	}{
		{http.StatusTooManyRequests, apperrors.ErrorTypeRateLimit},
		{http.StatusUnauthorized, apperrors.ErrorTypeAuthentication},
		{http.StatusNotFound, apperrors.ErrorTypeBadRequest},
		{http.StatusServiceUnavailable, apperrors.ErrorTypeServerError},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Retry-After", "7")
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			_, err := newClient("test", testExchangeConfig(server.URL)).get(context.Background(), "x", "/x", nil, nil)
			assert.True(t, apperrors.IsType(err, tt.want))

			var statusErr *apperrors.HTTPStatusError
			require.True(t, errors.As(err, &statusErr))
			assert.Equal(t, 7*time.Second, statusErr.RetryAfter)
		})
	}
}

func TestClient_MalformedJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"t": [1,`))
	}))
	defer server.Close()

	var out bitmexHistory
	err := newClient("test", testExchangeConfig(server.URL)).getJSON(context.Background(), "x", "/x", nil, nil, &out)
	assert.True(t, errors.Is(err, apperrors.ErrParse))
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeParse))
}

func TestClient_ContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newClient("test", testExchangeConfig(server.URL)).get(ctx, "x", "/x", nil, nil)
	assert.Error(t, err)
}

func TestParseRetryAfter(t *testing.T) {
	assert.Equal(t, time.Duration(0), parseRetryAfter(""))
	assert.Equal(t, 30*time.Second, parseRetryAfter("30"))
	assert.Equal(t, time.Duration(0), parseRetryAfter("soon"))

	future := time.Now().Add(time.Minute).UTC().Format(http.TimeFormat)
	got := parseRetryAfter(future)
	assert.True(t, got > 50*time.Second && got <= time.Minute, got.String())
}

func TestPageWindows(t *testing.T) {
	assert.Equal(t, [][2]int64{{0, 100}, {101, 150}}, pageWindows(0, 150, 100, 1))
	assert.Equal(t, [][2]int64{{0, 100}, {100, 150}}, pageWindows(0, 150, 100, 0))
	assert.Empty(t, pageWindows(10, 10, 100, 0))
}

func TestNewCandleFetcher(t *testing.T) {
	cfg := config.DefaultConfig()

	f, err := NewCandleFetcher(cfg, "bitmex", "XBTUSD", 5, "")
	require.NoError(t, err)
	assert.Equal(t, "bitmex", f.Name())
	assert.Equal(t, int64(300), f.Period())

	f, err = NewCandleFetcher(cfg, "BYBIT", "BTCUSD", 1440, "mark")
	require.NoError(t, err)
	assert.Equal(t, "bybit_mark", f.Name())
	assert.False(t, f.HasVolume())

	f, err = NewCandleFetcher(cfg, "coinbase", "BTC-USD", 60, "")
	require.NoError(t, err)
	assert.True(t, f.HasVolume())

	_, err = NewCandleFetcher(cfg, "bitmex", "XBTUSD", 15, "")
	assert.True(t, errors.Is(err, apperrors.ErrInvalidPeriod))

	_, err = NewCandleFetcher(cfg, "gmo", "BTC", 1, "")
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeConfiguration))

	_, err = NewCandleFetcher(cfg, "kraken", "XBT", 1, "")
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeConfiguration))

	_, err = NewCandleFetcher(cfg, "bybit", "BTCUSD", 1, "funding")
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeConfiguration))
}

func TestNewTradeArchive(t *testing.T) {
	cfg := config.DefaultConfig()

	a, err := NewTradeArchive(cfg, "bybit_archive", "BTCUSD")
	require.NoError(t, err)
	assert.Equal(t, "bybit_archive", a.Name())

	a, err = NewTradeArchive(cfg, "gmo", "BTC")
	require.NoError(t, err)
	assert.Equal(t, "BTC", a.Symbol())

	_, err = NewTradeArchive(cfg, "bitmex", "XBTUSD")
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeConfiguration))
}
