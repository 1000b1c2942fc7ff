package resample

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/johnayoung/go-crypto-datautil/internal/errors"
	"github.com/johnayoung/go-crypto-datautil/internal/models"
	"github.com/johnayoung/go-crypto-datautil/internal/table"
)

func TestParsePeriod(t *testing.T) {
	valid := map[string]time.Duration{
		"1S":   time.Second,
		"30s":  30 * time.Second,
		"5T":   5 * time.Minute,
		"5min": 5 * time.Minute,
		"T":    time.Minute,
		"1m":   time.Minute,
		"4H":   4 * time.Hour,
		"1h":   time.Hour,
		"1D":   24 * time.Hour,
		"1d":   24 * time.Hour,
	}
	for in, want := range valid {
		got, err := ParsePeriod(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	for _, in := range []string{"", "0S", "5X", "1W", "1M", "-1H", "1.5H"} {
		_, err := ParsePeriod(in)
		assert.True(t, errors.Is(err, apperrors.ErrInvalidPeriod), in)
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeConfiguration), in)
	}
}

func TestTradesToOHLCV(t *testing.T) {
	ticks := []models.Tick{
		{Time: 65.5, Side: models.SideSell, Size: 2, Price: 101},
		{Time: 60.0, Side: models.SideBuy, Size: 1, Price: 100},
		{Time: 119.9, Side: models.SideBuy, Size: 3, Price: 99},
		{Time: 300.1, Side: models.SideBuy, Size: 4, Price: 105},
	}
	out, err := TradesToOHLCV(ticks, time.Minute)
	require.NoError(t, err)

	require.Len(t, out, 2, "empty buckets are omitted")
	assert.Equal(t, models.Candle{Time: 60, Open: 100, High: 101, Low: 99, Close: 99, Volume: 6}, out[0])
	assert.Equal(t, models.Candle{Time: 300, Open: 105, High: 105, Low: 105, Close: 105, Volume: 4}, out[1])
	assert.Equal(t, 65.5, ticks[0].Time, "input is not reordered")

	_, err = TradesToOHLCV(ticks, 500*time.Millisecond)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidPeriod))
}

func TestTradesToOHLCV_EpochAligned(t *testing.T) {
	out, err := TradesToOHLCV([]models.Tick{{Time: 1609459261, Price: 1, Size: 1}}, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1609459200), out[0].Time)
}

func TestDownsample(t *testing.T) {
	candles := []models.Candle{
		{Time: 120, Open: 3, High: 4, Low: 2, Close: 3.5, Volume: 1},
		{Time: 0, Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 2},
		{Time: 60, Open: 1.5, High: 5, Low: 1, Close: 3, Volume: 3},
		{Time: 180, Open: 3.5, High: 3.6, Low: 3.4, Close: 3.5, Volume: 4},
	}
	out, err := Downsample(candles, 2*time.Minute)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, models.Candle{Time: 0, Open: 1, High: 5, Low: 0.5, Close: 3, Volume: 5}, out[0])
	assert.Equal(t, models.Candle{Time: 120, Open: 3, High: 4, Low: 2, Close: 3.5, Volume: 5}, out[1])
}

func TestDownsample_RejectsUpsample(t *testing.T) {
	candles := []models.Candle{{Time: 0}, {Time: 300}, {Time: 600}}

	_, err := Downsample(candles, time.Minute)
	assert.True(t, errors.Is(err, apperrors.ErrUpsample))

	_, err = Downsample(candles, 7*time.Minute)
	assert.True(t, errors.Is(err, apperrors.ErrUpsample), "not a multiple of the spacing")

	_, err = Downsample(candles, 15*time.Minute)
	assert.NoError(t, err)
}

// Aggregating ticks straight to a coarse period matches aggregating them to
// a fine period first and downsampling.
func TestAggregationIsAssociative(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	ticks := make([]models.Tick, 2000)
	for i := range ticks {
		ticks[i] = models.Tick{
			Time:  float64(1609459200) + rng.Float64()*86400,
			Size:  float64(rng.Intn(100) + 1),
			Price: 30000 + rng.Float64()*1000,
		}
	}

	for _, coarse := range []time.Duration{5 * time.Minute, time.Hour, 4 * time.Hour} {
		direct, err := TradesToOHLCV(ticks, coarse)
		require.NoError(t, err)

		fine, err := TradesToOHLCV(ticks, time.Minute)
		require.NoError(t, err)
		composed, err := Downsample(fine, coarse)
		require.NoError(t, err)

		require.Equal(t, len(direct), len(composed), coarse.String())
		for i := range direct {
			assert.Equal(t, direct[i].Time, composed[i].Time)
			assert.Equal(t, direct[i].Open, composed[i].Open)
			assert.Equal(t, direct[i].High, composed[i].High)
			assert.Equal(t, direct[i].Low, composed[i].Low)
			assert.Equal(t, direct[i].Close, composed[i].Close)
			assert.InDelta(t, direct[i].Volume, composed[i].Volume, 1e-9)
		}
	}
}

func TestFillGaps(t *testing.T) {
	candles := []models.Candle{
		{Time: 180, Open: 5, High: 6, Low: 4, Close: 5, Volume: 1},
		{Time: 0, Open: 1, High: 2, Low: 1, Close: 2, Volume: 1},
	}
	out, err := FillGaps(candles, time.Minute)
	require.NoError(t, err)
	require.Len(t, out, 4)
	assert.Equal(t, models.Candle{Time: 60, Open: 2, High: 2, Low: 2, Close: 2}, out[1])
	assert.Equal(t, models.Candle{Time: 120, Open: 2, High: 2, Low: 2, Close: 2}, out[2])

	empty, err := FillGaps(nil, time.Minute)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestFrameVariants(t *testing.T) {
	trades := table.FromTicks([]models.Tick{
		{Time: 1, Side: models.SideBuy, Size: 1, Price: 10},
		{Time: 2, Side: models.SideSell, Size: 2, Price: 12},
	})
	ohlcv, err := TradesFrameToOHLCV(trades, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, table.CandleColumns, ohlcv.Columns())
	assert.Equal(t, 1, ohlcv.Len())

	noVol := table.FromCandles([]models.Candle{{Time: 0, Close: 1}, {Time: 60, Close: 2}}, false)
	down, err := DownsampleFrame(noVol, 2*time.Minute)
	require.NoError(t, err)
	assert.False(t, down.HasColumn(table.ColVolume))
	closes, _ := down.Column(table.ColClose)
	assert.Equal(t, []float64{2}, closes)

	_, err = DownsampleFrame(table.NewFrame("x"), time.Minute)
	assert.True(t, errors.Is(err, apperrors.ErrColumnNotFound))
}
