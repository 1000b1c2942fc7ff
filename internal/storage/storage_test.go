package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/johnayoung/go-crypto-datautil/internal/errors"
	"github.com/johnayoung/go-crypto-datautil/internal/logger"
	"github.com/johnayoung/go-crypto-datautil/internal/models"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// minuteCandles builds n one-minute candles from the start of d.
func minuteCandles(d time.Time, n int) []models.Candle {
	out := make([]models.Candle, n)
	for i := range out {
		p := 100 + float64(i)
		out[i] = models.Candle{Time: d.Unix() + int64(i)*60, Open: p, High: p + 1, Low: p - 1, Close: p + 0.5, Volume: 1}
	}
	return out
}

func TestDayRange(t *testing.T) {
	days, err := DayRange("2021/02/27", "2021/03/02")
	require.NoError(t, err)
	require.Len(t, days, 4)
	assert.Equal(t, "20210227", DayName(days[0]))
	assert.Equal(t, "20210302", DayName(days[3]))

	_, err = DayRange("2021/03/02", "2021/03/01")
	assert.True(t, errors.Is(err, apperrors.ErrInvalidArgument))

	_, err = DayRange("2021-03-01", "2021/03/01")
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeParse))
}

func TestFileStore(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "bybit", "BTCUSD", "ohlcv", "1min")
	s := NewFileStore(dir)
	d1, d2 := day(2021, 1, 1), day(2021, 1, 2)

	ok, err := s.Exists(d1)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = s.Read(d1)
	assert.True(t, errors.Is(err, apperrors.ErrMissingPartition))

	rows := minuteCandles(d1, 3)
	require.NoError(t, s.Write(d1, rows))
	require.NoError(t, s.Write(d2, minuteCandles(d2, 2)))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	ok, err = s.Exists(d1)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.FileExists(t, filepath.Join(dir, "20210101.csv"))

	got, err := s.Read(d1)
	require.NoError(t, err)
	assert.Equal(t, rows, got)

	raw, err := os.ReadFile(s.Path(d1))
	require.NoError(t, err)
	assert.Contains(t, string(raw), "unixtime,open,high,low,close,volume\n1609459200,100,101,99,100.5,1\n")

	days, err := s.Days()
	require.NoError(t, err)
	assert.Equal(t, []time.Time{d1, d2}, days)
}

func TestFileStore_DaysMissingDir(t *testing.T) {
	_, err := NewFileStore(filepath.Join(t.TempDir(), "nope")).Days()
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeIO))
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore()
	d := day(2021, 5, 1)
	rows := minuteCandles(d, 2)
	require.NoError(t, s.Write(d, rows))
	rows[0].Close = -1

	got, err := s.Read(d)
	require.NoError(t, err)
	assert.Equal(t, 100.5, got[0].Close, "stored rows are copied")

	_, err = s.Read(day(2021, 5, 2))
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeLookup))
	assert.Equal(t, 1, s.Len())
	assert.Equal(t, ":memory:", s.Dir())
}

func TestScanRange(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	d1, d3 := day(2021, 1, 1), day(2021, 1, 3)
	require.NoError(t, s.Write(d1, minuteCandles(d1, 120)))
	require.NoError(t, s.Write(d3, minuteCandles(d3, 60)))

	_, err := ScanRange(ctx, s, "2021/01/01", "2021/01/03", ScanOptions{Logger: logger.Discard()})
	assert.True(t, errors.Is(err, apperrors.ErrMissingPartition))

	rows, err := ScanRange(ctx, s, "2021/01/01", "2021/01/03", ScanOptions{IgnoreDefect: true, Logger: logger.Discard()})
	require.NoError(t, err)
	assert.Len(t, rows, 180)
	assert.Equal(t, d1.Unix(), rows[0].Time)
	assert.Equal(t, d3.Unix()+59*60, rows[179].Time)

	hourly, err := ScanRange(ctx, s, "2021/01/01", "2021/01/03", ScanOptions{IgnoreDefect: true, Period: time.Hour, Logger: logger.Discard()})
	require.NoError(t, err)
	require.Len(t, hourly, 3)
	assert.Equal(t, models.Candle{Time: d1.Unix() + 3600, Open: 160, High: 220, Low: 159, Close: 219.5, Volume: 60}, hourly[1])

	_, err = ScanRange(ctx, s, "2021/01/02", "2021/01/02", ScanOptions{IgnoreDefect: true, Logger: logger.Discard()})
	assert.True(t, errors.Is(err, apperrors.ErrMissingPartition), "nothing to read")
}

func TestNativeScanner(t *testing.T) {
	s := NewMemoryStore()
	d := day(2021, 1, 1)
	require.NoError(t, s.Write(d, minuteCandles(d, 10)))

	var r RangeReader = NewNativeScanner(s, false, logger.Discard())
	rows, err := r.ReadRange(context.Background(), "2021/01/01", "2021/01/01", 5*time.Minute)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, 5.0, rows[0].Volume)
}
