package collector

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/johnayoung/go-crypto-datautil/internal/errors"
	"github.com/johnayoung/go-crypto-datautil/internal/logger"
	"github.com/johnayoung/go-crypto-datautil/internal/metrics"
	"github.com/johnayoung/go-crypto-datautil/internal/models"
	"github.com/johnayoung/go-crypto-datautil/internal/storage"
)

func utcDay(m time.Month, d int) time.Time { return time.Date(2021, m, d, 0, 0, 0, 0, time.UTC) }

type fakeArchive struct {
	mu      sync.Mutex
	fetched []string
	missing map[string]bool
}

func (a *fakeArchive) Name() string   { return "bybit" }
func (a *fakeArchive) Symbol() string { return "BTCUSD" }

// FetchDay returns trades at 00:00:10, 00:00:50 and 00:03:20 of day.
func (a *fakeArchive) FetchDay(_ context.Context, day time.Time) ([]models.Tick, error) {
	name := storage.DayName(day)
	a.mu.Lock()
	a.fetched = append(a.fetched, name)
	a.mu.Unlock()
	if a.missing[name] {
		return nil, errors.New("404 Not Found")
	}
	base := float64(day.Unix())
	return []models.Tick{
		{Time: base + 50, Side: models.SideSell, Size: 2, Price: 99},
		{Time: base + 10, Side: models.SideBuy, Size: 1, Price: 100},
		{Time: base + 200, Side: models.SideBuy, Size: 3, Price: 101},
	}, nil
}

type partitionCounter struct {
	metrics.Nop
	mu      sync.Mutex
	written map[string]int
}

func (p *partitionCounter) IncPartitionWritten(exchange string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.written == nil {
		p.written = map[string]int{}
	}
	p.written[exchange]++
}

func TestNewDownloader_RejectsPeriod(t *testing.T) {
	_, err := NewDownloader(&fakeArchive{}, storage.NewMemoryStore(), 1500*time.Millisecond)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidPeriod))
}

func TestDownloader_SaveDaily(t *testing.T) {
	store := storage.NewMemoryStore()
	require.NoError(t, store.Write(utcDay(1, 2), []models.Candle{{Time: 1}}))

	archive := &fakeArchive{missing: map[string]bool{"20210103": true}}
	rec := &partitionCounter{}
	d, err := NewDownloader(archive, store, time.Minute,
		WithRequestInterval(0), WithMetrics(rec), WithLogger(logger.Discard()))
	require.NoError(t, err)

	job, err := d.SaveDaily(context.Background(), "2021/01/01", "2021/01/04")
	require.NoError(t, err)

	assert.Equal(t, models.StatusCompleted, job.Status)
	assert.Equal(t, models.JobTypeDownload, job.Type)
	assert.Equal(t, []string{"20210101", "20210104"}, job.Written)
	assert.Equal(t, []string{"20210102"}, job.Skipped)
	assert.Equal(t, []string{"20210103"}, job.Failed)
	assert.Equal(t, []string{"20210101", "20210103", "20210104"}, archive.fetched)
	assert.Equal(t, 2, rec.written["bybit"])

	rows, err := store.Read(utcDay(1, 1))
	require.NoError(t, err)
	base := utcDay(1, 1).Unix()
	assert.Equal(t, []models.Candle{
		{Time: base, Open: 100, High: 100, Low: 99, Close: 99, Volume: 3},
		{Time: base + 60, Open: 99, High: 99, Low: 99, Close: 99},
		{Time: base + 120, Open: 99, High: 99, Low: 99, Close: 99},
		{Time: base + 180, Open: 101, High: 101, Low: 101, Close: 101, Volume: 3},
	}, rows)

	// A second pass only retries the failed day.
	archive.fetched = nil
	job, err = d.SaveDaily(context.Background(), "2021/01/01", "2021/01/04")
	require.NoError(t, err)
	assert.Equal(t, []string{"20210103"}, archive.fetched)
	assert.Len(t, job.Skipped, 3)
}

func TestDownloader_SaveDailyBadRange(t *testing.T) {
	d, err := NewDownloader(&fakeArchive{}, storage.NewMemoryStore(), time.Minute, WithRequestInterval(0))
	require.NoError(t, err)
	_, err = d.SaveDaily(context.Background(), "2021/01/04", "2021/01/01")
	assert.True(t, errors.Is(err, apperrors.ErrInvalidArgument))
}

func TestDownloader_SaveDailyCancelled(t *testing.T) {
	d, err := NewDownloader(&fakeArchive{}, storage.NewMemoryStore(), time.Minute, WithRequestInterval(time.Hour))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	job, err := d.SaveDaily(ctx, "2021/01/01", "2021/01/02")
	assert.Error(t, err)
	assert.Equal(t, models.StatusFailed, job.Status)
}

func TestDownsampleDaily(t *testing.T) {
	in, out := storage.NewMemoryStore(), storage.NewMemoryStore()
	for _, day := range []time.Time{utcDay(3, 1), utcDay(3, 2), utcDay(3, 3)} {
		var rows []models.Candle
		for i := int64(0); i < 10; i++ {
			rows = append(rows, models.Candle{Time: day.Unix() + i*60, Open: 1, High: float64(i), Low: 1, Close: float64(i), Volume: 1})
		}
		require.NoError(t, in.Write(day, rows))
	}
	require.NoError(t, out.Write(utcDay(3, 2), nil))

	job, err := DownsampleDaily(context.Background(), in, out, 5*time.Minute, DownsampleOptions{Workers: 2, Logger: logger.Discard()})
	require.NoError(t, err)
	assert.Equal(t, []string{"20210301", "20210303"}, job.Written)
	assert.Equal(t, []string{"20210302"}, job.Skipped)
	assert.Equal(t, "2021/03/01", job.StartDay)

	rows, err := out.Read(utcDay(3, 3))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, models.Candle{Time: utcDay(3, 3).Unix() + 300, Open: 1, High: 9, Low: 1, Close: 9, Volume: 5}, rows[1])
}

func TestDownsampleDaily_Upsample(t *testing.T) {
	in := storage.NewMemoryStore()
	day := utcDay(3, 1)
	require.NoError(t, in.Write(day, []models.Candle{{Time: day.Unix()}, {Time: day.Unix() + 300}}))

	job, err := DownsampleDaily(context.Background(), in, storage.NewMemoryStore(), time.Minute, DownsampleOptions{Logger: logger.Discard()})
	assert.True(t, errors.Is(err, apperrors.ErrUpsample))
	assert.Equal(t, models.StatusFailed, job.Status)
}
