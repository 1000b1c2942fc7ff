// Package collector builds daily OHLCV partitions from exchange trade
// archives, rebuilds them at longer periods, and runs the download on a cron
// schedule.
package collector

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	apperrors "github.com/johnayoung/go-crypto-datautil/internal/errors"
	"github.com/johnayoung/go-crypto-datautil/internal/logger"
	"github.com/johnayoung/go-crypto-datautil/internal/metrics"
	"github.com/johnayoung/go-crypto-datautil/internal/models"
	"github.com/johnayoung/go-crypto-datautil/internal/resample"
	"github.com/johnayoung/go-crypto-datautil/internal/storage"
)

const component = "collector"

// DefaultRequestInterval is the pause between two archive downloads.
const DefaultRequestInterval = time.Second

// TradeArchive serves one UTC day of public trades.
type TradeArchive interface {
	Name() string
	Symbol() string
	FetchDay(ctx context.Context, day time.Time) ([]models.Tick, error)
}

// Option configures a Downloader.
type Option func(*Downloader)

// WithLogger sets the downloader logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Downloader) { d.logger = logger.OrDefault(l) }
}

// WithMetrics counts written partitions on r.
func WithMetrics(r metrics.Recorder) Option {
	return func(d *Downloader) { d.metrics = metrics.OrNop(r) }
}

// WithRequestInterval sets the pause between downloads. Zero disables it.
func WithRequestInterval(interval time.Duration) Option {
	return func(d *Downloader) { d.interval = interval }
}

// Downloader turns archive days into candle partitions.
type Downloader struct {
	archive  TradeArchive
	store    storage.PartitionStore
	period   time.Duration
	interval time.Duration
	logger   *slog.Logger
	metrics  metrics.Recorder
}

// NewDownloader writes period candles built from archive into store.
func NewDownloader(archive TradeArchive, store storage.PartitionStore, period time.Duration, opts ...Option) (*Downloader, error) {
	if period <= 0 || period%time.Second != 0 {
		return nil, apperrors.New(apperrors.ErrorTypeConfiguration, component, "new_downloader",
			fmt.Errorf("%w: %s", apperrors.ErrInvalidPeriod, period))
	}
	d := &Downloader{
		archive:  archive,
		store:    store,
		period:   period,
		interval: DefaultRequestInterval,
		logger:   logger.Discard(),
		metrics:  metrics.Nop{},
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = d.logger.With("component", component, "dir", store.Dir())
	return d, nil
}

func (d *Downloader) limiter() *rate.Limiter {
	if d.interval <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(d.interval), 1)
}

// SaveDaily writes one partition per day from startYMD to endYMD. Days that
// already have a partition are skipped; a day whose archive cannot be read is
// logged and recorded as failed. Only a store error stops the run.
func (d *Downloader) SaveDaily(ctx context.Context, startYMD, endYMD string) (*models.Job, error) {
	return d.saveDaily(ctx, models.JobTypeDownload, startYMD, endYMD)
}

func (d *Downloader) saveDaily(ctx context.Context, jobType models.JobType, startYMD, endYMD string) (*models.Job, error) {
	days, err := storage.DayRange(startYMD, endYMD)
	if err != nil {
		return nil, err
	}

	job := models.NewJob(jobType, d.archive.Name(), d.archive.Symbol(), d.period.String())
	job.StartDay, job.EndDay = startYMD, endYMD
	ctx = logger.WithJobID(ctx, job.ID)
	ctx = logger.WithExchange(ctx, d.archive.Name())
	ctx = logger.WithSymbol(ctx, d.archive.Symbol())
	log := d.logger
	if err := job.Start(); err != nil {
		return nil, err
	}
	log.InfoContext(ctx, "daily save started", "start", startYMD, "end", endYMD, "period", d.period)

	limiter := d.limiter()
	for _, day := range days {
		name := storage.DayName(day)
		ok, err := d.store.Exists(day)
		if err != nil {
			_ = job.Fail(err.Error())
			return job, err
		}
		if ok {
			job.RecordSkipped(name)
			continue
		}

		if err := limiter.Wait(ctx); err != nil {
			_ = job.Fail(err.Error())
			return job, err
		}
		candles, err := d.buildDay(ctx, day)
		if err != nil {
			if ctx.Err() != nil {
				_ = job.Fail(ctx.Err().Error())
				return job, ctx.Err()
			}
			log.WarnContext(ctx, "Failed to read the trading file", "day", name, "error", err)
			job.RecordFailed(name)
			continue
		}

		if err := d.store.Write(day, candles); err != nil {
			_ = job.Fail(err.Error())
			return job, err
		}
		d.metrics.IncPartitionWritten(d.archive.Name())
		job.RecordWritten(name)
		log.InfoContext(ctx, "partition written", "day", name, "rows", len(candles))
	}

	if err := job.Complete(); err != nil {
		return job, err
	}
	log.InfoContext(ctx, job.Summary())
	return job, nil
}

// buildDay downloads one day and resamples it. Buckets without trades
// between the first and last trade are filled at the previous close.
func (d *Downloader) buildDay(ctx context.Context, day time.Time) ([]models.Candle, error) {
	ticks, err := d.archive.FetchDay(ctx, day)
	if err != nil {
		return nil, err
	}
	if len(ticks) == 0 {
		return nil, apperrors.Newf(apperrors.ErrorTypeParse, component, "build_day", "no trades on %s", day.Format("2006-01-02"))
	}
	candles, err := resample.TradesToOHLCV(ticks, d.period)
	if err != nil {
		return nil, err
	}
	return resample.FillGaps(candles, d.period)
}
