package collector

import (
	"context"
	"log/slog"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/johnayoung/go-crypto-datautil/internal/logger"
	"github.com/johnayoung/go-crypto-datautil/internal/models"
	"github.com/johnayoung/go-crypto-datautil/internal/resample"
	"github.com/johnayoung/go-crypto-datautil/internal/storage"
)

// DownsampleOptions tunes DownsampleDaily.
type DownsampleOptions struct {
	// Workers bounds the days processed at once. Zero means GOMAXPROCS.
	Workers int
	Logger  *slog.Logger
}

type dayOutcome int

const (
	daySkipped dayOutcome = iota
	dayWritten
)

// DownsampleDaily rebuilds every partition of in at period and writes it to
// out under the same day. Days that out already holds are skipped. The first
// read or write error cancels the remaining days.
func DownsampleDaily(ctx context.Context, in, out storage.PartitionStore, period time.Duration, opts DownsampleOptions) (*models.Job, error) {
	log := logger.OrDefault(opts.Logger).With("component", component, "in", in.Dir(), "out", out.Dir())
	days, err := in.Days()
	if err != nil {
		return nil, err
	}

	job := models.NewJob(models.JobTypeDownsample, "", "", period.String())
	if len(days) > 0 {
		job.StartDay = days[0].Format("2006/01/02")
		job.EndDay = days[len(days)-1].Format("2006/01/02")
	}
	if err := job.Start(); err != nil {
		return nil, err
	}
	log.Info("downsample started", "job_id", job.ID, "days", len(days), "period", period)

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	outcomes := make([]dayOutcome, len(days))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, day := range days {
		i, day := i, day
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			ok, err := out.Exists(day)
			if err != nil || ok {
				return err
			}
			rows, err := in.Read(day)
			if err != nil {
				return err
			}
			down, err := resample.Downsample(rows, period)
			if err != nil {
				return err
			}
			if err := out.Write(day, down); err != nil {
				return err
			}
			outcomes[i] = dayWritten
			log.Debug("partition downsampled", "day", storage.DayName(day), "rows", len(down))
			return nil
		})
	}
	waitErr := g.Wait()

	for i, day := range days {
		if outcomes[i] == dayWritten {
			job.RecordWritten(storage.DayName(day))
		} else if waitErr == nil {
			job.RecordSkipped(storage.DayName(day))
		}
	}
	if waitErr != nil {
		_ = job.Fail(waitErr.Error())
		log.Error("downsample failed", "job_id", job.ID, "error", waitErr)
		return job, waitErr
	}
	if err := job.Complete(); err != nil {
		return job, err
	}
	log.Info(job.Summary())
	return job, nil
}
