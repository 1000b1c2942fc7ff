package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/johnayoung/go-crypto-datautil/internal/collector"
	"github.com/johnayoung/go-crypto-datautil/internal/config"
	apperrors "github.com/johnayoung/go-crypto-datautil/internal/errors"
	"github.com/johnayoung/go-crypto-datautil/internal/exchange"
	"github.com/johnayoung/go-crypto-datautil/internal/gaps"
	"github.com/johnayoung/go-crypto-datautil/internal/models"
	"github.com/johnayoung/go-crypto-datautil/internal/resample"
	"github.com/johnayoung/go-crypto-datautil/internal/storage"
	"github.com/johnayoung/go-crypto-datautil/internal/table"
)

// Partition read engines.
const (
	EngineNative = "native"
	EngineDuckDB = "duckdb"
)

// partitionDir is dir, or the default layout under the configured root.
func (a *app) partitionDir(dir, exchangeName, symbol, period string) string {
	if dir != "" {
		return dir
	}
	return filepath.Join(a.cfg.Partition.RootDir, storage.DefaultDir(exchangeName, symbol, period))
}

// newDownloader builds the daily downloader of one symbol.
func (a *app) newDownloader(exchangeName, symbol, period, dir string, log *slog.Logger) (*collector.Downloader, error) {
	p, err := resample.ParsePeriod(period)
	if err != nil {
		return nil, err
	}
	archive, err := exchange.NewTradeArchive(a.cfg, exchangeName, symbol,
		exchange.WithLogger(log), exchange.WithMetrics(a.recorder()))
	if err != nil {
		return nil, err
	}
	ex, _ := a.cfg.Exchange(exchangeName)
	store := storage.NewFileStore(a.partitionDir(dir, exchangeName, symbol, period))
	return collector.NewDownloader(archive, store, p,
		collector.WithLogger(log),
		collector.WithMetrics(a.recorder()),
		collector.WithRequestInterval(ex.Interval()))
}

func printJob(cmd *cobra.Command, job *models.Job) {
	fmt.Fprintln(cmd.OutOrStdout(), job.Summary())
	for _, day := range job.Failed {
		fmt.Fprintf(cmd.OutOrStdout(), "  failed: %s\n", day)
	}
}

func newDailyCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "daily",
		Short: "Maintain directories of daily candle partitions",
	}
	cmd.AddCommand(newDailySaveCommand(a), newDailyDownsampleCommand(a), newDailyReadCommand(a))
	return cmd
}

func newDailySaveCommand(a *app) *cobra.Command {
	var exchangeName, symbol, period, start, end, dir string
	cmd := &cobra.Command{
		Use:     "save",
		Short:   "Build daily candle partitions from a trade archive",
		Example: `  datautil daily save --exchange bybit_archive --symbol BTCUSD --period 1min --start 2021/01/01 --end 2021/01/31`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			log := a.component("daily").With("period", period)
			d, err := a.newDownloader(exchangeName, symbol, period, dir, log)
			if err != nil {
				return err
			}
			job, err := d.SaveDaily(cmd.Context(), start, end)
			if job != nil {
				printJob(cmd, job)
			}
			return err
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&exchangeName, "exchange", config.ExchangeBybitArchive, "trade archive: bybit_archive, gmo")
	flags.StringVar(&symbol, "symbol", "", "instrument symbol")
	flags.StringVar(&period, "period", "1min", "candle period")
	flags.StringVar(&start, "start", "", "first day, YYYY/MM/DD")
	flags.StringVar(&end, "end", "", "last day, YYYY/MM/DD")
	flags.StringVar(&dir, "dir", "", "partition directory (default {root}/{exchange}/{symbol}/ohlcv/{period})")
	_ = cmd.MarkFlagRequired("symbol")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")
	return cmd
}

func newDailyDownsampleCommand(a *app) *cobra.Command {
	var in, out, period string
	var workers int
	cmd := &cobra.Command{
		Use:     "downsample",
		Short:   "Rebuild every partition of a directory at a longer period",
		Example: `  datautil daily downsample --in ./bybit/BTCUSD/ohlcv/1min --out ./bybit/BTCUSD/ohlcv/1H --period 1H`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := resample.ParsePeriod(period)
			if err != nil {
				return err
			}
			log := a.component("daily").With("in", in, "out", out, "period", period)
			job, err := collector.DownsampleDaily(cmd.Context(), storage.NewFileStore(in), storage.NewFileStore(out), p,
				collector.DownsampleOptions{Workers: workers, Logger: log})
			if job != nil {
				printJob(cmd, job)
			}
			return err
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&in, "in", "", "source partition directory")
	flags.StringVar(&out, "out", "", "target partition directory")
	flags.StringVar(&period, "period", "", "target period, e.g. 5min, 1H, 1D")
	flags.IntVar(&workers, "workers", 0, "days processed at once (default GOMAXPROCS)")
	_ = cmd.MarkFlagRequired("in")
	_ = cmd.MarkFlagRequired("out")
	_ = cmd.MarkFlagRequired("period")
	return cmd
}

func newDailyReadCommand(a *app) *cobra.Command {
	var dir, start, end, period, engine, format, out string
	var ignoreDefect bool
	var limit int
	cmd := &cobra.Command{
		Use:     "read",
		Short:   "Read a range of daily partitions as one series",
		Example: `  datautil daily read --dir ./bybit/BTCUSD/ohlcv/1min --start 2021/01/01 --end 2021/01/07 --period 1H --engine duckdb`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var p time.Duration
			if period != "" {
				var err error
				if p, err = resample.ParsePeriod(period); err != nil {
					return err
				}
			}
			if !cmd.Flags().Changed("ignore-defect") {
				ignoreDefect = a.cfg.Partition.IgnoreDefect
			}
			if engine == "" {
				engine = a.cfg.Partition.Engine
			}

			log := a.component("daily").With("dir", dir, "engine", engine)
			reader, closeFn, err := a.rangeReader(dir, engine, ignoreDefect, log)
			if err != nil {
				return err
			}
			defer closeFn()

			candles, err := reader.ReadRange(cmd.Context(), start, end, p)
			if err != nil {
				return err
			}
			log.Info("read csv", "rows", len(candles), "start", start, "end", end)
			return saveFrame(cmd.OutOrStdout(), out, "ohlcv", table.FromCandles(candles, true), format, limit)
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&dir, "dir", "", "partition directory")
	flags.StringVar(&start, "start", "", "first day, YYYY/MM/DD")
	flags.StringVar(&end, "end", "", "last day, YYYY/MM/DD")
	flags.StringVar(&period, "period", "", "downsample the result to this period")
	flags.BoolVar(&ignoreDefect, "ignore-defect", false, "skip missing days instead of failing")
	flags.StringVar(&engine, "engine", "", "read engine: native, duckdb (default from config)")
	flags.StringVar(&format, "format", FormatCSV, "output format: csv, json, table")
	flags.StringVarP(&out, "out", "o", "", "output file (default stdout)")
	flags.IntVar(&limit, "limit", 20, "rows shown by the table format")
	_ = cmd.MarkFlagRequired("dir")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")
	return cmd
}

// rangeReader opens the partition reader for engine. The returned function
// releases it.
func (a *app) rangeReader(dir, engine string, ignoreDefect bool, log *slog.Logger) (storage.RangeReader, func() error, error) {
	store := storage.NewFileStore(dir)
	switch strings.ToLower(engine) {
	case "", EngineNative:
		return storage.NewNativeScanner(store, ignoreDefect, log), func() error { return nil }, nil
	case EngineDuckDB:
		s, err := storage.NewDuckDBScanner(store, ignoreDefect, log)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	}
	return nil, nil, apperrors.Newf(apperrors.ErrorTypeConfiguration, "cli", "range_reader",
		"engine must be one of: native, duckdb, got %q", engine)
}

func newGapsCommand(a *app) *cobra.Command {
	var dir, start, end, format string
	cmd := &cobra.Command{
		Use:     "gaps",
		Short:   "Report missing days and missing candles in a partition directory",
		Example: `  datautil gaps --dir ./bybit/BTCUSD/ohlcv/1min --start 2021/01/01 --end 2021/01/31`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			log := a.component("gaps").With("dir", dir)
			report, err := gaps.NewDetector(storage.NewFileStore(dir), log).Scan(cmd.Context(), start, end)
			if err != nil {
				return err
			}
			logGaps(log, report)

			w := cmd.OutOrStdout()
			if format == FormatJSON {
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}
			if report.Empty() {
				fmt.Fprintf(w, "No gaps found in %s from %s to %s\n", dir, start, end)
				return nil
			}
			fmt.Fprint(w, report.String())
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&dir, "dir", "", "partition directory")
	flags.StringVar(&start, "start", "", "first day, YYYY/MM/DD")
	flags.StringVar(&end, "end", "", "last day, YYYY/MM/DD")
	flags.StringVar(&format, "format", "text", "output format: text, json")
	_ = cmd.MarkFlagRequired("dir")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")
	return cmd
}

func logGaps(log *slog.Logger, r *gaps.Report) {
	for _, g := range r.Days {
		log.Warn("missing day", "start", g.Start, "end", g.End)
	}
	for _, g := range r.Candles {
		log.Warn("missing candles", "start", g.Start, "end", g.End, "bars", g.Periods(r.Period))
	}
}

func newScheduleCommand(a *app) *cobra.Command {
	var exchangeName, period, spec string
	var symbols []string
	var lookback int
	var runNow bool
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run the daily partition download on a cron schedule until interrupted",
		Example: `  datautil schedule --symbol BTCUSD,ETHUSD --period 1min --cron "0 10 0 * * *" --lookback 3
  datautil schedule --config datautil.yaml`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sc := a.cfg.Scheduler
			if exchangeName == "" {
				exchangeName = sc.Exchange
			}
			if period == "" {
				period = sc.Period
			}
			if spec == "" {
				spec = sc.Cron
			}
			if len(symbols) == 0 {
				symbols = sc.Symbols
			}
			if lookback <= 0 {
				lookback = sc.LookbackDays
			}
			if len(symbols) == 0 {
				return apperrors.Newf(apperrors.ErrorTypeConfiguration, "cli", "schedule", "at least one --symbol is required")
			}

			ctx := cmd.Context()
			log := a.component("schedule")
			s := collector.NewScheduler(log)
			for _, symbol := range symbols {
				d, err := a.newDownloader(exchangeName, symbol, period, "", log.With("period", period))
				if err != nil {
					return err
				}
				id, err := s.AddDailyJob(spec, d, lookback)
				if err != nil {
					return err
				}
				if runNow {
					if job, err := s.RunDaily(ctx, d, lookback); err != nil {
						log.Error("initial run failed", "symbol", symbol, "error", err)
					} else {
						printJob(cmd, job)
					}
				}
				log.Info("job scheduled", "symbol", symbol, "cron", spec, "lookback_days", lookback, "next", s.Next(id))
			}

			s.Start()
			fmt.Fprintf(cmd.OutOrStdout(), "Scheduler started for %d symbols, press Ctrl+C to stop\n", len(symbols))
			<-ctx.Done()

			stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			return s.Stop(stopCtx)
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&exchangeName, "exchange", "", "trade archive (default from config)")
	flags.StringSliceVar(&symbols, "symbol", nil, "symbols to download (default from config)")
	flags.StringVar(&period, "period", "", "candle period (default from config)")
	flags.StringVar(&spec, "cron", "", "cron expression (default from config)")
	flags.IntVar(&lookback, "lookback", 0, "days downloaded on each run (default from config)")
	flags.BoolVar(&runNow, "run-now", false, "run every job once before waiting for the schedule")
	return cmd
}
