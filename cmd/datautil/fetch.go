package main

import (
	"github.com/spf13/cobra"

	"github.com/johnayoung/go-crypto-datautil/internal/cache"
	"github.com/johnayoung/go-crypto-datautil/internal/config"
	"github.com/johnayoung/go-crypto-datautil/internal/exchange"
	"github.com/johnayoung/go-crypto-datautil/internal/table"
)

type fetchFlags struct {
	exchange string
	symbol   string
	start    string
	end      string
	useCache bool
	cacheDir string
	format   string
	out      string
	limit    int
}

func (f *fetchFlags) register(cmd *cobra.Command, defaultExchange string) {
	flags := cmd.Flags()
	flags.StringVar(&f.exchange, "exchange", defaultExchange, "exchange name")
	flags.StringVar(&f.symbol, "symbol", "", "instrument symbol")
	flags.StringVar(&f.start, "start", "", "range start, Unix seconds or date")
	flags.StringVar(&f.end, "end", "", "range end (exclusive), Unix seconds or date")
	flags.BoolVar(&f.useCache, "cache", true, "read and extend the local CSV cache")
	flags.StringVar(&f.cacheDir, "cache-dir", "", "cache directory (default from config)")
	flags.StringVar(&f.format, "format", FormatCSV, "output format: csv, json, table")
	flags.StringVarP(&f.out, "out", "o", "", "output file (default stdout)")
	flags.IntVar(&f.limit, "limit", 20, "rows shown by the table format")
	_ = cmd.MarkFlagRequired("symbol")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")
}

func (a *app) cachePath(f *fetchFlags, kind string, periodMin int) string {
	if !f.useCache {
		return ""
	}
	dir := f.cacheDir
	if dir == "" {
		dir = a.cfg.Cache.Dir
	}
	return cache.DefaultPath(dir, f.exchange, f.symbol, kind, periodMin)
}

func newOHLCVCommand(a *app) *cobra.Command {
	var (
		f         fetchFlags
		periodMin int
		kind      string
	)
	cmd := &cobra.Command{
		Use:   "ohlcv",
		Short: "Fetch candles from an exchange through the local cache",
		Example: `  datautil ohlcv --exchange bitmex --symbol XBTUSD --period 60 --start 2021-01-01 --end 2021-02-01
  datautil ohlcv --exchange bybit --symbol BTCUSD --kind mark --period 1 --start 1609459200 --end 1609462800 --format table`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			log := a.component("ohlcv").With("exchange", f.exchange, "symbol", f.symbol, "period", periodMin)

			start, end, err := parseRange(f.start, f.end)
			if err != nil {
				return err
			}
			fetcher, err := exchange.NewCandleFetcher(a.cfg, f.exchange, f.symbol, periodMin, kind,
				exchange.WithLogger(log), exchange.WithMetrics(a.recorder()))
			if err != nil {
				return err
			}

			path := a.cachePath(&f, kind, periodMin)
			res, err := cache.NewCandleCache(fetcher, path, cache.WithLogger(log), cache.WithMetrics(a.recorder())).
				Get(ctx, start, end)
			if err != nil {
				return err
			}
			if !res.Complete {
				log.Warn("candles are incomplete", "missing_spans", len(res.Missing), "first_missing", res.Missing[0].String())
			}
			log.Info("get df", "rows", len(res.Candles), "cache", path)

			frame := table.FromCandles(res.Candles, fetcher.HasVolume())
			return saveFrame(cmd.OutOrStdout(), f.out, "ohlcv", frame, f.format, f.limit)
		},
	}
	f.register(cmd, config.ExchangeBitMEX)
	cmd.Flags().IntVar(&periodMin, "period", 60, "candle period in minutes")
	cmd.Flags().StringVar(&kind, "kind", "", "bybit candle kind: mark, index, premium_index (empty for trades)")
	return cmd
}

func newTradesCommand(a *app) *cobra.Command {
	var f fetchFlags
	cmd := &cobra.Command{
		Use:   "trades",
		Short: "Fetch public trades from a daily trade archive through the local cache",
		Example: `  datautil trades --symbol BTCUSD --start 2021-01-01 --end 2021-01-03
  datautil trades --exchange gmo --symbol BTC_JPY --start 2021-01-01 --end 2021-01-02 --format table`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			log := a.component("trades").With("exchange", f.exchange, "symbol", f.symbol)

			start, end, err := parseRange(f.start, f.end)
			if err != nil {
				return err
			}
			archive, err := exchange.NewTradeArchive(a.cfg, f.exchange, f.symbol,
				exchange.WithLogger(log), exchange.WithMetrics(a.recorder()))
			if err != nil {
				return err
			}

			path := a.cachePath(&f, cache.KindTrades, 0)
			res, err := cache.NewTradeCache(archive, path, cache.WithLogger(log), cache.WithMetrics(a.recorder())).
				Get(ctx, start, end)
			if err != nil {
				return err
			}
			if !res.Complete {
				log.Warn("trades are incomplete", "missing_days", res.MissingDays)
			}
			log.Info("get df", "rows", len(res.Ticks), "cache", path)

			return saveFrame(cmd.OutOrStdout(), f.out, "trades", table.FromTicks(res.Ticks), f.format, f.limit)
		},
	}
	f.register(cmd, config.ExchangeBybitArchive)
	return cmd
}
