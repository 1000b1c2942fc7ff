package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/johnayoung/go-crypto-datautil/internal/config"
	apperrors "github.com/johnayoung/go-crypto-datautil/internal/errors"
	"github.com/johnayoung/go-crypto-datautil/internal/exchange"
	"github.com/johnayoung/go-crypto-datautil/internal/pnl"
)

const secondsPerDay = 86400

func (a *app) bybitPrivate(symbol string) (*exchange.BybitPrivate, error) {
	ex, ok := a.cfg.Exchange(config.ExchangeBybit)
	if !ok {
		return nil, apperrors.Newf(apperrors.ErrorTypeConfiguration, "cli", "bybit_private", "exchange %q is not configured", config.ExchangeBybit)
	}
	log := a.component("account").With("exchange", config.ExchangeBybit, "symbol", symbol)
	return exchange.NewBybitPrivate(ex, exchange.WithLogger(log), exchange.WithMetrics(a.recorder()))
}

func newStatusCommand(a *app) *cobra.Command {
	var symbol string
	cmd := &cobra.Command{
		Use:     "status",
		Short:   "Show ticker, position, balance and open orders of a bybit account",
		Example: `  DATAUTIL_BYBIT_API_KEY=... DATAUTIL_BYBIT_API_SECRET=... datautil status --symbol BTCUSD`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			b, err := a.bybitPrivate(symbol)
			if err != nil {
				return err
			}
			report, err := b.StatusReport(cmd.Context(), symbol, time.Now())
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), report)
			return nil
		},
	}
	cmd.Flags().StringVar(&symbol, "symbol", "BTCUSD", "instrument symbol")
	return cmd
}

func newExecutionsCommand(a *app) *cobra.Command {
	var symbol, from, csvPath string
	var bufferDays int
	cmd := &cobra.Command{
		Use:   "executions",
		Short: "Rebuild the execution ledger of a bybit account and report its statistics",
		Long: `Downloads executions from --buffer-days before --from, replays them from the
last flat or reversed position to recover the average cost, and prints the
coin and fiat statistics of the executions at or after --from.`,
		Example: `  datautil executions --symbol BTCUSD --from 2021-03-01 --csv ledger.csv`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			log := a.component("executions").With("symbol", symbol)

			fromTime, err := parseUnix(from)
			if err != nil {
				return err
			}
			b, err := a.bybitPrivate(symbol)
			if err != nil {
				return err
			}

			startTime := fromTime - int64(bufferDays)*secondsPerDay
			execs, err := b.Executions(ctx, symbol, startTime)
			if err != nil {
				return err
			}
			pos, err := b.Position(ctx, symbol)
			if err != nil {
				return err
			}
			log.Info("executions downloaded", "count", len(execs), "start", startTime,
				"position", pos.SignedSize(), "balance", pos.WalletBalance)

			ledger := pnl.BuildLedger(execs, pos.SignedSize(), pos.WalletBalance, float64(fromTime))
			if !ledger.BaseFound {
				log.Warn("Base position not found", "buffer_days", bufferDays,
					"hint", "increase --buffer-days so the download reaches a flat position")
			}

			w := cmd.OutOrStdout()
			fmt.Fprintln(w, pnl.ExecutionReport(ledger, false))
			fmt.Fprintln(w, pnl.ExecutionReport(ledger, true))

			if csvPath != "" {
				if err := ledger.Frame().WriteCSVFile(csvPath); err != nil {
					return err
				}
				log.Info("save csv", "path", csvPath, "rows", len(ledger.Entries))
			}
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&symbol, "symbol", "BTCUSD", "instrument symbol")
	flags.StringVar(&from, "from", "", "first execution reported, Unix seconds or date")
	flags.IntVar(&bufferDays, "buffer-days", 30, "days downloaded before --from to find the base position")
	flags.StringVar(&csvPath, "csv", "", "write the ledger to this CSV file")
	_ = cmd.MarkFlagRequired("from")
	return cmd
}
