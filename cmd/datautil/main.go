// datautil is the command-line front end of the market-data utilities: it
// fetches candles and trades with a local cache, maintains daily partition
// directories, resamples, charts and reports profit and loss.
//
// Usage:
//
//	datautil ohlcv --exchange bitmex --symbol XBTUSD --period 60 --start 2021-01-01 --end 2021-01-02
//	datautil daily save --exchange bybit_archive --symbol BTCUSD --period 1min --start 2021/01/01 --end 2021/01/31
//	datautil chart --in candles.csv --out chart.png --line close
//	datautil executions --symbol BTCUSD --from 2021-03-01
//
// For detailed help on any command, use: datautil <command> --help
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/johnayoung/go-crypto-datautil/internal/config"
	apperrors "github.com/johnayoung/go-crypto-datautil/internal/errors"
	"github.com/johnayoung/go-crypto-datautil/internal/logger"
	"github.com/johnayoung/go-crypto-datautil/internal/metrics"
)

const AppName = "datautil"

// Exit codes following the usual conventions
const (
	ExitSuccess       = 0
	ExitError         = 1
	ExitConfigError   = 2
	ExitConnectionErr = 3
	ExitInterrupt     = 130
)

// app carries what every command needs once the root flags are parsed.
type app struct {
	configPath string
	logLevel   string
	logFormat  string
	metricsOut string

	cfg     *config.AppConfig
	logs    *logger.LoggerManager
	logger  *slog.Logger
	metrics *metrics.Prometheus

	out io.Writer
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	err := run(ctx, os.Args[1:], os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	os.Exit(exitCode(ctx, err))
}

// run executes one command line, writing command output to out. Metrics are
// dumped and log files closed even when the command fails.
func run(ctx context.Context, args []string, out io.Writer) error {
	a := &app{out: out}
	root := newRootCommand(a)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	return errors.Join(err, a.teardown())
}

func newRootCommand(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           AppName,
		Short:         "Crypto market-data fetching, storage, charting and PnL tools",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup()
		},
	}
	root.SetOut(a.out)
	root.SetErr(os.Stderr)

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "configuration file (.json, .yaml or .yml)")
	flags.StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error")
	flags.StringVar(&a.logFormat, "log-format", "", "log format: text, json")
	flags.StringVar(&a.metricsOut, "metrics-out", "", "write Prometheus metrics to this file on exit")

	root.AddCommand(
		newOHLCVCommand(a),
		newTradesCommand(a),
		newDailyCommand(a),
		newGapsCommand(a),
		newScheduleCommand(a),
		newResampleCommand(a),
		newPnLCommand(a),
		newChartCommand(a),
		newStatusCommand(a),
		newExecutionsCommand(a),
	)
	return root
}

// setup loads the configuration and builds the logger and metrics registry.
func (a *app) setup() error {
	cfg, err := config.NewConfigManager(a.configPath, logger.Discard()).LoadConfig()
	if err != nil {
		return apperrors.New(apperrors.ErrorTypeConfiguration, "cli", "load_config", err)
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
	}
	if a.logFormat != "" {
		cfg.Logging.Format = a.logFormat
	}
	if a.metricsOut != "" {
		cfg.Metrics.Enabled = true
		cfg.Metrics.OutputPath = a.metricsOut
	}
	a.cfg = cfg

	logs, err := logger.NewLoggerManager(cfg.Logging)
	if err != nil {
		return apperrors.New(apperrors.ErrorTypeConfiguration, "cli", "setup_logging", err)
	}
	a.logs = logs
	a.logger = logs.GetLogger()
	slog.SetDefault(a.logger)

	if cfg.Metrics.Enabled {
		a.metrics = metrics.NewPrometheus()
	}
	return nil
}

func (a *app) teardown() error {
	var errs []error
	if a.cfg == nil {
		return nil
	}
	if a.metrics != nil && a.cfg.Metrics.OutputPath != "" {
		if err := a.metrics.WriteTextfile(a.cfg.Metrics.OutputPath); err != nil {
			errs = append(errs, apperrors.New(apperrors.ErrorTypeIO, "cli", "write_metrics", err))
		} else {
			a.logger.Debug("metrics written", "path", a.cfg.Metrics.OutputPath)
		}
	}
	if a.logs != nil {
		if err := a.logs.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// recorder returns the metrics recorder, or nil when metrics are disabled.
func (a *app) recorder() metrics.Recorder {
	if a.metrics == nil {
		return nil
	}
	return a.metrics
}

// component returns a logger tagged with the command name.
func (a *app) component(name string) *slog.Logger {
	if a.logs == nil {
		return logger.Discard()
	}
	return a.logs.GetComponentLogger(name).Logger
}

// exitCode maps an error to the process exit status by its classification.
func exitCode(ctx context.Context, err error) int {
	if err == nil {
		return ExitSuccess
	}
	if ctx.Err() != nil && errors.Is(err, context.Canceled) {
		return ExitInterrupt
	}
	switch apperrors.GetErrorType(err) {
	case apperrors.ErrorTypeConfiguration:
		return ExitConfigError
	case apperrors.ErrorTypeNetwork, apperrors.ErrorTypeTimeout, apperrors.ErrorTypeRateLimit,
		apperrors.ErrorTypeServerError, apperrors.ErrorTypeAuthentication:
		return ExitConnectionErr
	}
	return ExitError
}
