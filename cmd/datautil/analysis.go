package main

import (
	"fmt"
	"image/color"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/johnayoung/go-crypto-datautil/internal/chart"
	apperrors "github.com/johnayoung/go-crypto-datautil/internal/errors"
	"github.com/johnayoung/go-crypto-datautil/internal/pnl"
	"github.com/johnayoung/go-crypto-datautil/internal/resample"
	"github.com/johnayoung/go-crypto-datautil/internal/table"
)

func newResampleCommand(a *app) *cobra.Command {
	var in, period, out, format string
	var trades, fillGaps bool
	var limit int
	cmd := &cobra.Command{
		Use:   "resample",
		Short: "Aggregate a trade or candle CSV file into candles of a longer period",
		Example: `  datautil resample --in bybit_BTCUSD_trades.csv --trades --period 1min --out btc_1min.csv
  datautil resample --in btc_1min.csv --period 1H --fill-gaps --format table`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := resample.ParsePeriod(period)
			if err != nil {
				return err
			}
			log := a.component("resample").With("in", in, "period", period)
			frame, err := table.ReadCSVFile(in)
			if err != nil {
				return err
			}
			log.Info("read csv", "rows", frame.Len())

			var res *table.Frame
			if trades {
				res, err = resample.TradesFrameToOHLCV(frame, p)
			} else {
				res, err = resample.DownsampleFrame(frame, p)
			}
			if err != nil {
				return err
			}
			if fillGaps {
				candles, err := res.ToCandles()
				if err != nil {
					return err
				}
				if candles, err = resample.FillGaps(candles, p); err != nil {
					return err
				}
				res = table.FromCandles(candles, res.HasColumn(table.ColVolume))
			}
			log.Info("Completed output", "rows", res.Len(), "out", out)
			return saveFrame(cmd.OutOrStdout(), out, "ohlcv", res, format, limit)
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&in, "in", "", "input CSV file")
	flags.StringVar(&period, "period", "", "target period, e.g. 1S, 5min, 1H, 1D")
	flags.BoolVar(&trades, "trades", false, "input holds trades (unixtime, side, size, price)")
	flags.BoolVar(&fillGaps, "fill-gaps", false, "insert flat candles for empty periods")
	flags.StringVarP(&out, "out", "o", "", "output file (default stdout)")
	flags.StringVar(&format, "format", FormatCSV, "output format: csv, json, table")
	flags.IntVar(&limit, "limit", 20, "rows shown by the table format")
	_ = cmd.MarkFlagRequired("in")
	_ = cmd.MarkFlagRequired("period")
	return cmd
}

func newPnLCommand(a *app) *cobra.Command {
	var in, column string
	var balance float64
	var digits int
	cmd := &cobra.Command{
		Use:     "pnl",
		Short:   "Print profit and loss statistics of a per-trade PnL column",
		Example: `  datautil pnl --in trades.csv --column pnl --balance 1000`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			frame, err := table.ReadCSVFile(in)
			if err != nil {
				return err
			}
			values, err := frame.Column(column)
			if err != nil {
				return err
			}
			a.component("pnl").Info("read csv", "in", in, "trades", len(values))
			fmt.Fprint(cmd.OutOrStdout(), pnl.Report(pnl.Compute(values, balance), digits))
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&in, "in", "", "input CSV file")
	flags.StringVar(&column, "column", "pnl", "column holding the result of each trade")
	flags.Float64Var(&balance, "balance", 0, "starting balance")
	flags.IntVar(&digits, "digits", pnl.DefaultDigits, "decimal places of amounts")
	_ = cmd.MarkFlagRequired("in")
	return cmd
}

type chartFlags struct {
	in, out, title, x, xFormat string
	lines, bars, marks, bands  []string
	noCandles                  bool
	width, height              float64
	dpi                        int
	animate                    bool
	step, scroll               int
	interval                   time.Duration
}

// splitSpec splits "name:option" into its parts.
func splitSpec(s string) (string, string) {
	name, opt, _ := strings.Cut(s, ":")
	return strings.TrimSpace(name), strings.TrimSpace(opt)
}

func optionalColor(s string) (color.Color, error) {
	if s == "" {
		return nil, nil
	}
	return chart.ParseColor(s)
}

// buildChart lays out candles and lines on the price pane and bars on a
// lower pane.
func buildChart(f *table.Frame, o chartFlags) (*chart.Chart, error) {
	c := chart.New(f).SetSize(o.width, o.height, o.dpi)
	if o.title != "" {
		c.SetTitle(o.title, chart.TitleLeft, 16)
	}
	x := o.x
	if x == "" && f.HasColumn(table.ColTime) {
		x = table.ColTime
	}
	if x != "" && !f.HasColumn(x) {
		return nil, apperrors.New(apperrors.ErrorTypeLookup, "cli", "chart",
			fmt.Errorf("%w: %q", apperrors.ErrColumnNotFound, x))
	}
	var conv chart.Converter
	if o.xFormat != "" && x != "" {
		conv = chart.DateConverter
	}
	c.SetX(x, true, conv, o.xFormat)
	c.SetY(0, chart.YAxis{Grid: true, Legend: true, Weight: 3, Autoscale: true})

	if !o.noCandles && f.HasColumn(table.ColOpen) && f.HasColumn(table.ColClose) {
		c.SetCandlestick(0, chart.CandleLayer{})
	}
	for _, spec := range o.bands {
		y1, y2, ok := strings.Cut(spec, ",")
		if !ok {
			return nil, apperrors.Newf(apperrors.ErrorTypeValidation, "cli", "chart",
				"--band wants two columns separated by a comma, got %q", spec)
		}
		c.SetBand(0, chart.BandLayer{Y1: strings.TrimSpace(y1), Y2: strings.TrimSpace(y2), Label: spec})
	}
	for _, spec := range o.lines {
		name, opt := splitSpec(spec)
		clr, err := optionalColor(opt)
		if err != nil {
			return nil, err
		}
		c.SetLine(0, chart.LineLayer{Y: name, Color: clr, Label: name})
	}
	for _, spec := range o.marks {
		name, opt := splitSpec(spec)
		c.SetMark(0, chart.MarkLayer{Y: name, Marker: opt, Label: name})
	}
	if len(o.bars) > 0 {
		c.SetY(1, chart.YAxis{Grid: true, Legend: true, Weight: 1, Autoscale: true})
		for _, spec := range o.bars {
			name, opt := splitSpec(spec)
			clr, err := optionalColor(opt)
			if err != nil {
				return nil, err
			}
			c.SetBar(1, chart.BarLayer{Y: name, Color: clr, Label: name})
		}
	}
	return c, nil
}

func newChartCommand(a *app) *cobra.Command {
	var o chartFlags
	cmd := &cobra.Command{
		Use:   "chart",
		Short: "Draw a CSV file as candles, lines, bars, markers and bands",
		Example: `  datautil chart --in btc_1H.csv --out btc.png --title BTCUSD --line close:#1f77b4 --bar volume
  datautil chart --in btc_1min.csv --out btc.html --animate --step 5 --interval 200ms --scroll 120
  datautil chart --in bands.csv --band upper,lower --mark signal:^`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc := a.cfg.Chart
			if o.width <= 0 {
				o.width = cc.Width
			}
			if o.height <= 0 {
				o.height = cc.Height
			}
			if o.dpi <= 0 {
				o.dpi = cc.DPI
			}

			log := a.component("chart").With("in", o.in)
			frame, err := table.ReadCSVFile(o.in)
			if err != nil {
				return err
			}
			log.Info("read csv", "rows", frame.Len())

			c, err := buildChart(frame, o)
			if err != nil {
				return err
			}

			switch {
			case o.animate:
				if o.out == "" {
					return apperrors.Newf(apperrors.ErrorTypeValidation, "cli", "chart", "--animate needs --out with a .gif or .html extension")
				}
				err = c.SaveAnimation(o.out, chart.AnimationOptions{Step: o.step, Interval: o.interval, AutoScrollRange: o.scroll})
			case o.out == "":
				var path string
				if path, err = c.Show(); err == nil {
					fmt.Fprintln(cmd.OutOrStdout(), path)
				}
			default:
				err = c.Save(o.out)
			}
			if err != nil {
				return err
			}
			log.Info("Completed output", "out", o.out)
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&o.in, "in", "", "input CSV file")
	flags.StringVarP(&o.out, "out", "o", "", "output image (.png .jpg .tiff .svg .pdf .eps, .gif/.html with --animate); a temporary PNG when empty")
	flags.StringVar(&o.title, "title", "", "chart title")
	flags.StringVar(&o.x, "x", "", "x column (default unixtime when present, else row index)")
	flags.StringVar(&o.xFormat, "x-format", "", "strftime format of Unix-time x labels")
	flags.StringArrayVar(&o.lines, "line", nil, "column drawn as a line, optionally column:color")
	flags.StringArrayVar(&o.bars, "bar", nil, "column drawn as bars on a lower pane, optionally column:color")
	flags.StringArrayVar(&o.marks, "mark", nil, "column drawn as markers, optionally column:marker")
	flags.StringArrayVar(&o.bands, "band", nil, "two columns filled between, as y1,y2")
	flags.BoolVar(&o.noCandles, "no-candles", false, "do not draw candles even when OHLC columns exist")
	flags.Float64Var(&o.width, "width", 0, "width in inches (default from config)")
	flags.Float64Var(&o.height, "height", 0, "height in inches (default from config)")
	flags.IntVar(&o.dpi, "dpi", 0, "raster resolution (default from config)")
	flags.BoolVar(&o.animate, "animate", false, "draw the rows frame by frame")
	flags.IntVar(&o.step, "step", chart.DefaultStep, "rows added per animation frame")
	flags.DurationVar(&o.interval, "interval", chart.DefaultInterval, "display time of an animation frame")
	flags.IntVar(&o.scroll, "scroll", 0, "rows kept in view while animating (0 shows all)")
	_ = cmd.MarkFlagRequired("in")
	return cmd
}
