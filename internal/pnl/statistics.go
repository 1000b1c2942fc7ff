// Package pnl summarizes per-trade profit and loss and rebuilds realized PnL
// from an exchange execution history.
package pnl

import (
	"fmt"
	"math"
	"strings"

	"github.com/johnayoung/go-crypto-datautil/internal/numfmt"
)

// DefaultDigits is the rounding used by Report when digits is negative.
const DefaultDigits = 4

// Trades holds the aggregate figures over all trades.
type Trades struct {
	Count        int
	Sum          float64
	Mean         float64
	MaxDD        float64
	MaxDDRatio   float64
	StartBalance float64
	EndBalance   float64
	BalanceRatio float64
	ProfitFactor float64
	// HasLosses is false when no trade lost money; ProfitFactor is then
	// +Inf, or 0 when nothing was won either.
	HasLosses bool
}

// Side holds the figures of either the winning or the losing trades.
// Max is the numerically largest value of the side, so for losses it is
// the loss closest to zero. MaxLenCount and MaxLenSum describe the longest run of consecutive
// trades of that side.
type Side struct {
	Ratio       float64
	Count       int
	Sum         float64
	Max         float64
	Mean        float64
	MaxLenCount int
	MaxLenSum   float64
}

// Statistics is the result of Compute.
type Statistics struct {
	Trades Trades
	Profit Side
	Loss   Side
}

// Compute summarizes pnl, a sequence of per-trade results, against a
// starting balance. Zero results count as trades but belong to neither side.
func Compute(pnl []float64, startBalance float64) Statistics {
	var st Statistics
	if len(pnl) == 0 {
		return st
	}

	t := &st.Trades
	t.Count = len(pnl)
	t.StartBalance = startBalance
	var profits, losses []float64
	for _, v := range pnl {
		t.Sum += v
		switch {
		case v > 0:
			profits = append(profits, v)
		case v < 0:
			losses = append(losses, v)
		}
	}
	t.Mean = t.Sum / float64(t.Count)
	t.EndBalance = startBalance + t.Sum
	if startBalance > 0 {
		t.BalanceRatio = (t.EndBalance - startBalance) / startBalance
	}
	t.MaxDD, t.MaxDDRatio, _ = drawdown(balances(pnl, startBalance))

	decided := len(profits) + len(losses)
	st.Profit = side(profits, decided)
	st.Loss = side(losses, decided)
	st.Profit.MaxLenCount, st.Profit.MaxLenSum = longestRun(pnl, 1)
	st.Loss.MaxLenCount, st.Loss.MaxLenSum = longestRun(pnl, -1)

	t.HasLosses = len(losses) > 0
	t.ProfitFactor = profitFactor(st.Profit.Sum, st.Loss.Sum, t.HasLosses)
	return st
}

func balances(pnl []float64, start float64) []float64 {
	out := make([]float64, len(pnl)+1)
	out[0] = start
	for i, v := range pnl {
		out[i+1] = out[i] + v
	}
	return out
}

// drawdown returns the decline from the running peak at the point where it
// is deepest relative to that peak, the ratio, and the index of the point.
// The first value only seeds the peak.
func drawdown(series []float64) (amount, ratio float64, at int) {
	if len(series) < 2 {
		return 0, 0, 0
	}
	peak := series[0]
	at = 1
	for i := 1; i < len(series); i++ {
		peak = math.Max(peak, series[i])
		dd := series[i] - peak
		r := 0.0
		if peak != 0 {
			r = dd / peak
		}
		if r < ratio {
			amount, ratio, at = dd, r, i
		}
	}
	return amount, ratio, at
}

func side(values []float64, decided int) Side {
	var s Side
	if len(values) == 0 {
		return s
	}
	s.Count = len(values)
	s.Ratio = float64(s.Count) / float64(decided)
	s.Max = values[0]
	for _, v := range values {
		s.Sum += v
		s.Max = math.Max(s.Max, v)
	}
	s.Mean = s.Sum / float64(s.Count)
	return s
}

// longestRun finds the first longest run of consecutive values with the
// given sign. Zero values are skipped without breaking a run.
func longestRun(values []float64, sign float64) (int, float64) {
	var bestCount, count int
	var bestSum, sum float64
	for _, v := range values {
		if v == 0 {
			continue
		}
		if v*sign > 0 {
			count++
			sum += v
			if count > bestCount {
				bestCount, bestSum = count, sum
			}
			continue
		}
		count, sum = 0, 0
	}
	return bestCount, bestSum
}

func profitFactor(profit, loss float64, hasLosses bool) float64 {
	if hasLosses && loss != 0 {
		return math.Abs(profit / loss)
	}
	if profit > 0 {
		return math.Inf(1)
	}
	return 0
}

func formatPF(pf float64) string {
	if math.IsInf(pf, 1) {
		return "inf"
	}
	return fmt.Sprintf("%.2f", pf)
}

// Report renders st as the fixed "[Profit and loss statistics]" block with
// amounts rounded to digits. A negative digits uses DefaultDigits.
func Report(st Statistics, digits int) string {
	if digits < 0 {
		digits = DefaultDigits
	}
	d := int32(digits)
	t, p, l := st.Trades, st.Profit, st.Loss

	var b strings.Builder
	fmt.Fprintf(&b, "[Profit and loss statistics]  PF: %s\n", formatPF(t.ProfitFactor))
	fmt.Fprintf(&b, "  [Balance ] Result: %s -> %s (%s)  PnL: %s  Avr: %s\n",
		numfmt.GroupedPoint(t.StartBalance, d), numfmt.GroupedPoint(t.EndBalance, d),
		numfmt.SignedPercent(t.BalanceRatio, 2), numfmt.SignedPoint(t.Sum, d), numfmt.SignedPoint(t.Mean, d))
	fmt.Fprintf(&b, "  [Trade   ] Count:  %d  PnL: %s  Avr: %s\n",
		t.Count, numfmt.SignedPoint(t.Sum, d), numfmt.SignedPoint(t.Mean, d))
	writeSide(&b, "[Profit  ]", p, d)
	writeSide(&b, "[Loss    ]", l, d)
	fmt.Fprintf(&b, "  [Max risk] Drawdown: %s (%s)\n", numfmt.Percent(t.MaxDDRatio, 2), numfmt.SignedPoint(t.MaxDD, d))
	return b.String()
}

func writeSide(b *strings.Builder, label string, s Side, d int32) {
	fmt.Fprintf(b, "  %s Count:  %d (%s)  Sum: %s  Avr: %s  Max: %s  MaxLen: %d (%s)\n",
		label, s.Count, numfmt.Percent(s.Ratio, 2),
		numfmt.SignedPoint(s.Sum, d), numfmt.SignedPoint(s.Mean, d), numfmt.SignedPoint(s.Max, d),
		s.MaxLenCount, numfmt.SignedPoint(s.MaxLenSum, d))
}
