package pnl

import (
	"fmt"
	"math"
	"strings"

	"github.com/johnayoung/go-crypto-datautil/internal/numfmt"
	"github.com/johnayoung/go-crypto-datautil/internal/timeutil"
)

const reportTimeFormat = "%Y/%m/%d %H:%M:%S"

// ExecutionReport renders the trade statistics of l. The settlement-currency
// block uses total PnL per fill with fees and funding; the fiat block uses
// the change of the fiat balance per fill and reports no sizes or fees.
// Drawdown is measured on the balance after each fill and stamped in JST.
func ExecutionReport(l *Ledger, fiat bool) string {
	var pnl, balance, times []float64
	var size, fee, funding float64
	for _, en := range l.Entries {
		if en.IsFunding() {
			funding += en.ExecFee
			continue
		}
		times = append(times, en.Time)
		size += math.Abs(en.Qty)
		fee += en.ExecFee
		if fiat {
			pnl = append(pnl, en.FiatPL)
			balance = append(balance, en.FiatBalance)
		} else {
			pnl = append(pnl, en.TotalPL)
			balance = append(balance, en.Balance)
		}
	}

	var profits, losses []float64
	var sum float64
	for _, v := range pnl {
		sum += v
		switch {
		case v > 0:
			profits = append(profits, v)
		case v < 0:
			losses = append(losses, v)
		}
	}
	decided := len(profits) + len(losses)
	p, lo := side(profits, decided), side(losses, decided)
	p.MaxLenCount, p.MaxLenSum = longestRun(pnl, 1)
	lo.MaxLenCount, lo.MaxLenSum = longestRun(pnl, -1)
	pf := profitFactor(p.Sum, lo.Sum, len(losses) > 0)
	mean := 0.0
	if len(pnl) > 0 {
		mean = sum / float64(len(pnl))
	}

	digits := int32(4)
	var b strings.Builder
	if fiat {
		digits = 1
		var first, last float64
		if n := len(l.Entries); n > 0 {
			first, last = l.Entries[0].FiatBalance, l.Entries[n-1].FiatBalance
		}
		fmt.Fprintf(&b, "[Fiat statistics]  PF:%s  Balance:%s -> %s\n",
			formatPF(pf), numfmt.Grouped(math.Round(first), 0), numfmt.Grouped(math.Round(last), 0))
	} else {
		var first, last float64
		if n := len(l.Entries); n > 0 {
			first, last = l.Entries[0].Balance, l.Entries[n-1].Balance
		}
		fmt.Fprintf(&b, "[BTC  statistics]  PF:%s  Balance:%.4f -> %.4f\n", formatPF(pf), first, last)
	}

	sizeText, feeText, fundingText := "0", "0", "0"
	if !fiat {
		sizeText = numfmt.GroupedPoint(size, 0)
		feeText = numfmt.GroupedPoint(fee, digits)
		fundingText = numfmt.GroupedPoint(funding, digits)
	}
	fmt.Fprintf(&b, "  [Total   ] Count:%d(Size:%s)  PnL:%s  Avr:%s\n",
		len(pnl), sizeText, numfmt.SignedPoint(sum, digits), numfmt.SignedPoint(mean, digits))
	writeExecSide(&b, "[Profit  ]", p, digits)
	writeExecSide(&b, "[Loss    ]", lo, digits)
	fmt.Fprintf(&b, "  [Fee     ] Trade:%s  Funding:%s\n", feeText, fundingText)

	dd, ratio, at := drawdown(append([]float64{math.Inf(-1)}, balance...))
	if len(balance) == 0 {
		fmt.Fprintf(&b, "  [Max risk] Drawdown:%s(%s)\n", numfmt.Percent(0, 2), numfmt.SignedPoint(0, digits))
		return b.String()
	}
	fmt.Fprintf(&b, "  [Max risk] Drawdown:%s(%s) %s\n",
		numfmt.Percent(ratio, 2), numfmt.SignedPoint(dd, digits),
		timeutil.FromUnix(times[at-1], timeutil.JST).Format(reportTimeFormat))
	return b.String()
}

func writeExecSide(b *strings.Builder, label string, s Side, d int32) {
	fmt.Fprintf(b, "  %s Count:%d(%s)  Sum:%s  Avr:%s  Max:%s  MaxLen:%d(%s)\n",
		label, s.Count, numfmt.Percent(s.Ratio, 2),
		numfmt.SignedPoint(s.Sum, d), numfmt.SignedPoint(s.Mean, d), numfmt.SignedPoint(s.Max, d),
		s.MaxLenCount, numfmt.SignedPoint(s.MaxLenSum, d))
}
