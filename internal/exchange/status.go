package exchange

import (
	"fmt"
	"strings"
	"time"

	"github.com/johnayoung/go-crypto-datautil/internal/models"
	"github.com/johnayoung/go-crypto-datautil/internal/numfmt"
	"github.com/johnayoung/go-crypto-datautil/internal/timeutil"
)

const statusTimeFormat = "%Y/%m/%d %H:%M:%S"

// FormatStatus renders the account snapshot. A nil ticker omits the price
// section and a nil position omits position and balance.
func FormatStatus(symbol string, now time.Time, tic *models.Ticker, pos *models.Position, orders []models.Order) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<STATUS> %s %s\n", symbol, timeutil.Strftime(now.In(timeutil.JST), statusTimeFormat))

	var last float64
	if tic != nil {
		last = tic.LastPrice
		b.WriteString("[price]\n")
		fmt.Fprintf(&b, "  ltp        : %.1f\n", tic.LastPrice)
		fmt.Fprintf(&b, "  bid        : %.1f\n", tic.BidPrice)
		fmt.Fprintf(&b, "  ask        : %.1f\n", tic.AskPrice)
		fmt.Fprintf(&b, "  mark       : %.2f\n", tic.MarkPrice)
		fmt.Fprintf(&b, "  index      : %.2f\n", tic.IndexPrice)
		fmt.Fprintf(&b, "  vol_24     : %s\n", numfmt.Grouped(float64(int64(tic.Volume24h)), 0))
		fmt.Fprintf(&b, "  oi         : %s\n", numfmt.Grouped(float64(int64(tic.OpenInterest)), 0))
		fmt.Fprintf(&b, "  fr         : %s\n", numfmt.Percent(tic.FundingRate, 4))
	}

	if pos != nil {
		pricePnL := 0.0
		if tic != nil {
			pricePnL = pos.PricePnL(last)
		}
		b.WriteString("[position]\n")
		fmt.Fprintf(&b, "  side       : %s\n", pos.Side)
		fmt.Fprintf(&b, "  size       : %s (%.8f)\n", numfmt.Grouped(float64(int64(pos.Size)), 0), pos.PositionMargin)
		fmt.Fprintf(&b, "  avr_entry  : %.2f (%+.2f)\n", pos.EntryPrice, pricePnL)
		fmt.Fprintf(&b, "  stop_loss  : %.1f\n", pos.StopLoss)
		fmt.Fprintf(&b, "  take_profit: %.1f\n", pos.TakeProfit)
		fmt.Fprintf(&b, "  trailing   : %.1f\n", pos.TrailingStop)
		fmt.Fprintf(&b, "  liq_price  : %.1f\n", pos.LiqPrice)
		fmt.Fprintf(&b, "  unrealised : %.8f\n", pos.UnrealisedPnL)
		fmt.Fprintf(&b, "  leverage   : %.2f\n", pos.EffectiveLeverage)
		b.WriteString("[balance]\n")
		fmt.Fprintf(&b, "  wallet     : %.8f\n", pos.WalletBalance)
		fmt.Fprintf(&b, "  available  : %.8f\n", pos.Available())
	}

	if len(orders) > 0 {
		b.WriteString("[open order]\n")
	}
	for _, o := range orders {
		b.WriteString("  " + statusLabel(o.Status) + o.OrderType + o.Side)
		fmt.Fprintf(&b, "  [price]:%.1f  [qty]:%d/%d", o.Price, int64(o.CumExecQty), int64(o.Qty))
		if o.UpdatedAt > 0 {
			b.WriteString("  [time]:" + timeutil.FromUnix(o.UpdatedAt, timeutil.JST).Format(statusTimeFormat))
		}
		var opts []string
		if o.TimeInForce != "" {
			opts = append(opts, o.TimeInForce)
		}
		if o.ReduceOnly {
			opts = append(opts, "ReduceOnly")
		}
		if len(opts) > 0 {
			b.WriteString("  [option]:" + strings.Join(opts, ","))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func statusLabel(status string) string {
	switch status {
	case models.OrderStatusNew:
		return "[New    ]:"
	case models.OrderStatusPartiallyFilled:
		return "[Partial]:"
	}
	return "[Other  ]:"
}
