package pnl

import (
	"math"

	"github.com/johnayoung/go-crypto-datautil/internal/models"
	"github.com/johnayoung/go-crypto-datautil/internal/table"
)

// Entry is one execution with the position and PnL state after it.
type Entry struct {
	models.Execution

	// Position is the signed size after the execution, long positive.
	Position float64
	// AvgCost is the average settlement value per contract of Position.
	AvgCost float64

	ExecPL  float64 // realized on the closed part
	ExecFee float64 // fee as a balance change, so a paid fee is negative
	TotalPL float64 // ExecPL + ExecFee

	SumExecPL  float64
	SumExecFee float64
	SumTotalPL float64
	Balance    float64

	FiatBalance float64
	FiatPL      float64
	SumFiatPL   float64
}

// Ledger is the execution history replayed from a known position.
type Ledger struct {
	Entries []Entry
	From    float64
	// BaseIndex is the execution the replay started from. BaseFound is false
	// when no flat or reversed position was seen at or before From, in which
	// case the replay starts from the first execution and the cost of the
	// position held before it is approximated by that fill.
	BaseIndex int
	BaseFound bool
}

func round8(v float64) float64 { return math.Round(v*1e8) / 1e8 }

func valuePerQty(e models.Execution) float64 {
	if e.Qty == 0 {
		return 0
	}
	return math.Abs(e.Value / e.Qty)
}

// positionsBefore walks back from the current position: entry i is the
// signed position held just before execution i.
func positionsBefore(execs []models.Execution, current float64) []float64 {
	out := make([]float64, len(execs))
	pos := current
	for i := len(execs) - 1; i >= 0; i-- {
		if !execs[i].IsFunding() {
			pos -= execs[i].SignedQty()
		}
		out[i] = round8(pos)
	}
	return out
}

// findBase looks back from the last execution at or before from for the
// latest point where the position was flat or changed side.
func findBase(execs []models.Execution, before []float64, from float64) (idx int, pos, cost float64, found bool) {
	pre := 0
	for i, e := range execs {
		if e.Time <= from {
			pre = i
		}
	}
	for i := pre; i >= 0; i-- {
		if before[i] == 0 {
			return i, 0, 0, true
		}
		if i > 0 && before[i]*before[i-1] < 0 {
			return i, before[i], valuePerQty(execs[i-1]), true
		}
	}
	return 0, before[0], valuePerQty(execs[0]), false
}

// BuildLedger replays execs, which must be sorted by time, so that realized
// PnL and fees reconcile with the current signed position and wallet
// balance. Entries before fromTime are used to establish the position and
// are not returned.
func BuildLedger(execs []models.Execution, currentPosition, currentBalance, fromTime float64) *Ledger {
	l := &Ledger{From: fromTime}
	if len(execs) == 0 {
		return l
	}

	before := positionsBefore(execs, currentPosition)
	base, size, avg, found := findBase(execs, before, fromTime)
	l.BaseIndex, l.BaseFound = base, found

	entries := make([]Entry, 0, len(execs)-base)
	for _, e := range execs[base:] {
		en := Entry{Execution: e, ExecFee: -e.Fee}
		if !e.IsFunding() {
			size, avg, en.ExecPL = applyFill(e, size, avg)
		}
		en.TotalPL = en.ExecPL + en.ExecFee
		en.Position, en.AvgCost = size, avg
		entries = append(entries, en)
	}

	var sumPL, sumFee, sumTotal float64
	for i := range entries {
		en := &entries[i]
		sumPL += en.ExecPL
		sumFee += en.ExecFee
		sumTotal += en.TotalPL
		en.SumExecPL, en.SumExecFee, en.SumTotalPL = sumPL, sumFee, sumTotal
	}
	start := currentBalance - sumTotal
	var sumFiat float64
	for i := range entries {
		en := &entries[i]
		en.Balance = en.SumTotalPL + start
		en.FiatBalance = en.Balance * en.Price
		if i > 0 {
			en.FiatPL = en.FiatBalance - entries[i-1].FiatBalance
		}
		sumFiat += en.FiatPL
		en.SumFiatPL = sumFiat
	}

	for i, en := range entries {
		if en.Time >= fromTime {
			l.Entries = entries[i:]
			break
		}
	}
	return l
}

// applyFill adds or closes size with one fill and returns the new position,
// its average cost and the PnL realized on the closed part.
func applyFill(e models.Execution, size, avg float64) (float64, float64, float64) {
	qty := e.SignedQty()
	cost := valuePerQty(e)
	if size == 0 || size*qty > 0 {
		total := avg*size + cost*qty
		size = round8(size + qty)
		if size != 0 {
			avg = math.Abs(total / size)
		}
		return size, avg, 0
	}

	closed := math.Min(e.Qty, math.Abs(size))
	unit := avg - cost
	if e.Side == models.SideBuy {
		unit = cost - avg
	}
	pl := unit * closed

	size = round8(size + qty)
	switch {
	case size == 0:
		avg = 0
	case size*qty > 0:
		avg = cost
	}
	return size, avg, pl
}

// Ledger column names used by Frame.
const (
	ColExecTime   = "exec_time"
	ColExecPrice  = "exec_price"
	ColExecQty    = "exec_qty"
	ColExecValue  = "exec_value"
	ColFunding    = "funding"
	ColPosition   = "pos_size"
	ColAvgCost    = "avr_cost"
	ColExecPL     = "exec_pl"
	ColExecFee    = "exec_fee"
	ColTotalPL    = "total_pl"
	ColSumTotalPL = "sum_total_pl"
	ColBalance    = "balance"
	ColFiatBal    = "fiat_balance"
	ColFiatPL     = "fiat_pl"
	ColSumFiatPL  = "sum_fiat_pl"
)

// Frame exports the ledger as a table, one row per entry. Funding rows have
// 1 in the funding column.
func (l *Ledger) Frame() *table.Frame {
	f := table.NewFrame(ColExecTime, table.ColSide, ColExecPrice, ColExecQty, ColExecValue, ColFunding,
		ColPosition, ColAvgCost, ColExecPL, ColExecFee, ColTotalPL, ColSumTotalPL,
		ColBalance, ColFiatBal, ColFiatPL, ColSumFiatPL)
	for _, en := range l.Entries {
		funding := 0.0
		if en.IsFunding() {
			funding = 1
		}
		// Row width always matches the column list above.
		_ = f.AppendRow(en.Time, table.SideValue(en.Side), en.Price, en.Qty, en.Value, funding,
			en.Position, en.AvgCost, en.ExecPL, en.ExecFee, en.TotalPL, en.SumTotalPL,
			en.Balance, en.FiatBalance, en.FiatPL, en.SumFiatPL)
	}
	return f
}
