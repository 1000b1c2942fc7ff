package pnl

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/johnayoung/go-crypto-datautil/internal/models"
)

func TestCompute(t *testing.T) {
	st := Compute([]float64{100, -50, 200, -30}, 1000)

	assert.Equal(t, 4, st.Trades.Count)
	assert.Equal(t, 220.0, st.Trades.Sum)
	assert.Equal(t, 55.0, st.Trades.Mean)
	assert.Equal(t, 1220.0, st.Trades.EndBalance)
	assert.InDelta(t, 0.22, st.Trades.BalanceRatio, 1e-12)
	assert.InDelta(t, 3.75, st.Trades.ProfitFactor, 1e-12)
	assert.True(t, st.Trades.HasLosses)
	assert.Equal(t, -50.0, st.Trades.MaxDD)
	assert.InDelta(t, -50.0/1100, st.Trades.MaxDDRatio, 1e-12)

	assert.Equal(t, Side{Ratio: 0.5, Count: 2, Sum: 300, Max: 200, Mean: 150, MaxLenCount: 1, MaxLenSum: 100}, st.Profit)
	assert.Equal(t, Side{Ratio: 0.5, Count: 2, Sum: -80, Max: -30, Mean: -40, MaxLenCount: 1, MaxLenSum: -50}, st.Loss)
}

func TestCompute_DrawdownFromStartBalance(t *testing.T) {
	st := Compute([]float64{-50, -50, 300, -100}, 1000)
	assert.Equal(t, -100.0, st.Trades.MaxDD)
	assert.InDelta(t, -0.1, st.Trades.MaxDDRatio, 1e-12)
	assert.Equal(t, 2, st.Loss.MaxLenCount)
	assert.Equal(t, -100.0, st.Loss.MaxLenSum)
}

func TestCompute_Streaks(t *testing.T) {
	st := Compute([]float64{1, 2, -1, 0, -2, -3, 4, 5, 6, 0, 7, -1}, 0)
	assert.Equal(t, 4, st.Profit.MaxLenCount)
	assert.Equal(t, 22.0, st.Profit.MaxLenSum)
	assert.Equal(t, 3, st.Loss.MaxLenCount)
	assert.Equal(t, -6.0, st.Loss.MaxLenSum)
	assert.Zero(t, st.Trades.BalanceRatio, "no ratio without a positive start")
	assert.Equal(t, 12, st.Trades.Count)
	assert.InDelta(t, 6.0/11, st.Profit.Ratio, 1e-12)
}

func TestCompute_NoLosses(t *testing.T) {
	st := Compute([]float64{10, 20}, 100)
	assert.False(t, st.Trades.HasLosses)
	assert.True(t, math.IsInf(st.Trades.ProfitFactor, 1))
	assert.Zero(t, st.Trades.MaxDD)

	st = Compute([]float64{0, 0}, 100)
	assert.Zero(t, st.Trades.ProfitFactor)
}

func TestCompute_Empty(t *testing.T) {
	assert.Equal(t, Statistics{}, Compute(nil, 1000))
}

func TestReport(t *testing.T) {
	got := Report(Compute([]float64{100, -50, 200, -30}, 1000), 4)
	want := "[Profit and loss statistics]  PF: 3.75\n" +
		"  [Balance ] Result: 1,000.0 -> 1,220.0 (+22.00%)  PnL: +220.0  Avr: +55.0\n" +
		"  [Trade   ] Count:  4  PnL: +220.0  Avr: +55.0\n" +
		"  [Profit  ] Count:  2 (50.00%)  Sum: +300.0  Avr: +150.0  Max: +200.0  MaxLen: 1 (+100.0)\n" +
		"  [Loss    ] Count:  2 (50.00%)  Sum: -80.0  Avr: -40.0  Max: -30.0  MaxLen: 1 (-50.0)\n" +
		"  [Max risk] Drawdown: -4.55% (-50.0)\n"
	assert.Equal(t, want, got)

	got = Report(Compute([]float64{1.23456}, 10), 2)
	assert.Contains(t, got, "PF: inf")
	assert.Contains(t, got, "PnL: +1.23  Avr: +1.23")
}

// testExecs opens a long of 10 at cost 2, pays funding, takes profit on 4,
// then sells 10 more which closes 6 and opens a short of 4 at cost 1.
func testExecs() []models.Execution {
	return []models.Execution{
		{ID: "a", Time: 100, Type: models.ExecTypeTrade, Side: models.SideBuy, Price: 100, Qty: 10, Value: 20, Fee: 0.1},
		{ID: "f", Time: 200, Type: models.ExecTypeFunding, Side: models.SideBuy, Price: 100, Qty: 10, Fee: 0.05},
		{ID: "b", Time: 300, Type: models.ExecTypeTrade, Side: models.SideSell, Price: 200, Qty: 4, Value: 4, Fee: 0.1},
		{ID: "c", Time: 400, Type: models.ExecTypeTrade, Side: models.SideSell, Price: 200, Qty: 10, Value: 10},
	}
}

func TestBuildLedger(t *testing.T) {
	l := BuildLedger(testExecs(), -4, 100, 150)
	assert.True(t, l.BaseFound)
	assert.Equal(t, 0, l.BaseIndex)
	require.Len(t, l.Entries, 3)

	funding, partial, flip := l.Entries[0], l.Entries[1], l.Entries[2]
	assert.Equal(t, "f", funding.ID)
	assert.Equal(t, 10.0, funding.Position)
	assert.Equal(t, 2.0, funding.AvgCost)
	assert.Zero(t, funding.ExecPL)
	assert.InDelta(t, -0.05, funding.TotalPL, 1e-12)

	assert.Equal(t, 6.0, partial.Position)
	assert.Equal(t, 2.0, partial.AvgCost)
	assert.InDelta(t, 4, partial.ExecPL, 1e-12)
	assert.InDelta(t, 3.9, partial.TotalPL, 1e-12)

	assert.Equal(t, -4.0, flip.Position)
	assert.Equal(t, 1.0, flip.AvgCost)
	assert.InDelta(t, 6, flip.ExecPL, 1e-12)

	assert.InDelta(t, 100, flip.Balance, 1e-9, "ends at the wallet balance")
	assert.InDelta(t, 90.1, funding.Balance, 1e-9)
	assert.InDelta(t, 9.75, flip.SumTotalPL, 1e-9)
	assert.InDelta(t, 20000, flip.FiatBalance, 1e-6)
	assert.InDelta(t, 1200, flip.FiatPL, 1e-6)
	assert.InDelta(t, 9790, partial.FiatPL, 1e-6)
	assert.InDelta(t, -5, funding.FiatPL, 1e-6)
}

func TestBuildLedger_BaseAfterFlip(t *testing.T) {
	execs := append(testExecs(),
		models.Execution{ID: "d", Time: 500, Type: models.ExecTypeTrade, Side: models.SideBuy, Price: 250, Qty: 2, Value: 1.5})

	l := BuildLedger(execs, -2, 50, 500)
	assert.True(t, l.BaseFound)
	assert.Equal(t, 4, l.BaseIndex)
	require.Len(t, l.Entries, 1)
	assert.Equal(t, -2.0, l.Entries[0].Position)
	assert.Equal(t, 1.0, l.Entries[0].AvgCost)
	assert.InDelta(t, -0.5, l.Entries[0].ExecPL, 1e-12)
	assert.InDelta(t, 50, l.Entries[0].Balance, 1e-12)
}

func TestBuildLedger_BaseNotFound(t *testing.T) {
	execs := []models.Execution{
		{Time: 100, Type: models.ExecTypeTrade, Side: models.SideBuy, Price: 100, Qty: 5, Value: 10},
	}
	l := BuildLedger(execs, 10, 1, 200)
	assert.False(t, l.BaseFound)
	assert.Empty(t, l.Entries)

	l = BuildLedger(execs, 10, 1, 0)
	require.Len(t, l.Entries, 1)
	assert.Equal(t, 10.0, l.Entries[0].Position)
	assert.Equal(t, 2.0, l.Entries[0].AvgCost)
}

func TestBuildLedger_Empty(t *testing.T) {
	l := BuildLedger(nil, 0, 1, 0)
	assert.Empty(t, l.Entries)
	assert.Contains(t, ExecutionReport(l, false), "Count:0(Size:0.0)")
}

func TestExecutionReport(t *testing.T) {
	l := BuildLedger(testExecs(), -4, 100, 150)

	got := ExecutionReport(l, false)
	assert.Contains(t, got, "[BTC  statistics]  PF:inf  Balance:90.1000 -> 100.0000\n")
	assert.Contains(t, got, "  [Total   ] Count:2(Size:14.0)  PnL:+9.9  Avr:+4.95\n")
	assert.Contains(t, got, "  [Profit  ] Count:2(100.00%)  Sum:+9.9  Avr:+4.95  Max:+6.0  MaxLen:2(+9.9)\n")
	assert.Contains(t, got, "  [Fee     ] Trade:-0.1  Funding:-0.05\n")
	assert.Contains(t, got, "  [Max risk] Drawdown:0.00%(+0.0) 1970/01/01 09:05:00\n")

	got = ExecutionReport(l, true)
	assert.Contains(t, got, "[Fiat statistics]  PF:inf  Balance:9,010 -> 20,000\n")
	assert.Contains(t, got, "  [Total   ] Count:2(Size:0)  PnL:+10,990.0  Avr:+5,495.0\n")
	assert.Contains(t, got, "  [Fee     ] Trade:0  Funding:0\n")
}

func TestLedgerFrame(t *testing.T) {
	f := BuildLedger(testExecs(), -4, 100, 150).Frame()
	assert.Equal(t, 3, f.Len())
	funding, err := f.Column(ColFunding)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 0, 0}, funding)
	pos, err := f.Column(ColPosition)
	require.NoError(t, err)
	assert.Equal(t, []float64{10, 6, -4}, pos)
}
