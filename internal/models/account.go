package models

import "sort"

// Execution types reported by the bybit execution list.
const (
	ExecTypeTrade   = "Trade"
	ExecTypeFunding = "Funding"
)

// Order statuses requested when listing open orders.
const (
	OrderStatusNew             = "New"
	OrderStatusPartiallyFilled = "PartiallyFilled"
)

// Execution is one fill or funding settlement from the private execution list.
// Value is the contract value in the settlement currency.
type Execution struct {
	ID        string  `json:"exec_id"`
	Time      float64 `json:"exec_time"`
	Type      string  `json:"exec_type"`
	OrderType string  `json:"order_type"`
	Side      string  `json:"side"`
	Price     float64 `json:"exec_price"`
	Qty       float64 `json:"exec_qty"`
	Value     float64 `json:"exec_value"`
	FeeRate   float64 `json:"fee_rate"`
	Fee       float64 `json:"exec_fee"`
}

// IsFunding reports whether the row is a funding settlement rather than a fill.
func (e Execution) IsFunding() bool { return e.Type == ExecTypeFunding }

// SignedQty returns the quantity with Buy positive and Sell negative.
func (e Execution) SignedQty() float64 {
	if e.Side == SideSell {
		return -e.Qty
	}
	return e.Qty
}

// SortExecutions orders executions by time and drops exact repeats, keeping
// the last copy of each.
func SortExecutions(execs []Execution) []Execution {
	sort.SliceStable(execs, func(i, j int) bool { return execs[i].Time < execs[j].Time })
	seen := make(map[Execution]int, len(execs))
	for i, e := range execs {
		seen[e] = i
	}
	out := make([]Execution, 0, len(seen))
	for i, e := range execs {
		if seen[e] == i {
			out = append(out, e)
		}
	}
	return out
}

// Ticker is the public price summary for one symbol.
type Ticker struct {
	Symbol       string  `json:"symbol"`
	LastPrice    float64 `json:"last_price"`
	BidPrice     float64 `json:"bid_price"`
	AskPrice     float64 `json:"ask_price"`
	MarkPrice    float64 `json:"mark_price"`
	IndexPrice   float64 `json:"index_price"`
	Volume24h    float64 `json:"volume_24h"`
	OpenInterest float64 `json:"open_interest"`
	FundingRate  float64 `json:"funding_rate"`
}

// Position is the account position and wallet for one inverse contract.
type Position struct {
	Symbol            string  `json:"symbol"`
	Side              string  `json:"side"`
	Size              float64 `json:"size"`
	WalletBalance     float64 `json:"wallet_balance"`
	PositionMargin    float64 `json:"position_margin"`
	EntryPrice        float64 `json:"entry_price"`
	StopLoss          float64 `json:"stop_loss"`
	TakeProfit        float64 `json:"take_profit"`
	TrailingStop      float64 `json:"trailing_stop"`
	LiqPrice          float64 `json:"liq_price"`
	EffectiveLeverage float64 `json:"effective_leverage"`
	UnrealisedPnL     float64 `json:"unrealised_pnl"`
	OccClosingFee     float64 `json:"occ_closing_fee"`
	OccFundingFee     float64 `json:"occ_funding_fee"`
}

// SignedSize returns the size with a long position positive and a short one negative.
func (p Position) SignedSize() float64 {
	if p.Side == SideBuy {
		return p.Size
	}
	return -p.Size
}

// UsedMargin is the margin held by the position and its reserved fees, net of unrealised PnL.
func (p Position) UsedMargin() float64 {
	return p.PositionMargin + p.OccClosingFee + p.OccFundingFee - p.UnrealisedPnL
}

// Available is the wallet balance not held as margin.
func (p Position) Available() float64 {
	return p.WalletBalance - p.UsedMargin()
}

// PricePnL is the per-contract price move in the position's favour at last.
func (p Position) PricePnL(last float64) float64 {
	switch p.Side {
	case SideBuy:
		return last - p.EntryPrice
	case SideSell:
		return p.EntryPrice - last
	}
	return 0
}

// Order is an active order.
type Order struct {
	ID          string  `json:"order_id"`
	Symbol      string  `json:"symbol"`
	Status      string  `json:"order_status"`
	OrderType   string  `json:"order_type"`
	Side        string  `json:"side"`
	Price       float64 `json:"price"`
	Qty         float64 `json:"qty"`
	CumExecQty  float64 `json:"cum_exec_qty"`
	UpdatedAt   float64 `json:"updated_at"`
	TimeInForce string  `json:"time_in_force"`
	ReduceOnly  bool    `json:"reduce_only"`
}
