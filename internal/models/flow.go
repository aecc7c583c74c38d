package models

import "time"

// LargeOrder is a single large-order event: a trade whose amount reached the
// session threshold, ranked descending by amount (rank 1 = largest; ties go
// to the more recent trade).
type LargeOrder struct {
	Rank   int       `json:"rank"`
	Time   time.Time `json:"time"`
	Price  float64   `json:"price"`
	Volume float64   `json:"volume"`
	Amount float64   `json:"amount"`
	Dir    Direction `json:"direction"`
	// Ratio is amount relative to the session's mean trade amount.
	Ratio float64 `json:"ratio"`
}

// FlowState holds the session-cumulative order-flow totals produced by the
// flow analyzer. It is finalized in one shot from the full canonical stream
// and never exposed mid-computation.
type FlowState struct {
	TradeCount   int `json:"trade_count"`
	BuyCount     int `json:"buy_count"`
	SellCount    int `json:"sell_count"`
	NeutralCount int `json:"neutral_count"`

	BuyAmount     float64 `json:"buy_amount"`
	SellAmount    float64 `json:"sell_amount"`
	NeutralAmount float64 `json:"neutral_amount"`
	NetInflow     float64 `json:"net_inflow"`

	// OFI = (buy - sell) / max(buy + sell, 1); neutral amount excluded.
	OFI       float64 `json:"ofi"`
	BuyRatio  float64 `json:"buy_ratio"`
	SellRatio float64 `json:"sell_ratio"`

	TotalTurnover float64 `json:"total_turnover"`
	TotalVolume   float64 `json:"total_volume"`
	VWAP          float64 `json:"vwap"`

	LargeOrderThreshold float64      `json:"large_order_threshold"`
	LargeOrderCount     int          `json:"large_order_count"`
	LargeOrderRatio     float64      `json:"large_order_ratio"` // fraction of trades at/above the threshold
	LargeOrders         []LargeOrder `json:"large_orders"`

	LargeBuyAmount  float64 `json:"large_buy_amount"`
	LargeSellAmount float64 `json:"large_sell_amount"`
	LargeNetInflow  float64 `json:"large_order_net_inflow"`
	RetailNetInflow float64 `json:"retail_net_inflow"`

	// NoTrades is set when the canonical stream was empty. An all-zero
	// FlowState without this marker is an invariant violation, not data.
	NoTrades bool `json:"no_trades,omitempty"`
}

// IsZero reports whether every flow total is zero. Used by the result
// validator to catch silently-empty sessions.
func (f *FlowState) IsZero() bool {
	return f.TradeCount == 0 &&
		f.BuyAmount == 0 && f.SellAmount == 0 && f.NeutralAmount == 0 &&
		f.TotalTurnover == 0 && f.TotalVolume == 0
}
