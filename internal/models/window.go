package models

import "time"

// WindowAggregate is one fixed-width time bucket of the canonical stream.
// Windows with zero trades are never emitted.
type WindowAggregate struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`

	Open  float64 `json:"price_open"`
	High  float64 `json:"price_high"`
	Low   float64 `json:"price_low"`
	Close float64 `json:"price_close"`
	VWAP  float64 `json:"vwap"`

	BuyAmount  float64 `json:"buy_amount"`
	SellAmount float64 `json:"sell_amount"`
	NetInflow  float64 `json:"net_inflow"`
	Turnover   float64 `json:"turnover"`
	Volume     float64 `json:"volume"`

	// OFI is clipped at the session's 95th-percentile magnitude.
	OFI float64 `json:"ofi"`

	BuyCount        int `json:"buy_count"`
	SellCount       int `json:"sell_count"`
	NeutralCount    int `json:"neutral_count"`
	TradeCount      int `json:"trade_count"`
	LargeOrderCount int `json:"large_order_count"`

	RangePct float64 `json:"range_pct"`
}

// SeriesPoint is one point of a derived chart series (cumulative inflow,
// smoothed OFI).
type SeriesPoint struct {
	Time  time.Time `json:"time"`
	Value float64   `json:"value"`
}

// AnomalyKind classifies an anomaly event.
type AnomalyKind string

const (
	AnomalyLargeOrderImpact AnomalyKind = "large_order_impact"
	AnomalyDensityBurst     AnomalyKind = "density_burst"
	AnomalyInflowJump       AnomalyKind = "inflow_jump"
)

// AnomalyEvent is a single detected anomaly, computed once from finalized
// window/flow data and read-only thereafter.
type AnomalyEvent struct {
	Kind AnomalyKind `json:"kind"`
	// Time is the trade time for large-order events, otherwise the start of
	// the flagged window.
	Time time.Time `json:"time"`
	// PrevWindow is set for inflow jumps: the start of the earlier window of
	// the flagged pair.
	PrevWindow *time.Time `json:"prev_window,omitempty"`
	Magnitude  float64    `json:"magnitude"`
	Note       string     `json:"note"`
}
