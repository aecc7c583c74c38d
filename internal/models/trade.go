package models

import "time"

// Direction is the signed side of a trade: +1 buy, -1 sell, 0 neutral.
type Direction int

const (
	DirectionSell    Direction = -1
	DirectionNeutral Direction = 0
	DirectionBuy     Direction = 1
)

// String returns the wire representation used in JSON output.
func (d Direction) String() string {
	switch d {
	case DirectionBuy:
		return "buy"
	case DirectionSell:
		return "sell"
	default:
		return "neutral"
	}
}

// FieldOrigin records whether a CleanTrade field came from the provider or
// was reconstructed by the cleaner.
type FieldOrigin string

const (
	OriginSourced  FieldOrigin = "sourced"
	OriginInferred FieldOrigin = "inferred"
)

// RawTrade is a single provider tick record as received, before cleaning.
// Fields may be absent or unit-ambiguous; the cleaner owns all repair.
type RawTrade struct {
	// Time is either "HH:MM[:SS]" (combined with the analysis date) or a
	// full "YYYY-MM-DD HH:MM:SS" datetime.
	Time   string  `json:"time"`
	Price  float64 `json:"price"`
	Volume float64 `json:"volume"`
	// Amount is optional; zero or absent means "derive from price*volume".
	Amount float64 `json:"amount,omitempty"`
	// Side is the provider buy/sell/neutral indicator, empty when absent.
	// Accepted spellings: buy/sell/neutral, B/S/N.
	Side string `json:"side,omitempty"`
	// Seq is the provider-assigned sequence number, nil when absent.
	Seq *int64 `json:"seq,omitempty"`
}

// CleanTrade is one record of the canonical trade stream. The cleaner
// exclusively produces this type; downstream stages treat it as immutable.
type CleanTrade struct {
	Time   time.Time `json:"time"`
	Price  float64   `json:"price"`
	Volume float64   `json:"volume"` // always individual shares
	Amount float64   `json:"amount"` // always populated
	Dir    Direction `json:"direction"`

	IsAuction bool `json:"is_auction,omitempty"`
	// ExtremeJump marks a large one-trade price move. The trade is retained;
	// disposition belongs to the anomaly/visual layers.
	ExtremeJump bool `json:"extreme_jump,omitempty"`

	Seq    int64 `json:"seq,omitempty"`
	HasSeq bool  `json:"-"`

	DirOrigin    FieldOrigin `json:"direction_origin"`
	AmountOrigin FieldOrigin `json:"amount_origin"`
}

// SignedAmount is the trade amount gated by direction sign. Neutral trades
// contribute zero.
func (t *CleanTrade) SignedAmount() float64 {
	return t.Amount * float64(t.Dir)
}
