package models

import "time"

// DataSource identifies which pipeline produced a session's numbers.
type DataSource string

const (
	SourceTick   DataSource = "tick"
	SourceMinute DataSource = "minute"
)

// CleanReport summarizes what the cleaner did to a raw batch.
type CleanReport struct {
	RawCount     int `json:"raw_count"`
	CleanCount   int `json:"clean_count"`
	AuctionCount int `json:"auction_count"`

	DroppedInvalid     int `json:"dropped_invalid"`
	DroppedUnparsable  int `json:"dropped_unparsable_timestamp"`
	DroppedOffSession  int `json:"dropped_off_session"`
	DroppedDuplicates  int `json:"dropped_duplicate_seq"`
	ExtremeJumpCount   int `json:"extreme_jump_count"`
	InferredDirections int `json:"inferred_directions"`

	// InferredRatio is the fraction of clean trades whose direction was
	// inferred rather than sourced.
	InferredRatio float64 `json:"inferred_ratio"`
	VolumeUnit    string  `json:"volume_unit"`
}

// AuctionSummary describes the pre-open call-auction subsequence.
type AuctionSummary struct {
	TradeCount int       `json:"trade_count"`
	Volume     float64   `json:"volume"`
	Amount     float64   `json:"amount"`
	LastTime   time.Time `json:"last_time"`
}

// BurstWindow is the summary view of a density-burst window.
type BurstWindow struct {
	Start      time.Time `json:"start"`
	TradeCount int       `json:"trade_count"`
	NetInflow  float64   `json:"net_inflow"`
}

// SummaryScope is the data-scope header of a session summary.
type SummaryScope struct {
	Symbol        string     `json:"symbol"`
	Date          string     `json:"date"` // YYYY-MM-DD
	Source        DataSource `json:"source"`
	TickAvailable bool       `json:"tick_available"`
	WindowMin     int        `json:"window_min"`
	QualityFlags  []string   `json:"quality_flags"`
}

// SessionSummary is the bounded block handed to the AI-summary consumer.
// It never contains raw ticks; size is bounded regardless of session size.
type SessionSummary struct {
	Scope SummaryScope `json:"scope"`
	Flow  *FlowState   `json:"flow"`

	// OFITrend is the OFI of the most recent five windows, oldest first.
	OFITrend []float64 `json:"ofi_trend"`

	// RecentWindows holds the most recent N windows (default 20);
	// ExtendedWindowCount reports how many more are available on request.
	RecentWindows       []WindowAggregate `json:"recent_windows"`
	ExtendedWindowCount int               `json:"extended_window_count"`

	LargeOrders  []LargeOrder  `json:"large_orders"`
	BurstWindows []BurstWindow `json:"burst_windows"`
	AnomalyNotes []string      `json:"anomaly_notes"`

	InferredRatio float64         `json:"inferred_ratio"`
	VolumeUnit    string          `json:"volume_unit"`
	Auction       *AuctionSummary `json:"auction,omitempty"`
	GeneratedAt   time.Time       `json:"generated_at"`
}

// SessionResult is the complete outcome of one analysis request. Either
// Source is "tick" and all analytic fields are populated, or Source is
// "minute" and FallbackReason tells the caller to run the minute pipeline.
type SessionResult struct {
	Symbol        string     `json:"symbol"`
	Date          string     `json:"date"`
	Source        DataSource `json:"source"`
	TickAvailable bool       `json:"tick_available"`
	WindowMin     int        `json:"window_min"`

	QualityFlags   *QualityFlags `json:"quality_flags"`
	FallbackReason string        `json:"fallback_reason,omitempty"`

	Clean     *CleanReport      `json:"clean,omitempty"`
	Flow      *FlowState        `json:"flow,omitempty"`
	Windows   []WindowAggregate `json:"windows,omitempty"`
	Anomalies []AnomalyEvent    `json:"anomalies,omitempty"`
	Summary   *SessionSummary   `json:"summary,omitempty"`

	// Chart-layer series derived from the 1-minute windows.
	CumNetInflow    []SeriesPoint `json:"cum_net_inflow,omitempty"`
	CumNetInflowEMA []SeriesPoint `json:"cum_net_inflow_ema,omitempty"`
	OFIDisplay      []SeriesPoint `json:"ofi_display,omitempty"`

	GeneratedAt time.Time `json:"generated_at"`
}

// Fallback reports whether the caller must use the minute-bar pipeline.
func (r *SessionResult) Fallback() bool {
	return r.Source == SourceMinute
}
