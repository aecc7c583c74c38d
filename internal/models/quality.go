package models

import "encoding/json"

// Quality flag tokens. A flag records a corrective or degraded action taken
// somewhere in the pipeline; flags accumulate and are never cleared.
const (
	FlagNoTrades             = "no_trades"
	FlagNoTickData           = "no_tick_data"
	FlagFallbackToMinute     = "fallback_to_minute"
	FlagNotCurrentDay        = "not_current_trading_day"
	FlagTickCleanEmpty       = "tick_clean_empty"
	FlagMissingCriticalField = "missing_critical_fields"

	FlagMissingTime   = "missing_time"
	FlagMissingPrice  = "missing_price"
	FlagMissingVolume = "missing_volume"
	FlagMissingAmount = "missing_amount"

	FlagUnparsableTimestamp = "unparsable_timestamp_dropped"
	FlagInvalidDropped      = "invalid_trades_dropped"
	FlagDuplicateSeqDropped = "duplicate_seq_dropped"
	FlagNonTradingTime      = "non_trading_time"
	FlagExtremePriceJump    = "extreme_price_jump"

	FlagUnitAssumedLots  = "unit_assumed_lots"
	FlagVolumeUnitShares = "volume_unit_shares"
	FlagNatureInferred   = "nature_inferred"
	FlagNatureAllNeutral = "nature_all_neutral_inferred"
)

// QualityFlags is an append-only ordered set of flag tokens. It is threaded
// through the pipeline and returned alongside each stage's primary output;
// there is no ambient/global flag state.
type QualityFlags struct {
	tokens []string
	seen   map[string]bool
}

// NewQualityFlags creates an empty flag set.
func NewQualityFlags() *QualityFlags {
	return &QualityFlags{seen: make(map[string]bool)}
}

// Add appends a token unless already present. Insertion order is preserved.
func (q *QualityFlags) Add(token string) {
	if q.seen == nil {
		q.seen = make(map[string]bool)
	}
	if q.seen[token] {
		return
	}
	q.seen[token] = true
	q.tokens = append(q.tokens, token)
}

// Merge appends every token of other in order.
func (q *QualityFlags) Merge(other *QualityFlags) {
	if other == nil {
		return
	}
	for _, t := range other.tokens {
		q.Add(t)
	}
}

// Has reports whether a token was recorded.
func (q *QualityFlags) Has(token string) bool {
	return q != nil && q.seen[token]
}

// List returns the tokens in insertion order. The returned slice is a copy.
func (q *QualityFlags) List() []string {
	if q == nil || len(q.tokens) == 0 {
		return []string{}
	}
	out := make([]string, len(q.tokens))
	copy(out, q.tokens)
	return out
}

// Len returns the number of distinct tokens.
func (q *QualityFlags) Len() int {
	if q == nil {
		return 0
	}
	return len(q.tokens)
}

// MarshalJSON encodes the set as a plain JSON array of tokens.
func (q *QualityFlags) MarshalJSON() ([]byte, error) {
	return json.Marshal(q.List())
}

// UnmarshalJSON decodes a JSON array of tokens.
func (q *QualityFlags) UnmarshalJSON(data []byte) error {
	var tokens []string
	if err := json.Unmarshal(data, &tokens); err != nil {
		return err
	}
	q.tokens = nil
	q.seen = make(map[string]bool)
	for _, t := range tokens {
		q.Add(t)
	}
	return nil
}
