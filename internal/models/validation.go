package models

import (
	"fmt"
	"math"
)

// InvariantViolationError marks a programming-defect-class failure: the
// pipeline produced data that breaks one of its own guarantees. Distinct
// from data-quality degradation, which only accumulates flags.
type InvariantViolationError struct {
	Invariant string
	Detail    string
}

func (e *InvariantViolationError) Error() string {
	return fmt.Sprintf("invariant violation (%s): %s", e.Invariant, e.Detail)
}

func violation(invariant, format string, args ...any) error {
	return &InvariantViolationError{Invariant: invariant, Detail: fmt.Sprintf(format, args...)}
}

// ValidateWindows checks the business rules every finished window sequence
// must satisfy: strictly increasing starts, the turnover identity, OFI range
// after clipping, and no empty windows.
func ValidateWindows(windows []WindowAggregate) error {
	for i, w := range windows {
		if w.TradeCount <= 0 {
			return violation("non_empty_windows", "window %s has trade_count %d", w.Start, w.TradeCount)
		}

		if i > 0 && !windows[i-1].Start.Before(w.Start) {
			return violation("monotonic_windows", "window %s does not follow %s", w.Start, windows[i-1].Start)
		}

		if w.Turnover < 0 {
			return violation("non_negative_turnover", "window %s turnover %f", w.Start, w.Turnover)
		}

		// turnover = buy + sell + neutral amounts; buy+sell alone must never
		// exceed it.
		if w.BuyAmount+w.SellAmount-w.Turnover > 1e-6*math.Max(1, w.Turnover) {
			return violation("turnover_identity",
				"window %s buy %f + sell %f exceeds turnover %f", w.Start, w.BuyAmount, w.SellAmount, w.Turnover)
		}

		if w.OFI < -1 || w.OFI > 1 {
			return violation("ofi_range", "window %s ofi %f outside [-1, 1]", w.Start, w.OFI)
		}
	}
	return nil
}

// ValidateTradeConservation checks that no in-session trade was lost or
// double-counted across window boundaries.
func ValidateTradeConservation(windows []WindowAggregate, cleanCount int) error {
	total := 0
	for _, w := range windows {
		total += w.TradeCount
	}
	if total != cleanCount {
		return violation("trade_conservation",
			"window trade counts sum to %d, canonical stream has %d", total, cleanCount)
	}
	return nil
}

// ValidateSessionResult runs the end-of-pipeline checks on a tick-mode
// result. streamCount is the length of the stream the analytic stages
// actually consumed (canonical trades, plus auction trades when the caller
// opted in). It exists to catch the observed all-zero-metrics defect at the
// boundary: a non-empty stream must never produce an all-zero FlowState
// unless the no_trades flag is set.
func ValidateSessionResult(r *SessionResult, streamCount int) error {
	if r.Source != SourceTick {
		return nil
	}

	if r.Flow == nil {
		return violation("tick_result_complete", "tick-mode result without flow state")
	}

	if streamCount > 0 && r.Flow.IsZero() && !r.Flow.NoTrades && !r.QualityFlags.Has(FlagNoTrades) {
		return violation("all_zero_flow",
			"flow totals all zero for %d analyzed trades without no_trades flag", streamCount)
	}

	if err := ValidateWindows(r.Windows); err != nil {
		return err
	}

	if !r.Flow.NoTrades {
		if err := ValidateTradeConservation(r.Windows, streamCount); err != nil {
			return err
		}
	}

	return nil
}
