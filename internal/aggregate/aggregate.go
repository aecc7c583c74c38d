// Package aggregate buckets the canonical trade stream into fixed-width
// time windows for charting and downstream analysis.
package aggregate

import (
	"log/slog"
	"math"
	"time"

	"github.com/luke0708/stock-analysis/internal/config"
	"github.com/luke0708/stock-analysis/internal/models"
	"github.com/luke0708/stock-analysis/internal/stats"
)

// Aggregator produces WindowAggregate sequences. Windows are anchored to
// the open of the trade's own sub-session, so no bucket can span the midday
// non-trading gap.
type Aggregator struct {
	morningOpen   int // minutes of day
	morningClose  int
	afternoonOpen int

	clipPercentile float64
	logger         *slog.Logger
}

// New creates an aggregator from the configured session boundaries.
func New(cfg *config.Config, logger *slog.Logger) *Aggregator {
	return &Aggregator{
		morningOpen:    parseMinute(cfg.MorningOpen),
		morningClose:   parseMinute(cfg.MorningClose),
		afternoonOpen:  parseMinute(cfg.AfternoonOpen),
		clipPercentile: cfg.ClipPercentile,
		logger:         logger.With("component", "aggregator"),
	}
}

func parseMinute(hhmm string) int {
	t, err := time.Parse("15:04", hhmm)
	if err != nil {
		panic("aggregate: unvalidated session boundary " + hhmm)
	}
	return t.Hour()*60 + t.Minute()
}

// Aggregate buckets a sorted canonical stream into windowMin-minute windows
// in one linear scan. state supplies the session large-order threshold for
// per-window large-order counts; it may be nil. Empty buckets are omitted,
// never interpolated. Aggregate is a pure function of its inputs.
func (g *Aggregator) Aggregate(trades []models.CleanTrade, state *models.FlowState, windowMin int) []models.WindowAggregate {
	if len(trades) == 0 {
		return []models.WindowAggregate{}
	}

	largeThreshold := math.Inf(1)
	if state != nil && state.LargeOrderThreshold > 0 {
		largeThreshold = state.LargeOrderThreshold
	}

	width := time.Duration(windowMin) * time.Minute
	windows := make([]models.WindowAggregate, 0, 64)

	var cur *models.WindowAggregate
	for i := range trades {
		t := &trades[i]
		start := g.windowStart(t.Time, windowMin)

		if cur == nil || !cur.Start.Equal(start) {
			if cur != nil {
				windows = append(windows, *cur)
			}
			cur = &models.WindowAggregate{
				Start: start,
				End:   start.Add(width),
				Open:  t.Price,
				High:  t.Price,
				Low:   t.Price,
			}
		}

		cur.Close = t.Price
		if t.Price > cur.High {
			cur.High = t.Price
		}
		if t.Price < cur.Low {
			cur.Low = t.Price
		}

		cur.Turnover += t.Amount
		cur.Volume += t.Volume
		cur.TradeCount++

		switch t.Dir {
		case models.DirectionBuy:
			cur.BuyCount++
			cur.BuyAmount += t.Amount
		case models.DirectionSell:
			cur.SellCount++
			cur.SellAmount += t.Amount
		default:
			cur.NeutralCount++
		}

		if t.Amount >= largeThreshold {
			cur.LargeOrderCount++
		}
	}
	windows = append(windows, *cur)

	g.finalize(windows)

	g.logger.Debug("aggregation_finished",
		"window_min", windowMin,
		"windows", len(windows),
		"trades", len(trades),
	)

	return windows
}

// windowStart computes the anchored bucket start for a trade. Buckets are
// anchored at the trade's own sub-session open, not wall-clock rounding:
// the first window of each sub-session starts exactly at that open.
func (g *Aggregator) windowStart(ts time.Time, windowMin int) time.Time {
	m := ts.Hour()*60 + ts.Minute()
	anchor := g.morningOpen
	if m > g.morningClose {
		anchor = g.afternoonOpen
	}

	// Floor division handles pre-open auction trades when the caller opts
	// to include them (negative offsets from the morning anchor).
	offset := m - anchor
	idx := offset / windowMin
	if offset < 0 && offset%windowMin != 0 {
		idx--
	}
	startMinute := anchor + idx*windowMin

	day := time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, ts.Location())
	return day.Add(time.Duration(startMinute) * time.Minute)
}

// finalize fills the derived per-window values: net inflow recomputed from
// the window's own sides (not diffed from session totals), VWAP, range_pct,
// and the session-clipped OFI series.
func (g *Aggregator) finalize(windows []models.WindowAggregate) {
	rawOFI := make([]float64, len(windows))
	magnitudes := make([]float64, len(windows))

	for i := range windows {
		w := &windows[i]

		w.NetInflow = w.BuyAmount - w.SellAmount

		vol := w.Volume
		if vol < 1 {
			vol = 1
		}
		w.VWAP = w.Turnover / vol

		vwap := w.VWAP
		if vwap < 1 {
			vwap = 1
		}
		w.RangePct = (w.High - w.Low) / vwap * 100

		denom := w.BuyAmount + w.SellAmount
		if denom < 1 {
			denom = 1
		}
		rawOFI[i] = (w.BuyAmount - w.SellAmount) / denom
		magnitudes[i] = math.Abs(rawOFI[i])
	}

	// One clip bound per session, never per point: the configured
	// percentile of the series' own magnitude distribution. A single
	// outlier window must not flatten the scale of everything else.
	bound := stats.Percentile(magnitudes, g.clipPercentile)
	for i := range windows {
		v := rawOFI[i]
		if bound > 0 {
			if v > bound {
				v = bound
			} else if v < -bound {
				v = -bound
			}
		}
		windows[i].OFI = v
	}
}
