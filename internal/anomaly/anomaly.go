// Package anomaly flags statistically unusual windows and trades in a
// finalized session. The detector is purely derivative: it never mutates
// upstream state and re-running it on the same inputs yields the same
// events.
package anomaly

import (
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/luke0708/stock-analysis/internal/config"
	"github.com/luke0708/stock-analysis/internal/models"
	"github.com/luke0708/stock-analysis/internal/stats"
)

// Detector finds density bursts, net-inflow jumps, and large-order impact
// events.
type Detector struct {
	burstSigma float64
	iqrMult    float64
	logger     *slog.Logger
}

// New creates a detector with the session-relative thresholds.
func New(cfg *config.Config, logger *slog.Logger) *Detector {
	return &Detector{
		burstSigma: cfg.BurstSigma,
		iqrMult:    cfg.InflowIQRMult,
		logger:     logger.With("component", "anomaly"),
	}
}

// Detect computes the anomaly events for a finalized window series and flow
// state, ordered by event time.
func (d *Detector) Detect(windows []models.WindowAggregate, state *models.FlowState) []models.AnomalyEvent {
	events := []models.AnomalyEvent{}
	events = append(events, d.largeOrderImpacts(state)...)
	events = append(events, d.densityBursts(windows)...)
	events = append(events, d.inflowJumps(windows)...)

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Time.Before(events[j].Time)
	})

	d.logger.Debug("anomaly_detection_finished", "events", len(events))
	return events
}

// largeOrderImpacts surfaces every retained large-order event, independent
// of which window it falls in.
func (d *Detector) largeOrderImpacts(state *models.FlowState) []models.AnomalyEvent {
	if state == nil {
		return nil
	}
	events := make([]models.AnomalyEvent, 0, len(state.LargeOrders))
	for _, lo := range state.LargeOrders {
		events = append(events, models.AnomalyEvent{
			Kind:      models.AnomalyLargeOrderImpact,
			Time:      lo.Time,
			Magnitude: lo.Amount,
			Note: fmt.Sprintf("large %s order of %.0f at %s (%.1fx mean trade, rank %d)",
				lo.Dir, lo.Amount, lo.Time.Format("15:04:05"), lo.Ratio, lo.Rank),
		})
	}
	return events
}

// densityBursts flags windows whose trade count exceeds mean + k*std of the
// session's window series. The first and last windows are excluded from the
// baseline to avoid the open/close edge biasing a thin session's mean.
func (d *Detector) densityBursts(windows []models.WindowAggregate) []models.AnomalyEvent {
	if len(windows) < 3 {
		return nil
	}

	baseline := make([]float64, 0, len(windows)-2)
	for i := 1; i < len(windows)-1; i++ {
		baseline = append(baseline, float64(windows[i].TradeCount))
	}

	mean := stats.Mean(baseline)
	std := stats.Std(baseline)
	threshold := mean + d.burstSigma*std
	if std == 0 {
		return nil
	}

	var events []models.AnomalyEvent
	for i := range windows {
		w := &windows[i]
		if float64(w.TradeCount) <= threshold {
			continue
		}
		events = append(events, models.AnomalyEvent{
			Kind:      models.AnomalyDensityBurst,
			Time:      w.Start,
			Magnitude: float64(w.TradeCount),
			Note: fmt.Sprintf("trade density burst at %s: %d trades vs baseline %.1f (threshold %.1f)",
				w.Start.Format("15:04"), w.TradeCount, mean, threshold),
		})
	}
	return events
}

// inflowJumps flags consecutive-window net-inflow deltas whose magnitude
// exceeds a multiple of the session IQR of deltas.
func (d *Detector) inflowJumps(windows []models.WindowAggregate) []models.AnomalyEvent {
	if len(windows) < 3 {
		return nil
	}

	deltas := make([]float64, 0, len(windows)-1)
	for i := 1; i < len(windows); i++ {
		deltas = append(deltas, windows[i].NetInflow-windows[i-1].NetInflow)
	}

	iqr := stats.IQR(deltas)
	if iqr <= 0 {
		return nil
	}
	threshold := d.iqrMult * iqr

	var events []models.AnomalyEvent
	for i := 1; i < len(windows); i++ {
		delta := windows[i].NetInflow - windows[i-1].NetInflow
		if math.Abs(delta) <= threshold {
			continue
		}
		prev := windows[i-1].Start
		events = append(events, models.AnomalyEvent{
			Kind:       models.AnomalyInflowJump,
			Time:       windows[i].Start,
			PrevWindow: &prev,
			Magnitude:  delta,
			Note: fmt.Sprintf("net inflow jump of %.0f between %s and %s (threshold %.0f)",
				delta, prev.Format("15:04"), windows[i].Start.Format("15:04"), threshold),
		})
	}
	return events
}
