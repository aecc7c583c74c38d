// Package flow derives session-cumulative order-flow signals from the
// canonical trade stream.
package flow

import (
	"log/slog"
	"sort"

	"github.com/luke0708/stock-analysis/internal/config"
	"github.com/luke0708/stock-analysis/internal/models"
	"github.com/luke0708/stock-analysis/internal/stats"
)

// ratioFloor is the denominator floor shared by OFI and the buy/sell
// ratios. Neutral amount is excluded from every one of these denominators;
// that convention is applied here and nowhere else.
const ratioFloor = 1.0

// Analyzer computes a FlowState from a canonical trade stream.
type Analyzer struct {
	percentile float64
	minAmount  float64
	topK       int
	logger     *slog.Logger
}

// New creates a flow analyzer with the session large-order parameters.
func New(cfg *config.Config, logger *slog.Logger) *Analyzer {
	return &Analyzer{
		percentile: cfg.LargeOrderPercentile,
		minAmount:  cfg.LargeOrderMinAmount,
		topK:       cfg.LargeOrderTopK,
		logger:     logger.With("component", "flow"),
	}
}

// Analyze consumes the full canonical stream and returns the finalized
// FlowState. An empty stream yields zero totals with the NoTrades marker;
// it is never an error.
func (a *Analyzer) Analyze(trades []models.CleanTrade) *models.FlowState {
	state := &models.FlowState{LargeOrders: []models.LargeOrder{}}

	if len(trades) == 0 {
		state.NoTrades = true
		state.LargeOrderThreshold = a.minAmount
		return state
	}

	amounts := make([]float64, len(trades))
	for i := range trades {
		t := &trades[i]
		amounts[i] = t.Amount

		state.TradeCount++
		state.TotalTurnover += t.Amount
		state.TotalVolume += t.Volume

		switch t.Dir {
		case models.DirectionBuy:
			state.BuyCount++
			state.BuyAmount += t.Amount
		case models.DirectionSell:
			state.SellCount++
			state.SellAmount += t.Amount
		default:
			state.NeutralCount++
			state.NeutralAmount += t.Amount
		}
	}

	state.NetInflow = state.BuyAmount - state.SellAmount
	denom := state.BuyAmount + state.SellAmount
	if denom < ratioFloor {
		denom = ratioFloor
	}
	state.OFI = (state.BuyAmount - state.SellAmount) / denom
	state.BuyRatio = state.BuyAmount / denom
	state.SellRatio = state.SellAmount / denom

	if state.TotalVolume >= 1 {
		state.VWAP = state.TotalTurnover / state.TotalVolume
	} else {
		state.VWAP = state.TotalTurnover
	}

	// Threshold is fixed once per session: the configured percentile of
	// per-trade amount, floored at the fixed minimum.
	threshold := stats.Percentile(amounts, a.percentile)
	if threshold < a.minAmount {
		threshold = a.minAmount
	}
	state.LargeOrderThreshold = threshold

	a.collectLargeOrders(trades, state)

	a.logger.Debug("flow_finalized",
		"trades", state.TradeCount,
		"net_inflow", state.NetInflow,
		"ofi", state.OFI,
		"large_order_threshold", state.LargeOrderThreshold,
		"large_orders", state.LargeOrderCount,
	)

	return state
}

// collectLargeOrders gathers every trade at/above the session threshold,
// computes the large/retail split, and keeps the top-K ranked descending by
// amount with the more recent trade winning ties.
func (a *Analyzer) collectLargeOrders(trades []models.CleanTrade, state *models.FlowState) {
	meanAmount := state.TotalTurnover / float64(state.TradeCount)

	var events []models.LargeOrder
	for i := range trades {
		t := &trades[i]
		if t.Amount < state.LargeOrderThreshold {
			continue
		}

		switch t.Dir {
		case models.DirectionBuy:
			state.LargeBuyAmount += t.Amount
		case models.DirectionSell:
			state.LargeSellAmount += t.Amount
		}

		ratio := 0.0
		if meanAmount > 0 {
			ratio = t.Amount / meanAmount
		}
		events = append(events, models.LargeOrder{
			Time:   t.Time,
			Price:  t.Price,
			Volume: t.Volume,
			Amount: t.Amount,
			Dir:    t.Dir,
			Ratio:  ratio,
		})
	}

	state.LargeOrderCount = len(events)
	state.LargeOrderRatio = float64(len(events)) / float64(state.TradeCount)
	state.LargeNetInflow = state.LargeBuyAmount - state.LargeSellAmount
	state.RetailNetInflow = (state.BuyAmount - state.LargeBuyAmount) - (state.SellAmount - state.LargeSellAmount)

	sort.SliceStable(events, func(i, j int) bool {
		if events[i].Amount != events[j].Amount {
			return events[i].Amount > events[j].Amount
		}
		return events[i].Time.After(events[j].Time)
	})

	if len(events) > a.topK {
		events = events[:a.topK]
	}
	for i := range events {
		events[i].Rank = i + 1
	}
	state.LargeOrders = events
}
