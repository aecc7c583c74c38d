// Package pipeline wires the cleaning, flow, aggregation, and anomaly
// stages behind the fallback coordinator. One Pipeline value serves
// independent requests concurrently; no state is shared between runs.
package pipeline

import (
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/luke0708/stock-analysis/internal/aggregate"
	"github.com/luke0708/stock-analysis/internal/anomaly"
	"github.com/luke0708/stock-analysis/internal/cleaner"
	"github.com/luke0708/stock-analysis/internal/config"
	"github.com/luke0708/stock-analysis/internal/flow"
	"github.com/luke0708/stock-analysis/internal/models"
	"github.com/luke0708/stock-analysis/internal/stats"
)

// Mode is the coordinator state for one session. MinuteFallback is
// terminal: once entered, stages 2-4 are skipped and the caller is told to
// run the minute-bar pipeline.
type Mode string

const (
	ModeTick           Mode = "tick"
	ModeMinuteFallback Mode = "minute_fallback"
)

// Fallback reason tokens recorded on the result.
const (
	ReasonNoTickData    = "no_tick_data"
	ReasonNotCurrentDay = "not_current_trading_day"
	ReasonCleanEmpty    = "tick_clean_empty"
	ReasonMissingFields = "missing_critical_fields"
)

// EMA smoothing factors for the chart-layer display series.
const (
	cumInflowAlpha  = 0.2
	ofiDisplayAlpha = 0.3
)

// ofiTrendWindows is how many trailing windows feed the summary OFI trend.
const ofiTrendWindows = 5

// Request is one analysis request: one security, one trading date, one raw
// tick batch. The caller owns tick availability and date context.
type Request struct {
	Symbol string
	Date   time.Time
	// CurrentDay is the provider's signal that this batch is current
	// trading day data. Tick mode requires it.
	CurrentDay     bool
	WindowMin      int // 0 means the configured default
	IncludeAuction bool
	Ticks          []models.RawTrade
}

// Pipeline runs the full tick analysis chain for a request.
type Pipeline struct {
	cfg      *config.Config
	cleaner  *cleaner.Cleaner
	flow     *flow.Analyzer
	agg      *aggregate.Aggregator
	detector *anomaly.Detector
	logger   *slog.Logger
}

// New builds a pipeline from configuration.
func New(cfg *config.Config, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		cfg:      cfg,
		cleaner:  cleaner.New(cfg, logger),
		flow:     flow.New(cfg, logger),
		agg:      aggregate.New(cfg, logger),
		detector: anomaly.New(cfg, logger),
		logger:   logger.With("component", "pipeline"),
	}
}

// Run executes the pipeline for one request. It returns either a complete
// tick-mode result with its quality flags, or a minute-fallback result with
// a reason; a partially-populated result is never returned. An error means
// an internal invariant was violated and the request must be treated as
// failed.
func (p *Pipeline) Run(req Request) (*models.SessionResult, error) {
	windowMin := req.WindowMin
	if windowMin == 0 {
		windowMin = p.cfg.DefaultWindowMin
	}
	switch windowMin {
	case 1, 5, 10:
	default:
		return nil, fmt.Errorf("unsupported window width %d minutes", windowMin)
	}

	flags := models.NewQualityFlags()

	if !req.CurrentDay {
		return p.fallback(req, windowMin, flags, ReasonNotCurrentDay, models.FlagNotCurrentDay), nil
	}
	if len(req.Ticks) == 0 {
		return p.fallback(req, windowMin, flags, ReasonNoTickData, models.FlagNoTickData), nil
	}

	cleanRes := p.cleaner.Clean(req.Ticks, req.Date)
	flags.Merge(cleanRes.Flags)

	// Fields critical to flow computation missing entirely forces the
	// minute path; partial degradation only flags.
	if flags.Has(models.FlagMissingTime) || flags.Has(models.FlagMissingPrice) {
		return p.fallback(req, windowMin, flags, ReasonMissingFields, models.FlagMissingCriticalField), nil
	}
	if len(cleanRes.Trades) == 0 {
		return p.fallback(req, windowMin, flags, ReasonCleanEmpty, models.FlagTickCleanEmpty), nil
	}

	stream := cleanRes.Trades
	if req.IncludeAuction {
		if auction := callAuctionTrades(cleanRes.Auction); len(auction) > 0 {
			stream = mergeStreams(cleanRes.Trades, auction)
		}
	}

	flowState := p.flow.Analyze(stream)
	if flowState.NoTrades {
		flags.Add(models.FlagNoTrades)
	}

	windows := p.agg.Aggregate(stream, flowState, windowMin)
	anomalies := p.detector.Detect(windows, flowState)

	// Chart series always derive from 1-minute windows regardless of the
	// requested display width.
	minuteWindows := windows
	if windowMin != 1 {
		minuteWindows = p.agg.Aggregate(stream, flowState, 1)
	}
	cum, cumEMA, ofiDisplay := chartSeries(minuteWindows)

	result := &models.SessionResult{
		Symbol:        req.Symbol,
		Date:          req.Date.Format("2006-01-02"),
		Source:        models.SourceTick,
		TickAvailable: true,
		WindowMin:     windowMin,
		QualityFlags:  flags,

		Clean:     &cleanRes.Report,
		Flow:      flowState,
		Windows:   windows,
		Anomalies: anomalies,

		CumNetInflow:    cum,
		CumNetInflowEMA: cumEMA,
		OFIDisplay:      ofiDisplay,

		GeneratedAt: time.Now(),
	}
	result.Summary = p.buildSummary(result, cleanRes, anomalies, windows)

	if err := models.ValidateSessionResult(result, len(stream)); err != nil {
		p.logger.Error("pipeline_invariant_violation",
			"symbol", req.Symbol,
			"date", result.Date,
			"error", err,
		)
		return nil, err
	}

	p.logger.Info("session_analyzed",
		"symbol", req.Symbol,
		"date", result.Date,
		"mode", ModeTick,
		"trades", flowState.TradeCount,
		"windows", len(windows),
		"anomalies", len(anomalies),
		"net_inflow", flowState.NetInflow,
		"quality_flags", flags.Len(),
	)

	return result, nil
}

// fallback produces the terminal minute-fallback result. Stages 2-4 are
// not invoked.
func (p *Pipeline) fallback(req Request, windowMin int, flags *models.QualityFlags, reason, flagToken string) *models.SessionResult {
	flags.Add(flagToken)
	flags.Add(models.FlagFallbackToMinute)

	p.logger.Warn("fallback_to_minute",
		"symbol", req.Symbol,
		"date", req.Date.Format("2006-01-02"),
		"mode", ModeMinuteFallback,
		"reason", reason,
	)

	return &models.SessionResult{
		Symbol:         req.Symbol,
		Date:           req.Date.Format("2006-01-02"),
		Source:         models.SourceMinute,
		TickAvailable:  len(req.Ticks) > 0,
		WindowMin:      windowMin,
		QualityFlags:   flags,
		FallbackReason: reason,
		GeneratedAt:    time.Now(),
	}
}

// callAuctionTrades selects the explicit call-auction entries from the
// cleaner's off-session bucket. Other off-session strays (midday break,
// after close) never enter the window series, even on opt-in.
func callAuctionTrades(bucket []models.CleanTrade) []models.CleanTrade {
	var out []models.CleanTrade
	for i := range bucket {
		if bucket[i].IsAuction {
			out = append(out, bucket[i])
		}
	}
	return out
}

// mergeStreams combines the canonical stream with the auction subsequence,
// re-sorted so the aggregator still sees a monotone stream.
func mergeStreams(session, auction []models.CleanTrade) []models.CleanTrade {
	merged := make([]models.CleanTrade, 0, len(session)+len(auction))
	merged = append(merged, auction...)
	merged = append(merged, session...)
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Time.Before(merged[j].Time)
	})
	return merged
}

// chartSeries derives the cumulative net inflow series (raw and EMA) and
// the smoothed OFI display series from the 1-minute windows.
func chartSeries(windows []models.WindowAggregate) (cum, cumEMA, ofiDisplay []models.SeriesPoint) {
	if len(windows) == 0 {
		return nil, nil, nil
	}

	cumValues := make([]float64, len(windows))
	ofiValues := make([]float64, len(windows))
	running := 0.0
	for i := range windows {
		running += windows[i].NetInflow
		cumValues[i] = running
		ofiValues[i] = windows[i].OFI
	}

	cumSmoothed := stats.EMA(cumValues, cumInflowAlpha)
	ofiSmoothed := stats.EMA(ofiValues, ofiDisplayAlpha)

	cum = make([]models.SeriesPoint, len(windows))
	cumEMA = make([]models.SeriesPoint, len(windows))
	ofiDisplay = make([]models.SeriesPoint, len(windows))
	for i := range windows {
		cum[i] = models.SeriesPoint{Time: windows[i].Start, Value: cumValues[i]}
		cumEMA[i] = models.SeriesPoint{Time: windows[i].Start, Value: cumSmoothed[i]}
		ofiDisplay[i] = models.SeriesPoint{Time: windows[i].Start, Value: ofiSmoothed[i]}
	}
	return cum, cumEMA, ofiDisplay
}

// buildSummary assembles the bounded block for the AI-summary consumer.
// Only summarized data crosses this boundary; the raw tick stream never
// does, so the block stays bounded regardless of session size.
func (p *Pipeline) buildSummary(result *models.SessionResult, cleanRes *cleaner.Result, anomalies []models.AnomalyEvent, windows []models.WindowAggregate) *models.SessionSummary {
	summary := &models.SessionSummary{
		Scope: models.SummaryScope{
			Symbol:        result.Symbol,
			Date:          result.Date,
			Source:        result.Source,
			TickAvailable: result.TickAvailable,
			WindowMin:     result.WindowMin,
			QualityFlags:  result.QualityFlags.List(),
		},
		Flow:          result.Flow,
		LargeOrders:   result.Flow.LargeOrders,
		InferredRatio: cleanRes.Report.InferredRatio,
		VolumeUnit:    cleanRes.Report.VolumeUnit,
		GeneratedAt:   result.GeneratedAt,
	}

	trendStart := len(windows) - ofiTrendWindows
	if trendStart < 0 {
		trendStart = 0
	}
	summary.OFITrend = make([]float64, 0, ofiTrendWindows)
	for _, w := range windows[trendStart:] {
		summary.OFITrend = append(summary.OFITrend, w.OFI)
	}

	recentStart := len(windows) - p.cfg.SummaryWindows
	if recentStart < 0 {
		recentStart = 0
	}
	summary.RecentWindows = windows[recentStart:]

	// Windows an extended request would add beyond RecentWindows, capped so
	// base plus extension never exceeds the extended bound.
	extra := len(windows) - len(summary.RecentWindows)
	if lim := p.cfg.SummaryWindowsExtended - p.cfg.SummaryWindows; extra > lim {
		extra = lim
	}
	summary.ExtendedWindowCount = extra

	byStart := make(map[time.Time]*models.WindowAggregate, len(windows))
	for i := range windows {
		byStart[windows[i].Start] = &windows[i]
	}

	summary.BurstWindows = []models.BurstWindow{}
	summary.AnomalyNotes = make([]string, 0, len(anomalies))
	for _, ev := range anomalies {
		summary.AnomalyNotes = append(summary.AnomalyNotes, ev.Note)
		if ev.Kind != models.AnomalyDensityBurst {
			continue
		}
		if w, ok := byStart[ev.Time]; ok {
			summary.BurstWindows = append(summary.BurstWindows, models.BurstWindow{
				Start:      w.Start,
				TradeCount: w.TradeCount,
				NetInflow:  w.NetInflow,
			})
		}
	}

	if auctionTrades := callAuctionTrades(cleanRes.Auction); len(auctionTrades) > 0 {
		auction := &models.AuctionSummary{TradeCount: len(auctionTrades)}
		for i := range auctionTrades {
			t := &auctionTrades[i]
			auction.Volume += t.Volume
			auction.Amount += t.Amount
			if t.Time.After(auction.LastTime) {
				auction.LastTime = t.Time
			}
		}
		summary.Auction = auction
	}

	return summary
}
