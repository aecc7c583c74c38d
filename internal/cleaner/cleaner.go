package cleaner

import (
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/luke0708/stock-analysis/internal/config"
	"github.com/luke0708/stock-analysis/internal/models"
)

// timestamp layouts accepted from providers, tried in order.
var datetimeLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006/01/02 15:04:05",
	"2006-01-02 15:04",
}

var timeOnlyLayouts = []string{
	"15:04:05",
	"15:04",
}

// Cleaner normalizes raw provider ticks into the canonical trade stream.
// It owns all record-level repair: timestamp resolution, unit and amount
// normalization, direction inference, dedup, and session filtering.
type Cleaner struct {
	morningOpen    int // minutes of day
	morningClose   int
	afternoonOpen  int
	afternoonClose int
	auctionStart   int
	auctionEnd     int

	lotSize          float64
	deadband         float64
	extremeJumpRatio float64

	logger *slog.Logger
}

// Result is everything the cleaner produces for one raw batch.
type Result struct {
	Trades  []models.CleanTrade // canonical stream, sorted, in-session only
	Auction []models.CleanTrade // pre-open auction and off-session trades
	Flags   *models.QualityFlags
	Report  models.CleanReport
}

// New creates a cleaner from configured session boundaries and thresholds.
func New(cfg *config.Config, logger *slog.Logger) *Cleaner {
	return &Cleaner{
		morningOpen:    mustMinute(cfg.MorningOpen),
		morningClose:   mustMinute(cfg.MorningClose),
		afternoonOpen:  mustMinute(cfg.AfternoonOpen),
		afternoonClose: mustMinute(cfg.AfternoonClose),
		auctionStart:   mustMinute(cfg.AuctionStart),
		auctionEnd:     mustMinute(cfg.AuctionEnd),

		lotSize:          cfg.LotSize,
		deadband:         cfg.DirectionDeadband,
		extremeJumpRatio: cfg.ExtremeJumpRatio,

		logger: logger.With("component", "cleaner"),
	}
}

// mustMinute converts a validated "HH:MM" config value to minutes of day.
// Config.Validate has already rejected unparsable values.
func mustMinute(hhmm string) int {
	t, err := time.Parse("15:04", hhmm)
	if err != nil {
		panic("cleaner: unvalidated session boundary " + hhmm)
	}
	return t.Hour()*60 + t.Minute()
}

func minuteOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

// Clean transforms one raw batch for one analysis date. Record-level
// problems drop the record and accumulate counts and flags; Clean itself
// never fails on bad data. An empty batch yields an empty result with the
// no_tick_data flag.
func (c *Cleaner) Clean(raw []models.RawTrade, date time.Time) *Result {
	flags := models.NewQualityFlags()
	res := &Result{Flags: flags}
	res.Report.RawCount = len(raw)
	res.Report.VolumeUnit = "shares"

	if len(raw) == 0 {
		flags.Add(models.FlagNoTickData)
		return res
	}

	trades := make([]models.CleanTrade, 0, len(raw))

	parsedAny := false
	pricedAny := false
	volumeAny := false
	amountDerived := false
	seenSeq := make(map[int64]bool)

	for i := range raw {
		r := &raw[i]

		ts, ok := c.resolveTimestamp(r.Time, date)
		if !ok {
			res.Report.DroppedUnparsable++
			continue
		}
		parsedAny = true

		// Outlier policy: non-positive price or negative volume never
		// enters the canonical stream.
		if r.Price <= 0 || r.Volume < 0 {
			res.Report.DroppedInvalid++
			continue
		}
		pricedAny = true
		if r.Volume > 0 {
			volumeAny = true
		}

		// Dedup strictly on the provider sequence number. Records without
		// one are always unique: identical (time, price, volume) repeats
		// are legitimate trades.
		if r.Seq != nil {
			if seenSeq[*r.Seq] {
				res.Report.DroppedDuplicates++
				continue
			}
			seenSeq[*r.Seq] = true
		}

		t := models.CleanTrade{
			Time:         ts,
			Price:        r.Price,
			Volume:       r.Volume * c.lotSize,
			DirOrigin:    models.OriginSourced,
			AmountOrigin: models.OriginSourced,
		}
		if r.Seq != nil {
			t.Seq = *r.Seq
			t.HasSeq = true
		}

		if r.Amount > 0 {
			t.Amount = r.Amount
		} else {
			t.Amount = t.Price * t.Volume
			t.AmountOrigin = models.OriginInferred
			amountDerived = true
		}

		t.Dir, t.DirOrigin = parseSide(r.Side)
		trades = append(trades, t)
	}

	if res.Report.DroppedUnparsable > 0 {
		flags.Add(models.FlagUnparsableTimestamp)
	}
	if res.Report.DroppedInvalid > 0 {
		flags.Add(models.FlagInvalidDropped)
	}
	if res.Report.DroppedDuplicates > 0 {
		flags.Add(models.FlagDuplicateSeqDropped)
	}
	if !parsedAny {
		flags.Add(models.FlagMissingTime)
		return res
	}
	if !pricedAny {
		flags.Add(models.FlagMissingPrice)
		return res
	}
	if !volumeAny {
		flags.Add(models.FlagMissingVolume)
	}
	if amountDerived {
		flags.Add(models.FlagMissingAmount)
	}

	// The provider volume unit is round lots; the canonical unit is shares.
	flags.Add(models.FlagUnitAssumedLots)
	flags.Add(models.FlagVolumeUnitShares)

	sortTrades(trades)
	c.inferDirections(trades, flags, &res.Report)
	c.markExtremeJumps(trades, flags, &res.Report)

	res.Trades, res.Auction = c.splitSessions(trades)
	res.Report.CleanCount = len(res.Trades)
	res.Report.AuctionCount = len(res.Auction)
	res.Report.DroppedOffSession = countOffSession(res.Auction)

	if len(res.Trades) == 0 {
		flags.Add(models.FlagNonTradingTime)
	}
	// Inference ran over the full sorted batch before the session split, so
	// the ratio denominator is the full batch too, auction trades included.
	if len(trades) > 0 {
		res.Report.InferredRatio = float64(res.Report.InferredDirections) / float64(len(trades))
	}

	c.logger.Debug("clean_finished",
		"raw", res.Report.RawCount,
		"clean", res.Report.CleanCount,
		"auction", res.Report.AuctionCount,
		"dropped_invalid", res.Report.DroppedInvalid,
		"dropped_unparsable", res.Report.DroppedUnparsable,
		"inferred_ratio", res.Report.InferredRatio,
	)

	return res
}

// resolveTimestamp parses a provider timestamp, combining time-only values
// with the analysis date.
func (c *Cleaner) resolveTimestamp(value string, date time.Time) (time.Time, bool) {
	for _, layout := range datetimeLayouts {
		if ts, err := time.ParseInLocation(layout, value, date.Location()); err == nil {
			return ts, true
		}
	}
	for _, layout := range timeOnlyLayouts {
		if ts, err := time.Parse(layout, value); err == nil {
			return time.Date(date.Year(), date.Month(), date.Day(),
				ts.Hour(), ts.Minute(), ts.Second(), 0, date.Location()), true
		}
	}
	return time.Time{}, false
}

// parseSide maps the provider side indicator to a direction. A present
// indicator is trusted; inference happens later only for absent ones.
func parseSide(side string) (models.Direction, models.FieldOrigin) {
	switch side {
	case "buy", "B", "b", "BUY":
		return models.DirectionBuy, models.OriginSourced
	case "sell", "S", "s", "SELL":
		return models.DirectionSell, models.OriginSourced
	case "neutral", "N", "n", "NEUTRAL":
		return models.DirectionNeutral, models.OriginSourced
	default:
		return models.DirectionNeutral, models.OriginInferred
	}
}

// sortTrades orders the stream by timestamp, stable on ties; equal
// timestamps with sequence numbers fall back to sequence order.
func sortTrades(trades []models.CleanTrade) {
	sort.SliceStable(trades, func(i, j int) bool {
		a, b := &trades[i], &trades[j]
		if !a.Time.Equal(b.Time) {
			return a.Time.Before(b.Time)
		}
		if a.HasSeq && b.HasSeq {
			return a.Seq < b.Seq
		}
		return false
	})
}

// inferDirections fills directions the provider did not supply, using the
// signed price change against the previous trade with a fixed dead band.
// If the batch carried no usable side indicator at all, every direction is
// re-inferred the same way.
func (c *Cleaner) inferDirections(trades []models.CleanTrade, flags *models.QualityFlags, report *models.CleanReport) {
	if len(trades) == 0 {
		return
	}

	sourcedSigned := 0
	for i := range trades {
		if trades[i].DirOrigin == models.OriginSourced && trades[i].Dir != models.DirectionNeutral {
			sourcedSigned++
		}
	}

	inferAll := sourcedSigned == 0
	inferred := 0

	for i := range trades {
		t := &trades[i]
		if !inferAll && t.DirOrigin == models.OriginSourced {
			continue
		}
		t.Dir = c.directionFromPriceChange(trades, i)
		t.DirOrigin = models.OriginInferred
		inferred++
	}

	report.InferredDirections = inferred
	if inferred > 0 {
		flags.Add(models.FlagNatureInferred)
	}
	if inferAll && len(trades) > 0 {
		flags.Add(models.FlagNatureAllNeutral)
	}
}

func (c *Cleaner) directionFromPriceChange(trades []models.CleanTrade, i int) models.Direction {
	if i == 0 {
		return models.DirectionNeutral
	}
	prev := trades[i-1].Price
	if prev <= 0 {
		return models.DirectionNeutral
	}
	change := (trades[i].Price - prev) / prev
	switch {
	case change > c.deadband:
		return models.DirectionBuy
	case change < -c.deadband:
		return models.DirectionSell
	default:
		return models.DirectionNeutral
	}
}

// markExtremeJumps flags trades whose one-step relative price move exceeds
// the configured ratio. Flagged trades are retained.
func (c *Cleaner) markExtremeJumps(trades []models.CleanTrade, flags *models.QualityFlags, report *models.CleanReport) {
	for i := 1; i < len(trades); i++ {
		prev := trades[i-1].Price
		if prev <= 0 {
			continue
		}
		if math.Abs(trades[i].Price-prev)/prev > c.extremeJumpRatio {
			trades[i].ExtremeJump = true
			report.ExtremeJumpCount++
		}
	}
	if report.ExtremeJumpCount > 0 {
		flags.Add(models.FlagExtremePriceJump)
	}
}

// splitSessions partitions the sorted stream into the canonical in-session
// stream and the auction/off-session bucket. Pre-open call-auction entries
// are marked IsAuction; other off-session trades land in the same bucket
// unmarked rather than being discarded.
func (c *Cleaner) splitSessions(trades []models.CleanTrade) (session, auction []models.CleanTrade) {
	session = make([]models.CleanTrade, 0, len(trades))
	for i := range trades {
		t := trades[i]
		m := minuteOfDay(t.Time)
		switch {
		case (m >= c.morningOpen && m <= c.morningClose) ||
			(m >= c.afternoonOpen && m <= c.afternoonClose):
			session = append(session, t)
		case m >= c.auctionStart && m <= c.auctionEnd:
			t.IsAuction = true
			auction = append(auction, t)
		default:
			auction = append(auction, t)
		}
	}
	return session, auction
}

func countOffSession(auction []models.CleanTrade) int {
	n := 0
	for i := range auction {
		if !auction[i].IsAuction {
			n++
		}
	}
	return n
}
