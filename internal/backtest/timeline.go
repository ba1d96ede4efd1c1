package backtest

import "time"

// BuildTimeline folds the trade stream into one point per calendar day (UTC)
// from session start to session end inclusive. Days without fills carry the
// previous day's portfolio value forward; a run with no trades produces a
// flat line at starting capital. The session end falls back to "now" when
// the run has not finished.
func BuildTimeline(run *TradingRun, trades []Trade, clock Clock) []TimelinePoint {
	end := run.SessionEnd
	if end.IsZero() {
		end = clock.Now()
	}
	startDay := dateOf(run.SessionStart)
	endDay := dateOf(end)
	if endDay.Before(startDay) {
		endDay = startDay
	}

	points := make([]TimelinePoint, 0, endDay.Sub(startDay)/(24*time.Hour)+1)
	value := run.StartingCapital
	price := 0.0
	idx := 0

	for day := startDay; !day.After(endDay); day = day.AddDate(0, 0, 1) {
		count := 0
		for idx < len(trades) && !dateOf(trades[idx].ExecutionTime).After(day) {
			value = trades[idx].PortfolioValueAfter
			price = trades[idx].Price
			count++
			idx++
		}
		points = append(points, TimelinePoint{
			Date:           day,
			PortfolioValue: value,
			Price:          price,
			Trades:         count,
		})
	}

	backfillPrice(points)
	return points
}

// backfillPrice fills leading days before the first fill with the first
// known reference price so charts do not start at zero.
func backfillPrice(points []TimelinePoint) {
	first := 0.0
	for _, p := range points {
		if p.Price != 0 {
			first = p.Price
			break
		}
	}
	for i := range points {
		if points[i].Price != 0 {
			break
		}
		points[i].Price = first
	}
}

func dateOf(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
