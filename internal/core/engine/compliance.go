package engine

import (
	"time"

	"github.com/medtrack/adherence-service/internal/core/domain"
)

// DaySummary aggregates dose outcomes for one calendar date. Rate is
// round(100 * taken / total); a day with no scheduled doses has rate 0
// rather than a division-by-zero NaN.
func (e *Engine) DaySummary(date string) domain.DaySummary {
	s := domain.DaySummary{Date: date}
	for _, d := range e.DosesForDate(date) {
		s.Total++
		switch d.Status {
		case domain.DoseStatusTaken:
			s.Taken++
		case domain.DoseStatusSkipped:
			s.Skipped++
		case domain.DoseStatusPostponed:
			s.Postponed++
		default:
			s.Pending++
		}
	}
	s.Rate = ratePercent(s.Taken, s.Total)
	return s
}

// RollingRate computes the adherence rate over the given number of
// consecutive calendar days ending on today (YYYY-MM-DD). Counts are
// summed across the window before the ratio is taken; averaging each
// day's percentage would weight a 1-dose day the same as a 10-dose day
// and skew the result.
func (e *Engine) RollingRate(days int, today string) int {
	if days <= 0 {
		return 0
	}
	end, err := time.Parse(domain.DateLayout, today)
	if err != nil {
		return 0
	}
	var total, taken int
	for i := 0; i < days; i++ {
		date := domain.DateOf(end.AddDate(0, 0, -i))
		for _, d := range e.DosesForDate(date) {
			total++
			if d.Status == domain.DoseStatusTaken {
				taken++
			}
		}
	}
	return ratePercent(taken, total)
}

// WeeklySeries returns seven per-day adherence points, oldest first,
// ending on today (YYYY-MM-DD).
func (e *Engine) WeeklySeries(today string) []domain.WeeklyPoint {
	end, err := time.Parse(domain.DateLayout, today)
	if err != nil {
		return nil
	}
	points := make([]domain.WeeklyPoint, 0, 7)
	for i := 6; i >= 0; i-- {
		date := domain.DateOf(end.AddDate(0, 0, -i))
		summary := e.DaySummary(date)
		points = append(points, domain.WeeklyPoint{Date: date, Rate: summary.Rate})
	}
	return points
}

// ratePercent rounds 100*taken/total to the nearest integer, 0 when total is 0
func ratePercent(taken, total int) int {
	if total == 0 {
		return 0
	}
	return (100*taken + total/2) / total
}
