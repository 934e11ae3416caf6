// Package timewindow computes the current/previous comparison windows for
// period-over-period analytics, degrading gracefully when the available
// history is shorter than the requested period.
package timewindow

import (
	"fmt"
	"time"

	"github.com/storeops/o2o-insight/internal/domain"
)

// Canonical period lengths accepted in period mode.
const (
	PeriodWeek     = 7
	PeriodFortnite = 14
	PeriodMonth    = 30
)

// minComparableDays is the least history a period comparison needs: two
// full 7-day windows.
const minComparableDays = 14

// Resolve computes the window pair for a requested period length, snapped
// to the latest available data date.
//
// Given the data span D (earliest..latest inclusive):
//   - D ≥ 2P: the full period is used.
//   - 14 ≤ D < 2P: the period degrades to 7 days and the pair carries a
//     data-insufficiency warning.
//   - D < 14: no comparison is possible; ErrInsufficientHistory.
//
// The previous window is computed after degradation, so it is always
// contiguous with and equal in length to the current window.
func Resolve(earliest, latest time.Time, periodDays int) (domain.WindowPair, error) {
	switch periodDays {
	case PeriodWeek, PeriodFortnite, PeriodMonth:
	default:
		return domain.WindowPair{}, fmt.Errorf("period %d: %w", periodDays, domain.ErrUnsupportedPeriod)
	}

	earliest = domain.Day(earliest)
	latest = domain.Day(latest)
	if latest.Before(earliest) {
		return domain.WindowPair{}, domain.ErrInvalidRange
	}

	span := domain.DaysBetween(earliest, latest) + 1
	if span < minComparableDays {
		return domain.WindowPair{}, domain.ErrInsufficientHistory
	}

	pair := domain.WindowPair{}
	effective := periodDays
	if span < 2*periodDays {
		effective = PeriodWeek
		pair.Degraded = true
		pair.Warning = fmt.Sprintf("only %d days of data available for a %d-day comparison; degraded to 7-day windows", span, periodDays)
	}

	pair.Current = windowEndingAt(latest, effective)
	pair.Previous = precedingWindow(pair.Current)
	return pair, nil
}

// CustomRange builds the pair for an explicit start/end. The previous
// window is the contiguous range of equal length immediately before it.
func CustomRange(start, end time.Time) (domain.WindowPair, error) {
	start = domain.Day(start)
	end = domain.Day(end)
	if end.Before(start) {
		return domain.WindowPair{}, domain.ErrInvalidRange
	}

	current := domain.TimeWindow{Start: start, End: end}
	return domain.WindowPair{
		Current:  current,
		Previous: precedingWindow(current),
		Custom:   true,
	}, nil
}

func windowEndingAt(end time.Time, days int) domain.TimeWindow {
	return domain.TimeWindow{
		Start: end.AddDate(0, 0, -(days - 1)),
		End:   end,
	}
}

func precedingWindow(w domain.TimeWindow) domain.TimeWindow {
	days := w.Days()
	return domain.TimeWindow{
		Start: w.Start.AddDate(0, 0, -days),
		End:   w.Start.AddDate(0, 0, -1),
	}
}
