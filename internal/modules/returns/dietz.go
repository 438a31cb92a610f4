// Package returns implements the Modified-Dietz time-weighted return. Pure
// computation, no storage or clock dependencies.
package returns

import (
	"sort"

	"github.com/openfolio/openfolio/internal/domain"
)

// Result is the outcome of one Modified-Dietz computation.
type Result struct {
	Return       float64 // fraction, e.g. 0.16 for 16%
	NetFlow      float64 // sum of all flows in the window
	WeightedFlow float64 // time-weighted flow sum (denominator adjustment)
}

// Compute returns the Modified-Dietz return over (start, end]:
//
//	R = (vEnd - vStart - netFlow) / (vStart + weightedFlow)
//
// where each flow on day d carries weight (end - d) / (end - start), the
// fraction of the window the money was actually at work. Flows on the same
// day are summed before the weight applies. Flows outside (start, end] are
// ignored; the start day's value already contains its flows.
//
// A window that starts at zero value with no net flows has no baseline to
// measure against; that is *domain.NoBaselineError, not a 0% return.
func Compute(userID string, start, end domain.Date, vStart, vEnd float64, flows []domain.CashFlow) (Result, error) {
	totalDays := start.DaysUntil(end)
	if totalDays <= 0 {
		return Result{}, nil
	}

	// Collapse same-day flows so each day carries a single weighted amount.
	byDay := make(map[domain.Date]float64)
	for _, f := range flows {
		if !f.Day.After(start) || f.Day.After(end) {
			continue
		}
		byDay[f.Day] += f.Amount
	}
	days := make([]domain.Date, 0, len(byDay))
	for d := range byDay {
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	var res Result
	for _, d := range days {
		amount := byDay[d]
		weight := float64(d.DaysUntil(end)) / float64(totalDays)
		res.NetFlow += amount
		res.WeightedFlow += weight * amount
	}

	if vStart == 0 && res.NetFlow == 0 {
		return Result{}, &domain.NoBaselineError{UserID: userID, Start: start, End: end}
	}

	denom := vStart + res.WeightedFlow
	if denom == 0 {
		return Result{}, &domain.NoBaselineError{UserID: userID, Start: start, End: end}
	}

	res.Return = (vEnd - vStart - res.NetFlow) / denom
	return res, nil
}
