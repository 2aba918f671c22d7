package router

import "time"

// Trend verdicts for recent routing history.
const (
	TrendStable       = "stable"
	TrendShiftingToS1 = "shifting_to_s1"
	TrendShiftingToS2 = "shifting_to_s2"
)

// trendMinHistory is the minimum history size before a trend is computed.
const trendMinHistory = 10

// trendShiftDelta is the S1-ratio difference that triggers a shift verdict.
const trendShiftDelta = 0.15

// Stats summarizes routing activity.
type Stats struct {
	TotalRouted   int           `json:"total_routed"`
	System1Count  int           `json:"system1_count"`
	System2Count  int           `json:"system2_count"`
	System1Ratio  float64       `json:"system1_ratio"`
	AverageScore  float64       `json:"average_score"`
	AvgDuration   time.Duration `json:"avg_duration"`
	SuccessRateS1 float64       `json:"success_rate_s1"`
	SuccessRateS2 float64       `json:"success_rate_s2"`
	RecentTrend   string        `json:"recent_trend"`
}

// Stats computes aggregate routing statistics from the history.
func (r *Router) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	st := Stats{RecentTrend: TrendStable}
	if len(r.history) == 0 {
		return st
	}

	var scoreSum float64
	var durSum time.Duration
	var durCount int
	var s1Success, s1Total, s2Success, s2Total int

	for _, e := range r.history {
		st.TotalRouted++
		scoreSum += e.score
		if e.system == 1 {
			st.System1Count++
		} else {
			st.System2Count++
		}
		if e.hasOutcome {
			if e.duration > 0 {
				durSum += e.duration
				durCount++
			}
			if e.system == 1 {
				s1Total++
				if e.success {
					s1Success++
				}
			} else {
				s2Total++
				if e.success {
					s2Success++
				}
			}
		}
	}

	st.System1Ratio = float64(st.System1Count) / float64(st.TotalRouted)
	st.AverageScore = scoreSum / float64(st.TotalRouted)
	if durCount > 0 {
		st.AvgDuration = durSum / time.Duration(durCount)
	}
	if s1Total > 0 {
		st.SuccessRateS1 = float64(s1Success) / float64(s1Total)
	}
	if s2Total > 0 {
		st.SuccessRateS2 = float64(s2Success) / float64(s2Total)
	}
	st.RecentTrend = r.trendLocked()
	return st
}

// trendLocked compares the S1 ratio of the last 20% of history against the
// earlier 80%.
func (r *Router) trendLocked() string {
	n := len(r.history)
	if n < trendMinHistory {
		return TrendStable
	}

	cut := n - n/5
	if cut >= n {
		cut = n - 1
	}

	earlier := r.history[:cut]
	recent := r.history[cut:]

	ratio := func(entries []historyEntry) float64 {
		if len(entries) == 0 {
			return 0
		}
		s1 := 0
		for _, e := range entries {
			if e.system == 1 {
				s1++
			}
		}
		return float64(s1) / float64(len(entries))
	}

	diff := ratio(recent) - ratio(earlier)
	switch {
	case diff > trendShiftDelta:
		return TrendShiftingToS1
	case diff < -trendShiftDelta:
		return TrendShiftingToS2
	default:
		return TrendStable
	}
}
