// Package router classifies incoming requests by deterministic complexity
// scoring and routes them to System 1 or System 2. The routing threshold
// adapts from outcome feedback: one fast-path failure lowers it, five
// consecutive fast-path successes raise it. The asymmetry biases routing
// toward System 2 on any evidence of under-capacity.
package router

import (
	"math"
	"sync"
	"time"

	"cogito/internal/complexity"
	"cogito/internal/logging"
)

// Threshold bounds. Adaptation saturates here.
const (
	MinThreshold = 0.2
	MaxThreshold = 0.7
)

// raiseStreak is the number of consecutive S1 successes needed to raise the
// threshold.
const raiseStreak = 5

// historyRequestLimit truncates stored request text.
const historyRequestLimit = 200

// Classification is the immutable routing verdict for one request.
type Classification struct {
	Score      float64            `json:"score"`
	System     int                `json:"system"` // 1 or 2
	Confidence float64            `json:"confidence"`
	Factors    complexity.Factors `json:"factors"`
	Domains    []string           `json:"domains"`
	Threshold  float64            `json:"threshold"` // threshold at classification time
}

// RouteResult is a classification plus routing metadata.
type RouteResult struct {
	Classification
	RoutedAt    time.Time `json:"routed_at"`
	HistorySize int       `json:"history_size"`
}

// historyEntry keeps a routed request with a slot for later feedback.
type historyEntry struct {
	request  string
	score    float64
	system   int
	routedAt time.Time
	duration time.Duration

	hasOutcome bool
	success    bool
}

// Router owns the threshold state and routing history.
type Router struct {
	mu        sync.Mutex
	threshold float64
	adaptRate float64
	streak    int
	history   []historyEntry
}

// New creates a router. threshold is clamped to [0.2, 0.7] and adaptRate to
// [0.001, 0.2].
func New(threshold, adaptRate float64) *Router {
	return &Router{
		threshold: clamp(threshold, MinThreshold, MaxThreshold),
		adaptRate: clamp(adaptRate, 0.001, 0.2),
	}
}

// Classify scores a request without recording it. Pure in (text, ctx, θ).
func (r *Router) Classify(text string, ctx *complexity.Context) Classification {
	r.mu.Lock()
	threshold := r.threshold
	r.mu.Unlock()
	return classify(text, ctx, threshold)
}

func classify(text string, ctx *complexity.Context, threshold float64) Classification {
	res := complexity.Score(text, ctx)

	system := 2
	if res.Score < threshold {
		system = 1
	}

	confidence := math.Min(1, math.Max(0.5, 0.5+math.Abs(res.Score-threshold)))

	return Classification{
		Score:      res.Score,
		System:     system,
		Confidence: confidence,
		Factors:    res.Factors,
		Domains:    res.Domains,
		Threshold:  threshold,
	}
}

// Route classifies a request and records it in the history.
func (r *Router) Route(text string, ctx *complexity.Context) RouteResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := classify(text, ctx, r.threshold)

	stored := text
	if len(stored) > historyRequestLimit {
		stored = stored[:historyRequestLimit]
	}
	r.history = append(r.history, historyEntry{
		request:  stored,
		score:    c.Score,
		system:   c.System,
		routedAt: time.Now(),
	})

	logging.Router("Routed to S%d (score=%.2f θ=%.2f conf=%.2f)", c.System, c.Score, c.Threshold, c.Confidence)

	return RouteResult{
		Classification: c,
		RoutedAt:       time.Now(),
		HistorySize:    len(r.history),
	}
}

// Feedback is one outcome report for threshold adaptation.
type Feedback struct {
	System   int           `json:"system"`
	Success  bool          `json:"success"`
	Duration time.Duration `json:"duration"`
}

// AdaptResult reports a threshold adjustment.
type AdaptResult struct {
	PreviousThreshold float64 `json:"previous_threshold"`
	NewThreshold      float64 `json:"new_threshold"`
	Direction         string  `json:"direction"` // lowered|raised|unchanged
	Streak            int     `json:"streak"`
}

// Adapt updates the threshold from one outcome. S2 outcomes never move the
// threshold: S2 is the fallback, so its success says nothing about whether
// S1 would have been adequate.
func (r *Router) Adapt(fb Feedback) AdaptResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.recordOutcomeLocked(fb)

	prev := r.threshold
	result := AdaptResult{PreviousThreshold: prev, Direction: "unchanged"}

	if fb.System != 1 {
		result.NewThreshold = prev
		result.Streak = r.streak
		return result
	}

	switch {
	case !fb.Success:
		r.threshold = clamp(prev-r.adaptRate, MinThreshold, MaxThreshold)
		r.streak = 0
		result.Direction = "lowered"
	case r.streak+1 >= raiseStreak:
		r.threshold = clamp(prev+r.adaptRate, MinThreshold, MaxThreshold)
		r.streak = 0
		result.Direction = "raised"
	default:
		r.streak++
	}

	result.NewThreshold = r.threshold
	result.Streak = r.streak
	if result.Direction != "unchanged" {
		logging.Router("Threshold %s: %.2f -> %.2f", result.Direction, prev, r.threshold)
	}
	return result
}

// recordOutcomeLocked attaches feedback to the most recent history entry for
// the same system that has no outcome yet.
func (r *Router) recordOutcomeLocked(fb Feedback) {
	for i := len(r.history) - 1; i >= 0; i-- {
		e := &r.history[i]
		if e.system == fb.System && !e.hasOutcome {
			e.hasOutcome = true
			e.success = fb.Success
			e.duration = fb.Duration
			return
		}
	}
}

// Threshold returns the current threshold.
func (r *Router) Threshold() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.threshold
}

// Snapshot captures the persistable threshold state.
type Snapshot struct {
	Threshold float64 `json:"threshold"`
	Streak    int     `json:"streak"`
}

// Snapshot returns the current threshold state for persistence.
func (r *Router) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Snapshot{Threshold: r.threshold, Streak: r.streak}
}

// Restore reinstates a persisted threshold state, clamped into bounds.
func (r *Router) Restore(s Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.threshold = clamp(s.Threshold, MinThreshold, MaxThreshold)
	if s.Streak >= 0 && s.Streak < raiseStreak {
		r.streak = s.Streak
	} else {
		r.streak = 0
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
