// Package learning implements the outcome-driven learning layer: the GRPO
// policy optimizer over strategy weights, the append-only experience log,
// and the S1<->S2 knowledge-transfer engine.
package learning

import (
	"math"
	"sort"
)

// Base strategy candidates, generated for every request.
var baseStrategies = []string{"balanced", "thorough", "rapid", "parallel", "iterative"}

// domainStrategies contributes up to two extra candidates per domain.
var domainStrategies = map[string][]string{
	"security":       {"security-first", "least-privilege"},
	"database":       {"schema-first", "backup-first"},
	"infrastructure": {"rollback-ready", "canary-first"},
	"frontend":       {"ui-first"},
	"backend":        {"contract-first"},
	"testing":        {"test-first"},
	"data":           {"sample-first"},
}

// TeamPatterns are the candidates for team-composition GRPO.
var TeamPatterns = []string{"solo", "leader", "council", "swarm", "pipeline"}

// TeamNamespace prefixes team weight domains so strategy and team maps stay
// parallel but separate.
const TeamNamespace = "teams."

// Candidates returns the strategy candidate set for a domain: the five base
// strategies plus up to two domain-specific ones.
func Candidates(domain string) []string {
	out := make([]string, len(baseStrategies))
	copy(out, baseStrategies)
	if extra, ok := domainStrategies[domain]; ok {
		if len(extra) > 2 {
			extra = extra[:2]
		}
		out = append(out, extra...)
	}
	return out
}

// Weights maps strategy name to weight. Weights are kept non-negative and
// normalized to unit sum within a domain.
type Weights map[string]float64

// UniformWeights initializes equal weights over a candidate set.
func UniformWeights(candidates []string) Weights {
	w := make(Weights, len(candidates))
	if len(candidates) == 0 {
		return w
	}
	share := 1.0 / float64(len(candidates))
	for _, c := range candidates {
		w[c] = share
	}
	return w
}

// Clip bounds every weight into [0, 2].
func (w Weights) Clip() {
	for k, v := range w {
		if v < 0 {
			w[k] = 0
		} else if v > 2 {
			w[k] = 2
		}
	}
}

// Normalize scales weights to a unit sum. An all-zero map resets to
// uniform.
func (w Weights) Normalize() {
	var sum float64
	for _, v := range w {
		sum += v
	}
	if sum <= 0 {
		share := 1.0 / float64(len(w))
		for k := range w {
			w[k] = share
		}
		return
	}
	for k, v := range w {
		w[k] = v / sum
	}
}

// Sum returns the weight total.
func (w Weights) Sum() float64 {
	var sum float64
	for _, v := range w {
		sum += v
	}
	return sum
}

// Best returns the highest-weighted strategy, ties broken alphabetically
// for determinism.
func (w Weights) Best() string {
	best := ""
	bestW := math.Inf(-1)
	keys := make([]string, 0, len(w))
	for k := range w {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if w[k] > bestW {
			best, bestW = k, w[k]
		}
	}
	return best
}

// Clone returns a deep copy.
func (w Weights) Clone() Weights {
	out := make(Weights, len(w))
	for k, v := range w {
		out[k] = v
	}
	return out
}

// RewardVector is the rule-based evaluation of one candidate, each
// component in [0,1].
type RewardVector struct {
	ExitCode    float64 `json:"exit_code"`
	ErrorFree   float64 `json:"error_free"`
	Speed       float64 `json:"speed"`
	Brevity     float64 `json:"brevity"`
	SideEffects float64 `json:"side_effects"`
}

// Reward coefficients; fixed so rewards are comparable across sessions.
const (
	coefExitCode    = 0.30
	coefErrorFree   = 0.25
	coefSpeed       = 0.20
	coefBrevity     = 0.10
	coefSideEffects = 0.15
)

// Scalar combines the vector into one reward.
func (v RewardVector) Scalar() float64 {
	return coefExitCode*v.ExitCode +
		coefErrorFree*v.ErrorFree +
		coefSpeed*v.Speed +
		coefBrevity*v.Brevity +
		coefSideEffects*v.SideEffects
}
