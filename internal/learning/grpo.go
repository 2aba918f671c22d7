package learning

import (
	"math"

	"cogito/internal/logging"
)

// Optimizer applies group-relative policy updates to strategy weights.
// Within one group (the candidates for a single request), each candidate's
// advantage is its reward minus the group mean; no global critic.
type Optimizer struct {
	LearningRate float64
	GroupSize    int
}

// NewOptimizer creates an optimizer. Zero values fall back to the defaults
// (rate 0.1, group size 5).
func NewOptimizer(rate float64, groupSize int) *Optimizer {
	if rate <= 0 {
		rate = 0.1
	}
	if groupSize <= 0 {
		groupSize = 5
	}
	return &Optimizer{LearningRate: rate, GroupSize: groupSize}
}

// UpdateGroup applies one GRPO step to w from a group of candidate rewards.
// Missing candidates are initialized at the uniform share before the update.
// Weights are clipped to [0,2] and renormalized to unit sum.
func (o *Optimizer) UpdateGroup(w Weights, rewards map[string]float64) {
	if len(rewards) == 0 {
		return
	}

	var sum float64
	for _, r := range rewards {
		sum += r
	}
	mean := sum / float64(len(rewards))

	share := 1.0 / math.Max(1, float64(len(w)+len(rewards)))
	for s, r := range rewards {
		if _, ok := w[s]; !ok {
			w[s] = share
		}
		advantage := r - mean
		w[s] += o.LearningRate * advantage
	}

	w.Clip()
	w.Normalize()
}

// EvaluateCandidate scores one strategy candidate against an observed
// outcome. The rules are deterministic: each strategy's traits modulate how
// strongly the outcome components reward it.
func EvaluateCandidate(strategy string, out Outcome) RewardVector {
	v := RewardVector{}

	if out.Success {
		v.ExitCode = 1
	}
	if out.ErrorFree {
		v.ErrorFree = 1
	}
	v.Speed = speedScore(out.DurationMs)
	v.Brevity = brevityScore(out.Attempts)
	if out.NoSideEffects {
		v.SideEffects = 1
	}

	// Trait modulation: a strategy is rewarded for the outcomes it
	// optimizes for.
	switch strategy {
	case "rapid":
		v.Speed = math.Min(1, v.Speed*1.5)
		v.ErrorFree *= 0.8
	case "thorough":
		v.ErrorFree = math.Min(1, v.ErrorFree*1.5)
		v.Speed *= 0.7
	case "parallel":
		v.Speed = math.Min(1, v.Speed*1.2)
	case "iterative":
		v.Brevity *= 0.6
		v.ErrorFree = math.Min(1, v.ErrorFree*1.2)
	case "balanced":
		// No modulation.
	default:
		// Domain-specific strategies lean on side-effect discipline.
		v.SideEffects = math.Min(1, v.SideEffects*1.3)
	}
	return v
}

// Outcome is the observed result used to evaluate candidates.
type Outcome struct {
	Success       bool
	ErrorFree     bool
	NoSideEffects bool
	DurationMs    int64
	Attempts      int
}

func speedScore(durationMs int64) float64 {
	switch {
	case durationMs <= 0:
		return 0.5
	case durationMs < 100:
		return 1
	case durationMs < 1000:
		return 0.8
	case durationMs < 10000:
		return 0.5
	case durationMs < 60000:
		return 0.2
	default:
		return 0.1
	}
}

func brevityScore(attempts int) float64 {
	switch {
	case attempts <= 1:
		return 1
	case attempts == 2:
		return 0.6
	case attempts == 3:
		return 0.3
	default:
		return 0.1
	}
}

// LearnFromOutcome runs one full GRPO round for a domain: generate the
// candidate set, evaluate each against the outcome, update the weights.
func (o *Optimizer) LearnFromOutcome(w Weights, domain string, out Outcome) {
	candidates := Candidates(domain)
	if len(candidates) > o.GroupSize+2 {
		candidates = candidates[:o.GroupSize+2]
	}

	rewards := make(map[string]float64, len(candidates))
	for _, c := range candidates {
		rewards[c] = EvaluateCandidate(c, out).Scalar()
	}
	o.UpdateGroup(w, rewards)
	logging.LearnDebug("GRPO update for %s over %d candidates", domain, len(rewards))
}

// LearnTeamOutcome runs the team-composition variant over the playbook
// patterns (solo, leader, council, swarm, pipeline).
func (o *Optimizer) LearnTeamOutcome(w Weights, out Outcome) {
	rewards := make(map[string]float64, len(TeamPatterns))
	for _, p := range TeamPatterns {
		rewards[p] = evaluateTeamCandidate(p, out).Scalar()
	}
	o.UpdateGroup(w, rewards)
}

func evaluateTeamCandidate(pattern string, out Outcome) RewardVector {
	v := EvaluateCandidate("balanced", out)
	switch pattern {
	case "solo":
		v.Brevity = math.Min(1, v.Brevity*1.4)
	case "leader", "council":
		v.ErrorFree = math.Min(1, v.ErrorFree*1.3)
		v.Speed *= 0.8
	case "swarm":
		v.Speed = math.Min(1, v.Speed*1.4)
		v.SideEffects *= 0.8
	case "pipeline":
		v.SideEffects = math.Min(1, v.SideEffects*1.2)
	}
	return v
}
