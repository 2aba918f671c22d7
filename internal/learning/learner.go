package learning

import (
	"context"

	"golang.org/x/sync/errgroup"

	"cogito/internal/logging"
)

// Learner runs batch GRPO over recent experiences on session end. Updates
// are per-domain independent and commute, so domains run concurrently in an
// errgroup.
type Learner struct {
	log   *ExperienceLog
	store *WeightStore
	opt   *Optimizer

	batchSize int
}

// NewLearner wires the batch learner.
func NewLearner(log *ExperienceLog, store *WeightStore, opt *Optimizer, batchSize int) *Learner {
	if batchSize <= 0 {
		batchSize = 50
	}
	return &Learner{log: log, store: store, opt: opt, batchSize: batchSize}
}

// BatchResult summarizes a batch learning pass.
type BatchResult struct {
	Experiences int      `json:"experiences"`
	Domains     []string `json:"domains"`
}

// BatchLearn reads the last batch of experiences, groups them by domain and
// applies independent GRPO updates per domain. Honors cancellation between
// domain groups.
func (l *Learner) BatchLearn(ctx context.Context) (BatchResult, error) {
	experiences, err := l.log.ReadLast(l.batchSize)
	if err != nil {
		return BatchResult{}, err
	}
	if len(experiences) == 0 {
		return BatchResult{}, nil
	}

	byDomain := map[string][]Experience{}
	for _, exp := range experiences {
		domain := exp.Domain
		if domain == "" {
			domain = "general"
		}
		byDomain[domain] = append(byDomain[domain], exp)
	}

	g, ctx := errgroup.WithContext(ctx)
	result := BatchResult{Experiences: len(experiences)}

	for domain, exps := range byDomain {
		result.Domains = append(result.Domains, domain)
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			w := l.store.Get(domain)
			var teamOutcomes []Outcome
			for _, exp := range exps {
				out := outcomeFromExperience(exp)
				l.opt.LearnFromOutcome(w, domain, out)
				if exp.System == 2 {
					teamOutcomes = append(teamOutcomes, out)
				}
			}
			l.store.Set(domain, w)
			if err := l.store.Save(domain); err != nil {
				return err
			}

			// Deliberative outcomes also train the team-composition map.
			if len(teamOutcomes) > 0 {
				teamDomain := TeamNamespace + domain
				tw := l.store.Get(teamDomain)
				for _, out := range teamOutcomes {
					l.opt.LearnTeamOutcome(tw, out)
				}
				l.store.Set(teamDomain, tw)
				return l.store.Save(teamDomain)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return result, err
	}

	logging.Learn("Batch learning: %d experiences across %d domains", result.Experiences, len(result.Domains))
	return result, nil
}

// outcomeFromExperience maps a logged experience onto the reward inputs.
// User feedback sharpens the error-free signal.
func outcomeFromExperience(exp Experience) Outcome {
	return Outcome{
		Success:       exp.Success,
		ErrorFree:     exp.Success && exp.Feedback >= 0,
		NoSideEffects: exp.Feedback >= 0,
		DurationMs:    exp.DurationMs,
		Attempts:      1,
	}
}
