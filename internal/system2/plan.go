package system2

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"cogito/internal/complexity"
	"cogito/internal/logging"
)

// Keyword weights for per-step complexity estimation.
var (
	highComplexityWords = []string{
		"migrate", "migration", "refactor", "redesign", "overhaul", "deploy",
		"security", "architect", "rewrite", "audit",
	}
	mediumComplexityWords = []string{
		"implement", "create", "build", "update", "integrate", "optimize",
		"configure", "fix", "debug", "install",
	}
)

// stepReference matches in-step references like "step 2" or "from step 1".
var stepReference = regexp.MustCompile(`(?i)\bstep\s+(\d+)\b`)

// teammatesByDomain selects squad members per domain; general is the
// fallback. Platoons always include an architect.
var teammatesByDomain = map[string][]string{
	"frontend":       {"ui-developer", "reviewer"},
	"backend":        {"api-developer", "reviewer"},
	"database":       {"data-engineer", "reviewer"},
	"infrastructure": {"platform-engineer", "reviewer"},
	"security":       {"security-analyst", "reviewer"},
	"data":           {"data-engineer", "analyst"},
	"testing":        {"test-engineer", "reviewer"},
	"general":        {"developer", "reviewer"},
}

// Plan builds a frozen step plan from a task description. Steps are
// extracted from numbered lists first, then sequential connectors, else the
// whole description becomes a single step.
func (e *Engine) Plan(task Task, opts *PlanOptions) (*Plan, error) {
	if strings.TrimSpace(task.ID) == "" || strings.TrimSpace(task.Description) == "" {
		return nil, fmt.Errorf("%w: id and description are required", ErrInvalidInput)
	}

	o := DefaultPlanOptions()
	if opts != nil {
		o = *opts
	}

	clauses := complexity.SplitClauses(task.Description)
	steps := make([]*Step, 0, len(clauses))
	for i, clause := range clauses {
		steps = append(steps, &Step{
			ID:         fmt.Sprintf("s%d", i+1),
			Order:      i + 1,
			Action:     clause,
			Complexity: estimateStepComplexity(clause),
			Status:     StepPending,
		})
	}

	if o.AnalyzeDependencies {
		analyzeDependencies(steps)
	}

	scored := complexity.Score(task.Description, task.Context)
	planScore := planComplexity(scored, steps)

	p := &Plan{
		TaskID:     task.ID,
		Steps:      steps,
		Complexity: planScore,
		CreatedAt:  time.Now(),
	}

	if o.AssessRisks {
		p.Risks = assessRisks(task.Description, steps)
	}
	p.Team = recommendTeam(planScore, task.Domain, scored.Domains)

	logging.System2("Planned task %s: %d steps, complexity %.2f", task.ID, len(steps), planScore)
	return p, nil
}

func estimateStepComplexity(action string) string {
	lower := strings.ToLower(action)
	for _, w := range highComplexityWords {
		if strings.Contains(lower, w) {
			return ComplexityHigh
		}
	}
	for _, w := range mediumComplexityWords {
		if strings.Contains(lower, w) {
			return ComplexityMedium
		}
	}
	return ComplexityLow
}

// analyzeDependencies wires explicit "step N" references where present and
// defaults to sequential chaining otherwise.
func analyzeDependencies(steps []*Step) {
	for i, s := range steps {
		refs := stepReference.FindAllStringSubmatch(s.Action, -1)
		for _, ref := range refs {
			n, err := strconv.Atoi(ref[1])
			if err != nil || n < 1 || n > len(steps) || n == s.Order {
				continue
			}
			s.DependsOn = append(s.DependsOn, fmt.Sprintf("s%d", n))
		}
		if len(s.DependsOn) == 0 && i > 0 {
			s.DependsOn = []string{steps[i-1].ID}
		}
	}
}

// planComplexity layers plan-shape boosts over the base five-factor score:
// more steps, high-severity signals and domain spread all push toward a
// heavier team.
func planComplexity(scored complexity.Result, steps []*Step) float64 {
	score := scored.Score

	if n := len(steps); n > 2 {
		score += 0.05 * float64(n-2)
	}
	highSteps := 0
	for _, s := range steps {
		if s.Complexity == ComplexityHigh {
			highSteps++
		}
	}
	if highSteps > 0 {
		score += 0.05 * float64(highSteps)
	}
	if len(scored.Domains) >= 3 {
		score += 0.1
	}
	if score > 1 {
		score = 1
	}
	return complexity.Round2(score)
}

// assessRisks inspects the description regardless of step structure.
func assessRisks(description string, steps []*Step) []Risk {
	lower := strings.ToLower(description)
	var risks []Risk

	for _, kw := range []string{"delete", "drop", "truncate"} {
		if strings.Contains(lower, kw) {
			risks = append(risks, Risk{
				Description: fmt.Sprintf("Destructive operation (%s)", kw),
				Severity:    "high",
			})
			break
		}
	}

	production := strings.Contains(lower, "production") || strings.Contains(lower, "prod ")
	if production {
		for _, kw := range []string{"deploy", "publish", "migrat"} {
			if strings.Contains(lower, kw) {
				risks = append(risks, Risk{
					Description: "Production-facing change",
					Severity:    "high",
				})
				break
			}
		}
	}

	for _, kw := range []string{"install", "upgrade", "update"} {
		if strings.Contains(lower, kw) {
			risks = append(risks, Risk{
				Description: fmt.Sprintf("Dependency change (%s)", kw),
				Severity:    "medium",
			})
			break
		}
	}

	if len(risks) == 0 {
		for _, s := range steps {
			if s.Complexity == ComplexityHigh {
				risks = append(risks, Risk{
					Description: "High-complexity step present",
					Severity:    "low",
				})
				break
			}
		}
	}
	return risks
}

// recommendTeam fires at complexity >= 0.6: squad up to 0.85, platoon
// beyond. Platoons always include an architect.
func recommendTeam(score float64, taskDomain string, domains []string) *TeamRecommendation {
	if score < 0.6 {
		return nil
	}

	level := TeamSquad
	if score > 0.85 {
		level = TeamPlatoon
	}

	seen := map[string]bool{}
	var teammates []string
	add := func(names []string) {
		for _, n := range names {
			if !seen[n] {
				seen[n] = true
				teammates = append(teammates, n)
			}
		}
	}

	if taskDomain != "" {
		if names, ok := teammatesByDomain[taskDomain]; ok {
			add(names)
		}
	}
	for _, d := range domains {
		if names, ok := teammatesByDomain[d]; ok {
			add(names)
		}
	}
	if len(teammates) == 0 {
		add(teammatesByDomain["general"])
	}
	if level == TeamPlatoon {
		add([]string{"architect"})
	}

	return &TeamRecommendation{Level: level, Teammates: teammates}
}
