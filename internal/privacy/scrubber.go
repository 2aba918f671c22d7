// Package privacy implements the outbound redaction gate. Every byte that
// leaves the process - swarm packets, logs, diagnostics - passes through a
// Scrubber first. The rule set is priority-ordered so specific patterns
// (vendor API keys) redact before looser ones (generic assignments).
package privacy

import (
	"errors"
	"fmt"
	"runtime"
	"sort"
	"strings"
	"sync"

	"cogito/internal/logging"
)

// Platform identifiers for path rules.
const (
	PlatformWindows = "windows"
	PlatformMacOS   = "macos"
	PlatformLinux   = "linux"
)

// ErrScrubResidual indicates the self-validation pass found sensitive data
// surviving a scrub. Any outbound operation using that payload must abort.
var ErrScrubResidual = errors.New("privacy: residual sensitive data after scrub")

// Redaction describes one replaced match. Span is the [start, end) byte
// range of the replacement token in the scrubbed text.
type Redaction struct {
	Category string `json:"category"`
	Label    string `json:"label"`
	Span     [2]int `json:"span"`
}

// Result is the outcome of a scrub pass.
type Result struct {
	Scrubbed   string      `json:"scrubbed"`
	Redactions []Redaction `json:"redactions"`
}

// Options tweak a single scrub call.
type Options struct {
	// Platform overrides the runtime OS for path rules
	// (windows|macos|linux). Empty uses the runtime value.
	Platform string
}

// Scrubber applies a fixed, priority-sorted rule set.
type Scrubber struct {
	rules    []Rule // sorted by descending priority
	platform string

	mu    sync.Mutex
	stats map[string]int // redaction count per label
}

// NewScrubber returns a scrubber with the default 43-rule set.
func NewScrubber() *Scrubber {
	return newScrubber(defaultRules)
}

func newScrubber(rules []Rule) *Scrubber {
	sorted := make([]Rule, len(rules))
	copy(sorted, rules)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Priority > sorted[j].Priority })

	return &Scrubber{
		rules:    sorted,
		platform: runtimePlatform(),
		stats:    make(map[string]int),
	}
}

func runtimePlatform() string {
	switch runtime.GOOS {
	case "windows":
		return PlatformWindows
	case "darwin":
		return PlatformMacOS
	default:
		return PlatformLinux
	}
}

// Scrub replaces every sensitive match in text with [REDACTED:<label>].
func (s *Scrubber) Scrub(text string, opts *Options) Result {
	platform := s.platform
	if opts != nil && opts.Platform != "" {
		platform = opts.Platform
	}

	scrubbed, redactions := s.apply(text, platform)

	if len(redactions) > 0 {
		s.mu.Lock()
		for _, r := range redactions {
			s.stats[r.Label]++
		}
		s.mu.Unlock()
		logging.Privacy("Scrubbed %d sensitive value(s)", len(redactions))
	}

	return Result{Scrubbed: scrubbed, Redactions: redactions}
}

// apply runs every active rule over text without touching stats.
func (s *Scrubber) apply(text, platform string) (string, []Redaction) {
	var redactions []Redaction
	for _, rule := range s.rules {
		if rule.Platform != "" && rule.Platform != platform {
			continue
		}
		text, redactions = applyRule(text, rule, redactions)
	}
	return text, redactions
}

// applyRule replaces all verified matches of one rule, recording spans in the
// post-replacement text.
func applyRule(text string, rule Rule, redactions []Redaction) (string, []Redaction) {
	token := fmt.Sprintf("[REDACTED:%s]", rule.Label)

	for searched := 0; searched < len(text); {
		loc := rule.Pattern.FindStringIndex(text[searched:])
		if loc == nil {
			break
		}
		start, end := searched+loc[0], searched+loc[1]
		match := text[start:end]

		if rule.Verify != nil && !rule.Verify(match) {
			searched = start + 1
			continue
		}

		text = text[:start] + token + text[end:]
		redactions = append(redactions, Redaction{
			Category: rule.Category,
			Label:    rule.Label,
			Span:     [2]int{start, start + len(token)},
		})
		searched = start + len(token)
	}
	return text, redactions
}

// ValidateScrubbed re-runs the rule set over already-scrubbed output. Any
// remaining match is a scrubber bug; callers holding an outbound payload must
// abort on a non-empty result.
func (s *Scrubber) ValidateScrubbed(text string) []Redaction {
	// Replacement tokens are inert under every rule, so any match here is
	// sensitive data the scrub pass failed to remove.
	_, residual := s.apply(text, s.platform)
	if len(residual) > 0 {
		logging.Get(logging.CategoryPrivacy).Error("Scrub validation found %d residual match(es)", len(residual))
	}
	return residual
}

// ScrubString is a convenience wrapper returning only the scrubbed text.
// Installed as the logging package's scrub hook.
func (s *Scrubber) ScrubString(text string) string {
	return s.Scrub(text, nil).Scrubbed
}

// Stats returns the per-label redaction counts accumulated so far.
func (s *Scrubber) Stats() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int, len(s.stats))
	for k, v := range s.stats {
		out[k] = v
	}
	return out
}

// RuleCount returns the number of active rules (all platforms).
func (s *Scrubber) RuleCount() int { return len(s.rules) }

// NewScopedScrubber returns a scrubber restricted to the given categories,
// for callers that intend partial redaction (e.g. keep paths, scrub
// credentials). Unknown category names are ignored.
func NewScopedScrubber(categories ...string) *Scrubber {
	want := make(map[string]bool, len(categories))
	for _, c := range categories {
		want[strings.ToLower(c)] = true
	}

	var scoped []Rule
	for _, r := range defaultRules {
		if want[r.Category] {
			scoped = append(scoped, r)
		}
	}
	return newScrubber(scoped)
}
