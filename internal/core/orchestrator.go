package core

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"cogito/internal/complexity"
	"cogito/internal/learning"
	"cogito/internal/logging"
	"cogito/internal/privacy"
	"cogito/internal/router"
	"cogito/internal/swarm"
	"cogito/internal/system1"
	"cogito/internal/system2"
)

// Outcome is the result of handling one request end to end. Feedback
// arrives later through Complete.
type Outcome struct {
	Request        string                `json:"request"`
	Classification router.Classification `json:"classification"`
	// System is the system that actually produced the answer: 1 on a
	// fast-path hit, 2 otherwise.
	System      int               `json:"system"`
	FastPath    bool              `json:"fast_path"`
	Fingerprint string            `json:"fingerprint,omitempty"`
	Response    string            `json:"response,omitempty"`
	Solution    *system2.Solution `json:"solution,omitempty"`
	Success     bool              `json:"success"`
	Duration    time.Duration     `json:"duration"`
}

// Handle routes a request and answers it: fast pattern recall on an S1 hit,
// the deliberative loop otherwise. A routed-to-S1 request with no usable
// pattern falls through to System 2.
func (s *Session) Handle(ctx context.Context, text string, cctx *complexity.Context) (*Outcome, error) {
	start := time.Now()

	routed := s.Router.Route(text, cctx)
	s.Metrics.RequestsRouted.WithLabelValues(strconv.Itoa(routed.System)).Inc()

	out := &Outcome{
		Request:        text,
		Classification: routed.Classification,
	}

	if routed.System == 1 {
		lookup := s.Cache.Lookup(text)
		if lookup.Hit {
			out.System = 1
			out.FastPath = true
			out.Fingerprint = lookup.Pattern.Fingerprint
			out.Response = lookup.Pattern.Response
			out.Success = true // provisional until Complete reports feedback
			out.Duration = time.Since(start)
			logging.Session("Fast-path hit (%.1fms, confidence %.2f)", lookup.LatencyMs, lookup.Confidence)
			return out, nil
		}
		logging.Session("Fast-path miss; escalating to System 2")
	}

	task := system2.Task{
		ID:          fmt.Sprintf("req-%d", start.UnixNano()),
		Description: text,
		Context:     cctx,
	}
	if len(routed.Domains) > 0 {
		task.Domain = routed.Domains[0]
	}

	sol, err := s.Engine.Solve(ctx, task, nil)
	if err != nil && sol == nil {
		return nil, err
	}

	out.System = 2
	out.Solution = sol
	out.Success = sol != nil && sol.Success
	out.Duration = time.Since(start)
	if out.Success {
		out.Response = describeSolution(sol)
	}
	return out, err
}

func describeSolution(sol *system2.Solution) string {
	return fmt.Sprintf("completed in %d attempt(s)", sol.Attempts)
}

// Complete reports the final outcome of a handled request: threshold
// adaptation, pattern bookkeeping (usage, promotion, demotion) and the
// experience record. feedback is -1/0/1 user polarity.
func (s *Session) Complete(ctx context.Context, out *Outcome, success bool, feedback int) error {
	adapt := s.Router.Adapt(router.Feedback{System: out.System, Success: success, Duration: out.Duration})
	s.Metrics.Threshold.Set(adapt.NewThreshold)

	if out.FastPath {
		usage, err := s.Cache.RecordUsage(out.Fingerprint, success)
		if err != nil {
			return err
		}
		if err := s.Transfer.MaybeDemote(out.Fingerprint, usage); err != nil {
			return err
		}
		if usage.FlagDemotion {
			s.Metrics.PatternTransfer.WithLabelValues(learning.EventDemotion).Inc()
		}
	} else if out.Solution != nil && out.Solution.FinalResult != nil {
		promoted, err := s.Transfer.RecordSystem2Outcome(
			out.Request,
			out.Response,
			success,
			out.Solution.FinalResult.Confidence,
		)
		if err != nil {
			return err
		}
		if promoted {
			s.Metrics.PatternTransfer.WithLabelValues(learning.EventPromotion).Inc()
		}
	}

	return s.RecordExperience(learning.Experience{
		Request:    out.Request,
		Score:      out.Classification.Score,
		System:     out.System,
		Domain:     firstDomain(out.Classification.Domains),
		Success:    success,
		DurationMs: out.Duration.Milliseconds(),
		Feedback:   feedback,
	})
}

func firstDomain(domains []string) string {
	if len(domains) == 0 {
		return "general"
	}
	return domains[0]
}

// Route exposes classification plus metadata without handling the request.
func (s *Session) Route(text string, cctx *complexity.Context) router.RouteResult {
	return s.Router.Route(text, cctx)
}

// AdaptThreshold applies one outcome to the routing threshold.
func (s *Session) AdaptThreshold(fb router.Feedback) router.AdaptResult {
	res := s.Router.Adapt(fb)
	s.Metrics.Threshold.Set(res.NewThreshold)
	return res
}

// Lookup probes the fast path.
func (s *Session) Lookup(request string) system1.LookupResult {
	return s.Cache.Lookup(request)
}

// Solve runs the deliberative loop directly.
func (s *Session) Solve(ctx context.Context, task system2.Task, opts *system2.SolveOptions) (*system2.Solution, error) {
	return s.Engine.Solve(ctx, task, opts)
}

// Scrub redacts sensitive substrings from text.
func (s *Session) Scrub(text string, opts *privacy.Options) privacy.Result {
	res := s.Scrubber.Scrub(text, opts)
	for _, r := range res.Redactions {
		s.Metrics.Redactions.WithLabelValues(r.Category).Inc()
	}
	return res
}

// RecordExperience appends to the JSONL log and mirrors into the archive.
func (s *Session) RecordExperience(exp learning.Experience) error {
	if err := s.Log.Append(exp); err != nil {
		return err
	}
	scrubbed := exp
	scrubbed.Request = s.Scrubber.Scrub(exp.Request, nil).Scrubbed
	return s.Archive.Append(scrubbed)
}

// UploadWeights forces an immediate weight upload.
func (s *Session) UploadWeights(ctx context.Context) (swarm.UploadResult, error) {
	return s.Sync(ctx, true)
}

// DownloadLatestWeights fetches and verifies the global packet without
// merging.
func (s *Session) DownloadLatestWeights(ctx context.Context) (*swarm.Packet, error) {
	return s.Swarm.DownloadLatestWeights(ctx)
}
