// Package core wires the seven subsystems into one in-process orchestrator.
// All process-wide state lives on an explicit Session so the core is
// testable without filesystem side effects beyond its own learning
// directory; persistence happens at session boundaries.
package core

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cogito/internal/config"
	"cogito/internal/learning"
	"cogito/internal/lockfile"
	"cogito/internal/logging"
	"cogito/internal/metrics"
	"cogito/internal/privacy"
	"cogito/internal/router"
	"cogito/internal/sandbox"
	"cogito/internal/store"
	"cogito/internal/swarm"
	"cogito/internal/system1"
	"cogito/internal/system2"
)

// Session aggregates the core's components and their persisted state.
type Session struct {
	Config *config.Config

	Scrubber *privacy.Scrubber
	Router   *router.Router
	Cache    *system1.Cache
	Engine   *system2.Engine
	Log      *learning.ExperienceLog
	Weights  *learning.WeightStore
	Opt      *learning.Optimizer
	Transfer *learning.Transfer
	Learner  *learning.Learner
	Swarm    *swarm.Client
	Schedule *swarm.Scheduler
	Archive  *store.Archive
	Metrics  *metrics.Metrics

	watcher *system1.Watcher
	closed  bool
}

// NewSession builds a session from config, restoring persisted threshold
// and weight state from the learning directory.
func NewSession(cfg *config.Config) (*Session, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	dir := cfg.LearningDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("core: create learning dir: %w", err)
	}

	scrubber := privacy.NewScrubber()
	logging.SetScrubber(scrubber.ScrubString)

	s := &Session{
		Config:   cfg,
		Scrubber: scrubber,
		Router:   router.New(cfg.Router.Threshold, cfg.Router.AdaptRate),
		Engine: system2.NewEngine(
			system2.WithMaxRetries(cfg.System2.MaxRetries),
			system2.WithSandboxOptions(sandboxOptions(cfg)),
		),
		Opt:      learning.NewOptimizer(cfg.Learning.LearningRate, cfg.Learning.GRPOGroupSize),
		Schedule: swarm.NewScheduler(cfg.Swarm.Schedule),
		Metrics:  metrics.New(),
	}

	var err error
	s.Cache, err = system1.Open(filepath.Join(dir, "system1-cache.json"), cfg.System1.MinConfidence)
	if err != nil {
		return nil, err
	}
	s.Log = learning.NewExperienceLog(filepath.Join(dir, "experiences.jsonl"), scrubber)
	s.Weights, err = learning.NewWeightStore(dir)
	if err != nil {
		return nil, err
	}
	s.Transfer = learning.NewTransfer(
		s.Cache,
		filepath.Join(dir, "system2-cache.json"),
		filepath.Join(dir, "transfer-log.jsonl"),
		cfg.KnowledgeTransfer.PromotionThreshold,
		cfg.KnowledgeTransfer.DemotionThreshold,
	)
	s.Learner = learning.NewLearner(s.Log, s.Weights, s.Opt, cfg.Learning.BatchSize)
	s.Swarm = swarm.NewClient(cfg.Swarm, scrubber, filepath.Join(dir, "swarm-queue.jsonl"))
	s.Archive, err = store.Open(filepath.Join(dir, "experiences.db"))
	if err != nil {
		return nil, err
	}

	s.restoreThreshold(dir)
	s.Metrics.Threshold.Set(s.Router.Threshold())

	logging.Session("Session started (θ=%.2f)", s.Router.Threshold())
	return s, nil
}

func sandboxOptions(cfg *config.Config) sandbox.Options {
	return sandbox.Options{
		TimeoutMs:     cfg.Sandbox.TimeoutMs,
		MaxLifetimeMs: cfg.Sandbox.MaxLifetimeMs,
		AllowNetwork:  cfg.Sandbox.AllowNetwork,
	}
}

// WatchCache starts the hot-swap watcher so external cache writers are
// visible without restart.
func (s *Session) WatchCache(ctx context.Context) error {
	w, err := system1.NewWatcher(s.Cache)
	if err != nil {
		return err
	}
	s.watcher = w
	w.Start(ctx)
	return nil
}

// thresholdFile is the persisted router state.
const thresholdFile = "thresholds.json"

func (s *Session) restoreThreshold(dir string) {
	data, err := os.ReadFile(filepath.Join(dir, thresholdFile))
	if err != nil {
		return
	}
	var snap router.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		logging.Get(logging.CategorySession).Warn("Ignoring corrupt %s: %v", thresholdFile, err)
		return
	}
	s.Router.Restore(snap)
}

// persistThreshold writes the router snapshot atomically.
func (s *Session) persistThreshold() error {
	snap := s.Router.Snapshot()
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}
	return lockfile.WriteAtomic(filepath.Join(s.Config.LearningDir(), thresholdFile), data)
}

// categoryWeights folds the per-domain strategy maps into the four swarm
// categories. Strategy weights average into commands, team-namespace maps
// into teams; tools and errors stay empty until those learners exist.
func (s *Session) categoryWeights() map[string]map[string]float64 {
	commands := map[string]float64{}
	commandCounts := map[string]int{}
	teams := map[string]float64{}
	teamCounts := map[string]int{}

	for _, domain := range s.Weights.Domains() {
		w := s.Weights.Get(domain)
		if strings.HasPrefix(domain, learning.TeamNamespace) {
			for k, v := range w {
				teams[k] += v
				teamCounts[k]++
			}
			continue
		}
		for k, v := range w {
			commands[k] += v
			commandCounts[k]++
		}
	}
	for k, n := range commandCounts {
		commands[k] /= float64(n)
	}
	for k, n := range teamCounts {
		teams[k] /= float64(n)
	}

	return map[string]map[string]float64{
		"tools":    {},
		"errors":   {},
		"commands": commands,
		"teams":    teams,
	}
}

// Sync uploads local weights and merges the latest global packet, honoring
// the configured schedule. Pass force to ignore the schedule.
func (s *Session) Sync(ctx context.Context, force bool) (swarm.UploadResult, error) {
	if !force && !s.Schedule.Due() {
		return swarm.UploadResult{}, nil
	}

	res, err := s.Swarm.UploadWeights(ctx, s.categoryWeights())
	if err != nil {
		s.Metrics.SwarmUploads.WithLabelValues("error").Inc()
		return res, err
	}
	s.Metrics.SwarmUploads.WithLabelValues(res.Status).Inc()

	if res.Status == swarm.StatusUploaded {
		s.Schedule.MarkRun()
		if global, err := s.Swarm.DownloadLatestWeights(ctx); err == nil {
			local := s.categoryWeights()
			s.Swarm.Merge(local, global)
			s.applyMergedCommands(local["commands"], local["teams"])
		} else {
			logging.Get(logging.CategorySwarm).Warn("Download skipped: %v", err)
		}
	}
	return res, nil
}

// applyMergedCommands folds merged category weights back into every
// domain's working map, renormalized per domain.
func (s *Session) applyMergedCommands(commands, teams map[string]float64) {
	ratio := s.Config.Swarm.MergeRatio
	for _, domain := range s.Weights.Domains() {
		w := s.Weights.Get(domain)
		src := commands
		if strings.HasPrefix(domain, learning.TeamNamespace) {
			src = teams
		}
		changed := false
		for k := range w {
			if gv, ok := src[k]; ok {
				w[k] = (1-ratio)*w[k] + ratio*gv
				changed = true
			}
		}
		if changed {
			w.Normalize()
			s.Weights.Set(domain, w)
		}
	}
}

// Close runs session-end duties: batch learning, scheduled sync, state
// persistence. Safe to call once.
func (s *Session) Close(ctx context.Context) error {
	if s.closed {
		return nil
	}
	s.closed = true

	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if _, err := s.Learner.BatchLearn(ctx); err != nil && ctx.Err() == nil {
		keep(err)
	}
	if _, err := s.Sync(ctx, false); err != nil {
		// Offline is routine; the queue holds the packet.
		logging.Get(logging.CategorySwarm).Warn("Session-end sync: %v", err)
	}
	keep(s.persistThreshold())
	keep(s.Weights.SaveAll())
	if s.watcher != nil {
		s.watcher.Stop()
	}
	keep(s.Archive.Close())

	logging.Session("Session closed")
	return firstErr
}
