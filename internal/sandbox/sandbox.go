// Package sandbox implements the command safety gate for deliberative
// execution. A sandbox validates commands against a deny list and keeps an
// append-only execution log; it never runs processes itself. Integrators
// back RecordResult with whatever execution backend they choose (child
// process, container, dry run).
package sandbox

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"cogito/internal/logging"
)

// Sandbox lifecycle states.
const (
	StatusActive  = "active"
	StatusExpired = "expired"
	StatusCleaned = "cleaned"
)

// ErrExpired indicates a command was submitted to a sandbox past its
// lifetime or after cleanup. At the record level this is treated as blocked.
var ErrExpired = errors.New("sandbox: expired or cleaned")

// Options configure a sandbox instance.
type Options struct {
	// TimeoutMs is the per-command timeout used by validation.
	TimeoutMs int
	// MaxLifetimeMs bounds the sandbox lifetime.
	MaxLifetimeMs int
	// AllowNetwork is advisory for execution backends.
	AllowNetwork bool
	// ExtraBlockedPatterns extends the default deny list.
	ExtraBlockedPatterns []BlockedPattern
}

// DefaultOptions returns the standard sandbox options.
func DefaultOptions() Options {
	return Options{
		TimeoutMs:     30000,
		MaxLifetimeMs: 300000,
		AllowNetwork:  true,
	}
}

// Record is one entry in a sandbox's execution log. ExitCode is nil until
// RecordResult supplies an actual result; Executed=false with a nil exit
// code means "not executed", not "executed with no exit code".
type Record struct {
	Command   string        `json:"command"`
	SandboxID string        `json:"sandbox_id"`
	Executed  bool          `json:"executed"`
	Blocked   bool          `json:"blocked"`
	BlockedBy string        `json:"blocked_by,omitempty"`
	ExitCode  *int          `json:"exit_code"`
	Stdout    string        `json:"stdout"`
	Stderr    string        `json:"stderr"`
	Duration  time.Duration `json:"duration_ns"`
	StartedAt time.Time     `json:"started_at"`
}

// Sandbox is a single safety-gate instance with its own execution log.
type Sandbox struct {
	ID        string
	Status    string
	CreatedAt time.Time
	ExpiresAt time.Time
	Options   Options

	mu           sync.Mutex
	executionLog []*Record
	blocked      []BlockedPattern
}

// New creates an active sandbox. Zero-valued option fields fall back to
// defaults.
func New(opts Options) *Sandbox {
	def := DefaultOptions()
	if opts.TimeoutMs <= 0 {
		opts.TimeoutMs = def.TimeoutMs
	}
	if opts.MaxLifetimeMs <= 0 {
		opts.MaxLifetimeMs = def.MaxLifetimeMs
	}

	now := time.Now()
	sb := &Sandbox{
		ID:        uuid.NewString(),
		Status:    StatusActive,
		CreatedAt: now,
		ExpiresAt: now.Add(time.Duration(opts.MaxLifetimeMs) * time.Millisecond),
		Options:   opts,
		blocked:   append(defaultBlockedPatterns(), opts.ExtraBlockedPatterns...),
	}
	logging.Sandbox("Sandbox %s created (lifetime %dms, timeout %dms)", sb.ID, opts.MaxLifetimeMs, opts.TimeoutMs)
	return sb
}

// SafetyVerdict is the outcome of a deny-list check.
type SafetyVerdict struct {
	Safe      bool   `json:"safe"`
	BlockedBy string `json:"blocked_by,omitempty"`
}

// CheckCommandSafety validates a command against the deny list. A nil
// sandbox checks against the default list. Empty commands are unsafe.
func CheckCommandSafety(cmd string, sb *Sandbox) SafetyVerdict {
	if strings.TrimSpace(cmd) == "" {
		return SafetyVerdict{Safe: false, BlockedBy: "empty command"}
	}

	patterns := defaultBlockedPatterns()
	if sb != nil {
		patterns = sb.blocked
	}
	for _, p := range patterns {
		if p.Pattern.MatchString(cmd) {
			return SafetyVerdict{Safe: false, BlockedBy: p.Label}
		}
	}
	return SafetyVerdict{Safe: true}
}

// usable reports whether the sandbox accepts commands, expiring it lazily.
func (sb *Sandbox) usable() bool {
	if sb.Status == StatusCleaned {
		return false
	}
	if time.Now().After(sb.ExpiresAt) {
		sb.Status = StatusExpired
		return false
	}
	return sb.Status == StatusActive
}

// Execute submits a command to the gate. The returned record is blocked when
// the sandbox is unusable or the command matches the deny list; otherwise it
// is a pending record (Executed=false, nil exit code) for the caller to
// complete via RecordResult.
func (sb *Sandbox) Execute(cmd string) *Record {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	rec := &Record{
		Command:   cmd,
		SandboxID: sb.ID,
		StartedAt: time.Now(),
	}

	if !sb.usable() {
		rec.Blocked = true
		rec.BlockedBy = "sandbox " + sb.Status
		sb.executionLog = append(sb.executionLog, rec)
		logging.Sandbox("Sandbox %s rejected command (%s)", sb.ID, sb.Status)
		return rec
	}

	if verdict := CheckCommandSafety(cmd, sb); !verdict.Safe {
		rec.Blocked = true
		rec.BlockedBy = verdict.BlockedBy
		sb.executionLog = append(sb.executionLog, rec)
		logging.Sandbox("Sandbox %s blocked command: %s", sb.ID, verdict.BlockedBy)
		return rec
	}

	sb.executionLog = append(sb.executionLog, rec)
	return rec
}

// Actual carries the real result of executing a command outside the gate.
type Actual struct {
	Stdout   string
	Stderr   string
	ExitCode *int
	Duration time.Duration
}

// maxOutputBytes bounds stored stdout/stderr; longer output is truncated
// with a visible marker.
const maxOutputBytes = 1 << 20

const truncationMarker = "\n[truncated]"

// RecordResult merges an actual execution result into a pending record.
// Blocked records are left untouched. A missing exit code defaults to 1.
func RecordResult(rec *Record, actual Actual) {
	if rec == nil || rec.Blocked {
		return
	}

	rec.Executed = true
	rec.Stdout = truncateOutput(actual.Stdout)
	rec.Stderr = truncateOutput(actual.Stderr)
	rec.Duration = actual.Duration
	if actual.ExitCode != nil {
		code := *actual.ExitCode
		rec.ExitCode = &code
	} else {
		one := 1
		rec.ExitCode = &one
	}
}

func truncateOutput(s string) string {
	if len(s) <= maxOutputBytes {
		return s
	}
	return s[:maxOutputBytes] + truncationMarker
}

// Stats summarizes a sandbox's execution log.
type Stats struct {
	Total         int           `json:"total"`
	Blocked       int           `json:"blocked"`
	Pending       int           `json:"pending"`
	Succeeded     int           `json:"succeeded"`
	Failed        int           `json:"failed"`
	TotalDuration time.Duration `json:"total_duration_ns"`
}

// Stats returns aggregate counters over the execution log.
func (sb *Sandbox) Stats() Stats {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	return sb.statsLocked()
}

func (sb *Sandbox) statsLocked() Stats {
	var st Stats
	for _, rec := range sb.executionLog {
		st.Total++
		st.TotalDuration += rec.Duration
		switch {
		case rec.Blocked:
			st.Blocked++
		case !rec.Executed:
			st.Pending++
		case rec.ExitCode != nil && *rec.ExitCode == 0:
			st.Succeeded++
		default:
			st.Failed++
		}
	}
	return st
}

// Log returns a snapshot of the execution log.
func (sb *Sandbox) Log() []*Record {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	out := make([]*Record, len(sb.executionLog))
	copy(out, sb.executionLog)
	return out
}

// Cleanup marks the sandbox cleaned, freezes the log and returns summary
// stats. Further commands are rejected as blocked.
func (sb *Sandbox) Cleanup() Stats {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	sb.Status = StatusCleaned
	st := sb.statsLocked()
	logging.Sandbox("Sandbox %s cleaned: %d total, %d blocked, %d failed", sb.ID, st.Total, st.Blocked, st.Failed)
	return st
}
