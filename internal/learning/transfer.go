package learning

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"cogito/internal/lockfile"
	"cogito/internal/logging"
	"cogito/internal/system1"
)

// Transfer events recorded in the transfer log.
const (
	EventPromotion = "promotion"
	EventDemotion  = "demotion"
)

// Promotion requires this reflection confidence on top of the consecutive
// success count.
const promotionMinConfidence = 0.8

// S2Entry tracks a pattern's record on the deliberative path. A pattern
// lives in at most one of the S1 cache and this registry; promotion moves
// it out, demotion moves it back in.
type S2Entry struct {
	Fingerprint    string    `json:"fingerprint"`
	Response       string    `json:"response"`
	ConsecutiveOK  int       `json:"consecutive_ok"`
	LastConfidence float64   `json:"last_confidence"`
	LastSeen       time.Time `json:"last_seen"`
	// FlaggedForReanalysis marks demoted patterns for a fresh look on next
	// use.
	FlaggedForReanalysis bool `json:"flagged_for_reanalysis,omitempty"`
}

// TransferRecord is one line in the transfer log.
type TransferRecord struct {
	Event     string    `json:"event"`
	PatternID string    `json:"patternId"`
	Timestamp time.Time `json:"timestamp"`
	Reason    string    `json:"reason"`
}

// Transfer keeps the S1 cache accurate without restart: promotion of
// well-performing S2 patterns in, demotion of misbehaving S1 patterns out.
// The S2 registry is a lock-protected JSON file like the S1 cache.
type Transfer struct {
	mu sync.Mutex

	cache              *system1.Cache
	registryPath       string
	logPath            string
	promotionThreshold int
	demotionThreshold  int
}

// NewTransfer wires the engine to the S1 cache and its on-disk registry and
// log. Thresholds fall back to the defaults (3 promote, 2 demote).
func NewTransfer(cache *system1.Cache, registryPath, logPath string, promotionThreshold, demotionThreshold int) *Transfer {
	if promotionThreshold <= 0 {
		promotionThreshold = 3
	}
	if demotionThreshold <= 0 {
		demotionThreshold = 2
	}
	return &Transfer{
		cache:              cache,
		registryPath:       registryPath,
		logPath:            logPath,
		promotionThreshold: promotionThreshold,
		demotionThreshold:  demotionThreshold,
	}
}

func (t *Transfer) readRegistry() (map[string]*S2Entry, error) {
	data, err := os.ReadFile(t.registryPath)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]*S2Entry{}, nil
		}
		return nil, fmt.Errorf("transfer: read registry: %w", err)
	}
	reg := map[string]*S2Entry{}
	if len(data) == 0 {
		return reg, nil
	}
	if err := json.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("transfer: parse registry: %w", err)
	}
	return reg, nil
}

// mutateRegistry applies fn under the registry file lock with an atomic
// rename, the same hot-swap protocol as the S1 cache.
func (t *Transfer) mutateRegistry(fn func(map[string]*S2Entry) error) error {
	lock, err := lockfile.Acquire(t.registryPath, lockfile.DefaultTimeout)
	if err != nil {
		return err
	}
	defer lock.Release()

	reg, err := t.readRegistry()
	if err != nil {
		return err
	}
	if err := fn(reg); err != nil {
		return err
	}
	data, err := json.MarshalIndent(reg, "", "  ")
	if err != nil {
		return fmt.Errorf("transfer: marshal registry: %w", err)
	}
	return lockfile.WriteAtomic(t.registryPath, data)
}

// RecordSystem2Outcome updates a pattern's deliberative track record and
// promotes it when it earns three consecutive successes with reflection
// confidence above 0.8. Returns whether a promotion happened.
func (t *Transfer) RecordSystem2Outcome(request, response string, success bool, confidence float64) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	fp := system1.Fingerprint(request)
	promote := false

	err := t.mutateRegistry(func(reg map[string]*S2Entry) error {
		entry, ok := reg[fp]
		if !ok {
			entry = &S2Entry{Fingerprint: fp}
			reg[fp] = entry
		}
		entry.Response = response
		entry.LastConfidence = confidence
		entry.LastSeen = time.Now()
		entry.FlaggedForReanalysis = false

		if success {
			entry.ConsecutiveOK++
		} else {
			entry.ConsecutiveOK = 0
		}

		if entry.ConsecutiveOK >= t.promotionThreshold && confidence > promotionMinConfidence {
			promote = true
			delete(reg, fp)
		}
		return nil
	})
	if err != nil {
		return false, err
	}

	if !promote {
		return false, nil
	}

	if err := t.cache.Put(&system1.Pattern{
		Fingerprint: fp,
		Response:    response,
		LastUsed:    time.Now(),
		Origin:      system1.OriginPromoted,
	}); err != nil {
		return false, err
	}
	if err := t.appendLog(TransferRecord{
		Event:     EventPromotion,
		PatternID: fp,
		Timestamp: time.Now(),
		Reason:    fmt.Sprintf("%d consecutive successes, confidence %.2f", t.promotionThreshold, confidence),
	}); err != nil {
		return true, err
	}
	logging.Xfer("Promoted pattern %s to S1", fp)
	return true, nil
}

// Demote removes a pattern from the S1 cache and re-registers it for
// deliberative handling, flagged for re-analysis on next use.
func (t *Transfer) Demote(fingerprint, reason string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	removed, err := t.cache.Remove(fingerprint)
	if err != nil {
		return err
	}
	if removed == nil {
		return nil
	}

	err = t.mutateRegistry(func(reg map[string]*S2Entry) error {
		reg[fingerprint] = &S2Entry{
			Fingerprint:          fingerprint,
			Response:             removed.Response,
			LastSeen:             time.Now(),
			FlaggedForReanalysis: true,
		}
		return nil
	})
	if err != nil {
		return err
	}

	if err := t.appendLog(TransferRecord{
		Event:     EventDemotion,
		PatternID: fingerprint,
		Timestamp: time.Now(),
		Reason:    reason,
	}); err != nil {
		return err
	}
	logging.Xfer("Demoted pattern %s from S1: %s", fingerprint, reason)
	return nil
}

// MaybeDemote applies the demotion policy reported by the cache after a
// usage record.
func (t *Transfer) MaybeDemote(fingerprint string, usage system1.UsageResult) error {
	if !usage.FlagDemotion {
		return nil
	}
	reason := "failure rate above 20% over at least 10 uses"
	if usage.FailureStreak >= t.demotionThreshold {
		reason = fmt.Sprintf("%d consecutive failures", usage.FailureStreak)
	}
	return t.Demote(fingerprint, reason)
}

// Registry returns a snapshot of the S2 registry.
func (t *Transfer) Registry() (map[string]*S2Entry, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.readRegistry()
}

// appendLog writes one transfer record to the JSONL log.
func (t *Transfer) appendLog(rec TransferRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("transfer: marshal log record: %w", err)
	}
	f, err := os.OpenFile(t.logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("transfer: open log: %w", err)
	}
	defer f.Close()
	_, err = f.Write(append(data, '\n'))
	return err
}
