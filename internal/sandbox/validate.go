package sandbox

import (
	"fmt"
	"strings"
	"time"
)

// Severity levels for validation findings.
type Severity string

const (
	SeverityNone     Severity = "none"
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Validation is the verdict derived from one execution record.
type Validation struct {
	Safe     bool     `json:"safe"`
	Success  bool     `json:"success"`
	Severity Severity `json:"severity"`
	Issues   []string `json:"issues"`
}

// Validate derives a verdict from a record. Safe is false only for blocked
// records, which are always critical. For executed records, success requires
// a zero exit code and no issues found in the output.
func (sb *Sandbox) Validate(rec *Record) Validation {
	timeoutMs := DefaultOptions().TimeoutMs
	if sb != nil {
		timeoutMs = sb.Options.TimeoutMs
	}
	return ValidateRecord(rec, timeoutMs)
}

// ValidateRecord is the sandbox-independent form of Validate.
func ValidateRecord(rec *Record, timeoutMs int) Validation {
	if rec == nil {
		return Validation{Safe: false, Severity: SeverityCritical, Issues: []string{"No execution record"}}
	}

	if rec.Blocked {
		return Validation{
			Safe:     false,
			Success:  false,
			Severity: SeverityCritical,
			Issues:   []string{"Blocked by safety rule: " + rec.BlockedBy},
		}
	}

	var issues []string
	stderr := strings.ToLower(rec.Stderr)

	exitZero := rec.Executed && rec.ExitCode != nil && *rec.ExitCode == 0
	if rec.Executed && !exitZero {
		code := -1
		if rec.ExitCode != nil {
			code = *rec.ExitCode
		}
		issues = append(issues, fmt.Sprintf("Non-zero exit code: %d", code))
	}

	segfault := strings.Contains(stderr, "segmentation fault")
	fatal := strings.Contains(stderr, "fatal error")
	hasError := strings.Contains(stderr, "error")
	timedOut := rec.Duration >= time.Duration(timeoutMs)*time.Millisecond && timeoutMs > 0

	if hasError {
		issues = append(issues, "stderr contains error")
	}
	if strings.Contains(stderr, "permission denied") {
		issues = append(issues, "Permission denied")
	}
	if timedOut {
		issues = append(issues, "Command timed out")
	}
	if segfault {
		issues = append(issues, "Segmentation fault")
	}
	if fatal {
		issues = append(issues, "Fatal error")
	}

	severity := SeverityNone
	switch {
	case segfault || fatal:
		severity = SeverityCritical
	case hasError && timedOut:
		severity = SeverityHigh
	case timedOut:
		severity = SeverityLow
	case len(issues) > 0:
		severity = SeverityMedium
	}

	return Validation{
		Safe:     true,
		Success:  exitZero && len(issues) == 0,
		Severity: severity,
		Issues:   issues,
	}
}
