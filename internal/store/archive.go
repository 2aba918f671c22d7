// Package store implements the queryable experience archive: a SQLite
// mirror of the append-only JSONL experience log, indexed by domain and
// system so session-end stats don't rescan the log.
package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"cogito/internal/learning"
	"cogito/internal/logging"
)

// Archive is the SQLite-backed experience mirror. The JSONL log stays the
// source of truth; the archive can be rebuilt from it at any time.
type Archive struct {
	db *sql.DB
}

// Open creates (or opens) the archive at path.
func Open(path string) (*Archive, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("store: open archive: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS experiences (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		request TEXT NOT NULL,
		score REAL NOT NULL,
		system INTEGER NOT NULL,
		domain TEXT NOT NULL DEFAULT '',
		success INTEGER NOT NULL,
		duration_ms INTEGER NOT NULL DEFAULT 0,
		feedback INTEGER NOT NULL DEFAULT 0,
		recorded_at TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_experiences_domain ON experiences(domain);
	CREATE INDEX IF NOT EXISTS idx_experiences_system ON experiences(system);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: initialize schema: %w", err)
	}

	logging.Store("Experience archive opened at %s", path)
	return &Archive{db: db}, nil
}

// Append mirrors one experience. The record arrives already scrubbed by the
// experience log.
func (a *Archive) Append(exp learning.Experience) error {
	ts := exp.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	_, err := a.db.Exec(
		`INSERT INTO experiences (request, score, system, domain, success, duration_ms, feedback, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		exp.Request, exp.Score, exp.System, exp.Domain, boolToInt(exp.Success), exp.DurationMs, exp.Feedback, ts,
	)
	if err != nil {
		return fmt.Errorf("store: append experience: %w", err)
	}
	return nil
}

// SystemStats is the per-system aggregate.
type SystemStats struct {
	Total       int     `json:"total"`
	Succeeded   int     `json:"succeeded"`
	SuccessRate float64 `json:"success_rate"`
	AvgMs       float64 `json:"avg_ms"`
}

// Stats summarizes the archive.
type Stats struct {
	Total     int                 `json:"total"`
	BySystem  map[int]SystemStats `json:"by_system"`
	ByDomain  map[string]int      `json:"by_domain"`
	AvgScore  float64             `json:"avg_score"`
	FirstSeen time.Time           `json:"first_seen"`
	LastSeen  time.Time           `json:"last_seen"`
}

// Stats aggregates success rates per system and counts per domain.
func (a *Archive) Stats() (Stats, error) {
	st := Stats{BySystem: map[int]SystemStats{}, ByDomain: map[string]int{}}

	row := a.db.QueryRow(`SELECT COUNT(*), COALESCE(AVG(score), 0) FROM experiences`)
	if err := row.Scan(&st.Total, &st.AvgScore); err != nil {
		return st, fmt.Errorf("store: totals: %w", err)
	}
	if st.Total == 0 {
		return st, nil
	}

	rows, err := a.db.Query(
		`SELECT system, COUNT(*), SUM(success), COALESCE(AVG(duration_ms), 0)
		 FROM experiences GROUP BY system`)
	if err != nil {
		return st, fmt.Errorf("store: per-system stats: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var system, total, succeeded int
		var avgMs float64
		if err := rows.Scan(&system, &total, &succeeded, &avgMs); err != nil {
			return st, err
		}
		st.BySystem[system] = SystemStats{
			Total:       total,
			Succeeded:   succeeded,
			SuccessRate: float64(succeeded) / float64(total),
			AvgMs:       avgMs,
		}
	}
	if err := rows.Err(); err != nil {
		return st, err
	}

	domainRows, err := a.db.Query(`SELECT domain, COUNT(*) FROM experiences GROUP BY domain`)
	if err != nil {
		return st, fmt.Errorf("store: per-domain stats: %w", err)
	}
	defer domainRows.Close()
	for domainRows.Next() {
		var domain string
		var count int
		if err := domainRows.Scan(&domain, &count); err != nil {
			return st, err
		}
		if domain == "" {
			domain = "general"
		}
		st.ByDomain[domain] += count
	}
	if err := domainRows.Err(); err != nil {
		return st, err
	}

	// Direct column selects keep the declared TIMESTAMP type so the driver
	// hands back time.Time; MIN/MAX aggregates would not.
	first := a.db.QueryRow(`SELECT recorded_at FROM experiences ORDER BY recorded_at ASC LIMIT 1`)
	if err := first.Scan(&st.FirstSeen); err != nil {
		return st, fmt.Errorf("store: time bounds: %w", err)
	}
	last := a.db.QueryRow(`SELECT recorded_at FROM experiences ORDER BY recorded_at DESC LIMIT 1`)
	if err := last.Scan(&st.LastSeen); err != nil {
		return st, fmt.Errorf("store: time bounds: %w", err)
	}
	return st, nil
}

// DomainSuccessRates returns success ratios per domain, feeding the
// router's novelty factor.
func (a *Archive) DomainSuccessRates() (map[string]float64, error) {
	rows, err := a.db.Query(
		`SELECT domain, COUNT(*), SUM(success) FROM experiences WHERE domain != '' GROUP BY domain`)
	if err != nil {
		return nil, fmt.Errorf("store: domain rates: %w", err)
	}
	defer rows.Close()

	rates := map[string]float64{}
	for rows.Next() {
		var domain string
		var total, succeeded int
		if err := rows.Scan(&domain, &total, &succeeded); err != nil {
			return nil, err
		}
		if total > 0 {
			rates[domain] = float64(succeeded) / float64(total)
		}
	}
	return rates, rows.Err()
}

// Close releases the database handle.
func (a *Archive) Close() error { return a.db.Close() }

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
