// Package complexity implements the deterministic five-factor request
// scoring shared by the router and the deliberative planner. Scores are a
// pure function of (text, context); repeated calls return identical values.
package complexity

import (
	"math"
	"regexp"
	"sort"
	"strings"
)

// Factor weights. Must sum to 1.
const (
	WeightSteps       = 0.25
	WeightDomains     = 0.20
	WeightUncertainty = 0.20
	WeightRisk        = 0.20
	WeightNovelty     = 0.15
)

// Context carries per-session signals used by the novelty factor.
type Context struct {
	SessionDepth       int                `json:"session_depth"`
	RecentDomains      []string           `json:"recent_domains"`
	DomainSuccessRates map[string]float64 `json:"domain_success_rates"`
}

// Factors is the per-factor breakdown of a score, each in [0,1].
type Factors struct {
	Steps       float64 `json:"steps"`
	Domains     float64 `json:"domains"`
	Uncertainty float64 `json:"uncertainty"`
	Risk        float64 `json:"risk"`
	Novelty     float64 `json:"novelty"`
}

// Result is a full scoring outcome.
type Result struct {
	Score   float64  `json:"score"` // weighted sum, rounded to 2 decimals
	Factors Factors  `json:"factors"`
	Domains []string `json:"domains"` // matched domain buckets, sorted
}

// domainKeywords maps each bucket to its trigger terms (en/ko/ja).
// Matching is substring over the lowercased input, so inflected forms
// ("migrating") hit their stem.
var domainKeywords = map[string][]string{
	"frontend":       {"frontend", "front-end", "react", "vue", "css", "component", "ui", "화면", "프론트", "画面", "フロント"},
	"backend":        {"backend", "back-end", "api", "endpoint", "server", "service", "서버", "백엔드", "サーバ", "エンドポイント"},
	"database":       {"database", "db", "sql", "schema", "migrat", "query", "index", "데이터베이스", "마이그레이션", "データベース", "マイグレーション"},
	"infrastructure": {"deploy", "kubernetes", "k8s", "docker", "terraform", "infra", "ci/cd", "pipeline", "배포", "인프라", "デプロイ", "インフラ"},
	"security":       {"security", "auth", "authenticat", "authoriz", "vulnerab", "cve", "encrypt", "credential", "audit", "보안", "취약점", "セキュリティ", "脆弱性"},
	"data":           {"data pipeline", "etl", "analytics", "dataset", "dataframe", "분석", "データ分析", "데이터"},
	"testing":        {"test", "tests", "testing", "coverage", "regression", "e2e", "unit test", "테스트", "テスト"},
}

// uncertaintyWords signal exploratory or ambiguous intent.
var uncertaintyWords = []string{
	"maybe", "might", "perhaps", "possibly", "investigate", "explore",
	"not sure", "unclear", "unsure",
	"아마", "혹시", "조사", "もしかして", "たぶん", "調査",
}

// riskKeywords signal operations with blast radius.
var riskKeywords = []string{
	"production", "prod ", "delete", "drop database", "drop table", "truncate",
	"migrat", "deploy", "rollback", "force push", "credential",
	"배포", "삭제", "운영", "デプロイ", "削除", "本番",
}

// connectors delimit sequential clauses (en/ko/ja ordinal/temporal).
var connectors = []string{
	" and then ", " then ", " after that ", " afterwards ", " next, ",
	" followed by ", "그리고", "그 다음", "다음에", "次に", "それから", "その後",
}

var numberedItem = regexp.MustCompile(`(?m)^\s*\d+[.)]\s+`)

// Score computes the five factors and their weighted sum for a request.
// ctx may be nil.
func Score(text string, ctx *Context) Result {
	lower := strings.ToLower(text)
	domains := matchDomains(lower)

	f := Factors{
		Steps:       stepsFactor(text, lower),
		Domains:     domainsFactor(len(domains)),
		Uncertainty: uncertaintyFactor(lower),
		Risk:        riskFactor(lower),
		Novelty:     noveltyFactor(domains, ctx),
	}

	score := WeightSteps*f.Steps +
		WeightDomains*f.Domains +
		WeightUncertainty*f.Uncertainty +
		WeightRisk*f.Risk +
		WeightNovelty*f.Novelty

	return Result{
		Score:   Round2(score),
		Factors: f,
		Domains: domains,
	}
}

// Domains returns the matched domain buckets for a text, sorted.
func Domains(text string) []string {
	return matchDomains(strings.ToLower(text))
}

// SplitClauses breaks a description into sequential clauses on numbered
// items first, then connector/list punctuation. A text with no delimiters
// comes back as a single clause.
func SplitClauses(text string) []string {
	if items := splitNumbered(text); len(items) > 1 {
		return items
	}

	marked := text
	for _, c := range connectors {
		marked = strings.ReplaceAll(marked, c, "\x00")
	}
	// List punctuation splits too: an intro colon and comma-separated
	// clauses read as sequential steps.
	marked = strings.ReplaceAll(marked, ": ", "\x00")
	marked = strings.ReplaceAll(marked, ", and ", "\x00")
	marked = strings.ReplaceAll(marked, ", ", "\x00")
	marked = strings.ReplaceAll(marked, ";", "\x00")

	var clauses []string
	for _, part := range strings.Split(marked, "\x00") {
		part = strings.TrimSpace(part)
		if part != "" {
			clauses = append(clauses, part)
		}
	}
	if len(clauses) == 0 {
		return []string{strings.TrimSpace(text)}
	}
	return clauses
}

// splitNumbered extracts `1. foo` style items, returning nil when the text
// holds fewer than two.
func splitNumbered(text string) []string {
	locs := numberedItem.FindAllStringIndex(text, -1)
	if len(locs) < 2 {
		return nil
	}
	var items []string
	for i, loc := range locs {
		end := len(text)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		item := strings.TrimSpace(text[loc[1]:end])
		if item != "" {
			items = append(items, item)
		}
	}
	return items
}

func stepsFactor(text, lower string) float64 {
	clauses := SplitClauses(lower)
	s := float64(len(clauses)-1) * 0.25

	if items := splitNumbered(text); len(items) > 1 {
		s = math.Max(s, 0.3+0.2*float64(len(items)))
	}
	if len(text) > 300 {
		s += 0.2
	}
	return clamp01(s)
}

func matchDomains(lower string) []string {
	var matched []string
	for domain, keywords := range domainKeywords {
		for _, kw := range keywords {
			if containsKeyword(lower, kw) {
				matched = append(matched, domain)
				break
			}
		}
	}
	sort.Strings(matched)
	return matched
}

// containsKeyword matches short ASCII keywords ("db", "ui", "api") on word
// boundaries so they don't fire inside unrelated words; longer keywords and
// non-ASCII terms match as substrings.
func containsKeyword(lower, kw string) bool {
	if len(kw) > 4 || !isASCII(kw) {
		return strings.Contains(lower, kw)
	}
	for start := 0; ; {
		idx := strings.Index(lower[start:], kw)
		if idx < 0 {
			return false
		}
		i := start + idx
		j := i + len(kw)
		beforeOK := i == 0 || !isWordByte(lower[i-1])
		afterOK := j == len(lower) || !isWordByte(lower[j])
		if beforeOK && afterOK {
			return true
		}
		start = i + 1
	}
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}

func isWordByte(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= '0' && b <= '9')
}

func domainsFactor(n int) float64 {
	switch {
	case n == 0:
		return 0
	case n == 1:
		return 0.25
	case n == 2:
		return 0.75
	default:
		return 1.0
	}
}

func uncertaintyFactor(lower string) float64 {
	hits := 0
	for _, w := range uncertaintyWords {
		hits += strings.Count(lower, w)
	}
	questions := strings.Count(lower, "?")
	return clamp01(0.3*float64(hits) + 0.2*float64(questions))
}

// riskFactor compounds: each additional risk keyword is worth more than the
// previous one, so "delete production data during migration" saturates fast.
func riskFactor(lower string) float64 {
	hits := 0
	for _, kw := range riskKeywords {
		if strings.Contains(lower, kw) {
			hits++
		}
	}
	if hits == 0 {
		return 0
	}
	h := float64(hits)
	return clamp01(0.3*h + 0.1*h*(h-1)/2)
}

func noveltyFactor(domains []string, ctx *Context) float64 {
	if ctx == nil || (ctx.SessionDepth == 0 && len(ctx.RecentDomains) == 0) {
		return 0.4
	}

	recent := make(map[string]bool, len(ctx.RecentDomains))
	for _, d := range ctx.RecentDomains {
		recent[d] = true
	}

	// Familiarity decays the base as the session deepens.
	n := 0.2 / (1 + 0.25*float64(ctx.SessionDepth))

	for _, d := range domains {
		if !recent[d] {
			n += 0.3
			break
		}
	}
	for _, d := range domains {
		if rate, ok := ctx.DomainSuccessRates[d]; ok && rate < 0.5 {
			n += 0.2
			break
		}
	}
	return clamp01(n)
}

// Round2 rounds to two decimals.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
