package system1

import (
	"fmt"
	"hash/fnv"
	"sort"
	"strings"
	"unicode"

	"cogito/internal/complexity"
)

// intentVerbs are the leading action words that shape a request. The first
// one found becomes part of the fingerprint bucket.
var intentVerbs = []string{
	"fix", "add", "create", "build", "update", "refactor", "rename", "remove",
	"delete", "test", "review", "explain", "debug", "deploy", "migrate",
	"optimize", "document", "investigate", "implement", "write",
}

// stopwords are dropped from the token set.
var stopwords = map[string]bool{
	"a": true, "an": true, "the": true, "to": true, "of": true, "in": true,
	"on": true, "for": true, "and": true, "or": true, "with": true,
	"is": true, "it": true, "this": true, "that": true, "my": true,
	"please": true, "can": true, "you": true,
}

// maxFingerprintTokens bounds the token set so long requests with the same
// shape still collide.
const maxFingerprintTokens = 8

// Fingerprint derives the opaque lookup key for a request: normalize,
// tokenize, bucket by domain and intent verb, hash. Same-shaped requests
// produce the same key.
func Fingerprint(text string) string {
	lower := strings.ToLower(strings.TrimSpace(text))
	tokens := tokenize(lower)

	verb := ""
	for _, tok := range tokens {
		if isIntentVerb(tok) {
			verb = tok
			break
		}
	}
	if verb == "" && len(tokens) > 0 {
		verb = tokens[0]
	}

	var significant []string
	for _, tok := range tokens {
		if tok == verb || stopwords[tok] || len(tok) < 2 {
			continue
		}
		significant = append(significant, tok)
	}
	sort.Strings(significant)
	if len(significant) > maxFingerprintTokens {
		significant = significant[:maxFingerprintTokens]
	}

	domains := complexity.Domains(lower)

	h := fnv.New64a()
	h.Write([]byte(strings.Join(domains, ",")))
	h.Write([]byte{'|'})
	h.Write([]byte(verb))
	h.Write([]byte{'|'})
	h.Write([]byte(strings.Join(significant, ",")))
	return fmt.Sprintf("%016x", h.Sum64())
}

func tokenize(lower string) []string {
	return strings.FieldsFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

func isIntentVerb(tok string) bool {
	for _, v := range intentVerbs {
		if tok == v {
			return true
		}
	}
	return false
}
