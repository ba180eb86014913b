package resolver

import (
	"strings"

	"pvzvoice/internal/keyspace"
	"pvzvoice/internal/textutil"
)

// Query is one lookup as seen by the strategies.
type Query struct {
	// Raw is the requested key, trimmed and NFC-normalized.
	Raw     string
	Request keyspace.Request
	// Candidates is the generator's search order for Request.
	Candidates []string
}

// Strategy finds the stored key answering a query.
type Strategy interface {
	Name() string
	Find(q Query, src Source) (string, bool)
}

// Exact matches the literal requested key.
type Exact struct{}

func (Exact) Name() string { return "exact" }

func (Exact) Find(q Query, src Source) (string, bool) {
	if _, ok := src.Peek(q.Raw); ok {
		return q.Raw, true
	}
	return "", false
}

// Alias walks the generated candidates in order.
type Alias struct{}

func (Alias) Name() string { return "alias" }

func (Alias) Find(q Query, src Source) (string, bool) {
	for _, key := range q.Candidates {
		if _, ok := src.Peek(key); ok {
			return key, true
		}
	}
	return "", false
}

// TokenFuzzy matches event requests against stored event keys by shared
// tokens: a request token contained in a stored key, or a stored-key token
// contained in a request token. Stored keys are scanned in sorted order and
// cell keys are never considered.
type TokenFuzzy struct{}

func (TokenFuzzy) Name() string { return "token_fuzzy" }

func (TokenFuzzy) Find(q Query, src Source) (string, bool) {
	if q.Request == nil || q.Request.Kind() != keyspace.KindEvent {
		return "", false
	}
	tokens := textutil.Tokenize(q.Raw)
	if len(tokens) == 0 {
		return "", false
	}
	for _, key := range eventKeys(src) {
		folded := textutil.Fold(key)
		for _, token := range tokens {
			if strings.Contains(folded, token) {
				return key, true
			}
		}
		for _, stored := range textutil.Tokenize(key) {
			for _, token := range tokens {
				if strings.Contains(token, stored) {
					return key, true
				}
			}
		}
	}
	return "", false
}

// KeywordFuzzy matches known events against stored event keys containing
// one of the event's keyword stems.
type KeywordFuzzy struct{}

func (KeywordFuzzy) Name() string { return "keyword_fuzzy" }

func (KeywordFuzzy) Find(q Query, src Source) (string, bool) {
	if q.Request == nil || q.Request.Kind() != keyspace.KindEvent {
		return "", false
	}
	keywords := keyspace.Keywords(q.Request.Key())
	if len(keywords) == 0 {
		return "", false
	}
	keys := eventKeys(src)
	for _, kw := range keywords {
		for _, key := range keys {
			if textutil.ContainsFold(key, kw) {
				return key, true
			}
		}
	}
	return "", false
}

func eventKeys(src Source) []string {
	all := src.Keys()
	out := make([]string, 0, len(all))
	for _, key := range all {
		if !keyspace.IsCellKey(key) {
			out = append(out, key)
		}
	}
	return out
}

// DefaultStrategies returns exact and alias lookup followed by the enabled
// fuzzy fallbacks.
func DefaultStrategies(tokenFuzzy, keywordFuzzy bool) []Strategy {
	out := []Strategy{Exact{}, Alias{}}
	if tokenFuzzy {
		out = append(out, TokenFuzzy{})
	}
	if keywordFuzzy {
		out = append(out, KeywordFuzzy{})
	}
	return out
}
