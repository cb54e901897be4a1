package search

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/haasonsaas/nexus/pkg/models"
)

var stopwordAllowlist = map[string]bool{
	"the": true, "a": true, "an": true, "of": true, "in": true, "on": true,
	"for": true, "and": true, "or": true, "to": true, "is": true, "are": true,
	"latest": true, "news": true, "today": true, "this": true, "week": true,
}

// BuildQuery is the query builder's single LLM call, validated against the
// user message/entity/stopword allowlist per spec.md §4.7. On any failure
// — LLM error, malformed JSON, or a token the allowlist can't justify — it
// falls through to FallbackQuery.
func BuildQuery(ctx context.Context, caller LLMCaller, userMessage string, entity Entity, mode models.SearchMode) BuiltQuery {
	raw, err := caller.Call(ctx, "Build a web search query and recency for this request. Respond as JSON: {\"query\": string, \"recency\": \"day\"|\"week\"|\"month\"|\"any\"}.", userMessage)
	if err == nil {
		var q BuiltQuery
		if json.Unmarshal([]byte(raw), &q) == nil && q.Query != "" && validQuery(q.Query, userMessage, entity) {
			if q.Recency == "" {
				q.Recency = detectRecency(userMessage)
			}
			return q
		}
	}
	return FallbackQuery(userMessage, entity, mode)
}

// validQuery requires every token of the built query to appear in the
// user message, the entity's canonical name, or the stopword allowlist.
func validQuery(query, userMessage string, entity Entity) bool {
	allowed := tokenSet(userMessage)
	for token := range tokenSet(entity.Name) {
		allowed[token] = true
	}
	for _, token := range tokenize(query) {
		if stopwordAllowlist[token] || allowed[token] {
			continue
		}
		return false
	}
	return true
}

var recencyDay = regexp.MustCompile(`(?i)\b(today|this morning)\b`)
var recencyWeek = regexp.MustCompile(`(?i)\b(this week|last week)\b`)
var recencyMonth = regexp.MustCompile(`(?i)\bpast month\b`)

func detectRecency(message string) Recency {
	switch {
	case recencyDay.MatchString(message):
		return RecencyDay
	case recencyWeek.MatchString(message):
		return RecencyWeek
	case recencyMonth.MatchString(message):
		return RecencyMonth
	default:
		return RecencyAny
	}
}

// FallbackQuery builds a query from fixed templates keyed by mode and
// entity type, used whenever the LLM query builder fails validation.
func FallbackQuery(userMessage string, entity Entity, mode models.SearchMode) BuiltQuery {
	recency := detectRecency(userMessage)
	query := strings.TrimSpace(userMessage)

	if entity.Type != EntityNone && entity.Name != "" {
		switch mode {
		case models.SearchModeNewsAggregate:
			query = entity.Name + " news"
		default:
			query = entity.Name
		}
	}
	return BuiltQuery{Query: query, Recency: recency}
}

var tokenPattern = regexp.MustCompile(`[A-Za-z0-9']+`)

func tokenize(s string) []string {
	matches := tokenPattern.FindAllString(strings.ToLower(s), -1)
	return matches
}

func tokenSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, t := range tokenize(s) {
		set[t] = true
	}
	return set
}
