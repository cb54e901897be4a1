// Package search implements the Search Orchestrator sub-pipeline: mode
// classifier, follow-up branch, entity resolver, query builder (with
// fallback), web_search invocation and source parsing, story clustering,
// freshness contract, and summarization. Grounded on the teacher's
// websearch package (internal/tools/websearch/search.go) for the backend
// call shape, generalized to the spec's mode/session/clustering pipeline.
package search

import (
	"context"

	"github.com/haasonsaas/nexus/pkg/models"
)

// ToolCaller is the Audited Tool Client seam the orchestrator needs for
// web_search and browser_navigate.
type ToolCaller interface {
	Call(ctx context.Context, name string, argsJSON []byte, actor string) string
}

// LLMCaller performs one structured-prompt LLM call and returns raw text
// (for the summary stage) or raw JSON (for entity resolution and query
// building).
type LLMCaller interface {
	Call(ctx context.Context, systemPrompt, userMessage string) (string, error)
}

// EntityType is the entity resolver's closed type vocabulary.
type EntityType string

const (
	EntityPerson EntityType = "Person"
	EntityOrg    EntityType = "Org"
	EntityTopic  EntityType = "Topic"
	EntityNone   EntityType = "none"
)

// Entity is the entity resolver's output.
type Entity struct {
	Name string     `json:"name"`
	Type EntityType `json:"type"`
	Hint string     `json:"hint"`
}

// Recency is the query builder's recency classification.
type Recency string

const (
	RecencyDay   Recency = "day"
	RecencyWeek  Recency = "week"
	RecencyMonth Recency = "month"
	RecencyAny   Recency = "any"
)

// BuiltQuery is the query builder's (or fallback builder's) output.
type BuiltQuery struct {
	Query   string  `json:"query"`
	Recency Recency `json:"recency"`
}

// FollowUpKind distinguishes the two follow-up branches.
type FollowUpKind string

const (
	FollowUpMoreSources FollowUpKind = "more_sources"
	FollowUpDeepDive    FollowUpKind = "deep_dive"
)

// Outcome is the orchestrator's result for one search-intent turn.
type Outcome struct {
	Text                   string
	Sources                []models.SourceItem
	SuppressSourceCardsUI  bool
	SuppressToolActivityUI bool
	Session                models.SearchSession
}
