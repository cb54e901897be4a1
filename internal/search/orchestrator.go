package search

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/haasonsaas/nexus/pkg/models"
)

// freshnessWindow is the 12-hour bound for market-quote queries (spec.md
// §4.7's freshness contract).
const freshnessWindow = 12 * time.Hour

// shortCircuits is the named canned-answer list spec.md §4.7 calls out by
// example; matched case-insensitively against the trimmed message.
var shortCircuits = map[string]string{
	"what is the airspeed velocity of an unladen swallow": "African or European swallow?",
}

var marketQuoteSignal = []string{"stock price", "share price", "quote for", "exchange rate"}

// Orchestrator is the Search Orchestrator.
type Orchestrator struct {
	tools      ToolCaller
	llm        LLMCaller
	now        func() time.Time
	searchRate *rate.Limiter
}

// New builds an Orchestrator. nowFn defaults to time.Now; tests can
// inject a fixed clock. web_search calls are throttled to 2/second per
// Orchestrator instance (one per session) with a burst of 4 to absorb a
// fact-find immediately followed by a more-sources follow-up.
func New(tools ToolCaller, llm LLMCaller, nowFn func() time.Time) *Orchestrator {
	if nowFn == nil {
		nowFn = time.Now
	}
	return &Orchestrator{tools: tools, llm: llm, now: nowFn, searchRate: rate.NewLimiter(rate.Limit(2), 4)}
}

// Run drives the full search sub-pipeline for one lookup-intent turn.
func (o *Orchestrator) Run(ctx context.Context, userMessage string, session *models.SearchSession) Outcome {
	if canned, ok := matchShortCircuit(userMessage); ok {
		return Outcome{Text: canned, SuppressSourceCardsUI: true, SuppressToolActivityUI: true}
	}

	now := o.now()
	mode := ClassifyMode(userMessage, session, now)

	if mode == models.SearchModeFollowUp {
		return o.runFollowUp(ctx, userMessage, session, now)
	}

	return o.runSearch(ctx, userMessage, mode, now)
}

func (o *Orchestrator) runFollowUp(ctx context.Context, userMessage string, session *models.SearchSession, now time.Time) Outcome {
	kind := ClassifyFollowUp(userMessage)
	if kind == FollowUpDeepDive && session.PrimarySourceID != "" {
		primaryURL := findSourceURL(session.LastResults, session.PrimarySourceID)
		args, _ := json.Marshal(map[string]string{"url": primaryURL})
		navResult := o.tools.Call(ctx, "browser_navigate", args, "search_orchestrator")
		summary := o.summarize(ctx, userMessage, navResult)
		return Outcome{
			Text:                   summary,
			SuppressSourceCardsUI:  true,
			SuppressToolActivityUI: true,
			Session:                *session,
		}
	}
	// MoreSources: re-run fact-find with the same entity context.
	return o.runSearch(ctx, userMessage, models.SearchModeWebFactFind, now)
}

func (o *Orchestrator) runSearch(ctx context.Context, userMessage string, mode models.SearchMode, now time.Time) Outcome {
	entity := ResolveEntity(ctx, o.llm, userMessage)
	built := BuildQuery(ctx, o.llm, userMessage, entity, mode)

	maxResults := 8
	args, _ := json.Marshal(map[string]any{
		"query":       built.Query,
		"recency":     string(built.Recency),
		"max_results": maxResults,
	})
	if err := o.searchRate.Wait(ctx); err != nil {
		return Outcome{Text: "I couldn't find anything conclusive just now."}
	}
	raw := o.tools.Call(ctx, "web_search", args, "search_orchestrator")
	body, sources := ParseSources(raw)

	if isMarketQuote(userMessage) {
		if warning, stale := checkFreshness(sources, now); stale {
			return Outcome{
				Text:                   warning,
				Sources:                sources,
				SuppressSourceCardsUI:  true,
				SuppressToolActivityUI: true,
				Session:                buildSession(mode, built, sources, now),
			}
		}
	}

	var clusters [][]models.SourceItem
	if mode == models.SearchModeNewsAggregate {
		clusters = Cluster(sources)
	}

	summary := o.summarize(ctx, userMessage, body)

	outcome := Outcome{
		Text:    summary,
		Sources: representativeSources(clusters, sources),
		Session: buildSession(mode, built, sources, now),
	}
	switch mode {
	case models.SearchModeWebFactFind:
		outcome.SuppressSourceCardsUI = true
		outcome.SuppressToolActivityUI = true
	case models.SearchModeNewsAggregate:
		outcome.SuppressSourceCardsUI = false
		outcome.SuppressToolActivityUI = false
	}
	return outcome
}

func (o *Orchestrator) summarize(ctx context.Context, userMessage, snippets string) string {
	text, err := o.llm.Call(ctx, "Summarize the following search findings for the user's question, conditioned only on the provided snippets.", userMessage+"\n\n"+snippets)
	if err != nil {
		return "I couldn't find anything conclusive just now."
	}
	return text
}

func matchShortCircuit(userMessage string) (string, bool) {
	normalized := strings.ToLower(strings.TrimSpace(strings.TrimSuffix(userMessage, "?")))
	answer, ok := shortCircuits[normalized]
	return answer, ok
}

func isMarketQuote(userMessage string) bool {
	lower := strings.ToLower(userMessage)
	for _, signal := range marketQuoteSignal {
		if strings.Contains(lower, signal) {
			return true
		}
	}
	return false
}

func checkFreshness(sources []models.SourceItem, now time.Time) (string, bool) {
	if len(sources) == 0 || sources[0].PublishedAt == nil {
		return "", false
	}
	if now.Sub(*sources[0].PublishedAt) > freshnessWindow {
		return fmt.Sprintf("The most recent data I have is from %s, more than 12 hours old, so I cannot safely report a current market quote.", sources[0].PublishedAt.Format(time.RFC3339)), true
	}
	return "", false
}

func representativeSources(clusters [][]models.SourceItem, fallback []models.SourceItem) []models.SourceItem {
	if len(clusters) == 0 {
		return fallback
	}
	reps := make([]models.SourceItem, 0, len(clusters))
	for _, cluster := range clusters {
		reps = append(reps, cluster[0])
	}
	return reps
}

func buildSession(mode models.SearchMode, built BuiltQuery, sources []models.SourceItem, now time.Time) models.SearchSession {
	primary := ""
	if len(sources) > 0 {
		primary = sources[0].SourceID
	}
	return models.SearchSession{
		LastMode:        mode,
		LastQuery:       built.Query,
		LastRecency:     string(built.Recency),
		LastResults:     dedupeSources(sources),
		PrimarySourceID: primary,
		UpdatedAt:       now,
	}
}

func findSourceURL(sources []models.SourceItem, sourceID string) string {
	for _, s := range sources {
		if s.SourceID == sourceID {
			return s.URL
		}
	}
	return ""
}

func dedupeSources(sources []models.SourceItem) []models.SourceItem {
	seen := make(map[string]bool, len(sources))
	out := make([]models.SourceItem, 0, len(sources))
	for _, s := range sources {
		if seen[s.SourceID] {
			continue
		}
		seen[s.SourceID] = true
		out = append(out, s)
	}
	return out
}
