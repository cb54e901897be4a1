// Package router implements the Router: four deterministic/LLM layers
// applied in order, the first to produce an answer wins. Grounded on the
// teacher's routing package (internal/agent/routing/heuristic.go's compact
// regex-table classifier) generalized from tag output to a full
// RouterOutput.
package router

import (
	"context"
	"regexp"
	"strings"

	"github.com/haasonsaas/nexus/internal/utility"
	"github.com/haasonsaas/nexus/pkg/models"
)

// Classifier is the single LLM call the fourth layer makes when every
// deterministic layer misses.
type Classifier interface {
	Classify(ctx context.Context, userMessage string) (models.Intent, error)
}

// Router is the turn Router.
type Router struct {
	utilityEngine *utility.Engine
	classifier    Classifier
}

// New builds a Router over the shared Deterministic Utility Engine
// instance (so its follow-up memory observes the same matches the
// Orchestrator dispatches) and an optional LLM classifier.
func New(utilityEngine *utility.Engine, classifier Classifier) *Router {
	return &Router{utilityEngine: utilityEngine, classifier: classifier}
}

var overridePrefixes = map[string]models.Intent{
	"/search": models.IntentLookupSearch,
	"/chat":   models.IntentChatOnly,
	"search:": models.IntentLookupSearch,
	"chat:":   models.IntentChatOnly,
}

var temporalMarker = regexp.MustCompile(`(?i)\b(today|this week|latest|breaking)\b`)

var heuristicTables = []struct {
	intent models.Intent
	re     *regexp.Regexp
}{
	{models.IntentLookupNews, regexp.MustCompile(`(?i)\b(news|headlines|happening|breaking)\b`)},
	{models.IntentScreenObserve, regexp.MustCompile(`(?i)\b(my screen|what('?s| is) on (my|the) screen|active window)\b`)},
	{models.IntentFileTask, regexp.MustCompile(`(?i)\b(read|write|open|save) (the |a |this )?file\b`)},
	{models.IntentSystemTask, regexp.MustCompile(`(?i)\b(run|execute) (this |the |a )?(command|script)\b`)},
	{models.IntentMemoryWrite, regexp.MustCompile(`(?i)\b(remember|don't forget|note) that\b`)},
	{models.IntentMemoryRead, regexp.MustCompile(`(?i)\bwhat do you know about me\b`)},
	{models.IntentLookupFact, regexp.MustCompile(`(?i)\b(who is|what is|when was|where is)\b`)},
	{models.IntentLookupSearch, regexp.MustCompile(`(?i)\b(search for|look up|find out)\b`)},
}

var capabilitiesByIntent = map[models.Intent][]models.Capability{
	models.IntentChatOnly:            nil,
	models.IntentUtilityDeterministic: {models.CapabilityDeterministicUtility},
	models.IntentLookupFact:          {models.CapabilityWebSearch},
	models.IntentLookupNews:          {models.CapabilityWebSearch},
	models.IntentLookupSearch:        {models.CapabilityWebSearch, models.CapabilityBrowserControl},
	models.IntentBrowseOnce:          {models.CapabilityBrowserControl},
	models.IntentOneShotDiscovery:    {models.CapabilityWebSearch, models.CapabilityBrowserControl},
	models.IntentScreenObserve:       {models.CapabilityScreenObserve},
	models.IntentFileTask:            {models.CapabilityFileAccess},
	models.IntentSystemTask:          {models.CapabilitySystemExecute},
	models.IntentMemoryRead:          {models.CapabilityMemoryRead},
	models.IntentMemoryWrite:         {models.CapabilityMemoryWrite},
	models.IntentGeneralTool:         {models.CapabilityMeta},
}

// Route runs the four layers in order for one turn. sessionKey scopes the
// Deterministic Utility Engine's follow-up memory to the calling session.
func (r *Router) Route(ctx context.Context, sessionKey, userMessage string) models.RouterOutput {
	trimmed := strings.TrimSpace(userMessage)
	lower := strings.ToLower(trimmed)

	for prefix, intent := range overridePrefixes {
		if strings.HasPrefix(lower, prefix) {
			return r.build(intent, 1.0, models.LayerExplicitOverride, trimmed)
		}
	}

	if r.utilityEngine != nil {
		if _, ok := r.utilityEngine.Match(sessionKey, trimmed); ok {
			out := r.build(models.IntentUtilityDeterministic, 1.0, models.LayerDeterministic, trimmed)
			out.NeedsWeb = false
			return out
		}
	}

	for _, entry := range heuristicTables {
		if entry.re.MatchString(trimmed) {
			return r.build(entry.intent, 0.8, models.LayerHeuristic, trimmed)
		}
	}

	if r.classifier != nil {
		if intent, err := r.classifier.Classify(ctx, trimmed); err == nil {
			if _, known := capabilitiesByIntent[intent]; known {
				return r.build(intent, 1.0, models.LayerLLM, trimmed)
			}
		}
	}

	return r.build(models.IntentChatOnly, 1.0, models.LayerLLM, trimmed)
}

func (r *Router) build(intent models.Intent, confidence float64, layer models.RouterLayer, message string) models.RouterOutput {
	caps := make(map[models.Capability]bool)
	for _, c := range capabilitiesByIntent[intent] {
		caps[c] = true
	}

	needsSearch := intent == models.IntentLookupFact || intent == models.IntentLookupNews ||
		intent == models.IntentLookupSearch || intent == models.IntentOneShotDiscovery
	needsWeb := needsSearch || temporalMarker.MatchString(message)

	return models.RouterOutput{
		Intent:               intent,
		Confidence:           confidence,
		NeedsWeb:             needsWeb,
		NeedsSearch:          needsSearch,
		RequiredCapabilities: caps,
		Layer:                layer,
	}
}
