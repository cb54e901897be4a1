// Package policygate implements the Policy Gate: a pure function from a
// RouterOutput and the available tool set to a Policy, keyed by the fixed
// intent table in spec.md §4.5. Grounded on internal/tools/policy's
// capability registry, which this package consults rather than duplicates.
package policygate

import (
	"github.com/haasonsaas/nexus/internal/tools/policy"
	"github.com/haasonsaas/nexus/pkg/models"
)

// Gate is the Policy Gate.
type Gate struct {
	registry *policy.ToolCapabilityRegistry
}

// New builds a Gate over a capability registry.
func New(registry *policy.ToolCapabilityRegistry) *Gate {
	return &Gate{registry: registry}
}

// Decide is the authoritative intent table from spec.md §4.5. Unknown
// intents fall back to general_tool.
func (g *Gate) Decide(route models.RouterOutput) models.Policy {
	intent := route.Intent
	if _, known := tableEntries[intent]; !known {
		intent = models.IntentGeneralTool
	}
	entry := tableEntries[intent]

	allowed := make(map[models.Capability]bool, len(entry.capabilities)+1)
	for _, c := range entry.capabilities {
		allowed[c] = true
	}
	if entry.conditionalBrowserControl && containsFollowUpSignal(route) {
		allowed[models.CapabilityBrowserControl] = true
	}
	if entry.conditionalWebSearch && route.NeedsWeb {
		allowed[models.CapabilityWebSearch] = true
	}

	return models.Policy{
		UseToolLoop:         entry.useToolLoop,
		AllowedCapabilities: allowed,
	}
}

// containsFollowUpSignal reports whether this router output looks like a
// search follow-up that would warrant conditionally exposing browser
// control alongside web search (spec.md §4.5's "follow-ups" note).
func containsFollowUpSignal(route models.RouterOutput) bool {
	return route.Layer == models.LayerHeuristic && route.Intent == models.IntentLookupSearch
}

type tableEntry struct {
	useToolLoop               bool
	capabilities              []models.Capability
	conditionalBrowserControl bool
	conditionalWebSearch      bool
}

var tableEntries = map[models.Intent]tableEntry{
	models.IntentChatOnly:             {useToolLoop: false},
	models.IntentUtilityDeterministic: {useToolLoop: false},
	models.IntentMemoryRead:           {useToolLoop: false},
	models.IntentLookupSearch:         {useToolLoop: true, capabilities: []models.Capability{models.CapabilityWebSearch}, conditionalBrowserControl: true},
	models.IntentLookupFact:           {useToolLoop: true, capabilities: []models.Capability{models.CapabilityWebSearch}, conditionalBrowserControl: true},
	models.IntentLookupNews:           {useToolLoop: true, capabilities: []models.Capability{models.CapabilityWebSearch}, conditionalBrowserControl: true},
	models.IntentBrowseOnce:           {useToolLoop: true, capabilities: []models.Capability{models.CapabilityBrowserControl}},
	models.IntentOneShotDiscovery:     {useToolLoop: true, capabilities: []models.Capability{models.CapabilityWebSearch, models.CapabilityBrowserControl}},
	models.IntentScreenObserve:        {useToolLoop: true, capabilities: []models.Capability{models.CapabilityScreenObserve}},
	models.IntentFileTask:             {useToolLoop: true, capabilities: []models.Capability{models.CapabilityFileAccess}},
	models.IntentSystemTask:           {useToolLoop: true, capabilities: []models.Capability{models.CapabilitySystemExecute}},
	models.IntentMemoryWrite:          {useToolLoop: true, capabilities: []models.Capability{models.CapabilityMemoryWrite}},
	models.IntentGeneralTool:          {useToolLoop: true, capabilities: []models.Capability{models.CapabilityMeta}, conditionalWebSearch: true},
}

// FilterTools keeps exactly the tools whose canonical name maps, via the
// capability registry, to an allowed capability. Unknown (unmapped) tools
// are hidden by default, and forbidden capabilities are never exposed even
// if the policy's allowed set would otherwise include them (policy
// construction above never allows and forbids the same capability, but a
// caller-supplied Policy might, so the check stays defensive here).
func (g *Gate) FilterTools(available []models.ToolDefinition, p models.Policy) []models.ToolDefinition {
	if !p.UseToolLoop {
		return nil
	}
	filtered := make([]models.ToolDefinition, 0, len(available))
	for _, tool := range available {
		canonical := policy.NormalizeTool(tool.Name)
		cap, known := g.registry.CapabilityFor(canonical)
		if !known {
			continue
		}
		if p.ForbiddenCapabilities != nil && p.ForbiddenCapabilities[cap] {
			continue
		}
		if !p.Allows(cap) {
			continue
		}
		filtered = append(filtered, tool)
	}
	return filtered
}
