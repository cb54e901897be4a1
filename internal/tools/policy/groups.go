package policy

import "github.com/haasonsaas/nexus/pkg/models"

// ToolCapabilityRegistry is the fixed mapping from canonical tool name to
// the Capability it exercises, consulted by the Policy Gate's FilterTools
// (spec.md §4.5). A tool with no entry is unknown and hidden by default.
type ToolCapabilityRegistry struct {
	byName map[string]models.Capability
}

// NewToolCapabilityRegistry builds the registry from the default tool
// table, mirroring the teacher's DefaultGroups-plus-Resolver split: a
// package-level default plus a mutable instance callers can extend with
// newly registered tools at runtime.
func NewToolCapabilityRegistry() *ToolCapabilityRegistry {
	r := &ToolCapabilityRegistry{byName: make(map[string]models.Capability)}
	for name, group := range ToolGroups {
		r.byName[name] = capabilityForGroup(group)
	}
	// browser_navigate/browser_click share the Web permission group with
	// web_search but are a distinct capability the Policy Gate exposes
	// conditionally (lookup_search follow-ups, browse_once,
	// one_shot_discovery) rather than unconditionally like WebSearch.
	r.byName["browser_navigate"] = models.CapabilityBrowserControl
	r.byName["browser_click"] = models.CapabilityBrowserControl
	return r
}

func capabilityForGroup(g Group) models.Capability {
	switch g {
	case GroupScreen:
		return models.CapabilityScreenObserve
	case GroupFiles:
		return models.CapabilityFileAccess
	case GroupSystem:
		return models.CapabilitySystemExecute
	case GroupWeb:
		return models.CapabilityWebSearch
	case GroupMemoryRead:
		return models.CapabilityMemoryRead
	case GroupMemoryWrite:
		return models.CapabilityMemoryWrite
	}
	return models.CapabilityMeta
}

// Register adds or overrides the capability for a canonical tool name,
// used when a host process wires in extra tools (e.g. plugin-provided)
// that aren't part of the built-in table.
func (r *ToolCapabilityRegistry) Register(canonicalName string, cap models.Capability) {
	r.byName[canonicalName] = cap
}

// CapabilityFor returns the capability a canonical tool name maps to, and
// whether it is known at all. Unknown tools are hidden by the Policy Gate
// regardless of the policy's allowed set.
func (r *ToolCapabilityRegistry) CapabilityFor(canonicalName string) (models.Capability, bool) {
	cap, ok := r.byName[canonicalName]
	return cap, ok
}

