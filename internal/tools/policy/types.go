// Package policy resolves tool-group permission settings and maps tool
// names to the capability closed enum the Router and Policy Gate share.
// Adapted from the teacher's profile/group resolver (same ExpandGroups /
// NormalizeTool / Decision shape) but rebuilt around the six permission
// groups and developer override spec.md §6 actually specifies, rather than
// the teacher's MCP/edge trust-level profiles.
package policy

import (
	"strings"

	"github.com/haasonsaas/nexus/pkg/models"
)

// Group is one of the six configurable tool-group permissions from
// spec.md §6. Distinct from models.Capability: several capabilities can
// share one configurable group (WebSearch and BrowserControl both live
// under Web).
type Group string

const (
	GroupScreen      Group = "screen"
	GroupFiles       Group = "files"
	GroupSystem      Group = "system"
	GroupWeb         Group = "web"
	GroupMemoryRead  Group = "memory_read"
	GroupMemoryWrite Group = "memory_write"
)

// Setting is the three-state permission value a tool group can hold.
type Setting string

const (
	SettingOff    Setting = "off"
	SettingAsk    Setting = "ask"
	SettingAlways Setting = "always"
)

// DeveloperOverride overrides only the "dangerous" groups
// (Screen/Files/System/Web), never the memory groups.
type DeveloperOverride string

const (
	OverrideNone   DeveloperOverride = "none"
	OverrideOff    DeveloperOverride = "off"
	OverrideAlways DeveloperOverride = "always"
)

var dangerousGroups = map[Group]bool{
	GroupScreen: true,
	GroupFiles:  true,
	GroupSystem: true,
	GroupWeb:    true,
}

// Config is the permission configuration loaded from the host process's
// configuration (spec.md §6). Unknown tool groups default to "ask" in
// debug and "off" in release; that default is applied by the loader, not
// here, since Config only holds already-resolved settings.
type Config struct {
	Screen            Setting
	Files             Setting
	System            Setting
	Web               Setting
	MemoryRead        Setting
	MemoryWrite       Setting
	DeveloperOverride DeveloperOverride
	MemoryEnabled     bool
}

// EffectiveSetting resolves the configured setting for a group, applying
// developer override and the memory master-off switch. This is the single
// place spec.md's "Memory master-off" invariant is enforced.
func (c Config) EffectiveSetting(g Group) Setting {
	if g == GroupMemoryRead || g == GroupMemoryWrite {
		if !c.MemoryEnabled {
			return SettingOff
		}
		if g == GroupMemoryRead {
			return c.MemoryRead
		}
		return c.MemoryWrite
	}

	if dangerousGroups[g] {
		switch c.DeveloperOverride {
		case OverrideAlways:
			return SettingAlways
		case OverrideOff:
			return SettingOff
		}
	}

	switch g {
	case GroupScreen:
		return c.Screen
	case GroupFiles:
		return c.Files
	case GroupSystem:
		return c.System
	case GroupWeb:
		return c.Web
	}
	return SettingAsk
}

// ToolGroups maps canonical tool names to the permission group that gates
// them. Mirrors the teacher's DefaultGroups table structurally (a plain
// map literal consulted by ExpandGroups-style lookups) but keyed by
// capability semantics instead of MCP/edge namespaces.
var ToolGroups = map[string]Group{
	"screen_capture":     GroupScreen,
	"get_active_window":  GroupScreen,
	"read_file":          GroupFiles,
	"write_file":         GroupFiles,
	"list_directory":     GroupFiles,
	"exec":               GroupSystem,
	"run_command":        GroupSystem,
	"web_search":         GroupWeb,
	"browser_navigate":   GroupWeb,
	"browser_click":      GroupWeb,
	"weather_geocode":    GroupWeb,
	"resolve_timezone":   GroupWeb,
	"holidays_is_today":  GroupWeb,
	"feed_fetch":         GroupWeb,
	"status_check_url":   GroupWeb,
	"memory_retrieve":    GroupMemoryRead,
	"memory_list_facts":  GroupMemoryRead,
	"memory_store_facts": GroupMemoryWrite,
}

// ToolAliases maps alternative spellings to the canonical tool name, the
// same purpose as the teacher's ToolAliases but scoped to this domain.
var ToolAliases = map[string]string{
	"browsernavigate": "browser_navigate",
	"websearch":       "web_search",
	"screencapture":   "screen_capture",
	"readfile":        "read_file",
	"writefile":       "write_file",
}

// CapabilityGroups maps each Capability to the permission Group that
// gates it. Several capabilities share a group (Web covers both
// WebSearch and BrowserControl).
var CapabilityGroups = map[models.Capability]Group{
	models.CapabilityWebSearch:      GroupWeb,
	models.CapabilityBrowserControl: GroupWeb,
	models.CapabilityScreenObserve:  GroupScreen,
	models.CapabilityFileAccess:     GroupFiles,
	models.CapabilitySystemExecute:  GroupSystem,
	models.CapabilityMemoryRead:     GroupMemoryRead,
	models.CapabilityMemoryWrite:    GroupMemoryWrite,
}

// NormalizeTool lowercases, trims, snake_cases a PascalCase input, and
// resolves known aliases — the Audited Tool Client's canonicalization
// step (spec.md §4.1.1).
func NormalizeTool(name string) string {
	trimmed := strings.TrimSpace(name)
	snake := toSnakeCase(trimmed)
	if alias, ok := ToolAliases[snake]; ok {
		return alias
	}
	return snake
}

func toSnakeCase(s string) string {
	if s == "" {
		return s
	}
	var b strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r - 'A' + 'a')
			continue
		}
		b.WriteRune(r)
	}
	return strings.ToLower(b.String())
}
