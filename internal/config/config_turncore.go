package config

import (
	"time"

	"github.com/haasonsaas/nexus/internal/tools/policy"
)

// TurnCoreConfig holds the settings the turn-processing pipeline needs
// that have no other home in Config: the six tool-group permission
// settings the Policy Gate consults (spec.md §6), the Guardrails
// Coordinator's mode, memory's master-off switch, and the Memory Context
// Provider's prefetch timeouts.
type TurnCoreConfig struct {
	// ToolGroups maps each of the six permission groups ("screen", "files",
	// "system", "web", "memory_read", "memory_write") to "off", "ask", or
	// "always". A group absent from the map defaults to "ask" in debug
	// builds and "off" otherwise, same as the teacher's profile resolver.
	ToolGroups map[string]string `yaml:"tool_groups"`

	// DeveloperOverride overrides only the dangerous groups
	// (screen/files/system/web): "none", "off", or "always".
	DeveloperOverride string `yaml:"developer_override"`

	// MemoryEnabled is the memory master-off switch; when false, both
	// memory_read and memory_write resolve to "off" regardless of
	// ToolGroups.
	MemoryEnabled bool `yaml:"memory_enabled"`

	// GuardrailsMode selects the Guardrails Coordinator's behavior: "off",
	// "auto" (runs only on a detected goal-conflict "trick" prompt), or
	// "always".
	GuardrailsMode string `yaml:"guardrails_mode"`

	// ColdGreetingTimeout and NormalTimeout bound the Memory Context
	// Provider's prefetch call (spec.md §4.3).
	ColdGreetingTimeout time.Duration `yaml:"cold_greeting_timeout"`
	NormalTimeout       time.Duration `yaml:"normal_timeout"`
}

// ToPolicyConfig maps the YAML-loaded tool-group settings into
// internal/tools/policy's Config, the shape internal/policygate and
// internal/toolclient actually consume. Unknown or missing group entries
// fall back to policy.SettingOff, matching the Config doc's "unknown tool
// groups default to off in release" contract; the debug-mode "ask"
// default is the loader's job at a higher level (config.Load), not this
// method's.
func (t TurnCoreConfig) ToPolicyConfig() policy.Config {
	get := func(group string) policy.Setting {
		switch t.ToolGroups[group] {
		case "always":
			return policy.SettingAlways
		case "ask":
			return policy.SettingAsk
		default:
			return policy.SettingOff
		}
	}

	override := policy.OverrideNone
	switch t.DeveloperOverride {
	case "off":
		override = policy.OverrideOff
	case "always":
		override = policy.OverrideAlways
	}

	return policy.Config{
		Screen:            get("screen"),
		Files:             get("files"),
		System:            get("system"),
		Web:               get("web"),
		MemoryRead:        get("memory_read"),
		MemoryWrite:       get("memory_write"),
		DeveloperOverride: override,
		MemoryEnabled:     t.MemoryEnabled,
	}
}
