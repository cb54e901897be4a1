package config

import (
	"testing"

	"github.com/haasonsaas/nexus/internal/tools/policy"
)

func TestToPolicyConfig_MapsGroupsAndDefaults(t *testing.T) {
	t.Helper()
	cfg := TurnCoreConfig{
		ToolGroups: map[string]string{
			"screen": "always",
			"web":    "ask",
		},
		MemoryEnabled: true,
	}

	got := cfg.ToPolicyConfig()
	if got.Screen != policy.SettingAlways {
		t.Fatalf("expected screen=always, got %v", got.Screen)
	}
	if got.Web != policy.SettingAsk {
		t.Fatalf("expected web=ask, got %v", got.Web)
	}
	if got.Files != policy.SettingOff {
		t.Fatalf("expected unset group to default off, got %v", got.Files)
	}
	if !got.MemoryEnabled {
		t.Fatalf("expected memory enabled to carry through")
	}
}

func TestToPolicyConfig_DeveloperOverride(t *testing.T) {
	cfg := TurnCoreConfig{DeveloperOverride: "always"}
	if got := cfg.ToPolicyConfig().DeveloperOverride; got != policy.OverrideAlways {
		t.Fatalf("got %v", got)
	}
}
