package policy

import (
	"fmt"

	"github.com/google/uuid"
)

// Decision is the permission gate's outcome for one tool call, the
// Grant/Deny/Prompt union from spec.md §4.1 step 3. Only one of the three
// Is* predicates is ever true.
type Decision struct {
	kind     decisionKind
	tokenID  string
	reason   string
	question string
}

type decisionKind int

const (
	decisionGrant decisionKind = iota
	decisionDeny
	decisionPrompt
)

// Grant builds a Decision that allows the call, optionally carrying a
// permission token id that flows into the audit event.
func Grant(tokenID string) Decision { return Decision{kind: decisionGrant, tokenID: tokenID} }

// Deny builds a Decision that blocks the call with a user-visible reason.
func Deny(reason string) Decision { return Decision{kind: decisionDeny, reason: reason} }

// Prompt builds a Decision requesting interactive confirmation. The
// Audited Tool Client has no UI of its own; callers that cannot prompt
// synchronously should treat Prompt like Deny.
func Prompt(question string) Decision { return Decision{kind: decisionPrompt, question: question} }

func (d Decision) IsGrant() bool  { return d.kind == decisionGrant }
func (d Decision) IsDeny() bool   { return d.kind == decisionDeny }
func (d Decision) IsPrompt() bool { return d.kind == decisionPrompt }
func (d Decision) TokenID() string { return d.tokenID }
func (d Decision) Reason() string {
	switch d.kind {
	case decisionDeny:
		return d.reason
	case decisionPrompt:
		return d.question
	default:
		return ""
	}
}

// PermissionGate evaluates the tool-group configuration for a canonical
// tool name and returns a Grant/Deny/Prompt decision. Unknown tool groups
// default to "ask" in debug and "off" in release, matching spec.md §6.
type PermissionGate struct {
	config  Config
	debug   bool
	newUUID func() string
}

// NewPermissionGate builds a gate over the given group configuration.
func NewPermissionGate(config Config, debug bool) *PermissionGate {
	return &PermissionGate{config: config, debug: debug, newUUID: uuid.NewString}
}

// Evaluate decides whether a canonical tool name may execute.
func (g *PermissionGate) Evaluate(canonicalName string) Decision {
	group, known := ToolGroups[canonicalName]
	if !known {
		if g.debug {
			return g.fromSetting(SettingAsk, canonicalName)
		}
		return Deny(fmt.Sprintf("unknown tool group for %q", canonicalName))
	}

	setting := g.config.EffectiveSetting(group)
	return g.fromSetting(setting, canonicalName)
}

func (g *PermissionGate) fromSetting(setting Setting, canonicalName string) Decision {
	switch setting {
	case SettingAlways:
		return Grant(g.newUUID())
	case SettingAsk:
		return Prompt(fmt.Sprintf("allow %q to run?", canonicalName))
	default:
		return Deny(fmt.Sprintf("tool group for %q is disabled", canonicalName))
	}
}
