package orchestrator

import (
	"context"
	"regexp"
	"strings"

	"github.com/haasonsaas/nexus/internal/audit"
	"github.com/haasonsaas/nexus/pkg/models"
)

// promptLeakSignal catches the self-referential instruction-leakage
// phrasing spec.md §4.9 names, scoped to the SECOND-OR-LATER paragraph
// only (the first paragraph is the actual answer and is never dropped).
var promptLeakSignal = regexp.MustCompile(`(?i)i said \d+ and now they're asking|no fluff|my real name is`)

var roleConfusionSignal = regexp.MustCompile(`(?i)^(?:can you|could you|please) (?:calculate|compute|work out|figure out|tell me what) .* (?:equals?|is)\??$|^what(?:'s| is) \d+[\s+\-*/x×÷]+\d+\??$`)

var offtopicCalcSignal = regexp.MustCompile(`^-?\d+(?:\.\d+)?\s*(?:[+\-*/x×÷]\s*-?\d+(?:\.\d+)?\s*)+=\s*-?\d+(?:\.\d+)?$`)

var abusiveUserSignal = regexp.MustCompile(`(?i)\b(f[*u]ck you|you('re| are) (useless|garbage|stupid|worthless)|shut up you)\b`)

var selfHarmMirrorSignal = regexp.MustCompile(`(?i)\b(i want to (die|hurt myself|kill myself)|you should kill yourself|i hope you die)\b`)

var unsupportedCapabilitySignal = regexp.MustCompile(`(?i)\bi('ll| will) (email|text|call|fax) you\b`)

var internalMarkerSignal = regexp.MustCompile(`\[/?(?:TOOL_OUTPUT|MEMORY CONTEXT|SYSTEM|INTERNAL)[^\]]*\]`)

const roleConfusionRedirect = "I can help with that myself — go ahead and ask, and I'll work it out."
const abusiveBoundaryReply = "I want to keep helping, but I need us to keep this civil. Let me know what you actually need."
const safetyOverrideReply = "I'm not going to continue in that direction. If you're in crisis, please reach out to a crisis line or someone you trust."

// enforceOutputContract folds the output-contract rewrite chain over text
// in the order spec.md §4.9 step 7 fixes, emitting one audit event per
// triggered rewrite.
func (o *Orchestrator) enforceOutputContract(ctx context.Context, req Request, text string) string {
	text = trimPromptLeak(text)

	if roleConfusionSignal.MatchString(strings.TrimSpace(text)) {
		text = roleConfusionRedirect
		o.sink.Record(ctx, models.AuditEvent{Actor: req.SessionKey, Action: audit.ActionRoleConfusionRewrite, Result: models.AuditOK})
	}

	if offtopicCalcSignal.MatchString(strings.TrimSpace(text)) && !looksArithmeticRelated(req.UserMessage) {
		text = roleConfusionRedirect
		o.sink.Record(ctx, models.AuditEvent{Actor: req.SessionKey, Action: audit.ActionOfftopicCalcRewrite, Result: models.AuditOK})
	}

	if abusiveUserSignal.MatchString(req.UserMessage) {
		text = abusiveBoundaryReply
		o.sink.Record(ctx, models.AuditEvent{Actor: req.SessionKey, Action: audit.ActionAbusiveUserBoundary, Result: models.AuditOK})
	}

	if selfHarmMirrorSignal.MatchString(text) {
		text = safetyOverrideReply
		o.sink.Record(ctx, models.AuditEvent{Actor: req.SessionKey, Action: audit.ActionSafetyOverride, Result: models.AuditOK})
	}

	text = unsupportedCapabilitySignal.ReplaceAllString(text, "")
	text = internalMarkerSignal.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}

// trimPromptLeak drops any second-or-later paragraph matching
// promptLeakSignal; the first paragraph is never dropped, since it is
// assumed to carry the actual answer.
func trimPromptLeak(text string) string {
	paragraphs := strings.Split(text, "\n\n")
	if len(paragraphs) <= 1 {
		return text
	}
	kept := paragraphs[:1]
	for _, p := range paragraphs[1:] {
		if promptLeakSignal.MatchString(p) {
			continue
		}
		kept = append(kept, p)
	}
	return strings.Join(kept, "\n\n")
}

var arithmeticWordSignal = regexp.MustCompile(`(?i)\b(calculate|compute|math|sum|total|multiply|divide|subtract|add up)\b|\d+\s*[+\-*/x×÷]\s*\d+`)

func looksArithmeticRelated(userMessage string) bool {
	return arithmeticWordSignal.MatchString(userMessage)
}
