package orchestrator

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/haasonsaas/nexus/internal/audit"
	"github.com/haasonsaas/nexus/internal/guardrails"
	"github.com/haasonsaas/nexus/internal/llmclient"
	"github.com/haasonsaas/nexus/internal/memoryctx"
	"github.com/haasonsaas/nexus/internal/policygate"
	"github.com/haasonsaas/nexus/internal/router"
	"github.com/haasonsaas/nexus/internal/search"
	"github.com/haasonsaas/nexus/internal/toolclient"
	"github.com/haasonsaas/nexus/internal/tools/policy"
	"github.com/haasonsaas/nexus/internal/turnstate"
	"github.com/haasonsaas/nexus/internal/utility"
	"github.com/haasonsaas/nexus/pkg/models"
)

type fakeServer struct {
	results map[string]string
}

func (f *fakeServer) Call(ctx context.Context, canonicalName string, argsJSON json.RawMessage) (string, error) {
	if out, ok := f.results[canonicalName]; ok {
		return out, nil
	}
	return "", nil
}

func (f *fakeServer) List() []models.ToolDefinition {
	return []models.ToolDefinition{{Name: "web_search"}, {Name: "memory_list_facts"}}
}

type fakeBackend struct {
	content string
}

func (f *fakeBackend) Send(ctx context.Context, messages []models.ChatMessage, tools []models.ToolDefinition, extras llmclient.Extras) (llmclient.Response, error) {
	return llmclient.Response{IsComplete: true, Content: f.content, FinishReason: llmclient.FinishStop}, nil
}

func newTestOrchestrator(t *testing.T, backendContent string, toolResults map[string]string) *Orchestrator {
	t.Helper()

	sink, err := audit.NewTurnSink("")
	if err != nil {
		t.Fatalf("NewTurnSink: %v", err)
	}

	server := &fakeServer{results: toolResults}
	gate := policy.NewPermissionGate(policy.Config{Web: policy.SettingAlways, MemoryRead: policy.SettingAlways, MemoryEnabled: true}, true)
	toolClient := toolclient.New(server, gate, sink, 0)

	backend := &fakeBackend{content: backendContent}
	llm := llmclient.New(backend)

	utilityEngine := utility.New()
	memoryProvider := memoryctx.New(toolClient, sink)
	r := router.New(utilityEngine, nil)
	policyGate := policygate.New(policy.NewToolCapabilityRegistry())
	guardrailsCo := guardrails.New(guardrails.ModeOff, NewLLMCallerAdapter(llm))
	searchOrch := search.New(NewToolCallerAdapter(toolClient), NewLLMCallerAdapter(llm), func() time.Time { return time.Now() })
	state := turnstate.New()

	return New(utilityEngine, memoryProvider, r, policyGate, guardrailsCo, searchOrch, toolClient, llm, state, sink)
}

func TestProcess_EmptyInputRejected(t *testing.T) {
	o := newTestOrchestrator(t, "hi", nil)
	resp := o.Process(context.Background(), Request{SessionKey: "u1", UserMessage: "   "})
	if resp.Success || resp.Text != "Empty message" {
		t.Fatalf("got %+v", resp)
	}
}

func TestProcess_UtilityDeterministicAnswersInlineWithSuppressedUI(t *testing.T) {
	o := newTestOrchestrator(t, "unused", nil)
	resp := o.Process(context.Background(), Request{SessionKey: "u1", UserMessage: "what is 100f in celsius"})
	if !resp.Success || resp.LLMRoundTrips != 0 {
		t.Fatalf("got %+v", resp)
	}
	if !resp.SuppressSourceCardsUI || !resp.SuppressToolActivityUI {
		t.Fatalf("expected both UI suppression flags set, got %+v", resp)
	}
}

func TestProcess_ChatOnlyCallsLLMOnce(t *testing.T) {
	o := newTestOrchestrator(t, "Here's a thought about that.", nil)
	resp := o.Process(context.Background(), Request{SessionKey: "u1", UserMessage: "tell me something interesting"})
	if !resp.Success || resp.LLMRoundTrips != 1 {
		t.Fatalf("got %+v", resp)
	}
}

func TestProcess_AbusiveUserGetsBoundaryReply(t *testing.T) {
	o := newTestOrchestrator(t, "whatever you say", nil)
	resp := o.Process(context.Background(), Request{SessionKey: "u1", UserMessage: "you're useless, just answer"})
	if !resp.Success || resp.Text != abusiveBoundaryReply {
		t.Fatalf("got %+v", resp)
	}
}

func TestProcess_InternalMarkersStrippedFromOutput(t *testing.T) {
	o := newTestOrchestrator(t, "Sure thing. [MEMORY CONTEXT] leaked stuff [/TOOL_OUTPUT]", nil)
	resp := o.Process(context.Background(), Request{SessionKey: "u1", UserMessage: "tell me something"})
	if !resp.Success {
		t.Fatalf("got %+v", resp)
	}
	if containsMarker(resp.Text) {
		t.Fatalf("expected markers stripped, got %q", resp.Text)
	}
}

func containsMarker(s string) bool {
	return internalMarkerSignal.MatchString(s)
}
