// Package orchestrator implements the top-level Orchestrator described in
// spec.md §4.9: the turn-processing pipeline's single entry point. It
// wires the Memory Context Provider, Router, Policy Gate, Guardrails
// Coordinator, Search Orchestrator, Tool Loop Executor, and Audited Tool
// Client together, then folds the output-contract rewrite chain over the
// assistant's text before returning an AgentResponse. Grounded on the
// teacher's agent loop (internal/agent/executor.go) for the
// parallel-prefetch-then-dispatch shape, rebuilt around the turn-core
// component seams instead of the teacher's tool-calling agent.
package orchestrator

import (
	"context"
	"regexp"
	"strings"
	"sync"

	"github.com/haasonsaas/nexus/internal/audit"
	"github.com/haasonsaas/nexus/internal/guardrails"
	"github.com/haasonsaas/nexus/internal/llmclient"
	"github.com/haasonsaas/nexus/internal/memoryctx"
	"github.com/haasonsaas/nexus/internal/observability"
	"github.com/haasonsaas/nexus/internal/policygate"
	"github.com/haasonsaas/nexus/internal/router"
	"github.com/haasonsaas/nexus/internal/search"
	"github.com/haasonsaas/nexus/internal/toolclient"
	"github.com/haasonsaas/nexus/internal/toolloop"
	"github.com/haasonsaas/nexus/internal/turnstate"
	"github.com/haasonsaas/nexus/internal/utility"
	"github.com/haasonsaas/nexus/pkg/models"
)

// Request bundles one turn's caller-supplied parameters.
type Request struct {
	SessionKey      string
	UserMessage     string
	ActiveProfileID string
	MemoryEnabled   bool
	IsColdGreeting  bool
	SystemPrompt    string
}

// Orchestrator is the turn-processing pipeline's single entry point.
// Collaborators are injected by reference and must be safe for concurrent
// use by multiple sessions; per-session mutable state (SearchSession,
// DialogueState) lives only in the turnstate.Store and is owned by the
// turn task that calls Process.
type Orchestrator struct {
	utilityEngine *utility.Engine
	memory        *memoryctx.Provider
	router        *router.Router
	policy        *policygate.Gate
	guardrailsCo  *guardrails.Coordinator
	searchOrch    *search.Orchestrator
	tools         *toolclient.Client
	llm           *llmclient.Client
	state         *turnstate.Store
	sink          *audit.TurnSink
	metrics       *observability.Metrics
	logger        *observability.Logger
}

// SetMetrics attaches a Metrics collector. Optional; a nil metrics
// collector (the default) means Process records no prometheus metrics.
func (o *Orchestrator) SetMetrics(metrics *observability.Metrics) {
	o.metrics = metrics
}

// SetLogger attaches the ambient structured logger. Optional; a nil
// logger (the default) means Process logs nothing beyond the audit trail.
func (o *Orchestrator) SetLogger(logger *observability.Logger) {
	o.logger = logger
}

// New wires a complete Orchestrator. guardrailsCo may be nil, meaning the
// guardrails mode is effectively off.
func New(
	utilityEngine *utility.Engine,
	memory *memoryctx.Provider,
	r *router.Router,
	policyGate *policygate.Gate,
	guardrailsCo *guardrails.Coordinator,
	searchOrch *search.Orchestrator,
	tools *toolclient.Client,
	llm *llmclient.Client,
	state *turnstate.Store,
	sink *audit.TurnSink,
) *Orchestrator {
	return &Orchestrator{
		utilityEngine: utilityEngine,
		memory:        memory,
		router:        r,
		policy:        policyGate,
		guardrailsCo:  guardrailsCo,
		searchOrch:    searchOrch,
		tools:         tools,
		llm:           llm,
		state:         state,
		sink:          sink,
	}
}

// Process is spec.md §4.9's process(user_message) -> AgentResponse.
func (o *Orchestrator) Process(ctx context.Context, req Request) models.AgentResponse {
	trimmed := strings.TrimSpace(req.UserMessage)
	if trimmed == "" {
		return models.AgentResponse{Success: false, Text: "Empty message"}
	}

	memCtx, route := o.prefetchAndRoute(ctx, req)

	if route.Intent == models.IntentUtilityDeterministic {
		return o.runUtility(ctx, req, route)
	}
	if route.Intent == models.IntentMemoryRead && looksLikeWhatDoYouKnow(trimmed) {
		return o.runMemoryList(ctx, req)
	}

	policyDecision := o.policy.Decide(route)
	o.sink.Record(ctx, models.AuditEvent{
		Actor: req.SessionKey, Action: audit.ActionRouterOutput, Result: models.AuditOK,
		Details: map[string]any{"intent": string(route.Intent), "confidence": route.Confidence, "layer": string(route.Layer)},
	})
	o.sink.Record(ctx, models.AuditEvent{
		Actor: req.SessionKey, Action: audit.ActionPolicyDecision, Result: models.AuditOK,
		Details: map[string]any{"use_tool_loop": policyDecision.UseToolLoop},
	})

	var (
		text                string
		toolCallsMade       int
		llmRoundTrips       int
		suppressSources     bool
		suppressActivity    bool
		guardrailsUsed      bool
		guardrailsRationale []string
	)

	switch {
	case isSearchIntent(route.Intent):
		session, _ := o.state.SearchSession(req.SessionKey)
		outcome := o.searchOrch.Run(ctx, req.UserMessage, &session)
		o.state.SetSearchSession(req.SessionKey, outcome.Session)
		if o.metrics != nil {
			o.metrics.RecordSearchMode(string(outcome.Session.LastMode))
		}
		text = outcome.Text
		suppressSources = outcome.SuppressSourceCardsUI
		suppressActivity = outcome.SuppressToolActivityUI
		llmRoundTrips = 1

	case policyDecision.UseToolLoop:
		available := o.tools.List()
		exposed := o.policy.FilterTools(available, policyDecision)
		exposedNames := make([]string, 0, len(exposed))
		for _, d := range exposed {
			exposedNames = append(exposedNames, d.Name)
		}
		exec := toolloop.New(
			&toolLoopLLM{llm: o.llm, systemPrompt: o.buildSystemPrompt(req, memCtx)},
			NewToolCallerAdapter(o.tools),
			exposedNames,
		)
		history := []models.ChatMessage{
			{Role: models.TurnRoleSystem, Content: o.buildSystemPrompt(req, memCtx)},
			{Role: models.TurnRoleUser, Content: req.UserMessage},
		}
		result := exec.Run(ctx, history, exposed)
		text = result.FinalText
		llmRoundTrips = result.Rounds
		if o.metrics != nil {
			o.metrics.RecordToolLoopRounds(result.Rounds)
		}
		for _, r := range result.Records {
			if r.ResultKind == models.ToolResultExecuted {
				toolCallsMade++
			}
		}

	default: // chat_only
		if o.guardrailsCo != nil && o.guardrailsCo.ShouldRun(req.UserMessage) {
			gr := o.guardrailsCo.Evaluate(ctx, req.UserMessage)
			if gr.Used {
				text = gr.Text
				guardrailsUsed = true
				guardrailsRationale = gr.Rationale
				o.sink.Record(ctx, models.AuditEvent{
					Actor: req.SessionKey, Action: audit.ActionGuardrailsRationale, Result: models.AuditOK,
					Details: map[string]any{"rationale": gr.Rationale},
				})
			}
		}
		if text == "" {
			resp, err := o.llm.Chat(ctx, []models.ChatMessage{
				{Role: models.TurnRoleSystem, Content: o.buildSystemPrompt(req, memCtx)},
				{Role: models.TurnRoleUser, Content: req.UserMessage},
			}, nil, llmclient.Extras{})
			llmRoundTrips = 1
			if err != nil {
				o.sink.Record(ctx, models.AuditEvent{
					Actor: req.SessionKey, Action: audit.ActionTurnFailed, Result: models.AuditError,
					Details: map[string]any{"error": err.Error()},
				})
				if o.logger != nil {
					o.logger.Error(ctx, "turn failed", "session_key", req.SessionKey, "error", err)
				}
				return models.AgentResponse{Success: false, Text: "Something went wrong processing that."}
			}
			text = resp.Content
		}
	}

	text = o.enforceOutputContract(ctx, req, text)

	return models.AgentResponse{
		Text:                   text,
		Success:                true,
		ToolCallsMade:          toolCallsMade,
		LLMRoundTrips:          llmRoundTrips,
		GuardrailsUsed:         guardrailsUsed,
		GuardrailsRationale:    guardrailsRationale,
		SuppressSourceCardsUI:  suppressSources,
		SuppressToolActivityUI: suppressActivity,
	}
}

// prefetchAndRoute runs the memory pre-fetch and routing concurrently
// (spec.md §4.9 steps 2-3; §5's single named concurrent pair outside a
// tool-loop round or a Search Orchestrator stage).
func (o *Orchestrator) prefetchAndRoute(ctx context.Context, req Request) (models.MemoryContextResult, models.RouterOutput) {
	var memCtx models.MemoryContextResult
	var route models.RouterOutput
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		timeout := memoryctx.DefaultNormalTimeout
		if req.IsColdGreeting {
			timeout = memoryctx.DefaultColdGreetingTimeout
		}
		memCtx = o.memory.GetContext(ctx, memoryctx.Request{
			UserMessage:     req.UserMessage,
			MemoryEnabled:   req.MemoryEnabled,
			IsColdGreeting:  req.IsColdGreeting,
			ActiveProfileID: req.ActiveProfileID,
			Timeout:         timeout,
		})
	}()
	go func() {
		defer wg.Done()
		route = o.router.Route(ctx, req.SessionKey, req.UserMessage)
	}()
	wg.Wait()
	return memCtx, route
}

func (o *Orchestrator) runUtility(ctx context.Context, req Request, route models.RouterOutput) models.AgentResponse {
	match, ok := o.utilityEngine.Match(req.SessionKey, req.UserMessage)
	if !ok {
		// Router said utility_deterministic but the engine no longer agrees
		// (stale follow-up state, e.g.); fall back to chat rather than fail
		// the turn.
		resp, err := o.llm.Chat(ctx, []models.ChatMessage{{Role: models.TurnRoleUser, Content: req.UserMessage}}, nil, llmclient.Extras{})
		if err != nil {
			return models.AgentResponse{Success: false, Text: "Something went wrong processing that."}
		}
		return models.AgentResponse{Text: resp.Content, Success: true, SuppressSourceCardsUI: true, SuppressToolActivityUI: true}
	}

	text := match.AnswerText
	if match.Kind == utility.KindTool {
		text = o.tools.Call(ctx, match.ToolName, []byte(match.ToolArgsJSON), req.SessionKey)
	}
	text = o.enforceOutputContract(ctx, req, text)

	return models.AgentResponse{
		Text:                   text,
		Success:                true,
		SuppressSourceCardsUI:  true,
		SuppressToolActivityUI: true,
	}
}

func (o *Orchestrator) runMemoryList(ctx context.Context, req Request) models.AgentResponse {
	raw := o.tools.Call(ctx, "memory_list_facts", []byte(`{"active_profile_id":"`+req.ActiveProfileID+`"}`), req.SessionKey)
	facts := strings.Split(strings.TrimSpace(raw), "\n")
	var b strings.Builder
	for _, f := range facts {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		b.WriteString("- ")
		b.WriteString(f)
		b.WriteString("\n")
	}
	text := strings.TrimSpace(b.String())
	if text == "" {
		text = "I don't have anything saved about you yet."
	}
	return models.AgentResponse{
		Text:                   o.enforceOutputContract(ctx, req, text),
		Success:                true,
		SuppressSourceCardsUI:  true,
		SuppressToolActivityUI: true,
	}
}

func (o *Orchestrator) buildSystemPrompt(req Request, memCtx models.MemoryContextResult) string {
	base := req.SystemPrompt
	if memCtx.PackText == "" {
		return base
	}
	return base + "\n\n[MEMORY CONTEXT]\n" + memCtx.PackText
}

func isSearchIntent(intent models.Intent) bool {
	switch intent {
	case models.IntentLookupFact, models.IntentLookupNews, models.IntentLookupSearch,
		models.IntentBrowseOnce, models.IntentOneShotDiscovery:
		return true
	default:
		return false
	}
}

var whatDoYouKnowSignal = regexp.MustCompile(`(?i)what do you know about me|what.*remember about me`)

func looksLikeWhatDoYouKnow(message string) bool {
	return whatDoYouKnowSignal.MatchString(message)
}

// toolLoopLLM adapts llmclient.Client to toolloop.LLM, prepending the
// turn's system prompt to every round's history.
type toolLoopLLM struct {
	llm          *llmclient.Client
	systemPrompt string
}

func (t *toolLoopLLM) Chat(ctx context.Context, history []models.ChatMessage, tools []models.ToolDefinition) (toolloop.LLMResponse, error) {
	resp, err := t.llm.Chat(ctx, history, tools, llmclient.Extras{})
	if err != nil {
		return toolloop.LLMResponse{}, err
	}
	return toolloop.LLMResponse{Content: resp.Content, ToolCalls: resp.ToolCalls, FinishReason: resp.FinishReason}, nil
}

// ToolCallerAdapter adapts toolclient.Client ([]byte/json.RawMessage
// interchangeable at the assignability level, but distinct named types at
// the interface-satisfaction level) to the narrower []byte-argument
// ToolCaller seams the Tool Loop Executor and Search Orchestrator declare.
// Each caller supplies its own actor label per call (e.g.
// "tool_loop_executor", "search_orchestrator"); the adapter carries none
// of its own.
type ToolCallerAdapter struct {
	client *toolclient.Client
}

// NewToolCallerAdapter exposes the adapter for callers outside this
// package that need to build a search.Orchestrator or other []byte-keyed
// ToolCaller over the same toolclient.Client (the CLI wiring in
// cmd/turncore, notably).
func NewToolCallerAdapter(client *toolclient.Client) *ToolCallerAdapter {
	return &ToolCallerAdapter{client: client}
}

func (a *ToolCallerAdapter) Call(ctx context.Context, name string, argsJSON []byte, actor string) string {
	return a.client.Call(ctx, name, argsJSON, actor)
}

// LLMCallerAdapter adapts llmclient.Client to the single structured-prompt
// Call(ctx, systemPrompt, userMessage) seam the Search Orchestrator and
// Guardrails Coordinator both declare.
type LLMCallerAdapter struct {
	llm *llmclient.Client
}

// NewLLMCallerAdapter builds the structured-prompt adapter cmd/turncore
// uses to wire the same llmclient.Client into the Search Orchestrator's
// entity/query/summary stages and the Guardrails Coordinator's pipeline.
func NewLLMCallerAdapter(llm *llmclient.Client) *LLMCallerAdapter {
	return &LLMCallerAdapter{llm: llm}
}

func (a *LLMCallerAdapter) Call(ctx context.Context, systemPrompt, userMessage string) (string, error) {
	resp, err := a.llm.Chat(ctx, []models.ChatMessage{
		{Role: models.TurnRoleSystem, Content: systemPrompt},
		{Role: models.TurnRoleUser, Content: userMessage},
	}, nil, llmclient.Extras{})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}
