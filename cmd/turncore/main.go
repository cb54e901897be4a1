// Package main is the demo harness for the turn-processing pipeline: a
// small cobra command tree (teacher's cmd/nexus pattern) that wires a
// concrete LLM backend, an in-memory tool server stub, and an audit sink
// into an orchestrator.Orchestrator and runs turns from stdin or a single
// --message flag. It is explicitly not a channel gateway (out of scope per
// spec.md) — just the minimal wiring surface that proves the library is
// usable end to end.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/haasonsaas/nexus/internal/audit"
	"github.com/haasonsaas/nexus/internal/config"
	"github.com/haasonsaas/nexus/internal/guardrails"
	"github.com/haasonsaas/nexus/internal/llmclient"
	"github.com/haasonsaas/nexus/internal/memoryctx"
	"github.com/haasonsaas/nexus/internal/observability"
	"github.com/haasonsaas/nexus/internal/orchestrator"
	"github.com/haasonsaas/nexus/internal/policygate"
	"github.com/haasonsaas/nexus/internal/router"
	"github.com/haasonsaas/nexus/internal/search"
	"github.com/haasonsaas/nexus/internal/toolclient"
	"github.com/haasonsaas/nexus/internal/tools/policy"
	"github.com/haasonsaas/nexus/internal/turnstate"
	"github.com/haasonsaas/nexus/internal/utility"
	"github.com/haasonsaas/nexus/pkg/models"
	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	logger := observability.NewLogger(observability.LogConfig{Level: "info", Format: "json", Output: os.Stderr})

	if err := buildRootCmd().Execute(); err != nil {
		logger.Error(context.Background(), "command execution failed", "error", err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "turncore",
		Short:        "Demo harness for the turn-processing pipeline",
		Version:      fmt.Sprintf("%s (commit %s)", version, commit),
		SilenceUsage: true,
	}
	root.AddCommand(buildTurnCmd(), buildServeCmd(), buildDoctorCmd())
	return root
}

// buildTurnCmd runs exactly one turn, either from --message or stdin, and
// prints the resulting models.AgentResponse as JSON.
func buildTurnCmd() *cobra.Command {
	var (
		configPath string
		message    string
		sessionKey string
		profileID  string
	)

	cmd := &cobra.Command{
		Use:   "turn",
		Short: "Process a single turn and print the AgentResponse as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(message) == "" {
				scanner := bufio.NewScanner(os.Stdin)
				if !scanner.Scan() {
					return fmt.Errorf("no message provided on stdin or via --message")
				}
				message = scanner.Text()
			}

			orch, cfg, err := wireOrchestrator(configPath)
			if err != nil {
				return err
			}

			resp := orch.Process(context.Background(), orchestrator.Request{
				SessionKey:      sessionKey,
				UserMessage:     message,
				ActiveProfileID: profileID,
				MemoryEnabled:   cfg.TurnCore.MemoryEnabled,
				SystemPrompt:    "You are a helpful local assistant.",
			})

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(resp)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to YAML configuration file (optional)")
	cmd.Flags().StringVar(&message, "message", "", "Message to process; reads one line from stdin if empty")
	cmd.Flags().StringVar(&sessionKey, "session-key", "demo-session", "Session key for memory/search/utility continuity")
	cmd.Flags().StringVar(&profileID, "profile-id", "default", "Active memory profile id")

	return cmd
}

// buildServeCmd runs a REPL over stdin, one turn per line, until EOF.
func buildServeCmd() *cobra.Command {
	var (
		configPath string
		sessionKey string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Read messages from stdin, one turn per line, until EOF",
		RunE: func(cmd *cobra.Command, args []string) error {
			orch, cfg, err := wireOrchestrator(configPath)
			if err != nil {
				return err
			}

			scanner := bufio.NewScanner(os.Stdin)
			for scanner.Scan() {
				line := strings.TrimSpace(scanner.Text())
				if line == "" {
					continue
				}
				resp := orch.Process(context.Background(), orchestrator.Request{
					SessionKey:      sessionKey,
					UserMessage:     line,
					ActiveProfileID: "default",
					MemoryEnabled:   cfg.TurnCore.MemoryEnabled,
					SystemPrompt:    "You are a helpful local assistant.",
				})
				fmt.Fprintln(cmd.OutOrStdout(), resp.Text)
			}
			return scanner.Err()
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to YAML configuration file (optional)")
	cmd.Flags().StringVar(&sessionKey, "session-key", "demo-session", "Session key for memory/search/utility continuity")

	return cmd
}

// buildDoctorCmd validates that a config file (if given) loads and that an
// LLM backend can be selected from the environment, without running a turn.
func buildDoctorCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Validate configuration and LLM backend selection",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			backend, name, err := selectBackend()
			if err != nil {
				return err
			}
			_ = backend
			fmt.Fprintf(cmd.OutOrStdout(), "config: ok\nllm backend: %s\nguardrails mode: %s\nmemory enabled: %v\n",
				name, cfg.TurnCore.GuardrailsMode, cfg.TurnCore.MemoryEnabled)
			return nil
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to YAML configuration file (optional)")
	return cmd
}

func loadConfig(path string) (*config.Config, error) {
	if strings.TrimSpace(path) == "" {
		return &config.Config{TurnCore: config.TurnCoreConfig{
			ToolGroups:    map[string]string{"web": "always", "memory_read": "always", "memory_write": "always"},
			MemoryEnabled: true,
		}}, nil
	}
	return config.Load(path)
}

// selectBackend picks an LLM backend from the environment: Anthropic if
// ANTHROPIC_API_KEY is set, else OpenAI if OPENAI_API_KEY is set, else a
// canned echo backend so the harness runs with zero external dependencies.
func selectBackend() (llmclient.Backend, string, error) {
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		model := os.Getenv("ANTHROPIC_MODEL")
		if model == "" {
			model = "claude-3-5-sonnet-latest"
		}
		return llmclient.NewAnthropicBackend(model), "anthropic:" + model, nil
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		model := os.Getenv("OPENAI_MODEL")
		if model == "" {
			model = "gpt-4o-mini"
		}
		return llmclient.NewOpenAIBackend(key, model), "openai:" + model, nil
	}
	return &echoBackend{}, "echo (no API key configured)", nil
}

func wireOrchestrator(configPath string) (*orchestrator.Orchestrator, *config.Config, error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, nil, err
	}

	backend, _, err := selectBackend()
	if err != nil {
		return nil, nil, err
	}

	sink, err := audit.NewTurnSink("")
	if err != nil {
		return nil, nil, fmt.Errorf("open audit sink: %w", err)
	}

	logger := observability.NewLogger(observability.LogConfig{Level: cfg.Logging.Level, Format: cfg.Logging.Format, Output: os.Stderr})

	gate := policy.NewPermissionGate(cfg.TurnCore.ToPolicyConfig(), true)
	server := &stubToolServer{}
	tools := toolclient.New(server, gate, sink, 0)
	tools.SetMetrics(observability.NewMetrics())
	tools.SetLogger(logger)

	llm := llmclient.New(backend)
	utilityEngine := utility.New()
	memory := memoryctx.New(tools, sink)
	r := router.New(utilityEngine, nil)
	policyGate := policygate.New(policy.NewToolCapabilityRegistry())

	guardrailsMode := guardrails.ModeOff
	switch cfg.TurnCore.GuardrailsMode {
	case "auto":
		guardrailsMode = guardrails.ModeAuto
	case "always":
		guardrailsMode = guardrails.ModeAlways
	}
	guardrailsCo := guardrails.New(guardrailsMode, orchestrator.NewLLMCallerAdapter(llm))
	searchOrch := search.New(orchestrator.NewToolCallerAdapter(tools), orchestrator.NewLLMCallerAdapter(llm), func() time.Time { return time.Now() })
	state := turnstate.New()

	orch := orchestrator.New(utilityEngine, memory, r, policyGate, guardrailsCo, searchOrch, tools, llm, state, sink)
	orch.SetMetrics(observability.NewMetrics())
	orch.SetLogger(logger)
	return orch, cfg, nil
}

// echoBackend is the zero-dependency fallback: it never calls tools and
// just reflects the last user message back, so `turncore turn` is usable
// without any API key configured.
type echoBackend struct{}

func (e *echoBackend) Send(ctx context.Context, messages []models.ChatMessage, tools []models.ToolDefinition, extras llmclient.Extras) (llmclient.Response, error) {
	var last string
	for _, m := range messages {
		if m.Role == models.TurnRoleUser {
			last = m.Content
		}
	}
	return llmclient.Response{IsComplete: true, Content: "(echo, no LLM configured) " + last, FinishReason: llmclient.FinishStop}, nil
}

// stubToolServer implements toolclient.Server with canned answers so the
// demo harness can exercise the Search Orchestrator and Tool Loop Executor
// without a real backing tool process.
type stubToolServer struct{}

func (s *stubToolServer) Call(ctx context.Context, canonicalName string, argsJSON json.RawMessage) (string, error) {
	switch canonicalName {
	case "web_search":
		return "No live web search backend is configured in this demo harness.", nil
	case "memory_list_facts":
		return "", nil
	default:
		return fmt.Sprintf("tool %q has no backing implementation in this demo harness", canonicalName), nil
	}
}

func (s *stubToolServer) List() []models.ToolDefinition {
	return []models.ToolDefinition{
		{Name: "web_search", Description: "Search the web for current information."},
		{Name: "memory_list_facts", Description: "List remembered facts about the user."},
		{Name: "browser_navigate", Description: "Navigate to a URL and return its content."},
	}
}
