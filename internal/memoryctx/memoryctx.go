// Package memoryctx implements the Memory Context Provider: a bounded,
// timeout-guarded pre-fetch of a memory "pack" through the Audited Tool
// Client. Grounded on the teacher's executor timeout pattern
// (internal/agent/executor.go's executeWithTimeout) but simplified to a
// single call with typed provenance instead of retry/backoff, since
// spec.md §4.3 treats any failure mode as provenance, never an error.
package memoryctx

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/haasonsaas/nexus/internal/audit"
	"github.com/haasonsaas/nexus/pkg/models"
)

// DefaultColdGreetingTimeout and DefaultNormalTimeout are the two wall-clock
// budgets spec.md §5 names for memory pre-fetch.
const (
	DefaultColdGreetingTimeout = 500 * time.Millisecond
	DefaultNormalTimeout       = 2 * time.Second
)

// ToolCaller is the narrow seam into the Audited Tool Client this provider
// needs: a single named call returning a string (already
// redacted/audited).
type ToolCaller interface {
	Call(ctx context.Context, name string, argsJSON json.RawMessage, actor string) string
}

// Request bundles a single get_context call's parameters.
type Request struct {
	UserMessage     string
	MemoryEnabled   bool
	IsColdGreeting  bool
	ActiveProfileID string
	Timeout         time.Duration
}

// rawPack is the shape the memory_retrieve tool call's JSON result is
// expected to carry; unmarshal failure is treated as a normal error
// provenance, never a panic.
type rawPack struct {
	PackText   string `json:"pack_text"`
	Facts      int    `json:"facts"`
	Events     int    `json:"events"`
	Chunks     int    `json:"chunks"`
	Nuggets    int    `json:"nuggets"`
	HasProfile bool   `json:"has_profile"`
	Summary    string `json:"summary"`
}

// Provider is the Memory Context Provider.
type Provider struct {
	tools ToolCaller
	sink  *audit.TurnSink
}

// New builds a Provider over the Audited Tool Client and the audit sink.
func New(tools ToolCaller, sink *audit.TurnSink) *Provider {
	return &Provider{tools: tools, sink: sink}
}

// GetContext never panics and never returns a Go error; every outcome
// (disabled, timeout, malformed response, success) maps to a
// MemoryContextResult carrying typed provenance.
func (p *Provider) GetContext(ctx context.Context, req Request) models.MemoryContextResult {
	mode := models.RetrievalNormal
	if req.IsColdGreeting {
		mode = models.RetrievalGreet
	}

	if !req.MemoryEnabled {
		return models.MemoryContextResult{
			Provenance: models.MemoryProvenance{
				SourceTool:    "memory_retrieve",
				RetrievalMode: mode,
				Skipped:       true,
			},
		}
	}

	timeout := req.Timeout
	if timeout <= 0 {
		if req.IsColdGreeting {
			timeout = DefaultColdGreetingTimeout
		} else {
			timeout = DefaultNormalTimeout
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan string, 1)
	args, _ := json.Marshal(map[string]string{
		"user_message":      req.UserMessage,
		"active_profile_id": req.ActiveProfileID,
	})

	go func() {
		done <- p.tools.Call(callCtx, "memory_retrieve", args, "memory_context_provider")
	}()

	select {
	case raw := <-done:
		return p.parse(ctx, raw, mode)
	case <-callCtx.Done():
		timedOut := ctx.Err() == nil
		return models.MemoryContextResult{
			Error: "memory context retrieval did not complete in time",
			Provenance: models.MemoryProvenance{
				SourceTool:    "memory_retrieve",
				RetrievalMode: mode,
				TimedOut:      timedOut,
			},
		}
	}
}

func (p *Provider) parse(ctx context.Context, raw string, mode models.RetrievalMode) models.MemoryContextResult {
	var pack rawPack
	if err := json.Unmarshal([]byte(raw), &pack); err != nil {
		return models.MemoryContextResult{
			Error: fmt.Sprintf("malformed memory pack: %s", err),
			Provenance: models.MemoryProvenance{
				SourceTool:    "memory_retrieve",
				RetrievalMode: mode,
			},
		}
	}

	provenance := models.MemoryProvenance{
		SourceTool:    "memory_retrieve",
		RetrievalMode: mode,
		Success:       true,
		Facts:         pack.Facts,
		Events:        pack.Events,
		Chunks:        pack.Chunks,
		Nuggets:       pack.Nuggets,
		HasProfile:    pack.HasProfile,
		Summary:       pack.Summary,
	}

	if pack.PackText != "" {
		p.sink.Record(ctx, models.AuditEvent{
			Actor:  "memory_context_provider",
			Action: audit.ActionMemoryRetrieved,
			Target: "memory_retrieve",
			Result: models.AuditOK,
			Details: map[string]any{
				"facts":       pack.Facts,
				"events":      pack.Events,
				"chunks":      pack.Chunks,
				"nuggets":     pack.Nuggets,
				"has_profile": pack.HasProfile,
			},
		})
	}

	return models.MemoryContextResult{
		PackText:   pack.PackText,
		Provenance: provenance,
	}
}
