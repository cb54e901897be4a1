// Package toolclient implements the Audited Tool Client: the single
// chokepoint every tool call passes through, whatever triggered it (the
// Deterministic Utility Engine, the Tool Loop Executor, or a direct Policy
// Gate-approved call). Canonicalizes the tool name, asks the permission
// gate, forwards to the backing tool server with a timeout and panic
// recovery, redacts the result, and brackets the whole thing with
// MCP_TOOL_CALL_START/END audit events.
package toolclient

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/haasonsaas/nexus/internal/audit"
	"github.com/haasonsaas/nexus/internal/observability"
	"github.com/haasonsaas/nexus/internal/tools/policy"
	"github.com/haasonsaas/nexus/pkg/models"
)

// Server is the backing implementation a concrete tool (screen capture,
// filesystem, shell, web search, memory store...) is registered under. The
// Audited Tool Client never calls a tool directly; everything goes through
// this seam so the policy/audit/redaction wrapper is the only path in.
type Server interface {
	Call(ctx context.Context, canonicalName string, argsJSON json.RawMessage) (string, error)
	List() []models.ToolDefinition
}

// DefaultTimeout bounds a single tool call the way the teacher's executor
// bounds ToolConfig.Timeout, absent a per-tool override.
const DefaultTimeout = 30 * time.Second

// redactedKinds lists tools whose raw output is replaced by a size/hash
// summary rather than scrubbed in place: their output is bulk binary-ish
// content (screenshots, file reads) where line-by-line secret scrubbing
// isn't meaningful.
var redactedKinds = map[string]string{
	"screen_capture": "screen_capture",
	"read_file":      "file_read",
}

// Client is the Audited Tool Client.
type Client struct {
	server  Server
	gate    *policy.PermissionGate
	sink    *audit.TurnSink
	timeout time.Duration
	metrics *observability.Metrics
	logger  *observability.Logger
}

// New builds a Client over a backing server, permission gate, and audit
// sink. Pass a zero timeout to take DefaultTimeout.
func New(server Server, gate *policy.PermissionGate, sink *audit.TurnSink, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{server: server, gate: gate, sink: sink, timeout: timeout}
}

// SetMetrics attaches a Metrics collector. Optional; a nil metrics
// collector (the default) means Call records no prometheus metrics.
func (c *Client) SetMetrics(metrics *observability.Metrics) {
	c.metrics = metrics
}

// SetLogger attaches the ambient structured logger. Optional; a nil
// logger (the default) means Call logs nothing beyond the audit trail.
func (c *Client) SetLogger(logger *observability.Logger) {
	c.logger = logger
}

// List returns the tool definitions the backing server exposes, used by
// the Policy Gate to build the offered-tool list before filtering.
func (c *Client) List() []models.ToolDefinition {
	return c.server.List()
}

// Call is the Audited Tool Client's single entry point (spec.md §4.1):
// canonicalize, start-audit, permission-gate, forward-and-catch, redact,
// end-audit. Never panics and never returns a Go error for a failed tool
// call — the failure is encoded as the returned string per the contract
// every caller (utility engine, tool loop, orchestrator) depends on.
func (c *Client) Call(ctx context.Context, rawName string, argsJSON json.RawMessage, actor string) string {
	canonical := policy.NormalizeTool(rawName)

	c.sink.Record(ctx, models.AuditEvent{
		Actor:  actor,
		Action: audit.ActionMCPToolCallStart,
		Target: canonical,
		Result: models.AuditPending,
		Details: map[string]any{
			"raw_name": rawName,
		},
	})

	decision := c.gate.Evaluate(canonical)
	if !decision.IsGrant() {
		reason := decision.Reason()
		result := models.AuditDenied
		if decision.IsPrompt() {
			result = models.AuditBlocked
		}
		c.sink.Record(ctx, models.AuditEvent{
			Actor:  actor,
			Action: audit.ActionMCPToolCallEnd,
			Target: canonical,
			Result: result,
			Details: map[string]any{
				"reason": reason,
			},
		})
		if c.metrics != nil {
			c.metrics.RecordToolExecution(canonical, "denied", 0)
		}
		if c.logger != nil {
			c.logger.Warn(ctx, "tool call denied", "tool", canonical, "actor", actor, "reason", reason)
		}
		return fmt.Sprintf("Tool call blocked: %s", reason)
	}

	started := time.Now()
	output, callErr := c.forward(ctx, canonical, argsJSON)
	duration := time.Since(started)

	if callErr != nil {
		c.sink.Record(ctx, models.AuditEvent{
			Actor:             actor,
			Action:            audit.ActionMCPToolCallEnd,
			Target:            canonical,
			Result:            models.AuditError,
			PermissionTokenID: decision.TokenID(),
			Details: map[string]any{
				"error":       callErr.Error(),
				"duration_ms": duration.Milliseconds(),
			},
		})
		if c.metrics != nil {
			c.metrics.RecordToolExecution(canonical, "error", duration.Seconds())
		}
		if c.logger != nil {
			c.logger.Error(ctx, "tool call failed", "tool", canonical, "actor", actor, "error", callErr)
		}
		return fmt.Sprintf("Tool execution failed: %s", callErr.Error())
	}

	redacted := Redact(canonical, output)

	c.sink.Record(ctx, models.AuditEvent{
		Actor:             actor,
		Action:            audit.ActionMCPToolCallEnd,
		Target:            canonical,
		Result:            models.AuditOK,
		PermissionTokenID: decision.TokenID(),
		Details: map[string]any{
			"duration_ms":  duration.Milliseconds(),
			"output_chars": len(output),
		},
	})
	if c.metrics != nil {
		c.metrics.RecordToolExecution(canonical, "ok", duration.Seconds())
	}
	return redacted
}

// forward invokes the backing server under a timeout, recovering a panic
// into an error the same way the teacher's executeWithTimeout does.
func (c *Client) forward(ctx context.Context, canonical string, argsJSON json.RawMessage) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	type outcome struct {
		output string
		err    error
	}
	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("panic: %v\n%s", r, debug.Stack())}
			}
		}()
		output, err := c.server.Call(callCtx, canonical, argsJSON)
		done <- outcome{output: output, err: err}
	}()

	select {
	case o := <-done:
		return o.output, o.err
	case <-callCtx.Done():
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("timed out after %s", c.timeout)
	}
}

// Redact applies output redaction (spec.md §4.1): a fixed size/hash summary
// for bulk-content tool kinds, a deep scrub of secret-shaped substrings for
// everything else.
func Redact(canonical, output string) string {
	if kind, ok := redactedKinds[canonical]; ok {
		sum := sha256.Sum256([]byte(output))
		return fmt.Sprintf("%s: %d chars, sha256=%s", kind, len(output), hex.EncodeToString(sum[:]))
	}
	return scrub(output)
}
