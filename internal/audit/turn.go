package audit

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/haasonsaas/nexus/pkg/models"
)

// Turn-core action names, the audit.AuditEvent.Action values the
// Orchestrator and its components emit. Grounded on the Logger's EventType
// taxonomy above but scoped to spec.md §6's append-only turn log instead of
// the gateway-facing Event schema.
const (
	ActionRouterOutput           = "ROUTER_OUTPUT"
	ActionPolicyDecision         = "POLICY_DECISION"
	ActionMemoryRetrieved        = "MEMORY_RETRIEVED"
	ActionMCPToolCallStart       = "MCP_TOOL_CALL_START"
	ActionMCPToolCallEnd         = "MCP_TOOL_CALL_END"
	ActionGuardrailsRationale    = "GUARDRAILS_RATIONALE"
	ActionRoleConfusionRewrite   = "AGENT_ROLE_CONFUSION_REWRITE"
	ActionOfftopicCalcRewrite    = "AGENT_OFFTOPIC_CALC_REWRITE"
	ActionAbusiveUserBoundary    = "AGENT_ABUSIVE_USER_BOUNDARY"
	ActionSafetyOverride         = "AGENT_SAFETY_OVERRIDE"
	ActionTurnFailed             = "AGENT_TURN_FAILED"
)

// TurnSink is the append-only JSON-Lines audit log spec.md §6 describes:
// one models.AuditEvent per line, async buffered writes so a slow disk
// never blocks a turn, ReadTail for the doctor/inspection path. Grounded on
// Logger's buffer-plus-writeLoop shape above, rebuilt around
// models.AuditEvent instead of the gateway Event schema.
type TurnSink struct {
	mu     sync.Mutex
	output io.WriteCloser
	path   string
	buffer chan models.AuditEvent
	done   chan struct{}
	wg     sync.WaitGroup
}

// NewTurnSink opens (creating if absent) the JSON-Lines file at path and
// starts its async writer. Pass "" to get a no-op sink that drops events,
// used in tests that don't care about the audit trail.
func NewTurnSink(path string) (*TurnSink, error) {
	s := &TurnSink{
		path:   path,
		buffer: make(chan models.AuditEvent, 256),
		done:   make(chan struct{}),
	}
	if path == "" {
		return s, nil
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("audit: open turn log: %w", err)
	}
	s.output = f

	s.wg.Add(1)
	go s.writeLoop()
	return s, nil
}

// Record appends an event. Non-blocking: falls back to a synchronous write
// if the buffer is full rather than ever dropping an event silently.
func (s *TurnSink) Record(ctx context.Context, event models.AuditEvent) {
	if s.output == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	select {
	case s.buffer <- event:
	default:
		s.write(event)
	}
}

func (s *TurnSink) writeLoop() {
	defer s.wg.Done()
	for {
		select {
		case event := <-s.buffer:
			s.write(event)
		case <-s.done:
			for {
				select {
				case event := <-s.buffer:
					s.write(event)
				default:
					return
				}
			}
		}
	}
}

func (s *TurnSink) write(event models.AuditEvent) {
	line, err := json.Marshal(event)
	if err != nil {
		return
	}
	line = append(line, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	_, _ = s.output.Write(line)
}

// Close flushes and closes the underlying file.
func (s *TurnSink) Close() error {
	if s.output == nil {
		return nil
	}
	close(s.done)
	s.wg.Wait()
	return s.output.Close()
}

// ReadTail returns the last n valid AuditEvent lines in the log at path,
// in original (oldest-first) order, silently skipping malformed lines
// (spec.md §6: a corrupt trailing line must never fail the read).
func ReadTail(path string, n int) ([]models.AuditEvent, error) {
	if n <= 0 {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("audit: open turn log: %w", err)
	}
	defer f.Close()

	ring := make([]models.AuditEvent, 0, n)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var event models.AuditEvent
		if err := json.Unmarshal(scanner.Bytes(), &event); err != nil {
			continue
		}
		ring = append(ring, event)
		if len(ring) > n {
			ring = ring[1:]
		}
	}
	return ring, nil
}
