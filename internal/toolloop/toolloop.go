// Package toolloop implements the Tool Loop Executor: the bounded
// LLM-tool round loop spec.md §4.6 describes. Each round sends the current
// history to the LLM, filters any requested tool calls against the
// exposed set, resolves same-round conflicts with a deterministic
// priority table, executes the survivors concurrently via the Audited
// Tool Client, and feeds the results back as history for the next round.
//
// Grounded on the teacher's semaphore-bounded ExecuteAll
// (internal/agent/executor.go), rebuilt on golang.org/x/sync/errgroup for
// the structured-concurrency fan-out a single round needs: wait for all
// calls, keep the first error, nothing more.
package toolloop

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/haasonsaas/nexus/pkg/models"
)

// MaxRounds bounds the loop the way spec.md §4.6 describes ("typical cap
// ~10").
const MaxRounds = 10

// LLMResponse is the normalized per-round LLM response the loop consumes.
type LLMResponse struct {
	Content      string
	ToolCalls    []models.ToolCallRequest
	FinishReason string
}

// LLM sends one round's history and exposed tool set to the model.
type LLM interface {
	Chat(ctx context.Context, history []models.ChatMessage, tools []models.ToolDefinition) (LLMResponse, error)
}

// ToolCaller executes a single named tool call through the Audited Tool
// Client. actor identifies the caller for the audit trail.
type ToolCaller interface {
	Call(ctx context.Context, name string, argsJSON []byte, actor string) string
}

// Result is one turn's tool-loop outcome.
type Result struct {
	FinalText string
	Rounds    int
	Records   []models.ToolCallRecord
	History   []models.ChatMessage
}

// Executor is the Tool Loop Executor.
type Executor struct {
	llm          LLM
	tools        ToolCaller
	exposedNames map[string]bool
}

// New builds an Executor scoped to the tools exposed for this turn by the
// Policy Gate.
func New(llm LLM, tools ToolCaller, exposedNames []string) *Executor {
	exposed := make(map[string]bool, len(exposedNames))
	for _, name := range exposedNames {
		exposed[strings.ToLower(name)] = true
	}
	return &Executor{llm: llm, tools: tools, exposedNames: exposed}
}

// conflictPriority declares the winner among semantically overlapping
// tool requests in the same round: map key is the loser, value the
// winner it defers to when both appear together.
//
// TODO(priority-table): add file_write vs file_read on the same path once
// a file-task intent actually exposes both tools in one round.
var conflictPriority = map[string]string{
	"screen_capture":   "get_active_window",
	"browser_navigate": "web_search",
}

// resolveConflicts drops the loser of any declared pair present in the
// same round, returning the survivors in original order and the skipped
// requests paired with their winner's name.
func resolveConflicts(calls []models.ToolCallRequest) (survivors []models.ToolCallRequest, skipped map[string]string) {
	present := make(map[string]bool, len(calls))
	for _, c := range calls {
		present[strings.ToLower(c.Name)] = true
	}
	skipped = map[string]string{}
	for _, c := range calls {
		name := strings.ToLower(c.Name)
		if winner, ok := conflictPriority[name]; ok && present[winner] {
			skipped[c.ID] = winner
			continue
		}
		survivors = append(survivors, c)
	}
	return survivors, skipped
}

// Run drives the bounded round loop until the model returns a non-tool
// finish reason, a round produces no tool calls, or MaxRounds is reached.
func (e *Executor) Run(ctx context.Context, history []models.ChatMessage, exposed []models.ToolDefinition) Result {
	var records []models.ToolCallRecord

	for round := 1; round <= MaxRounds; round++ {
		resp, err := e.llm.Chat(ctx, history, exposed)
		if err != nil {
			history = append(history, models.ChatMessage{
				Role:    models.TurnRoleAssistant,
				Content: "I ran into an error talking to the model; here's what I have so far.",
			})
			return Result{FinalText: history[len(history)-1].Content, Rounds: round, Records: records, History: history}
		}

		if len(resp.ToolCalls) == 0 {
			text := sanitize(resp.Content)
			history = append(history, models.ChatMessage{Role: models.TurnRoleAssistant, Content: text})
			return Result{FinalText: text, Rounds: round, Records: records, History: history}
		}

		history = append(history, models.ChatMessage{
			Role:      models.TurnRoleAssistantToolCall,
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})

		survivors, skipped := resolveConflicts(resp.ToolCalls)

		roundRecords := make([]models.ToolCallRecord, len(resp.ToolCalls))
		recordByID := make(map[string]int, len(resp.ToolCalls))
		for i, c := range resp.ToolCalls {
			recordByID[c.ID] = i
			name := strings.ToLower(c.Name)
			if winner, ok := skipped[c.ID]; ok {
				roundRecords[i] = models.ToolCallRecord{
					Request:    c,
					Result:     fmt.Sprintf("skipped: deterministic_priority favors %s", winner),
					Success:    false,
					StartedAt:  timeNow(),
					ResultKind: models.ToolResultConflictSkipped,
				}
				continue
			}
			if !e.exposedNames[name] {
				roundRecords[i] = models.ToolCallRecord{
					Request:    c,
					Result:     "tool not permitted for this turn",
					Success:    false,
					StartedAt:  timeNow(),
					ResultKind: models.ToolResultNotPermitted,
				}
			}
		}

		eligible := make([]models.ToolCallRequest, 0, len(survivors))
		for _, c := range survivors {
			if e.exposedNames[strings.ToLower(c.Name)] {
				eligible = append(eligible, c)
			}
		}

		group, groupCtx := errgroup.WithContext(ctx)
		for _, c := range eligible {
			c := c
			idx := recordByID[c.ID]
			group.Go(func() error {
				started := timeNow()
				result := e.tools.Call(groupCtx, c.Name, []byte(c.ArgumentsRaw), "tool_loop_executor")
				roundRecords[idx] = models.ToolCallRecord{
					Request:    c,
					Result:     result,
					Success:    true,
					StartedAt:  started,
					Duration:   timeNow().Sub(started),
					ResultKind: models.ToolResultExecuted,
				}
				return nil
			})
		}
		_ = group.Wait()

		sort.Slice(roundRecords, func(i, j int) bool {
			return roundRecords[i].Request.ID < roundRecords[j].Request.ID
		})

		for _, r := range roundRecords {
			history = append(history, models.ChatMessage{
				Role:       models.TurnRoleTool,
				Content:    r.Result,
				ToolCallID: r.Request.ID,
			})
		}
		records = append(records, roundRecords...)
	}

	history = append(history, models.ChatMessage{
		Role:    models.TurnRoleAssistant,
		Content: "... maximum tool rounds reached without a final answer ...",
	})
	return Result{FinalText: history[len(history)-1].Content, Rounds: MaxRounds, Records: records, History: history}
}

func sanitize(content string) string {
	return strings.TrimSpace(content)
}

// timeNow is a seam so tests can avoid relying on wall-clock ordering;
// production always uses the real clock.
var timeNow = func() time.Time { return time.Now() }
