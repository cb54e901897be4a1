package llmclient

import (
	"context"
	"errors"
	"testing"

	"github.com/haasonsaas/nexus/pkg/models"
)

type fakeBackend struct {
	calls   []Extras
	results []Response
	errs    []error
	i       int
}

func (f *fakeBackend) Send(ctx context.Context, messages []models.ChatMessage, tools []models.ToolDefinition, extras Extras) (Response, error) {
	f.calls = append(f.calls, extras)
	idx := f.i
	if f.i < len(f.results)-1 {
		f.i++
	}
	var err error
	if idx < len(f.errs) {
		err = f.errs[idx]
	}
	return f.results[idx], err
}

func TestChat_RetriesOnceOnRegexProcessingBug(t *testing.T) {
	backend := &fakeBackend{
		results: []Response{{}, {Content: "ok"}},
		errs:    []error{errors.New("400: Failed to process regex"), nil},
	}
	client := New(backend)

	resp, err := client.Chat(context.Background(), nil, nil, Extras{StopSequences: []string{"STOP"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Content != "ok" {
		t.Fatalf("got %+v", resp)
	}
	if len(backend.calls) != 2 {
		t.Fatalf("expected 2 backend calls, got %d", len(backend.calls))
	}
	if len(backend.calls[1].StopSequences) != 0 {
		t.Fatalf("expected retry to drop extras, got %+v", backend.calls[1])
	}
}

func TestChat_OtherErrorsSurfaceUnchanged(t *testing.T) {
	backend := &fakeBackend{
		results: []Response{{}},
		errs:    []error{errors.New("500: internal error")},
	}
	client := New(backend)

	_, err := client.Chat(context.Background(), nil, nil, Extras{})
	if err == nil {
		t.Fatalf("expected error to surface")
	}
	if len(backend.calls) != 1 {
		t.Fatalf("expected no retry, got %d calls", len(backend.calls))
	}
}

func TestChat_NormalizesHistoryWhenNoToolsOffered(t *testing.T) {
	backend := &fakeBackend{results: []Response{{Content: "done"}}}
	client := New(backend)

	history := []models.ChatMessage{
		{Role: models.TurnRoleUser, Content: "search for x"},
		{Role: models.TurnRoleAssistantToolCall, Content: ""},
		{Role: models.TurnRoleTool, Content: "result text"},
	}

	_, err := client.Chat(context.Background(), history, nil, Extras{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(backend.calls) != 1 {
		t.Fatalf("expected single backend call, got %d", len(backend.calls))
	}
}

func TestNormalizeWithoutTools_CollapsesToolScaffolding(t *testing.T) {
	history := []models.ChatMessage{
		{Role: models.TurnRoleUser, Content: "search for x"},
		{
			Role: models.TurnRoleAssistantToolCall,
			ToolCalls: []models.ToolCallRequest{{ID: "1", Name: "web_search"}},
		},
		{Role: models.TurnRoleTool, ToolCallID: "1", Content: "result text"},
	}

	got := NormalizeWithoutTools(history)
	for _, m := range got {
		if m.Role == models.TurnRoleAssistantToolCall || m.Role == models.TurnRoleTool {
			t.Fatalf("expected no tool-call scaffolding left, got role %q", m.Role)
		}
	}
	if len(got) != 2 {
		t.Fatalf("expected user message plus normalized tool-result-as-user message, got %d: %+v", len(got), got)
	}
	if got[1].Role != models.TurnRoleUser {
		t.Fatalf("expected normalized tool result to become a user message, got %q", got[1].Role)
	}
}

func TestNormalizeWithoutTools_CollapsesConsecutiveSameRole(t *testing.T) {
	history := []models.ChatMessage{
		{Role: models.TurnRoleUser, Content: "first"},
		{Role: models.TurnRoleTool, ToolCallID: "1", Content: "tool result one"},
		{Role: models.TurnRoleTool, ToolCallID: "2", Content: "tool result two"},
	}
	got := NormalizeWithoutTools(history)
	if len(got) != 2 {
		t.Fatalf("expected collapse to 2 messages, got %d: %+v", len(got), got)
	}
}
