package toolloop

import (
	"context"
	"testing"

	"github.com/haasonsaas/nexus/pkg/models"
)

type stubLLM struct {
	responses []LLMResponse
	calls     int
}

func (s *stubLLM) Chat(ctx context.Context, history []models.ChatMessage, tools []models.ToolDefinition) (LLMResponse, error) {
	resp := s.responses[s.calls]
	s.calls++
	return resp, nil
}

type stubCaller struct {
	result string
}

func (s *stubCaller) Call(ctx context.Context, name string, argsJSON []byte, actor string) string {
	return s.result
}

func TestRun_NoToolCallsReturnsImmediately(t *testing.T) {
	llm := &stubLLM{responses: []LLMResponse{{Content: "  hello there  "}}}
	exec := New(llm, &stubCaller{}, nil)

	result := exec.Run(context.Background(), nil, nil)
	if result.FinalText != "hello there" {
		t.Fatalf("expected trimmed content, got %q", result.FinalText)
	}
	if result.Rounds != 1 {
		t.Fatalf("expected 1 round, got %d", result.Rounds)
	}
}

func TestRun_ExecutesExposedToolAndFeedsBack(t *testing.T) {
	llm := &stubLLM{responses: []LLMResponse{
		{ToolCalls: []models.ToolCallRequest{{ID: "1", Name: "web_search", ArgumentsRaw: []byte(`{}`)}}},
		{Content: "done"},
	}}
	exec := New(llm, &stubCaller{result: "search results"}, []string{"web_search"})

	result := exec.Run(context.Background(), nil, nil)
	if result.FinalText != "done" {
		t.Fatalf("expected done, got %q", result.FinalText)
	}
	if result.Rounds != 2 {
		t.Fatalf("expected 2 rounds, got %d", result.Rounds)
	}
	if len(result.Records) != 1 || result.Records[0].ResultKind != models.ToolResultExecuted {
		t.Fatalf("expected one executed record, got %+v", result.Records)
	}
	if result.Records[0].Result != "search results" {
		t.Fatalf("expected executed result to carry the call's output, got %q", result.Records[0].Result)
	}
}

func TestRun_NotExposedToolSkipped(t *testing.T) {
	llm := &stubLLM{responses: []LLMResponse{
		{ToolCalls: []models.ToolCallRequest{{ID: "1", Name: "execute_code", ArgumentsRaw: []byte(`{}`)}}},
		{Content: "done"},
	}}
	exec := New(llm, &stubCaller{result: "should not run"}, []string{"web_search"})

	result := exec.Run(context.Background(), nil, nil)
	if len(result.Records) != 1 || result.Records[0].ResultKind != models.ToolResultNotPermitted {
		t.Fatalf("expected not-permitted record, got %+v", result.Records)
	}
}

func TestRun_ConflictResolutionSkipsLoser(t *testing.T) {
	llm := &stubLLM{responses: []LLMResponse{
		{ToolCalls: []models.ToolCallRequest{
			{ID: "1", Name: "screen_capture", ArgumentsRaw: []byte(`{}`)},
			{ID: "2", Name: "get_active_window", ArgumentsRaw: []byte(`{}`)},
		}},
		{Content: "done"},
	}}
	exec := New(llm, &stubCaller{result: "ok"}, []string{"screen_capture", "get_active_window"})

	result := exec.Run(context.Background(), nil, nil)
	var sawSkipped, sawExecuted bool
	for _, r := range result.Records {
		switch r.Request.ID {
		case "1":
			sawSkipped = r.ResultKind == models.ToolResultConflictSkipped
		case "2":
			sawExecuted = r.ResultKind == models.ToolResultExecuted
		}
	}
	if !sawSkipped || !sawExecuted {
		t.Fatalf("expected screen_capture skipped and get_active_window executed, got %+v", result.Records)
	}
}

func TestRun_HitsMaxRoundsCap(t *testing.T) {
	responses := make([]LLMResponse, 0, MaxRounds)
	for i := 0; i < MaxRounds; i++ {
		responses = append(responses, LLMResponse{ToolCalls: []models.ToolCallRequest{{ID: "1", Name: "web_search", ArgumentsRaw: []byte(`{}`)}}})
	}
	llm := &stubLLM{responses: responses}
	exec := New(llm, &stubCaller{result: "ok"}, []string{"web_search"})

	result := exec.Run(context.Background(), nil, nil)
	if result.Rounds != MaxRounds {
		t.Fatalf("expected %d rounds, got %d", MaxRounds, result.Rounds)
	}
	if result.FinalText == "" {
		t.Fatalf("expected a final message when the cap is hit")
	}
}
