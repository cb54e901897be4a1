package llmclient

import (
	"context"
	"encoding/json"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/haasonsaas/nexus/pkg/models"
)

// OpenAIBackend adapts go-openai to the Backend interface, grounded on the
// teacher's OpenAIProvider (internal/agent/providers/openai.go) but
// collapsed to a single non-streaming CreateChatCompletion call.
type OpenAIBackend struct {
	client *openai.Client
	model  string
}

// NewOpenAIBackend builds a backend for the given model and API key.
func NewOpenAIBackend(apiKey, model string) *OpenAIBackend {
	return &OpenAIBackend{
		client: openai.NewClient(apiKey),
		model:  model,
	}
}

// convertOpenAIMessages converts a turn history into OpenAI chat messages,
// mirroring the teacher's convertToOpenAIMessages in
// internal/agent/providers/openai.go.
func convertOpenAIMessages(messages []models.ChatMessage) []openai.ChatCompletionMessage {
	chatMessages := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case models.TurnRoleSystem:
			chatMessages = append(chatMessages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: m.Content})
		case models.TurnRoleUser:
			chatMessages = append(chatMessages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: m.Content})
		case models.TurnRoleAssistant:
			chatMessages = append(chatMessages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: m.Content})
		case models.TurnRoleAssistantToolCall:
			calls := make([]openai.ToolCall, 0, len(m.ToolCalls))
			for _, tc := range m.ToolCalls {
				calls = append(calls, openai.ToolCall{
					ID:   tc.ID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      tc.Name,
						Arguments: string(tc.ArgumentsRaw),
					},
				})
			}
			chatMessages = append(chatMessages, openai.ChatCompletionMessage{
				Role:      openai.ChatMessageRoleAssistant,
				Content:   m.Content,
				ToolCalls: calls,
			})
		case models.TurnRoleTool:
			chatMessages = append(chatMessages, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    m.Content,
				ToolCallID: m.ToolCallID,
			})
		}
	}
	return chatMessages
}

// convertOpenAITools builds OpenAI tool params from turn tool definitions,
// falling back to an empty object schema on malformed JSON.
func convertOpenAITools(tools []models.ToolDefinition) []openai.Tool {
	if len(tools) == 0 {
		return nil
	}
	out := make([]openai.Tool, 0, len(tools))
	for _, tool := range tools {
		var schema map[string]any
		if err := json.Unmarshal(tool.ParametersSchema, &schema); err != nil {
			schema = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		out = append(out, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  schema,
			},
		})
	}
	return out
}

func (b *OpenAIBackend) Send(ctx context.Context, messages []models.ChatMessage, tools []models.ToolDefinition, extras Extras) (Response, error) {
	req := openai.ChatCompletionRequest{
		Model:    b.model,
		Messages: convertOpenAIMessages(messages),
		Tools:    convertOpenAITools(tools),
	}
	if len(extras.StopSequences) > 0 {
		req.Stop = extras.StopSequences
	}

	completion, err := b.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return Response{}, fmt.Errorf("openai: %w", err)
	}
	if len(completion.Choices) == 0 {
		return Response{}, fmt.Errorf("openai: empty choices")
	}

	choice := completion.Choices[0]
	resp := Response{
		IsComplete: true,
		Content:    choice.Message.Content,
	}
	for _, tc := range choice.Message.ToolCalls {
		resp.ToolCalls = append(resp.ToolCalls, models.ToolCallRequest{
			ID:           tc.ID,
			Name:         tc.Function.Name,
			ArgumentsRaw: json.RawMessage(tc.Function.Arguments),
		})
	}

	switch choice.FinishReason {
	case openai.FinishReasonToolCalls:
		resp.FinishReason = FinishToolCalls
	case openai.FinishReasonLength:
		resp.FinishReason = FinishLength
	default:
		resp.FinishReason = FinishStop
	}
	return resp, nil
}
