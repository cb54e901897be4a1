package llmclient

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/haasonsaas/nexus/pkg/models"
)

// AnthropicBackend adapts anthropic-sdk-go to the Backend interface,
// grounded on the teacher's AnthropicProvider (internal/agent/providers/
// anthropic.go) but collapsed to a single non-streaming Messages.New call:
// the turn core needs one complete response per round, not incremental
// chunks.
type AnthropicBackend struct {
	client anthropic.Client
	model  string
}

// NewAnthropicBackend builds a backend for the given model, using
// ANTHROPIC_API_KEY from the environment the same way the teacher's
// provider does by default.
func NewAnthropicBackend(model string, opts ...option.RequestOption) *AnthropicBackend {
	return &AnthropicBackend{
		client: anthropic.NewClient(opts...),
		model:  model,
	}
}

// convertAnthropicMessages splits a turn history into an Anthropic system
// string plus ordered message params, mirroring the teacher's
// convertMessages helper in internal/agent/providers/anthropic.go.
func convertAnthropicMessages(messages []models.ChatMessage) (string, []anthropic.MessageParam) {
	var system string
	var anthropicMessages []anthropic.MessageParam

	for _, m := range messages {
		switch m.Role {
		case models.TurnRoleSystem:
			system = m.Content
		case models.TurnRoleUser:
			anthropicMessages = append(anthropicMessages, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		case models.TurnRoleAssistant:
			anthropicMessages = append(anthropicMessages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		case models.TurnRoleAssistantToolCall:
			blocks := make([]anthropic.ContentBlockParamUnion, 0, len(m.ToolCalls))
			for _, tc := range m.ToolCalls {
				var input any
				_ = json.Unmarshal(tc.ArgumentsRaw, &input)
				blocks = append(blocks, anthropic.NewToolUseBlock(tc.ID, input, tc.Name))
			}
			anthropicMessages = append(anthropicMessages, anthropic.NewAssistantMessage(blocks...))
		case models.TurnRoleTool:
			anthropicMessages = append(anthropicMessages, anthropic.NewUserMessage(anthropic.NewToolResultBlock(m.ToolCallID, m.Content, false)))
		}
	}
	return system, anthropicMessages
}

// convertAnthropicTools builds Anthropic tool params from turn tool
// definitions, falling back to an empty object schema on malformed JSON.
func convertAnthropicTools(tools []models.ToolDefinition) []anthropic.ToolUnionParam {
	if len(tools) == 0 {
		return nil
	}
	out := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, tool := range tools {
		var schema anthropic.ToolInputSchemaParam
		if len(tool.ParametersSchema) > 0 {
			_ = json.Unmarshal(tool.ParametersSchema, &schema)
		}
		out = append(out, anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        tool.Name,
				Description: anthropic.String(tool.Description),
				InputSchema: schema,
			},
		})
	}
	return out
}

func (b *AnthropicBackend) Send(ctx context.Context, messages []models.ChatMessage, tools []models.ToolDefinition, extras Extras) (Response, error) {
	system, anthropicMessages := convertAnthropicMessages(messages)

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(b.model),
		MaxTokens: 1024,
		Messages:  anthropicMessages,
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	if len(extras.StopSequences) > 0 {
		params.StopSequences = extras.StopSequences
	}
	params.Tools = convertAnthropicTools(tools)

	msg, err := b.client.Messages.New(ctx, params)
	if err != nil {
		return Response{}, fmt.Errorf("anthropic: %w", err)
	}

	resp := Response{IsComplete: true}
	for _, block := range msg.Content {
		switch variant := block.AsAny().(type) {
		case anthropic.TextBlock:
			resp.Content += variant.Text
		case anthropic.ToolUseBlock:
			argsJSON, _ := json.Marshal(variant.Input)
			resp.ToolCalls = append(resp.ToolCalls, models.ToolCallRequest{
				ID:           variant.ID,
				Name:         variant.Name,
				ArgumentsRaw: argsJSON,
			})
		}
	}

	switch msg.StopReason {
	case anthropic.StopReasonToolUse:
		resp.FinishReason = FinishToolCalls
	case anthropic.StopReasonMaxTokens:
		resp.FinishReason = FinishLength
	default:
		resp.FinishReason = FinishStop
	}
	return resp, nil
}
