package search

import (
	"context"
	"encoding/json"
)

// ResolveEntity makes the single LLM call producing {name, type, hint}.
// Any call error or unparseable response yields the None entity rather
// than failing the turn.
func ResolveEntity(ctx context.Context, caller LLMCaller, userMessage string) Entity {
	raw, err := caller.Call(ctx, "Identify the primary named entity in the user's message. Respond as JSON: {\"name\": string, \"type\": \"Person\"|\"Org\"|\"Topic\"|\"none\", \"hint\": string}.", userMessage)
	if err != nil {
		return Entity{Type: EntityNone}
	}
	var e Entity
	if err := json.Unmarshal([]byte(raw), &e); err != nil || e.Type == "" {
		return Entity{Type: EntityNone}
	}
	switch e.Type {
	case EntityPerson, EntityOrg, EntityTopic, EntityNone:
	default:
		e.Type = EntityNone
	}
	return e
}
