// Package history canonicalizes the loosely-typed message history that chat
// clients accumulated over several frontend generations. Entries may be bare
// strings, {message}, {text}, {parts:[{text}]} objects, or anything else;
// everything is folded into domain.Message without ever failing.
package history

import (
	"encoding/json"
	"fmt"
	"time"

	"melobot/internal/domain"
)

// Normalize converts a raw history slice (as decoded from JSON) into
// canonical messages, preserving input order. It is pure and never panics:
// unrecognized entries degrade to their JSON representation.
func Normalize(entries []any) []domain.Message {
	if len(entries) == 0 {
		return nil
	}
	out := make([]domain.Message, 0, len(entries))
	for _, e := range entries {
		out = append(out, normalizeOne(e))
	}
	return out
}

func normalizeOne(entry any) domain.Message {
	switch v := entry.(type) {
	case string:
		return domain.Message{Role: domain.RoleAssistant, Text: v}
	case map[string]any:
		return domain.Message{
			Role:      extractRole(v),
			Text:      extractText(v, entry),
			Timestamp: extractTimestamp(v),
		}
	default:
		return domain.Message{Role: domain.RoleAssistant, Text: stringify(entry)}
	}
}

// extractText applies the precedence text > message > parts[0].text, then
// falls back to the stringified entry.
func extractText(m map[string]any, entry any) string {
	if s, ok := m["text"].(string); ok && s != "" {
		return s
	}
	if s, ok := m["message"].(string); ok && s != "" {
		return s
	}
	if parts, ok := m["parts"].([]any); ok && len(parts) > 0 {
		if first, ok := parts[0].(map[string]any); ok {
			if s, ok := first["text"].(string); ok && s != "" {
				return s
			}
		}
	}
	return stringify(entry)
}

// extractRole applies the precedence: valid explicit role > isUser flag >
// assistant. The legacy wire role "model" maps to assistant.
func extractRole(m map[string]any) string {
	if r, ok := m["role"].(string); ok {
		switch r {
		case domain.RoleUser, domain.RoleAssistant, domain.RoleSystem:
			return r
		case "model":
			return domain.RoleAssistant
		}
	}
	if isUser, ok := m["isUser"].(bool); ok {
		if isUser {
			return domain.RoleUser
		}
		return domain.RoleAssistant
	}
	return domain.RoleAssistant
}

// extractTimestamp accepts RFC 3339 strings or epoch milliseconds; anything
// else yields the zero time.
func extractTimestamp(m map[string]any) time.Time {
	switch ts := m["timestamp"].(type) {
	case string:
		if t, err := time.Parse(time.RFC3339, ts); err == nil {
			return t
		}
	case float64:
		return time.UnixMilli(int64(ts))
	}
	return time.Time{}
}

func stringify(entry any) string {
	b, err := json.Marshal(entry)
	if err != nil {
		return fmt.Sprintf("%v", entry)
	}
	return string(b)
}

// WirePart and WireMessage are the provider wire shapes returned to chat
// clients, which replay them back verbatim on the next request.
type WirePart struct {
	Text string `json:"text"`
}

type WireMessage struct {
	Role  string     `json:"role"`
	Parts []WirePart `json:"parts"`
}

// ToWire renders canonical messages in the provider wire format. Tool turns
// carry their results as a JSON text part so the transcript stays readable.
func ToWire(msgs []domain.Message) []WireMessage {
	out := make([]WireMessage, 0, len(msgs))
	for _, m := range msgs {
		role := "user"
		if m.Role == domain.RoleAssistant || m.Role == domain.RoleSystem {
			role = "model"
		}
		text := m.Text
		if text == "" && len(m.ToolResults) > 0 {
			if b, err := json.Marshal(m.ToolResults); err == nil {
				text = string(b)
			}
		}
		out = append(out, WireMessage{Role: role, Parts: []WirePart{{Text: text}}})
	}
	return out
}
