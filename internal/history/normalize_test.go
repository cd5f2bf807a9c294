package history

import (
	"encoding/json"
	"testing"

	"melobot/internal/domain"
)

func TestNormalize_StringEntry(t *testing.T) {
	msgs := Normalize([]any{"oi, tudo bem?"})
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	if msgs[0].Text != "oi, tudo bem?" {
		t.Fatalf("unexpected text %q", msgs[0].Text)
	}
	if msgs[0].Role != domain.RoleAssistant {
		t.Fatalf("expected assistant default, got %q", msgs[0].Role)
	}
}

func TestNormalize_MessageField(t *testing.T) {
	msgs := Normalize([]any{map[string]any{"message": "bom dia", "isUser": true}})
	if msgs[0].Text != "bom dia" {
		t.Fatalf("unexpected text %q", msgs[0].Text)
	}
	if msgs[0].Role != domain.RoleUser {
		t.Fatalf("expected user from isUser, got %q", msgs[0].Role)
	}
}

func TestNormalize_TextField(t *testing.T) {
	msgs := Normalize([]any{map[string]any{"text": "boa tarde", "isUser": false}})
	if msgs[0].Text != "boa tarde" {
		t.Fatalf("unexpected text %q", msgs[0].Text)
	}
	if msgs[0].Role != domain.RoleAssistant {
		t.Fatalf("expected assistant from isUser=false, got %q", msgs[0].Role)
	}
}

func TestNormalize_PartsShape(t *testing.T) {
	entry := map[string]any{
		"role":  "model",
		"parts": []any{map[string]any{"text": "claro!"}},
	}
	msgs := Normalize([]any{entry})
	if msgs[0].Text != "claro!" {
		t.Fatalf("unexpected text %q", msgs[0].Text)
	}
	if msgs[0].Role != domain.RoleAssistant {
		t.Fatalf("model role should map to assistant, got %q", msgs[0].Role)
	}
}

func TestNormalize_TextPrecedence(t *testing.T) {
	entry := map[string]any{
		"text":    "wins",
		"message": "loses",
		"parts":   []any{map[string]any{"text": "also loses"}},
	}
	msgs := Normalize([]any{entry})
	if msgs[0].Text != "wins" {
		t.Fatalf("text field should win, got %q", msgs[0].Text)
	}
}

func TestNormalize_ExplicitRoleBeatsIsUser(t *testing.T) {
	entry := map[string]any{"role": "user", "isUser": false, "text": "x"}
	msgs := Normalize([]any{entry})
	if msgs[0].Role != domain.RoleUser {
		t.Fatalf("explicit role should win, got %q", msgs[0].Role)
	}
}

func TestNormalize_InvalidRoleFallsThrough(t *testing.T) {
	entry := map[string]any{"role": "robot", "isUser": true, "text": "x"}
	msgs := Normalize([]any{entry})
	if msgs[0].Role != domain.RoleUser {
		t.Fatalf("invalid role should fall back to isUser, got %q", msgs[0].Role)
	}
}

func TestNormalize_MalformedEntryStringified(t *testing.T) {
	entry := map[string]any{"foo": "bar"}
	msgs := Normalize([]any{entry})
	var decoded map[string]any
	if err := json.Unmarshal([]byte(msgs[0].Text), &decoded); err != nil {
		t.Fatalf("fallback text is not JSON: %v (%q)", err, msgs[0].Text)
	}
	if decoded["foo"] != "bar" {
		t.Fatalf("fallback lost content: %q", msgs[0].Text)
	}

	msgs = Normalize([]any{42.0})
	if msgs[0].Text != "42" {
		t.Fatalf("numeric entry should stringify, got %q", msgs[0].Text)
	}
}

func TestNormalize_OrderPreserved(t *testing.T) {
	msgs := Normalize([]any{
		map[string]any{"text": "a", "isUser": true},
		map[string]any{"text": "b"},
		"c",
	})
	if msgs[0].Text != "a" || msgs[1].Text != "b" || msgs[2].Text != "c" {
		t.Fatalf("order not preserved: %+v", msgs)
	}
}

func TestNormalize_Timestamp(t *testing.T) {
	msgs := Normalize([]any{
		map[string]any{"text": "x", "timestamp": "2025-06-01T12:00:00Z"},
		map[string]any{"text": "y", "timestamp": 1748779200000.0},
	})
	if msgs[0].Timestamp.IsZero() {
		t.Fatal("RFC3339 timestamp not parsed")
	}
	if msgs[1].Timestamp.IsZero() {
		t.Fatal("epoch millis timestamp not parsed")
	}
}

func TestNormalize_Empty(t *testing.T) {
	if msgs := Normalize(nil); msgs != nil {
		t.Fatalf("expected nil for empty input, got %+v", msgs)
	}
}

func TestToWire_Roles(t *testing.T) {
	wire := ToWire([]domain.Message{
		{Role: domain.RoleUser, Text: "oi"},
		{Role: domain.RoleAssistant, Text: "olá"},
	})
	if wire[0].Role != "user" || wire[1].Role != "model" {
		t.Fatalf("unexpected wire roles: %+v", wire)
	}
	if wire[1].Parts[0].Text != "olá" {
		t.Fatalf("unexpected part text: %+v", wire[1])
	}
}

func TestToWire_ToolResultsAsText(t *testing.T) {
	wire := ToWire([]domain.Message{{
		Role: domain.RoleTool,
		ToolResults: []domain.ToolResult{
			{Name: "getWeather", Response: map[string]any{"temperature": 20}},
		},
	}})
	if wire[0].Role != "user" {
		t.Fatalf("tool turns should render as user wire role, got %q", wire[0].Role)
	}
	if wire[0].Parts[0].Text == "" {
		t.Fatal("tool results should serialize into the text part")
	}
}
