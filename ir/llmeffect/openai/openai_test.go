package openai

import "testing"

func TestParseToolInputValidJSON(t *testing.T) {
	got := parseToolInput(`{"query":"weather","limit":3}`)
	if got["query"] != "weather" {
		t.Fatalf("expected query=weather, got %+v", got)
	}
	if got["limit"] != float64(3) {
		t.Fatalf("expected limit=3, got %+v", got)
	}
}

func TestParseToolInputEmptyString(t *testing.T) {
	if got := parseToolInput(""); got != nil {
		t.Fatalf("expected nil for empty input, got %+v", got)
	}
}

func TestParseToolInputMalformedJSONFallsBackToRaw(t *testing.T) {
	got := parseToolInput("not json")
	if got["_raw"] != "not json" {
		t.Fatalf("expected a _raw fallback entry, got %+v", got)
	}
}

func TestNewChatModelDefaultsModelName(t *testing.T) {
	m := NewChatModel("key", "")
	if m.modelName != "gpt-4o" {
		t.Fatalf("expected default model gpt-4o, got %q", m.modelName)
	}
	m2 := NewChatModel("key", "gpt-4-turbo")
	if m2.modelName != "gpt-4-turbo" {
		t.Fatalf("expected gpt-4-turbo, got %q", m2.modelName)
	}
}
