package anthropic

import (
	"testing"

	"github.com/layeredvm/layeredvm/ir/llmeffect"
)

func TestExtractSystemMergesConsecutiveSystemMessages(t *testing.T) {
	msgs := []llmeffect.Message{
		{Role: llmeffect.RoleSystem, Content: "be terse"},
		{Role: llmeffect.RoleSystem, Content: "be accurate"},
		{Role: llmeffect.RoleUser, Content: "hi"},
	}
	system, rest := extractSystem(msgs)
	if system != "be terse\n\nbe accurate" {
		t.Fatalf("unexpected merged system prompt: %q", system)
	}
	if len(rest) != 1 || rest[0].Content != "hi" {
		t.Fatalf("expected only the user message left, got %+v", rest)
	}
}

func TestExtractSystemNoSystemMessages(t *testing.T) {
	msgs := []llmeffect.Message{{Role: llmeffect.RoleUser, Content: "hi"}}
	system, rest := extractSystem(msgs)
	if system != "" {
		t.Fatalf("expected empty system prompt, got %q", system)
	}
	if len(rest) != 1 {
		t.Fatalf("expected the user message preserved, got %+v", rest)
	}
}

func TestConvertToolInputPassesThroughMap(t *testing.T) {
	in := map[string]interface{}{"query": "x"}
	got := convertToolInput(in)
	if got["query"] != "x" {
		t.Fatalf("expected passthrough map, got %+v", got)
	}
}

func TestConvertToolInputWrapsNonMap(t *testing.T) {
	got := convertToolInput("a raw string")
	if got["_raw"] != "a raw string" {
		t.Fatalf("expected _raw wrapper, got %+v", got)
	}
}

func TestConvertToolInputNil(t *testing.T) {
	if got := convertToolInput(nil); got != nil {
		t.Fatalf("expected nil, got %+v", got)
	}
}

func TestNewChatModelDefaultsModelName(t *testing.T) {
	m := NewChatModel("key", "")
	if m.modelName != "claude-sonnet-4-5-20250929" {
		t.Fatalf("expected default model, got %q", m.modelName)
	}
	m2 := NewChatModel("key", "claude-opus-4")
	if m2.modelName != "claude-opus-4" {
		t.Fatalf("expected claude-opus-4, got %q", m2.modelName)
	}
}
