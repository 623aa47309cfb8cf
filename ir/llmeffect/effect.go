package llmeffect

import (
	"context"

	"github.com/layeredvm/layeredvm/ir/registry"
	"github.com/layeredvm/layeredvm/ir/value"
)

// NewCompleteEffect returns a registry.Effect that wires model to the
// `llm:complete` effect op. Documents call it with a list of
// {role, content} records and get back a {text, toolCalls} record.
func NewCompleteEffect(model ChatModel) registry.Effect {
	return registry.Effect{
		Params: []string{"messages"},
		Fn: func(eff *registry.Effects, args ...value.Value) value.Value {
			if len(args) != 1 {
				return value.Errf(value.CodeArityError, "llm:complete: expected 1 arg, got %d", len(args))
			}
			messages, err := decodeMessages(args[0])
			if err != nil {
				return value.Err(value.CodeTypeError, err.Error())
			}
			out, chatErr := model.Chat(context.Background(), messages, nil)
			if chatErr != nil {
				return value.Errf(value.CodeDomainError, "llm:complete: %v", chatErr)
			}
			return encodeChatOut(out)
		},
	}
}

func decodeMessages(v value.Value) ([]Message, error) {
	if v.Kind != value.KindList {
		return nil, errNotAList
	}
	out := make([]Message, 0, len(v.List))
	for _, item := range v.List {
		role, _ := item.MapGet(value.Str("role"))
		content, _ := item.MapGet(value.Str("content"))
		out = append(out, Message{Role: role.String, Content: content.String})
	}
	return out, nil
}

func encodeChatOut(out ChatOut) value.Value {
	calls := make([]value.Value, 0, len(out.ToolCalls))
	for _, c := range out.ToolCalls {
		calls = append(calls, value.NewMap(
			[2]value.Value{value.Str("name"), value.Str(c.Name)},
		))
	}
	return value.NewMap(
		[2]value.Value{value.Str("text"), value.Str(out.Text)},
		[2]value.Value{value.Str("toolCalls"), value.List(calls...)},
	)
}

var errNotAList = errDecode("llm:complete: messages must be a list of {role, content} records")

type errDecode string

func (e errDecode) Error() string { return string(e) }
