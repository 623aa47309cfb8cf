package llmeffect

import (
	"context"
	"sync"
)

// MockChatModel is a test ChatModel: a scripted response sequence plus
// call history.
type MockChatModel struct {
	Responses []ChatOut
	Err       error
	Calls     []Message

	mu        sync.Mutex
	callIndex int
}

func (m *MockChatModel) Chat(ctx context.Context, messages []Message, tools []ToolSpec) (ChatOut, error) {
	if ctx.Err() != nil {
		return ChatOut{}, ctx.Err()
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, messages...)
	if m.Err != nil {
		return ChatOut{}, m.Err
	}
	if len(m.Responses) == 0 {
		return ChatOut{}, nil
	}
	idx := m.callIndex
	if idx >= len(m.Responses) {
		idx = len(m.Responses) - 1
	} else {
		m.callIndex++
	}
	return m.Responses[idx], nil
}
