package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// PromptBuilder produces the message sequence for a prompt from the free-form
// argument object sent by the client. The builder owns argument extraction;
// the manager hands the raw JSON through untouched.
type PromptBuilder func(ctx context.Context, args json.RawMessage) ([]PromptMessage, error)

type serverPrompt struct {
	prompt  Prompt
	builder PromptBuilder
}

// PromptsManager owns the prompts/* namespace. Prompts are unique by name and
// listed in registration order; argument order is declaration order.
type PromptsManager struct {
	bus *EventBus

	mu      sync.Mutex
	prompts []serverPrompt
}

// NewPromptsManager creates an empty prompts manager publishing change events on bus.
func NewPromptsManager(bus *EventBus) *PromptsManager {
	return &PromptsManager{bus: bus}
}

// Capability implements CapabilityManager.
func (m *PromptsManager) Capability() string { return "prompts" }

// Claims implements CapabilityManager.
func (m *PromptsManager) Claims(method string) bool {
	return method == MethodPromptsList || method == MethodPromptsGet
}

// Execute implements CapabilityManager.
func (m *PromptsManager) Execute(ctx context.Context, method string, params json.RawMessage) (any, error) {
	switch method {
	case MethodPromptsList:
		return m.list(), nil
	case MethodPromptsGet:
		return m.get(ctx, params)
	}
	return nil, &JSONRPCError{
		Code:    jsonRPCMethodNotFoundCode,
		Message: fmt.Sprintf("Method [%s] not found", method),
	}
}

// Register adds a prompt. Registering a name that already exists is a silent
// no-op and publishes nothing.
func (m *PromptsManager) Register(prompt Prompt, builder PromptBuilder) {
	m.mu.Lock()
	for _, p := range m.prompts {
		if p.prompt.Name == prompt.Name {
			m.mu.Unlock()
			return
		}
	}
	m.prompts = append(m.prompts, serverPrompt{prompt: prompt, builder: builder})
	m.mu.Unlock()

	m.bus.Publish(EventPromptsListChanged, nil)
}

// Unregister removes a prompt by name. Unknown names are a no-op and publish nothing.
func (m *PromptsManager) Unregister(name string) {
	m.mu.Lock()
	removed := false
	for i, p := range m.prompts {
		if p.prompt.Name == name {
			m.prompts = append(m.prompts[:i:i], m.prompts[i+1:]...)
			removed = true
			break
		}
	}
	m.mu.Unlock()

	if removed {
		m.bus.Publish(EventPromptsListChanged, nil)
	}
}

// Prompt returns the declared prompt metadata for name. Completion providers
// use this to suggest values for declared arguments.
func (m *PromptsManager) Prompt(name string) (Prompt, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, p := range m.prompts {
		if p.prompt.Name == name {
			return p.prompt, true
		}
	}
	return Prompt{}, false
}

func (m *PromptsManager) list() ListPromptsResult {
	m.mu.Lock()
	defer m.mu.Unlock()

	prompts := make([]Prompt, len(m.prompts))
	for i, p := range m.prompts {
		prompts[i] = p.prompt
	}
	return ListPromptsResult{Prompts: prompts}
}

func (m *PromptsManager) get(ctx context.Context, rawParams json.RawMessage) (GetPromptResult, error) {
	var params GetPromptParams
	if err := json.Unmarshal(rawParams, &params); err != nil {
		return GetPromptResult{}, &JSONRPCError{
			Code:    jsonRPCInvalidParamsCode,
			Message: fmt.Sprintf("failed to unmarshal params: %s", err),
		}
	}

	m.mu.Lock()
	var found *serverPrompt
	for i := range m.prompts {
		if m.prompts[i].prompt.Name == params.Name {
			found = &m.prompts[i]
			break
		}
	}
	m.mu.Unlock()

	if found == nil {
		return GetPromptResult{}, &JSONRPCError{
			Code:    jsonRPCInternalErrorCode,
			Message: fmt.Sprintf("Prompt not found: %s", params.Name),
		}
	}

	messages, err := found.builder(ctx, params.Arguments)
	if err != nil {
		return GetPromptResult{}, &JSONRPCError{
			Code:    jsonRPCInternalErrorCode,
			Message: fmt.Sprintf("failed to build prompt: %s", err),
		}
	}

	return GetPromptResult{
		Messages:    messages,
		Description: found.prompt.Description,
	}, nil
}
