package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// ToolHandler executes a tool call with the raw argument object from the
// client. Returning an error, or panicking, does not fail the JSON-RPC
// request; the manager wraps either into a CallToolResult with IsError set so
// the model sees the failure text.
type ToolHandler func(ctx context.Context, args json.RawMessage) (CallToolResult, error)

type serverTool struct {
	tool    Tool
	handler ToolHandler
}

// ToolsManager owns the tools/* namespace. Tools are unique by name and
// listed in registration order.
type ToolsManager struct {
	bus *EventBus

	mu    sync.Mutex
	tools []serverTool
}

// NewToolsManager creates an empty tools manager publishing change events on bus.
func NewToolsManager(bus *EventBus) *ToolsManager {
	return &ToolsManager{bus: bus}
}

// Capability implements CapabilityManager.
func (m *ToolsManager) Capability() string { return "tools" }

// Claims implements CapabilityManager.
func (m *ToolsManager) Claims(method string) bool {
	return method == MethodToolsList || method == MethodToolsCall
}

// Execute implements CapabilityManager.
func (m *ToolsManager) Execute(ctx context.Context, method string, params json.RawMessage) (any, error) {
	switch method {
	case MethodToolsList:
		return m.list(), nil
	case MethodToolsCall:
		return m.call(ctx, params)
	}
	return nil, &JSONRPCError{
		Code:    jsonRPCMethodNotFoundCode,
		Message: fmt.Sprintf("Method [%s] not found", method),
	}
}

// Register adds a tool. Registering a name that already exists is a silent
// no-op and publishes nothing.
func (m *ToolsManager) Register(tool Tool, handler ToolHandler) {
	m.mu.Lock()
	for _, t := range m.tools {
		if t.tool.Name == tool.Name {
			m.mu.Unlock()
			return
		}
	}
	m.tools = append(m.tools, serverTool{tool: tool, handler: handler})
	m.mu.Unlock()

	m.bus.Publish(EventToolsListChanged, nil)
}

// Unregister removes a tool by name. Unknown names are a no-op and publish nothing.
func (m *ToolsManager) Unregister(name string) {
	m.mu.Lock()
	removed := false
	for i, t := range m.tools {
		if t.tool.Name == name {
			m.tools = append(m.tools[:i:i], m.tools[i+1:]...)
			removed = true
			break
		}
	}
	m.mu.Unlock()

	if removed {
		m.bus.Publish(EventToolsListChanged, nil)
	}
}

func (m *ToolsManager) list() ListToolsResult {
	m.mu.Lock()
	defer m.mu.Unlock()

	tools := make([]Tool, len(m.tools))
	for i, t := range m.tools {
		tools[i] = t.tool
	}
	return ListToolsResult{Tools: tools}
}

func (m *ToolsManager) call(ctx context.Context, rawParams json.RawMessage) (CallToolResult, error) {
	var params CallToolParams
	if err := json.Unmarshal(rawParams, &params); err != nil {
		return CallToolResult{}, &JSONRPCError{
			Code:    jsonRPCInvalidParamsCode,
			Message: fmt.Sprintf("failed to unmarshal params: %s", err),
		}
	}

	m.mu.Lock()
	var handler ToolHandler
	for _, t := range m.tools {
		if t.tool.Name == params.Name {
			handler = t.handler
			break
		}
	}
	m.mu.Unlock()

	if handler == nil {
		return CallToolResult{}, &JSONRPCError{
			Code:    jsonRPCInternalErrorCode,
			Message: fmt.Sprintf("Tool not found: %s", params.Name),
		}
	}

	result, err := safeCallTool(ctx, handler, params.Arguments)
	if err != nil {
		return errorToolResult(err.Error()), nil
	}
	return result, nil
}

// safeCallTool shields the dispatch loop from handler panics by converting
// them into ordinary errors.
func safeCallTool(ctx context.Context, handler ToolHandler, args json.RawMessage) (result CallToolResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tool panicked: %v", r)
		}
	}()

	return handler(ctx, args)
}

func errorToolResult(message string) CallToolResult {
	return CallToolResult{
		Content: []Content{
			{
				Type: ContentTypeText,
				Text: message,
			},
		},
		IsError: true,
	}
}
