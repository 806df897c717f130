package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// CompletionProvider supplies argument completion values for a prompt or
// resource-template reference. Providers return the full candidate list; the
// manager caps the wire reply at maxCompletionValues and sets hasMore.
type CompletionProvider func(ctx context.Context, params CompleteParams) ([]string, error)

const maxCompletionValues = 100

// CompletionManager owns completion/complete. Without a provider every
// request completes to an empty value list.
type CompletionManager struct {
	mu       sync.Mutex
	provider CompletionProvider
}

// NewCompletionManager creates a completion manager with no provider.
func NewCompletionManager() *CompletionManager {
	return &CompletionManager{}
}

// SetProvider installs (or replaces) the completion provider.
func (m *CompletionManager) SetProvider(provider CompletionProvider) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.provider = provider
}

// Capability implements CapabilityManager.
func (m *CompletionManager) Capability() string { return "completion" }

// Claims implements CapabilityManager.
func (m *CompletionManager) Claims(method string) bool {
	return method == MethodCompletionComplete
}

// Execute implements CapabilityManager.
func (m *CompletionManager) Execute(ctx context.Context, method string, params json.RawMessage) (any, error) {
	if method != MethodCompletionComplete {
		return nil, &JSONRPCError{
			Code:    jsonRPCMethodNotFoundCode,
			Message: fmt.Sprintf("Method [%s] not found", method),
		}
	}
	return m.complete(ctx, params)
}

func (m *CompletionManager) complete(ctx context.Context, rawParams json.RawMessage) (CompleteResult, error) {
	var params CompleteParams
	if err := json.Unmarshal(rawParams, &params); err != nil {
		return CompleteResult{}, &JSONRPCError{
			Code:    jsonRPCInvalidParamsCode,
			Message: fmt.Sprintf("failed to unmarshal params: %s", err),
		}
	}

	if params.Ref.Type != CompletionRefPrompt && params.Ref.Type != CompletionRefResource {
		return CompleteResult{}, &JSONRPCError{
			Code:    jsonRPCInternalErrorCode,
			Message: fmt.Sprintf("Invalid completion reference type: %s", params.Ref.Type),
		}
	}

	m.mu.Lock()
	provider := m.provider
	m.mu.Unlock()

	if provider == nil {
		return CompleteResult{Completion: Completion{Values: []string{}}}, nil
	}

	values, err := provider(ctx, params)
	if err != nil {
		return CompleteResult{}, &JSONRPCError{
			Code:    jsonRPCInternalErrorCode,
			Message: fmt.Sprintf("failed to complete: %s", err),
		}
	}

	total := len(values)
	hasMore := false
	if total > maxCompletionValues {
		values = values[:maxCompletionValues]
		hasMore = true
	}

	return CompleteResult{
		Completion: Completion{
			Values:  values,
			Total:   total,
			HasMore: hasMore,
		},
	}, nil
}
