package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// CoreManager owns the protocol-level methods of the MCP namespace:
// initialization, ping, and the initialized/cancelled notifications. It also
// keeps the cancelled-request set, which in-flight handlers may poll to abort
// cooperatively; entries survive the cancel notification until explicitly
// cleared so a handler that starts late can still observe them.
type CoreManager struct {
	info Info
	bus  *EventBus

	mu        sync.Mutex
	cancelled map[MustString]string
}

// NewCoreManager creates the core manager for a server identified by info.
func NewCoreManager(info Info, bus *EventBus) *CoreManager {
	return &CoreManager{
		info:      info,
		bus:       bus,
		cancelled: make(map[MustString]string),
	}
}

// Capability implements CapabilityManager.
func (m *CoreManager) Capability() string { return "core" }

// Claims implements CapabilityManager.
func (m *CoreManager) Claims(method string) bool {
	switch method {
	case methodInitialize, methodPing, methodNotificationsInitialized, methodNotificationsCancelled:
		return true
	}
	return false
}

// Execute implements CapabilityManager.
func (m *CoreManager) Execute(_ context.Context, method string, params json.RawMessage) (any, error) {
	switch method {
	case methodInitialize:
		return m.initialize(params)
	case methodPing:
		return struct{}{}, nil
	case methodNotificationsInitialized:
		// The HTTP transport marks the session initialized itself and answers
		// 204 without dispatching here; over stdio there is no session record
		// to mark.
		return nil, nil
	case methodNotificationsCancelled:
		return nil, m.cancel(params)
	}
	return nil, &JSONRPCError{
		Code:    jsonRPCMethodNotFoundCode,
		Message: fmt.Sprintf("Method [%s] not found", method),
	}
}

func (m *CoreManager) initialize(rawParams json.RawMessage) (InitializeResult, error) {
	var params InitializeParams
	if len(rawParams) > 0 {
		if err := json.Unmarshal(rawParams, &params); err != nil {
			return InitializeResult{}, &JSONRPCError{
				Code:    jsonRPCInvalidParamsCode,
				Message: fmt.Sprintf("failed to unmarshal params: %s", err),
			}
		}
	}

	// Echo a supported requested revision; otherwise answer with the latest
	// one this server speaks and let the client decide whether to proceed.
	version := ProtocolVersion
	if IsSupportedProtocolVersion(params.ProtocolVersion) {
		version = params.ProtocolVersion
	}

	return InitializeResult{
		ProtocolVersion: version,
		Capabilities:    m.capabilities(),
		SessionID:       NewSessionID(),
		ServerInfo:      m.info,
	}, nil
}

func (m *CoreManager) capabilities() ServerCapabilities {
	return ServerCapabilities{
		Tools:       &ToolsCapability{ListChanged: true},
		Resources:   &ResourcesCapability{Subscribe: true, ListChanged: true},
		Prompts:     &PromptsCapability{ListChanged: true},
		Logging:     &LoggingCapability{},
		Completions: &CompletionsCapability{},
	}
}

func (m *CoreManager) cancel(rawParams json.RawMessage) error {
	var params CancelledParams
	if err := json.Unmarshal(rawParams, &params); err != nil {
		return &JSONRPCError{
			Code:    jsonRPCInvalidParamsCode,
			Message: fmt.Sprintf("failed to unmarshal params: %s", err),
		}
	}
	if params.RequestID == "" {
		return &JSONRPCError{
			Code:    jsonRPCInvalidParamsCode,
			Message: "Missing required parameter: requestId",
		}
	}

	m.mu.Lock()
	m.cancelled[params.RequestID] = params.Reason
	m.mu.Unlock()

	// Republished so local observers, the SSE fan-out included, see the
	// cancellation without reading the cancelled set.
	m.bus.Publish(EventCancelled, params)

	return nil
}

// IsCancelled reports whether a cancel notification arrived for requestID,
// along with the reason the client supplied.
func (m *CoreManager) IsCancelled(requestID MustString) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	reason, ok := m.cancelled[requestID]
	return reason, ok
}

// ClearCancelled removes requestID from the cancelled-request set, typically
// once the handler it addressed has finished unwinding.
func (m *CoreManager) ClearCancelled(requestID MustString) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.cancelled, requestID)
}
