package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// LoggingManager owns logging/setLevel and the in-process API other
// subsystems use to push notifications/message and notifications/progress to
// clients. The current level is process-global within the manager; messages
// less severe than it are dropped (RFC 5424 numbering, lower value means
// higher severity).
type LoggingManager struct {
	bus *EventBus

	mu    sync.Mutex
	level LogLevel
}

// NewLoggingManager creates a logging manager with the default level of info.
func NewLoggingManager(bus *EventBus) *LoggingManager {
	return &LoggingManager{
		bus:   bus,
		level: LogLevelInfo,
	}
}

// Capability implements CapabilityManager.
func (m *LoggingManager) Capability() string { return "logging" }

// Claims implements CapabilityManager.
func (m *LoggingManager) Claims(method string) bool {
	return method == MethodLoggingSetLevel
}

// Execute implements CapabilityManager.
func (m *LoggingManager) Execute(_ context.Context, method string, params json.RawMessage) (any, error) {
	if method != MethodLoggingSetLevel {
		return nil, &JSONRPCError{
			Code:    jsonRPCMethodNotFoundCode,
			Message: fmt.Sprintf("Method [%s] not found", method),
		}
	}
	return m.setLevel(params)
}

func (m *LoggingManager) setLevel(rawParams json.RawMessage) (any, error) {
	var params SetLogLevelParams
	if len(rawParams) > 0 {
		if err := json.Unmarshal(rawParams, &params); err != nil {
			return nil, &JSONRPCError{
				Code:    jsonRPCInvalidParamsCode,
				Message: fmt.Sprintf("failed to unmarshal params: %s", err),
			}
		}
	}
	if params.Level == "" {
		return nil, &JSONRPCError{
			Code:    jsonRPCInvalidParamsCode,
			Message: "Missing required parameter: level",
		}
	}

	level, err := ParseLogLevel(params.Level)
	if err != nil {
		return nil, &JSONRPCError{
			Code:    jsonRPCInternalErrorCode,
			Message: err.Error(),
		}
	}

	m.mu.Lock()
	m.level = level
	m.mu.Unlock()

	return struct{}{}, nil
}

// Level returns the current minimum severity.
func (m *LoggingManager) Level() LogLevel {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.level
}

// Log publishes notifications/message when level is at or above the current
// severity threshold. logger and data are optional and omitted from the wire
// payload when empty.
func (m *LoggingManager) Log(level LogLevel, message string, logger string, data any) {
	m.mu.Lock()
	current := m.level
	m.mu.Unlock()

	if level > current {
		return
	}

	m.bus.Publish(EventMessage, LogParams{
		Level:   level.String(),
		Message: message,
		Logger:  logger,
		Data:    data,
	})
}

// EmitProgress publishes notifications/progress for the operation identified
// by token. A zero total means unknown. Empty tokens emit nothing; the
// current log level does not apply to progress.
func (m *LoggingManager) EmitProgress(token MustString, progress, total float64) {
	if token == "" {
		return
	}

	m.bus.Publish(EventProgress, ProgressParams{
		ProgressToken: token,
		Progress:      progress,
		Total:         total,
	})
}
