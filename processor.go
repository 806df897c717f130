package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
)

// RequestProcessor is the glue between transports and capability managers: it
// parses the JSON-RPC envelope, routes the method through the registry,
// executes the handler, and serializes the reply frame.
//
// Both transports share one processor; the transport-specific concerns
// (session gating, SSE framing, stream writes) stay out of it.
type RequestProcessor struct {
	registry *Registry
	logger   *slog.Logger
}

// jsonRPCResponse mirrors JSONRPCMessage on the write side, with an untyped
// ID so parse-error replies can carry the JSON null id the standard requires.
type jsonRPCResponse struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      any           `json:"id"`
	Result  any           `json:"result,omitempty"`
	Error   *JSONRPCError `json:"error,omitempty"`
}

// NewRequestProcessor creates a processor dispatching against registry.
func NewRequestProcessor(registry *Registry, logger *slog.Logger) *RequestProcessor {
	if logger == nil {
		logger = slog.Default()
	}
	return &RequestProcessor{
		registry: registry,
		logger:   logger.With(slog.String("component", "processor")),
	}
}

// Process handles one raw JSON-RPC frame and returns the serialized reply, or
// nil when the frame was a notification and no reply must be written. The
// transport attaches the caller's session id to ctx when it knows one.
func (p *RequestProcessor) Process(ctx context.Context, raw []byte) []byte {
	var msg JSONRPCMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return marshalResponse(jsonRPCResponse{
			JSONRPC: JSONRPCVersion,
			Error: &JSONRPCError{
				Code:    jsonRPCParseErrorCode,
				Message: fmt.Sprintf("Parse error: %s", err),
			},
		})
	}

	if msg.Method == "" {
		return p.errorReply(msg, &JSONRPCError{
			Code:    jsonRPCInvalidRequestCode,
			Message: "Invalid request: missing method",
		})
	}

	manager, ok := p.registry.Lookup(msg.Method)
	if !ok {
		return p.errorReply(msg, &JSONRPCError{
			Code:    jsonRPCMethodNotFoundCode,
			Message: fmt.Sprintf("Method [%s] not found", msg.Method),
		})
	}

	if !msg.IsNotification() {
		var requestID MustString
		if err := json.Unmarshal(msg.ID, &requestID); err == nil {
			ctx = ContextWithRequestID(ctx, requestID)
		}
	}

	result, err := p.execute(ctx, manager, msg.Method, msg.Params)
	if err != nil {
		p.logger.Debug("handler returned error",
			slog.String("method", msg.Method),
			slog.String("err", err.Error()))
		return p.errorReply(msg, toJSONRPCError(err))
	}

	// Notifications and handlers with nothing to say produce no frame.
	if result == nil || msg.IsNotification() {
		return nil
	}

	return marshalResponse(jsonRPCResponse{
		JSONRPC: JSONRPCVersion,
		ID:      msg.ID,
		Result:  result,
	})
}

// execute shields the dispatch path from handler panics.
func (p *RequestProcessor) execute(
	ctx context.Context,
	manager CapabilityManager,
	method string,
	params json.RawMessage,
) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("handler panicked",
				slog.String("method", method),
				slog.Any("panic", r))
			err = &JSONRPCError{
				Code:    jsonRPCInternalErrorCode,
				Message: fmt.Sprintf("handler panicked: %v", r),
			}
		}
	}()

	return manager.Execute(ctx, method, params)
}

// errorReply builds an error frame, suppressing it entirely for notifications.
func (p *RequestProcessor) errorReply(msg JSONRPCMessage, rpcErr *JSONRPCError) []byte {
	if msg.IsNotification() {
		return nil
	}
	return marshalResponse(jsonRPCResponse{
		JSONRPC: JSONRPCVersion,
		ID:      msg.ID,
		Error:   rpcErr,
	})
}

func toJSONRPCError(err error) *JSONRPCError {
	var ptrErr *JSONRPCError
	if errors.As(err, &ptrErr) {
		return ptrErr
	}
	var valErr JSONRPCError
	if errors.As(err, &valErr) {
		return &valErr
	}
	return &JSONRPCError{
		Code:    jsonRPCInternalErrorCode,
		Message: err.Error(),
	}
}

func marshalResponse(res jsonRPCResponse) []byte {
	bs, err := json.Marshal(res)
	if err != nil {
		// The response shape is fully under server control; a marshal failure
		// here is a programming error.
		return []byte(fmt.Sprintf(
			`{"jsonrpc":"2.0","id":null,"error":{"code":%d,"message":"Internal error"}}`,
			jsonRPCInternalErrorCode))
	}
	return bs
}
