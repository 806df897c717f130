package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func echoTool() (Tool, ToolHandler) {
	tool := Tool{
		Name:        "echo",
		Description: "Echoes back the input",
		InputSchema: json.RawMessage(`{"type":"object","properties":{"message":{"type":"string"}}}`),
	}
	handler := func(_ context.Context, args json.RawMessage) (CallToolResult, error) {
		var params struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(args, &params); err != nil {
			return CallToolResult{}, err
		}
		return CallToolResult{
			Content: []Content{{Type: ContentTypeText, Text: "Echo: " + params.Message}},
		}, nil
	}
	return tool, handler
}

func TestToolsListOrder(t *testing.T) {
	manager := NewToolsManager(NewEventBus())

	for _, name := range []string{"zeta", "alpha", "mid"} {
		manager.Register(Tool{Name: name}, func(context.Context, json.RawMessage) (CallToolResult, error) {
			return CallToolResult{}, nil
		})
	}

	result, err := manager.Execute(context.Background(), MethodToolsList, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	list, ok := result.(ListToolsResult)
	if !ok {
		t.Fatalf("result type %T, want ListToolsResult", result)
	}

	want := []string{"zeta", "alpha", "mid"}
	if len(list.Tools) != len(want) {
		t.Fatalf("got %d tools, want %d", len(list.Tools), len(want))
	}
	for i, tool := range list.Tools {
		if tool.Name != want[i] {
			t.Errorf("tools[%d] = %s, want %s", i, tool.Name, want[i])
		}
	}
}

func TestToolsCall(t *testing.T) {
	manager := NewToolsManager(NewEventBus())
	tool, handler := echoTool()
	manager.Register(tool, handler)

	params := json.RawMessage(`{"name":"echo","arguments":{"message":"hi"}}`)
	result, err := manager.Execute(context.Background(), MethodToolsCall, params)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	callResult, ok := result.(CallToolResult)
	if !ok {
		t.Fatalf("result type %T, want CallToolResult", result)
	}
	if callResult.IsError {
		t.Fatal("isError = true, want false")
	}
	if len(callResult.Content) != 1 || callResult.Content[0].Text != "Echo: hi" {
		t.Errorf("content = %+v, want single text item %q", callResult.Content, "Echo: hi")
	}
}

func TestToolsCallUnknown(t *testing.T) {
	manager := NewToolsManager(NewEventBus())

	params := json.RawMessage(`{"name":"missing","arguments":{}}`)
	_, err := manager.Execute(context.Background(), MethodToolsCall, params)
	if err == nil {
		t.Fatal("expected error for unknown tool")
	}

	var rpcErr *JSONRPCError
	if !errors.As(err, &rpcErr) {
		t.Fatalf("error type %T, want *JSONRPCError", err)
	}
	if rpcErr.Code != -32603 {
		t.Errorf("code = %d, want -32603", rpcErr.Code)
	}
	if rpcErr.Message != "Tool not found: missing" {
		t.Errorf("message = %q, want %q", rpcErr.Message, "Tool not found: missing")
	}
}

func TestToolsCallHandlerFailure(t *testing.T) {
	testCases := []struct {
		name    string
		handler ToolHandler
		wantIn  string
	}{
		{
			name: "handler error",
			handler: func(context.Context, json.RawMessage) (CallToolResult, error) {
				return CallToolResult{}, errors.New("disk on fire")
			},
			wantIn: "disk on fire",
		},
		{
			name: "handler panic",
			handler: func(context.Context, json.RawMessage) (CallToolResult, error) {
				panic("unexpected nil")
			},
			wantIn: "unexpected nil",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			manager := NewToolsManager(NewEventBus())
			manager.Register(Tool{Name: "broken"}, tc.handler)

			params := json.RawMessage(`{"name":"broken"}`)
			result, err := manager.Execute(context.Background(), MethodToolsCall, params)
			if err != nil {
				t.Fatalf("handler failure should not fail the request, got: %v", err)
			}

			callResult := result.(CallToolResult)
			if !callResult.IsError {
				t.Fatal("isError = false, want true")
			}
			if len(callResult.Content) != 1 || !strings.Contains(callResult.Content[0].Text, tc.wantIn) {
				t.Errorf("content = %+v, want text containing %q", callResult.Content, tc.wantIn)
			}
		})
	}
}

func TestToolsRegisterEvents(t *testing.T) {
	bus := NewEventBus()
	manager := NewToolsManager(bus)

	var events int
	bus.Subscribe(EventToolsListChanged, func(any) { events++ })

	tool, handler := echoTool()
	manager.Register(tool, handler)
	if events != 1 {
		t.Fatalf("events after register = %d, want 1", events)
	}

	// Re-registering the same name is a no-op and publishes nothing.
	manager.Register(tool, handler)
	if events != 1 {
		t.Fatalf("events after duplicate register = %d, want 1", events)
	}

	manager.Unregister("echo")
	if events != 2 {
		t.Fatalf("events after unregister = %d, want 2", events)
	}

	manager.Unregister("echo")
	if events != 2 {
		t.Errorf("events after duplicate unregister = %d, want 2", events)
	}
}
