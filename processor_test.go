package mcp

import (
	"context"
	"encoding/json"
	"testing"
)

func testServer() *Server {
	return NewServer(Info{Name: "test-server", Version: "1.0.0"})
}

func processRaw(t *testing.T, server *Server, raw string) JSONRPCMessage {
	t.Helper()

	reply := server.Processor().Process(context.Background(), []byte(raw))
	if reply == nil {
		t.Fatal("expected a reply frame")
	}
	var msg JSONRPCMessage
	if err := json.Unmarshal(reply, &msg); err != nil {
		t.Fatalf("reply is not valid JSON-RPC: %v", err)
	}
	return msg
}

func TestProcessorParseError(t *testing.T) {
	server := testServer()

	msg := processRaw(t, server, `{"jsonrpc":`)
	if msg.Error == nil {
		t.Fatal("expected an error reply")
	}
	if msg.Error.Code != -32700 {
		t.Errorf("code = %d, want -32700", msg.Error.Code)
	}
	if string(msg.ID) != "null" {
		t.Errorf("id = %s, want null", msg.ID)
	}
}

func TestProcessorMethodNotFound(t *testing.T) {
	server := testServer()

	msg := processRaw(t, server, `{"jsonrpc":"2.0","id":1,"method":"no/such"}`)
	if msg.Error == nil {
		t.Fatal("expected an error reply")
	}
	if msg.Error.Code != -32601 {
		t.Errorf("code = %d, want -32601", msg.Error.Code)
	}
	if msg.Error.Message != "Method [no/such] not found" {
		t.Errorf("message = %q, want %q", msg.Error.Message, "Method [no/such] not found")
	}
}

func TestProcessorMissingMethod(t *testing.T) {
	server := testServer()

	msg := processRaw(t, server, `{"jsonrpc":"2.0","id":1}`)
	if msg.Error == nil || msg.Error.Code != -32600 {
		t.Fatalf("reply = %+v, want -32600 error", msg)
	}
}

func TestProcessorNotificationsProduceNoReply(t *testing.T) {
	server := testServer()

	testCases := []struct {
		name string
		raw  string
	}{
		{name: "initialized", raw: `{"jsonrpc":"2.0","method":"notifications/initialized"}`},
		{name: "cancelled", raw: `{"jsonrpc":"2.0","method":"notifications/cancelled","params":{"requestId":1}}`},
		{name: "unknown notification", raw: `{"jsonrpc":"2.0","method":"no/such"}`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if reply := server.Processor().Process(context.Background(), []byte(tc.raw)); reply != nil {
				t.Errorf("got reply %s, want none", reply)
			}
		})
	}
}

func TestProcessorPing(t *testing.T) {
	server := testServer()

	msg := processRaw(t, server, `{"jsonrpc":"2.0","id":2,"method":"ping"}`)
	if msg.Error != nil {
		t.Fatalf("unexpected error: %v", msg.Error)
	}
	if string(msg.ID) != "2" {
		t.Errorf("id = %s, want 2", msg.ID)
	}
	if string(msg.Result) != "{}" {
		t.Errorf("result = %s, want {}", msg.Result)
	}
}

func TestProcessorHandlerErrorMapping(t *testing.T) {
	server := testServer()

	// A domain error from a manager keeps its code and message.
	msg := processRaw(t, server,
		`{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"nope"}}`)
	if msg.Error == nil {
		t.Fatal("expected an error reply")
	}
	if msg.Error.Code != -32603 {
		t.Errorf("code = %d, want -32603", msg.Error.Code)
	}
	if msg.Error.Message != "Tool not found: nope" {
		t.Errorf("message = %q", msg.Error.Message)
	}
}

func TestProcessorEndToEndToolCall(t *testing.T) {
	server := testServer()
	tool, handler := echoTool()
	server.Tools().Register(tool, handler)

	msg := processRaw(t, server,
		`{"jsonrpc":"2.0","id":4,"method":"tools/call","params":{"name":"echo","arguments":{"message":"hi"}}}`)
	if msg.Error != nil {
		t.Fatalf("unexpected error: %v", msg.Error)
	}

	var result CallToolResult
	if err := json.Unmarshal(msg.Result, &result); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Error("isError = true, want false")
	}
	if len(result.Content) != 1 || result.Content[0].Text != "Echo: hi" {
		t.Errorf("content = %+v", result.Content)
	}
}
