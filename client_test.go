package mcp

import (
	"context"
	"encoding/json"
	"regexp"
	"testing"
	"time"
)

func TestStreamableClientHandshakeAndCall(t *testing.T) {
	server := testServer()
	tool, handler := echoTool()
	server.Tools().Register(tool, handler)
	_, ts := startStreamable(t, server)

	client := NewStreamableClient(ts.URL+"/mcp", nil)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	result, err := client.Initialize(ctx, Info{Name: "test-client", Version: "1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !regexp.MustCompile(`^[0-9a-fA-F]{32}$`).MatchString(string(result.SessionID)) {
		t.Errorf("sessionId = %q", result.SessionID)
	}
	if client.SessionID() != result.SessionID {
		t.Errorf("client session = %q, want %q", client.SessionID(), result.SessionID)
	}

	msg, err := client.Call(ctx, MethodToolsCall, CallToolParams{
		Name:      "echo",
		Arguments: json.RawMessage(`{"message":"hi"}`),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.Error != nil {
		t.Fatalf("call failed: %v", msg.Error)
	}

	var callResult CallToolResult
	if err := json.Unmarshal(msg.Result, &callResult); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if callResult.Content[0].Text != "Echo: hi" {
		t.Errorf("content = %+v", callResult.Content)
	}
}

func TestStreamableClientStream(t *testing.T) {
	server := testServer()
	server.Resources().Register(Resource{URI: "file://x", Name: "x"},
		TextResourceReader("file://x", "text/plain", "x"))
	_, ts := startStreamable(t, server)

	client := NewStreamableClient(ts.URL+"/mcp", nil)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := client.Initialize(ctx, Info{Name: "test-client", Version: "1"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stream, err := client.Stream(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if msg, err := client.Call(ctx, MethodResourcesSubscribe,
		SubscribeResourceParams{URI: "file://x"}); err != nil || msg.Error != nil {
		t.Fatalf("subscribe failed: %v, %v", err, msg.Error)
	}

	received := make(chan JSONRPCMessage, 1)
	go func() {
		for msg := range stream {
			if msg.Method == EventResourcesUpdated {
				received <- msg
				return
			}
		}
	}()

	// Give the stream reader a moment to attach before triggering the event.
	time.Sleep(100 * time.Millisecond)
	server.Resources().NotifyUpdated("file://x")

	select {
	case msg := <-received:
		var params ResourceUpdatedParams
		if err := json.Unmarshal(msg.Params, &params); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if params.URI != "file://x" {
			t.Errorf("uri = %q, want file://x", params.URI)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for the updated notification")
	}
}

func TestStreamableClientTerminate(t *testing.T) {
	server := testServer()
	_, ts := startStreamable(t, server)

	client := NewStreamableClient(ts.URL+"/mcp", nil)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := client.Initialize(ctx, Info{Name: "test-client", Version: "1"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := client.Terminate(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client.SessionID() != "" {
		t.Errorf("session id = %q after terminate, want empty", client.SessionID())
	}
}
