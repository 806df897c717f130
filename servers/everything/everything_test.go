package everything

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	mcp "github.com/MegaGrindStone/go-mcp-server"
)

func callTool(t *testing.T, server *mcp.Server, name, args string) mcp.CallToolResult {
	t.Helper()

	params, err := json.Marshal(mcp.CallToolParams{
		Name:      name,
		Arguments: json.RawMessage(args),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	result, err := server.Tools().Execute(context.Background(), mcp.MethodToolsCall, params)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return result.(mcp.CallToolResult)
}

func newTestServer(t *testing.T) (*mcp.Server, *Server) {
	t.Helper()

	server := mcp.NewServer(mcp.Info{Name: "test", Version: "1"})
	return server, New(server)
}

func TestEcho(t *testing.T) {
	server, _ := newTestServer(t)

	result := callTool(t, server, "echo", `{"message":"hi"}`)
	if result.IsError {
		t.Fatalf("isError = true: %+v", result.Content)
	}
	if len(result.Content) != 1 || result.Content[0].Text != "Echo: hi" {
		t.Errorf("content = %+v, want single text %q", result.Content, "Echo: hi")
	}
}

func TestEchoValidation(t *testing.T) {
	server, _ := newTestServer(t)

	// Schema validation failures surface as tool errors, not protocol errors.
	result := callTool(t, server, "echo", `{}`)
	if !result.IsError {
		t.Fatalf("isError = false for missing required argument")
	}
	if !strings.Contains(result.Content[0].Text, "validation failed") {
		t.Errorf("content = %+v", result.Content)
	}
}

func TestAdd(t *testing.T) {
	server, _ := newTestServer(t)

	result := callTool(t, server, "add", `{"a":2,"b":3}`)
	if result.IsError {
		t.Fatalf("isError = true: %+v", result.Content)
	}
	if !strings.Contains(result.Content[0].Text, "5") {
		t.Errorf("content = %+v", result.Content)
	}
}

func TestNotesLifecycle(t *testing.T) {
	server, srv := newTestServer(t)

	var updates []any
	server.Bus().Subscribe(mcp.EventResourcesUpdated, func(payload any) {
		updates = append(updates, payload)
	})

	// Writing a fresh note registers a new resource rather than notifying.
	srv.WriteNote("todo", "ship it")
	read, err := server.Resources().Execute(context.Background(), mcp.MethodResourcesRead,
		json.RawMessage(`{"uri":"example://notes/todo"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	contents := read.(mcp.ReadResourceResult).Contents
	if contents[0].Text != "ship it" {
		t.Errorf("contents = %+v", contents)
	}

	// Updates notify only subscribed URIs.
	if _, err := server.Resources().Execute(context.Background(), mcp.MethodResourcesSubscribe,
		json.RawMessage(`{"uri":"example://notes/todo"}`)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	srv.WriteNote("todo", "shipped")
	if len(updates) != 1 {
		t.Fatalf("got %d updates, want 1", len(updates))
	}

	srv.DeleteNote("todo")
	if _, err := server.Resources().Execute(context.Background(), mcp.MethodResourcesRead,
		json.RawMessage(`{"uri":"example://notes/todo"}`)); err == nil {
		t.Error("expected read of a deleted note to fail")
	}
}

func TestCompletionProvider(t *testing.T) {
	server, _ := newTestServer(t)

	params, err := json.Marshal(mcp.CompleteParams{
		Ref:      mcp.CompletionRef{Type: mcp.CompletionRefPrompt, Name: "simple_greeting"},
		Argument: mcp.CompletionArgument{Name: "name", Value: "a"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	result, err := server.Completion().Execute(context.Background(), mcp.MethodCompletionComplete, params)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	complete := result.(mcp.CompleteResult)
	if len(complete.Completion.Values) != 1 || complete.Completion.Values[0] != "Alice" {
		t.Errorf("values = %v, want [Alice]", complete.Completion.Values)
	}
}

func TestPromptBuilders(t *testing.T) {
	server, _ := newTestServer(t)

	result, err := server.Prompts().Execute(context.Background(), mcp.MethodPromptsGet,
		json.RawMessage(`{"name":"code_review","arguments":{"code":"x := 1","language":"go"}}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := result.(mcp.GetPromptResult)
	if len(got.Messages) != 1 {
		t.Fatalf("messages = %+v", got.Messages)
	}
	content := got.Messages[0].Content
	if len(content) != 3 {
		t.Fatalf("got %d content items, want 3", len(content))
	}
	if content[1].Type != mcp.ContentTypeResource || content[1].Resource.Text != "x := 1" {
		t.Errorf("resource item = %+v", content[1])
	}
	if content[2].Type != mcp.ContentTypeImage || content[2].MimeType != "image/png" {
		t.Errorf("image item = %+v", content[2])
	}
}
