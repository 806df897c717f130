package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
)

func TestCompletionComplete(t *testing.T) {
	manager := NewCompletionManager()
	manager.SetProvider(func(_ context.Context, params CompleteParams) ([]string, error) {
		if params.Ref.Name != "greeting" || params.Argument.Name != "name" {
			return nil, nil
		}
		return []string{"Alice", "Alan"}, nil
	})

	params := json.RawMessage(`{"ref":{"type":"ref/prompt","name":"greeting"},` +
		`"argument":{"name":"name","value":"Al"}}`)
	result, err := manager.Execute(context.Background(), MethodCompletionComplete, params)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	complete := result.(CompleteResult)
	if len(complete.Completion.Values) != 2 {
		t.Fatalf("values = %v, want 2 entries", complete.Completion.Values)
	}
	if complete.Completion.HasMore {
		t.Error("hasMore = true, want false")
	}
	if complete.Completion.Total != 2 {
		t.Errorf("total = %d, want 2", complete.Completion.Total)
	}
}

func TestCompletionWithoutProvider(t *testing.T) {
	manager := NewCompletionManager()

	params := json.RawMessage(`{"ref":{"type":"ref/resource","uri":"file://{path}"},` +
		`"argument":{"name":"path","value":""}}`)
	result, err := manager.Execute(context.Background(), MethodCompletionComplete, params)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	complete := result.(CompleteResult)
	if len(complete.Completion.Values) != 0 {
		t.Errorf("values = %v, want empty", complete.Completion.Values)
	}
}

func TestCompletionInvalidRef(t *testing.T) {
	manager := NewCompletionManager()

	params := json.RawMessage(`{"ref":{"type":"ref/tool","name":"x"},"argument":{"name":"a","value":""}}`)
	_, err := manager.Execute(context.Background(), MethodCompletionComplete, params)
	var rpcErr *JSONRPCError
	if !errors.As(err, &rpcErr) {
		t.Fatalf("error type %T, want *JSONRPCError", err)
	}
	if rpcErr.Code != -32603 {
		t.Errorf("code = %d, want -32603", rpcErr.Code)
	}
}

func TestCompletionCapsValues(t *testing.T) {
	manager := NewCompletionManager()
	manager.SetProvider(func(context.Context, CompleteParams) ([]string, error) {
		values := make([]string, 150)
		for i := range values {
			values[i] = fmt.Sprintf("value-%03d", i)
		}
		return values, nil
	})

	params := json.RawMessage(`{"ref":{"type":"ref/prompt","name":"p"},"argument":{"name":"a","value":""}}`)
	result, err := manager.Execute(context.Background(), MethodCompletionComplete, params)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	complete := result.(CompleteResult)
	if len(complete.Completion.Values) != 100 {
		t.Errorf("values capped at %d, want 100", len(complete.Completion.Values))
	}
	if !complete.Completion.HasMore {
		t.Error("hasMore = false, want true")
	}
	if complete.Completion.Total != 150 {
		t.Errorf("total = %d, want 150", complete.Completion.Total)
	}
}
