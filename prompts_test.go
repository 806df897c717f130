package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
)

func greetingPrompt() (Prompt, PromptBuilder) {
	prompt := Prompt{
		Name:        "greeting",
		Description: "A friendly greeting",
		Arguments: []PromptArgument{
			{Name: "name", Description: "Who to greet", Required: true},
		},
	}
	builder := func(_ context.Context, args json.RawMessage) ([]PromptMessage, error) {
		var params struct {
			Name string `json:"name"`
		}
		if len(args) > 0 {
			if err := json.Unmarshal(args, &params); err != nil {
				return nil, err
			}
		}
		return []PromptMessage{
			{
				Role:    RoleUser,
				Content: []Content{{Type: ContentTypeText, Text: "Greet " + params.Name}},
			},
		}, nil
	}
	return prompt, builder
}

func TestPromptsListAndGet(t *testing.T) {
	manager := NewPromptsManager(NewEventBus())
	prompt, builder := greetingPrompt()
	manager.Register(prompt, builder)

	result, err := manager.Execute(context.Background(), MethodPromptsList, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	list := result.(ListPromptsResult)
	if len(list.Prompts) != 1 {
		t.Fatalf("got %d prompts, want 1", len(list.Prompts))
	}
	if len(list.Prompts[0].Arguments) != 1 || !list.Prompts[0].Arguments[0].Required {
		t.Errorf("arguments = %+v", list.Prompts[0].Arguments)
	}

	getResult, err := manager.Execute(context.Background(), MethodPromptsGet,
		json.RawMessage(`{"name":"greeting","arguments":{"name":"Ada"}}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := getResult.(GetPromptResult)
	if got.Description != "A friendly greeting" {
		t.Errorf("description = %q", got.Description)
	}
	if len(got.Messages) != 1 || got.Messages[0].Role != RoleUser {
		t.Fatalf("messages = %+v", got.Messages)
	}
	if got.Messages[0].Content[0].Text != "Greet Ada" {
		t.Errorf("content text = %q, want %q", got.Messages[0].Content[0].Text, "Greet Ada")
	}
}

func TestPromptsGetUnknown(t *testing.T) {
	manager := NewPromptsManager(NewEventBus())

	_, err := manager.Execute(context.Background(), MethodPromptsGet,
		json.RawMessage(`{"name":"missing"}`))
	var rpcErr *JSONRPCError
	if !errors.As(err, &rpcErr) {
		t.Fatalf("error type %T, want *JSONRPCError", err)
	}
	if rpcErr.Message != "Prompt not found: missing" {
		t.Errorf("message = %q, want %q", rpcErr.Message, "Prompt not found: missing")
	}
}

func TestPromptsRegisterEvents(t *testing.T) {
	bus := NewEventBus()
	manager := NewPromptsManager(bus)

	var events int
	bus.Subscribe(EventPromptsListChanged, func(any) { events++ })

	prompt, builder := greetingPrompt()
	manager.Register(prompt, builder)
	manager.Register(prompt, builder)
	if events != 1 {
		t.Fatalf("events = %d, want 1", events)
	}

	manager.Unregister("greeting")
	manager.Unregister("greeting")
	if events != 2 {
		t.Errorf("events = %d, want 2", events)
	}
}
