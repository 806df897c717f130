package everything

import (
	"context"
	"encoding/json"
	"fmt"

	mcp "github.com/MegaGrindStone/go-mcp-server"
)

func (s *Server) registerPrompts() {
	prompts := s.mcp.Prompts()

	prompts.Register(mcp.Prompt{
		Name:        "simple_greeting",
		Description: "A friendly greeting",
		Arguments: []mcp.PromptArgument{
			{Name: "name", Description: "Who to greet", Required: true},
		},
	}, buildSimpleGreeting)

	prompts.Register(mcp.Prompt{
		Name:        "code_review",
		Description: "Review a code snippet",
		Arguments: []mcp.PromptArgument{
			{Name: "code", Description: "The code to review", Required: true},
			{Name: "language", Description: "The language of the snippet"},
		},
	}, buildCodeReview)
}

func buildSimpleGreeting(_ context.Context, args json.RawMessage) ([]mcp.PromptMessage, error) {
	var params struct {
		Name string `json:"name"`
	}
	if len(args) > 0 {
		if err := json.Unmarshal(args, &params); err != nil {
			return nil, fmt.Errorf("failed to unmarshal arguments: %w", err)
		}
	}
	if params.Name == "" {
		return nil, fmt.Errorf("missing required argument: name")
	}

	return []mcp.PromptMessage{
		{
			Role: mcp.RoleUser,
			Content: []mcp.Content{
				{Type: mcp.ContentTypeText, Text: fmt.Sprintf("Please greet %s warmly.", params.Name)},
			},
		},
		{
			Role: mcp.RoleAssistant,
			Content: []mcp.Content{
				{Type: mcp.ContentTypeText, Text: fmt.Sprintf("Hello, %s! Great to see you.", params.Name)},
			},
		},
	}, nil
}

func buildCodeReview(_ context.Context, args json.RawMessage) ([]mcp.PromptMessage, error) {
	var params struct {
		Code     string `json:"code"`
		Language string `json:"language"`
	}
	if len(args) > 0 {
		if err := json.Unmarshal(args, &params); err != nil {
			return nil, fmt.Errorf("failed to unmarshal arguments: %w", err)
		}
	}
	if params.Code == "" {
		return nil, fmt.Errorf("missing required argument: code")
	}

	language := params.Language
	if language == "" {
		language = "unknown"
	}

	return []mcp.PromptMessage{
		{
			Role: mcp.RoleUser,
			Content: []mcp.Content{
				{
					Type: mcp.ContentTypeText,
					Text: fmt.Sprintf("Review the following %s code for correctness and style:", language),
				},
				{
					Type: mcp.ContentTypeResource,
					Resource: &mcp.ResourceContents{
						URI:      "example://review/snippet",
						MimeType: "text/plain",
						Text:     params.Code,
					},
				},
				{
					Type:     mcp.ContentTypeImage,
					MimeType: "image/png",
					Data:     tinyPNG,
				},
			},
		},
	}, nil
}
