package everything

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	mcp "github.com/MegaGrindStone/go-mcp-server"
	"github.com/qri-io/jsonschema"
)

const echoSchemaJSON = `{
  "type": "object",
  "properties": {
    "message": { "type": "string" }
  },
  "required": ["message"]
}`

const addSchemaJSON = `{
  "type": "object",
  "properties": {
    "a": { "type": "number" },
    "b": { "type": "number" }
  },
  "required": ["a", "b"]
}`

const currentTimeSchemaJSON = `{
  "type": "object",
  "properties": {
    "timezone": { "type": "string" }
  }
}`

const longRunningOperationSchemaJSON = `{
  "type": "object",
  "properties": {
    "duration": { "type": "number", "default": 1 },
    "steps": { "type": "number", "default": 5 },
    "progressToken": { "type": "string" }
  }
}`

var (
	echoSchema                 = jsonschema.Must(echoSchemaJSON)
	addSchema                  = jsonschema.Must(addSchemaJSON)
	currentTimeSchema          = jsonschema.Must(currentTimeSchemaJSON)
	longRunningOperationSchema = jsonschema.Must(longRunningOperationSchemaJSON)
)

func (s *Server) registerTools() {
	tools := s.mcp.Tools()

	tools.Register(mcp.Tool{
		Name:        "echo",
		Description: "Echoes back the input",
		InputSchema: json.RawMessage(echoSchemaJSON),
	}, s.callEcho)

	tools.Register(mcp.Tool{
		Name:        "add",
		Description: "Adds two numbers",
		InputSchema: json.RawMessage(addSchemaJSON),
	}, s.callAdd)

	tools.Register(mcp.Tool{
		Name:        "currentTime",
		Description: "Returns the current time, optionally in a named timezone",
		InputSchema: json.RawMessage(currentTimeSchemaJSON),
	}, s.callCurrentTime)

	tools.Register(mcp.Tool{
		Name:        "longRunningOperation",
		Description: "Demonstrates a long running operation with progress updates",
		InputSchema: json.RawMessage(longRunningOperationSchemaJSON),
	}, s.callLongRunningOperation)
}

func validateArgs(ctx context.Context, schema *jsonschema.Schema, args json.RawMessage) error {
	if len(args) == 0 {
		args = json.RawMessage(`{}`)
	}
	keyErrs, err := schema.ValidateBytes(ctx, args)
	if err != nil {
		return fmt.Errorf("params validation failed: %w", err)
	}
	if len(keyErrs) > 0 {
		msgs := make([]string, len(keyErrs))
		for i, keyErr := range keyErrs {
			msgs[i] = keyErr.Message
		}
		return fmt.Errorf("params validation failed: %s", strings.Join(msgs, ", "))
	}
	return nil
}

func (s *Server) callEcho(ctx context.Context, args json.RawMessage) (mcp.CallToolResult, error) {
	if err := validateArgs(ctx, echoSchema, args); err != nil {
		return mcp.CallToolResult{}, err
	}

	var params struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return mcp.CallToolResult{}, fmt.Errorf("failed to unmarshal arguments: %w", err)
	}

	return textResult(fmt.Sprintf("Echo: %s", params.Message)), nil
}

func (s *Server) callAdd(ctx context.Context, args json.RawMessage) (mcp.CallToolResult, error) {
	if err := validateArgs(ctx, addSchema, args); err != nil {
		return mcp.CallToolResult{}, err
	}

	var params struct {
		A float64 `json:"a"`
		B float64 `json:"b"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return mcp.CallToolResult{}, fmt.Errorf("failed to unmarshal arguments: %w", err)
	}

	return textResult(fmt.Sprintf("The sum of %g and %g is %g", params.A, params.B, params.A+params.B)), nil
}

func (s *Server) callCurrentTime(ctx context.Context, args json.RawMessage) (mcp.CallToolResult, error) {
	if err := validateArgs(ctx, currentTimeSchema, args); err != nil {
		return mcp.CallToolResult{}, err
	}

	var params struct {
		Timezone string `json:"timezone"`
	}
	if len(args) > 0 {
		if err := json.Unmarshal(args, &params); err != nil {
			return mcp.CallToolResult{}, fmt.Errorf("failed to unmarshal arguments: %w", err)
		}
	}

	now := time.Now()
	if params.Timezone != "" {
		loc, err := time.LoadLocation(params.Timezone)
		if err != nil {
			return mcp.CallToolResult{}, fmt.Errorf("unknown timezone: %s", params.Timezone)
		}
		now = now.In(loc)
	}

	return textResult(now.Format(time.RFC3339)), nil
}

// callLongRunningOperation sleeps through the requested steps, reporting
// progress after each one and aborting early when the request is cancelled or
// the client goes away.
func (s *Server) callLongRunningOperation(ctx context.Context, args json.RawMessage) (mcp.CallToolResult, error) {
	if err := validateArgs(ctx, longRunningOperationSchema, args); err != nil {
		return mcp.CallToolResult{}, err
	}

	params := struct {
		Duration      float64 `json:"duration"`
		Steps         float64 `json:"steps"`
		ProgressToken string  `json:"progressToken"`
	}{Duration: 1, Steps: 5}
	if len(args) > 0 {
		if err := json.Unmarshal(args, &params); err != nil {
			return mcp.CallToolResult{}, fmt.Errorf("failed to unmarshal arguments: %w", err)
		}
	}
	if params.Steps < 1 {
		params.Steps = 1
	}

	requestID, _ := mcp.RequestIDFromContext(ctx)
	stepDuration := time.Duration(params.Duration / params.Steps * float64(time.Second))

	for i := 0; i < int(params.Steps); i++ {
		timer := time.NewTimer(stepDuration)
		select {
		case <-ctx.Done():
			timer.Stop()
			return mcp.CallToolResult{}, ctx.Err()
		case <-timer.C:
		}

		if requestID != "" {
			if reason, cancelled := s.mcp.Core().IsCancelled(requestID); cancelled {
				s.mcp.Core().ClearCancelled(requestID)
				if reason == "" {
					reason = "cancelled"
				}
				return mcp.CallToolResult{}, fmt.Errorf("operation cancelled: %s", reason)
			}
		}

		s.mcp.Logging().EmitProgress(mcp.MustString(params.ProgressToken), float64(i+1), params.Steps)
	}

	return textResult(fmt.Sprintf(
		"Long running operation completed. Duration: %g seconds, Steps: %g", params.Duration, params.Steps)), nil
}

func textResult(text string) mcp.CallToolResult {
	return mcp.CallToolResult{
		Content: []mcp.Content{
			{
				Type: mcp.ContentTypeText,
				Text: text,
			},
		},
		IsError: false,
	}
}
