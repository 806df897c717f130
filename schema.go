package mcp

import (
	"encoding/json"
)

// Info contains metadata about a server or client instance including its name and version.
type Info struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// ServerCapabilities represents server capabilities advertised during initialization.
type ServerCapabilities struct {
	Tools       *ToolsCapability       `json:"tools,omitempty"`
	Resources   *ResourcesCapability   `json:"resources,omitempty"`
	Prompts     *PromptsCapability     `json:"prompts,omitempty"`
	Logging     *LoggingCapability     `json:"logging,omitempty"`
	Completions *CompletionsCapability `json:"completions,omitempty"`
}

// ToolsCapability represents tools-specific capabilities.
type ToolsCapability struct {
	ListChanged bool `json:"listChanged,omitempty"`
}

// ResourcesCapability represents resources-specific capabilities.
type ResourcesCapability struct {
	Subscribe   bool `json:"subscribe,omitempty"`
	ListChanged bool `json:"listChanged,omitempty"`
}

// PromptsCapability represents prompts-specific capabilities.
type PromptsCapability struct {
	ListChanged bool `json:"listChanged,omitempty"`
}

// LoggingCapability represents logging-specific capabilities.
type LoggingCapability struct{}

// CompletionsCapability represents completion-specific capabilities.
type CompletionsCapability struct{}

// InitializeParams contains the client half of the initialization handshake.
type InitializeParams struct {
	ProtocolVersion string `json:"protocolVersion"`
	ClientInfo      Info   `json:"clientInfo"`
}

// InitializeResult is the server half of the initialization handshake. SessionID
// must be carried by the client in the Mcp-Session-Id header on every
// subsequent request over the HTTP transport.
type InitializeResult struct {
	ProtocolVersion string             `json:"protocolVersion"`
	Capabilities    ServerCapabilities `json:"capabilities"`
	SessionID       SessionID          `json:"sessionId"`
	ServerInfo      Info               `json:"serverInfo"`
}

// Tool defines a callable tool with its input schema.
// InputSchema is an opaque JSON-Schema object describing the expected arguments
// for CallTool; the server passes arguments through to the handler unvalidated.
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"inputSchema,omitempty"`
}

// ListToolsResult lists every registered tool in registration order.
type ListToolsResult struct {
	Tools []Tool `json:"tools"`
}

// CallToolParams contains parameters for executing a specific tool.
type CallToolParams struct {
	// Name is the unique identifier of the tool to execute
	Name string `json:"name"`

	// Arguments is a JSON object of argument name-value pairs. Its shape is
	// owned by the tool handler; the protocol core does not inspect it.
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// CallToolResult represents the outcome of a tool invocation via CallTool.
// IsError indicates whether the operation failed, with details in Content.
type CallToolResult struct {
	Content []Content `json:"content"`
	IsError bool      `json:"isError"`
}

// Resource represents a content resource in the system with associated metadata.
// The content itself is produced by the ResourceReader registered alongside it.
type Resource struct {
	URI         string `json:"uri"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	MimeType    string `json:"mimeType,omitempty"`
}

// ResourceTemplate advertises an RFC 6570 URI template. The server treats the
// template string as opaque; clients expand it and read the expanded URI.
type ResourceTemplate struct {
	URITemplate string `json:"uriTemplate"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	MimeType    string `json:"mimeType,omitempty"`
}

// ResourceContents represents either text or blob resource contents.
// Text carries UTF-8; Blob carries base64-encoded bytes.
type ResourceContents struct {
	URI      string `json:"uri"`
	MimeType string `json:"mimeType,omitempty"`
	Text     string `json:"text,omitempty"`
	Blob     string `json:"blob,omitempty"`
}

// ListResourcesParams contains parameters for listing available resources.
type ListResourcesParams struct {
	// Cursor is a pagination cursor from a previous ListResources call.
	// Empty string requests the first page.
	Cursor string `json:"cursor,omitempty"`

	// Limit bounds the page size. Zero or negative values fall back to the default of 100.
	Limit int `json:"limit,omitempty"`
}

// ListResourcesResult represents a paginated list of resources.
// NextCursor, when present, retrieves the next page.
type ListResourcesResult struct {
	Resources  []Resource `json:"resources"`
	NextCursor string     `json:"nextCursor,omitempty"`
}

// ReadResourceParams contains parameters for retrieving a specific resource.
type ReadResourceParams struct {
	URI string `json:"uri"`
}

// ReadResourceResult represents the result of a read resource request.
type ReadResourceResult struct {
	Contents []ResourceContents `json:"contents"`
}

// ListResourceTemplatesResult lists every registered resource template.
type ListResourceTemplatesResult struct {
	ResourceTemplates []ResourceTemplate `json:"resourceTemplates"`
}

// SubscribeResourceParams contains parameters for subscribing to a resource.
type SubscribeResourceParams struct {
	URI string `json:"uri"`
}

// UnsubscribeResourceParams contains parameters for unsubscribing from a resource.
type UnsubscribeResourceParams struct {
	URI string `json:"uri"`
}

// ResourceUpdatedParams is the payload of notifications/resources/updated.
type ResourceUpdatedParams struct {
	URI string `json:"uri"`
}

// Prompt defines a template for generating prompt messages with optional arguments.
type Prompt struct {
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	Arguments   []PromptArgument `json:"arguments,omitempty"`
}

// PromptArgument defines a single argument that can be passed to a prompt.
// Required indicates whether the argument must be provided when using the prompt.
type PromptArgument struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Required    bool   `json:"required,omitempty"`
}

// PromptMessage represents one message produced by a prompt builder.
type PromptMessage struct {
	Role    Role      `json:"role"`
	Content []Content `json:"content"`
}

// Role represents the role in a conversation (user or assistant).
type Role string

// Role values accepted in prompt messages.
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Content represents a message content item with its type. Exactly one variant
// is populated, selected by Type.
type Content struct {
	Type ContentType `json:"type"`

	// For ContentTypeText
	Text string `json:"text,omitempty"`

	// For ContentTypeImage or ContentTypeAudio
	Data     string `json:"data,omitempty"`
	MimeType string `json:"mimeType,omitempty"`

	// For ContentTypeResource
	Resource *ResourceContents `json:"resource,omitempty"`
}

// ContentType represents the type of content in messages.
type ContentType string

// ContentType values for the Content variants.
const (
	ContentTypeText     ContentType = "text"
	ContentTypeImage    ContentType = "image"
	ContentTypeAudio    ContentType = "audio"
	ContentTypeResource ContentType = "resource"
)

// ListPromptsResult lists every registered prompt in registration order.
type ListPromptsResult struct {
	Prompts []Prompt `json:"prompts"`
}

// GetPromptParams contains parameters for retrieving a specific prompt.
type GetPromptParams struct {
	// Name is the unique identifier of the prompt to retrieve
	Name string `json:"name"`

	// Arguments is a free-form JSON object handed to the prompt builder.
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// GetPromptResult represents the result of a prompt request.
type GetPromptResult struct {
	Messages    []PromptMessage `json:"messages"`
	Description string          `json:"description,omitempty"`
}

// SetLogLevelParams contains parameters for logging/setLevel.
type SetLogLevelParams struct {
	Level string `json:"level"`
}

// LogParams is the payload of notifications/message.
type LogParams struct {
	// Level is the RFC 5424 severity name of the message.
	Level string `json:"level"`
	// Message is the human-readable log line.
	Message string `json:"message"`
	// Logger identifies the source/component that generated the message.
	Logger string `json:"logger,omitempty"`
	// Data contains optional structured metadata.
	Data any `json:"data,omitempty"`
}

// ProgressParams is the payload of notifications/progress.
type ProgressParams struct {
	// ProgressToken identifies the operation this progress update relates to
	ProgressToken MustString `json:"progressToken"`
	// Progress represents the current progress value
	Progress float64 `json:"progress"`
	// Total represents the expected final value when known.
	// When non-zero, completion percentage can be calculated as (Progress/Total)*100
	Total float64 `json:"total,omitempty"`
}

// CancelledParams is the payload of notifications/cancelled.
type CancelledParams struct {
	// RequestID names the in-flight request being cancelled.
	RequestID MustString `json:"requestId"`
	// Reason optionally explains the cancellation.
	Reason string `json:"reason,omitempty"`
}

// ShutdownParams is the payload of the best-effort notifications/shutdown
// broadcast sent to SSE connections when the server begins a graceful stop.
type ShutdownParams struct {
	Reason string `json:"reason"`
}

// CompleteParams contains parameters for requesting completion suggestions.
// It includes a reference to what is being completed (a prompt or a resource
// template) and the specific argument that needs suggestions.
type CompleteParams struct {
	// Ref identifies what is being completed.
	Ref CompletionRef `json:"ref"`
	// Argument specifies which argument needs completion suggestions.
	Argument CompletionArgument `json:"argument"`
	// Context carries optional, provider-defined context such as previously
	// resolved argument values. The server hands it through uninspected.
	Context json.RawMessage `json:"context,omitempty"`
}

// CompletionRef identifies what is being completed in a completion request.
// Type must be one of:
//   - "ref/prompt": completing a prompt argument, Name must be set to the prompt name
//   - "ref/resource": completing a resource template argument, URI must be set to the template URI
type CompletionRef struct {
	Type string `json:"type"`
	Name string `json:"name,omitempty"`
	URI  string `json:"uri,omitempty"`
}

// CompletionArgument defines the argument passed in completion requests,
// containing the argument name and its current partial value.
type CompletionArgument struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// CompleteResult contains the response data for a completion request, including
// possible completion values and whether more completions are available.
type CompleteResult struct {
	Completion Completion `json:"completion"`
}

// Completion is the inner payload of CompleteResult. Values is capped at 100
// entries; HasMore signals that the provider produced more than fit.
type Completion struct {
	Values  []string `json:"values"`
	Total   int      `json:"total,omitempty"`
	HasMore bool     `json:"hasMore,omitempty"`
}
