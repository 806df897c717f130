package mcp

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// JSONRPCMessage represents a JSON-RPC 2.0 message used for communication in the MCP protocol.
// It can represent either a request, response, or notification depending on which fields are populated:
//   - Request: JSONRPC, ID, Method, and Params are set
//   - Response: JSONRPC, ID, and either Result or Error are set
//   - Notification: JSONRPC and Method are set (no ID)
type JSONRPCMessage struct {
	// JSONRPC must always be "2.0" per the JSON-RPC specification
	JSONRPC string `json:"jsonrpc"`
	// ID uniquely identifies request-response pairs and must be a string or
	// number. It is kept raw so responses echo the id byte-exact; an absent id
	// marks the message as a notification.
	ID json.RawMessage `json:"id,omitempty"`
	// Method contains the RPC method name for requests and notifications
	Method string `json:"method,omitempty"`
	// Params contains the parameters for the method call as a raw JSON message
	Params json.RawMessage `json:"params,omitempty"`
	// Result contains the successful response data as a raw JSON message
	Result json.RawMessage `json:"result,omitempty"`
	// Error contains error details if the request failed
	Error *JSONRPCError `json:"error,omitempty"`
}

// JSONRPCError represents an error response in the JSON-RPC 2.0 protocol.
// It follows the standard error object format defined in the JSON-RPC 2.0 specification.
type JSONRPCError struct {
	// Code indicates the error type that occurred.
	// Must use standard JSON-RPC error codes or custom codes outside the reserved range.
	Code int `json:"code"`

	// Message provides a short description of the error.
	// Should be limited to a concise single sentence.
	Message string `json:"message"`

	// Data contains additional information about the error.
	// The value is unstructured and may be omitted.
	Data map[string]any `json:"data,omitempty"`
}

// MustString is a type that enforces string representation for fields that can be either string or integer
// in the protocol specification, such as request IDs and progress tokens. It handles automatic conversion
// during JSON marshaling/unmarshaling.
type MustString string

// SessionID is the opaque identity carried by the Mcp-Session-Id header. One is minted
// per successful initialize request and stays valid until termination or expiry.
type SessionID string

const (
	// JSONRPCVersion specifies the JSON-RPC protocol version used for communication.
	JSONRPCVersion = "2.0"

	// ProtocolVersion is the latest MCP specification revision this server speaks.
	ProtocolVersion = "2025-06-18"
	// ProtocolVersionFallback is the prior revision still accepted from clients. It is
	// also assumed when a request carries no Mcp-Protocol-Version header.
	ProtocolVersionFallback = "2025-03-26"

	// MethodToolsList is the method name for retrieving a list of available tools.
	MethodToolsList = "tools/list"
	// MethodToolsCall is the method name for invoking a specific tool.
	MethodToolsCall = "tools/call"

	// MethodResourcesList is the method name for listing available resources.
	MethodResourcesList = "resources/list"
	// MethodResourcesRead is the method name for reading the content of a specific resource.
	MethodResourcesRead = "resources/read"
	// MethodResourcesTemplatesList is the method name for listing available resource templates.
	MethodResourcesTemplatesList = "resources/templates/list"
	// MethodResourcesSubscribe is the method name for subscribing to resource updates.
	MethodResourcesSubscribe = "resources/subscribe"
	// MethodResourcesUnsubscribe is the method name for unsubscribing from resource updates.
	MethodResourcesUnsubscribe = "resources/unsubscribe"

	// MethodPromptsList is the method name for retrieving a list of available prompts.
	MethodPromptsList = "prompts/list"
	// MethodPromptsGet is the method name for retrieving a specific prompt by name.
	MethodPromptsGet = "prompts/get"

	// MethodCompletionComplete is the method name for requesting completion suggestions.
	MethodCompletionComplete = "completion/complete"

	// MethodLoggingSetLevel is the method name for setting the minimum severity level
	// for emitted log messages.
	MethodLoggingSetLevel = "logging/setLevel"

	// CompletionRefPrompt is used in CompletionRef.Type for prompt argument completion.
	CompletionRefPrompt = "ref/prompt"
	// CompletionRefResource is used in CompletionRef.Type for resource template argument completion.
	CompletionRefResource = "ref/resource"

	methodPing       = "ping"
	methodInitialize = "initialize"

	methodNotificationsInitialized = "notifications/initialized"
	methodNotificationsCancelled   = "notifications/cancelled"
	methodNotificationsShutdown    = "notifications/shutdown"

	jsonRPCParseErrorCode     = -32700
	jsonRPCInvalidRequestCode = -32600
	jsonRPCMethodNotFoundCode = -32601
	jsonRPCInvalidParamsCode  = -32602
	jsonRPCInternalErrorCode  = -32603

	jsonRPCServerErrorCode      = -32000
	jsonRPCResourceNotFoundCode = -32002
	jsonRPCRequestCancelledCode = -32800
)

// The event types published on the EventBus. Each one doubles as the JSON-RPC
// notification method the transports emit for it, so the strings must stay
// bit-exact with the MCP specification.
const (
	EventToolsListChanged     = "notifications/tools/list_changed"
	EventResourcesListChanged = "notifications/resources/list_changed"
	EventResourcesUpdated     = "notifications/resources/updated"
	EventPromptsListChanged   = "notifications/prompts/list_changed"
	EventMessage              = "notifications/message"
	EventProgress             = "notifications/progress"
	EventCancelled            = "notifications/cancelled"
)

// standardEventTypes lists every event type a transport forwards to clients.
var standardEventTypes = []string{
	EventToolsListChanged,
	EventResourcesListChanged,
	EventResourcesUpdated,
	EventPromptsListChanged,
	EventMessage,
	EventProgress,
	EventCancelled,
}

var supportedProtocolVersions = []string{ProtocolVersion, ProtocolVersionFallback}

// NewSessionID mints a fresh session identity: 128 random bits, hex-encoded to
// 32 characters. The randomness comes from uuid's crypto/rand source.
func NewSessionID() SessionID {
	u := uuid.New()
	return SessionID(hex.EncodeToString(u[:]))
}

// IsSupportedProtocolVersion reports whether v names an MCP revision this server speaks.
func IsSupportedProtocolVersion(v string) bool {
	for _, s := range supportedProtocolVersions {
		if s == v {
			return true
		}
	}
	return false
}

// SupportedProtocolVersions returns the accepted revisions, newest first.
func SupportedProtocolVersions() []string {
	vs := make([]string, len(supportedProtocolVersions))
	copy(vs, supportedProtocolVersions)
	return vs
}

// LogLevel represents the severity level of log messages, using the RFC 5424
// numeric mapping: lower values are more severe.
type LogLevel int

// LogLevel follows RFC 5424: emergency is the most severe, debug the least.
const (
	LogLevelEmergency LogLevel = iota
	LogLevelAlert
	LogLevelCritical
	LogLevelError
	LogLevelWarning
	LogLevelNotice
	LogLevelInfo
	LogLevelDebug
)

var logLevelNames = map[LogLevel]string{
	LogLevelEmergency: "emergency",
	LogLevelAlert:     "alert",
	LogLevelCritical:  "critical",
	LogLevelError:     "error",
	LogLevelWarning:   "warning",
	LogLevelNotice:    "notice",
	LogLevelInfo:      "info",
	LogLevelDebug:     "debug",
}

func (l LogLevel) String() string {
	if name, ok := logLevelNames[l]; ok {
		return name
	}
	return "unknown"
}

// ParseLogLevel maps an RFC 5424 level name to its LogLevel. All eight names
// are accepted on input, including emergency and alert.
func ParseLogLevel(name string) (LogLevel, error) {
	for level, n := range logLevelNames {
		if n == name {
			return level, nil
		}
	}
	return 0, fmt.Errorf("Invalid log level: %s", name)
}

// UnmarshalJSON implements json.Unmarshaler to convert JSON data into MustString,
// handling both string and numeric input formats.
func (m *MustString) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}

	switch v := v.(type) {
	case string:
		*m = MustString(v)
	case float64:
		*m = MustString(fmt.Sprintf("%d", int(v)))
	case int:
		*m = MustString(fmt.Sprintf("%d", v))
	default:
		return fmt.Errorf("invalid type: %T", v)
	}

	return nil
}

// MarshalJSON implements json.Marshaler to convert MustString into its JSON representation,
// always encoding as a string value.
func (m MustString) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(m))
}

// IsNotification reports whether the message carries no id and therefore
// expects no response.
func (m JSONRPCMessage) IsNotification() bool {
	return len(m.ID) == 0 || string(m.ID) == "null"
}

func (j JSONRPCError) Error() string {
	return fmt.Sprintf("request error, code: %d, message: %s, data %v", j.Code, j.Message, j.Data)
}

func unsupportedProtocolVersionError(v string) *JSONRPCError {
	return &JSONRPCError{
		Code: jsonRPCServerErrorCode,
		Message: fmt.Sprintf("Unsupported protocol version: %s. Supported versions: %s",
			v, strings.Join(supportedProtocolVersions, ", ")),
	}
}

func shuttingDownError() *JSONRPCError {
	return &JSONRPCError{
		Code:    jsonRPCServerErrorCode,
		Message: "Server is shutting down",
	}
}
