package mcp

import (
	"log/slog"
)

// Server bundles the event bus, the capability managers, the dispatch
// registry, and the request processor into one ready-to-serve protocol core.
// Transports are attached separately: hand Processor and Bus to NewStdIO or
// NewStreamableHTTP, or run both against the same Server at once.
//
// The managers are registered in a fixed order (core, tools, resources,
// prompts, logging, completion) and the first registration wins any method
// collision.
type Server struct {
	info   Info
	logger *slog.Logger

	bus        *EventBus
	registry   *Registry
	core       *CoreManager
	tools      *ToolsManager
	resources  *ResourcesManager
	prompts    *PromptsManager
	logging    *LoggingManager
	completion *CompletionManager
	processor  *RequestProcessor
}

// ServerOption represents the options for the server.
type ServerOption func(*Server)

// NewServer creates a protocol core for a server identified by info.
func NewServer(info Info, options ...ServerOption) *Server {
	s := &Server{
		info:   info,
		logger: slog.Default(),
	}
	for _, opt := range options {
		opt(s)
	}

	s.bus = NewEventBus()
	s.registry = NewRegistry()

	s.core = NewCoreManager(info, s.bus)
	s.tools = NewToolsManager(s.bus)
	s.resources = NewResourcesManager(s.bus)
	s.prompts = NewPromptsManager(s.bus)
	s.logging = NewLoggingManager(s.bus)
	s.completion = NewCompletionManager()

	s.registry.Register(s.core)
	s.registry.Register(s.tools)
	s.registry.Register(s.resources)
	s.registry.Register(s.prompts)
	s.registry.Register(s.logging)
	s.registry.Register(s.completion)

	s.processor = NewRequestProcessor(s.registry, s.logger)

	return s
}

// WithServerLogger sets the logger for the server and its request processor.
func WithServerLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger.With(
			slog.String("package", "go-mcp-server"),
			slog.String("component", "server"),
		)
	}
}

// Info returns the server identity advertised during initialization.
func (s *Server) Info() Info { return s.info }

// Bus returns the event bus shared by managers and transports.
func (s *Server) Bus() *EventBus { return s.bus }

// Registry returns the capability manager registry.
func (s *Server) Registry() *Registry { return s.registry }

// Core returns the core capability manager.
func (s *Server) Core() *CoreManager { return s.core }

// Tools returns the tools manager.
func (s *Server) Tools() *ToolsManager { return s.tools }

// Resources returns the resources manager.
func (s *Server) Resources() *ResourcesManager { return s.resources }

// Prompts returns the prompts manager.
func (s *Server) Prompts() *PromptsManager { return s.prompts }

// Logging returns the logging manager.
func (s *Server) Logging() *LoggingManager { return s.logging }

// Completion returns the completion manager.
func (s *Server) Completion() *CompletionManager { return s.completion }

// Processor returns the request processor transports dispatch through.
func (s *Server) Processor() *RequestProcessor { return s.processor }
