// Package mcp implements a Model Context Protocol (MCP) server core: a
// bidirectional JSON-RPC 2.0 endpoint exposing tool invocation, resource
// reading, prompt templates, logging control, and argument completion over
// two transports at once: newline-delimited standard streams, and streamable
// HTTP with server-sent-event push. This implementation follows the official
// specification from https://spec.modelcontextprotocol.io/specification/,
// revisions 2025-06-18 and 2025-03-26.
//
// The protocol core is assembled by NewServer: capability managers own their
// method namespaces, a registry dispatches methods to them, and an event bus
// carries server-initiated notifications from the managers to whichever
// transports are attached. Transports are created separately with NewStdIO
// and NewStreamableHTTP and share the server's processor and bus.
package mcp
