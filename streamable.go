package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gobwas/glob"
	"github.com/google/uuid"
)

const (
	defaultStreamableEndpoint  = "/mcp"
	defaultKeepaliveInterval   = 30 * time.Second
	defaultSessionTimeout      = 30 * time.Minute
	defaultSSEWriteTimeout     = time.Second
	defaultMaxSessions         = 10000
	defaultMaxSSEConnections   = 1000
	headerSessionID            = "Mcp-Session-Id"
	headerProtocolVersion      = "Mcp-Protocol-Version"
	contentTypeJSON            = "application/json"
	contentTypeEventStream     = "text/event-stream"
	corsAllowedMethods         = "POST, GET, DELETE, OPTIONS"
	corsAllowedHeaders         = "Content-Type, Accept, Mcp-Session-Id, Mcp-Protocol-Version"
	corsExposedHeaders         = "Mcp-Session-Id, Mcp-Protocol-Version"
	corsMaxAgeSeconds          = "86400"
	shutdownNotificationReason = "server_shutdown"
)

// StreamableHTTP implements the MCP streamable HTTP transport on a single
// endpoint: POST carries JSON-RPC requests, GET upgrades to a server-sent
// event stream, DELETE terminates the session named by the Mcp-Session-Id
// header, and OPTIONS answers CORS preflights.
//
// The transport owns the session table and the SSE connection table, runs the
// keepalive loop, and subscribes to the event bus so server-initiated
// notifications fan out to every live stream. It implements http.Handler and
// can be mounted directly or served through Serve.
type StreamableHTTP struct {
	info      Info
	processor *RequestProcessor
	bus       *EventBus
	logger    *slog.Logger

	endpoint          string
	corsEnabled       bool
	allowAllOrigins   bool
	originPatterns    []glob.Glob
	keepaliveInterval time.Duration
	sessionTimeout    time.Duration
	sseWriteTimeout   time.Duration
	maxSessions       int
	maxSSEConnections int

	state transportState

	sessionMu sync.Mutex
	sessions  map[SessionID]*session

	sseMu sync.Mutex
	conns map[string]*sseConn

	subscribed map[string]EventCallback

	startOnce       sync.Once
	started         bool
	done            chan struct{}
	keepaliveClosed chan struct{}

	serverMu   sync.Mutex
	httpServer *http.Server
}

// StreamableHTTPOption represents the options for the StreamableHTTP transport.
type StreamableHTTPOption func(*StreamableHTTP)

// NewStreamableHTTP creates a streamable HTTP transport serving the given
// processor and forwarding events from bus. The transport is inert until
// Start (or Serve) is called.
func NewStreamableHTTP(
	info Info,
	processor *RequestProcessor,
	bus *EventBus,
	options ...StreamableHTTPOption,
) *StreamableHTTP {
	t := &StreamableHTTP{
		info:              info,
		processor:         processor,
		bus:               bus,
		logger:            slog.Default(),
		endpoint:          defaultStreamableEndpoint,
		keepaliveInterval: defaultKeepaliveInterval,
		sessionTimeout:    defaultSessionTimeout,
		sseWriteTimeout:   defaultSSEWriteTimeout,
		maxSessions:       defaultMaxSessions,
		maxSSEConnections: defaultMaxSSEConnections,
		sessions:          make(map[SessionID]*session),
		conns:             make(map[string]*sseConn),
		subscribed:        make(map[string]EventCallback),
		done:              make(chan struct{}),
		keepaliveClosed:   make(chan struct{}),
	}
	for _, opt := range options {
		opt(t)
	}
	t.logger = t.logger.With(slog.String("component", "streamable"))
	return t
}

// WithStreamableEndpoint sets the endpoint path, default "/mcp".
func WithStreamableEndpoint(path string) StreamableHTTPOption {
	return func(t *StreamableHTTP) {
		t.endpoint = path
	}
}

// WithStreamableCORS enables CORS handling. origins is either "*" or a
// comma-separated allow-list compared case-insensitively against the Origin
// header.
func WithStreamableCORS(origins string) StreamableHTTPOption {
	return func(t *StreamableHTTP) {
		t.corsEnabled = true
		for _, origin := range strings.Split(origins, ",") {
			origin = strings.ToLower(strings.TrimSpace(origin))
			if origin == "" {
				continue
			}
			if origin == "*" {
				t.allowAllOrigins = true
				continue
			}
			pattern, err := glob.Compile(origin)
			if err != nil {
				continue
			}
			t.originPatterns = append(t.originPatterns, pattern)
		}
	}
}

// WithStreamableKeepaliveInterval sets the SSE keepalive interval. Zero
// disables keepalives. Default 30s.
func WithStreamableKeepaliveInterval(interval time.Duration) StreamableHTTPOption {
	return func(t *StreamableHTTP) {
		t.keepaliveInterval = interval
	}
}

// WithStreamableSessionTimeout sets the inactivity window after which a
// session expires. Default 30m.
func WithStreamableSessionTimeout(timeout time.Duration) StreamableHTTPOption {
	return func(t *StreamableHTTP) {
		t.sessionTimeout = timeout
	}
}

// WithStreamableWriteTimeout sets the per-frame SSE write deadline. Default 1s.
func WithStreamableWriteTimeout(timeout time.Duration) StreamableHTTPOption {
	return func(t *StreamableHTTP) {
		t.sseWriteTimeout = timeout
	}
}

// WithStreamableMaxSessions bounds the session table. Default 10000.
func WithStreamableMaxSessions(maxSessions int) StreamableHTTPOption {
	return func(t *StreamableHTTP) {
		t.maxSessions = maxSessions
	}
}

// WithStreamableMaxConnections bounds the SSE connection table. Default 1000.
func WithStreamableMaxConnections(maxConnections int) StreamableHTTPOption {
	return func(t *StreamableHTTP) {
		t.maxSSEConnections = maxConnections
	}
}

// WithStreamableLogger sets the logger for the transport.
func WithStreamableLogger(logger *slog.Logger) StreamableHTTPOption {
	return func(t *StreamableHTTP) {
		t.logger = logger
	}
}

// Start subscribes the transport to the event bus (draining any events that
// were published before it attached) and launches the keepalive loop. It is
// idempotent.
func (t *StreamableHTTP) Start() {
	t.startOnce.Do(func() {
		t.started = true
		t.subscribeEvents()
		go t.keepaliveLoop()
	})
}

// Serve starts the transport and listens on addr until Shutdown. A listener
// bind failure is the only fatal startup condition and is returned as-is.
func (t *StreamableHTTP) Serve(addr string) error {
	t.Start()

	srv := &http.Server{
		Addr:    addr,
		Handler: t,
	}
	t.serverMu.Lock()
	t.httpServer = srv
	t.serverMu.Unlock()

	err := srv.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to serve HTTP: %w", err)
	}
	return nil
}

// Shutdown performs the graceful stop: new POSTs are refused immediately, a
// best-effort notifications/shutdown frame goes to every SSE stream, then the
// pending-request count is polled until it drains or the 5s window elapses.
// Connections, sessions, and the listener are torn down either way; the drain
// timeout is reported as the returned error.
func (t *StreamableHTTP) Shutdown(ctx context.Context) error {
	if !t.state.beginShutdown() {
		return nil
	}

	if frame, err := marshalNotification(methodNotificationsShutdown,
		ShutdownParams{Reason: shutdownNotificationReason}); err == nil {
		t.broadcastFrame(sseDataFrame(frame))
	}

	drainErr := t.state.waitForPending(gracefulShutdownTimeout)

	close(t.done)
	if t.started {
		<-t.keepaliveClosed
	}

	t.dropAllConns()

	t.sessionMu.Lock()
	t.sessions = make(map[SessionID]*session)
	t.sessionMu.Unlock()

	t.unsubscribeEvents()

	t.serverMu.Lock()
	srv := t.httpServer
	t.serverMu.Unlock()
	if srv != nil {
		if err := srv.Shutdown(ctx); err != nil {
			_ = srv.Close()
		}
	}

	return drainErr
}

// ServeHTTP implements http.Handler for the configured endpoint.
func (t *StreamableHTTP) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != t.endpoint {
		t.writeJSONBody(w, http.StatusNotFound, map[string]string{"error": "Not found"})
		return
	}

	origin := r.Header.Get("Origin")

	// Preflights always succeed; only the actual request is gated on origin.
	// A disallowed origin still gets 200, just without allow-origin headers.
	if r.Method == http.MethodOptions {
		if t.corsEnabled && (origin == "" || t.originAllowed(origin)) {
			t.setCORSHeaders(w, origin)
		}
		t.handleOptions(w)
		return
	}

	if t.corsEnabled {
		if origin != "" && !t.originAllowed(origin) {
			t.writeJSONBody(w, http.StatusForbidden, map[string]string{"error": "Origin not allowed"})
			return
		}
		t.setCORSHeaders(w, origin)
	}

	if version := r.Header.Get(headerProtocolVersion); version != "" && !IsSupportedProtocolVersion(version) {
		t.writeJSONRPCError(w, nil, unsupportedProtocolVersionError(version))
		return
	}

	switch r.Method {
	case http.MethodPost:
		t.handlePost(w, r)
	case http.MethodGet:
		t.handleGet(w, r)
	case http.MethodDelete:
		t.handleDelete(w, r)
	default:
		t.writeJSONBody(w, http.StatusMethodNotAllowed, map[string]string{"error": "Method not allowed"})
	}
}

func (t *StreamableHTTP) handleOptions(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Methods", corsAllowedMethods)
	w.Header().Set("Access-Control-Allow-Headers", corsAllowedHeaders)
	w.Header().Set("Access-Control-Expose-Headers", corsExposedHeaders)
	w.Header().Set("Access-Control-Max-Age", corsMaxAgeSeconds)
	w.WriteHeader(http.StatusOK)
}

func (t *StreamableHTTP) handlePost(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		t.writeJSONBody(w, http.StatusBadRequest, map[string]string{"error": "failed to read request body"})
		return
	}

	var msg JSONRPCMessage
	parseErr := json.Unmarshal(body, &msg)

	if t.state.isShuttingDown() {
		t.writeJSONRPCError(w, msg.ID, shuttingDownError())
		return
	}

	// An unparseable body cannot name a method, so it skips the session gate
	// and comes back from the processor as a parse error.
	if parseErr != nil {
		t.respond(w, r, t.processor.Process(r.Context(), body), "")
		return
	}

	sessionHeader := SessionID(r.Header.Get(headerSessionID))
	var sessID SessionID

	if sessionRequired(msg.Method) {
		if sessionHeader == "" {
			t.writeJSONRPCError(w, msg.ID, &JSONRPCError{
				Code:    jsonRPCInvalidRequestCode,
				Message: "Mcp-Session-Id header required",
			})
			return
		}
		if !t.touchSession(sessionHeader) {
			t.writeJSONRPCError(w, msg.ID, &JSONRPCError{
				Code:    jsonRPCInvalidRequestCode,
				Message: "Invalid or expired session ID",
			})
			return
		}
		sessID = sessionHeader
	} else if sessionHeader != "" {
		sessID = sessionHeader
	}

	if msg.Method == methodNotificationsInitialized {
		if sessID != "" {
			t.markSessionInitialized(sessID)
		}
		t.setSessionHeader(w, sessID)
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if !t.state.beginRequest() {
		t.writeJSONRPCError(w, msg.ID, shuttingDownError())
		return
	}
	reply := t.processor.Process(ContextWithSession(r.Context(), sessID), body)
	t.state.endRequest()

	if msg.Method == methodInitialize && len(reply) > 0 {
		if id, version, ok := parseInitializeReply(reply); ok {
			t.createSession(id, version)
			sessID = id
		}
	}

	t.respond(w, r, reply, sessID)
}

func (t *StreamableHTTP) handleGet(w http.ResponseWriter, r *http.Request) {
	if !strings.Contains(r.Header.Get("Accept"), contentTypeEventStream) {
		// Plain GETs describe the server, for clients predating the
		// streamable transport.
		t.writeJSONBody(w, http.StatusOK, map[string]string{
			"name":            t.info.Name,
			"version":         t.info.Version,
			"protocolVersion": ProtocolVersion,
		})
		return
	}

	conn := newSSEConn(uuid.New().String(), SessionID(r.Header.Get(headerSessionID)), w)
	if !t.addConn(conn) {
		t.logger.Warn("SSE connection limit reached, rejecting",
			slog.Int("limit", t.maxSSEConnections))
		t.writeJSONBody(w, http.StatusServiceUnavailable, map[string]string{"error": "Too many SSE connections"})
		return
	}

	w.Header().Set("Content-Type", contentTypeEventStream)
	w.Header().Set("Cache-Control", "no-cache")
	t.setSessionHeader(w, conn.sessionID)
	w.WriteHeader(http.StatusOK)

	if err := conn.write([]byte(": sse accepted\r\n\r\n"), t.sseWriteTimeout); err != nil {
		t.logger.Warn("failed to write SSE greeting", slog.String("err", err.Error()))
		t.removeConn(conn.id)
		return
	}

	// Keep the handler parked so the response body stays open; the connection
	// is written to from broadcasts and the keepalive loop.
	select {
	case <-r.Context().Done():
	case <-conn.closed:
	case <-t.done:
	}
	t.removeConn(conn.id)
}

func (t *StreamableHTTP) handleDelete(w http.ResponseWriter, r *http.Request) {
	sessionHeader := SessionID(r.Header.Get(headerSessionID))
	if sessionHeader == "" {
		t.writeJSONBody(w, http.StatusForbidden, map[string]string{"error": "Mcp-Session-Id header required"})
		return
	}

	if !t.terminateSession(sessionHeader) {
		t.writeJSONBody(w, http.StatusNotFound, map[string]string{"error": "Session not found"})
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// respond writes the processor's reply frame. Empty replies become 204; when
// the client accepts SSE the reply is framed as a single event, otherwise it
// goes out as plain JSON. JSON-RPC errors always travel in 200 responses.
func (t *StreamableHTTP) respond(w http.ResponseWriter, r *http.Request, reply []byte, sessID SessionID) {
	t.setSessionHeader(w, sessID)

	if len(reply) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if strings.Contains(r.Header.Get("Accept"), contentTypeEventStream) {
		w.Header().Set("Content-Type", contentTypeEventStream)
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write(sseDataFrame(reply)); err != nil {
			t.logger.Warn("failed to write SSE reply", slog.String("err", err.Error()))
		}
		return
	}

	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(reply); err != nil {
		t.logger.Warn("failed to write reply", slog.String("err", err.Error()))
	}
}

func (t *StreamableHTTP) setSessionHeader(w http.ResponseWriter, sessID SessionID) {
	if sessID != "" {
		w.Header().Set(headerSessionID, string(sessID))
	}
}

func (t *StreamableHTTP) setCORSHeaders(w http.ResponseWriter, origin string) {
	switch {
	case t.allowAllOrigins:
		w.Header().Set("Access-Control-Allow-Origin", "*")
	case origin != "":
		w.Header().Set("Access-Control-Allow-Origin", origin)
	}
	w.Header().Set("Access-Control-Expose-Headers", corsExposedHeaders)
}

func (t *StreamableHTTP) originAllowed(origin string) bool {
	if t.allowAllOrigins {
		return true
	}
	origin = strings.ToLower(origin)
	for _, pattern := range t.originPatterns {
		if pattern.Match(origin) {
			return true
		}
	}
	return false
}

func (t *StreamableHTTP) writeJSONBody(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		t.logger.Warn("failed to write JSON body", slog.String("err", err.Error()))
	}
}

// writeJSONRPCError sends a protocol-level error inside a 200 response. An
// absent id is emitted as JSON null.
func (t *StreamableHTTP) writeJSONRPCError(w http.ResponseWriter, id json.RawMessage, rpcErr *JSONRPCError) {
	res := jsonRPCResponse{
		JSONRPC: JSONRPCVersion,
		Error:   rpcErr,
	}
	if len(id) > 0 {
		res.ID = id
	}

	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(marshalResponse(res)); err != nil {
		t.logger.Warn("failed to write JSON-RPC error", slog.String("err", err.Error()))
	}
}

// sessionRequired reports whether method must pass the session gate. Only the
// initialization handshake may run without an established session.
func sessionRequired(method string) bool {
	return method != methodInitialize && method != methodNotificationsInitialized
}

func parseInitializeReply(reply []byte) (SessionID, string, bool) {
	var res struct {
		Result struct {
			SessionID       SessionID `json:"sessionId"`
			ProtocolVersion string    `json:"protocolVersion"`
		} `json:"result"`
	}
	if err := json.Unmarshal(reply, &res); err != nil {
		return "", "", false
	}
	if res.Result.SessionID == "" {
		return "", "", false
	}
	return res.Result.SessionID, res.Result.ProtocolVersion, true
}
