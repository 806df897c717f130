package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/tmaxmax/go-sse"
)

// StreamableClient is a minimal client for the streamable HTTP transport. It
// performs the initialization handshake, carries the Mcp-Session-Id header on
// every subsequent request, and exposes the server's SSE stream as an
// iterator of JSON-RPC messages.
//
// Server-to-client features beyond notifications (sampling, roots) are not
// implemented.
type StreamableClient struct {
	url        string
	httpClient *http.Client
	logger     *slog.Logger

	mu              sync.Mutex
	sessionID       SessionID
	protocolVersion string
}

// StreamableClientOption represents the options for the StreamableClient.
type StreamableClientOption func(*StreamableClient)

// NewStreamableClient creates a client for the endpoint at url. The optional
// httpClient allows custom HTTP configuration; nil uses http.DefaultClient.
func NewStreamableClient(url string, httpClient *http.Client, options ...StreamableClientOption) *StreamableClient {
	cli := httpClient
	if cli == nil {
		cli = http.DefaultClient
	}
	c := &StreamableClient{
		url:        url,
		httpClient: cli,
		logger:     slog.Default(),
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// WithStreamableClientLogger sets the logger for the client.
func WithStreamableClientLogger(logger *slog.Logger) StreamableClientOption {
	return func(c *StreamableClient) {
		c.logger = logger.With(slog.String("component", "streamable-client"))
	}
}

// SessionID returns the session established by Initialize, if any.
func (c *StreamableClient) SessionID() SessionID {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.sessionID
}

// Initialize performs the initialization handshake: it sends initialize,
// stores the returned session id and negotiated protocol version, and
// acknowledges with notifications/initialized.
func (c *StreamableClient) Initialize(ctx context.Context, info Info) (InitializeResult, error) {
	params := InitializeParams{
		ProtocolVersion: ProtocolVersion,
		ClientInfo:      info,
	}

	msg, err := c.Call(ctx, methodInitialize, params)
	if err != nil {
		return InitializeResult{}, err
	}
	if msg.Error != nil {
		return InitializeResult{}, fmt.Errorf("initialize failed: %w", *msg.Error)
	}

	var result InitializeResult
	if err := json.Unmarshal(msg.Result, &result); err != nil {
		return InitializeResult{}, fmt.Errorf("failed to unmarshal initialize result: %w", err)
	}

	c.mu.Lock()
	c.sessionID = result.SessionID
	c.protocolVersion = result.ProtocolVersion
	c.mu.Unlock()

	if err := c.Notify(ctx, methodNotificationsInitialized, nil); err != nil {
		return InitializeResult{}, fmt.Errorf("failed to acknowledge initialization: %w", err)
	}

	return result, nil
}

// Call sends a request and returns the server's response message. JSON-RPC
// level failures come back in the message's Error field, not as an error.
func (c *StreamableClient) Call(ctx context.Context, method string, params any) (JSONRPCMessage, error) {
	id, err := json.Marshal(uuid.New().String())
	if err != nil {
		return JSONRPCMessage{}, fmt.Errorf("failed to marshal request id: %w", err)
	}
	msg := JSONRPCMessage{
		JSONRPC: JSONRPCVersion,
		ID:      id,
		Method:  method,
	}
	if params != nil {
		bs, err := json.Marshal(params)
		if err != nil {
			return JSONRPCMessage{}, fmt.Errorf("failed to marshal params: %w", err)
		}
		msg.Params = bs
	}

	return c.post(ctx, msg)
}

// Notify sends a notification; the server acknowledges with an empty reply.
func (c *StreamableClient) Notify(ctx context.Context, method string, params any) error {
	msg := JSONRPCMessage{
		JSONRPC: JSONRPCVersion,
		Method:  method,
	}
	if params != nil {
		bs, err := json.Marshal(params)
		if err != nil {
			return fmt.Errorf("failed to marshal params: %w", err)
		}
		msg.Params = bs
	}

	_, err := c.post(ctx, msg)
	return err
}

// Stream opens the server's SSE stream and returns an iterator over the
// JSON-RPC notifications it carries. The stream stays open until the context
// is cancelled, the iteration is abandoned, or the server drops it.
func (c *StreamableClient) Stream(ctx context.Context) (iter.Seq[JSONRPCMessage], error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", contentTypeEventStream)
	c.setSessionHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to SSE stream: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	return func(yield func(JSONRPCMessage) bool) {
		defer resp.Body.Close()

		for ev, err := range sse.Read(resp.Body, nil) {
			if err != nil {
				if !errors.Is(err, context.Canceled) {
					c.logger.Error("failed to read SSE event", slog.String("err", err.Error()))
				}
				return
			}

			var msg JSONRPCMessage
			if err := json.Unmarshal([]byte(ev.Data), &msg); err != nil {
				c.logger.Error("failed to unmarshal SSE event", slog.String("err", err.Error()))
				continue
			}

			if !yield(msg) {
				return
			}
		}
	}, nil
}

// Terminate ends the session with a DELETE and forgets the session id.
func (c *StreamableClient) Terminate(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	c.setSessionHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to terminate session: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	c.mu.Lock()
	c.sessionID = ""
	c.mu.Unlock()

	return nil
}

func (c *StreamableClient) post(ctx context.Context, msg JSONRPCMessage) (JSONRPCMessage, error) {
	msgBs, err := json.Marshal(msg)
	if err != nil {
		return JSONRPCMessage{}, fmt.Errorf("failed to marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(msgBs))
	if err != nil {
		return JSONRPCMessage{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", contentTypeJSON)
	req.Header.Set("Accept", contentTypeJSON+", "+contentTypeEventStream)
	c.setSessionHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return JSONRPCMessage{}, fmt.Errorf("failed to send message: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNoContent:
		return JSONRPCMessage{}, nil
	case http.StatusOK:
	default:
		return JSONRPCMessage{}, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	if strings.Contains(resp.Header.Get("Content-Type"), contentTypeEventStream) {
		return readSSEReply(resp.Body)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return JSONRPCMessage{}, fmt.Errorf("failed to read response body: %w", err)
	}

	var reply JSONRPCMessage
	if err := json.Unmarshal(body, &reply); err != nil {
		return JSONRPCMessage{}, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return reply, nil
}

// readSSEReply parses the single data event a POST reply is framed as when
// the client accepts text/event-stream.
func readSSEReply(body io.Reader) (JSONRPCMessage, error) {
	for ev, err := range sse.Read(body, nil) {
		if err != nil {
			return JSONRPCMessage{}, fmt.Errorf("failed to read SSE reply: %w", err)
		}

		var msg JSONRPCMessage
		if err := json.Unmarshal([]byte(ev.Data), &msg); err != nil {
			return JSONRPCMessage{}, fmt.Errorf("failed to unmarshal SSE reply: %w", err)
		}
		return msg, nil
	}
	return JSONRPCMessage{}, errors.New("empty SSE reply")
}

func (c *StreamableClient) setSessionHeaders(req *http.Request) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sessionID != "" {
		req.Header.Set(headerSessionID, string(c.sessionID))
	}
	if c.protocolVersion != "" {
		req.Header.Set(headerProtocolVersion, c.protocolVersion)
	}
}
