package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// StdIO implements the standard-stream transport: one JSON-RPC message per
// newline-delimited line on the input stream, one response per line on the
// output stream. The output stream carries only JSON-RPC; all logging goes to
// the error stream. Requests are handled sequentially, each completing before
// the next line is read.
//
// Server-initiated notifications from the event bus are written to the same
// output stream, interleaved between responses under a write lock.
type StdIO struct {
	processor *RequestProcessor
	bus       *EventBus
	reader    io.Reader
	logger    *slog.Logger

	state transportState

	writeMu sync.Mutex
	out     *bufio.Writer

	done   chan struct{}
	closed chan struct{}
}

// StdIOOption represents the options for the StdIO transport.
type StdIOOption func(*StdIO)

// NewStdIO creates a stdio transport reading from os.Stdin and writing to
// os.Stdout unless WithStdIOStreams overrides them. The default logger writes
// structured text to os.Stderr so the output stream stays pure JSON-RPC.
func NewStdIO(processor *RequestProcessor, bus *EventBus, options ...StdIOOption) *StdIO {
	s := &StdIO{
		processor: processor,
		bus:       bus,
		reader:    os.Stdin,
		out:       bufio.NewWriter(os.Stdout),
		logger:    slog.New(slog.NewTextHandler(os.Stderr, nil)),
		done:      make(chan struct{}),
		closed:    make(chan struct{}),
	}
	for _, opt := range options {
		opt(s)
	}
	s.logger = s.logger.With(slog.String("component", "stdio"))
	return s
}

// WithStdIOStreams overrides the transport's streams, mainly for tests.
func WithStdIOStreams(reader io.Reader, writer io.Writer) StdIOOption {
	return func(s *StdIO) {
		s.reader = reader
		s.out = bufio.NewWriter(writer)
	}
}

// WithStdIOLogger sets the logger for the transport. The handler must not
// write to the output stream.
func WithStdIOLogger(logger *slog.Logger) StdIOOption {
	return func(s *StdIO) {
		s.logger = logger
	}
}

// Serve subscribes to the event bus and runs the reader loop until the input
// stream ends or Shutdown is called. It blocks for the transport's lifetime.
func (s *StdIO) Serve() error {
	subscribed := s.subscribeEvents()
	defer func() {
		for eventType, cb := range subscribed {
			s.bus.Unsubscribe(eventType, cb)
		}
	}()
	defer close(s.closed)

	reader := bufio.NewReader(s.reader)
	for {
		type lineWithErr struct {
			line string
			err  error
		}

		lines := make(chan lineWithErr, 1)

		// The read runs in a goroutine so a blocked stream does not keep the
		// transport from observing shutdown.
		go func() {
			line, err := reader.ReadString('\n')
			if err != nil {
				lines <- lineWithErr{line: line, err: err}
				return
			}
			lines <- lineWithErr{line: strings.TrimSuffix(line, "\n")}
		}()

		var lwe lineWithErr
		select {
		case <-s.done:
			return nil
		case lwe = <-lines:
		}

		if lwe.err != nil {
			if errors.Is(lwe.err, io.EOF) {
				return nil
			}
			return fmt.Errorf("failed to read message: %w", lwe.err)
		}

		if strings.TrimSpace(lwe.line) == "" {
			continue
		}

		s.handleLine(lwe.line)
	}
}

// Shutdown drains in-flight work and stops the reader loop. New requests
// observed after the call begins are refused with a shutting-down error.
// Shutdown returns an error when the drain exceeds the graceful window.
func (s *StdIO) Shutdown(ctx context.Context) error {
	if !s.state.beginShutdown() {
		return nil
	}

	drainErr := s.state.waitForPending(gracefulShutdownTimeout)

	close(s.done)

	select {
	case <-ctx.Done():
		return fmt.Errorf("failed to stop stdio transport: %w", ctx.Err())
	case <-s.closed:
	}

	return drainErr
}

func (s *StdIO) handleLine(line string) {
	if !s.state.beginRequest() {
		s.refuse(line)
		return
	}
	defer s.state.endRequest()

	resp := s.processor.Process(context.Background(), []byte(line))
	if len(resp) == 0 {
		return
	}
	if err := s.writeFrame(resp); err != nil {
		s.logger.Error("failed to write response", slog.String("err", err.Error()))
	}
}

// refuse answers a request received during shutdown with the shutting-down
// error, echoing the request id when the frame parses.
func (s *StdIO) refuse(line string) {
	var msg JSONRPCMessage
	_ = json.Unmarshal([]byte(line), &msg)
	if msg.IsNotification() {
		return
	}

	resp := marshalResponse(jsonRPCResponse{
		JSONRPC: JSONRPCVersion,
		ID:      msg.ID,
		Error:   shuttingDownError(),
	})
	if err := s.writeFrame(resp); err != nil {
		s.logger.Error("failed to write shutdown refusal", slog.String("err", err.Error()))
	}
}

func (s *StdIO) subscribeEvents() map[string]EventCallback {
	subscribed := make(map[string]EventCallback, len(standardEventTypes))
	for _, eventType := range standardEventTypes {
		cb := s.forwardEvent(eventType)
		subscribed[eventType] = cb
		s.bus.Subscribe(eventType, cb)
	}
	return subscribed
}

func (s *StdIO) forwardEvent(eventType string) EventCallback {
	return func(payload any) {
		frame, err := marshalNotification(eventType, payload)
		if err != nil {
			s.logger.Error("failed to marshal notification",
				slog.String("method", eventType),
				slog.String("err", err.Error()))
			return
		}
		if err := s.writeFrame(frame); err != nil {
			s.logger.Error("failed to write notification",
				slog.String("method", eventType),
				slog.String("err", err.Error()))
		}
	}
}

func (s *StdIO) writeFrame(frame []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if _, err := s.out.Write(frame); err != nil {
		return err
	}
	if err := s.out.WriteByte('\n'); err != nil {
		return err
	}
	return s.out.Flush()
}

// marshalNotification builds the JSON-RPC notification envelope for a bus
// event. A nil payload produces a frame without params.
func marshalNotification(method string, payload any) ([]byte, error) {
	msg := JSONRPCMessage{
		JSONRPC: JSONRPCVersion,
		Method:  method,
	}
	if payload != nil {
		params, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal params: %w", err)
		}
		msg.Params = params
	}
	return json.Marshal(msg)
}
