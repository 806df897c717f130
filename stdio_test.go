package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"
)

type stdIOTestSession struct {
	transport *StdIO
	in        *io.PipeWriter
	out       *bufio.Reader
	served    chan error
}

func startStdIOSession(t *testing.T, server *Server) *stdIOTestSession {
	t.Helper()

	inR, inW := io.Pipe()
	outR, outW := io.Pipe()

	transport := NewStdIO(server.Processor(), server.Bus(),
		WithStdIOStreams(inR, outW),
		WithStdIOLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

	served := make(chan error, 1)
	go func() {
		served <- transport.Serve()
	}()

	t.Cleanup(func() {
		inW.Close()
		outR.Close()
	})

	return &stdIOTestSession{
		transport: transport,
		in:        inW,
		out:       bufio.NewReader(outR),
		served:    served,
	}
}

func (s *stdIOTestSession) send(t *testing.T, line string) {
	t.Helper()

	if _, err := s.in.Write([]byte(line + "\n")); err != nil {
		t.Fatalf("failed to write request: %v", err)
	}
}

func (s *stdIOTestSession) readMessage(t *testing.T) JSONRPCMessage {
	t.Helper()

	type lineResult struct {
		line string
		err  error
	}
	lines := make(chan lineResult, 1)
	go func() {
		line, err := s.out.ReadString('\n')
		lines <- lineResult{line: line, err: err}
	}()

	select {
	case res := <-lines:
		if res.err != nil {
			t.Fatalf("failed to read response: %v", res.err)
		}
		var msg JSONRPCMessage
		if err := json.Unmarshal([]byte(res.line), &msg); err != nil {
			t.Fatalf("response is not valid JSON-RPC: %v", err)
		}
		return msg
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a response line")
		return JSONRPCMessage{}
	}
}

func TestStdIORequestResponse(t *testing.T) {
	server := testServer()
	tool, handler := echoTool()
	server.Tools().Register(tool, handler)

	sess := startStdIOSession(t, server)

	// The registration's list_changed event was queued before the transport
	// subscribed; it is drained onto the stream ahead of any reply.
	if msg := sess.readMessage(t); msg.Method != EventToolsListChanged {
		t.Fatalf("first frame method = %q, want %s", msg.Method, EventToolsListChanged)
	}

	sess.send(t, `{"jsonrpc":"2.0","id":1,"method":"ping"}`)
	msg := sess.readMessage(t)
	if string(msg.ID) != "1" || string(msg.Result) != "{}" {
		t.Errorf("ping reply = %+v", msg)
	}

	// Blank lines are ignored; the next frame still gets through.
	sess.send(t, "")
	sess.send(t, `{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"echo","arguments":{"message":"hi"}}}`)
	msg = sess.readMessage(t)

	var result CallToolResult
	if err := json.Unmarshal(msg.Result, &result); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Content[0].Text != "Echo: hi" {
		t.Errorf("content = %+v", result.Content)
	}
}

func TestStdIONotificationSilence(t *testing.T) {
	server := testServer()
	sess := startStdIOSession(t, server)

	// A notification must produce no output; the following ping reply is the
	// first frame on the stream.
	sess.send(t, `{"jsonrpc":"2.0","method":"notifications/initialized"}`)
	sess.send(t, `{"jsonrpc":"2.0","id":7,"method":"ping"}`)

	msg := sess.readMessage(t)
	if string(msg.ID) != "7" {
		t.Errorf("first frame id = %s, want 7 (notification leaked a reply?)", msg.ID)
	}
}

func TestStdIOServerInitiatedNotification(t *testing.T) {
	server := testServer()
	sess := startStdIOSession(t, server)

	// Exercise the bus path: subscribe over the wire, then trigger an update.
	// Registering publishes resources/list_changed, which the transport writes
	// to the unbuffered pipe synchronously, so it runs concurrently with the
	// read that consumes that frame.
	go server.Resources().Register(Resource{URI: "file://x", Name: "x"},
		TextResourceReader("file://x", "text/plain", "x"))
	if msg := sess.readMessage(t); msg.Method != EventResourcesListChanged {
		t.Fatalf("method = %q, want %s", msg.Method, EventResourcesListChanged)
	}

	sess.send(t, `{"jsonrpc":"2.0","id":1,"method":"resources/subscribe","params":{"uri":"file://x"}}`)
	if msg := sess.readMessage(t); msg.Error != nil {
		t.Fatalf("subscribe failed: %v", msg.Error)
	}

	// The publish path writes to the unbuffered pipe synchronously, so it
	// must run concurrently with the read below.
	go server.Resources().NotifyUpdated("file://x")

	msg := sess.readMessage(t)
	if msg.Method != "notifications/resources/updated" {
		t.Fatalf("method = %q, want notifications/resources/updated", msg.Method)
	}
	var params ResourceUpdatedParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if params.URI != "file://x" {
		t.Errorf("uri = %q, want file://x", params.URI)
	}
}

func TestStdIOEndOfStream(t *testing.T) {
	server := testServer()
	sess := startStdIOSession(t, server)

	sess.in.Close()

	select {
	case err := <-sess.served:
		if err != nil {
			t.Errorf("Serve returned %v on EOF, want nil", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not stop on end of stream")
	}
}

func TestStdIOShutdown(t *testing.T) {
	server := testServer()
	sess := startStdIOSession(t, server)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := sess.transport.Shutdown(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	select {
	case err := <-sess.served:
		if err != nil {
			t.Errorf("Serve returned %v after shutdown, want nil", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not stop after shutdown")
	}

	// A second shutdown is a no-op.
	if err := sess.transport.Shutdown(ctx); err != nil {
		t.Errorf("unexpected error on repeated shutdown: %v", err)
	}
}
