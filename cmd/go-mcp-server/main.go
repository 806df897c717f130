// Command go-mcp-server runs the MCP server with the built-in everything and
// filesystem bundles, over either the streamable HTTP transport or standard
// streams.
//
// Usage:
//
//	go-mcp-server [--transport=stdio|http] [--port=N | -p N | N] [--daemon | -d]
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	mcp "github.com/MegaGrindStone/go-mcp-server"
	"github.com/MegaGrindStone/go-mcp-server/servers/everything"
	"github.com/MegaGrindStone/go-mcp-server/servers/filesystem"
	"golang.org/x/sync/errgroup"
)

const (
	serverName    = "go-mcp-server"
	serverVersion = "0.1.0"

	defaultPort = 3000

	shutdownGrace = 10 * time.Second
)

type config struct {
	transport string
	port      int
	daemon    bool
}

func main() {
	cfg, err := parseArgs(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %s\n", serverName, err)
		os.Exit(1)
	}

	if err := run(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %s\n", serverName, err)
		os.Exit(1)
	}
}

// parseArgs handles the small argument surface by hand: --transport=stdio|http,
// --port=N, -p N, a bare port number, and --daemon/-d.
func parseArgs(args []string) (config, error) {
	cfg := config{
		transport: "http",
		port:      defaultPort,
	}

	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case strings.HasPrefix(arg, "--transport="):
			cfg.transport = strings.TrimPrefix(arg, "--transport=")
			if cfg.transport != "stdio" && cfg.transport != "http" {
				return config{}, fmt.Errorf("invalid transport: %s", cfg.transport)
			}
		case strings.HasPrefix(arg, "--port="):
			port, err := strconv.Atoi(strings.TrimPrefix(arg, "--port="))
			if err != nil {
				return config{}, fmt.Errorf("invalid port: %s", arg)
			}
			cfg.port = port
		case arg == "-p":
			if i+1 >= len(args) {
				return config{}, fmt.Errorf("-p requires a port number")
			}
			i++
			port, err := strconv.Atoi(args[i])
			if err != nil {
				return config{}, fmt.Errorf("invalid port: %s", args[i])
			}
			cfg.port = port
		case arg == "--daemon" || arg == "-d":
			cfg.daemon = true
		default:
			if port, err := strconv.Atoi(arg); err == nil {
				cfg.port = port
				continue
			}
			return config{}, fmt.Errorf("unknown argument: %s", arg)
		}
	}

	return cfg, nil
}

func run(cfg config) error {
	logger, cleanup, err := buildLogger(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	server := mcp.NewServer(mcp.Info{
		Name:    serverName,
		Version: serverVersion,
	}, mcp.WithServerLogger(logger))

	everything.New(server)
	if _, err := filesystem.New(server, "."); err != nil {
		return fmt.Errorf("failed to set up filesystem server: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.transport == "stdio" {
		return runStdIO(ctx, server, logger)
	}
	return runHTTP(ctx, cfg, server, logger)
}

func runStdIO(ctx context.Context, server *mcp.Server, logger *slog.Logger) error {
	transport := mcp.NewStdIO(server.Processor(), server.Bus(), mcp.WithStdIOLogger(logger))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		// End of the input stream ends the process, signal or not.
		defer cancel()
		return transport.Serve()
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return transport.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func runHTTP(ctx context.Context, cfg config, server *mcp.Server, logger *slog.Logger) error {
	transport := mcp.NewStreamableHTTP(server.Info(), server.Processor(), server.Bus(),
		mcp.WithStreamableCORS("*"),
		mcp.WithStreamableLogger(logger))

	addr := fmt.Sprintf(":%d", cfg.port)
	logger.Info("serving MCP over HTTP", slog.String("addr", addr))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		return transport.Serve(addr)
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return transport.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// buildLogger writes structured text to stderr, or to a file under the OS
// temp dir when running as a daemon so the console streams stay quiet.
func buildLogger(cfg config) (*slog.Logger, func(), error) {
	if !cfg.daemon {
		return slog.New(slog.NewTextHandler(os.Stderr, nil)), func() {}, nil
	}

	path := filepath.Join(os.TempDir(), serverName+".log")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return slog.New(slog.NewTextHandler(f, nil)), func() { f.Close() }, nil
}
