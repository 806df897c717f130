// Package filesystem provides root-bound file tools for the protocol core:
// reading, writing, listing, glob search, and diff-previewed edits, all
// confined to a configured root directory. A file://{path} resource template
// advertises the tree to clients.
package filesystem

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	mcp "github.com/MegaGrindStone/go-mcp-server"
)

// Server registers the filesystem tools onto an mcp.Server, confined to root.
type Server struct {
	mcp  *mcp.Server
	root string
}

// New validates root and registers the filesystem bundle onto s.
func New(s *mcp.Server, root string) (*Server, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root: %w", err)
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root %s is not a directory", absRoot)
	}

	srv := &Server{
		mcp:  s,
		root: filepath.Clean(absRoot),
	}
	srv.registerTools()

	s.Resources().RegisterTemplate(mcp.ResourceTemplate{
		URITemplate: "file://{path}",
		Name:        "file",
		Description: "A file under the served root directory",
	})

	return srv, nil
}

// Root returns the directory every operation is confined to.
func (s *Server) Root() string { return s.root }

// resolvePath confines a client-supplied relative path to the root. Absolute
// paths and traversal outside the root are rejected.
func (s *Server) resolvePath(requested string) (string, error) {
	if requested == "" {
		return "", fmt.Errorf("path is required")
	}
	if filepath.IsAbs(requested) {
		return "", fmt.Errorf("access denied - absolute paths are not allowed: %s", requested)
	}

	joined := filepath.Clean(filepath.Join(s.root, filepath.FromSlash(requested)))
	rel, err := filepath.Rel(s.root, joined)
	if err != nil {
		return "", err
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("access denied - path %s outside root %s", requested, s.root)
	}
	return joined, nil
}

// fileURI converts a resolved absolute path back to the advertised file://
// form with a root-relative, slash-separated path.
func (s *Server) fileURI(resolved string) string {
	rel, err := filepath.Rel(s.root, resolved)
	if err != nil {
		rel = resolved
	}
	return "file://" + filepath.ToSlash(rel)
}

func unmarshalArgs(args json.RawMessage, v any) error {
	if len(args) == 0 {
		return fmt.Errorf("missing arguments")
	}
	if err := json.Unmarshal(args, v); err != nil {
		return fmt.Errorf("failed to unmarshal arguments: %w", err)
	}
	return nil
}
