// Package everything provides a reference capability bundle that exercises
// every manager of the protocol core: tools, resources with subscriptions and
// templates, prompts, logging, and argument completion. It is primarily a
// testing and demonstration aid for MCP client implementations, not a
// production server.
package everything

import (
	"context"
	"encoding/base64"
	"sort"
	"strings"
	"sync"

	mcp "github.com/MegaGrindStone/go-mcp-server"
)

// Server wires the reference tools, resources, prompts, and completion
// provider into an mcp.Server.
type Server struct {
	mcp *mcp.Server

	notesMu sync.Mutex
	notes   map[string]string
}

// New registers the bundle onto s and returns the handle used to mutate the
// sample resources at runtime.
func New(s *mcp.Server) *Server {
	srv := &Server{
		mcp:   s,
		notes: map[string]string{"welcome": "Welcome to the everything server."},
	}

	srv.registerTools()
	srv.registerResources()
	srv.registerPrompts()

	s.Completion().SetProvider(srv.complete)

	return srv
}

// complete suggests values for declared prompt arguments and for the note
// resource template. Unknown references complete to nothing.
func (s *Server) complete(_ context.Context, params mcp.CompleteParams) ([]string, error) {
	var candidates []string

	switch params.Ref.Type {
	case mcp.CompletionRefPrompt:
		prompt, ok := s.mcp.Prompts().Prompt(params.Ref.Name)
		if !ok {
			return nil, nil
		}
		for _, arg := range prompt.Arguments {
			if arg.Name == params.Argument.Name {
				candidates = promptArgumentCandidates(prompt.Name, arg.Name)
				break
			}
		}
	case mcp.CompletionRefResource:
		if params.Ref.URI == noteURITemplate && params.Argument.Name == "name" {
			s.notesMu.Lock()
			for name := range s.notes {
				candidates = append(candidates, name)
			}
			s.notesMu.Unlock()
			sort.Strings(candidates)
		}
	}

	prefix := strings.ToLower(params.Argument.Value)
	var values []string
	for _, candidate := range candidates {
		if strings.HasPrefix(strings.ToLower(candidate), prefix) {
			values = append(values, candidate)
		}
	}
	return values, nil
}

func promptArgumentCandidates(promptName, argName string) []string {
	switch promptName + "/" + argName {
	case "simple_greeting/name":
		return []string{"Alice", "Bob", "Carol"}
	case "code_review/language":
		return []string{"go", "javascript", "python", "rust"}
	}
	return nil
}

func mustDecodeBase64(s string) []byte {
	bs, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		panic(err)
	}
	return bs
}
