package everything

import (
	"context"
	"fmt"

	mcp "github.com/MegaGrindStone/go-mcp-server"
)

const (
	readmeURI       = "example://text/readme"
	logoURI         = "example://blob/logo"
	noteURITemplate = "example://notes/{name}"
	noteURIPrefix   = "example://notes/"
)

// tinyPNG is a 1x1 transparent PNG, small enough to inline and still a valid
// image for clients that render blob resources.
const tinyPNG = "iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mP8z8BQDwAEhQGAhKmMIQAAAABJRU5ErkJggg=="

func (s *Server) registerResources() {
	resources := s.mcp.Resources()

	resources.Register(mcp.Resource{
		URI:         readmeURI,
		Name:        "readme",
		Description: "A static text resource",
		MimeType:    "text/plain",
	}, mcp.TextResourceReader(readmeURI, "text/plain",
		"This server demonstrates every capability of the protocol core.\n"))

	resources.Register(mcp.Resource{
		URI:         logoURI,
		Name:        "logo",
		Description: "A static binary resource",
		MimeType:    "image/png",
	}, mcp.BlobResourceReader(logoURI, "image/png", mustDecodeBase64(tinyPNG)))

	resources.RegisterTemplate(mcp.ResourceTemplate{
		URITemplate: noteURITemplate,
		Name:        "note",
		Description: "A named note; expand the template and read the result",
		MimeType:    "text/plain",
	})

	s.registerNotes()
}

func (s *Server) registerNotes() {
	s.notesMu.Lock()
	names := make([]string, 0, len(s.notes))
	for name := range s.notes {
		names = append(names, name)
	}
	s.notesMu.Unlock()

	for _, name := range names {
		s.registerNote(name)
	}
}

func (s *Server) registerNote(name string) {
	uri := noteURIPrefix + name
	s.mcp.Resources().Register(mcp.Resource{
		URI:      uri,
		Name:     "note: " + name,
		MimeType: "text/plain",
	}, s.readNote(name))
}

func (s *Server) readNote(name string) mcp.ResourceReader {
	return func(context.Context) (mcp.ResourceContents, error) {
		s.notesMu.Lock()
		text, ok := s.notes[name]
		s.notesMu.Unlock()

		if !ok {
			return mcp.ResourceContents{}, fmt.Errorf("note %q no longer exists", name)
		}
		return mcp.ResourceContents{
			URI:      noteURIPrefix + name,
			MimeType: "text/plain",
			Text:     text,
		}, nil
	}
}

// WriteNote creates or updates a note. New notes join the resource list;
// updates to subscribed notes emit notifications/resources/updated.
func (s *Server) WriteNote(name, text string) {
	s.notesMu.Lock()
	_, existed := s.notes[name]
	s.notes[name] = text
	s.notesMu.Unlock()

	if !existed {
		s.registerNote(name)
		return
	}
	s.mcp.Resources().NotifyUpdated(noteURIPrefix + name)
}

// DeleteNote removes a note and its resource registration.
func (s *Server) DeleteNote(name string) {
	s.notesMu.Lock()
	delete(s.notes, name)
	s.notesMu.Unlock()

	s.mcp.Resources().Unregister(noteURIPrefix + name)
}
