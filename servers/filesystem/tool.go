package filesystem

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	mcp "github.com/MegaGrindStone/go-mcp-server"
	"github.com/gobwas/glob"
	"github.com/sergi/go-diff/diffmatchpatch"
)

const readFileSchemaJSON = `{
  "type": "object",
  "properties": {
    "path": { "type": "string", "description": "Root-relative path of the file to read" }
  },
  "required": ["path"]
}`

const writeFileSchemaJSON = `{
  "type": "object",
  "properties": {
    "path": { "type": "string", "description": "Root-relative path of the file to write" },
    "content": { "type": "string", "description": "Full new content of the file" }
  },
  "required": ["path", "content"]
}`

const listDirectorySchemaJSON = `{
  "type": "object",
  "properties": {
    "path": { "type": "string", "description": "Root-relative path of the directory, empty for the root" }
  }
}`

const searchFilesSchemaJSON = `{
  "type": "object",
  "properties": {
    "pattern": { "type": "string", "description": "Glob pattern matched against root-relative paths" }
  },
  "required": ["pattern"]
}`

const editFileSchemaJSON = `{
  "type": "object",
  "properties": {
    "path": { "type": "string", "description": "Root-relative path of the file to edit" },
    "oldText": { "type": "string", "description": "Text to replace; must occur in the file" },
    "newText": { "type": "string", "description": "Replacement text" },
    "dryRun": { "type": "boolean", "description": "Preview the change as a diff without writing" }
  },
  "required": ["path", "oldText", "newText"]
}`

func (s *Server) registerTools() {
	tools := s.mcp.Tools()

	tools.Register(mcp.Tool{
		Name:        "read_file",
		Description: "Read the complete contents of a file under the served root",
		InputSchema: json.RawMessage(readFileSchemaJSON),
	}, s.callReadFile)

	tools.Register(mcp.Tool{
		Name:        "write_file",
		Description: "Create or overwrite a file under the served root",
		InputSchema: json.RawMessage(writeFileSchemaJSON),
	}, s.callWriteFile)

	tools.Register(mcp.Tool{
		Name:        "list_directory",
		Description: "List the entries of a directory under the served root",
		InputSchema: json.RawMessage(listDirectorySchemaJSON),
	}, s.callListDirectory)

	tools.Register(mcp.Tool{
		Name:        "search_files",
		Description: "Find files whose root-relative path matches a glob pattern",
		InputSchema: json.RawMessage(searchFilesSchemaJSON),
	}, s.callSearchFiles)

	tools.Register(mcp.Tool{
		Name:        "edit_file",
		Description: "Replace text in a file, optionally previewing the change as a unified diff",
		InputSchema: json.RawMessage(editFileSchemaJSON),
	}, s.callEditFile)
}

func (s *Server) callReadFile(_ context.Context, args json.RawMessage) (mcp.CallToolResult, error) {
	var params struct {
		Path string `json:"path"`
	}
	if err := unmarshalArgs(args, &params); err != nil {
		return mcp.CallToolResult{}, err
	}

	resolved, err := s.resolvePath(params.Path)
	if err != nil {
		return mcp.CallToolResult{}, err
	}

	content, err := os.ReadFile(resolved)
	if err != nil {
		return mcp.CallToolResult{}, fmt.Errorf("failed to read file: %w", err)
	}

	return textResult(string(content)), nil
}

func (s *Server) callWriteFile(_ context.Context, args json.RawMessage) (mcp.CallToolResult, error) {
	var params struct {
		Path    string `json:"path"`
		Content string `json:"content"`
	}
	if err := unmarshalArgs(args, &params); err != nil {
		return mcp.CallToolResult{}, err
	}

	resolved, err := s.resolvePath(params.Path)
	if err != nil {
		return mcp.CallToolResult{}, err
	}

	if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
		return mcp.CallToolResult{}, fmt.Errorf("failed to create parent directory: %w", err)
	}
	if err := os.WriteFile(resolved, []byte(params.Content), 0o644); err != nil {
		return mcp.CallToolResult{}, fmt.Errorf("failed to write file: %w", err)
	}

	s.mcp.Resources().NotifyUpdated(s.fileURI(resolved))

	return textResult(fmt.Sprintf("Successfully wrote %d bytes to %s", len(params.Content), params.Path)), nil
}

func (s *Server) callListDirectory(_ context.Context, args json.RawMessage) (mcp.CallToolResult, error) {
	params := struct {
		Path string `json:"path"`
	}{Path: "."}
	if len(args) > 0 {
		if err := json.Unmarshal(args, &params); err != nil {
			return mcp.CallToolResult{}, fmt.Errorf("failed to unmarshal arguments: %w", err)
		}
	}
	if params.Path == "" {
		params.Path = "."
	}

	resolved, err := s.resolvePath(params.Path)
	if err != nil {
		return mcp.CallToolResult{}, err
	}

	entries, err := os.ReadDir(resolved)
	if err != nil {
		return mcp.CallToolResult{}, fmt.Errorf("failed to read directory: %w", err)
	}

	var sb strings.Builder
	for _, entry := range entries {
		kind := "[FILE]"
		if entry.IsDir() {
			kind = "[DIR] "
		}
		fmt.Fprintf(&sb, "%s %s\n", kind, entry.Name())
	}

	return textResult(sb.String()), nil
}

func (s *Server) callSearchFiles(_ context.Context, args json.RawMessage) (mcp.CallToolResult, error) {
	var params struct {
		Pattern string `json:"pattern"`
	}
	if err := unmarshalArgs(args, &params); err != nil {
		return mcp.CallToolResult{}, err
	}
	if params.Pattern == "" {
		return mcp.CallToolResult{}, fmt.Errorf("pattern is required")
	}

	matcher, err := glob.Compile(params.Pattern, '/')
	if err != nil {
		return mcp.CallToolResult{}, fmt.Errorf("invalid pattern: %w", err)
	}

	var matches []string
	err = filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		if matcher.Match(filepath.ToSlash(rel)) {
			matches = append(matches, filepath.ToSlash(rel))
		}
		return nil
	})
	if err != nil {
		return mcp.CallToolResult{}, fmt.Errorf("failed to search files: %w", err)
	}

	sort.Strings(matches)
	if len(matches) == 0 {
		return textResult("No matches found"), nil
	}
	return textResult(strings.Join(matches, "\n")), nil
}

// callEditFile replaces one occurrence of oldText. With dryRun the change is
// rendered as a patch instead of written, so clients can preview edits.
func (s *Server) callEditFile(_ context.Context, args json.RawMessage) (mcp.CallToolResult, error) {
	var params struct {
		Path    string `json:"path"`
		OldText string `json:"oldText"`
		NewText string `json:"newText"`
		DryRun  bool   `json:"dryRun"`
	}
	if err := unmarshalArgs(args, &params); err != nil {
		return mcp.CallToolResult{}, err
	}

	resolved, err := s.resolvePath(params.Path)
	if err != nil {
		return mcp.CallToolResult{}, err
	}

	original, err := os.ReadFile(resolved)
	if err != nil {
		return mcp.CallToolResult{}, fmt.Errorf("failed to read file: %w", err)
	}

	content := string(original)
	if !strings.Contains(content, params.OldText) {
		return mcp.CallToolResult{}, fmt.Errorf("oldText not found in %s", params.Path)
	}
	edited := strings.Replace(content, params.OldText, params.NewText, 1)

	if params.DryRun {
		return textResult(renderPatch(content, edited)), nil
	}

	if err := os.WriteFile(resolved, []byte(edited), 0o644); err != nil {
		return mcp.CallToolResult{}, fmt.Errorf("failed to write file: %w", err)
	}

	s.mcp.Resources().NotifyUpdated(s.fileURI(resolved))

	return textResult(fmt.Sprintf("Successfully edited %s", params.Path)), nil
}

func renderPatch(original, edited string) string {
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(original, edited, true)
	patches := dmp.PatchMake(original, diffs)
	return dmp.PatchToText(patches)
}

func textResult(text string) mcp.CallToolResult {
	return mcp.CallToolResult{
		Content: []mcp.Content{
			{
				Type: mcp.ContentTypeText,
				Text: text,
			},
		},
		IsError: false,
	}
}
