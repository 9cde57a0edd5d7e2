// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes Scribe import tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/scribe/internal/apperr"
	"github.com/starford/scribe/internal/entryservice"
	"github.com/starford/scribe/internal/export"
	"github.com/starford/scribe/internal/fields"
	"github.com/starford/scribe/internal/importer"
	"github.com/starford/scribe/internal/models"
	"github.com/starford/scribe/internal/store"
)

// Server wraps the MCP server with Scribe tools.
type Server struct {
	mcp      *server.MCPServer
	svc      *entryservice.Service
	contract string
}

// New creates a new MCP server with all Scribe tools registered.
func New(svc *entryservice.Service, reg *fields.Registry) *Server {
	s := &Server{svc: svc, contract: ImportFormatContract(reg)}

	s.mcp = server.NewMCPServer(
		"Scribe",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	importArgs := []mcp.ToolOption{
		mcp.WithString("payload", mcp.Required(), mcp.Description("JSON or HTML payload describing one or more entries")),
		mcp.WithString("mode", mcp.Description("Format to parse as"), mcp.Enum("auto", "json", "markup")),
		mcp.WithBoolean("overwrite", mcp.Description("Replace fields that already have a value (only with entry_id)")),
		mcp.WithString("entry_id", mcp.Description("Existing entry to merge a single-entry payload into")),
	}

	s.mcp.AddTool(mcp.NewTool("preview_import", append([]mcp.ToolOption{
		mcp.WithDescription("Parse a payload and show the entries it would produce without storing anything. " +
			"Read the contract first via the get_import_contract tool or the " + ImportFormatURI + " resource."),
	}, importArgs...)...), s.previewImport)

	s.mcp.AddTool(mcp.NewTool("import_entries", append([]mcp.ToolOption{
		mcp.WithDescription("Parse a payload and store the resulting entries. " +
			"With entry_id the payload is merged into that entry instead."),
		mcp.WithString("if_match", mcp.Description("Checksum the merged entry must still have")),
	}, importArgs...)...), s.importEntries)

	s.mcp.AddTool(mcp.NewTool("read_entry",
		mcp.WithDescription("Read a stored entry as JSON, marker HTML or Markdown."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Entry id")),
		mcp.WithString("format", mcp.Description("Output format"), mcp.Enum("json", "html", "markdown")),
	), s.readEntry)

	s.mcp.AddTool(mcp.NewTool("list_entries",
		mcp.WithDescription("List stored entries, newest first."),
		mcp.WithString("status", mcp.Description("Only entries with this status"), mcp.Enum("draft", "published", "archived")),
		mcp.WithString("journal", mcp.Description("Only entries in this journal")),
		mcp.WithString("collection", mcp.Description("Only entries in this collection")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of entries (default 50)")),
	), s.listEntries)

	s.mcp.AddTool(mcp.NewTool("search_entries",
		mcp.WithDescription("Full-text search through entry titles, excerpts and content."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of results (default 20)")),
	), s.searchEntries)

	s.mcp.AddTool(mcp.NewTool("get_import_contract",
		mcp.WithDescription("Returns the accepted JSON keys and markup markers. "+
			"Call this before building a payload."),
	), s.getImportContract)

	// Resource: import format contract.
	s.mcp.AddResource(
		mcp.NewResource(ImportFormatURI, "Import Format Contract",
			mcp.WithResourceDescription("JSON keys and markup markers the importer understands."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readImportFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) *mcp.CallToolResult {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultText(string(out))
}

func importRequest(req mcp.CallToolRequest) (entryservice.ImportRequest, error) {
	payload, err := req.RequireString("payload")
	if err != nil {
		return entryservice.ImportRequest{}, err
	}
	var mode importer.Mode
	if m := req.GetString("mode", ""); m != "" {
		if mode, err = importer.ParseMode(m); err != nil {
			return entryservice.ImportRequest{}, err
		}
	}
	return entryservice.ImportRequest{
		Payload:   payload,
		Mode:      mode,
		Overwrite: req.GetBool("overwrite", false),
		EntryID:   req.GetString("entry_id", ""),
		IfMatch:   req.GetString("if_match", ""),
		Source:    "mcp",
	}, nil
}

func (s *Server) previewImport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ireq, err := importRequest(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := s.svc.Preview(ctx, ireq)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(res), nil
}

func (s *Server) importEntries(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ireq, err := importRequest(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, err := s.svc.Import(ctx, ireq)
	if err != nil {
		msg := err.Error()
		if errors.Is(err, apperr.ErrImportFailed) && out != nil && len(out.Result.Warnings) > 0 {
			msg += "\nwarnings:\n- " + strings.Join(out.Result.Warnings, "\n- ")
		}
		return mcp.NewToolResultError(msg), nil
	}
	return jsonResult(out), nil
}

func (s *Server) readEntry(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	format := req.GetString("format", "json")
	if format == "json" {
		e, err := s.svc.Get(ctx, id)
		if err != nil {
			return mcp.NewToolResultError(notFoundMessage(err, id)), nil
		}
		return jsonResult(e), nil
	}

	f, err := export.ParseFormat(format)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	body, err := s.svc.Export(ctx, id, f)
	if err != nil {
		return mcp.NewToolResultError(notFoundMessage(err, id)), nil
	}
	return mcp.NewToolResultText(body), nil
}

func (s *Server) listEntries(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	q := store.ListQuery{
		Journal:    req.GetString("journal", ""),
		Collection: req.GetString("collection", ""),
		Limit:      req.GetInt("limit", 0),
	}
	if st := req.GetString("status", ""); st != "" {
		status, ok := models.ParseStatus(st)
		if !ok {
			return mcp.NewToolResultError(fmt.Sprintf("unknown status %q", st)), nil
		}
		q.Status = status
	}
	items, total, err := s.svc.List(ctx, q)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]any{"entries": items, "total": total}), nil
}

func (s *Server) searchEntries(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.svc.Search(ctx, query, req.GetInt("limit", 20))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(results), nil
}

func (s *Server) getImportContract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(s.contract), nil
}

func (s *Server) readImportFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      ImportFormatURI,
			MIMEType: "text/markdown",
			Text:     s.contract,
		},
	}, nil
}

func notFoundMessage(err error, id string) string {
	if errors.Is(err, apperr.ErrNotFound) {
		return fmt.Sprintf("not found: %s", id)
	}
	return err.Error()
}
