// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes codex collections for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"regexp"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/codex/internal/apperr"
	"github.com/starford/codex/internal/index"
	"github.com/starford/codex/internal/models"
	"github.com/starford/codex/internal/recordservice"
	"github.com/starford/codex/internal/storage"
)

const declarationsURI = "codex://declarations"

var idRe = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]*$`)

// FileBuilder recompiles a single document into the build output.
type FileBuilder interface {
	BuildFile(ctx context.Context, p string) (*models.Record, error)
}

// Server wraps the MCP server with codex tools.
type Server struct {
	mcp     *server.MCPServer
	svc     *recordservice.Service
	store   storage.Provider
	builder FileBuilder
}

// New creates a new MCP server with all codex tools registered.
// builder may be nil, in which case created records are only validated.
func New(svc *recordservice.Service, store storage.Provider, builder FileBuilder) *Server {
	s := &Server{svc: svc, store: store, builder: builder}

	s.mcp = server.NewMCPServer(
		"codex",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_collections",
		mcp.WithDescription("List the configured content collections with their module ids, fields and sort order."),
	), s.listCollections)

	s.mcp.AddTool(mcp.NewTool("list_records",
		mcp.WithDescription("List the compiled records of a collection in list() order."),
		mcp.WithString("collection", mcp.Required(), mcp.Description("Collection name")),
	), s.listRecords)

	s.mcp.AddTool(mcp.NewTool("get_record",
		mcp.WithDescription("Get one compiled record: id, HTML body and validated front matter."),
		mcp.WithString("collection", mcp.Required(), mcp.Description("Collection name")),
		mcp.WithString("id", mcp.Required(), mcp.Description("Record id (file name without extension)")),
	), s.getRecord)

	s.mcp.AddTool(mcp.NewTool("search_records",
		mcp.WithDescription("Full-text search through compiled record bodies and titles."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
		mcp.WithString("collection", mcp.Description("Restrict hits to this collection")),
	), s.searchRecords)

	s.mcp.AddTool(mcp.NewTool("get_collection_contract",
		mcp.WithDescription("Returns the document format of a collection. "+
			"Call this before creating records to ensure correct front matter."),
		mcp.WithString("collection", mcp.Required(), mcp.Description("Collection name")),
	), s.getContract)

	s.mcp.AddTool(mcp.NewTool("create_record",
		mcp.WithDescription("Create a new Markdown document in a collection. "+
			"Content MUST follow the collection contract (see get_collection_contract). "+
			"The document is rejected and removed if it fails validation."),
		mcp.WithString("collection", mcp.Required(), mcp.Description("Collection name")),
		mcp.WithString("id", mcp.Required(), mcp.Description("Record id, used as the file name")),
		mcp.WithString("content", mcp.Required(), mcp.Description("Markdown document with YAML front matter")),
	), s.createRecord)

	// Resource: generated type declarations.
	s.mcp.AddResource(
		mcp.NewResource(declarationsURI, "Type Declarations",
			mcp.WithResourceDescription("Generated TypeScript declarations of every collection module."),
			mcp.WithMIMEType("application/typescript"),
		),
		s.readDeclarationsResource,
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

func (s *Server) listCollections(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cols, err := s.svc.Collections(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(cols), nil
}

func (s *Server) listRecords(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("collection")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	records, err := s.svc.List(ctx, name)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(records), nil
}

func (s *Server) getRecord(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("collection")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	rec, err := s.svc.Get(ctx, name, id)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("not found: %s/%s", name, id)), nil
		}
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(rec), nil
}

func (s *Server) searchRecords(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.svc.Search(ctx, index.Query{
		Text:       query,
		Collection: req.GetString("collection", ""),
		Limit:      20,
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(results), nil
}

func (s *Server) getContract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("collection")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	info, err := s.svc.Collection(ctx, name)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(Contract(*info)), nil
}

func (s *Server) createRecord(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("collection")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if !idRe.MatchString(id) {
		return mcp.NewToolResultError(fmt.Sprintf("invalid id: %s", id)), nil
	}

	info, err := s.svc.Collection(ctx, name)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if _, err := s.svc.Get(ctx, name, id); err == nil || !errors.Is(err, apperr.ErrNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("record already exists: %s/%s", name, id)), nil
	}

	p := path.Join(info.Base, id+info.Extensions[0])
	if err := s.store.Write(p, []byte(content)); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	// Reject documents that do not compile.
	rec, err := s.svc.Get(ctx, name, id)
	if err != nil {
		_ = s.store.Delete(p)
		return mcp.NewToolResultError(err.Error()), nil
	}
	if s.builder != nil {
		if _, err := s.builder.BuildFile(ctx, p); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
	}
	return mcp.NewToolResultText(fmt.Sprintf("created: %s/%s", rec.Collection, rec.ID)), nil
}

func (s *Server) readDeclarationsResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      declarationsURI,
			MIMEType: "application/typescript",
			Text:     s.svc.Declarations(),
		},
	}, nil
}
