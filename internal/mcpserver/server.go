// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes dirtools tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/dirtools/internal/models"
	"github.com/starford/dirtools/internal/treeservice"
)

// ExcludeFormatURI is the resource URI of the ignore-file contract.
const ExcludeFormatURI = "dirtools://exclude-format"

// Server wraps the MCP server with dirtools tools.
type Server struct {
	mcp *server.MCPServer
	svc *treeservice.Service
}

// New creates a new MCP server with all dirtools tools registered.
func New(svc *treeservice.Service) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"dirtools",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_files",
		mcp.WithDescription("List the non-excluded files of the tree, relative to its root."),
		mcp.WithString("pattern", mcp.Description("Optional glob matched against file basenames (default *)")),
	), s.listFiles)

	s.mcp.AddTool(mcp.NewTool("list_subdirs",
		mcp.WithDescription("List the non-excluded directories of the tree, relative to its root."),
		mcp.WithString("pattern", mcp.Description("Optional glob matched against directory basenames (default *)")),
	), s.listSubdirs)

	s.mcp.AddTool(mcp.NewTool("find_projects",
		mcp.WithDescription("Find directories that directly contain a marker file such as .git or go.mod."),
		mcp.WithString("marker", mcp.Required(), mcp.Description("File name identifying a project directory")),
	), s.findProjects)

	s.mcp.AddTool(mcp.NewTool("tree_hash",
		mcp.WithDescription("Compute the aggregate content digest of all non-excluded files."),
	), s.treeHash)

	s.mcp.AddTool(mcp.NewTool("is_excluded",
		mcp.WithDescription("Check whether a relative path is excluded by the tree's ignore rules. "+
			"Read the rule format via the "+ExcludeFormatURI+" resource."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Path relative to the tree root")),
	), s.isExcluded)

	s.mcp.AddTool(mcp.NewTool("take_snapshot",
		mcp.WithDescription("Record a snapshot of the tree and report what changed since the previous one."),
	), s.takeSnapshot)

	s.mcp.AddTool(mcp.NewTool("list_snapshots",
		mcp.WithDescription("List recorded snapshots of the tree, newest first."),
		mcp.WithString("limit", mcp.Description("Maximum number of snapshots (default 50)")),
	), s.listSnapshots)

	s.mcp.AddTool(mcp.NewTool("diff_snapshots",
		mcp.WithDescription("Compare a recorded snapshot with a newer one, or with the live tree when newer is omitted."),
		mcp.WithString("older", mcp.Required(), mcp.Description("Id of the older snapshot")),
		mcp.WithString("newer", mcp.Description("Id of the newer snapshot (default: live tree)")),
	), s.diffSnapshots)

	// Resource: ignore-file contract.
	s.mcp.AddResource(
		mcp.NewResource(ExcludeFormatURI, "Exclude File Format",
			mcp.WithResourceDescription("Format of the .exclude file that filters every tree operation."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readExcludeFormatResource,
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

func (s *Server) listFiles(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	files, err := s.svc.Files(ctx, optional(req, "pattern"))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return lines(files, "no files found"), nil
}

func (s *Server) listSubdirs(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	dirs, err := s.svc.Subdirs(ctx, optional(req, "pattern"))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return lines(dirs, "no directories found"), nil
}

func (s *Server) findProjects(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	marker, err := req.RequireString("marker")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	projects, err := s.svc.Projects(ctx, marker)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return lines(projects, "no projects found"), nil
}

func (s *Server) treeHash(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	res, err := s.svc.Hash(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("%s:%s", res.Algorithm, res.Digest)), nil
}

func (s *Server) isExcluded(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	p, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	excluded, err := s.svc.Excluded(ctx, p)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(strconv.FormatBool(excluded)), nil
}

func (s *Server) takeSnapshot(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	res, err := s.svc.TakeSnapshot(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(res), nil
}

func (s *Server) listSnapshots(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := 0
	if raw := optional(req, "limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid limit: %s", raw)), nil
		}
		limit = n
	}
	items, err := s.svc.ListSnapshots(ctx, limit)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(items), nil
}

func (s *Server) diffSnapshots(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := req.RequireString("older")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	older, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid snapshot id: %s", raw)), nil
	}

	var res *models.DiffResult
	if rawNewer := optional(req, "newer"); rawNewer != "" {
		newer, perr := strconv.ParseInt(rawNewer, 10, 64)
		if perr != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid snapshot id: %s", rawNewer)), nil
		}
		res, err = s.svc.Diff(ctx, newer, older)
	} else {
		res, err = s.svc.DiffCurrent(ctx, older)
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(res), nil
}

func (s *Server) readExcludeFormatResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      ExcludeFormatURI,
			MIMEType: "text/markdown",
			Text:     ExcludeFormatContract,
		},
	}, nil
}

func optional(req mcp.CallToolRequest, key string) string {
	v, err := req.RequireString(key)
	if err != nil {
		return ""
	}
	return v
}

func lines(items []string, empty string) *mcp.CallToolResult {
	if len(items) == 0 {
		return mcp.NewToolResultText(empty)
	}
	return mcp.NewToolResultText(strings.Join(items, "\n"))
}

func jsonResult(v any) *mcp.CallToolResult {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultText(string(out))
}
