// Package mcp exposes the analysis service as MCP tools over stdio.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"pyscope/internal/core/config"
	"pyscope/internal/core/ports"
)

const (
	ToolListClasses           = "list_classes"
	ToolClassesWithParents    = "classes_with_parents"
	ToolListFunctions         = "list_functions"
	ToolFunctionsUnderClasses = "functions_under_classes"
	ToolListComments          = "list_comments"
	ToolListFiles             = "list_files"
)

type Server struct {
	svc        ports.AnalysisService
	credential string
	maxItems   int
	mcp        *server.MCPServer
}

// New registers every tool on a fresh MCP server.
func New(svc ports.AnalysisService, cfg config.MCP) *Server {
	s := &Server{
		svc:        svc,
		credential: cfg.Credential,
		maxItems:   cfg.MaxResponseItems,
		mcp: server.NewMCPServer(
			cfg.ServerName,
			cfg.ServerVersion,
			server.WithToolCapabilities(true),
		),
	}
	s.addQueryTool(ToolListClasses, ports.QueryClasses,
		"List class names in source order, nested classes included.")
	s.addQueryTool(ToolClassesWithParents, ports.QueryClassesWithParents,
		"List classes with their declared base classes in order.")
	s.addQueryTool(ToolListFunctions, ports.QueryFunctions,
		"List every function and method name in source order.")
	s.addQueryTool(ToolFunctionsUnderClasses, ports.QueryFunctionsUnderClasses,
		"Group function names by their enclosing class. Module-level functions are under Global_Functions.")
	s.addQueryTool(ToolListComments, ports.QueryComments,
		"List comments with their line and whether they trail code on the same line.")
	s.mcp.AddTool(mcp.NewTool(ToolListFiles,
		mcp.WithDescription("List the stored files owned by the caller."),
		mcp.WithString("credential", mcp.Description("Bearer token; defaults to the server credential.")),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
	), s.handleListFiles)
	return s
}

func (s *Server) MCPServer() *server.MCPServer { return s.mcp }

// ServeStdio blocks serving JSON-RPC on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

func (s *Server) addQueryTool(name string, q ports.Query, description string) {
	tool := mcp.NewTool(name,
		mcp.WithDescription(description),
		mcp.WithString("filename", mcp.Required(), mcp.Description("Name of a stored file, e.g. models.py.")),
		mcp.WithString("credential", mcp.Description("Bearer token; defaults to the server credential.")),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
	)
	s.mcp.AddTool(tool, s.queryHandler(q))
}

func (s *Server) queryHandler(q ports.Query) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := request.GetArguments()
		filename, _ := args["filename"].(string)
		filename = strings.TrimSpace(filename)
		if filename == "" {
			return mcp.NewToolResultError("filename is required"), nil
		}

		res, err := s.svc.Analyze(ctx, ports.AnalysisRequest{
			Credential: s.credentialFrom(args),
			Filename:   filename,
			Queries:    []ports.Query{q},
		})
		if err != nil {
			slog.Warn("mcp tool failed", "tool", request.Params.Name, "file", filename, "error", err)
			return mcp.NewToolResultError(err.Error()), nil
		}
		truncated := s.truncate(&res)
		return jsonResult(response{AnalysisResult: res, Truncated: truncated})
	}
}

func (s *Server) handleListFiles(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	names, err := s.svc.Files(ctx, s.credentialFrom(request.GetArguments()))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	truncated := false
	if s.maxItems > 0 && len(names) > s.maxItems {
		names, truncated = names[:s.maxItems], true
	}
	return jsonResult(struct {
		Files     []string `json:"files"`
		Truncated bool     `json:"truncated,omitempty"`
	}{names, truncated})
}

type response struct {
	ports.AnalysisResult
	Truncated bool `json:"truncated,omitempty"`
}

func (s *Server) credentialFrom(args map[string]any) string {
	if c, ok := args["credential"].(string); ok && strings.TrimSpace(c) != "" {
		return c
	}
	return s.credential
}

// truncate caps every list in res at maxItems and reports whether any list
// was cut.
func (s *Server) truncate(res *ports.AnalysisResult) bool {
	if s.maxItems <= 0 {
		return false
	}
	cut := false
	if res.Classes != nil && len(*res.Classes) > s.maxItems {
		*res.Classes, cut = (*res.Classes)[:s.maxItems], true
	}
	if res.ClassesWithParents != nil && len(*res.ClassesWithParents) > s.maxItems {
		*res.ClassesWithParents, cut = (*res.ClassesWithParents)[:s.maxItems], true
	}
	if res.Functions != nil && len(*res.Functions) > s.maxItems {
		*res.Functions, cut = (*res.Functions)[:s.maxItems], true
	}
	if res.Comments != nil && len(*res.Comments) > s.maxItems {
		*res.Comments, cut = (*res.Comments)[:s.maxItems], true
	}
	for scope, funcs := range res.FunctionsUnderClasses {
		if len(funcs) > s.maxItems {
			res.FunctionsUnderClasses[scope], cut = funcs[:s.maxItems], true
		}
	}
	return cut
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode tool result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}
