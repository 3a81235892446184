package mcp

import (
	"context"
	"encoding/json"

	mcplib "github.com/mark3labs/mcp-go/mcp"
)

const projectsURI = "nexuspm://projects"

// registerResources registers all MCP resources on the server.
func (s *Server) registerResources() {
	s.mcpServer.AddResource(
		mcplib.NewResource(
			projectsURI,
			"Project List",
			mcplib.WithResourceDescription("List of all NexusPM projects"),
			mcplib.WithMIMEType("application/json"),
		),
		s.handleProjectsResource,
	)
}

func (s *Server) handleProjectsResource(ctx context.Context, req mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	text := `{"error":"project lister not configured"}`
	if s.deps.Projects != nil {
		projects, err := s.deps.Projects.List(ctx)
		if err != nil {
			return nil, err
		}
		data, err := json.Marshal(projects)
		if err != nil {
			return nil, err
		}
		text = string(data)
	}
	return []mcplib.ResourceContents{
		mcplib.TextResourceContents{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     text,
		},
	}, nil
}
