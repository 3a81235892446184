package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/Strob0t/NexusPM/internal/domain/run"
	"github.com/Strob0t/NexusPM/internal/domain/signal"
	"github.com/Strob0t/NexusPM/internal/service"
)

// registerTools registers all MCP tools on the server.
func (s *Server) registerTools() {
	s.mcpServer.AddTools(
		s.listProjectsTool(),
		s.listRunsTool(),
		s.getRunTool(),
		s.getRunLogsTool(),
		s.triggerRunTool(),
		s.reviewRunTool(),
	)
}

func projectArg() mcplib.ToolOption {
	return mcplib.WithString("project_id",
		mcplib.Required(),
		mcplib.Description("The project ID"),
	)
}

func runArg() mcplib.ToolOption {
	return mcplib.WithString("run_id",
		mcplib.Required(),
		mcplib.Description("The run ID"),
	)
}

func (s *Server) listProjectsTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("list_projects",
		mcplib.WithDescription("List all projects managed by NexusPM"),
	)
	return mcpserver.ServerTool{Tool: tool, Handler: s.handleListProjects}
}

func (s *Server) listRunsTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("list_runs",
		mcplib.WithDescription("List the pipeline runs of a project, newest first"),
		projectArg(),
	)
	return mcpserver.ServerTool{Tool: tool, Handler: s.handleListRuns}
}

func (s *Server) getRunTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("get_run",
		mcplib.WithDescription("Get a pipeline run with its stages and proposed ticket changes"),
		projectArg(),
		runArg(),
	)
	return mcpserver.ServerTool{Tool: tool, Handler: s.handleGetRun}
}

func (s *Server) getRunLogsTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("get_run_logs",
		mcplib.WithDescription("Get the telemetry log of a pipeline run"),
		projectArg(),
		runArg(),
	)
	return mcpserver.ServerTool{Tool: tool, Handler: s.handleGetRunLogs}
}

func (s *Server) triggerRunTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("trigger_run",
		mcplib.WithDescription("Start a pipeline run that reads chat and design signals and drafts ticket changes"),
		projectArg(),
		mcplib.WithString("description",
			mcplib.Description("Optional label for the run"),
		),
		mcplib.WithString("sources",
			mcplib.Description("Comma separated sources to ingest (slack, figma). Defaults to both."),
		),
	)
	return mcpserver.ServerTool{Tool: tool, Handler: s.handleTriggerRun}
}

func (s *Server) reviewRunTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("review_run",
		mcplib.WithDescription("Approve or reject all pending changes of a run awaiting review"),
		projectArg(),
		runArg(),
		mcplib.WithString("action",
			mcplib.Required(),
			mcplib.Description("approve or reject"),
			mcplib.Enum(string(service.ActionApprove), string(service.ActionReject)),
		),
	)
	return mcpserver.ServerTool{Tool: tool, Handler: s.handleReviewRun}
}

func stringArg(req mcplib.CallToolRequest, name string) string { //nolint:gocritic // hugeParam: mcp-go request type
	v, _ := req.GetArguments()[name].(string)
	return strings.TrimSpace(v)
}

func requireArgs(req mcplib.CallToolRequest, names ...string) ([]string, *mcplib.CallToolResult) { //nolint:gocritic // hugeParam: mcp-go request type
	out := make([]string, len(names))
	for i, name := range names {
		out[i] = stringArg(req, name)
		if out[i] == "" {
			return nil, mcplib.NewToolResultError(name + " is required")
		}
	}
	return out, nil
}

func marshalResult(what string, v any) *mcplib.CallToolResult {
	data, err := json.Marshal(v)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to marshal "+what, err)
	}
	return toolResultJSON(string(data))
}

func (s *Server) handleListProjects(ctx context.Context, _ mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Projects == nil {
		return mcplib.NewToolResultError("project lister not configured"), nil
	}
	projects, err := s.deps.Projects.List(ctx)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to list projects", err), nil
	}
	return marshalResult("projects", projects), nil
}

func (s *Server) handleListRuns(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Runs == nil {
		return mcplib.NewToolResultError("run reader not configured"), nil
	}
	args, bad := requireArgs(req, "project_id")
	if bad != nil {
		return bad, nil
	}
	runs, err := s.deps.Runs.ListRuns(ctx, args[0])
	if err != nil {
		return mcplib.NewToolResultErrorFromErr(fmt.Sprintf("failed to list runs of %s", args[0]), err), nil
	}
	return marshalResult("runs", runs), nil
}

func (s *Server) handleGetRun(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Runs == nil {
		return mcplib.NewToolResultError("run reader not configured"), nil
	}
	args, bad := requireArgs(req, "project_id", "run_id")
	if bad != nil {
		return bad, nil
	}
	r, err := s.deps.Runs.GetRun(ctx, args[0], args[1])
	if err != nil {
		return mcplib.NewToolResultErrorFromErr(fmt.Sprintf("failed to get run %s", args[1]), err), nil
	}
	return marshalResult("run", r), nil
}

func (s *Server) handleGetRunLogs(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Runs == nil {
		return mcplib.NewToolResultError("run reader not configured"), nil
	}
	args, bad := requireArgs(req, "project_id", "run_id")
	if bad != nil {
		return bad, nil
	}
	if _, err := s.deps.Runs.GetRun(ctx, args[0], args[1]); err != nil {
		return mcplib.NewToolResultErrorFromErr(fmt.Sprintf("failed to get run %s", args[1]), err), nil
	}
	logs, err := s.deps.Runs.ListTelemetry(ctx, args[0], args[1])
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to read run logs", err), nil
	}
	if logs == nil {
		logs = []run.TelemetryEntry{}
	}
	return marshalResult("logs", logs), nil
}

func (s *Server) handleTriggerRun(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Trigger == nil {
		return mcplib.NewToolResultError("run trigger not configured"), nil
	}
	args, bad := requireArgs(req, "project_id")
	if bad != nil {
		return bad, nil
	}
	treq := run.TriggerRequest{Description: stringArg(req, "description")}
	if raw := stringArg(req, "sources"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				treq.Sources = append(treq.Sources, signal.Source(strings.ToLower(part)))
			}
		}
	}
	started, err := s.deps.Trigger.Trigger(ctx, args[0], treq)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to trigger run", err), nil
	}
	return marshalResult("run", started), nil
}

func (s *Server) handleReviewRun(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Reviewer == nil {
		return mcplib.NewToolResultError("run reviewer not configured"), nil
	}
	args, bad := requireArgs(req, "project_id", "run_id", "action")
	if bad != nil {
		return bad, nil
	}
	action, err := service.ParseAction(args[2])
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("invalid action", err), nil
	}
	r, err := s.deps.Reviewer.RunAction(ctx, args[0], args[1], action)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr(fmt.Sprintf("failed to %s run %s", action, args[1]), err), nil
	}
	return marshalResult("run", r), nil
}
