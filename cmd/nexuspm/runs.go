package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/Strob0t/NexusPM/internal/domain/project"
	"github.com/Strob0t/NexusPM/internal/domain/run"
)

var jsonOutput bool

func runsCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "runs", Short: "Inspect pipeline runs"}
	cmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output JSON")
	cmd.AddCommand(runsListCmd(), runsShowCmd())
	return cmd
}

func runsListCmd() *cobra.Command {
	var projectID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the runs of a project, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if projectID == "" {
				return errors.New("--project required")
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				runs, err := a.store.ListRuns(ctx, projectID)
				if err != nil {
					return err
				}
				if jsonOutput {
					return printJSON(os.Stdout, runs)
				}
				renderRuns(os.Stdout, runs)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&projectID, "project", "p", "", "project id")
	return cmd
}

func runsShowCmd() *cobra.Command {
	var projectID string
	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show one run with its stages and proposed changes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if projectID == "" {
				return errors.New("--project required")
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				r, err := a.store.GetRun(ctx, projectID, args[0])
				if err != nil {
					return err
				}
				if jsonOutput {
					return printJSON(os.Stdout, r)
				}
				renderRun(os.Stdout, r)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&projectID, "project", "p", "", "project id")
	return cmd
}

func projectsCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "projects", Short: "Inspect projects"}
	list := &cobra.Command{
		Use:   "list",
		Short: "List projects, most recently active first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				projects, err := a.projects.List(ctx)
				if err != nil {
					return err
				}
				if jsonOutput {
					return printJSON(os.Stdout, projects)
				}
				renderProjects(os.Stdout, projects)
				return nil
			})
		},
	}
	list.Flags().BoolVar(&jsonOutput, "json", false, "output JSON")
	cmd.AddCommand(list)
	return cmd
}

func renderRuns(w io.Writer, runs []run.Run) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.AppendHeader(table.Row{"ID", "Name", "Status", "Stage", "Diffs", "Executed", "Failed", "Created"})
	for i := range runs {
		r := &runs[i]
		tw.AppendRow(table.Row{r.ID, r.Name, r.Status, r.CurrentStage, len(r.Diffs), len(r.ExecutedChanges), len(r.FailedChanges), r.CreatedAt.Format(time.RFC3339)})
	}
	tw.Render()
}

func renderRun(w io.Writer, r *run.Run) {
	fmt.Fprintf(w, "%s  %s  [%s]\n", r.ID, r.Name, r.Status)
	if r.Summary != "" {
		fmt.Fprintln(w, r.Summary)
	}

	nodes := table.NewWriter()
	nodes.SetOutputMirror(w)
	nodes.AppendHeader(table.Row{"Stage", "Status", "Description"})
	for _, n := range r.Nodes {
		nodes.AppendRow(table.Row{n.Stage, n.Status, n.Description})
	}
	nodes.Render()

	if len(r.Diffs) == 0 {
		return
	}
	diffs := table.NewWriter()
	diffs.SetOutputMirror(w)
	diffs.AppendHeader(table.Row{"Diff", "Type", "Ticket", "Title", "Status"})
	for _, d := range r.Diffs {
		diffs.AppendRow(table.Row{d.ID, d.Proposal.Type, d.Proposal.ExistingTicket, d.Title, d.Status})
	}
	diffs.Render()
}

func renderProjects(w io.Writer, projects []project.Project) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.AppendHeader(table.Row{"ID", "Name", "Status", "Syncs", "Health", "Last Activity"})
	for i := range projects {
		p := &projects[i]
		tw.AppendRow(table.Row{p.ID, p.Name, p.Status, p.SyncCount, p.Health, p.LastActivity.Format(time.RFC3339)})
	}
	tw.Render()
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
