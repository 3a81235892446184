package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	nxotel "github.com/Strob0t/NexusPM/internal/adapter/otel"
	"github.com/Strob0t/NexusPM/internal/domain/event"
	"github.com/Strob0t/NexusPM/internal/domain/fusion"
	"github.com/Strob0t/NexusPM/internal/domain/run"
	"github.com/Strob0t/NexusPM/internal/domain/signal"
	"github.com/Strob0t/NexusPM/internal/domain/ticket"
	"github.com/Strob0t/NexusPM/internal/port/database"
	"github.com/Strob0t/NexusPM/internal/port/source"
)

// fetchLimit is how many chat messages one ingestion requests.
const fetchLimit = 50

// Sources bundles the signal adapters. Nil sources are skipped.
type Sources struct {
	Chat          source.MessageSource
	ChatChannel   string
	Design        source.DesignSource
	DesignFileKey string
}

// Orchestrator drives a run through ingest, reason and draft, then parks it
// at human_review. Execution resumes only through ApprovalService.
type Orchestrator struct {
	store    database.Store
	writer   *RunWriter
	events   *EventPublisher
	projects *ProjectService
	history  *HistoryService
	tickets  *TicketCatalog
	fusion   *FusionService
	sources  Sources
	metrics  *nxotel.Metrics
	clock    clock

	wg sync.WaitGroup
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(
	store database.Store,
	writer *RunWriter,
	events *EventPublisher,
	projects *ProjectService,
	history *HistoryService,
	tickets *TicketCatalog,
	fusionSvc *FusionService,
	sources Sources,
) *Orchestrator {
	return &Orchestrator{
		store:    store,
		writer:   writer,
		events:   events,
		projects: projects,
		history:  history,
		tickets:  tickets,
		fusion:   fusionSvc,
		sources:  sources,
	}
}

// SetMetrics sets the optional metrics recorder.
func (o *Orchestrator) SetMetrics(m *nxotel.Metrics) {
	o.metrics = m
}

// Trigger creates a run and starts its pipeline in the background. The
// returned run is the initial state.
func (o *Orchestrator) Trigger(ctx context.Context, projectID string, req run.TriggerRequest) (*run.Run, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if _, err := o.projects.Get(ctx, projectID); err != nil {
		return nil, err
	}

	r := run.New(newID(), projectID, req.Description, req.Sources, o.clock.now())
	if err := o.store.CreateRun(ctx, r); err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}
	if o.metrics != nil {
		o.metrics.RunTriggered(ctx)
	}
	slog.Info("run triggered", "project_id", projectID, "run_id", r.ID, "sources", r.Sources)

	o.events.Pulse(ctx, projectID, event.Pulse{
		Agent:  "Orchestrator",
		Action: "started new agent run",
		Target: r.Name,
		Source: "system",
		Status: event.PulseProcessing,
	})
	o.events.RunUpdated(ctx, r)

	bg := context.WithoutCancel(ctx)
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.Execute(bg, r)
	}()
	return r, nil
}

// Wait blocks until every background pipeline has suspended or failed.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// pipeline holds the transient state of one execution.
type pipeline struct {
	r       *run.Run
	batch   *Batch
	design  *signal.DesignFile
	tickets []ticket.Ticket
	outcome FusionOutcome
	diffs   []run.Diff
}

// Execute runs the automatic stages of r synchronously. A stage failure
// marks the active node as error and fails the run.
func (o *Orchestrator) Execute(ctx context.Context, r *run.Run) {
	ctx, span := nxotel.StartRunSpan(ctx, r.ProjectID, r.ID)
	defer span.End()

	p := &pipeline{r: r}
	stages := []struct {
		stage run.Stage
		fn    func(context.Context, *pipeline) error
	}{
		{run.StageIngest, o.ingest},
		{run.StageReason, o.reason},
		{run.StageDraft, o.draft},
		{run.StageHumanReview, o.suspend},
	}
	for _, st := range stages {
		stageCtx, stageSpan := nxotel.StartStageSpan(ctx, string(st.stage))
		start := time.Now()
		err := st.fn(stageCtx, p)
		stageSpan.End()
		if o.metrics != nil {
			o.metrics.StageDone(ctx, string(st.stage), time.Since(start))
		}
		if err != nil {
			o.fail(ctx, r, st.stage, err)
			return
		}
	}
	o.projects.Touch(ctx, r.ProjectID)
}

func (o *Orchestrator) fail(ctx context.Context, r *run.Run, stage run.Stage, cause error) {
	slog.Error("pipeline stage failed", "project_id", r.ProjectID, "run_id", r.ID, "stage", stage, "error", cause)
	o.log(ctx, r, stage, run.LevelError, "Stage failed: "+cause.Error())
	if _, err := o.writer.Apply(ctx, o.transition(r, stage, run.NodeError, "Failed: "+truncate(cause.Error(), 200))); err != nil {
		slog.Error("mark run failed", "run_id", r.ID, "error", err)
	}
	o.events.Pulse(ctx, r.ProjectID, event.Pulse{
		Agent:  "Orchestrator",
		Action: "pipeline failed at " + string(stage),
		Target: r.Name,
		Source: "system",
		Status: event.PulseError,
	})
}

func (o *Orchestrator) transition(r *run.Run, stage run.Stage, status run.NodeStatus, desc string) run.Transition {
	return run.Transition{
		ProjectID:   r.ProjectID,
		RunID:       r.ID,
		Stage:       stage,
		Status:      status,
		Description: desc,
		At:          o.clock.now(),
	}
}

func (o *Orchestrator) log(ctx context.Context, r *run.Run, stage run.Stage, level run.Level, msg string) {
	o.events.Log(ctx, r.ProjectID, r.ID, stage, level, msg)
}

func (o *Orchestrator) checkpoint(ctx context.Context, r *run.Run, stage run.Stage, data map[string]any) {
	cp := run.Checkpoint{Stage: stage, RunID: r.ID, Timestamp: o.clock.now(), Data: data}
	if err := o.store.SaveCheckpoint(ctx, r.ProjectID, cp); err != nil {
		slog.Warn("save checkpoint failed", "project_id", r.ProjectID, "run_id", r.ID, "stage", stage, "error", err)
	}
}

func (o *Orchestrator) apply(ctx context.Context, t run.Transition) error {
	r, err := o.writer.Apply(ctx, t)
	if err != nil {
		return fmt.Errorf("%s %s: %w", t.Stage, t.Status, err)
	}
	slog.Debug("stage transition", "project_id", r.ProjectID, "run_id", r.ID, "stage", t.Stage, "status", t.Status)
	return nil
}

func selected(r *run.Run, s signal.Source) bool {
	for _, x := range r.Sources {
		if x == s {
			return true
		}
	}
	return false
}

// --- ingest ---

func (o *Orchestrator) ingest(ctx context.Context, p *pipeline) error {
	r := p.r
	names := make([]string, len(r.Sources))
	for i, s := range r.Sources {
		names[i] = string(s)
	}
	o.log(ctx, r, run.StageIngest, run.LevelInfo, "Starting data ingestion from "+strings.Join(names, ", "))
	o.checkpoint(ctx, r, run.StageIngest, nil)
	o.events.Pulse(ctx, r.ProjectID, event.Pulse{
		Agent: "Curator", Action: "starting ingestion", Target: strings.Join(names, " & "),
		Source: "system", Status: event.PulseProcessing,
	})

	var (
		messages  []signal.Message
		chatErr   error
		design    *signal.DesignFile
		designErr error
		tickets   []ticket.Ticket
		ticketErr error
	)
	g, gctx := errgroup.WithContext(ctx)
	if selected(r, signal.SourceSlack) && o.sources.Chat != nil {
		g.Go(func() error {
			messages, chatErr = o.sources.Chat.FetchMessages(gctx, o.sources.ChatChannel, fetchLimit)
			return nil
		})
	}
	if selected(r, signal.SourceFigma) && o.sources.Design != nil {
		g.Go(func() error {
			design, designErr = o.fetchDesign(gctx)
			return nil
		})
	}
	g.Go(func() error {
		tickets, ticketErr = o.tickets.List(gctx)
		return nil
	})
	_ = g.Wait()

	var details []string

	if selected(r, signal.SourceSlack) {
		if chatErr != nil {
			o.log(ctx, r, run.StageIngest, run.LevelWarning, "Slack unavailable: "+chatErr.Error())
		}
		batch, err := o.history.Record(ctx, r.ProjectID, messages)
		if err != nil {
			return err
		}
		p.batch = batch
		msg := fmt.Sprintf("Slack: collected %d new messages (%d total)", len(batch.New), batch.Summary.Count)
		o.log(ctx, r, run.StageIngest, run.LevelInfo, msg)
		o.events.Pulse(ctx, r.ProjectID, event.Pulse{
			Agent:  "Curator",
			Action: fmt.Sprintf("collected %d new messages (%d total in history)", len(batch.New), batch.Summary.Count),
			Target: "Channel: #" + o.sources.ChatChannel, Source: "slack", Status: event.PulseCompleted,
		})
		details = append(details, fmt.Sprintf("Slack: %d new messages (%d total history)", len(batch.New), batch.Summary.Count))
	}

	if selected(r, signal.SourceFigma) {
		if designErr != nil {
			o.log(ctx, r, run.StageIngest, run.LevelWarning, "Figma unavailable: "+designErr.Error())
		}
		if design == nil {
			design = &signal.DesignFile{Key: o.sources.DesignFileKey, Pages: []signal.Page{}, Comments: []signal.Comment{}}
		}
		p.design = design
		o.log(ctx, r, run.StageIngest, run.LevelInfo, fmt.Sprintf("Figma: %d pages, %d comments", len(design.Pages), len(design.Comments)))
		o.events.Pulse(ctx, r.ProjectID, event.Pulse{
			Agent:  "Curator",
			Action: fmt.Sprintf("analyzed %d Figma pages, %d comments", len(design.Pages), len(design.Comments)),
			Target: design.Name, Source: "figma", Status: event.PulseCompleted,
		})
		if len(design.Pages) > 0 {
			details = append(details, fmt.Sprintf("Figma: %d pages, %d comments", len(design.Pages), len(design.Comments)))
		}
	}

	if ticketErr != nil {
		o.log(ctx, r, run.StageIngest, run.LevelWarning, "Jira unavailable: "+ticketErr.Error())
	}
	p.tickets = tickets
	o.log(ctx, r, run.StageIngest, run.LevelInfo, fmt.Sprintf("Jira: found %d existing issues in %s", len(tickets), o.tickets.ProjectKey()))
	o.events.Pulse(ctx, r.ProjectID, event.Pulse{
		Agent: "Curator", Action: fmt.Sprintf("found %d existing Jira issues", len(tickets)),
		Target: "Jira project", Source: "jira", Status: event.PulseCompleted,
	})
	details = append(details, fmt.Sprintf("Jira: %d existing tickets", len(tickets)))

	newCount, pages := 0, 0
	if p.batch != nil {
		newCount = len(p.batch.New)
	}
	if p.design != nil {
		pages = len(p.design.Pages)
	}
	t := o.transition(r, run.StageIngest, run.NodeCompleted, fmt.Sprintf("Collected %d new messages, %d pages", newCount, pages))
	t.Details = details
	return o.apply(ctx, t)
}

func (o *Orchestrator) fetchDesign(ctx context.Context) (*signal.DesignFile, error) {
	file, err := o.sources.Design.FetchFile(ctx, o.sources.DesignFileKey)
	if err != nil {
		return nil, err
	}
	comments, err := o.sources.Design.FetchComments(ctx, o.sources.DesignFileKey)
	if err != nil {
		slog.Warn("figma comments unavailable", "error", err)
		comments = []signal.Comment{}
	}
	file.Comments = comments
	return file, nil
}

// --- reason ---

func (o *Orchestrator) reason(ctx context.Context, p *pipeline) error {
	r := p.r
	o.log(ctx, r, run.StageReason, run.LevelInfo, "Starting context fusion with ticket ID detection")
	o.checkpoint(ctx, r, run.StageReason, nil)
	if err := o.apply(ctx, o.transition(r, run.StageReason, run.NodeActive, "Fusing context...")); err != nil {
		return err
	}
	o.events.Pulse(ctx, r.ProjectID, event.Pulse{
		Agent: "Synthesizer", Action: "fusing Slack + Figma + Jira context",
		Target: "Context Bridge", Source: "system", Status: event.PulseProcessing,
	})

	in := fusion.Input{Design: p.design, Tickets: p.tickets}
	if p.batch != nil {
		in.Messages = p.batch.New
		summary := p.batch.Summary
		in.History = &summary
	}
	in.DetectedIDs = fusion.ExtractTicketIDs(in.Messages)
	if len(in.DetectedIDs) > 0 {
		o.log(ctx, r, run.StageReason, run.LevelInfo, "Detected ticket references: "+strings.Join(in.DetectedIDs, ", "))
	}
	in.Snapshots = o.tickets.Snapshots(ctx, in.DetectedIDs, p.tickets)

	out := o.fusion.Fuse(ctx, in)
	if out.Fallback != nil {
		o.log(ctx, r, run.StageReason, run.LevelWarning,
			fmt.Sprintf("Oracle %s (%v), using heuristic matcher", fallbackReason(out.Fallback), out.Fallback))
	}
	for _, w := range out.Result.Warnings {
		o.log(ctx, r, run.StageReason, run.LevelWarning, w)
	}
	p.outcome = out
	res := out.Result

	o.log(ctx, r, run.StageReason, run.LevelInfo,
		fmt.Sprintf("Fusion complete via %s: %d proposals, %d insights", out.Source, len(res.Proposals), len(res.Insights)))

	summary := res.Summary
	if summary == "" {
		summary = "Context fusion complete"
	}
	details := []string{summary}
	details = append(details, res.Insights[:min(3, len(res.Insights))]...)

	insights := res.Insights
	if insights == nil {
		insights = []string{}
	}
	t := o.transition(r, run.StageReason, run.NodeCompleted,
		fmt.Sprintf("Identified %d proposals, %d insights", len(res.Proposals), len(res.Insights)))
	t.Details = details
	t.Outcome = &run.Outcome{Summary: res.Summary, Insights: insights, ProposalSource: out.Source}
	if err := o.apply(ctx, t); err != nil {
		return err
	}

	o.events.Pulse(ctx, r.ProjectID, event.Pulse{
		Agent: "Synthesizer", Action: fmt.Sprintf("generated %d task proposals from context fusion", len(res.Proposals)),
		Target: "Agent Pipeline", Source: "system", Status: event.PulseCompleted,
	})
	return nil
}

// --- draft ---

func (o *Orchestrator) draft(ctx context.Context, p *pipeline) error {
	r := p.r
	o.log(ctx, r, run.StageDraft, run.LevelInfo, "Creating structured change proposals for review")
	o.checkpoint(ctx, r, run.StageDraft, nil)
	if err := o.apply(ctx, o.transition(r, run.StageDraft, run.NodeActive, "Creating change proposals...")); err != nil {
		return err
	}
	o.events.Pulse(ctx, r.ProjectID, event.Pulse{
		Agent: "Scribe", Action: "drafting Jira change proposals",
		Target: "Draft queue", Source: "jira", Status: event.PulseProcessing,
	})

	now := o.clock.now()
	diffs := make([]run.Diff, 0, len(p.outcome.Result.Proposals))
	details := make([]string, 0, 5)
	for _, prop := range p.outcome.Result.Proposals {
		d := run.NewDiff("diff-"+newID(), prop, now)
		diffs = append(diffs, d)
		o.log(ctx, r, run.StageDraft, run.LevelInfo, "Drafted proposal: "+d.Title)
		if len(details) < 5 {
			details = append(details, "Proposal: "+d.Title)
		}
	}
	p.diffs = diffs

	t := o.transition(r, run.StageDraft, run.NodeCompleted, fmt.Sprintf("Created %d change proposals", len(diffs)))
	t.Details = details
	t.Outcome = &run.Outcome{Diffs: diffs}
	if err := o.apply(ctx, t); err != nil {
		return err
	}

	o.events.Pulse(ctx, r.ProjectID, event.Pulse{
		Agent: "Scribe", Action: fmt.Sprintf("created %d Jira change proposals", len(diffs)),
		Target: "Review queue", Source: "jira", Status: event.PulseCompleted,
	})
	return nil
}

// --- human_review ---

// suspend records the review checkpoint and returns. The run stays
// awaiting_review until an approval action arrives.
func (o *Orchestrator) suspend(ctx context.Context, p *pipeline) error {
	r := p.r
	n := len(p.diffs)
	o.log(ctx, r, run.StageHumanReview, run.LevelInfo, fmt.Sprintf("Pausing for human review of %d proposals", n))
	o.checkpoint(ctx, r, run.StageHumanReview, map[string]any{"diff_count": n})

	t := o.transition(r, run.StageHumanReview, run.NodeActive, fmt.Sprintf("Awaiting approval for %d changes", n))
	t.Details = []string{fmt.Sprintf("%d proposals pending review", n)}
	if err := o.apply(ctx, t); err != nil {
		return err
	}

	o.events.Pulse(ctx, r.ProjectID, event.Pulse{
		Agent: "Operator", Action: "waiting for human review",
		Target: fmt.Sprintf("%d pending proposals", n), Source: "system", Status: event.PulseProcessing,
		Details: "Open the Review & Approve panel to review changes",
	})
	return nil
}
