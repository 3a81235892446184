package main

import (
	"fmt"
	"log/slog"
	"strconv"

	"github.com/Strob0t/NexusPM/internal/adapter/discord"
	"github.com/Strob0t/NexusPM/internal/adapter/figma"
	"github.com/Strob0t/NexusPM/internal/adapter/jira"
	"github.com/Strob0t/NexusPM/internal/adapter/kvrepo"
	"github.com/Strob0t/NexusPM/internal/adapter/litellm"
	nxotel "github.com/Strob0t/NexusPM/internal/adapter/otel"
	"github.com/Strob0t/NexusPM/internal/adapter/ristretto"
	"github.com/Strob0t/NexusPM/internal/adapter/slack"
	"github.com/Strob0t/NexusPM/internal/adapter/tiered"
	"github.com/Strob0t/NexusPM/internal/config"
	"github.com/Strob0t/NexusPM/internal/domain/connection"
	"github.com/Strob0t/NexusPM/internal/port/broadcast"
	"github.com/Strob0t/NexusPM/internal/port/notifier"
	"github.com/Strob0t/NexusPM/internal/port/pmprovider"
	"github.com/Strob0t/NexusPM/internal/port/reasoner"
	"github.com/Strob0t/NexusPM/internal/port/source"
	"github.com/Strob0t/NexusPM/internal/resilience"
	"github.com/Strob0t/NexusPM/internal/service"
)

// app is the wired service graph shared by serve and the admin commands.
type app struct {
	store        *kvrepo.Store
	events       *service.EventPublisher
	projects     *service.ProjectService
	connections  *service.ConnectionService
	history      *service.HistoryService
	tickets      *service.TicketCatalog
	orchestrator *service.Orchestrator
	approvals    *service.ApprovalService
	admin        *service.AdminService
	metrics      *nxotel.Metrics
	health       healthFlags
	l1           *ristretto.Cache
}

type healthFlags struct {
	slack, figma, jira, oracle bool
}

// buildApp wires adapters and services over an opened backend. bus receives
// pulses and run updates.
func buildApp(cfg *config.Config, b *backend, bus broadcast.Broadcaster) (*app, error) {
	store := kvrepo.New(b.kv, kvrepo.TTLs{
		Checkpoint: cfg.Store.CheckpointTTL,
		Telemetry:  cfg.Store.TelemetryTTL,
		History:    cfg.Store.HistoryTTL,
	})

	key, err := connection.DeriveKey(cfg.Vault.SecretKey)
	if err != nil {
		return nil, fmt.Errorf("vault key: %w", err)
	}

	metrics, err := nxotel.NewMetrics()
	if err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}

	// --- Integrations ---
	slackClient := slack.NewClient(slack.Config{
		BotToken:  cfg.Slack.BotToken,
		ChannelID: cfg.Slack.ChannelID,
		BaseURL:   cfg.Slack.BaseURL,
	}, newBreaker(cfg, "slack"))
	figmaClient := figma.NewClient(figma.Config{
		AccessToken: cfg.Figma.AccessToken,
		FileKey:     cfg.Figma.FileKey,
		BaseURL:     cfg.Figma.BaseURL,
	}, newBreaker(cfg, "figma"))
	tracker, err := pmprovider.New("jira", map[string]string{
		jira.KeyDomain:             cfg.Jira.Domain,
		jira.KeyEmail:              cfg.Jira.Email,
		jira.KeyAPIToken:           cfg.Jira.APIToken,
		jira.KeyBreakerMaxFailures: strconv.Itoa(cfg.Breaker.MaxFailures),
		jira.KeyBreakerTimeout:     cfg.Breaker.Timeout.String(),
	})
	if err != nil {
		return nil, fmt.Errorf("ticketing provider: %w", err)
	}

	var (
		oracle    reasoner.Reasoner
		llmClient *litellm.Client
	)
	if cfg.LiteLLM.URL != "" {
		llmClient = litellm.NewClient(cfg.LiteLLM.URL, cfg.LiteLLM.MasterKey, cfg.LiteLLM.Timeout)
		llmClient.SetBreaker(newBreaker(cfg, "litellm"))
		oracle = litellm.NewReasoner(llmClient, cfg.LiteLLM.Model)
	} else {
		slog.Info("reasoning oracle disabled, using heuristic fusion")
	}

	// --- Ticket cache: ristretto L1 over the kv store ---
	l1, err := ristretto.New(cfg.Cache.L1MaxSizeMB << 20)
	if err != nil {
		return nil, fmt.Errorf("l1 cache: %w", err)
	}
	ticketCache := tiered.New(l1, b.kv, "tickets", cfg.Cache.L1Expire)

	// --- Services ---
	events := service.NewEventPublisher(bus, store)
	sinks := []service.TransitionSink{service.BroadcastSink(events), service.MetricsSink(metrics)}
	if cfg.NATS.PublishTransitions && b.queue != nil {
		sinks = append(sinks, service.QueueSink(b.queue))
	}
	var notifiers []notifier.Notifier
	if cfg.Notify.SlackChannel != "" {
		notifiers = append(notifiers, slack.NewNotifier(slackClient, cfg.Notify.SlackChannel))
	}
	if cfg.Notify.DiscordWebhook != "" {
		notifiers = append(notifiers, discord.NewNotifier(cfg.Notify.DiscordWebhook, newBreaker(cfg, "discord")))
	}
	if len(notifiers) > 0 {
		sinks = append(sinks, service.NewNotificationService(notifiers, cfg.Notify.Events).Sink())
	}
	writer := service.NewRunWriter(store, sinks...)

	projects := service.NewProjectService(store)
	connections := service.NewConnectionService(store, key,
		service.DefaultConnections(cfg.Figma.AccessToken, cfg.Slack.BotToken, cfg.Jira.APIToken, cfg.Jira.Email),
		checkerFactory(cfg),
	)
	projects.SetConnectionSeeder(connections)
	history := service.NewHistoryService(store)
	tickets := service.NewTicketCatalog(tracker, cfg.Jira.ProjectKey, ticketCache, cfg.Cache.TicketTTL)

	fusionSvc := service.NewFusionService(oracle)
	fusionSvc.SetMetrics(metrics)

	orchestrator := service.NewOrchestrator(store, writer, events, projects, history, tickets, fusionSvc, service.Sources{
		Chat:          slackClient,
		ChatChannel:   cfg.Slack.ChannelID,
		Design:        figmaClient,
		DesignFileKey: cfg.Figma.FileKey,
	})
	orchestrator.SetMetrics(metrics)

	approvals := service.NewApprovalService(store, writer, events, tickets)
	approvals.SetMetrics(metrics)

	integrations := []service.Integration{
		{ID: "slack", Name: "Slack", Icon: "slack", Color: "#B829F7", Probe: slackClient},
		{ID: "figma", Name: "Figma", Icon: "figma", Color: "#00F0FF", Probe: figmaClient},
	}
	if probe, ok := tracker.(service.Probe); ok {
		integrations = append(integrations, service.Integration{ID: "jira", Name: "Jira", Icon: "jira", Color: "#2B6FFF", Probe: probe})
	}
	if llmClient != nil {
		integrations = append(integrations, service.Integration{ID: "litellm", Name: "LiteLLM", Icon: "brain", Color: "#FF2E97", Probe: llmClient})
	}

	a := &app{
		store:        store,
		events:       events,
		projects:     projects,
		connections:  connections,
		history:      history,
		tickets:      tickets,
		orchestrator: orchestrator,
		approvals:    approvals,
		admin:        service.NewAdminService(store, projects, tickets, integrations),
		metrics:      metrics,
		l1:           l1,
		health: healthFlags{
			slack:  slackClient.Configured(),
			figma:  figmaClient.Configured(),
			jira:   tracker.Configured(),
			oracle: oracle != nil,
		},
	}
	slog.Info("services wired",
		"slack", a.health.slack,
		"figma", a.health.figma,
		"jira", a.health.jira,
		"oracle", a.health.oracle,
		"notifiers", len(notifiers),
	)
	return a, nil
}

// Close releases in-process caches.
func (a *app) Close() {
	a.l1.Close()
}

func newBreaker(cfg *config.Config, name string) *resilience.Breaker {
	return resilience.NewBreaker(name, cfg.Breaker.MaxFailures, cfg.Breaker.Timeout)
}

// checkerFactory verifies a stored connection token against its service.
func checkerFactory(cfg *config.Config) service.CheckerFactory {
	return func(kind, token string) source.Checker {
		switch kind {
		case "slack":
			return slack.NewClient(slack.Config{BotToken: token, BaseURL: cfg.Slack.BaseURL}, nil)
		case "figma":
			return figma.NewClient(figma.Config{AccessToken: token, BaseURL: cfg.Figma.BaseURL}, nil)
		case "jira":
			return jira.NewProvider(jira.Config{Domain: cfg.Jira.Domain, Email: cfg.Jira.Email, APIToken: token}, nil)
		}
		return nil
	}
}
