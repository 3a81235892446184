package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Strob0t/NexusPM/internal/domain/run"
	"github.com/Strob0t/NexusPM/internal/port/notifier"
)

// Notification sources for run lifecycle events.
const (
	NotifyAwaitingReview = "run.awaiting_review"
	NotifyCompleted      = "run.completed"
	NotifyFailed         = "run.failed"
)

// NotificationService dispatches notifications to all registered notifiers.
type NotificationService struct {
	notifiers     []notifier.Notifier
	enabledEvents map[string]bool
}

// NewNotificationService creates a NotificationService with the given notifiers
// and list of enabled event types (e.g., "run.completed", "run.failed").
// If enabledEvents is nil or empty, all events are enabled.
func NewNotificationService(notifiers []notifier.Notifier, enabledEvents []string) *NotificationService {
	enabled := make(map[string]bool, len(enabledEvents))
	for _, e := range enabledEvents {
		enabled[e] = true
	}
	return &NotificationService{
		notifiers:     notifiers,
		enabledEvents: enabled,
	}
}

// Notify sends a notification to all registered notifiers.
// Errors are logged but do not interrupt delivery to other notifiers.
func (s *NotificationService) Notify(ctx context.Context, n notifier.Notification) {
	if len(s.enabledEvents) > 0 && !s.enabledEvents[n.Source] {
		return
	}

	for _, provider := range s.notifiers {
		if err := provider.Send(ctx, n); err != nil {
			slog.Warn("notification send failed",
				"provider", provider.Name(),
				"title", n.Title,
				"error", err,
			)
			continue
		}
		slog.Debug("notification sent", "provider", provider.Name(), "title", n.Title)
	}
}

// NotifierCount returns the number of registered notifiers.
func (s *NotificationService) NotifierCount() int {
	return len(s.notifiers)
}

// Sink returns a transition sink that notifies when a run starts waiting
// for review or finishes.
func (s *NotificationService) Sink() TransitionSink {
	return func(ctx context.Context, t run.Transition, r *run.Run) {
		n, ok := runNotification(t, r)
		if ok {
			s.Notify(ctx, n)
		}
	}
}

func runNotification(t run.Transition, r *run.Run) (notifier.Notification, bool) {
	switch {
	case t.Stage == run.StageDraft && t.Status == run.NodeCompleted:
		return notifier.Notification{
			Title:   "Review requested: " + r.Name,
			Message: fmt.Sprintf("%d change proposals are waiting for approval.", len(r.Diffs)),
			Level:   "info",
			Source:  NotifyAwaitingReview,
		}, true
	case r.Status == run.StatusCompleted:
		return notifier.Notification{
			Title:   "Run completed: " + r.Name,
			Message: fmt.Sprintf("%d changes executed, %d failed.", len(r.ExecutedChanges), len(r.FailedChanges)),
			Level:   "success",
			Source:  NotifyCompleted,
		}, true
	case r.Status == run.StatusFailed:
		return notifier.Notification{
			Title:   "Run failed: " + r.Name,
			Message: t.Description,
			Level:   "error",
			Source:  NotifyFailed,
		}, true
	}
	return notifier.Notification{}, false
}
