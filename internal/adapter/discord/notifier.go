// Package discord implements a notifier.Notifier for Discord webhooks.
package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Strob0t/NexusPM/internal/port/notifier"
	"github.com/Strob0t/NexusPM/internal/resilience"
)

const (
	providerName = "discord"
	username     = "NexusPM"
)

// Notifier posts run notifications to a Discord channel via incoming webhook.
type Notifier struct {
	webhookURL string
	httpClient *http.Client
	breaker    *resilience.Breaker
	now        func() time.Time
}

// NewNotifier creates a Discord notifier. A nil breaker gets the default
// five failures / 30s breaker.
func NewNotifier(webhookURL string, breaker *resilience.Breaker) *Notifier {
	if breaker == nil {
		breaker = resilience.NewBreaker(providerName, 5, 30*time.Second)
	}
	return &Notifier{
		webhookURL: webhookURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		breaker:    breaker,
		now:        time.Now,
	}
}

func (n *Notifier) Name() string { return providerName }

// discordWebhook is the Discord webhook payload with embeds.
type discordWebhook struct {
	Username string         `json:"username"`
	Embeds   []discordEmbed `json:"embeds"`
}

type discordEmbed struct {
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Color       int            `json:"color"`
	Timestamp   string         `json:"timestamp"`
	Footer      *discordFooter `json:"footer,omitempty"`
}

type discordFooter struct {
	Text string `json:"text"`
}

func (n *Notifier) Send(ctx context.Context, notification notifier.Notification) error {
	if n.webhookURL == "" {
		return notifier.ErrNotConfigured
	}

	embed := discordEmbed{
		Title:       notification.Title,
		Description: notification.Message,
		Color:       levelColor(notification.Level),
		Timestamp:   n.now().UTC().Format(time.RFC3339),
	}
	if notification.Source != "" {
		embed.Footer = &discordFooter{Text: "Source: " + notification.Source}
	}

	body, err := json.Marshal(discordWebhook{Username: username, Embeds: []discordEmbed{embed}})
	if err != nil {
		return fmt.Errorf("discord marshal: %w", err)
	}

	return n.breaker.Execute(func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
		if err != nil {
			return resilience.Permanent(fmt.Errorf("discord request: %w", err))
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := n.httpClient.Do(req) //nolint:gosec // webhook URL from trusted config
		if err != nil {
			return fmt.Errorf("discord send: %w", err)
		}
		defer func() { _ = resp.Body.Close() }()

		// Discord answers 204 on success.
		if resp.StatusCode >= 400 {
			respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
			err := fmt.Errorf("discord API %d: %s", resp.StatusCode, string(respBody))
			if resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
				return resilience.Permanent(err)
			}
			return err
		}
		return nil
	})
}

// levelColor returns Discord embed color integers for notification levels.
func levelColor(level string) int {
	switch level {
	case "success":
		return 0x2ECC71
	case "error":
		return 0xE74C3C
	case "warning":
		return 0xF39C12
	default:
		return 0x3498DB
	}
}
