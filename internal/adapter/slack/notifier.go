package slack

import (
	"context"
	"fmt"
	"net/http"

	"github.com/Strob0t/NexusPM/internal/port/notifier"
)

// Notifier posts run notifications to a channel via chat.postMessage.
type Notifier struct {
	client  *Client
	channel string
}

// NewNotifier creates a notifier posting to channel. An empty channel uses
// the client's default channel.
func NewNotifier(client *Client, channel string) *Notifier {
	if channel == "" {
		channel = client.Channel()
	}
	return &Notifier{client: client, channel: channel}
}

func (n *Notifier) Name() string { return providerName }

// slackMessage is the chat.postMessage payload with Block Kit blocks.
type slackMessage struct {
	Channel string       `json:"channel"`
	Text    string       `json:"text"`
	Blocks  []slackBlock `json:"blocks"`
}

type slackBlock struct {
	Type     string      `json:"type"`
	Text     *slackText  `json:"text,omitempty"`
	Elements []slackText `json:"elements,omitempty"`
}

type slackText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func (n *Notifier) Send(ctx context.Context, notification notifier.Notification) error {
	if !n.client.Configured() || n.channel == "" {
		return notifier.ErrNotConfigured
	}

	headerText := fmt.Sprintf("%s %s", levelEmoji(notification.Level), notification.Title)
	msg := slackMessage{
		Channel: n.channel,
		Text:    headerText,
		Blocks: []slackBlock{
			{Type: "header", Text: &slackText{Type: "plain_text", Text: headerText}},
			{Type: "section", Text: &slackText{Type: "mrkdwn", Text: notification.Message}},
		},
	}

	if notification.Source != "" {
		msg.Blocks = append(msg.Blocks, slackBlock{
			Type:     "context",
			Elements: []slackText{{Type: "mrkdwn", Text: fmt.Sprintf("_Source: %s_", notification.Source)}},
		})
	}

	if err := n.client.call(ctx, http.MethodPost, "chat.postMessage", nil, msg, nil); err != nil {
		return fmt.Errorf("slack send: %w", err)
	}
	return nil
}

func levelEmoji(level string) string {
	switch level {
	case "success":
		return "[OK]"
	case "error":
		return "[ERROR]"
	case "warning":
		return "[WARN]"
	default:
		return "[INFO]"
	}
}
