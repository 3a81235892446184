package slack

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"

	"github.com/Strob0t/NexusPM/internal/domain/signal"
)

// Channel is a conversation the bot can read.
type Channel struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// FetchMessages reads conversations.history for channel, oldest first.
// An empty channel uses the configured default. Unconfigured clients
// return demo messages.
func (c *Client) FetchMessages(ctx context.Context, channel string, limit int) ([]signal.Message, error) {
	if !c.Configured() {
		return demoMessages(), nil
	}
	if channel == "" {
		channel = c.channel
	}
	if limit <= 0 {
		limit = 50
	}

	params := url.Values{}
	params.Set("channel", channel)
	params.Set("limit", strconv.Itoa(limit))

	var resp struct {
		Messages []struct {
			User    string `json:"user"`
			BotID   string `json:"bot_id"`
			Text    string `json:"text"`
			TS      string `json:"ts"`
			Subtype string `json:"subtype"`
		} `json:"messages"`
	}
	if err := c.call(ctx, http.MethodGet, "conversations.history", params, nil, &resp); err != nil {
		return nil, fmt.Errorf("slack fetch messages: %w", err)
	}

	out := make([]signal.Message, 0, len(resp.Messages))
	for _, m := range resp.Messages {
		user := m.User
		if user == "" {
			user = "unknown"
		}
		if m.Subtype == "channel_join" || m.Subtype == "channel_leave" {
			continue
		}
		out = append(out, signal.Message{User: user, Text: m.Text, TS: m.TS})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Time() < out[j].Time() })
	return out, nil
}

// ListChannels returns public and private channels visible to the bot.
func (c *Client) ListChannels(ctx context.Context) ([]Channel, error) {
	if !c.Configured() {
		return []Channel{{ID: "C001", Name: "design-team"}, {ID: "C002", Name: "mobile-dev"}}, nil
	}

	params := url.Values{}
	params.Set("types", "public_channel,private_channel")
	params.Set("limit", "20")

	var resp struct {
		Channels []Channel `json:"channels"`
	}
	if err := c.call(ctx, http.MethodGet, "conversations.list", params, nil, &resp); err != nil {
		return nil, fmt.Errorf("slack list channels: %w", err)
	}
	return resp.Channels, nil
}

func demoMessages() []signal.Message {
	return []signal.Message{
		{User: "sarah", Text: "The login flow needs OAuth + MFA support", TS: "1700000001"},
		{User: "mike", Text: "We should update the nav component per the new Figma designs", TS: "1700000002"},
		{User: "alex", Text: "Can someone create Jira tickets for the checkout redesign?", TS: "1700000003"},
		{User: "jordan", Text: "I've updated the Figma frames for the mobile nav", TS: "1700000004"},
		{User: "sarah", Text: "Priority should be High for the API integration task", TS: "1700000005"},
	}
}
