// Package slack talks to the Slack Web API with a bot token. It provides
// the chat message source for ingestion and a notifier for run events.
package slack

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Strob0t/NexusPM/internal/resilience"
)

const (
	providerName   = "slack"
	defaultBaseURL = "https://slack.com/api"
)

// ErrAPI is wrapped by every error Slack reports in an {"ok": false} answer.
var ErrAPI = errors.New("slack API error")

// Config holds the bot credentials.
type Config struct {
	BotToken  string
	ChannelID string
	BaseURL   string
}

// Client is a minimal Slack Web API client.
type Client struct {
	baseURL    string
	token      string
	channel    string
	httpClient *http.Client
	breaker    *resilience.Breaker
}

// NewClient creates a Slack client. A nil breaker gets the default
// five failures / 30s breaker.
func NewClient(cfg Config, breaker *resilience.Breaker) *Client {
	base := strings.TrimSuffix(cfg.BaseURL, "/")
	if base == "" {
		base = defaultBaseURL
	}
	if breaker == nil {
		breaker = resilience.NewBreaker(providerName, 5, 30*time.Second)
	}
	return &Client{
		baseURL:    base,
		token:      cfg.BotToken,
		channel:    cfg.ChannelID,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		breaker:    breaker,
	}
}

// Configured reports whether a bot token is set.
func (c *Client) Configured() bool { return c.token != "" }

// Channel returns the default channel id.
func (c *Client) Channel() string { return c.channel }

// envelope is the part every Web API answer shares.
type envelope struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

// call invokes a Web API method and decodes the answer into out. GET
// methods send params as the query string, POST methods as a JSON body.
func (c *Client) call(ctx context.Context, httpMethod, method string, params url.Values, body any, out any) error {
	return c.breaker.Execute(func() error {
		reqURL := c.baseURL + "/" + method
		if len(params) > 0 {
			reqURL += "?" + params.Encode()
		}

		var reader io.Reader
		if body != nil {
			payload, err := json.Marshal(body)
			if err != nil {
				return resilience.Permanent(fmt.Errorf("slack marshal: %w", err))
			}
			reader = strings.NewReader(string(payload))
		}

		req, err := http.NewRequestWithContext(ctx, httpMethod, reqURL, reader)
		if err != nil {
			return resilience.Permanent(fmt.Errorf("slack request: %w", err))
		}
		req.Header.Set("Authorization", "Bearer "+c.token)
		if body != nil {
			req.Header.Set("Content-Type", "application/json; charset=utf-8")
		}

		resp, err := c.httpClient.Do(req) //nolint:gosec // G704: URL is built from the configured API base
		if err != nil {
			return fmt.Errorf("slack %s: %w", method, err)
		}
		defer func() { _ = resp.Body.Close() }()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("slack read response: %w", err)
		}
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return fmt.Errorf("slack API %d: %s", resp.StatusCode, string(respBody))
		}
		if resp.StatusCode >= 400 {
			return resilience.Permanent(fmt.Errorf("slack API %d: %s", resp.StatusCode, string(respBody)))
		}

		var env envelope
		if err := json.Unmarshal(respBody, &env); err != nil {
			return fmt.Errorf("slack parse response: %w", err)
		}
		if !env.OK {
			return resilience.Permanent(fmt.Errorf("%w: %s: %s", ErrAPI, method, env.Error))
		}
		if out != nil {
			if err := json.Unmarshal(respBody, out); err != nil {
				return fmt.Errorf("slack parse response: %w", err)
			}
		}
		return nil
	})
}

// Check calls auth.test and returns the bot user name.
func (c *Client) Check(ctx context.Context) (string, error) {
	if !c.Configured() {
		return "", errors.New("slack: bot token not configured")
	}
	var resp struct {
		User string `json:"user"`
		Team string `json:"team"`
	}
	if err := c.call(ctx, http.MethodGet, "auth.test", nil, nil, &resp); err != nil {
		return "", err
	}
	if resp.User == "" {
		return "bot", nil
	}
	return resp.User, nil
}
