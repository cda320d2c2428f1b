package discord

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	json "github.com/goccy/go-json"
)

const (
	// Colors for Discord embeds
	colorRed   = 15158332 // 0xE74C3C
	colorGreen = 5763719  // 0x57F287
	colorAmber = 16705372 // 0xFEE75C

	defaultWebhookTimeout = 10 * time.Second

	// Max attempts when Discord rate limits us
	maxRetries = 3
)

// WebhookPayload represents a Discord webhook message
type WebhookPayload struct {
	Content string  `json:"content,omitempty"`
	Embeds  []Embed `json:"embeds,omitempty"`
}

// Embed represents a Discord embed
type Embed struct {
	Title       string       `json:"title,omitempty"`
	Description string       `json:"description,omitempty"`
	Color       int          `json:"color,omitempty"`
	Fields      []EmbedField `json:"fields,omitempty"`
	Footer      *EmbedFooter `json:"footer,omitempty"`
	Timestamp   string       `json:"timestamp,omitempty"`
}

// EmbedField represents a field in a Discord embed
type EmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

// EmbedFooter represents the footer of a Discord embed
type EmbedFooter struct {
	Text string `json:"text"`
}

// CollectionSummary is what a collection run reports when it ends.
type CollectionSummary struct {
	Players    int
	Failed     int
	NewMatches int
	Runtime    time.Duration
}

// NewKeyRejectedPayload creates the alert sent when Riot rejects the API key
// in the middle of a collection.
func NewKeyRejectedPayload(s CollectionSummary) WebhookPayload {
	return WebhookPayload{
		Content: "@here Riot API key rejected!",
		Embeds: []Embed{
			{
				Title: "🔑 API Key Rejected",
				Color: colorRed,
				Fields: []EmbedField{
					{Name: "Players Collected", Value: formatNumber(s.Players - s.Failed), Inline: true},
					{Name: "New Matches", Value: formatNumber(s.NewMatches), Inline: true},
					{Name: "Runtime", Value: formatDuration(s.Runtime), Inline: true},
				},
				Footer: &EmbedFooter{
					Text: "Set a fresh RIOT_API_KEY and rerun collect",
				},
			},
		},
	}
}

// NewCollectionFinishedPayload creates the summary sent after a collection
// completes. Runs with failures are colored amber.
func NewCollectionFinishedPayload(s CollectionSummary) WebhookPayload {
	color := colorGreen
	if s.Failed > 0 {
		color = colorAmber
	}
	return WebhookPayload{
		Embeds: []Embed{
			{
				Title: "✅ Collection Finished",
				Color: color,
				Fields: []EmbedField{
					{Name: "Players", Value: fmt.Sprintf("%s (%s failed)", formatNumber(s.Players), formatNumber(s.Failed)), Inline: true},
					{Name: "New Matches", Value: formatNumber(s.NewMatches), Inline: true},
					{Name: "Runtime", Value: formatDuration(s.Runtime), Inline: true},
				},
			},
		},
	}
}

// WebhookClient sends notifications to Discord webhooks
type WebhookClient struct {
	webhookURL string
	httpClient *http.Client
}

// NewWebhookClient creates a new WebhookClient
func NewWebhookClient(webhookURL string) *WebhookClient {
	return &WebhookClient{
		webhookURL: webhookURL,
		httpClient: &http.Client{
			Timeout: defaultWebhookTimeout,
		},
	}
}

// KeyRejected sends the key rejection alert.
func (c *WebhookClient) KeyRejected(ctx context.Context, s CollectionSummary) error {
	return c.sendPayload(ctx, NewKeyRejectedPayload(s))
}

// CollectionFinished sends the end of run summary.
func (c *WebhookClient) CollectionFinished(ctx context.Context, s CollectionSummary) error {
	return c.sendPayload(ctx, NewCollectionFinishedPayload(s))
}

// sendPayload posts a payload, waiting out 429 responses
func (c *WebhookClient) sendPayload(ctx context.Context, payload WebhookPayload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	for attempt := 0; attempt < maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewReader(data))
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}
		resp.Body.Close()

		// Discord returns 204 No Content
		if resp.StatusCode == http.StatusNoContent || resp.StatusCode == http.StatusOK {
			return nil
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			wait := time.Second
			if seconds, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil {
				wait = time.Duration(seconds) * time.Second
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
				continue
			}
		}

		return fmt.Errorf("webhook request failed with status %d", resp.StatusCode)
	}

	return fmt.Errorf("webhook request failed after %d retries", maxRetries)
}

// formatNumber formats a number with commas (e.g., 47832 -> "47,832")
func formatNumber(n int) string {
	if n < 0 {
		return "-" + formatNumber(-n)
	}
	s := strconv.Itoa(n)
	if n < 1000 {
		return s
	}
	var result bytes.Buffer
	for i, c := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			result.WriteByte(',')
		}
		result.WriteRune(c)
	}
	return result.String()
}

// formatDuration formats a duration as "Xh Ym", or "Zs" under a minute
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
}
