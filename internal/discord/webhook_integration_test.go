package discord

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/joho/godotenv"
)

// TestWebhookClient_KeyRejected_Integration sends a real alert to Discord
func TestWebhookClient_KeyRejected_Integration(t *testing.T) {
	godotenv.Load("../../.env")

	webhookURL := os.Getenv("DISCORD_WEBHOOK")
	if webhookURL == "" {
		t.Skip("DISCORD_WEBHOOK not set, skipping integration test")
	}

	client := NewWebhookClient(webhookURL)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	err := client.KeyRejected(ctx, CollectionSummary{Players: 40, Failed: 3, NewMatches: 812, Runtime: 2*time.Hour + 5*time.Minute})
	if err != nil {
		t.Fatalf("Failed to send key rejected notification: %v", err)
	}
	t.Log("Successfully sent key rejected notification to Discord")
}

// TestWebhookClient_CollectionFinished_Integration sends a real summary to Discord
func TestWebhookClient_CollectionFinished_Integration(t *testing.T) {
	godotenv.Load("../../.env")

	webhookURL := os.Getenv("DISCORD_WEBHOOK")
	if webhookURL == "" {
		t.Skip("DISCORD_WEBHOOK not set, skipping integration test")
	}

	client := NewWebhookClient(webhookURL)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := client.CollectionFinished(ctx, CollectionSummary{Players: 40, NewMatches: 812, Runtime: 45 * time.Minute}); err != nil {
		t.Fatalf("Failed to send collection summary: %v", err)
	}
	t.Log("Successfully sent collection summary to Discord")
}
