package service

import (
	"fmt"
	"testing"

	"pgregory.net/rapid"

	"github.com/efreitasn/custodex/internal/domain"
)

// TestProperty_WebhookUpsertIdempotency verifies that re-registering the
// same (account, event) pair keeps the webhook_id stable, and that
// changing the URL updates the subscription in place.
func TestProperty_WebhookUpsertIdempotency(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		svc := newTestWebhookService()

		seed := rapid.IntRange(1, 9999).Draw(t, "accountSeed")
		account := domain.DeriveAddress([]byte(fmt.Sprintf("account-%d", seed))).String()

		events := webhookEvents
		event := events[rapid.IntRange(0, len(events)-1).Draw(t, "eventIdx")]

		url1 := fmt.Sprintf("https://example.com/hook/%d", rapid.IntRange(1, 99999).Draw(t, "urlSuffix1"))
		url2 := fmt.Sprintf("https://other.example.com/hook/%d", rapid.IntRange(1, 99999).Draw(t, "urlSuffix2"))

		webhooks1, created1, err := svc.Upsert(UpsertWebhookRequest{Account: account, URL: url1, Events: []string{event}})
		if err != nil {
			t.Fatalf("initial upsert failed: %v", err)
		}
		if !created1 || len(webhooks1) != 1 {
			t.Fatalf("expected one created webhook, got created=%v len=%d", created1, len(webhooks1))
		}
		originalID := webhooks1[0].WebhookID

		numRepeats := rapid.IntRange(1, 5).Draw(t, "numRepeats")
		for i := 0; i < numRepeats; i++ {
			webhooks2, created2, err := svc.Upsert(UpsertWebhookRequest{Account: account, URL: url1, Events: []string{event}})
			if err != nil {
				t.Fatalf("idempotent upsert %d failed: %v", i, err)
			}
			if created2 {
				t.Fatalf("repeat %d: expected created=false for idempotent re-registration", i)
			}
			if webhooks2[0].WebhookID != originalID || webhooks2[0].URL != url1 {
				t.Fatalf("repeat %d: subscription changed: %+v", i, webhooks2[0])
			}
		}

		webhooks3, created3, err := svc.Upsert(UpsertWebhookRequest{Account: account, URL: url2, Events: []string{event}})
		if err != nil {
			t.Fatalf("URL update upsert failed: %v", err)
		}
		if created3 {
			t.Fatal("expected created=false when updating URL")
		}
		if webhooks3[0].WebhookID != originalID {
			t.Fatalf("webhook_id changed after URL update: %q -> %q", originalID, webhooks3[0].WebhookID)
		}
		if webhooks3[0].URL != url2 {
			t.Fatalf("expected updated URL %q, got %q", url2, webhooks3[0].URL)
		}

		list, err := svc.List(account)
		if err != nil {
			t.Fatalf("list failed: %v", err)
		}
		if len(list) != 1 {
			t.Fatalf("expected exactly one subscription, got %d", len(list))
		}
	})
}
