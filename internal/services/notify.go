package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/krishanraja/try-ritual-sub002/internal/repository"
)

type NotificationType string

const (
	NotificationPartnerReady  NotificationType = "partner_ready"
	NotificationSurpriseReady NotificationType = "surprise_ready"
	NotificationNudge         NotificationType = "nudge"
)

type Notification struct {
	Type    NotificationType `json:"type"`
	CycleID string           `json:"cycle_id,omitempty"`
	Message string           `json:"message"`
}

// Notifier delivers a push notification to one partner. Delivery is
// best-effort everywhere it is used; callers log failures and move on.
type Notifier interface {
	Notify(ctx context.Context, partnerID string, notification Notification) error
}

// WebhookNotifier posts notifications to each push endpoint a partner has
// registered. Unreachable endpoints are skipped, not retried.
type WebhookNotifier struct {
	subscriptionRepo repository.PushSubscriptionRepository
	client           *http.Client
}

func NewWebhookNotifier(subscriptionRepo repository.PushSubscriptionRepository) *WebhookNotifier {
	return &WebhookNotifier{
		subscriptionRepo: subscriptionRepo,
		client:           &http.Client{Timeout: 10 * time.Second},
	}
}

func (notifier *WebhookNotifier) Notify(ctx context.Context, partnerID string, notification Notification) error {
	subscriptions, err := notifier.subscriptionRepo.FindByPartnerID(ctx, partnerID)
	if err != nil {
		return fmt.Errorf("loading push subscriptions: %w", err)
	}

	payload, err := json.Marshal(notification)
	if err != nil {
		return fmt.Errorf("encoding notification: %w", err)
	}

	for _, subscription := range subscriptions {
		request, err := http.NewRequestWithContext(ctx, http.MethodPost, subscription.Endpoint, bytes.NewReader(payload))
		if err != nil {
			slog.Warn("building push request", "endpoint", subscription.Endpoint, "error", err)
			continue
		}
		request.Header.Set("Content-Type", "application/json")

		response, err := notifier.client.Do(request)
		if err != nil {
			slog.Warn("delivering push notification", "endpoint", subscription.Endpoint, "error", err)
			continue
		}
		response.Body.Close()
		if response.StatusCode >= 400 {
			slog.Warn("push endpoint rejected notification", "endpoint", subscription.Endpoint, "status", response.StatusCode)
		}
	}
	return nil
}
