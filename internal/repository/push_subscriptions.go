package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/krishanraja/try-ritual-sub002/internal/models"
)

type PushSubscriptionRepository interface {
	Upsert(ctx context.Context, subscription models.PushSubscription) (models.PushSubscription, error)
	FindByPartnerID(ctx context.Context, partnerID string) ([]models.PushSubscription, error)
	Delete(ctx context.Context, id string, partnerID string) error
}

type SQLitePushSubscriptionRepository struct {
	database *sql.DB
}

func NewPushSubscriptionRepository(database *sql.DB) *SQLitePushSubscriptionRepository {
	return &SQLitePushSubscriptionRepository{database: database}
}

func (repository *SQLitePushSubscriptionRepository) Upsert(ctx context.Context, subscription models.PushSubscription) (models.PushSubscription, error) {
	if subscription.ID == "" {
		subscription.ID = uuid.New().String()
	}
	subscription.CreatedAt = time.Now()

	_, err := repository.database.ExecContext(ctx,
		`INSERT INTO push_subscriptions (id, partner_id, endpoint, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (partner_id, endpoint) DO NOTHING`,
		subscription.ID, subscription.PartnerID, subscription.Endpoint, subscription.CreatedAt,
	)
	if err != nil {
		return models.PushSubscription{}, fmt.Errorf("upserting push subscription: %w", err)
	}
	return subscription, nil
}

func (repository *SQLitePushSubscriptionRepository) FindByPartnerID(ctx context.Context, partnerID string) ([]models.PushSubscription, error) {
	rows, err := repository.database.QueryContext(ctx,
		"SELECT id, partner_id, endpoint, created_at FROM push_subscriptions WHERE partner_id = ? ORDER BY created_at ASC",
		partnerID,
	)
	if err != nil {
		return nil, fmt.Errorf("finding push subscriptions: %w", err)
	}
	defer rows.Close()

	var subscriptions []models.PushSubscription
	for rows.Next() {
		var subscription models.PushSubscription
		if err := rows.Scan(&subscription.ID, &subscription.PartnerID, &subscription.Endpoint, &subscription.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning push subscription: %w", err)
		}
		subscriptions = append(subscriptions, subscription)
	}
	return subscriptions, rows.Err()
}

func (repository *SQLitePushSubscriptionRepository) Delete(ctx context.Context, id string, partnerID string) error {
	_, err := repository.database.ExecContext(ctx,
		"DELETE FROM push_subscriptions WHERE id = ? AND partner_id = ?", id, partnerID,
	)
	if err != nil {
		return fmt.Errorf("deleting push subscription: %w", err)
	}
	return nil
}
