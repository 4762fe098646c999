package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/krishanraja/try-ritual-sub002/internal/models"
)

var ErrCoupleNotFound = errors.New("couple not found")

type CoupleRepository interface {
	Create(ctx context.Context, couple models.Couple) (models.Couple, error)
	FindByID(ctx context.Context, id string) (models.Couple, error)
	FindByPartnerID(ctx context.Context, partnerID string) (models.Couple, error)
}

type SQLiteCoupleRepository struct {
	database *sql.DB
}

func NewCoupleRepository(database *sql.DB) *SQLiteCoupleRepository {
	return &SQLiteCoupleRepository{database: database}
}

func (repository *SQLiteCoupleRepository) Create(ctx context.Context, couple models.Couple) (models.Couple, error) {
	if couple.ID == "" {
		couple.ID = uuid.New().String()
	}
	if couple.Timezone == "" {
		couple.Timezone = "UTC"
	}
	couple.CreatedAt = time.Now()

	_, err := repository.database.ExecContext(ctx,
		`INSERT INTO couples (id, partner_one_id, partner_two_id, city, timezone, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		couple.ID, couple.PartnerOneID, couple.PartnerTwoID, couple.City, couple.Timezone, couple.CreatedAt,
	)
	if err != nil {
		return models.Couple{}, fmt.Errorf("creating couple: %w", err)
	}
	return couple, nil
}

func (repository *SQLiteCoupleRepository) FindByID(ctx context.Context, id string) (models.Couple, error) {
	return repository.findOne(ctx, "id = ?", id)
}

func (repository *SQLiteCoupleRepository) FindByPartnerID(ctx context.Context, partnerID string) (models.Couple, error) {
	return repository.findOne(ctx, "partner_one_id = ? OR partner_two_id = ?", partnerID, partnerID)
}

func (repository *SQLiteCoupleRepository) findOne(ctx context.Context, where string, args ...any) (models.Couple, error) {
	var couple models.Couple
	err := repository.database.QueryRowContext(ctx,
		"SELECT id, partner_one_id, partner_two_id, city, timezone, created_at FROM couples WHERE "+where, args...,
	).Scan(&couple.ID, &couple.PartnerOneID, &couple.PartnerTwoID, &couple.City, &couple.Timezone, &couple.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Couple{}, ErrCoupleNotFound
	}
	if err != nil {
		return models.Couple{}, fmt.Errorf("finding couple: %w", err)
	}
	return couple, nil
}
