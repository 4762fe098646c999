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

var ErrPartnerNotFound = errors.New("partner not found")

type PartnerRepository interface {
	Create(ctx context.Context, partner models.Partner) (models.Partner, error)
	FindByID(ctx context.Context, id string) (models.Partner, error)
	FindByEmail(ctx context.Context, email string) (models.Partner, error)
}

type SQLitePartnerRepository struct {
	database *sql.DB
}

func NewPartnerRepository(database *sql.DB) *SQLitePartnerRepository {
	return &SQLitePartnerRepository{database: database}
}

func (repository *SQLitePartnerRepository) Create(ctx context.Context, partner models.Partner) (models.Partner, error) {
	if partner.ID == "" {
		partner.ID = uuid.New().String()
	}
	partner.CreatedAt = time.Now()

	_, err := repository.database.ExecContext(ctx,
		`INSERT INTO partners (id, email, display_name, password_hash, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		partner.ID, partner.Email, partner.DisplayName, partner.PasswordHash, partner.CreatedAt,
	)
	if err != nil {
		return models.Partner{}, fmt.Errorf("creating partner: %w", err)
	}
	return partner, nil
}

func (repository *SQLitePartnerRepository) FindByID(ctx context.Context, id string) (models.Partner, error) {
	return repository.findOne(ctx, "id = ?", id)
}

func (repository *SQLitePartnerRepository) FindByEmail(ctx context.Context, email string) (models.Partner, error) {
	return repository.findOne(ctx, "email = ?", email)
}

func (repository *SQLitePartnerRepository) findOne(ctx context.Context, where string, arg any) (models.Partner, error) {
	var partner models.Partner
	err := repository.database.QueryRowContext(ctx,
		"SELECT id, email, display_name, password_hash, created_at FROM partners WHERE "+where, arg,
	).Scan(&partner.ID, &partner.Email, &partner.DisplayName, &partner.PasswordHash, &partner.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Partner{}, ErrPartnerNotFound
	}
	if err != nil {
		return models.Partner{}, fmt.Errorf("finding partner: %w", err)
	}
	return partner, nil
}
