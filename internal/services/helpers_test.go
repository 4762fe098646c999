package services_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/krishanraja/try-ritual-sub002/internal/models"
	"github.com/krishanraja/try-ritual-sub002/internal/repository"
)

func createTestCouple(t *testing.T, db *sql.DB) models.Couple {
	t.Helper()
	ctx := context.Background()
	partnerRepo := repository.NewPartnerRepository(db)

	one, err := partnerRepo.Create(ctx, models.Partner{
		Email: "one-" + time.Now().String() + "@test.com", DisplayName: "One", PasswordHash: "x",
	})
	if err != nil {
		t.Fatalf("creating partner one: %v", err)
	}
	two, err := partnerRepo.Create(ctx, models.Partner{
		Email: "two-" + time.Now().String() + "@test.com", DisplayName: "Two", PasswordHash: "x",
	})
	if err != nil {
		t.Fatalf("creating partner two: %v", err)
	}

	coupleRepo := repository.NewCoupleRepository(db)
	couple, err := coupleRepo.Create(ctx, models.Couple{
		PartnerOneID: one.ID, PartnerTwoID: two.ID, City: "Lisbon", Timezone: "Europe/Lisbon",
	})
	if err != nil {
		t.Fatalf("creating couple: %v", err)
	}
	return couple
}
