package flow_test

import (
	"context"
	"testing"
	"time"

	"github.com/krishanraja/try-ritual-sub002/internal/flow"
	"github.com/krishanraja/try-ritual-sub002/internal/models"
	"github.com/krishanraja/try-ritual-sub002/internal/repository"
	"github.com/krishanraja/try-ritual-sub002/internal/services"
	"github.com/krishanraja/try-ritual-sub002/internal/synth"
	"github.com/krishanraja/try-ritual-sub002/internal/testutil"
)

// Drives two partners' clients end to end against the real coordinator and
// store: submit, wait, generate, pick.
func TestFlow_TwoPartnersConverge(t *testing.T) {
	db := testutil.NewTestDatabase(t)
	ctx := context.Background()

	cycleRepo := repository.NewCycleRepository(db)
	coupleRepo := repository.NewCoupleRepository(db)
	partnerRepo := repository.NewPartnerRepository(db)

	ana, err := partnerRepo.Create(ctx, models.Partner{Email: "ana@test.com", DisplayName: "Ana", PasswordHash: "x"})
	if err != nil {
		t.Fatalf("creating ana: %v", err)
	}
	ben, err := partnerRepo.Create(ctx, models.Partner{Email: "ben@test.com", DisplayName: "Ben", PasswordHash: "x"})
	if err != nil {
		t.Fatalf("creating ben: %v", err)
	}
	couple, err := coupleRepo.Create(ctx, models.Couple{PartnerOneID: ana.ID, PartnerTwoID: ben.ID, City: "Porto"})
	if err != nil {
		t.Fatalf("creating couple: %v", err)
	}

	synthesizer := synth.SynthesizerFunc(func(ctx context.Context, request synth.Request) ([]models.Suggestion, error) {
		return []models.Suggestion{{Title: "Picnic", Description: "d", TimeEstimate: "2h", BudgetBand: "low"}}, nil
	})
	coordinator := services.NewSynthesisCoordinator(cycleRepo, coupleRepo, synthesizer, nil, 5*time.Second, 10*time.Minute)
	cycleService := services.NewCycleService(cycleRepo, coupleRepo, nil, time.Hour, 3)

	cycle, err := cycleService.CurrentCycle(ctx, couple.ID)
	if err != nil {
		t.Fatalf("current cycle: %v", err)
	}

	// Each partner runs an independent client; the store is the only shared
	// state between them.
	anaClient := flow.NewClient(coordinator, flow.DefaultBackoff())
	benClient := flow.NewClient(coordinator, flow.DefaultBackoff())

	phase, _, err := anaClient.Submit(ctx, cycleService, cycle.ID, ana.ID, "slow mornings")
	if err != nil {
		t.Fatalf("ana submitting: %v", err)
	}
	if phase != flow.PhaseWaiting {
		t.Fatalf("ana's phase = %s, want waiting", phase)
	}

	phase, result, err := benClient.Submit(ctx, cycleService, cycle.ID, ben.ID, "live music")
	if err != nil {
		t.Fatalf("ben submitting: %v", err)
	}
	if phase != flow.PhasePick {
		t.Fatalf("ben's phase = %s, want pick after completing the pair", phase)
	}
	if len(result.Rituals) == 0 {
		t.Fatal("ben's trigger returned no rituals")
	}

	// Ana's client catches up by re-reading, not by being told.
	rituals, phase, err := anaClient.AwaitRituals(ctx, cycle.ID)
	if err != nil {
		t.Fatalf("ana awaiting: %v", err)
	}
	if phase != flow.PhasePick || len(rituals) == 0 {
		t.Fatalf("ana's view = (%s, %d rituals), want pick with rituals", phase, len(rituals))
	}
	if rituals[0].Title != result.Rituals[0].Title {
		t.Error("partners observed different rituals")
	}
}
