package repository_test

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/krishanraja/try-ritual-sub002/internal/models"
	"github.com/krishanraja/try-ritual-sub002/internal/repository"
	"github.com/krishanraja/try-ritual-sub002/internal/testutil"
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

func createTestCycle(t *testing.T, db *sql.DB, coupleID string) models.WeeklyCycle {
	t.Helper()
	cycleRepo := repository.NewCycleRepository(db)
	cycle, err := cycleRepo.Create(context.Background(), models.WeeklyCycle{
		CoupleID: coupleID, WeekStartDate: "2026-08-17",
	})
	if err != nil {
		t.Fatalf("creating cycle: %v", err)
	}
	return cycle
}

func TestCycleRepository_FindByID_NotFound(t *testing.T) {
	db := testutil.NewTestDatabase(t)
	cycleRepo := repository.NewCycleRepository(db)

	_, err := cycleRepo.FindByID(context.Background(), "missing")
	if !errors.Is(err, repository.ErrCycleNotFound) {
		t.Fatalf("expected ErrCycleNotFound, got %v", err)
	}
}

func TestCycleRepository_SavePartnerInput_WriteOnce(t *testing.T) {
	db := testutil.NewTestDatabase(t)
	cycleRepo := repository.NewCycleRepository(db)
	ctx := context.Background()

	couple := createTestCouple(t, db)
	cycle := createTestCycle(t, db, couple.ID)

	if err := cycleRepo.SavePartnerInput(ctx, cycle.ID, models.PartnerOne, "long walks"); err != nil {
		t.Fatalf("first write: %v", err)
	}

	err := cycleRepo.SavePartnerInput(ctx, cycle.ID, models.PartnerOne, "overwrite attempt")
	if !errors.Is(err, repository.ErrInputAlreadySet) {
		t.Fatalf("expected ErrInputAlreadySet, got %v", err)
	}

	// The other partner's field is independent.
	if err := cycleRepo.SavePartnerInput(ctx, cycle.ID, models.PartnerTwo, "quiet dinners"); err != nil {
		t.Fatalf("partner two write: %v", err)
	}

	found, err := cycleRepo.FindByID(ctx, cycle.ID)
	if err != nil {
		t.Fatalf("finding cycle: %v", err)
	}
	if found.PartnerOneInput == nil || *found.PartnerOneInput != "long walks" {
		t.Errorf("partner one input = %v, want 'long walks'", found.PartnerOneInput)
	}
	if found.PartnerTwoInput == nil || *found.PartnerTwoInput != "quiet dinners" {
		t.Errorf("partner two input = %v, want 'quiet dinners'", found.PartnerTwoInput)
	}
}

func TestCycleRepository_SavePartnerInput_MissingCycle(t *testing.T) {
	db := testutil.NewTestDatabase(t)
	cycleRepo := repository.NewCycleRepository(db)

	err := cycleRepo.SavePartnerInput(context.Background(), "missing", models.PartnerOne, "x")
	if !errors.Is(err, repository.ErrCycleNotFound) {
		t.Fatalf("expected ErrCycleNotFound, got %v", err)
	}
}

func TestCycleRepository_AcquireLock_OnlyOnce(t *testing.T) {
	db := testutil.NewTestDatabase(t)
	cycleRepo := repository.NewCycleRepository(db)
	ctx := context.Background()

	couple := createTestCouple(t, db)
	cycle := createTestCycle(t, db, couple.ID)

	acquired, err := cycleRepo.AcquireLock(ctx, cycle.ID, time.Now())
	if err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	if !acquired {
		t.Fatal("expected first acquire to succeed")
	}

	acquired, err = cycleRepo.AcquireLock(ctx, cycle.ID, time.Now())
	if err != nil {
		t.Fatalf("second acquire: %v", err)
	}
	if acquired {
		t.Fatal("expected second acquire to fail while lock is held")
	}
}

func TestCycleRepository_AcquireLock_Concurrent(t *testing.T) {
	db := testutil.NewTestDatabase(t)
	cycleRepo := repository.NewCycleRepository(db)
	ctx := context.Background()

	couple := createTestCouple(t, db)
	cycle := createTestCycle(t, db, couple.ID)

	const callers = 25
	var wg sync.WaitGroup
	results := make(chan bool, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			acquired, err := cycleRepo.AcquireLock(ctx, cycle.ID, time.Now())
			if err != nil {
				t.Errorf("acquiring lock: %v", err)
				return
			}
			results <- acquired
		}()
	}
	wg.Wait()
	close(results)

	winners := 0
	for acquired := range results {
		if acquired {
			winners++
		}
	}
	if winners != 1 {
		t.Fatalf("expected exactly one lock winner, got %d", winners)
	}
}

func TestCycleRepository_ReleaseLock_KeepsCompletedCycles(t *testing.T) {
	db := testutil.NewTestDatabase(t)
	cycleRepo := repository.NewCycleRepository(db)
	ctx := context.Background()

	couple := createTestCouple(t, db)
	cycle := createTestCycle(t, db, couple.ID)

	if _, err := cycleRepo.AcquireLock(ctx, cycle.ID, time.Now()); err != nil {
		t.Fatalf("acquiring lock: %v", err)
	}
	if err := cycleRepo.SaveOutput(ctx, cycle.ID, `[{"title":"Picnic"}]`, time.Now()); err != nil {
		t.Fatalf("saving output: %v", err)
	}

	// Release must not clear the lock once output exists.
	if err := cycleRepo.ReleaseLock(ctx, cycle.ID); err != nil {
		t.Fatalf("releasing lock: %v", err)
	}

	found, _ := cycleRepo.FindByID(ctx, cycle.ID)
	if found.GeneratedAt == nil {
		t.Fatal("lock was released on a completed cycle")
	}
	if found.SynthesizedOutput == nil {
		t.Fatal("output missing after release attempt")
	}
}

func TestCycleRepository_ReleaseLock_AllowsReacquire(t *testing.T) {
	db := testutil.NewTestDatabase(t)
	cycleRepo := repository.NewCycleRepository(db)
	ctx := context.Background()

	couple := createTestCouple(t, db)
	cycle := createTestCycle(t, db, couple.ID)

	if _, err := cycleRepo.AcquireLock(ctx, cycle.ID, time.Now()); err != nil {
		t.Fatalf("acquiring lock: %v", err)
	}
	if err := cycleRepo.ReleaseLock(ctx, cycle.ID); err != nil {
		t.Fatalf("releasing lock: %v", err)
	}

	acquired, err := cycleRepo.AcquireLock(ctx, cycle.ID, time.Now())
	if err != nil {
		t.Fatalf("reacquiring lock: %v", err)
	}
	if !acquired {
		t.Fatal("expected reacquire to succeed after release")
	}
}

func TestCycleRepository_ForceLock_ClearsOutput(t *testing.T) {
	db := testutil.NewTestDatabase(t)
	cycleRepo := repository.NewCycleRepository(db)
	ctx := context.Background()

	couple := createTestCouple(t, db)
	cycle := createTestCycle(t, db, couple.ID)

	if _, err := cycleRepo.AcquireLock(ctx, cycle.ID, time.Now()); err != nil {
		t.Fatalf("acquiring lock: %v", err)
	}
	if err := cycleRepo.SaveOutput(ctx, cycle.ID, `[{"title":"Picnic"}]`, time.Now()); err != nil {
		t.Fatalf("saving output: %v", err)
	}

	if err := cycleRepo.ForceLock(ctx, cycle.ID, time.Now()); err != nil {
		t.Fatalf("force lock: %v", err)
	}

	found, _ := cycleRepo.FindByID(ctx, cycle.ID)
	if found.SynthesizedOutput != nil {
		t.Error("force lock should clear synthesized output")
	}
	if found.CompletedAt != nil {
		t.Error("force lock should clear completed_at")
	}
	if found.GeneratedAt == nil {
		t.Error("force lock should hold the lock")
	}
}

func TestCycleRepository_ReclaimStaleLock(t *testing.T) {
	db := testutil.NewTestDatabase(t)
	cycleRepo := repository.NewCycleRepository(db)
	ctx := context.Background()

	couple := createTestCouple(t, db)
	cycle := createTestCycle(t, db, couple.ID)

	lockedAt := time.Now().Add(-time.Hour)
	if _, err := cycleRepo.AcquireLock(ctx, cycle.ID, lockedAt); err != nil {
		t.Fatalf("acquiring lock: %v", err)
	}

	// Fresh locks are not reclaimable.
	reclaimed, err := cycleRepo.ReclaimStaleLock(ctx, cycle.ID, time.Now().Add(-2*time.Hour), time.Now())
	if err != nil {
		t.Fatalf("reclaim check: %v", err)
	}
	if reclaimed {
		t.Fatal("lock younger than the staleness window was reclaimed")
	}

	reclaimed, err = cycleRepo.ReclaimStaleLock(ctx, cycle.ID, time.Now().Add(-30*time.Minute), time.Now())
	if err != nil {
		t.Fatalf("reclaiming stale lock: %v", err)
	}
	if !reclaimed {
		t.Fatal("expected stale lock to be reclaimed")
	}
}

func TestCycleRepository_ReleaseStaleLocks_SkipsCompleted(t *testing.T) {
	db := testutil.NewTestDatabase(t)
	cycleRepo := repository.NewCycleRepository(db)
	ctx := context.Background()

	couple := createTestCouple(t, db)

	stuck, err := cycleRepo.Create(ctx, models.WeeklyCycle{CoupleID: couple.ID, WeekStartDate: "2026-08-10"})
	if err != nil {
		t.Fatalf("creating stuck cycle: %v", err)
	}
	done, err := cycleRepo.Create(ctx, models.WeeklyCycle{CoupleID: couple.ID, WeekStartDate: "2026-08-17"})
	if err != nil {
		t.Fatalf("creating done cycle: %v", err)
	}

	old := time.Now().Add(-time.Hour)
	if _, err := cycleRepo.AcquireLock(ctx, stuck.ID, old); err != nil {
		t.Fatalf("locking stuck cycle: %v", err)
	}
	if _, err := cycleRepo.AcquireLock(ctx, done.ID, old); err != nil {
		t.Fatalf("locking done cycle: %v", err)
	}
	if err := cycleRepo.SaveOutput(ctx, done.ID, `[{"title":"Picnic"}]`, time.Now()); err != nil {
		t.Fatalf("saving output: %v", err)
	}

	released, err := cycleRepo.ReleaseStaleLocks(ctx, time.Now().Add(-30*time.Minute))
	if err != nil {
		t.Fatalf("releasing stale locks: %v", err)
	}
	if released != 1 {
		t.Fatalf("expected 1 released lock, got %d", released)
	}

	foundStuck, _ := cycleRepo.FindByID(ctx, stuck.ID)
	if foundStuck.GeneratedAt != nil {
		t.Error("stale lock was not released")
	}
	foundDone, _ := cycleRepo.FindByID(ctx, done.ID)
	if foundDone.GeneratedAt == nil {
		t.Error("completed cycle's lock was released")
	}
}

func TestCycleRepository_RecordNudge_RateLimits(t *testing.T) {
	db := testutil.NewTestDatabase(t)
	cycleRepo := repository.NewCycleRepository(db)
	ctx := context.Background()

	couple := createTestCouple(t, db)
	cycle := createTestCycle(t, db, couple.ID)

	now := time.Now()
	cooldownBefore := now.Add(-time.Hour)

	recorded, err := cycleRepo.RecordNudge(ctx, cycle.ID, now, cooldownBefore, 3)
	if err != nil {
		t.Fatalf("first nudge: %v", err)
	}
	if !recorded {
		t.Fatal("expected first nudge to record")
	}

	// Within the cooldown window.
	recorded, err = cycleRepo.RecordNudge(ctx, cycle.ID, now, cooldownBefore, 3)
	if err != nil {
		t.Fatalf("second nudge: %v", err)
	}
	if recorded {
		t.Fatal("nudge within cooldown was recorded")
	}

	// Past the cooldown but over the cap.
	later := now.Add(2 * time.Hour)
	for i := 0; i < 2; i++ {
		if _, err := cycleRepo.RecordNudge(ctx, cycle.ID, later.Add(time.Duration(i)*2*time.Hour), later.Add(time.Duration(i)*2*time.Hour), 3); err != nil {
			t.Fatalf("nudge %d: %v", i, err)
		}
	}

	recorded, err = cycleRepo.RecordNudge(ctx, cycle.ID, later.Add(10*time.Hour), later.Add(10*time.Hour), 3)
	if err != nil {
		t.Fatalf("capped nudge: %v", err)
	}
	if recorded {
		t.Fatal("nudge over the per-cycle cap was recorded")
	}
}

func TestCycleRepository_FindByCoupleAndWeek_Unique(t *testing.T) {
	db := testutil.NewTestDatabase(t)
	cycleRepo := repository.NewCycleRepository(db)
	ctx := context.Background()

	couple := createTestCouple(t, db)
	created := createTestCycle(t, db, couple.ID)

	found, err := cycleRepo.FindByCoupleAndWeek(ctx, couple.ID, "2026-08-17")
	if err != nil {
		t.Fatalf("finding cycle: %v", err)
	}
	if found.ID != created.ID {
		t.Errorf("found cycle %s, want %s", found.ID, created.ID)
	}

	if _, err := cycleRepo.Create(ctx, models.WeeklyCycle{CoupleID: couple.ID, WeekStartDate: "2026-08-17"}); err == nil {
		t.Fatal("expected duplicate (couple, week) creation to fail")
	}
}
