package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/krishanraja/try-ritual-sub002/internal/models"
	"github.com/krishanraja/try-ritual-sub002/internal/repository"
)

var (
	ErrNotCoupleMember  = errors.New("partner does not belong to this couple")
	ErrNudgeRateLimited = errors.New("partner was nudged too recently")
)

// CycleService manages the lifecycle around the coordinator: creating the
// week's cycle, recording each partner's one-time input, and rate-limited
// partner reminders.
type CycleService struct {
	cycleRepo  repository.CycleRepository
	coupleRepo repository.CoupleRepository
	notifier   Notifier

	nudgeCooldown time.Duration
	nudgeMax      int

	now func() time.Time
}

func NewCycleService(
	cycleRepo repository.CycleRepository,
	coupleRepo repository.CoupleRepository,
	notifier Notifier,
	nudgeCooldown time.Duration,
	nudgeMax int,
) *CycleService {
	return &CycleService{
		cycleRepo:     cycleRepo,
		coupleRepo:    coupleRepo,
		notifier:      notifier,
		nudgeCooldown: nudgeCooldown,
		nudgeMax:      nudgeMax,
		now:           time.Now,
	}
}

// WeekStartDate returns the Monday anchoring the week containing at,
// evaluated in the given timezone. Unknown timezones fall back to UTC.
func WeekStartDate(at time.Time, timezone string) string {
	location, err := time.LoadLocation(timezone)
	if err != nil {
		location = time.UTC
	}
	local := at.In(location)

	daysSinceMonday := (int(local.Weekday()) + 6) % 7
	monday := local.AddDate(0, 0, -daysSinceMonday)
	return monday.Format("2006-01-02")
}

// CurrentCycle returns this week's cycle for the couple, creating it if the
// week has not started yet. Two clients may race on creation; the unique
// (couple, week) constraint makes the loser re-read the winner's row.
func (service *CycleService) CurrentCycle(ctx context.Context, coupleID string) (models.WeeklyCycle, error) {
	couple, err := service.coupleRepo.FindByID(ctx, coupleID)
	if err != nil {
		return models.WeeklyCycle{}, err
	}

	weekStart := WeekStartDate(service.now(), couple.Timezone)

	cycle, err := service.cycleRepo.FindByCoupleAndWeek(ctx, coupleID, weekStart)
	if err == nil {
		return cycle, nil
	}
	if !errors.Is(err, repository.ErrCycleNotFound) {
		return models.WeeklyCycle{}, err
	}

	created, err := service.cycleRepo.Create(ctx, models.WeeklyCycle{
		CoupleID:      coupleID,
		WeekStartDate: weekStart,
	})
	if err != nil {
		// Lost a creation race; the other client's row is authoritative.
		if existing, findErr := service.cycleRepo.FindByCoupleAndWeek(ctx, coupleID, weekStart); findErr == nil {
			return existing, nil
		}
		return models.WeeklyCycle{}, fmt.Errorf("creating weekly cycle: %w", err)
	}
	return created, nil
}

// SlotFor resolves which input field a partner owns within a couple, and
// who the other partner is.
func SlotFor(couple models.Couple, partnerID string) (models.PartnerSlot, string, error) {
	switch partnerID {
	case couple.PartnerOneID:
		return models.PartnerOne, couple.PartnerTwoID, nil
	case couple.PartnerTwoID:
		return models.PartnerTwo, couple.PartnerOneID, nil
	default:
		return 0, "", ErrNotCoupleMember
	}
}

// SubmitInput records one partner's weekly input. The field is write-once;
// a second submission returns repository.ErrInputAlreadySet. The other
// partner gets a best-effort "partner ready" push.
func (service *CycleService) SubmitInput(ctx context.Context, cycleID string, partnerID string, input string) (models.WeeklyCycle, error) {
	cycle, err := service.cycleRepo.FindByID(ctx, cycleID)
	if err != nil {
		return models.WeeklyCycle{}, err
	}

	couple, err := service.coupleRepo.FindByID(ctx, cycle.CoupleID)
	if err != nil {
		return models.WeeklyCycle{}, err
	}

	slot, otherPartnerID, err := SlotFor(couple, partnerID)
	if err != nil {
		return models.WeeklyCycle{}, err
	}

	if err := service.cycleRepo.SavePartnerInput(ctx, cycleID, slot, input); err != nil {
		return models.WeeklyCycle{}, err
	}

	if service.notifier != nil {
		notification := Notification{
			Type:    NotificationPartnerReady,
			CycleID: cycleID,
			Message: "Your partner has planned their week",
		}
		if err := service.notifier.Notify(ctx, otherPartnerID, notification); err != nil {
			slog.Warn("notifying partner of submission", "partner_id", otherPartnerID, "error", err)
		}
	}

	return service.cycleRepo.FindByID(ctx, cycleID)
}

// Nudge reminds the other partner to submit. The repository's guarded
// update enforces both the cooldown and the per-cycle cap atomically.
func (service *CycleService) Nudge(ctx context.Context, cycleID string, partnerID string) error {
	cycle, err := service.cycleRepo.FindByID(ctx, cycleID)
	if err != nil {
		return err
	}

	couple, err := service.coupleRepo.FindByID(ctx, cycle.CoupleID)
	if err != nil {
		return err
	}

	_, otherPartnerID, err := SlotFor(couple, partnerID)
	if err != nil {
		return err
	}

	now := service.now()
	recorded, err := service.cycleRepo.RecordNudge(ctx, cycleID, now, now.Add(-service.nudgeCooldown), service.nudgeMax)
	if err != nil {
		return err
	}
	if !recorded {
		return ErrNudgeRateLimited
	}

	if service.notifier != nil {
		notification := Notification{
			Type:    NotificationNudge,
			CycleID: cycleID,
			Message: "Your partner is waiting on your week",
		}
		if err := service.notifier.Notify(ctx, otherPartnerID, notification); err != nil {
			slog.Warn("delivering nudge", "partner_id", otherPartnerID, "error", err)
		}
	}
	return nil
}
