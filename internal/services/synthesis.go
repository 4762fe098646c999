package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/krishanraja/try-ritual-sub002/internal/models"
	"github.com/krishanraja/try-ritual-sub002/internal/repository"
	"github.com/krishanraja/try-ritual-sub002/internal/synth"
)

// TriggerResult is the outcome of one synthesis trigger. Exactly one status
// applies; the other fields are meaningful only for their status.
type TriggerResult struct {
	Status  models.TriggerStatus
	Rituals []models.Suggestion

	PartnerOneReady bool
	PartnerTwoReady bool

	Err      string
	CanRetry bool
}

// SynthesisCoordinator serializes the join-then-generate workflow between a
// couple's two independently scheduled clients. The cycle's generated_at
// column is the lock; the repository's compare-and-set on that column is the
// only thing that makes concurrent triggers safe. The coordinator itself
// holds no state between invocations.
type SynthesisCoordinator struct {
	cycleRepo   repository.CycleRepository
	coupleRepo  repository.CoupleRepository
	synthesizer synth.Synthesizer
	notifier    Notifier

	synthesisTimeout time.Duration
	lockStaleAfter   time.Duration

	now func() time.Time
}

func NewSynthesisCoordinator(
	cycleRepo repository.CycleRepository,
	coupleRepo repository.CoupleRepository,
	synthesizer synth.Synthesizer,
	notifier Notifier,
	synthesisTimeout time.Duration,
	lockStaleAfter time.Duration,
) *SynthesisCoordinator {
	return &SynthesisCoordinator{
		cycleRepo:        cycleRepo,
		coupleRepo:       coupleRepo,
		synthesizer:      synthesizer,
		notifier:         notifier,
		synthesisTimeout: synthesisTimeout,
		lockStaleAfter:   lockStaleAfter,
		now:              time.Now,
	}
}

// Trigger decides the synthesis state for a cycle and, if eligible, runs
// synthesis exactly once among any number of concurrent callers. Safe to
// call any number of times: completed cycles answer from the stored output,
// contended cycles report generating, and failures release the lock so a
// later call can retry.
func (coordinator *SynthesisCoordinator) Trigger(ctx context.Context, cycleID string, forceRetry bool) (TriggerResult, error) {
	cycle, err := coordinator.cycleRepo.FindByID(ctx, cycleID)
	if err != nil {
		return TriggerResult{}, err
	}

	if cycle.SynthesizedOutput != nil && !forceRetry {
		rituals, err := synth.ParseSuggestions(*cycle.SynthesizedOutput)
		if err != nil {
			slog.Error("stored output unreadable", "cycle_id", cycleID, "error", err)
			return TriggerResult{
				Status:   models.TriggerFailed,
				Err:      "stored suggestions are unreadable",
				CanRetry: true,
			}, nil
		}
		return TriggerResult{Status: models.TriggerReady, Rituals: rituals}, nil
	}

	if !cycle.BothInputsPresent() {
		return TriggerResult{
			Status:          models.TriggerWaiting,
			PartnerOneReady: cycle.PartnerOneInput != nil,
			PartnerTwoReady: cycle.PartnerTwoInput != nil,
		}, nil
	}

	now := coordinator.now()
	if forceRetry {
		if err := coordinator.cycleRepo.ForceLock(ctx, cycleID, now); err != nil {
			if errors.Is(err, repository.ErrCycleNotFound) {
				return TriggerResult{}, err
			}
			return failedResult(fmt.Errorf("acquiring forced lock: %w", err)), nil
		}
	} else {
		acquired, err := coordinator.cycleRepo.AcquireLock(ctx, cycleID, now)
		if err != nil {
			return failedResult(fmt.Errorf("acquiring lock: %w", err)), nil
		}
		if !acquired {
			acquired, err = coordinator.reclaimIfStale(ctx, cycle, now)
			if err != nil {
				return failedResult(err), nil
			}
			if !acquired {
				return TriggerResult{Status: models.TriggerGenerating}, nil
			}
		}
	}

	return coordinator.runSynthesis(ctx, cycle, now)
}

// reclaimIfStale steals a lock whose holder plausibly crashed: older than
// the staleness window with no output. The steal is itself a conditional
// write, so two reclaiming callers cannot both win.
func (coordinator *SynthesisCoordinator) reclaimIfStale(ctx context.Context, cycle models.WeeklyCycle, now time.Time) (bool, error) {
	staleBefore := now.Add(-coordinator.lockStaleAfter)
	if cycle.GeneratedAt != nil && !cycle.GeneratedAt.Before(staleBefore) {
		return false, nil
	}
	reclaimed, err := coordinator.cycleRepo.ReclaimStaleLock(ctx, cycle.ID, staleBefore, now)
	if err != nil {
		return false, fmt.Errorf("reclaiming stale lock: %w", err)
	}
	if reclaimed {
		slog.Warn("reclaimed stale synthesis lock", "cycle_id", cycle.ID, "held_since", cycle.GeneratedAt)
	}
	return reclaimed, nil
}

// runSynthesis is the lock-holding path: invoke the synthesizer, persist the
// output, or release the lock so the cycle stays retryable.
func (coordinator *SynthesisCoordinator) runSynthesis(ctx context.Context, cycle models.WeeklyCycle, lockedAt time.Time) (TriggerResult, error) {
	request := synth.Request{
		PartnerOneInput: synth.SanitizeInput(*cycle.PartnerOneInput),
		PartnerTwoInput: synth.SanitizeInput(*cycle.PartnerTwoInput),
	}

	couple, err := coordinator.coupleRepo.FindByID(ctx, cycle.CoupleID)
	if err != nil {
		slog.Warn("loading couple context", "cycle_id", cycle.ID, "error", err)
	} else {
		request.City = couple.City
		request.Locale = couple.Timezone
	}

	synthCtx, cancel := context.WithTimeout(ctx, coordinator.synthesisTimeout)
	defer cancel()

	suggestions, err := coordinator.synthesizer.Synthesize(synthCtx, request)
	if err == nil && len(suggestions) == 0 {
		err = errors.New("synthesizer returned no suggestions")
	}
	if err != nil {
		coordinator.releaseAfterFailure(ctx, cycle.ID)
		slog.Error("synthesis failed", "cycle_id", cycle.ID, "error", err)
		return failedResult(err), nil
	}

	outputJSON, err := json.Marshal(suggestions)
	if err != nil {
		coordinator.releaseAfterFailure(ctx, cycle.ID)
		return failedResult(fmt.Errorf("encoding suggestions: %w", err)), nil
	}

	if err := coordinator.cycleRepo.SaveOutput(ctx, cycle.ID, string(outputJSON), coordinator.now()); err != nil {
		coordinator.releaseAfterFailure(ctx, cycle.ID)
		return failedResult(fmt.Errorf("saving suggestions: %w", err)), nil
	}

	slog.Info("synthesis complete", "cycle_id", cycle.ID,
		"suggestions", len(suggestions), "took", coordinator.now().Sub(lockedAt))

	coordinator.notifySurprise(ctx, cycle)

	return TriggerResult{Status: models.TriggerReady, Rituals: suggestions}, nil
}

// releaseAfterFailure returns the cycle to an unlocked state. A release
// failure leaves the lock held; the staleness window will reclaim it.
func (coordinator *SynthesisCoordinator) releaseAfterFailure(ctx context.Context, cycleID string) {
	if err := coordinator.cycleRepo.ReleaseLock(ctx, cycleID); err != nil {
		slog.Error("releasing synthesis lock", "cycle_id", cycleID, "error", err)
	}
}

func (coordinator *SynthesisCoordinator) notifySurprise(ctx context.Context, cycle models.WeeklyCycle) {
	if coordinator.notifier == nil {
		return
	}
	couple, err := coordinator.coupleRepo.FindByID(ctx, cycle.CoupleID)
	if err != nil {
		return
	}
	event := Notification{Type: NotificationSurpriseReady, CycleID: cycle.ID, Message: "Your weekly rituals are ready"}
	for _, partnerID := range []string{couple.PartnerOneID, couple.PartnerTwoID} {
		if err := coordinator.notifier.Notify(ctx, partnerID, event); err != nil {
			slog.Warn("delivering surprise notification", "partner_id", partnerID, "error", err)
		}
	}
}

func failedResult(err error) TriggerResult {
	return TriggerResult{Status: models.TriggerFailed, Err: err.Error(), CanRetry: true}
}
