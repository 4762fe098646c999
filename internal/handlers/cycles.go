package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/krishanraja/try-ritual-sub002/internal/flow"
	"github.com/krishanraja/try-ritual-sub002/internal/middleware"
	"github.com/krishanraja/try-ritual-sub002/internal/models"
	"github.com/krishanraja/try-ritual-sub002/internal/repository"
	"github.com/krishanraja/try-ritual-sub002/internal/services"
)

type CycleHandler struct {
	cycleService *services.CycleService
	coordinator  *services.SynthesisCoordinator
	cycleRepo    repository.CycleRepository
	coupleRepo   repository.CoupleRepository
}

func NewCycleHandler(
	cycleService *services.CycleService,
	coordinator *services.SynthesisCoordinator,
	cycleRepo repository.CycleRepository,
	coupleRepo repository.CoupleRepository,
) *CycleHandler {
	return &CycleHandler{
		cycleService: cycleService,
		coordinator:  coordinator,
		cycleRepo:    cycleRepo,
		coupleRepo:   coupleRepo,
	}
}

// memberOf loads the cycle and verifies the caller belongs to its couple.
func (handler *CycleHandler) memberOf(r *http.Request, cycleID string) (models.WeeklyCycle, models.Couple, models.PartnerSlot, error) {
	ctx := r.Context()
	cycle, err := handler.cycleRepo.FindByID(ctx, cycleID)
	if err != nil {
		return models.WeeklyCycle{}, models.Couple{}, 0, err
	}

	couple, err := handler.coupleRepo.FindByID(ctx, cycle.CoupleID)
	if err != nil {
		return models.WeeklyCycle{}, models.Couple{}, 0, err
	}

	caller := middleware.GetPartner(ctx)
	slot, _, err := services.SlotFor(couple, caller.ID)
	if err != nil {
		return models.WeeklyCycle{}, models.Couple{}, 0, err
	}
	return cycle, couple, slot, nil
}

// Current returns this week's cycle for the caller's couple, creating it on
// first touch.
func (handler *CycleHandler) Current(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller := middleware.GetPartner(ctx)

	couple, err := handler.coupleRepo.FindByPartnerID(ctx, caller.ID)
	if err != nil {
		writeError(w, http.StatusNotFound, "no couple found")
		return
	}

	cycle, err := handler.cycleService.CurrentCycle(ctx, couple.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not load current cycle")
		return
	}

	slot, _, _ := services.SlotFor(couple, caller.ID)
	writeJSON(w, http.StatusOK, cycleView(cycle, slot))
}

func (handler *CycleHandler) Get(w http.ResponseWriter, r *http.Request) {
	cycle, _, slot, err := handler.memberOf(r, chi.URLParam(r, "id"))
	if err != nil {
		writeMembershipError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cycleView(cycle, slot))
}

type submitInputRequest struct {
	Input string `json:"input"`
}

func (handler *CycleHandler) SubmitInput(w http.ResponseWriter, r *http.Request) {
	cycle, _, slot, err := handler.memberOf(r, chi.URLParam(r, "id"))
	if err != nil {
		writeMembershipError(w, err)
		return
	}

	var request submitInputRequest
	if err := decodeJSON(r, &request); err != nil || request.Input == "" {
		writeError(w, http.StatusBadRequest, "input is required")
		return
	}

	caller := middleware.GetPartner(r.Context())
	updated, err := handler.cycleService.SubmitInput(r.Context(), cycle.ID, caller.ID, request.Input)
	if err != nil {
		if errors.Is(err, repository.ErrInputAlreadySet) {
			writeError(w, http.StatusConflict, "input already submitted for this week")
			return
		}
		writeError(w, http.StatusInternalServerError, "could not save input")
		return
	}

	writeJSON(w, http.StatusOK, cycleView(updated, slot))
}

type triggerRequest struct {
	ForceRetry bool `json:"forceRetry"`
}

// Trigger is the synthesis RPC. The response is exactly one of the five
// result shapes; every concurrent or repeated call is safe.
func (handler *CycleHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	cycle, _, _, err := handler.memberOf(r, chi.URLParam(r, "id"))
	if err != nil {
		writeMembershipError(w, err)
		return
	}

	var request triggerRequest
	if r.ContentLength > 0 {
		if err := decodeJSON(r, &request); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	result, err := handler.coordinator.Trigger(r.Context(), cycle.ID, request.ForceRetry)
	if err != nil {
		if errors.Is(err, repository.ErrCycleNotFound) {
			writeError(w, http.StatusNotFound, "cycle not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "trigger failed")
		return
	}

	writeJSON(w, http.StatusOK, triggerResponse(result))
}

func (handler *CycleHandler) Nudge(w http.ResponseWriter, r *http.Request) {
	cycle, _, _, err := handler.memberOf(r, chi.URLParam(r, "id"))
	if err != nil {
		writeMembershipError(w, err)
		return
	}

	caller := middleware.GetPartner(r.Context())
	if err := handler.cycleService.Nudge(r.Context(), cycle.ID, caller.ID); err != nil {
		if errors.Is(err, services.ErrNudgeRateLimited) {
			writeError(w, http.StatusTooManyRequests, "nudged too recently")
			return
		}
		writeError(w, http.StatusInternalServerError, "could not nudge partner")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "nudged"})
}

func writeMembershipError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, repository.ErrCycleNotFound), errors.Is(err, repository.ErrCoupleNotFound):
		writeError(w, http.StatusNotFound, "cycle not found")
	case errors.Is(err, services.ErrNotCoupleMember):
		writeError(w, http.StatusForbidden, "not a member of this couple")
	default:
		writeError(w, http.StatusInternalServerError, "could not load cycle")
	}
}

// triggerResponse maps a TriggerResult to its wire shape. Each status
// carries only its own fields.
func triggerResponse(result services.TriggerResult) map[string]interface{} {
	switch result.Status {
	case models.TriggerReady:
		return map[string]interface{}{
			"status":  result.Status,
			"rituals": result.Rituals,
		}
	case models.TriggerWaiting:
		return map[string]interface{}{
			"status":          result.Status,
			"partnerOneReady": result.PartnerOneReady,
			"partnerTwoReady": result.PartnerTwoReady,
		}
	case models.TriggerFailed:
		return map[string]interface{}{
			"status":   result.Status,
			"error":    result.Err,
			"canRetry": result.CanRetry,
		}
	default:
		return map[string]interface{}{"status": result.Status}
	}
}

// cycleView is the partner-facing projection of a cycle: readiness flags and
// the derived phase, without the other partner's raw input.
func cycleView(cycle models.WeeklyCycle, slot models.PartnerSlot) map[string]interface{} {
	view := map[string]interface{}{
		"id":                cycle.ID,
		"couple_id":         cycle.CoupleID,
		"week_start_date":   cycle.WeekStartDate,
		"partner_one_ready": cycle.PartnerOneInput != nil,
		"partner_two_ready": cycle.PartnerTwoInput != nil,
		"phase":             flow.PhaseFor(cycle, slot),
		"nudge_count":       cycle.NudgeCount,
	}
	if input := cycle.InputFor(slot); input != nil {
		view["my_input"] = *input
	}
	if cycle.SynthesizedOutput != nil {
		view["synthesized_output"] = *cycle.SynthesizedOutput
	}
	if cycle.CompletedAt != nil {
		view["completed_at"] = cycle.CompletedAt
	}
	return view
}
