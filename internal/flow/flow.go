// Package flow drives one partner through a weekly cycle. The client holds
// no authoritative state: every transition comes from re-reading the cycle
// through trigger results, so two partners' clients converge on the same
// view even across reloads or partitions.
package flow

import (
	"context"
	"errors"
	"fmt"

	"github.com/krishanraja/try-ritual-sub002/internal/models"
	"github.com/krishanraja/try-ritual-sub002/internal/services"
)

type Phase string

const (
	PhaseInput      Phase = "input"
	PhaseWaiting    Phase = "waiting"
	PhaseGenerating Phase = "generating"
	PhasePick       Phase = "pick"
	PhaseMatch      Phase = "match"
	PhaseConfirmed  Phase = "confirmed"
	PhaseError      Phase = "error"
)

var ErrRetriesExhausted = errors.New("gave up waiting for synthesis")

// Triggerer is the coordinator as seen from the client: in process it is
// *services.SynthesisCoordinator, remotely it is an HTTP caller hitting the
// trigger endpoint.
type Triggerer interface {
	Trigger(ctx context.Context, cycleID string, forceRetry bool) (services.TriggerResult, error)
}

// InputWriter records a partner's one-time weekly input.
type InputWriter interface {
	SubmitInput(ctx context.Context, cycleID string, partnerID string, input string) (models.WeeklyCycle, error)
}

type Client struct {
	trigger Triggerer
	backoff Backoff
	sleep   func(ctx context.Context, attempt int) error
}

func NewClient(trigger Triggerer, backoff Backoff) *Client {
	client := &Client{trigger: trigger, backoff: backoff}
	client.sleep = func(ctx context.Context, attempt int) error {
		return backoff.Wait(ctx, attempt)
	}
	return client
}

// PhaseFor derives a partner's phase from an observed cycle. Phases past
// pick belong to the downstream ranking flow and are not derived here.
func PhaseFor(cycle models.WeeklyCycle, slot models.PartnerSlot) Phase {
	switch {
	case cycle.SynthesizedOutput != nil:
		return PhasePick
	case cycle.GeneratedAt != nil:
		return PhaseGenerating
	case cycle.InputFor(slot) == nil:
		return PhaseInput
	case !cycle.BothInputsPresent():
		return PhaseWaiting
	default:
		return PhaseGenerating
	}
}

// Submit writes the partner's input and opportunistically fires a trigger:
// if this was the second input the trigger starts synthesis, otherwise it
// reports waiting. Returns the phase the partner lands in.
func (client *Client) Submit(ctx context.Context, writer InputWriter, cycleID string, partnerID string, input string) (Phase, services.TriggerResult, error) {
	if _, err := writer.SubmitInput(ctx, cycleID, partnerID, input); err != nil {
		return PhaseError, services.TriggerResult{}, err
	}

	result, err := client.trigger.Trigger(ctx, cycleID, false)
	if err != nil {
		return PhaseError, services.TriggerResult{}, err
	}
	return phaseForResult(result), result, nil
}

// AwaitRituals polls the trigger through waiting and generating with bounded
// backoff until the cycle is ready, fails, or retries run out. A failed
// result is returned to the caller, who owns the explicit retry decision.
func (client *Client) AwaitRituals(ctx context.Context, cycleID string) ([]models.Suggestion, Phase, error) {
	for attempt := 0; attempt <= client.backoff.MaxRetries; attempt++ {
		result, err := client.trigger.Trigger(ctx, cycleID, false)
		if err != nil {
			return nil, PhaseError, err
		}

		switch result.Status {
		case models.TriggerReady:
			return result.Rituals, PhasePick, nil
		case models.TriggerFailed:
			return nil, PhaseError, fmt.Errorf("synthesis failed: %s", result.Err)
		}

		if attempt == client.backoff.MaxRetries {
			break
		}
		if err := client.sleep(ctx, attempt); err != nil {
			return nil, PhaseError, err
		}
	}
	return nil, PhaseGenerating, ErrRetriesExhausted
}

// RetryFailed re-runs synthesis after a failure with an explicit force.
func (client *Client) RetryFailed(ctx context.Context, cycleID string) ([]models.Suggestion, Phase, error) {
	result, err := client.trigger.Trigger(ctx, cycleID, true)
	if err != nil {
		return nil, PhaseError, err
	}
	if result.Status == models.TriggerReady {
		return result.Rituals, PhasePick, nil
	}
	if result.Status == models.TriggerFailed {
		return nil, PhaseError, fmt.Errorf("synthesis failed: %s", result.Err)
	}
	return nil, phaseForResult(result), nil
}

func phaseForResult(result services.TriggerResult) Phase {
	switch result.Status {
	case models.TriggerReady:
		return PhasePick
	case models.TriggerWaiting:
		return PhaseWaiting
	case models.TriggerGenerating:
		return PhaseGenerating
	default:
		return PhaseError
	}
}
