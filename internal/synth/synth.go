// Package synth generates ritual suggestions from both partners' weekly
// preference payloads.
package synth

import (
	"context"

	"github.com/krishanraja/try-ritual-sub002/internal/models"
)

// Request carries the sanitized partner inputs plus couple context.
type Request struct {
	PartnerOneInput string
	PartnerTwoInput string
	City            string
	Locale          string
}

// Synthesizer turns a pair of partner inputs into ritual suggestions. An
// empty result is an error; implementations never return both a nil error
// and an empty list.
type Synthesizer interface {
	Synthesize(ctx context.Context, request Request) ([]models.Suggestion, error)
}

// SynthesizerFunc adapts a function to the Synthesizer interface.
type SynthesizerFunc func(ctx context.Context, request Request) ([]models.Suggestion, error)

func (fn SynthesizerFunc) Synthesize(ctx context.Context, request Request) ([]models.Suggestion, error) {
	return fn(ctx, request)
}
