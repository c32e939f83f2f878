package features

import (
	"context"
	"fmt"

	"github.com/tessro/sheetplayer/internal/core"
	apperrors "github.com/tessro/sheetplayer/internal/errors"
)

// Outcome records how a descriptor was obtained.
type Outcome string

const (
	OutcomeFetched     Outcome = "fetched"
	OutcomeEstimated   Outcome = "estimated"
	OutcomeUnavailable Outcome = "unavailable"
)

// Strategy is one way of producing a descriptor.
type Strategy struct {
	Name    string
	Outcome Outcome

	// Applies decides whether this strategy runs after the previous one
	// failed with prev. A nil Applies accepts any error.
	Applies func(prev error) bool

	Resolve func(ctx context.Context, trackID string) (*core.AudioDescriptor, error)
}

// Result is the uniform answer of a Chain.
type Result struct {
	Descriptor *core.AudioDescriptor
	Outcome    Outcome
	Strategy   string
	Err        error
}

// Chain tries strategies in order until one succeeds.
type Chain []Strategy

// Resolve runs the chain for trackID. When every applicable strategy fails,
// the result is unavailable and carries the first error encountered.
func (c Chain) Resolve(ctx context.Context, trackID string) Result {
	var firstErr, lastErr error

	for i, s := range c {
		if i > 0 && s.Applies != nil && !s.Applies(lastErr) {
			break
		}

		d, err := s.Resolve(ctx, trackID)
		if err == nil {
			return Result{Descriptor: d, Outcome: s.Outcome, Strategy: s.Name}
		}
		if firstErr == nil {
			firstErr = err
		}
		lastErr = err

		if ctx.Err() != nil {
			break
		}
	}

	if firstErr == nil {
		firstErr = fmt.Errorf("no strategy for track %s", trackID)
	}
	return Result{Outcome: OutcomeUnavailable, Err: firstErr}
}

// Fetch wraps a provider lookup as the primary strategy.
func Fetch(fetch func(ctx context.Context, trackID string) (*core.AudioDescriptor, error)) Strategy {
	return Strategy{
		Name:    "upstream",
		Outcome: OutcomeFetched,
		Resolve: fetch,
	}
}

// Estimate builds the fallback strategy. It only runs when the provider
// refused access (403), and uses lookup to fill in the track's name,
// artists and duration.
func Estimate(lookup func(ctx context.Context, trackID string) (*core.TrackRef, error)) Strategy {
	return Strategy{
		Name:    "estimate",
		Outcome: OutcomeEstimated,
		Applies: apperrors.IsForbidden,
		Resolve: func(ctx context.Context, trackID string) (*core.AudioDescriptor, error) {
			track, err := lookup(ctx, trackID)
			if err != nil {
				return nil, err
			}
			d := Synthesize(trackID)
			d.TrackName = track.Name
			d.ArtistName = track.ArtistNames()
			d.DurationMS = track.DurationMS
			return &d, nil
		},
	}
}
