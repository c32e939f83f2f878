package features

import (
	"context"
	"errors"
	"testing"

	"github.com/tessro/sheetplayer/internal/core"
	apperrors "github.com/tessro/sheetplayer/internal/errors"
)

func fetchErr(err error) Strategy {
	return Fetch(func(ctx context.Context, id string) (*core.AudioDescriptor, error) {
		return nil, err
	})
}

func lookupOK(ctx context.Context, id string) (*core.TrackRef, error) {
	return &core.TrackRef{
		ID:         id,
		Name:       "Song",
		Artists:    []core.Artist{{Name: "A"}, {Name: "B"}},
		DurationMS: 180000,
	}, nil
}

func TestChainFetched(t *testing.T) {
	want := &core.AudioDescriptor{ID: "x", Key: 5, Tempo: 120}
	estimateCalled := false

	chain := Chain{
		Fetch(func(ctx context.Context, id string) (*core.AudioDescriptor, error) {
			return want, nil
		}),
		Estimate(func(ctx context.Context, id string) (*core.TrackRef, error) {
			estimateCalled = true
			return nil, nil
		}),
	}

	res := chain.Resolve(context.Background(), "x")
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	if res.Outcome != OutcomeFetched || res.Strategy != "upstream" {
		t.Errorf("unexpected result: %+v", res)
	}
	if res.Descriptor != want {
		t.Error("expected upstream descriptor")
	}
	if estimateCalled {
		t.Error("estimate must not run after success")
	}
}

func TestChainEstimatesOnForbidden(t *testing.T) {
	chain := Chain{
		fetchErr(&apperrors.UpstreamError{Status: 403, Message: "Forbidden"}),
		Estimate(lookupOK),
	}

	res := chain.Resolve(context.Background(), "abc")
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	if res.Outcome != OutcomeEstimated {
		t.Fatalf("expected estimated, got %s", res.Outcome)
	}

	d := res.Descriptor
	base := Synthesize("abc")
	if d.Key != base.Key || d.Tempo != base.Tempo || !d.IsEstimated {
		t.Errorf("expected synthesized values, got %+v", d)
	}
	if d.TrackName != "Song" || d.ArtistName != "A, B" || d.DurationMS != 180000 {
		t.Errorf("expected track metadata, got %+v", d)
	}
}

func TestChainSkipsEstimateOnOtherErrors(t *testing.T) {
	upErr := &apperrors.UpstreamError{Status: 500, Message: "boom"}
	called := false

	chain := Chain{
		fetchErr(upErr),
		Estimate(func(ctx context.Context, id string) (*core.TrackRef, error) {
			called = true
			return lookupOK(ctx, id)
		}),
	}

	res := chain.Resolve(context.Background(), "abc")
	if called {
		t.Error("estimate must only run after 403")
	}
	if res.Outcome != OutcomeUnavailable || res.Err != upErr {
		t.Errorf("expected original error, got %+v", res)
	}
}

func TestChainReturnsFirstErrorWhenEstimateFails(t *testing.T) {
	forbidden := &apperrors.UpstreamError{Status: 403, Message: "Forbidden"}
	chain := Chain{
		fetchErr(forbidden),
		Estimate(func(ctx context.Context, id string) (*core.TrackRef, error) {
			return nil, errors.New("track lookup failed")
		}),
	}

	res := chain.Resolve(context.Background(), "abc")
	if res.Outcome != OutcomeUnavailable {
		t.Fatalf("expected unavailable, got %s", res.Outcome)
	}
	if res.Err != forbidden {
		t.Errorf("expected original 403, got %v", res.Err)
	}
}

func TestEmptyChain(t *testing.T) {
	res := Chain{}.Resolve(context.Background(), "x")
	if res.Outcome != OutcomeUnavailable || res.Err == nil {
		t.Errorf("expected unavailable with error, got %+v", res)
	}
}
