package client

import (
	"context"
	"encoding/json"
	"net/url"

	"go.uber.org/zap"

	"github.com/tessro/sheetplayer/internal/core"
	apperrors "github.com/tessro/sheetplayer/internal/errors"
	"github.com/tessro/sheetplayer/internal/features"
)

// CurrentUser returns the token owner's profile.
func (c *Client) CurrentUser(ctx context.Context, token string) (*User, error) {
	var user User
	if _, err := c.get(ctx, token, "/me", &user); err != nil {
		return nil, err
	}
	if user.Images == nil {
		user.Images = []Image{}
	}
	return &user, nil
}

// CurrentlyPlaying returns the playback snapshot, or nil when the provider
// reports that nothing is playing.
func (c *Client) CurrentlyPlaying(ctx context.Context, token string) (*core.PlaybackSnapshot, error) {
	var cp currentlyPlaying
	noContent, err := c.get(ctx, token, "/me/player/currently-playing", &cp)
	if err != nil {
		return nil, err
	}
	if noContent {
		return nil, nil
	}
	return cp.toCore(), nil
}

// Track returns the track with the given id.
func (c *Client) Track(ctx context.Context, token, id string) (*core.TrackRef, error) {
	var t track
	noContent, err := c.get(ctx, token, "/tracks/"+url.PathEscape(id), &t)
	if err != nil {
		return nil, err
	}
	if noContent {
		return nil, apperrors.ErrTrackNotFound
	}
	return t.toCore(), nil
}

// FetchAudioFeatures queries the provider's audio-features endpoint with no
// fallback.
func (c *Client) FetchAudioFeatures(ctx context.Context, token, id string) (*core.AudioDescriptor, error) {
	var af audioFeatures
	noContent, err := c.get(ctx, token, "/audio-features/"+url.PathEscape(id), &af)
	if err != nil {
		return nil, err
	}
	if noContent {
		return nil, apperrors.ErrTrackNotFound
	}
	return af.toCore(id), nil
}

// ResolveAudioFeatures fetches the descriptor and falls back to an
// estimate when the provider refuses access with 403.
func (c *Client) ResolveAudioFeatures(ctx context.Context, token, id string) features.Result {
	chain := features.Chain{
		features.Fetch(func(ctx context.Context, id string) (*core.AudioDescriptor, error) {
			return c.FetchAudioFeatures(ctx, token, id)
		}),
		features.Estimate(func(ctx context.Context, id string) (*core.TrackRef, error) {
			return c.Track(ctx, token, id)
		}),
	}
	return chain.Resolve(ctx, id)
}

// AudioFeatures is ResolveAudioFeatures reduced to descriptor and error.
func (c *Client) AudioFeatures(ctx context.Context, token, id string) (*core.AudioDescriptor, error) {
	res := c.ResolveAudioFeatures(ctx, token, id)
	if res.Err != nil {
		return nil, res.Err
	}
	if res.Outcome == features.OutcomeEstimated {
		c.logger.Info("audio features estimated", zap.String("track_id", id))
	}
	return res.Descriptor, nil
}

// AudioAnalysis returns the provider's analysis document untouched.
func (c *Client) AudioAnalysis(ctx context.Context, token, id string) (json.RawMessage, error) {
	var raw json.RawMessage
	noContent, err := c.get(ctx, token, "/audio-analysis/"+url.PathEscape(id), &raw)
	if err != nil {
		return nil, err
	}
	if noContent {
		return nil, apperrors.ErrTrackNotFound
	}
	return raw, nil
}
