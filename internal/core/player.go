package core

import "context"

// Player is the client-side view of the API service used by the poller.
type Player interface {
	// EnsureToken returns a usable access token, refreshing it if needed.
	EnsureToken(ctx context.Context) (string, error)

	// CurrentlyPlaying returns nil when nothing is playing.
	CurrentlyPlaying(ctx context.Context, token string) (*PlaybackSnapshot, error)

	AudioFeatures(ctx context.Context, token, trackID string) (*AudioDescriptor, error)
}
