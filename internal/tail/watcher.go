package tail

import (
	"context"
	"time"

	"github.com/tessro/sheetplayer/internal/core"
	"github.com/tessro/sheetplayer/internal/poller"
)

// EventType represents the type of playback event.
type EventType int

const (
	EventTrackChange EventType = iota
	EventPause
	EventResume
	EventStopped
	EventFeatures
	EventError
	EventLoggedOut
)

// Event represents a playback state change.
type Event struct {
	Type      EventType
	Timestamp time.Time
	Previous  *core.PlayerState
	Current   *core.PlayerState
	Err       error
}

// Watcher turns poller updates into playback events.
type Watcher struct {
	updates <-chan poller.Update
	events  chan Event
}

// NewWatcher creates a watcher over a poller's update stream.
func NewWatcher(updates <-chan poller.Update) *Watcher {
	return &Watcher{
		updates: updates,
		events:  make(chan Event, 16),
	}
}

// Events returns the channel of playback events.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Run consumes updates until the stream closes or ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	defer close(w.events)

	var prev *core.PlayerState
	var lastErr string

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case u, ok := <-w.updates:
			if !ok {
				return nil
			}

			var events []Event
			switch {
			case u.Status == poller.Unauthenticated:
				events = []Event{{Type: EventLoggedOut, Timestamp: u.At, Previous: prev, Err: u.Err}}
			case u.Err != nil:
				// Repeated identical failures are reported once.
				if msg := u.Err.Error(); msg != lastErr {
					lastErr = msg
					events = []Event{{Type: EventError, Timestamp: u.At, Previous: prev, Err: u.Err}}
				}
			default:
				lastErr = ""
				events = diffStates(prev, u.State, u.At)
				prev = u.State
			}

			for _, e := range events {
				select {
				case w.events <- e:
				default:
					// Drop event if channel is full
				}
			}
		}
	}
}

// diffStates compares two states and returns detected events.
func diffStates(prev, curr *core.PlayerState, now time.Time) []Event {
	if curr == nil {
		return nil
	}

	var events []Event
	event := func(t EventType) {
		events = append(events, Event{Type: t, Timestamp: now, Previous: prev, Current: curr})
	}

	prevPlaying := prev != nil && prev.Snapshot != nil && prev.Snapshot.IsPlaying
	currPlaying := curr.Snapshot != nil && curr.Snapshot.IsPlaying

	// First poll - no previous state
	if prev == nil {
		if curr.TrackID() == "" {
			event(EventStopped)
			return events
		}
		event(EventTrackChange)
		if curr.AudioFeatures != nil {
			event(EventFeatures)
		}
		return events
	}

	if curr.TrackID() != prev.TrackID() {
		if curr.TrackID() == "" {
			event(EventStopped)
			return events
		}
		event(EventTrackChange)
		if curr.AudioFeatures != nil {
			event(EventFeatures)
		}
		return events
	}

	if curr.TrackID() == "" {
		return events
	}

	// Pause/Resume detection
	if prevPlaying && !currPlaying {
		event(EventPause)
	} else if !prevPlaying && currPlaying {
		event(EventResume)
	}

	// Descriptor arrived or switched source for the same track.
	if featuresChanged(prev.AudioFeatures, curr.AudioFeatures) {
		event(EventFeatures)
	}

	return events
}

func featuresChanged(prev, curr *core.AudioDescriptor) bool {
	if curr == nil {
		return false
	}
	if prev == nil {
		return true
	}
	return prev.IsEstimated != curr.IsEstimated
}
