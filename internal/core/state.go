package core

// PlaybackSnapshot is the result of one currently-playing query.
type PlaybackSnapshot struct {
	Track      *TrackRef `json:"track"`
	IsPlaying  bool      `json:"is_playing"`
	ProgressMS int       `json:"progress_ms"`
}

// HasTrack returns true if there is an active track.
func (s *PlaybackSnapshot) HasTrack() bool {
	return s != nil && s.Track != nil
}

// ProgressPercent returns playback progress as a percentage (0-100).
func (s *PlaybackSnapshot) ProgressPercent() float64 {
	if s == nil || s.Track == nil || s.Track.DurationMS == 0 {
		return 0
	}
	return float64(s.ProgressMS) / float64(s.Track.DurationMS) * 100
}

// PlayerState is what a poll cycle produces: the snapshot plus the
// descriptor for its track, when one could be obtained.
type PlayerState struct {
	Snapshot      *PlaybackSnapshot `json:"snapshot"`
	AudioFeatures *AudioDescriptor  `json:"audio_features"`
}

// TrackID returns the current track id, or "".
func (s *PlayerState) TrackID() string {
	if s == nil || !s.Snapshot.HasTrack() {
		return ""
	}
	return s.Snapshot.Track.ID
}
