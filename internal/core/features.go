package core

import "fmt"

var keyNames = [12]string{"C", "C♯", "D", "D♯", "E", "F", "F♯", "G", "G♯", "A", "A♯", "B"}

// AudioDescriptor holds the musical properties of a track. Field names on
// the wire follow the provider's audio-features object.
type AudioDescriptor struct {
	ID               string  `json:"id"`
	Key              int     `json:"key"`
	Mode             int     `json:"mode"`
	Tempo            float64 `json:"tempo"`
	TimeSignature    int     `json:"time_signature"`
	Danceability     float64 `json:"danceability"`
	Energy           float64 `json:"energy"`
	Valence          float64 `json:"valence"`
	Acousticness     float64 `json:"acousticness"`
	Instrumentalness float64 `json:"instrumentalness"`
	IsEstimated      bool    `json:"is_estimated"`
	TrackName        string  `json:"track_name,omitempty"`
	ArtistName       string  `json:"artist_name,omitempty"`
	DurationMS       int     `json:"duration_ms,omitempty"`
}

// KeyName returns the pitch class name for Key.
func (d *AudioDescriptor) KeyName() string {
	if d.Key < 0 || d.Key > 11 {
		return keyNames[0]
	}
	return keyNames[d.Key]
}

// ModeName returns "Major" or "Minor".
func (d *AudioDescriptor) ModeName() string {
	if d.Mode == 0 {
		return "Minor"
	}
	return "Major"
}

// KeySignature formats key and mode, e.g. "F♯ Minor".
func (d *AudioDescriptor) KeySignature() string {
	return d.KeyName() + " " + d.ModeName()
}

// Meter formats the time signature as "n/4".
func (d *AudioDescriptor) Meter() string {
	return fmt.Sprintf("%d/4", d.TimeSignature)
}
