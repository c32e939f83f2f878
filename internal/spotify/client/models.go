package client

import "github.com/tessro/sheetplayer/internal/core"

// User represents a Spotify user profile.
type User struct {
	ID           string       `json:"id"`
	DisplayName  string       `json:"display_name"`
	Email        string       `json:"email,omitempty"`
	Country      string       `json:"country,omitempty"`
	Product      string       `json:"product,omitempty"`
	URI          string       `json:"uri"`
	Images       []Image      `json:"images"`
	Followers    Followers    `json:"followers"`
	ExternalURLs ExternalURLs `json:"external_urls"`
}

// Image represents an image resource.
type Image struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

// Followers represents follower information.
type Followers struct {
	Total int `json:"total"`
}

// ExternalURLs contains external URLs for a resource.
type ExternalURLs struct {
	Spotify string `json:"spotify"`
}

// currentlyPlaying is the /me/player/currently-playing response.
type currentlyPlaying struct {
	ProgressMS           int    `json:"progress_ms"`
	IsPlaying            bool   `json:"is_playing"`
	Item                 *track `json:"item"`
	CurrentlyPlayingType string `json:"currently_playing_type"`
}

type track struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	DurationMS int      `json:"duration_ms"`
	Artists    []artist `json:"artists"`
	Album      album    `json:"album"`
}

type artist struct {
	Name string `json:"name"`
}

type album struct {
	Name   string  `json:"name"`
	Images []Image `json:"images"`
}

// audioFeatures is the /audio-features/{id} response. Pointer fields
// distinguish absent values from zero.
type audioFeatures struct {
	ID               string   `json:"id"`
	Key              *int     `json:"key"`
	Mode             *int     `json:"mode"`
	Tempo            float64  `json:"tempo"`
	TimeSignature    *int     `json:"time_signature"`
	Danceability     *float64 `json:"danceability"`
	Energy           *float64 `json:"energy"`
	Valence          *float64 `json:"valence"`
	Acousticness     *float64 `json:"acousticness"`
	Instrumentalness *float64 `json:"instrumentalness"`
}

func (t *track) toCore() *core.TrackRef {
	if t == nil {
		return nil
	}

	ref := &core.TrackRef{
		ID:         t.ID,
		Name:       t.Name,
		DurationMS: t.DurationMS,
		Artists:    make([]core.Artist, 0, len(t.Artists)),
		Album: core.Album{
			Name:   t.Album.Name,
			Images: make([]core.Image, 0, len(t.Album.Images)),
		},
	}
	for _, a := range t.Artists {
		ref.Artists = append(ref.Artists, core.Artist{Name: a.Name})
	}
	for _, img := range t.Album.Images {
		ref.Album.Images = append(ref.Album.Images, core.Image{URL: img.URL, Height: img.Height, Width: img.Width})
	}
	return ref
}

func (cp *currentlyPlaying) toCore() *core.PlaybackSnapshot {
	return &core.PlaybackSnapshot{
		Track:      cp.Item.toCore(),
		IsPlaying:  cp.IsPlaying,
		ProgressMS: cp.ProgressMS,
	}
}

func (af *audioFeatures) toCore(id string) *core.AudioDescriptor {
	d := &core.AudioDescriptor{
		ID:               af.ID,
		Key:              0,
		Mode:             1,
		Tempo:            af.Tempo,
		TimeSignature:    4,
		Danceability:     unit(af.Danceability),
		Energy:           unit(af.Energy),
		Valence:          unit(af.Valence),
		Acousticness:     unit(af.Acousticness),
		Instrumentalness: unit(af.Instrumentalness),
	}
	if d.ID == "" {
		d.ID = id
	}
	if af.Key != nil && *af.Key >= 0 && *af.Key <= 11 {
		d.Key = *af.Key
	}
	if af.Mode != nil && (*af.Mode == 0 || *af.Mode == 1) {
		d.Mode = *af.Mode
	}
	if af.TimeSignature != nil && *af.TimeSignature >= 3 && *af.TimeSignature <= 7 {
		d.TimeSignature = *af.TimeSignature
	}
	if d.Tempo < 0 {
		d.Tempo = 0
	}
	return d
}

// unit clamps v to [0, 1]. Absent values are 0.
func unit(v *float64) float64 {
	if v == nil || *v < 0 {
		return 0
	}
	if *v > 1 {
		return 1
	}
	return *v
}
