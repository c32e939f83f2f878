package core

import "strings"

// Image is an album artwork reference.
type Image struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

// Artist is a credited performer on a track.
type Artist struct {
	Name string `json:"name"`
}

// Album is the release a track belongs to.
type Album struct {
	Name   string  `json:"name"`
	Images []Image `json:"images"`
}

// TrackRef is a read-only copy of the provider's track record.
type TrackRef struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Artists    []Artist `json:"artists"`
	Album      Album    `json:"album"`
	DurationMS int      `json:"duration_ms"`
}

// ArtistNames joins the credited artists with ", ".
func (t *TrackRef) ArtistNames() string {
	if t == nil {
		return ""
	}
	names := make([]string, 0, len(t.Artists))
	for _, a := range t.Artists {
		names = append(names, a.Name)
	}
	return strings.Join(names, ", ")
}

// CoverURL returns the first (largest) album image, or "".
func (t *TrackRef) CoverURL() string {
	if t == nil || len(t.Album.Images) == 0 {
		return ""
	}
	return t.Album.Images[0].URL
}
