package components

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/tessro/sheetplayer/internal/core"
	"github.com/tessro/sheetplayer/internal/tui/styles"
)

// Features displays the musical descriptor of the current track.
type Features struct{}

// NewFeatures creates a new Features component
func NewFeatures() *Features {
	return &Features{}
}

// Render renders the features panel. hasTrack distinguishes "no track"
// from "track without a descriptor".
func (f *Features) Render(d *core.AudioDescriptor, hasTrack bool, width, height int, focused bool) string {
	title := styles.PanelTitle("Sheet", focused)

	var content string
	switch {
	case !hasTrack:
		content = styles.Muted.Render("Waiting for a track")
	case d == nil:
		content = styles.Muted.Render("Audio features unavailable")
	default:
		content = f.renderDescriptor(d, width-4)
	}

	panel := styles.Panel(focused).
		Width(width).
		Height(height)

	return panel.Render(lipgloss.JoinVertical(lipgloss.Left,
		title,
		"",
		content,
	))
}

func (f *Features) renderDescriptor(d *core.AudioDescriptor, width int) string {
	header := styles.Key.Render(d.KeySignature()) + "  " +
		styles.Title.Render(fmt.Sprintf("♩ = %.0f", d.Tempo)) + "  " +
		styles.Subtitle.Render(d.Meter())

	barWidth := max(width-20, 10)
	rows := []string{header, ""}
	for _, m := range []struct {
		label string
		value float64
	}{
		{"Danceability", d.Danceability},
		{"Energy", d.Energy},
		{"Valence", d.Valence},
		{"Acousticness", d.Acousticness},
		{"Instrumental", d.Instrumentalness},
	} {
		rows = append(rows, fmt.Sprintf("%s %s %3.0f%%",
			styles.Label.Width(13).Render(m.label),
			styles.Meter(m.value, barWidth),
			m.value*100))
	}

	if d.IsEstimated {
		rows = append(rows, "", styles.Estimated.Render("estimated from track id"))
	}

	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}
